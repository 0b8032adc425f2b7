package decode

import (
	"PSync/tools/errs"

	"github.com/mitchellh/mapstructure"
)

// Decode 把 map/any 弱类型解码到结构体（json tag 优先），
// 配置装载与队列任务载荷都走这里，保证两边行为一致。
func Decode(input any, output any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		TagName:          "json",
		WeaklyTypedInput: true,
		ZeroFields:       false,
	})
	if err != nil {
		return errs.WrapMsg(err, "new decoder")
	}
	if err := dec.Decode(input); err != nil {
		return errs.WrapMsg(err, "decode struct")
	}
	return nil
}

// DecodeStrict 严格模式：未知字段报错（用于配置文件，拼写错误要尽早暴露）
func DecodeStrict(input any, output any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      output,
		TagName:     "json",
		ErrorUnused: true,
	})
	if err != nil {
		return errs.WrapMsg(err, "new strict decoder")
	}
	if err := dec.Decode(input); err != nil {
		return errs.WrapMsg(err, "decode struct strict")
	}
	return nil
}
