package fanout

import (
	"encoding/json"

	"PSync/tools/decode"
	"PSync/tools/errs"
)

// Job 一次消息扩散任务。入队后不可变；
// recipientIds 按集合对待，消费端读取时去重。
type Job struct {
	MessageID    string   `json:"messageId"`
	ChatID       string   `json:"chatId"`
	ChatType     string   `json:"chatType"` // private | group
	Seq          int64    `json:"seq"`
	SenderID     string   `json:"senderId"`
	RecipientIDs []string `json:"recipientIds"`
}

func (j *Job) Validate() error {
	if j.MessageID == "" || j.ChatID == "" || j.Seq <= 0 {
		return errs.ErrArgs.WrapMsg("fanout job",
			"messageId", j.MessageID, "chatId", j.ChatID, "seq", j.Seq)
	}
	return nil
}

func (j *Job) Encode() ([]byte, error) {
	data, err := json.Marshal(j)
	return data, errs.WrapMsg(err, "encode fanout job")
}

// DecodeJob 弱类型解码：老版本生产者发 seq 为字符串也能吃下
func DecodeJob(data []byte) (*Job, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errs.WrapMsg(err, "parse fanout job")
	}
	var j Job
	if err := decode.Decode(m, &j); err != nil {
		return nil, err
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return &j, nil
}
