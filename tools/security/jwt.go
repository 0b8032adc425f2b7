package security

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"PSync/tools/errs"
)

// Options HMAC 签名参数（生产密钥走 ENV/KMS）
type Options struct {
	Secret []byte
	TTL    time.Duration // 默认 2h
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, TTL: 2 * time.Hour}
}

// Generate 给 userID 签一个 HS256 令牌
func Generate(opts Options, userID string) (string, time.Time, error) {
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Hour
	}
	now := time.Now()
	exp := now.Add(opts.TTL)
	claims := jwtlib.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := tok.SignedString(opts.Secret)
	if err != nil {
		return "", time.Time{}, errs.WrapMsg(err, "sign token")
	}
	return signed, exp, nil
}

// VerifySubject 校验令牌并取回 sub（userID）
func VerifySubject(opts Options, token string) (string, error) {
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		// 只收 HMAC 家族，防 alg 混淆
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return opts.Secret, nil
	})
	if err != nil {
		return "", errs.WrapMsg(err, "parse token")
	}
	if !parsed.Valid {
		return "", errs.New("invalid token").Wrap()
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return "", errs.New("claims type mismatch").Wrap()
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errs.New("token missing sub").Wrap()
	}
	return sub, nil
}
