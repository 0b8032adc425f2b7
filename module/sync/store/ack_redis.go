package store

import (
	"context"
	"time"

	"PSync/tools/errs"

	"github.com/redis/go-redis/v9"
)

// 单调 max 写 + TTL 续期：KEYS[1]=key; ARGV[1]=pts; ARGV[2]=ttlMs
// 返回写后的值（可能大于入参）
var luaAckMax = redis.NewScript(`
  local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
  local pts = tonumber(ARGV[1])
  if pts > cur then cur = pts end
  redis.call('SET', KEYS[1], cur, 'PX', tonumber(ARGV[2]))
  return cur
`)

const ackKeyPrefix = "psync:ack:"

// RedisAckStore ack 水位缓存，键 psync:ack:<userId>
type RedisAckStore struct {
	Rdb redis.UniversalClient
}

func NewRedisAckStore(rdb redis.UniversalClient) *RedisAckStore {
	return &RedisAckStore{Rdb: rdb}
}

func (s *RedisAckStore) SaveAck(ctx context.Context, userID string, pts int64, ttl time.Duration) (int64, error) {
	res, err := luaAckMax.Run(ctx, s.Rdb, []string{ackKeyPrefix + userID}, pts, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, errs.WrapMsg(err, "save ack", "user", userID, "pts", pts)
	}
	return res, nil
}

func (s *RedisAckStore) LoadAck(ctx context.Context, userID string) (int64, error) {
	v, err := s.Rdb.Get(ctx, ackKeyPrefix+userID).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, errs.WrapMsg(err, "load ack", "user", userID)
	}
	return v, nil
}
