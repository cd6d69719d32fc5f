package idempotency

import (
	"context"
	"encoding/json"
	"time"

	radix "github.com/mediocregopher/radix/v3"
)

const pendingValue = `{"status":0}`

type RedisStore struct {
	client radix.Client
	prefix string
}

func NewRedisStore(client radix.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "idem:"}
}

// DialRedis opens a pooled client.
func DialRedis(addr string) (radix.Client, error) {
	return radix.NewPool("tcp", addr, 10)
}

func (s *RedisStore) Get(_ context.Context, key string) (Record, bool, error) {
	var raw string
	mn := radix.MaybeNil{Rcv: &raw}
	if err := s.client.Do(radix.Cmd(&mn, "GET", s.prefix+key)); err != nil {
		return Record{}, false, err
	}
	if mn.Nil || raw == "" {
		return Record{}, false, nil
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		_ = s.client.Do(radix.Cmd(nil, "DEL", s.prefix+key))
		return Record{}, false, nil
	}
	return rec, true, nil
}

func (s *RedisStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	var reply string
	mn := radix.MaybeNil{Rcv: &reply}
	if err := s.client.Do(radix.FlatCmd(&mn, "SET", s.prefix+key, pendingValue, "NX", "EX", seconds(ttl))); err != nil {
		return false, err
	}
	return !mn.Nil && reply == "OK", nil
}

func (s *RedisStore) Save(_ context.Context, key string, rec Record, ttl time.Duration) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Do(radix.FlatCmd(nil, "SETEX", s.prefix+key, seconds(ttl), body))
}

func (s *RedisStore) Release(_ context.Context, key string) error {
	return s.client.Do(radix.Cmd(nil, "DEL", s.prefix+key))
}

func seconds(d time.Duration) int64 {
	s := int64(d / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
