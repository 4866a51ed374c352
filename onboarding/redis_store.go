package onboarding

import (
	"context"

	"github.com/jrsteele09/go-certprep-session/internal/errors"
	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "certprep:onboarding"

// RedisStore keeps onboarding state in Redis so it survives reinstalls of the
// client that share the same backing store.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(redisClient redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisStore) completedKey() string {
	return s.prefix + ":completed"
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + ":user:" + userID
}

func (s *RedisStore) IsCompleted(ctx context.Context) (bool, error) {
	v, err := s.redis.Get(ctx, s.completedKey()).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrap(err, "[RedisStore.IsCompleted] get")
	}
	return v == "1", nil
}

func (s *RedisStore) SetCompleted(ctx context.Context, completed bool) error {
	v := "0"
	if completed {
		v = "1"
	}
	if err := s.redis.Set(ctx, s.completedKey(), v, 0).Err(); err != nil {
		return pkgerrors.Wrap(err, "[RedisStore.SetCompleted] set")
	}
	return nil
}

func (s *RedisStore) HasUserExisted(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, errors.ErrIDRequired
	}
	n, err := s.redis.Exists(ctx, s.userKey(userID)).Result()
	if err != nil {
		return false, pkgerrors.Wrap(err, "[RedisStore.HasUserExisted] exists")
	}
	return n == 1, nil
}

func (s *RedisStore) MarkUserExisted(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.ErrIDRequired
	}
	if err := s.redis.Set(ctx, s.userKey(userID), "1", 0).Err(); err != nil {
		return pkgerrors.Wrap(err, "[RedisStore.MarkUserExisted] set")
	}
	return nil
}
