package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const referenceKeyPrefix = "bms:payment-ref:"

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisReferenceGuard struct {
	client *redis.Client
}

func NewRedisReferenceGuard(addr string, password string, db int) *RedisReferenceGuard {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisReferenceGuard{client: client}
}

func (g *RedisReferenceGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

func (g *RedisReferenceGuard) Close() error {
	return g.client.Close()
}

func (g *RedisReferenceGuard) Claim(ctx context.Context, reference string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, referenceKeyPrefix+reference, token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

func (g *RedisReferenceGuard) Release(ctx context.Context, reference string, token string) error {
	return releaseScript.Run(ctx, g.client, []string{referenceKeyPrefix + reference}, token).Err()
}
