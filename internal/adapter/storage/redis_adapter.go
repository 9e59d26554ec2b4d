package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	guardKeyPrefix   = "guard:"
	changeChannelPfx = "changes:"
	guardKeyTTL      = time.Minute
)

// Deletes the guard only if this adapter still owns it, so an expired and
// re-acquired guard is never released by the previous holder.
var releaseGuardScript = redis.NewScript(`
local key = KEYS[1]
local owner = ARGV[1]

if redis.call('GET', key) == owner then
	return redis.call('DEL', key)
end

return 0
`)

// RedisAdapter provides cross-process guards and change notifications.
// Guard keys are scoped to namespace.
type RedisAdapter struct {
	client    *redis.Client
	namespace string
	owner     string
}

func NewRedisAdapter(client *redis.Client, namespace string) *RedisAdapter {
	return &RedisAdapter{client: client, namespace: namespace, owner: uuid.NewString()}
}

func (r *RedisAdapter) guardKey(key string) string {
	return guardKeyPrefix + r.namespace + ":" + key
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.guardKey(key), r.owner, guardKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return releaseGuardScript.Run(ctx, r.client, []string{r.guardKey(key)}, r.owner).Err()
}

func (r *RedisAdapter) Publish(ctx context.Context, topic string) error {
	return r.client.Publish(ctx, changeChannelPfx+topic, "changed").Err()
}

func (r *RedisAdapter) Listen(ctx context.Context, topic string) (<-chan struct{}, error) {
	sub := r.client.Subscribe(ctx, changeChannelPfx+topic)

	// wait for the subscription to be confirmed so that no publish after
	// Listen returns is missed
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer sub.Close()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out, nil
}
