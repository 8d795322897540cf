package register

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dilmapos/backend-pos/internal/pricing"
)

// RedisStore holds register carts between scans, keyed by cart ID.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore constructs a cart store. The TTL bounds how long an abandoned
// register cart survives.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func cartKey(id string) string {
	return "register:cart:" + id
}

// Save persists the cart and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, id string, cart pricing.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, cartKey(id), data, s.ttl).Err()
}

// Load fetches a cart. It reports whether the cart exists.
func (s *RedisStore) Load(ctx context.Context, id string) (pricing.Cart, bool, error) {
	data, err := s.client.Get(ctx, cartKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return pricing.Cart{}, false, nil
		}
		return pricing.Cart{}, false, err
	}
	var cart pricing.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return pricing.Cart{}, false, err
	}
	return cart, true, nil
}

// Delete drops a cart entirely.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, cartKey(id)).Err()
}
