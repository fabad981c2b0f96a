package rates

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned by a Store when the key is absent or expired.
var ErrCacheMiss = errors.New("rate cache miss")

// Store is the cache backend behind the oracle. The redis implementation is
// used in production; tests inject a fake.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisStore adapts a redis client to Store.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return val, err
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// CachedOracle is a time-boxed exchange-rate cache in front of a Source.
// Cache failures degrade to direct source queries; rate lookups happen only
// at payment creation, never in the reconciliation loop.
type CachedOracle struct {
	source Source
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedOracle(source Source, store Store, ttl time.Duration, logger *zap.Logger) *CachedOracle {
	return &CachedOracle{
		source: source,
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// BTCPrice implements gateway.RateOracle.
func (o *CachedOracle) BTCPrice(ctx context.Context, currency string) (decimal.Decimal, error) {
	key := "rates:btc:" + currency

	cached, err := o.store.Get(ctx, key)
	if err == nil {
		if price, perr := decimal.NewFromString(cached); perr == nil {
			return price, nil
		}
		o.logger.Warn("Discarding unparseable cached rate", zap.String("value", cached))
	} else if !errors.Is(err, ErrCacheMiss) {
		o.logger.Warn("Rate cache read failed, querying source directly", zap.Error(err))
	}

	price, err := o.source.FetchPrice(ctx, currency)
	if err != nil {
		return decimal.Zero, err
	}

	if err := o.store.Set(ctx, key, price.String(), o.ttl); err != nil {
		o.logger.Warn("Rate cache write failed", zap.Error(err))
	}

	return price, nil
}
