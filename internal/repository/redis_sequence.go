package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront/internal/logging"
)

const (
	sequenceKeyPrefix = "storefront:orders:seq:"
	sequenceTTL       = 48 * time.Hour
)

// RedisSequence дневной счётчик заказов на INCR; ключ живёт двое суток после последнего заказа
type RedisSequence struct {
	client *redis.Client
	prefix string
}

func NewRedisSequence(client *redis.Client) *RedisSequence {
	return &RedisSequence{client: client, prefix: sequenceKeyPrefix}
}

var _ OrderSequence = (*RedisSequence)(nil)

// Next номер выдаётся после INCR; срок ключа продлевается при каждом вызове,
// поэтому сбой EXPIRE исправит следующий заказ, а номер не теряется
func (r *RedisSequence) Next(ctx context.Context, day string) (int64, error) {
	key := r.prefix + day
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if err := r.client.Expire(ctx, key, sequenceTTL).Err(); err != nil {
		logging.FromContext(ctx).Warn("order_sequence_expire_failed", zap.String("key", key), zap.Error(err))
	}
	return n, nil
}
