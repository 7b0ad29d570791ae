package rdkeeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/drstein77/storefront/internal/storage"
)

type Log interface {
	Info(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// RDKeeper persists store keys as plain string values in Redis.
type RDKeeper struct {
	rdb *redis.Client
	log Log
}

func NewRDKeeper(addr func() string, log Log) *RDKeeper {
	address := addr()
	if address == "" {
		log.Info("redis address is empty")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: address,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Unable to connect to redis: ", zap.Error(err))
		return nil
	}

	log.Info("Connected!")

	return &RDKeeper{
		rdb: rdb,
		log: log,
	}
}

// Load returns the JSON value stored under key, or storage.ErrNotFound.
func (kp *RDKeeper) Load(ctx context.Context, key string) ([]byte, error) {
	if kp.rdb == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	value, err := kp.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		kp.log.Error("Failed to load key", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to load key %q: %w", key, err)
	}

	return value, nil
}

// Save stores the JSON value under key without expiry.
func (kp *RDKeeper) Save(ctx context.Context, key string, value []byte) error {
	if kp.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	if err := kp.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		kp.log.Error("Failed to save key", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to save key %q: %w", key, err)
	}

	return nil
}

func (kp *RDKeeper) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := kp.rdb.Ping(ctx).Err(); err != nil {
		return false
	}

	return true
}

func (kp *RDKeeper) Close() bool {
	if kp.rdb != nil {
		if err := kp.rdb.Close(); err != nil {
			kp.log.Error("Failed to close redis client", zap.Error(err))
			return false
		}
		kp.log.Info("Redis client closed")
		return true
	}
	kp.log.Info("Attempted to close a nil redis client")
	return false
}
