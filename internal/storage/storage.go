package storage

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Known keys of the persistent store. Values are plain JSON text.
const (
	KeyProducts = "products"
	KeyCart     = "cart"
)

var (
	// ErrNotFound indicates the key has no value in the store.
	ErrNotFound = errors.New("not found")
)

type Log interface {
	Info(string, ...zap.Field)
	Warn(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// Keeper is the durability port behind the key-value store.
type Keeper interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Ping(context.Context) bool
	Close() bool
}

// KVStorage is a key-value store with an in-memory map written through to a
// Keeper. A nil or unreachable keeper degrades the store to memory-only for
// the session; callers are not expected to treat that as fatal.
type KVStorage struct {
	mx   sync.RWMutex
	data map[string][]byte

	keeper Keeper
	log    Log
}

// NewKVStorage creates a KVStorage instance. keeper may be nil, in which case
// the store runs in-memory only and the degradation is logged once. When a
// keeper is present, the known keys are warmed into memory on construction.
func NewKVStorage(ctx context.Context, keeper Keeper, log Log) *KVStorage {
	s := &KVStorage{
		data:   make(map[string][]byte),
		keeper: keeper,
		log:    log,
	}

	if keeper == nil {
		log.Warn("persistent store unavailable, running in-memory only")
		return s
	}

	for _, key := range []string{KeyProducts, KeyCart} {
		value, err := keeper.Load(ctx, key)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				log.Warn("cannot warm key from keeper", zap.String("key", key), zap.Error(err))
			}
			continue
		}
		s.data[key] = value
	}

	return s
}

// Get returns the value stored under key, or ErrNotFound.
func (s *KVStorage) Get(ctx context.Context, key string) ([]byte, error) {
	s.mx.RLock()
	value, ok := s.data[key]
	s.mx.RUnlock()
	if ok {
		return value, nil
	}

	if s.keeper == nil {
		return nil, ErrNotFound
	}

	value, err := s.keeper.Load(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		s.log.Warn("keeper load failed", zap.String("key", key), zap.Error(err))
		return nil, ErrNotFound
	}

	s.mx.Lock()
	s.data[key] = value
	s.mx.Unlock()
	return value, nil
}

// Set stores the value under key. Last write wins; the keeper write is best
// effort and a failure leaves the in-memory copy authoritative.
func (s *KVStorage) Set(ctx context.Context, key string, value []byte) error {
	s.mx.Lock()
	s.data[key] = value
	s.mx.Unlock()

	if s.keeper == nil {
		return nil
	}

	if err := s.keeper.Save(ctx, key, value); err != nil {
		s.log.Warn("keeper save failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// Ping reports whether the backing keeper is reachable.
func (s *KVStorage) Ping(ctx context.Context) bool {
	if s.keeper == nil {
		return false
	}
	return s.keeper.Ping(ctx)
}

// Close releases the backing keeper, if any.
func (s *KVStorage) Close() bool {
	if s.keeper == nil {
		return false
	}
	return s.keeper.Close()
}
