// Package redisstore keeps position snapshots in Redis so a restarted process
// on another host can pick up the open position.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"riskCore/internal/domain"
	"riskCore/internal/ports"
)

const defaultKeyPrefix = "riskcore:snapshot:"

// Options configures the Redis connection.
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Store implements ports.SnapshotStore on a Redis string key per symbol.
type Store struct {
	client *redis.Client
	prefix string
	logger ports.Logger
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, opts Options, logger ports.Logger) (*Store, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for redis snapshot store")
	}
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis address is empty: %w", ports.ErrConfigurationError)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		MaxRetries:   3,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w: %v", opts.Addr, ports.ErrDBConnection, err)
	}

	return NewWithClient(client, opts.KeyPrefix, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string, logger ports.Logger) *Store {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix, logger: logger}
}

func (s *Store) key(symbol string) string {
	return s.prefix + symbol
}

// SaveSnapshot overwrites the snapshot for the position's symbol.
func (s *Store) SaveSnapshot(ctx context.Context, snap *domain.PositionSnapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot: %w", ports.ErrInvalidRequest)
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot for %s: %w", snap.Position.Symbol, err)
	}
	if err := s.client.Set(ctx, s.key(snap.Position.Symbol), payload, 0).Err(); err != nil {
		return fmt.Errorf("save snapshot for %s: %w: %v", snap.Position.Symbol, ports.ErrQueryFailed, err)
	}
	s.logger.Debug(ctx, "Position snapshot saved to redis", map[string]interface{}{"symbol": snap.Position.Symbol})
	return nil
}

// LoadSnapshot returns nil, nil when the key does not exist.
func (s *Store) LoadSnapshot(ctx context.Context, symbol string) (*domain.PositionSnapshot, error) {
	payload, err := s.client.Get(ctx, s.key(symbol)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot for %s: %w: %v", symbol, ports.ErrQueryFailed, err)
	}
	snap := &domain.PositionSnapshot{}
	if err := json.Unmarshal(payload, snap); err != nil {
		return nil, fmt.Errorf("decode snapshot for %s: %w", symbol, err)
	}
	return snap, nil
}

// DeleteSnapshot removes the key. A missing key is not an error.
func (s *Store) DeleteSnapshot(ctx context.Context, symbol string) error {
	if err := s.client.Del(ctx, s.key(symbol)).Err(); err != nil {
		return fmt.Errorf("delete snapshot for %s: %w: %v", symbol, ports.ErrQueryFailed, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
