// Redis-backed snapshots of open position state. Snapshots let a restarted
// process resume exit management for positions opened before the restart.
// When Redis is unavailable the repository falls back to an in-memory cache
// so live trading continues without interruption.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// PositionKeyPrefix is the prefix for individual position snapshot keys
	// Format: vwapbot:position:{symbol}
	PositionKeyPrefix = "vwapbot:position"

	// PositionSetKey holds the symbols with an open position
	PositionSetKey = "vwapbot:positions:open"

	// PositionSnapshotTTL bounds how long a stale snapshot survives. Intraday
	// positions close within minutes; a day of slack covers session-spanning
	// failures.
	PositionSnapshotTTL = 24 * time.Hour
)

// PositionSnapshot stores the fields needed to rebuild an exit state machine
// after a restart. Mirrors exit.Position without importing the package, so
// the schema stays decoupled from the engine internals.
type PositionSnapshot struct {
	Symbol      string    `json:"symbol"`
	EntryPrice  float64   `json:"entry_price"`
	EntryTime   time.Time `json:"entry_time"`
	Quantity    float64   `json:"quantity"`
	State       string    `json:"state"`
	FloorPrice  float64   `json:"floor_price"`
	StateSince  time.Time `json:"state_since"`
	EntryReason string    `json:"entry_reason"`
	SavedAt     time.Time `json:"saved_at"`
}

// RedisPositionStateRepository provides Redis-based storage for position
// snapshots with an in-memory fallback cache when Redis is unavailable.
type RedisPositionStateRepository struct {
	client         *redis.Client
	inMemoryCache  map[string]*PositionSnapshot
	cacheMu        sync.RWMutex
	redisAvailable atomic.Bool
}

// NewRedisPositionStateRepository creates a new repository. If client is
// nil, the repository operates in memory-only mode.
func NewRedisPositionStateRepository(client *redis.Client) *RedisPositionStateRepository {
	repo := &RedisPositionStateRepository{
		client:        client,
		inMemoryCache: make(map[string]*PositionSnapshot),
	}

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[REDIS-POSITION] Redis unavailable at startup: %v, using in-memory cache", err)
			repo.redisAvailable.Store(false)
		} else {
			log.Printf("[REDIS-POSITION] Redis connected successfully")
			repo.redisAvailable.Store(true)
		}
	} else {
		log.Printf("[REDIS-POSITION] No Redis client provided, using in-memory cache only")
		repo.redisAvailable.Store(false)
	}

	return repo
}

func (r *RedisPositionStateRepository) positionKey(symbol string) string {
	return fmt.Sprintf("%s:%s", PositionKeyPrefix, symbol)
}

// SaveSnapshot persists a position snapshot. The in-memory cache is always
// updated so a Redis outage mid-session loses nothing.
func (r *RedisPositionStateRepository) SaveSnapshot(ctx context.Context, snap *PositionSnapshot) error {
	snap.SavedAt = time.Now()

	r.cacheMu.Lock()
	r.inMemoryCache[snap.Symbol] = snap
	r.cacheMu.Unlock()

	if r.client == nil {
		return nil
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal position snapshot: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.positionKey(snap.Symbol), data, PositionSnapshotTTL)
	pipe.SAdd(ctx, PositionSetKey, snap.Symbol)
	pipe.Expire(ctx, PositionSetKey, PositionSnapshotTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		r.redisAvailable.Store(false)
		log.Printf("[REDIS-POSITION] Save failed for %s: %v, snapshot held in memory", snap.Symbol, err)
		return nil
	}
	r.redisAvailable.Store(true)
	return nil
}

// GetSnapshot returns the snapshot for a symbol, or nil if none exists
func (r *RedisPositionStateRepository) GetSnapshot(ctx context.Context, symbol string) (*PositionSnapshot, error) {
	if r.client != nil && r.redisAvailable.Load() {
		data, err := r.client.Get(ctx, r.positionKey(symbol)).Bytes()
		switch {
		case err == redis.Nil:
			return nil, nil
		case err != nil:
			r.redisAvailable.Store(false)
			log.Printf("[REDIS-POSITION] Get failed for %s: %v, falling back to cache", symbol, err)
		default:
			var snap PositionSnapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return nil, fmt.Errorf("failed to unmarshal position snapshot: %w", err)
			}
			return &snap, nil
		}
	}

	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return r.inMemoryCache[symbol], nil
}

// ListOpenSymbols returns every symbol with a stored snapshot
func (r *RedisPositionStateRepository) ListOpenSymbols(ctx context.Context) ([]string, error) {
	if r.client != nil && r.redisAvailable.Load() {
		symbols, err := r.client.SMembers(ctx, PositionSetKey).Result()
		if err == nil {
			return symbols, nil
		}
		r.redisAvailable.Store(false)
		log.Printf("[REDIS-POSITION] List failed: %v, falling back to cache", err)
	}

	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	symbols := make([]string, 0, len(r.inMemoryCache))
	for symbol := range r.inMemoryCache {
		symbols = append(symbols, symbol)
	}
	return symbols, nil
}

// DeleteSnapshot removes a symbol's snapshot after the position exits
func (r *RedisPositionStateRepository) DeleteSnapshot(ctx context.Context, symbol string) error {
	r.cacheMu.Lock()
	delete(r.inMemoryCache, symbol)
	r.cacheMu.Unlock()

	if r.client == nil {
		return nil
	}

	pipe := r.client.Pipeline()
	pipe.Del(ctx, r.positionKey(symbol))
	pipe.SRem(ctx, PositionSetKey, symbol)
	if _, err := pipe.Exec(ctx); err != nil {
		r.redisAvailable.Store(false)
		log.Printf("[REDIS-POSITION] Delete failed for %s: %v", symbol, err)
	}
	return nil
}
