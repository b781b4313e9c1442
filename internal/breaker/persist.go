// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package breaker

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultStateTTL = time.Hour

// sharedStore persists breaker state to a shared Redis-compatible store so
// the last known state of a breaker is visible across replicas. New does
// not read it back: every Breaker starts CLOSED in its own process,
// whatever state the store holds for its name.
type sharedStore struct {
	client *redis.Client
	prefix string
}

func newSharedStore(client *redis.Client, prefix string) *sharedStore {
	if prefix == "" {
		prefix = "taxpoynt:message_router"
	}
	return &sharedStore{client: client, prefix: prefix}
}

func (s *sharedStore) stateKey(name string) string {
	return s.prefix + ":circuit_breaker:" + name + ":state"
}

// save writes the breaker's current state with a TTL. It is called on
// every state transition (and on Reset) only, so the record of a breaker
// that makes no transition for longer than ttl expires.
func (s *sharedStore) save(name, state string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	s.client.Set(context.Background(), s.stateKey(name), state, ttl)
}

// load reads the last-persisted state for name, returning ("", false) if
// no record exists (a brand-new breaker with no shared history).
func (s *sharedStore) load(ctx context.Context, name string) (string, bool) {
	val, err := s.client.Get(ctx, s.stateKey(name)).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (s *sharedStore) failuresKey(name string) string {
	return s.prefix + ":circuit_breaker:" + name + ":failures"
}

// recordFailure mirrors a failure timestamp into a shared sorted set and
// prunes entries older than window, so operators observing the cluster
// can see a breaker's rolling failure history across replicas even
// though each replica's own trip decision is driven by its local
// failureWindow (cache.SlidingWindowCounter), not this mirror.
func (s *sharedStore) recordFailure(name string, at time.Time, window time.Duration) {
	ctx := context.Background()
	key := s.failuresKey(name)
	member := at.Format(time.RFC3339Nano)
	s.client.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixNano()), Member: member})
	cutoff := at.Add(-window)
	s.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatFloat(float64(cutoff.UnixNano()), 'f', -1, 64))
	s.client.Expire(ctx, key, window+time.Minute)
}
