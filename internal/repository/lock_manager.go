package repository

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/likecodingloveproblems/matchticketselling/internal/domain"
)

const lockShards = 64

// lockManager provides exclusive locks keyed by seat id, sharded so
// claims on unrelated seats never block each other. Lock waits are
// bounded; a timeout surfaces as ErrProcessFailed, mirroring a database
// lock_timeout.
type lockManager struct {
	shards  [lockShards]chan struct{}
	timeout time.Duration
}

func newLockManager(timeout time.Duration) *lockManager {
	m := &lockManager{timeout: timeout}
	for i := range m.shards {
		m.shards[i] = make(chan struct{}, 1)
	}
	return m
}

func (m *lockManager) shard(key string) chan struct{} {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return m.shards[h.Sum32()%lockShards]
}

// acquire takes the exclusive lock for key, returning a release func.
// It fails with ErrProcessFailed when the lock cannot be taken within
// the configured timeout or the context ends first.
func (m *lockManager) acquire(ctx context.Context, key string) (func(), error) {
	ch := m.shard(key)
	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-timer.C:
		return nil, domain.ErrProcessFailed
	case <-ctx.Done():
		return nil, domain.ErrProcessFailed
	}
}
