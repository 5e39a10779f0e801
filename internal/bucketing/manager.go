package bucketing

import (
	"hash"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"docverify-service/internal/config"
)

// Manager assigns documents and audit events to stable hash buckets. Document
// buckets form the Scylla partition key so one wide collection does not land
// on a single partition; event buckets group audit rows for aggregation.
type Manager struct {
	docBuckets   int
	eventBuckets int
	hasherPool   sync.Pool
}

func NewManager(cfg *config.Config) *Manager {
	m := &Manager{
		docBuckets:   cfg.Bucketing.DocBuckets,
		eventBuckets: cfg.Bucketing.EventBuckets,
	}
	if m.docBuckets <= 0 {
		m.docBuckets = 16
	}
	if m.eventBuckets <= 0 {
		m.eventBuckets = 64
	}

	// Pool of hash functions to avoid allocation overhead on hot paths.
	m.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}

	return m
}

// GetDocBucket returns the consistent bucket for a document id
// (0 to docBuckets-1).
func (m *Manager) GetDocBucket(docID string) int {
	return m.getBucket(docID, m.docBuckets)
}

// GetEventBucket returns the bucket for audit/event aggregation.
func (m *Manager) GetEventBucket(identifier string) int {
	return m.getBucket(identifier, m.eventBuckets)
}

// GetTimeBucket aligns now to a window boundary, in Unix seconds.
func (m *Manager) GetTimeBucket(windowSeconds int) int64 {
	return time.Now().Unix() / int64(windowSeconds) * int64(windowSeconds)
}

// GetDateBucket returns the UTC date bucket for audit rows.
func (m *Manager) GetDateBucket() string {
	return time.Now().UTC().Format("2006-01-02")
}

// DocBuckets returns the configured number of document buckets.
func (m *Manager) DocBuckets() int {
	return m.docBuckets
}

func (m *Manager) getBucket(key string, numBuckets int) int {
	return int(m.getHash(key) % uint64(numBuckets))
}

func (m *Manager) getHash(key string) uint64 {
	hasher := m.hasherPool.Get().(hash.Hash64)
	defer m.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(key))
	return hasher.Sum64()
}
