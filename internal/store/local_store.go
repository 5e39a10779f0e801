package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"docverify-service/internal/config"
	"docverify-service/internal/util"
)

// LocalStore is the fallback document backend used when no Scylla nodes are
// configured. Each collection is one JSON file under a fixed namespace, and
// every mutation rewrites the collection's whole blob; there are no partial
// writes to interleave.
type LocalStore struct {
	dir       string
	namespace string
	mu        sync.Mutex
	cache     map[string][]Document
}

func NewLocalStore(cfg *config.Config) (*LocalStore, error) {
	dir := cfg.Store.LocalDir
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create local store directory: %w", err)
	}

	util.Info("Local document store initialized",
		zap.String("dir", dir),
		zap.String("namespace", cfg.Store.Namespace),
	)

	return &LocalStore{
		dir:       dir,
		namespace: cfg.Store.Namespace,
		cache:     make(map[string][]Document),
	}, nil
}

func (s *LocalStore) Find(_ context.Context, collection string, filter Filter) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.load(collection)
	var out []Document
	for _, doc := range docs {
		if matchesFilter(doc, filter) {
			out = append(out, cloneDocument(doc))
		}
	}
	return out, nil
}

func (s *LocalStore) FindOne(_ context.Context, collection string, filter Filter) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range s.load(collection) {
		if matchesFilter(doc, filter) {
			return cloneDocument(doc), nil
		}
	}
	return nil, ErrNotFound
}

func (s *LocalStore) InsertOne(_ context.Context, collection string, doc Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneDocument(doc)
	id := ensureID(stored)
	doc["id"] = id

	docs := append(s.load(collection), stored)
	if err := s.persist(collection, docs); err != nil {
		return "", err
	}
	return id, nil
}

func (s *LocalStore) UpdateOne(_ context.Context, collection string, filter Filter, patch Document) (*UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.load(collection)
	for i, doc := range docs {
		if matchesFilter(doc, filter) {
			mergeFields(docs[i], patch)
			if err := s.persist(collection, docs); err != nil {
				return nil, err
			}
			return &UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
		}
	}

	// No match: upsert the union of filter and patch.
	upserted := make(Document, len(filter)+len(patch))
	mergeFields(upserted, filter)
	mergeFields(upserted, patch)
	id := ensureID(upserted)

	if err := s.persist(collection, append(docs, upserted)); err != nil {
		return nil, err
	}
	return &UpdateResult{UpsertedCount: 1, UpsertedID: id}, nil
}

func (s *LocalStore) DeleteOne(_ context.Context, collection string, filter Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.load(collection)
	for i, doc := range docs {
		if matchesFilter(doc, filter) {
			docs = append(docs[:i], docs[i+1:]...)
			if err := s.persist(collection, docs); err != nil {
				return 0, err
			}
			return 1, nil
		}
	}
	return 0, nil
}

func (s *LocalStore) HealthCheck(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("local store directory missing: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("local store path %s is not a directory", s.dir)
	}
	return nil
}

func (s *LocalStore) Close() error {
	util.Info("Local document store closed")
	return nil
}

// load returns the in-memory collection, reading its file on first access.
// Unreadable or corrupt files are logged and treated as "no data".
func (s *LocalStore) load(collection string) []Document {
	if docs, ok := s.cache[collection]; ok {
		return docs
	}

	var docs []Document
	data, err := os.ReadFile(s.path(collection))
	switch {
	case os.IsNotExist(err):
		// first use of this collection
	case err != nil:
		util.Error("Failed to read collection file",
			zap.String("collection", collection),
			zap.Error(err))
	default:
		if err := json.Unmarshal(data, &docs); err != nil {
			util.Error("Failed to decode collection file, treating as empty",
				zap.String("collection", collection),
				zap.Error(err))
			docs = nil
		}
	}

	s.cache[collection] = docs
	return docs
}

func (s *LocalStore) persist(collection string, docs []Document) error {
	data, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("failed to serialize collection %s: %w", collection, err)
	}
	if err := os.WriteFile(s.path(collection), data, 0o600); err != nil {
		return fmt.Errorf("failed to write collection %s: %w", collection, err)
	}
	s.cache[collection] = docs
	return nil
}

func (s *LocalStore) path(collection string) string {
	return filepath.Join(s.dir, s.namespace+"_"+collection+".json")
}
