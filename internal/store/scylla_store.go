package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"docverify-service/internal/bucketing"
	"docverify-service/internal/util"
)

// ScyllaStore implements Store against a ScyllaDB cluster. Documents are
// JSON blobs partitioned by (collection, bucket) where the bucket is derived
// from the document id, so id lookups hit a single partition while full
// collection scans walk every bucket.
type ScyllaStore struct {
	client   *ScyllaClient
	buckets  *bucketing.Manager
	queryTTL time.Duration
}

func NewScyllaStore(client *ScyllaClient, buckets *bucketing.Manager) *ScyllaStore {
	return &ScyllaStore{
		client:   client,
		buckets:  buckets,
		queryTTL: 10 * time.Second,
	}
}

func (s *ScyllaStore) Find(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	// Fast path: filtering by id only needs the one partition.
	if id, ok := idOnlyFilter(filter); ok {
		doc, err := s.fetchByID(ctx, collection, id)
		if err == ErrNotFound {
			return []Document{}, nil
		}
		if err != nil {
			return nil, err
		}
		return []Document{doc}, nil
	}

	results := make([]Document, 0)
	for bucket := 0; bucket < s.buckets.DocBuckets(); bucket++ {
		queryCtx, cancel := context.WithTimeout(ctx, s.queryTTL)
		iter := s.client.Prepared.SelectByBucket.WithContext(queryCtx).
			Bind(collection, bucket).Iter()

		var docID, data string
		for iter.Scan(&docID, &data) {
			doc, err := decodeDocument(docID, data)
			if err != nil {
				util.Warn("skipping undecodable document",
					zap.String("collection", collection),
					zap.String("doc_id", docID),
					util.ErrorField(err))
				continue
			}
			if matchesFilter(doc, filter) {
				results = append(results, doc)
			}
		}
		if err := iter.Close(); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to scan collection %s bucket %d: %w", collection, bucket, err)
		}
		cancel()
	}
	return results, nil
}

func (s *ScyllaStore) FindOne(ctx context.Context, collection string, filter Filter) (Document, error) {
	if id, ok := idOnlyFilter(filter); ok {
		return s.fetchByID(ctx, collection, id)
	}

	docs, err := s.Find(ctx, collection, filter)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

func (s *ScyllaStore) InsertOne(ctx context.Context, collection string, doc Document) (string, error) {
	id := ensureID(doc)
	if err := s.writeDocument(ctx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *ScyllaStore) UpdateOne(ctx context.Context, collection string, filter Filter, patch Document) (*UpdateResult, error) {
	existing, err := s.FindOne(ctx, collection, filter)
	if err != nil && err != ErrNotFound {
		return nil, err
	}

	if err == ErrNotFound {
		// Upsert: seed the new document from the filter plus the patch.
		doc := cloneDocument(Document(filter))
		mergeFields(doc, patch)
		id := ensureID(doc)
		if err := s.writeDocument(ctx, collection, id, doc); err != nil {
			return nil, err
		}
		return &UpdateResult{UpsertedCount: 1, UpsertedID: id}, nil
	}

	merged := cloneDocument(existing)
	mergeFields(merged, patch)
	id := documentID(merged)
	if id == "" {
		id = ensureID(merged)
	}
	if err := s.writeDocument(ctx, collection, id, merged); err != nil {
		return nil, err
	}
	return &UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (s *ScyllaStore) DeleteOne(ctx context.Context, collection string, filter Filter) (int64, error) {
	doc, err := s.FindOne(ctx, collection, filter)
	if err == ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	id := documentID(doc)
	bucket := s.buckets.GetDocBucket(id)

	queryCtx, cancel := context.WithTimeout(ctx, s.queryTTL)
	defer cancel()

	query := s.client.Prepared.DeleteDoc.WithContext(queryCtx).Bind(collection, bucket, id)
	if err := s.client.ExecuteWithRetry(query, 2); err != nil {
		return 0, fmt.Errorf("failed to delete document %s from %s: %w", id, collection, err)
	}
	return 1, nil
}

func (s *ScyllaStore) HealthCheck(ctx context.Context) error {
	return s.client.HealthCheck()
}

func (s *ScyllaStore) Close() error {
	s.client.Close()
	return nil
}

func (s *ScyllaStore) fetchByID(ctx context.Context, collection, id string) (Document, error) {
	bucket := s.buckets.GetDocBucket(id)

	queryCtx, cancel := context.WithTimeout(ctx, s.queryTTL)
	defer cancel()

	var data string
	err := s.client.Prepared.SelectDoc.WithContext(queryCtx).
		Bind(collection, bucket, id).Scan(&data)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch document %s from %s: %w", id, collection, err)
	}
	return decodeDocument(id, data)
}

func (s *ScyllaStore) writeDocument(ctx context.Context, collection, id string, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", id, err)
	}
	bucket := s.buckets.GetDocBucket(id)

	queryCtx, cancel := context.WithTimeout(ctx, s.queryTTL)
	defer cancel()

	query := s.client.Prepared.InsertDoc.WithContext(queryCtx).
		Bind(collection, bucket, id, string(data), time.Now().UTC())
	if err := s.client.ExecuteWithRetry(query, 2); err != nil {
		return fmt.Errorf("failed to write document %s to %s: %w", id, collection, err)
	}
	return nil
}

func idOnlyFilter(filter Filter) (string, bool) {
	if len(filter) != 1 {
		return "", false
	}
	raw, ok := filter["id"]
	if !ok {
		return "", false
	}
	id, ok := raw.(string)
	return id, ok && id != ""
}

func decodeDocument(id, data string) (Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("malformed document %s: %w", id, err)
	}
	if documentID(doc) == "" {
		doc["id"] = id
	}
	return doc, nil
}
