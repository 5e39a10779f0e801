package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"docverify-service/internal/client"
	"docverify-service/internal/codec"
	"docverify-service/internal/models"
	"docverify-service/internal/search"
	"docverify-service/internal/store"
	"docverify-service/internal/util"
)

const submissionCollection = "submissions"

// decryptWorkers bounds concurrent decrypts when loading the queue.
const decryptWorkers = 8

var ErrSubmissionNotFound = errors.New("submission not found")

// Entry is a decrypted queue item.
type Entry struct {
	ID          string                 `json:"id"`
	Status      models.Status          `json:"status"`
	SubmittedAt time.Time              `json:"submittedAt"`
	Record      *models.DocumentRecord `json:"record"`
}

// Snapshot is the queue at one point in time. Dropped counts stored
// submissions that could not be decrypted; they are excluded from Entries
// but surfaced so operators notice key or corruption problems.
type Snapshot struct {
	Entries []Entry `json:"entries"`
	Dropped int     `json:"dropped"`
}

// Queue is the encrypted submission queue. The persistent store only ever
// sees ciphertext; records are decrypted on read. Subscribers registered via
// Subscribe are invoked with a fresh snapshot after every mutation.
type Queue struct {
	store    store.Store
	codec    *codec.Codec
	producer *client.KafkaProducer
	indexer  *search.Indexer
	topic    string

	mu          sync.Mutex
	subscribers map[int]func(Snapshot)
	nextSubID   int
}

func NewQueue(st store.Store, cdc *codec.Codec, producer *client.KafkaProducer, indexer *search.Indexer, topic string) *Queue {
	return &Queue{
		store:       st,
		codec:       cdc,
		producer:    producer,
		indexer:     indexer,
		topic:       topic,
		subscribers: make(map[int]func(Snapshot)),
	}
}

// Add encrypts the record and enqueues it as a pending submission.
func (q *Queue) Add(ctx context.Context, record *models.DocumentRecord) (*models.Submission, error) {
	if record == nil {
		return nil, fmt.Errorf("cannot queue a nil record")
	}

	blob, err := q.codec.Encrypt(ctx, record.ToMap())
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt submission: %w", err)
	}

	sub := &models.Submission{
		ID:            uuid.New().String(),
		EncryptedData: blob,
		Status:        models.StatusPending,
		SubmittedAt:   time.Now().UTC(),
	}

	if _, err := q.store.InsertOne(ctx, submissionCollection, sub.ToDoc()); err != nil {
		return nil, fmt.Errorf("failed to persist submission: %w", err)
	}

	util.Info("submission queued",
		zap.String("submission_id", sub.ID),
		zap.String("username", record.Username))

	q.publishEvent(ctx, "submission.created", sub.ID, map[string]any{
		"submissionId": sub.ID,
		"status":       string(sub.Status),
		"submittedAt":  sub.SubmittedAt.Format(time.RFC3339Nano),
	})
	q.indexer.IndexSubmission(ctx, search.SubmissionMeta{
		ID:          sub.ID,
		Username:    record.Username,
		Name:        record.Name,
		DocType:     record.DocumentType,
		Status:      string(sub.Status),
		SubmittedAt: sub.SubmittedAt,
	})

	q.notify(ctx)
	return sub, nil
}

// GetAll loads and decrypts the whole queue, oldest first. Submissions whose
// blobs cannot be opened are dropped and counted rather than failing the
// whole read.
func (q *Queue) GetAll(ctx context.Context) (Snapshot, error) {
	docs, err := q.store.Find(ctx, submissionCollection, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load submissions: %w", err)
	}

	entries := make([]*Entry, len(docs))
	var dropped int64
	var droppedMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(decryptWorkers)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			entry, err := q.decryptDoc(gctx, doc)
			if err != nil {
				droppedMu.Lock()
				dropped++
				droppedMu.Unlock()
				util.Warn("dropping undecryptable submission",
					zap.Any("doc_id", doc["id"]),
					util.ErrorField(err))
				return nil
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	snapshot := Snapshot{Entries: make([]Entry, 0, len(entries)), Dropped: int(dropped)}
	for _, entry := range entries {
		if entry != nil {
			snapshot.Entries = append(snapshot.Entries, *entry)
		}
	}
	sort.SliceStable(snapshot.Entries, func(i, j int) bool {
		return snapshot.Entries[i].SubmittedAt.Before(snapshot.Entries[j].SubmittedAt)
	})
	return snapshot, nil
}

// Get loads and decrypts a single submission by id.
func (q *Queue) Get(ctx context.Context, id string) (*Entry, error) {
	doc, err := q.store.FindOne(ctx, submissionCollection, store.Filter{"id": id})
	if err == store.ErrNotFound {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load submission %s: %w", id, err)
	}
	return q.decryptDoc(ctx, doc)
}

// UpdateStatus moves one submission to a new review status. Other
// submissions are never touched.
func (q *Queue) UpdateStatus(ctx context.Context, id string, status models.Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid submission status %q", status)
	}

	_, err := q.store.FindOne(ctx, submissionCollection, store.Filter{"id": id})
	if err == store.ErrNotFound {
		return ErrSubmissionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load submission %s: %w", id, err)
	}

	_, err = q.store.UpdateOne(ctx, submissionCollection,
		store.Filter{"id": id}, store.Document{"status": string(status)})
	if err != nil {
		return fmt.Errorf("failed to update submission %s: %w", id, err)
	}

	util.Info("submission status updated",
		zap.String("submission_id", id),
		zap.String("status", string(status)))

	q.publishEvent(ctx, "submission.status_changed", id, map[string]any{
		"submissionId": id,
		"status":       string(status),
	})
	q.indexer.UpdateStatus(ctx, id, string(status))

	q.notify(ctx)
	return nil
}

// Delete removes one submission from the queue.
func (q *Queue) Delete(ctx context.Context, id string) error {
	deleted, err := q.store.DeleteOne(ctx, submissionCollection, store.Filter{"id": id})
	if err != nil {
		return fmt.Errorf("failed to delete submission %s: %w", id, err)
	}
	if deleted == 0 {
		return ErrSubmissionNotFound
	}

	q.publishEvent(ctx, "submission.deleted", id, map[string]any{"submissionId": id})
	q.indexer.Delete(ctx, id)

	q.notify(ctx)
	return nil
}

// Clear empties the queue.
func (q *Queue) Clear(ctx context.Context) (int, error) {
	docs, err := q.store.Find(ctx, submissionCollection, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to load submissions: %w", err)
	}

	removed := 0
	for _, doc := range docs {
		id, _ := doc["id"].(string)
		if id == "" {
			continue
		}
		if _, err := q.store.DeleteOne(ctx, submissionCollection, store.Filter{"id": id}); err != nil {
			return removed, fmt.Errorf("failed to delete submission %s: %w", id, err)
		}
		q.indexer.Delete(ctx, id)
		removed++
	}

	util.Info("submission queue cleared", zap.Int("removed", removed))
	q.publishEvent(ctx, "submission.queue_cleared", "", map[string]any{"removed": removed})
	q.notify(ctx)
	return removed, nil
}

// Subscribe registers a callback invoked with a fresh snapshot after every
// queue mutation. The returned function unsubscribes it.
func (q *Queue) Subscribe(fn func(Snapshot)) func() {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := q.nextSubID
	q.nextSubID++
	q.subscribers[id] = fn

	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.subscribers, id)
	}
}

func (q *Queue) decryptDoc(ctx context.Context, doc store.Document) (*Entry, error) {
	sub, err := models.SubmissionFromDoc(doc)
	if err != nil {
		return nil, err
	}

	recordMap, err := q.codec.Decrypt(ctx, sub.EncryptedData)
	if err != nil {
		return nil, err
	}
	record, err := models.DocumentRecordFromMap(recordMap)
	if err != nil {
		return nil, err
	}

	return &Entry{
		ID:          sub.ID,
		Status:      sub.Status,
		SubmittedAt: sub.SubmittedAt,
		Record:      record,
	}, nil
}

func (q *Queue) publishEvent(ctx context.Context, eventType, key string, payload map[string]any) {
	if q.producer == nil {
		return
	}
	payload["eventType"] = eventType
	payload["at"] = time.Now().UTC().Format(time.RFC3339Nano)

	value, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if key == "" {
		key = eventType
	}
	if err := q.producer.ProduceMessage(ctx, q.topic, []byte(key), value,
		map[string]string{"event_type": eventType}); err != nil {
		util.Warn("failed to publish submission event",
			zap.String("event_type", eventType),
			util.ErrorField(err))
	}
}

// notify fans a fresh snapshot out to all subscribers. Snapshot load
// failures are logged, not raised; notification is best effort.
func (q *Queue) notify(ctx context.Context) {
	q.mu.Lock()
	subs := make([]func(Snapshot), 0, len(q.subscribers))
	for _, fn := range q.subscribers {
		subs = append(subs, fn)
	}
	q.mu.Unlock()

	if len(subs) == 0 {
		return
	}

	snapshot, err := q.GetAll(ctx)
	if err != nil {
		util.Warn("failed to build queue snapshot for subscribers", util.ErrorField(err))
		return
	}
	for _, fn := range subs {
		fn(snapshot)
	}
}
