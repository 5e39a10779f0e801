package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"docverify-service/internal/codec"
	"docverify-service/internal/config"
	"docverify-service/internal/models"
	"docverify-service/internal/store"
)

type QueueSuite struct {
	suite.Suite
	queue *Queue
	store *store.LocalStore
	ctx   context.Context
}

func (s *QueueSuite) SetupTest() {
	cfg := &config.Config{
		Codec: config.CodecConfig{Passphrase: "queue-test-passphrase"},
		Store: config.StoreConfig{
			Namespace: "testns",
			LocalDir:  s.T().TempDir(),
		},
	}

	localStore, err := store.NewLocalStore(cfg)
	s.Require().NoError(err)

	s.store = localStore
	s.queue = NewQueue(localStore, codec.NewCodec(cfg, nil), nil, nil, "test.submissions")
	s.ctx = context.Background()
}

func TestQueueSuite(t *testing.T) {
	suite.Run(t, new(QueueSuite))
}

func testRecord(username string) *models.DocumentRecord {
	return &models.DocumentRecord{
		Username: username,
		Name:     "Ravi Kumar",
		DOB:      "1990-01-15",
		Aadhaar:  "1234 5678 9012",
	}
}

func (s *QueueSuite) TestAddAndGetAll() {
	s.Run("new submissions start pending", func() {
		sub, err := s.queue.Add(s.ctx, testRecord("ravi"))
		s.Require().NoError(err)
		s.NotEmpty(sub.ID)
		s.Equal(models.StatusPending, sub.Status)
	})

	s.Run("stored form is ciphertext only", func() {
		doc, err := s.store.FindOne(s.ctx, submissionCollection, nil)
		s.Require().NoError(err)
		blob, _ := doc["encryptedData"].(string)
		s.NotEmpty(blob)
		s.NotContains(blob, "Ravi Kumar")
		s.NotContains(blob, "1234 5678 9012")
	})

	s.Run("getall decrypts back to the original record", func() {
		snapshot, err := s.queue.GetAll(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(snapshot.Entries, 1)
		s.Zero(snapshot.Dropped)

		entry := snapshot.Entries[0]
		s.Equal(models.StatusPending, entry.Status)
		s.Require().NotNil(entry.Record)
		s.Equal("ravi", entry.Record.Username)
		s.Equal("Ravi Kumar", entry.Record.Name)
	})

	s.Run("entries come back oldest first", func() {
		_, err := s.queue.Add(s.ctx, testRecord("asha"))
		s.Require().NoError(err)

		snapshot, err := s.queue.GetAll(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(snapshot.Entries, 2)
		s.Equal("ravi", snapshot.Entries[0].Record.Username)
		s.Equal("asha", snapshot.Entries[1].Record.Username)
	})
}

func (s *QueueSuite) TestStatusUpdates() {
	first, err := s.queue.Add(s.ctx, testRecord("ravi"))
	s.Require().NoError(err)
	second, err := s.queue.Add(s.ctx, testRecord("asha"))
	s.Require().NoError(err)

	s.Run("updates exactly one submission", func() {
		s.Require().NoError(s.queue.UpdateStatus(s.ctx, first.ID, models.StatusVerified))

		updated, err := s.queue.Get(s.ctx, first.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusVerified, updated.Status)

		untouched, err := s.queue.Get(s.ctx, second.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, untouched.Status)
	})

	s.Run("record survives a status update", func() {
		updated, err := s.queue.Get(s.ctx, first.ID)
		s.Require().NoError(err)
		s.Require().NotNil(updated.Record)
		s.Equal("ravi", updated.Record.Username)
	})

	s.Run("rejects an unknown status", func() {
		err := s.queue.UpdateStatus(s.ctx, first.ID, models.Status("approved"))
		s.Require().Error(err)
	})

	s.Run("unknown id returns ErrSubmissionNotFound", func() {
		err := s.queue.UpdateStatus(s.ctx, "no-such-id", models.StatusRejected)
		s.Require().ErrorIs(err, ErrSubmissionNotFound)
	})
}

func (s *QueueSuite) TestDeleteAndClear() {
	first, err := s.queue.Add(s.ctx, testRecord("ravi"))
	s.Require().NoError(err)
	_, err = s.queue.Add(s.ctx, testRecord("asha"))
	s.Require().NoError(err)

	s.Run("delete removes one submission", func() {
		s.Require().NoError(s.queue.Delete(s.ctx, first.ID))

		snapshot, err := s.queue.GetAll(s.ctx)
		s.Require().NoError(err)
		s.Len(snapshot.Entries, 1)
	})

	s.Run("deleting again reports not found", func() {
		s.Require().ErrorIs(s.queue.Delete(s.ctx, first.ID), ErrSubmissionNotFound)
	})

	s.Run("clear empties the queue", func() {
		removed, err := s.queue.Clear(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, removed)

		snapshot, err := s.queue.GetAll(s.ctx)
		s.Require().NoError(err)
		s.Empty(snapshot.Entries)
	})
}

func (s *QueueSuite) TestUndecryptableSubmissionsAreCounted() {
	_, err := s.queue.Add(s.ctx, testRecord("ravi"))
	s.Require().NoError(err)

	// Simulate a key mismatch or on-disk corruption.
	_, err = s.store.InsertOne(s.ctx, submissionCollection, store.Document{
		"id":            "corrupt-1",
		"encryptedData": "definitely-not-a-valid-blob",
		"status":        "pending",
		"submittedAt":   time.Now().UTC().Format(time.RFC3339Nano),
	})
	s.Require().NoError(err)

	snapshot, err := s.queue.GetAll(s.ctx)
	s.Require().NoError(err)
	s.Len(snapshot.Entries, 1)
	s.Equal(1, snapshot.Dropped)
	s.Equal("ravi", snapshot.Entries[0].Record.Username)
}

func (s *QueueSuite) TestSubscribe() {
	notified := make([]Snapshot, 0)
	unsubscribe := s.queue.Subscribe(func(snap Snapshot) {
		notified = append(notified, snap)
	})

	s.Run("add notifies with a fresh snapshot", func() {
		_, err := s.queue.Add(s.ctx, testRecord("ravi"))
		s.Require().NoError(err)
		s.Require().Len(notified, 1)
		s.Len(notified[0].Entries, 1)
	})

	s.Run("status change notifies again", func() {
		sub := notified[0].Entries[0]
		s.Require().NoError(s.queue.UpdateStatus(s.ctx, sub.ID, models.StatusRejected))
		s.Require().Len(notified, 2)
		s.Equal(models.StatusRejected, notified[1].Entries[0].Status)
	})

	s.Run("unsubscribed callbacks stay silent", func() {
		unsubscribe()
		_, err := s.queue.Add(s.ctx, testRecord("asha"))
		s.Require().NoError(err)
		s.Len(notified, 2)
	})
}
