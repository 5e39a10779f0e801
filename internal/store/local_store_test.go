package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"docverify-service/internal/config"
)

type LocalStoreSuite struct {
	suite.Suite
	store *LocalStore
	cfg   *config.Config
	ctx   context.Context
}

func (s *LocalStoreSuite) SetupTest() {
	s.cfg = &config.Config{
		Store: config.StoreConfig{
			Namespace: "testns",
			LocalDir:  s.T().TempDir(),
		},
	}

	var err error
	s.store, err = NewLocalStore(s.cfg)
	s.Require().NoError(err)
	s.ctx = context.Background()
}

func TestLocalStoreSuite(t *testing.T) {
	suite.Run(t, new(LocalStoreSuite))
}

func (s *LocalStoreSuite) TestInsertAndFind() {
	s.Run("insert assigns an id when absent", func() {
		doc := Document{"username": "ravi", "name": "Ravi Kumar"}
		id, err := s.store.InsertOne(s.ctx, "documents", doc)
		s.Require().NoError(err)
		s.NotEmpty(id)
		s.Equal(id, doc["id"])
	})

	s.Run("find by field", func() {
		_, err := s.store.InsertOne(s.ctx, "documents", Document{"username": "asha", "name": "Asha"})
		s.Require().NoError(err)

		docs, err := s.store.Find(s.ctx, "documents", Filter{"username": "asha"})
		s.Require().NoError(err)
		s.Require().Len(docs, 1)
		s.Equal("Asha", docs[0]["name"])
	})

	s.Run("nil filter returns everything", func() {
		docs, err := s.store.Find(s.ctx, "documents", nil)
		s.Require().NoError(err)
		s.Len(docs, 2)
	})

	s.Run("findone on missing doc returns ErrNotFound", func() {
		_, err := s.store.FindOne(s.ctx, "documents", Filter{"username": "nobody"})
		s.Require().ErrorIs(err, ErrNotFound)
	})

	s.Run("collections are isolated", func() {
		docs, err := s.store.Find(s.ctx, "submissions", nil)
		s.Require().NoError(err)
		s.Empty(docs)
	})
}

func (s *LocalStoreSuite) TestUpdate() {
	s.Run("update merges fields into an existing doc", func() {
		_, err := s.store.InsertOne(s.ctx, "documents", Document{"username": "ravi", "name": "Ravi"})
		s.Require().NoError(err)

		result, err := s.store.UpdateOne(s.ctx, "documents",
			Filter{"username": "ravi"}, Document{"dob": "1990-01-15"})
		s.Require().NoError(err)
		s.EqualValues(1, result.ModifiedCount)

		doc, err := s.store.FindOne(s.ctx, "documents", Filter{"username": "ravi"})
		s.Require().NoError(err)
		s.Equal("Ravi", doc["name"])
		s.Equal("1990-01-15", doc["dob"])
	})

	s.Run("update on a missing doc upserts", func() {
		result, err := s.store.UpdateOne(s.ctx, "documents",
			Filter{"username": "new-user"}, Document{"name": "New User"})
		s.Require().NoError(err)
		s.EqualValues(1, result.UpsertedCount)
		s.NotEmpty(result.UpsertedID)

		doc, err := s.store.FindOne(s.ctx, "documents", Filter{"username": "new-user"})
		s.Require().NoError(err)
		s.Equal("New User", doc["name"])
	})
}

func (s *LocalStoreSuite) TestDelete() {
	_, err := s.store.InsertOne(s.ctx, "documents", Document{"username": "ravi"})
	s.Require().NoError(err)

	s.Run("delete removes the doc", func() {
		deleted, err := s.store.DeleteOne(s.ctx, "documents", Filter{"username": "ravi"})
		s.Require().NoError(err)
		s.EqualValues(1, deleted)

		_, err = s.store.FindOne(s.ctx, "documents", Filter{"username": "ravi"})
		s.Require().ErrorIs(err, ErrNotFound)
	})

	s.Run("deleting a missing doc is a no-op", func() {
		deleted, err := s.store.DeleteOne(s.ctx, "documents", Filter{"username": "ravi"})
		s.Require().NoError(err)
		s.EqualValues(0, deleted)
	})
}

func (s *LocalStoreSuite) TestPersistenceAcrossReopen() {
	_, err := s.store.InsertOne(s.ctx, "documents", Document{"username": "ravi", "name": "Ravi Kumar"})
	s.Require().NoError(err)
	s.Require().NoError(s.store.Close())

	reopened, err := NewLocalStore(s.cfg)
	s.Require().NoError(err)

	doc, err := reopened.FindOne(s.ctx, "documents", Filter{"username": "ravi"})
	s.Require().NoError(err)
	s.Equal("Ravi Kumar", doc["name"])
}
