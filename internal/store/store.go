package store

import (
	"context"
	"errors"
	"reflect"

	"github.com/google/uuid"
)

// Document is one JSON-shaped record inside a named collection. Values are
// whatever encoding/json produces: strings, float64, bool, nil, nested maps
// and slices.
type Document = map[string]any

// Filter selects documents whose fields equal every filter key. An empty or
// nil filter matches everything.
type Filter = map[string]any

// ErrNotFound is returned by FindOne when no document matches.
var ErrNotFound = errors.New("document not found")

// UpdateResult distinguishes a matched-and-patched update from an upsert.
type UpdateResult struct {
	MatchedCount  int    `json:"matchedCount"`
	ModifiedCount int    `json:"modifiedCount"`
	UpsertedCount int    `json:"upsertedCount"`
	UpsertedID    string `json:"upsertedId,omitempty"`
}

// Store is the uniform CRUD surface over named document collections. The
// remote Scylla backend and the file-backed fallback both implement it, so
// everything above the store is backend-agnostic.
type Store interface {
	// Find returns all documents matching filter, in insertion order for
	// the local backend; order is unspecified for the remote backend.
	Find(ctx context.Context, collection string, filter Filter) ([]Document, error)

	// FindOne returns the first match or ErrNotFound.
	FindOne(ctx context.Context, collection string, filter Filter) (Document, error)

	// InsertOne stores the document, assigning an id when absent, and
	// returns the id.
	InsertOne(ctx context.Context, collection string, doc Document) (string, error)

	// UpdateOne merges patch into the first match (set semantics). When
	// nothing matches, filter and patch combine into a new upserted
	// document.
	UpdateOne(ctx context.Context, collection string, filter Filter, patch Document) (*UpdateResult, error)

	// DeleteOne removes the first match and returns the number of
	// documents removed (0 or 1).
	DeleteOne(ctx context.Context, collection string, filter Filter) (int64, error)

	HealthCheck(ctx context.Context) error
	Close() error
}

// matchesFilter reports whether every filter key equals the corresponding
// document field.
func matchesFilter(doc Document, filter Filter) bool {
	for key, want := range filter {
		got, ok := doc[key]
		if !ok {
			return false
		}
		if !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// documentID returns the document's id field, or "".
func documentID(doc Document) string {
	if id, ok := doc["id"].(string); ok {
		return id
	}
	return ""
}

// ensureID assigns a collision-resistant id when the document has none.
func ensureID(doc Document) string {
	if id := documentID(doc); id != "" {
		return id
	}
	id := uuid.New().String()
	doc["id"] = id
	return id
}

// mergeFields applies patch onto dst with set semantics.
func mergeFields(dst Document, patch Document) {
	for key, value := range patch {
		dst[key] = value
	}
}

// cloneDocument shields callers from aliasing the store's in-memory copy.
func cloneDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
