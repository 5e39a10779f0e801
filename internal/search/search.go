package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"docverify-service/internal/client"
	"docverify-service/internal/util"
)

// SubmissionMeta is the searchable projection of a submission. Only
// non-sensitive identity fields are indexed; the encrypted blob never
// leaves the primary store.
type SubmissionMeta struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Name        string    `json:"name"`
	DocType     string    `json:"docType"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Indexer mirrors submission metadata into Elasticsearch for operator
// search. A nil es client makes every method a no-op so deployments without
// Elasticsearch lose search but nothing else.
type Indexer struct {
	es    *client.ESClient
	index string
}

func NewIndexer(es *client.ESClient, index string) *Indexer {
	return &Indexer{es: es, index: index}
}

func (i *Indexer) Enabled() bool {
	return i != nil && i.es != nil
}

func (i *Indexer) IndexSubmission(ctx context.Context, meta SubmissionMeta) {
	if !i.Enabled() {
		return
	}
	res, err := i.es.IndexDocument(ctx, i.index, meta.ID, meta)
	if err != nil {
		util.Warn("failed to index submission", zap.String("id", meta.ID), util.ErrorField(err))
		return
	}
	res.Body.Close()
}

func (i *Indexer) UpdateStatus(ctx context.Context, id, status string) {
	if !i.Enabled() {
		return
	}
	res, err := i.es.UpdateDocument(ctx, i.index, id, map[string]any{"status": status})
	if err != nil {
		util.Warn("failed to update submission index", zap.String("id", id), util.ErrorField(err))
		return
	}
	res.Body.Close()
}

func (i *Indexer) Delete(ctx context.Context, id string) {
	if !i.Enabled() {
		return
	}
	res, err := i.es.DeleteDocument(ctx, i.index, id)
	if err != nil {
		util.Warn("failed to remove submission from index", zap.String("id", id), util.ErrorField(err))
		return
	}
	res.Body.Close()
}

// Search runs a free-text query over the indexed submission metadata.
func (i *Indexer) Search(ctx context.Context, text string, limit int) ([]SubmissionMeta, error) {
	if !i.Enabled() {
		return nil, fmt.Errorf("submission search is not configured")
	}
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	query := map[string]any{
		"size": limit,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  text,
				"fields": []string{"username", "name", "docType", "status"},
			},
		},
	}

	res, err := i.es.Search(ctx, i.index, query)
	if err != nil {
		return nil, fmt.Errorf("submission search failed: %w", err)
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source SubmissionMeta `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := i.es.ParseResponse(res, &parsed); err != nil {
		return nil, fmt.Errorf("submission search failed: %w", err)
	}

	results := make([]SubmissionMeta, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		results = append(results, hit.Source)
	}
	return results, nil
}
