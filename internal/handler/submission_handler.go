package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"docverify-service/internal/models"
	"docverify-service/internal/queue"
	"docverify-service/internal/search"
	"docverify-service/internal/service"
	"docverify-service/internal/util"
)

// SubmissionHandler handles HTTP requests for the encrypted submission queue.
type SubmissionHandler struct {
	submissionQueue *queue.Queue
	documentService *service.DocumentService
	searchIndexer   *search.Indexer
	logger          *zap.Logger
}

func NewSubmissionHandler(q *queue.Queue, docs *service.DocumentService, indexer *search.Indexer, logger *zap.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		submissionQueue: q,
		documentService: docs,
		searchIndexer:   indexer,
		logger:          logger,
	}
}

func (h *SubmissionHandler) RegisterRoutes(router chi.Router) {
	router.Route("/submissions", func(r chi.Router) {
		r.Post("/", h.CreateSubmission)
		r.Get("/", h.ListSubmissions)
		r.Delete("/", h.ClearSubmissions)
		r.Get("/search", h.SearchSubmissions)
		r.Get("/{submissionID}", h.GetSubmission)
		r.Patch("/{submissionID}/status", h.UpdateSubmissionStatus)
		r.Delete("/{submissionID}", h.DeleteSubmission)
	})
}

type createSubmissionRequest struct {
	Username string `json:"username"`
}

// CreateSubmission encrypts the user's stored document record and enqueues
// it for review.
func (h *SubmissionHandler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	var req createSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	record, err := h.documentService.GetByUsername(ctx, req.Username)
	if err != nil {
		respondWithError(w, h.logger, h.getStatusCode(err), err, "No document record to submit")
		return
	}

	sub, err := h.submissionQueue.Add(ctx, record)
	if err != nil {
		respondWithError(w, h.logger, http.StatusInternalServerError, err, "Failed to queue submission")
		return
	}

	respondWithJSON(w, h.logger, http.StatusCreated, successResponse(map[string]any{
		"id":          sub.ID,
		"status":      sub.Status,
		"submittedAt": sub.SubmittedAt,
	}, "Submission queued successfully"))
	h.logger.Info("Submission created via HTTP",
		util.String("submission_id", sub.ID),
		util.String("username", req.Username),
		util.Duration("duration", time.Since(startTime)),
	)
}

// ListSubmissions returns the decrypted queue, oldest first. The meta block
// carries the count of stored submissions that could not be decrypted.
func (h *SubmissionHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snapshot, err := h.submissionQueue.GetAll(ctx)
	if err != nil {
		respondWithError(w, h.logger, http.StatusInternalServerError, err, "Failed to load submissions")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, Response{
		Success: true,
		Data:    snapshot.Entries,
		Message: "Submissions retrieved",
		Meta: &Meta{
			Total:   len(snapshot.Entries),
			Dropped: snapshot.Dropped,
		},
	})
}

func (h *SubmissionHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := chi.URLParam(r, "submissionID")
	entry, err := h.submissionQueue.Get(ctx, id)
	if err != nil {
		respondWithError(w, h.logger, h.getStatusCode(err), err, "Failed to get submission")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(entry, "Submission retrieved"))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *SubmissionHandler) UpdateSubmissionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := chi.URLParam(r, "submissionID")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	status, err := models.ParseStatus(req.Status)
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid submission status")
		return
	}

	if err := h.submissionQueue.UpdateStatus(ctx, id, status); err != nil {
		respondWithError(w, h.logger, h.getStatusCode(err), err, "Failed to update submission status")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(map[string]any{
		"id":     id,
		"status": status,
	}, "Submission status updated"))
}

func (h *SubmissionHandler) DeleteSubmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := chi.URLParam(r, "submissionID")
	if err := h.submissionQueue.Delete(ctx, id); err != nil {
		respondWithError(w, h.logger, h.getStatusCode(err), err, "Failed to delete submission")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(nil, "Submission deleted"))
}

func (h *SubmissionHandler) ClearSubmissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	removed, err := h.submissionQueue.Clear(ctx)
	if err != nil {
		respondWithError(w, h.logger, http.StatusInternalServerError, err, "Failed to clear submissions")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(map[string]any{
		"removed": removed,
	}, "Submission queue cleared"))
}

// SearchSubmissions runs a free-text query over indexed submission metadata.
func (h *SubmissionHandler) SearchSubmissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	text := r.URL.Query().Get("q")
	if text == "" {
		respondWithError(w, h.logger, http.StatusBadRequest,
			errors.New("query parameter q is required"), "Search query is required")
		return
	}

	results, err := h.searchIndexer.Search(ctx, text, 25)
	if err != nil {
		respondWithError(w, h.logger, http.StatusServiceUnavailable, err, "Submission search failed")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, Response{
		Success: true,
		Data:    results,
		Message: "Search results",
		Meta:    &Meta{Total: len(results)},
	})
}

func (h *SubmissionHandler) getStatusCode(err error) int {
	switch {
	case errors.Is(err, queue.ErrSubmissionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidUsername):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
