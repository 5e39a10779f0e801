package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"docverify-service/internal/service"
	"docverify-service/internal/util"
)

// maxUploadSize caps document image uploads at 16 MB, matching the OCR
// backend's own limit.
const maxUploadSize = 16 << 20

// DocumentHandler handles HTTP requests for document upload and retrieval.
type DocumentHandler struct {
	documentService *service.DocumentService
	logger          *zap.Logger
}

func NewDocumentHandler(documentService *service.DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		logger:          logger,
	}
}

func (h *DocumentHandler) RegisterRoutes(router chi.Router) {
	router.Route("/documents", func(r chi.Router) {
		r.Post("/extract", h.ExtractDocument)
		r.Get("/{username}", h.GetDocument)
		r.Delete("/{username}", h.DeleteDocument)
	})
}

// ExtractDocument accepts a multipart ID image upload, runs OCR extraction,
// and stores the resulting record under the given username.
func (h *DocumentHandler) ExtractDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid multipart upload")
		return
	}

	username := r.FormValue("username")
	if username == "" {
		respondWithError(w, h.logger, http.StatusBadRequest,
			errors.New("username is required"), "Username is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Document image is required")
		return
	}
	defer file.Close()

	record, err := h.documentService.ExtractAndSave(ctx, username, header.Filename, file)
	if err != nil {
		respondWithError(w, h.logger, h.getStatusCode(err), err, "Document extraction failed")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(record, "Document extracted successfully"))
	h.logger.Info("Document extracted via HTTP",
		util.String("username", username),
		util.String("document_type", record.DocumentType),
		util.Duration("duration", time.Since(startTime)),
	)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	username := chi.URLParam(r, "username")
	record, err := h.documentService.GetByUsername(ctx, username)
	if err != nil {
		respondWithError(w, h.logger, h.getStatusCode(err), err, "Failed to get document record")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(record, "Document record retrieved"))
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	username := chi.URLParam(r, "username")
	if err := h.documentService.Delete(ctx, username); err != nil {
		respondWithError(w, h.logger, h.getStatusCode(err), err, "Failed to delete document record")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(nil, "Document record deleted"))
	h.logger.Info("Document record deleted via HTTP", util.String("username", username))
}

func (h *DocumentHandler) getStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidUsername):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
