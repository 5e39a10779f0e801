package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"docverify-service/internal/service"
	"docverify-service/internal/util"
)

// VerifyHandler handles HTTP requests for QR payload generation and scan
// verification.
type VerifyHandler struct {
	verificationService *service.VerificationService
	logger              *zap.Logger
}

func NewVerifyHandler(verificationService *service.VerificationService, logger *zap.Logger) *VerifyHandler {
	return &VerifyHandler{
		verificationService: verificationService,
		logger:              logger,
	}
}

func (h *VerifyHandler) RegisterRoutes(router chi.Router) {
	router.Route("/verify", func(r chi.Router) {
		r.Post("/scan", h.VerifyScan)
		r.Post("/payload", h.GeneratePayload)
	})
}

// scanRequest accepts the scanned string under any of the names client
// builds have used.
type scanRequest struct {
	Raw  string `json:"raw"`
	Data string `json:"data"`
	Text string `json:"text"`
}

func (r scanRequest) value() string {
	if r.Raw != "" {
		return r.Raw
	}
	if r.Data != "" {
		return r.Data
	}
	return r.Text
}

// VerifyScan takes whatever the scanner read and returns a verdict. Garbled
// payloads come back as a failed verdict with HTTP 200; only a queue read
// failure is a server error.
func (h *VerifyHandler) VerifyScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	result, err := h.verificationService.VerifyScan(ctx, req.value())
	if err != nil {
		respondWithError(w, h.logger, http.StatusInternalServerError, err, "Scan verification failed")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(result, "Scan processed"))
	h.logger.Info("Scan verified via HTTP",
		util.String("scan_id", result.ScanID),
		util.String("outcome", string(result.Verdict.Outcome)),
		util.Duration("duration", time.Since(startTime)),
	)
}

type payloadRequest struct {
	Username   string   `json:"username"`
	Attributes []string `json:"attributes"`
}

// GeneratePayload mints a fresh verification payload for a stored record and
// returns the QR-encodable URL carrying it.
func (h *VerifyHandler) GeneratePayload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req payloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if req.Username == "" {
		respondWithError(w, h.logger, http.StatusBadRequest,
			errors.New("username is required"), "Username is required")
		return
	}

	generated, err := h.verificationService.GeneratePayload(ctx, req.Username, req.Attributes)
	if err != nil {
		statusCode := http.StatusInternalServerError
		if errors.Is(err, service.ErrDocumentNotFound) {
			statusCode = http.StatusNotFound
		}
		respondWithError(w, h.logger, statusCode, err, "Failed to generate verification payload")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(generated, "Verification payload generated"))
}
