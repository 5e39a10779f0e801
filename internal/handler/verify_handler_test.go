package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"docverify-service/internal/codec"
	"docverify-service/internal/config"
	"docverify-service/internal/models"
	"docverify-service/internal/queue"
	"docverify-service/internal/service"
	"docverify-service/internal/store"
	"docverify-service/internal/verify"
)

type VerifyHandlerSuite struct {
	suite.Suite
	router chi.Router
	queue  *queue.Queue
	store  *store.LocalStore
	ctx    context.Context
}

func (s *VerifyHandlerSuite) SetupTest() {
	cfg := &config.Config{
		Codec: config.CodecConfig{Passphrase: "handler-test-passphrase"},
		Store: config.StoreConfig{
			Namespace: "testns",
			LocalDir:  s.T().TempDir(),
		},
		Verify: config.VerifyConfig{
			FreshnessWindow: 24 * time.Hour,
			PayloadBaseURL:  "https://verify.example.com/scan",
		},
	}

	localStore, err := store.NewLocalStore(cfg)
	s.Require().NoError(err)
	s.store = localStore
	s.queue = queue.NewQueue(localStore, codec.NewCodec(cfg, nil), nil, nil, "test.submissions")

	docs := service.NewDocumentService(localStore, nil)
	matcher := verify.NewMatcher(cfg.Verify.FreshnessWindow)
	verification := service.NewVerificationService(s.queue, matcher, nil, docs, cfg)

	logger := zap.NewNop()
	s.router = chi.NewRouter()
	s.router.Route("/api/v1", func(r chi.Router) {
		NewVerifyHandler(verification, logger).RegisterRoutes(r)
	})
	s.ctx = context.Background()
}

func TestVerifyHandlerSuite(t *testing.T) {
	suite.Run(t, new(VerifyHandlerSuite))
}

func (s *VerifyHandlerSuite) enqueue(username string) {
	_, err := s.queue.Add(s.ctx, &models.DocumentRecord{
		Username: username,
		Name:     "Ravi Kumar",
		DOB:      "1990-01-15",
		Aadhaar:  "1234 5678 9012",
	})
	s.Require().NoError(err)
}

func (s *VerifyHandlerSuite) postJSON(path string, body any) (*httptest.ResponseRecorder, Response) {
	encoded, err := json.Marshal(body)
	s.Require().NoError(err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp Response
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	return rec, resp
}

func (s *VerifyHandlerSuite) TestScan() {
	s.enqueue("ravi")

	s.Run("matching payload verifies and promotes the submission", func() {
		raw, err := json.Marshal(models.VerificationPayload{
			Username:   "ravi",
			Name:       "Ravi Kumar",
			DOB:        "1990-01-15",
			VerifiedAt: time.Now().Format(time.RFC3339),
		})
		s.Require().NoError(err)

		rec, resp := s.postJSON("/api/v1/verify/scan", map[string]string{"raw": string(raw)})
		s.Equal(http.StatusOK, rec.Code)
		s.True(resp.Success)

		data, err := json.Marshal(resp.Data)
		s.Require().NoError(err)
		var result service.ScanResult
		s.Require().NoError(json.Unmarshal(data, &result))
		s.Equal(verify.OutcomeVerified, result.Verdict.Outcome)

		snapshot, err := s.queue.GetAll(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(snapshot.Entries, 1)
		s.Equal(models.StatusVerified, snapshot.Entries[0].Status)
	})

	s.Run("garbled payload is a failed verdict, not a server error", func() {
		rec, resp := s.postJSON("/api/v1/verify/scan", map[string]string{"raw": "### not a payload ###"})
		s.Equal(http.StatusOK, rec.Code)
		s.True(resp.Success)

		data, err := json.Marshal(resp.Data)
		s.Require().NoError(err)
		var result service.ScanResult
		s.Require().NoError(json.Unmarshal(data, &result))
		s.Equal(verify.OutcomeFailed, result.Verdict.Outcome)
	})

	s.Run("unknown identity is no match", func() {
		raw, err := json.Marshal(models.VerificationPayload{
			Username:   "stranger",
			Name:       "Nobody",
			VerifiedAt: time.Now().Format(time.RFC3339),
		})
		s.Require().NoError(err)

		rec, resp := s.postJSON("/api/v1/verify/scan", map[string]string{"raw": string(raw)})
		s.Equal(http.StatusOK, rec.Code)

		data, err := json.Marshal(resp.Data)
		s.Require().NoError(err)
		var result service.ScanResult
		s.Require().NoError(json.Unmarshal(data, &result))
		s.Equal(verify.OutcomeNoMatch, result.Verdict.Outcome)
	})
}

func (s *VerifyHandlerSuite) TestGeneratePayload() {
	_, err := s.store.InsertOne(s.ctx, "documents", store.Document{
		"username": "ravi",
		"name":     "Ravi Kumar",
		"dob":      "1990-01-15",
	})
	s.Require().NoError(err)

	s.Run("generates a payload url for a stored record", func() {
		rec, resp := s.postJSON("/api/v1/verify/payload", map[string]any{
			"username":   "ravi",
			"attributes": []string{"name", "dob"},
		})
		s.Equal(http.StatusOK, rec.Code)
		s.True(resp.Success)

		data, err := json.Marshal(resp.Data)
		s.Require().NoError(err)
		var generated service.GeneratedPayload
		s.Require().NoError(json.Unmarshal(data, &generated))

		s.Equal("ravi", generated.Payload.Username)
		s.True(generated.Payload.VerificationRequested["name"])
		s.Contains(generated.URL, "https://verify.example.com/scan?data=")

		// The generated URL must round-trip through the scan endpoint.
		s.enqueue("ravi")
		scanRec, scanResp := s.postJSON("/api/v1/verify/scan", map[string]string{"raw": generated.URL})
		s.Equal(http.StatusOK, scanRec.Code)

		scanData, err := json.Marshal(scanResp.Data)
		s.Require().NoError(err)
		var result service.ScanResult
		s.Require().NoError(json.Unmarshal(scanData, &result))
		s.Equal(verify.OutcomeVerified, result.Verdict.Outcome)
	})

	s.Run("unknown username is 404", func() {
		rec, resp := s.postJSON("/api/v1/verify/payload", map[string]any{"username": "nobody"})
		s.Equal(http.StatusNotFound, rec.Code)
		s.False(resp.Success)
	})
}
