package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docverify-service/internal/audit"
	"docverify-service/internal/config"
	"docverify-service/internal/models"
	"docverify-service/internal/qr"
	"docverify-service/internal/queue"
	"docverify-service/internal/util"
	"docverify-service/internal/verify"
)

// ScanResult is the response for one scan attempt. Parse failures are part
// of the result rather than transport errors; a garbled QR code is a normal
// operational event, not a server fault.
type ScanResult struct {
	ScanID  string                      `json:"scanId"`
	Verdict *verify.Verdict             `json:"verdict"`
	Payload *models.VerificationPayload `json:"payload,omitempty"`
}

// GeneratedPayload is a freshly minted verification payload plus the
// shareable URL encoding it.
type GeneratedPayload struct {
	Payload *models.VerificationPayload `json:"payload"`
	URL     string                      `json:"url"`
}

// VerificationService ties QR parsing, queue matching, and scan auditing
// together.
type VerificationService struct {
	queue    *queue.Queue
	matcher  *verify.Matcher
	recorder *audit.Recorder
	docs     *DocumentService
	config   *config.Config
}

func NewVerificationService(q *queue.Queue, matcher *verify.Matcher, recorder *audit.Recorder, docs *DocumentService, cfg *config.Config) *VerificationService {
	return &VerificationService{
		queue:    q,
		matcher:  matcher,
		recorder: recorder,
		docs:     docs,
		config:   cfg,
	}
}

// VerifyScan processes raw scanner output end to end: parse, match against
// the queue, promote the matched submission on success, and audit the
// outcome. It only returns an error when the queue itself cannot be read.
func (s *VerificationService) VerifyScan(ctx context.Context, raw string) (*ScanResult, error) {
	start := time.Now()
	result := &ScanResult{ScanID: uuid.New().String()}

	payload, err := qr.Parse(raw)
	if err != nil {
		result.Verdict = &verify.Verdict{
			Outcome: verify.OutcomeFailed,
			Reason:  parseFailureReason(err),
		}
		s.record(ctx, result, start)
		return result, nil
	}
	result.Payload = payload

	snapshot, err := s.queue.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load submission queue: %w", err)
	}
	if snapshot.Dropped > 0 {
		util.Warn("scan matching against partial queue",
			zap.Int("dropped", snapshot.Dropped))
	}

	result.Verdict = s.matcher.Match(payload, snapshot.Entries)

	if result.Verdict.Outcome == verify.OutcomeVerified && result.Verdict.SubmissionID != "" {
		if err := s.queue.UpdateStatus(ctx, result.Verdict.SubmissionID, models.StatusVerified); err != nil {
			util.Warn("failed to promote verified submission",
				zap.String("submission_id", result.Verdict.SubmissionID),
				util.ErrorField(err))
		}
	}

	s.record(ctx, result, start)
	return result, nil
}

// GeneratePayload builds a verification payload for a stored record plus the
// QR-encodable URL carrying it.
func (s *VerificationService) GeneratePayload(ctx context.Context, username string, attributes []string) (*GeneratedPayload, error) {
	record, err := s.docs.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	requested := make(map[string]bool, len(attributes))
	for _, attr := range attributes {
		attr = strings.TrimSpace(strings.ToLower(attr))
		if attr != "" {
			requested[attr] = true
		}
	}

	payload := &models.VerificationPayload{
		DocType:               record.DocumentType,
		VerifiedAt:            time.Now().UTC().Format(time.RFC3339),
		Username:              record.Username,
		Name:                  record.Name,
		DOB:                   record.DOB,
		Mobile:                record.Mobile,
		Aadhaar:               record.Aadhaar,
		Address:               record.Address,
		VerificationRequested: requested,
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode verification payload: %w", err)
	}

	base := s.config.Verify.PayloadBaseURL
	shareURL := fmt.Sprintf("%s?data=%s", base, url.QueryEscape(string(encoded)))

	return &GeneratedPayload{Payload: payload, URL: shareURL}, nil
}

func (s *VerificationService) record(ctx context.Context, result *ScanResult, start time.Time) {
	s.recorder.RecordScan(ctx, audit.ScanEvent{
		ScanID:       result.ScanID,
		Outcome:      string(result.Verdict.Outcome),
		SubmissionID: result.Verdict.SubmissionID,
		MatchScore:   result.Verdict.MatchScore,
		DurationMs:   time.Since(start).Milliseconds(),
	})
}

func parseFailureReason(err error) string {
	switch {
	case errors.Is(err, qr.ErrMissingPayload):
		return "scanned code carries no verification payload"
	case errors.Is(err, qr.ErrMalformedJSON):
		return "scanned payload is not valid JSON"
	default:
		return "scanned payload could not be decoded"
	}
}
