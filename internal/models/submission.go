package models

import (
	"fmt"
	"time"
)

// Status is the review state of a queued submission. The storage layer does
// not enforce transitions; monotonic pending -> verified/rejected is a UI
// level convention only.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusRejected:
		return true
	}
	return false
}

// ParseStatus validates a wire value against the closed status set.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("invalid submission status %q", raw)
	}
	return s, nil
}

// Submission is the stored form of a queued document submission. The payload
// itself lives only inside EncryptedData.
type Submission struct {
	ID            string    `json:"id"`
	EncryptedData string    `json:"encryptedData"`
	Status        Status    `json:"status"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// ToDoc renders the submission as a store document.
func (s *Submission) ToDoc() map[string]any {
	return map[string]any{
		"id":            s.ID,
		"encryptedData": s.EncryptedData,
		"status":        string(s.Status),
		"submittedAt":   s.SubmittedAt.UTC().Format(time.RFC3339Nano),
	}
}

// SubmissionFromDoc rebuilds a submission from a store document.
func SubmissionFromDoc(doc map[string]any) (*Submission, error) {
	sub := &Submission{}

	id, ok := doc["id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("submission document missing id")
	}
	sub.ID = id

	if blob, ok := doc["encryptedData"].(string); ok {
		sub.EncryptedData = blob
	}

	if raw, ok := doc["status"].(string); ok {
		status, err := ParseStatus(raw)
		if err != nil {
			return nil, err
		}
		sub.Status = status
	} else {
		sub.Status = StatusPending
	}

	if raw, ok := doc["submittedAt"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			sub.SubmittedAt = ts
		}
	}

	return sub, nil
}
