package verify

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"docverify-service/internal/models"
	"docverify-service/internal/queue"
	"docverify-service/internal/util"
)

// Outcome classifies a scan verification attempt.
type Outcome string

const (
	OutcomeVerified    Outcome = "verified"
	OutcomeDiscrepancy Outcome = "discrepancy"
	OutcomeExpired     Outcome = "expired"
	OutcomeNoMatch     Outcome = "no_match"
	OutcomeFailed      Outcome = "failed"
)

// matchThreshold is the number of identity attributes that must agree before
// a stored submission is considered the same person as the scanned payload.
const matchThreshold = 3

// AttributeResult reports one requested attribute check against the matched
// submission.
type AttributeResult struct {
	Verified bool   `json:"verified"`
	Scanned  string `json:"scanned"`
	Stored   string `json:"stored"`
}

// Verdict is the full result of matching a scanned payload against the
// submission queue.
type Verdict struct {
	Outcome      Outcome                    `json:"outcome"`
	SubmissionID string                     `json:"submissionId,omitempty"`
	MatchScore   int                        `json:"matchScore"`
	Attributes   map[string]AttributeResult `json:"attributes,omitempty"`
	Reason       string                     `json:"reason,omitempty"`
}

// Matcher compares scanned payloads against stored submissions.
type Matcher struct {
	window time.Duration
}

func NewMatcher(freshnessWindow time.Duration) *Matcher {
	if freshnessWindow <= 0 {
		freshnessWindow = 24 * time.Hour
	}
	return &Matcher{window: freshnessWindow}
}

// Match finds the submission the payload belongs to and checks freshness and
// the requested attributes. It never panics: any internal fault is converted
// to a failed verdict so a hostile payload cannot take the endpoint down.
func (m *Matcher) Match(payload *models.VerificationPayload, entries []queue.Entry) (verdict *Verdict) {
	defer func() {
		if r := recover(); r != nil {
			util.Error("verification matcher panic", zap.Any("panic", r))
			verdict = &Verdict{
				Outcome: OutcomeFailed,
				Reason:  "internal error while matching payload",
			}
		}
	}()

	if payload == nil {
		return &Verdict{Outcome: OutcomeFailed, Reason: "no payload to match"}
	}

	entry, score := m.findMatch(payload, entries)
	if entry == nil {
		return &Verdict{
			Outcome:    OutcomeNoMatch,
			MatchScore: score,
			Reason:     "no stored submission matches the scanned identity",
		}
	}

	verdict = &Verdict{SubmissionID: entry.ID, MatchScore: score}

	verifiedAt, reason := parseVerifiedAt(payload.VerifiedAt)
	if reason != "" {
		verdict.Outcome = OutcomeFailed
		verdict.Reason = reason
		return verdict
	}
	if age := time.Since(verifiedAt); age > m.window {
		verdict.Outcome = OutcomeExpired
		verdict.Reason = fmt.Sprintf("payload verified %s ago, window is %s",
			age.Round(time.Minute), m.window)
		return verdict
	}

	verdict.Attributes = m.checkAttributes(payload, entry.Record)
	for _, result := range verdict.Attributes {
		if !result.Verified {
			verdict.Outcome = OutcomeDiscrepancy
			verdict.Reason = "one or more requested attributes disagree with the stored record"
			return verdict
		}
	}

	verdict.Outcome = OutcomeVerified
	return verdict
}

// findMatch returns the first entry agreeing with the payload on at least
// matchThreshold of the five identity attributes, along with the best score
// seen so far for diagnostics.
func (m *Matcher) findMatch(payload *models.VerificationPayload, entries []queue.Entry) (*queue.Entry, int) {
	best := 0
	for i := range entries {
		record := entries[i].Record
		if record == nil {
			continue
		}
		score := 0
		if namesEqual(payload.Name, record.Name) {
			score++
		}
		if dobEqual(payload.DOB, record.DOB) {
			score++
		}
		if exactEqual(payload.Aadhaar, record.Aadhaar) {
			score++
		}
		if exactEqual(payload.Mobile, record.Mobile) {
			score++
		}
		if exactEqual(payload.Username, record.Username) {
			score++
		}
		if score >= matchThreshold {
			return &entries[i], score
		}
		if score > best {
			best = score
		}
	}
	return nil, best
}

func (m *Matcher) checkAttributes(payload *models.VerificationPayload, record *models.DocumentRecord) map[string]AttributeResult {
	results := make(map[string]AttributeResult)
	for attr, requested := range payload.VerificationRequested {
		if !requested {
			continue
		}
		var scanned, stored string
		var ok bool
		switch strings.ToLower(strings.TrimSpace(attr)) {
		case "name":
			scanned, stored = payload.Name, record.Name
			ok = namesEqual(scanned, stored)
		case "dob":
			scanned, stored = payload.DOB, record.DOB
			ok = dobEqual(scanned, stored)
		case "age":
			// Age travels as either a precomputed value or the raw DOB; the
			// stored side only ever has the DOB, so compare on that.
			scanned = payload.Age
			if scanned == "" {
				scanned = payload.DOB
			}
			stored = record.DOB
			ok = dobEqual(scanned, stored)
		case "mobile":
			scanned, stored = payload.Mobile, record.Mobile
			ok = exactEqual(scanned, stored)
		case "aadhaar", "aadhar":
			scanned, stored = payload.Aadhaar, record.Aadhaar
			ok = exactEqual(scanned, stored)
		case "address":
			scanned, stored = payload.Address, record.Address
			ok = namesEqual(scanned, stored)
		default:
			continue
		}
		results[attr] = AttributeResult{Verified: ok, Scanned: scanned, Stored: stored}
	}
	return results
}

// parseVerifiedAt accepts the timestamp formats payload generators have been
// seen to emit. A missing or unreadable timestamp is a hard failure, not a
// pass: a payload whose freshness cannot be established must not verify.
func parseVerifiedAt(value string) (time.Time, string) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, "payload carries no verification timestamp"
	}
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, format := range formats {
		if ts, err := time.Parse(format, trimmed); err == nil {
			return ts, ""
		}
	}
	return time.Time{}, fmt.Sprintf("unparseable verification timestamp %q", trimmed)
}

func namesEqual(a, b string) bool {
	return strings.EqualFold(collapse(a), collapse(b)) && collapse(a) != ""
}

// dobEqual treats two "not applicable" markers as agreement; some document
// types legitimately carry no date of birth.
func dobEqual(a, b string) bool {
	na := func(s string) bool {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "", "n/a", "na", "not applicable":
			return true
		}
		return false
	}
	if na(a) && na(b) {
		return true
	}
	return exactEqual(a, b)
}

func exactEqual(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && a == b
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
