package verify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"docverify-service/internal/models"
	"docverify-service/internal/queue"
)

type MatcherSuite struct {
	suite.Suite
	matcher *Matcher
}

func (s *MatcherSuite) SetupTest() {
	s.matcher = NewMatcher(24 * time.Hour)
}

func TestMatcherSuite(t *testing.T) {
	suite.Run(t, new(MatcherSuite))
}

func storedEntry() queue.Entry {
	return queue.Entry{
		ID:          "sub-1",
		Status:      models.StatusPending,
		SubmittedAt: time.Now().Add(-time.Hour),
		Record: &models.DocumentRecord{
			Username: "ravi",
			Name:     "Ravi Kumar",
			DOB:      "1990-01-15",
			Mobile:   "9876543210",
			Aadhaar:  "1234 5678 9012",
			Address:  "12 MG Road, Bengaluru",
		},
	}
}

func freshPayload() *models.VerificationPayload {
	return &models.VerificationPayload{
		Username:   "ravi",
		Name:       "Ravi Kumar",
		DOB:        "1990-01-15",
		Mobile:     "9876543210",
		Aadhaar:    "1234 5678 9012",
		VerifiedAt: time.Now().Add(-time.Hour).Format(time.RFC3339),
	}
}

func (s *MatcherSuite) TestMatching() {
	s.Run("full agreement verifies", func() {
		verdict := s.matcher.Match(freshPayload(), []queue.Entry{storedEntry()})
		s.Equal(OutcomeVerified, verdict.Outcome)
		s.Equal("sub-1", verdict.SubmissionID)
		s.GreaterOrEqual(verdict.MatchScore, 3)
	})

	s.Run("three of five attributes is enough", func() {
		payload := freshPayload()
		payload.Mobile = "0000000000"
		payload.Aadhaar = ""

		verdict := s.matcher.Match(payload, []queue.Entry{storedEntry()})
		s.Equal(OutcomeVerified, verdict.Outcome)
		s.Equal(3, verdict.MatchScore)
	})

	s.Run("two of five is no match", func() {
		payload := freshPayload()
		payload.Mobile = "0000000000"
		payload.Aadhaar = ""
		payload.Username = "someone-else"

		verdict := s.matcher.Match(payload, []queue.Entry{storedEntry()})
		s.Equal(OutcomeNoMatch, verdict.Outcome)
		s.Empty(verdict.SubmissionID)
	})

	s.Run("name comparison ignores case and spacing", func() {
		payload := freshPayload()
		payload.Name = "  ravi   KUMAR "
		payload.Mobile = ""
		payload.Aadhaar = ""

		verdict := s.matcher.Match(payload, []queue.Entry{storedEntry()})
		s.Equal(OutcomeVerified, verdict.Outcome)
	})

	s.Run("empty queue is no match", func() {
		verdict := s.matcher.Match(freshPayload(), nil)
		s.Equal(OutcomeNoMatch, verdict.Outcome)
	})
}

func (s *MatcherSuite) TestFreshness() {
	s.Run("payload older than the window expires", func() {
		payload := freshPayload()
		payload.VerifiedAt = time.Now().Add(-25 * time.Hour).Format(time.RFC3339)

		verdict := s.matcher.Match(payload, []queue.Entry{storedEntry()})
		s.Equal(OutcomeExpired, verdict.Outcome)
		s.Equal("sub-1", verdict.SubmissionID)
	})

	s.Run("missing timestamp fails rather than passes", func() {
		payload := freshPayload()
		payload.VerifiedAt = ""

		verdict := s.matcher.Match(payload, []queue.Entry{storedEntry()})
		s.Equal(OutcomeFailed, verdict.Outcome)
		s.NotEmpty(verdict.Reason)
	})

	s.Run("unparseable timestamp fails", func() {
		payload := freshPayload()
		payload.VerifiedAt = "yesterday-ish"

		verdict := s.matcher.Match(payload, []queue.Entry{storedEntry()})
		s.Equal(OutcomeFailed, verdict.Outcome)
	})

	s.Run("date-only timestamp within the window is accepted", func() {
		payload := freshPayload()
		payload.VerifiedAt = time.Now().UTC().Format("2006-01-02")

		verdict := s.matcher.Match(payload, []queue.Entry{storedEntry()})
		s.Equal(OutcomeVerified, verdict.Outcome)
	})
}

func (s *MatcherSuite) TestRequestedAttributes() {
	s.Run("only requested attributes appear in the verdict", func() {
		payload := freshPayload()
		payload.VerificationRequested = map[string]bool{"name": true, "mobile": false}

		verdict := s.matcher.Match(payload, []queue.Entry{storedEntry()})
		s.Equal(OutcomeVerified, verdict.Outcome)
		s.Contains(verdict.Attributes, "name")
		s.NotContains(verdict.Attributes, "mobile")
	})

	s.Run("disagreeing requested attribute is a discrepancy", func() {
		payload := freshPayload()
		payload.Mobile = "1112223334"
		payload.VerificationRequested = map[string]bool{"mobile": true}

		verdict := s.matcher.Match(payload, []queue.Entry{storedEntry()})
		s.Equal(OutcomeDiscrepancy, verdict.Outcome)
		s.False(verdict.Attributes["mobile"].Verified)
		s.Equal("1112223334", verdict.Attributes["mobile"].Scanned)
		s.Equal("9876543210", verdict.Attributes["mobile"].Stored)
	})

	s.Run("age check falls back to dob comparison", func() {
		payload := freshPayload()
		payload.Age = "1990-01-15"
		payload.VerificationRequested = map[string]bool{"age": true}

		verdict := s.matcher.Match(payload, []queue.Entry{storedEntry()})
		s.Equal(OutcomeVerified, verdict.Outcome)
		s.True(verdict.Attributes["age"].Verified)
	})

	s.Run("not-applicable dob markers agree", func() {
		entry := storedEntry()
		entry.Record.DOB = "N/A"
		payload := freshPayload()
		payload.DOB = "n/a"
		payload.VerificationRequested = map[string]bool{"dob": true}

		verdict := s.matcher.Match(payload, []queue.Entry{entry})
		s.Equal(OutcomeVerified, verdict.Outcome)
		s.True(verdict.Attributes["dob"].Verified)
	})
}

func (s *MatcherSuite) TestHostileInput() {
	s.Run("nil payload fails cleanly", func() {
		verdict := s.matcher.Match(nil, []queue.Entry{storedEntry()})
		s.Equal(OutcomeFailed, verdict.Outcome)
	})

	s.Run("entry without a record is skipped", func() {
		entries := []queue.Entry{{ID: "empty"}, storedEntry()}
		verdict := s.matcher.Match(freshPayload(), entries)
		s.Equal(OutcomeVerified, verdict.Outcome)
		s.Equal("sub-1", verdict.SubmissionID)
	})
}
