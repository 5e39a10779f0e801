package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"docverify-service/internal/bucketing"
	"docverify-service/internal/client"
	"docverify-service/internal/util"
)

// ScanEvent is one row in the scan audit table. Events record outcomes only,
// never the scanned identity attributes themselves.
type ScanEvent struct {
	ScanID       string
	Outcome      string
	SubmissionID string
	MatchScore   int
	DurationMs   int64
	At           time.Time
	DateBucket   string
	TimeBucket   int64
}

// Recorder writes scan audit events to ClickHouse. A nil client disables
// auditing without touching the scan path; audit failures are logged and
// swallowed because a down warehouse must never block verification.
type Recorder struct {
	ch      *client.ClickHouseClient
	buckets *bucketing.Manager
	table   string
}

func NewRecorder(ch *client.ClickHouseClient, buckets *bucketing.Manager, table string) *Recorder {
	return &Recorder{ch: ch, buckets: buckets, table: table}
}

func (r *Recorder) Enabled() bool {
	return r != nil && r.ch != nil
}

func (r *Recorder) RecordScan(ctx context.Context, event ScanEvent) {
	if !r.Enabled() {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	event.DateBucket = r.buckets.GetDateBucket()
	event.TimeBucket = r.buckets.GetTimeBucket(3600)

	insertCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := fmt.Sprintf(`
        INSERT INTO %s (scan_id, outcome, submission_id, match_score, duration_ms, at, date_bucket, time_bucket)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, r.table)

	err := r.ch.Exec(insertCtx, query,
		event.ScanID, event.Outcome, event.SubmissionID, event.MatchScore,
		event.DurationMs, event.At, event.DateBucket, event.TimeBucket)
	if err != nil {
		util.Warn("failed to record scan audit event",
			zap.String("scan_id", event.ScanID),
			zap.String("outcome", event.Outcome),
			util.ErrorField(err))
	}
}
