package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// AuditOutcome summarizes how an import attempt ended.
type AuditOutcome string

const (
	AuditCompleted AuditOutcome = "completed" // batch submitted, every row succeeded
	AuditPartial   AuditOutcome = "partial"   // batch submitted, some rows failed
	AuditRejected  AuditOutcome = "rejected"  // nothing submitted (file or validation errors)
	AuditFailed    AuditOutcome = "failed"    // reference lookup or whole-batch failure
	AuditDryRun    AuditOutcome = "dry_run"   // validated without submitting
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// ImportAuditEntry is the durable record of one import attempt.
type ImportAuditEntry struct {
	ID           string        `json:"id"`
	SessionID    string        `json:"sessionId"`
	Operator     string        `json:"operator"`
	IPAddress    string        `json:"ipAddress,omitempty"`
	UserAgent    string        `json:"userAgent,omitempty"`
	FileName     string        `json:"fileName"`
	Format       FileFormat    `json:"format,omitempty"`
	Outcome      AuditOutcome  `json:"outcome"`
	Severity     AuditSeverity `json:"severity"`
	Total        int           `json:"total"`
	Resolved     int           `json:"resolved"`
	Failed       int           `json:"failed"`
	Succeeded    int           `json:"succeeded"`
	ErrorCode    string        `json:"errorCode,omitempty"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	StartedAt    time.Time     `json:"startedAt"`
	FinishedAt   time.Time     `json:"finishedAt"`
}

// AuditSink persists import audit entries.
type AuditSink interface {
	RecordImport(ctx context.Context, entry ImportAuditEntry) error
}

// NewImportAuditEntry builds the audit record for a finished session.
// Request metadata (IP address, User-Agent) is read from ctx.
func NewImportAuditEntry(ctx context.Context, sess *ImportSession) ImportAuditEntry {
	c := sess.Counts()
	outcome := determineOutcome(sess)

	entry := ImportAuditEntry{
		ID:         uuid.New().String(),
		SessionID:  sess.ID,
		Operator:   sess.Operator,
		IPAddress:  GetIPAddressFromContext(ctx),
		UserAgent:  GetUserAgentFromContext(ctx),
		FileName:   sess.FileName,
		Format:     sess.Format,
		Outcome:    outcome,
		Severity:   determineSeverity(outcome),
		Total:      c.Total,
		Resolved:   c.Resolved,
		Failed:     c.Failed,
		Succeeded:  c.Succeeded,
		StartedAt:  sess.StartedAt,
		FinishedAt: sess.FinishedAt,
	}
	if sess.Err != nil {
		entry.ErrorCode = MapError(sess.Err).Code
		entry.ErrorMessage = sess.Err.Error()
	}
	return entry
}

func determineOutcome(sess *ImportSession) AuditOutcome {
	var refErr *ReferenceLookupError
	switch {
	case sess.Err != nil && (sess.Submitted || errors.As(sess.Err, &refErr)):
		return AuditFailed
	case sess.Err != nil:
		return AuditRejected
	case !sess.Submitted:
		return AuditDryRun
	case sess.HasDefects():
		return AuditPartial
	default:
		return AuditCompleted
	}
}

// determineSeverity returns the severity for an outcome.
func determineSeverity(outcome AuditOutcome) AuditSeverity {
	switch outcome {
	case AuditFailed:
		return SeverityHigh
	case AuditPartial, AuditRejected:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
