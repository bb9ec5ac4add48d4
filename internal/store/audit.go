package store

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/JonMunkholm/collabimport/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// DefaultAuditPageSize is used when a query does not set a limit.
const DefaultAuditPageSize = 50

// AuditRepository persists one row per import attempt.
// It implements core.AuditSink.
type AuditRepository struct {
	db DBTX
}

// NewAuditRepository creates a repository over db.
func NewAuditRepository(db DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

var _ core.AuditSink = (*AuditRepository)(nil)

const insertAuditSQL = `INSERT INTO import_audit (
	id, session_id, operator, ip_address, user_agent, file_name, format,
	outcome, severity, total_rows, resolved_rows, failed_rows, success_rows,
	error_code, error_message, started_at, finished_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

// RecordImport stores an audit entry.
func (a *AuditRepository) RecordImport(ctx context.Context, e core.ImportAuditEntry) error {
	_, err := a.db.Exec(ctx, insertAuditSQL,
		toPgUUID(e.ID),
		toPgUUID(e.SessionID),
		e.Operator,
		parseIPAddress(e.IPAddress),
		toPgText(e.UserAgent),
		e.FileName,
		toPgText(string(e.Format)),
		string(e.Outcome),
		string(e.Severity),
		e.Total,
		e.Resolved,
		e.Failed,
		e.Succeeded,
		toPgText(e.ErrorCode),
		toPgText(e.ErrorMessage),
		e.StartedAt,
		toPgTimestamptz(e.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert import audit: %w", err)
	}
	return nil
}

// AuditQuery filters and paginates ListImports.
type AuditQuery struct {
	Operator  string
	Outcome   core.AuditOutcome
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

// AuditPage is one page of audit entries, newest first.
type AuditPage struct {
	Entries    []core.ImportAuditEntry `json:"entries"`
	TotalCount int64                   `json:"totalCount"`
	Page       int                     `json:"page"`
	PageSize   int                     `json:"pageSize"`
	TotalPages int                     `json:"totalPages"`
}

// ListImports returns audit entries matching q.
func (a *AuditRepository) ListImports(ctx context.Context, q AuditQuery) (*AuditPage, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultAuditPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	wb := newWhereBuilder()
	wb.Add("operator", q.Operator)
	wb.Add("outcome", string(q.Outcome))

	startTime := q.StartTime
	if startTime.IsZero() {
		startTime = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	endTime := q.EndTime
	if endTime.IsZero() {
		endTime = time.Now().Add(24 * time.Hour)
	}
	wb.AddTimestampRange("created_at", startTime, endTime)

	whereClause, args := wb.Build()

	var totalCount int64
	if err := a.db.QueryRow(ctx, "SELECT COUNT(*) FROM import_audit"+whereClause, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("count import audit: %w", err)
	}

	query := `SELECT id, session_id, operator, ip_address, user_agent, file_name, format,
		outcome, severity, total_rows, resolved_rows, failed_rows, success_rows,
		error_code, error_message, started_at, finished_at
		FROM import_audit` + whereClause +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", wb.NextArgIndex(), wb.NextArgIndex()+1)
	args = append(args, q.Limit, q.Offset)

	rows, err := a.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query import audit: %w", err)
	}
	defer rows.Close()

	entries := make([]core.ImportAuditEntry, 0)
	for rows.Next() {
		e, err := scanAuditRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read import audit: %w", err)
	}

	totalPages := int((totalCount + int64(q.Limit) - 1) / int64(q.Limit))
	if totalPages < 1 {
		totalPages = 1
	}

	return &AuditPage{
		Entries:    entries,
		TotalCount: totalCount,
		Page:       q.Offset/q.Limit + 1,
		PageSize:   q.Limit,
		TotalPages: totalPages,
	}, nil
}

func scanAuditRow(rows pgx.Rows) (core.ImportAuditEntry, error) {
	var (
		e                           core.ImportAuditEntry
		id, sessionID               pgtype.UUID
		ip                          *netip.Addr
		userAgent, format           pgtype.Text
		outcome, severity           string
		errorCode, errorMessage     pgtype.Text
		finishedAt                  pgtype.Timestamptz
		total, resolved, failed, ok int32
	)

	err := rows.Scan(
		&id, &sessionID, &e.Operator, &ip, &userAgent, &e.FileName, &format,
		&outcome, &severity, &total, &resolved, &failed, &ok,
		&errorCode, &errorMessage, &e.StartedAt, &finishedAt,
	)
	if err != nil {
		return e, fmt.Errorf("scan import audit: %w", err)
	}

	e.ID = pgUUIDToString(id)
	e.SessionID = pgUUIDToString(sessionID)
	if ip != nil {
		e.IPAddress = ip.String()
	}
	e.UserAgent = userAgent.String
	e.Format = core.FileFormat(format.String)
	e.Outcome = core.AuditOutcome(outcome)
	e.Severity = core.AuditSeverity(severity)
	e.Total = int(total)
	e.Resolved = int(resolved)
	e.Failed = int(failed)
	e.Succeeded = int(ok)
	e.ErrorCode = errorCode.String
	e.ErrorMessage = errorMessage.String
	if finishedAt.Valid {
		e.FinishedAt = finishedAt.Time
	}
	return e, nil
}
