package store

// collaborators.go creates collaborators for one import batch.
//
// The whole batch runs in a single transaction. Each record is inserted
// behind its own savepoint: PostgreSQL aborts the transaction on any error,
// so a rejected record is rolled back to its savepoint and the remaining
// records continue. Constraint violations become per-record results; any
// other database error fails the whole batch and nothing is committed.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/collabimport/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes handled per record.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Messages returned to the operator for rejected records.
const (
	MsgEmailTaken     = "Email already registered"
	MsgTaxIDTaken     = "Tax ID already registered"
	MsgDuplicate      = "Collaborator already registered"
	MsgStaleReference = "Company, department or position no longer exists"
)

// WelcomeTemplate is the outbox template queued for every new collaborator.
const WelcomeTemplate = "collaborator_welcome"

// EmailQueued is the delivery status reported once a welcome email is queued.
const EmailQueued = "queued"

const insertCollaboratorSQL = `INSERT INTO collaborators
	(name, email, tax_id, company_id, department_id, position_id)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id`

const insertOutboxSQL = `INSERT INTO email_outbox (collaborator_id, recipient, template)
	VALUES ($1, $2, $3)`

// CollaboratorRepository implements core.RecordSubmitter on PostgreSQL.
type CollaboratorRepository struct {
	db TxBeginner
}

// NewCollaboratorRepository creates a repository over db.
func NewCollaboratorRepository(db TxBeginner) *CollaboratorRepository {
	return &CollaboratorRepository{db: db}
}

var _ core.RecordSubmitter = (*CollaboratorRepository)(nil)

// SubmitBatch inserts every record and returns one result per record,
// in input order. A returned error means nothing was committed.
func (r *CollaboratorRepository) SubmitBatch(ctx context.Context, records []core.ResolvedPayload) ([]core.SubmissionResult, error) {
	if len(records) == 0 {
		return []core.SubmissionResult{}, nil
	}

	start := time.Now()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, &core.SubmissionError{Err: fmt.Errorf("begin transaction: %w", err)}
	}
	defer tx.Rollback(ctx) // No-op if already committed

	results := make([]core.SubmissionResult, len(records))
	for i, rec := range records {
		res, err := insertRecord(ctx, tx, i, rec)
		if err != nil {
			return nil, &core.SubmissionError{Err: err}
		}
		results[i] = res
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &core.SubmissionError{Err: fmt.Errorf("commit: %w", err)}
	}

	created := 0
	for _, res := range results {
		if res.Status == core.ResultSuccess {
			created++
		}
	}
	slog.Info("collaborator batch committed",
		"records", len(records),
		"created", created,
		"rejected", len(records)-created,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return results, nil
}

// insertRecord inserts one collaborator and queues its welcome email.
// It returns an error only for failures that must abort the batch.
func insertRecord(ctx context.Context, tx pgx.Tx, i int, rec core.ResolvedPayload) (core.SubmissionResult, error) {
	savepoint := fmt.Sprintf("sp_%d", i)
	if _, err := tx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
		return core.SubmissionResult{}, fmt.Errorf("create savepoint for record %d: %w", i, err)
	}

	var id int64
	err := tx.QueryRow(ctx, insertCollaboratorSQL,
		rec.Name, rec.Email, rec.TaxID, rec.CompanyID, rec.DepartmentID, rec.PositionID,
	).Scan(&id)
	if err == nil {
		_, err = tx.Exec(ctx, insertOutboxSQL, id, rec.Email, WelcomeTemplate)
	}

	if err != nil {
		status, msg, perRecord := classifyInsertError(err)
		if !perRecord {
			return core.SubmissionResult{}, fmt.Errorf("insert record %d: %w", i, err)
		}
		// Rollback to savepoint to recover transaction state
		if _, rbErr := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
			return core.SubmissionResult{}, fmt.Errorf("rollback savepoint for record %d: %w", i, rbErr)
		}
		return core.SubmissionResult{Name: rec.Name, Status: status, Error: msg}, nil
	}

	if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
		return core.SubmissionResult{}, fmt.Errorf("release savepoint for record %d: %w", i, err)
	}

	return core.SubmissionResult{
		Name:                rec.Name,
		Status:              core.ResultSuccess,
		EmailDeliveryStatus: EmailQueued,
	}, nil
}

// classifyInsertError maps constraint violations to a per-record result.
// perRecord is false for errors that should fail the whole batch.
func classifyInsertError(err error) (status, msg string, perRecord bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", "", false
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		switch pgErr.ConstraintName {
		case "collaborators_email_key":
			return core.ResultDuplicate, MsgEmailTaken, true
		case "collaborators_tax_id_key":
			return core.ResultDuplicate, MsgTaxIDTaken, true
		default:
			return core.ResultDuplicate, MsgDuplicate, true
		}
	case pgForeignKeyViolation:
		return core.ResultError, MsgStaleReference, true
	}

	// Other data errors (class 22, e.g. value too long) only affect this record.
	if len(pgErr.Code) == 5 && pgErr.Code[:2] == "22" {
		return core.ResultError, pgErr.Message, true
	}
	return "", "", false
}
