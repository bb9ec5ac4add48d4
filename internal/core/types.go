// Package core provides the business logic for bulk collaborator imports.
// This package has no UI dependencies and can be used by any frontend.
package core

import (
	"context"
	"strings"
	"time"
)

// CanonicalField identifies one of the six fields every collaborator record needs.
type CanonicalField int

const (
	FieldName CanonicalField = iota
	FieldEmail
	FieldTaxID
	FieldCompany
	FieldDepartment
	FieldPosition
)

// CanonicalFields lists the canonical fields in report column order.
var CanonicalFields = []CanonicalField{
	FieldName,
	FieldEmail,
	FieldTaxID,
	FieldCompany,
	FieldDepartment,
	FieldPosition,
}

// Label returns the display name used in reasons and report headers.
func (f CanonicalField) Label() string {
	switch f {
	case FieldName:
		return "Name"
	case FieldEmail:
		return "Email"
	case FieldTaxID:
		return "Tax ID"
	case FieldCompany:
		return "Company"
	case FieldDepartment:
		return "Department"
	case FieldPosition:
		return "Position"
	default:
		return "Unknown"
	}
}

// Cell is one header/value pair of a parsed row.
type Cell struct {
	Header string `json:"header"`
	Value  string `json:"value"`
}

// RawRow is a data row as read from the file, before any interpretation.
// Line is the 1-based physical line (or sheet row) where the header is line 1.
// Cells keep the file's column order; blank cells hold "".
type RawRow struct {
	Line  int    `json:"line"`
	Cells []Cell `json:"cells"`
}

// Value returns the value for header (case-insensitive, trimmed match).
func (r RawRow) Value(header string) (string, bool) {
	want := strings.ToLower(strings.TrimSpace(header))
	for _, c := range r.Cells {
		if strings.ToLower(strings.TrimSpace(c.Header)) == want {
			return c.Value, true
		}
	}
	return "", false
}

// Headers returns the header names in column order.
func (r RawRow) Headers() []string {
	headers := make([]string, len(r.Cells))
	for i, c := range r.Cells {
		headers[i] = c.Header
	}
	return headers
}

// NormalizedRow holds the canonical view of a RawRow.
// Values are trimmed; columns without a canonical mapping are kept in Extra.
type NormalizedRow struct {
	Line       int    `json:"line"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	TaxID      string `json:"taxId"`
	Company    string `json:"company"`
	Department string `json:"department"`
	Position   string `json:"position"`
	Extra      []Cell `json:"extra,omitempty"`
}

// Get returns the value of a canonical field.
func (n NormalizedRow) Get(f CanonicalField) string {
	switch f {
	case FieldName:
		return n.Name
	case FieldEmail:
		return n.Email
	case FieldTaxID:
		return n.TaxID
	case FieldCompany:
		return n.Company
	case FieldDepartment:
		return n.Department
	case FieldPosition:
		return n.Position
	}
	return ""
}

// set assigns a canonical field.
func (n *NormalizedRow) set(f CanonicalField, v string) {
	switch f {
	case FieldName:
		n.Name = v
	case FieldEmail:
		n.Email = v
	case FieldTaxID:
		n.TaxID = v
	case FieldCompany:
		n.Company = v
	case FieldDepartment:
		n.Department = v
	case FieldPosition:
		n.Position = v
	}
}

// ResolvedPayload is the submission-ready form of a valid row.
type ResolvedPayload struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	TaxID        string `json:"taxId"`
	CompanyID    int64  `json:"companyId"`
	DepartmentID int64  `json:"departmentId"`
	PositionID   int64  `json:"positionId"`
}

// RowStatus is the lifecycle state of a single row.
type RowStatus string

const (
	StatusPending         RowStatus = "pending"
	StatusResolved        RowStatus = "resolved"
	StatusValidationError RowStatus = "validationError"
	StatusSubmitted       RowStatus = "submitted"
	StatusSuccess         RowStatus = "success"
	StatusServerError     RowStatus = "serverError"
)

// CanAdvance reports whether a row may move from s to next.
// Transitions only go forward and terminal states never change.
func (s RowStatus) CanAdvance(next RowStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusResolved || next == StatusValidationError
	case StatusResolved:
		return next == StatusSubmitted
	case StatusSubmitted:
		return next == StatusSuccess || next == StatusServerError
	default:
		return false
	}
}

// IsDefect reports whether rows in this status belong in the error report.
func (s RowStatus) IsDefect() bool {
	return s == StatusValidationError || s == StatusServerError
}

// RowOutcome is the per-row result the whole pipeline works on.
type RowOutcome struct {
	Line                int              `json:"line"`
	Raw                 RawRow           `json:"raw"`
	Normalized          NormalizedRow    `json:"normalized"`
	Payload             *ResolvedPayload `json:"payload,omitempty"`
	Status              RowStatus        `json:"status"`
	Reasons             []string         `json:"reasons,omitempty"`
	EmailDeliveryStatus string           `json:"emailDeliveryStatus,omitempty"`
}

// advance moves the outcome to next if the transition is allowed.
func (o *RowOutcome) advance(next RowStatus) bool {
	if !o.Status.CanAdvance(next) {
		return false
	}
	o.Status = next
	return true
}

// Submission result statuses as reported by the submission service.
const (
	ResultSuccess   = "success"
	ResultError     = "error"
	ResultDuplicate = "duplicate"
)

// SubmissionResult is the per-record answer of the submission service.
type SubmissionResult struct {
	Name                string `json:"name"`
	Status              string `json:"status"`
	Error               string `json:"error,omitempty"`
	EmailDeliveryStatus string `json:"emailDeliveryStatus,omitempty"`
}

// ReferenceLookup provides the three read-only reference collections.
type ReferenceLookup interface {
	Companies(ctx context.Context) ([]ReferenceEntity, error)
	Departments(ctx context.Context) ([]ReferenceEntity, error)
	Positions(ctx context.Context) ([]ReferenceEntity, error)
}

// RecordSubmitter creates collaborators in one batch call.
// A non-nil error means the whole batch failed; otherwise the results
// describe each record the service processed.
type RecordSubmitter interface {
	SubmitBatch(ctx context.Context, records []ResolvedPayload) ([]SubmissionResult, error)
}

// ImportPhase indicates the current stage of an import session.
type ImportPhase string

const (
	PhaseStarting   ImportPhase = "starting"
	PhaseParsing    ImportPhase = "parsing"
	PhaseReferences ImportPhase = "references"
	PhaseValidating ImportPhase = "validating"
	PhaseSubmitting ImportPhase = "submitting"
	PhaseComplete   ImportPhase = "complete"
	PhaseFailed     ImportPhase = "failed"
)

// IsTerminal reports whether the phase ends the import.
func (p ImportPhase) IsTerminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// ImportProgress represents the current state of an import session.
type ImportProgress struct {
	SessionID string      `json:"sessionId"`
	FileName  string      `json:"fileName"`
	Phase     ImportPhase `json:"phase"`
	Total     int         `json:"total"`
	Resolved  int         `json:"resolved"`
	Failed    int         `json:"failed"`
	Succeeded int         `json:"succeeded"`
	Warnings  []string    `json:"warnings,omitempty"`
	Error     string      `json:"error,omitempty"` // Non-empty if Phase is PhaseFailed

	// TopReasons lists the most frequent validation reasons when no row resolved.
	TopReasons []ReasonCount `json:"topReasons,omitempty"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// Percent returns a coarse completion percentage derived from the phase.
func (p ImportProgress) Percent() int {
	switch p.Phase {
	case PhaseStarting:
		return 0
	case PhaseParsing:
		return 10
	case PhaseReferences:
		return 30
	case PhaseValidating:
		return 50
	case PhaseSubmitting:
		return 75
	default:
		return 100
	}
}

// ProgressCallback is called whenever the pipeline changes phase.
type ProgressCallback func(ImportProgress)
