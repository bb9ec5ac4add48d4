package core

import (
	"errors"
	"time"
)

// ImportSession is everything known about one import attempt.
// Outcomes are ordered by line number.
type ImportSession struct {
	ID         string
	Operator   string
	FileName   string
	StartedAt  time.Time
	FinishedAt time.Time
	Phase      ImportPhase
	Format     FileFormat
	Dialect    *Dialect // nil for workbooks
	Warnings   []Warning
	References References
	Outcomes   []RowOutcome
	Submitted  bool // true once the batch was handed to the submitter
	Reconcile  ReconcileStats
	Err        error
}

// Counts is the operator-facing summary of a session.
type Counts struct {
	Total     int `json:"total"`
	Resolved  int `json:"resolved"`
	Failed    int `json:"failed"`
	Succeeded int `json:"succeeded"`
	Pending   int `json:"pending"`
}

// Counts tallies outcomes by status. Resolved counts every row that passed
// validation, whatever happened to it afterwards.
func (s *ImportSession) Counts() Counts {
	var c Counts
	c.Total = len(s.Outcomes)
	for _, o := range s.Outcomes {
		switch o.Status {
		case StatusResolved, StatusSubmitted:
			c.Resolved++
			c.Pending++
		case StatusSuccess:
			c.Resolved++
			c.Succeeded++
		case StatusServerError:
			c.Resolved++
			c.Failed++
		case StatusValidationError:
			c.Failed++
		default:
			c.Pending++
		}
	}
	return c
}

// Defects returns outcomes that belong in the error report, in line order.
func (s *ImportSession) Defects() []RowOutcome {
	var defects []RowOutcome
	for _, o := range s.Outcomes {
		if o.Status.IsDefect() {
			defects = append(defects, o)
		}
	}
	return defects
}

// HasDefects reports whether an error report would contain any row.
func (s *ImportSession) HasDefects() bool {
	for _, o := range s.Outcomes {
		if o.Status.IsDefect() {
			return true
		}
	}
	return false
}

// Progress builds a progress snapshot for subscribers.
func (s *ImportSession) Progress() ImportProgress {
	c := s.Counts()
	p := ImportProgress{
		SessionID: s.ID,
		FileName:  s.FileName,
		Phase:     s.Phase,
		Total:     c.Total,
		Resolved:  c.Resolved,
		Failed:    c.Failed,
		Succeeded: c.Succeeded,
		UpdatedAt: time.Now(),
	}
	for _, w := range s.Warnings {
		p.Warnings = append(p.Warnings, w.Message)
	}
	if s.Err != nil {
		p.Error = FormatUserError(s.Err)
		var nv *NoValidRecordsError
		if errors.As(s.Err, &nv) {
			p.TopReasons = nv.Top
		}
	}
	return p
}

// Snapshot returns a copy that shares no mutable slices with s.
func (s *ImportSession) Snapshot() *ImportSession {
	cp := *s
	cp.Warnings = append([]Warning(nil), s.Warnings...)
	cp.Outcomes = cloneOutcomes(s.Outcomes)
	if s.Dialect != nil {
		d := *s.Dialect
		cp.Dialect = &d
	}
	return &cp
}
