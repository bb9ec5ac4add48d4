package core

import (
	"context"
	"log/slog"
	"time"
)

// ImportRequest is one uploaded file to run through the pipeline.
type ImportRequest struct {
	SessionID string
	Operator  string
	FileName  string
	Data      []byte
}

// SessionObserver receives a snapshot of the session after every phase change.
type SessionObserver func(*ImportSession)

// Pipeline runs the import stages for one file at a time.
// It holds no per-session state and is safe for concurrent use.
type Pipeline struct {
	lookup    ReferenceLookup
	submitter RecordSubmitter
	dryRun    bool
	logger    *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithDryRun stops the pipeline after validation; nothing is submitted.
func WithDryRun(dryRun bool) PipelineOption {
	return func(p *Pipeline) { p.dryRun = dryRun }
}

// WithLogger sets the base logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a pipeline over the two external services.
func NewPipeline(lookup ReferenceLookup, submitter RecordSubmitter, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		lookup:    lookup,
		submitter: submitter,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes every stage for req and returns the final session.
//
// The returned session is always non-nil. The error is the terminal error
// of the attempt (also stored in session.Err); outcomes produced before the
// failure stay in the session so reports can still be generated.
//
// Once the batch is handed to the submitter, cancelling ctx no longer
// aborts the attempt.
func (p *Pipeline) Run(ctx context.Context, req ImportRequest, observe SessionObserver) (*ImportSession, error) {
	if observe == nil {
		observe = func(*ImportSession) {}
	}

	logger := p.logger.With(
		"session_id", req.SessionID,
		"operator", req.Operator,
		"file", req.FileName,
	)

	sess := &ImportSession{
		ID:        req.SessionID,
		Operator:  req.Operator,
		FileName:  req.FileName,
		StartedAt: time.Now(),
		Phase:     PhaseStarting,
	}

	setPhase := func(phase ImportPhase) {
		sess.Phase = phase
		observe(sess.Snapshot())
	}
	fail := func(err error) (*ImportSession, error) {
		sess.Err = err
		sess.FinishedAt = time.Now()
		setPhase(PhaseFailed)
		logger.Warn("import failed", "error", err, "rows", len(sess.Outcomes))
		return sess, err
	}

	// Parse
	setPhase(PhaseParsing)

	format, err := DetectFormat(req.FileName, req.Data)
	if err != nil {
		return fail(err)
	}
	sess.Format = format

	if format == FormatText {
		d := Sniff(req.Data)
		sess.Dialect = &d
		sess.Warnings = append(sess.Warnings, d.Warnings...)
		for _, w := range d.Warnings {
			logger.Info("sniffer warning", "code", w.Code, "message", w.Message)
		}
	}

	parsed, err := Parse(req.FileName, req.Data)
	if err != nil {
		return fail(err)
	}
	sess.Warnings = append(sess.Warnings, parsed.Warnings...)

	sess.Outcomes = make([]RowOutcome, len(parsed.Rows))
	for i, raw := range parsed.Rows {
		n := Normalize(raw)
		sess.Outcomes[i] = RowOutcome{
			Line:       raw.Line,
			Raw:        raw,
			Normalized: n,
			Status:     StatusPending,
		}
	}
	logger.Info("file parsed",
		"format", parsed.Format,
		"delimiter", DelimiterName(parsed.Delimiter),
		"rows", len(parsed.Rows),
	)

	// References
	setPhase(PhaseReferences)

	refs, err := LoadReferences(ctx, p.lookup)
	if err != nil {
		return fail(err)
	}
	sess.References = refs

	// Validate
	setPhase(PhaseValidating)

	validator := NewRowValidator(refs)
	resolved := 0
	for i := range sess.Outcomes {
		o := validator.Validate(sess.Outcomes[i].Normalized)
		o.Raw = sess.Outcomes[i].Raw
		sess.Outcomes[i] = o
		if o.Status == StatusResolved {
			resolved++
		}
	}
	logger.Info("rows validated", "resolved", resolved, "invalid", len(sess.Outcomes)-resolved)

	if resolved == 0 {
		return fail(&NoValidRecordsError{
			Invalid: len(sess.Outcomes),
			Top:     TopReasons(sess.Outcomes, 3),
		})
	}

	if p.dryRun {
		sess.FinishedAt = time.Now()
		setPhase(PhaseComplete)
		return sess, nil
	}

	// Submit
	outcomes, payloads := MarkSubmitted(sess.Outcomes)
	sess.Outcomes = outcomes
	sess.Submitted = true
	setPhase(PhaseSubmitting)

	start := time.Now()
	results, err := p.submitter.SubmitBatch(context.WithoutCancel(ctx), payloads)
	if err != nil {
		sess.Outcomes = FailBatch(sess.Outcomes)
		return fail(err)
	}

	sess.Outcomes, sess.Reconcile = Reconcile(sess.Outcomes, results)
	if sess.Reconcile.Unmatched > 0 || sess.Reconcile.UnknownResults > 0 {
		logger.Warn("submission results did not line up with submitted rows",
			"unmatched_rows", sess.Reconcile.Unmatched,
			"unknown_results", sess.Reconcile.UnknownResults,
		)
	}
	sess.Outcomes = Finalize(sess.Outcomes)

	c := sess.Counts()
	logger.Info("batch submitted",
		"records", len(payloads),
		"succeeded", c.Succeeded,
		"failed", c.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	sess.FinishedAt = time.Now()
	setPhase(PhaseComplete)
	return sess, nil
}
