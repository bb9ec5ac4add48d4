package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AnonymousOperator is used when a request carries no operator identity.
const AnonymousOperator = "anonymous"

// ServiceConfig holds the limits applied by Service.
type ServiceConfig struct {
	MaxConcurrent int           // Parallel imports across all operators
	MaxWaitTime   time.Duration // How long StartImport waits for a free slot
	Timeout       time.Duration // Upper bound for parsing, lookups and validation
	SessionTTL    time.Duration // How long finished sessions are kept
}

// DefaultServiceConfig returns the limits used when none are configured.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxConcurrent: DefaultMaxConcurrentImports,
		MaxWaitTime:   DefaultMaxWaitTime,
		Timeout:       10 * time.Minute,
		SessionTTL:    time.Hour,
	}
}

// Service runs imports in the background and keeps their sessions until
// the operator closes them or they expire.
type Service struct {
	pipeline *Pipeline
	limiter  *ImportLimiter
	guard    *OperatorGuard
	audits   []AuditSink
	cfg      ServiceConfig

	mu       sync.RWMutex
	sessions map[string]*activeImport
}

type activeImport struct {
	ID       string
	Operator string
	Done     chan struct{}

	mu      sync.RWMutex
	session *ImportSession // latest snapshot published by the pipeline

	Listeners  []chan ImportProgress
	ListenerMu sync.Mutex

	finishOnce sync.Once
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithAuditSink records every finished import through sink. It may be
// given more than once; sinks are called in order.
func WithAuditSink(sink AuditSink) ServiceOption {
	return func(s *Service) { s.audits = append(s.audits, sink) }
}

// NewService creates a Service around a pipeline.
func NewService(pipeline *Pipeline, cfg ServiceConfig, opts ...ServiceOption) *Service {
	def := DefaultServiceConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = def.SessionTTL
	}

	s := &Service{
		pipeline: pipeline,
		limiter:  NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		guard:    NewOperatorGuard(),
		cfg:      cfg,
		sessions: make(map[string]*activeImport),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartImport begins an asynchronous import and returns its session id.
//
// Returns ErrImportInProgress if the operator already has a running import
// and ErrTooManyImports if no slot frees up in time.
func (s *Service) StartImport(ctx context.Context, operator, fileName string, data []byte) (string, error) {
	if operator == "" {
		operator = AnonymousOperator
	}

	sessionID := uuid.New().String()

	if err := s.guard.Claim(operator, sessionID); err != nil {
		return "", err
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		s.guard.Release(operator, sessionID)
		return "", err
	}

	imp := &activeImport{
		ID:       sessionID,
		Operator: operator,
		Done:     make(chan struct{}),
		session: &ImportSession{
			ID:        sessionID,
			Operator:  operator,
			FileName:  fileName,
			StartedAt: time.Now(),
			Phase:     PhaseStarting,
		},
	}

	s.mu.Lock()
	s.sessions[sessionID] = imp
	s.mu.Unlock()

	req := ImportRequest{
		SessionID: sessionID,
		Operator:  operator,
		FileName:  fileName,
		Data:      data,
	}

	// The request context ends when the handler returns; keep its values for auditing.
	auditCtx := context.WithoutCancel(ctx)
	runCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)

	go func() {
		defer s.limiter.Release()
		defer s.guard.Release(operator, sessionID)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in import",
					"session_id", sessionID,
					"operator", operator,
					"panic", r,
				)
				failed := imp.snapshot()
				failed.Phase = PhaseFailed
				failed.Err = fmt.Errorf("internal error: %v", r)
				failed.FinishedAt = time.Now()
				s.guard.Release(operator, sessionID)
				imp.finish(failed)
			}
		}()

		sess, _ := s.pipeline.Run(runCtx, req, imp.publish)
		// Waiters released by finish must already see the operator as free.
		s.guard.Release(operator, sessionID)
		imp.finish(sess)
		s.recordAudit(auditCtx, sess)
	}()

	return sessionID, nil
}

func (s *Service) recordAudit(ctx context.Context, sess *ImportSession) {
	if len(s.audits) == 0 {
		return
	}
	entry := NewImportAuditEntry(ctx, sess)
	for _, sink := range s.audits {
		if err := sink.RecordImport(ctx, entry); err != nil {
			slog.Error("record import audit failed", "session_id", sess.ID, "error", err)
		}
	}
}

func (s *Service) lookup(sessionID string) (*activeImport, error) {
	s.mu.RLock()
	imp, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return imp, nil
}

// Session returns a snapshot of the session, running or finished.
func (s *Service) Session(sessionID string) (*ImportSession, error) {
	imp, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return imp.snapshot(), nil
}

// FinishedSession returns the final session, or ErrSessionRunning if the
// import has not finished yet.
func (s *Service) FinishedSession(sessionID string) (*ImportSession, error) {
	imp, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	select {
	case <-imp.Done:
		return imp.snapshot(), nil
	default:
		return nil, ErrSessionRunning
	}
}

// WaitSession blocks until the import finishes or ctx is done.
func (s *Service) WaitSession(ctx context.Context, sessionID string) (*ImportSession, error) {
	imp, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	select {
	case <-imp.Done:
		return imp.snapshot(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SubscribeProgress returns a channel that receives progress updates.
// The channel is closed when the import finishes.
func (s *Service) SubscribeProgress(sessionID string) (<-chan ImportProgress, error) {
	imp, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	ch := make(chan ImportProgress, 10)

	imp.ListenerMu.Lock()
	defer imp.ListenerMu.Unlock()

	ch <- imp.snapshot().Progress()
	select {
	case <-imp.Done:
		close(ch)
	default:
		imp.Listeners = append(imp.Listeners, ch)
	}

	return ch, nil
}

// CloseSession discards a session. A running import keeps going in the
// background (a submitted batch cannot be recalled) but its session is no
// longer reachable.
func (s *Service) CloseSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	delete(s.sessions, sessionID)
	return nil
}

// RunningImport returns the session id of the operator's running import.
func (s *Service) RunningImport(operator string) (string, bool) {
	if operator == "" {
		operator = AnonymousOperator
	}
	return s.guard.Running(operator)
}

// LimiterStatus returns the concurrency limiter state.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until every running import finishes or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// SessionCount returns how many sessions are held in memory.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ReapExpired removes finished sessions older than the configured TTL.
// Returns the number of sessions removed.
func (s *Service) ReapExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, imp := range s.sessions {
		select {
		case <-imp.Done:
		default:
			continue
		}
		finished := imp.snapshot().FinishedAt
		if !finished.IsZero() && now.Sub(finished) > s.cfg.SessionTTL {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// publish stores a pipeline snapshot and notifies listeners.
func (imp *activeImport) publish(snap *ImportSession) {
	imp.mu.Lock()
	imp.session = snap
	imp.mu.Unlock()

	imp.notifyProgress(snap.Progress())
}

// finish publishes the final session and releases waiters. Only the
// first call has an effect.
func (imp *activeImport) finish(sess *ImportSession) {
	imp.finishOnce.Do(func() { imp.finishLocked(sess) })
}

func (imp *activeImport) finishLocked(sess *ImportSession) {
	imp.mu.Lock()
	imp.session = sess.Snapshot()
	imp.mu.Unlock()

	imp.ListenerMu.Lock()
	defer imp.ListenerMu.Unlock()

	progress := sess.Progress()
	for _, ch := range imp.Listeners {
		select {
		case ch <- progress:
		default:
		}
		close(ch)
	}
	imp.Listeners = nil
	close(imp.Done)
}

// snapshot returns a copy of the latest session state.
func (imp *activeImport) snapshot() *ImportSession {
	imp.mu.RLock()
	defer imp.mu.RUnlock()
	return imp.session.Snapshot()
}

// notifyProgress sends progress updates to all listeners.
func (imp *activeImport) notifyProgress(p ImportProgress) {
	imp.ListenerMu.Lock()
	defer imp.ListenerMu.Unlock()

	for _, ch := range imp.Listeners {
		select {
		case ch <- p:
		default:
			// Listener is slow, skip this update
		}
	}
}
