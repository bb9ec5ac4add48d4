package core

// import_limiter.go implements concurrency control for import sessions.
//
// Two independent limits apply to every new import:
//
//   - ImportLimiter caps how many imports run at once across all operators.
//     When every slot is busy, callers wait up to maxWait before failing
//     with ErrTooManyImports.
//   - OperatorGuard allows a single running import per operator. A second
//     upload from the same operator fails immediately with
//     ErrImportInProgress.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyImports is returned when all import slots are occupied and the
// wait timeout expires. Clients should retry after a short delay.
var ErrTooManyImports = errors.New("too many concurrent imports, please try again later")

// DefaultMaxConcurrentImports is the default limit for parallel imports.
const DefaultMaxConcurrentImports = 5

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// ImportLimiter restricts parallel imports using a semaphore.
type ImportLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewImportLimiter creates a limiter that allows at most maxConcurrent imports.
// Non-positive arguments fall back to the defaults.
func NewImportLimiter(maxConcurrent int, maxWait time.Duration) *ImportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &ImportLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire waits for an import slot.
// Returns ErrTooManyImports if none frees up within maxWait.
// The caller MUST call Release() when the import completes.
func (l *ImportLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyImports
	}
}

// Release frees a slot taken by Acquire.
func (l *ImportLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of running imports.
func (l *ImportLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxConcurrent returns the configured slot count.
func (l *ImportLimiter) MaxConcurrent() int {
	return cap(l.semaphore)
}

// WaitForDrain blocks until no import is running or ctx is done.
// Used for graceful shutdown.
func (l *ImportLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ImportLimiterStatus is a snapshot of the limiter for health endpoints.
type ImportLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *ImportLimiter) Status() ImportLimiterStatus {
	active := l.ActiveCount()
	return ImportLimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}

// OperatorGuard tracks which operators have an import running.
type OperatorGuard struct {
	mu      sync.Mutex
	running map[string]string // operator -> session id
}

// NewOperatorGuard creates an empty guard.
func NewOperatorGuard() *OperatorGuard {
	return &OperatorGuard{running: make(map[string]string)}
}

// Claim marks operator as busy with sessionID.
// Returns ErrImportInProgress if the operator already has a running import.
func (g *OperatorGuard) Claim(operator, sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.running[operator]; busy {
		return ErrImportInProgress
	}
	g.running[operator] = sessionID
	return nil
}

// Release clears the claim if it still belongs to sessionID.
func (g *OperatorGuard) Release(operator, sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running[operator] == sessionID {
		delete(g.running, operator)
	}
}

// Running returns the session id of the operator's running import, if any.
func (g *OperatorGuard) Running(operator string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, ok := g.running[operator]
	return id, ok
}
