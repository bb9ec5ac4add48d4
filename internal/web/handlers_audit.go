package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/collabimport/internal/core"
	"github.com/JonMunkholm/collabimport/internal/store"
)

var errAuditUnavailable = errors.New("audit log unavailable: no database configured")

// handleAuditLog returns one page of the import audit log.
//
// Query parameters: operator, outcome, from and to (YYYY-MM-DD), page,
// page_size.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		s.respondError(w, r, errAuditUnavailable, http.StatusNotFound)
		return
	}

	page, pageSize := parsePaging(r)

	q := store.AuditQuery{
		Operator:  r.URL.Query().Get("operator"),
		Outcome:   core.AuditOutcome(r.URL.Query().Get("outcome")),
		StartTime: parseDateParam(r, "from", false),
		EndTime:   parseDateParam(r, "to", true),
		Limit:     pageSize,
		Offset:    (page - 1) * pageSize,
	}

	result, err := s.audit.ListImports(r.Context(), q)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("list import audit: %w", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
