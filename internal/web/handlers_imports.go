package web

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JonMunkholm/collabimport/internal/core"
	"github.com/JonMunkholm/collabimport/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// Content types of the downloadable reports.
const (
	contentTypeText     = "text/plain; charset=utf-8"
	contentTypeWorkbook = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// DialectInfo describes how a text file was read.
type DialectInfo struct {
	Delimiter     string `json:"delimiter"`
	DelimiterName string `json:"delimiterName"`
	Encoding      string `json:"encoding"`
	BOM           string `json:"bom,omitempty"`
	HeaderFields  int    `json:"headerFields"`
	DataLines     int    `json:"dataLines"`
}

// ImportStatusResponse is the JSON view of a session.
type ImportStatusResponse struct {
	SessionID  string             `json:"session_id"`
	Operator   string             `json:"operator"`
	FileName   string             `json:"file_name"`
	Phase      core.ImportPhase   `json:"phase"`
	Percent    int                `json:"percent"`
	Format     core.FileFormat    `json:"format,omitempty"`
	Dialect    *DialectInfo       `json:"dialect,omitempty"`
	Counts     core.Counts        `json:"counts"`
	Warnings   []core.Warning     `json:"warnings,omitempty"`
	TopReasons []core.ReasonCount `json:"top_reasons,omitempty"`
	Reconcile  *ReconcileInfo     `json:"reconcile,omitempty"`
	Error      *ErrorResponse     `json:"error,omitempty"`
	HasReport  bool               `json:"has_report"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
}

// ReconcileInfo reports how submission results matched rows.
type ReconcileInfo struct {
	Matched        int `json:"matched"`
	UnknownResults int `json:"unknown_results"`
	Unmatched      int `json:"unmatched"`
}

// toStatusResponse converts a session snapshot into its JSON view.
func toStatusResponse(sess *core.ImportSession) ImportStatusResponse {
	resp := ImportStatusResponse{
		SessionID:  sess.ID,
		Operator:   sess.Operator,
		FileName:   sess.FileName,
		Phase:      sess.Phase,
		Percent:    sess.Progress().Percent(),
		Format:     sess.Format,
		Counts:     sess.Counts(),
		Warnings:   sess.Warnings,
		TopReasons: core.TopReasons(sess.Outcomes, 3),
		HasReport:  sess.Phase.IsTerminal() && sess.HasDefects(),
		StartedAt:  sess.StartedAt,
	}
	if d := sess.Dialect; d != nil {
		resp.Dialect = &DialectInfo{
			Delimiter:     string(d.Delimiter),
			DelimiterName: core.DelimiterName(d.Delimiter),
			Encoding:      d.Encoding,
			BOM:           string(d.BOM),
			HeaderFields:  d.HeaderFields,
			DataLines:     d.DataLines,
		}
	}
	if sess.Submitted {
		resp.Reconcile = &ReconcileInfo{
			Matched:        sess.Reconcile.Matched,
			UnknownResults: sess.Reconcile.UnknownResults,
			Unmatched:      sess.Reconcile.Unmatched,
		}
	}
	if sess.Err != nil {
		msg := core.MapError(sess.Err)
		resp.Error = &ErrorResponse{Error: msg.Message, Message: msg.Message, Action: msg.Action, Code: msg.Code}
	}
	if !sess.FinishedAt.IsZero() {
		t := sess.FinishedAt
		resp.FinishedAt = &t
	}
	return resp
}

// handleImportStatus returns the session as JSON, or the progress panel
// for HTMX requests.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = templates.Progress(templates.ProgressParams{
			Progress:   sess.Progress(),
			HasDefects: sess.Phase.IsTerminal() && sess.HasDefects(),
		}).Render(r.Context(), w)
		return
	}

	writeJSON(w, http.StatusOK, toStatusResponse(sess))
}

// RowsResponse is one page of row outcomes.
type RowsResponse struct {
	Rows       []core.RowOutcome `json:"rows"`
	TotalRows  int               `json:"total_rows"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}

// handleImportRows lists row outcomes, optionally filtered by ?status=.
// status=defects selects every row that belongs in the error report.
func (s *Server) handleImportRows(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	status := r.URL.Query().Get("status")
	rows := make([]core.RowOutcome, 0, len(sess.Outcomes))
	for _, o := range sess.Outcomes {
		switch {
		case status == "":
		case status == "defects":
			if !o.Status.IsDefect() {
				continue
			}
		case core.RowStatus(status) != o.Status:
			continue
		}
		rows = append(rows, o)
	}

	page, pageSize := parsePaging(r)
	total := len(rows)

	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)

	writeJSON(w, http.StatusOK, RowsResponse{
		Rows:       rows[start:end],
		TotalRows:  total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(int64(total), pageSize),
	})
}

// handleTextReport downloads the plain-text error report.
func (s *Server) handleTextReport(w http.ResponseWriter, r *http.Request) {
	s.serveReport(w, r, "txt", contentTypeText, core.WriteTextReport)
}

// handleWorkbookReport downloads the XLSX error report.
func (s *Server) handleWorkbookReport(w http.ResponseWriter, r *http.Request) {
	s.serveReport(w, r, "xlsx", contentTypeWorkbook, core.WriteWorkbookReport)
}

func (s *Server) serveReport(w http.ResponseWriter, r *http.Request, ext, contentType string,
	render func(io.Writer, core.DefectReport) error) {
	sess, err := s.service.FinishedSession(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	now := time.Now()
	var buf bytes.Buffer
	if err := render(&buf, core.AggregateDefects(sess, now)); err != nil {
		s.respondError(w, r, fmt.Errorf("render %s report: %w", ext, err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, core.ReportFileName(ext, now)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

// handleCloseImport discards the session once the operator closes the
// progress view.
func (s *Server) handleCloseImport(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CloseSession(chi.URLParam(r, "sessionID")); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	if isHTMX(r) {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StatusResponse reports the server's import capacity.
type StatusResponse struct {
	Limiter  core.ImportLimiterStatus `json:"limiter"`
	Sessions int                      `json:"sessions"`
	Backend  string                   `json:"backend"`
	DryRun   bool                     `json:"dry_run"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Limiter:  s.service.LimiterStatus(),
		Sessions: s.service.SessionCount(),
		Backend:  s.cfg.Backend.Mode,
		DryRun:   s.cfg.Import.DryRun,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = templates.UploadPage(s.cfg.Import.MaxFileSize.String()).Render(r.Context(), w)
}
