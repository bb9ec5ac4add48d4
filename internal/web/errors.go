package web

// errors.go turns handler errors into responses.
//
// The technical error is logged with the request ID; the client gets the
// message from core.MapError as an HTMX fragment, JSON or plain text.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/collabimport/internal/core"
	"github.com/JonMunkholm/collabimport/internal/logging"
	"github.com/JonMunkholm/collabimport/internal/web/templates"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for errors the service returns.
func statusFor(err error) int {
	var unsupported *core.UnsupportedFormatError
	switch {
	case errors.Is(err, core.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrImportInProgress), errors.Is(err, core.ErrSessionRunning):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrNoFile), errors.As(err, &unsupported):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the user-facing message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	logging.FromContext(r.Context()).Log(r.Context(), errorLogLevel(err, statusCode), "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	if statusCode == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}

	switch {
	case isHTMX(r):
		renderErrorPartial(w, r, userMsg, statusCode)
	case wantsJSON(r):
		respondErrorJSON(w, userMsg, statusCode)
	default:
		http.Error(w, userMsg.Message+" ("+userMsg.Code+")", statusCode)
	}
}

// errorLogLevel is Warn for client errors with a known message and Error
// for server failures or errors that only map to the generic message.
func errorLogLevel(err error, statusCode int) slog.Level {
	if statusCode >= http.StatusInternalServerError || !core.IsUserFacing(err) {
		return slog.LevelError
	}
	return slog.LevelWarn
}

func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// renderErrorPartial answers HTMX with 200 so the fragment is swapped in;
// the real status travels in a header.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Error-Status", http.StatusText(statusCode))
	_ = templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
