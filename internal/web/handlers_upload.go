package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JonMunkholm/collabimport/internal/core"
	"github.com/JonMunkholm/collabimport/internal/logging"
	"github.com/JonMunkholm/collabimport/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead is allowed on top of the file size for form boundaries.
const multipartOverhead = 1 << 20

// sseKeepAlive is how often an idle progress stream sends a comment line.
const sseKeepAlive = 15 * time.Second

// UploadResponse is returned when an import was accepted.
type UploadResponse struct {
	SessionID string `json:"session_id"`
	FileName  string `json:"file_name"`
}

// handleUpload reads the multipart "file" part and starts an import.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize.Bytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, fmt.Errorf("%w: limit %s", core.ErrFileTooLarge, s.cfg.Import.MaxFileSize), http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: %v", core.ErrNoFile, err), http.StatusBadRequest)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, core.ErrNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > maxSize {
		s.respondError(w, r, fmt.Errorf("%w: %d bytes, limit %s", core.ErrFileTooLarge, header.Size, s.cfg.Import.MaxFileSize), http.StatusRequestEntityTooLarge)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read upload: %w", err), http.StatusBadRequest)
		return
	}
	if int64(len(data)) > maxSize {
		s.respondError(w, r, core.ErrFileTooLarge, http.StatusRequestEntityTooLarge)
		return
	}

	ctx := withRequestMetadata(r.Context(), r)
	operator := core.OperatorFromContext(ctx)

	sessionID, err := s.service.StartImport(ctx, operator, header.Filename, data)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	logging.WithImport(r.Context(), sessionID, operator).Info("import accepted",
		"file", header.Filename,
		"bytes", len(data),
	)

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusAccepted)
		_ = templates.Started(sessionID).Render(r.Context(), w)
		return
	}

	w.Header().Set("Location", "/api/imports/"+sessionID)
	writeJSON(w, http.StatusAccepted, UploadResponse{SessionID: sessionID, FileName: header.Filename})
}

// handleImportProgress streams progress via Server-Sent Events.
//
// Each "progress" event carries the rendered panel for HTMX clients, or the
// JSON snapshot when the client asks with ?format=json. A "complete" event
// follows once the import finishes.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	progressCh, err := s.service.SubscribeProgress(sessionID)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, errors.New("streaming not supported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	asJSON := r.URL.Query().Get("format") == "json"
	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				fmt.Fprint(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			if err := s.writeProgressEvent(w, r, progress, asJSON); err != nil {
				logging.FromContext(r.Context()).Warn("progress stream write failed",
					"session_id", sessionID,
					"error", err,
				)
				return
			}
			flusher.Flush()

		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// writeProgressEvent writes one SSE event. Multi-line HTML is split into
// one data line per line of markup.
func (s *Server) writeProgressEvent(w io.Writer, r *http.Request, p core.ImportProgress, asJSON bool) error {
	var payload []byte
	if asJSON {
		b, err := json.Marshal(p)
		if err != nil {
			return err
		}
		payload = b
	} else {
		hasDefects := false
		if p.Phase.IsTerminal() {
			if sess, err := s.service.Session(p.SessionID); err == nil {
				hasDefects = sess.HasDefects()
			}
		}
		var buf bytes.Buffer
		if err := templates.Progress(templates.ProgressParams{Progress: p, HasDefects: hasDefects}).Render(r.Context(), &buf); err != nil {
			return err
		}
		payload = buf.Bytes()
	}

	if _, err := fmt.Fprintf(w, "id: %d\nevent: progress\n", p.Percent()); err != nil {
		return err
	}
	for _, line := range bytes.Split(payload, []byte("\n")) {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}
