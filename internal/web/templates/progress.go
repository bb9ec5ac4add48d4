// Package templates renders the HTMX fragments of the import UI.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/collabimport/internal/core"
)

func e(s string) string { return templ.EscapeString(s) }

// ProgressParams feeds the progress panel.
type ProgressParams struct {
	Progress   core.ImportProgress
	HasDefects bool
}

// UploadPage is the landing page with the file picker and an empty
// progress panel that HTMX fills in.
func UploadPage(maxFileSize string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>Collaborator import</title>
<script src="https://unpkg.com/htmx.org@2.0.4"></script>
<script src="https://unpkg.com/htmx-ext-sse@2.2.2/sse.js"></script>
</head>
<body hx-ext="sse">
<main>
<h1>Import collaborators</h1>
<form id="import-form" hx-post="/api/imports" hx-encoding="multipart/form-data"
      hx-target="#import-panel" hx-disabled-elt="find button">
<input type="file" name="file" accept=".csv,.txt,.xlsx" required>
<small>CSV (comma, semicolon or tab) or XLSX, up to `+e(maxFileSize)+`</small>
<button type="submit">Upload</button>
</form>
<section id="import-panel"></section>
</main>
</body>
</html>`)
		return err
	})
}

// Started is returned after an upload is accepted. It subscribes to the
// session's progress stream and swaps in the panel on every event.
func Started(sessionID string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		id := e(sessionID)
		_, err := fmt.Fprintf(w, `<div id="import-%s" sse-connect="/api/imports/%s/progress" sse-swap="progress" sse-close="complete" hx-swap="innerHTML">`+
			`<p>Upload received, starting import&hellip;</p></div>`, id, id)
		return err
	})
}

// Progress renders the current state of an import.
func Progress(p ProgressParams) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		pr := p.Progress
		id := e(pr.SessionID)

		fmt.Fprintf(&b, `<div class="import-progress phase-%s">`, e(string(pr.Phase)))
		fmt.Fprintf(&b, `<h2>%s</h2>`, e(pr.FileName))
		fmt.Fprintf(&b, `<progress max="100" value="%d"></progress> <span>%s</span>`, pr.Percent(), e(phaseLabel(pr.Phase)))

		fmt.Fprintf(&b, `<dl><dt>Total</dt><dd>%d</dd><dt>Resolved</dt><dd>%d</dd>`+
			`<dt>Failed</dt><dd>%d</dd><dt>Created</dt><dd>%d</dd></dl>`,
			pr.Total, pr.Resolved, pr.Failed, pr.Succeeded)

		if len(pr.Warnings) > 0 {
			b.WriteString(`<ul class="warnings">`)
			for _, msg := range pr.Warnings {
				fmt.Fprintf(&b, `<li>%s</li>`, e(msg))
			}
			b.WriteString(`</ul>`)
		}

		if pr.Error != "" {
			fmt.Fprintf(&b, `<p class="error" role="alert">%s</p>`, e(pr.Error))
		}
		if len(pr.TopReasons) > 0 {
			b.WriteString(`<ul class="top-reasons">`)
			for _, rc := range pr.TopReasons {
				fmt.Fprintf(&b, `<li>%s <span class="count">(%d)</span></li>`, e(rc.Reason), rc.Count)
			}
			b.WriteString(`</ul>`)
		}

		if pr.Phase.IsTerminal() {
			if p.HasDefects {
				fmt.Fprintf(&b, `<p class="reports">Download the error report: `+
					`<a href="/api/imports/%s/report.txt" download>TXT</a> `+
					`<a href="/api/imports/%s/report.xlsx" download>XLSX</a></p>`, id, id)
			}
			fmt.Fprintf(&b, `<button hx-delete="/api/imports/%s" hx-target="closest section" hx-swap="innerHTML">Close</button>`, id)
		}

		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ErrorAlert renders a user-facing error with its code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="alert alert-error" role="alert">`)
		fmt.Fprintf(&b, `<strong>%s</strong>`, e(message))
		if action != "" {
			fmt.Fprintf(&b, `<p>%s</p>`, e(action))
		}
		fmt.Fprintf(&b, `<small>Code: %s</small></div>`, e(code))
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func phaseLabel(p core.ImportPhase) string {
	switch p {
	case core.PhaseStarting:
		return "Starting"
	case core.PhaseParsing:
		return "Reading file"
	case core.PhaseReferences:
		return "Loading companies, departments and positions"
	case core.PhaseValidating:
		return "Validating rows"
	case core.PhaseSubmitting:
		return "Creating collaborators"
	case core.PhaseComplete:
		return "Finished"
	case core.PhaseFailed:
		return "Failed"
	default:
		return string(p)
	}
}
