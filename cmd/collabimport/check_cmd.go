package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/JonMunkholm/collabimport/internal/config"
	"github.com/JonMunkholm/collabimport/internal/core"
	"github.com/JonMunkholm/collabimport/internal/logging"
	"github.com/JonMunkholm/collabimport/internal/restapi"
	"github.com/JonMunkholm/collabimport/internal/store"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

type checkOptions struct {
	file    string
	submit  bool
	outDir  string
	backend string
	verbose bool
}

func newCheckCmd() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Validate a collaborator file against the reference data",
		Long: "Reads a CSV/TXT or XLSX file, validates every row against the current\n" +
			"companies, departments and positions, and prints a summary. With --submit\n" +
			"the valid rows are created in one batch.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.file = args[0]
			return runCheck(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.submit, "submit", false, "Submit valid rows (default is a dry run)")
	cmd.Flags().StringVar(&opts.outDir, "out", "", "Directory for the error reports (skipped when empty)")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "Backend: database|http (default: BACKEND_MODE)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log pipeline progress to stderr")

	return cmd
}

func runCheck(ctx context.Context, w io.Writer, opts checkOptions) error {
	_ = godotenv.Load()

	cfg, err := config.LoadFrom(backendOverride(opts.backend, os.LookupEnv))
	if err != nil {
		return withCode(exitFailed, err)
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	logger := logging.New(os.Stderr, level, cfg.Logging.Format)

	data, err := readInput(opts.file, cfg.Import.MaxFileSize)
	if err != nil {
		return withCode(exitFailed, err)
	}

	lookup, submitter, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return withCode(exitFailed, err)
	}
	defer closeBackend()

	pipeline := core.NewPipeline(lookup, submitter,
		core.WithDryRun(!opts.submit || cfg.Import.DryRun),
		core.WithLogger(logger),
	)

	ctx, cancel := context.WithTimeout(ctx, cfg.Import.Timeout)
	defer cancel()

	sess, runErr := pipeline.Run(ctx, core.ImportRequest{
		SessionID: uuid.New().String(),
		Operator:  cliOperator(),
		FileName:  filepath.Base(opts.file),
		Data:      data,
	}, nil)

	printSummary(w, sess)

	if sess.HasDefects() && opts.outDir != "" {
		paths, err := writeReports(opts.outDir, sess, time.Now())
		if err != nil {
			return withCode(exitFailed, err)
		}
		for _, p := range paths {
			fmt.Fprintf(w, "Report written: %s\n", p)
		}
	}

	switch {
	case runErr != nil:
		return withCode(exitFailed, errors.New(core.FormatUserError(runErr)))
	case sess.HasDefects():
		return errDefectsFound
	default:
		return nil
	}
}

// backendOverride makes the --backend flag win over BACKEND_MODE.
func backendOverride(mode string, lookup func(string) (string, bool)) func(string) (string, bool) {
	if mode == "" {
		return lookup
	}
	return func(key string) (string, bool) {
		if key == "BACKEND_MODE" {
			return mode, true
		}
		return lookup(key)
	}
}

func readInput(path string, limit config.ByteSize) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > limit.Bytes() {
		return nil, fmt.Errorf("%w: %d bytes, limit %s", core.ErrFileTooLarge, info.Size(), limit)
	}
	return os.ReadFile(path)
}

// openBackend returns the reference lookup and submitter for the configured
// mode, plus a function releasing its resources.
func openBackend(ctx context.Context, cfg *config.Config) (core.ReferenceLookup, core.RecordSubmitter, func(), error) {
	if cfg.Backend.Mode == config.BackendHTTP {
		client, err := restapi.New(cfg.Backend.URL,
			restapi.WithToken(cfg.Backend.Token),
			restapi.WithTimeout(cfg.Backend.Timeout),
		)
		if err != nil {
			return nil, nil, nil, err
		}
		return client, client, func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = 2
	poolConfig.MinConns = 0

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("ping database: %w", err)
	}
	slog.Debug("connected to database")

	return store.NewReferenceRepository(pool), store.NewCollaboratorRepository(pool), pool.Close, nil
}

func cliOperator() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return core.AnonymousOperator
}

// printSummary writes the human-readable result of an import attempt.
func printSummary(w io.Writer, sess *core.ImportSession) {
	title := color.New(color.FgCyan, color.Bold)
	warn := color.New(color.FgYellow)
	fail := color.New(color.FgRed)
	ok := color.New(color.FgGreen)

	title.Fprintf(w, "\n=== %s ===\n", sess.FileName)
	if sess.Format != "" {
		fmt.Fprintf(w, "Format: %s\n", sess.Format)
	}
	if d := sess.Dialect; d != nil {
		fmt.Fprintf(w, "Delimiter: %s, encoding: %s, %d header fields, %d data lines\n",
			core.DelimiterName(d.Delimiter), d.Encoding, d.HeaderFields, d.DataLines)
	}
	for _, wn := range sess.Warnings {
		warn.Fprintf(w, "warning: %s\n", wn.Message)
	}

	// No rows were read, so there is nothing to count.
	if !core.IsFatalFileError(sess.Err) {
		c := sess.Counts()
		counts := tablewriter.NewWriter(w)
		counts.SetHeader([]string{"Total", "Valid", "Failed", "Created", "Pending"})
		counts.Append([]string{
			strconv.Itoa(c.Total),
			strconv.Itoa(c.Resolved),
			strconv.Itoa(c.Failed),
			strconv.Itoa(c.Succeeded),
			strconv.Itoa(c.Pending),
		})
		counts.Render()
	}

	if sess.Submitted {
		fmt.Fprintf(w, "Results matched: %d, unknown results: %d, rows without result: %d\n",
			sess.Reconcile.Matched, sess.Reconcile.UnknownResults, sess.Reconcile.Unmatched)
	}

	if reasons := core.TopReasons(sess.Outcomes, 5); len(reasons) > 0 {
		warn.Fprintln(w, "\nMost frequent problems")
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Reason", "Rows"})
		table.SetAutoWrapText(false)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, r := range reasons {
			table.Append([]string{r.Reason, strconv.Itoa(r.Count)})
		}
		table.Render()
	}

	switch {
	case sess.Err != nil:
		fail.Fprintf(w, "Import failed: %s\n", core.FormatUserError(sess.Err))
	case sess.HasDefects():
		fail.Fprintf(w, "%d row(s) need attention.\n", len(sess.Defects()))
	case sess.Submitted:
		ok.Fprintln(w, "All rows imported.")
	default:
		ok.Fprintln(w, "All rows are valid.")
	}
}

// writeReports writes the text and workbook error reports into dir.
func writeReports(dir string, sess *core.ImportSession, now time.Time) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}

	report := core.AggregateDefects(sess, now)
	renderers := []struct {
		ext    string
		render func(io.Writer, core.DefectReport) error
	}{
		{"txt", core.WriteTextReport},
		{"xlsx", core.WriteWorkbookReport},
	}

	paths := make([]string, 0, len(renderers))
	for _, r := range renderers {
		var buf bytes.Buffer
		if err := r.render(&buf, report); err != nil {
			return paths, fmt.Errorf("render %s report: %w", r.ext, err)
		}
		path := filepath.Join(dir, core.ReportFileName(r.ext, now))
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
