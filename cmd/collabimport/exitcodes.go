package main

import "errors"

const (
	exitOK      = 0
	exitDefects = 1
	exitFailed  = 2
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

// exitCode maps a command error to the process exit status. Errors without
// an explicit code are failures.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitFailed
}

// errDefectsFound is returned when the import finished but left rows for the
// error report. The summary has already been printed, so it carries no text.
var errDefectsFound = withCode(exitDefects, errors.New(""))
