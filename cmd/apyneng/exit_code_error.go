package main

import (
	"errors"
	"fmt"
	"io"

	courseerr "apyneng/internal/errors"
)

// ExitCodeError wraps an error with a specific process exit code.
//
// Most failures exit with 1. Usage errors (bad selectors, wrong directory)
// exit with 2 so scripts can tell them apart.
type ExitCodeError struct {
	Code int
	Err  error
}

func (e *ExitCodeError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitCodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// classify attaches the exit code matching err.
func classify(err error) *ExitCodeError {
	var exitErr *ExitCodeError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	if courseerr.IsUsage(err) {
		return &ExitCodeError{Code: exitUsage, Err: err}
	}
	return &ExitCodeError{Code: exitFailure, Err: err}
}

// reportError prints err and returns the process exit code. Usage errors are
// printed as "Error: <message>", everything else as "<Kind>: <message>" or,
// with debug, as the whole wrapped chain.
func reportError(w io.Writer, err error, debug bool) int {
	if err == nil {
		return exitOK
	}
	classified := classify(err)
	cause := classified.Err
	if classified.Code == exitUsage {
		fmt.Fprintln(w, red("Error: "+cause.Error()))
		return exitUsage
	}
	if debug {
		for i, line := range courseerr.Chain(cause) {
			fmt.Fprintf(w, "%*s%s\n", i*2, "", line)
		}
		return classified.Code
	}
	fmt.Fprintf(w, "\n%s\n", red(fmt.Sprintf("%s: %s", courseerr.Kind(cause), cause.Error())))
	return classified.Code
}
