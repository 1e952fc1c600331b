// Package error provides the structured error type used throughout grammar
// validation and compilation.
package error

import "fmt"

// SpecError represents a single problem found while parsing or compiling a
// grammar. Row and Col are 1-based; a zero Row means the position is unknown.
type SpecError struct {
	Cause      error
	Detail     string
	Row        int
	Col        int
	FilePath   string
	SourceName string
}

func (e *SpecError) Error() string {
	src := e.SourceName
	if src == "" {
		src = e.FilePath
	}

	var pos string
	switch {
	case e.Row > 0 && e.Col > 0:
		pos = fmt.Sprintf("%v:%v:%v", src, e.Row, e.Col)
	case e.Row > 0:
		pos = fmt.Sprintf("%v:%v", src, e.Row)
	default:
		pos = src
	}

	msg := fmt.Sprintf("%v", e.Cause)
	if e.Detail != "" {
		msg = fmt.Sprintf("%v: %v", msg, e.Detail)
	}

	if pos == "" {
		return fmt.Sprintf("error: %v", msg)
	}
	return fmt.Sprintf("%v: error: %v", pos, msg)
}

func (e *SpecError) Unwrap() error {
	return e.Cause
}

// SpecErrors is a collection of SpecError accumulated while a grammar is
// validated; a builder keeps going after the first error so it can report as
// many problems as possible in one pass.
type SpecErrors []*SpecError

func (errs SpecErrors) Error() string {
	if len(errs) == 0 {
		return "no errors"
	}
	if len(errs) == 1 {
		return errs[0].Error()
	}
	msg := fmt.Sprintf("%v errors occurred:", len(errs))
	for _, e := range errs {
		msg += "\n  " + e.Error()
	}
	return msg
}
