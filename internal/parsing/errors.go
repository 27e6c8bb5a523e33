// Package parsing implements the format readers for VASP output and side
// files. Each reader builds its result locally and returns it only on
// success, so a failed parse never leaves partial state with the caller.
package parsing

import "fmt"

// ParseError represents a failure to read or interpret one file.
type ParseError struct {
	Path    string
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse error in %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

func parseErr(path, message string, cause error) *ParseError {
	return &ParseError{Path: path, Message: message, Cause: cause}
}
