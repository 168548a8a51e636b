package binding

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// RuntimeError is the single error kind surfaced to host-runtime callers.
// The framework failure that caused it, if any, is available through Unwrap.
type RuntimeError struct {
	Function string // Binding function that failed, empty for script-level errors
	Line     int    // Script line, when the runtime reported one
	Message  string
	Err      error
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString("RuntimeError")
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}
	if e.Function != "" {
		b.WriteString(" in ")
		b.WriteString(e.Function)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// toRuntimeError translates err into a *RuntimeError. A RuntimeError is
// returned unchanged.
func toRuntimeError(function string, err error) error {
	if err == nil {
		return nil
	}
	var rerr *RuntimeError
	if errors.As(err, &rerr) {
		return rerr
	}
	return &RuntimeError{Function: function, Message: err.Error(), Err: err}
}

// linePattern matches zygomys error messages that include "Error on line N: ...".
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// scriptError builds the RuntimeError for a failed evaluation. cause is the
// last framework error raised by a binding function during the evaluation.
func scriptError(evalErr, cause error) *RuntimeError {
	msg := strings.TrimSpace(evalErr.Error())
	rerr := &RuntimeError{Message: msg, Err: evalErr}

	if m := linePattern.FindStringSubmatch(msg); m != nil {
		rerr.Line, _ = strconv.Atoi(m[1])
		rerr.Message = strings.TrimSpace(m[2])
	}

	var inner *RuntimeError
	if errors.As(cause, &inner) {
		rerr.Function = inner.Function
		rerr.Message = inner.Message
		rerr.Err = inner.Err
	}
	return rerr
}
