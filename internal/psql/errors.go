package psql

import (
	"fmt"

	"github.com/kballard/go-shellquote"
)

// RunError reports a failed invocation of the external client. It carries
// the full argument list and the captured stderr so test logs show exactly
// what ran and what the client said.
type RunError struct {
	Reason  string
	Args    []string
	Stderr  string
	SQL     string
	Outcome ProcessOutcome
	Cause   error
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Reason, shellquote.Join(e.Args...))
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	if e.Stderr != "" {
		msg += fmt.Sprintf(" (stderr: %s)", e.Stderr)
	}
	if e.SQL != "" {
		msg += fmt.Sprintf(" (sql: %s)", e.SQL)
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Cause
}
