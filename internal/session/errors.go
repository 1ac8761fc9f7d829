package session

import "fmt"

// ConnectionError reports a failure to establish or keep a connection.
type ConnectionError struct {
	ConnString string
	Message    string
	Cause      error
}

func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connection to %q failed: %v", e.ConnString, e.Cause)
	}
	return fmt.Sprintf("connection to %q failed: %s", e.ConnString, e.Message)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// QueryError reports a statement that did not execute successfully.
type QueryError struct {
	SQL     string
	Message string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %s: %s", e.Message, e.SQL)
}

// UsageError reports a harness misuse, such as a scalar query returning the
// wrong shape.
type UsageError struct {
	Op     string
	SQL    string
	Detail string
}

func (e *UsageError) Error() string {
	if e.SQL != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.SQL)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}
