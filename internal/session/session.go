// Package session implements a single-connection protocol session with
// synchronous and asynchronous execution and helpers for scalar and
// multi-statement queries.
package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/joacominatel/pgharness/internal/protocol"
	"github.com/joacominatel/pgharness/internal/result"
)

// pollInterval is the sleep between busy checks while waiting for an
// asynchronous statement to complete.
const pollInterval = 100 * time.Millisecond

// Session owns one database connection. It is not safe for concurrent use;
// harness code is strictly sequential by design.
type Session struct {
	connString string
	dial       protocol.Dialer
	conn       protocol.Conn
	interval   time.Duration
	log        *logrus.Entry
}

// New opens a session for connString using dial. If the connection cannot be
// established, or comes up with a bad status, New fails and leaves no
// half-open resources behind.
func New(dial protocol.Dialer, connString string) (*Session, error) {
	s := &Session{
		connString: connString,
		dial:       dial,
		interval:   pollInterval,
		log: logrus.WithFields(logrus.Fields{
			"component": "session",
			"session":   uuid.NewString(),
		}),
	}

	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) open() error {
	conn, err := s.dial(s.connString)
	if err != nil {
		return &ConnectionError{ConnString: s.connString, Cause: err}
	}
	if conn.Status() != protocol.ConnOK {
		msg := conn.ErrorMessage()
		conn.Close()
		return &ConnectionError{ConnString: s.connString, Message: msg}
	}

	s.conn = conn
	s.log.Debug("session connected")
	return nil
}

// Alive reports whether the session holds a usable connection.
func (s *Session) Alive() bool {
	return s.conn != nil && s.conn.Status() == protocol.ConnOK
}

// Close releases the connection. It is idempotent and safe to call on an
// already-closed session.
func (s *Session) Close() {
	if s.conn == nil {
		return
	}
	s.conn.Close()
	s.conn = nil
	s.log.Debug("session closed")
}

// Reconnect closes the connection if open and reopens it with the stored
// connection string.
func (s *Session) Reconnect() error {
	s.Close()
	return s.open()
}

// ExecSync runs each statement in order through a blocking single-statement
// call and stops at the first result whose status is not CommandOk. Intended
// for DDL and control sequences, not tuple-returning queries.
func (s *Session) ExecSync(stmts []string) error {
	if s.conn == nil {
		return &UsageError{Op: "ExecSync", Detail: "session is not connected"}
	}

	for _, stmt := range stmts {
		s.log.WithField("sql", stmt).Debug("exec")
		res := s.conn.Exec(stmt)
		status := res.Status()
		msg := res.ErrorMessage()
		if msg == "" {
			msg = s.conn.ErrorMessage()
		}
		res.Clear()

		if status != protocol.CommandOk {
			if msg == "" {
				msg = "statement did not complete as a command"
			}
			return &QueryError{SQL: stmt, Message: msg}
		}
	}
	return nil
}

// ExecAsyncSend dispatches one statement without waiting for its result and
// reports whether the dispatch was accepted. The caller must drain with
// AwaitCompletion before issuing further work on the session.
func (s *Session) ExecAsyncSend(sql string) bool {
	if s.conn == nil {
		return false
	}
	s.log.WithField("sql", sql).Debug("async send")
	return s.conn.SendQuery(sql)
}

// AwaitCompletion waits for an asynchronous dispatch to finish, then drains
// and discards every pending result. An undrained result left on the
// connection makes it reject subsequent commands, so draining runs on every
// path. If ingesting input fails the wait stops immediately rather than
// blocking forever on a dead connection.
func (s *Session) AwaitCompletion() {
	if s.conn == nil {
		return
	}

	for s.conn.IsBusy() {
		time.Sleep(s.interval)
		if !s.conn.ConsumeInput() {
			s.log.Warn("connection lost while awaiting completion")
			break
		}
	}

	for {
		res := s.conn.NextResult()
		if res == nil {
			break
		}
		res.Clear()
	}
}

// ChangePassword issues the privileged password change for user and returns
// its materialized result.
func (s *Session) ChangePassword(user, password string) *result.QueryResult {
	if s.conn == nil {
		return disconnectedResult()
	}
	res := s.conn.ChangePassword(user, password)
	defer res.Clear()
	return result.Materialize(res, s.conn)
}

// Query executes one statement and returns its materialized result.
func (s *Session) Query(sql string) *result.QueryResult {
	if s.conn == nil {
		return disconnectedResult()
	}
	s.log.WithField("sql", sql).Debug("query")
	res := s.conn.Exec(sql)
	defer res.Clear()
	return result.Materialize(res, s.conn)
}

// QueryScalar executes sql and returns the single cell of its single row.
// The second return value reports presence: with allowMissing a zero-row
// result yields (Cell{}, false, nil). Any other shape than one row and one
// column is a usage error, and a non-TuplesOk status is a query error.
func (s *Session) QueryScalar(sql string, allowMissing bool) (result.Cell, bool, error) {
	qr := s.Query(sql)
	if qr.Status != protocol.TuplesOk {
		return result.Cell{}, false, &QueryError{SQL: sql, Message: qr.ErrorMessage}
	}

	if len(qr.Rows) == 0 && allowMissing {
		return result.Cell{}, false, nil
	}
	if len(qr.Rows) != 1 || len(qr.Columns) != 1 {
		return result.Cell{}, false, &UsageError{
			Op:     "QueryScalar",
			SQL:    sql,
			Detail: "query did not return exactly one row with one column",
		}
	}
	return qr.Rows[0][0], true, nil
}

// QueryLines runs each statement through Query, requires every result to be
// TuplesOk, skips statements that returned zero rows and joins the remaining
// rendered blocks with a blank line between them.
func (s *Session) QueryLines(stmts ...string) (string, error) {
	var blocks []string
	for _, stmt := range stmts {
		qr := s.Query(stmt)
		if qr.Status != protocol.TuplesOk {
			return "", &QueryError{SQL: stmt, Message: qr.ErrorMessage}
		}
		if len(qr.Rows) == 0 {
			continue
		}
		blocks = append(blocks, qr.Rendered)
	}

	return strings.Join(blocks, "\n\n"), nil
}

func disconnectedResult() *result.QueryResult {
	return &result.QueryResult{
		Status:       protocol.ResultError,
		ErrorMessage: "session is not connected",
	}
}
