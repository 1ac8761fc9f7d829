// Package pgwire implements the protocol binding on top of pgconn.
package pgwire

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/joacominatel/pgharness/internal/protocol"
)

// Conn is a protocol.Conn backed by a single pgconn connection.
type Conn struct {
	pg     *pgconn.PgConn
	errMsg string

	// pending carries the outcome of an in-flight SendQuery. The read of
	// the result stream runs in a binding-internal goroutine; everything
	// above this package stays strictly sequential.
	pending   chan asyncOutcome
	delivered []protocol.Result
	dead      bool
}

type asyncOutcome struct {
	results []*pgconn.Result
	err     error
}

// Connect opens a connection for connString. It satisfies protocol.Dialer.
func Connect(connString string) (protocol.Conn, error) {
	pg, err := pgconn.Connect(context.Background(), connString)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &Conn{pg: pg}, nil
}

// Status reports whether the connection is usable.
func (c *Conn) Status() protocol.ConnStatus {
	if c.pg == nil || c.pg.IsClosed() || c.dead {
		return protocol.ConnBad
	}
	return protocol.ConnOK
}

// Exec runs one statement over the simple protocol and blocks for its
// result. lib-pq convention: for a multi-statement string the last result
// wins.
func (c *Conn) Exec(sql string) protocol.Result {
	if c.Status() != protocol.ConnOK {
		c.errMsg = "connection is closed"
		return &execResult{status: protocol.ResultError, errMsg: c.errMsg}
	}

	results, err := c.pg.Exec(context.Background(), sql).ReadAll()
	if err != nil {
		c.noteError(err)
		return &execResult{status: protocol.ResultError, errMsg: c.errMsg}
	}
	if len(results) == 0 {
		// Empty query string; no command was executed.
		return &execResult{status: protocol.Other}
	}
	return adaptResult(results[len(results)-1], c)
}

// SendQuery dispatches sql without waiting. It refuses to dispatch while an
// earlier send is still undrained.
func (c *Conn) SendQuery(sql string) bool {
	if c.Status() != protocol.ConnOK {
		return false
	}
	if c.pending != nil || len(c.delivered) > 0 {
		return false
	}

	mrr := c.pg.Exec(context.Background(), sql)
	ch := make(chan asyncOutcome, 1)
	go func() {
		results, err := mrr.ReadAll()
		ch <- asyncOutcome{results: results, err: err}
	}()
	c.pending = ch
	return true
}

// IsBusy reports whether an asynchronous dispatch is still running.
func (c *Conn) IsBusy() bool {
	if c.pending == nil {
		return false
	}
	select {
	case out := <-c.pending:
		c.pending = nil
		c.deliver(out)
		return false
	default:
		return true
	}
}

// ConsumeInput reports false once the connection has died; there is nothing
// further to ingest on a dead connection.
func (c *Conn) ConsumeInput() bool {
	return c.Status() == protocol.ConnOK
}

// NextResult pops the next result delivered by an asynchronous dispatch.
func (c *Conn) NextResult() protocol.Result {
	if len(c.delivered) == 0 {
		return nil
	}
	res := c.delivered[0]
	c.delivered = c.delivered[1:]
	return res
}

// ChangePassword changes the password for user. pgconn has no client-side
// password encryption, so the binding issues the ALTER with the literal
// quoted instead.
func (c *Conn) ChangePassword(user, password string) protocol.Result {
	return c.Exec(fmt.Sprintf("ALTER USER %s PASSWORD %s", quoteIdentifier(user), quoteLiteral(password)))
}

// ErrorMessage returns the most recent connection-level error text.
func (c *Conn) ErrorMessage() string {
	return c.errMsg
}

// Close releases the connection. Safe to call more than once.
func (c *Conn) Close() {
	if c.pg == nil {
		return
	}
	_ = c.pg.Close(context.Background())
	c.pg = nil
}

func (c *Conn) deliver(out asyncOutcome) {
	if out.err != nil {
		c.noteError(out.err)
	}
	for _, res := range out.results {
		c.delivered = append(c.delivered, adaptResult(res, c))
	}
}

func (c *Conn) noteError(err error) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		c.errMsg = pgErr.Message
		return
	}
	c.errMsg = err.Error()
	if c.pg != nil && c.pg.IsClosed() {
		c.dead = true
	}
}

func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
