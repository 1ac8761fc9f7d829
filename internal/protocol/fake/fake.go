// Package fake provides a scriptable protocol binding for tests. A Conn is
// loaded with results ahead of time and records every statement it is asked
// to run, so tests can assert ordering, short-circuiting and draining
// without a live server.
package fake

import (
	"fmt"

	"github.com/joacominatel/pgharness/internal/protocol"
)

// Conn is a scripted protocol.Conn.
type Conn struct {
	// Queue holds the results handed out by Exec (and ChangePassword),
	// in order. When the queue runs dry Exec fails, which surfaces
	// unexpected statements as test failures.
	Queue []*Result

	// AsyncResults are handed out by NextResult after an async dispatch
	// completes.
	AsyncResults []*Result

	// BusyCycles is how many times IsBusy reports true before the async
	// dispatch is considered complete.
	BusyCycles int

	// FailSend makes SendQuery refuse the dispatch.
	FailSend bool

	// FailConsume makes ConsumeInput report a dead connection.
	FailConsume bool

	// Bad forces a ConnBad status.
	Bad bool

	// Executed records every statement passed to Exec, SendQuery or
	// ChangePassword, in order.
	Executed []string

	// CloseCount counts Close calls so tests can assert idempotence.
	CloseCount int

	errMsg string
	closed bool
}

// Dial returns a protocol.Dialer that always hands out conn.
func Dial(conn *Conn) protocol.Dialer {
	return func(string) (protocol.Conn, error) {
		return conn, nil
	}
}

// DialSequence returns a Dialer handing out the given connections in order,
// failing once they run out. Useful for reconnect and repeated-connect
// tests.
func DialSequence(conns ...*Conn) protocol.Dialer {
	i := 0
	return func(string) (protocol.Conn, error) {
		if i >= len(conns) {
			return nil, fmt.Errorf("no more scripted connections (dial %d)", i+1)
		}
		c := conns[i]
		i++
		return c, nil
	}
}

// Status implements protocol.Conn.
func (c *Conn) Status() protocol.ConnStatus {
	if c.Bad || c.closed {
		return protocol.ConnBad
	}
	return protocol.ConnOK
}

// Exec pops the next scripted result.
func (c *Conn) Exec(sql string) protocol.Result {
	c.Executed = append(c.Executed, sql)
	return c.pop(sql)
}

// SendQuery records the statement and reports dispatch success.
func (c *Conn) SendQuery(sql string) bool {
	c.Executed = append(c.Executed, sql)
	return !c.FailSend
}

// IsBusy reports true for the configured number of cycles.
func (c *Conn) IsBusy() bool {
	if c.BusyCycles > 0 {
		c.BusyCycles--
		return true
	}
	return false
}

// ConsumeInput implements protocol.Conn.
func (c *Conn) ConsumeInput() bool {
	return !c.FailConsume
}

// NextResult pops the next async result, nil once drained.
func (c *Conn) NextResult() protocol.Result {
	if len(c.AsyncResults) == 0 {
		return nil
	}
	res := c.AsyncResults[0]
	c.AsyncResults = c.AsyncResults[1:]
	return res
}

// ChangePassword records the operation and pops the next scripted result.
func (c *Conn) ChangePassword(user, password string) protocol.Result {
	op := "ALTER USER " + user
	c.Executed = append(c.Executed, op)
	return c.pop(op)
}

// ErrorMessage implements protocol.Conn.
func (c *Conn) ErrorMessage() string {
	return c.errMsg
}

// SetErrorMessage sets the connection-level error text returned by
// ErrorMessage.
func (c *Conn) SetErrorMessage(msg string) {
	c.errMsg = msg
}

// Close implements protocol.Conn.
func (c *Conn) Close() {
	c.closed = true
	c.CloseCount++
}

func (c *Conn) pop(sql string) protocol.Result {
	if len(c.Queue) == 0 {
		c.errMsg = "unexpected statement: " + sql
		return &Result{status: protocol.ResultError, errMsg: c.errMsg}
	}
	res := c.Queue[0]
	c.Queue = c.Queue[1:]
	if res.status == protocol.ResultError {
		c.errMsg = res.errMsg
	}
	return res
}
