// Package protocol defines the contract between the harness and the wire
// protocol binding. The session layer only ever sees these interfaces; the
// real implementation lives in the pgwire subpackage and a scriptable one in
// the fake subpackage.
package protocol

// ConnStatus reports the health of a connection.
type ConnStatus int

const (
	// ConnOK means the connection is established and usable.
	ConnOK ConnStatus = iota

	// ConnBad means the connection is unusable and must be re-established.
	ConnBad
)

// ResultStatus classifies the outcome of one executed statement.
type ResultStatus int

const (
	// CommandOk means the statement executed and returned no rows.
	CommandOk ResultStatus = iota

	// TuplesOk means the statement executed and rows are available.
	TuplesOk

	// ResultError means the server reported an error for the statement.
	ResultError

	// Other covers every remaining protocol-level outcome (empty query,
	// copy states and the like). Treated as a failure by the harness.
	Other
)

// Conn is one database connection. A Conn is exclusively owned by its
// session and is never shared, so implementations need no locking at this
// boundary.
type Conn interface {
	// Status reports whether the connection is usable.
	Status() ConnStatus

	// Exec runs a single statement over the simple protocol and blocks
	// until its result is available. The returned Result is never nil;
	// failures are reported through its status. The caller owns the
	// result and must Clear it on every path.
	Exec(sql string) Result

	// SendQuery dispatches a statement without waiting for its result.
	// It reports whether the dispatch was accepted. After a successful
	// send the caller must drain results via IsBusy/ConsumeInput/
	// NextResult before issuing new work.
	SendQuery(sql string) bool

	// IsBusy reports whether results from an earlier SendQuery are still
	// outstanding.
	IsBusy() bool

	// ConsumeInput ingests newly arrived data from the server. It
	// reports false once the connection has died and no further input
	// can ever arrive.
	ConsumeInput() bool

	// NextResult returns the next pending result from an asynchronous
	// dispatch, or nil once everything has been drained.
	NextResult() Result

	// ChangePassword issues the privileged password change for user and
	// returns its result. The caller owns the result.
	ChangePassword(user, password string) Result

	// ErrorMessage returns the connection-level error text for the most
	// recent failure, or the empty string.
	ErrorMessage() string

	// Close releases the connection. It is idempotent.
	Close()
}

// Result is a raw statement result. Cell values are only meaningful when
// Status is TuplesOk.
type Result interface {
	Status() ResultStatus

	// ErrorMessage returns the server error for a ResultError result.
	ErrorMessage() string

	NumFields() int
	NumTuples() int

	// FieldName returns the display name of column col.
	FieldName(col int) string

	// FieldType returns the type OID of column col.
	FieldType(col int) uint32

	// Value returns the textual value of the cell. A null cell yields
	// the empty string; use IsNull to tell the two apart.
	Value(row, col int) string

	// IsNull reports whether the protocol null indicator is set for the
	// cell.
	IsNull(row, col int) bool

	// Clear releases the result. It is idempotent.
	Clear()
}

// Dialer opens a connection for the given connection string. Session and
// driver code accept a Dialer so tests can substitute the fake binding.
type Dialer func(connString string) (Conn, error)
