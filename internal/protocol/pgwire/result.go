package pgwire

import (
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/joacominatel/pgharness/internal/protocol"
)

// execResult adapts one pgconn result to the binding contract. Rows hold the
// raw wire bytes: a nil slice is the protocol null indicator, a zero-length
// slice is an empty string.
type execResult struct {
	status protocol.ResultStatus
	errMsg string
	fields []pgconn.FieldDescription
	rows   [][][]byte
}

func adaptResult(res *pgconn.Result, c *Conn) protocol.Result {
	if res.Err != nil {
		c.noteError(res.Err)
		return &execResult{status: protocol.ResultError, errMsg: c.errMsg}
	}
	status := protocol.CommandOk
	if len(res.FieldDescriptions) > 0 {
		status = protocol.TuplesOk
	}
	return &execResult{
		status: status,
		fields: res.FieldDescriptions,
		rows:   res.Rows,
	}
}

func (r *execResult) Status() protocol.ResultStatus { return r.status }
func (r *execResult) ErrorMessage() string          { return r.errMsg }
func (r *execResult) NumFields() int                { return len(r.fields) }
func (r *execResult) NumTuples() int                { return len(r.rows) }

func (r *execResult) FieldName(col int) string {
	return r.fields[col].Name
}

func (r *execResult) FieldType(col int) uint32 {
	return r.fields[col].DataTypeOID
}

func (r *execResult) Value(row, col int) string {
	return string(r.rows[row][col])
}

func (r *execResult) IsNull(row, col int) bool {
	return r.rows[row][col] == nil
}

// Clear releases the row data.
func (r *execResult) Clear() {
	r.fields = nil
	r.rows = nil
}
