package fake

import "github.com/joacominatel/pgharness/internal/protocol"

// Result is a scripted protocol.Result. Cells are *string so tests can
// distinguish null (nil) from the empty string.
type Result struct {
	status  protocol.ResultStatus
	errMsg  string
	columns []string
	types   []uint32
	rows    [][]*string

	// Cleared counts Clear calls so tests can assert release on every
	// path.
	Cleared int
}

// CommandOK returns a rows-less success result.
func CommandOK() *Result {
	return &Result{status: protocol.CommandOk}
}

// Error returns a failed result carrying msg as the server error.
func Error(msg string) *Result {
	return &Result{status: protocol.ResultError, errMsg: msg}
}

// Tuples returns a TuplesOk result with the given column names and rows.
// Use S for a non-null cell and nil for a null one.
func Tuples(columns []string, rows ...[]*string) *Result {
	types := make([]uint32, len(columns))
	for i := range types {
		types[i] = 25 // text
	}
	return &Result{
		status:  protocol.TuplesOk,
		columns: columns,
		types:   types,
		rows:    rows,
	}
}

// S is shorthand for a non-null cell value.
func S(s string) *string {
	return &s
}

func (r *Result) Status() protocol.ResultStatus { return r.status }
func (r *Result) ErrorMessage() string          { return r.errMsg }
func (r *Result) NumFields() int                { return len(r.columns) }
func (r *Result) NumTuples() int                { return len(r.rows) }
func (r *Result) FieldName(col int) string      { return r.columns[col] }
func (r *Result) FieldType(col int) uint32      { return r.types[col] }

func (r *Result) Value(row, col int) string {
	if r.rows[row][col] == nil {
		return ""
	}
	return *r.rows[row][col]
}

func (r *Result) IsNull(row, col int) bool {
	return r.rows[row][col] == nil
}

// Clear implements protocol.Result.
func (r *Result) Clear() {
	r.Cleared++
}
