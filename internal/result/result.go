// Package result holds the structured form of a statement result and the
// materializer that builds it from a raw protocol result.
package result

import (
	"strings"

	"github.com/joacominatel/pgharness/internal/protocol"
)

// Cell is one result cell. Valid is false only when the protocol null
// indicator was set; an empty but non-null cell is Valid with an empty
// String. The two must never be conflated.
type Cell struct {
	String string
	Valid  bool
}

// QueryResult is the structured outcome of one statement execution.
// Columns, Types and Rows are empty unless Status is TuplesOk; Rendered is
// empty unless Rows is non-empty.
type QueryResult struct {
	Status       protocol.ResultStatus
	ErrorMessage string
	Columns      []string
	Types        []uint32
	Rows         [][]Cell
	Rendered     string
}

// Ok reports whether the statement executed successfully.
func (q *QueryResult) Ok() bool {
	return q.Status == protocol.CommandOk || q.Status == protocol.TuplesOk
}

// Materialize converts a raw result into a QueryResult. The owning
// connection supplies the error text for failed results. Materialize does
// not release res; the caller must Clear it on every path.
func Materialize(res protocol.Result, conn protocol.Conn) *QueryResult {
	qr := &QueryResult{Status: res.Status()}

	switch qr.Status {
	case protocol.CommandOk:
		return qr
	case protocol.TuplesOk:
	default:
		qr.ErrorMessage = conn.ErrorMessage()
		return qr
	}

	ncols := res.NumFields()
	nrows := res.NumTuples()

	qr.Columns = make([]string, ncols)
	qr.Types = make([]uint32, ncols)
	for col := range ncols {
		qr.Columns[col] = res.FieldName(col)
		qr.Types[col] = res.FieldType(col)
	}

	qr.Rows = make([][]Cell, nrows)
	for row := range nrows {
		cells := make([]Cell, ncols)
		for col := range ncols {
			text := res.Value(row, col)
			cell := Cell{String: text, Valid: true}
			// The null indicator is only consulted when the stored
			// text is empty; a non-empty cell is never null.
			if text == "" && res.IsNull(row, col) {
				cell.Valid = false
			}
			cells[col] = cell
		}
		qr.Rows[row] = cells
	}

	qr.Rendered = render(qr.Rows)
	return qr
}

// render joins cells with "|" and rows with "\n", matching psql's unaligned
// tuples-only output. Zero rows render as the empty string, no placeholder
// line.
func render(rows [][]Cell) string {
	if len(rows) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, row := range rows {
		if i > 0 {
			sb.WriteByte('\n')
		}
		for j, cell := range row {
			if j > 0 {
				sb.WriteByte('|')
			}
			sb.WriteString(cell.String)
		}
	}
	return sb.String()
}
