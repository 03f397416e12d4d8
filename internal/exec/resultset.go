// Package exec walks a planner.Node tree and executes it against a live
// txn.Transaction, grounded on the teacher's apply-plan-to-database shape
// (internal/apply) generalized from schema migration to row-level query
// execution, pull-based and single-threaded per spec.md §4.9.
package exec

import (
	"fmt"
	"strings"

	"kvsql/internal/value"
)

// Kind tags which ResultSet variant is populated.
type Kind int

const (
	KindCreateTable Kind = iota
	KindDropTable
	KindInsert
	KindUpdate
	KindDelete
	KindScan
	KindBegin
	KindCommit
	KindRollback
	KindTableNames
	KindTableSchema
	KindExplain
	KindFlush
)

// ResultSet is the uniform return value of every executor (spec.md §4.9).
type ResultSet struct {
	Kind Kind

	Name string // CreateTable / DropTable

	Count int // Insert / Update / Delete

	Columns []string // Scan
	Rows    [][]value.Value

	Version uint64 // Begin / Commit / Rollback

	Names []string // TableNames

	Schema string // TableSchema, pre-rendered

	Plan string // Explain
}

// String renders a ResultSet the way the embedding session protocol does
// (spec.md §6.3).
func (r *ResultSet) String() string {
	switch r.Kind {
	case KindCreateTable:
		return "CREATE TABLE " + r.Name
	case KindDropTable:
		return "DROP TABLE " + r.Name
	case KindInsert:
		return fmt.Sprintf("INSERT %d rows", r.Count)
	case KindUpdate:
		return fmt.Sprintf("UPDATE %d rows", r.Count)
	case KindDelete:
		return fmt.Sprintf("DELETE %d rows", r.Count)
	case KindFlush:
		return "FLUSH DB"
	case KindBegin:
		return fmt.Sprintf("TRANSACTION %d BEGIN", r.Version)
	case KindCommit:
		return fmt.Sprintf("TRANSACTION %d COMMIT", r.Version)
	case KindRollback:
		return fmt.Sprintf("TRANSACTION %d ROLLBACK", r.Version)
	case KindTableNames:
		if len(r.Names) == 0 {
			return "No tables found."
		}
		return strings.Join(r.Names, "\n")
	case KindTableSchema:
		return r.Schema
	case KindExplain:
		return r.Plan
	case KindScan:
		return r.renderTable()
	default:
		return ""
	}
}

func (r *ResultSet) renderTable() string {
	widths := make([]int, len(r.Columns))
	for i, c := range r.Columns {
		widths[i] = len(c)
	}
	cells := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		cells[i] = make([]string, len(row))
		for j, v := range row {
			s := v.String()
			cells[i][j] = s
			if len(s) > widths[j] {
				widths[j] = len(s)
			}
		}
	}

	var sb strings.Builder
	for i, c := range r.Columns {
		if i > 0 {
			sb.WriteString(" |")
		}
		sb.WriteString(padRight(c, widths[i]))
	}
	sb.WriteByte('\n')
	for i, w := range widths {
		if i > 0 {
			sb.WriteString("-+")
		}
		sb.WriteString(strings.Repeat("-", w))
	}
	sb.WriteByte('\n')
	for _, row := range cells {
		for i, c := range row {
			if i > 0 {
				sb.WriteString(" |")
			}
			sb.WriteString(padRight(c, widths[i]))
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "(%d rows)", len(r.Rows))
	return sb.String()
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}
