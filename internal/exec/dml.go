package exec

import (
	"fmt"
	"strings"

	"kvsql/internal/catalog"
	"kvsql/internal/errs"
	"kvsql/internal/planner"
	"kvsql/internal/sql/ast"
	"kvsql/internal/txn"
	"kvsql/internal/value"
)

func execCreateTable(tx *txn.Transaction, n *planner.CreateTable) (*ResultSet, error) {
	if err := tx.CreateTable(n.Table); err != nil {
		return nil, err
	}
	return &ResultSet{Kind: KindCreateTable, Name: n.Table.Name}, nil
}

func execDropTable(tx *txn.Transaction, n *planner.DropTable) (*ResultSet, error) {
	if err := tx.DropTable(n.Name); err != nil {
		return nil, err
	}
	return &ResultSet{Kind: KindDropTable, Name: n.Name}, nil
}

// execInsert realizes each value row (spec.md §4.9 Insert): aligns values
// by an explicit column list or by position, fills the tail from column
// defaults, and fails Internal on a non-nullable column with neither a
// value nor a default.
func execInsert(tx *txn.Transaction, n *planner.Insert) (*ResultSet, error) {
	tbl, err := tx.MustGetTable(n.Table)
	if err != nil {
		return nil, err
	}
	count := 0
	for _, exprRow := range n.Rows {
		full, err := alignInsertRow(tbl, n.Columns, exprRow)
		if err != nil {
			return nil, err
		}
		if err := tx.CreateRow(n.Table, full); err != nil {
			return nil, err
		}
		count++
	}
	return &ResultSet{Kind: KindInsert, Count: count}, nil
}

func alignInsertRow(tbl *catalog.Table, cols []string, exprRow []ast.Expr) ([]value.Value, error) {
	values := make([]value.Value, len(exprRow))
	for i, e := range exprRow {
		v, err := evalExpr(e, row{})
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	full := make([]value.Value, len(tbl.Columns))
	filled := make([]bool, len(tbl.Columns))

	if len(cols) > 0 {
		if len(cols) != len(values) {
			return nil, errs.Internal("column list has %d names but %d values given", len(cols), len(values))
		}
		for i, colName := range cols {
			_, idx := tbl.ColumnByName(colName)
			if idx < 0 {
				return nil, errs.Internal("unknown column %q", colName)
			}
			full[idx] = values[i]
			filled[idx] = true
		}
	} else {
		if len(values) > len(tbl.Columns) {
			return nil, errs.Internal("too many values for table %q", tbl.Name)
		}
		for i, v := range values {
			full[i] = v
			filled[i] = true
		}
	}

	for i, col := range tbl.Columns {
		if filled[i] {
			continue
		}
		if col.Default == nil {
			return nil, errs.Internal("column %q has no value and no default", col.Name)
		}
		full[i] = *col.Default
	}
	return full, nil
}

func execUpdate(tx *txn.Transaction, n *planner.Update) (*ResultSet, error) {
	rs, err := Execute(tx, n.Scan)
	if err != nil {
		return nil, err
	}
	tbl, err := tx.MustGetTable(n.Table)
	if err != nil {
		return nil, err
	}
	_, pkIdx := tbl.PrimaryKey()

	count := 0
	for _, r := range rs.Rows {
		newRow := append([]value.Value(nil), r...)
		for _, asg := range n.Assignments {
			_, idx := tbl.ColumnByName(asg.Column)
			if idx < 0 {
				return nil, errs.Internal("unknown column %q", asg.Column)
			}
			v, err := evalExpr(asg.Value, row{columns: rs.Columns, values: r})
			if err != nil {
				return nil, err
			}
			newRow[idx] = v
		}
		if err := tx.UpdateRow(n.Table, r[pkIdx], newRow); err != nil {
			return nil, err
		}
		count++
	}
	return &ResultSet{Kind: KindUpdate, Count: count}, nil
}

func execDelete(tx *txn.Transaction, n *planner.Delete) (*ResultSet, error) {
	rs, err := Execute(tx, n.Scan)
	if err != nil {
		return nil, err
	}
	tbl, err := tx.MustGetTable(n.Table)
	if err != nil {
		return nil, err
	}
	_, pkIdx := tbl.PrimaryKey()

	count := 0
	for _, r := range rs.Rows {
		if err := tx.DeleteRow(n.Table, r[pkIdx]); err != nil {
			return nil, err
		}
		count++
	}
	return &ResultSet{Kind: KindDelete, Count: count}, nil
}

func execTableNames(tx *txn.Transaction) (*ResultSet, error) {
	names, err := tx.GetAllTableNames()
	if err != nil {
		return nil, err
	}
	return &ResultSet{Kind: KindTableNames, Names: names}, nil
}

func execTableSchema(tx *txn.Transaction, n *planner.TableSchema) (*ResultSet, error) {
	tbl, err := tx.MustGetTable(n.Name)
	if err != nil {
		return nil, err
	}
	return &ResultSet{Kind: KindTableSchema, Schema: renderSchema(tbl)}, nil
}

func renderSchema(tbl *catalog.Table) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "TABLE %s: %d (\n", tbl.Name, len(tbl.Columns))
	for _, c := range tbl.Columns {
		sb.WriteString("  " + c.Name + " " + c.DataType.String())
		if c.IsPrimaryKey {
			sb.WriteString(" PRIMARY KEY")
		}
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if c.Default != nil {
			sb.WriteString(" DEFAULT " + c.Default.String())
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(")")
	return sb.String()
}
