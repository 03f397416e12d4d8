package exec

import (
	"math"
	"sort"

	"kvsql/internal/errs"
	"kvsql/internal/planner"
	"kvsql/internal/sql/ast"
	"kvsql/internal/txn"
	"kvsql/internal/value"
)

func execScan(tx *txn.Transaction, n *planner.Scan) (*ResultSet, error) {
	tbl, err := tx.MustGetTable(n.Table)
	if err != nil {
		return nil, err
	}
	columns := tbl.ColumnNames()

	var filter txn.Filter
	if n.Filter != nil {
		filter = func(r []value.Value) (bool, error) {
			v, err := evalComparison(n.Filter, row{columns: columns, values: r})
			if err != nil {
				return false, err
			}
			return isTrue(v), nil
		}
	}

	rows, err := tx.Scan(n.Table, filter)
	if err != nil {
		return nil, err
	}
	return &ResultSet{Kind: KindScan, Columns: columns, Rows: rows}, nil
}

// execScanIndex loads the PK set under one secondary-index entry, sorts
// it by the Value total order, and reads each row (spec.md §4.9
// ScanIndex).
func execScanIndex(tx *txn.Transaction, n *planner.ScanIndex) (*ResultSet, error) {
	tbl, err := tx.MustGetTable(n.Table)
	if err != nil {
		return nil, err
	}
	pks, err := tx.LoadIndex(n.Table, n.Col, n.Value)
	if err != nil {
		return nil, err
	}
	sort.Slice(pks, func(i, j int) bool { return value.Compare(pks[i], pks[j]) < 0 })

	columns := tbl.ColumnNames()
	var rows [][]value.Value
	for _, pk := range pks {
		r, ok, err := tx.ReadRowByPK(n.Table, pk)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, r)
		}
	}
	return &ResultSet{Kind: KindScan, Columns: columns, Rows: rows}, nil
}

// execPkIndex normalizes a Float lookup value with a zero fractional part
// down to Int before the direct row read (spec.md §4.9 PkIndex).
func execPkIndex(tx *txn.Transaction, n *planner.PkIndex) (*ResultSet, error) {
	tbl, err := tx.MustGetTable(n.Table)
	if err != nil {
		return nil, err
	}
	columns := tbl.ColumnNames()

	lookup := normalizePkValue(n.Value)
	r, ok, err := tx.ReadRowByPK(n.Table, lookup)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &ResultSet{Kind: KindScan, Columns: columns}, nil
	}
	return &ResultSet{Kind: KindScan, Columns: columns, Rows: [][]value.Value{r}}, nil
}

func normalizePkValue(v value.Value) value.Value {
	if v.Kind() == value.Float {
		f := v.AsFloat()
		if f == math.Trunc(f) {
			return value.NewInt(int64(f))
		}
	}
	return v
}

// execProjection only supports plain column references in the select
// list (spec.md §4.9 Projection); aggregate expressions are handled
// upstream by Aggregate/Having and never reach here.
func execProjection(tx *txn.Transaction, n *planner.Projection) (*ResultSet, error) {
	rs, err := Execute(tx, n.Source)
	if err != nil {
		return nil, err
	}

	idxs := make([]int, len(n.Items))
	columns := make([]string, len(n.Items))
	for i, it := range n.Items {
		ref, ok := it.Expr.(*ast.ColumnRef)
		if !ok {
			return nil, errs.Internal("projection only supports plain column references")
		}
		idx := indexOf(rs.Columns, ref.Name)
		if idx < 0 {
			return nil, errs.Internal("unknown column %q", ref.Name)
		}
		idxs[i] = idx
		if it.Alias != "" {
			columns[i] = it.Alias
		} else {
			columns[i] = ref.Name
		}
	}

	rows := make([][]value.Value, len(rs.Rows))
	for i, r := range rs.Rows {
		out := make([]value.Value, len(idxs))
		for j, idx := range idxs {
			out[j] = r[idx]
		}
		rows[i] = out
	}
	return &ResultSet{Kind: KindScan, Columns: columns, Rows: rows}, nil
}

// execOrderBy sorts by each key in turn, later keys breaking ties, Desc
// reversing the per-key comparison (spec.md §4.9 OrderBy).
func execOrderBy(tx *txn.Transaction, n *planner.OrderBy) (*ResultSet, error) {
	rs, err := Execute(tx, n.Source)
	if err != nil {
		return nil, err
	}

	idxs := make([]int, len(n.Keys))
	for i, k := range n.Keys {
		idx := indexOf(rs.Columns, k.Col)
		if idx < 0 {
			return nil, errs.Internal("unknown column %q", k.Col)
		}
		idxs[i] = idx
	}

	rows := append([][]value.Value(nil), rs.Rows...)
	sort.SliceStable(rows, func(i, j int) bool {
		for ki, idx := range idxs {
			c := value.Compare(rows[i][idx], rows[j][idx])
			if n.Keys[ki].Desc {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	return &ResultSet{Kind: KindScan, Columns: rs.Columns, Rows: rows}, nil
}

func execLimit(tx *txn.Transaction, n *planner.Limit) (*ResultSet, error) {
	rs, err := Execute(tx, n.Source)
	if err != nil {
		return nil, err
	}
	rows := rs.Rows
	if n.N >= 0 && int64(len(rows)) > n.N {
		rows = rows[:n.N]
	}
	return &ResultSet{Kind: KindScan, Columns: rs.Columns, Rows: rows}, nil
}

func execOffset(tx *txn.Transaction, n *planner.Offset) (*ResultSet, error) {
	rs, err := Execute(tx, n.Source)
	if err != nil {
		return nil, err
	}
	rows := rs.Rows
	switch {
	case n.N <= 0:
	case n.N >= int64(len(rows)):
		rows = nil
	default:
		rows = rows[n.N:]
	}
	return &ResultSet{Kind: KindScan, Columns: rs.Columns, Rows: rows}, nil
}
