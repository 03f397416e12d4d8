package exec

import (
	"strings"

	"kvsql/internal/errs"
	"kvsql/internal/planner"
	"kvsql/internal/sql/ast"
	"kvsql/internal/txn"
	"kvsql/internal/value"
)

// execAggregate computes one output row (no GROUP BY) or one row per
// distinct GROUP BY value, enforcing that every non-aggregate select
// expression is the GROUP BY field itself (spec.md §4.9 Aggregate).
func execAggregate(tx *txn.Transaction, n *planner.Aggregate) (*ResultSet, error) {
	rs, err := Execute(tx, n.Source)
	if err != nil {
		return nil, err
	}

	groupIdx := -1
	if n.GroupBy != nil {
		groupIdx = indexOf(rs.Columns, n.GroupBy.Name)
		if groupIdx < 0 {
			return nil, errs.Internal("unknown column %q", n.GroupBy.Name)
		}
	}

	for _, it := range n.Items {
		if _, ok := it.Expr.(*ast.FuncCall); ok {
			continue
		}
		ref, ok := it.Expr.(*ast.ColumnRef)
		if !ok {
			return nil, errs.Internal("unsupported aggregate select expression")
		}
		if n.GroupBy == nil || ref.Name != n.GroupBy.Name {
			return nil, errs.Internal("column %q must appear in GROUP BY or aggregate", ref.Name)
		}
	}

	columns := make([]string, len(n.Items))
	for i, it := range n.Items {
		columns[i] = outputColumnName(it)
	}

	if groupIdx < 0 {
		outRow, err := computeAggRow(n.Items, rs.Columns, rs.Rows)
		if err != nil {
			return nil, err
		}
		return &ResultSet{Kind: KindScan, Columns: columns, Rows: [][]value.Value{outRow}}, nil
	}

	type group struct {
		rows [][]value.Value
	}
	var order []any
	groups := map[any]*group{}
	for _, r := range rs.Rows {
		key := value.HashKey(r[groupIdx])
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, r)
	}

	rows := make([][]value.Value, 0, len(order))
	for _, key := range order {
		outRow, err := computeAggRow(n.Items, rs.Columns, groups[key].rows)
		if err != nil {
			return nil, err
		}
		rows = append(rows, outRow)
	}
	return &ResultSet{Kind: KindScan, Columns: columns, Rows: rows}, nil
}

func outputColumnName(it planner.AggItem) string {
	if it.Alias != "" {
		return it.Alias
	}
	switch v := it.Expr.(type) {
	case *ast.FuncCall:
		return strings.ToLower(v.Name)
	case *ast.ColumnRef:
		return v.Name
	default:
		return ""
	}
}

func computeAggRow(items []planner.AggItem, columns []string, rows [][]value.Value) ([]value.Value, error) {
	out := make([]value.Value, len(items))
	for i, it := range items {
		switch v := it.Expr.(type) {
		case *ast.FuncCall:
			val, err := computeFunc(v, columns, rows)
			if err != nil {
				return nil, err
			}
			out[i] = val
		case *ast.ColumnRef:
			idx := indexOf(columns, v.Name)
			if idx < 0 {
				return nil, errs.Internal("unknown column %q", v.Name)
			}
			if len(rows) == 0 {
				out[i] = value.NewNull()
			} else {
				out[i] = rows[0][idx]
			}
		default:
			return nil, errs.Internal("unsupported aggregate expression")
		}
	}
	return out, nil
}

// computeFunc implements COUNT/MIN/MAX/SUM/AVG's exact null-handling and
// return types (spec.md §4.9 Aggregate).
func computeFunc(fc *ast.FuncCall, columns []string, rows [][]value.Value) (value.Value, error) {
	name := strings.ToLower(fc.Name)
	if name == "count" && fc.Star {
		return value.NewInt(int64(len(rows))), nil
	}
	if fc.Arg == nil {
		return value.Value{}, errs.Internal("function %s requires an argument", fc.Name)
	}
	idx := indexOf(columns, fc.Arg.Name)
	if idx < 0 {
		return value.Value{}, errs.Internal("unknown column %q", fc.Arg.Name)
	}

	switch name {
	case "count":
		n := 0
		for _, r := range rows {
			if !r[idx].IsNull() {
				n++
			}
		}
		return value.NewInt(int64(n)), nil
	case "min", "max":
		var best value.Value
		has := false
		for _, r := range rows {
			v := r[idx]
			if v.IsNull() {
				continue
			}
			if !has {
				best, has = v, true
				continue
			}
			c := value.Compare(v, best)
			if (name == "min" && c < 0) || (name == "max" && c > 0) {
				best = v
			}
		}
		if !has {
			return value.NewNull(), nil
		}
		return best, nil
	case "sum", "avg":
		sum := 0.0
		count := 0
		for _, r := range rows {
			v := r[idx]
			if v.IsNull() {
				continue
			}
			if v.Kind() != value.Int && v.Kind() != value.Float {
				return value.Value{}, errs.Internal("%s requires a numeric column", fc.Name)
			}
			sum += numericOf(v)
			count++
		}
		if count == 0 {
			return value.NewNull(), nil
		}
		if name == "sum" {
			return value.NewFloat(sum), nil
		}
		return value.NewFloat(sum / float64(count)), nil
	default:
		return value.Value{}, errs.Internal("unknown function %s", fc.Name)
	}
}

// execHaving filters already-aggregated rows in the post-aggregation
// column namespace (aliases and function-name columns are visible).
func execHaving(tx *txn.Transaction, n *planner.Having) (*ResultSet, error) {
	rs, err := Execute(tx, n.Source)
	if err != nil {
		return nil, err
	}
	var rows [][]value.Value
	for _, r := range rs.Rows {
		v, err := evalComparison(n.Condition, row{columns: rs.Columns, values: r})
		if err != nil {
			return nil, err
		}
		if isTrue(v) {
			rows = append(rows, r)
		}
	}
	return &ResultSet{Kind: KindScan, Columns: rs.Columns, Rows: rows}, nil
}
