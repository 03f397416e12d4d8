package exec

import (
	"kvsql/internal/errs"
	"kvsql/internal/planner"
	"kvsql/internal/sql/ast"
	"kvsql/internal/txn"
	"kvsql/internal/value"
)

func concatRow(l, r []value.Value) []value.Value {
	out := make([]value.Value, 0, len(l)+len(r))
	out = append(out, l...)
	out = append(out, r...)
	return out
}

func nullRow(n int) []value.Value {
	out := make([]value.Value, n)
	for i := range out {
		out[i] = value.NewNull()
	}
	return out
}

// execNestedLoopJoin computes left x right, evaluating an optional
// condition over each combined row; CROSS JOIN is the condition-less case
// (spec.md §4.9 NestedLoopJoin).
func execNestedLoopJoin(tx *txn.Transaction, n *planner.NestedLoopJoin) (*ResultSet, error) {
	left, err := Execute(tx, n.Left)
	if err != nil {
		return nil, err
	}
	right, err := Execute(tx, n.Right)
	if err != nil {
		return nil, err
	}
	columns := concatColumns(left.Columns, right.Columns)

	var rows [][]value.Value
	for _, l := range left.Rows {
		matched := false
		for _, r := range right.Rows {
			include := true
			if n.Condition != nil {
				v, err := evalComparison(n.Condition, row{columns: columns, values: concatRow(l, r)})
				if err != nil {
					return nil, err
				}
				include = isTrue(v)
			}
			if include {
				matched = true
				rows = append(rows, concatRow(l, r))
			}
		}
		if n.Outer && !matched {
			rows = append(rows, concatRow(l, nullRow(len(right.Columns))))
		}
	}
	return &ResultSet{Kind: KindScan, Columns: columns, Rows: rows}, nil
}

// execHashJoin requires a single equality between two field references
// (spec.md §4.9 HashJoin); it builds a hash map keyed by the right
// column's value and probes it once per left row.
func execHashJoin(tx *txn.Transaction, n *planner.HashJoin) (*ResultSet, error) {
	left, err := Execute(tx, n.Left)
	if err != nil {
		return nil, err
	}
	right, err := Execute(tx, n.Right)
	if err != nil {
		return nil, err
	}
	if n.Condition == nil || n.Condition.Op != "=" {
		return nil, errs.Internal("hash join requires a single equality condition")
	}
	leftIdx, rightIdx, err := resolveJoinColumns(n.Condition, left.Columns, right.Columns)
	if err != nil {
		return nil, err
	}

	buckets := make(map[any][]int, len(right.Rows))
	for i, r := range right.Rows {
		key := value.HashKey(r[rightIdx])
		buckets[key] = append(buckets[key], i)
	}

	columns := concatColumns(left.Columns, right.Columns)
	var rows [][]value.Value
	for _, l := range left.Rows {
		matches := buckets[value.HashKey(l[leftIdx])]
		if len(matches) == 0 {
			if n.Outer {
				rows = append(rows, concatRow(l, nullRow(len(right.Columns))))
			}
			continue
		}
		for _, ri := range matches {
			rows = append(rows, concatRow(l, right.Rows[ri]))
		}
	}
	return &ResultSet{Kind: KindScan, Columns: columns, Rows: rows}, nil
}

func concatColumns(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func resolveJoinColumns(cond *ast.Comparison, leftCols, rightCols []string) (int, int, error) {
	lref, lok := cond.Left.(*ast.ColumnRef)
	rref, rok := cond.Right.(*ast.ColumnRef)
	if !lok || !rok {
		return 0, 0, errs.Internal("hash join condition must compare two columns")
	}
	if li, ri := indexOf(leftCols, lref.Name), indexOf(rightCols, rref.Name); li >= 0 && ri >= 0 {
		return li, ri, nil
	}
	if li, ri := indexOf(leftCols, rref.Name), indexOf(rightCols, lref.Name); li >= 0 && ri >= 0 {
		return li, ri, nil
	}
	return 0, 0, errs.Internal("hash join condition columns not found on either side")
}
