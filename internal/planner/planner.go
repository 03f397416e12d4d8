package planner

import (
	"kvsql/internal/catalog"
	"kvsql/internal/errs"
	"kvsql/internal/sql/ast"
	"kvsql/internal/txn"
	"kvsql/internal/value"
)

// Planner rewrites an ast.Statement into a Node tree. It holds the active
// transaction because choosing Scan vs. ScanIndex vs. PkIndex requires
// reading table metadata during planning (spec.md §9).
type Planner struct {
	Tx *txn.Transaction
}

// New returns a Planner bound to tx.
func New(tx *txn.Transaction) *Planner { return &Planner{Tx: tx} }

// Build converts one statement into its plan tree. BEGIN, COMMIT,
// ROLLBACK, EXPLAIN and FLUSH are not planned here; they are handled
// directly by internal/session.
func (p *Planner) Build(stmt ast.Statement) (Node, error) {
	switch s := stmt.(type) {
	case *ast.CreateTableStmt:
		return p.buildCreateTable(s)
	case *ast.DropTableStmt:
		return &DropTable{Name: s.Name}, nil
	case *ast.InsertStmt:
		return &Insert{Table: s.Table, Columns: s.Columns, Rows: s.Rows}, nil
	case *ast.SelectStmt:
		return p.buildSelect(s)
	case *ast.UpdateStmt:
		return p.buildUpdate(s)
	case *ast.DeleteStmt:
		return p.buildDelete(s)
	case *ast.ShowTablesStmt:
		return &TableNames{}, nil
	case *ast.ShowTableStmt:
		return &TableSchema{Name: s.Name}, nil
	default:
		return nil, errs.Internal("this statement has no standalone plan")
	}
}

// buildColumn resolves one column definition's nullable/default facts,
// including the "neither NULL/NOT NULL nor DEFAULT given" open question
// (spec.md §9): non-PK columns land at nullable=true/default=Null, PK
// columns at nullable=false/no default.
func buildColumn(cd ast.ColumnDef) catalog.Column {
	col := catalog.Column{
		Name:         cd.Name,
		DataType:     cd.DataType,
		IsPrimaryKey: cd.IsPrimaryKey,
		IsIndex:      cd.IsIndex,
	}
	switch {
	case cd.SawNotNull:
		col.Nullable = false
	case cd.SawNull:
		col.Nullable = true
	case cd.IsPrimaryKey:
		col.Nullable = false
	default:
		col.Nullable = true
	}
	if cd.SawDefault {
		v := cd.DefaultValue
		col.Default = &v
	} else if col.Nullable {
		n := value.NewNull()
		col.Default = &n
	}
	return col
}

func (p *Planner) buildCreateTable(stmt *ast.CreateTableStmt) (Node, error) {
	cols := make([]catalog.Column, 0, len(stmt.Columns))
	for _, cd := range stmt.Columns {
		cols = append(cols, buildColumn(cd))
	}
	return &CreateTable{Table: &catalog.Table{Name: stmt.Name, Columns: cols}}, nil
}

func (p *Planner) buildUpdate(stmt *ast.UpdateStmt) (Node, error) {
	scan, err := p.buildLeaf(stmt.Table, stmt.Where)
	if err != nil {
		return nil, err
	}
	return &Update{Table: stmt.Table, Scan: scan, Assignments: stmt.Set}, nil
}

func (p *Planner) buildDelete(stmt *ast.DeleteStmt) (Node, error) {
	scan, err := p.buildLeaf(stmt.Table, stmt.Where)
	if err != nil {
		return nil, err
	}
	return &Delete{Table: stmt.Table, Scan: scan}, nil
}

func (p *Planner) buildSelect(stmt *ast.SelectStmt) (Node, error) {
	node, err := p.buildFrom(stmt.From, stmt.Where)
	if err != nil {
		return nil, err
	}

	hasAgg := stmt.GroupBy != nil
	if !stmt.Star {
		for _, item := range stmt.Items {
			if _, ok := item.Expr.(*ast.FuncCall); ok {
				hasAgg = true
			}
		}
	}

	if hasAgg {
		items := make([]AggItem, 0, len(stmt.Items))
		for _, it := range stmt.Items {
			items = append(items, AggItem{Expr: it.Expr, Alias: it.Alias})
		}
		node = &Aggregate{Source: node, Items: items, GroupBy: stmt.GroupBy}
	}

	if stmt.Having != nil {
		node = &Having{Source: node, Condition: stmt.Having}
	}

	if len(stmt.OrderBy) > 0 {
		keys := make([]OrderKey, 0, len(stmt.OrderBy))
		for _, o := range stmt.OrderBy {
			keys = append(keys, OrderKey{Col: o.Column, Desc: o.Desc})
		}
		node = &OrderBy{Source: node, Keys: keys}
	}

	if stmt.Offset != nil {
		node = &Offset{Source: node, N: *stmt.Offset}
	}
	if stmt.Limit != nil {
		node = &Limit{Source: node, N: *stmt.Limit}
	}

	if !stmt.Star && !hasAgg && len(stmt.Items) > 0 {
		items := make([]ProjItem, 0, len(stmt.Items))
		for _, it := range stmt.Items {
			items = append(items, ProjItem{Expr: it.Expr, Alias: it.Alias})
		}
		node = &Projection{Source: node, Items: items}
	}

	return node, nil
}

// buildFrom recurses over a FROM clause, rewriting RIGHT JOIN into a LEFT
// JOIN with swapped sides and choosing NestedLoopJoin for CROSS vs.
// HashJoin otherwise (spec.md §4.8 step 1).
func (p *Planner) buildFrom(item *ast.FromItem, filter *ast.Comparison) (Node, error) {
	if item.JoinType == ast.NoJoin {
		return p.buildLeaf(item.Table, filter)
	}

	left, right, jt, cond := item.Left, item.Right, item.JoinType, item.On
	if jt == ast.RightJoin {
		left, right = right, left
		jt = ast.LeftJoin
		if cond != nil {
			cond = swapSides(cond)
		}
	}

	leftNode, err := p.buildFrom(left, filter)
	if err != nil {
		return nil, err
	}
	rightNode, err := p.buildFrom(right, filter)
	if err != nil {
		return nil, err
	}

	if jt == ast.CrossJoin {
		return &NestedLoopJoin{Left: leftNode, Right: rightNode, Condition: cond, Outer: false}, nil
	}
	return &HashJoin{Left: leftNode, Right: rightNode, Condition: cond, Outer: jt == ast.LeftJoin}, nil
}

func swapSides(cmp *ast.Comparison) *ast.Comparison {
	return &ast.Comparison{Op: flipOp(cmp.Op), Left: cmp.Right, Right: cmp.Left}
}

func flipOp(op string) string {
	switch op {
	case ">":
		return "<"
	case ">=":
		return "<="
	case "<":
		return ">"
	case "<=":
		return ">="
	default:
		return op // = and != are symmetric
	}
}

// buildLeaf looks up tableName's schema and rewrites filter into
// PkIndex/ScanIndex/Scan per spec.md §4.8 step 1.
func (p *Planner) buildLeaf(tableName string, filter *ast.Comparison) (Node, error) {
	tbl, ok, err := p.Tx.GetTable(tableName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Internal("table %q does not exist", tableName)
	}

	if filter != nil {
		if col, constVal, ok := matchColumnConst(tbl, filter); ok {
			if pk, _ := tbl.PrimaryKey(); pk != nil && pk.Name == col {
				return &PkIndex{Table: tableName, Value: constVal}, nil
			}
			for _, ic := range tbl.IndexedColumns() {
				if ic.Name == col {
					return &ScanIndex{Table: tableName, Col: col, Value: constVal}, nil
				}
			}
		}
	}

	var f *ast.Comparison
	if filter != nil && filterReferencesTable(tbl, filter) {
		f = filter
	}
	return &Scan{Table: tableName, Filter: f}, nil
}

// matchColumnConst reports whether cmp is exactly `col = constant` (either
// operand order) for a column of tbl.
func matchColumnConst(tbl *catalog.Table, cmp *ast.Comparison) (string, value.Value, bool) {
	if cmp.Op != "=" {
		return "", value.Value{}, false
	}
	if ref, ok := cmp.Left.(*ast.ColumnRef); ok {
		if lit, ok := cmp.Right.(*ast.Literal); ok {
			if c, _ := tbl.ColumnByName(ref.Name); c != nil {
				return ref.Name, lit.Value, true
			}
		}
	}
	if ref, ok := cmp.Right.(*ast.ColumnRef); ok {
		if lit, ok := cmp.Left.(*ast.Literal); ok {
			if c, _ := tbl.ColumnByName(ref.Name); c != nil {
				return ref.Name, lit.Value, true
			}
		}
	}
	return "", value.Value{}, false
}

func filterReferencesTable(tbl *catalog.Table, cmp *ast.Comparison) bool {
	return exprReferencesTable(tbl, cmp.Left) || exprReferencesTable(tbl, cmp.Right)
}

func exprReferencesTable(tbl *catalog.Table, e ast.Expr) bool {
	switch v := e.(type) {
	case *ast.ColumnRef:
		c, _ := tbl.ColumnByName(v.Name)
		return c != nil
	case *ast.BinaryExpr:
		return exprReferencesTable(tbl, v.Left) || exprReferencesTable(tbl, v.Right)
	case *ast.FuncCall:
		return v.Arg != nil && exprReferencesTable(tbl, v.Arg)
	default:
		return false
	}
}
