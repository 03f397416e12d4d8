// Package planner rewrites a parsed ast.Statement into a tree of physical
// plan nodes: a small closed set of node kinds (spec.md §4.8's node set
// and Scan/ScanIndex/PkIndex rewrite rule). The nodes carry no formatting
// methods of their own; Explain renders every kind through the single
// describe() switch in explain.go, recursing over children().
package planner

import (
	"kvsql/internal/catalog"
	"kvsql/internal/sql/ast"
	"kvsql/internal/value"
)

// Node is one physical plan operator.
type Node interface{ isNode() }

type CreateTable struct{ Table *catalog.Table }

type DropTable struct{ Name string }

// Insert carries the raw per-row expressions; executor resolves column
// alignment, defaults and type checks against the live schema (spec.md
// §4.9 Insert).
type Insert struct {
	Table   string
	Columns []string
	Rows    [][]ast.Expr
}

type Scan struct {
	Table  string
	Filter *ast.Comparison
}

type ScanIndex struct {
	Table string
	Col   string
	Value value.Value
}

type PkIndex struct {
	Table string
	Value value.Value
}

type Update struct {
	Table       string
	Scan        Node
	Assignments []ast.Assignment
}

type Delete struct {
	Table string
	Scan  Node
}

type OrderKey struct {
	Col  string
	Desc bool
}

type OrderBy struct {
	Source Node
	Keys   []OrderKey
}

type Limit struct {
	Source Node
	N      int64
}

type Offset struct {
	Source Node
	N      int64
}

type ProjItem struct {
	Expr  ast.Expr
	Alias string
}

type Projection struct {
	Source Node
	Items  []ProjItem
}

type NestedLoopJoin struct {
	Left, Right Node
	Condition   *ast.Comparison
	Outer       bool
}

type HashJoin struct {
	Left, Right Node
	Condition   *ast.Comparison
	Outer       bool
}

type AggItem struct {
	Expr  ast.Expr // *ast.FuncCall or *ast.ColumnRef (passthrough, must equal GroupBy)
	Alias string
}

type Aggregate struct {
	Source  Node
	Items   []AggItem
	GroupBy *ast.ColumnRef
}

type Having struct {
	Source    Node
	Condition *ast.Comparison
}

type TableSchema struct{ Name string }

type TableNames struct{}

func (*CreateTable) isNode()    {}
func (*DropTable) isNode()      {}
func (*Insert) isNode()         {}
func (*Scan) isNode()           {}
func (*ScanIndex) isNode()      {}
func (*PkIndex) isNode()        {}
func (*Update) isNode()         {}
func (*Delete) isNode()         {}
func (*OrderBy) isNode()        {}
func (*Limit) isNode()          {}
func (*Offset) isNode()         {}
func (*Projection) isNode()     {}
func (*NestedLoopJoin) isNode() {}
func (*HashJoin) isNode()       {}
func (*Aggregate) isNode()      {}
func (*Having) isNode()         {}
func (*TableSchema) isNode()    {}
func (*TableNames) isNode()     {}
