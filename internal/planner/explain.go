package planner

import (
	"fmt"
	"strings"

	"kvsql/internal/sql/ast"
)

// Explain renders a plan tree the way spec.md §4.12 describes: a fixed
// header and dashed separator, then a depth-first walk where each child
// line is prefixed with " -> ", one leading space accumulating per depth
// level.
func Explain(root Node) string {
	const header = "           SQL PLAN           "
	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteByte('\n')
	sb.WriteString(strings.Repeat("-", len(header)))
	sb.WriteByte('\n')
	writeNode(&sb, root, 0)
	return strings.TrimRight(sb.String(), "\n")
}

func writeNode(sb *strings.Builder, n Node, depth int) {
	if depth > 0 {
		sb.WriteString(strings.Repeat(" ", depth-1))
		sb.WriteString(" -> ")
	}
	sb.WriteString(describe(n))
	sb.WriteByte('\n')
	for _, child := range children(n) {
		writeNode(sb, child, depth+1)
	}
}

func children(n Node) []Node {
	switch v := n.(type) {
	case *Update:
		return []Node{v.Scan}
	case *Delete:
		return []Node{v.Scan}
	case *OrderBy:
		return []Node{v.Source}
	case *Limit:
		return []Node{v.Source}
	case *Offset:
		return []Node{v.Source}
	case *Projection:
		return []Node{v.Source}
	case *Aggregate:
		return []Node{v.Source}
	case *Having:
		return []Node{v.Source}
	case *NestedLoopJoin:
		return []Node{v.Left, v.Right}
	case *HashJoin:
		return []Node{v.Left, v.Right}
	default:
		return nil
	}
}

func describe(n Node) string {
	switch v := n.(type) {
	case *CreateTable:
		return "Create Table " + v.Table.Name
	case *DropTable:
		return "Drop Table " + v.Name
	case *Insert:
		return "Insert Into " + v.Table
	case *Scan:
		if v.Filter != nil {
			return fmt.Sprintf("Sequential Scan On Table %s (%s)", v.Table, renderComparison(v.Filter))
		}
		return "Sequential Scan On Table " + v.Table
	case *ScanIndex:
		return fmt.Sprintf("Index Scan On Table %s.%s(%s)", v.Table, v.Col, v.Value.String())
	case *PkIndex:
		return fmt.Sprintf("Primary Key Scan On Table %s(%s)", v.Table, v.Value.String())
	case *Update:
		return "Update Table " + v.Table
	case *Delete:
		return "Delete From Table " + v.Table
	case *OrderBy:
		parts := make([]string, len(v.Keys))
		for i, k := range v.Keys {
			dir := "ASC"
			if k.Desc {
				dir = "DESC"
			}
			parts[i] = k.Col + " " + dir
		}
		return "Order By " + strings.Join(parts, ", ")
	case *Limit:
		return fmt.Sprintf("Limit %d", v.N)
	case *Offset:
		return fmt.Sprintf("Offset %d", v.N)
	case *Projection:
		parts := make([]string, len(v.Items))
		for i, it := range v.Items {
			parts[i] = itemLabel(it.Expr, it.Alias)
		}
		return "Projection " + strings.Join(parts, ", ")
	case *NestedLoopJoin:
		return "Nested Loop Join" + joinCondSuffix(v.Condition)
	case *HashJoin:
		return "Hash Join" + joinCondSuffix(v.Condition)
	case *Aggregate:
		parts := make([]string, len(v.Items))
		for i, it := range v.Items {
			parts[i] = itemLabel(it.Expr, it.Alias)
		}
		desc := "Aggregate " + strings.Join(parts, ", ")
		if v.GroupBy != nil {
			desc += " Group By " + v.GroupBy.Name
		}
		return desc
	case *Having:
		return "Having " + renderComparison(v.Condition)
	case *TableSchema:
		return "Table Schema " + v.Name
	case *TableNames:
		return "Table Names"
	default:
		return "Unknown"
	}
}

func joinCondSuffix(cond *ast.Comparison) string {
	if cond == nil {
		return ""
	}
	return " On " + renderComparison(cond)
}

func itemLabel(e ast.Expr, alias string) string {
	if alias != "" {
		return alias
	}
	switch v := e.(type) {
	case *ast.ColumnRef:
		return v.Name
	case *ast.FuncCall:
		if v.Star {
			return v.Name + "(*)"
		}
		return v.Name + "(" + v.Arg.Name + ")"
	case *ast.Literal:
		return v.Value.String()
	default:
		return "expr"
	}
}

func renderExpr(e ast.Expr) string {
	switch v := e.(type) {
	case *ast.Literal:
		return v.Value.String()
	case *ast.ColumnRef:
		return v.Name
	case *ast.FuncCall:
		return itemLabel(v, "")
	case *ast.BinaryExpr:
		return renderExpr(v.Left) + " " + v.Op + " " + renderExpr(v.Right)
	default:
		return "?"
	}
}

func renderComparison(c *ast.Comparison) string {
	return renderExpr(c.Left) + " " + c.Op + " " + renderExpr(c.Right)
}
