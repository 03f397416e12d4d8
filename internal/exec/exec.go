package exec

import (
	"kvsql/internal/errs"
	"kvsql/internal/planner"
	"kvsql/internal/txn"
)

// Execute dispatches n to its concrete executor and returns its
// ResultSet, walking the plan tree pull-style: each operator executes its
// children eagerly and materializes the full result in memory (spec.md
// §4.9 — no streaming iterators).
func Execute(tx *txn.Transaction, n planner.Node) (*ResultSet, error) {
	switch v := n.(type) {
	case *planner.CreateTable:
		return execCreateTable(tx, v)
	case *planner.DropTable:
		return execDropTable(tx, v)
	case *planner.Insert:
		return execInsert(tx, v)
	case *planner.Update:
		return execUpdate(tx, v)
	case *planner.Delete:
		return execDelete(tx, v)
	case *planner.TableNames:
		return execTableNames(tx)
	case *planner.TableSchema:
		return execTableSchema(tx, v)
	case *planner.Scan:
		return execScan(tx, v)
	case *planner.ScanIndex:
		return execScanIndex(tx, v)
	case *planner.PkIndex:
		return execPkIndex(tx, v)
	case *planner.Projection:
		return execProjection(tx, v)
	case *planner.OrderBy:
		return execOrderBy(tx, v)
	case *planner.Limit:
		return execLimit(tx, v)
	case *planner.Offset:
		return execOffset(tx, v)
	case *planner.NestedLoopJoin:
		return execNestedLoopJoin(tx, v)
	case *planner.HashJoin:
		return execHashJoin(tx, v)
	case *planner.Aggregate:
		return execAggregate(tx, v)
	case *planner.Having:
		return execHaving(tx, v)
	default:
		return nil, errs.Internal("plan node cannot be executed")
	}
}
