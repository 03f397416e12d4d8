// Package session implements the explicit/implicit transaction dispatch
// of spec.md §4.10 (C11), grounded on the teacher's top-level apply
// coordinator (internal/apply) that decides, per invocation, whether a
// unit of work runs standalone or inside an already-open transaction.
package session

import (
	"kvsql/internal/errs"
	"kvsql/internal/exec"
	"kvsql/internal/mvcc"
	"kvsql/internal/planner"
	"kvsql/internal/sql/ast"
	"kvsql/internal/sql/parser"
	"kvsql/internal/txn"
)

// Session holds the engine handle and the optional explicit-transaction
// slot. A Session is not safe for concurrent use; independent sessions
// serialize through the shared MVCC/KV mutex instead (spec.md §5).
type Session struct {
	mvcc *mvcc.MVCC
	tx   *txn.Transaction
}

// New returns a Session with no open explicit transaction.
func New(m *mvcc.MVCC) *Session {
	return &Session{mvcc: m}
}

// Execute parses and runs one SQL statement (spec.md §4.10).
func (s *Session) Execute(sql string) (*exec.ResultSet, error) {
	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, err
	}
	return s.executeStatement(stmt)
}

func (s *Session) executeStatement(stmt ast.Statement) (*exec.ResultSet, error) {
	switch st := stmt.(type) {
	case *ast.BeginStmt:
		return s.begin()
	case *ast.CommitStmt:
		return s.commit()
	case *ast.RollbackStmt:
		return s.rollback()
	case *ast.ExplainStmt:
		return s.explain(st)
	case *ast.FlushStmt:
		return s.flush()
	default:
		return s.executeOther(stmt)
	}
}

func (s *Session) begin() (*exec.ResultSet, error) {
	if s.tx != nil {
		return nil, errs.Internal("already in transaction")
	}
	t, err := txn.Begin(s.mvcc)
	if err != nil {
		return nil, err
	}
	s.tx = t
	return &exec.ResultSet{Kind: exec.KindBegin, Version: t.Version()}, nil
}

func (s *Session) commit() (*exec.ResultSet, error) {
	if s.tx == nil {
		return nil, errs.Internal("not in a transaction")
	}
	t := s.tx
	s.tx = nil
	if err := t.Commit(); err != nil {
		return nil, err
	}
	return &exec.ResultSet{Kind: exec.KindCommit, Version: t.Version()}, nil
}

func (s *Session) rollback() (*exec.ResultSet, error) {
	if s.tx == nil {
		return nil, errs.Internal("not in a transaction")
	}
	t := s.tx
	s.tx = nil
	if err := t.Rollback(); err != nil {
		return nil, err
	}
	return &exec.ResultSet{Kind: exec.KindRollback, Version: t.Version()}, nil
}

// explain builds the plan for the inner statement using the open explicit
// transaction if there is one, else a short-lived transaction committed
// immediately after planning (spec.md §4.10).
func (s *Session) explain(st *ast.ExplainStmt) (*exec.ResultSet, error) {
	if _, ok := st.Inner.(*ast.ExplainStmt); ok {
		return nil, errs.Parse("EXPLAIN EXPLAIN is not allowed")
	}

	t := s.tx
	shortLived := false
	if t == nil {
		newT, err := txn.Begin(s.mvcc)
		if err != nil {
			return nil, err
		}
		t = newT
		shortLived = true
	}

	node, err := planner.New(t).Build(st.Inner)
	if err != nil {
		if shortLived {
			t.Rollback()
		}
		return nil, err
	}
	plan := planner.Explain(node)

	if shortLived {
		if err := t.Commit(); err != nil {
			return nil, err
		}
	}
	return &exec.ResultSet{Kind: exec.KindExplain, Plan: plan}, nil
}

// flush enumerates every table and drops it, in or out of an explicit
// transaction; in implicit mode it commits at the end (spec.md §4.10).
func (s *Session) flush() (*exec.ResultSet, error) {
	t := s.tx
	implicit := false
	if t == nil {
		newT, err := txn.Begin(s.mvcc)
		if err != nil {
			return nil, err
		}
		t = newT
		implicit = true
	}

	names, err := t.GetAllTableNames()
	if err != nil {
		if implicit {
			t.Rollback()
		}
		return nil, err
	}
	for _, name := range names {
		if err := t.DropTable(name); err != nil {
			if implicit {
				t.Rollback()
			}
			return nil, err
		}
	}

	if implicit {
		if err := t.Commit(); err != nil {
			return nil, err
		}
	}
	return &exec.ResultSet{Kind: exec.KindFlush}, nil
}

// executeOther runs any statement besides BEGIN/COMMIT/ROLLBACK/EXPLAIN/
// FLUSH: against the open explicit transaction if there is one (errors
// propagate without auto-rollback), else against a fresh implicit
// transaction committed on success and rolled back on error.
func (s *Session) executeOther(stmt ast.Statement) (*exec.ResultSet, error) {
	if s.tx != nil {
		node, err := planner.New(s.tx).Build(stmt)
		if err != nil {
			return nil, err
		}
		return exec.Execute(s.tx, node)
	}

	t, err := txn.Begin(s.mvcc)
	if err != nil {
		return nil, err
	}
	node, err := planner.New(t).Build(stmt)
	if err != nil {
		t.Rollback()
		return nil, err
	}
	rs, err := exec.Execute(t, node)
	if err != nil {
		t.Rollback()
		return nil, err
	}
	if err := t.Commit(); err != nil {
		return nil, err
	}
	return rs, nil
}
