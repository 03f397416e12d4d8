package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kvsql/internal/kv"
	"kvsql/internal/mvcc"
	"kvsql/internal/sql/ast"
	"kvsql/internal/sql/parser"
	"kvsql/internal/txn"
)

func newTestTx(t *testing.T) *txn.Transaction {
	t.Helper()
	m := mvcc.New(kv.NewMemoryKV())
	tx, err := txn.Begin(m)
	require.NoError(t, err)
	return tx
}

func mustParse(t *testing.T, sql string) ast.Statement {
	t.Helper()
	stmt, err := parser.Parse(sql)
	require.NoError(t, err)
	return stmt
}

func seedTable(t *testing.T, tx *txn.Transaction, ddl string) {
	t.Helper()
	p := New(tx)
	node, err := p.Build(mustParse(t, ddl))
	require.NoError(t, err)
	ct, ok := node.(*CreateTable)
	require.True(t, ok)
	require.NoError(t, tx.CreateTable(ct.Table))
}

func TestBuildSelectStarIsPlainScan(t *testing.T) {
	tx := newTestTx(t)
	seedTable(t, tx, `CREATE TABLE t1 (id INT PRIMARY KEY, a INT);`)

	node, err := New(tx).Build(mustParse(t, `SELECT * FROM t1;`))
	require.NoError(t, err)
	scan, ok := node.(*Scan)
	require.True(t, ok)
	require.Nil(t, scan.Filter)
}

func TestBuildSelectWherePkEqualityUsesPkIndex(t *testing.T) {
	tx := newTestTx(t)
	seedTable(t, tx, `CREATE TABLE t1 (id INT PRIMARY KEY, a INT);`)

	node, err := New(tx).Build(mustParse(t, `SELECT * FROM t1 WHERE id = 3;`))
	require.NoError(t, err)
	_, ok := node.(*PkIndex)
	require.True(t, ok)
}

func TestBuildSelectWhereIndexedColumnUsesScanIndex(t *testing.T) {
	tx := newTestTx(t)
	seedTable(t, tx, `CREATE TABLE t1 (id INT PRIMARY KEY, a INT INDEX);`)

	node, err := New(tx).Build(mustParse(t, `SELECT * FROM t1 WHERE a = 7;`))
	require.NoError(t, err)
	si, ok := node.(*ScanIndex)
	require.True(t, ok)
	require.Equal(t, "a", si.Col)
}

func TestBuildSelectWhereNonIndexedColumnUsesFilteredScan(t *testing.T) {
	tx := newTestTx(t)
	seedTable(t, tx, `CREATE TABLE t1 (id INT PRIMARY KEY, a INT);`)

	node, err := New(tx).Build(mustParse(t, `SELECT * FROM t1 WHERE a > 1;`))
	require.NoError(t, err)
	scan, ok := node.(*Scan)
	require.True(t, ok)
	require.NotNil(t, scan.Filter)
}

func TestBuildSelectRightJoinIsRewrittenToLeftJoin(t *testing.T) {
	tx := newTestTx(t)
	seedTable(t, tx, `CREATE TABLE a (x INT PRIMARY KEY);`)
	seedTable(t, tx, `CREATE TABLE b (y INT PRIMARY KEY);`)

	node, err := New(tx).Build(mustParse(t, `SELECT * FROM a RIGHT JOIN b ON x > y;`))
	require.NoError(t, err)
	hj, ok := node.(*HashJoin)
	require.True(t, ok)
	require.True(t, hj.Outer)
	require.Equal(t, "<", hj.Condition.Op)

	leftScan := hj.Left.(*Scan)
	require.Equal(t, "b", leftScan.Table)
	rightScan := hj.Right.(*Scan)
	require.Equal(t, "a", rightScan.Table)
}

func TestBuildSelectCrossJoinUsesNestedLoop(t *testing.T) {
	tx := newTestTx(t)
	seedTable(t, tx, `CREATE TABLE a (id INT PRIMARY KEY);`)
	seedTable(t, tx, `CREATE TABLE b (id INT PRIMARY KEY);`)

	node, err := New(tx).Build(mustParse(t, `SELECT * FROM a CROSS JOIN b;`))
	require.NoError(t, err)
	_, ok := node.(*NestedLoopJoin)
	require.True(t, ok)
}

func TestBuildSelectComposesOrderLimitOffsetProjection(t *testing.T) {
	tx := newTestTx(t)
	seedTable(t, tx, `CREATE TABLE t1 (id INT PRIMARY KEY, a INT);`)

	node, err := New(tx).Build(mustParse(t, `SELECT a FROM t1 ORDER BY a LIMIT 1 OFFSET 1;`))
	require.NoError(t, err)
	proj, ok := node.(*Projection)
	require.True(t, ok)
	lim, ok := proj.Source.(*Limit)
	require.True(t, ok)
	off, ok := lim.Source.(*Offset)
	require.True(t, ok)
	_, ok = off.Source.(*OrderBy)
	require.True(t, ok)
}

func TestBuildSelectGroupByProducesAggregate(t *testing.T) {
	tx := newTestTx(t)
	seedTable(t, tx, `CREATE TABLE t1 (id INT PRIMARY KEY, b INT, c INT);`)

	node, err := New(tx).Build(mustParse(t, `SELECT b, SUM(c) FROM t1 GROUP BY b HAVING sum < 5 ORDER BY sum;`))
	require.NoError(t, err)
	ord, ok := node.(*OrderBy)
	require.True(t, ok)
	having, ok := ord.Source.(*Having)
	require.True(t, ok)
	_, ok = having.Source.(*Aggregate)
	require.True(t, ok)
}

func TestExplainRendersHeaderAndTree(t *testing.T) {
	tx := newTestTx(t)
	seedTable(t, tx, `CREATE TABLE t1 (id INT PRIMARY KEY, a INT);`)

	node, err := New(tx).Build(mustParse(t, `SELECT a FROM t1 WHERE id = 1;`))
	require.NoError(t, err)
	out := Explain(node)
	require.Contains(t, out, "SQL PLAN")
	require.Contains(t, out, "Primary Key Scan On Table t1(1)")
}
