package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvsql/internal/kv"
	"kvsql/internal/mvcc"
	"kvsql/internal/planner"
	"kvsql/internal/sql/parser"
	"kvsql/internal/txn"
	"kvsql/internal/value"
)

func newTx(t *testing.T) *txn.Transaction {
	t.Helper()
	m := mvcc.New(kv.NewMemoryKV())
	tx, err := txn.Begin(m)
	require.NoError(t, err)
	return tx
}

func run(t *testing.T, tx *txn.Transaction, sql string) *ResultSet {
	t.Helper()
	stmt, err := parser.Parse(sql)
	require.NoError(t, err, "parse: %s", sql)
	node, err := planner.New(tx).Build(stmt)
	require.NoError(t, err, "plan: %s", sql)
	rs, err := Execute(tx, node)
	require.NoError(t, err, "exec: %s", sql)
	return rs
}

func TestInsertAlignsByExplicitColumnList(t *testing.T) {
	tx := newTx(t)
	run(t, tx, `CREATE TABLE t1 (id INT PRIMARY KEY, a INT, b TEXT DEFAULT 'x');`)
	run(t, tx, `INSERT INTO t1 (a, id) VALUES (7, 1);`)

	rs := run(t, tx, `SELECT * FROM t1;`)
	require.Len(t, rs.Rows, 1)
	row := rs.Rows[0]
	assert.Equal(t, int64(1), row[0].AsInt())
	assert.Equal(t, int64(7), row[1].AsInt())
	assert.Equal(t, "x", row[2].AsString())
}

func TestInsertMissingValueWithNoDefaultErrors(t *testing.T) {
	tx := newTx(t)
	run(t, tx, `CREATE TABLE t1 (id INT PRIMARY KEY, a INT NOT NULL);`)

	stmt, err := parser.Parse(`INSERT INTO t1 (id) VALUES (1);`)
	require.NoError(t, err)
	node, err := planner.New(tx).Build(stmt)
	require.NoError(t, err)
	_, err = Execute(tx, node)
	assert.Error(t, err)
}

func TestUpdateRowChangesPrimaryKeyAndIndex(t *testing.T) {
	tx := newTx(t)
	run(t, tx, `CREATE TABLE t1 (id INT PRIMARY KEY, a INT INDEX);`)
	run(t, tx, `INSERT INTO t1 VALUES (1, 10);`)

	rs := run(t, tx, `UPDATE t1 SET id = 2 WHERE id = 1;`)
	assert.Equal(t, "UPDATE 1 rows", rs.String())

	rs = run(t, tx, `SELECT * FROM t1 WHERE a = 10;`)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, int64(2), rs.Rows[0][0].AsInt())
}

func TestDeleteRemovesRowAndIndexEntry(t *testing.T) {
	tx := newTx(t)
	run(t, tx, `CREATE TABLE t1 (id INT PRIMARY KEY, a INT INDEX);`)
	run(t, tx, `INSERT INTO t1 VALUES (1, 10);`)

	rs := run(t, tx, `DELETE FROM t1 WHERE id = 1;`)
	assert.Equal(t, "DELETE 1 rows", rs.String())

	rs = run(t, tx, `SELECT * FROM t1 WHERE a = 10;`)
	assert.Len(t, rs.Rows, 0)
}

func TestLeftJoinEmitsNullPaddedRowOnNoMatch(t *testing.T) {
	tx := newTx(t)
	run(t, tx, `CREATE TABLE t1 (a INT PRIMARY KEY);`)
	run(t, tx, `CREATE TABLE t2 (b INT PRIMARY KEY);`)
	run(t, tx, `INSERT INTO t1 VALUES (1), (2);`)
	run(t, tx, `INSERT INTO t2 VALUES (2);`)

	rs := run(t, tx, `SELECT * FROM t1 LEFT JOIN t2 ON a=b;`)
	require.Len(t, rs.Rows, 2)
	var sawNull bool
	for _, r := range rs.Rows {
		if r[1].IsNull() {
			sawNull = true
		}
	}
	assert.True(t, sawNull)
}

func TestCrossJoinProducesCartesianProduct(t *testing.T) {
	tx := newTx(t)
	run(t, tx, `CREATE TABLE t1 (a INT PRIMARY KEY);`)
	run(t, tx, `CREATE TABLE t2 (b INT PRIMARY KEY);`)
	run(t, tx, `INSERT INTO t1 VALUES (1), (2);`)
	run(t, tx, `INSERT INTO t2 VALUES (10), (20);`)

	rs := run(t, tx, `SELECT * FROM t1 CROSS JOIN t2;`)
	assert.Len(t, rs.Rows, 4)
}

func TestScanIndexReturnsRowsSortedByPK(t *testing.T) {
	tx := newTx(t)
	run(t, tx, `CREATE TABLE t1 (id INT PRIMARY KEY, a INT INDEX);`)
	run(t, tx, `INSERT INTO t1 VALUES (3, 1), (1, 1), (2, 1);`)

	rs := run(t, tx, `SELECT * FROM t1 WHERE a = 1;`)
	require.Len(t, rs.Rows, 3)
	assert.Equal(t, int64(1), rs.Rows[0][0].AsInt())
	assert.Equal(t, int64(2), rs.Rows[1][0].AsInt())
	assert.Equal(t, int64(3), rs.Rows[2][0].AsInt())
}

func TestPkIndexCoercesWholeFloatLookupToInt(t *testing.T) {
	tx := newTx(t)
	run(t, tx, `CREATE TABLE t1 (id INT PRIMARY KEY);`)
	run(t, tx, `INSERT INTO t1 VALUES (2);`)

	rs := run(t, tx, `SELECT * FROM t1 WHERE id = 2.0;`)
	require.Len(t, rs.Rows, 1)
}

func TestResultSetStringRendersScanTable(t *testing.T) {
	rs := &ResultSet{
		Kind:    KindScan,
		Columns: []string{"id", "name"},
		Rows: [][]value.Value{
			{value.NewInt(1), value.NewString("ann")},
		},
	}
	out := rs.String()
	assert.Contains(t, out, "id |name")
	assert.Contains(t, out, "(1 rows)")
}
