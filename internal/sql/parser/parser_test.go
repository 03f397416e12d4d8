package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvsql/internal/sql/ast"
	"kvsql/internal/value"
)

func TestParseCreateTable(t *testing.T) {
	stmt, err := Parse(`CREATE TABLE users (id INT PRIMARY KEY, name TEXT NOT NULL, age INT DEFAULT 0 INDEX);`)
	require.NoError(t, err)
	ct, ok := stmt.(*ast.CreateTableStmt)
	require.True(t, ok)
	assert.Equal(t, "users", ct.Name)
	require.Len(t, ct.Columns, 3)

	assert.Equal(t, "id", ct.Columns[0].Name)
	assert.True(t, ct.Columns[0].IsPrimaryKey)

	assert.Equal(t, "name", ct.Columns[1].Name)
	assert.True(t, ct.Columns[1].SawNotNull)

	assert.Equal(t, "age", ct.Columns[2].Name)
	assert.True(t, ct.Columns[2].SawDefault)
	assert.True(t, ct.Columns[2].IsIndex)
	assert.Equal(t, int64(0), ct.Columns[2].DefaultValue.AsInt())
}

func TestParseDropTable(t *testing.T) {
	stmt, err := Parse(`DROP TABLE users;`)
	require.NoError(t, err)
	dt, ok := stmt.(*ast.DropTableStmt)
	require.True(t, ok)
	assert.Equal(t, "users", dt.Name)
}

func TestParseInsertPositional(t *testing.T) {
	stmt, err := Parse(`INSERT INTO users VALUES (1, 'ann'), (2, 'bob');`)
	require.NoError(t, err)
	ins, ok := stmt.(*ast.InsertStmt)
	require.True(t, ok)
	assert.Equal(t, "users", ins.Table)
	assert.Nil(t, ins.Columns)
	require.Len(t, ins.Rows, 2)
	require.Len(t, ins.Rows[0], 2)
}

func TestParseInsertWithColumnList(t *testing.T) {
	stmt, err := Parse(`INSERT INTO users (name, id) VALUES ('ann', 1);`)
	require.NoError(t, err)
	ins, ok := stmt.(*ast.InsertStmt)
	require.True(t, ok)
	assert.Equal(t, []string{"name", "id"}, ins.Columns)
}

func TestParseSelectStar(t *testing.T) {
	stmt, err := Parse(`SELECT * FROM users;`)
	require.NoError(t, err)
	sel, ok := stmt.(*ast.SelectStmt)
	require.True(t, ok)
	assert.True(t, sel.Star)
	assert.Equal(t, "users", sel.From.Table)
}

func TestParseSelectWhereGroupHavingOrderLimitOffset(t *testing.T) {
	stmt, err := Parse(`SELECT b, SUM(c) AS total FROM t1 WHERE a > 1 GROUP BY b HAVING total < 5 ORDER BY total DESC LIMIT 10 OFFSET 5;`)
	require.NoError(t, err)
	sel, ok := stmt.(*ast.SelectStmt)
	require.True(t, ok)
	require.Len(t, sel.Items, 2)
	assert.Equal(t, "total", sel.Items[1].Alias)
	require.NotNil(t, sel.Where)
	assert.Equal(t, ">", sel.Where.Op)
	require.NotNil(t, sel.GroupBy)
	assert.Equal(t, "b", sel.GroupBy.Name)
	require.NotNil(t, sel.Having)
	require.Len(t, sel.OrderBy, 1)
	assert.True(t, sel.OrderBy[0].Desc)
	require.NotNil(t, sel.Limit)
	assert.Equal(t, int64(10), *sel.Limit)
	require.NotNil(t, sel.Offset)
	assert.Equal(t, int64(5), *sel.Offset)
}

func TestParseLimitAcceptsConstantExpression(t *testing.T) {
	stmt, err := Parse(`SELECT * FROM t1 LIMIT 2+3;`)
	require.NoError(t, err)
	sel := stmt.(*ast.SelectStmt)
	require.NotNil(t, sel.Limit)
	assert.Equal(t, int64(5), *sel.Limit)
}

func TestParseLimitRejectsNonIntegerFloat(t *testing.T) {
	_, err := Parse(`SELECT * FROM t1 LIMIT 1.5;`)
	assert.Error(t, err)
}

func TestParseJoinChainWithOn(t *testing.T) {
	stmt, err := Parse(`SELECT * FROM a LEFT JOIN b ON x = y INNER JOIN c ON y = z;`)
	require.NoError(t, err)
	sel := stmt.(*ast.SelectStmt)
	outer := sel.From
	assert.Equal(t, ast.InnerJoin, outer.JoinType)
	inner := outer.Left
	assert.Equal(t, ast.LeftJoin, inner.JoinType)
	assert.Equal(t, "a", inner.Left.Table)
	assert.Equal(t, "b", inner.Right.Table)
}

func TestParseCrossJoinHasNoOnClause(t *testing.T) {
	stmt, err := Parse(`SELECT * FROM a CROSS JOIN b;`)
	require.NoError(t, err)
	sel := stmt.(*ast.SelectStmt)
	assert.Equal(t, ast.CrossJoin, sel.From.JoinType)
	assert.Nil(t, sel.From.On)
}

func TestParseUpdateRejectsDuplicateSetColumn(t *testing.T) {
	_, err := Parse(`UPDATE t1 SET a = 1, a = 2;`)
	assert.Error(t, err)
}

func TestParseUpdateWithWhere(t *testing.T) {
	stmt, err := Parse(`UPDATE t1 SET a = 1 WHERE id = 3;`)
	require.NoError(t, err)
	upd := stmt.(*ast.UpdateStmt)
	require.Len(t, upd.Set, 1)
	require.NotNil(t, upd.Where)
}

func TestParseDelete(t *testing.T) {
	stmt, err := Parse(`DELETE FROM t1 WHERE id = 3;`)
	require.NoError(t, err)
	del := stmt.(*ast.DeleteStmt)
	assert.Equal(t, "t1", del.Table)
	require.NotNil(t, del.Where)
}

func TestParseShowTables(t *testing.T) {
	stmt, err := Parse(`SHOW TABLES;`)
	require.NoError(t, err)
	_, ok := stmt.(*ast.ShowTablesStmt)
	assert.True(t, ok)
}

func TestParseShowTable(t *testing.T) {
	stmt, err := Parse(`SHOW TABLE t1;`)
	require.NoError(t, err)
	st := stmt.(*ast.ShowTableStmt)
	assert.Equal(t, "t1", st.Name)
}

func TestParseBeginCommitRollbackFlush(t *testing.T) {
	for sql, want := range map[string]ast.Statement{
		"BEGIN;":    &ast.BeginStmt{},
		"COMMIT;":   &ast.CommitStmt{},
		"ROLLBACK;": &ast.RollbackStmt{},
		"FLUSH;":    &ast.FlushStmt{},
	} {
		stmt, err := Parse(sql)
		require.NoError(t, err)
		assert.IsType(t, want, stmt)
	}
}

func TestParseExplainWrapsInnerStatement(t *testing.T) {
	stmt, err := Parse(`EXPLAIN SELECT * FROM t1;`)
	require.NoError(t, err)
	ex := stmt.(*ast.ExplainStmt)
	assert.IsType(t, &ast.SelectStmt{}, ex.Inner)
}

func TestParseConstantFoldingPreservesIntegerDivision(t *testing.T) {
	stmt, err := Parse(`SELECT * FROM t1 WHERE a = 10/2;`)
	require.NoError(t, err)
	sel := stmt.(*ast.SelectStmt)
	lit := sel.Where.Right.(*ast.Literal)
	assert.Equal(t, value.Int, lit.Value.Kind())
	assert.Equal(t, int64(5), lit.Value.AsInt())
}

func TestParseConstantFoldingPromotesUnevenDivisionToFloat(t *testing.T) {
	stmt, err := Parse(`SELECT * FROM t1 WHERE a = 10/3;`)
	require.NoError(t, err)
	sel := stmt.(*ast.SelectStmt)
	lit := sel.Where.Right.(*ast.Literal)
	assert.Equal(t, value.Float, lit.Value.Kind())
}

func TestParseExprPowerIsRightAssociative(t *testing.T) {
	stmt, err := Parse(`SELECT * FROM t1 WHERE a = 2^3^2;`)
	require.NoError(t, err)
	sel := stmt.(*ast.SelectStmt)
	lit := sel.Where.Right.(*ast.Literal)
	assert.Equal(t, int64(512), lit.Value.AsInt())
}

func TestParseUnaryMinusFolds(t *testing.T) {
	stmt, err := Parse(`SELECT * FROM t1 WHERE a = -5;`)
	require.NoError(t, err)
	sel := stmt.(*ast.SelectStmt)
	lit := sel.Where.Right.(*ast.Literal)
	assert.Equal(t, int64(-5), lit.Value.AsInt())
}

func TestParseFunctionCallCount(t *testing.T) {
	stmt, err := Parse(`SELECT COUNT(*) FROM t1;`)
	require.NoError(t, err)
	sel := stmt.(*ast.SelectStmt)
	fc := sel.Items[0].Expr.(*ast.FuncCall)
	assert.Equal(t, "count", fc.Name)
	assert.True(t, fc.Star)
}

func TestParseTrailingInputIsAnError(t *testing.T) {
	_, err := Parse(`SELECT * FROM t1; SELECT * FROM t2;`)
	assert.Error(t, err)
}

func TestParseUnexpectedTokenIsAnError(t *testing.T) {
	_, err := Parse(`FROB t1;`)
	assert.Error(t, err)
}

func TestParseUnterminatedStringIsAnError(t *testing.T) {
	_, err := Parse(`INSERT INTO t1 VALUES ('abc);`)
	assert.Error(t, err)
}

func TestParseStringLiteralHasNoEscapes(t *testing.T) {
	// No doubled-quote escape: 'it''s' is two adjacent string literals,
	// not one, and two literals back-to-back in a VALUES row is a parse
	// error rather than a single escaped string.
	_, err := Parse(`INSERT INTO t1 VALUES ('it''s');`)
	assert.Error(t, err)
}

func TestParseStringLiteralPlain(t *testing.T) {
	stmt, err := Parse(`INSERT INTO t1 VALUES ('it is here');`)
	require.NoError(t, err)
	ins := stmt.(*ast.InsertStmt)
	lit := ins.Rows[0][0].(*ast.Literal)
	assert.Equal(t, "it is here", lit.Value.AsString())
}
