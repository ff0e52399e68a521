// internal/warehouse/client_test.go
package warehouse

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanankenbruck/insidebi-ai/internal/errors"
)

func newTestClient(t *testing.T, maxRows int) *Client {
	t.Helper()

	db, err := sql.Open(DriverSQLite, ":memory:")
	require.NoError(t, err)
	// every pooled connection would otherwise get its own empty database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`CREATE TABLE npl_trend (month TEXT PRIMARY KEY, npl REAL, substandard REAL, doubtful REAL, loss REAL)`,
		`INSERT INTO npl_trend VALUES ('2025-12', 1.78, 1.07, 0.48, 0.23), ('2026-01', 1.80, 1.08, 0.48, 0.24), ('2026-02', 1.82, 1.09, 0.49, 0.24)`,
		`CREATE TABLE credit_grades (grade TEXT PRIMARY KEY, amount REAL, count INTEGER, pct REAL)`,
		`INSERT INTO credit_grades VALUES ('AAA', 24580, 328, 13.3), ('AA', 38920, 612, NULL)`,
		`CREATE TABLE schema_migrations (version INTEGER, dirty INTEGER)`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	return NewClient(db, DriverSQLite, 5*time.Second, maxRows)
}

func TestRunSQL(t *testing.T) {
	c := newTestClient(t, 0)

	result, err := c.RunSQL(context.Background(), "SELECT month, npl FROM npl_trend ORDER BY month")
	require.NoError(t, err)

	assert.Equal(t, []Column{{Name: "month", Type: ColumnText}, {Name: "npl", Type: ColumnNumeric}}, result.Columns)
	require.Len(t, result.Rows, 3)
	assert.Equal(t, "2025-12", result.Rows[0]["month"])
	assert.Equal(t, 1.82, result.Rows[2]["npl"])
	assert.False(t, result.Truncated)
	assert.False(t, result.IsScalar())
}

func TestRunSQLTypesExpressionsFromValues(t *testing.T) {
	c := newTestClient(t, 0)

	result, err := c.RunSQL(context.Background(), "SELECT SUM(amount) AS total, 'x' || grade AS label FROM credit_grades GROUP BY grade ORDER BY grade")
	require.NoError(t, err)

	require.Len(t, result.Columns, 2)
	assert.Equal(t, ColumnNumeric, result.Columns[0].Type)
	assert.Equal(t, ColumnText, result.Columns[1].Type)
}

func TestRunSQLPreservesNulls(t *testing.T) {
	c := newTestClient(t, 0)

	result, err := c.RunSQL(context.Background(), "SELECT grade, count, pct FROM credit_grades WHERE grade = 'AA'")
	require.NoError(t, err)
	require.True(t, result.IsScalar())

	row := result.Rows[0]
	assert.Equal(t, int64(612), row["count"])
	v, present := row["pct"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestRunSQLEmptyResult(t *testing.T) {
	c := newTestClient(t, 0)

	result, err := c.RunSQL(context.Background(), "SELECT month FROM npl_trend WHERE npl > 100")
	require.NoError(t, err)
	assert.Equal(t, 0, result.RowCount())
	assert.NotNil(t, result.Rows)
	assert.Equal(t, []string{"month"}, result.ColumnNames())
}

func TestRunSQLTruncatesAtMaxRows(t *testing.T) {
	c := newTestClient(t, 2)

	result, err := c.RunSQL(context.Background(), "SELECT month FROM npl_trend ORDER BY month")
	require.NoError(t, err)
	assert.Len(t, result.Rows, 2)
	assert.True(t, result.Truncated)
}

func TestRunSQLErrors(t *testing.T) {
	c := newTestClient(t, 0)

	tests := []struct {
		name        string
		query       string
		errContains string
	}{
		{name: "missing table", query: "SELECT * FROM npl_trends", errContains: "no such table"},
		{name: "syntax error", query: "SELEC month FROM npl_trend", errContains: "syntax error"},
		{name: "missing column", query: "SELECT ratio FROM npl_trend", errContains: "no such column"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.RunSQL(context.Background(), tt.query)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeSQLExecution))
			assert.Contains(t, errors.Reason(err), tt.errContains)
		})
	}
}

func TestDiscover(t *testing.T) {
	c := newTestClient(t, 0)

	schema, err := c.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"npl_trend", "credit_grades"}, schema.TableNames())
	expected := "CREATE TABLE npl_trend(month TEXT,npl REAL,substandard REAL,doubtful REAL,loss REAL);\n" +
		"CREATE TABLE credit_grades(grade TEXT,amount REAL,count INTEGER,pct REAL);"
	assert.Equal(t, expected, schema.CompactDDL())
}

func TestDeclaredType(t *testing.T) {
	tests := []struct {
		in       string
		expected ColumnType
	}{
		{"", ""},
		{"REAL", ColumnNumeric},
		{"INTEGER", ColumnNumeric},
		{"int8", ColumnNumeric},
		{"NUMERIC", ColumnNumeric},
		{"DOUBLE PRECISION", ColumnNumeric},
		{"TEXT", ColumnText},
		{"VARCHAR", ColumnText},
		{"DATE", ColumnDate},
		{"TIMESTAMPTZ", ColumnDate},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, declaredType(tt.in))
		})
	}
}

func TestNormalizeValue(t *testing.T) {
	day := time.Date(2026, 2, 26, 0, 0, 0, 0, time.UTC)

	assert.Nil(t, normalizeValue(nil, ColumnText))
	assert.Equal(t, "AAA", normalizeValue([]byte("AAA"), ColumnText))
	assert.Equal(t, 1.82, normalizeValue([]byte("1.82"), ColumnNumeric))
	assert.Equal(t, "2026-02-26", normalizeValue(day, ColumnDate))
	assert.Equal(t, "2026-02-26T09:30:00Z", normalizeValue(day.Add(9*time.Hour+30*time.Minute), ColumnDate))
	assert.Equal(t, int64(7), normalizeValue(int32(7), ColumnNumeric))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "duckdb", DSN: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
}
