// internal/warehouse/schema.go
package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/seanankenbruck/insidebi-ai/internal/errors"
	"github.com/seanankenbruck/insidebi-ai/internal/observability"
)

// internalTables are bookkeeping tables that are never shown to the generator
var internalTables = map[string]bool{
	"schema_migrations":          true,
	"schema_migrations_examples": true,
	"query_examples":             true,
}

// SchemaColumn is one column of a discovered table
type SchemaColumn struct {
	Name string
	Type string
}

// Table is a discovered table and its columns in ordinal order
type Table struct {
	Name    string
	Columns []SchemaColumn
}

// Schema is the set of user tables in the warehouse
type Schema struct {
	Tables []Table
}

// TableNames returns the discovered table names in order
func (s *Schema) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}

// CompactDDL renders one single-line CREATE TABLE statement per table,
// e.g. "CREATE TABLE npl_trend(month TEXT,npl REAL);"
func (s *Schema) CompactDDL() string {
	lines := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = strings.TrimSpace(c.Name + " " + c.Type)
		}
		lines = append(lines, fmt.Sprintf("CREATE TABLE %s(%s);", t.Name, strings.Join(cols, ",")))
	}
	return strings.Join(lines, "\n")
}

// Discover reads table and column definitions from the catalog
func (c *Client) Discover(ctx context.Context) (schema *Schema, err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBMetrics("discover_schema", time.Since(start), err)
	}()

	switch c.driver {
	case DriverPostgres:
		schema, err = c.discoverPostgres(ctx)
	default:
		schema, err = c.discoverSQLite(ctx)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryError(err, "discover schema")
	}
	return schema, nil
}

func (c *Client) discoverSQLite(ctx context.Context) (*Schema, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY rowid`)
	if err != nil {
		return nil, err
	}

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		if !internalTables[name] {
			names = append(names, name)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	schema := &Schema{}
	for _, name := range names {
		table, err := c.sqliteTable(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read columns of %s: %w", name, err)
		}
		schema.Tables = append(schema.Tables, table)
	}
	return schema, nil
}

func (c *Client) sqliteTable(ctx context.Context, name string) (Table, error) {
	quoted := `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	rows, err := c.db.QueryContext(ctx, "PRAGMA table_info("+quoted+")")
	if err != nil {
		return Table{}, err
	}
	defer rows.Close()

	table := Table{Name: name}
	for rows.Next() {
		var (
			cid      int
			colName  string
			colType  string
			notNull  int
			defValue any
			pk       int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &defValue, &pk); err != nil {
			return Table{}, err
		}
		table.Columns = append(table.Columns, SchemaColumn{Name: colName, Type: strings.ToUpper(colType)})
	}
	return table, rows.Err()
}

func (c *Client) discoverPostgres(ctx context.Context) (*Schema, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = current_schema()
		ORDER BY table_name, ordinal_position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schema := &Schema{}
	index := make(map[string]int)
	for rows.Next() {
		var tableName, colName, dataType string
		if err := rows.Scan(&tableName, &colName, &dataType); err != nil {
			return nil, err
		}
		if internalTables[tableName] {
			continue
		}
		i, ok := index[tableName]
		if !ok {
			i = len(schema.Tables)
			index[tableName] = i
			schema.Tables = append(schema.Tables, Table{Name: tableName})
		}
		schema.Tables[i].Columns = append(schema.Tables[i].Columns,
			SchemaColumn{Name: colName, Type: postgresCompactType(dataType)})
	}
	return schema, rows.Err()
}

// postgresCompactType folds postgres data types onto the SQLite vocabulary
// the prompt is written in
func postgresCompactType(dataType string) string {
	t := strings.ToLower(dataType)
	switch {
	case strings.Contains(t, "int"):
		return "INTEGER"
	case t == "real", t == "double precision", t == "numeric", strings.HasPrefix(t, "decimal"):
		return "REAL"
	default:
		return "TEXT"
	}
}
