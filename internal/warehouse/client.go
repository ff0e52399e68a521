// internal/warehouse/client.go
package warehouse

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/seanankenbruck/insidebi-ai/internal/errors"
	"github.com/seanankenbruck/insidebi-ai/internal/observability"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds warehouse connection settings
type Config struct {
	Driver       string
	DSN          string
	QueryTimeout time.Duration
	MaxRows      int
	MaxOpenConns int
}

// Client runs SQL against the dataset through database/sql
type Client struct {
	db           *sql.DB
	driver       string
	queryTimeout time.Duration
	maxRows      int
}

// Open connects to the warehouse and verifies the connection
func Open(ctx context.Context, cfg Config) (*Client, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = DriverSQLite
	}
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, errors.NewInvalidInputError("warehouse.driver", fmt.Sprintf("unsupported driver %q", cfg.Driver))
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, errors.NewDatabaseConnectionError(err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	c := NewClient(db, driver, cfg.QueryTimeout, cfg.MaxRows)
	if err := c.Ping(ctx); err != nil {
		db.Close()
		return nil, errors.NewDatabaseConnectionError(err)
	}
	return c, nil
}

// NewClient wraps an existing database handle
func NewClient(db *sql.DB, driver string, queryTimeout time.Duration, maxRows int) *Client {
	// Default query timeout to 30s if not specified
	if queryTimeout <= 0 {
		queryTimeout = 30 * time.Second
	}
	if maxRows <= 0 {
		maxRows = 10000
	}
	return &Client{
		db:           db,
		driver:       driver,
		queryTimeout: queryTimeout,
		maxRows:      maxRows,
	}
}

// DB exposes the underlying handle for migrations and schema discovery
func (c *Client) DB() *sql.DB {
	return c.db
}

// Driver returns the database/sql driver name
func (c *Client) Driver() string {
	return c.driver
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the connection pool
func (c *Client) Close() error {
	return c.db.Close()
}

// RunSQL executes a query and returns its rows in order. Rows beyond the
// configured maximum are dropped and the result is marked truncated.
func (c *Client) RunSQL(ctx context.Context, query string) (result *Result, err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBMetrics("run_sql", time.Since(start), err)
	}()

	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classifyError(err, query)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, classifyError(err, query)
	}

	result = &Result{
		Columns: make([]Column, len(colTypes)),
		Rows:    []Row{},
	}
	declared := make([]ColumnType, len(colTypes))
	for i, ct := range colTypes {
		declared[i] = declaredType(ct.DatabaseTypeName())
		result.Columns[i] = Column{Name: ct.Name(), Type: declared[i]}
	}

	values := make([]any, len(colTypes))
	scanArgs := make([]any, len(colTypes))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if len(result.Rows) >= c.maxRows {
			result.Truncated = true
			break
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, classifyError(err, query)
		}
		row := make(Row, len(colTypes))
		for i, col := range result.Columns {
			row[col.Name] = normalizeValue(values[i], declared[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err, query)
	}

	inferUndeclaredTypes(result, declared)
	return result, nil
}

// declaredType maps a driver-reported column type onto a ColumnType.
// An empty string means the driver did not know (e.g. expressions in SQLite).
func declaredType(dbType string) ColumnType {
	t := strings.ToUpper(dbType)
	switch {
	case t == "":
		return ""
	case strings.Contains(t, "DATE") || strings.Contains(t, "TIME"):
		return ColumnDate
	case strings.Contains(t, "INT"), strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"),
		strings.Contains(t, "DOUB"), strings.Contains(t, "NUMERIC"), strings.Contains(t, "DECIMAL"):
		return ColumnNumeric
	default:
		return ColumnText
	}
}

// inferUndeclaredTypes types columns the driver left blank: numeric when
// every non-null value is a number, text otherwise
func inferUndeclaredTypes(result *Result, declared []ColumnType) {
	for i, col := range result.Columns {
		if declared[i] != "" {
			continue
		}
		typ := ColumnText
		seen := false
		numeric := true
		for _, row := range result.Rows {
			v := row[col.Name]
			if v == nil {
				continue
			}
			seen = true
			switch v.(type) {
			case int64, float64:
			default:
				numeric = false
			}
		}
		if seen && numeric {
			typ = ColumnNumeric
		}
		result.Columns[i].Type = typ
	}
}

// normalizeValue converts driver values into JSON-friendly scalars
func normalizeValue(v any, typ ColumnType) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		s := string(val)
		if typ == ColumnNumeric {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
		return s
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format(time.RFC3339)
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	case bool:
		if val {
			return int64(1)
		}
		return int64(0)
	default:
		return val
	}
}

// classifyError separates connectivity failures from errors in the SQL itself
func classifyError(err error, query string) error {
	if isConnectionError(err) {
		return errors.NewDatabaseConnectionError(err)
	}
	return errors.NewSQLExecutionError(err, query)
}

func isConnectionError(err error) bool {
	if stderrors.Is(err, driver.ErrBadConn) || stderrors.Is(err, sql.ErrConnDone) ||
		stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}

	// Class 08 is connection exception, 57P is operator intervention
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "57P")
	}

	return false
}
