package database

import (
	"context"
	"database/sql"
	"embed"
	stderrors "errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationFiles embed.FS

// Migration sets
const (
	// SetWarehouse creates and seeds the risk dataset tables
	SetWarehouse = "warehouse"
	// SetExamples creates the pgvector few-shot example table
	SetExamples = "examples"
)

// MigrationConfig holds migration configuration
type MigrationConfig struct {
	Driver      string // "sqlite" or "postgres"
	DatabaseURL string
	Set         string
}

// RunMigrations opens the database and applies every pending migration of the set
func RunMigrations(ctx context.Context, config MigrationConfig) error {
	db, err := sql.Open(config.Driver, config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return Migrate(ctx, db, config.Driver, config.Set)
}

// Migrate applies the set's migrations on an open handle, then fills the
// generated VaR series when the warehouse has none
func Migrate(ctx context.Context, db *sql.DB, driver, set string) error {
	m, err := newMigrate(db, driver, set)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if set == SetWarehouse || set == "" {
		if err := SeedVarTrend(ctx, db, driver); err != nil {
			return err
		}
	}
	return nil
}

// Version reports the applied migration version of a set
func Version(db *sql.DB, driver, set string) (uint, bool, error) {
	m, err := newMigrate(db, driver, set)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if stderrors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func newMigrate(db *sql.DB, driver, set string) (*migrate.Migrate, error) {
	dir, table, err := migrationSource(driver, set)
	if err != nil {
		return nil, err
	}

	source, err := iofs.New(migrationFiles, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations %s: %w", dir, err)
	}

	var instance migratedb.Driver
	switch driver {
	case "sqlite":
		instance, err = sqlite.WithInstance(db, &sqlite.Config{MigrationsTable: table})
	case "postgres":
		instance, err = postgres.WithInstance(db, &postgres.Config{MigrationsTable: table})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driver, instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// migrationSource picks the embedded directory and version table for a set
func migrationSource(driver, set string) (string, string, error) {
	switch set {
	case SetWarehouse, "":
		if driver != "sqlite" && driver != "postgres" {
			return "", "", fmt.Errorf("unsupported migration driver %q", driver)
		}
		return "migrations/" + driver, "schema_migrations", nil
	case SetExamples:
		if driver != "postgres" {
			return "", "", fmt.Errorf("example store migrations need postgres, got %q", driver)
		}
		return "migrations/examples", "schema_migrations_examples", nil
	default:
		return "", "", fmt.Errorf("unknown migration set %q", set)
	}
}

// VaRPoint is one trading day of the VaR series
type VaRPoint struct {
	Date  string
	VaR   float64
	PnL   float64
	Limit float64
}

// GenerateVaRSeries builds the 250 calendar day VaR/PnL random walk ending on
// end, skipping weekends. The same seed always yields the same series.
func GenerateVaRSeries(end time.Time, seed int64) []VaRPoint {
	const limit = 1500

	r := rand.New(rand.NewSource(seed))
	value := 1150.0
	points := make([]VaRPoint, 0, 180)
	for i := 249; i >= 0; i-- {
		day := end.AddDate(0, 0, -i)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		value += (r.Float64() - 0.48) * 40
		value = math.Max(800, math.Min(1480, value))
		pnl := (r.Float64()-0.45)*400 - 50
		points = append(points, VaRPoint{
			Date:  day.Format("2006-01-02"),
			VaR:   math.RoundToEven(value),
			PnL:   math.RoundToEven(pnl),
			Limit: limit,
		})
	}
	return points
}

// SeedVarTrend fills var_trend when it is empty
func SeedVarTrend(ctx context.Context, db *sql.DB, driver string) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM var_trend`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count var_trend rows: %w", err)
	}
	if count > 0 {
		return nil
	}

	insert := `INSERT INTO var_trend (date, var, pnl, var_limit) VALUES (?, ?, ?, ?)`
	if driver == "postgres" {
		insert = `INSERT INTO var_trend (date, var, pnl, var_limit) VALUES ($1, $2, $3, $4)`
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("failed to prepare var_trend insert: %w", err)
	}
	defer stmt.Close()

	end := time.Date(2026, time.February, 26, 0, 0, 0, 0, time.UTC)
	for _, p := range GenerateVaRSeries(end, 42) {
		if _, err := stmt.ExecContext(ctx, p.Date, p.VaR, p.PnL, p.Limit); err != nil {
			return fmt.Errorf("failed to insert var_trend %s: %w", p.Date, err)
		}
	}

	return tx.Commit()
}

// VerifyPostgres checks that the target database is reachable and exists
func VerifyPostgres(ctx context.Context, dsn, dbname string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	var exists bool
	checkQuery := `SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1)`
	if err := db.QueryRowContext(ctx, checkQuery, dbname).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check if database exists: %w", err)
	}

	if !exists {
		return fmt.Errorf("database %s does not exist", dbname)
	}
	return nil
}

// HealthCheck verifies the example store database: connectivity, the pgvector
// extension and the query_examples table
func HealthCheck(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var hasVector bool
	err := db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector')").Scan(&hasVector)
	if err != nil {
		return fmt.Errorf("failed to check vector extension: %w", err)
	}
	if !hasVector {
		return fmt.Errorf("pgvector extension is not installed")
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM query_examples").Scan(&count); err != nil {
		return fmt.Errorf("failed to query query_examples table: %w", err)
	}

	return nil
}
