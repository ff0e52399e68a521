package semantic

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/seanankenbruck/insidebi-ai/internal/errors"
	"github.com/seanankenbruck/insidebi-ai/internal/observability"
)

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	SSLMode  string
}

// DSN renders the lib/pq connection string
func (c PostgresConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, sslMode)
}

// PostgresStore implements ExampleStore on the query_examples table using pgvector
type PostgresStore struct {
	db       *sql.DB
	embedder Embedder
}

// NewPostgresStore opens a pgvector-backed example store
func NewPostgresStore(config PostgresConfig, embedder Embedder) (*PostgresStore, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.NewDatabaseConnectionError(err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	return NewPostgresStoreFromDB(db, embedder), nil
}

// NewPostgresStoreFromDB wraps an existing connection
func NewPostgresStoreFromDB(db *sql.DB, embedder Embedder) *PostgresStore {
	if embedder == nil {
		embedder = NewHashEmbedder()
	}
	return &PostgresStore{db: db, embedder: embedder}
}

// Ping tests the database connection
func (ps *PostgresStore) Ping(ctx context.Context) error {
	return ps.db.PingContext(ctx)
}

// Close closes the database connection
func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

// Add stores a question's embedding and SQL, replacing any previous SQL
func (ps *PostgresStore) Add(ctx context.Context, question, sqlText string) error {
	start := time.Now()
	question = strings.TrimSpace(question)
	vector := pgvector.NewVector(ps.embedder.Embed(question))

	insertQuery := `
		INSERT INTO query_examples (id, question, sql_text, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (question) DO UPDATE SET
			sql_text = $3,
			embedding = $4,
			updated_at = $5
	`

	_, err := ps.db.ExecContext(ctx, insertQuery, uuid.New().String(), question, sqlText, vector, time.Now())
	observability.RecordDBMetrics("add_example", time.Since(start), err)
	if err != nil {
		return errors.NewDatabaseQueryError(err, "add_example")
	}

	return nil
}

// Similar finds the n examples closest to question by cosine distance
func (ps *PostgresStore) Similar(ctx context.Context, question string, n int) ([]Example, error) {
	start := time.Now()
	if n <= 0 {
		n = DefaultResults
	}
	vector := pgvector.NewVector(ps.embedder.Embed(question))

	query := `
		SELECT id, question, sql_text,
		       1 - (embedding <=> $1) AS similarity,
		       created_at
		FROM query_examples
		ORDER BY embedding <=> $1
		LIMIT $2
	`

	rows, err := ps.db.QueryContext(ctx, query, vector, n)
	if err != nil {
		observability.RecordDBMetrics("similar_examples", time.Since(start), err)
		return nil, errors.NewDatabaseQueryError(err, "similar_examples")
	}
	defer rows.Close()

	var examples []Example
	for rows.Next() {
		var ex Example
		if err := rows.Scan(&ex.ID, &ex.Question, &ex.SQL, &ex.Similarity, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan example row: %w", err)
		}
		examples = append(examples, ex)
	}

	err = rows.Err()
	observability.RecordDBMetrics("similar_examples", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("error iterating example rows: %w", err)
	}

	return examples, nil
}

// Count returns the number of stored examples
func (ps *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := ps.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM query_examples`).Scan(&count); err != nil {
		return 0, errors.NewDatabaseQueryError(err, "count_examples")
	}
	return count, nil
}
