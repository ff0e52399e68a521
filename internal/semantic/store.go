package semantic

import (
	"context"
	"time"
)

// DefaultResults is how many similar examples a lookup returns by default
const DefaultResults = 3

// Retriever finds previously trained question/SQL pairs similar to a question
type Retriever interface {
	Similar(ctx context.Context, question string, n int) ([]Example, error)
}

// ExampleStore persists trained question/SQL pairs for few-shot retrieval
type ExampleStore interface {
	Retriever

	// Add stores or replaces the SQL for a question
	Add(ctx context.Context, question, sql string) error
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// Example represents a trained question and the SQL that answers it
type Example struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	SQL        string    `json:"sql"`
	Similarity float64   `json:"similarity"`
	CreatedAt  time.Time `json:"created_at"`
}
