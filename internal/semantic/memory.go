package semantic

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryExample struct {
	example   Example
	embedding []float32
}

// MemoryStore keeps examples in process; used when no example database is configured
type MemoryStore struct {
	mu       sync.RWMutex
	embedder Embedder
	examples []memoryExample
	index    map[string]int
}

// NewMemoryStore creates an empty in-memory example store
func NewMemoryStore(embedder Embedder) *MemoryStore {
	if embedder == nil {
		embedder = NewHashEmbedder()
	}
	return &MemoryStore{
		embedder: embedder,
		index:    make(map[string]int),
	}
}

// Add stores or replaces the SQL for a question
func (s *MemoryStore) Add(ctx context.Context, question, sql string) error {
	question = strings.TrimSpace(question)
	embedding := s.embedder.Embed(question)

	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[question]; ok {
		s.examples[i].example.SQL = sql
		s.examples[i].embedding = embedding
		return nil
	}

	s.index[question] = len(s.examples)
	s.examples = append(s.examples, memoryExample{
		example: Example{
			ID:        uuid.New().String(),
			Question:  question,
			SQL:       sql,
			CreatedAt: time.Now(),
		},
		embedding: embedding,
	})
	return nil
}

// Similar returns up to n examples ordered by descending similarity
func (s *MemoryStore) Similar(ctx context.Context, question string, n int) ([]Example, error) {
	if n <= 0 {
		n = DefaultResults
	}
	query := s.embedder.Embed(question)

	s.mu.RLock()
	scored := make([]Example, 0, len(s.examples))
	for _, e := range s.examples {
		ex := e.example
		ex.Similarity = CosineSimilarity(query, e.embedding)
		scored = append(scored, ex)
	}
	s.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > n {
		scored = scored[:n]
	}
	return scored, nil
}

// Count returns the number of stored examples
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.examples), nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }
