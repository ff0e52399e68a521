// Package cache holds the in-process question -> SQL cache with fuzzy lookup
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultThreshold is the minimum similarity ratio counted as a hit
const DefaultThreshold = 0.78

// GoldenPair is one curated question/SQL record
type GoldenPair struct {
	Question string `json:"question"`
	SQL      string `json:"sql"`
}

// Entry is a cached question and the SQL that answered it
type Entry struct {
	Question string `json:"question"`
	SQL      string `json:"sql"`
}

// QueryCache maps previously answered questions to their SQL. Entries are
// never evicted. Lookup walks keys in insertion order so equal scores
// resolve to the earliest key.
type QueryCache struct {
	mu        sync.RWMutex
	keys      []string
	sql       map[string]string
	threshold float64
}

// New creates an empty cache. A threshold <= 0 selects DefaultThreshold.
func New(threshold float64) *QueryCache {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &QueryCache{
		sql:       make(map[string]string),
		threshold: threshold,
	}
}

// Threshold returns the hit threshold in use
func (c *QueryCache) Threshold() float64 {
	return c.threshold
}

// Similarity returns the sequence matching ratio 2*M/T of two strings,
// compared rune by rune. Two empty strings score 1.0.
func Similarity(a, b string) float64 {
	return difflib.NewMatcher(runes(a), runes(b)).Ratio()
}

// runes splits s into characters. Bytes that are not valid UTF-8 stay
// distinct single-byte elements instead of collapsing into U+FFFD.
func runes(s string) []string {
	out := make([]string, 0, len(s))
	for len(s) > 0 {
		_, size := utf8.DecodeRuneInString(s)
		out = append(out, s[:size])
		s = s[size:]
	}
	return out
}

// Lookup returns the SQL of the most similar cached question. ok is false
// when the cache is empty or the best score is below the threshold; score
// is 0 in that case.
func (c *QueryCache) Lookup(question string) (string, float64, bool) {
	q := strings.TrimSpace(question)

	c.mu.RLock()
	defer c.mu.RUnlock()

	bestKey := ""
	bestScore := 0.0
	found := false
	for _, key := range c.keys {
		score := Similarity(q, key)
		if score > bestScore {
			bestScore = score
			bestKey = key
			found = true
		}
	}

	if !found || bestScore < c.threshold {
		return "", 0, false
	}
	return c.sql[bestKey], bestScore, true
}

// Store records the SQL for a question. The key is whitespace-trimmed and
// an existing key keeps its position.
func (c *QueryCache) Store(question, sql string) {
	key := strings.TrimSpace(question)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.sql[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.sql[key] = sql
}

// Len returns the number of cached questions
func (c *QueryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

// Entries returns a snapshot of the cache in insertion order
func (c *QueryCache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]Entry, 0, len(c.keys))
	for _, key := range c.keys {
		entries = append(entries, Entry{Question: key, SQL: c.sql[key]})
	}
	return entries
}

// LoadGolden stores each pair in order and returns how many were loaded
func (c *QueryCache) LoadGolden(pairs []GoldenPair) int {
	for _, p := range pairs {
		c.Store(p.Question, p.SQL)
	}
	return len(pairs)
}

// ReadGoldenFile parses a JSON array of question/SQL pairs
func ReadGoldenFile(path string) ([]GoldenPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pairs []GoldenPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("failed to parse golden SQL file %s: %w", path, err)
	}
	return pairs, nil
}

// LoadGoldenFile seeds the cache from a golden SQL file. A missing file
// loads nothing and is not an error.
func (c *QueryCache) LoadGoldenFile(path string) (int, error) {
	pairs, err := ReadGoldenFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return c.LoadGolden(pairs), nil
}
