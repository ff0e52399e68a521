package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanankenbruck/insidebi-ai/internal/cache"
	"github.com/seanankenbruck/insidebi-ai/internal/errors"
	"github.com/seanankenbruck/insidebi-ai/internal/feedback"
	"github.com/seanankenbruck/insidebi-ai/internal/observability"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// denyAll rejects every request it guards
type denyAll struct{}

func (denyAll) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, formatErrorResponse(errors.NewNotAuthenticatedError()))
	}
}

// failingStore refuses every write
type failingStore struct{}

func (failingStore) Append(ctx context.Context, entry feedback.Entry) error {
	return fmt.Errorf("disk full")
}

func (failingStore) List(ctx context.Context) ([]feedback.Entry, error) { return nil, nil }

type testServer struct {
	router   *gin.Engine
	store    *feedback.FileStore
	gen      *scriptedGenerator
	executor *mapExecutor
}

func newTestServer(t *testing.T, gen *scriptedGenerator, auth AuthMiddleware) *testServer {
	t.Helper()
	quiet := observability.NewLogger("test").WithOutput(&bytes.Buffer{})

	c := cache.New(cache.DefaultThreshold)
	c.Store(trendQuestion, trendSQL)
	exec := &mapExecutor{}
	store := feedback.NewFileStore(filepath.Join(t.TempDir(), "feedback.json"))

	resolver := NewResolver(c, gen, exec, 3, quiet)
	qp := NewQueryProcessor(resolver, store, "llama3.1:8b", quiet)

	return &testServer{
		router:   qp.SetupRoutes(auth, []string{"http://localhost:3000"}),
		store:    store,
		gen:      gen,
		executor: exec,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	}
	return w, decoded
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealthAndSuggest(t *testing.T) {
	s := newTestServer(t, &scriptedGenerator{}, nil)

	w, body := s.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "llama3.1:8b", body["model"])
	assert.Equal(t, float64(1), body["cache_size"])

	w, body = s.do(t, http.MethodGet, "/api/suggest", "")
	require.Equal(t, http.StatusOK, w.Code)
	suggestions, ok := body["suggestions"].([]any)
	require.True(t, ok)
	assert.Len(t, suggestions, 8)
	assert.Equal(t, "지난 12개월 NPL 비율 추이", suggestions[0])

	w, _ = s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAsk(t *testing.T) {
	t.Run("cache hit skips generation", func(t *testing.T) {
		s := newTestServer(t, &scriptedGenerator{}, nil)

		w, body := s.do(t, http.MethodPost, "/api/ask", `{"question":"NPL trend last 12 months"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		assert.Equal(t, trendSQL, body["sql"])
		assert.Equal(t, true, body["from_cache"])
		assert.Equal(t, "line", body["chart_type"])
		assert.NotEmpty(t, body["message_id"])
		assert.Len(t, body["data"], 2)
		assert.Len(t, body["columns"], 2)
		assert.Equal(t, "retrieved 2 records. (month, npl etc.)", body["summary"])
		assert.Empty(t, s.gen.prompts)
	})

	t.Run("generated answers are cached", func(t *testing.T) {
		gen := &scriptedGenerator{responses: []generatorResponse{{sql: "SELECT grade, pct FROM credit_grades"}}}
		s := newTestServer(t, gen, nil)

		w, body := s.do(t, http.MethodPost, "/api/ask", `{"question":"exposure share by credit grade"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, false, body["from_cache"])

		_, health := s.do(t, http.MethodGet, "/api/health", "")
		assert.Equal(t, float64(2), health["cache_size"])
	})

	t.Run("message ids are unique", func(t *testing.T) {
		s := newTestServer(t, &scriptedGenerator{}, nil)
		_, first := s.do(t, http.MethodPost, "/api/ask", `{"question":"NPL trend last 12 months"}`)
		_, second := s.do(t, http.MethodPost, "/api/ask", `{"question":"NPL trend last 12 months"}`)
		assert.NotEqual(t, first["message_id"], second["message_id"])
	})

	tests := []struct {
		name       string
		body       string
		responses  []generatorResponse
		wantStatus int
		wantCode   string
	}{
		{name: "blank question", body: `{"question":"   "}`, wantStatus: http.StatusBadRequest, wantCode: string(errors.ErrCodeEmptyQuestion)},
		{name: "missing question", body: `{}`, wantStatus: http.StatusBadRequest, wantCode: string(errors.ErrCodeEmptyQuestion)},
		{name: "malformed body", body: `{"question":`, wantStatus: http.StatusBadRequest, wantCode: string(errors.ErrCodeInvalidInput)},
		{
			name:       "unsafe SQL",
			body:       `{"question":"remove the old scenarios"}`,
			responses:  []generatorResponse{{sql: "DELETE FROM stress_scenarios"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   string(errors.ErrCodeUnsafeSQL),
		},
		{
			name: "generation exhausted",
			body: `{"question":"something unanswerable"}`,
			responses: []generatorResponse{
				{err: fmt.Errorf("model offline")},
				{err: fmt.Errorf("model offline")},
				{err: fmt.Errorf("model offline")},
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   string(errors.ErrCodeGenerationExhausted),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &scriptedGenerator{responses: tt.responses}, nil)

			w, body := s.do(t, http.MethodPost, "/api/ask", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantCode, errorCode(body))
		})
	}
}

func TestAskLogLevel(t *testing.T) {
	tests := []struct {
		name      string
		responses []generatorResponse
		wantLevel string
		wantMsg   string
	}{
		{
			name:      "unsafe SQL is a warning",
			responses: []generatorResponse{{sql: "DROP TABLE npl_trend"}},
			wantLevel: `"level":"warn"`,
			wantMsg:   "Question refused",
		},
		{
			name: "exhausted generation is an error",
			responses: []generatorResponse{
				{err: fmt.Errorf("model offline")},
				{err: fmt.Errorf("model offline")},
				{err: fmt.Errorf("model offline")},
			},
			wantLevel: `"level":"error"`,
			wantMsg:   "Question processing failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			logger := observability.NewLogger("test").WithOutput(&logs)
			resolver := NewResolver(cache.New(0), &scriptedGenerator{responses: tt.responses}, &mapExecutor{}, 3,
				observability.NewLogger("resolver").WithOutput(&bytes.Buffer{}))
			qp := NewQueryProcessor(resolver, failingStore{}, "m", logger)

			_, err := qp.Ask(context.Background(), "a question nobody cached")
			require.Error(t, err)

			assert.Contains(t, logs.String(), tt.wantLevel)
			assert.Contains(t, logs.String(), tt.wantMsg)
			if tt.wantLevel == `"level":"warn"` {
				assert.NotContains(t, logs.String(), `"level":"error"`)
			}
		})
	}
}

func TestFeedback(t *testing.T) {
	t.Run("records valid ratings", func(t *testing.T) {
		s := newTestServer(t, &scriptedGenerator{}, nil)

		for _, rating := range []string{"up", "down"} {
			w, body := s.do(t, http.MethodPost, "/api/feedback", `{"message_id":"m-1","rating":"`+rating+`"}`)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, true, body["ok"])
		}

		entries, err := s.store.List(context.Background())
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "up", entries[0].Rating)
		assert.Equal(t, "down", entries[1].Rating)
		assert.Equal(t, "m-1", entries[1].MessageID)
	})

	t.Run("rejects other ratings", func(t *testing.T) {
		s := newTestServer(t, &scriptedGenerator{}, nil)

		w, body := s.do(t, http.MethodPost, "/api/feedback", `{"message_id":"m-1","rating":"meh"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, string(errors.ErrCodeInvalidRating), errorCode(body))

		entries, err := s.store.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("storage failure is a server error", func(t *testing.T) {
		quiet := observability.NewLogger("test").WithOutput(&bytes.Buffer{})
		resolver := NewResolver(cache.New(0), &scriptedGenerator{}, &mapExecutor{}, 3, quiet)
		qp := NewQueryProcessor(resolver, failingStore{}, "m", quiet)

		err := qp.RecordFeedback(context.Background(), FeedbackRequest{MessageID: "m-1", Rating: "up"})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeFeedbackWrite))
		assert.Equal(t, http.StatusInternalServerError, getErrorStatusCode(err))
	})
}

func TestAuthMiddlewareGuardsQuestions(t *testing.T) {
	s := newTestServer(t, &scriptedGenerator{}, denyAll{})

	w, _ := s.do(t, http.MethodPost, "/api/ask", `{"question":"NPL trend last 12 months"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/feedback", `{"message_id":"m-1","rating":"up"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/suggest", "")
	assert.Equal(t, http.StatusOK, w.Code, "suggestions stay public")
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, &scriptedGenerator{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/ask", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestGetErrorStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"empty question", errors.NewEmptyQuestionError(), http.StatusBadRequest},
		{"invalid rating", errors.NewInvalidRatingError("meh"), http.StatusBadRequest},
		{"unsafe sql", errors.NewUnsafeSQLError("DROP"), http.StatusBadRequest},
		{"not authenticated", errors.NewNotAuthenticatedError(), http.StatusUnauthorized},
		{"invalid credentials", errors.NewInvalidCredentialsError(), http.StatusUnauthorized},
		{"insufficient permissions", errors.NewInsufficientPermissionsError("admin"), http.StatusForbidden},
		{"rate limited", errors.NewRateLimitedError(60), http.StatusTooManyRequests},
		{"exhausted", errors.NewGenerationExhaustedError(fmt.Errorf("x"), 3), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("ask: %w", errors.NewEmptyQuestionError()), http.StatusBadRequest},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, getErrorStatusCode(tt.err))
		})
	}
}

func TestFormatErrorResponse(t *testing.T) {
	body := formatErrorResponse(errors.NewEmptyQuestionError())
	inner := body["error"].(gin.H)
	assert.Equal(t, errors.ErrCodeEmptyQuestion, inner["code"])
	assert.NotEmpty(t, inner["message"])

	plain := formatErrorResponse(fmt.Errorf("boom"))["error"].(gin.H)
	assert.Equal(t, "INTERNAL_ERROR", plain["code"])
	assert.Equal(t, "boom", plain["message"])
}
