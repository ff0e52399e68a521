package processor

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/seanankenbruck/insidebi-ai/internal/errors"
	"github.com/seanankenbruck/insidebi-ai/internal/feedback"
	"github.com/seanankenbruck/insidebi-ai/internal/observability"
	"github.com/seanankenbruck/insidebi-ai/internal/warehouse"
)

// Suggestions are the example questions offered to new users
var Suggestions = []string{
	"지난 12개월 NPL 비율 추이",
	"업종별 익스포저 TOP 5",
	"스트레스 시나리오별 총 손실 비교",
	"현재 LCR과 NSFR 수치",
	"VaR가 1300억원을 초과한 날",
	"신용등급별 익스포저 비율",
	"만기갭 분석 자산 부채 차이",
	"조달 구조 비중",
}

// AskRequest is a natural language question
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is an answered question, ready to render
type AskResponse struct {
	MessageID string             `json:"message_id"`
	SQL       string             `json:"sql"`
	Data      []map[string]any   `json:"data"`
	Columns   []warehouse.Column `json:"columns"`
	ChartType ChartType          `json:"chart_type"`
	Summary   string             `json:"summary"`
	FromCache bool               `json:"from_cache"`
	Metadata  *ResultMetadata    `json:"metadata,omitempty"`
}

// FeedbackRequest rates an earlier answer
type FeedbackRequest struct {
	MessageID string `json:"message_id"`
	Rating    string `json:"rating"`
}

// AuthMiddleware is an interface for authentication middleware
type AuthMiddleware interface {
	Middleware() gin.HandlerFunc
}

// QueryProcessor is the main service struct
type QueryProcessor struct {
	resolver      *Resolver
	results       *ResultProcessor
	feedback      feedback.Store
	model         string
	healthChecker *observability.HealthChecker
	logger        *observability.Logger
}

// NewQueryProcessor creates a new query processor instance. model is reported
// by the health endpoint.
func NewQueryProcessor(resolver *Resolver, feedbackStore feedback.Store, model string, logger *observability.Logger) *QueryProcessor {
	if logger == nil {
		logger = observability.NewLogger("query-processor")
	}
	return &QueryProcessor{
		resolver: resolver,
		results:  NewResultProcessor(),
		feedback: feedbackStore,
		model:    model,
		logger:   logger,
	}
}

// SetHealthChecker sets the health checker for the processor
func (qp *QueryProcessor) SetHealthChecker(healthChecker *observability.HealthChecker) {
	qp.healthChecker = healthChecker
}

// Ask answers a question and shapes the rows for display
func (qp *QueryProcessor) Ask(ctx context.Context, question string) (*AskResponse, error) {
	start := time.Now()
	if strings.TrimSpace(question) == "" {
		return nil, errors.NewEmptyQuestionError()
	}

	qp.logger.Info(ctx, "Processing question", map[string]interface{}{
		"question": question,
	})

	resolution, err := qp.resolver.Resolve(ctx, question)
	if err != nil {
		fields := map[string]interface{}{
			"question":    question,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		// Refused SQL is a user-facing rejection
		if errors.IsCode(err, errors.ErrCodeUnsafeSQL) {
			fields["reason"] = errors.Reason(err)
			qp.logger.Warn(ctx, "Question refused", fields)
		} else {
			qp.logger.Error(ctx, "Question processing failed", err, fields)
		}
		return nil, err
	}

	shaped := qp.results.Shape(question, resolution.SQL, resolution.Result)
	response := &AskResponse{
		MessageID: uuid.New().String(),
		SQL:       resolution.SQL,
		Data:      shaped.Records,
		Columns:   shaped.Columns,
		ChartType: shaped.ChartType,
		Summary:   shaped.Summary,
		FromCache: resolution.CacheHit,
		Metadata:  shaped.Metadata,
	}

	qp.logger.Info(ctx, "Question answered", map[string]interface{}{
		"message_id":  response.MessageID,
		"from_cache":  response.FromCache,
		"attempts":    resolution.Attempts,
		"rows":        len(response.Data),
		"chart_type":  response.ChartType,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return response, nil
}

// RecordFeedback validates and persists a rating
func (qp *QueryProcessor) RecordFeedback(ctx context.Context, req FeedbackRequest) error {
	entry, err := feedback.NewEntry(req.MessageID, req.Rating)
	if err != nil {
		return err
	}
	if err := qp.feedback.Append(ctx, entry); err != nil {
		return errors.NewFeedbackWriteError(err)
	}

	qp.logger.Info(ctx, "Feedback recorded", map[string]interface{}{
		"message_id": entry.MessageID,
		"rating":     entry.Rating,
	})
	return nil
}

// SetupRoutes configures HTTP routes with optional authentication on the
// question and feedback endpoints
func (qp *QueryProcessor) SetupRoutes(authMiddleware AuthMiddleware, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(observability.RecoveryMiddleware(qp.logger))
	r.Use(observability.RequestLoggingMiddleware(qp.logger))
	r.Use(observability.MetricsMiddleware())
	r.Use(observability.CORSWithLogging(qp.logger, allowedOrigins))

	// Detailed dependency report
	if qp.healthChecker != nil {
		r.GET("/health", observability.HealthHandler(qp.healthChecker))
	} else {
		r.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  observability.HealthStatusHealthy,
				"service": "query-processor",
			})
		})
	}
	r.GET("/metrics", observability.MetricsEndpoint())

	public := r.Group("/api")
	{
		public.GET("/health", qp.handleHealth)
		public.GET("/suggest", qp.handleSuggest)
	}

	api := r.Group("/api")
	if authMiddleware != nil {
		api.Use(authMiddleware.Middleware())
	}
	{
		api.POST("/ask", qp.handleAsk)
		api.POST("/feedback", qp.handleFeedback)
	}

	return r
}

func (qp *QueryProcessor) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"model":      qp.model,
		"cache_size": qp.resolver.CacheSize(),
	})
}

func (qp *QueryProcessor) handleSuggest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"suggestions": Suggestions})
}

func (qp *QueryProcessor) handleAsk(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.NewInvalidInputError("request body", err.Error()))
		return
	}

	response, err := qp.Ask(c.Request.Context(), req.Question)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (qp *QueryProcessor) handleFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.NewInvalidInputError("request body", err.Error()))
		return
	}

	if err := qp.RecordFeedback(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func respondError(c *gin.Context, err error) {
	c.JSON(getErrorStatusCode(err), formatErrorResponse(err))
}

// formatErrorResponse formats an error into a user-friendly response
func formatErrorResponse(err error) gin.H {
	enhancedErr, ok := errors.AsEnhanced(err)
	if !ok {
		return gin.H{
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": err.Error(),
			},
		}
	}

	body := gin.H{
		"code":    enhancedErr.Code,
		"message": enhancedErr.Message,
	}
	if enhancedErr.Details != "" {
		body["details"] = enhancedErr.Details
	}
	if enhancedErr.Suggestion != "" {
		body["suggestion"] = enhancedErr.Suggestion
	}
	if len(enhancedErr.Metadata) > 0 {
		body["metadata"] = enhancedErr.Metadata
	}
	return gin.H{"error": body}
}

// getErrorStatusCode returns the appropriate HTTP status code for an error
func getErrorStatusCode(err error) int {
	switch errors.CodeOf(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeEmptyQuestion,
		errors.ErrCodeInvalidRating, errors.ErrCodeUnsafeSQL:
		return http.StatusBadRequest
	case errors.ErrCodeInvalidCredentials, errors.ErrCodeNotAuthenticated:
		return http.StatusUnauthorized
	case errors.ErrCodeInsufficientPerms:
		return http.StatusForbidden
	case errors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
