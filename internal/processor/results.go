// internal/processor/results.go
package processor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/seanankenbruck/insidebi-ai/internal/warehouse"
)

// ChartType is the visualization suggested for a result
type ChartType string

const (
	ChartLine ChartType = "line"
	ChartArea ChartType = "area"
	ChartBar  ChartType = "bar"
	ChartPie  ChartType = "pie"
)

const (
	summaryColumnLimit = 3  // Column names listed in a multi-row summary
	pieMaxColumns      = 3  // Widest result drawn as a pie
	pieMaxRows         = 10 // Longest result drawn as a pie
)

var (
	// Column name fragments that mark a time axis
	dateTokens = []string{"date", "month", "year", "날짜", "월", "기간"}
	// Column name fragments that mark a share of a whole
	ratioTokens = []string{"pct", "ratio", "rate", "비율"}
)

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

// InferChartType picks a chart from column names, types and result size.
// Every result maps to a chart; bar is the fallback.
func InferChartType(result *warehouse.Result) ChartType {
	if result == nil {
		return ChartBar
	}

	hasDate := false
	hasRatio := false
	numeric := 0
	for _, col := range result.Columns {
		name := strings.ToLower(col.Name)
		isDate := containsAny(name, dateTokens)
		if isDate {
			hasDate = true
		}
		if containsAny(name, ratioTokens) {
			hasRatio = true
		}
		if col.Type == warehouse.ColumnNumeric && !isDate {
			numeric++
		}
	}

	if hasDate {
		if numeric >= 2 {
			return ChartArea
		}
		return ChartLine
	}
	if hasRatio && len(result.Columns) <= pieMaxColumns && result.RowCount() <= pieMaxRows {
		return ChartPie
	}
	return ChartBar
}

// Summarize produces a one-line description of a result. The question and
// SQL are accepted for callers that log them but do not affect the text.
func Summarize(question string, result *warehouse.Result, sql string) string {
	if result.IsScalar() {
		row := result.Rows[0]
		parts := make([]string, len(result.Columns))
		for i, col := range result.Columns {
			parts[i] = fmt.Sprintf("%s: %s", col.Name, formatValue(row[col.Name]))
		}
		return "current values: " + strings.Join(parts, ", ")
	}

	names := result.ColumnNames()
	if len(names) > summaryColumnLimit {
		names = names[:summaryColumnLimit]
	}
	return fmt.Sprintf("retrieved %d records. (%s etc.)", result.RowCount(), strings.Join(names, ", "))
}

// formatValue renders a cell for summaries. Whole floats keep a trailing
// ".0" so 185420.0 does not read as an integer count.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case float64:
		s := strconv.FormatFloat(val, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eEN") {
			s += ".0"
		}
		return s
	case int64:
		return strconv.FormatInt(val, 10)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

// ShapedResult is a result prepared for presentation
type ShapedResult struct {
	ChartType ChartType          `json:"chart_type"`
	Summary   string             `json:"summary"`
	Metadata  *ResultMetadata    `json:"metadata,omitempty"`
	Columns   []warehouse.Column `json:"columns"`
	Records   []map[string]any   `json:"data"`
}

// ResultProcessor turns warehouse results into presentation payloads
type ResultProcessor struct {
	metadata *MetadataGenerator
}

// NewResultProcessor creates a new result processor
func NewResultProcessor() *ResultProcessor {
	return &ResultProcessor{metadata: NewMetadataGenerator()}
}

// Shape infers the chart, writes the summary and attaches display hints
func (rp *ResultProcessor) Shape(question, sql string, result *warehouse.Result) *ShapedResult {
	if result == nil {
		result = &warehouse.Result{}
	}
	chart := InferChartType(result)
	return &ShapedResult{
		ChartType: chart,
		Summary:   Summarize(question, result, sql),
		Metadata:  rp.metadata.GenerateMetadata(chart, result),
		Columns:   result.Columns,
		Records:   result.Records(),
	}
}
