// internal/processor/metadata.go
package processor

import "github.com/seanankenbruck/insidebi-ai/internal/warehouse"

// ResultMetadata provides display hints and follow-up suggestions
type ResultMetadata struct {
	Recommendation string   `json:"recommendation"`
	NextSteps      []string `json:"next_steps,omitempty"`
	Truncated      bool     `json:"truncated,omitempty"`
}

// MetadataGenerator generates visualization hints and recommendations for query results
type MetadataGenerator struct{}

// NewMetadataGenerator creates a new metadata generator
func NewMetadataGenerator() *MetadataGenerator {
	return &MetadataGenerator{}
}

// GenerateMetadata creates metadata with visualization hints and next steps
func (mg *MetadataGenerator) GenerateMetadata(chart ChartType, result *warehouse.Result) *ResultMetadata {
	metadata := &ResultMetadata{
		NextSteps: []string{},
		Truncated: result.Truncated,
	}

	if result.RowCount() == 0 {
		metadata.Recommendation = "No rows matched this question"
		metadata.NextSteps = []string{
			"Check that the period or category exists in the dataset",
			"Try a broader question, e.g. without a filter",
		}
		return metadata
	}

	if result.IsScalar() {
		metadata.Recommendation = "This is a single snapshot, best shown as stat cards"
		metadata.NextSteps = append(metadata.NextSteps, "Ask for the monthly trend to see how it got here")
		return metadata
	}

	switch chart {
	case ChartLine:
		metadata.Recommendation = "A single series over time, best shown as a line"
		metadata.NextSteps = append(metadata.NextSteps, "Compare against a limit or threshold column")
	case ChartArea:
		metadata.Recommendation = "Several series over time, best shown as stacked areas"
		metadata.NextSteps = append(metadata.NextSteps, "Ask for a single series to see its trend in isolation")
	case ChartPie:
		metadata.Recommendation = "Shares of a whole, best shown as a pie"
	default:
		metadata.Recommendation = "Values by category, best shown as bars"
		if result.RowCount() > 10 {
			metadata.NextSteps = append(metadata.NextSteps, "Ask for the TOP 5 to focus on the largest categories")
		}
	}

	if result.Truncated {
		metadata.NextSteps = append(metadata.NextSteps, "Only the first rows are shown. Narrow the question to see everything")
	}

	return metadata
}
