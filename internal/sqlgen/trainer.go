package sqlgen

import (
	"context"

	"github.com/seanankenbruck/insidebi-ai/internal/cache"
	"github.com/seanankenbruck/insidebi-ai/internal/observability"
	"github.com/seanankenbruck/insidebi-ai/internal/semantic"
)

// TrainingReport summarises a training run
type TrainingReport struct {
	Trained int      `json:"trained"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// Trainer loads golden question/SQL pairs into an example store
type Trainer struct {
	store  semantic.ExampleStore
	logger *observability.Logger
}

// NewTrainer creates a trainer for store
func NewTrainer(store semantic.ExampleStore, logger *observability.Logger) *Trainer {
	if logger == nil {
		logger = observability.NewLogger("trainer")
	}
	return &Trainer{store: store, logger: logger}
}

// Train stores every pair; a failing pair is logged and skipped
func (t *Trainer) Train(ctx context.Context, pairs []cache.GoldenPair) (*TrainingReport, error) {
	report := &TrainingReport{}

	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := t.store.Add(ctx, pair.Question, pair.SQL); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, pair.Question+": "+err.Error())
			t.logger.Error(ctx, "Failed to train example", err, map[string]interface{}{
				"question": truncate(pair.Question, 40),
			})
			continue
		}
		report.Trained++
		t.logger.Debug(ctx, "Trained example", map[string]interface{}{
			"question": truncate(pair.Question, 40),
		})
	}

	t.logger.Info(ctx, "Training complete", map[string]interface{}{
		"trained": report.Trained,
		"failed":  report.Failed,
	})
	return report, nil
}

// TrainFile loads pairs from a golden SQL file and trains them
func (t *Trainer) TrainFile(ctx context.Context, path string) (*TrainingReport, error) {
	pairs, err := cache.ReadGoldenFile(path)
	if err != nil {
		return nil, err
	}
	return t.Train(ctx, pairs)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
