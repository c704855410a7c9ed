package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

// BatchWriter commits the AnswerBuffer to the durable store once per result transition.
type BatchWriter struct {
	store  ResponseStore
	logger *zap.Logger
	now    func() time.Time
}

func NewBatchWriter(store ResponseStore, logger *zap.Logger) *BatchWriter {
	return &BatchWriter{store: store, logger: logger.Named("flush"), now: time.Now}
}

// Flush seals the buffer, commits its entries and clears it. On failure the buffer
// is unsealed with its entries intact so the flush can be retried.
func (w *BatchWriter) Flush(ctx context.Context, buffer *AnswerBuffer) (domain.CommitResult, error) {
	events := buffer.Seal()
	if len(events) == 0 {
		buffer.Clear()
		return domain.CommitResult{}, nil
	}

	start := w.now()
	responses := make([]domain.Response, 0, len(events))
	for _, ev := range events {
		responses = append(responses, domain.ResponseFromEvent(ev, start))
	}

	result, err := w.store.CommitAnswers(ctx, responses)
	elapsed := w.now().Sub(start)
	metrics.FlushDuration.Observe(elapsed.Seconds())
	if err != nil {
		metrics.FlushFailures.Inc()
		buffer.Unseal()
		w.logger.Error("answer flush failed", zap.Int("events", len(events)), zap.Error(err))
		return domain.CommitResult{}, fmt.Errorf("%w: %w", domain.ErrFlushFailed, err)
	}

	buffer.Clear()
	w.logger.Info("answers flushed",
		zap.Int("responses", result.Responses),
		zap.Int("score_updates", result.ScoreUpdates),
		zap.Duration("duration", elapsed),
	)
	return result, nil
}
