package queue

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"knoxharness/logger"
)

// SubmissionError aggregates every entry the channel rejected across all
// chunks of one batch. It is raised only after every chunk was attempted.
type SubmissionError struct {
	Failures []Failure
}

func (e *SubmissionError) Error() string {
	reasons := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		reasons[i] = fmt.Sprintf("%s: %s", f.ID, f.Reason)
	}
	return fmt.Sprintf("failed to enqueue %d messages: %s", len(e.Failures), strings.Join(reasons, ", "))
}

// Publish pushes the entries through the channel in sequential chunks of
// MaxBatchSize. Every chunk is attempted even when an earlier one fails; a
// chunk whose call errors outright counts every entry of that chunk as
// failed. The channel is always closed before returning, success or not.
func Publish(ctx context.Context, ch Channel, entries []Entry) error {
	log := logger.L()
	defer func() {
		if err := ch.Close(); err != nil {
			log.Error("failed to close delivery channel", zap.Error(err))
		}
	}()

	var failures []Failure
	for start := 0; start < len(entries); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		chunk := entries[start:end]

		chunkFailures, err := ch.Send(ctx, chunk)
		if err != nil {
			for _, entry := range chunk {
				failures = append(failures, Failure{ID: entry.ID, Reason: err.Error()})
			}
			continue
		}
		failures = append(failures, chunkFailures...)
	}

	if len(failures) > 0 {
		return &SubmissionError{Failures: failures}
	}
	log.Info("batch enqueued", zap.Int("messages", len(entries)))
	return nil
}
