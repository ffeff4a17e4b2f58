// Package poll confirms downstream convergence: it repeatedly queries the
// Knox search API until every expected traceable identifier has been
// observed or the wait budget runs out.
package poll

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"knoxharness/logger"
	"knoxharness/models"
)

const (
	// DefaultInterval is the fixed polling cadence. Ingestion latency is
	// roughly uniform, so there is no backoff.
	DefaultInterval = 2 * time.Second
	// DefaultMaxWait bounds one polling session.
	DefaultMaxWait = 60 * time.Second
	// DefaultOverfetch widens the search page past the expected count so
	// cross-run contamination shows up instead of being truncated away.
	DefaultOverfetch = 25
)

// Searcher is the read API the poller converges against.
type Searcher interface {
	SearchTransactions(ctx context.Context, req models.SearchRequest) (*models.SearchResult, error)
}

// Query scopes one convergence session to a tenant and batch.
type Query struct {
	OrganizationID string
	BatchID        string
	ExpectedIDs    []string
}

// TimeoutError reports a session that ended without observing the full
// expected set.
type TimeoutError struct {
	BatchID      string
	Expected     int
	LastObserved int
	Missing      []string
	Waited       time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf(
		"expected %d transactions for batch %s but only observed %d within %s (missing: %v)",
		e.Expected, e.BatchID, e.LastObserved, e.Waited, e.Missing,
	)
}

// Poller runs bounded, fixed-cadence convergence checks. Zero-valued fields
// fall back to the defaults above.
type Poller struct {
	Searcher  Searcher
	Interval  time.Duration
	MaxWait   time.Duration
	Overfetch int
}

func New(s Searcher) *Poller {
	return &Poller{Searcher: s}
}

// Wait polls until the observed identifier set covers the expected set,
// returning the matching records. The deadline uses the monotonic clock, so
// wall-clock adjustments cannot stretch or shrink the budget. A search error
// aborts the session immediately; the loop itself is the only retry.
func (p *Poller) Wait(ctx context.Context, q Query) ([]models.TransactionRecord, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxWait := p.MaxWait
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	overfetch := p.Overfetch
	if overfetch <= 0 {
		overfetch = DefaultOverfetch
	}

	log := logger.L()
	expected := len(q.ExpectedIDs)
	req := models.SearchRequest{
		Filters: map[string]models.Filter{
			"transaction_metadata_organization_id": models.Eq(q.OrganizationID),
			"transaction_metadata_batch_id":        models.Eq(q.BatchID),
		},
		Pagination: models.Pagination{Limit: expected + overfetch},
	}

	deadline := time.Now().Add(maxWait)
	var lastRecords []models.TransactionRecord

	for time.Now().Before(deadline) {
		result, err := p.Searcher.SearchTransactions(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("search for batch %s: %w", q.BatchID, err)
		}
		records := result.Data
		lastRecords = records
		lastObserved := len(records)

		observed := make(map[string]struct{}, len(records))
		for _, record := range records {
			observed[record.TransactionID] = struct{}{}
		}

		if covers(observed, q.ExpectedIDs) {
			if lastObserved > expected {
				log.Warn("observed more records than expected for batch",
					zap.String("batch_id", q.BatchID),
					zap.Int("expected", expected),
					zap.Int("observed", lastObserved))
			}
			return records, nil
		}

		log.Debug("batch not yet converged",
			zap.String("batch_id", q.BatchID),
			zap.Int("expected", expected),
			zap.Int("observed", lastObserved))

		if err := sleep(ctx, interval); err != nil {
			return nil, err
		}
	}

	return nil, &TimeoutError{
		BatchID:      q.BatchID,
		Expected:     expected,
		LastObserved: len(lastRecords),
		Missing:      MissingIDs(q.ExpectedIDs, lastRecords),
		Waited:       maxWait,
	}
}

func covers(observed map[string]struct{}, expected []string) bool {
	for _, id := range expected {
		if _, ok := observed[id]; !ok {
			return false
		}
	}
	return true
}

// MissingIDs computes expected − observed over the given records, sorted.
// Callers use it after a successful Wait as an independent re-check of the
// superset decision.
func MissingIDs(expected []string, records []models.TransactionRecord) []string {
	observed := make(map[string]struct{}, len(records))
	for _, record := range records {
		observed[record.TransactionID] = struct{}{}
	}
	var missing []string
	for _, id := range expected {
		if _, ok := observed[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing
}

// sleep waits one polling interval, yielding to the scheduler; context
// cancellation cuts it short.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
