package poll

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knoxharness/models"
)

// scriptedSearcher returns canned pages in order, repeating the last one.
type scriptedSearcher struct {
	pages   []*models.SearchResult
	err     error
	calls   int
	lastReq models.SearchRequest
}

func (s *scriptedSearcher) SearchTransactions(_ context.Context, req models.SearchRequest) (*models.SearchResult, error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	index := s.calls - 1
	if index >= len(s.pages) {
		index = len(s.pages) - 1
	}
	return s.pages[index], nil
}

func records(ids ...string) []models.TransactionRecord {
	out := make([]models.TransactionRecord, len(ids))
	for i, id := range ids {
		out[i] = models.TransactionRecord{TransactionID: id, BatchID: "batch-a"}
	}
	return out
}

func testQuery(ids ...string) Query {
	return Query{OrganizationID: "org-1", BatchID: "batch-a", ExpectedIDs: ids}
}

func TestWaitSucceedsOnceAllIDsObserved(t *testing.T) {
	searcher := &scriptedSearcher{pages: []*models.SearchResult{
		{Data: nil},
		{Data: nil},
		{Data: records("a", "b", "c")},
	}}
	p := &Poller{Searcher: searcher, Interval: 5 * time.Millisecond, MaxWait: time.Second}

	got, err := p.Wait(context.Background(), testQuery("a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, 3, searcher.calls, "poller must return on the poll that converges")
	assert.Len(t, got, 3)
	assert.Empty(t, MissingIDs([]string{"a", "b", "c"}, got))
}

func TestWaitToleratesExtraRecords(t *testing.T) {
	searcher := &scriptedSearcher{pages: []*models.SearchResult{
		{Data: records("a", "b", "stray")},
	}}
	p := &Poller{Searcher: searcher, Interval: 5 * time.Millisecond, MaxWait: time.Second}

	got, err := p.Wait(context.Background(), testQuery("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, 1, searcher.calls)
	assert.Len(t, got, 3)
}

func TestWaitTimesOutWithMissingSet(t *testing.T) {
	searcher := &scriptedSearcher{pages: []*models.SearchResult{
		{Data: records("c", "a")},
	}}
	p := &Poller{Searcher: searcher, Interval: 5 * time.Millisecond, MaxWait: 60 * time.Millisecond}

	_, err := p.Wait(context.Background(), testQuery("a", "b", "c", "d", "e"))
	require.Error(t, err)

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "batch-a", timeout.BatchID)
	assert.Equal(t, 5, timeout.Expected)
	assert.Equal(t, 2, timeout.LastObserved)
	assert.Equal(t, []string{"b", "d", "e"}, timeout.Missing)
	assert.Equal(t, 60*time.Millisecond, timeout.Waited)
	assert.Contains(t, err.Error(), "batch-a")
	assert.GreaterOrEqual(t, searcher.calls, 2, "poller must keep retrying until the deadline")
}

func TestWaitAbortsSessionOnSearchError(t *testing.T) {
	searcher := &scriptedSearcher{err: errors.New("bad gateway")}
	p := &Poller{Searcher: searcher, Interval: 5 * time.Millisecond, MaxWait: time.Second}

	_, err := p.Wait(context.Background(), testQuery("a"))
	require.Error(t, err)
	assert.Equal(t, 1, searcher.calls, "a failed poll must not be retried")
	assert.Contains(t, err.Error(), "bad gateway")
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	searcher := &scriptedSearcher{pages: []*models.SearchResult{{Data: nil}}}
	p := &Poller{Searcher: searcher, Interval: time.Minute, MaxWait: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := p.Wait(ctx, testQuery("a"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitBuildsScopedOverfetchedFilter(t *testing.T) {
	searcher := &scriptedSearcher{pages: []*models.SearchResult{
		{Data: records("a", "b", "c")},
	}}
	p := &Poller{Searcher: searcher, Interval: 5 * time.Millisecond, MaxWait: time.Second, Overfetch: 7}

	_, err := p.Wait(context.Background(), testQuery("a", "b", "c"))
	require.NoError(t, err)

	req := searcher.lastReq
	assert.Equal(t, models.Eq("org-1"), req.Filters["transaction_metadata_organization_id"])
	assert.Equal(t, models.Eq("batch-a"), req.Filters["transaction_metadata_batch_id"])
	assert.Equal(t, 10, req.Pagination.Limit)
}

func TestMissingIDs(t *testing.T) {
	observed := records("b", "a")
	assert.Equal(t, []string{"c", "d"}, MissingIDs([]string{"d", "a", "c", "b"}, observed))
	assert.Empty(t, MissingIDs([]string{"a", "b"}, observed))
	assert.Equal(t, []string{"x"}, MissingIDs([]string{"x"}, nil))
}

func TestTimeoutErrorMessageCarriesDiagnostics(t *testing.T) {
	err := &TimeoutError{
		BatchID:      "batch-z",
		Expected:     100,
		LastObserved: 97,
		Missing:      []string{"m1", "m2", "m3"},
		Waited:       60 * time.Second,
	}
	msg := err.Error()
	for _, want := range []string{"100", "batch-z", "97", "1m0s", "m1"} {
		assert.Contains(t, msg, want, fmt.Sprintf("message should mention %s", want))
	}
}
