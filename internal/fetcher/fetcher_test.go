package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketday/tracker/internal/contracts"
	"github.com/marketday/tracker/pkg/logger"
)

type fakeSource struct {
	mu    sync.Mutex
	lists map[string][]string
	errs  map[string]error
}

func (s *fakeSource) Symbols(_ context.Context, indexName string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs[indexName]; err != nil {
		return nil, err
	}
	return s.lists[indexName], nil
}

type fakeClient struct {
	mu    sync.Mutex
	snaps map[string]contracts.Snapshot
	full  int
}

func (c *fakeClient) FetchLight(_ context.Context, symbol string) (*contracts.Snapshot, error) {
	return c.FetchFull(context.Background(), symbol)
}

func (c *fakeClient) FetchFull(_ context.Context, symbol string) (*contracts.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.full++
	snap, ok := c.snaps[symbol]
	if !ok {
		return nil, fmt.Errorf("quote for %s: %w", symbol, contracts.ErrNotFound)
	}
	out := snap
	return &out, nil
}

func (c *fakeClient) fullCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.full
}

type fakeRanker struct {
	mu       sync.Mutex
	out      []string
	err      error
	received []string
}

func (r *fakeRanker) Rank(_ context.Context, symbols []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append([]string(nil), symbols...)
	if r.err != nil {
		return nil, r.err
	}
	return r.out, nil
}

func (r *fakeRanker) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.received
}

func symbolSet(prefix string, n int) []string {
	symbols := make([]string, 0, n)
	for i := 0; i < n; i++ {
		symbols = append(symbols, fmt.Sprintf("%s%03d", prefix, i))
	}
	return symbols
}

func clientFor(symbols ...string) *fakeClient {
	snaps := make(map[string]contracts.Snapshot, len(symbols))
	for i, symbol := range symbols {
		snaps[symbol] = contracts.Snapshot{
			Symbol: symbol,
			Name:   symbol + " Inc",
			Close:  100 + float64(i),
			Volume: 1_000_000,
		}
	}
	return &fakeClient{snaps: snaps}
}

func fetchedSymbols(snapshots []contracts.Snapshot) []string {
	symbols := make([]string, 0, len(snapshots))
	for _, snap := range snapshots {
		symbols = append(symbols, snap.Symbol)
	}
	sort.Strings(symbols)
	return symbols
}

func TestFetchIndicesTagsAndGroups(t *testing.T) {
	source := &fakeSource{lists: map[string][]string{
		"S&P 500":    {"AAPL", "MSFT", "NVDA"},
		"NASDAQ-100": {"AVGO", "COST"},
	}}
	client := clientFor("AAPL", "MSFT", "NVDA", "AVGO", "COST")
	f := New(source, client, nil, Config{}, logger.NewNop())

	data, err := f.FetchIndices(context.Background(), []string{"S&P 500", "NASDAQ-100"})
	require.NoError(t, err)
	require.Len(t, data, 2)

	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, fetchedSymbols(data["S&P 500"]))
	assert.Equal(t, []string{"AVGO", "COST"}, fetchedSymbols(data["NASDAQ-100"]))

	for indexName, snapshots := range data {
		for _, snap := range snapshots {
			assert.Equal(t, indexName, snap.IndexName)
			assert.NotEmpty(t, snap.Name)
		}
	}
}

func TestFetchIndicesScreensAboveThreshold(t *testing.T) {
	universe := symbolSet("SYM", 24)
	source := &fakeSource{lists: map[string][]string{"S&P 500": universe}}
	client := clientFor("SYM001", "SYM007")
	ranker := &fakeRanker{out: []string{"SYM001", "SYM007"}}
	f := New(source, client, ranker, Config{}, logger.NewNop())

	data, err := f.FetchIndices(context.Background(), []string{"S&P 500"})
	require.NoError(t, err)

	assert.Equal(t, universe, ranker.got())
	assert.Equal(t, []string{"SYM001", "SYM007"}, fetchedSymbols(data["S&P 500"]))
	assert.Equal(t, 2, client.fullCalls())
}

func TestFetchIndicesCapsUniverse(t *testing.T) {
	source := &fakeSource{lists: map[string][]string{"S&P 500": symbolSet("BIG", 150)}}
	client := clientFor("BIG000")
	ranker := &fakeRanker{out: []string{"BIG000"}}
	f := New(source, client, ranker, Config{}, logger.NewNop())

	_, err := f.FetchIndices(context.Background(), []string{"S&P 500"})
	require.NoError(t, err)

	require.Len(t, ranker.got(), 100)
	assert.Equal(t, "BIG099", ranker.got()[99])
}

func TestFetchIndicesSkipsScreeningAtThreshold(t *testing.T) {
	universe := symbolSet("SML", 20)
	source := &fakeSource{lists: map[string][]string{"Dow Jones": universe}}
	client := clientFor(universe...)
	ranker := &fakeRanker{out: []string{"SML000"}}
	f := New(source, client, ranker, Config{}, logger.NewNop())

	data, err := f.FetchIndices(context.Background(), []string{"Dow Jones"})
	require.NoError(t, err)

	assert.Empty(t, ranker.got())
	assert.Len(t, data["Dow Jones"], 20)
	assert.Equal(t, 20, client.fullCalls())
}

func TestFetchIndicesSymbolFailuresAreLocal(t *testing.T) {
	source := &fakeSource{lists: map[string][]string{"Dow Jones": {"AAPL", "GONE", "MSFT", "DEAD"}}}
	client := clientFor("AAPL", "MSFT")
	f := New(source, client, nil, Config{}, logger.NewNop())

	data, err := f.FetchIndices(context.Background(), []string{"Dow Jones"})
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, fetchedSymbols(data["Dow Jones"]))
}

func TestFetchIndicesEmptyIndexIsSkipped(t *testing.T) {
	source := &fakeSource{lists: map[string][]string{
		"S&P 500":    {"AAPL"},
		"NASDAQ-100": nil,
	}}
	client := clientFor("AAPL")
	f := New(source, client, nil, Config{}, logger.NewNop())

	data, err := f.FetchIndices(context.Background(), []string{"S&P 500", "NASDAQ-100"})
	require.NoError(t, err)

	require.Len(t, data, 1)
	_, ok := data["NASDAQ-100"]
	assert.False(t, ok)
}

func TestFetchIndicesSourceErrorIsLocal(t *testing.T) {
	source := &fakeSource{
		lists: map[string][]string{"S&P 500": {"AAPL"}},
		errs:  map[string]error{"NASDAQ-100": errors.New("scrape failed")},
	}
	client := clientFor("AAPL")
	f := New(source, client, nil, Config{}, logger.NewNop())

	data, err := f.FetchIndices(context.Background(), []string{"NASDAQ-100", "S&P 500"})
	require.NoError(t, err)

	require.Len(t, data, 1)
	assert.Len(t, data["S&P 500"], 1)
}

func TestFetchIndicesScreeningLeavesNothing(t *testing.T) {
	source := &fakeSource{lists: map[string][]string{"S&P 500": symbolSet("SYM", 24)}}
	client := clientFor()
	ranker := &fakeRanker{out: nil}
	f := New(source, client, ranker, Config{}, logger.NewNop())

	_, err := f.FetchIndices(context.Background(), []string{"S&P 500"})
	require.ErrorIs(t, err, contracts.ErrNoData)
	assert.Equal(t, 0, client.fullCalls())
}

func TestFetchIndicesNoDataAnywhere(t *testing.T) {
	source := &fakeSource{lists: map[string][]string{}}
	f := New(source, clientFor(), nil, Config{}, logger.NewNop())

	_, err := f.FetchIndices(context.Background(), []string{"S&P 500", "NASDAQ-100"})
	require.ErrorIs(t, err, contracts.ErrNoData)
}

func TestFetchIndicesCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &fakeSource{lists: map[string][]string{"S&P 500": {"AAPL"}}}
	f := New(source, clientFor("AAPL"), nil, Config{}, logger.NewNop())

	_, err := f.FetchIndices(ctx, []string{"S&P 500"})
	require.ErrorIs(t, err, context.Canceled)
}
