package indexsource

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketday/tracker/pkg/logger"
)

type fakeCache struct {
	lists map[string][]string
	saved map[string][]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{lists: map[string][]string{}, saved: map[string][]string{}}
}

func (f *fakeCache) Load(_ context.Context, indexName string) ([]string, bool) {
	symbols, ok := f.lists[indexName]
	return symbols, ok
}

func (f *fakeCache) Save(_ context.Context, indexName string, symbols []string) {
	f.saved[indexName] = symbols
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"S&P 500", SP500},
		{"s&p 500", SP500},
		{"SP500", SP500},
		{"SP 500 Index", SP500},
		{"NASDAQ-100", Nasdaq100},
		{"Nasdaq 100", Nasdaq100},
		{"Dow Jones", DowJones},
		{"DJIA", DowJones},
		{"dow 30", DowJones},
		{"NASDAQ Composite", ""},
		{"KOSPI", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonicalize(tt.input))
		})
	}
}

func TestSymbolsUnknownIndex(t *testing.T) {
	source := NewSource(nil, logger.NewNop())

	symbols, err := source.Symbols(context.Background(), "KOSPI")
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestSymbolsFromCache(t *testing.T) {
	cache := newFakeCache()
	cache.lists[SP500] = []string{"AAPL", "MSFT", "NVDA"}

	source := NewSource(cache, logger.NewNop())
	// No page override: a scrape attempt would hit the real page, so a
	// pass here proves the cache short-circuits it.
	symbols, err := source.Symbols(context.Background(), "sp500")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, symbols)
}

func constituentPage(count int) string {
	var b strings.Builder
	b.WriteString(`<html><body><table id="constituents"><tr><th>Symbol</th><th>Company</th></tr>`)
	for i := 0; i < count; i++ {
		fmt.Fprintf(&b, `<tr><td>SYM%d</td><td>Company %d</td></tr>`, i, i)
	}
	b.WriteString(`</table></body></html>`)
	return b.String()
}

func TestSymbolsScrapesAndCaches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, constituentPage(32))
	}))
	defer srv.Close()

	cache := newFakeCache()
	source := NewSource(cache, logger.NewNop())
	source.pageOverrides = map[string]string{DowJones: srv.URL}

	symbols, err := source.Symbols(context.Background(), "Dow Jones")
	require.NoError(t, err)

	assert.Len(t, symbols, 32)
	assert.Equal(t, "SYM0", symbols[0])
	assert.Equal(t, symbols, cache.saved[DowJones], "fresh scrape must be written back to the cache")
}

func TestSymbolsBelowFloorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, constituentPage(3))
	}))
	defer srv.Close()

	cache := newFakeCache()
	source := NewSource(cache, logger.NewNop())
	source.pageOverrides = map[string]string{DowJones: srv.URL}

	symbols, err := source.Symbols(context.Background(), "DJIA")
	require.NoError(t, err)

	assert.Equal(t, specs[DowJones].fallback, symbols)
	assert.Empty(t, cache.saved, "suspect lists must not poison the cache")
}

func TestSymbolsScrapeErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	source := NewSource(nil, logger.NewNop())
	source.pageOverrides = map[string]string{Nasdaq100: srv.URL}

	symbols, err := source.Symbols(context.Background(), "NASDAQ-100")
	require.NoError(t, err)
	assert.Equal(t, specs[Nasdaq100].fallback, symbols)
}

func TestRefreshBypassesCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, constituentPage(32))
	}))
	defer srv.Close()

	cache := newFakeCache()
	cache.lists[DowJones] = []string{"STALE"}

	source := NewSource(cache, logger.NewNop())
	source.pageOverrides = map[string]string{DowJones: srv.URL}

	symbols, err := source.Refresh(context.Background(), "Dow Jones")
	require.NoError(t, err)

	assert.Len(t, symbols, 32)
	assert.Equal(t, symbols, cache.saved[DowJones], "refresh must overwrite the cached list")
}

func TestRefreshBelowFloorErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, constituentPage(3))
	}))
	defer srv.Close()

	cache := newFakeCache()
	source := NewSource(cache, logger.NewNop())
	source.pageOverrides = map[string]string{DowJones: srv.URL}

	_, err := source.Refresh(context.Background(), "DJIA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sanity check")
	assert.Empty(t, cache.saved)
}

func TestRefreshUnknownIndex(t *testing.T) {
	source := NewSource(nil, logger.NewNop())

	_, err := source.Refresh(context.Background(), "KOSPI")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown index")
}
