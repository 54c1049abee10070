package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/marketday/tracker/internal/contracts"
)

// 2025-07-03 is a Thursday.
var tradeDate = time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC)

// fakeSnapshots implements contracts.SnapshotRepository over one
// in-memory day of data plus optional per-symbol history.
type fakeSnapshots struct {
	date      time.Time
	snapshots []*contracts.Snapshot
	history   map[string][]*contracts.Snapshot
	err       error
	byDateErr error
}

func (f *fakeSnapshots) SaveBatch(ctx context.Context, snapshots []*contracts.Snapshot) error {
	return f.err
}

func (f *fakeSnapshots) LatestDate(ctx context.Context) (time.Time, error) {
	if f.err != nil {
		return time.Time{}, f.err
	}
	if f.date.IsZero() {
		return time.Time{}, contracts.ErrNotFound
	}
	return f.date, nil
}

func (f *fakeSnapshots) GetByDate(ctx context.Context, date time.Time) ([]*contracts.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.byDateErr != nil {
		return nil, f.byDateErr
	}
	return f.snapshots, nil
}

func (f *fakeSnapshots) GetBySymbolAndDate(ctx context.Context, symbol string, date time.Time) (*contracts.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, s := range f.snapshots {
		if s.Symbol == symbol {
			return s, nil
		}
	}
	return nil, contracts.ErrNotFound
}

func (f *fakeSnapshots) GetHistory(ctx context.Context, symbol string, days int) ([]*contracts.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	history := f.history[symbol]
	if len(history) > days {
		history = history[len(history)-days:]
	}
	return history, nil
}

// fakeProjections implements contracts.ProjectionRepository over one
// in-memory run of projections.
type fakeProjections struct {
	projections []*contracts.Projection
	err         error
}

func (f *fakeProjections) SaveBatch(ctx context.Context, date time.Time, projections []*contracts.Projection) error {
	return f.err
}

func (f *fakeProjections) GetByDate(ctx context.Context, date time.Time) ([]*contracts.Projection, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.projections, nil
}

func (f *fakeProjections) GetBySymbolAndDate(ctx context.Context, symbol string, date time.Time) (*contracts.Projection, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.projections {
		if p.Symbol == symbol {
			return p, nil
		}
	}
	return nil, contracts.ErrNotFound
}

func (f *fakeProjections) GetByRecommendation(ctx context.Context, date time.Time, rec contracts.Recommendation, limit int) ([]*contracts.Projection, error) {
	if f.err != nil {
		return nil, f.err
	}
	var matched []*contracts.Projection
	for _, p := range f.projections {
		if p.Recommendation == rec {
			matched = append(matched, p)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Confidence > matched[j].Confidence
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// fakeSummaries implements contracts.SummaryRepository over stored docs
// keyed by date string.
type fakeSummaries struct {
	dates []time.Time
	docs  map[string]*contracts.SummaryDocument
	err   error
}

func (f *fakeSummaries) Save(ctx context.Context, date time.Time, doc *contracts.SummaryDocument) error {
	return f.err
}

func (f *fakeSummaries) GetByDate(ctx context.Context, date time.Time) (*contracts.SummaryDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	doc, ok := f.docs[date.Format("2006-01-02")]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	return doc, nil
}

func (f *fakeSummaries) AvailableDates(ctx context.Context, limit int) ([]time.Time, error) {
	if f.err != nil {
		return nil, f.err
	}
	dates := f.dates
	if limit > 0 && len(dates) > limit {
		dates = dates[:limit]
	}
	return dates, nil
}

// marketSnapshot builds a snapshot whose previous close is 100, so the
// change equals the change percent.
func marketSnapshot(symbol string, changePercent float64, volume int64) *contracts.Snapshot {
	close := 100 + changePercent
	return &contracts.Snapshot{
		Symbol:        symbol,
		Name:          symbol + " Inc",
		Exchange:      "NASDAQ",
		IndexName:     "NASDAQ-100",
		Date:          tradeDate,
		Open:          100,
		High:          close + 1,
		Low:           99,
		Close:         close,
		PreviousClose: 100,
		Change:        changePercent,
		ChangePercent: changePercent,
		Volume:        volume,
		MarketCap:     500000,
	}
}

// doGet serves one GET request against a handler and decodes the JSON
// envelope. vars carries route variables for handlers using mux.Vars.
func doGet(t *testing.T, handler http.HandlerFunc, target string, vars map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

// envelopeData asserts a success envelope and returns its data object.
func envelopeData(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()

	require.Equal(t, true, body["success"])
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "data is not an object")
	return data
}

// envelopeError asserts an error envelope and returns its message.
func envelopeError(t *testing.T, body map[string]interface{}) string {
	t.Helper()

	require.Equal(t, false, body["success"])
	message, ok := body["error"].(string)
	require.True(t, ok, "error is not a string")
	return message
}
