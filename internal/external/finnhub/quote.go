package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/marketday/tracker/internal/contracts"
)

// quoteResponse mirrors the /quote endpoint payload.
type quoteResponse struct {
	Current       float64 `json:"c"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
	Volume        float64 `json:"v"`
	Error         string  `json:"error"`
}

// profileResponse mirrors the /stock/profile2 endpoint payload.
// MarketCapitalization is reported in millions of USD.
type profileResponse struct {
	Name                 string  `json:"name"`
	Ticker               string  `json:"ticker"`
	Exchange             string  `json:"exchange"`
	Currency             string  `json:"currency"`
	MarketCapitalization float64 `json:"marketCapitalization"`
	Error                string  `json:"error"`
}

// FetchLight grabs just the quote for a symbol, spending a single API
// call. The snapshot carries no profile data: the name falls back to the
// symbol and the market cap stays zero.
func (c *Client) FetchLight(ctx context.Context, symbol string) (*contracts.Snapshot, error) {
	q, err := c.quote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	change, changePercent := contracts.PriceChange(q.Current, q.PreviousClose)
	return &contracts.Snapshot{
		Symbol:        symbol,
		Name:          symbol,
		Date:          marketDate(time.Now()),
		Open:          q.Open,
		High:          q.High,
		Low:           q.Low,
		Close:         q.Current,
		PreviousClose: q.PreviousClose,
		Change:        change,
		ChangePercent: changePercent,
		Volume:        q.Volume,
	}, nil
}

// FetchFull grabs the quote plus the company profile, spending two API
// calls. A profile failure degrades to symbol-only identity instead of
// failing the fetch; a quote failure fails it.
func (c *Client) FetchFull(ctx context.Context, symbol string) (*contracts.Snapshot, error) {
	q, err := c.quote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	p, err := c.profile(ctx, symbol)
	if err != nil {
		c.logger.WithError(err).WithField("symbol", symbol).Debug("Profile fetch failed, using quote only")
		p = profileResponse{}
	}

	name := p.Name
	if name == "" {
		name = symbol
	}

	change, changePercent := contracts.PriceChange(q.Current, q.PreviousClose)
	return &contracts.Snapshot{
		Symbol:        symbol,
		Name:          name,
		Exchange:      p.Exchange,
		Date:          marketDate(time.Now()),
		Open:          q.Open,
		High:          q.High,
		Low:           q.Low,
		Close:         q.Current,
		PreviousClose: q.PreviousClose,
		Change:        change,
		ChangePercent: changePercent,
		Volume:        q.Volume,
		MarketCap:     p.MarketCapitalization,
	}, nil
}

// quote fetches /quote for a symbol. Finnhub answers unknown symbols
// with an all-zero payload, which maps to ErrNotFound.
func (c *Client) quote(ctx context.Context, symbol string) (*contracts.Quote, error) {
	body, err := c.get(ctx, "quote", url.Values{"symbol": {symbol}})
	if err != nil {
		return nil, err
	}

	var q quoteResponse
	if err := json.Unmarshal(body, &q); err != nil {
		c.logger.WithError(err).WithField("symbol", symbol).Debug("Malformed quote payload")
		return nil, fmt.Errorf("quote for %s: %w", symbol, contracts.ErrNotFound)
	}
	if q.Error != "" {
		return nil, fmt.Errorf("finnhub quote for %s: %s", symbol, q.Error)
	}
	if q.Current == 0 && q.PreviousClose == 0 {
		return nil, fmt.Errorf("quote for %s: %w", symbol, contracts.ErrNotFound)
	}

	return &contracts.Quote{
		Current:       q.Current,
		Open:          q.Open,
		High:          q.High,
		Low:           q.Low,
		PreviousClose: q.PreviousClose,
		Volume:        int64(q.Volume),
		Timestamp:     time.Unix(q.Timestamp, 0).UTC(),
	}, nil
}

func (c *Client) profile(ctx context.Context, symbol string) (profileResponse, error) {
	body, err := c.get(ctx, "stock/profile2", url.Values{"symbol": {symbol}})
	if err != nil {
		return profileResponse{}, err
	}

	var p profileResponse
	if err := json.Unmarshal(body, &p); err != nil {
		return profileResponse{}, fmt.Errorf("profile for %s: %w", symbol, err)
	}
	if p.Error != "" {
		return profileResponse{}, fmt.Errorf("finnhub profile for %s: %s", symbol, p.Error)
	}
	return p, nil
}

// marketDate truncates a timestamp to its UTC calendar date.
func marketDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
