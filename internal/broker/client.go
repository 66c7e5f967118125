// Package broker implements the OAuth 1.0a session manager and the
// broker's HTTP API client: the system's only provider that can place
// orders, and one of the four market-data providers (spec §4.2/§4.3/§6.1).
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ajitpratap0/ees/internal/domain"
	"github.com/ajitpratap0/ees/internal/execution"
	"github.com/ajitpratap0/ees/internal/retry"
	"github.com/rs/zerolog"
)

// ErrNotAuthenticated is returned when a broker request still comes back
// 401 after the one renew-and-replay cycle spec'd for session expiry
// (§4.3/§6.1, Scenario D §8.4) — the caller should treat this as fatal
// for the current cycle rather than retrying again.
var ErrNotAuthenticated = errors.New("broker: not authenticated")

// Client is the broker's REST API client, signing every request with the
// OAuth1.0a Session and retrying transient failures.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
	retryCfg   retry.Config
	log        zerolog.Logger
}

// NewClient constructs a broker API client.
func NewClient(baseURL string, session *Session, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		session:    session,
		retryCfg:   retry.DefaultConfig(),
		log:        log,
	}
}

// Name identifies this provider for breaker/cache/metrics labeling.
func (c *Client) Name() string { return "broker" }

// Reliability ranks the broker's own news feed above scraped sources,
// satisfying sentiment.NewsSource alongside the GetNews method below.
func (c *Client) Reliability() float64 { return 1.0 }

// do issues a signed, retried request against the broker API. A 401
// triggers exactly one session renewal and exactly one replay of the
// original request (spec §4.3/§6.1, Scenario D §8.4) before
// ErrNotAuthenticated is surfaced.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	return retry.Do(ctx, c.retryCfg, func() error {
		return c.sendAuthed(ctx, method, path, query, body, out, true)
	})
}

// doNoRenew is do without 401 interception, used for the renewal call
// itself so a renewal that comes back 401 surfaces ErrNotAuthenticated
// instead of recursing back into RenewSession.
func (c *Client) doNoRenew(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	return retry.Do(ctx, c.retryCfg, func() error {
		return c.sendAuthed(ctx, method, path, query, body, out, false)
	})
}

// sendAuthed builds, signs and sends a single request. On a 401 with
// renewAllowed set it renews the session once and replays the same
// request once more with renewAllowed cleared, so a second 401 (whether
// from the replay or from the renewal call itself) always surfaces
// ErrNotAuthenticated rather than looping.
func (c *Client) sendAuthed(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}, renewAllowed bool) error {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	authHeader, err := c.session.Authorize(method, fullURL)
	if err != nil {
		return fmt.Errorf("failed to authorize request: %w", err)
	}
	req.Header.Set("Authorization", authHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("broker request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read broker response: %w", err)
	}

	if dateHeader := resp.Header.Get("Date"); dateHeader != "" {
		if serverTime, err := http.ParseTime(dateHeader); err == nil {
			c.session.ObserveServerTime(serverTime)
		}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if !renewAllowed {
			return ErrNotAuthenticated
		}
		if err := c.RenewSession(ctx); err != nil {
			c.log.Warn().Err(err).Msg("broker session renewal failed after 401")
			return ErrNotAuthenticated
		}
		return c.sendAuthed(ctx, method, path, query, body, out, false)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("broker returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode broker response: %w", err)
		}
	}
	return nil
}

type quoteResponse struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Last   float64 `json:"last"`
	Volume int64   `json:"volume"`
}

// GetQuote fetches the current top-of-book quote for symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	var out quoteResponse
	if err := c.do(ctx, http.MethodGet, "/market/quote/"+symbol, nil, nil, &out); err != nil {
		return domain.Quote{}, err
	}
	return domain.Quote{
		Symbol:    out.Symbol,
		Bid:       domain.FromFloat(out.Bid),
		Ask:       domain.FromFloat(out.Ask),
		Last:      domain.FromFloat(out.Last),
		Volume:    out.Volume,
		Provider:  c.Name(),
		Timestamp: time.Now(),
	}, nil
}

type barResponse struct {
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
	Start  time.Time `json:"start"`
}

// GetBars fetches historical OHLCV bars for symbol at timeframe, up to
// limit bars ending now.
func (c *Client) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	q := url.Values{"timeframe": {timeframe}, "limit": {fmt.Sprint(limit)}}
	var out []barResponse
	if err := c.do(ctx, http.MethodGet, "/market/bars/"+symbol, q, nil, &out); err != nil {
		return nil, err
	}
	bars := make([]domain.Bar, 0, len(out))
	for _, b := range out {
		bars = append(bars, domain.Bar{
			Symbol: symbol, Timeframe: timeframe,
			Open: domain.FromFloat(b.Open), High: domain.FromFloat(b.High),
			Low: domain.FromFloat(b.Low), Close: domain.FromFloat(b.Close),
			Volume: b.Volume, Start: b.Start,
		})
	}
	return bars, nil
}

type orderRequest struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Quantity   int     `json:"quantity"`
	LimitPrice float64 `json:"limitPrice,omitempty"`
	ClientID   string  `json:"clientOrderId"`
}

type orderResponse struct {
	BrokerOrderID  string  `json:"brokerOrderId"`
	Status         string  `json:"status"`
	FilledQuantity int     `json:"filledQuantity"`
	AvgFillPrice   float64 `json:"avgFillPrice"`
	RejectReason   string  `json:"rejectReason"`
}

// PreviewOrder asks the broker to validate and price an order without
// placing it — spec §4.8's preview step ahead of place.
func (c *Client) PreviewOrder(ctx context.Context, ord domain.Order) (domain.Order, error) {
	req := orderRequest{Symbol: ord.Symbol, Side: string(ord.Side), Quantity: ord.Quantity, LimitPrice: ord.LimitPrice.Float(), ClientID: ord.ID}
	var out orderResponse
	if err := c.do(ctx, http.MethodPost, "/orders/preview", nil, req, &out); err != nil {
		return domain.Order{}, err
	}
	ord.Status = domain.OrderPreviewed
	return ord, nil
}

// PlaceOrder submits ord to the broker, stamping the internal idempotency
// token as the client order ID so a retried place is recognized as the
// same order rather than a duplicate.
func (c *Client) PlaceOrder(ctx context.Context, ord domain.Order) (domain.Order, error) {
	req := orderRequest{Symbol: ord.Symbol, Side: string(ord.Side), Quantity: ord.Quantity, LimitPrice: ord.LimitPrice.Float(), ClientID: ord.ID}
	var out orderResponse
	if err := c.do(ctx, http.MethodPost, "/orders", nil, req, &out); err != nil {
		return domain.Order{}, err
	}

	ord.BrokerOrderID = out.BrokerOrderID
	ord.Status = domain.OrderStatus(out.Status)
	ord.FilledQuantity = out.FilledQuantity
	ord.AvgFillPrice = domain.FromFloat(out.AvgFillPrice)
	ord.RejectReason = out.RejectReason
	ord.UpdatedAt = time.Now()
	if ord.Status == domain.OrderFilled {
		now := time.Now()
		ord.FilledAt = &now
	}
	return ord, nil
}

// GetOrder polls the broker for the current status of a previously
// placed order.
func (c *Client) GetOrder(ctx context.Context, brokerOrderID string) (domain.Order, error) {
	var out orderResponse
	if err := c.do(ctx, http.MethodGet, "/orders/"+brokerOrderID, nil, nil, &out); err != nil {
		return domain.Order{}, err
	}
	return domain.Order{
		BrokerOrderID:  brokerOrderID,
		Status:         domain.OrderStatus(out.Status),
		FilledQuantity: out.FilledQuantity,
		AvgFillPrice:   domain.FromFloat(out.AvgFillPrice),
		RejectReason:   out.RejectReason,
		UpdatedAt:      time.Now(),
	}, nil
}

// CancelOrder cancels a working order at the broker.
func (c *Client) CancelOrder(ctx context.Context, brokerOrderID string) error {
	return c.do(ctx, http.MethodDelete, "/orders/"+brokerOrderID, nil, nil, nil)
}

type accountResponse struct {
	Equity        float64 `json:"equity"`
	BuyingPower   float64 `json:"buyingPower"`
	CashAvailable float64 `json:"cashAvailableForInvestment"`
	OpenPositions int     `json:"openPositions"`
	GrossExposure float64 `json:"grossExposure"`
}

// GetAccount fetches the current buying-power/exposure snapshot used by
// the position sizer's utilization tiers.
func (c *Client) GetAccount(ctx context.Context) (domain.AccountSnapshot, error) {
	var out accountResponse
	if err := c.do(ctx, http.MethodGet, "/account", nil, nil, &out); err != nil {
		return domain.AccountSnapshot{}, err
	}
	return domain.AccountSnapshot{
		Equity:        domain.FromFloat(out.Equity),
		BuyingPower:   domain.FromFloat(out.BuyingPower),
		CashAvailable: domain.FromFloat(out.CashAvailable),
		OpenPositions: out.OpenPositions,
		GrossExposure: domain.FromFloat(out.GrossExposure),
		AsOf:          time.Now(),
	}, nil
}

type brokerPositionResponse struct {
	Symbol   string  `json:"symbol"`
	Quantity int     `json:"quantity"`
	OwnerTag string  `json:"ownerTag"`
	AvgPrice float64 `json:"avgPrice"`
}

// ListPositions fetches every position currently held in the broker
// account, regardless of which channel opened it — the reconciler
// (spec §4.8) filters this down to ownerTag-matching positions itself.
func (c *Client) ListPositions(ctx context.Context) ([]execution.BrokerPosition, error) {
	var out []brokerPositionResponse
	if err := c.do(ctx, http.MethodGet, "/positions", nil, nil, &out); err != nil {
		return nil, err
	}
	positions := make([]execution.BrokerPosition, 0, len(out))
	for _, p := range out {
		positions = append(positions, execution.BrokerPosition{
			Symbol:   p.Symbol,
			Quantity: p.Quantity,
			OwnerTag: p.OwnerTag,
			AvgPrice: domain.FromFloat(p.AvgPrice),
		})
	}
	return positions, nil
}

type newsItem struct {
	Symbol    string    `json:"symbol"`
	Headline  string    `json:"headline"`
	Body      string    `json:"body"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// NewsItem is one syndicated headline returned by GetNews.
type NewsItem struct {
	Symbol    string
	Headline  string
	Body      string
	Source    string
	Timestamp time.Time
}

// GetNews fetches recent news items for symbol, feeding the sentiment
// filter (spec §4.5, §6.2).
func (c *Client) GetNews(ctx context.Context, symbol string) ([]NewsItem, error) {
	var out []newsItem
	if err := c.do(ctx, http.MethodGet, "/news/"+symbol, nil, nil, &out); err != nil {
		return nil, err
	}
	items := make([]NewsItem, 0, len(out))
	for _, n := range out {
		items = append(items, NewsItem{Symbol: n.Symbol, Headline: n.Headline, Body: n.Body, Source: n.Source, Timestamp: n.Timestamp})
	}
	return items, nil
}

// RenewSession exchanges the current (possibly expired) session for a
// fresh one. The broker's real renewal endpoint semantics are
// implementation-specific; this issues the generic renew-session call
// described in spec §4.3/§6.1 and feeds the result back into Session.
//
// It uses doNoRenew rather than do: this call is itself what do's 401
// handler invokes, and a renewal attempt that comes back 401 means the
// session cannot be salvaged, not that it should try to renew again.
func (c *Client) RenewSession(ctx context.Context) error {
	var out struct {
		Token       string `json:"oauth_token"`
		TokenSecret string `json:"oauth_token_secret"`
	}
	if err := c.doNoRenew(ctx, http.MethodPut, "/oauth/renew_access_token", nil, nil, &out); err != nil {
		return fmt.Errorf("failed to renew broker session: %w", err)
	}
	return c.session.Renew(ctx, out.Token, out.TokenSecret)
}
