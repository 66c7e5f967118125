package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ajitpratap0/ees/internal/domain"
	"github.com/ajitpratap0/ees/internal/retry"
	"github.com/rs/zerolog"
)

// restProvider is the shared HTTP-call shape for the three unauthenticated
// fallback providers (Polygon, AlphaVantage, Yahoo). They differ only in
// base URL, API key placement, and response field names, so one struct
// with a response-mapping function covers all three, mirroring the way
// the broker client's own do() wraps retry.Do around a single HTTP
// round-trip.
type restProvider struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retryCfg   retry.Config
	log        zerolog.Logger

	quotePath func(symbol string) (path string, query url.Values)
	parseQuote func(body []byte, symbol string) (domain.Quote, error)
	barsPath  func(symbol, timeframe string, limit int) (path string, query url.Values)
	parseBars func(body []byte, symbol, timeframe string) ([]domain.Bar, error)
}

func (p *restProvider) Name() string { return p.name }

func (p *restProvider) do(ctx context.Context, path string, query url.Values) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, p.retryCfg, func() error {
		fullURL := p.baseURL + path
		if len(query) > 0 {
			fullURL += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return fmt.Errorf("failed to build %s request: %w", p.name, err)
		}
		resp, err := p.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%s request failed: %w", p.name, err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read %s response: %w", p.name, err)
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("%s returned status %d: %s", p.name, resp.StatusCode, string(respBody))
		}
		body = respBody
		return nil
	})
	return body, err
}

func (p *restProvider) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	path, query := p.quotePath(symbol)
	body, err := p.do(ctx, path, query)
	if err != nil {
		return domain.Quote{}, err
	}
	return p.parseQuote(body, symbol)
}

func (p *restProvider) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	path, query := p.barsPath(symbol, timeframe, limit)
	body, err := p.do(ctx, path, query)
	if err != nil {
		return nil, err
	}
	return p.parseBars(body, symbol, timeframe)
}

// NewPolygonProvider builds the Polygon.io fallback provider.
func NewPolygonProvider(apiKey string, log zerolog.Logger) Provider {
	return &restProvider{
		name:       "polygon",
		baseURL:    "https://api.polygon.io",
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retryCfg:   retry.DefaultConfig(),
		log:        log,
		quotePath: func(symbol string) (string, url.Values) {
			return "/v2/last/trade/" + symbol, url.Values{"apiKey": {apiKey}}
		},
		parseQuote: func(body []byte, symbol string) (domain.Quote, error) {
			var out struct {
				Results struct {
					Price float64 `json:"p"`
					Size  int64   `json:"s"`
				} `json:"results"`
			}
			if err := json.Unmarshal(body, &out); err != nil {
				return domain.Quote{}, fmt.Errorf("polygon: failed to decode quote: %w", err)
			}
			return domain.Quote{Symbol: symbol, Last: domain.FromFloat(out.Results.Price), Volume: out.Results.Size, Provider: "polygon", Timestamp: time.Now()}, nil
		},
		barsPath: func(symbol, timeframe string, limit int) (string, url.Values) {
			return fmt.Sprintf("/v2/aggs/ticker/%s/range/1/%s/", symbol, timeframe), url.Values{"apiKey": {apiKey}, "limit": {fmt.Sprint(limit)}}
		},
		parseBars: func(body []byte, symbol, timeframe string) ([]domain.Bar, error) {
			var out struct {
				Results []struct {
					Open   float64 `json:"o"`
					High   float64 `json:"h"`
					Low    float64 `json:"l"`
					Close  float64 `json:"c"`
					Volume int64   `json:"v"`
					Time   int64   `json:"t"`
				} `json:"results"`
			}
			if err := json.Unmarshal(body, &out); err != nil {
				return nil, fmt.Errorf("polygon: failed to decode bars: %w", err)
			}
			bars := make([]domain.Bar, 0, len(out.Results))
			for _, r := range out.Results {
				bars = append(bars, domain.Bar{
					Symbol: symbol, Timeframe: timeframe,
					Open: domain.FromFloat(r.Open), High: domain.FromFloat(r.High),
					Low: domain.FromFloat(r.Low), Close: domain.FromFloat(r.Close),
					Volume: r.Volume, Start: time.UnixMilli(r.Time),
				})
			}
			return bars, nil
		},
	}
}

// NewAlphaVantageProvider builds the Alpha Vantage fallback provider.
func NewAlphaVantageProvider(apiKey string, log zerolog.Logger) Provider {
	return &restProvider{
		name:       "alphavantage",
		baseURL:    "https://www.alphavantage.co",
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retryCfg:   retry.DefaultConfig(),
		log:        log,
		quotePath: func(symbol string) (string, url.Values) {
			return "/query", url.Values{"function": {"GLOBAL_QUOTE"}, "symbol": {symbol}, "apikey": {apiKey}}
		},
		parseQuote: func(body []byte, symbol string) (domain.Quote, error) {
			var out struct {
				GlobalQuote struct {
					Price  string `json:"05. price"`
					Volume string `json:"06. volume"`
				} `json:"Global Quote"`
			}
			if err := json.Unmarshal(body, &out); err != nil {
				return domain.Quote{}, fmt.Errorf("alphavantage: failed to decode quote: %w", err)
			}
			var price float64
			fmt.Sscanf(out.GlobalQuote.Price, "%f", &price)
			var vol int64
			fmt.Sscanf(out.GlobalQuote.Volume, "%d", &vol)
			return domain.Quote{Symbol: symbol, Last: domain.FromFloat(price), Volume: vol, Provider: "alphavantage", Timestamp: time.Now()}, nil
		},
		barsPath: func(symbol, timeframe string, limit int) (string, url.Values) {
			return "/query", url.Values{"function": {"TIME_SERIES_DAILY"}, "symbol": {symbol}, "apikey": {apiKey}, "outputsize": {"compact"}}
		},
		parseBars: func(body []byte, symbol, timeframe string) ([]domain.Bar, error) {
			var out struct {
				Series map[string]struct {
					Open   string `json:"1. open"`
					High   string `json:"2. high"`
					Low    string `json:"3. low"`
					Close  string `json:"4. close"`
					Volume string `json:"5. volume"`
				} `json:"Time Series (Daily)"`
			}
			if err := json.Unmarshal(body, &out); err != nil {
				return nil, fmt.Errorf("alphavantage: failed to decode bars: %w", err)
			}
			bars := make([]domain.Bar, 0, len(out.Series))
			for dateStr, r := range out.Series {
				start, _ := time.Parse("2006-01-02", dateStr)
				var o, h, l, c float64
				var v int64
				fmt.Sscanf(r.Open, "%f", &o)
				fmt.Sscanf(r.High, "%f", &h)
				fmt.Sscanf(r.Low, "%f", &l)
				fmt.Sscanf(r.Close, "%f", &c)
				fmt.Sscanf(r.Volume, "%d", &v)
				bars = append(bars, domain.Bar{
					Symbol: symbol, Timeframe: timeframe,
					Open: domain.FromFloat(o), High: domain.FromFloat(h),
					Low: domain.FromFloat(l), Close: domain.FromFloat(c),
					Volume: v, Start: start,
				})
			}
			return bars, nil
		},
	}
}

// NewYahooProvider builds the keyless Yahoo Finance fallback provider —
// last in the priority order per spec §4.2, tried only after every earlier
// provider has failed or been skipped for an open circuit.
func NewYahooProvider(log zerolog.Logger) Provider {
	return &restProvider{
		name:       "yahoo",
		baseURL:    "https://query1.finance.yahoo.com",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retryCfg:   retry.DefaultConfig(),
		log:        log,
		quotePath: func(symbol string) (string, url.Values) {
			return "/v8/finance/chart/" + symbol, url.Values{"interval": {"1d"}, "range": {"1d"}}
		},
		parseQuote: func(body []byte, symbol string) (domain.Quote, error) {
			var out struct {
				Chart struct {
					Result []struct {
						Meta struct {
							RegularMarketPrice float64 `json:"regularMarketPrice"`
							RegularMarketVolume int64  `json:"regularMarketVolume"`
						} `json:"meta"`
					} `json:"result"`
				} `json:"chart"`
			}
			if err := json.Unmarshal(body, &out); err != nil {
				return domain.Quote{}, fmt.Errorf("yahoo: failed to decode quote: %w", err)
			}
			if len(out.Chart.Result) == 0 {
				return domain.Quote{}, fmt.Errorf("yahoo: empty chart result for %s", symbol)
			}
			meta := out.Chart.Result[0].Meta
			return domain.Quote{Symbol: symbol, Last: domain.FromFloat(meta.RegularMarketPrice), Volume: meta.RegularMarketVolume, Provider: "yahoo", Timestamp: time.Now()}, nil
		},
		barsPath: func(symbol, timeframe string, limit int) (string, url.Values) {
			return "/v8/finance/chart/" + symbol, url.Values{"interval": {yahooInterval(timeframe)}, "range": {"3mo"}}
		},
		parseBars: func(body []byte, symbol, timeframe string) ([]domain.Bar, error) {
			var out struct {
				Chart struct {
					Result []struct {
						Timestamp  []int64 `json:"timestamp"`
						Indicators struct {
							Quote []struct {
								Open   []float64 `json:"open"`
								High   []float64 `json:"high"`
								Low    []float64 `json:"low"`
								Close  []float64 `json:"close"`
								Volume []int64   `json:"volume"`
							} `json:"quote"`
						} `json:"indicators"`
					} `json:"result"`
				} `json:"chart"`
			}
			if err := json.Unmarshal(body, &out); err != nil {
				return nil, fmt.Errorf("yahoo: failed to decode bars: %w", err)
			}
			if len(out.Chart.Result) == 0 || len(out.Chart.Result[0].Indicators.Quote) == 0 {
				return nil, fmt.Errorf("yahoo: empty chart result for %s", symbol)
			}
			r := out.Chart.Result[0]
			q := r.Indicators.Quote[0]
			bars := make([]domain.Bar, 0, len(r.Timestamp))
			for i, ts := range r.Timestamp {
				if i >= len(q.Close) {
					break
				}
				bars = append(bars, domain.Bar{
					Symbol: symbol, Timeframe: timeframe,
					Open: domain.FromFloat(q.Open[i]), High: domain.FromFloat(q.High[i]),
					Low: domain.FromFloat(q.Low[i]), Close: domain.FromFloat(q.Close[i]),
					Volume: q.Volume[i], Start: time.Unix(ts, 0),
				})
			}
			return bars, nil
		},
	}
}

func yahooInterval(timeframe string) string {
	switch timeframe {
	case "1m", "5m", "15m":
		return timeframe
	case "1h":
		return "60m"
	default:
		return "1d"
	}
}
