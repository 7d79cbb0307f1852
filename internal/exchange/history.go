package exchange

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"chikoubot-go/internal/signal"
)

const maxKlinesPerPage = 1000

// HistoryClient pages closed klines from the Binance REST API.
type HistoryClient struct {
	api      *binance.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	log      zerolog.Logger
	pageSize int
	now      func() time.Time
}

// HistoryOption configures a HistoryClient.
type HistoryOption func(*HistoryClient)

// WithRESTURL overrides the REST base URL.
func WithRESTURL(u string) HistoryOption {
	return func(c *HistoryClient) {
		if u != "" {
			c.api.BaseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithHTTPClient swaps the HTTP client.
func WithHTTPClient(h *http.Client) HistoryOption {
	return func(c *HistoryClient) {
		if h != nil {
			c.api.HTTPClient = h
		}
	}
}

// WithRateLimit caps requests per second.
func WithRateLimit(perSecond float64, burst int) HistoryOption {
	return func(c *HistoryClient) {
		if perSecond > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithPageSize overrides the klines page size.
func WithPageSize(n int) HistoryOption {
	return func(c *HistoryClient) {
		if n > 0 && n <= maxKlinesPerPage {
			c.pageSize = n
		}
	}
}

// NewHistoryClient builds a client that trips open after repeated failures.
func NewHistoryClient(log zerolog.Logger, opts ...HistoryOption) *HistoryClient {
	// public market data needs no key
	api := binance.NewClient("", "")
	api.BaseURL = defaultBinanceRESTURL
	api.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	c := &HistoryClient{
		api:      api,
		limiter:  rate.NewLimiter(rate.Limit(10), 10),
		log:      log,
		pageSize: maxKlinesPerPage,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	st := gobreaker.Settings{Name: "binance-klines"}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 3
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
	}
	c.breaker = gobreaker.NewCircuitBreaker(st)
	return c
}

// Klines returns closed bars whose period ends within (from, to], oldest first.
func (c *HistoryClient) Klines(ctx context.Context, symbol string, interval time.Duration, from, to time.Time) ([]signal.Bar, error) {
	code, err := BinanceInterval(interval)
	if err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	now := c.now()
	if to.After(now) {
		to = now
	}

	var bars []signal.Bar
	start := from.Add(-interval)
	for start.Before(to) {
		page, err := c.page(ctx, symbol, code, start, to)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		for _, k := range page {
			if k.End.After(now) || k.End.After(to) || !k.End.After(from) {
				continue
			}
			bars = append(bars, k)
		}
		last := page[len(page)-1]
		if len(page) < c.pageSize {
			break
		}
		// the next page starts right after the newest returned period
		start = last.End
	}
	c.log.Debug().Str("sym", symbol).Str("interval", code).Int("bars", len(bars)).Msg("fetched kline history")
	return bars, nil
}

// Recent returns up to n closed bars ending at the latest completed period.
func (c *HistoryClient) Recent(ctx context.Context, symbol string, interval time.Duration, n int) ([]signal.Bar, error) {
	to := c.now()
	from := to.Add(-time.Duration(n+1) * interval)
	bars, err := c.Klines(ctx, symbol, interval, from, to)
	if err != nil {
		return nil, err
	}
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}

func (c *HistoryClient) page(ctx context.Context, symbol, interval string, start, end time.Time) ([]signal.Bar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.api.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(start.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(c.pageSize).
			Do(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s: %w", symbol, err)
	}
	klines := res.([]*binance.Kline)
	bars := make([]signal.Bar, 0, len(klines))
	for i, k := range klines {
		bar, err := klineBar(k, symbol)
		if err != nil {
			return nil, fmt.Errorf("kline %d: %w", i, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// klineBar converts a REST kline. The bar ends one millisecond after the
// kline's inclusive close time, on the period boundary.
func klineBar(k *binance.Kline, symbol string) (signal.Bar, error) {
	var vals [5]float64
	for i, raw := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return signal.Bar{}, fmt.Errorf("parse %q: %w", raw, err)
		}
		vals[i] = v
	}
	return signal.Bar{
		Symbol: symbol,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
		End:    time.UnixMilli(k.CloseTime + 1).UTC(),
		Closed: true,
	}, nil
}
