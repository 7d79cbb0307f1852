// Package exchange hosts bar sources: live venue streams, REST history and file replay.
package exchange

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chikoubot-go/internal/metrics"
	"chikoubot-go/internal/signal"
)

const (
	// ProviderStub emits deterministic synthetic bars (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderCSV replays bars from a CSV file.
	ProviderCSV = "csv"
	// ProviderBinance streams closed klines from Binance public websockets.
	ProviderBinance = "binance"
)

const (
	defaultInterval       = 4 * time.Hour
	defaultStubPace       = 500 * time.Millisecond
	defaultBinanceWSURL   = "wss://stream.binance.com:9443"
	defaultBinanceRESTURL = "https://api.binance.com"
)

// Feed represents a pluggable market data stream implementation.
type Feed struct {
	provider   string
	symbols    []string
	log        zerolog.Logger
	interval   time.Duration
	stubPace   time.Duration
	csvPath    string
	binanceURL string
	mu         sync.RWMutex
}

// Option configures Feed construction parameters.
type Option func(*Feed)

// WithInterval sets the bar period requested from the provider.
func WithInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.interval = d
		}
	}
}

// WithStubPace overrides how often the stub provider emits a bar.
func WithStubPace(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.stubPace = d
		}
	}
}

// WithCSVPath points the csv provider at a file.
func WithCSVPath(path string) Option {
	return func(f *Feed) { f.csvPath = path }
}

// WithBinanceURL overrides the websocket base URL.
func WithBinanceURL(url string) Option {
	return func(f *Feed) {
		if url != "" {
			f.binanceURL = strings.TrimSuffix(url, "/")
		}
	}
}

// NewFeed constructs a feed backed by the requested provider.
func NewFeed(provider string, symbols []string, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider:   strings.ToLower(provider),
		log:        log,
		interval:   defaultInterval,
		stubPace:   defaultStubPace,
		binanceURL: defaultBinanceWSURL,
	}
	f.SetSymbols(symbols)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Provider returns the normalised provider name.
func (f *Feed) Provider() string { return f.provider }

// SetSymbols replaces the tracked symbol list (deduplicated, sorted for determinism).
func (f *Feed) SetSymbols(symbols []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unique := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		unique[sym] = struct{}{}
	}
	f.symbols = f.symbols[:0]
	for sym := range unique {
		f.symbols = append(f.symbols, sym)
	}
	sort.Strings(f.symbols)
}

func (f *Feed) snapshotSymbols() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.symbols))
	copy(out, f.symbols)
	return out
}

// Run pushes bars onto the provided channel until the source is exhausted or
// the context is canceled. The csv provider returns nil once the file is replayed.
func (f *Feed) Run(ctx context.Context, out chan<- signal.Bar) error {
	switch f.provider {
	case ProviderBinance:
		return f.runBinance(ctx, out)
	case ProviderCSV:
		return f.runCSV(ctx, out)
	default:
		return f.runStub(ctx, out)
	}
}

func (f *Feed) emit(ctx context.Context, out chan<- signal.Bar, bar signal.Bar) error {
	select {
	case out <- bar:
		metrics.FeedBarsTotal.WithLabelValues(f.provider, bar.Symbol).Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runStub walks a zigzag that turns every 40 bars so breakouts show up regularly.
func (f *Feed) runStub(ctx context.Context, out chan<- signal.Bar) error {
	ticker := time.NewTicker(f.stubPace)
	defer ticker.Stop()

	end := time.Unix(0, 0).UTC()
	px := 100.0
	step := 0.5
	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if n%40 == 0 {
			step = -step
		}
		open := px
		px += step
		end = end.Add(f.interval)
		for _, s := range f.snapshotSymbols() {
			bar := signal.Bar{
				Symbol: s,
				Open:   open,
				High:   max(open, px) + 0.25,
				Low:    min(open, px) - 0.25,
				Close:  px,
				Volume: 10 + float64(n%7),
				End:    end,
				Closed: true,
			}
			if err := f.emit(ctx, out, bar); err != nil {
				return err
			}
		}
	}
}
