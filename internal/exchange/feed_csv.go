package exchange

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/gocarina/gocsv"

	"chikoubot-go/internal/signal"
)

// CSVBar is one row of a bar file: time,open,high,low,close,volume. Time is the
// bar close in RFC3339.
type CSVBar struct {
	Time   time.Time `csv:"time"`
	Open   float64   `csv:"open"`
	High   float64   `csv:"high"`
	Low    float64   `csv:"low"`
	Close  float64   `csv:"close"`
	Volume float64   `csv:"volume"`
}

// LoadCSV reads a bar file and returns closed bars sorted by time.
func LoadCSV(path, symbol string) ([]signal.Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars: %w", err)
	}
	defer file.Close()

	var rows []CSVBar
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("decode bars %s: %w", path, err)
	}
	bars := make([]signal.Bar, 0, len(rows))
	for _, r := range rows {
		bars = append(bars, signal.Bar{
			Symbol: symbol,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
			End:    r.Time.UTC(),
			Closed: true,
		})
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].End.Before(bars[j].End) })
	return bars, nil
}

// WriteCSV stores bars in the format LoadCSV reads.
func WriteCSV(path string, bars []signal.Bar) error {
	rows := make([]CSVBar, 0, len(bars))
	for _, b := range bars {
		rows = append(rows, CSVBar{Time: b.End, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume})
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create bars: %w", err)
	}
	if err := gocsv.MarshalFile(&rows, file); err != nil {
		file.Close()
		return fmt.Errorf("encode bars: %w", err)
	}
	return file.Close()
}

func (f *Feed) runCSV(ctx context.Context, out chan<- signal.Bar) error {
	symbols := f.snapshotSymbols()
	if len(symbols) != 1 {
		return fmt.Errorf("csv feed replays exactly one symbol, got %d", len(symbols))
	}
	bars, err := LoadCSV(f.csvPath, symbols[0])
	if err != nil {
		return err
	}
	f.log.Info().Str("provider", ProviderCSV).Str("path", f.csvPath).Int("bars", len(bars)).Msg("replaying bars")
	for _, bar := range bars {
		if err := f.emit(ctx, out, bar); err != nil {
			return err
		}
	}
	return nil
}
