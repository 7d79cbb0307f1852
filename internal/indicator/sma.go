// Package indicator implements the streaming indicators the strategies read each bar.
package indicator

import (
	talib "github.com/markcheno/go-talib"

	"chikoubot-go/internal/window"
)

// SMA is a simple moving average updated one value at a time.
type SMA struct {
	period int
	values *window.Ring[float64]
	last   float64
}

// NewSMA builds a moving average over period values.
func NewSMA(period int) *SMA {
	if period <= 0 {
		period = 1
	}
	return &SMA{period: period, values: window.New[float64](period)}
}

// Update feeds a value and returns the current average. Until a full period
// is seen it averages the values available.
func (s *SMA) Update(v float64) float64 {
	s.values.Push(v)
	vals := s.values.Values()
	if len(vals) == 1 {
		s.last = v
		return v
	}
	s.last = talib.Sma(vals, len(vals))[len(vals)-1]
	return s.last
}

// Value returns the latest average.
func (s *SMA) Value() float64 { return s.last }

// Ready reports whether a full period has been observed.
func (s *SMA) Ready() bool { return s.values.Full() }

// Period returns the configured look-back.
func (s *SMA) Period() int { return s.period }
