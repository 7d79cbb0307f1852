package indicator

import (
	talib "github.com/markcheno/go-talib"

	"chikoubot-go/internal/window"
)

// Bands holds one Bollinger reading.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger computes bands of k population standard deviations around an SMA.
type Bollinger struct {
	k      float64
	values *window.Ring[float64]
	last   Bands
}

// NewBollinger builds Bollinger Bands over period values.
func NewBollinger(period int, k float64) *Bollinger {
	if period <= 0 {
		period = 1
	}
	if k <= 0 {
		k = 2
	}
	return &Bollinger{k: k, values: window.New[float64](period)}
}

// Update feeds a value and returns the current bands.
func (b *Bollinger) Update(v float64) Bands {
	b.values.Push(v)
	vals := b.values.Values()
	n := len(vals)
	if n == 1 {
		b.last = Bands{Upper: v, Middle: v, Lower: v}
		return b.last
	}
	upper, middle, lower := talib.BBands(vals, n, b.k, b.k, talib.SMA)
	b.last = Bands{Upper: upper[n-1], Middle: middle[n-1], Lower: lower[n-1]}
	return b.last
}

// Value returns the latest bands.
func (b *Bollinger) Value() Bands { return b.last }

// Ready reports whether a full period has been observed.
func (b *Bollinger) Ready() bool { return b.values.Full() }
