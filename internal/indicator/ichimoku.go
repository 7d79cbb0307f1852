package indicator

import (
	talib "github.com/markcheno/go-talib"

	"chikoubot-go/internal/signal"
	"chikoubot-go/internal/window"
)

// IchimokuParams configures the Ichimoku Kinko Hyo periods.
type IchimokuParams struct {
	Tenkan       int
	Kijun        int
	SenkouB      int
	Displacement int
}

// DefaultIchimokuParams returns the classic 9/26/52/26 setup.
func DefaultIchimokuParams() IchimokuParams {
	return IchimokuParams{Tenkan: 9, Kijun: 26, SenkouB: 52, Displacement: 26}
}

// IchimokuValue is one Ichimoku reading. SenkouA and SenkouB are the cloud
// plotted at the current bar, i.e. projections made Displacement bars ago.
type IchimokuValue struct {
	Tenkan  float64
	Kijun   float64
	SenkouA float64
	SenkouB float64

	KijunLagged   float64
	SenkouALagged float64
	SenkouBLagged float64

	Ready       bool
	LaggedReady bool
}

// Ichimoku computes the Ichimoku lines bar by bar.
type Ichimoku struct {
	params IchimokuParams
	highs  *window.Ring[float64]
	lows   *window.Ring[float64]

	// projections waiting to be plotted Displacement bars ahead
	leadA *window.Ring[float64]
	leadB *window.Ring[float64]

	// history of plotted values for Chikou lookups
	kijunHist *window.Ring[float64]
	cloudA    *window.Ring[float64]
	cloudB    *window.Ring[float64]

	last IchimokuValue
}

// NewIchimoku builds an Ichimoku indicator, filling zero periods with defaults.
func NewIchimoku(p IchimokuParams) *Ichimoku {
	def := DefaultIchimokuParams()
	if p.Tenkan <= 0 {
		p.Tenkan = def.Tenkan
	}
	if p.Kijun <= 0 {
		p.Kijun = def.Kijun
	}
	if p.SenkouB <= 0 {
		p.SenkouB = def.SenkouB
	}
	if p.Displacement <= 0 {
		p.Displacement = def.Displacement
	}
	longest := max(p.Tenkan, p.Kijun, p.SenkouB)
	lag := p.Displacement + 1
	return &Ichimoku{
		params:    p,
		highs:     window.New[float64](longest),
		lows:      window.New[float64](longest),
		leadA:     window.New[float64](lag),
		leadB:     window.New[float64](lag),
		kijunHist: window.New[float64](lag),
		cloudA:    window.New[float64](lag),
		cloudB:    window.New[float64](lag),
	}
}

// Params returns the effective periods.
func (ich *Ichimoku) Params() IchimokuParams { return ich.params }

// Update feeds a bar and returns the reading at that bar.
func (ich *Ichimoku) Update(bar signal.Bar) IchimokuValue {
	ich.highs.Push(bar.High)
	ich.lows.Push(bar.Low)

	var v IchimokuValue
	tenkan, okT := ich.midpoint(ich.params.Tenkan)
	kijun, okK := ich.midpoint(ich.params.Kijun)
	spanB, okB := ich.midpoint(ich.params.SenkouB)
	v.Tenkan, v.Kijun = tenkan, kijun

	if okT && okK {
		ich.leadA.Push((tenkan + kijun) / 2)
		ich.kijunHist.Push(kijun)
	}
	if okB {
		ich.leadB.Push(spanB)
	}

	d := ich.params.Displacement
	a, okA := ich.leadA.At(d)
	b, okLB := ich.leadB.At(d)
	if okA && okLB {
		v.SenkouA, v.SenkouB = a, b
		v.Ready = true
		ich.cloudA.Push(a)
		ich.cloudB.Push(b)
	}

	kLag, okKL := ich.kijunHist.At(d)
	aLag, okAL := ich.cloudA.At(d)
	bLag, okBL := ich.cloudB.At(d)
	if v.Ready && okKL && okAL && okBL {
		v.KijunLagged, v.SenkouALagged, v.SenkouBLagged = kLag, aLag, bLag
		v.LaggedReady = true
	}

	ich.last = v
	return v
}

// Value returns the latest reading.
func (ich *Ichimoku) Value() IchimokuValue { return ich.last }

// Ready reports whether the cloud at the current bar is available.
func (ich *Ichimoku) Ready() bool { return ich.last.Ready }

// midpoint is the mean of the highest high and lowest low over period bars.
func (ich *Ichimoku) midpoint(period int) (float64, bool) {
	n := ich.highs.Len()
	if n < period {
		return 0, false
	}
	highs, lows := ich.highs.Values(), ich.lows.Values()
	if period == 1 {
		return (highs[n-1] + lows[n-1]) / 2, true
	}
	hi := talib.Max(highs, period)[n-1]
	lo := talib.Min(lows, period)[n-1]
	return (hi + lo) / 2, true
}
