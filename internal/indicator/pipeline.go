package indicator

import "chikoubot-go/internal/signal"

// Pipeline updates every indicator a strategy needs and folds them into a snapshot.
type Pipeline struct {
	ichimoku *Ichimoku
	volume   *SMA
}

// NewPipeline wires Ichimoku and a volume moving average.
func NewPipeline(p IchimokuParams, volumeLookback int) *Pipeline {
	if volumeLookback <= 0 {
		volumeLookback = 20
	}
	return &Pipeline{ichimoku: NewIchimoku(p), volume: NewSMA(volumeLookback)}
}

// Update feeds a bar and returns the snapshot valid at that bar.
func (p *Pipeline) Update(bar signal.Bar) signal.Snapshot {
	ich := p.ichimoku.Update(bar)
	vol := p.volume.Update(bar.Volume)
	return signal.Snapshot{
		Tenkan:        ich.Tenkan,
		Kijun:         ich.Kijun,
		SenkouA:       ich.SenkouA,
		SenkouB:       ich.SenkouB,
		KijunLagged:   ich.KijunLagged,
		SenkouALagged: ich.SenkouALagged,
		SenkouBLagged: ich.SenkouBLagged,
		VolumeMA:      vol,
		IchimokuReady: ich.Ready,
		LaggedReady:   ich.LaggedReady,
		VolumeReady:   p.volume.Ready(),
	}
}

// Ichimoku exposes the underlying indicator.
func (p *Pipeline) Ichimoku() *Ichimoku { return p.ichimoku }

// WarmupBars returns how many bars pass before the cloud is ready.
func (p *Pipeline) WarmupBars() int {
	params := p.ichimoku.Params()
	return max(params.SenkouB, params.Kijun) + params.Displacement
}
