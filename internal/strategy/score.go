package strategy

import (
	"math"

	"chikoubot-go/internal/signal"
)

// Trend score weights.
const (
	weightBias    = 35.0
	weightTK      = 25.0
	weightChKijun = 20.0
	weightChCloud = 20.0
)

// MaxScore returns the largest absolute score reachable with the configured volume cap.
func (e *Engine) MaxScore() float64 {
	directional := weightTK + weightChKijun + weightChCloud
	return weightBias + directional*(1+(e.params.VolumeCap-1)*e.params.VolumeSensitivity)
}

// Score rates trend strength for the current bar. It reads st but never mutates it.
// ref is the bar displacement periods back; cur is the bar being processed.
func (e *Engine) Score(st *State, snap signal.Snapshot, ref, cur signal.Bar) float64 {
	if st.Window.Len() < e.params.Displacement+1 {
		return 0
	}

	chikou := cur.Close
	kijunAtRef := ref.Close
	cloudTop, cloudBottom := snap.CloudTop(), snap.CloudBottom()
	if snap.LaggedReady {
		kijunAtRef = snap.KijunLagged
		cloudTop = max(snap.SenkouALagged, snap.SenkouBLagged)
		cloudBottom = min(snap.SenkouALagged, snap.SenkouBLagged)
	}

	bias := float64(signal.Bias(st.Active)) * weightBias
	tk := compare(snap.Tenkan, snap.Kijun) * weightTK
	chKijun := compare(chikou, kijunAtRef) * weightChKijun

	var chCloud float64
	switch {
	case chikou > cloudTop:
		chCloud = weightChCloud
	case chikou < cloudBottom:
		chCloud = -weightChCloud
	}

	score := bias + (tk+chKijun+chCloud)*e.volumeMultiplier(snap, cur)
	limit := e.MaxScore()
	return math.Max(-limit, math.Min(limit, score))
}

func (e *Engine) volumeMultiplier(snap signal.Snapshot, cur signal.Bar) float64 {
	if !e.params.UseVolume || !snap.VolumeReady || snap.VolumeMA <= 0 {
		return 1
	}
	rel := math.Min(cur.Volume/snap.VolumeMA, e.params.VolumeCap)
	return 1 + (rel-1)*e.params.VolumeSensitivity
}

func compare(a, b float64) float64 {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	}
	return 0
}
