package signals

import "math"

// ADX is Wilder's average directional index fed one bar at a time.
type ADX struct {
	period int

	seen      int
	prevHigh  float64
	prevLow   float64
	prevClose float64

	tr, plusDM, minusDM float64 // Wilder-smoothed sums
	dxSum               float64
	dxCount             int
	value               float64
	ready               bool
}

func NewADX(period int) *ADX {
	if period <= 0 {
		period = 14
	}
	return &ADX{period: period}
}

func (a *ADX) Add(high, low, close float64) {
	a.seen++
	if a.seen == 1 {
		a.prevHigh, a.prevLow, a.prevClose = high, low, close
		return
	}

	tr := math.Max(high-low, math.Max(math.Abs(high-a.prevClose), math.Abs(low-a.prevClose)))
	up := high - a.prevHigh
	down := a.prevLow - low
	var pdm, mdm float64
	if up > down && up > 0 {
		pdm = up
	}
	if down > up && down > 0 {
		mdm = down
	}
	a.prevHigh, a.prevLow, a.prevClose = high, low, close

	n := float64(a.period)
	step := a.seen - 1
	if step <= a.period {
		a.tr += tr
		a.plusDM += pdm
		a.minusDM += mdm
		if step < a.period {
			return
		}
	} else {
		a.tr = a.tr - a.tr/n + tr
		a.plusDM = a.plusDM - a.plusDM/n + pdm
		a.minusDM = a.minusDM - a.minusDM/n + mdm
	}

	dx := a.dx()
	if !a.ready {
		a.dxSum += dx
		a.dxCount++
		if a.dxCount == a.period {
			a.value = a.dxSum / n
			a.ready = true
		}
		return
	}
	a.value = (a.value*(n-1) + dx) / n
}

func (a *ADX) dx() float64 {
	if a.tr == 0 {
		return 0
	}
	pdi := 100 * a.plusDM / a.tr
	mdi := 100 * a.minusDM / a.tr
	if pdi+mdi == 0 {
		return 0
	}
	return 100 * math.Abs(pdi-mdi) / (pdi + mdi)
}

// Value returns the current ADX. It is not ready until 2*period bars were added.
func (a *ADX) Value() (float64, bool) {
	return a.value, a.ready
}
