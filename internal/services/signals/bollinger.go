package signals

import "math"

// Bollinger keeps a rolling window of closes and reports mean +/- k population deviations.
type Bollinger struct {
	period int
	k      float64
	buf    []float64
	head   int
	full   bool
}

func NewBollinger(period int, k float64) *Bollinger {
	if period <= 0 {
		period = 20
	}
	if k <= 0 {
		k = 2
	}
	return &Bollinger{period: period, k: k, buf: make([]float64, period)}
}

func (b *Bollinger) Add(close float64) {
	b.buf[b.head] = close
	b.head = (b.head + 1) % b.period
	if b.head == 0 {
		b.full = true
	}
}

// Bands returns the upper and lower band once the window is full.
func (b *Bollinger) Bands() (upper, lower float64, ok bool) {
	if !b.full {
		return 0, 0, false
	}
	sum := 0.0
	for _, v := range b.buf {
		sum += v
	}
	mean := sum / float64(b.period)
	variance := 0.0
	for _, v := range b.buf {
		variance += (v - mean) * (v - mean)
	}
	sd := math.Sqrt(variance / float64(b.period))
	return mean + b.k*sd, mean - b.k*sd, true
}
