package signals

import (
	"errors"
	"fmt"

	"FlashScan/internal/domain/models"
)

var ErrInvalidParams = errors.New("signals: invalid parameters")

// DefaultParams mirrors the parameter set the strategy was tuned with on EURUSD m1.
func DefaultParams() models.SignalParams {
	return models.SignalParams{
		ADXLookback:  14,
		ADXThreshold: 12,
		BBLookback:   20,
		BBStdDev:     2,
		BBCloses:     2,
		Warmup:       200,
	}
}

func validate(p models.SignalParams) error {
	switch {
	case p.ADXLookback <= 0:
		return fmt.Errorf("%w: adx_lookback must be positive", ErrInvalidParams)
	case p.ADXThreshold <= 0:
		return fmt.Errorf("%w: adx_threshold must be positive", ErrInvalidParams)
	case p.BBLookback <= 1:
		return fmt.Errorf("%w: bb_lookback must be greater than 1", ErrInvalidParams)
	case p.BBStdDev <= 0:
		return fmt.Errorf("%w: bb_std_dev must be positive", ErrInvalidParams)
	case p.BBCloses < 0 || p.Warmup < 0:
		return fmt.Errorf("%w: bb_closes and warmup must not be negative", ErrInvalidParams)
	}
	return nil
}

// Preprocess derives the flash trigger and band streak for every candle and drops the
// first p.Warmup rows. Incoming triggers are ignored.
func Preprocess(candles []models.Bar, p models.SignalParams) ([]models.SignalBar, error) {
	if err := validate(p); err != nil {
		return nil, err
	}

	adx := NewADX(p.ADXLookback)
	bb := NewBollinger(p.BBLookback, p.BBStdDev)
	out := make([]models.SignalBar, 0, max(len(candles)-p.Warmup, 0))

	prevFlash := false
	streak := 0
	for i, c := range candles {
		adx.Add(c.High, c.Low, c.Close)
		bb.Add(c.Close)

		v, ready := adx.Value()
		flash := ready && v > 0 && v < p.ADXThreshold

		trig := models.TriggerNone
		if i > 0 && flash != prevFlash {
			if flash {
				trig = models.TriggerStart
			} else {
				trig = models.TriggerEnd
			}
		}
		prevFlash = flash

		upper, lower, ok := bb.Bands()
		if ok && (c.Close >= upper || c.Close <= lower) {
			streak++
		} else {
			streak = 0
		}

		if i < p.Warmup {
			continue
		}
		bar := c
		bar.Trigger = trig
		out = append(out, models.SignalBar{
			Bar:        bar,
			ADX:        v,
			Flash:      flash,
			BandUpper:  upper,
			BandLower:  lower,
			BandStreak: streak,
			BandSignal: p.BBCloses > 0 && streak >= p.BBCloses,
		})
	}
	return out, nil
}

// Bars strips the indicator columns for the engine.
func Bars(rows []models.SignalBar) []models.Bar {
	out := make([]models.Bar, len(rows))
	for i, r := range rows {
		out[i] = r.Bar
	}
	return out
}
