package flash

import "FlashScan/internal/domain/models"

// transition is the registry-level effect of advancing one flash by one bar.
type transition int

const (
	stay transition = iota
	migrateClosed
	migrateStunted
)

// advance applies exactly one stage transition to f for bar.
func advance(f *models.Flash, bar models.Bar, grace int, t *Tally) transition {
	f.Age++

	switch f.Stage {
	case models.StageFlash:
		if bar.Trigger != models.TriggerEnd {
			f.FlashHigh = max(f.FlashHigh, bar.High)
			f.FlashLow = min(f.FlashLow, bar.Low)
			f.FlashDuration++
			return stay
		}
		f.Stage = models.StageWindow
		f.WindowOpen = bar.Open
		f.WindowHigh = bar.High
		f.WindowLow = bar.Low
		f.WindowDuration = 1
		return stay

	case models.StageWindow:
		return advanceWindow(f, bar, grace, t)

	case models.StageHold:
		f.HoldDuration++
		if bar.Touches(f.WindowOpen) {
			f.Stage = models.StageClosed
			t.close(f.Bias)
			return migrateClosed
		}
		f.HoldHigh = max(f.HoldHigh, bar.High)
		f.HoldLow = min(f.HoldLow, bar.Low)
		return stay
	}
	return stay
}

func advanceWindow(f *models.Flash, bar models.Bar, grace int, t *Tally) transition {
	if f.Bias == models.BiasUnset && f.WindowDuration >= grace {
		if bar.Open <= f.WindowOpen {
			f.Bias = models.BiasBullish
		} else {
			f.Bias = models.BiasBearish
		}
		t.activate(f.Bias)
	}

	// Return to target wins over a competing start on the same bar.
	if f.WindowDuration >= grace && bar.Touches(f.WindowOpen) {
		f.WindowDuration++
		f.HoldOpen = f.WindowOpen
		f.HoldHigh = f.WindowOpen
		f.HoldLow = f.WindowOpen
		f.Stage = models.StageClosed
		t.close(f.Bias)
		return migrateClosed
	}

	if bar.Trigger == models.TriggerStart {
		if f.WindowDuration < grace {
			t.stunt()
			return migrateStunted
		}
		f.Stage = models.StageHold
		f.HoldOpen = bar.Open
		f.HoldHigh = bar.High
		f.HoldLow = bar.Low
		f.HoldDuration = 1
		return stay
	}

	f.WindowHigh = max(f.WindowHigh, bar.High)
	f.WindowLow = min(f.WindowLow, bar.Low)
	f.WindowDuration++
	return stay
}
