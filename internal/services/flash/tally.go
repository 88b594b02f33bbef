package flash

import (
	"time"

	"FlashScan/internal/domain/models"
)

// Tally holds the running population counters of one pass.
type Tally struct {
	ActiveBullish int
	ActiveBearish int
	ClosedBullish int
	ClosedBearish int
	Stunted       int
}

func (t *Tally) activate(b models.Bias) {
	switch b {
	case models.BiasBullish:
		t.ActiveBullish++
	case models.BiasBearish:
		t.ActiveBearish++
	}
}

// close moves one flash of bias b from the active to the closed counters.
func (t *Tally) close(b models.Bias) {
	switch b {
	case models.BiasBullish:
		t.ActiveBullish--
		t.ClosedBullish++
	case models.BiasBearish:
		t.ActiveBearish--
		t.ClosedBearish++
	}
}

func (t *Tally) stunt() { t.Stunted++ }

// Row snapshots the counters for the bar at ts.
func (t Tally) Row(ts time.Time) models.TallyRow {
	return models.TallyRow{
		Time:          ts,
		ActiveBullish: t.ActiveBullish,
		ActiveBearish: t.ActiveBearish,
		ClosedBullish: t.ClosedBullish,
		ClosedBearish: t.ClosedBearish,
		Stunted:       t.Stunted,
		Active:        t.ActiveBullish + t.ActiveBearish,
		Closed:        t.ClosedBullish + t.ClosedBearish,
	}
}
