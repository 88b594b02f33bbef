package flash

import (
	"errors"

	"FlashScan/internal/domain/models"
)

// ComputeOutcome fills MaxFavorable and MaxAdverse of a closed flash from its own extremes.
// A flash without a usable denominator is marked Degenerate and left with zero ratios.
func ComputeOutcome(f *models.Flash) error {
	var fav, adv float64
	switch f.Bias {
	case models.BiasBullish:
		low := min(f.WindowLow, f.HoldLow)
		if f.WindowLow <= 0 || low <= 0 {
			return degenerate(f, "non-positive low in denominator")
		}
		fav = (f.WindowOpen - f.WindowLow) / f.WindowLow
		adv = (f.WindowOpen - low) / low
	case models.BiasBearish:
		if f.WindowOpen <= 0 {
			return degenerate(f, "non-positive window open in denominator")
		}
		fav = (f.WindowHigh - f.WindowOpen) / f.WindowOpen
		adv = (max(f.WindowHigh, f.HoldHigh) - f.WindowOpen) / f.WindowOpen
	default:
		return degenerate(f, "bias unset")
	}
	f.MaxFavorable = fav
	f.MaxAdverse = adv
	f.Degenerate = false
	return nil
}

func degenerate(f *models.Flash, reason string) error {
	f.MaxFavorable = 0
	f.MaxAdverse = 0
	f.Degenerate = true
	return &OutcomeError{FlashID: f.ID, OriginTime: f.OriginTime, Reason: reason}
}

// ComputeOutcomes runs ComputeOutcome over closed and collects the per-flash issues.
func ComputeOutcomes(closed []models.Flash) []models.OutcomeIssue {
	var issues []models.OutcomeIssue
	for i := range closed {
		err := ComputeOutcome(&closed[i])
		var oe *OutcomeError
		if errors.As(err, &oe) {
			issues = append(issues, models.OutcomeIssue{
				FlashID:    oe.FlashID,
				OriginTime: oe.OriginTime,
				Reason:     oe.Reason,
			})
		}
	}
	return issues
}
