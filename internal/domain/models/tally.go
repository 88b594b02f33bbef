package models

import "time"

// TallyRow is the per-bar snapshot of the flash population counters.
type TallyRow struct {
	Time          time.Time `json:"time"`
	ActiveBullish int       `json:"active_bullish"`
	ActiveBearish int       `json:"active_bearish"`
	ClosedBullish int       `json:"closed_bullish"`
	ClosedBearish int       `json:"closed_bearish"`
	Stunted       int       `json:"stunted"`
	Active        int       `json:"active"`
	Closed        int       `json:"closed"`
}
