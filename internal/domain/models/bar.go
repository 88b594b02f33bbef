package models

import (
	"fmt"
	"strings"
	"time"
)

// Trigger marks the rising (Start) or falling (End) edge of the flash condition on a bar.
type Trigger int8

const (
	TriggerNone  Trigger = 0
	TriggerStart Trigger = 1
	TriggerEnd   Trigger = -1
)

// Valid reports whether t is one of the three known trigger values.
func (t Trigger) Valid() bool {
	return t == TriggerNone || t == TriggerStart || t == TriggerEnd
}

func (t Trigger) String() string {
	switch t {
	case TriggerStart:
		return "start"
	case TriggerEnd:
		return "end"
	case TriggerNone:
		return "none"
	default:
		return fmt.Sprintf("trigger(%d)", int8(t))
	}
}

// ParseTrigger accepts "start"/"end"/"none" (and "1"/"-1"/"0", "" as none).
func ParseTrigger(s string) (Trigger, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "0", "0.0":
		return TriggerNone, nil
	case "start", "1", "1.0":
		return TriggerStart, nil
	case "end", "-1", "-1.0":
		return TriggerEnd, nil
	default:
		return TriggerNone, fmt.Errorf("unknown trigger %q", s)
	}
}

func (t Trigger) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid trigger %d", int8(t))
	}
	return []byte(t.String()), nil
}

func (t *Trigger) UnmarshalText(b []byte) error {
	v, err := ParseTrigger(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Bar is one aligned input observation for the flash engine.
type Bar struct {
	Time    time.Time `json:"time"`
	Open    float64   `json:"open"`
	High    float64   `json:"high"`
	Low     float64   `json:"low"`
	Close   float64   `json:"close"`
	Volume  float64   `json:"volume"`
	Trigger Trigger   `json:"trigger"`
}

// Touches reports whether price lies inside the bar's [Low, High] range.
func (b Bar) Touches(price float64) bool {
	return !(b.High < price || b.Low > price)
}

// SignalBar is a Bar annotated with the indicator values that produced its trigger.
type SignalBar struct {
	Bar
	ADX        float64 `json:"adx"`
	Flash      bool    `json:"flash"`
	BandUpper  float64 `json:"band_upper"`
	BandLower  float64 `json:"band_lower"`
	BandStreak int     `json:"band_streak"`
	BandSignal bool    `json:"band_signal"`
}
