package models

import (
	"fmt"
	"time"
)

// Stage is the lifecycle position of a flash. Stages only move forward.
type Stage int8

const (
	StageFlash Stage = iota
	StageWindow
	StageHold
	StageClosed
)

func (s Stage) String() string {
	switch s {
	case StageFlash:
		return "flash"
	case StageWindow:
		return "window"
	case StageHold:
		return "hold"
	case StageClosed:
		return "closed"
	default:
		return fmt.Sprintf("stage(%d)", int8(s))
	}
}

func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Stage) UnmarshalText(b []byte) error {
	switch string(b) {
	case "flash":
		*s = StageFlash
	case "window":
		*s = StageWindow
	case "hold":
		*s = StageHold
	case "closed":
		*s = StageClosed
	default:
		return fmt.Errorf("unknown stage %q", b)
	}
	return nil
}

// Bias is the direction assigned to a flash once its window passed the grace period.
type Bias int8

const (
	BiasUnset   Bias = 0
	BiasBullish Bias = 1
	BiasBearish Bias = -1
)

func (b Bias) String() string {
	switch b {
	case BiasBullish:
		return "bullish"
	case BiasBearish:
		return "bearish"
	default:
		return "unset"
	}
}

func (b Bias) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *Bias) UnmarshalText(t []byte) error {
	switch string(t) {
	case "bullish":
		*b = BiasBullish
	case "bearish":
		*b = BiasBearish
	case "unset", "":
		*b = BiasUnset
	default:
		return fmt.Errorf("unknown bias %q", t)
	}
	return nil
}

// Flash is one tracked lifecycle instance.
type Flash struct {
	ID         int       `json:"id"`
	OriginTime time.Time `json:"origin_time"`
	Age        int       `json:"age"`
	Stage      Stage     `json:"stage"`

	FlashOpen     float64 `json:"flash_open"`
	FlashHigh     float64 `json:"flash_high"`
	FlashLow      float64 `json:"flash_low"`
	FlashDuration int     `json:"flash_duration"`

	// WindowOpen is the target price for the rest of the lifecycle.
	WindowOpen     float64 `json:"window_open"`
	WindowHigh     float64 `json:"window_high"`
	WindowLow      float64 `json:"window_low"`
	WindowDuration int     `json:"window_duration"`

	HoldOpen     float64 `json:"hold_open"`
	HoldHigh     float64 `json:"hold_high"`
	HoldLow      float64 `json:"hold_low"`
	HoldDuration int     `json:"hold_duration"`

	Bias Bias `json:"bias"`

	MaxFavorable float64 `json:"max_favorable"`
	MaxAdverse   float64 `json:"max_adverse"`
	// Degenerate is set when the outcome ratios could not be computed.
	Degenerate bool `json:"degenerate,omitempty"`
}
