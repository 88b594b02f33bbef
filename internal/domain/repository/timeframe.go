package repository

import (
	"fmt"
	"strings"
	"time"
)

var timeframes = map[Timeframe]time.Duration{
	TF1m:  time.Minute,
	TF5m:  5 * time.Minute,
	TF15m: 15 * time.Minute,
	TF1h:  time.Hour,
}

// Common spellings of the supported bar lengths.
var timeframeAliases = map[string]Timeframe{
	"m1": TF1m, "1min": TF1m,
	"m5": TF5m, "5min": TF5m,
	"m15": TF15m, "15min": TF15m,
	"h1": TF1h, "60m": TF1h, "60min": TF1h,
}

func IsValidTimeframe(tf Timeframe) bool {
	_, ok := timeframes[tf]
	return ok
}

func DefaultTimeframe() Timeframe { return TF1m }

// ParseTimeframe accepts the canonical names and their aliases, case-insensitively. An empty
// string is the default timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultTimeframe(), nil
	}
	if tf := Timeframe(s); IsValidTimeframe(tf) {
		return tf, nil
	}
	if tf, ok := timeframeAliases[s]; ok {
		return tf, nil
	}
	return "", fmt.Errorf("unsupported timeframe %q", s)
}

// NormalizeTimeframe is ParseTimeframe falling back to the default.
func NormalizeTimeframe(s string) Timeframe {
	tf, err := ParseTimeframe(s)
	if err != nil {
		return DefaultTimeframe()
	}
	return tf
}

// Duration is the bar length; one minute for unknown values.
func (tf Timeframe) Duration() time.Duration {
	if d, ok := timeframes[tf]; ok {
		return d
	}
	return time.Minute
}
