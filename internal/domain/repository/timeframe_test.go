package repository

import (
	"testing"
	"time"
)

func TestParseTimeframe(t *testing.T) {
	cases := map[string]Timeframe{
		"":      TF1m,
		"5m":    TF5m,
		" 15M":  TF15m,
		"H1":    TF1h,
		"60min": TF1h,
	}
	for in, want := range cases {
		got, err := ParseTimeframe(in)
		if err != nil || got != want {
			t.Fatalf("%q: want %s, got %s (%v)", in, want, got, err)
		}
	}
	if _, err := ParseTimeframe("2m"); err == nil {
		t.Fatalf("expected 2m to be rejected")
	}
	if NormalizeTimeframe("2m") != TF1m {
		t.Fatalf("normalize must fall back to the default")
	}
}

func TestTimeframeDuration(t *testing.T) {
	if TF15m.Duration() != 15*time.Minute || TF1h.Duration() != time.Hour {
		t.Fatalf("unexpected durations %v %v", TF15m.Duration(), TF1h.Duration())
	}
	if Timeframe("3d").Duration() != time.Minute {
		t.Fatalf("unknown timeframe must default to one minute")
	}
}
