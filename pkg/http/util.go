package http

import (
	"time"

	xutil "FlashScan/pkg/util"
)

// ParseTime accepts RFC3339, the CSV layouts and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) { return xutil.ParseTime(s) }

// ParseRange parses optional from/to query values. Empty values stay zero; an unparsable value
// is reported by name.
func ParseRange(from, to string) (time.Time, time.Time, string) {
	var f, t time.Time
	if from != "" {
		v, ok := xutil.ParseTime(from)
		if !ok {
			return f, t, "from"
		}
		f = v
	}
	if to != "" {
		v, ok := xutil.ParseTime(to)
		if !ok {
			return f, t, "to"
		}
		t = v
	}
	return f, t, ""
}
