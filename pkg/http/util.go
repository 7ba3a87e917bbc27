package http

import (
	"time"

	xutil "Stooorage/pkg/util"
)

// ParseTime tries RFC3339, naive ISO forms and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) { return xutil.ParseTime(s) }
