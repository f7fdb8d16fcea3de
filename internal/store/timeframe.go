package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Timeframe names a date range resolved against US Eastern civil time,
// regardless of server locale.
type Timeframe string

const (
	TimeframeToday     Timeframe = "today"
	TimeframeYesterday Timeframe = "yesterday"
	TimeframeThisMonth Timeframe = "this_month"
	TimeframeAll       Timeframe = "all"
)

var eastern = mustLoadEastern()

func mustLoadEastern() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(fmt.Sprintf("load America/New_York: %v", err))
	}
	return loc
}

// ParseTimeframe validates a user-supplied timeframe name.
func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(strings.ToLower(strings.TrimSpace(s))); tf {
	case TimeframeToday, TimeframeYesterday, TimeframeThisMonth, TimeframeAll:
		return tf, nil
	default:
		return "", fmt.Errorf("invalid timeframe %q: use today, yesterday, this_month, or all", s)
	}
}

// Bounds resolves the timeframe to an absolute [start, end) window at the
// given instant. A zero end means the window is open-ended. The offset is
// recomputed from the location each call so DST transitions are honored.
// Unknown timeframes and TimeframeAll report ok=false.
func (tf Timeframe) Bounds(now time.Time) (start, end time.Time, ok bool) {
	local := now.In(eastern)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, eastern)
	switch tf {
	case TimeframeToday:
		return midnight, time.Time{}, true
	case TimeframeYesterday:
		return midnight.AddDate(0, 0, -1), midnight, true
	case TimeframeThisMonth:
		first := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, eastern)
		return first, time.Time{}, true
	default:
		return time.Time{}, time.Time{}, false
	}
}

// PeriodKind selects how Count interprets a Period.
type PeriodKind int

const (
	PeriodAll PeriodKind = iota
	PeriodYesterday
	PeriodDays
)

// Period is a counting window: all time, yesterday, or the last N days
// (N=0 meaning "since local midnight today").
type Period struct {
	Kind PeriodKind
	Days int
}

// ParsePeriod validates a user-supplied period: "all", "today",
// "yesterday", or a non-negative day count.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all":
		return Period{Kind: PeriodAll}, nil
	case "yesterday":
		return Period{Kind: PeriodYesterday}, nil
	case "today":
		return Period{Kind: PeriodDays, Days: 0}, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return Period{}, fmt.Errorf("invalid period %q: use a number of days (e.g. 7), 'today', 'yesterday', or 'all'", s)
	}
	return Period{Kind: PeriodDays, Days: n}, nil
}
