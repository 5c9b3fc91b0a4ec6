package pricedb

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Granularity is a price series aggregation unit. Observation timestamps are
// floored to the granularity boundary to form the bucket key.
type Granularity int

const (
	Minute Granularity = iota
	Hour
	Day
)

// Granularities lists all series granularities in write order.
var Granularities = []Granularity{Minute, Hour, Day}

func (g Granularity) String() string {
	switch g {
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	case Day:
		return "day"
	default:
		return "unknown"
	}
}

// ParseGranularity maps a granularity name onto its value.
func ParseGranularity(name string) (Granularity, error) {
	switch name {
	case "minute":
		return Minute, nil
	case "hour":
		return Hour, nil
	case "day":
		return Day, nil
	default:
		return 0, fmt.Errorf("unknown granularity %q", name)
	}
}

// Truncate floors t to the granularity boundary in UTC.
func (g Granularity) Truncate(t time.Time) time.Time {
	t = t.UTC()
	switch g {
	case Minute:
		return t.Truncate(time.Minute)
	case Hour:
		return t.Truncate(time.Hour)
	case Day:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}

// shouldWrite is the change-suppression policy: a write is emitted when no
// prior row exists at or before the bucket, or when the value changed since
// that row. Equal values are skipped to keep the series compact.
func shouldWrite(prior *decimal.Decimal, next decimal.Decimal) bool {
	return prior == nil || !prior.Equal(next)
}
