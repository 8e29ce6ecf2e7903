// internal/pipeline/range.go
package pipeline

import "time"

// RangePresets supported by History. ALL is anchored at a fixed distant
// epoch instead of an open-ended query.
const (
	Range1D  = "1D"
	Range1W  = "1W"
	Range1M  = "1M"
	Range3M  = "3M"
	Range6M  = "6M"
	Range1Y  = "1Y"
	RangeAll = "ALL"
)

// resolveRangeStart maps a UI range preset to a concrete start date
// relative to now. Unknown presets behave like 1M.
func resolveRangeStart(preset string, now time.Time) time.Time {
	switch preset {
	case Range1D:
		return now.AddDate(0, 0, -1)
	case Range1W:
		return now.AddDate(0, 0, -7)
	case Range1M:
		return now.AddDate(0, -1, 0)
	case Range3M:
		return now.AddDate(0, -3, 0)
	case Range6M:
		return now.AddDate(0, -6, 0)
	case Range1Y:
		return now.AddDate(-1, 0, 0)
	case RangeAll:
		return time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return now.AddDate(0, -1, 0)
	}
}
