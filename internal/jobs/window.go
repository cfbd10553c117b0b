package jobs

import (
	"fmt"
	"time"

	"devmind/datacollector/internal/constants"
	"devmind/datacollector/internal/models"
	"devmind/datacollector/internal/models/dtos"
	"devmind/datacollector/internal/providers"
)

const (
	day                = 24 * time.Hour
	defaultLookback    = 30 * day
	minimumLookback    = day
	oneMonthLookback   = 30 * day
	threeMonthLookback = 90 * day
)

// InitialRangeDuration resolves an initial_range value. Unknown values mean one month.
func InitialRangeDuration(initialRange string) time.Duration {
	switch initialRange {
	case constants.InitialRangeThreeMonths:
		return threeMonthLookback
	default:
		return oneMonthLookback
	}
}

// ComputeWindow picks the collection window for a scheduled run.
// First runs look back initial_range; incremental runs resume from the last success
// but always look back at least one day.
func ComputeWindow(now time.Time, state dtos.RuntimeState, initialRange string) providers.Window {
	if state.FirstCollectAt == nil {
		return providers.Window{Start: now.Add(-InitialRangeDuration(initialRange)), End: now}
	}

	start := now.Add(-defaultLookback)
	if state.LastSuccessCollectAt != nil {
		start = *state.LastSuccessCollectAt
	}
	if latest := now.Add(-minimumLookback); start.After(latest) {
		start = latest
	}
	return providers.Window{Start: start, End: now}
}

// ParseManualWindow validates an explicit [start, end) pair.
// Both nil means no manual window. Supplying only one bound is invalid.
func ParseManualWindow(start, end *string) (*providers.Window, error) {
	if start == nil && end == nil {
		return nil, nil
	}
	if start == nil || end == nil {
		return nil, fmt.Errorf("%w: start_time and end_time must be given together", ErrInvalidTimeRange)
	}

	st, err := models.ParseTimestamp(*start)
	if err != nil {
		return nil, fmt.Errorf("%w: start_time: %v", ErrInvalidTimeRange, err)
	}
	et, err := models.ParseTimestamp(*end)
	if err != nil {
		return nil, fmt.Errorf("%w: end_time: %v", ErrInvalidTimeRange, err)
	}
	if !st.Before(et) {
		return nil, fmt.Errorf("%w: start_time must be before end_time", ErrInvalidTimeRange)
	}
	return &providers.Window{Start: st, End: et}, nil
}
