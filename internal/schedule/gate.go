package schedule

import (
	"fmt"
	"time"
)

const holidayDateLayout = "2006-01-02"

// Gate decides whether a scheduled tick should run at a given instant.
// Ticks run on weekdays, inside the business-hours window, and never on a
// configured holiday.
type Gate struct {
	location *time.Location
	holidays map[string]struct{}
	fromHour int
	toHour   int
}

// NewGate builds a gate for the given locale. Holiday entries use YYYY-MM-DD
// and are interpreted in the gate's location.
func NewGate(location *time.Location, holidays []string, fromHour, toHour int) (*Gate, error) {
	if location == nil {
		location = time.UTC
	}
	holidaySet := make(map[string]struct{}, len(holidays))
	for _, holiday := range holidays {
		if _, err := time.Parse(holidayDateLayout, holiday); err != nil {
			return nil, fmt.Errorf("schedule: holiday %q must use YYYY-MM-DD: %w", holiday, err)
		}
		holidaySet[holiday] = struct{}{}
	}
	return &Gate{
		location: location,
		holidays: holidaySet,
		fromHour: fromHour,
		toHour:   toHour,
	}, nil
}

// Allows reports whether the tick should run now, with a reason when it
// should not.
func (g *Gate) Allows(now time.Time) (bool, string) {
	local := now.In(g.location)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false, "weekend"
	}
	if _, isHoliday := g.holidays[local.Format(holidayDateLayout)]; isHoliday {
		return false, "holiday"
	}
	if local.Hour() < g.fromHour || local.Hour() >= g.toHour {
		return false, "outside business hours"
	}
	return true, ""
}
