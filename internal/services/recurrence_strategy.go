// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for projecting the next due date
// of a recurring expense. Each recurrence has its own strategy.

package services

import (
	"time"

	"aarthik/internal/core"
)

// RecurrenceStrategy computes the next due date from the most recent payment.
type RecurrenceStrategy interface {
	Next(last time.Time) time.Time
}

// FixedInterval adds a fixed number of days regardless of month or year length.
type FixedInterval struct {
	Days int
}

func (f FixedInterval) Next(last time.Time) time.Time {
	return last.AddDate(0, 0, f.Days)
}

// CalendarInterval steps by calendar months and years. Go normalizes
// overflowing days, so Jan 31 plus one month lands on Mar 2 or 3.
type CalendarInterval struct {
	Months int
	Years  int
	Days   int
}

func (c CalendarInterval) Next(last time.Time) time.Time {
	return last.AddDate(c.Years, c.Months, c.Days)
}

// FixedStrategies returns the default registry: weekly +7, monthly +30 and yearly +365 days.
func FixedStrategies() map[core.Recurrence]RecurrenceStrategy {
	return map[core.Recurrence]RecurrenceStrategy{
		core.Weekly:  FixedInterval{Days: 7},
		core.Monthly: FixedInterval{Days: 30},
		core.Yearly:  FixedInterval{Days: 365},
	}
}

// CalendarStrategies returns the calendar-aware registry.
func CalendarStrategies() map[core.Recurrence]RecurrenceStrategy {
	return map[core.Recurrence]RecurrenceStrategy{
		core.Weekly:  CalendarInterval{Days: 7},
		core.Monthly: CalendarInterval{Months: 1},
		core.Yearly:  CalendarInterval{Years: 1},
	}
}
