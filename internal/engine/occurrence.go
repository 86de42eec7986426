// This file implements the Strategy Pattern for recurring transaction schedules.
// Each frequency type (daily, weekly, monthly, yearly) has its own strategy
// that knows how to find the next occurrence of a template.

package engine

import (
	"fmt"
	"time"

	"finledger/internal/core"
)

// OccurrenceStrategy finds the first occurrence of a series anchored at start
// that falls on or after from. from is never earlier than start.
type OccurrenceStrategy interface {
	Next(start, from core.Date) core.Date
}

// DailySchedule occurs every day from the start date.
type DailySchedule struct{}

func (DailySchedule) Next(_, from core.Date) core.Date {
	return from
}

// WeeklySchedule occurs every 7 days from the start date.
type WeeklySchedule struct{}

func (WeeklySchedule) Next(start, from core.Date) core.Date {
	days := daysBetween(start, from)
	steps := (days + 6) / 7
	return start.AddDays(steps * 7)
}

// MonthlySchedule occurs on the start date's day of month. Days past the end
// of a shorter month fall on its last day.
type MonthlySchedule struct{}

func (MonthlySchedule) Next(start, from core.Date) core.Date {
	months := (from.Year()-start.Year())*12 + int(from.Month()) - int(start.Month())
	candidate := monthlyOccurrence(start, months)
	if candidate.Before(from) {
		candidate = monthlyOccurrence(start, months+1)
	}
	return candidate
}

// YearlySchedule occurs on the start date's month and day. February 29
// falls on February 28 in common years.
type YearlySchedule struct{}

func (YearlySchedule) Next(start, from core.Date) core.Date {
	years := from.Year() - start.Year()
	candidate := monthlyOccurrence(start, years*12)
	if candidate.Before(from) {
		candidate = monthlyOccurrence(start, (years+1)*12)
	}
	return candidate
}

// occurrenceStrategies maps frequencies to their schedules.
var occurrenceStrategies = map[core.Frequency]OccurrenceStrategy{
	core.Daily:   DailySchedule{},
	core.Weekly:  WeeklySchedule{},
	core.Monthly: MonthlySchedule{},
	core.Yearly:  YearlySchedule{},
}

// GetOccurrenceStrategy returns the schedule for a frequency.
func GetOccurrenceStrategy(frequency core.Frequency) (OccurrenceStrategy, error) {
	s, ok := occurrenceStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return s, nil
}

// NextOccurrence returns the first occurrence of rt on or after from.
// The boolean is false when the series has already ended.
func NextOccurrence(rt core.RecurringTransaction, from core.Date) (core.Date, bool, error) {
	strategy, err := GetOccurrenceStrategy(rt.Frequency)
	if err != nil {
		return core.Date{}, false, err
	}
	if from.Before(rt.StartDate) {
		from = rt.StartDate
	}
	next := strategy.Next(rt.StartDate, from)
	if !rt.EndDate.IsZero() && next.After(rt.EndDate) {
		return core.Date{}, false, nil
	}
	return next, true, nil
}

func monthlyOccurrence(start core.Date, monthsAfter int) core.Date {
	first := time.Date(start.Year(), start.Time.Month()+time.Month(monthsAfter), 1, 0, 0, 0, 0, time.UTC)
	lastDay := first.AddDate(0, 1, -1).Day()
	day := start.Day()
	if day > lastDay {
		day = lastDay
	}
	return core.NewDate(first.Year(), int(first.Month()), day)
}

func daysBetween(from, to core.Date) int {
	return int(to.Sub(from.Time).Hours() / 24)
}
