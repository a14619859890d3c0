/*
daycount.go - Year-fraction calculation under named conventions

PURPOSE:
  Converts a calendar date range into the fractional number of years used
  by interest formulas. The convention decides how days are counted and
  what the year denominator is.

CONVENTIONS:
  ACT/365  Actual days / 365. Leap years are NOT special-cased; the
           denominator is always 365, so a full leap year yields 366/365.
  ACT/360  Actual days / 360. Common for money-market instruments.
  ACT/ACT  The range is split at calendar-year boundaries; each slice is
           divided by that year's actual length (365 or 366) and the
           slices are summed. Dec 1 2023 - Feb 1 2024 = 30/365 + 31/366.
  30/360   US/NASD: day-of-month 31 is adjusted down to 30 (the end date
           only when the start day, post-adjustment, is 30), then
           fraction = (360*dy + 30*dm + dd) / 360.

EDGE BEHAVIOR:
  Same start and end date yields exactly zero for every convention.
  A reversed range is rejected with ErrInvalidRange: the accrual walk
  never moves backwards, so a reversed range is always a caller bug.
*/
package fincore

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// CONVENTIONS
// =============================================================================

type Convention string

const (
	Act365    Convention = "ACT/365"
	Act360    Convention = "ACT/360"
	ActAct    Convention = "ACT/ACT"
	Thirty360 Convention = "30/360"
)

// Valid reports whether c is one of the recognized conventions.
func (c Convention) Valid() bool {
	switch c {
	case Act365, Act360, ActAct, Thirty360:
		return true
	}
	return false
}

var (
	d360 = decimal.NewFromInt(360)
	d365 = decimal.NewFromInt(365)
)

// =============================================================================
// YEAR FRACTION
// =============================================================================

// YearFraction returns the fraction of a year between start and end under
// the given convention. The result is zero when start equals end and is
// never negative for end >= start.
func YearFraction(start, end Date, c Convention) (decimal.Decimal, error) {
	if !c.Valid() {
		return decimal.Zero, &ConventionError{Convention: c}
	}
	if end.Before(start) {
		return decimal.Zero, &RangeError{Start: start, End: end}
	}
	if start.Equal(end) {
		return decimal.Zero, nil
	}

	switch c {
	case Act365:
		return decimal.NewFromInt(int64(DaysBetween(start, end))).Div(d365), nil
	case Act360:
		return decimal.NewFromInt(int64(DaysBetween(start, end))).Div(d360), nil
	case ActAct:
		return actActFraction(start, end), nil
	default: // Thirty360, guaranteed by Valid() above
		return thirty360Fraction(start, end), nil
	}
}

// actActFraction splits [start, end] at each January 1st and divides each
// slice's day count by the length of its own calendar year.
func actActFraction(start, end Date) decimal.Decimal {
	total := decimal.Zero
	current := start
	for current.Before(end) {
		yearEnd := NewDate(current.Year()+1, 1, 1) // exclusive slice boundary
		sliceEnd := MinDate(yearEnd, end)
		days := decimal.NewFromInt(int64(DaysBetween(current, sliceEnd)))
		total = total.Add(days.Div(decimal.NewFromInt(int64(DaysInYear(current.Year())))))
		current = sliceEnd
	}
	return total
}

// thirty360Fraction implements the US/NASD 30/360 rule.
func thirty360Fraction(start, end Date) decimal.Decimal {
	d1 := start.Day()
	d2 := end.Day()
	if d1 == 31 {
		d1 = 30
	}
	// The end-date adjustment only applies once the start day sits on 30.
	if d2 == 31 && d1 == 30 {
		d2 = 30
	}

	days := (end.Year()-start.Year())*360 +
		(int(end.Month())-int(start.Month()))*30 +
		(d2 - d1)
	return decimal.NewFromInt(int64(days)).Div(d360)
}
