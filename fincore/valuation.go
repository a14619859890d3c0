/*
valuation.go - Synthetic valuation of a scheduled-yield instrument

PURPOSE:
  Produces the value of an instrument at an arbitrary date by walking its
  rate schedule in segments and summing the interest each segment earns
  on a constant principal.

THE WALK:
  Starting at the accrual start, resolve the regime governing the current
  date, cut the segment at the earlier of the regime boundary and the
  target date, convert the segment to a year fraction under the segment's
  own convention, and compute the segment's interest against the face
  value. The next segment starts the day after the previous one ended.

  Principal is held constant across the whole walk: a segment's interest
  is always computed against the same face value and summed. Interest
  does not compound INTO principal across segment boundaries in this
  model (compounding applies within a segment when configured).

EDGE BEHAVIOR:
  - target before accrual start: face value unchanged, no accrual.
  - face value <= 0: value is exactly zero (no negative instrument values).
  - empty schedule: ErrMissingSchedule.
  - gaps between periods: skipped; no interest accrues inside a gap.
*/
package fincore

import (
	"github.com/shopspring/decimal"
)

// ValueAt returns the value of an instrument with the given schedule and
// face value at the target date: face value plus all interest accrued in
// [accrual start, target].
func ValueAt(s Schedule, faceValue decimal.Decimal, target Date) (decimal.Decimal, error) {
	if len(s.Periods) == 0 {
		return decimal.Zero, ErrMissingSchedule
	}
	if faceValue.Sign() <= 0 {
		return decimal.Zero, nil
	}
	if target.Before(s.AccrualStart()) {
		return faceValue, nil
	}

	total := decimal.Zero
	current := s.AccrualStart()
	for current.BeforeOrEqual(target) {
		period, ok := s.ActivePeriod(current)
		if !ok {
			// Inside a gap: hop to the next period start, if any remains
			// before the target.
			next, found := s.nextPeriodStart(current)
			if !found || next.After(target) {
				break
			}
			current = next
			continue
		}

		segmentEnd := MinDate(period.End, target)
		fraction, err := YearFraction(current, segmentEnd, period.DayCount)
		if err != nil {
			return decimal.Zero, err
		}
		interest, err := period.Interest(faceValue, fraction)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(interest)

		if !segmentEnd.Before(target) {
			break
		}
		current = segmentEnd.AddDays(1)
	}

	return faceValue.Add(total), nil
}
