/*
schedule.go - Multi-period rate schedules and active-period resolution

PURPOSE:
  A scheduled-yield instrument carries an ordered list of rate periods: a
  date range, an annual rate, a compounding mode, and a day-count
  convention per period. The last period's end date is the instrument's
  maturity. An optional late-interest configuration defines a penalty
  regime that begins after a grace window.

RESOLUTION RULES:
  - A date inside a period resolves to that period.
  - A date after maturity but within the grace window (or with no late
    configuration at all) resolves to an extension of the LAST period:
    grace means "no penalty yet", not "no interest".
  - A date beyond maturity + grace days resolves to a period synthesized
    from the late-interest configuration, starting the day after the
    grace window closes.
  - A date before the first period, or inside a gap between periods,
    resolves to nothing: no interest accrues there.

BOUNDARY PIN:
  The grace cutoff is inclusive: target == maturity + grace days still
  accrues at the last normal period's rate. The penalty period starts at
  maturity + grace days + 1.

VALIDATION:
  Periods must be ordered and non-overlapping, each with start <= end, a
  recognized convention, and a frequency present exactly when compounding
  is COMPOUND. Gaps between periods are tolerated; the valuation walk
  skips them. Validation happens at schedule load time so valuation never
  sees a malformed schedule.
*/
package fincore

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// RATE PERIOD
// =============================================================================

// RatePeriod is one slice of a schedule: in [Start, End] the instrument
// accrues at AnnualRate under the period's own compounding and convention.
type RatePeriod struct {
	Start       Date
	End         Date
	AnnualRate  decimal.Decimal // 0.05 = 5%
	Compounding Compounding
	Frequency   Frequency // required iff Compounding == COMPOUND
	DayCount    Convention
}

// Interest computes the interest this period's regime yields on principal
// over the given year fraction.
func (p RatePeriod) Interest(principal, timeFraction decimal.Decimal) (decimal.Decimal, error) {
	if p.Compounding == Compound {
		return CompoundInterest(principal, p.AnnualRate, timeFraction, p.Frequency)
	}
	return SimpleInterest(principal, p.AnnualRate, timeFraction), nil
}

// validate checks a single period's internal consistency.
func (p RatePeriod) validate() string {
	if p.End.Before(p.Start) {
		return "end date before start date"
	}
	if !p.DayCount.Valid() {
		return "unknown day-count convention " + string(p.DayCount)
	}
	switch p.Compounding {
	case Simple:
		if p.Frequency != "" {
			return "SIMPLE period must not carry a compound frequency"
		}
	case Compound:
		if p.Frequency == "" {
			return "COMPOUND period requires a compound frequency"
		}
		if !p.Frequency.Valid() {
			return "unknown compound frequency " + string(p.Frequency)
		}
	default:
		return "unknown compounding mode " + string(p.Compounding)
	}
	return ""
}

// =============================================================================
// LATE INTEREST
// =============================================================================

// LateInterest is the penalty regime applying strictly after
// maturity + GraceDays.
type LateInterest struct {
	AnnualRate  decimal.Decimal
	GraceDays   int
	Compounding Compounding
	Frequency   Frequency
	DayCount    Convention
}

// =============================================================================
// SCHEDULE
// =============================================================================

// Schedule is the complete accrual configuration of a scheduled-yield
// instrument. Periods are ordered; Periods[0].Start is the accrual start
// and Periods[last].End is maturity.
type Schedule struct {
	Periods []RatePeriod
	Late    *LateInterest
}

func (s Schedule) AccrualStart() Date { return s.Periods[0].Start }
func (s Schedule) Maturity() Date     { return s.Periods[len(s.Periods)-1].End }

// Validate checks the schedule's structural invariants. It is called at
// load time; valuation assumes a validated schedule.
func (s Schedule) Validate() error {
	if len(s.Periods) == 0 {
		return &ScheduleError{Index: -1, Reason: "no periods"}
	}
	for i, p := range s.Periods {
		if reason := p.validate(); reason != "" {
			return &ScheduleError{Index: i, Reason: reason}
		}
		if i > 0 && !s.Periods[i-1].End.Before(p.Start) {
			return &ScheduleError{Index: i, Reason: "overlaps or is out of order with previous period"}
		}
	}
	if s.Late != nil {
		if s.Late.GraceDays < 0 {
			return &ScheduleError{Index: -1, Reason: "negative grace period"}
		}
		probe := RatePeriod{
			Start:       s.Maturity(),
			End:         s.Maturity(),
			AnnualRate:  s.Late.AnnualRate,
			Compounding: s.Late.Compounding,
			Frequency:   s.Late.Frequency,
			DayCount:    s.Late.DayCount,
		}
		if reason := probe.validate(); reason != "" {
			return &ScheduleError{Index: -1, Reason: "late interest: " + reason}
		}
	}
	return nil
}

// ActivePeriod resolves the rate regime governing target. The returned
// period's End is capped so that a valuation segment never extends past
// the regime boundary; regimes past maturity are synthesized on the fly.
// ok is false before accrual start, inside a gap, or for an empty schedule.
func (s Schedule) ActivePeriod(target Date) (RatePeriod, bool) {
	if len(s.Periods) == 0 {
		return RatePeriod{}, false
	}
	for _, p := range s.Periods {
		if p.Start.BeforeOrEqual(target) && target.BeforeOrEqual(p.End) {
			return p, true
		}
	}

	maturity := s.Maturity()
	if target.Before(maturity) {
		// Before maturity but in no period: a gap.
		return RatePeriod{}, false
	}

	last := s.Periods[len(s.Periods)-1]
	if s.Late == nil {
		// No penalty regime: the final rate keeps applying indefinitely.
		ext := last
		ext.End = target
		return ext, true
	}

	graceEnd := maturity.AddDays(s.Late.GraceDays)
	if target.BeforeOrEqual(graceEnd) {
		ext := last
		ext.End = graceEnd
		return ext, true
	}

	return RatePeriod{
		Start:       graceEnd.AddDays(1),
		End:         target,
		AnnualRate:  s.Late.AnnualRate,
		Compounding: s.Late.Compounding,
		Frequency:   s.Late.Frequency,
		DayCount:    s.Late.DayCount,
	}, true
}

// nextPeriodStart returns the start of the first period beginning after
// target. Used by the valuation walk to hop over gaps.
func (s Schedule) nextPeriodStart(target Date) (Date, bool) {
	for _, p := range s.Periods {
		if p.Start.After(target) {
			return p.Start, true
		}
	}
	return Date{}, false
}
