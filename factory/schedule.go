/*
Package factory provides JSON to Go schedule conversion.

PURPOSE:
  Converts JSON rate-schedule definitions into fincore.Schedule objects.
  This enables instrument configuration without code changes - a user can
  attach a JSON schedule to an asset record, and the factory creates the
  proper Go structs for the valuation engine.

WHY JSON?
  - Non-developers can define instruments
  - Easy integration with an admin UI
  - Version control for instrument definitions
  - Database storage of schedule configs alongside the asset row

JSON SCHEMA:
  {
    "schedule": [
      {
        "start_date": "2025-01-01",
        "end_date": "2025-12-31",
        "annual_rate": "0.05",
        "compounding": "COMPOUND",
        "compound_frequency": "SEMIANNUAL",
        "day_count": "ACT/365"
      }
    ],
    "late_interest": {
      "annual_rate": "0.12",
      "grace_period_days": 5,
      "compounding": "SIMPLE",
      "day_count": "ACT/365"
    }
  }

KEY FEATURES:
  - Validates JSON structure
  - Sets sensible defaults (SIMPLE compounding, ACT/365 day count)
  - Rejects invalid schedules via fincore.Schedule.Validate
  - Round-trips back to JSON for API responses

USAGE:
  f := factory.NewScheduleFactory()
  schedule, err := f.ParseSchedule(asset.ScheduleJSON)

SEE ALSO:
  - fincore/schedule.go: Schedule and RatePeriod definitions
  - pricing/scheduled.go: The consumer of parsed schedules
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alfystar/librefolio/fincore"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ScheduleJSON is the JSON representation of a full rate schedule.
type ScheduleJSON struct {
	Periods      []PeriodJSON      `json:"schedule"`
	LateInterest *LateInterestJSON `json:"late_interest,omitempty"`
}

// PeriodJSON represents one interest-rate period.
type PeriodJSON struct {
	StartDate  fincore.Date    `json:"start_date"`
	EndDate    fincore.Date    `json:"end_date"`
	AnnualRate decimal.Decimal `json:"annual_rate"`
	Compounding string         `json:"compounding,omitempty"`        // SIMPLE (default) or COMPOUND
	Frequency   string         `json:"compound_frequency,omitempty"` // required iff COMPOUND
	DayCount    string         `json:"day_count,omitempty"`          // default ACT/365
}

// LateInterestJSON represents the optional post-maturity penalty regime.
type LateInterestJSON struct {
	AnnualRate  decimal.Decimal `json:"annual_rate"`
	GraceDays   int             `json:"grace_period_days"`
	Compounding string          `json:"compounding,omitempty"`
	Frequency   string          `json:"compound_frequency,omitempty"`
	DayCount    string          `json:"day_count,omitempty"`
}

// =============================================================================
// SCHEDULE FACTORY
// =============================================================================

// ScheduleFactory converts JSON schedules to Go structs and back.
type ScheduleFactory struct{}

func NewScheduleFactory() *ScheduleFactory {
	return &ScheduleFactory{}
}

// ParseSchedule parses a JSON string into a validated fincore.Schedule.
func (f *ScheduleFactory) ParseSchedule(jsonStr string) (*fincore.Schedule, error) {
	var sj ScheduleJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return nil, fmt.Errorf("failed to parse schedule JSON: %w", err)
	}
	return f.FromJSON(sj)
}

// FromJSON converts ScheduleJSON to a validated fincore.Schedule.
func (f *ScheduleFactory) FromJSON(sj ScheduleJSON) (*fincore.Schedule, error) {
	schedule := &fincore.Schedule{}

	for i, pj := range sj.Periods {
		period, err := parsePeriod(pj)
		if err != nil {
			return nil, fmt.Errorf("schedule period %d: %w", i, err)
		}
		schedule.Periods = append(schedule.Periods, period)
	}

	if sj.LateInterest != nil {
		late, err := parseLateInterest(*sj.LateInterest)
		if err != nil {
			return nil, fmt.Errorf("late_interest: %w", err)
		}
		schedule.Late = &late
	}

	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	return schedule, nil
}

// ToJSON converts a Schedule back to its JSON representation.
func (f *ScheduleFactory) ToJSON(s *fincore.Schedule) ScheduleJSON {
	sj := ScheduleJSON{}
	for _, p := range s.Periods {
		pj := PeriodJSON{
			StartDate:   p.Start,
			EndDate:     p.End,
			AnnualRate:  p.AnnualRate,
			Compounding: string(p.Compounding),
			DayCount:    string(p.DayCount),
		}
		if p.Compounding == fincore.Compound {
			pj.Frequency = string(p.Frequency)
		}
		sj.Periods = append(sj.Periods, pj)
	}
	if s.Late != nil {
		lj := &LateInterestJSON{
			AnnualRate:  s.Late.AnnualRate,
			GraceDays:   s.Late.GraceDays,
			Compounding: string(s.Late.Compounding),
			DayCount:    string(s.Late.DayCount),
		}
		if s.Late.Compounding == fincore.Compound {
			lj.Frequency = string(s.Late.Frequency)
		}
		sj.LateInterest = lj
	}
	return sj
}

// MarshalSchedule renders a Schedule as the JSON blob stored on the
// asset record.
func (f *ScheduleFactory) MarshalSchedule(s *fincore.Schedule) (string, error) {
	raw, err := json.Marshal(f.ToJSON(s))
	if err != nil {
		return "", fmt.Errorf("failed to marshal schedule: %w", err)
	}
	return string(raw), nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parsePeriod(pj PeriodJSON) (fincore.RatePeriod, error) {
	compounding, err := parseCompounding(pj.Compounding)
	if err != nil {
		return fincore.RatePeriod{}, err
	}
	frequency, err := parseFrequency(pj.Frequency, compounding)
	if err != nil {
		return fincore.RatePeriod{}, err
	}
	dayCount, err := parseDayCount(pj.DayCount)
	if err != nil {
		return fincore.RatePeriod{}, err
	}
	return fincore.RatePeriod{
		Start:       pj.StartDate,
		End:         pj.EndDate,
		AnnualRate:  pj.AnnualRate,
		Compounding: compounding,
		Frequency:   frequency,
		DayCount:    dayCount,
	}, nil
}

func parseLateInterest(lj LateInterestJSON) (fincore.LateInterest, error) {
	if lj.GraceDays < 0 {
		return fincore.LateInterest{}, fmt.Errorf("grace_period_days must be >= 0, got %d", lj.GraceDays)
	}
	compounding, err := parseCompounding(lj.Compounding)
	if err != nil {
		return fincore.LateInterest{}, err
	}
	frequency, err := parseFrequency(lj.Frequency, compounding)
	if err != nil {
		return fincore.LateInterest{}, err
	}
	dayCount, err := parseDayCount(lj.DayCount)
	if err != nil {
		return fincore.LateInterest{}, err
	}
	return fincore.LateInterest{
		AnnualRate:  lj.AnnualRate,
		GraceDays:   lj.GraceDays,
		Compounding: compounding,
		Frequency:   frequency,
		DayCount:    dayCount,
	}, nil
}

func parseCompounding(s string) (fincore.Compounding, error) {
	switch s {
	case "", string(fincore.Simple):
		return fincore.Simple, nil
	case string(fincore.Compound):
		return fincore.Compound, nil
	default:
		return "", fmt.Errorf("unknown compounding %q", s)
	}
}

// parseFrequency enforces the pairing rule: COMPOUND requires a
// frequency, SIMPLE forbids one.
func parseFrequency(s string, compounding fincore.Compounding) (fincore.Frequency, error) {
	if compounding == fincore.Simple {
		if s != "" {
			return "", fmt.Errorf("compound_frequency %q is not allowed on a SIMPLE period", s)
		}
		return "", nil
	}
	freq := fincore.Frequency(s)
	if !freq.Valid() {
		return "", fmt.Errorf("unknown compound_frequency %q", s)
	}
	return freq, nil
}

func parseDayCount(s string) (fincore.Convention, error) {
	if s == "" {
		return fincore.Act365, nil
	}
	conv := fincore.Convention(s)
	if !conv.Valid() {
		return "", fmt.Errorf("unknown day_count %q", s)
	}
	return conv, nil
}
