/*
errors.go - Centralized error types for the accrual engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers wrap these errors with additional context.

ERROR CATEGORIES:
  1. Input errors      - Malformed day-count inputs (convention, range)
  2. Schedule errors   - Missing or inconsistent rate schedules
  3. Frequency errors  - Compounding frequency misuse

PROPAGATION POLICY:
  Every error here represents invalid configuration or invalid input.
  None of them are retryable: the same computation on the same inputs
  reproduces the same error. The only recovery is fixing the input.

USAGE:
  Callers can test with errors.Is:

    if errors.Is(err, fincore.ErrInvalidSchedule) {
        // reject the configuration, surface detail to the operator
    }
*/
package fincore

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidConvention is returned when a day-count convention name is
	// not one of the recognized four.
	ErrInvalidConvention = errors.New("unknown day-count convention")

	// ErrInvalidRange is returned when a year fraction is requested for a
	// reversed date range. Accrual never walks backwards, so this is always
	// a programming error.
	ErrInvalidRange = errors.New("invalid range: end before start")

	// ErrMissingSchedule is returned when valuation is requested for an
	// instrument with no rate schedule configured.
	ErrMissingSchedule = errors.New("missing rate schedule")

	// ErrInvalidSchedule is returned when a schedule fails structural
	// validation (reversed periods, overlaps, compounding misconfiguration).
	ErrInvalidSchedule = errors.New("invalid rate schedule")

	// ErrInvalidFrequency is returned when a compounding frequency is not
	// one of the recognized values.
	ErrInvalidFrequency = errors.New("unknown compounding frequency")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConventionError reports an unrecognized day-count convention name.
type ConventionError struct {
	Convention Convention
}

func (e *ConventionError) Error() string {
	return fmt.Sprintf("unknown day-count convention %q", string(e.Convention))
}

func (e *ConventionError) Unwrap() error { return ErrInvalidConvention }

// RangeError reports a reversed date range.
type RangeError struct {
	Start Date
	End   Date
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid range: end %s before start %s", e.End, e.Start)
}

func (e *RangeError) Unwrap() error { return ErrInvalidRange }

// ScheduleError reports why a schedule failed validation.
type ScheduleError struct {
	Index  int // offending period index, -1 when schedule-wide
	Reason string
}

func (e *ScheduleError) Error() string {
	if e.Index < 0 {
		return "invalid rate schedule: " + e.Reason
	}
	return fmt.Sprintf("invalid rate schedule: period %d: %s", e.Index, e.Reason)
}

func (e *ScheduleError) Unwrap() error { return ErrInvalidSchedule }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConfigError returns true if the error indicates bad instrument
// configuration (as opposed to bad caller input).
func IsConfigError(err error) bool {
	return errors.Is(err, ErrMissingSchedule) ||
		errors.Is(err, ErrInvalidSchedule) ||
		errors.Is(err, ErrInvalidFrequency)
}
