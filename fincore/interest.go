/*
interest.go - Simple and compound interest

PURPOSE:
  Computes the interest earned (not principal+interest) on a principal over
  a year fraction, under simple or compound accrual.

FORMULAS:
  Simple:      I = P * r * t
  Compound:    I = P * (1 + r/n)^(n*t) - P   (n periods per year)
  Continuous:  I = P * e^(r*t) - P

PRECISION:
  Monetary arithmetic stays in decimal.Decimal. Integer exponents are
  raised in exact decimal, so one-period identities hold exactly
  (compound at ANNUAL for one year equals simple interest to the digit).
  Fractional exponents and the continuous case go through float64, which
  is where exact decimal powers are not representable anyway.

EDGE BEHAVIOR:
  Zero principal, zero rate, or zero time yields exactly decimal.Zero on
  every path - no floating noise.
*/
package fincore

import (
	"math"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COMPOUNDING
// =============================================================================

type Compounding string

const (
	Simple   Compounding = "SIMPLE"
	Compound Compounding = "COMPOUND"
)

// Frequency is the number of compounding periods per year, or continuous.
// Required for COMPOUND accrual, forbidden for SIMPLE (enforced by
// Schedule.Validate, not here).
type Frequency string

const (
	Daily      Frequency = "DAILY"
	Monthly    Frequency = "MONTHLY"
	Quarterly  Frequency = "QUARTERLY"
	Semiannual Frequency = "SEMIANNUAL"
	Annual     Frequency = "ANNUAL"
	Continuous Frequency = "CONTINUOUS"
)

// PeriodsPerYear returns the number of compounding periods for a periodic
// frequency, or 0 for CONTINUOUS and unrecognized values.
func (f Frequency) PeriodsPerYear() int {
	switch f {
	case Daily:
		return 365
	case Monthly:
		return 12
	case Quarterly:
		return 4
	case Semiannual:
		return 2
	case Annual:
		return 1
	}
	return 0
}

// Valid reports whether f is one of the recognized frequencies.
func (f Frequency) Valid() bool {
	return f == Continuous || f.PeriodsPerYear() > 0
}

// =============================================================================
// INTEREST
// =============================================================================

// SimpleInterest returns principal * annualRate * timeFraction.
func SimpleInterest(principal, annualRate, timeFraction decimal.Decimal) decimal.Decimal {
	if principal.IsZero() || annualRate.IsZero() || timeFraction.IsZero() {
		return decimal.Zero
	}
	return principal.Mul(annualRate).Mul(timeFraction)
}

// CompoundInterest returns the interest earned on principal at annualRate
// over timeFraction years, compounded at the given frequency.
func CompoundInterest(principal, annualRate, timeFraction decimal.Decimal, freq Frequency) (decimal.Decimal, error) {
	if !freq.Valid() {
		return decimal.Zero, ErrInvalidFrequency
	}
	if principal.IsZero() || annualRate.IsZero() || timeFraction.IsZero() {
		return decimal.Zero, nil
	}

	if freq == Continuous {
		growth := math.Exp(annualRate.Mul(timeFraction).InexactFloat64())
		return principal.Mul(decimal.NewFromFloat(growth)).Sub(principal), nil
	}

	n := decimal.NewFromInt(int64(freq.PeriodsPerYear()))
	base := decimal.NewFromInt(1).Add(annualRate.Div(n))
	exponent := n.Mul(timeFraction)

	var grown decimal.Decimal
	if exponent.IsInteger() && exponent.Sign() > 0 && exponent.IntPart() <= math.MaxInt32 {
		pow, err := base.PowInt32(int32(exponent.IntPart()))
		if err != nil {
			return decimal.Zero, err
		}
		grown = principal.Mul(pow)
	} else {
		pow := math.Pow(base.InexactFloat64(), exponent.InexactFloat64())
		grown = principal.Mul(decimal.NewFromFloat(pow))
	}
	return grown.Sub(principal), nil
}
