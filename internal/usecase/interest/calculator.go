package interest

import (
	"time"

	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// Pure calculation functions for returns and penalties. Nothing here
// touches the ledger, so callers may use them freely for what-if previews.

var (
	hundred      = decimal.NewFromInt(100)
	monthsInYear = decimal.NewFromInt(12)
	daysInYear   = decimal.NewFromInt(365)
)

// ProjectedReturn computes the simple interest earned over the full plan
// duration: principal * (rate/100) * (months/12)
// The same formula serves investment returns and savings APY projections
func ProjectedReturn(principal, ratePercent decimal.Decimal, durationMonths int) decimal.Decimal {
	months := decimal.NewFromInt(int64(durationMonths))
	return principal.Mul(ratePercent).Div(hundred).Mul(months).Div(monthsInYear)
}

// MaturityValue is the principal plus its projected return at term end
func MaturityValue(principal, ratePercent decimal.Decimal, durationMonths int) decimal.Decimal {
	return principal.Add(ProjectedReturn(principal, ratePercent, durationMonths))
}

// AccruedToDate computes linear accrual for the days elapsed so far, capped
// at the full projected return once the term has run its course.
// Position.current_value is derived from this lazily rather than being
// stored and continuously updated.
func AccruedToDate(principal, ratePercent decimal.Decimal, durationMonths, elapsedDays int) decimal.Decimal {
	if elapsedDays <= 0 {
		return decimal.Zero
	}
	full := ProjectedReturn(principal, ratePercent, durationMonths)
	termDays := decimal.NewFromInt(int64(durationMonths)).Mul(daysInYear).Div(monthsInYear)
	elapsed := decimal.NewFromInt(int64(elapsedDays))
	if elapsed.GreaterThanOrEqual(termDays) {
		return full
	}
	return full.Mul(elapsed).Div(termDays)
}

// CurrentValue computes a position's worth against its plan terms at the
// given time: principal plus interest accrued to date
func CurrentValue(position *domain.Position, plan *domain.Plan, now time.Time) decimal.Decimal {
	accrued := AccruedToDate(position.Principal, plan.InterestRatePercent, plan.DurationMonths, position.ElapsedDays(now))
	return position.Principal.Add(accrued)
}

// EarlyWithdrawalPenalty computes the fee charged on a savings withdrawal:
// amount * feePercent / 100
// Callers apply it only when the position is younger than the plan's
// minimum holding period
func EarlyWithdrawalPenalty(amount, feePercent decimal.Decimal) decimal.Decimal {
	return amount.Mul(feePercent).Div(hundred)
}

// PenaltyFor returns the penalty owed for withdrawing amount from the given
// position now, or zero when the minimum holding period has passed
func PenaltyFor(amount decimal.Decimal, position *domain.Position, plan *domain.Plan, now time.Time) decimal.Decimal {
	if position.ElapsedDays(now) >= plan.MinDurationDays {
		return decimal.Zero
	}
	return EarlyWithdrawalPenalty(amount, plan.EarlyWithdrawalFeePercent)
}
