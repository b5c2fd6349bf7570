package interest

import (
	"testing"
	"time"

	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestProjectedReturn(t *testing.T) {
	tests := []struct {
		name           string
		principal      string
		ratePercent    string
		durationMonths int
		want           string
	}{
		{
			name:           "Full year at 10 percent",
			principal:      "1000",
			ratePercent:    "10",
			durationMonths: 12,
			want:           "100",
		},
		{
			name:           "Half year at 10 percent",
			principal:      "1000",
			ratePercent:    "10",
			durationMonths: 6,
			want:           "50",
		},
		{
			name:           "Three months at 8 percent",
			principal:      "50000",
			ratePercent:    "8",
			durationMonths: 3,
			want:           "1000",
		},
		{
			name:           "Zero rate earns nothing",
			principal:      "1000",
			ratePercent:    "0",
			durationMonths: 12,
			want:           "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			principal, _ := decimal.NewFromString(tt.principal)
			rate, _ := decimal.NewFromString(tt.ratePercent)
			want, _ := decimal.NewFromString(tt.want)

			got := ProjectedReturn(principal, rate, tt.durationMonths)
			assert.True(t, got.Equal(want), "want %s, got %s", want, got)
		})
	}
}

func TestMaturityValue(t *testing.T) {
	principal := decimal.NewFromInt(1000)
	rate := decimal.NewFromInt(10)

	got := MaturityValue(principal, rate, 12)
	assert.True(t, got.Equal(decimal.NewFromInt(1100)), "got %s", got)
}

func TestAccruedToDate(t *testing.T) {
	principal := decimal.NewFromInt(1000)
	rate := decimal.NewFromInt(10)

	// Nothing accrues before day one
	assert.True(t, AccruedToDate(principal, rate, 12, 0).IsZero())

	// Past the full term the accrual caps at the projected return
	capped := AccruedToDate(principal, rate, 12, 500)
	assert.True(t, capped.Equal(decimal.NewFromInt(100)), "got %s", capped)

	// Midway through the term accrues roughly half
	half := AccruedToDate(principal, rate, 12, 183)
	full := ProjectedReturn(principal, rate, 12)
	assert.True(t, half.GreaterThan(decimal.Zero))
	assert.True(t, half.LessThan(full))
}

func TestEarlyWithdrawalPenalty(t *testing.T) {
	amount := decimal.NewFromInt(2000)
	fee := decimal.NewFromInt(5)

	got := EarlyWithdrawalPenalty(amount, fee)
	assert.True(t, got.Equal(decimal.NewFromInt(100)), "got %s", got)
}

func TestPenaltyFor(t *testing.T) {
	plan := &domain.Plan{
		ID:                        uuid.New(),
		Name:                      "SafeLock 90",
		Kind:                      domain.PlanKindSavings,
		InterestRatePercent:       decimal.NewFromInt(10),
		DurationMonths:            3,
		MinAmount:                 decimal.NewFromInt(100),
		EarlyWithdrawalFeePercent: decimal.NewFromInt(5),
		MinDurationDays:           90,
	}

	now := time.Now()
	amount := decimal.NewFromInt(1000)

	young := &domain.Position{
		Principal: amount,
		OpenedAt:  now.AddDate(0, 0, -30),
	}
	penalty := PenaltyFor(amount, young, plan, now)
	assert.True(t, penalty.Equal(decimal.NewFromInt(50)), "got %s", penalty)

	mature := &domain.Position{
		Principal: amount,
		OpenedAt:  now.AddDate(0, 0, -120),
	}
	assert.True(t, PenaltyFor(amount, mature, plan, now).IsZero())
}

func TestCurrentValue_NeverBelowPrincipal(t *testing.T) {
	plan := &domain.Plan{
		InterestRatePercent: decimal.NewFromInt(12),
		DurationMonths:      6,
	}
	position := &domain.Position{
		Principal: decimal.NewFromInt(5000),
		OpenedAt:  time.Now(),
	}

	got := CurrentValue(position, plan, time.Now())
	assert.True(t, got.GreaterThanOrEqual(position.Principal))
}
