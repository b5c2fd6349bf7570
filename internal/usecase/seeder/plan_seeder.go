package seeder

import (
	"context"

	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fixed UUIDs for the default plan catalog. Plans are reference data; a
// fresh deployment seeds these so the product works out of the box, and an
// administrative process can add more later.
var (
	PLAN_SAFELOCK_90    = uuid.MustParse("00000000-0000-0000-0000-000000000101")
	PLAN_SAFELOCK_180   = uuid.MustParse("00000000-0000-0000-0000-000000000102")
	PLAN_GROWTH_FUND_12 = uuid.MustParse("00000000-0000-0000-0000-000000000201")
	PLAN_FIXED_YIELD_6  = uuid.MustParse("00000000-0000-0000-0000-000000000202")
)

// PlanSeeder ensures the default plan catalog exists
type PlanSeeder struct {
	repo domain.PlanRepository
}

// NewPlanSeeder creates a new PlanSeeder instance
func NewPlanSeeder(repo domain.PlanRepository) *PlanSeeder {
	return &PlanSeeder{
		repo: repo,
	}
}

// Seed ensures all default plans exist in the database
// If a plan doesn't exist, it creates it
func (s *PlanSeeder) Seed(ctx context.Context) error {
	maxSafelock := decimal.NewFromInt(5000000)

	defaultPlans := []*domain.Plan{
		{
			ID:                        PLAN_SAFELOCK_90,
			Name:                      "SafeLock 90",
			Kind:                      domain.PlanKindSavings,
			InterestRatePercent:       decimal.NewFromInt(8),
			DurationMonths:            3,
			MinAmount:                 decimal.NewFromInt(100),
			MaxAmount:                 &maxSafelock,
			EarlyWithdrawalFeePercent: decimal.NewFromInt(5),
			MinDurationDays:           90,
		},
		{
			ID:                        PLAN_SAFELOCK_180,
			Name:                      "SafeLock 180",
			Kind:                      domain.PlanKindSavings,
			InterestRatePercent:       decimal.NewFromInt(10),
			DurationMonths:            6,
			MinAmount:                 decimal.NewFromInt(100),
			MaxAmount:                 &maxSafelock,
			EarlyWithdrawalFeePercent: decimal.NewFromInt(5),
			MinDurationDays:           180,
		},
		{
			ID:                  PLAN_GROWTH_FUND_12,
			Name:                "Growth Fund 12",
			Kind:                domain.PlanKindInvestment,
			InterestRatePercent: decimal.NewFromInt(14),
			DurationMonths:      12,
			MinAmount:           decimal.NewFromInt(1000),
			MinDurationDays:     365,
		},
		{
			ID:                  PLAN_FIXED_YIELD_6,
			Name:                "Fixed Yield 6",
			Kind:                domain.PlanKindInvestment,
			InterestRatePercent: decimal.NewFromInt(11),
			DurationMonths:      6,
			MinAmount:           decimal.NewFromInt(500),
			MinDurationDays:     180,
		},
	}

	for _, plan := range defaultPlans {
		// Try to get the plan by ID
		_, err := s.repo.GetByID(ctx, plan.ID)
		if err == nil {
			continue
		}
		// Plan doesn't exist, create it
		if err := plan.Validate(); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, plan); err != nil {
			return err
		}
	}

	return nil
}
