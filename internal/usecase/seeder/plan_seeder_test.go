package seeder

import (
	"context"
	"errors"
	"testing"

	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockPlanRepository is a mock implementation of PlanRepository
type MockPlanRepository struct {
	mock.Mock
}

func (m *MockPlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Plan), args.Error(1)
}

func (m *MockPlanRepository) List(ctx context.Context, kindFilter domain.PlanKind) ([]*domain.Plan, error) {
	args := m.Called(ctx, kindFilter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Plan), args.Error(1)
}

func (m *MockPlanRepository) Create(ctx context.Context, plan *domain.Plan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func TestPlanSeeder_Seed_PlansMissing(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockPlanRepository)
	planSeeder := NewPlanSeeder(mockRepo)

	// Every plan is missing; all four get created
	mockRepo.On("GetByID", ctx, mock.Anything).Return(nil, domain.ErrPlanNotFound)
	mockRepo.On("Create", ctx, mock.MatchedBy(func(plan *domain.Plan) bool {
		return plan.Validate() == nil
	})).Return(nil)

	err := planSeeder.Seed(ctx)
	assert.NoError(t, err)

	mockRepo.AssertNumberOfCalls(t, "Create", 4)
}

func TestPlanSeeder_Seed_PlansExist(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockPlanRepository)
	planSeeder := NewPlanSeeder(mockRepo)

	// Every plan already exists; nothing gets created
	mockRepo.On("GetByID", ctx, mock.Anything).Return(&domain.Plan{}, nil)

	err := planSeeder.Seed(ctx)
	assert.NoError(t, err)

	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPlanSeeder_Seed_CreateFails(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockPlanRepository)
	planSeeder := NewPlanSeeder(mockRepo)

	mockRepo.On("GetByID", ctx, mock.Anything).Return(nil, domain.ErrPlanNotFound)
	mockRepo.On("Create", ctx, mock.Anything).Return(errors.New("db down"))

	err := planSeeder.Seed(ctx)
	assert.Error(t, err)
}
