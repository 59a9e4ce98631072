package mocks

import (
	"context"

	"nexttale/shared/interfaces"
	"nexttale/shared/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// StoryChoiceRepository is a mock type for the StoryChoiceRepository type
type StoryChoiceRepository struct {
	mock.Mock
}

// ListByNode provides a mock function with given fields: ctx, nodeID
func (_m *StoryChoiceRepository) ListByNode(ctx context.Context, nodeID uuid.UUID) ([]*models.StoryChoice, error) {
	ret := _m.Called(ctx, nodeID)

	var r0 []*models.StoryChoice
	if rf, ok := ret.Get(0).(func(context.Context, uuid.UUID) []*models.StoryChoice); ok {
		r0 = rf(ctx, nodeID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*models.StoryChoice)
	}

	return r0, ret.Error(1)
}

// GetByID provides a mock function with given fields: ctx, id
func (_m *StoryChoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StoryChoice, error) {
	ret := _m.Called(ctx, id)

	var r0 *models.StoryChoice
	if rf, ok := ret.Get(0).(func(context.Context, uuid.UUID) *models.StoryChoice); ok {
		r0 = rf(ctx, id)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.StoryChoice)
	}

	return r0, ret.Error(1)
}

// Create provides a mock function with given fields: ctx, params
func (_m *StoryChoiceRepository) Create(ctx context.Context, params models.NewChoiceParams) (*models.StoryChoice, error) {
	ret := _m.Called(ctx, params)

	var r0 *models.StoryChoice
	if rf, ok := ret.Get(0).(func(context.Context, models.NewChoiceParams) *models.StoryChoice); ok {
		r0 = rf(ctx, params)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.StoryChoice)
	}

	return r0, ret.Error(1)
}

// UpdateTarget provides a mock function with given fields: ctx, choiceID, toNodeID
func (_m *StoryChoiceRepository) UpdateTarget(ctx context.Context, choiceID uuid.UUID, toNodeID uuid.UUID) error {
	ret := _m.Called(ctx, choiceID, toNodeID)
	return ret.Error(0)
}

// NewStoryChoiceRepository creates a new instance of StoryChoiceRepository. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewStoryChoiceRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *StoryChoiceRepository {
	m := &StoryChoiceRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ interfaces.StoryChoiceRepository = (*StoryChoiceRepository)(nil)
