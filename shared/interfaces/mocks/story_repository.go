package mocks

import (
	"context"

	"nexttale/shared/interfaces"
	"nexttale/shared/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// StoryRepository is a mock type for the StoryRepository type
type StoryRepository struct {
	mock.Mock
}

// GetByID provides a mock function with given fields: ctx, id
func (_m *StoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	ret := _m.Called(ctx, id)

	var r0 *models.Story
	if rf, ok := ret.Get(0).(func(context.Context, uuid.UUID) *models.Story); ok {
		r0 = rf(ctx, id)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Story)
	}

	return r0, ret.Error(1)
}

// UpdateGenerationStatus provides a mock function with given fields: ctx, id, status, progress
func (_m *StoryRepository) UpdateGenerationStatus(ctx context.Context, id uuid.UUID, status models.GenerationStatus, progress int) error {
	ret := _m.Called(ctx, id, status, progress)
	return ret.Error(0)
}

// SetCoverImageIfEmpty provides a mock function with given fields: ctx, id, imageURL
func (_m *StoryRepository) SetCoverImageIfEmpty(ctx context.Context, id uuid.UUID, imageURL string) (bool, error) {
	ret := _m.Called(ctx, id, imageURL)
	return ret.Bool(0), ret.Error(1)
}

// SetCoverVideoIfEmpty provides a mock function with given fields: ctx, id, videoURL
func (_m *StoryRepository) SetCoverVideoIfEmpty(ctx context.Context, id uuid.UUID, videoURL string) (bool, error) {
	ret := _m.Called(ctx, id, videoURL)
	return ret.Bool(0), ret.Error(1)
}

// NewStoryRepository creates a new instance of StoryRepository. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewStoryRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *StoryRepository {
	m := &StoryRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ interfaces.StoryRepository = (*StoryRepository)(nil)
