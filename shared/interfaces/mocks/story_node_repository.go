package mocks

import (
	"context"

	"nexttale/shared/interfaces"
	"nexttale/shared/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// StoryNodeRepository is a mock type for the StoryNodeRepository type
type StoryNodeRepository struct {
	mock.Mock
}

// GetByID provides a mock function with given fields: ctx, id
func (_m *StoryNodeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StoryNode, error) {
	ret := _m.Called(ctx, id)

	var r0 *models.StoryNode
	if rf, ok := ret.Get(0).(func(context.Context, uuid.UUID) *models.StoryNode); ok {
		r0 = rf(ctx, id)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.StoryNode)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, uuid.UUID) error); ok {
		r1 = rf(ctx, id)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetByKey provides a mock function with given fields: ctx, storyID, nodeKey
func (_m *StoryNodeRepository) GetByKey(ctx context.Context, storyID uuid.UUID, nodeKey string) (*models.StoryNode, error) {
	ret := _m.Called(ctx, storyID, nodeKey)

	var r0 *models.StoryNode
	if rf, ok := ret.Get(0).(func(context.Context, uuid.UUID, string) *models.StoryNode); ok {
		r0 = rf(ctx, storyID, nodeKey)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.StoryNode)
	}

	return r0, ret.Error(1)
}

// Create provides a mock function with given fields: ctx, params
func (_m *StoryNodeRepository) Create(ctx context.Context, params models.NewNodeParams) (*models.StoryNode, error) {
	ret := _m.Called(ctx, params)

	var r0 *models.StoryNode
	if rf, ok := ret.Get(0).(func(context.Context, models.NewNodeParams) *models.StoryNode); ok {
		r0 = rf(ctx, params)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.StoryNode)
	}

	return r0, ret.Error(1)
}

// Resolve provides a mock function with given fields: ctx, id, res
func (_m *StoryNodeRepository) Resolve(ctx context.Context, id uuid.UUID, res models.NodeResolution) (bool, error) {
	ret := _m.Called(ctx, id, res)
	return ret.Bool(0), ret.Error(1)
}

// SetParentChoice provides a mock function with given fields: ctx, nodeID, choiceID
func (_m *StoryNodeRepository) SetParentChoice(ctx context.Context, nodeID uuid.UUID, choiceID uuid.UUID) error {
	ret := _m.Called(ctx, nodeID, choiceID)
	return ret.Error(0)
}

// SetImage provides a mock function with given fields: ctx, id, imageURL, imagePrompt
func (_m *StoryNodeRepository) SetImage(ctx context.Context, id uuid.UUID, imageURL string, imagePrompt string) error {
	ret := _m.Called(ctx, id, imageURL, imagePrompt)
	return ret.Error(0)
}

// SetVideo provides a mock function with given fields: ctx, id, videoURL
func (_m *StoryNodeRepository) SetVideo(ctx context.Context, id uuid.UUID, videoURL string) error {
	ret := _m.Called(ctx, id, videoURL)
	return ret.Error(0)
}

// NewStoryNodeRepository creates a new instance of StoryNodeRepository. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewStoryNodeRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *StoryNodeRepository {
	m := &StoryNodeRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ interfaces.StoryNodeRepository = (*StoryNodeRepository)(nil)
