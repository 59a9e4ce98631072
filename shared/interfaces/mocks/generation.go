package mocks

import (
	"context"

	"nexttale/shared/interfaces"
	"nexttale/shared/models"

	"github.com/stretchr/testify/mock"
)

// StoryGenerator is a mock type for the StoryGenerator type
type StoryGenerator struct {
	mock.Mock
}

// GenerateStory provides a mock function with given fields: ctx, req
func (_m *StoryGenerator) GenerateStory(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	ret := _m.Called(ctx, req)

	var r0 *models.GenerationResult
	if rf, ok := ret.Get(0).(func(context.Context, models.GenerationRequest) *models.GenerationResult); ok {
		r0 = rf(ctx, req)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.GenerationResult)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, models.GenerationRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewStoryGenerator creates a new instance of StoryGenerator. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewStoryGenerator(t interface {
	mock.TestingT
	Cleanup(func())
}) *StoryGenerator {
	m := &StoryGenerator{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// ImageGenerator is a mock type for the ImageGenerator type
type ImageGenerator struct {
	mock.Mock
}

// GenerateImage provides a mock function with given fields: ctx, req
func (_m *ImageGenerator) GenerateImage(ctx context.Context, req models.ImageRequest) (string, error) {
	ret := _m.Called(ctx, req)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, models.ImageRequest) string); ok {
		r0 = rf(ctx, req)
	} else {
		r0 = ret.String(0)
	}

	return r0, ret.Error(1)
}

// NewImageGenerator creates a new instance of ImageGenerator. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewImageGenerator(t interface {
	mock.TestingT
	Cleanup(func())
}) *ImageGenerator {
	m := &ImageGenerator{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// VideoGenerator is a mock type for the VideoGenerator type
type VideoGenerator struct {
	mock.Mock
}

// GenerateVideo provides a mock function with given fields: ctx, req
func (_m *VideoGenerator) GenerateVideo(ctx context.Context, req models.VideoRequest) (string, error) {
	ret := _m.Called(ctx, req)
	return ret.String(0), ret.Error(1)
}

// NewVideoGenerator creates a new instance of VideoGenerator. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewVideoGenerator(t interface {
	mock.TestingT
	Cleanup(func())
}) *VideoGenerator {
	m := &VideoGenerator{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var (
	_ interfaces.StoryGenerator = (*StoryGenerator)(nil)
	_ interfaces.ImageGenerator = (*ImageGenerator)(nil)
	_ interfaces.VideoGenerator = (*VideoGenerator)(nil)
)
