package mocks

import (
	"context"

	"nexttale/shared/interfaces"
	"nexttale/shared/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// ReaderProgressRepository is a mock type for the ReaderProgressRepository type
type ReaderProgressRepository struct {
	mock.Mock
}

// Get provides a mock function with given fields: ctx, userID, storyID
func (_m *ReaderProgressRepository) Get(ctx context.Context, userID uuid.UUID, storyID uuid.UUID) (*models.ReaderProgress, error) {
	ret := _m.Called(ctx, userID, storyID)

	var r0 *models.ReaderProgress
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.ReaderProgress)
	}

	return r0, ret.Error(1)
}

// Save provides a mock function with given fields: ctx, progress
func (_m *ReaderProgressRepository) Save(ctx context.Context, progress *models.ReaderProgress) error {
	ret := _m.Called(ctx, progress)
	return ret.Error(0)
}

// AddReading provides a mock function with given fields: ctx, userID, storyID, chapters, points
func (_m *ReaderProgressRepository) AddReading(ctx context.Context, userID uuid.UUID, storyID uuid.UUID, chapters int, points int) error {
	ret := _m.Called(ctx, userID, storyID, chapters, points)
	return ret.Error(0)
}

// NewReaderProgressRepository creates a new instance of ReaderProgressRepository. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewReaderProgressRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *ReaderProgressRepository {
	m := &ReaderProgressRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ interfaces.ReaderProgressRepository = (*ReaderProgressRepository)(nil)
