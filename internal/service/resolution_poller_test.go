package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"nexttale/internal/service"
	"nexttale/shared/interfaces/mocks"
	"nexttale/shared/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWaitForResolution(t *testing.T) {
	placeholder := &models.StoryNode{ID: uuid.New(), NodeKey: "node_p", IsPlaceholder: true}
	resolved := &models.StoryNode{ID: placeholder.ID, NodeKey: "node_p", Content: "Filled by a worker."}

	t.Run("Returns the node once it is resolved", func(t *testing.T) {
		nodes := mocks.NewStoryNodeRepository(t)
		nodes.On("GetByID", mock.Anything, placeholder.ID).Return(placeholder, nil).Twice()
		nodes.On("GetByID", mock.Anything, placeholder.ID).Return(resolved, nil).Once()
		poller := service.NewResolutionPoller(nodes, 5*time.Millisecond, time.Second, zap.NewNop())

		node, ok := poller.WaitForResolution(context.Background(), placeholder.ID)

		require.True(t, ok)
		assert.Equal(t, "Filled by a worker.", node.Content)
		nodes.AssertNumberOfCalls(t, "GetByID", 3)
	})

	t.Run("Timeout is not an error", func(t *testing.T) {
		nodes := mocks.NewStoryNodeRepository(t)
		nodes.On("GetByID", mock.Anything, placeholder.ID).Return(placeholder, nil)
		poller := service.NewResolutionPoller(nodes, 10*time.Millisecond, 40*time.Millisecond, zap.NewNop())

		started := time.Now()
		node, ok := poller.WaitForResolution(context.Background(), placeholder.ID)

		assert.False(t, ok)
		assert.Nil(t, node)
		assert.Less(t, time.Since(started), time.Second)
		assert.LessOrEqual(t, len(nodes.Calls), 4)
	})

	t.Run("Polls once more at the timeout", func(t *testing.T) {
		nodes := mocks.NewStoryNodeRepository(t)
		began := time.Now()
		// The worker finishes after the last full interval but before the timeout.
		nodes.On("GetByID", mock.Anything, placeholder.ID).Return(func(context.Context, uuid.UUID) *models.StoryNode {
			if time.Since(began) >= 90*time.Millisecond {
				return resolved
			}
			return placeholder
		}, nil)
		poller := service.NewResolutionPoller(nodes, 40*time.Millisecond, 100*time.Millisecond, zap.NewNop())

		node, ok := poller.WaitForResolution(context.Background(), placeholder.ID)

		require.True(t, ok)
		assert.Equal(t, resolved.ID, node.ID)
		assert.GreaterOrEqual(t, time.Since(began), 90*time.Millisecond)
	})

	t.Run("First read waits one interval", func(t *testing.T) {
		nodes := mocks.NewStoryNodeRepository(t)
		nodes.On("GetByID", mock.Anything, placeholder.ID).Return(resolved, nil).Once()
		poller := service.NewResolutionPoller(nodes, 20*time.Millisecond, time.Second, zap.NewNop())

		started := time.Now()
		_, ok := poller.WaitForResolution(context.Background(), placeholder.ID)

		require.True(t, ok)
		assert.GreaterOrEqual(t, time.Since(started), 20*time.Millisecond)
	})

	t.Run("Fetch errors do not stop polling", func(t *testing.T) {
		nodes := mocks.NewStoryNodeRepository(t)
		nodes.On("GetByID", mock.Anything, placeholder.ID).Return(nil, errors.New("connection refused")).Once()
		nodes.On("GetByID", mock.Anything, placeholder.ID).Return(resolved, nil).Once()
		poller := service.NewResolutionPoller(nodes, 5*time.Millisecond, time.Second, zap.NewNop())

		node, ok := poller.WaitForResolution(context.Background(), placeholder.ID)

		require.True(t, ok)
		assert.Equal(t, resolved.ID, node.ID)
	})

	t.Run("Caller cancellation does not abort the wait", func(t *testing.T) {
		nodes := mocks.NewStoryNodeRepository(t)
		nodes.On("GetByID", mock.Anything, placeholder.ID).Return(placeholder, nil).Once()
		nodes.On("GetByID", mock.Anything, placeholder.ID).Return(resolved, nil).Once()
		poller := service.NewResolutionPoller(nodes, 5*time.Millisecond, time.Second, zap.NewNop())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		node, ok := poller.WaitForResolution(ctx, placeholder.ID)

		require.True(t, ok)
		assert.Equal(t, resolved.ID, node.ID)
	})
}
