package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"nexttale/shared/interfaces/mocks"
	"nexttale/shared/messaging"
	"nexttale/shared/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) ResolvePlaceholder(ctx context.Context, story *models.Story, choice *models.StoryChoice, placeholder *models.StoryNode, previousContent string) (*models.StoryNode, []*models.StoryChoice, error) {
	ret := m.Called(ctx, story, choice, placeholder, previousContent)
	var node *models.StoryNode
	if ret.Get(0) != nil {
		node = ret.Get(0).(*models.StoryNode)
	}
	return node, nil, ret.Error(1)
}

type handlerFixture struct {
	stories  *mocks.StoryRepository
	nodes    *mocks.StoryNodeRepository
	choices  *mocks.StoryChoiceRepository
	inFlight *mocks.InFlightSet
	resolver *mockResolver
	handler  *TaskHandler
	waits    []time.Duration

	userID      uuid.UUID
	story       *models.Story
	parent      *models.StoryNode
	choice      *models.StoryChoice
	placeholder *models.StoryNode
}

func newHandlerFixture(t *testing.T, maxAttempts int) *handlerFixture {
	f := &handlerFixture{
		stories:  mocks.NewStoryRepository(t),
		nodes:    mocks.NewStoryNodeRepository(t),
		choices:  mocks.NewStoryChoiceRepository(t),
		inFlight: mocks.NewInFlightSet(t),
		resolver: &mockResolver{},
		userID:   uuid.New(),
	}
	t.Cleanup(func() { f.resolver.AssertExpectations(t) })
	f.story = &models.Story{ID: uuid.New(), Title: "Salt Roads", StoryContext: "Caravans cross a dry sea."}
	f.parent = &models.StoryNode{ID: uuid.New(), StoryID: f.story.ID, NodeKey: "start", Content: "The caravan halts."}
	f.placeholder = &models.StoryNode{ID: uuid.New(), StoryID: f.story.ID, NodeKey: "node_a", IsPlaceholder: true}
	f.choice = &models.StoryChoice{ID: uuid.New(), FromNodeID: f.parent.ID, ToNodeID: f.placeholder.ID, ChoiceText: "Scout ahead"}

	f.handler = NewTaskHandler(f.stories, f.nodes, f.choices, f.resolver, f.inFlight,
		Config{MaxAttempts: maxAttempts, BaseRetryDelay: 100 * time.Millisecond}, zap.NewNop())
	f.handler.sleep = func(_ context.Context, d time.Duration) error {
		f.waits = append(f.waits, d)
		return nil
	}
	return f
}

func (f *handlerFixture) payload() messaging.PregenerationTaskPayload {
	return messaging.PregenerationTaskPayload{
		TaskID:   "task-1",
		UserID:   f.userID.String(),
		StoryID:  f.story.ID.String(),
		ChoiceID: f.choice.ID.String(),
		NodeID:   f.placeholder.ID.String(),
	}
}

func (f *handlerFixture) expectClaim() {
	key := claimPrefix + f.placeholder.ID.String()
	f.inFlight.On("TryClaim", mock.Anything, key).Return(true, nil).Once()
	f.inFlight.On("Release", mock.Anything, key).Return(nil).Once()
}

func (f *handlerFixture) expectLoads() {
	f.nodes.On("GetByID", mock.Anything, f.placeholder.ID).Return(f.placeholder, nil).Once()
	f.stories.On("GetByID", mock.Anything, f.story.ID).Return(f.story, nil).Once()
	f.choices.On("GetByID", mock.Anything, f.choice.ID).Return(f.choice, nil).Once()
	f.nodes.On("GetByID", mock.Anything, f.parent.ID).Return(f.parent, nil).Once()
}

func TestTaskHandlerHandle(t *testing.T) {
	t.Run("Resolves the placeholder as the reader", func(t *testing.T) {
		f := newHandlerFixture(t, 3)
		f.expectClaim()
		f.expectLoads()
		resolved := *f.placeholder
		resolved.IsPlaceholder = false
		resolved.Content = "Dunes stretch to the horizon."
		f.resolver.On("ResolvePlaceholder",
			mock.MatchedBy(func(ctx context.Context) bool {
				id, ok := models.GetUserIDFromContext(ctx)
				return ok && id == f.userID
			}),
			f.story, f.choice, f.placeholder, "The caravan halts.",
		).Return(&resolved, nil).Once()

		require.NoError(t, f.handler.Handle(context.Background(), f.payload()))
		assert.Empty(t, f.waits)
	})

	t.Run("Retries with growing backoff", func(t *testing.T) {
		f := newHandlerFixture(t, 3)
		f.expectClaim()
		f.expectLoads()
		f.resolver.On("ResolvePlaceholder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, models.ErrGenerationTimeout).Twice()
		f.resolver.On("ResolvePlaceholder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(f.placeholder, nil).Once()

		require.NoError(t, f.handler.Handle(context.Background(), f.payload()))
		require.Len(t, f.waits, 2)
		assert.InDelta(t, float64(100*time.Millisecond), float64(f.waits[0]), float64(10*time.Millisecond))
		assert.InDelta(t, float64(200*time.Millisecond), float64(f.waits[1]), float64(20*time.Millisecond))
	})

	t.Run("Gives up after the last attempt", func(t *testing.T) {
		f := newHandlerFixture(t, 2)
		f.expectClaim()
		f.expectLoads()
		f.resolver.On("ResolvePlaceholder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, models.ErrGenerationFailed).Twice()

		err := f.handler.Handle(context.Background(), f.payload())

		assert.ErrorIs(t, err, models.ErrGenerationFailed)
		assert.Len(t, f.waits, 1)
	})

	t.Run("Permanent errors are not retried", func(t *testing.T) {
		f := newHandlerFixture(t, 3)
		f.expectClaim()
		f.expectLoads()
		f.resolver.On("ResolvePlaceholder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, models.ErrNotAuthenticated).Once()

		err := f.handler.Handle(context.Background(), f.payload())

		assert.ErrorIs(t, err, models.ErrNotAuthenticated)
		assert.Empty(t, f.waits)
	})

	t.Run("Claimed node is skipped", func(t *testing.T) {
		f := newHandlerFixture(t, 3)
		f.inFlight.On("TryClaim", mock.Anything, claimPrefix+f.placeholder.ID.String()).Return(false, nil).Once()

		require.NoError(t, f.handler.Handle(context.Background(), f.payload()))
		f.nodes.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("Resolved node is skipped", func(t *testing.T) {
		f := newHandlerFixture(t, 3)
		f.expectClaim()
		done := *f.placeholder
		done.IsPlaceholder = false
		done.Content = "Already written."
		f.nodes.On("GetByID", mock.Anything, f.placeholder.ID).Return(&done, nil).Once()

		require.NoError(t, f.handler.Handle(context.Background(), f.payload()))
	})

	t.Run("Deleted node is skipped", func(t *testing.T) {
		f := newHandlerFixture(t, 3)
		f.expectClaim()
		f.nodes.On("GetByID", mock.Anything, f.placeholder.ID).Return(nil, models.ErrNotFound).Once()

		require.NoError(t, f.handler.Handle(context.Background(), f.payload()))
	})

	t.Run("Redis outage does not block generation", func(t *testing.T) {
		f := newHandlerFixture(t, 1)
		f.inFlight.On("TryClaim", mock.Anything, mock.Anything).Return(false, errors.New("dial tcp: connection refused")).Once()
		f.expectLoads()
		f.resolver.On("ResolvePlaceholder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(f.placeholder, nil).Once()

		require.NoError(t, f.handler.Handle(context.Background(), f.payload()))
		f.inFlight.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	})

	t.Run("Malformed ids are rejected", func(t *testing.T) {
		f := newHandlerFixture(t, 3)
		p := f.payload()
		p.NodeID = "not-a-uuid"

		err := f.handler.Handle(context.Background(), p)

		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("Cancellation stops retrying", func(t *testing.T) {
		f := newHandlerFixture(t, 3)
		f.expectClaim()
		f.expectLoads()
		f.handler.sleep = sleepCtx
		f.resolver.On("ResolvePlaceholder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, models.ErrGenerationTimeout).Once()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := f.handler.Handle(ctx, f.payload())

		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, models.ErrGenerationTimeout)
	})
}

func TestBackoff(t *testing.T) {
	base := time.Second
	for attempt := 1; attempt <= 5; attempt++ {
		want := float64(base) * float64(uint(1)<<(attempt-1))
		got := backoff(base, attempt)
		assert.GreaterOrEqual(t, got, base)
		assert.InDelta(t, want, float64(got), want*0.1+1)
	}
}
