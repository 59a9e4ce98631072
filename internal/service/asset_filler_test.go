package service_test

import (
	"context"
	"errors"
	"sync"
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

func TestAssetFillerImage(t *testing.T) {
	storyID := uuid.New()
	meta := models.StoryMeta{StoryID: storyID, Title: "Harbor", ArtStyle: "watercolor"}

	t.Run("Back-to-back calls produce one request", func(t *testing.T) {
		nodes := mocks.NewStoryNodeRepository(t)
		stories := mocks.NewStoryRepository(t)
		images := mocks.NewImageGenerator(t)
		nodeID := uuid.New()

		entered := make(chan struct{}, 1)
		release := make(chan struct{})
		images.On("GenerateImage", mock.Anything, mock.MatchedBy(func(req models.ImageRequest) bool {
			return req.StyleReference == "misty harbor at dawn" && req.Story.StoryID == storyID
		})).Run(func(mock.Arguments) {
			entered <- struct{}{}
			<-release
		}).Return("https://cdn/img.png", nil).Once()
		nodes.On("SetImage", mock.Anything, nodeID, "https://cdn/img.png", "Boats rock in the fog.").Return(nil).Once()

		filler := service.NewAssetFiller(nodes, stories, images, nil, nil, zap.NewNop())
		opts := service.ImageOptions{StyleReference: "misty harbor at dawn", Story: meta}

		var (
			mu      sync.Mutex
			settled int
			urls    []string
		)
		opts.OnSettled = func() { mu.Lock(); settled++; mu.Unlock() }
		onSuccess := func(url, _ string) { mu.Lock(); urls = append(urls, url); mu.Unlock() }

		assert.True(t, filler.EnsureImage(context.Background(), nodeID, "Boats rock in the fog.", opts, onSuccess))
		// The first job holds the claim until released.
		<-entered
		assert.True(t, filler.EnsureImage(context.Background(), nodeID, "Boats rock in the fog.", opts, onSuccess))
		// The refused duplicate leaves the running job's flags alone.
		assert.Never(t, func() bool { mu.Lock(); defer mu.Unlock(); return settled > 0 }, 50*time.Millisecond, time.Millisecond)

		close(release)
		filler.Wait()

		assert.Equal(t, []string{"https://cdn/img.png"}, urls)
		assert.Equal(t, 1, settled)
		images.AssertNumberOfCalls(t, "GenerateImage", 1)
	})

	t.Run("First chapter also sets the story cover", func(t *testing.T) {
		nodes := mocks.NewStoryNodeRepository(t)
		stories := mocks.NewStoryRepository(t)
		images := mocks.NewImageGenerator(t)
		nodeID := uuid.New()

		images.On("GenerateImage", mock.Anything, mock.Anything).Return("https://cdn/cover.png", nil).Once()
		nodes.On("SetImage", mock.Anything, nodeID, "https://cdn/cover.png", mock.Anything).Return(nil).Once()
		stories.On("SetCoverImageIfEmpty", mock.Anything, storyID, "https://cdn/cover.png").Return(true, nil).Once()

		filler := service.NewAssetFiller(nodes, stories, images, nil, nil, zap.NewNop())
		filler.EnsureImage(context.Background(), nodeID, "Opening.", service.ImageOptions{Story: meta, SetCover: true}, nil)
		filler.Wait()
	})

	t.Run("Quota refusal writes nothing", func(t *testing.T) {
		nodes := mocks.NewStoryNodeRepository(t)
		stories := mocks.NewStoryRepository(t)
		images := mocks.NewImageGenerator(t)
		inFlight := service.NewMemoryInFlightSet()

		images.On("GenerateImage", mock.Anything, mock.Anything).Return("", nil).Once()

		called := false
		filler := service.NewAssetFiller(nodes, stories, images, nil, inFlight, zap.NewNop())
		filler.EnsureImage(context.Background(), uuid.New(), "Text.", service.ImageOptions{Story: meta, SetCover: true}, func(string, string) { called = true })
		filler.Wait()

		assert.False(t, called)
		assert.Zero(t, inFlight.Len())
		nodes.AssertNotCalled(t, "SetImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Failures release the claim", func(t *testing.T) {
		nodes := mocks.NewStoryNodeRepository(t)
		stories := mocks.NewStoryRepository(t)
		images := mocks.NewImageGenerator(t)
		inFlight := service.NewMemoryInFlightSet()
		nodeID := uuid.New()

		images.On("GenerateImage", mock.Anything, mock.Anything).Return("", errors.New("renderer down")).Once()
		images.On("GenerateImage", mock.Anything, mock.Anything).Return("https://cdn/retry.png", nil).Once()
		nodes.On("SetImage", mock.Anything, nodeID, "https://cdn/retry.png", mock.Anything).Return(nil).Once()

		filler := service.NewAssetFiller(nodes, stories, images, nil, inFlight, zap.NewNop())
		filler.EnsureImage(context.Background(), nodeID, "Text.", service.ImageOptions{Story: meta}, nil)
		filler.Wait()
		assert.Zero(t, inFlight.Len())

		filler.EnsureImage(context.Background(), nodeID, "Text.", service.ImageOptions{Story: meta}, nil)
		filler.Wait()
	})

	t.Run("Claim errors settle without generating", func(t *testing.T) {
		images := mocks.NewImageGenerator(t)
		inFlight := mocks.NewInFlightSet(t)
		nodeID := uuid.New()
		inFlight.On("TryClaim", mock.Anything, "image:"+nodeID.String()).Return(false, errors.New("redis: connection refused")).Once()

		settled := 0
		filler := service.NewAssetFiller(mocks.NewStoryNodeRepository(t), mocks.NewStoryRepository(t), images, nil, inFlight, zap.NewNop())
		filler.EnsureImage(context.Background(), nodeID, "Text.", service.ImageOptions{Story: meta, OnSettled: func() { settled++ }}, nil)
		filler.Wait()

		assert.Equal(t, 1, settled)
		images.AssertNotCalled(t, "GenerateImage", mock.Anything, mock.Anything)
		inFlight.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	})

	t.Run("Disabled generator starts nothing", func(t *testing.T) {
		filler := service.NewAssetFiller(mocks.NewStoryNodeRepository(t), mocks.NewStoryRepository(t), nil, nil, nil, zap.NewNop())

		assert.False(t, filler.EnsureImage(context.Background(), uuid.New(), "Text.", service.ImageOptions{}, nil))
		assert.False(t, filler.EnsureVideo(context.Background(), uuid.New(), "https://cdn/a.png", "p", service.VideoOptions{}, nil))
	})

	t.Run("Requests survive the caller's cancellation", func(t *testing.T) {
		nodes := mocks.NewStoryNodeRepository(t)
		stories := mocks.NewStoryRepository(t)
		images := mocks.NewImageGenerator(t)
		nodeID := uuid.New()

		images.On("GenerateImage", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), mock.Anything).
			Return("https://cdn/late.png", nil).Once()
		nodes.On("SetImage", mock.Anything, nodeID, "https://cdn/late.png", mock.Anything).Return(nil).Once()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		filler := service.NewAssetFiller(nodes, stories, images, nil, nil, zap.NewNop())
		filler.EnsureImage(ctx, nodeID, "Text.", service.ImageOptions{Story: meta}, nil)
		filler.Wait()
	})
}

func TestAssetFillerVideo(t *testing.T) {
	nodes := mocks.NewStoryNodeRepository(t)
	stories := mocks.NewStoryRepository(t)
	videos := mocks.NewVideoGenerator(t)
	nodeID := uuid.New()
	storyID := uuid.New()

	videos.On("GenerateVideo", mock.Anything, models.VideoRequest{
		ImageURL: "https://cdn/a.png",
		Prompt:   "waves",
		Story:    models.StoryMeta{StoryID: storyID},
	}).Return("https://cdn/a.mp4", nil).Once()
	nodes.On("SetVideo", mock.Anything, nodeID, "https://cdn/a.mp4").Return(nil).Once()
	stories.On("SetCoverVideoIfEmpty", mock.Anything, storyID, "https://cdn/a.mp4").Return(false, nil).Once()

	var got string
	filler := service.NewAssetFiller(nodes, stories, nil, videos, nil, zap.NewNop())
	started := filler.EnsureVideo(context.Background(), nodeID, "https://cdn/a.png", "waves",
		service.VideoOptions{Story: models.StoryMeta{StoryID: storyID}, SetCover: true},
		func(url string) { got = url })
	filler.Wait()

	assert.True(t, started)
	assert.Equal(t, "https://cdn/a.mp4", got)
}

func TestMemoryInFlightSet(t *testing.T) {
	set := service.NewMemoryInFlightSet()
	ctx := context.Background()

	ok, err := set.TryClaim(ctx, "image:1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = set.TryClaim(ctx, "image:1")
	assert.False(t, ok)

	ok, _ = set.TryClaim(ctx, "video:1")
	assert.True(t, ok)

	require.NoError(t, set.Release(ctx, "image:1"))
	ok, _ = set.TryClaim(ctx, "image:1")
	assert.True(t, ok)
	assert.Equal(t, 2, set.Len())
}
