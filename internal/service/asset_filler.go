package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"nexttale/shared/interfaces"
	"nexttale/shared/models"
	"nexttale/shared/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultAssetTimeout  = 3 * time.Minute
	maxImagePromptLength = 600
)

// ImageOptions carries style and cover settings for one image job.
type ImageOptions struct {
	StyleReference string
	ArtStyle       string
	Story          models.StoryMeta
	// SetCover also writes the image as the story cover if it has none.
	SetCover bool
	// OnSettled runs after the job finishes, whatever the outcome. It is
	// skipped when another job for the node already holds the claim.
	OnSettled func()
}

// VideoOptions carries the settings for one video job.
type VideoOptions struct {
	Story     models.StoryMeta
	SetCover  bool
	OnSettled func()
}

// AssetFiller attaches images and videos to nodes in the background.
type AssetFiller struct {
	nodeRepo  interfaces.StoryNodeRepository
	storyRepo interfaces.StoryRepository
	images    interfaces.ImageGenerator
	videos    interfaces.VideoGenerator
	inFlight  interfaces.InFlightSet
	timeout   time.Duration
	logger    *zap.Logger

	wg sync.WaitGroup
}

// NewAssetFiller creates a filler. images and videos may be nil to disable that kind.
func NewAssetFiller(
	nodeRepo interfaces.StoryNodeRepository,
	storyRepo interfaces.StoryRepository,
	images interfaces.ImageGenerator,
	videos interfaces.VideoGenerator,
	inFlight interfaces.InFlightSet,
	logger *zap.Logger,
) *AssetFiller {
	if inFlight == nil {
		inFlight = NewMemoryInFlightSet()
	}
	return &AssetFiller{
		nodeRepo:  nodeRepo,
		storyRepo: storyRepo,
		images:    images,
		videos:    videos,
		inFlight:  inFlight,
		timeout:   defaultAssetTimeout,
		logger:    logger.Named("AssetFiller"),
	}
}

func (f *AssetFiller) ImagesEnabled() bool { return f.images != nil }
func (f *AssetFiller) VideosEnabled() bool { return f.videos != nil }

// EnsureImage starts image generation for a node and returns immediately.
// It returns false when images are disabled. Concurrent calls for the same node
// produce a single generator request.
func (f *AssetFiller) EnsureImage(ctx context.Context, nodeID uuid.UUID, content string, opts ImageOptions, onSuccess func(imageURL, prompt string)) bool {
	if f.images == nil {
		return false
	}
	prompt := ImagePrompt(content)
	f.run(ctx, models.AssetImage, nodeID, opts.OnSettled, func(jobCtx context.Context) (string, error) {
		url, err := f.images.GenerateImage(jobCtx, models.ImageRequest{
			Prompt:         prompt,
			StyleReference: opts.StyleReference,
			ArtStyle:       opts.ArtStyle,
			Story:          opts.Story,
		})
		if err != nil || url == "" {
			return url, err
		}
		if err := f.nodeRepo.SetImage(jobCtx, nodeID, url, prompt); err != nil {
			f.logger.Warn("Failed to store node image", zap.Stringer("nodeID", nodeID), zap.Error(err))
		}
		if opts.SetCover {
			if _, err := f.storyRepo.SetCoverImageIfEmpty(jobCtx, opts.Story.StoryID, url); err != nil {
				f.logger.Warn("Failed to store story cover image", zap.Stringer("storyID", opts.Story.StoryID), zap.Error(err))
			}
		}
		if onSuccess != nil {
			onSuccess(url, prompt)
		}
		return url, nil
	})
	return true
}

// EnsureVideo starts video generation from an image and returns immediately.
func (f *AssetFiller) EnsureVideo(ctx context.Context, nodeID uuid.UUID, imageURL, prompt string, opts VideoOptions, onSuccess func(videoURL string)) bool {
	if f.videos == nil || imageURL == "" {
		return false
	}
	f.run(ctx, models.AssetVideo, nodeID, opts.OnSettled, func(jobCtx context.Context) (string, error) {
		url, err := f.videos.GenerateVideo(jobCtx, models.VideoRequest{
			ImageURL: imageURL,
			Prompt:   prompt,
			Story:    opts.Story,
		})
		if err != nil || url == "" {
			return url, err
		}
		if err := f.nodeRepo.SetVideo(jobCtx, nodeID, url); err != nil {
			f.logger.Warn("Failed to store node video", zap.Stringer("nodeID", nodeID), zap.Error(err))
		}
		if opts.SetCover {
			if _, err := f.storyRepo.SetCoverVideoIfEmpty(jobCtx, opts.Story.StoryID, url); err != nil {
				f.logger.Warn("Failed to store story cover video", zap.Stringer("storyID", opts.Story.StoryID), zap.Error(err))
			}
		}
		if onSuccess != nil {
			onSuccess(url)
		}
		return url, nil
	})
	return true
}

// Wait blocks until every started job has finished.
func (f *AssetFiller) Wait() {
	f.wg.Wait()
}

func (f *AssetFiller) run(ctx context.Context, kind models.AssetKind, nodeID uuid.UUID, onSettled func(), job func(context.Context) (string, error)) {
	key := string(kind) + ":" + nodeID.String()
	log := f.logger.With(zap.String("kind", string(kind)), zap.Stringer("nodeID", nodeID))

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		// The reader's request may be long gone; keep its values but not its cancellation.
		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
		defer cancel()

		claimed, err := f.inFlight.TryClaim(jobCtx, key)
		if err != nil {
			log.Warn("Failed to claim asset job", zap.Error(err))
			assetJobsTotal.WithLabelValues(string(kind), "error").Inc()
			if onSettled != nil {
				onSettled()
			}
			return
		}
		// The job holding the claim settles the flags.
		if !claimed {
			log.Debug("Asset job already in flight")
			assetJobsTotal.WithLabelValues(string(kind), "duplicate").Inc()
			return
		}
		if onSettled != nil {
			defer onSettled()
		}
		defer func() {
			if err := f.inFlight.Release(context.WithoutCancel(jobCtx), key); err != nil {
				log.Warn("Failed to release asset job", zap.Error(err))
			}
		}()

		started := time.Now()
		url, err := job(jobCtx)
		switch {
		case err != nil:
			log.Warn("Asset generation failed", zap.Duration("took", time.Since(started)), zap.Error(err))
			assetJobsTotal.WithLabelValues(string(kind), "error").Inc()
		case url == "":
			log.Info("Asset generation returned no asset", zap.Duration("took", time.Since(started)))
			assetJobsTotal.WithLabelValues(string(kind), "empty").Inc()
		default:
			log.Info("Asset attached", zap.String("url", url), zap.Duration("took", time.Since(started)))
			assetJobsTotal.WithLabelValues(string(kind), "success").Inc()
		}
	}()
}

// ImagePrompt derives an illustration prompt from chapter text.
func ImagePrompt(content string) string {
	return utils.StringShort(strings.Join(strings.Fields(content), " "), maxImagePromptLength)
}
