package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"nexttale/internal/service"
	"nexttale/shared/interfaces"
	"nexttale/shared/messaging"
	"nexttale/shared/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const claimPrefix = "pregen:"

// Config controls retries of one task.
type Config struct {
	MaxAttempts    int
	BaseRetryDelay time.Duration
}

// Resolver resolves a placeholder; *service.GenerationOrchestrator implements it.
type Resolver interface {
	ResolvePlaceholder(ctx context.Context, story *models.Story, choice *models.StoryChoice, placeholder *models.StoryNode, previousContent string) (*models.StoryNode, []*models.StoryChoice, error)
}

var _ Resolver = (*service.GenerationOrchestrator)(nil)

// TaskHandler resolves placeholders ahead of readers.
type TaskHandler struct {
	storyRepo  interfaces.StoryRepository
	nodeRepo   interfaces.StoryNodeRepository
	choiceRepo interfaces.StoryChoiceRepository
	resolver   Resolver
	inFlight   interfaces.InFlightSet
	cfg        Config
	logger     *zap.Logger

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTaskHandler creates a handler. inFlight is shared with the API servers'
// asset filler through Redis.
func NewTaskHandler(
	storyRepo interfaces.StoryRepository,
	nodeRepo interfaces.StoryNodeRepository,
	choiceRepo interfaces.StoryChoiceRepository,
	resolver Resolver,
	inFlight interfaces.InFlightSet,
	cfg Config,
	logger *zap.Logger,
) *TaskHandler {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseRetryDelay <= 0 {
		cfg.BaseRetryDelay = time.Second
	}
	return &TaskHandler{
		storyRepo:  storyRepo,
		nodeRepo:   nodeRepo,
		choiceRepo: choiceRepo,
		resolver:   resolver,
		inFlight:   inFlight,
		cfg:        cfg,
		logger:     logger.Named("TaskHandler"),
		sleep:      sleepCtx,
	}
}

type taskIDs struct {
	user, story, node uuid.UUID
	choice            *uuid.UUID
}

func parseTask(payload messaging.PregenerationTaskPayload) (taskIDs, error) {
	var ids taskIDs
	var err error
	if ids.user, err = uuid.Parse(payload.UserID); err != nil {
		return ids, fmt.Errorf("%w: userId: %w", models.ErrInvalidInput, err)
	}
	if ids.story, err = uuid.Parse(payload.StoryID); err != nil {
		return ids, fmt.Errorf("%w: storyId: %w", models.ErrInvalidInput, err)
	}
	if ids.node, err = uuid.Parse(payload.NodeID); err != nil {
		return ids, fmt.Errorf("%w: nodeId: %w", models.ErrInvalidInput, err)
	}
	if payload.ChoiceID != "" {
		choiceID, err := uuid.Parse(payload.ChoiceID)
		if err != nil {
			return ids, fmt.Errorf("%w: choiceId: %w", models.ErrInvalidInput, err)
		}
		ids.choice = &choiceID
	}
	return ids, nil
}

// Handle resolves the task's placeholder unless it is already resolved, gone
// or claimed by another worker. A nil return acks the message.
func (h *TaskHandler) Handle(ctx context.Context, payload messaging.PregenerationTaskPayload) (err error) {
	tasksReceived.Inc()
	started := time.Now()
	logFields := []zap.Field{
		zap.String("taskID", payload.TaskID),
		zap.String("storyID", payload.StoryID),
		zap.String("nodeID", payload.NodeID),
	}
	defer func() {
		taskDuration.Observe(time.Since(started).Seconds())
	}()

	ids, err := parseTask(payload)
	if err != nil {
		tasksFailed.WithLabelValues("invalid_payload").Inc()
		h.logger.Error("Invalid pre-generation task", append(logFields, zap.Error(err))...)
		return err
	}

	key := claimPrefix + ids.node.String()
	claimed, err := h.inFlight.TryClaim(ctx, key)
	if err != nil {
		h.logger.Warn("In-flight claim failed, proceeding without it", append(logFields, zap.Error(err))...)
	} else if !claimed {
		tasksSkipped.WithLabelValues("claimed").Inc()
		h.logger.Info("Node already claimed by another worker", logFields...)
		return nil
	} else {
		defer func() {
			if relErr := h.inFlight.Release(context.WithoutCancel(ctx), key); relErr != nil {
				h.logger.Warn("Failed to release in-flight claim", append(logFields, zap.Error(relErr))...)
			}
		}()
	}

	node, err := h.nodeRepo.GetByID(ctx, ids.node)
	switch {
	case errors.Is(err, models.ErrNotFound):
		tasksSkipped.WithLabelValues("node_gone").Inc()
		h.logger.Info("Placeholder no longer exists", logFields...)
		return nil
	case err != nil:
		tasksFailed.WithLabelValues("load_node").Inc()
		return fmt.Errorf("load placeholder: %w", err)
	case node.IsResolved():
		tasksSkipped.WithLabelValues("resolved").Inc()
		h.logger.Debug("Placeholder already resolved", logFields...)
		return nil
	}

	story, err := h.storyRepo.GetByID(ctx, ids.story)
	if err != nil {
		tasksFailed.WithLabelValues("load_story").Inc()
		return fmt.Errorf("load story: %w", err)
	}
	choice, previous := h.parent(ctx, ids.choice, payload.PreviousContent, logFields)

	// Generation runs on behalf of the reader who triggered the task.
	ctx = models.WithSession(ctx, ids.user, "")

	for attempt := 1; ; attempt++ {
		resolved, _, genErr := h.resolver.ResolvePlaceholder(ctx, story, choice, node, previous)
		if genErr == nil {
			generationAttempts.WithLabelValues("success").Inc()
			tasksSucceeded.Inc()
			h.logger.Info("Placeholder pre-generated",
				append(logFields, zap.Int("attempt", attempt), zap.Stringer("resolvedNodeID", resolved.ID), zap.Duration("took", time.Since(started)))...)
			return nil
		}
		generationAttempts.WithLabelValues("error").Inc()
		attemptFields := append(logFields, zap.Int("attempt", attempt), zap.Int("maxAttempts", h.cfg.MaxAttempts), zap.Error(genErr))

		if !retryable(genErr) {
			tasksFailed.WithLabelValues("permanent").Inc()
			h.logger.Error("Pre-generation failed permanently", attemptFields...)
			return genErr
		}
		if attempt >= h.cfg.MaxAttempts {
			tasksFailed.WithLabelValues("attempts_exhausted").Inc()
			h.logger.Error("Pre-generation attempts exhausted", attemptFields...)
			return genErr
		}

		wait := backoff(h.cfg.BaseRetryDelay, attempt)
		h.logger.Warn("Pre-generation attempt failed, retrying", append(attemptFields, zap.Duration("wait", wait))...)
		if err := h.sleep(ctx, wait); err != nil {
			tasksFailed.WithLabelValues("cancelled").Inc()
			return fmt.Errorf("%w (last error: %w)", err, genErr)
		}
	}
}

// parent loads the choice leading to the placeholder and the text before it.
func (h *TaskHandler) parent(ctx context.Context, choiceID *uuid.UUID, previous string, logFields []zap.Field) (*models.StoryChoice, string) {
	if choiceID == nil {
		return nil, previous
	}
	choice, err := h.choiceRepo.GetByID(ctx, *choiceID)
	if err != nil {
		h.logger.Warn("Failed to load parent choice, generating without it", append(logFields, zap.Error(err))...)
		return nil, previous
	}
	if previous != "" {
		return choice, previous
	}
	from, err := h.nodeRepo.GetByID(ctx, choice.FromNodeID)
	if err != nil {
		h.logger.Warn("Failed to load parent node", append(logFields, zap.Error(err))...)
		return choice, ""
	}
	return choice, from.Content
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrNotAuthenticated),
		errors.Is(err, models.ErrAssetQuotaExceeded),
		errors.Is(err, service.ErrPlaceholderState):
		return false
	}
	return true
}

// backoff is base*2^(attempt-1) with +-10% jitter, never below base.
func backoff(base time.Duration, attempt int) time.Duration {
	delay := float64(base) * math.Pow(2, float64(attempt-1))
	jitter := delay * 0.1
	delay += jitter * (rand.Float64()*2 - 1)
	if wait := time.Duration(delay); wait > base {
		return wait
	}
	return base
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
