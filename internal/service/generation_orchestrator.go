package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nexttale/shared/interfaces"
	"nexttale/shared/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultGenerationTimeout = 25 * time.Second

// GenerationOrchestrator turns generator output into nodes and choices.
type GenerationOrchestrator struct {
	storyRepo  interfaces.StoryRepository
	nodeRepo   interfaces.StoryNodeRepository
	choiceRepo interfaces.StoryChoiceRepository
	txManager  interfaces.TransactionManager
	generator  interfaces.StoryGenerator
	timeout    time.Duration
	logger     *zap.Logger
}

func NewGenerationOrchestrator(
	storyRepo interfaces.StoryRepository,
	nodeRepo interfaces.StoryNodeRepository,
	choiceRepo interfaces.StoryChoiceRepository,
	txManager interfaces.TransactionManager,
	generator interfaces.StoryGenerator,
	timeout time.Duration,
	logger *zap.Logger,
) *GenerationOrchestrator {
	if timeout <= 0 {
		timeout = defaultGenerationTimeout
	}
	return &GenerationOrchestrator{
		storyRepo:  storyRepo,
		nodeRepo:   nodeRepo,
		choiceRepo: choiceRepo,
		txManager:  txManager,
		generator:  generator,
		timeout:    timeout,
		logger:     logger.Named("GenerationOrchestrator"),
	}
}

// Generate asks the generator for one chapter. It requires an authenticated
// user in ctx and rejects non-ending results without choices.
func (o *GenerationOrchestrator) Generate(ctx context.Context, storyContext, userChoice, previousContent string) (*models.GenerationResult, error) {
	userID, ok := models.GetUserIDFromContext(ctx)
	if !ok {
		generationsTotal.WithLabelValues("unauthenticated").Inc()
		return nil, models.ErrNotAuthenticated
	}
	log := o.logger.With(zap.Stringer("userID", userID), zap.Bool("hasChoice", userChoice != ""))

	genCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	started := time.Now()
	res, err := o.generator.GenerateStory(genCtx, models.GenerationRequest{
		StoryContext:    storyContext,
		UserChoice:      userChoice,
		PreviousContent: previousContent,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			log.Warn("Story generation timed out", zap.Duration("timeout", o.timeout))
			generationsTotal.WithLabelValues("timeout").Inc()
			return nil, fmt.Errorf("%w after %s", models.ErrGenerationTimeout, o.timeout)
		}
		log.Error("Story generation failed", zap.Error(err))
		generationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %w", models.ErrGenerationFailed, err)
	}
	if res == nil {
		generationsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: empty result", models.ErrInvalidGeneration)
	}

	normalized := normalizeResult(*res)
	if err := normalized.Validate(); err != nil {
		log.Warn("Generated chapter is invalid", zap.Error(err))
		generationsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidGeneration, err)
	}
	if !normalized.IsEnding && len(normalized.Choices) == 0 {
		log.Warn("Generator returned a non-ending chapter without choices")
		generationsTotal.WithLabelValues("no_choices").Inc()
		return nil, models.ErrNoChoicesProvided
	}

	log.Info("Chapter generated",
		zap.Duration("took", time.Since(started)),
		zap.Bool("isEnding", normalized.IsEnding),
		zap.Int("choices", len(normalized.Choices)),
	)
	generationsTotal.WithLabelValues("success").Inc()
	return &normalized, nil
}

// GenerateOpeningChapter creates the start node of a story that has none. If a
// concurrent caller created it first, that node is returned instead.
func (o *GenerationOrchestrator) GenerateOpeningChapter(ctx context.Context, story *models.Story) (*models.StoryNode, []*models.StoryChoice, error) {
	log := o.logger.With(zap.Stringer("storyID", story.ID))

	o.setStatus(ctx, story.ID, models.GenerationStatusGenerating, 10)

	res, err := o.Generate(ctx, story.StoryContext, "", "")
	if err != nil {
		o.setStatus(ctx, story.ID, models.GenerationStatusFailed, 0)
		return nil, nil, err
	}

	var (
		node    *models.StoryNode
		choices []*models.StoryChoice
	)
	err = o.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var err error
		node, err = o.nodeRepo.Create(txCtx, models.NewNodeParams{
			StoryID:       story.ID,
			NodeKey:       models.StartNodeKey,
			Content:       res.Content,
			IsEnding:      res.IsEnding,
			EndingType:    res.EndingTypePtr(),
			SequenceOrder: 0,
		})
		if err != nil {
			return fmt.Errorf("create start node: %w", err)
		}
		choices, err = o.materializeChoices(txCtx, node, res)
		return err
	})
	switch {
	case errors.Is(err, models.ErrAlreadyExists):
		log.Info("Start node was created concurrently, reusing it")
		return o.loadExisting(ctx, story.ID, models.StartNodeKey)
	case err != nil:
		o.setStatus(ctx, story.ID, models.GenerationStatusFailed, 0)
		return nil, nil, err
	}

	o.setStatus(ctx, story.ID, models.GenerationStatusFullyGenerated, 100)
	log.Info("Opening chapter generated", zap.Stringer("nodeID", node.ID), zap.Int("choices", len(choices)))
	return node, choices, nil
}

// ResolvePlaceholder generates the content of placeholder and writes it in place.
// choice may be nil when the placeholder has no known parent. When another writer
// resolved the placeholder first, its content wins and no choices are created here.
// When the placeholder row is gone, a fresh node is created and the choice is
// pointed at it.
func (o *GenerationOrchestrator) ResolvePlaceholder(
	ctx context.Context,
	story *models.Story,
	choice *models.StoryChoice,
	placeholder *models.StoryNode,
	previousContent string,
) (*models.StoryNode, []*models.StoryChoice, error) {
	log := o.logger.With(zap.Stringer("storyID", story.ID), zap.Stringer("placeholderID", placeholder.ID))

	userChoice := ""
	if choice != nil {
		userChoice = choice.ChoiceText
	}
	res, err := o.Generate(ctx, story.StoryContext, userChoice, previousContent)
	if err != nil {
		return nil, nil, err
	}

	// The node becomes visible together with its choices.
	var (
		node    *models.StoryNode
		choices []*models.StoryChoice
	)
	err = o.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		resolved, err := o.nodeRepo.Resolve(txCtx, placeholder.ID, models.NodeResolution{
			Content:    res.Content,
			IsEnding:   res.IsEnding,
			EndingType: res.EndingTypePtr(),
		})
		if err != nil {
			return fmt.Errorf("resolve placeholder: %w", err)
		}
		if !resolved {
			return nil
		}
		node = resolvedCopy(placeholder, res)
		choices, err = o.materializeChoices(txCtx, node, res)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	if node == nil {
		current, err := o.nodeRepo.GetByID(ctx, placeholder.ID)
		switch {
		case err == nil && current.IsResolved():
			log.Info("Placeholder was resolved concurrently, keeping stored content")
			choices, err := o.choiceRepo.ListByNode(ctx, current.ID)
			if err != nil {
				return nil, nil, fmt.Errorf("list choices of resolved node: %w", err)
			}
			return current, choices, nil
		case errors.Is(err, models.ErrNotFound):
			node, err = o.replacePlaceholder(ctx, story, choice, placeholder, res)
			if err != nil {
				return nil, nil, err
			}
		case err != nil:
			return nil, nil, fmt.Errorf("reload placeholder: %w", err)
		default:
			return nil, nil, ErrPlaceholderState
		}
		// Rows created before a failure here stay behind the replacement node.
		choices, err = o.materializeChoices(ctx, node, res)
		if err != nil {
			return nil, nil, err
		}
	}

	log.Info("Placeholder resolved", zap.Stringer("nodeID", node.ID), zap.Bool("isEnding", node.IsEnding), zap.Int("choices", len(choices)))
	return node, choices, nil
}

// GenerateChoices fills a resolved non-ending node that has no choices yet.
// Existing choices are returned untouched.
func (o *GenerationOrchestrator) GenerateChoices(ctx context.Context, story *models.Story, node *models.StoryNode) ([]*models.StoryChoice, error) {
	if node.IsEnding {
		return nil, nil
	}
	existing, err := o.choiceRepo.ListByNode(ctx, node.ID)
	if err != nil {
		return nil, fmt.Errorf("list choices: %w", err)
	}
	if len(existing) > 0 {
		return existing, nil
	}

	res, err := o.Generate(ctx, story.StoryContext, "", node.Content)
	if err != nil {
		return nil, err
	}
	if len(res.Choices) == 0 {
		return nil, models.ErrNoChoicesProvided
	}
	// The node is already stored as non-ending, so choices are always materialized.
	res.IsEnding = false

	o.logger.Info("Generating missing choices", zap.Stringer("nodeID", node.ID), zap.Int("choices", len(res.Choices)))
	return o.materializeChoices(ctx, node, res)
}

// CreateCustomChoice adds a reader-authored choice from a node to a fresh placeholder.
func (o *GenerationOrchestrator) CreateCustomChoice(ctx context.Context, from *models.StoryNode, text string, orderIndex int, createdBy uuid.UUID) (*models.StoryChoice, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: choice text is empty", models.ErrInvalidInput)
	}
	choice, err := o.createBranch(ctx, from, models.GeneratedChoice{Text: text}, orderIndex, &createdBy)
	if err != nil {
		return nil, fmt.Errorf("create custom choice: %w", err)
	}
	o.logger.Info("Custom choice created", zap.Stringer("nodeID", from.ID), zap.Stringer("choiceID", choice.ID), zap.Stringer("userID", createdBy))
	return choice, nil
}

// materializeChoices creates a placeholder and a choice row per generated choice.
// Each pair is written atomically. Inside a transaction all pairs join it;
// otherwise rows created before a failure are kept.
func (o *GenerationOrchestrator) materializeChoices(ctx context.Context, from *models.StoryNode, res *models.GenerationResult) ([]*models.StoryChoice, error) {
	if res.IsEnding {
		return []*models.StoryChoice{}, nil
	}
	choices := make([]*models.StoryChoice, 0, len(res.Choices))
	for i, gc := range res.Choices {
		choice, err := o.createBranch(ctx, from, gc, i, nil)
		if err != nil {
			o.logger.Error("Failed to materialize choice",
				zap.Stringer("nodeID", from.ID),
				zap.Int("index", i),
				zap.Int("created", len(choices)),
				zap.Error(err),
			)
			return nil, fmt.Errorf("%w: materialize choice %d: %w", models.ErrGenerationFailed, i, err)
		}
		choices = append(choices, choice)
	}
	return choices, nil
}

func (o *GenerationOrchestrator) createBranch(ctx context.Context, from *models.StoryNode, gc models.GeneratedChoice, orderIndex int, createdBy *uuid.UUID) (*models.StoryChoice, error) {
	var choice *models.StoryChoice
	err := o.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		placeholder, err := o.nodeRepo.Create(txCtx, models.NewNodeParams{
			StoryID:       from.StoryID,
			NodeKey:       NewNodeKey(),
			SequenceOrder: orderIndex,
		})
		if err != nil {
			return fmt.Errorf("create placeholder: %w", err)
		}

		var hint *string
		if gc.Hint != "" {
			h := gc.Hint
			hint = &h
		}
		choice, err = o.choiceRepo.Create(txCtx, models.NewChoiceParams{
			FromNodeID:      from.ID,
			ToNodeID:        placeholder.ID,
			ChoiceText:      gc.Text,
			ConsequenceHint: hint,
			OrderIndex:      orderIndex,
			CreatedBy:       createdBy,
		})
		if err != nil {
			return fmt.Errorf("create choice: %w", err)
		}

		if err := o.nodeRepo.SetParentChoice(txCtx, placeholder.ID, choice.ID); err != nil {
			return fmt.Errorf("link placeholder: %w", err)
		}
		placeholder.ParentChoiceID = &choice.ID
		choice.TargetNode = placeholder
		return nil
	})
	if err != nil {
		return nil, err
	}
	return choice, nil
}

func (o *GenerationOrchestrator) replacePlaceholder(ctx context.Context, story *models.Story, choice *models.StoryChoice, placeholder *models.StoryNode, res *models.GenerationResult) (*models.StoryNode, error) {
	log := o.logger.With(zap.Stringer("storyID", story.ID), zap.Stringer("placeholderID", placeholder.ID))
	log.Warn("Placeholder disappeared, creating a replacement node")

	var node *models.StoryNode
	err := o.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var parent *uuid.UUID
		if choice != nil {
			parent = &choice.ID
		}
		var err error
		node, err = o.nodeRepo.Create(txCtx, models.NewNodeParams{
			StoryID:        story.ID,
			NodeKey:        NewNodeKey(),
			Content:        res.Content,
			IsEnding:       res.IsEnding,
			EndingType:     res.EndingTypePtr(),
			SequenceOrder:  placeholder.SequenceOrder,
			ParentChoiceID: parent,
		})
		if err != nil {
			return fmt.Errorf("create replacement node: %w", err)
		}
		if choice != nil {
			if err := o.choiceRepo.UpdateTarget(txCtx, choice.ID, node.ID); err != nil {
				return fmt.Errorf("retarget choice: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info("Choice retargeted to replacement node", zap.Stringer("nodeID", node.ID))
	return node, nil
}

func (o *GenerationOrchestrator) loadExisting(ctx context.Context, storyID uuid.UUID, nodeKey string) (*models.StoryNode, []*models.StoryChoice, error) {
	node, err := o.nodeRepo.GetByKey(ctx, storyID, nodeKey)
	if err != nil {
		return nil, nil, fmt.Errorf("load node %s: %w", nodeKey, err)
	}
	choices, err := o.choiceRepo.ListByNode(ctx, node.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list choices: %w", err)
	}
	return node, choices, nil
}

func (o *GenerationOrchestrator) setStatus(ctx context.Context, storyID uuid.UUID, status models.GenerationStatus, progress int) {
	if err := o.storyRepo.UpdateGenerationStatus(ctx, storyID, status, progress); err != nil {
		o.logger.Warn("Failed to update story generation status",
			zap.Stringer("storyID", storyID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

// NewNodeKey returns a unique logical key for a generated node.
func NewNodeKey() string {
	return "node_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func normalizeResult(res models.GenerationResult) models.GenerationResult {
	out := models.GenerationResult{
		Content:    strings.TrimSpace(res.Content),
		IsEnding:   res.IsEnding,
		EndingType: strings.TrimSpace(res.EndingType),
		Choices:    make([]models.GeneratedChoice, 0, len(res.Choices)),
	}
	for _, c := range res.Choices {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		out.Choices = append(out.Choices, models.GeneratedChoice{Text: text, Hint: strings.TrimSpace(c.Hint)})
		if len(out.Choices) == models.MaxChoicesPerNode {
			break
		}
	}
	return out
}

func resolvedCopy(placeholder *models.StoryNode, res *models.GenerationResult) *models.StoryNode {
	node := *placeholder
	node.Content = res.Content
	node.IsPlaceholder = false
	node.IsEnding = res.IsEnding
	node.EndingType = res.EndingTypePtr()
	return &node
}
