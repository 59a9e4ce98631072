package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"nexttale/shared/interfaces"
	"nexttale/shared/messaging"
	"nexttale/shared/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sessionDeps are shared by every session of a manager.
type sessionDeps struct {
	nodeRepo     interfaces.StoryNodeRepository
	choiceRepo   interfaces.StoryChoiceRepository
	progressRepo interfaces.ReaderProgressRepository
	orchestrator *GenerationOrchestrator
	poller       *ResolutionPoller
	filler       *AssetFiller
	publisher    interfaces.PregenerationPublisher
	cfg          SessionConfig
}

// ReaderSession is one reader's walk through one story. The chapters and the
// path only change at the commit point of a transition; all store and
// generator calls happen outside the lock.
type ReaderSession struct {
	userID uuid.UUID
	story  *models.Story
	deps   *sessionDeps
	events *eventHub
	logger *zap.Logger

	mu          sync.Mutex
	chapters    []*models.Chapter
	pathTaken   []string
	pending     int
	epoch       uint64
	firstPrompt string
	lastActive  time.Time
}

func newReaderSession(userID uuid.UUID, story *models.Story, deps *sessionDeps, logger *zap.Logger) *ReaderSession {
	return &ReaderSession{
		userID:     userID,
		story:      story,
		deps:       deps,
		events:     newEventHub(),
		logger:     logger.With(zap.Stringer("userID", userID), zap.Stringer("storyID", story.ID)),
		lastActive: time.Now(),
	}
}

func (s *ReaderSession) UserID() uuid.UUID  { return s.userID }
func (s *ReaderSession) StoryID() uuid.UUID { return s.story.ID }

// Snapshot returns a copy of the current state.
func (s *ReaderSession) Snapshot() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe streams session events until unsubscribe is called or the session closes.
func (s *ReaderSession) Subscribe() (<-chan models.SessionEvent, func()) {
	return s.events.subscribe()
}

// LoadNode replaces the session with the chapter for nodeKey. The start key
// begins a new path. Any other key must be on the reader's path, and the path
// is cut back to it. On failure the previous state is left untouched.
func (s *ReaderSession) LoadNode(ctx context.Context, nodeKey string) (models.SessionState, error) {
	s.touch()
	nodeKey = strings.TrimSpace(nodeKey)
	if nodeKey == "" {
		nodeKey = models.StartNodeKey
	}
	if nodeKey != models.StartNodeKey {
		return s.rewind(ctx, nodeKey)
	}
	log := s.logger.With(zap.String("nodeKey", nodeKey))

	s.beginWork()
	chapter, err := s.buildChapter(ctx, nodeKey)

	s.mu.Lock()
	s.pending--
	if err != nil {
		state := s.snapshotLocked()
		s.mu.Unlock()
		log.Warn("Failed to load node", zap.Error(err))
		return state, err
	}
	s.epoch++
	s.markAssetsLocked(chapter)
	s.chapters = []*models.Chapter{chapter}
	s.pathTaken = []string{models.StartNodeKey}
	if s.firstPrompt == "" && chapter.Node.ImagePrompt != nil {
		s.firstPrompt = *chapter.Node.ImagePrompt
	}
	state := s.snapshotLocked()
	s.mu.Unlock()

	log.Info("Node loaded", zap.Stringer("nodeID", chapter.Node.ID), zap.Int("choices", len(chapter.Choices)))
	s.emit(models.SessionEvent{Type: models.EventSessionReset, Chapter: &state.Chapters[0]})
	s.afterAppend(ctx, chapter)
	return state, nil
}

// rewind rebuilds the session from the reader's path up to nodeKey.
func (s *ReaderSession) rewind(ctx context.Context, nodeKey string) (models.SessionState, error) {
	log := s.logger.With(zap.String("nodeKey", nodeKey))

	s.mu.Lock()
	idx := slices.Index(s.pathTaken, nodeKey)
	if idx < 0 {
		state := s.snapshotLocked()
		s.mu.Unlock()
		return state, fmt.Errorf("%w: node %q is not on the reader's path", models.ErrInvalidInput, nodeKey)
	}
	path := slices.Clone(s.pathTaken[:idx+1])
	s.mu.Unlock()

	if err := s.resume(ctx, path); err != nil {
		log.Warn("Failed to load node", zap.Error(err))
		return s.Snapshot(), err
	}
	state := s.Snapshot()
	last := len(state.Chapters) - 1

	log.Info("Session rewound", zap.Int("chapters", len(state.Chapters)))
	s.emit(models.SessionEvent{Type: models.EventSessionReset, ChapterIndex: last, Chapter: &state.Chapters[last]})
	s.saveProgress(ctx, state.Chapters[last].Node, state.PathTaken, 0)
	return state, nil
}

// SelectChoice follows choiceID from the chapter at chapterIndex. A chapter that
// already has a selection ignores further selections.
func (s *ReaderSession) SelectChoice(ctx context.Context, chapterIndex int, choiceID uuid.UUID) (*models.TransitionResult, error) {
	s.touch()

	s.mu.Lock()
	if chapterIndex < 0 || chapterIndex >= len(s.chapters) {
		s.mu.Unlock()
		return nil, ErrInvalidChapter
	}
	current := s.chapters[chapterIndex]
	if current.SelectedChoiceID != nil {
		state := s.snapshotLocked()
		s.mu.Unlock()
		transitionsTotal.WithLabelValues(string(models.OutcomeIgnored)).Inc()
		return &models.TransitionResult{Outcome: models.OutcomeIgnored, State: state}, nil
	}
	found := current.FindChoice(choiceID)
	if found == nil {
		s.mu.Unlock()
		return nil, ErrChoiceNotFound
	}
	selectedID := found.ID
	current.SelectedChoiceID = &selectedID
	choice := *found
	from := *current.Node
	epoch := s.epoch
	s.pending++
	s.mu.Unlock()

	s.emit(models.SessionEvent{Type: models.EventNarrationStopped, ChapterIndex: chapterIndex})
	s.emitState(chapterIndex, models.TransitionSelected)

	chapter, outcome, err := s.follow(ctx, chapterIndex, &choice, &from)
	if err != nil {
		s.rollback(chapterIndex, epoch, selectedID, err)
		return nil, err
	}
	return s.commit(ctx, epoch, chapter, outcome)
}

// SelectCustomChoice adds a reader-written choice to the chapter and generates
// its target right away.
func (s *ReaderSession) SelectCustomChoice(ctx context.Context, chapterIndex int, text string) (*models.TransitionResult, error) {
	s.touch()
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: choice text is empty", models.ErrInvalidInput)
	}

	s.mu.Lock()
	if chapterIndex < 0 || chapterIndex >= len(s.chapters) {
		s.mu.Unlock()
		return nil, ErrInvalidChapter
	}
	current := s.chapters[chapterIndex]
	if current.SelectedChoiceID != nil {
		state := s.snapshotLocked()
		s.mu.Unlock()
		transitionsTotal.WithLabelValues(string(models.OutcomeIgnored)).Inc()
		return &models.TransitionResult{Outcome: models.OutcomeIgnored, State: state}, nil
	}
	if current.Node.IsEnding {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: chapter is an ending", models.ErrInvalidInput)
	}
	// Reserve the chapter until the choice row exists.
	reserved := uuid.Nil
	current.SelectedChoiceID = &reserved
	from := *current.Node
	orderIndex := len(current.Choices)
	epoch := s.epoch
	s.pending++
	s.mu.Unlock()

	s.emit(models.SessionEvent{Type: models.EventNarrationStopped, ChapterIndex: chapterIndex})

	choice, err := s.deps.orchestrator.CreateCustomChoice(ctx, &from, text, orderIndex, s.userID)
	if err != nil {
		s.rollback(chapterIndex, epoch, reserved, err)
		return nil, err
	}

	s.mu.Lock()
	if s.epoch == epoch && chapterIndex < len(s.chapters) {
		ch := s.chapters[chapterIndex]
		ch.Choices = append(ch.Choices, choice)
		id := choice.ID
		ch.SelectedChoiceID = &id
	}
	s.mu.Unlock()

	s.emitState(chapterIndex, models.TransitionSelected)
	s.emitState(chapterIndex, models.TransitionGenerating)

	node, choices, err := s.deps.orchestrator.ResolvePlaceholder(ctx, s.story, choice, choice.TargetNode, from.Content)
	if err != nil {
		s.rollback(chapterIndex, epoch, choice.ID, err)
		return nil, err
	}
	return s.commit(ctx, epoch, &models.Chapter{Node: node, Choices: choices}, models.OutcomeClientResolved)
}

// Restart moves the cursor back to the start node. Nothing is deleted.
func (s *ReaderSession) Restart(ctx context.Context) (models.SessionState, error) {
	s.mu.Lock()
	last := len(s.chapters) - 1
	s.mu.Unlock()
	s.emit(models.SessionEvent{Type: models.EventNarrationStopped, ChapterIndex: last})

	state, err := s.LoadNode(ctx, models.StartNodeKey)
	if err != nil {
		return state, err
	}
	s.saveProgress(ctx, state.Chapters[0].Node, state.PathTaken, 0)
	s.logger.Info("Reader restarted story")
	return state, nil
}

// resume rebuilds the chapters from a saved path. Each chapter's selection is
// the choice that leads to the next key.
func (s *ReaderSession) resume(ctx context.Context, path []string) error {
	if len(path) == 0 || path[0] != models.StartNodeKey {
		return fmt.Errorf("%w: path does not begin at %q", ErrPathNotReproducible, models.StartNodeKey)
	}
	s.beginWork()
	chapters, err := s.replay(ctx, path)

	s.mu.Lock()
	s.pending--
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.epoch++
	last := chapters[len(chapters)-1]
	s.markAssetsLocked(last)
	s.chapters = chapters
	s.pathTaken = append([]string(nil), path...)
	for _, ch := range chapters {
		if s.firstPrompt == "" && ch.Node.ImagePrompt != nil {
			s.firstPrompt = *ch.Node.ImagePrompt
		}
	}
	s.mu.Unlock()

	s.logger.Info("Session resumed from saved path", zap.Int("chapters", len(chapters)))
	s.afterAppend(ctx, last)
	return nil
}

func (s *ReaderSession) replay(ctx context.Context, path []string) ([]*models.Chapter, error) {
	chapters := make([]*models.Chapter, 0, len(path))
	var prev *models.Chapter
	for i, key := range path {
		node, err := s.deps.nodeRepo.GetByKey(ctx, s.story.ID, key)
		if err != nil {
			return nil, fmt.Errorf("%w: node %q: %w", ErrPathNotReproducible, key, err)
		}
		if !node.IsResolved() {
			return nil, fmt.Errorf("%w: node %q is not resolved", ErrPathNotReproducible, key)
		}
		if prev != nil {
			link := choiceTo(prev.Choices, node.ID)
			if link == nil {
				return nil, fmt.Errorf("%w: no choice leads to %q", ErrPathNotReproducible, key)
			}
			id := link.ID
			prev.SelectedChoiceID = &id
		}

		var choices []*models.StoryChoice
		if i == len(path)-1 {
			choices, err = s.choicesFor(ctx, node)
		} else if !node.IsEnding {
			choices, err = s.deps.choiceRepo.ListByNode(ctx, node.ID)
		}
		if err != nil {
			return nil, fmt.Errorf("choices of %q: %w", key, err)
		}
		if choices == nil {
			choices = []*models.StoryChoice{}
		}
		ch := &models.Chapter{Node: node, Choices: choices}
		chapters = append(chapters, ch)
		prev = ch
	}
	return chapters, nil
}

func (s *ReaderSession) buildChapter(ctx context.Context, nodeKey string) (*models.Chapter, error) {
	node, err := s.deps.nodeRepo.GetByKey(ctx, s.story.ID, nodeKey)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) && nodeKey == models.StartNodeKey {
			s.logger.Info("Story has no start node, generating opening chapter")
			node, choices, err := s.deps.orchestrator.GenerateOpeningChapter(ctx, s.story)
			if err != nil {
				return nil, err
			}
			return &models.Chapter{Node: node, Choices: nonNil(choices)}, nil
		}
		return nil, fmt.Errorf("load node %q: %w", nodeKey, err)
	}

	if !node.IsResolved() {
		if resolved, ok := s.deps.poller.WaitForResolution(ctx, node.ID); ok {
			node = resolved
		} else {
			choice, previous := s.parentOf(ctx, node)
			resolvedNode, choices, err := s.deps.orchestrator.ResolvePlaceholder(ctx, s.story, choice, node, previous)
			if err != nil {
				return nil, err
			}
			return &models.Chapter{Node: resolvedNode, Choices: nonNil(choices)}, nil
		}
	}

	choices, err := s.choicesFor(ctx, node)
	if err != nil {
		return nil, err
	}
	return &models.Chapter{Node: node, Choices: choices}, nil
}

// follow walks the selection state machine and returns the chapter to append.
func (s *ReaderSession) follow(ctx context.Context, chapterIndex int, choice *models.StoryChoice, from *models.StoryNode) (*models.Chapter, models.TransitionOutcome, error) {
	target, err := s.deps.nodeRepo.GetByID(ctx, choice.ToNodeID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		// The reserved node is gone; generation creates a replacement.
		target = &models.StoryNode{ID: choice.ToNodeID, StoryID: s.story.ID, IsPlaceholder: true}
	case err != nil:
		return nil, "", fmt.Errorf("load choice target: %w", err)
	}

	outcome := models.OutcomeDirect
	if !target.IsResolved() {
		resolved := false
		if err == nil {
			s.emitState(chapterIndex, models.TransitionPolling)
			var node *models.StoryNode
			if node, resolved = s.deps.poller.WaitForResolution(ctx, target.ID); resolved {
				target = node
				outcome = models.OutcomeServerResolved
			}
		}
		if !resolved {
			s.emitState(chapterIndex, models.TransitionGenerating)
			node, choices, err := s.deps.orchestrator.ResolvePlaceholder(ctx, s.story, choice, target, from.Content)
			if err != nil {
				return nil, "", err
			}
			return &models.Chapter{Node: node, Choices: nonNil(choices)}, models.OutcomeClientResolved, nil
		}
	}

	choices, err := s.choicesFor(ctx, target)
	if err != nil {
		return nil, "", err
	}
	return &models.Chapter{Node: target, Choices: choices}, outcome, nil
}

// choicesFor lists a resolved node's choices, generating them when a non-ending
// node has none.
func (s *ReaderSession) choicesFor(ctx context.Context, node *models.StoryNode) ([]*models.StoryChoice, error) {
	if node.IsEnding {
		return []*models.StoryChoice{}, nil
	}
	choices, err := s.deps.choiceRepo.ListByNode(ctx, node.ID)
	if err != nil {
		return nil, fmt.Errorf("list choices: %w", err)
	}
	if len(choices) > 0 {
		return choices, nil
	}
	s.logger.Info("Resolved node has no choices, generating them", zap.Stringer("nodeID", node.ID))
	choices, err = s.deps.orchestrator.GenerateChoices(ctx, s.story, node)
	if err != nil {
		return nil, err
	}
	return nonNil(choices), nil
}

func (s *ReaderSession) parentOf(ctx context.Context, node *models.StoryNode) (*models.StoryChoice, string) {
	if node.ParentChoiceID == nil {
		return nil, ""
	}
	choice, err := s.deps.choiceRepo.GetByID(ctx, *node.ParentChoiceID)
	if err != nil {
		s.logger.Warn("Failed to load parent choice of placeholder", zap.Stringer("nodeID", node.ID), zap.Error(err))
		return nil, ""
	}
	from, err := s.deps.nodeRepo.GetByID(ctx, choice.FromNodeID)
	if err != nil {
		s.logger.Warn("Failed to load parent node of placeholder", zap.Stringer("nodeID", node.ID), zap.Error(err))
		return choice, ""
	}
	return choice, from.Content
}

func (s *ReaderSession) commit(ctx context.Context, epoch uint64, chapter *models.Chapter, outcome models.TransitionOutcome) (*models.TransitionResult, error) {
	s.mu.Lock()
	s.pending--
	if s.epoch != epoch {
		s.mu.Unlock()
		s.logger.Info("Discarding transition result after reload", zap.Stringer("nodeID", chapter.Node.ID))
		return nil, ErrTransitionAborted
	}
	s.markAssetsLocked(chapter)
	s.chapters = append(s.chapters, chapter)
	s.pathTaken = append(s.pathTaken, chapter.Node.NodeKey)
	index := len(s.chapters) - 1
	path := append([]string(nil), s.pathTaken...)
	state := s.snapshotLocked()
	s.mu.Unlock()

	transitionsTotal.WithLabelValues(string(outcome)).Inc()
	s.logger.Info("Chapter appended",
		zap.Int("chapterIndex", index),
		zap.Stringer("nodeID", chapter.Node.ID),
		zap.String("outcome", string(outcome)),
		zap.Bool("isEnding", chapter.Node.IsEnding),
	)

	s.saveProgress(ctx, chapter.Node, path, 1)
	s.emit(models.SessionEvent{Type: models.EventChapterAppended, ChapterIndex: index, Chapter: &state.Chapters[index]})
	s.emitState(index, models.TransitionAppended)
	s.afterAppend(ctx, chapter)

	return &models.TransitionResult{Outcome: outcome, State: state}, nil
}

func (s *ReaderSession) rollback(chapterIndex int, epoch uint64, selectedID uuid.UUID, cause error) {
	s.mu.Lock()
	s.pending--
	if s.epoch == epoch && chapterIndex < len(s.chapters) {
		ch := s.chapters[chapterIndex]
		if ch.SelectedChoiceID != nil && *ch.SelectedChoiceID == selectedID {
			ch.SelectedChoiceID = nil
		}
	}
	s.mu.Unlock()

	transitionsTotal.WithLabelValues(string(models.TransitionFailed)).Inc()
	s.logger.Warn("Transition failed, selection rolled back", zap.Int("chapterIndex", chapterIndex), zap.Error(cause))
	s.emit(models.SessionEvent{
		Type:         models.EventTransitionFailed,
		ChapterIndex: chapterIndex,
		State:        models.TransitionFailed,
		Error:        cause.Error(),
		Retryable:    errors.Is(cause, models.ErrGenerationTimeout),
	})
}

func (s *ReaderSession) saveProgress(ctx context.Context, node *models.StoryNode, path []string, chapters int) {
	ctx = context.WithoutCancel(ctx)
	log := s.logger.With(zap.Stringer("nodeID", node.ID))

	err := s.deps.progressRepo.Save(ctx, &models.ReaderProgress{
		UserID:        s.userID,
		StoryID:       s.story.ID,
		CurrentNodeID: node.ID,
		PathTaken:     path,
		IsCompleted:   node.IsEnding,
	})
	if err != nil {
		log.Warn("Failed to save reader progress", zap.Error(err))
		return
	}
	if chapters == 0 {
		return
	}
	points := s.deps.cfg.ChapterPoints * chapters
	if node.IsEnding {
		points += s.deps.cfg.EndingBonusPoints
	}
	if err := s.deps.progressRepo.AddReading(ctx, s.userID, s.story.ID, chapters, points); err != nil {
		log.Warn("Failed to add reading points", zap.Error(err))
	}
}

// afterAppend starts asset generation and pre-generation for a new chapter.
func (s *ReaderSession) afterAppend(ctx context.Context, chapter *models.Chapter) {
	s.fillAssets(ctx, chapter.Node)
	s.schedulePregeneration(ctx, chapter)
}

func (s *ReaderSession) markAssetsLocked(ch *models.Chapter) {
	filler := s.deps.filler
	if filler == nil {
		return
	}
	ch.ImageGenerating = filler.ImagesEnabled() && !ch.Node.HasImage() && ch.Node.Content != ""
	ch.VideoGenerating = filler.VideosEnabled() && ch.Node.HasImage() && !ch.Node.HasVideo()
}

func (s *ReaderSession) fillAssets(ctx context.Context, node *models.StoryNode) {
	filler := s.deps.filler
	if filler == nil {
		return
	}
	nodeID := node.ID
	setCover := node.NodeKey == models.StartNodeKey

	if !node.HasImage() {
		if node.Content == "" {
			return
		}
		opts := ImageOptions{
			StyleReference: s.styleReference(),
			ArtStyle:       s.story.ArtStyle,
			Story:          s.story.Meta(),
			SetCover:       setCover,
			OnSettled:      func() { s.setGenerating(nodeID, models.AssetImage, false) },
		}
		filler.EnsureImage(ctx, nodeID, node.Content, opts, func(imageURL, prompt string) {
			s.onAsset(nodeID, models.AssetImage, imageURL, prompt)
			s.startVideo(ctx, nodeID, imageURL, prompt, setCover)
		})
		return
	}
	if !node.HasVideo() {
		prompt := ImagePrompt(node.Content)
		if node.ImagePrompt != nil {
			prompt = *node.ImagePrompt
		}
		s.startVideo(ctx, nodeID, *node.ImageURL, prompt, setCover)
	}
}

func (s *ReaderSession) startVideo(ctx context.Context, nodeID uuid.UUID, imageURL, prompt string, setCover bool) {
	opts := VideoOptions{
		Story:     s.story.Meta(),
		SetCover:  setCover,
		OnSettled: func() { s.setGenerating(nodeID, models.AssetVideo, false) },
	}
	if !s.deps.filler.VideosEnabled() {
		return
	}
	s.setGenerating(nodeID, models.AssetVideo, true)
	if !s.deps.filler.EnsureVideo(ctx, nodeID, imageURL, prompt, opts, func(videoURL string) {
		s.onAsset(nodeID, models.AssetVideo, videoURL, "")
	}) {
		s.setGenerating(nodeID, models.AssetVideo, false)
	}
}

func (s *ReaderSession) onAsset(nodeID uuid.UUID, kind models.AssetKind, url, prompt string) {
	s.mu.Lock()
	index := -1
	for i, ch := range s.chapters {
		if ch.Node.ID != nodeID {
			continue
		}
		index = i
		u := url
		switch kind {
		case models.AssetImage:
			ch.Node.ImageURL = &u
			ch.ImageGenerating = false
			if prompt != "" {
				p := prompt
				ch.Node.ImagePrompt = &p
			}
		case models.AssetVideo:
			ch.Node.VideoURL = &u
			ch.VideoGenerating = false
		}
	}
	if kind == models.AssetImage && s.firstPrompt == "" && prompt != "" {
		s.firstPrompt = prompt
	}
	s.mu.Unlock()

	id := nodeID
	s.emit(models.SessionEvent{
		Type:         models.EventAssetReady,
		ChapterIndex: index,
		NodeID:       &id,
		AssetKind:    kind,
		AssetURL:     url,
	})
}

func (s *ReaderSession) setGenerating(nodeID uuid.UUID, kind models.AssetKind, value bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.chapters {
		if ch.Node.ID != nodeID {
			continue
		}
		if kind == models.AssetImage {
			ch.ImageGenerating = value
		} else {
			ch.VideoGenerating = value
		}
	}
}

func (s *ReaderSession) styleReference() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firstPrompt != "" {
		return s.firstPrompt
	}
	return s.story.StyleSeed()
}

func (s *ReaderSession) schedulePregeneration(ctx context.Context, chapter *models.Chapter) {
	if s.deps.publisher == nil || chapter.Node.IsEnding {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, c := range chapter.Choices {
		if c.TargetNode != nil && c.TargetNode.IsResolved() {
			continue
		}
		payload := messaging.PregenerationTaskPayload{
			TaskID:          uuid.NewString(),
			UserID:          s.userID.String(),
			StoryID:         s.story.ID.String(),
			ChoiceID:        c.ID.String(),
			NodeID:          c.ToNodeID.String(),
			PreviousContent: chapter.Node.Content,
		}
		if err := s.deps.publisher.PublishPregeneration(ctx, payload); err != nil {
			s.logger.Warn("Failed to publish pre-generation task", zap.Stringer("choiceID", c.ID), zap.Error(err))
		}
	}
}

func (s *ReaderSession) emit(ev models.SessionEvent) {
	ev.StoryID = s.story.ID
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	s.events.publish(ev)
}

func (s *ReaderSession) emitState(chapterIndex int, state models.TransitionState) {
	s.emit(models.SessionEvent{Type: models.EventTransitionState, ChapterIndex: chapterIndex, State: state})
}

func (s *ReaderSession) snapshotLocked() models.SessionState {
	state := models.SessionState{
		StoryID:   s.story.ID,
		Chapters:  make([]models.Chapter, 0, len(s.chapters)),
		PathTaken: append([]string{}, s.pathTaken...),
		Loading:   s.pending > 0,
	}
	for _, ch := range s.chapters {
		state.Chapters = append(state.Chapters, ch.Clone())
	}
	return state
}

func (s *ReaderSession) beginWork() {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
}

func (s *ReaderSession) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *ReaderSession) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *ReaderSession) close() {
	s.events.close()
}

func choiceTo(choices []*models.StoryChoice, nodeID uuid.UUID) *models.StoryChoice {
	for _, c := range choices {
		if c.ToNodeID == nodeID {
			return c
		}
	}
	return nil
}

func nonNil(choices []*models.StoryChoice) []*models.StoryChoice {
	if choices == nil {
		return []*models.StoryChoice{}
	}
	return choices
}
