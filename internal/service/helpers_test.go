package service_test

import (
	"context"
	"testing"
	"time"

	"nexttale/internal/service"
	"nexttale/shared/interfaces"
	"nexttale/shared/interfaces/mocks"
	"nexttale/shared/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

const (
	testPollInterval = 5 * time.Millisecond
	testPollTimeout  = 20 * time.Millisecond
)

type fixture struct {
	userID uuid.UUID
	story  *models.Story
	ctx    context.Context

	stories  *mocks.StoryRepository
	nodes    *mocks.StoryNodeRepository
	choices  *mocks.StoryChoiceRepository
	progress *mocks.ReaderProgressRepository
	tx       *mocks.TransactionManager
	gen      *mocks.StoryGenerator

	orchestrator *service.GenerationOrchestrator
	poller       *service.ResolutionPoller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		userID:   uuid.New(),
		story:    &models.Story{ID: uuid.New(), Title: "The Lighthouse", StoryContext: "A keeper hears knocking from the sea.", ArtStyle: "ink"},
		stories:  mocks.NewStoryRepository(t),
		nodes:    mocks.NewStoryNodeRepository(t),
		choices:  mocks.NewStoryChoiceRepository(t),
		progress: mocks.NewReaderProgressRepository(t),
		tx:       mocks.NewTransactionManager(t),
		gen:      mocks.NewStoryGenerator(t),
	}
	f.ctx = models.WithSession(context.Background(), f.userID, "reader-token")
	logger := zap.NewNop()
	f.orchestrator = service.NewGenerationOrchestrator(f.stories, f.nodes, f.choices, f.tx, f.gen, time.Second, logger)
	f.poller = service.NewResolutionPoller(f.nodes, testPollInterval, testPollTimeout, logger)
	return f
}

// manager builds a session manager without assets or pre-generation.
func (f *fixture) manager(publisher interfaces.PregenerationPublisher) *service.SessionManager {
	logger := zap.NewNop()
	filler := service.NewAssetFiller(f.nodes, f.stories, nil, nil, nil, logger)
	cfg := service.SessionConfig{ChapterPoints: 10, EndingBonusPoints: 50, IdleTTL: time.Minute}
	return service.NewSessionManager(f.stories, f.nodes, f.choices, f.progress, f.orchestrator, f.poller, filler, publisher, cfg, logger)
}

func (f *fixture) resolved(key, content string) *models.StoryNode {
	return &models.StoryNode{ID: uuid.New(), StoryID: f.story.ID, NodeKey: key, Content: content}
}

func (f *fixture) placeholder(key string) *models.StoryNode {
	return &models.StoryNode{ID: uuid.New(), StoryID: f.story.ID, NodeKey: key, IsPlaceholder: true}
}

func link(from, to *models.StoryNode, text string, order int) *models.StoryChoice {
	return &models.StoryChoice{
		ID:         uuid.New(),
		FromNodeID: from.ID,
		ToNodeID:   to.ID,
		ChoiceText: text,
		OrderIndex: order,
		IsVisible:  true,
		TargetNode: to,
	}
}

// expectMaterialize accepts n placeholder/choice pairs hanging off from, each
// written in its own transaction.
func (f *fixture) expectMaterialize(from *models.StoryNode, n int) {
	f.tx.On("ExecTx", mock.Anything, mock.Anything).Return(nil).Times(n)
	f.expectBranches(from, n)
}

// expectResolvedInTx accepts the in-place resolution of target and its n
// branches, all written in one transaction.
func (f *fixture) expectResolvedInTx(target *models.StoryNode, n int) {
	f.tx.On("ExecTx", mock.Anything, mock.Anything).Return(nil).Once()
	f.nodes.On("Resolve", mock.MatchedBy(mocks.InTx), target.ID, mock.Anything).Return(true, nil).Once()
	if n > 0 {
		f.expectBranches(target, n)
	}
}

func (f *fixture) expectBranches(from *models.StoryNode, n int) {
	f.nodes.On("Create", mock.MatchedBy(mocks.InTx), mock.MatchedBy(func(p models.NewNodeParams) bool {
		return p.Content == "" && p.StoryID == from.StoryID
	})).Return(func(_ context.Context, p models.NewNodeParams) *models.StoryNode {
		return &models.StoryNode{ID: uuid.New(), StoryID: p.StoryID, NodeKey: p.NodeKey, IsPlaceholder: true, SequenceOrder: p.SequenceOrder}
	}, nil).Times(n)
	f.choices.On("Create", mock.MatchedBy(mocks.InTx), mock.MatchedBy(func(p models.NewChoiceParams) bool {
		return p.FromNodeID == from.ID
	})).Return(func(_ context.Context, p models.NewChoiceParams) *models.StoryChoice {
		return &models.StoryChoice{
			ID:              uuid.New(),
			FromNodeID:      p.FromNodeID,
			ToNodeID:        p.ToNodeID,
			ChoiceText:      p.ChoiceText,
			ConsequenceHint: p.ConsequenceHint,
			OrderIndex:      p.OrderIndex,
			CreatedBy:       p.CreatedBy,
			IsVisible:       true,
		}
	}, nil).Times(n)
	f.nodes.On("SetParentChoice", mock.MatchedBy(mocks.InTx), mock.Anything, mock.Anything).Return(nil).Times(n)
}

func twoChoices(content string) *models.GenerationResult {
	return &models.GenerationResult{
		Content: content,
		Choices: []models.GeneratedChoice{
			{Text: "Open the door", Hint: "risky"},
			{Text: "Wait for dawn"},
		},
	}
}
