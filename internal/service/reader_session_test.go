package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"nexttale/internal/service"
	"nexttale/shared/interfaces/mocks"
	"nexttale/shared/messaging"
	"nexttale/shared/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// storyGraph is start -> (left: resolved middle, right: placeholder).
type storyGraph struct {
	start, middle, pending *models.StoryNode
	left, right            *models.StoryChoice
	onward                 *models.StoryChoice
}

func (f *fixture) graph() *storyGraph {
	g := &storyGraph{
		start:   f.resolved(models.StartNodeKey, "The lamp flickers."),
		middle:  f.resolved("node_middle", "You climb the stairs."),
		pending: f.placeholder("node_pending"),
	}
	g.left = link(g.start, g.middle, "Climb", 0)
	g.right = link(g.start, g.pending, "Descend", 1)
	g.onward = link(g.middle, f.placeholder("node_top"), "Look out", 0)
	return g
}

// openFresh opens a session for a reader without saved progress.
func (f *fixture) openFresh(t *testing.T, m *service.SessionManager, g *storyGraph) *service.ReaderSession {
	t.Helper()
	f.stories.On("GetByID", mock.Anything, f.story.ID).Return(f.story, nil).Once()
	f.progress.On("Get", mock.Anything, f.userID, f.story.ID).Return(nil, models.ErrNotFound).Once()
	f.nodes.On("GetByKey", mock.Anything, f.story.ID, models.StartNodeKey).Return(g.start, nil)
	f.choices.On("ListByNode", mock.Anything, g.start.ID).Return([]*models.StoryChoice{g.left, g.right}, nil)

	sess, err := m.Open(f.ctx, f.story.ID)
	require.NoError(t, err)
	return sess
}

func (f *fixture) expectProgress(node *models.StoryNode, path []string, points int) {
	f.progress.On("Save", mock.Anything, mock.MatchedBy(func(p *models.ReaderProgress) bool {
		return p.UserID == f.userID && p.CurrentNodeID == node.ID && assert.ObjectsAreEqual(path, p.PathTaken) && p.IsCompleted == node.IsEnding
	})).Return(nil).Once()
	f.progress.On("AddReading", mock.Anything, f.userID, f.story.ID, 1, points).Return(nil).Once()
}

func TestReaderSessionOpen(t *testing.T) {
	t.Run("Fresh reader starts at the start node", func(t *testing.T) {
		f := newFixture(t)
		g := f.graph()

		sess := f.openFresh(t, f.manager(nil), g)
		state := sess.Snapshot()

		assert.Equal(t, []string{models.StartNodeKey}, state.PathTaken)
		require.Len(t, state.Chapters, 1)
		assert.Equal(t, g.start.ID, state.Chapters[0].Node.ID)
		assert.Len(t, state.Chapters[0].Choices, 2)
		assert.Nil(t, state.Chapters[0].SelectedChoiceID)
		assert.False(t, state.Loading)
	})

	t.Run("Story without a start node gets an opening chapter", func(t *testing.T) {
		f := newFixture(t)
		start := f.resolved(models.StartNodeKey, "Generated opening.")
		f.stories.On("GetByID", mock.Anything, f.story.ID).Return(f.story, nil).Once()
		f.progress.On("Get", mock.Anything, f.userID, f.story.ID).Return(nil, models.ErrNotFound).Once()
		f.nodes.On("GetByKey", mock.Anything, f.story.ID, models.StartNodeKey).Return(nil, models.ErrNotFound).Once()
		f.stories.On("UpdateGenerationStatus", mock.Anything, f.story.ID, mock.Anything, mock.Anything).Return(nil).Twice()
		f.gen.On("GenerateStory", mock.Anything, mock.Anything).Return(twoChoices("Generated opening."), nil).Once()
		f.tx.On("ExecTx", mock.Anything, mock.Anything).Return(nil).Once()
		f.nodes.On("Create", mock.Anything, mock.MatchedBy(func(p models.NewNodeParams) bool { return p.NodeKey == models.StartNodeKey })).Return(start, nil).Once()
		f.expectBranches(start, 2)

		sess, err := f.manager(nil).Open(f.ctx, f.story.ID)

		require.NoError(t, err)
		state := sess.Snapshot()
		require.Len(t, state.Chapters, 1)
		assert.Equal(t, "Generated opening.", state.Chapters[0].Node.Content)
		assert.Len(t, state.Chapters[0].Choices, 2)
	})

	t.Run("Saved path is replayed", func(t *testing.T) {
		f := newFixture(t)
		g := f.graph()
		f.stories.On("GetByID", mock.Anything, f.story.ID).Return(f.story, nil).Once()
		f.progress.On("Get", mock.Anything, f.userID, f.story.ID).Return(&models.ReaderProgress{
			UserID: f.userID, StoryID: f.story.ID, CurrentNodeID: g.middle.ID,
			PathTaken: []string{models.StartNodeKey, g.middle.NodeKey},
		}, nil).Once()
		f.nodes.On("GetByKey", mock.Anything, f.story.ID, models.StartNodeKey).Return(g.start, nil).Once()
		f.nodes.On("GetByKey", mock.Anything, f.story.ID, g.middle.NodeKey).Return(g.middle, nil).Once()
		f.choices.On("ListByNode", mock.Anything, g.start.ID).Return([]*models.StoryChoice{g.left, g.right}, nil).Once()
		f.choices.On("ListByNode", mock.Anything, g.middle.ID).Return([]*models.StoryChoice{g.onward}, nil).Once()

		sess, err := f.manager(nil).Open(f.ctx, f.story.ID)

		require.NoError(t, err)
		state := sess.Snapshot()
		assert.Equal(t, []string{models.StartNodeKey, "node_middle"}, state.PathTaken)
		require.Len(t, state.Chapters, 2)
		require.NotNil(t, state.Chapters[0].SelectedChoiceID)
		assert.Equal(t, g.left.ID, *state.Chapters[0].SelectedChoiceID)
		assert.Nil(t, state.Chapters[1].SelectedChoiceID)
	})

	t.Run("Unreplayable path falls back to the start", func(t *testing.T) {
		f := newFixture(t)
		g := f.graph()
		f.progress.On("Get", mock.Anything, f.userID, f.story.ID).Return(&models.ReaderProgress{
			PathTaken: []string{models.StartNodeKey, "node_deleted"},
		}, nil).Once()
		f.nodes.On("GetByKey", mock.Anything, f.story.ID, "node_deleted").Return(nil, models.ErrNotFound).Once()
		f.stories.On("GetByID", mock.Anything, f.story.ID).Return(f.story, nil).Once()
		f.nodes.On("GetByKey", mock.Anything, f.story.ID, models.StartNodeKey).Return(g.start, nil)
		f.choices.On("ListByNode", mock.Anything, g.start.ID).Return([]*models.StoryChoice{g.left, g.right}, nil)

		sess, err := f.manager(nil).Open(f.ctx, f.story.ID)

		require.NoError(t, err)
		assert.Equal(t, []string{models.StartNodeKey}, sess.Snapshot().PathTaken)
	})

	t.Run("Requires an authenticated reader", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.manager(nil).Open(context.Background(), f.story.ID)

		assert.ErrorIs(t, err, models.ErrNotAuthenticated)
	})
}

func TestReaderSessionSelectChoice(t *testing.T) {
	t.Run("Resolved target is appended directly", func(t *testing.T) {
		f := newFixture(t)
		g := f.graph()
		sess := f.openFresh(t, f.manager(nil), g)
		events, unsubscribe := sess.Subscribe()
		defer unsubscribe()

		f.nodes.On("GetByID", mock.Anything, g.middle.ID).Return(g.middle, nil).Once()
		f.choices.On("ListByNode", mock.Anything, g.middle.ID).Return([]*models.StoryChoice{g.onward}, nil).Once()
		f.expectProgress(g.middle, []string{models.StartNodeKey, "node_middle"}, 10)

		res, err := sess.SelectChoice(f.ctx, 0, g.left.ID)

		require.NoError(t, err)
		assert.Equal(t, models.OutcomeDirect, res.Outcome)
		assert.Equal(t, []string{models.StartNodeKey, "node_middle"}, res.State.PathTaken)
		require.Len(t, res.State.Chapters, 2)
		assert.Equal(t, g.left.ID, *res.State.Chapters[0].SelectedChoiceID)
		f.gen.AssertNotCalled(t, "GenerateStory", mock.Anything, mock.Anything)

		first := <-events
		assert.Equal(t, models.EventNarrationStopped, first.Type)
		var appended bool
		for len(events) > 0 {
			if ev := <-events; ev.Type == models.EventChapterAppended {
				appended = true
				assert.Equal(t, 1, ev.ChapterIndex)
			}
		}
		assert.True(t, appended)
	})

	t.Run("Selection on an already selected chapter is ignored", func(t *testing.T) {
		f := newFixture(t)
		g := f.graph()
		sess := f.openFresh(t, f.manager(nil), g)
		f.nodes.On("GetByID", mock.Anything, g.middle.ID).Return(g.middle, nil).Once()
		f.choices.On("ListByNode", mock.Anything, g.middle.ID).Return([]*models.StoryChoice{g.onward}, nil).Once()
		f.expectProgress(g.middle, []string{models.StartNodeKey, "node_middle"}, 10)
		_, err := sess.SelectChoice(f.ctx, 0, g.left.ID)
		require.NoError(t, err)

		res, err := sess.SelectChoice(f.ctx, 0, g.right.ID)

		require.NoError(t, err)
		assert.Equal(t, models.OutcomeIgnored, res.Outcome)
		assert.Len(t, res.State.Chapters, 2)
		f.progress.AssertNumberOfCalls(t, "Save", 1)
	})

	t.Run("Unknown chapter or choice", func(t *testing.T) {
		f := newFixture(t)
		sess := f.openFresh(t, f.manager(nil), f.graph())

		_, err := sess.SelectChoice(f.ctx, 3, uuid.New())
		assert.ErrorIs(t, err, service.ErrInvalidChapter)

		_, err = sess.SelectChoice(f.ctx, 0, uuid.New())
		assert.ErrorIs(t, err, service.ErrChoiceNotFound)
		assert.Nil(t, sess.Snapshot().Chapters[0].SelectedChoiceID)
	})

	t.Run("Placeholder resolved by a worker while polling", func(t *testing.T) {
		f := newFixture(t)
		g := f.graph()
		sess := f.openFresh(t, f.manager(nil), g)
		filled := *g.pending
		filled.Content = "The cellar is flooded."
		filled.IsPlaceholder = false
		next := link(&filled, f.placeholder("node_deep"), "Swim", 0)

		f.nodes.On("GetByID", mock.Anything, g.pending.ID).Return(g.pending, nil).Twice()
		f.nodes.On("GetByID", mock.Anything, g.pending.ID).Return(&filled, nil).Once()
		f.choices.On("ListByNode", mock.Anything, g.pending.ID).Return([]*models.StoryChoice{next}, nil).Once()
		f.expectProgress(&filled, []string{models.StartNodeKey, "node_pending"}, 10)

		res, err := sess.SelectChoice(f.ctx, 0, g.right.ID)

		require.NoError(t, err)
		assert.Equal(t, models.OutcomeServerResolved, res.Outcome)
		assert.Equal(t, "The cellar is flooded.", res.State.Chapters[1].Node.Content)
		f.gen.AssertNotCalled(t, "GenerateStory", mock.Anything, mock.Anything)
	})

	t.Run("Poll timeout falls back to generation", func(t *testing.T) {
		f := newFixture(t)
		g := f.graph()
		sess := f.openFresh(t, f.manager(nil), g)

		f.nodes.On("GetByID", mock.Anything, g.pending.ID).Return(g.pending, nil)
		f.gen.On("GenerateStory", mock.Anything, mock.MatchedBy(func(req models.GenerationRequest) bool {
			return req.UserChoice == "Descend" && req.PreviousContent == "The lamp flickers."
		})).Return(twoChoices("Water up to your knees."), nil).Once()
		f.expectResolvedInTx(g.pending, 2)
		f.progress.On("Save", mock.Anything, mock.Anything).Return(nil).Once()
		f.progress.On("AddReading", mock.Anything, f.userID, f.story.ID, 1, 10).Return(nil).Once()

		res, err := sess.SelectChoice(f.ctx, 0, g.right.ID)

		require.NoError(t, err)
		assert.Equal(t, models.OutcomeClientResolved, res.Outcome)
		assert.Equal(t, []string{models.StartNodeKey, "node_pending"}, res.State.PathTaken)
		require.Len(t, res.State.Chapters, 2)
		assert.Equal(t, "Water up to your knees.", res.State.Chapters[1].Node.Content)
		assert.Len(t, res.State.Chapters[1].Choices, 2)
	})

	t.Run("Failed generation rolls the selection back", func(t *testing.T) {
		f := newFixture(t)
		g := f.graph()
		sess := f.openFresh(t, f.manager(nil), g)
		events, unsubscribe := sess.Subscribe()
		defer unsubscribe()

		f.nodes.On("GetByID", mock.Anything, g.pending.ID).Return(g.pending, nil)
		f.gen.On("GenerateStory", mock.Anything, mock.Anything).Return(&models.GenerationResult{Content: "Dead end."}, nil).Once()

		_, err := sess.SelectChoice(f.ctx, 0, g.right.ID)

		assert.ErrorIs(t, err, models.ErrNoChoicesProvided)
		state := sess.Snapshot()
		assert.Len(t, state.Chapters, 1)
		assert.Nil(t, state.Chapters[0].SelectedChoiceID)
		assert.Equal(t, []string{models.StartNodeKey}, state.PathTaken)
		f.progress.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)

		var failed *models.SessionEvent
		for len(events) > 0 {
			if ev := <-events; ev.Type == models.EventTransitionFailed {
				failed = &ev
			}
		}
		require.NotNil(t, failed)
		assert.False(t, failed.Retryable)

		// The same choice can be selected again.
		f.gen.On("GenerateStory", mock.Anything, mock.Anything).Return(twoChoices("Second try."), nil).Once()
		f.expectResolvedInTx(g.pending, 2)
		f.progress.On("Save", mock.Anything, mock.Anything).Return(nil).Once()
		f.progress.On("AddReading", mock.Anything, f.userID, f.story.ID, 1, 10).Return(nil).Once()

		res, err := sess.SelectChoice(f.ctx, 0, g.right.ID)

		require.NoError(t, err)
		assert.Equal(t, models.OutcomeClientResolved, res.Outcome)
	})

	t.Run("Reaching an ending adds the bonus and completes", func(t *testing.T) {
		f := newFixture(t)
		g := f.graph()
		sess := f.openFresh(t, f.manager(nil), g)
		ending := *g.middle
		ending.IsEnding = true

		f.nodes.On("GetByID", mock.Anything, g.middle.ID).Return(&ending, nil).Once()
		f.expectProgress(&ending, []string{models.StartNodeKey, "node_middle"}, 60)

		res, err := sess.SelectChoice(f.ctx, 0, g.left.ID)

		require.NoError(t, err)
		assert.Empty(t, res.State.Chapters[1].Choices)
		f.choices.AssertNotCalled(t, "ListByNode", mock.Anything, g.middle.ID)
	})

	t.Run("Resolved node without choices gets them generated", func(t *testing.T) {
		f := newFixture(t)
		g := f.graph()
		sess := f.openFresh(t, f.manager(nil), g)

		f.nodes.On("GetByID", mock.Anything, g.middle.ID).Return(g.middle, nil).Once()
		f.choices.On("ListByNode", mock.Anything, g.middle.ID).Return([]*models.StoryChoice{}, nil).Twice()
		f.gen.On("GenerateStory", mock.Anything, mock.MatchedBy(func(req models.GenerationRequest) bool {
			return req.PreviousContent == g.middle.Content && req.UserChoice == ""
		})).Return(twoChoices("unused"), nil).Once()
		f.expectMaterialize(g.middle, 2)
		f.expectProgress(g.middle, []string{models.StartNodeKey, "node_middle"}, 10)

		res, err := sess.SelectChoice(f.ctx, 0, g.left.ID)

		require.NoError(t, err)
		assert.Equal(t, models.OutcomeDirect, res.Outcome)
		assert.Len(t, res.State.Chapters[1].Choices, 2)
	})

	t.Run("Placeholder targets are queued for pre-generation", func(t *testing.T) {
		f := newFixture(t)
		g := f.graph()
		publisher := mocks.NewPregenerationPublisher(t)
		sess := f.openFreshWithPublisher(t, publisher, g)

		f.nodes.On("GetByID", mock.Anything, g.middle.ID).Return(g.middle, nil).Once()
		f.choices.On("ListByNode", mock.Anything, g.middle.ID).Return([]*models.StoryChoice{g.onward}, nil).Once()
		f.expectProgress(g.middle, []string{models.StartNodeKey, "node_middle"}, 10)
		publisher.On("PublishPregeneration", mock.Anything, mock.MatchedBy(func(p messaging.PregenerationTaskPayload) bool {
			return p.ChoiceID == g.onward.ID.String() && p.NodeID == g.onward.ToNodeID.String() && p.UserID == f.userID.String()
		})).Return(nil).Once()

		_, err := sess.SelectChoice(f.ctx, 0, g.left.ID)

		require.NoError(t, err)
	})
}

func (f *fixture) openFreshWithPublisher(t *testing.T, publisher *mocks.PregenerationPublisher, g *storyGraph) *service.ReaderSession {
	t.Helper()
	// The start chapter offers one placeholder target.
	publisher.On("PublishPregeneration", mock.Anything, mock.MatchedBy(func(p messaging.PregenerationTaskPayload) bool {
		return p.NodeID == g.pending.ID.String()
	})).Return(nil).Once()
	return f.openFresh(t, f.manager(publisher), g)
}

func TestReaderSessionCustomChoice(t *testing.T) {
	f := newFixture(t)
	g := f.graph()
	sess := f.openFresh(t, f.manager(nil), g)

	f.expectMaterialize(g.start, 1)
	f.gen.On("GenerateStory", mock.Anything, mock.MatchedBy(func(req models.GenerationRequest) bool {
		return req.UserChoice == "Set the lamp on fire"
	})).Return(&models.GenerationResult{Content: "The tower burns.", IsEnding: true, EndingType: "fire"}, nil).Once()
	f.tx.On("ExecTx", mock.Anything, mock.Anything).Return(nil).Once()
	f.nodes.On("Resolve", mock.MatchedBy(mocks.InTx), mock.Anything, mock.MatchedBy(func(r models.NodeResolution) bool {
		return r.IsEnding && r.Content == "The tower burns."
	})).Return(true, nil).Once()
	f.progress.On("Save", mock.Anything, mock.MatchedBy(func(p *models.ReaderProgress) bool { return p.IsCompleted })).Return(nil).Once()
	f.progress.On("AddReading", mock.Anything, f.userID, f.story.ID, 1, 60).Return(nil).Once()

	res, err := sess.SelectCustomChoice(f.ctx, 0, "Set the lamp on fire")

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeClientResolved, res.Outcome)
	require.Len(t, res.State.Chapters, 2)
	first := res.State.Chapters[0]
	require.Len(t, first.Choices, 3)
	custom := first.Choices[2]
	assert.Equal(t, "Set the lamp on fire", custom.ChoiceText)
	assert.Equal(t, 2, custom.OrderIndex)
	assert.Equal(t, f.userID, *custom.CreatedBy)
	assert.Equal(t, custom.ID, *first.SelectedChoiceID)
	assert.True(t, res.State.Chapters[1].Node.IsEnding)
	f.nodes.AssertNotCalled(t, "GetByID", mock.Anything, custom.ToNodeID)

	_, err = sess.SelectCustomChoice(f.ctx, 1, "Keep going")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestReaderSessionRestart(t *testing.T) {
	f := newFixture(t)
	g := f.graph()
	sess := f.openFresh(t, f.manager(nil), g)
	ending := *g.middle
	ending.IsEnding = true
	f.nodes.On("GetByID", mock.Anything, g.middle.ID).Return(&ending, nil).Once()
	f.expectProgress(&ending, []string{models.StartNodeKey, "node_middle"}, 60)
	_, err := sess.SelectChoice(f.ctx, 0, g.left.ID)
	require.NoError(t, err)

	f.progress.On("Save", mock.Anything, mock.MatchedBy(func(p *models.ReaderProgress) bool {
		return p.CurrentNodeID == g.start.ID && assert.ObjectsAreEqual([]string{models.StartNodeKey}, p.PathTaken) && !p.IsCompleted
	})).Return(nil).Once()

	state, err := sess.Restart(f.ctx)

	require.NoError(t, err)
	assert.Equal(t, []string{models.StartNodeKey}, state.PathTaken)
	require.Len(t, state.Chapters, 1)
	assert.Nil(t, state.Chapters[0].SelectedChoiceID)
	f.progress.AssertNumberOfCalls(t, "AddReading", 1)
}

// openAtTop resumes a reader at start -> middle -> top, where top is an ending.
func (f *fixture) openAtTop(t *testing.T, g *storyGraph) *service.ReaderSession {
	t.Helper()
	top := f.resolved("node_top", "The sea is full of lights.")
	top.IsEnding = true
	climb := link(g.middle, top, "Look out", 0)

	f.stories.On("GetByID", mock.Anything, f.story.ID).Return(f.story, nil).Once()
	f.progress.On("Get", mock.Anything, f.userID, f.story.ID).Return(&models.ReaderProgress{
		UserID: f.userID, StoryID: f.story.ID, CurrentNodeID: top.ID,
		PathTaken: []string{models.StartNodeKey, g.middle.NodeKey, top.NodeKey},
	}, nil).Once()
	f.nodes.On("GetByKey", mock.Anything, f.story.ID, models.StartNodeKey).Return(g.start, nil)
	f.nodes.On("GetByKey", mock.Anything, f.story.ID, g.middle.NodeKey).Return(g.middle, nil).Once()
	f.nodes.On("GetByKey", mock.Anything, f.story.ID, top.NodeKey).Return(top, nil).Once()
	f.choices.On("ListByNode", mock.Anything, g.start.ID).Return([]*models.StoryChoice{g.left, g.right}, nil)
	f.choices.On("ListByNode", mock.Anything, g.middle.ID).Return([]*models.StoryChoice{climb}, nil)

	sess, err := f.manager(nil).Open(f.ctx, f.story.ID)
	require.NoError(t, err)
	require.Len(t, sess.Snapshot().Chapters, 3)
	return sess
}

func TestReaderSessionLoadNode(t *testing.T) {
	t.Run("Keys off the reader's path are rejected", func(t *testing.T) {
		f := newFixture(t)
		g := f.graph()
		sess := f.openFresh(t, f.manager(nil), g)

		state, err := sess.LoadNode(f.ctx, "node_middle")

		assert.ErrorIs(t, err, models.ErrInvalidInput)
		assert.Equal(t, []string{models.StartNodeKey}, state.PathTaken)
		require.Len(t, state.Chapters, 1)
		assert.Equal(t, g.start.ID, state.Chapters[0].Node.ID)
		f.nodes.AssertNotCalled(t, "GetByKey", mock.Anything, f.story.ID, "node_middle")
		f.progress.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("Earlier node on the path rewinds to it", func(t *testing.T) {
		f := newFixture(t)
		g := f.graph()
		sess := f.openAtTop(t, g)
		events, unsubscribe := sess.Subscribe()
		defer unsubscribe()

		f.nodes.On("GetByKey", mock.Anything, f.story.ID, g.middle.NodeKey).Return(g.middle, nil).Once()
		f.progress.On("Save", mock.Anything, mock.MatchedBy(func(p *models.ReaderProgress) bool {
			return p.CurrentNodeID == g.middle.ID && assert.ObjectsAreEqual([]string{models.StartNodeKey, "node_middle"}, p.PathTaken) && !p.IsCompleted
		})).Return(nil).Once()

		state, err := sess.LoadNode(f.ctx, " node_middle ")

		require.NoError(t, err)
		assert.Equal(t, []string{models.StartNodeKey, "node_middle"}, state.PathTaken)
		require.Len(t, state.Chapters, 2)
		require.NotNil(t, state.Chapters[0].SelectedChoiceID)
		assert.Equal(t, g.left.ID, *state.Chapters[0].SelectedChoiceID)
		assert.Nil(t, state.Chapters[1].SelectedChoiceID)
		f.progress.AssertNotCalled(t, "AddReading", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

		var reset *models.SessionEvent
		for len(events) > 0 {
			if ev := <-events; ev.Type == models.EventSessionReset {
				reset = &ev
			}
		}
		require.NotNil(t, reset)
		assert.Equal(t, 1, reset.ChapterIndex)
	})

	t.Run("Failure leaves the session untouched", func(t *testing.T) {
		f := newFixture(t)
		g := f.graph()
		sess := f.openAtTop(t, g)
		f.nodes.On("GetByKey", mock.Anything, f.story.ID, g.middle.NodeKey).Return(nil, errors.New("connection reset")).Once()

		state, err := sess.LoadNode(f.ctx, "node_middle")

		require.Error(t, err)
		assert.Equal(t, []string{models.StartNodeKey, "node_middle", "node_top"}, state.PathTaken)
		assert.Len(t, state.Chapters, 3)
		f.progress.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestReaderSessionCoverComesFromStart(t *testing.T) {
	f := newFixture(t)
	g := f.graph()
	images := mocks.NewImageGenerator(t)
	filler := service.NewAssetFiller(f.nodes, f.stories, images, nil, nil, zap.NewNop())
	m := service.NewSessionManager(f.stories, f.nodes, f.choices, f.progress, f.orchestrator, f.poller, filler, nil,
		service.SessionConfig{ChapterPoints: 10, EndingBonusPoints: 50, IdleTTL: time.Minute}, zap.NewNop())
	prompted := func(content string) interface{} {
		return mock.MatchedBy(func(r models.ImageRequest) bool { return r.Prompt == content })
	}

	images.On("GenerateImage", mock.Anything, prompted(g.start.Content)).Return("https://cdn/start.png", nil).Once()
	f.nodes.On("SetImage", mock.Anything, g.start.ID, "https://cdn/start.png", mock.Anything).Return(nil).Once()
	f.stories.On("SetCoverImageIfEmpty", mock.Anything, f.story.ID, "https://cdn/start.png").Return(true, nil).Once()
	sess := f.openFresh(t, m, g)
	filler.Wait()

	images.On("GenerateImage", mock.Anything, prompted(g.middle.Content)).Return("https://cdn/middle.png", nil).Once()
	f.nodes.On("SetImage", mock.Anything, g.middle.ID, "https://cdn/middle.png", mock.Anything).Return(nil).Once()
	f.nodes.On("GetByID", mock.Anything, g.middle.ID).Return(g.middle, nil).Once()
	f.choices.On("ListByNode", mock.Anything, g.middle.ID).Return([]*models.StoryChoice{g.onward}, nil).Once()
	f.expectProgress(g.middle, []string{models.StartNodeKey, "node_middle"}, 10)

	_, err := sess.SelectChoice(f.ctx, 0, g.left.ID)
	require.NoError(t, err)
	filler.Wait()

	f.stories.AssertNotCalled(t, "SetCoverImageIfEmpty", mock.Anything, f.story.ID, "https://cdn/middle.png")
}
