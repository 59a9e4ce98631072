package models

import "github.com/google/uuid"

// Chapter pairs a node with its choices and the reader's per-chapter state.
type Chapter struct {
	Node             *StoryNode     `json:"node"`
	Choices          []*StoryChoice `json:"choices"`
	SelectedChoiceID *uuid.UUID     `json:"selectedChoiceId,omitempty"`
	ImageGenerating  bool           `json:"imageGenerating"`
	VideoGenerating  bool           `json:"videoGenerating"`
}

// FindChoice returns the chapter's choice with the given id, or nil.
func (c *Chapter) FindChoice(id uuid.UUID) *StoryChoice {
	for _, ch := range c.Choices {
		if ch.ID == id {
			return ch
		}
	}
	return nil
}

// Clone copies the chapter so callers can read it without holding the session lock.
func (c *Chapter) Clone() Chapter {
	out := Chapter{
		ImageGenerating: c.ImageGenerating,
		VideoGenerating: c.VideoGenerating,
	}
	if c.Node != nil {
		node := *c.Node
		out.Node = &node
	}
	if c.SelectedChoiceID != nil {
		id := *c.SelectedChoiceID
		out.SelectedChoiceID = &id
	}
	out.Choices = make([]*StoryChoice, 0, len(c.Choices))
	for _, ch := range c.Choices {
		cp := *ch
		if ch.TargetNode != nil {
			target := *ch.TargetNode
			cp.TargetNode = &target
		}
		out.Choices = append(out.Choices, &cp)
	}
	return out
}

// TransitionState is a step of a single choice follow-through.
type TransitionState string

const (
	TransitionSelected   TransitionState = "selected"
	TransitionPolling    TransitionState = "polling"
	TransitionGenerating TransitionState = "generating"
	TransitionAppended   TransitionState = "appended"
	TransitionFailed     TransitionState = "failed"
)

// TransitionOutcome says how a selection ended.
type TransitionOutcome string

const (
	OutcomeIgnored        TransitionOutcome = "ignored"
	OutcomeDirect         TransitionOutcome = "direct"
	OutcomeServerResolved TransitionOutcome = "server_resolved"
	OutcomeClientResolved TransitionOutcome = "client_resolved"
)

// SessionState is a point-in-time snapshot of a reader session.
type SessionState struct {
	StoryID   uuid.UUID `json:"storyId"`
	Chapters  []Chapter `json:"chapters"`
	PathTaken []string  `json:"pathTaken"`
	Loading   bool      `json:"loading"`
}

// TransitionResult is returned by choice selection.
type TransitionResult struct {
	Outcome TransitionOutcome `json:"outcome"`
	State   SessionState      `json:"state"`
}
