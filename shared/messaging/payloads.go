package messaging

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// PregenerationTaskPayload asks a worker to resolve one placeholder node ahead of the reader.
type PregenerationTaskPayload struct {
	TaskID          string `json:"taskId"`
	UserID          string `json:"userId"`
	StoryID         string `json:"storyId"`
	ChoiceID        string `json:"choiceId"`
	NodeID          string `json:"nodeId"`
	PreviousContent string `json:"previousContent,omitempty"`
}

// PregenerationQueueArgs are the queue arguments both sides declare with.
func PregenerationQueueArgs() amqp.Table {
	return amqp.Table{
		"x-queue-mode":              "lazy",
		"x-dead-letter-exchange":    PregenerationDLXName,
		"x-dead-letter-routing-key": PregenerationDLQKey,
	}
}
