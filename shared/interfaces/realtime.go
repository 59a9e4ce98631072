package interfaces

import (
	"context"

	"nexttale/shared/messaging"
	"nexttale/shared/models"
)

// ChangeFeed delivers row changes from the store.
type ChangeFeed interface {
	// Subscribe returns a stream of matching events. Calling unsubscribe
	// releases the subscription and closes the stream.
	Subscribe(predicate models.ChangePredicate) (events <-chan models.ChangeEvent, unsubscribe func())
}

// InFlightSet is a claim/release guard keyed by string.
//
//go:generate mockery --name InFlightSet --output ./mocks --outpkg mocks --case=underscore
type InFlightSet interface {
	// TryClaim returns false when the key is already claimed.
	TryClaim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// PregenerationPublisher enqueues placeholder pre-generation tasks.
//
//go:generate mockery --name PregenerationPublisher --output ./mocks --outpkg mocks --case=underscore
type PregenerationPublisher interface {
	PublishPregeneration(ctx context.Context, payload messaging.PregenerationTaskPayload) error
}
