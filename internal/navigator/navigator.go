package navigator

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/educlass-api/internal/models"
)

// BatchRegistry receives batches finished on the batch form.
type BatchRegistry interface {
	Create(ctx context.Context, batch *models.Batch) error
}

// Observer is notified after each dispatched event. Implementations must not block.
type Observer interface {
	Transitioned(ctx context.Context, from, to State, event Event)
	Ignored(ctx context.Context, current State, event Event)
}

// Result reports the state after a dispatch and whether the event was applied.
type Result struct {
	State   State `json:"state"`
	Applied bool  `json:"applied"`
}

// Navigator serialises events for one device. It is safe for concurrent use;
// events are applied strictly in the order Dispatch acquires the lock.
type Navigator struct {
	mu        sync.Mutex
	state     State
	registry  BatchRegistry
	observers []Observer
	logger    zerolog.Logger
}

// New creates a navigator in the auth view.
func New(registry BatchRegistry, logger zerolog.Logger, observers ...Observer) *Navigator {
	return &Navigator{
		state:     Initial(),
		registry:  registry,
		observers: observers,
		logger:    logger.With().Str("component", "navigator").Logger(),
	}
}

// State returns a copy of the current state.
func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.clone()
}

// Dispatch applies an event. Events that are not valid for the current view
// are no-ops. An error is only returned when the registry rejects a finished
// batch; the state is left untouched in that case.
func (n *Navigator) Dispatch(ctx context.Context, event Event) (Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	current := n.state
	next, ok := Transition(current, event)
	if !ok {
		n.logger.Debug().
			Str("view", string(current.View)).
			Str("event", string(event.Type)).
			Msg("navigation event ignored")
		for _, observer := range n.observers {
			observer.Ignored(ctx, current.clone(), event)
		}
		return Result{State: current.clone(), Applied: false}, nil
	}

	if event.Type == EventBatchCreated && n.registry != nil {
		batch := *event.Batch
		batch.OwnerID = current.Identity.ID
		if err := n.registry.Create(ctx, &batch); err != nil {
			return Result{State: current.clone()}, fmt.Errorf("append batch to registry: %w", err)
		}
	}

	n.state = next
	n.logger.Debug().
		Str("from", string(current.View)).
		Str("to", string(next.View)).
		Str("event", string(event.Type)).
		Msg("navigation transition")

	for _, observer := range n.observers {
		observer.Transitioned(ctx, current.clone(), next.clone(), event)
	}

	return Result{State: next.clone(), Applied: true}, nil
}
