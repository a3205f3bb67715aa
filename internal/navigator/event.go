package navigator

import "github.com/noah-isme/educlass-api/internal/models"

// EventType names a navigation event.
type EventType string

const (
	EventLogin            EventType = "login"
	EventCreateBatch      EventType = "createBatch"
	EventBatchCreated     EventType = "batchCreated"
	EventBack             EventType = "back"
	EventStartLiveSession EventType = "startLiveSession"
	EventJoinLiveSession  EventType = "joinLiveSession"
	EventLeave            EventType = "leave"
)

// Event is a single input to the navigator.
type Event struct {
	Type     EventType
	Role     models.Role
	Identity *models.Identity
	Batch    *models.Batch
	TargetID string
}

// Login carries a resolved identity out of the auth screen.
func Login(role models.Role, identity models.Identity) Event {
	return Event{Type: EventLogin, Role: role, Identity: &identity}
}

// CreateBatch opens the batch form.
func CreateBatch() Event {
	return Event{Type: EventCreateBatch}
}

// BatchCreated reports a finished batch form.
func BatchCreated(batch models.Batch) Event {
	return Event{Type: EventBatchCreated, Batch: &batch}
}

// Back leaves the batch form.
func Back() Event {
	return Event{Type: EventBack}
}

// StartLiveSession opens a teacher's live session for a batch.
func StartLiveSession(batchID string) Event {
	return Event{Type: EventStartLiveSession, TargetID: batchID}
}

// JoinLiveSession joins a live session as a student.
func JoinLiveSession(sessionID string) Event {
	return Event{Type: EventJoinLiveSession, TargetID: sessionID}
}

// Leave exits the live session.
func Leave() Event {
	return Event{Type: EventLeave}
}
