package dto

import (
	"time"

	"github.com/noah-isme/educlass-api/internal/models"
)

// LoginRequest selects the role to authenticate as.
type LoginRequest struct {
	Role string `json:"role" validate:"required,oneof=teacher student"`
}

// NavigationEventRequest carries a navigation event that needs no collaborator.
type NavigationEventRequest struct {
	Type      string `json:"type" validate:"required,oneof=createBatch back startLiveSession joinLiveSession leave"`
	BatchID   string `json:"batch_id" validate:"omitempty,max=32"`
	SessionID string `json:"session_id" validate:"omitempty,max=32"`
}

// AuthSlice is the persisted authentication state of a device.
type AuthSlice struct {
	User            *models.Identity `json:"user"`
	Token           *string          `json:"token"`
	IsAuthenticated bool             `json:"isAuthenticated"`
}

// PendingOperations reports which initiating controls are currently disabled.
type PendingOperations struct {
	Login       bool `json:"login"`
	BatchSubmit bool `json:"batch_submit"`
}

// NavigatorStateResponse is the view model a client renders.
type NavigatorStateResponse struct {
	DeviceID string            `json:"device_id"`
	View     string            `json:"view"`
	Identity *models.Identity  `json:"identity,omitempty"`
	ActiveID string            `json:"active_id,omitempty"`
	Pending  PendingOperations `json:"pending"`
	Auth     AuthSlice         `json:"auth"`
}

// NavigationResult is returned by every event endpoint.
type NavigationResult struct {
	Applied bool                   `json:"applied"`
	State   NavigatorStateResponse `json:"state"`
}

// LoginResponse adds the issued session token to the navigation result.
type LoginResponse struct {
	NavigationResult
	Token string `json:"token,omitempty"`
}

// TransitionEvent is published to the message bus after each applied transition.
type TransitionEvent struct {
	ID         string    `json:"id"`
	DeviceID   string    `json:"device_id"`
	Event      string    `json:"event"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	IdentityID string    `json:"identity_id,omitempty"`
	Role       string    `json:"role,omitempty"`
	ActiveID   string    `json:"active_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
