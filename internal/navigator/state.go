// Package navigator implements the per-device view state machine: exactly one
// screen is active at a time and every event is either a transition from the
// fixed table or a no-op.
package navigator

import (
	"errors"
	"slices"

	"github.com/noah-isme/educlass-api/internal/models"
)

// View names a screen.
type View string

const (
	ViewAuth             View = "auth"
	ViewTeacherDashboard View = "teacher-dashboard"
	ViewStudentDashboard View = "student-dashboard"
	ViewBatchCreation    View = "batch-creation"
	ViewLiveSession      View = "live-session"
)

// Views lists every screen in a stable order.
var Views = []View{ViewAuth, ViewTeacherDashboard, ViewStudentDashboard, ViewBatchCreation, ViewLiveSession}

var (
	errIdentityMismatch = errors.New("identity must be present exactly when the view is not auth")
	errMissingActiveID  = errors.New("live session requires an identity and an active batch or session id")
	errStrayActiveID    = errors.New("active id is only set while in a live session")
	errUnknownView      = errors.New("unknown view")
)

// State is the navigator context: the active view plus the minimal data it needs.
type State struct {
	View     View             `json:"view"`
	Identity *models.Identity `json:"identity,omitempty"`
	ActiveID string           `json:"active_id,omitempty"`
}

// Initial returns the state every navigator starts in.
func Initial() State {
	return State{View: ViewAuth}
}

// Validate checks the structural invariants of the state.
func (s State) Validate() error {
	if !slices.Contains(Views, s.View) {
		return errUnknownView
	}
	if (s.View == ViewAuth) != (s.Identity == nil) {
		return errIdentityMismatch
	}
	if s.View == ViewLiveSession {
		if s.Identity == nil || s.ActiveID == "" {
			return errMissingActiveID
		}
	} else if s.ActiveID != "" {
		return errStrayActiveID
	}
	return nil
}

// Role returns the role of the held identity, or empty in Auth.
func (s State) Role() models.Role {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.Role
}

func (s State) clone() State {
	out := s
	if s.Identity != nil {
		identity := *s.Identity
		out.Identity = &identity
	}
	return out
}

// DashboardFor is the home screen of an identity. Returning home is always
// derived from the role, never from the previously active view.
func DashboardFor(identity *models.Identity) View {
	if identity != nil && identity.Role == models.RoleTeacher {
		return ViewTeacherDashboard
	}
	return ViewStudentDashboard
}
