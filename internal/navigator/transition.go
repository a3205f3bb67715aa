package navigator

import "github.com/noah-isme/educlass-api/internal/models"

// Transition applies one event to a state. The boolean is false when the event
// is not valid for the current view; the returned state is then unchanged.
func Transition(s State, e Event) (State, bool) {
	switch s.View {
	case ViewAuth:
		if e.Type != EventLogin || e.Identity == nil || !e.Role.Valid() {
			return s, false
		}
		identity := *e.Identity
		if identity.Role == "" {
			identity.Role = e.Role
		}
		if identity.Role != e.Role {
			return s, false
		}
		return State{View: DashboardFor(&identity), Identity: &identity}, true

	case ViewTeacherDashboard:
		switch e.Type {
		case EventCreateBatch:
			if s.Role() != models.RoleTeacher {
				return s, false
			}
			return State{View: ViewBatchCreation, Identity: s.Identity}, true
		case EventStartLiveSession:
			if s.Role() != models.RoleTeacher || e.TargetID == "" {
				return s, false
			}
			return State{View: ViewLiveSession, Identity: s.Identity, ActiveID: e.TargetID}, true
		}

	case ViewStudentDashboard:
		if e.Type == EventJoinLiveSession {
			if s.Role() != models.RoleStudent || e.TargetID == "" {
				return s, false
			}
			return State{View: ViewLiveSession, Identity: s.Identity, ActiveID: e.TargetID}, true
		}

	case ViewBatchCreation:
		switch e.Type {
		case EventBatchCreated:
			if e.Batch == nil {
				return s, false
			}
			return State{View: ViewTeacherDashboard, Identity: s.Identity}, true
		case EventBack:
			return State{View: DashboardFor(s.Identity), Identity: s.Identity}, true
		}

	case ViewLiveSession:
		if e.Type == EventLeave {
			return State{View: DashboardFor(s.Identity), Identity: s.Identity}, true
		}
	}

	return s, false
}
