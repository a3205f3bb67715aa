package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/educlass-api/internal/dto"
	"github.com/noah-isme/educlass-api/internal/models"
	"github.com/noah-isme/educlass-api/internal/observability"
	"github.com/noah-isme/educlass-api/internal/repository"
)

const defaultSessionTitle = "Live Session"

// Session controls accepted by Toggle.
const (
	ControlVideo  = "video"
	ControlAudio  = "audio"
	ControlChat   = "chat"
	ControlScreen = "screen"
)

var (
	// ErrNotInSession indicates the device has not entered the live session.
	ErrNotInSession = errors.New("device is not in the live session")
	// ErrEmptyMessage indicates a chat line with no content left after trimming.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrUnknownControl indicates a control name Toggle does not know.
	ErrUnknownControl = errors.New("unknown session control")
	// ErrControlNotAllowed indicates a control reserved to the teacher.
	ErrControlNotAllowed = errors.New("control not allowed for role")
)

// LiveSessionService keeps the in-memory live session rooms.
type LiveSessionService interface {
	LiveIndicator
	Enter(ctx context.Context, sessionID, deviceID string, identity models.Identity)
	Exit(ctx context.Context, sessionID, deviceID string)
	View(ctx context.Context, sessionID, deviceID string) (dto.LiveSessionResponse, error)
	Toggle(ctx context.Context, sessionID, deviceID, control string) (dto.SessionControls, error)
	SendMessage(ctx context.Context, sessionID, deviceID, text string) (dto.SessionChatMessageResponse, error)
	History(ctx context.Context, sessionID string, limit int) ([]dto.SessionChatMessageResponse, error)
}

type participant struct {
	identity models.Identity
	controls dto.SessionControls
	joinedAt time.Time
}

type room struct {
	id           string
	title        string
	startedAt    time.Time
	participants map[string]*participant
}

type liveSessionService struct {
	mu        sync.RWMutex
	rooms     map[string]*room
	batches   repository.BatchRepository
	chat      repository.SessionChatRepository
	sanitizer *bluemonday.Policy
	now       func() time.Time
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewLiveSessionService creates the room registry. Titles come from batches.
func NewLiveSessionService(batches repository.BatchRepository, chat repository.SessionChatRepository, logger zerolog.Logger) LiveSessionService {
	return &liveSessionService{
		rooms:     make(map[string]*room),
		batches:   batches,
		chat:      chat,
		sanitizer: bluemonday.StrictPolicy(),
		now:       time.Now,
		logger:    logger.With().Str("component", "live_session_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/educlass-api/internal/service/live_session"),
	}
}

// Enter adds the device to the room, opening the room on first entry.
func (s *liveSessionService) Enter(ctx context.Context, sessionID, deviceID string, identity models.Identity) {
	title := s.lookupTitle(ctx, sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[sessionID]
	if !ok {
		r = &room{
			id:           sessionID,
			title:        title,
			startedAt:    s.now(),
			participants: make(map[string]*participant),
		}
		s.rooms[sessionID] = r
		s.logger.Info().Str("session_id", sessionID).Msg("live session opened")
	}

	if existing, ok := r.participants[deviceID]; ok {
		existing.identity = identity
		return
	}

	r.participants[deviceID] = &participant{
		identity: identity,
		controls: dto.SessionControls{VideoOn: true, AudioOn: true, ChatOpen: true},
		joinedAt: s.now(),
	}
	observability.LiveParticipants().Inc()
}

// Exit removes the device and drops the room once empty.
func (s *liveSessionService) Exit(_ context.Context, sessionID, deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[sessionID]
	if !ok {
		return
	}
	if _, ok := r.participants[deviceID]; !ok {
		return
	}

	delete(r.participants, deviceID)
	observability.LiveParticipants().Dec()

	if len(r.participants) == 0 {
		delete(s.rooms, sessionID)
		s.logger.Info().Str("session_id", sessionID).Msg("live session closed")
	}
}

func (s *liveSessionService) IsLive(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[sessionID]
	return ok
}

func (s *liveSessionService) View(_ context.Context, sessionID, deviceID string) (dto.LiveSessionResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, self, err := s.lookup(sessionID, deviceID)
	if err != nil {
		return dto.LiveSessionResponse{}, err
	}

	ordered := make([]*participant, 0, len(r.participants))
	for _, p := range r.participants {
		ordered = append(ordered, p)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].identity.IsTeacher() != ordered[j].identity.IsTeacher() {
			return ordered[i].identity.IsTeacher()
		}
		return ordered[i].joinedAt.Before(ordered[j].joinedAt)
	})

	roster := make([]dto.ParticipantResponse, 0, len(ordered))
	for _, p := range ordered {
		roster = append(roster, dto.ParticipantResponse{
			ID:       p.identity.ID,
			Name:     p.identity.Name,
			Role:     p.identity.Role,
			Controls: p.controls,
		})
	}

	return dto.LiveSessionResponse{
		SessionID:    r.id,
		Title:        r.title,
		StartedAt:    r.startedAt,
		Duration:     formatDuration(s.now().Sub(r.startedAt)),
		Participants: roster,
		Controls:     self.controls,
		Role:         self.identity.Role,
	}, nil
}

func (s *liveSessionService) Toggle(_ context.Context, sessionID, deviceID, control string) (dto.SessionControls, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, self, err := s.lookup(sessionID, deviceID)
	if err != nil {
		return dto.SessionControls{}, err
	}

	switch control {
	case ControlVideo:
		self.controls.VideoOn = !self.controls.VideoOn
	case ControlAudio:
		self.controls.AudioOn = !self.controls.AudioOn
	case ControlChat:
		self.controls.ChatOpen = !self.controls.ChatOpen
	case ControlScreen:
		if !self.identity.IsTeacher() {
			return self.controls, ErrControlNotAllowed
		}
		self.controls.Presenting = !self.controls.Presenting
	default:
		return self.controls, ErrUnknownControl
	}

	return self.controls, nil
}

// SendMessage stores a chat line from a participant. Messages stay in the
// session log; nothing is pushed to other devices.
func (s *liveSessionService) SendMessage(ctx context.Context, sessionID, deviceID, text string) (dto.SessionChatMessageResponse, error) {
	s.mu.RLock()
	_, self, err := s.lookup(sessionID, deviceID)
	var sender models.Identity
	if err == nil {
		sender = self.identity
	}
	s.mu.RUnlock()
	if err != nil {
		return dto.SessionChatMessageResponse{}, err
	}

	clean := strings.TrimSpace(s.sanitizer.Sanitize(strings.TrimSpace(text)))
	if clean == "" {
		return dto.SessionChatMessageResponse{}, ErrEmptyMessage
	}

	spanCtx, span := s.tracer.Start(ctx, "live_session.chat", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("chat.sender_id", sender.ID),
	))
	defer span.End()

	message := models.SessionChatMessage{
		SessionID:  sessionID,
		SenderID:   sender.ID,
		SenderName: sender.Name,
		Content:    clean,
		IsTeacher:  sender.IsTeacher(),
		CreatedAt:  s.now(),
	}
	if err := s.chat.Save(spanCtx, &message); err != nil {
		span.RecordError(err)
		return dto.SessionChatMessageResponse{}, fmt.Errorf("save chat message: %w", err)
	}

	observability.ChatMessages().WithLabelValues(string(sender.Role)).Inc()

	return dto.NewSessionChatMessageResponse(message), nil
}

func (s *liveSessionService) History(ctx context.Context, sessionID string, limit int) ([]dto.SessionChatMessageResponse, error) {
	messages, err := s.chat.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	return dto.NewSessionChatMessageResponseSlice(messages), nil
}

func (s *liveSessionService) lookup(sessionID, deviceID string) (*room, *participant, error) {
	r, ok := s.rooms[sessionID]
	if !ok {
		return nil, nil, ErrNotInSession
	}
	p, ok := r.participants[deviceID]
	if !ok {
		return nil, nil, ErrNotInSession
	}
	return r, p, nil
}

func (s *liveSessionService) lookupTitle(ctx context.Context, sessionID string) string {
	if s.batches == nil {
		return defaultSessionTitle
	}
	batch, err := s.batches.GetByID(ctx, sessionID)
	if err != nil || batch.Name == "" {
		return defaultSessionTitle
	}
	return batch.Name
}

// formatDuration renders elapsed time as zero-padded minutes and seconds.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
