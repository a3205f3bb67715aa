package dto

import (
	"time"

	"github.com/noah-isme/educlass-api/internal/models"
)

// ChatTimestampLayout renders chat timestamps as hour and minute, e.g. "2:03 PM".
const ChatTimestampLayout = "3:04 PM"

// SessionControls are the per-participant toggles of the live session screen.
type SessionControls struct {
	VideoOn    bool `json:"video_on"`
	AudioOn    bool `json:"audio_on"`
	ChatOpen   bool `json:"chat_open"`
	Presenting bool `json:"presenting"`
}

// ParticipantResponse is one entry of the live session roster.
type ParticipantResponse struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Role     models.Role     `json:"role"`
	Controls SessionControls `json:"controls"`
}

// LiveSessionResponse is the live session screen.
type LiveSessionResponse struct {
	SessionID    string                `json:"session_id"`
	Title        string                `json:"title"`
	StartedAt    time.Time             `json:"started_at"`
	Duration     string                `json:"duration"`
	Participants []ParticipantResponse `json:"participants"`
	Controls     SessionControls       `json:"controls"`
	Role         models.Role           `json:"role"`
}

// SessionChatSendRequest posts a chat line.
type SessionChatSendRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

// SessionChatMessageResponse is the serialized representation of a chat line.
type SessionChatMessageResponse struct {
	ID        uint      `json:"id"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Timestamp string    `json:"timestamp"`
	IsTeacher bool      `json:"is_teacher"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSessionChatMessageResponse converts a model into a DTO.
func NewSessionChatMessageResponse(message models.SessionChatMessage) SessionChatMessageResponse {
	return SessionChatMessageResponse{
		ID:        message.ID,
		Sender:    message.SenderName,
		Message:   message.Content,
		Timestamp: message.CreatedAt.Local().Format(ChatTimestampLayout),
		IsTeacher: message.IsTeacher,
		CreatedAt: message.CreatedAt,
	}
}

// NewSessionChatMessageResponseSlice converts a slice of models into DTOs.
func NewSessionChatMessageResponseSlice(messages []models.SessionChatMessage) []SessionChatMessageResponse {
	out := make([]SessionChatMessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewSessionChatMessageResponse(message))
	}
	return out
}
