package dto

import (
	"time"

	"github.com/noah-isme/educlass-api/internal/invite"
	"github.com/noah-isme/educlass-api/internal/models"
)

// BatchCreateRequest is the batch creation form.
type BatchCreateRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	Subject     string `json:"subject" validate:"required,max=64"`
	Grade       string `json:"grade" validate:"required,max=16"`
	Capacity    string `json:"capacity" validate:"omitempty,number"`
}

// BatchResponse is the serialized representation of a batch.
type BatchResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Subject        string    `json:"subject"`
	Grade          string    `json:"grade"`
	Capacity       *int      `json:"capacity"`
	InviteCode     string    `json:"invite_code"`
	StudentsCount  int       `json:"students_count"`
	MaterialsCount int       `json:"materials_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewBatchResponse converts a model into a DTO.
func NewBatchResponse(batch models.Batch) BatchResponse {
	return BatchResponse{
		ID:             batch.ID,
		Name:           batch.Name,
		Description:    batch.Description,
		Subject:        batch.Subject,
		Grade:          batch.Grade,
		Capacity:       batch.Capacity,
		InviteCode:     batch.InviteCode,
		StudentsCount:  batch.StudentsCount,
		MaterialsCount: batch.MaterialsCount,
		CreatedAt:      batch.CreatedAt,
	}
}

// NewBatchResponseSlice converts a slice of models into DTOs.
func NewBatchResponseSlice(batches []models.Batch) []BatchResponse {
	out := make([]BatchResponse, 0, len(batches))
	for _, batch := range batches {
		out = append(out, NewBatchResponse(batch))
	}
	return out
}

// BatchShareResponse redisplays the invite code together with the share link.
type BatchShareResponse struct {
	BatchID    string `json:"batch_id"`
	InviteCode string `json:"invite_code"`
	ShareLink  string `json:"share_link"`
}

// NewBatchShareResponse builds the share payload without touching the stored code.
func NewBatchShareResponse(batch models.Batch) BatchShareResponse {
	return BatchShareResponse{
		BatchID:    batch.ID,
		InviteCode: batch.InviteCode,
		ShareLink:  invite.ShareLink(batch.Name, batch.InviteCode),
	}
}

// BatchSubmitResponse is returned when the batch form is submitted.
type BatchSubmitResponse struct {
	NavigationResult
	Batch *BatchResponse      `json:"batch,omitempty"`
	Share *BatchShareResponse `json:"share,omitempty"`
	Toast *Notice             `json:"toast,omitempty"`
}

// CopyRequest picks what to put on the clipboard.
type CopyRequest struct {
	Target string `json:"target" validate:"required,oneof=code link"`
}

// JoinBatchRequest carries an invite code typed by a student.
type JoinBatchRequest struct {
	InviteCode string `json:"invite_code" validate:"required,min=1,max=32"`
}

// JoinBatchResponse reports the enrolment result.
type JoinBatchResponse struct {
	Batch   BatchResponse `json:"batch"`
	Created bool          `json:"created"`
}

// Notice is a transient, user-visible notification.
type Notice struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant,omitempty"`
}
