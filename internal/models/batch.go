package models

import "time"

// Batch is a teacher-owned class that students join with an invite code.
type Batch struct {
	ID             string    `gorm:"primaryKey;size:32" json:"id"`
	OwnerID        string    `gorm:"size:32;index" json:"owner_id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	Description    string    `gorm:"type:text" json:"description"`
	Subject        string    `gorm:"size:64;not null" json:"subject"`
	Grade          string    `gorm:"size:16;not null" json:"grade"`
	Capacity       *int      `json:"capacity,omitempty"`
	InviteCode     string    `gorm:"size:6;index;not null" json:"invite_code"`
	StudentsCount  int       `gorm:"not null;default:0" json:"students_count"`
	MaterialsCount int       `gorm:"not null;default:0" json:"materials_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// Unlimited reports whether the batch accepts any number of students.
func (b Batch) Unlimited() bool {
	return b.Capacity == nil
}

// HasSeat reports whether one more student fits.
func (b Batch) HasSeat() bool {
	return b.Capacity == nil || b.StudentsCount < *b.Capacity
}

// Enrollment records a student joining a batch through its invite code.
type Enrollment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BatchID   string    `gorm:"size:32;not null;uniqueIndex:idx_enrollment_batch_student" json:"batch_id"`
	StudentID string    `gorm:"size:32;not null;uniqueIndex:idx_enrollment_batch_student;index" json:"student_id"`
	CreatedAt time.Time `json:"created_at"`
	Batch     Batch     `gorm:"foreignKey:BatchID" json:"-"`
}
