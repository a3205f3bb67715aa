package models

import "time"

// SessionChatMessage is a chat line posted inside a live session room.
type SessionChatMessage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionID  string    `gorm:"size:32;index" json:"session_id"`
	SenderID   string    `gorm:"size:32;index" json:"sender_id"`
	SenderName string    `gorm:"size:128" json:"sender_name"`
	Content    string    `gorm:"type:text" json:"content"`
	IsTeacher  bool      `gorm:"not null;default:false" json:"is_teacher"`
	CreatedAt  time.Time `json:"created_at"`
}

// StudyMaterial is an entry of the reference-book catalog shown to students.
type StudyMaterial struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Subject string `json:"subject"`
	Class   string `json:"class"`
	Size    string `json:"size"`
}

// DefaultStudyMaterials is the catalog offered on the student dashboard.
var DefaultStudyMaterials = []StudyMaterial{
	{ID: "1", Title: "Mathematics Class 10 - Chapter 1", Subject: "Mathematics", Class: "10", Size: "2.4 MB"},
	{ID: "2", Title: "Science Class 10 - Light & Reflection", Subject: "Science", Class: "10", Size: "3.1 MB"},
	{ID: "3", Title: "English Class 10 - First Flight", Subject: "English", Class: "10", Size: "1.8 MB"},
	{ID: "4", Title: "Social Science Class 10 - History", Subject: "Social Science", Class: "10", Size: "2.9 MB"},
	{ID: "5", Title: "Mathematics Class 11 - Sets", Subject: "Mathematics", Class: "11", Size: "2.2 MB"},
	{ID: "6", Title: "Physics Class 11 - Mechanics", Subject: "Physics", Class: "11", Size: "4.1 MB"},
}
