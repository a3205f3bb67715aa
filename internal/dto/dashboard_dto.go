package dto

import "github.com/noah-isme/educlass-api/internal/models"

// TeacherStats summarises a teacher's registry.
type TeacherStats struct {
	TotalStudents  int `json:"total_students"`
	TotalBatches   int `json:"total_batches"`
	TotalMaterials int `json:"total_materials"`
	LiveSessions   int `json:"live_sessions"`
}

// TeacherDashboardResponse is rendered on the teacher dashboard.
type TeacherDashboardResponse struct {
	Greeting string          `json:"greeting"`
	Stats    TeacherStats    `json:"stats"`
	Batches  []BatchResponse `json:"batches"`
}

// EnrolledBatch is a batch as a student sees it.
type EnrolledBatch struct {
	BatchResponse
	IsLive bool `json:"is_live"`
}

// StudentDashboardResponse is rendered on the student dashboard.
type StudentDashboardResponse struct {
	Greeting  string                 `json:"greeting"`
	Batches   []EnrolledBatch        `json:"batches"`
	Materials []models.StudyMaterial `json:"materials"`
}
