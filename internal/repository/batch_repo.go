package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/educlass-api/internal/models"
)

// ErrBatchFull indicates the batch has no seat left for another student.
var ErrBatchFull = errors.New("batch is full")

// BatchRepository is the batch registry: teacher-owned batches and student enrolments.
type BatchRepository interface {
	Create(ctx context.Context, batch *models.Batch) error
	GetByID(ctx context.Context, id string) (models.Batch, error)
	GetByInviteCode(ctx context.Context, code string) (models.Batch, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Batch, error)
	ListEnrolled(ctx context.Context, studentID string) ([]models.Batch, error)
	ListStudentIDs(ctx context.Context, batchID string) ([]string, error)
	Enroll(ctx context.Context, batchID, studentID string) (models.Batch, bool, error)
}

type batchRepository struct {
	db *gorm.DB
}

// NewBatchRepository constructs a batch repository backed by GORM.
func NewBatchRepository(db *gorm.DB) BatchRepository {
	return &batchRepository{db: db}
}

func (r *batchRepository) Create(ctx context.Context, batch *models.Batch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *batchRepository) GetByID(ctx context.Context, id string) (models.Batch, error) {
	var batch models.Batch
	if err := r.db.WithContext(ctx).First(&batch, "id = ?", id).Error; err != nil {
		return models.Batch{}, err
	}
	return batch, nil
}

// GetByInviteCode resolves a code to the newest batch carrying it; codes are not unique.
func (r *batchRepository) GetByInviteCode(ctx context.Context, code string) (models.Batch, error) {
	var batch models.Batch
	err := r.db.WithContext(ctx).
		Where("invite_code = ?", code).
		Order("created_at DESC").
		First(&batch).Error
	if err != nil {
		return models.Batch{}, err
	}
	return batch, nil
}

func (r *batchRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Batch, error) {
	var batches []models.Batch
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *batchRepository) ListEnrolled(ctx context.Context, studentID string) ([]models.Batch, error) {
	var batches []models.Batch
	err := r.db.WithContext(ctx).
		Joins("JOIN enrollments ON enrollments.batch_id = batches.id").
		Where("enrollments.student_id = ?", studentID).
		Order("enrollments.created_at DESC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *batchRepository) ListStudentIDs(ctx context.Context, batchID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("batch_id = ?", batchID).
		Order("student_id").
		Pluck("student_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Enroll adds a student to a batch. The boolean is false when the student was
// already enrolled, in which case nothing changes.
func (r *batchRepository) Enroll(ctx context.Context, batchID, studentID string) (models.Batch, bool, error) {
	var (
		batch   models.Batch
		created bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Enrollment{}).
			Where("batch_id = ? AND student_id = ?", batchID, studentID).
			Count(&existing).Error; err != nil {
			return err
		}

		if existing == 0 {
			result := tx.Model(&models.Batch{}).
				Where("id = ? AND (capacity IS NULL OR students_count < capacity)", batchID).
				UpdateColumn("students_count", gorm.Expr("students_count + 1"))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				var count int64
				if err := tx.Model(&models.Batch{}).Where("id = ?", batchID).Count(&count).Error; err != nil {
					return err
				}
				if count == 0 {
					return gorm.ErrRecordNotFound
				}
				return ErrBatchFull
			}

			if err := tx.Create(&models.Enrollment{BatchID: batchID, StudentID: studentID}).Error; err != nil {
				return err
			}
			created = true
		}

		return tx.First(&batch, "id = ?", batchID).Error
	})
	if err != nil {
		return models.Batch{}, false, err
	}

	return batch, created, nil
}
