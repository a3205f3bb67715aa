package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/educlass-api/internal/dto"
	"github.com/noah-isme/educlass-api/internal/models"
	"github.com/noah-isme/educlass-api/internal/repository"
)

var (
	// ErrInviteCodeNotFound indicates no batch carries the typed invite code.
	ErrInviteCodeNotFound = errors.New("invite code not found")
	// ErrBatchFull re-exports the registry error for handlers.
	ErrBatchFull = repository.ErrBatchFull
)

// LiveIndicator tells whether a live session is running for a batch.
type LiveIndicator interface {
	IsLive(sessionID string) bool
}

// DashboardService renders both dashboards and enrols students.
type DashboardService interface {
	Teacher(ctx context.Context, identity models.Identity) (dto.TeacherDashboardResponse, error)
	Student(ctx context.Context, identity models.Identity, query string) (dto.StudentDashboardResponse, error)
	JoinBatch(ctx context.Context, identity models.Identity, inviteCode string) (dto.JoinBatchResponse, error)
	Invalidate(ctx context.Context, identityIDs ...string)
}

type dashboardService struct {
	repo      repository.BatchRepository
	live      LiveIndicator
	materials []models.StudyMaterial
	cache     *redis.Client
	cacheTTL  time.Duration
	logger    zerolog.Logger
}

// NewDashboardService builds the dashboard aggregator. cache may be nil.
func NewDashboardService(repo repository.BatchRepository, live LiveIndicator, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) DashboardService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &dashboardService{
		repo:      repo,
		live:      live,
		materials: models.DefaultStudyMaterials,
		cache:     cache,
		cacheTTL:  ttl,
		logger:    logger.With().Str("component", "dashboard_service").Logger(),
	}
}

func (s *dashboardService) Teacher(ctx context.Context, identity models.Identity) (dto.TeacherDashboardResponse, error) {
	batches, err := s.cachedBatches(ctx, teacherCacheKey(identity.ID), func() ([]models.Batch, error) {
		return s.repo.ListByOwner(ctx, identity.ID)
	})
	if err != nil {
		return dto.TeacherDashboardResponse{}, fmt.Errorf("list owned batches: %w", err)
	}

	stats := dto.TeacherStats{TotalBatches: len(batches)}
	for _, batch := range batches {
		stats.TotalStudents += batch.StudentsCount
		stats.TotalMaterials += batch.MaterialsCount
		if s.isLive(batch.ID) {
			stats.LiveSessions++
		}
	}

	return dto.TeacherDashboardResponse{
		Greeting: "Welcome back, " + identity.Name,
		Stats:    stats,
		Batches:  dto.NewBatchResponseSlice(batches),
	}, nil
}

func (s *dashboardService) Student(ctx context.Context, identity models.Identity, query string) (dto.StudentDashboardResponse, error) {
	batches, err := s.cachedBatches(ctx, studentCacheKey(identity.ID), func() ([]models.Batch, error) {
		return s.repo.ListEnrolled(ctx, identity.ID)
	})
	if err != nil {
		return dto.StudentDashboardResponse{}, fmt.Errorf("list enrolled batches: %w", err)
	}

	enrolled := make([]dto.EnrolledBatch, 0, len(batches))
	for _, batch := range batches {
		enrolled = append(enrolled, dto.EnrolledBatch{
			BatchResponse: dto.NewBatchResponse(batch),
			IsLive:        s.isLive(batch.ID),
		})
	}

	return dto.StudentDashboardResponse{
		Greeting:  "Welcome, " + identity.Name,
		Batches:   enrolled,
		Materials: filterMaterials(s.materials, query),
	}, nil
}

func (s *dashboardService) JoinBatch(ctx context.Context, identity models.Identity, inviteCode string) (dto.JoinBatchResponse, error) {
	code := strings.ToUpper(strings.TrimSpace(inviteCode))
	if code == "" {
		return dto.JoinBatchResponse{}, ErrInviteCodeNotFound
	}

	target, err := s.repo.GetByInviteCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.JoinBatchResponse{}, ErrInviteCodeNotFound
		}
		return dto.JoinBatchResponse{}, fmt.Errorf("resolve invite code: %w", err)
	}

	batch, created, err := s.repo.Enroll(ctx, target.ID, identity.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.JoinBatchResponse{}, ErrInviteCodeNotFound
		}
		return dto.JoinBatchResponse{}, err
	}

	if created {
		s.invalidateBatch(ctx, batch)
		s.logger.Info().Str("batch_id", batch.ID).Str("student_id", identity.ID).Msg("student enrolled")
	}

	return dto.JoinBatchResponse{Batch: dto.NewBatchResponse(batch), Created: created}, nil
}

// Invalidate drops the cached batch lists of the given identities.
func (s *dashboardService) Invalidate(ctx context.Context, identityIDs ...string) {
	if s.cache == nil || len(identityIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(identityIDs)*2)
	for _, id := range identityIDs {
		if id == "" {
			continue
		}
		keys = append(keys, teacherCacheKey(id), studentCacheKey(id))
	}
	if len(keys) == 0 {
		return
	}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate dashboard cache")
	}
}

// invalidateBatch drops the lists that show the batch: its owner and every
// enrolled student, since each one carries the students count.
func (s *dashboardService) invalidateBatch(ctx context.Context, batch models.Batch) {
	if s.cache == nil {
		return
	}
	ids, err := s.repo.ListStudentIDs(ctx, batch.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("batch_id", batch.ID).Msg("failed to list batch students for cache invalidation")
	}
	s.Invalidate(ctx, append(ids, batch.OwnerID)...)
}

// cachedBatches serves the batch list from Redis when possible. Live flags are
// never cached since rooms come and go within the TTL.
func (s *dashboardService) cachedBatches(ctx context.Context, key string, load func() ([]models.Batch, error)) ([]models.Batch, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key).Result(); err == nil {
			var batches []models.Batch
			if unmarshalErr := json.Unmarshal([]byte(cached), &batches); unmarshalErr == nil {
				s.logger.Debug().Str("key", key).Msg("dashboard cache hit")
				return batches, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read dashboard cache")
		}
	}

	batches, err := load()
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(batches); err == nil {
			if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store dashboard cache")
			}
		}
	}

	return batches, nil
}

func (s *dashboardService) isLive(batchID string) bool {
	return s.live != nil && s.live.IsLive(batchID)
}

func filterMaterials(materials []models.StudyMaterial, query string) []models.StudyMaterial {
	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.StudyMaterial, 0, len(materials))
	for _, material := range materials {
		if needle == "" ||
			strings.Contains(strings.ToLower(material.Title), needle) ||
			strings.Contains(strings.ToLower(material.Subject), needle) {
			out = append(out, material)
		}
	}
	return out
}

func teacherCacheKey(id string) string {
	return "dashboard:teacher:" + id
}

func studentCacheKey(id string) string {
	return "dashboard:student:" + id
}
