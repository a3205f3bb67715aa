package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/educlass-api/internal/dto"
	"github.com/noah-isme/educlass-api/internal/invite"
	"github.com/noah-isme/educlass-api/internal/models"
	"github.com/noah-isme/educlass-api/internal/repository"
)

var (
	// ErrBatchNotFound indicates the batch does not exist or is not visible to the caller.
	ErrBatchNotFound = errors.New("batch not found")
	// ErrInvalidCapacity indicates a capacity that is not a positive whole number.
	ErrInvalidCapacity = errors.New("capacity must be a positive number")
)

const (
	CopyTargetCode = "code"
	CopyTargetLink = "link"
)

// BatchService builds batches from the creation form and serves their invite details.
type BatchService interface {
	Validate(form dto.BatchCreateRequest) error
	Create(ctx context.Context, form dto.BatchCreateRequest) (models.Batch, error)
	Share(ctx context.Context, identity models.Identity, batchID string) (dto.BatchShareResponse, error)
	Copy(ctx context.Context, deviceID string, identity models.Identity, batchID, target string) (dto.Notice, error)
}

type batchService struct {
	repo      repository.BatchRepository
	validator *validator.Validate
	clipboard Clipboard
	codes     *invite.Generator
	latency   time.Duration
	now       func() time.Time
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewBatchService constructs the batch creation collaborator.
func NewBatchService(repo repository.BatchRepository, validator *validator.Validate, clipboard Clipboard, latency time.Duration, logger zerolog.Logger) BatchService {
	return &batchService{
		repo:      repo,
		validator: validator,
		clipboard: clipboard,
		codes:     invite.NewGenerator(),
		latency:   latency,
		now:       time.Now,
		logger:    logger.With().Str("component", "batch_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/educlass-api/internal/service/batch"),
	}
}

// Validate checks the trimmed form, so blank fields fail the required rules.
func (s *batchService) Validate(form dto.BatchCreateRequest) error {
	form = normalizeBatchForm(form)
	if err := s.validator.Struct(form); err != nil {
		return err
	}
	_, err := parseCapacity(form.Capacity)
	return err
}

// Create waits the simulated latency and returns an unsaved batch. Appending it
// to the registry is the navigator's job.
func (s *batchService) Create(ctx context.Context, form dto.BatchCreateRequest) (models.Batch, error) {
	ctx, span := s.tracer.Start(ctx, "batch.create", trace.WithAttributes(attribute.String("batch.subject", form.Subject)))
	defer span.End()

	if err := s.Validate(form); err != nil {
		return models.Batch{}, err
	}
	form = normalizeBatchForm(form)
	capacity, _ := parseCapacity(form.Capacity)

	if err := wait(ctx, s.latency); err != nil {
		span.RecordError(err)
		return models.Batch{}, err
	}

	batch := models.Batch{
		ID:          s.codes.ID(),
		Name:        form.Name,
		Description: form.Description,
		Subject:     form.Subject,
		Grade:       form.Grade,
		Capacity:    capacity,
		InviteCode:  s.codes.Code(),
		CreatedAt:   s.now().UTC(),
	}
	span.SetAttributes(attribute.String("batch.id", batch.ID))

	return batch, nil
}

func normalizeBatchForm(form dto.BatchCreateRequest) dto.BatchCreateRequest {
	form.Name = strings.TrimSpace(form.Name)
	form.Description = strings.TrimSpace(form.Description)
	form.Subject = strings.TrimSpace(form.Subject)
	form.Grade = strings.TrimSpace(form.Grade)
	form.Capacity = strings.TrimSpace(form.Capacity)
	return form
}

func (s *batchService) Share(ctx context.Context, identity models.Identity, batchID string) (dto.BatchShareResponse, error) {
	batch, err := s.ownedBatch(ctx, identity, batchID)
	if err != nil {
		return dto.BatchShareResponse{}, err
	}
	return dto.NewBatchShareResponse(batch), nil
}

// Copy puts the invite code or share link on the device clipboard. A clipboard
// failure is reported through the notice, never as an error.
func (s *batchService) Copy(ctx context.Context, deviceID string, identity models.Identity, batchID, target string) (dto.Notice, error) {
	share, err := s.Share(ctx, identity, batchID)
	if err != nil {
		return dto.Notice{}, err
	}

	text, description := share.InviteCode, "Invite code copied to clipboard."
	if target == CopyTargetLink {
		text, description = share.ShareLink, "WhatsApp link copied to clipboard."
	}

	if err := s.clipboard.Write(ctx, deviceID, text); err != nil {
		s.logger.Warn().Err(err).Str("device_id", deviceID).Str("batch_id", batchID).Msg("clipboard write failed")
		return dto.Notice{
			Title:       "Copy failed",
			Description: "Please copy the text manually.",
			Variant:     "destructive",
		}, nil
	}

	return dto.Notice{Title: "Copied!", Description: description}, nil
}

func (s *batchService) ownedBatch(ctx context.Context, identity models.Identity, batchID string) (models.Batch, error) {
	batch, err := s.repo.GetByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Batch{}, ErrBatchNotFound
		}
		return models.Batch{}, fmt.Errorf("load batch: %w", err)
	}
	if batch.OwnerID != identity.ID {
		return models.Batch{}, ErrBatchNotFound
	}
	return batch, nil
}

// parseCapacity maps the form field to the model: empty means unlimited.
func parseCapacity(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &value, nil
}
