package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/classpulse/classpulse-api/internal/dto"
	"github.com/classpulse/classpulse-api/internal/models"
	"github.com/classpulse/classpulse-api/internal/repository"
	"github.com/classpulse/classpulse-api/internal/stream"
)

// ErrAssignmentNotFound indicates the requested assignment does not exist.
var ErrAssignmentNotFound = errors.New("assignment not found")

// ErrInvalidStatusTransition indicates a lifecycle move the state machine
// does not allow.
var ErrInvalidStatusTransition = errors.New("invalid assignment status transition")

// FileUploader abstracts uploading binary data and returning a URL.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// AssignmentService exposes assignment domain use cases.
type AssignmentService interface {
	List(ctx context.Context, query dto.AssignmentListQuery) ([]dto.AssignmentResponse, dto.PaginationMeta, error)
	Get(ctx context.Context, id uint) (dto.AssignmentResponse, error)
	Create(ctx context.Context, payload dto.AssignmentCreateRequest, file *multipart.FileHeader, actor ActivityActor) (dto.AssignmentResponse, error)
	Update(ctx context.Context, id uint, payload dto.AssignmentUpdateRequest, file *multipart.FileHeader, actor ActivityActor) (dto.AssignmentResponse, error)
	SetStatus(ctx context.Context, id uint, payload dto.AssignmentStatusRequest, actor ActivityActor) (dto.AssignmentResponse, error)
	Delete(ctx context.Context, id uint, actor ActivityActor) error
}

type assignmentService struct {
	repo      repository.AssignmentRepository
	validator *validator.Validate
	uploader  FileUploader
	bus       *stream.Bus
	activity  ActivityRecorder
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAssignmentService builds a new assignment service.
func NewAssignmentService(repo repository.AssignmentRepository, validate *validator.Validate, uploader FileUploader, bus *stream.Bus, activity ActivityRecorder, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		repo:      repo,
		validator: validate,
		uploader:  uploader,
		bus:       bus,
		activity:  activity,
		logger:    logger.With().Str("component", "assignment_service").Logger(),
		now:       time.Now,
	}
}

func (s *assignmentService) List(ctx context.Context, query dto.AssignmentListQuery) ([]dto.AssignmentResponse, dto.PaginationMeta, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, dto.PaginationMeta{}, err
	}

	filter := repository.AssignmentFilter{
		Status:   query.Status,
		Search:   query.Search,
		Sort:     query.Sort,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if query.ClassID > 0 {
		filter.ClassIDs = []uint{query.ClassID}
	}

	assignments, total, err := s.repo.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, dto.PaginationMeta{}, err
	}

	pagination := dto.PaginationMeta{
		Page:       maxInt(query.Page, 1),
		PageSize:   query.PageSize,
		TotalItems: total,
		TotalPages: 1,
	}
	if query.PageSize > 0 {
		pagination.TotalPages = int((total + int64(query.PageSize) - 1) / int64(query.PageSize))
	}

	return dto.NewAssignmentResponseSlice(assignments), pagination, nil
}

func (s *assignmentService) Get(ctx context.Context, id uint) (dto.AssignmentResponse, error) {
	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}

		return dto.AssignmentResponse{}, err
	}

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Create(ctx context.Context, payload dto.AssignmentCreateRequest, file *multipart.FileHeader, actor ActivityActor) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	dueDate, err := time.Parse(time.RFC3339, payload.DueDate)
	if err != nil {
		return dto.AssignmentResponse{}, fmt.Errorf("invalid due date: %w", err)
	}

	if !dueDate.After(s.now()) {
		return dto.AssignmentResponse{}, fmt.Errorf("due date must be in the future")
	}

	assignmentType := payload.Type
	if assignmentType == "" {
		assignmentType = models.AssignmentTypeHomework
	}

	assignment := models.Assignment{
		ClassID:           payload.ClassID,
		CategoryID:        payload.CategoryID,
		Title:             payload.Title,
		Description:       payload.Description,
		Type:              assignmentType,
		Status:            models.AssignmentStatusDraft,
		DueDate:           dueDate,
		TotalPoints:       payload.TotalPoints,
		LateAllowed:       payload.LateAllowed,
		LatePenaltyPerDay: payload.LatePenaltyPerDay,
	}

	if payload.PublishAt != nil {
		publishAt, err := time.Parse(time.RFC3339, *payload.PublishAt)
		if err != nil {
			return dto.AssignmentResponse{}, fmt.Errorf("invalid publish time: %w", err)
		}
		assignment.PublishAt = &publishAt
	}

	if file != nil {
		url, err := s.uploadFile(ctx, file)
		if err != nil {
			return dto.AssignmentResponse{}, err
		}
		assignment.FileURL = url
	}

	if err := s.repo.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Uint("class_id", assignment.ClassID).Msg("assignment created")
	s.recordActivity(ctx, actor, "assignment.created", assignment)
	s.publishChange(ctx, assignment)

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Update(ctx context.Context, id uint, payload dto.AssignmentUpdateRequest, file *multipart.FileHeader, actor ActivityActor) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}

		return dto.AssignmentResponse{}, err
	}

	if payload.CategoryID != nil {
		assignment.CategoryID = *payload.CategoryID
	}

	if payload.Title != nil {
		assignment.Title = *payload.Title
	}

	if payload.Description != nil {
		assignment.Description = *payload.Description
	}

	if payload.Type != nil {
		assignment.Type = *payload.Type
	}

	if payload.DueDate != nil {
		dueDate, err := time.Parse(time.RFC3339, *payload.DueDate)
		if err != nil {
			return dto.AssignmentResponse{}, fmt.Errorf("invalid due date: %w", err)
		}

		assignment.DueDate = dueDate
	}

	if payload.PublishAt != nil {
		publishAt, err := time.Parse(time.RFC3339, *payload.PublishAt)
		if err != nil {
			return dto.AssignmentResponse{}, fmt.Errorf("invalid publish time: %w", err)
		}
		assignment.PublishAt = &publishAt
	}

	if payload.TotalPoints != nil {
		assignment.TotalPoints = *payload.TotalPoints
	}

	if payload.LateAllowed != nil {
		assignment.LateAllowed = *payload.LateAllowed
	}

	if payload.LatePenaltyPerDay != nil {
		assignment.LatePenaltyPerDay = *payload.LatePenaltyPerDay
	}

	if file != nil {
		url, err := s.uploadFile(ctx, file)
		if err != nil {
			return dto.AssignmentResponse{}, err
		}
		assignment.FileURL = url
	}

	if err := s.repo.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Msg("assignment updated")
	s.recordActivity(ctx, actor, "assignment.updated", assignment)
	s.publishChange(ctx, assignment)

	return dto.NewAssignmentResponse(assignment), nil
}

// SetStatus moves an assignment through its lifecycle. Draft work may be
// activated, active work completed or archived, completed work archived.
// Going backwards is only allowed from active to draft, which unpublishes.
func (s *assignmentService) SetStatus(ctx context.Context, id uint, payload dto.AssignmentStatusRequest, actor ActivityActor) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}

		return dto.AssignmentResponse{}, err
	}

	next := strings.ToLower(payload.Status)
	if !statusTransitionAllowed(assignment.Status, next) {
		return dto.AssignmentResponse{}, fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, assignment.Status, next)
	}

	assignment.Status = next
	if err := s.repo.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Str("status", next).Msg("assignment status changed")
	s.recordActivity(ctx, actor, "assignment."+next, assignment)
	s.publishChange(ctx, assignment)

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Delete(ctx context.Context, id uint, actor ActivityActor) error {
	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}

	s.logger.Info().Uint("assignment_id", id).Msg("assignment deleted")
	s.recordActivity(ctx, actor, "assignment.deleted", assignment)
	s.publishChange(ctx, assignment)

	return nil
}

func statusTransitionAllowed(current, next string) bool {
	if current == next {
		return true
	}

	switch current {
	case models.AssignmentStatusDraft:
		return next == models.AssignmentStatusActive
	case models.AssignmentStatusActive:
		return next == models.AssignmentStatusDraft ||
			next == models.AssignmentStatusCompleted ||
			next == models.AssignmentStatusArchived
	case models.AssignmentStatusCompleted:
		return next == models.AssignmentStatusArchived
	default:
		return false
	}
}

func (s *assignmentService) publishChange(ctx context.Context, assignment models.Assignment) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, stream.Change{
		Entity:  stream.EntityAssignments,
		ClassID: assignment.ClassID,
	})
}

func (s *assignmentService) recordActivity(ctx context.Context, actor ActivityActor, action string, assignment models.Assignment) {
	if s.activity == nil {
		return
	}
	id := assignment.ID
	_, _ = s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "assignment",
		EntityID:   &id,
		Metadata: map[string]interface{}{
			"class_id": assignment.ClassID,
			"title":    assignment.Title,
		},
	})
}

func (s *assignmentService) uploadFile(ctx context.Context, file *multipart.FileHeader) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	url, err := s.uploader.Upload(ctx, file.Filename, src)
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	return url, nil
}
