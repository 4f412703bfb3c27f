package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/classpulse/classpulse-api/internal/dto"
	"github.com/classpulse/classpulse-api/internal/gradebook"
	"github.com/classpulse/classpulse-api/internal/models"
	"github.com/classpulse/classpulse-api/internal/observability"
	"github.com/classpulse/classpulse-api/internal/repository"
)

// ErrCategoryNotFound indicates the grading category does not exist.
var ErrCategoryNotFound = errors.New("grade category not found")

// GradebookService computes grade standings and manages per-class grading
// configuration. Computed standings are cached in redis; writers invalidate
// through the GradebookInvalidator interface.
type GradebookService interface {
	GradebookInvalidator
	ClassGrade(ctx context.Context, classID, studentID uint) (dto.ClassGradeResponse, error)
	GPA(ctx context.Context, studentID uint) (dto.GPAResponse, error)
	ListCategories(ctx context.Context, classID uint) ([]dto.CategoryResponse, error)
	CreateCategory(ctx context.Context, payload dto.CategoryCreateRequest) (dto.CategoryResponse, error)
	UpdateCategory(ctx context.Context, id uint, payload dto.CategoryUpdateRequest) (dto.CategoryResponse, error)
	DeleteCategory(ctx context.Context, id uint) error
	GetScale(ctx context.Context, classID uint) (dto.ScaleResponse, error)
	SaveScale(ctx context.Context, payload dto.ScaleSaveRequest) (dto.ScaleResponse, error)
}

type gradebookService struct {
	grades    repository.GradeRepository
	config    repository.GradebookConfigRepository
	classes   repository.ClassRepository
	validator *validator.Validate
	cache     *redis.Client
	cacheTTL  time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewGradebookService builds the gradebook computation service.
func NewGradebookService(grades repository.GradeRepository, config repository.GradebookConfigRepository, classes repository.ClassRepository, validate *validator.Validate, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) GradebookService {
	return &gradebookService{
		grades:    grades,
		config:    config,
		classes:   classes,
		validator: validate,
		cache:     cache,
		cacheTTL:  ttl,
		logger:    logger.With().Str("component", "gradebook_service").Logger(),
		now:       time.Now,
	}
}

func classGradeCacheKey(classID, studentID uint) string {
	return fmt.Sprintf("gradebook:class:%d:student:%d", classID, studentID)
}

// ClassGrade computes the student's standing in the class: category averages,
// final percentage, letter, and grade points.
func (s *gradebookService) ClassGrade(ctx context.Context, classID, studentID uint) (dto.ClassGradeResponse, error) {
	cacheKey := classGradeCacheKey(classID, studentID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.ClassGradeResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				observability.GradeComputations().WithLabelValues("cache_hit").Inc()
				s.logger.Debug().Uint("class_id", classID).Uint("student_id", studentID).Msg("gradebook cache hit")
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read gradebook cache")
		}
	}

	response, err := s.computeClassGrade(ctx, classID, studentID)
	if err != nil {
		observability.GradeComputations().WithLabelValues("error").Inc()
		return dto.ClassGradeResponse{}, err
	}
	observability.GradeComputations().WithLabelValues("computed").Inc()

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store gradebook cache")
			}
		}
	}

	return response, nil
}

func (s *gradebookService) computeClassGrade(ctx context.Context, classID, studentID uint) (dto.ClassGradeResponse, error) {
	grades, err := s.grades.ListByStudentAndClass(ctx, studentID, classID)
	if err != nil {
		return dto.ClassGradeResponse{}, err
	}

	categories, err := s.config.ListCategories(ctx, classID)
	if err != nil {
		return dto.ClassGradeResponse{}, err
	}

	ranges, err := s.scaleRanges(ctx, classID)
	if err != nil {
		return dto.ClassGradeResponse{}, err
	}

	result, err := gradebook.FinalGrade(grades, categories, ranges)
	if err != nil {
		return dto.ClassGradeResponse{}, err
	}

	breakdown := make([]dto.CategoryBreakdownResponse, 0, len(result.Categories))
	for _, category := range result.Categories {
		breakdown = append(breakdown, dto.CategoryBreakdownResponse{
			CategoryID: category.CategoryID,
			Name:       category.Name,
			Average:    category.Average,
			Weight:     category.Weight,
			GradeCount: category.GradeCount,
		})
	}

	return dto.ClassGradeResponse{
		ClassID:      classID,
		StudentID:    studentID,
		FinalPercent: result.FinalPercent,
		Letter:       result.Letter,
		GradePoint:   result.GradePoint,
		Categories:   breakdown,
		ComputedAt:   s.now().UTC(),
	}, nil
}

// scaleRanges loads the class scale, falling back to the default A-F scale
// when the class has not configured one.
func (s *gradebookService) scaleRanges(ctx context.Context, classID uint) ([]models.GradeRange, error) {
	scale, err := s.config.GetScale(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.DefaultRanges(), nil
		}
		return nil, err
	}

	return scale.RangeList()
}

// GPA aggregates the student's standing across every enrolled class, weighted
// by credit hours.
func (s *gradebookService) GPA(ctx context.Context, studentID uint) (dto.GPAResponse, error) {
	classIDs, err := s.classes.EnrolledClassIDs(ctx, studentID)
	if err != nil {
		return dto.GPAResponse{}, err
	}

	classes, err := s.classes.ListByIDs(ctx, classIDs)
	if err != nil {
		return dto.GPAResponse{}, err
	}

	courses := make([]gradebook.CourseGrade, 0, len(classes))
	lines := make([]dto.GPACourseResponse, 0, len(classes))

	for _, class := range classes {
		standing, err := s.ClassGrade(ctx, class.ID, studentID)
		if err != nil {
			return dto.GPAResponse{}, fmt.Errorf("failed to compute standing for class %d: %w", class.ID, err)
		}

		courses = append(courses, gradebook.CourseGrade{
			GradePoint:  standing.GradePoint,
			CreditHours: class.CreditHours,
		})
		lines = append(lines, dto.GPACourseResponse{
			ClassID:     class.ID,
			ClassName:   class.Name,
			Letter:      standing.Letter,
			GradePoint:  standing.GradePoint,
			CreditHours: class.CreditHours,
		})
	}

	return dto.GPAResponse{
		StudentID: studentID,
		GPA:       gradebook.GPA(courses),
		Courses:   lines,
	}, nil
}

// Invalidate drops the cached standing for one (class, student) pair.
func (s *gradebookService) Invalidate(ctx context.Context, classID, studentID uint) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Del(ctx, classGradeCacheKey(classID, studentID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("class_id", classID).Uint("student_id", studentID).Msg("failed to invalidate gradebook cache")
	}
}

func (s *gradebookService) ListCategories(ctx context.Context, classID uint) ([]dto.CategoryResponse, error) {
	categories, err := s.config.ListCategories(ctx, classID)
	if err != nil {
		return nil, err
	}

	return dto.NewCategoryResponseSlice(categories), nil
}

func (s *gradebookService) CreateCategory(ctx context.Context, payload dto.CategoryCreateRequest) (dto.CategoryResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CategoryResponse{}, err
	}

	method := payload.Method
	if method == "" {
		method = models.CategoryMethodSimpleAverage
	}

	includeInFinal := true
	if payload.IncludeInFinal != nil {
		includeInFinal = *payload.IncludeInFinal
	}

	category := models.GradeCategory{
		ClassID:        payload.ClassID,
		Name:           payload.Name,
		Weight:         payload.Weight,
		DropLowest:     payload.DropLowest,
		Method:         method,
		IncludeInFinal: includeInFinal,
	}

	if err := s.config.CreateCategory(ctx, &category); err != nil {
		return dto.CategoryResponse{}, err
	}

	s.logger.Info().Uint("category_id", category.ID).Uint("class_id", category.ClassID).Msg("grade category created")

	return dto.NewCategoryResponse(category), nil
}

func (s *gradebookService) UpdateCategory(ctx context.Context, id uint, payload dto.CategoryUpdateRequest) (dto.CategoryResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CategoryResponse{}, err
	}

	category, err := s.config.GetCategory(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CategoryResponse{}, ErrCategoryNotFound
		}
		return dto.CategoryResponse{}, err
	}

	if payload.Name != nil {
		category.Name = *payload.Name
	}
	if payload.Weight != nil {
		category.Weight = *payload.Weight
	}
	if payload.DropLowest != nil {
		category.DropLowest = *payload.DropLowest
	}
	if payload.Method != nil {
		category.Method = *payload.Method
	}
	if payload.IncludeInFinal != nil {
		category.IncludeInFinal = *payload.IncludeInFinal
	}

	if err := s.config.UpdateCategory(ctx, &category); err != nil {
		return dto.CategoryResponse{}, err
	}

	return dto.NewCategoryResponse(category), nil
}

func (s *gradebookService) DeleteCategory(ctx context.Context, id uint) error {
	if err := s.config.DeleteCategory(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCategoryNotFound
		}
		return err
	}

	return nil
}

func (s *gradebookService) GetScale(ctx context.Context, classID uint) (dto.ScaleResponse, error) {
	scale, err := s.config.GetScale(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ScaleResponse{
				ClassID: classID,
				Name:    "Default",
				Ranges:  rangesPayload(models.DefaultRanges()),
			}, nil
		}
		return dto.ScaleResponse{}, err
	}

	ranges, err := scale.RangeList()
	if err != nil {
		return dto.ScaleResponse{}, err
	}

	return dto.NewScaleResponse(scale, ranges), nil
}

func (s *gradebookService) SaveScale(ctx context.Context, payload dto.ScaleSaveRequest) (dto.ScaleResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ScaleResponse{}, err
	}

	ranges := make([]models.GradeRange, 0, len(payload.Ranges))
	for _, r := range payload.Ranges {
		ranges = append(ranges, models.GradeRange{
			Letter:     r.Letter,
			MinPercent: r.MinPercent,
			GradePoint: r.GradePoint,
		})
	}

	if err := gradebook.ValidateRanges(ranges); err != nil {
		return dto.ScaleResponse{}, err
	}

	encoded, err := models.EncodeRanges(ranges)
	if err != nil {
		return dto.ScaleResponse{}, err
	}

	scale := models.GradeScale{
		ClassID: payload.ClassID,
		Name:    payload.Name,
		Ranges:  encoded,
	}

	if err := s.config.SaveScale(ctx, &scale); err != nil {
		return dto.ScaleResponse{}, err
	}

	s.logger.Info().Uint("class_id", scale.ClassID).Int("ranges", len(ranges)).Msg("grade scale saved")

	return dto.NewScaleResponse(scale, ranges), nil
}

func rangesPayload(ranges []models.GradeRange) []dto.GradeRangePayload {
	payload := make([]dto.GradeRangePayload, 0, len(ranges))
	for _, r := range ranges {
		payload = append(payload, dto.GradeRangePayload{
			Letter:     r.Letter,
			MinPercent: r.MinPercent,
			GradePoint: r.GradePoint,
		})
	}
	return payload
}
