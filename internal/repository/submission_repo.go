package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/classpulse/classpulse-api/internal/models"
)

// SubmissionFilter allows narrowing submission queries.
type SubmissionFilter struct {
	AssignmentID      *uint
	StudentID         *uint
	IncludeSuperseded bool
}

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	ListCurrentByStudent(ctx context.Context, studentID uint) ([]models.Submission, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetCurrent(ctx context.Context, assignmentID, studentID uint) (models.Submission, error)
	CreateAttempt(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Assignment").
		Preload("Student")
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.baseQuery(ctx)

	if filter.AssignmentID != nil {
		query = query.Where("assignment_id = ?", *filter.AssignmentID)
	}

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}

	if !filter.IncludeSuperseded {
		query = query.Where("superseded = ?", false)
	}

	var submissions []models.Submission
	if err := query.Order("submitted_at DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

// ListCurrentByStudent returns the student's current submissions, at most one
// per assignment.
func (r *submissionRepository) ListCurrentByStudent(ctx context.Context, studentID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Where("superseded = ?", false).
		Order("submitted_at DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetCurrent(ctx context.Context, assignmentID, studentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID).
		Where("superseded = ?", false).
		Order("attempt DESC").
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

// CreateAttempt inserts a new submission attempt, superseding any current one
// for the same (assignment, student) pair in the same transaction so at most
// one current submission exists under concurrent writes.
func (r *submissionRepository) CreateAttempt(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var latest models.Submission
		err := tx.Where("assignment_id = ?", submission.AssignmentID).
			Where("student_id = ?", submission.StudentID).
			Order("attempt DESC").
			First(&latest).Error

		switch {
		case err == nil:
			submission.Attempt = latest.Attempt + 1
			if err := tx.Model(&models.Submission{}).
				Where("assignment_id = ? AND student_id = ? AND superseded = ?", submission.AssignmentID, submission.StudentID, false).
				Update("superseded", true).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			submission.Attempt = 1
		default:
			return err
		}

		return tx.Create(submission).Error
	})
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}
