package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/classpulse/classpulse-api/internal/models"
)

// ClassRepository defines data operations for classes and enrollments.
type ClassRepository interface {
	GetByID(ctx context.Context, id uint) (models.Class, error)
	ListByIDs(ctx context.Context, ids []uint) ([]models.Class, error)
	EnrolledClassIDs(ctx context.Context, studentID uint) ([]uint, error)
	Enroll(ctx context.Context, enrollment *models.Enrollment) error
}

type classRepository struct {
	db *gorm.DB
}

// NewClassRepository instantiates the repository.
func NewClassRepository(db *gorm.DB) ClassRepository {
	return &classRepository{db: db}
}

func (r *classRepository) GetByID(ctx context.Context, id uint) (models.Class, error) {
	var class models.Class
	if err := r.db.WithContext(ctx).First(&class, id).Error; err != nil {
		return models.Class{}, err
	}

	return class, nil
}

func (r *classRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.Class, error) {
	if len(ids) == 0 {
		return []models.Class{}, nil
	}

	var classes []models.Class
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&classes).Error; err != nil {
		return nil, err
	}

	return classes, nil
}

// EnrolledClassIDs resolves the student's enrollment once per live view
// subscription. An unenrolled student gets an empty slice, not an error.
func (r *classRepository) EnrolledClassIDs(ctx context.Context, studentID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("student_id = ?", studentID).
		Order("class_id ASC").
		Pluck("class_id", &ids).Error; err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *classRepository) Enroll(ctx context.Context, enrollment *models.Enrollment) error {
	return r.db.WithContext(ctx).Create(enrollment).Error
}
