package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/classpulse/classpulse-api/internal/models"
)

// GradebookConfigRepository stores the per-class grading configuration:
// categories and the letter grade scale.
type GradebookConfigRepository interface {
	ListCategories(ctx context.Context, classID uint) ([]models.GradeCategory, error)
	GetCategory(ctx context.Context, id uint) (models.GradeCategory, error)
	CreateCategory(ctx context.Context, category *models.GradeCategory) error
	UpdateCategory(ctx context.Context, category *models.GradeCategory) error
	DeleteCategory(ctx context.Context, id uint) error
	GetScale(ctx context.Context, classID uint) (models.GradeScale, error)
	SaveScale(ctx context.Context, scale *models.GradeScale) error
}

type gradebookConfigRepository struct {
	db *gorm.DB
}

// NewGradebookConfigRepository instantiates the repository.
func NewGradebookConfigRepository(db *gorm.DB) GradebookConfigRepository {
	return &gradebookConfigRepository{db: db}
}

func (r *gradebookConfigRepository) ListCategories(ctx context.Context, classID uint) ([]models.GradeCategory, error) {
	var categories []models.GradeCategory
	if err := r.db.WithContext(ctx).
		Where("class_id = ?", classID).
		Order("id ASC").
		Find(&categories).Error; err != nil {
		return nil, err
	}

	return categories, nil
}

func (r *gradebookConfigRepository) GetCategory(ctx context.Context, id uint) (models.GradeCategory, error) {
	var category models.GradeCategory
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return models.GradeCategory{}, err
	}

	return category, nil
}

func (r *gradebookConfigRepository) CreateCategory(ctx context.Context, category *models.GradeCategory) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *gradebookConfigRepository) UpdateCategory(ctx context.Context, category *models.GradeCategory) error {
	return r.db.WithContext(ctx).Save(category).Error
}

func (r *gradebookConfigRepository) DeleteCategory(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.GradeCategory{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gradebookConfigRepository) GetScale(ctx context.Context, classID uint) (models.GradeScale, error) {
	var scale models.GradeScale
	if err := r.db.WithContext(ctx).
		Where("class_id = ?", classID).
		First(&scale).Error; err != nil {
		return models.GradeScale{}, err
	}

	return scale, nil
}

// SaveScale upserts the single scale row per class.
func (r *gradebookConfigRepository) SaveScale(ctx context.Context, scale *models.GradeScale) error {
	var existing models.GradeScale
	err := r.db.WithContext(ctx).
		Where("class_id = ?", scale.ClassID).
		First(&existing).Error

	switch {
	case err == nil:
		scale.ID = existing.ID
		return r.db.WithContext(ctx).Save(scale).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		return r.db.WithContext(ctx).Create(scale).Error
	default:
		return err
	}
}
