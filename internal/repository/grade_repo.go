package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/classpulse/classpulse-api/internal/models"
)

// GradeRepository defines data operations for grades and their audit trail.
type GradeRepository interface {
	ListByStudent(ctx context.Context, studentID uint) ([]models.Grade, error)
	ListByStudentAndClass(ctx context.Context, studentID, classID uint) ([]models.Grade, error)
	ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Grade, error)
	GetByID(ctx context.Context, id uint) (models.Grade, error)
	GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.Grade, error)
	Create(ctx context.Context, grade *models.Grade) error
	Update(ctx context.Context, grade *models.Grade) error
	CreateAudit(ctx context.Context, entry *models.GradeAuditEntry) error
	ListAudit(ctx context.Context, gradeID uint) ([]models.GradeAuditEntry, error)
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository instantiates the repository.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.Grade, error) {
	var grades []models.Grade
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("assignment_id ASC").
		Find(&grades).Error; err != nil {
		return nil, err
	}

	return grades, nil
}

// ListByStudentAndClass scopes the student's grades to one class by joining
// through assignments.
func (r *gradeRepository) ListByStudentAndClass(ctx context.Context, studentID, classID uint) ([]models.Grade, error) {
	var grades []models.Grade
	if err := r.db.WithContext(ctx).
		Joins("JOIN assignments ON assignments.id = grades.assignment_id").
		Where("grades.student_id = ?", studentID).
		Where("assignments.class_id = ?", classID).
		Order("grades.assignment_id ASC").
		Find(&grades).Error; err != nil {
		return nil, err
	}

	return grades, nil
}

func (r *gradeRepository) ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Grade, error) {
	var grades []models.Grade
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("student_id ASC").
		Find(&grades).Error; err != nil {
		return nil, err
	}

	return grades, nil
}

func (r *gradeRepository) GetByID(ctx context.Context, id uint) (models.Grade, error) {
	var grade models.Grade
	if err := r.db.WithContext(ctx).First(&grade, id).Error; err != nil {
		return models.Grade{}, err
	}

	return grade, nil
}

func (r *gradeRepository) GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.Grade, error) {
	var grade models.Grade
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID).
		First(&grade).Error; err != nil {
		return models.Grade{}, err
	}

	return grade, nil
}

func (r *gradeRepository) Create(ctx context.Context, grade *models.Grade) error {
	return r.db.WithContext(ctx).Create(grade).Error
}

func (r *gradeRepository) Update(ctx context.Context, grade *models.Grade) error {
	return r.db.WithContext(ctx).Save(grade).Error
}

func (r *gradeRepository) CreateAudit(ctx context.Context, entry *models.GradeAuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *gradeRepository) ListAudit(ctx context.Context, gradeID uint) ([]models.GradeAuditEntry, error) {
	var entries []models.GradeAuditEntry
	if err := r.db.WithContext(ctx).
		Where("grade_id = ?", gradeID).
		Order("created_at DESC").
		Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}
