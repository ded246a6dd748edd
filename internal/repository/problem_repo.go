package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/codecourt/codecourt-api/internal/models"
)

// ProblemRepository defines data operations for problems.
type ProblemRepository interface {
	List(ctx context.Context) ([]models.Problem, error)
	ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Problem, error)
	GetByID(ctx context.Context, id uint) (models.Problem, error)
	Create(ctx context.Context, problem *models.Problem) error
	Update(ctx context.Context, problem *models.Problem) error
	Delete(ctx context.Context, id uint) error
	DetachFromAssignment(ctx context.Context, assignmentID uint) error
}

type problemRepository struct {
	db *gorm.DB
}

// NewProblemRepository instantiates the repository.
func NewProblemRepository(db *gorm.DB) ProblemRepository {
	return &problemRepository{db: db}
}

func (r *problemRepository) List(ctx context.Context) ([]models.Problem, error) {
	var problems []models.Problem
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&problems).Error; err != nil {
		return nil, err
	}

	return problems, nil
}

func (r *problemRepository) ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Problem, error) {
	var problems []models.Problem
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("order_index ASC").
		Find(&problems).Error
	if err != nil {
		return nil, err
	}

	return problems, nil
}

func (r *problemRepository) GetByID(ctx context.Context, id uint) (models.Problem, error) {
	var problem models.Problem
	if err := r.db.WithContext(ctx).First(&problem, id).Error; err != nil {
		return models.Problem{}, err
	}

	return problem, nil
}

func (r *problemRepository) Create(ctx context.Context, problem *models.Problem) error {
	return r.db.WithContext(ctx).Create(problem).Error
}

func (r *problemRepository) Update(ctx context.Context, problem *models.Problem) error {
	return r.db.WithContext(ctx).Save(problem).Error
}

func (r *problemRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Problem{}, id).Error
}

// DetachFromAssignment nulls the assignment reference of every problem owned
// by the assignment, so an assignment can be deleted without orphaning its
// problem-bank entries.
func (r *problemRepository) DetachFromAssignment(ctx context.Context, assignmentID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Problem{}).
		Where("assignment_id = ?", assignmentID).
		Update("assignment_id", nil).Error
}
