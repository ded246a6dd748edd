package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/codecourt/codecourt-api/internal/models"
)

// TestCaseRepository defines data operations for test cases.
type TestCaseRepository interface {
	// ListByProblem returns a problem's test cases in declared order. When
	// includeHidden is false only sample-visible cases are returned.
	ListByProblem(ctx context.Context, problemID uint, includeHidden bool) ([]models.TestCase, error)
	ListSamples(ctx context.Context, problemID uint) ([]models.TestCase, error)
	GetByID(ctx context.Context, id uint) (models.TestCase, error)
	Create(ctx context.Context, testCase *models.TestCase) error
	CreateBatch(ctx context.Context, testCases []models.TestCase) error
	Update(ctx context.Context, testCase *models.TestCase) error
	Delete(ctx context.Context, id uint) error
}

type testCaseRepository struct {
	db *gorm.DB
}

// NewTestCaseRepository instantiates the repository.
func NewTestCaseRepository(db *gorm.DB) TestCaseRepository {
	return &testCaseRepository{db: db}
}

func (r *testCaseRepository) ListByProblem(ctx context.Context, problemID uint, includeHidden bool) ([]models.TestCase, error) {
	query := r.db.WithContext(ctx).Where("problem_id = ?", problemID)
	if !includeHidden {
		query = query.Where("is_hidden = ?", false)
	}

	var testCases []models.TestCase
	if err := query.Order("id ASC").Find(&testCases).Error; err != nil {
		return nil, err
	}

	return testCases, nil
}

func (r *testCaseRepository) ListSamples(ctx context.Context, problemID uint) ([]models.TestCase, error) {
	var testCases []models.TestCase
	err := r.db.WithContext(ctx).
		Where("problem_id = ? AND is_sample = ?", problemID, true).
		Order("id ASC").
		Find(&testCases).Error
	if err != nil {
		return nil, err
	}

	return testCases, nil
}

func (r *testCaseRepository) GetByID(ctx context.Context, id uint) (models.TestCase, error) {
	var testCase models.TestCase
	if err := r.db.WithContext(ctx).First(&testCase, id).Error; err != nil {
		return models.TestCase{}, err
	}

	return testCase, nil
}

func (r *testCaseRepository) Create(ctx context.Context, testCase *models.TestCase) error {
	return r.db.WithContext(ctx).Create(testCase).Error
}

func (r *testCaseRepository) CreateBatch(ctx context.Context, testCases []models.TestCase) error {
	if len(testCases) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&testCases).Error
}

func (r *testCaseRepository) Update(ctx context.Context, testCase *models.TestCase) error {
	return r.db.WithContext(ctx).Save(testCase).Error
}

func (r *testCaseRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.TestCase{}, id).Error
}
