package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/codecourt/codecourt-api/internal/models"
)

// ViolationSummaryRow aggregates violations of one type for an assignment.
type ViolationSummaryRow struct {
	ViolationType    string `json:"violation_type"`
	Count            int64  `json:"count"`
	AffectedStudents int64  `json:"affected_students"`
}

// HighRiskStudentRow identifies students at or above a violation threshold.
type HighRiskStudentRow struct {
	StudentID      uint      `json:"student_id"`
	RollNumber     string    `json:"roll_number"`
	Name           string    `json:"name"`
	ViolationCount int64     `json:"violation_count"`
	LastViolation  time.Time `json:"last_violation"`
}

// ViolationRepository defines data operations for proctoring violations.
type ViolationRepository interface {
	Create(ctx context.Context, violation *models.Violation) error
	FindByStudent(ctx context.Context, studentID uint, assignmentID *uint) ([]models.Violation, error)
	FindByAssignment(ctx context.Context, assignmentID uint) ([]models.Violation, error)
	// DeleteByStudentAndAssignment removes the pair's violations and reports
	// how many rows were cleared.
	DeleteByStudentAndAssignment(ctx context.Context, studentID, assignmentID uint) (int64, error)
	Summary(ctx context.Context, assignmentID uint) ([]ViolationSummaryRow, error)
	HighRiskStudents(ctx context.Context, assignmentID uint, threshold int) ([]HighRiskStudentRow, error)
}

type violationRepository struct {
	db *gorm.DB
}

// NewViolationRepository instantiates the repository.
func NewViolationRepository(db *gorm.DB) ViolationRepository {
	return &violationRepository{db: db}
}

func (r *violationRepository) Create(ctx context.Context, violation *models.Violation) error {
	return r.db.WithContext(ctx).Create(violation).Error
}

func (r *violationRepository) FindByStudent(ctx context.Context, studentID uint, assignmentID *uint) ([]models.Violation, error) {
	query := r.db.WithContext(ctx).Where("student_id = ?", studentID)
	if assignmentID != nil {
		query = query.Where("assignment_id = ?", *assignmentID)
	}

	var violations []models.Violation
	if err := query.Order("detected_at DESC").Find(&violations).Error; err != nil {
		return nil, err
	}

	return violations, nil
}

func (r *violationRepository) FindByAssignment(ctx context.Context, assignmentID uint) ([]models.Violation, error) {
	var violations []models.Violation
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("detected_at DESC").
		Find(&violations).Error
	if err != nil {
		return nil, err
	}

	return violations, nil
}

func (r *violationRepository) DeleteByStudentAndAssignment(ctx context.Context, studentID, assignmentID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("student_id = ? AND assignment_id = ?", studentID, assignmentID).
		Delete(&models.Violation{})
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

func (r *violationRepository) Summary(ctx context.Context, assignmentID uint) ([]ViolationSummaryRow, error) {
	var rows []ViolationSummaryRow
	err := r.db.WithContext(ctx).
		Model(&models.Violation{}).
		Select("violation_type, COUNT(*) AS count, COUNT(DISTINCT student_id) AS affected_students").
		Where("assignment_id = ?", assignmentID).
		Group("violation_type").
		Order("count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (r *violationRepository) HighRiskStudents(ctx context.Context, assignmentID uint, threshold int) ([]HighRiskStudentRow, error) {
	var rows []HighRiskStudentRow
	err := r.db.WithContext(ctx).
		Model(&models.Violation{}).
		Select(
			"violations.student_id, students.roll_number, students.name, "+
				"COUNT(violations.id) AS violation_count, MAX(violations.detected_at) AS last_violation").
		Joins("JOIN students ON students.id = violations.student_id").
		Where("violations.assignment_id = ?", assignmentID).
		Group("violations.student_id, students.roll_number, students.name").
		Having("COUNT(violations.id) >= ?", threshold).
		Order("violation_count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}
