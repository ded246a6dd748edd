package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/codecourt/codecourt-api/internal/models"
)

// SubmissionFilter narrows submission listings.
type SubmissionFilter struct {
	AssignmentID *uint
	ProblemID    *uint
	Status       string
	Limit        int
}

// LeaderboardRow ranks a student inside one assignment.
type LeaderboardRow struct {
	StudentID      uint    `json:"student_id"`
	RollNumber     string  `json:"roll_number"`
	Name           string  `json:"name"`
	TotalScore     float64 `json:"total_score"`
	ProblemsSolved int64   `json:"problems_solved"`
	Attempts       int64   `json:"attempts"`
}

// ProblemProgressRow reports a student's best result for one problem.
type ProblemProgressRow struct {
	ProblemID uint    `json:"problem_id"`
	Title     string  `json:"title"`
	BestScore float64 `json:"best_score"`
	Solved    bool    `json:"solved"`
	Attempts  int64   `json:"attempts"`
}

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	FindByStudentAndProblem(ctx context.Context, studentID, problemID, assignmentID uint) ([]models.Submission, error)
	// HasAcceptedSubmission reports whether the student already solved the
	// problem inside the assignment.
	HasAcceptedSubmission(ctx context.Context, studentID, problemID, assignmentID uint) (bool, error)
	ListByStudent(ctx context.Context, studentID uint, filter SubmissionFilter) ([]models.Submission, error)
	ListByAssignment(ctx context.Context, assignmentID uint, filter SubmissionFilter) ([]models.Submission, error)
	Leaderboard(ctx context.Context, assignmentID uint) ([]LeaderboardRow, error)
	StudentProgress(ctx context.Context, studentID, assignmentID uint) ([]ProblemProgressRow, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("Problem").
		First(&submission, id).Error
	if err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) FindByStudentAndProblem(ctx context.Context, studentID, problemID, assignmentID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND problem_id = ? AND assignment_id = ?", studentID, problemID, assignmentID).
		Order("submitted_at DESC").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) HasAcceptedSubmission(ctx context.Context, studentID, problemID, assignmentID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("student_id = ? AND problem_id = ? AND assignment_id = ?", studentID, problemID, assignmentID).
		Where("status = ?", models.SubmissionStatusAccepted).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *submissionRepository) ListByStudent(ctx context.Context, studentID uint, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.db.WithContext(ctx).Where("student_id = ?", studentID)
	query = applySubmissionFilter(query, filter)

	var submissions []models.Submission
	if err := query.Order("submitted_at DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) ListByAssignment(ctx context.Context, assignmentID uint, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.db.WithContext(ctx).
		Preload("Student").
		Where("assignment_id = ?", assignmentID)
	query = applySubmissionFilter(query, filter)

	var submissions []models.Submission
	if err := query.Order("submitted_at DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func applySubmissionFilter(query *gorm.DB, filter SubmissionFilter) *gorm.DB {
	if filter.AssignmentID != nil {
		query = query.Where("assignment_id = ?", *filter.AssignmentID)
	}
	if filter.ProblemID != nil {
		query = query.Where("problem_id = ?", *filter.ProblemID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	return query
}

// Leaderboard sums each student's best score per problem, so resubmitting a
// solved problem never inflates the total.
func (r *submissionRepository) Leaderboard(ctx context.Context, assignmentID uint) ([]LeaderboardRow, error) {
	best := r.db.
		Model(&models.Submission{}).
		Select("student_id, problem_id, MAX(score) AS best_score, "+
			"MAX(CASE WHEN status = ? THEN 1 ELSE 0 END) AS solved, COUNT(*) AS attempts",
			models.SubmissionStatusAccepted).
		Where("assignment_id = ?", assignmentID).
		Group("student_id, problem_id")

	var rows []LeaderboardRow
	err := r.db.WithContext(ctx).
		Table("(?) AS best", best).
		Select("best.student_id, students.roll_number, students.name, "+
			"SUM(best.best_score) AS total_score, SUM(best.solved) AS problems_solved, SUM(best.attempts) AS attempts").
		Joins("JOIN students ON students.id = best.student_id").
		Group("best.student_id, students.roll_number, students.name").
		Order("total_score DESC, problems_solved DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (r *submissionRepository) StudentProgress(ctx context.Context, studentID, assignmentID uint) ([]ProblemProgressRow, error) {
	var rows []ProblemProgressRow
	err := r.db.WithContext(ctx).
		Model(&models.Problem{}).
		Select("problems.id AS problem_id, problems.title, "+
			"COALESCE(MAX(submissions.score), 0) AS best_score, "+
			"COALESCE(MAX(CASE WHEN submissions.status = ? THEN 1 ELSE 0 END), 0) AS solved, "+
			"COUNT(submissions.id) AS attempts",
			models.SubmissionStatusAccepted).
		Joins("LEFT JOIN submissions ON submissions.problem_id = problems.id AND submissions.student_id = ? AND submissions.assignment_id = ?",
			studentID, assignmentID).
		Where("problems.assignment_id = ?", assignmentID).
		Group("problems.id, problems.title, problems.order_index").
		Order("problems.order_index ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (r *submissionRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("submitted_at >= ?", since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}
