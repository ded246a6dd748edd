package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/codecourt/codecourt-api/internal/models"
)

// StudentRepository defines data operations for student and admin accounts.
type StudentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Student, error)
	GetByEmail(ctx context.Context, email string) (models.Student, error)
	GetByRollNumber(ctx context.Context, rollNumber string) (models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Count(ctx context.Context) (int64, error)

	GetAdminByID(ctx context.Context, id uint) (models.Admin, error)
	GetAdminByEmail(ctx context.Context, email string) (models.Admin, error)
	CreateAdmin(ctx context.Context, admin *models.Admin) error
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository instantiates the repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) GetByID(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

func (r *studentRepository) GetByEmail(ctx context.Context, email string) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&student).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

func (r *studentRepository) GetByRollNumber(ctx context.Context, rollNumber string) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Where("roll_number = ?", rollNumber).First(&student).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

func (r *studentRepository) Create(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Create(student).Error
}

func (r *studentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Student{}).Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

func (r *studentRepository) GetAdminByID(ctx context.Context, id uint) (models.Admin, error) {
	var admin models.Admin
	if err := r.db.WithContext(ctx).First(&admin, id).Error; err != nil {
		return models.Admin{}, err
	}

	return admin, nil
}

func (r *studentRepository) GetAdminByEmail(ctx context.Context, email string) (models.Admin, error) {
	var admin models.Admin
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&admin).Error; err != nil {
		return models.Admin{}, err
	}

	return admin, nil
}

func (r *studentRepository) CreateAdmin(ctx context.Context, admin *models.Admin) error {
	return r.db.WithContext(ctx).Create(admin).Error
}
