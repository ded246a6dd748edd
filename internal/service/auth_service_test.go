package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/codecourt/codecourt-api/internal/dto"
	"github.com/codecourt/codecourt-api/internal/models"
)

type stubStudentRepo struct {
	students map[uint]models.Student
	admins   map[uint]models.Admin
	nextID   uint
}

func newStubStudentRepo() *stubStudentRepo {
	return &stubStudentRepo{
		students: make(map[uint]models.Student),
		admins:   make(map[uint]models.Admin),
	}
}

func (r *stubStudentRepo) GetByID(_ context.Context, id uint) (models.Student, error) {
	student, ok := r.students[id]
	if !ok {
		return models.Student{}, gorm.ErrRecordNotFound
	}
	return student, nil
}

func (r *stubStudentRepo) GetByEmail(_ context.Context, email string) (models.Student, error) {
	for _, student := range r.students {
		if student.Email == email {
			return student, nil
		}
	}
	return models.Student{}, gorm.ErrRecordNotFound
}

func (r *stubStudentRepo) GetByRollNumber(_ context.Context, rollNumber string) (models.Student, error) {
	for _, student := range r.students {
		if student.RollNumber == rollNumber {
			return student, nil
		}
	}
	return models.Student{}, gorm.ErrRecordNotFound
}

func (r *stubStudentRepo) Create(_ context.Context, student *models.Student) error {
	r.nextID++
	student.ID = r.nextID
	r.students[student.ID] = *student
	return nil
}

func (r *stubStudentRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.students)), nil
}

func (r *stubStudentRepo) GetAdminByID(_ context.Context, id uint) (models.Admin, error) {
	admin, ok := r.admins[id]
	if !ok {
		return models.Admin{}, gorm.ErrRecordNotFound
	}
	return admin, nil
}

func (r *stubStudentRepo) GetAdminByEmail(_ context.Context, email string) (models.Admin, error) {
	for _, admin := range r.admins {
		if admin.Email == email {
			return admin, nil
		}
	}
	return models.Admin{}, gorm.ErrRecordNotFound
}

func (r *stubStudentRepo) CreateAdmin(_ context.Context, admin *models.Admin) error {
	r.nextID++
	admin.ID = r.nextID
	r.admins[admin.ID] = *admin
	return nil
}

func newAuthFixture(t *testing.T) (AuthService, *stubStudentRepo) {
	t.Helper()

	repo := newStubStudentRepo()
	svc := NewAuthService(repo, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop(), AuthConfig{
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
	})

	return svc, repo
}

func validRegistration() dto.StudentRegisterRequest {
	return dto.StudentRegisterRequest{
		RollNumber: "CS21B042",
		Name:       "Ada Lovelace",
		Email:      "ada@example.edu",
		Password:   "correct-horse",
	}
}

func TestRegisterStudentIssuesToken(t *testing.T) {
	svc, repo := newAuthFixture(t)

	auth, err := svc.RegisterStudent(context.Background(), validRegistration())
	require.NoError(t, err)

	require.NotEmpty(t, auth.Token)
	require.Equal(t, models.RoleStudent, auth.Role)
	require.Equal(t, "CS21B042", auth.Profile.RollNumber)
	require.Len(t, repo.students, 1)

	stored := repo.students[auth.Profile.ID]
	require.NotEqual(t, "correct-horse", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct-horse")))
}

func TestRegisterStudentTokenClaims(t *testing.T) {
	svc, _ := newAuthFixture(t)

	auth, err := svc.RegisterStudent(context.Background(), validRegistration())
	require.NoError(t, err)

	token, err := jwt.Parse(auth.Token, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	require.Equal(t, models.RoleStudent, claims["role"])
	require.InDelta(t, float64(auth.Profile.ID), claims["sub"], 0.001)
	require.InDelta(t, float64(auth.ExpiresAt.Unix()), claims["exp"], 0.001)
}

func TestRegisterStudentDuplicateEmail(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.RegisterStudent(context.Background(), validRegistration())
	require.NoError(t, err)

	duplicate := validRegistration()
	duplicate.RollNumber = "CS21B043"
	_, err = svc.RegisterStudent(context.Background(), duplicate)
	require.ErrorIs(t, err, ErrAccountExists)
}

func TestRegisterStudentDuplicateRollNumber(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.RegisterStudent(context.Background(), validRegistration())
	require.NoError(t, err)

	duplicate := validRegistration()
	duplicate.Email = "ada2@example.edu"
	_, err = svc.RegisterStudent(context.Background(), duplicate)
	require.ErrorIs(t, err, ErrAccountExists)
}

func TestRegisterStudentRejectsInvalidPayload(t *testing.T) {
	svc, _ := newAuthFixture(t)

	payload := validRegistration()
	payload.Password = "short"
	_, err := svc.RegisterStudent(context.Background(), payload)
	require.Error(t, err)

	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)
}

func TestLoginStudent(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.RegisterStudent(context.Background(), validRegistration())
	require.NoError(t, err)

	auth, err := svc.LoginStudent(context.Background(), dto.LoginRequest{
		Email:    "ada@example.edu",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	require.Equal(t, models.RoleStudent, auth.Role)
	require.NotEmpty(t, auth.Token)
}

func TestLoginStudentWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.RegisterStudent(context.Background(), validRegistration())
	require.NoError(t, err)

	_, err = svc.LoginStudent(context.Background(), dto.LoginRequest{
		Email:    "ada@example.edu",
		Password: "wrong-password",
	})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginStudentUnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.LoginStudent(context.Background(), dto.LoginRequest{
		Email:    "nobody@example.edu",
		Password: "irrelevant-pass",
	})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginAdmin(t *testing.T) {
	svc, repo := newAuthFixture(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("admin-password"), bcrypt.DefaultCost)
	require.NoError(t, err)
	require.NoError(t, repo.CreateAdmin(context.Background(), &models.Admin{
		Name:         "Prof. Dijkstra",
		Email:        "edsger@example.edu",
		PasswordHash: string(hash),
	}))

	auth, err := svc.LoginAdmin(context.Background(), dto.LoginRequest{
		Email:    "edsger@example.edu",
		Password: "admin-password",
	})
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, auth.Role)
	require.Equal(t, "Prof. Dijkstra", auth.Profile.Name)
	require.Empty(t, auth.Profile.RollNumber)
}
