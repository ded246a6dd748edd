package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/codecourt/codecourt-api/internal/dto"
	"github.com/codecourt/codecourt-api/internal/models"
	"github.com/codecourt/codecourt-api/internal/repository"
)

// AuthService issues tokens for students and admins.
type AuthService interface {
	RegisterStudent(ctx context.Context, payload dto.StudentRegisterRequest) (dto.AuthResponse, error)
	LoginStudent(ctx context.Context, payload dto.LoginRequest) (dto.AuthResponse, error)
	LoginAdmin(ctx context.Context, payload dto.LoginRequest) (dto.AuthResponse, error)
}

// ErrInvalidCredentials indicates the email/password pair does not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrAccountExists indicates the email or roll number is already registered.
var ErrAccountExists = errors.New("account already exists")

// AuthConfig describes token issuance knobs.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type authService struct {
	students  repository.StudentRepository
	validator *validator.Validate
	logger    zerolog.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs a new auth service.
func NewAuthService(studentRepo repository.StudentRepository, validate *validator.Validate, logger zerolog.Logger, cfg AuthConfig) AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}

	return &authService{
		students:  studentRepo,
		validator: validate,
		logger:    logger.With().Str("component", "auth_service").Logger(),
		config:    cfg,
		now:       time.Now,
	}
}

func (s *authService) RegisterStudent(ctx context.Context, payload dto.StudentRegisterRequest) (dto.AuthResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AuthResponse{}, err
	}

	if _, err := s.students.GetByEmail(ctx, payload.Email); err == nil {
		return dto.AuthResponse{}, ErrAccountExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.AuthResponse{}, fmt.Errorf("check email: %w", err)
	}

	if _, err := s.students.GetByRollNumber(ctx, payload.RollNumber); err == nil {
		return dto.AuthResponse{}, ErrAccountExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.AuthResponse{}, fmt.Errorf("check roll number: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		return dto.AuthResponse{}, fmt.Errorf("hash password: %w", err)
	}

	student := models.Student{
		RollNumber:   payload.RollNumber,
		Name:         payload.Name,
		Email:        payload.Email,
		PasswordHash: string(hash),
	}
	if err := s.students.Create(ctx, &student); err != nil {
		return dto.AuthResponse{}, fmt.Errorf("create student: %w", err)
	}

	s.logger.Info().Uint("student_id", student.ID).Str("roll_number", student.RollNumber).Msg("student registered")

	return s.issueToken(student.ID, models.RoleStudent, dto.NewStudentProfile(student))
}

func (s *authService) LoginStudent(ctx context.Context, payload dto.LoginRequest) (dto.AuthResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AuthResponse{}, err
	}

	student, err := s.students.GetByEmail(ctx, payload.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AuthResponse{}, ErrInvalidCredentials
		}
		return dto.AuthResponse{}, fmt.Errorf("load student: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(student.PasswordHash), []byte(payload.Password)) != nil {
		return dto.AuthResponse{}, ErrInvalidCredentials
	}

	return s.issueToken(student.ID, models.RoleStudent, dto.NewStudentProfile(student))
}

func (s *authService) LoginAdmin(ctx context.Context, payload dto.LoginRequest) (dto.AuthResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AuthResponse{}, err
	}

	admin, err := s.students.GetAdminByEmail(ctx, payload.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AuthResponse{}, ErrInvalidCredentials
		}
		return dto.AuthResponse{}, fmt.Errorf("load admin: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(payload.Password)) != nil {
		return dto.AuthResponse{}, ErrInvalidCredentials
	}

	return s.issueToken(admin.ID, models.RoleAdmin, dto.NewAdminProfile(admin))
}

func (s *authService) issueToken(userID uint, role string, profile dto.ProfileResponse) (dto.AuthResponse, error) {
	expiresAt := s.now().Add(s.config.TokenTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"iat":  s.now().Unix(),
		"exp":  expiresAt.Unix(),
	})

	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return dto.AuthResponse{}, fmt.Errorf("sign token: %w", err)
	}

	return dto.AuthResponse{
		Token:     signed,
		ExpiresAt: expiresAt,
		Role:      role,
		Profile:   profile,
	}, nil
}
