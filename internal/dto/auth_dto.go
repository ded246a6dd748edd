package dto

import (
	"time"

	"github.com/codecourt/codecourt-api/internal/models"
)

// StudentRegisterRequest describes the student sign-up payload.
type StudentRegisterRequest struct {
	RollNumber string `json:"roll_number" validate:"required,min=2,max=64"`
	Name       string `json:"name" validate:"required,min=2,max=255"`
	Email      string `json:"email" validate:"required,email,max=255"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest describes the login payload for students and admins.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// AuthResponse carries the issued token and the authenticated profile.
type AuthResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Role      string          `json:"role"`
	Profile   ProfileResponse `json:"profile"`
}

// ProfileResponse serializes the authenticated account.
type ProfileResponse struct {
	ID         uint   `json:"id"`
	RollNumber string `json:"roll_number,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email"`
}

// NewStudentProfile converts a Student model into a profile DTO.
func NewStudentProfile(model models.Student) ProfileResponse {
	return ProfileResponse{
		ID:         model.ID,
		RollNumber: model.RollNumber,
		Name:       model.Name,
		Email:      model.Email,
	}
}

// NewAdminProfile converts an Admin model into a profile DTO.
func NewAdminProfile(model models.Admin) ProfileResponse {
	return ProfileResponse{
		ID:    model.ID,
		Name:  model.Name,
		Email: model.Email,
	}
}
