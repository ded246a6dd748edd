package models

import "time"

// Student represents an exam-taking user account.
type Student struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RollNumber   string    `gorm:"size:64;uniqueIndex;not null" json:"roll_number"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Admin represents a staff account that manages assignments and proctoring.
type Admin struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const (
	// RoleStudent identifies exam takers in JWT claims.
	RoleStudent = "student"
	// RoleAdmin identifies staff in JWT claims.
	RoleAdmin = "admin"
)
