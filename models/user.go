package models

import (
	"time"

	"gorm.io/gorm"
)

// User roles. Employees run the self-appraisal conversation, team leads
// review submissions, HR reads aggregates.
const (
	RoleEmployee = "employee"
	RoleTeamLead = "team_lead"
	RoleHR       = "hr"
)

type User struct {
	ID         string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Email      string         `gorm:"uniqueIndex;not null" json:"email"`
	Password   string         `gorm:"size:255" json:"-"` // Hashed password (excluded from JSON)
	FirstName  string         `gorm:"size:255" json:"first_name"`
	LastName   string         `gorm:"size:255" json:"last_name"`
	Department string         `gorm:"size:100" json:"department,omitempty"`
	Role       string         `gorm:"default:'employee';check:role IN ('employee', 'team_lead', 'hr')" json:"role"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Appraisals    []AppraisalSubmission `gorm:"foreignKey:EmployeeID" json:"appraisals,omitempty"`
	RefreshTokens []RefreshToken        `gorm:"foreignKey:UserID" json:"refresh_tokens,omitempty"`
}

type RefreshToken struct {
	ID        string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID    string         `gorm:"type:uuid;not null;index" json:"user_id"`
	Token     string         `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time      `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
