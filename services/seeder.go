package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kaizenhr/appraise/backend/models"
	"github.com/kaizenhr/appraise/backend/repository"
	"golang.org/x/crypto/bcrypt"
)

// DatabaseSeeder handles database seeding operations
type DatabaseSeeder struct {
	repo *repository.GORMRepository
}

// NewDatabaseSeeder creates a new database seeder
func NewDatabaseSeeder(repo *repository.GORMRepository) *DatabaseSeeder {
	return &DatabaseSeeder{repo: repo}
}

// SeedDatabase seeds the database with demo users for each role (idempotent)
func (s *DatabaseSeeder) SeedDatabase() error {
	ctx := context.Background()

	// Hash default password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	users := []models.User{
		{
			Email:      "hr@example.com",
			Password:   string(hashedPassword),
			FirstName:  "Helen",
			LastName:   "Reyes",
			Department: "Human Resources",
			Role:       models.RoleHR,
		},
		{
			Email:      "lead@example.com",
			Password:   string(hashedPassword),
			FirstName:  "Tomas",
			LastName:   "Varga",
			Department: "Engineering",
			Role:       models.RoleTeamLead,
		},
		{
			Email:      "alice@example.com",
			Password:   string(hashedPassword),
			FirstName:  "Alice",
			LastName:   "Kovacs",
			Department: "Engineering",
			Role:       models.RoleEmployee,
		},
		{
			Email:      "bob@example.com",
			Password:   string(hashedPassword),
			FirstName:  "Bob",
			LastName:   "Nagy",
			Department: "Engineering",
			Role:       models.RoleEmployee,
		},
		{
			Email:      "carol@example.com",
			Password:   string(hashedPassword),
			FirstName:  "Carol",
			LastName:   "Szabo",
			Department: "Customer Success",
			Role:       models.RoleEmployee,
		},
	}

	// Seed users (idempotent)
	for _, user := range users {
		if err := s.seedUser(ctx, user); err != nil {
			slog.Error("Failed to seed user", "email", user.Email, "error", err)
		}
	}

	slog.Info("Database seeding completed")
	return nil
}

// seedUser seeds a single user (idempotent)
func (s *DatabaseSeeder) seedUser(ctx context.Context, user models.User) error {
	// Check if user already exists
	existingUser, err := s.repo.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return fmt.Errorf("error checking user %s: %w", user.Email, err)
	}

	if existingUser != nil {
		slog.Info("User already exists, skipping", "email", user.Email)
		return nil
	}

	// User doesn't exist, create it
	if err := s.repo.CreateUser(ctx, &user); err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.Email, err)
	}

	slog.Info("Created user", "email", user.Email, "role", user.Role)
	return nil
}
