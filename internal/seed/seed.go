// Package seed creates the optional demo account at startup.
package seed

import (
	"context"
	"errors"
	"strings"

	appModels "github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/models"
	appRepos "github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/repositories"
	appServices "github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/services"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/domain/cgpa"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/auth"
	"github.com/rs/zerolog"
)

// DemoCalculationName is the sample calculation given to a new demo account
const DemoCalculationName = "Sample: Fall 2024"

// Options configures the demo account. Seeding is skipped unless both
// fields are set.
type Options struct {
	DemoEmail    string
	DemoPassword string
}

// CreateDefaultData creates the demo user and a sample calculation if the
// user does not exist yet
func CreateDefaultData(ctx context.Context, userRepo *appRepos.UserRepository, snapshots appServices.SnapshotService, opts Options, lgr zerolog.Logger) error {
	email := strings.ToLower(strings.TrimSpace(opts.DemoEmail))
	if email == "" || opts.DemoPassword == "" {
		lgr.Debug().Msg("Demo account not configured, skipping seed")
		return nil
	}

	exists, err := userRepo.EmailExists(ctx, email)
	if err != nil {
		lgr.Error().Err(err).Msg("Error checking if demo user exists")
		return err
	}
	if exists {
		lgr.Info().Str("email", email).Msg("Demo user already exists, skipping creation")
		return nil
	}

	hashedPassword, err := auth.HashPassword(opts.DemoPassword)
	if err != nil {
		lgr.Error().Err(err).Msg("Error hashing demo password")
		return err
	}

	demo := &appModels.User{
		Email:       email,
		Password:    hashedPassword,
		DisplayName: "Demo Student",
		IsActive:    true,
	}
	if err := userRepo.Create(ctx, demo); err != nil {
		lgr.Error().Err(err).Msg("Error creating demo user")
		return err
	}
	lgr.Info().Int64("userID", demo.ID).Str("email", email).Msg("Demo user created")

	var finalErr error
	_, err = snapshots.Create(ctx, demo.ID, appServices.SnapshotInput{
		Name: DemoCalculationName,
		Courses: []cgpa.Course{
			{Name: "Programming Fundamentals", Credits: 4, Grade: cgpa.GradeA},
			{Name: "Calculus and Analytical Geometry", Credits: 3, Grade: cgpa.GradeBPlus},
			{Name: "English Composition", Credits: 3, Grade: cgpa.GradeAMinus},
			{Name: "Applied Physics", Credits: 3, Grade: cgpa.GradeB},
		},
	})
	if err != nil {
		lgr.Error().Err(err).Msg("Error creating sample calculation")
		finalErr = errors.Join(finalErr, err)
	}

	return finalErr
}
