package seed

import (
	"context"
	"testing"

	appRepos "github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/repositories"
	appServices "github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/services"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/auth"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCreateDefaultData(t *testing.T) {
	auth.BcryptCost = bcrypt.MinCost
	ctx := context.Background()
	database := testutil.SQLite(t)
	repos := appRepos.NewRepositories(database)
	svc := appServices.NewSnapshotService(repos.SnapshotRepository, nil, nil, zerolog.Nop())
	opts := Options{DemoEmail: " Demo@UOL.edu.pk ", DemoPassword: "demoPass1"}

	require.NoError(t, CreateDefaultData(ctx, repos.UserRepository, svc, opts, zerolog.Nop()))

	user, err := repos.UserRepository.GetByEmail(ctx, "demo@uol.edu.pk")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(user.Password, "demoPass1"))

	items, page, err := svc.List(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.TotalItems)
	require.Len(t, items, 1)
	assert.Equal(t, DemoCalculationName, items[0].Name)
	assert.InDelta(t, 13.0, items[0].TotalCredits, 1e-9)

	// second run is a no-op
	require.NoError(t, CreateDefaultData(ctx, repos.UserRepository, svc, opts, zerolog.Nop()))
	_, page, err = svc.List(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.TotalItems)
}

func TestCreateDefaultDataSkipsWithoutCredentials(t *testing.T) {
	database := testutil.SQLite(t)
	repos := appRepos.NewRepositories(database)
	svc := appServices.NewSnapshotService(repos.SnapshotRepository, nil, nil, zerolog.Nop())

	require.NoError(t, CreateDefaultData(context.Background(), repos.UserRepository, svc, Options{DemoEmail: "demo@uol.edu.pk"}, zerolog.Nop()))

	exists, err := repos.UserRepository.EmailExists(context.Background(), "demo@uol.edu.pk")
	require.NoError(t, err)
	assert.False(t, exists)
}
