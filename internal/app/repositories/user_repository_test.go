package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/models"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/db"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/apperrors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository(t *testing.T) {
	forEachDB(t, func(t *testing.T, database *db.DB) {
		ctx := context.Background()
		repo := NewUserRepository(database)

		u := &models.User{Email: " Ayesha@Example.com ", Password: "hash", DisplayName: "Ayesha", IsActive: true}
		require.NoError(t, repo.Create(ctx, u))
		assert.NotZero(t, u.ID)
		assert.Equal(t, "ayesha@example.com", u.Email)

		dup := &models.User{Email: "ayesha@example.com", Password: "hash", IsActive: true}
		assert.ErrorIs(t, repo.Create(ctx, dup), apperrors.ErrEmailAlreadyExists)

		got, err := repo.GetByEmail(ctx, "AYESHA@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.True(t, got.IsActive)
		assert.Nil(t, got.LastLoginAt)

		require.NoError(t, repo.UpdateLastLogin(ctx, u.ID))
		got, err = repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastLoginAt)

		exists, err := repo.EmailExists(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = repo.GetByID(ctx, 9999)
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	})
}

func TestTokenRepository(t *testing.T) {
	forEachDB(t, func(t *testing.T, database *db.DB) {
		ctx := context.Background()
		users := NewUserRepository(database)
		tokens := NewTokenRepository(database)

		u := &models.User{Email: "tokens@example.com", Password: "hash", IsActive: true}
		require.NoError(t, users.Create(ctx, u))

		live := uuid.NewString()
		require.NoError(t, tokens.CreateToken(ctx, live, u.ID, time.Now().Add(time.Hour)))

		userID, _, err := tokens.GetTokenByValue(ctx, live)
		require.NoError(t, err)
		assert.Equal(t, u.ID, userID)

		expired := uuid.NewString()
		require.NoError(t, tokens.CreateToken(ctx, expired, u.ID, time.Now().Add(-time.Hour)))
		_, _, err = tokens.GetTokenByValue(ctx, expired)
		assert.ErrorIs(t, err, apperrors.ErrTokenExpired)

		require.NoError(t, tokens.RevokeToken(ctx, live))
		_, _, err = tokens.GetTokenByValue(ctx, live)
		assert.ErrorIs(t, err, apperrors.ErrTokenRevoked)

		_, _, err = tokens.GetTokenByValue(ctx, "missing")
		assert.ErrorIs(t, err, apperrors.ErrTokenNotFound)
		assert.ErrorIs(t, tokens.RevokeToken(ctx, "missing"), apperrors.ErrTokenNotFound)

		deleted, err := tokens.CleanupExpiredTokens(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})
}
