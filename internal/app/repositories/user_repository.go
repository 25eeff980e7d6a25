package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/models"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/db"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/apperrors"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/dberrors"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/helpers"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/logger"
)

var userColumns = []string{"id", "email", "password", "display_name", "is_active", "last_login_at", "created_at", "updated_at"}

// UserRepository handles user database operations
type UserRepository struct {
	db *db.DB
	sb squirrel.StatementBuilderType
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(database *db.DB) *UserRepository {
	return &UserRepository{
		db: database,
		sb: database.Builder(),
	}
}

// Create inserts a user and sets its ID and timestamps
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := helpers.Now()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	query, args, err := r.sb.Insert("users").
		Columns("email", "password", "display_name", "is_active", "created_at", "updated_at").
		Values(user.Email, user.Password, user.DisplayName, user.IsActive, helpers.ToMillis(now), helpers.ToMillis(now)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create user SQL")
		return fmt.Errorf("failed to build create user query: %w", err)
	}

	if err := r.db.SQL.QueryRowContext(ctx, query, args...).Scan(&user.ID); err != nil {
		if dberrors.IsDuplicateConstraintError(err, "users_email_key") {
			return apperrors.ErrEmailAlreadyExists
		}
		logger.Error().Err(err).Str("email", user.Email).Msg("Error executing create user query")
		return fmt.Errorf("error creating user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func scanUser(row squirrel.RowScanner) (*models.User, error) {
	var (
		u                    models.User
		lastLogin            sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName, &u.IsActive, &lastLogin, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u.LastLoginAt = helpers.NullMillisToTime(lastLogin)
	u.CreatedAt = helpers.FromMillis(createdAt)
	u.UpdatedAt = helpers.FromMillis(updatedAt)
	return &u, nil
}

func (r *UserRepository) getBy(ctx context.Context, where squirrel.Sqlizer) (*models.User, error) {
	query, args, err := r.sb.Select(userColumns...).From("users").Where(where).Limit(1).ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get user SQL")
		return nil, fmt.Errorf("failed to build get user query: %w", err)
	}

	u, err := scanUser(r.db.SQL.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		logger.Error().Err(err).Msg("Error scanning user row")
		return nil, fmt.Errorf("error retrieving user: %w", err)
	}
	return u, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getBy(ctx, squirrel.Eq{"email": strings.ToLower(strings.TrimSpace(email))})
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getBy(ctx, squirrel.Eq{"id": id})
}

// EmailExists checks if an email is already registered
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if errors.Is(err, apperrors.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateLastLogin stamps the last login time
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID int64) error {
	now := helpers.ToMillis(helpers.Now())
	query, args, err := r.sb.Update("users").
		Set("last_login_at", now).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building update last login SQL")
		return fmt.Errorf("failed to build update last login query: %w", err)
	}

	res, err := r.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		logger.Error().Err(err).Int64("userID", userID).Msg("Error executing update last login query")
		return fmt.Errorf("error updating last login: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}
