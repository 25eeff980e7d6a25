package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/models"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/db"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/domain/cgpa"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/apperrors"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/dberrors"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/helpers"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/logger"
	"github.com/google/uuid"
)

// ErrDuplicateAutoSave is returned when a second auto-save row would be
// created for the same owner
var ErrDuplicateAutoSave = errors.New("auto-save already exists")

// SnapshotRepository handles cgpa_snapshots database operations. Every
// statement is scoped by owner.
type SnapshotRepository struct {
	db *db.DB
	sb squirrel.StatementBuilderType
}

// NewSnapshotRepository creates a new SnapshotRepository
func NewSnapshotRepository(database *db.DB) *SnapshotRepository {
	return &SnapshotRepository{
		db: database,
		sb: database.Builder(),
	}
}

func (r *SnapshotRepository) columns() []string {
	courses := "courses"
	if r.db.Dialect == db.DialectPostgres {
		courses = "courses::text AS courses"
	}
	return []string{"id", "owner_id", "name", "total_credits", "total_grade_points", "cgpa", courses, "created_at", "updated_at"}
}

func encodeCourses(courses []cgpa.Course) (string, error) {
	if courses == nil {
		courses = []cgpa.Course{}
	}
	b, err := json.Marshal(courses)
	if err != nil {
		return "", fmt.Errorf("encode courses: %w", err)
	}
	return string(b), nil
}

func scanSnapshot(row squirrel.RowScanner) (*models.Snapshot, error) {
	var (
		s                    models.Snapshot
		gpa                  sql.NullFloat64
		courses              string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.TotalCredits, &s.TotalGradePoints, &gpa, &courses, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(courses), &s.Courses); err != nil {
		return nil, fmt.Errorf("decode courses of %s: %w", s.ID, err)
	}
	if s.Courses == nil {
		s.Courses = []cgpa.Course{}
	}
	s.CGPA = helpers.FloatPtr(gpa)
	s.CreatedAt = helpers.FromMillis(createdAt)
	s.UpdatedAt = helpers.FromMillis(updatedAt)
	return &s, nil
}

func (r *SnapshotRepository) getOne(ctx context.Context, where squirrel.Eq) (*models.Snapshot, error) {
	query, args, err := r.sb.Select(r.columns()...).From("cgpa_snapshots").Where(where).Limit(1).ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get snapshot SQL")
		return nil, fmt.Errorf("failed to build get snapshot query: %w", err)
	}

	s, err := scanSnapshot(r.db.SQL.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrSnapshotNotFound
		}
		logger.Error().Err(err).Msg("Error scanning snapshot row")
		return nil, fmt.Errorf("error retrieving snapshot: %w", err)
	}
	return s, nil
}

// GetByID retrieves a snapshot owned by ownerID
func (r *SnapshotRepository) GetByID(ctx context.Context, id string, ownerID int64) (*models.Snapshot, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id, "owner_id": ownerID})
}

// FindByName retrieves the owner's snapshot with the given name. Names other
// than the auto-save name are not unique; the most recent one is returned.
func (r *SnapshotRepository) FindByName(ctx context.Context, ownerID int64, name string) (*models.Snapshot, error) {
	query, args, err := r.sb.Select(r.columns()...).
		From("cgpa_snapshots").
		Where(squirrel.Eq{"owner_id": ownerID, "name": name}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building find snapshot by name SQL")
		return nil, fmt.Errorf("failed to build find snapshot query: %w", err)
	}

	s, err := scanSnapshot(r.db.SQL.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrSnapshotNotFound
		}
		logger.Error().Err(err).Int64("ownerID", ownerID).Msg("Error scanning snapshot row")
		return nil, fmt.Errorf("error finding snapshot: %w", err)
	}
	return s, nil
}

// Create inserts a snapshot for ownerID and returns it
func (r *SnapshotRepository) Create(ctx context.Context, ownerID int64, fields models.SnapshotFields) (*models.Snapshot, error) {
	courses, err := encodeCourses(fields.Courses)
	if err != nil {
		return nil, err
	}

	now := helpers.Now()
	s := &models.Snapshot{
		ID:               uuid.NewString(),
		OwnerID:          ownerID,
		Name:             fields.Name,
		TotalCredits:     fields.TotalCredits,
		TotalGradePoints: fields.TotalGradePoints,
		CGPA:             fields.CGPA,
		Courses:          fields.Courses,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	query, args, err := r.sb.Insert("cgpa_snapshots").
		Columns("id", "owner_id", "name", "total_credits", "total_grade_points", "cgpa", "courses", "created_at", "updated_at").
		Values(s.ID, ownerID, s.Name, s.TotalCredits, s.TotalGradePoints, helpers.GetNullFloat64(s.CGPA), courses,
			helpers.ToMillis(now), helpers.ToMillis(now)).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create snapshot SQL")
		return nil, fmt.Errorf("failed to build create snapshot query: %w", err)
	}

	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		if dberrors.IsUniqueViolation(err) && fields.Name == models.AutoSaveName {
			return nil, ErrDuplicateAutoSave
		}
		logger.Error().Err(err).Int64("ownerID", ownerID).Msg("Error executing create snapshot query")
		return nil, fmt.Errorf("error creating snapshot: %w", err)
	}

	if s.Courses == nil {
		s.Courses = []cgpa.Course{}
	}
	return s, nil
}

// Update replaces the mutable fields of a snapshot. It returns the number of
// rows touched; zero means no such snapshot for this owner.
func (r *SnapshotRepository) Update(ctx context.Context, id string, ownerID int64, fields models.SnapshotFields) (int64, error) {
	courses, err := encodeCourses(fields.Courses)
	if err != nil {
		return 0, err
	}

	query, args, err := r.sb.Update("cgpa_snapshots").
		Set("name", fields.Name).
		Set("total_credits", fields.TotalCredits).
		Set("total_grade_points", fields.TotalGradePoints).
		Set("cgpa", helpers.GetNullFloat64(fields.CGPA)).
		Set("courses", courses).
		Set("updated_at", helpers.ToMillis(helpers.Now())).
		Where(squirrel.Eq{"id": id, "owner_id": ownerID}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building update snapshot SQL")
		return 0, fmt.Errorf("failed to build update snapshot query: %w", err)
	}

	return r.exec(ctx, query, args, "update")
}

// Rename changes only the name of a snapshot
func (r *SnapshotRepository) Rename(ctx context.Context, id string, ownerID int64, name string) (int64, error) {
	query, args, err := r.sb.Update("cgpa_snapshots").
		Set("name", name).
		Set("updated_at", helpers.ToMillis(helpers.Now())).
		Where(squirrel.Eq{"id": id, "owner_id": ownerID}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building rename snapshot SQL")
		return 0, fmt.Errorf("failed to build rename snapshot query: %w", err)
	}

	return r.exec(ctx, query, args, "rename")
}

// Delete removes a snapshot and returns the number of rows removed
func (r *SnapshotRepository) Delete(ctx context.Context, id string, ownerID int64) (int64, error) {
	query, args, err := r.sb.Delete("cgpa_snapshots").
		Where(squirrel.Eq{"id": id, "owner_id": ownerID}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building delete snapshot SQL")
		return 0, fmt.Errorf("failed to build delete snapshot query: %w", err)
	}

	return r.exec(ctx, query, args, "delete")
}

func (r *SnapshotRepository) exec(ctx context.Context, query string, args []interface{}, op string) (int64, error) {
	res, err := r.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		logger.Error().Err(err).Str("op", op).Msg("Error executing snapshot query")
		return 0, fmt.Errorf("error on snapshot %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading affected rows on snapshot %s: %w", op, err)
	}
	return n, nil
}

// List returns the owner's snapshots, newest first
func (r *SnapshotRepository) List(ctx context.Context, ownerID int64, offset uint64, limit int) ([]*models.Snapshot, error) {
	query, args, err := r.sb.Select(r.columns()...).
		From("cgpa_snapshots").
		Where(squirrel.Eq{"owner_id": ownerID}).
		OrderBy("created_at DESC", "id DESC").
		Offset(offset).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list snapshots SQL")
		return nil, fmt.Errorf("failed to build list snapshots query: %w", err)
	}

	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Error().Err(err).Int64("ownerID", ownerID).Msg("Error executing list snapshots query")
		return nil, fmt.Errorf("error listing snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]*models.Snapshot, 0)
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			logger.Error().Err(err).Msg("Error scanning snapshot row")
			return nil, fmt.Errorf("error scanning snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snapshots, nil
}

// Count returns how many snapshots the owner has
func (r *SnapshotRepository) Count(ctx context.Context, ownerID int64) (int64, error) {
	query, args, err := r.sb.Select("COUNT(*)").
		From("cgpa_snapshots").
		Where(squirrel.Eq{"owner_id": ownerID}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building count snapshots SQL")
		return 0, fmt.Errorf("failed to build count snapshots query: %w", err)
	}

	var total int64
	if err := r.db.SQL.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		logger.Error().Err(err).Int64("ownerID", ownerID).Msg("Error executing count snapshots query")
		return 0, fmt.Errorf("error counting snapshots: %w", err)
	}
	return total, nil
}
