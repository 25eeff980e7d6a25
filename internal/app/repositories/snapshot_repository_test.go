package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/models"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/db"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/domain/cgpa"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/apperrors"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forEachDB(t *testing.T, fn func(t *testing.T, database *db.DB)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, testutil.SQLite(t)) })
	t.Run("postgres", func(t *testing.T) { fn(t, testutil.Postgres(t)) })
}

func sampleFields(name string) models.SnapshotFields {
	courses := []cgpa.Course{
		{Name: "Calculus", Credits: 3, Grade: cgpa.GradeA},
		{Name: "Physics", Credits: 3, Grade: cgpa.GradeB},
	}
	result, _ := cgpa.Compute(courses, &cgpa.PriorHistory{CGPA: 3, Credits: 30})
	return models.NewSnapshotFields(name, result, courses)
}

func TestSnapshotRepositoryCRUD(t *testing.T) {
	forEachDB(t, func(t *testing.T, database *db.DB) {
		ctx := context.Background()
		repo := NewSnapshotRepository(database)
		owner := testutil.CreateUser(t, database, "owner@example.com")
		other := testutil.CreateUser(t, database, "other@example.com")

		created, err := repo.Create(ctx, owner.ID, sampleFields("Fall 2024"))
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)

		got, err := repo.GetByID(ctx, created.ID, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, "Fall 2024", got.Name)
		assert.Equal(t, 36.0, got.TotalCredits)
		assert.InDelta(t, 111.0, got.TotalGradePoints, 1e-9)
		require.NotNil(t, got.CGPA)
		assert.InDelta(t, 3.0833, *got.CGPA, 1e-4)
		assert.Len(t, got.Courses, 2)
		assert.Equal(t, cgpa.GradeA, got.Courses[0].Grade)
		assert.Equal(t, created.CreatedAt, got.CreatedAt)

		// other owners cannot see or touch it
		_, err = repo.GetByID(ctx, created.ID, other.ID)
		assert.ErrorIs(t, err, apperrors.ErrSnapshotNotFound)
		n, err := repo.Rename(ctx, created.ID, other.ID, "Stolen")
		require.NoError(t, err)
		assert.Zero(t, n)
		n, err = repo.Delete(ctx, created.ID, other.ID)
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = repo.Rename(ctx, created.ID, owner.ID, "Spring 2025")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		fields := models.NewSnapshotFields("Spring 2025", cgpa.Result{}, nil)
		n, err = repo.Update(ctx, created.ID, owner.ID, fields)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err = repo.GetByID(ctx, created.ID, owner.ID)
		require.NoError(t, err)
		assert.Nil(t, got.CGPA)
		assert.Empty(t, got.Courses)
		assert.NotNil(t, got.Courses)

		n, err = repo.Delete(ctx, created.ID, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		_, err = repo.GetByID(ctx, created.ID, owner.ID)
		assert.ErrorIs(t, err, apperrors.ErrSnapshotNotFound)
	})
}

func TestSnapshotRepositoryListNewestFirst(t *testing.T) {
	forEachDB(t, func(t *testing.T, database *db.DB) {
		ctx := context.Background()
		repo := NewSnapshotRepository(database)
		owner := testutil.CreateUser(t, database, "lister@example.com")

		for _, name := range []string{"first", "second", "third"} {
			_, err := repo.Create(ctx, owner.ID, sampleFields(name))
			require.NoError(t, err)
			time.Sleep(2 * time.Millisecond)
		}

		total, err := repo.Count(ctx, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)

		page, err := repo.List(ctx, owner.ID, 0, 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "third", page[0].Name)
		assert.Equal(t, "second", page[1].Name)

		page, err = repo.List(ctx, owner.ID, 2, 2)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "first", page[0].Name)
	})
}

func TestSnapshotRepositoryAutoSaveIsUnique(t *testing.T) {
	forEachDB(t, func(t *testing.T, database *db.DB) {
		ctx := context.Background()
		repo := NewSnapshotRepository(database)
		owner := testutil.CreateUser(t, database, "drafter@example.com")

		_, err := repo.FindByName(ctx, owner.ID, models.AutoSaveName)
		assert.ErrorIs(t, err, apperrors.ErrSnapshotNotFound)

		first, err := repo.Create(ctx, owner.ID, sampleFields(models.AutoSaveName))
		require.NoError(t, err)

		_, err = repo.Create(ctx, owner.ID, sampleFields(models.AutoSaveName))
		assert.ErrorIs(t, err, ErrDuplicateAutoSave)

		found, err := repo.FindByName(ctx, owner.ID, models.AutoSaveName)
		require.NoError(t, err)
		assert.Equal(t, first.ID, found.ID)

		// ordinary names may repeat
		_, err = repo.Create(ctx, owner.ID, sampleFields("Same"))
		require.NoError(t, err)
		_, err = repo.Create(ctx, owner.ID, sampleFields("Same"))
		require.NoError(t, err)
	})
}
