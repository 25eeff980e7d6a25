package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/models"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/repositories"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/domain/cgpa"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/apperrors"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/autosave"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.SnapshotEvent
}

func (n *recordingNotifier) Publish(_ context.Context, e models.SnapshotEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) types() []models.SnapshotEventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.SnapshotEventType, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc      SnapshotService
	notifier *recordingNotifier
	fps      *autosave.MemoryFingerprintStore
	owner    int64
	other    int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := testutil.SQLite(t)
	notifier := &recordingNotifier{}
	fps := autosave.NewMemoryFingerprintStore(0)
	return &fixture{
		svc:      NewSnapshotService(repositories.NewSnapshotRepository(database), fps, notifier, zerolog.Nop()),
		notifier: notifier,
		fps:      fps,
		owner:    testutil.CreateUser(t, database, "owner@uol.edu.pk").ID,
		other:    testutil.CreateUser(t, database, "other@uol.edu.pk").ID,
	}
}

func courses() []cgpa.Course {
	return []cgpa.Course{
		{Name: "Calculus", Credits: 3, Grade: cgpa.GradeA},
		{Name: "Physics", Credits: 3, Grade: cgpa.GradeB},
	}
}

func TestCalculate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Calculate(ctx, courses(), nil)
	require.NoError(t, err)
	v, ok := res.CGPA()
	require.True(t, ok)
	assert.InDelta(t, 3.5, v, 1e-12)

	res, err = f.svc.Calculate(ctx, nil, nil)
	require.NoError(t, err)
	assert.True(t, res.Indeterminate())

	_, err = f.svc.Calculate(ctx, []cgpa.Course{{Credits: 3, Grade: "E"}}, nil)
	assert.ErrorIs(t, err, cgpa.ErrInvalidGrade)

	assert.Len(t, f.svc.Grades(), 9)
}

func TestCreateAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	snap, err := f.svc.Create(ctx, f.owner, SnapshotInput{
		Name:    "  Fall 2024  ",
		Courses: courses(),
		Prior:   &cgpa.PriorHistory{CGPA: 3, Credits: 30},
	})
	require.NoError(t, err)
	assert.Equal(t, "Fall 2024", snap.Name)
	assert.InDelta(t, 36, snap.TotalCredits, 1e-12)
	assert.InDelta(t, 111, snap.TotalGradePoints, 1e-12)
	require.NotNil(t, snap.CGPA)
	assert.InDelta(t, 111.0/36.0, *snap.CGPA, 1e-12)

	got, err := f.svc.Get(ctx, f.owner, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)
	assert.Len(t, got.Courses, 2)

	_, err = f.svc.Get(ctx, f.other, snap.ID)
	assert.ErrorIs(t, err, apperrors.ErrSnapshotNotFound)

	assert.Equal(t, []models.SnapshotEventType{models.SnapshotCreated}, f.notifier.types())
}

func TestCreateRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   SnapshotInput
		want error
	}{
		{"empty name", SnapshotInput{Name: "   ", Courses: courses()}, apperrors.ErrValidationFailed},
		{"reserved name", SnapshotInput{Name: models.AutoSaveName, Courses: courses()}, apperrors.ErrReservedName},
		{"reserved name any case", SnapshotInput{Name: "auto-SAVED", Courses: courses()}, apperrors.ErrReservedName},
		{"no credits", SnapshotInput{Name: "Empty"}, apperrors.ErrIndeterminate},
		{"zero credit courses", SnapshotInput{Name: "Zero", Courses: []cgpa.Course{{Credits: 0, Grade: cgpa.GradeA}}}, apperrors.ErrIndeterminate},
		{"bad grade", SnapshotInput{Name: "Bad", Courses: []cgpa.Course{{Credits: 3, Grade: "A+"}}}, cgpa.ErrInvalidGrade},
		{"negative credits", SnapshotInput{Name: "Bad", Courses: []cgpa.Course{{Credits: -1, Grade: cgpa.GradeA}}}, cgpa.ErrInvalidCourse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, f.owner, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, info, err := f.svc.List(ctx, f.owner, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.TotalItems)
}

func TestUpdateRenameDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	snap, err := f.svc.Create(ctx, f.owner, SnapshotInput{Name: "Fall", Courses: courses()})
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, f.owner, snap.ID, SnapshotInput{
		Name:    "Fall revised",
		Courses: []cgpa.Course{{Name: "Calculus", Credits: 4, Grade: cgpa.GradeB}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Fall revised", updated.Name)
	assert.InDelta(t, 4, updated.TotalCredits, 1e-12)
	assert.InDelta(t, 3, *updated.CGPA, 1e-12)

	_, err = f.svc.Update(ctx, f.other, snap.ID, SnapshotInput{Name: "Stolen", Courses: courses()})
	assert.ErrorIs(t, err, apperrors.ErrSnapshotNotFound)

	renamed, err := f.svc.Rename(ctx, f.owner, snap.ID, "Final")
	require.NoError(t, err)
	assert.Equal(t, "Final", renamed.Name)
	assert.InDelta(t, 4, renamed.TotalCredits, 1e-12)

	_, err = f.svc.Rename(ctx, f.owner, snap.ID, models.AutoSaveName)
	assert.ErrorIs(t, err, apperrors.ErrReservedName)

	_, err = f.svc.Rename(ctx, f.owner, "missing", "Whatever")
	assert.ErrorIs(t, err, apperrors.ErrSnapshotNotFound)

	assert.ErrorIs(t, f.svc.Delete(ctx, f.other, snap.ID), apperrors.ErrSnapshotNotFound)
	require.NoError(t, f.svc.Delete(ctx, f.owner, snap.ID))
	assert.ErrorIs(t, f.svc.Delete(ctx, f.owner, snap.ID), apperrors.ErrSnapshotNotFound)

	assert.Equal(t, []models.SnapshotEventType{
		models.SnapshotCreated, models.SnapshotUpdated, models.SnapshotRenamed, models.SnapshotDeleted,
	}, f.notifier.types())
}

func TestListPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"one", "two", "three"} {
		_, err := f.svc.Create(ctx, f.owner, SnapshotInput{Name: name, Courses: courses()})
		require.NoError(t, err)
	}

	items, info, err := f.svc.List(ctx, f.owner, 1, 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int64(3), info.TotalItems)
	assert.Equal(t, 2, info.TotalPages)

	items, _, err = f.svc.List(ctx, f.owner, 2, 2)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, info, err = f.svc.List(ctx, f.other, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, int64(0), info.TotalItems)
}

func TestEditViewRecoversPriorHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	snap, err := f.svc.Create(ctx, f.owner, SnapshotInput{
		Name:    "With prior",
		Courses: courses(),
		Prior:   &cgpa.PriorHistory{CGPA: 3, Credits: 30},
	})
	require.NoError(t, err)

	v, err := f.svc.EditView(ctx, f.owner, snap.ID)
	require.NoError(t, err)
	require.NotNil(t, v.Decomposition.Prior)
	assert.True(t, v.Decomposition.UsePrior())
	assert.InDelta(t, 3, v.Decomposition.Prior.CGPA, 1e-9)
	assert.InDelta(t, 30, v.Decomposition.Prior.Credits, 1e-9)
	assert.Len(t, v.Decomposition.Courses, 2)

	prior, err := f.svc.PriorHistoryView(ctx, f.owner, snap.ID)
	require.NoError(t, err)
	assert.Empty(t, prior.Decomposition.Courses)
	require.NotNil(t, prior.Decomposition.Prior)

	plain, err := f.svc.Create(ctx, f.owner, SnapshotInput{Name: "No prior", Courses: courses()})
	require.NoError(t, err)
	v, err = f.svc.EditView(ctx, f.owner, plain.ID)
	require.NoError(t, err)
	assert.Nil(t, v.Decomposition.Prior)
	assert.False(t, v.Decomposition.UsePrior())

	_, err = f.svc.EditView(ctx, f.other, plain.ID)
	assert.ErrorIs(t, err, apperrors.ErrSnapshotNotFound)
}

func TestAutoSave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.AutoSave(ctx, f.owner, autosave.Draft{})
	require.NoError(t, err)
	assert.False(t, out.Saved)
	assert.Equal(t, MsgNoData, out.Message)

	_, err = f.svc.GetAutoSave(ctx, f.owner)
	assert.ErrorIs(t, err, apperrors.ErrSnapshotNotFound)

	draft := autosave.Draft{Courses: courses(), Prior: &cgpa.PriorHistory{CGPA: 3, Credits: 30}}
	out, err = f.svc.AutoSave(ctx, f.owner, draft)
	require.NoError(t, err)
	require.True(t, out.Saved)
	assert.Equal(t, models.AutoSaveName, out.Snapshot.Name)
	firstID := out.Snapshot.ID

	// same draft again is skipped
	out, err = f.svc.AutoSave(ctx, f.owner, draft)
	require.NoError(t, err)
	assert.False(t, out.Saved)
	assert.Equal(t, MsgNoChanges, out.Message)

	draft.Courses = append(draft.Courses, cgpa.Course{Name: "Chemistry", Credits: 2, Grade: cgpa.GradeC})
	out, err = f.svc.AutoSave(ctx, f.owner, draft)
	require.NoError(t, err)
	require.True(t, out.Saved)
	assert.Equal(t, firstID, out.Snapshot.ID, "auto-save updates the same row")

	v, err := f.svc.GetAutoSave(ctx, f.owner)
	require.NoError(t, err)
	assert.Len(t, v.Decomposition.Courses, 3)
	require.NotNil(t, v.Decomposition.Prior)
	assert.InDelta(t, 30, v.Decomposition.Prior.Credits, 1e-9)

	items, _, err := f.svc.List(ctx, f.owner, 1, 10)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	assert.Equal(t, []models.SnapshotEventType{models.SnapshotAutoSaved, models.SnapshotAutoSaved}, f.notifier.types())
}

func TestAutoSaveIndeterminateStoresNullCGPA(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.AutoSave(ctx, f.owner, autosave.Draft{
		Courses: []cgpa.Course{{Name: "Audit", Credits: 0, Grade: cgpa.GradeA}},
	})
	require.NoError(t, err)
	require.True(t, out.Saved)
	assert.Nil(t, out.Snapshot.CGPA)
}

func TestAutoSaveRejectsInvalidDraft(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AutoSave(context.Background(), f.owner, autosave.Draft{
		Courses: []cgpa.Course{{Credits: 3, Grade: "Z"}},
	})
	assert.ErrorIs(t, err, cgpa.ErrInvalidGrade)
}

func TestAutoSaveAfterDeleteRecreates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := autosave.Draft{Courses: courses()}

	out, err := f.svc.AutoSave(ctx, f.owner, draft)
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, f.owner, out.Snapshot.ID))

	// deleting forgets the fingerprint, so the identical draft is written again
	out, err = f.svc.AutoSave(ctx, f.owner, draft)
	require.NoError(t, err)
	assert.True(t, out.Saved)
}

func TestAutoSaveConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.AutoSave(ctx, f.owner, autosave.Draft{
				Courses: []cgpa.Course{{Name: "c", Credits: float64(i + 1), Grade: cgpa.GradeB}},
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	items, _, err := f.svc.List(ctx, f.owner, 1, 10)
	require.NoError(t, err)
	assert.Len(t, items, 1, "one auto-save row per owner")
}

type failingStore struct{ autosave.FingerprintStore }

func (failingStore) Get(context.Context, int64) (uint64, bool, error) {
	return 0, false, errors.New("redis down")
}

func TestAutoSaveSurvivesFingerprintStoreErrors(t *testing.T) {
	database := testutil.SQLite(t)
	owner := testutil.CreateUser(t, database, "owner@uol.edu.pk").ID
	svc := NewSnapshotService(repositories.NewSnapshotRepository(database),
		failingStore{autosave.NewMemoryFingerprintStore(0)}, nil, zerolog.Nop())

	out, err := svc.AutoSave(context.Background(), owner, autosave.Draft{Courses: courses()})
	require.NoError(t, err)
	assert.True(t, out.Saved)
}
