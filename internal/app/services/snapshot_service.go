package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/models"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/models/dto"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/repositories"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/domain/cgpa"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/apperrors"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/autosave"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/helpers"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/tracing"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/validation"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Auto-save outcome messages
const (
	MsgAutoSaved = "Auto-saved"
	MsgNoData    = "No data to save"
	MsgNoChanges = "No changes since last auto-save"
)

const autoSaveTries = 3

// Notifier receives snapshot change events after they are committed
type Notifier interface {
	Publish(ctx context.Context, event models.SnapshotEvent)
}

// NopNotifier drops every event
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, models.SnapshotEvent) {}

// SnapshotInput is a calculation as entered by the user. Totals are always
// recomputed from it.
type SnapshotInput struct {
	Name    string
	Courses []cgpa.Course
	Prior   *cgpa.PriorHistory
}

// AutoSaveOutcome reports what an auto-save did
type AutoSaveOutcome struct {
	Saved    bool
	Message  string
	Snapshot *models.Snapshot
}

// SnapshotView is a saved calculation split back into its editing form
type SnapshotView struct {
	Snapshot      *models.Snapshot
	Decomposition cgpa.Decomposition
}

// SnapshotService defines calculation and saved-calculation operations
type SnapshotService interface {
	Grades() []cgpa.GradePoint
	Calculate(ctx context.Context, courses []cgpa.Course, prior *cgpa.PriorHistory) (cgpa.Result, error)

	List(ctx context.Context, ownerID int64, page, size int) ([]*models.Snapshot, dto.PaginationInfo, error)
	Get(ctx context.Context, ownerID int64, id string) (*models.Snapshot, error)
	Create(ctx context.Context, ownerID int64, in SnapshotInput) (*models.Snapshot, error)
	Update(ctx context.Context, ownerID int64, id string, in SnapshotInput) (*models.Snapshot, error)
	Rename(ctx context.Context, ownerID int64, id, name string) (*models.Snapshot, error)
	Delete(ctx context.Context, ownerID int64, id string) error

	EditView(ctx context.Context, ownerID int64, id string) (*SnapshotView, error)
	PriorHistoryView(ctx context.Context, ownerID int64, id string) (*SnapshotView, error)

	AutoSave(ctx context.Context, ownerID int64, draft autosave.Draft) (*AutoSaveOutcome, error)
	GetAutoSave(ctx context.Context, ownerID int64) (*SnapshotView, error)
}

// snapshotServiceImpl implements SnapshotService
type snapshotServiceImpl struct {
	repo         *repositories.SnapshotRepository
	fingerprints autosave.FingerprintStore
	notifier     Notifier
	logger       zerolog.Logger
}

// NewSnapshotService creates a new snapshot service instance
func NewSnapshotService(
	repo *repositories.SnapshotRepository,
	fingerprints autosave.FingerprintStore,
	notifier Notifier,
	logger zerolog.Logger,
) SnapshotService {
	if fingerprints == nil {
		fingerprints = autosave.NewMemoryFingerprintStore(0)
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &snapshotServiceImpl{
		repo:         repo,
		fingerprints: fingerprints,
		notifier:     notifier,
		logger:       logger,
	}
}

func startSpan(ctx context.Context, name string, ownerID int64) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.Int64("owner.id", ownerID)))
}

// validateName trims and checks a user supplied calculation name
func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !validation.ValidCalculationName(name) {
		return "", apperrors.NewValidationError("calculationName",
			fmt.Sprintf("calculation name must be %d-%d characters", validation.NameMinLength, validation.NameMaxLength))
	}
	if strings.EqualFold(name, models.AutoSaveName) {
		return "", fmt.Errorf("%w: %q", apperrors.ErrReservedName, models.AutoSaveName)
	}
	return name, nil
}

// computeSaveable runs the engine and refuses results without credits
func computeSaveable(in SnapshotInput) (cgpa.Result, error) {
	result, err := cgpa.Compute(in.Courses, in.Prior)
	if err != nil {
		return cgpa.Result{}, err
	}
	if result.Indeterminate() {
		return cgpa.Result{}, apperrors.ErrIndeterminate
	}
	return result, nil
}

func (s *snapshotServiceImpl) publish(ctx context.Context, typ models.SnapshotEventType, snap *models.Snapshot) {
	s.notifier.Publish(ctx, models.SnapshotEvent{
		Type:       typ,
		OwnerID:    snap.OwnerID,
		SnapshotID: snap.ID,
		Name:       snap.Name,
		At:         time.Now().UTC(),
	})
}

func (s *snapshotServiceImpl) forgetFingerprint(ctx context.Context, ownerID int64) {
	if err := s.fingerprints.Forget(ctx, ownerID); err != nil {
		s.logger.Warn().Err(err).Int64("ownerID", ownerID).Msg("Failed to forget auto-save fingerprint")
	}
}

// Grades returns the grade table
func (s *snapshotServiceImpl) Grades() []cgpa.GradePoint {
	return cgpa.Grades()
}

// Calculate computes without persisting
func (s *snapshotServiceImpl) Calculate(ctx context.Context, courses []cgpa.Course, prior *cgpa.PriorHistory) (cgpa.Result, error) {
	_, span := tracer.Start(ctx, "SnapshotService.Calculate", trace.WithAttributes(attribute.Int("courses", len(courses))))
	result, err := cgpa.Compute(courses, prior)
	tracing.End(span, err)
	return result, err
}

// List returns one page of the owner's snapshots, newest first
func (s *snapshotServiceImpl) List(ctx context.Context, ownerID int64, page, size int) (items []*models.Snapshot, info dto.PaginationInfo, err error) {
	ctx, span := startSpan(ctx, "SnapshotService.List", ownerID)
	defer func() { tracing.End(span, err) }()

	offset, limit := helpers.CalculateOffsetLimit(page, size)

	total, err := s.repo.Count(ctx, ownerID)
	if err != nil {
		return nil, dto.PaginationInfo{}, fmt.Errorf("error counting calculations: %w", err)
	}

	items, err = s.repo.List(ctx, ownerID, offset, limit)
	if err != nil {
		return nil, dto.PaginationInfo{}, fmt.Errorf("error listing calculations: %w", err)
	}

	return items, helpers.NewPaginationInfo(total, page, limit), nil
}

// Get returns one snapshot
func (s *snapshotServiceImpl) Get(ctx context.Context, ownerID int64, id string) (snap *models.Snapshot, err error) {
	ctx, span := startSpan(ctx, "SnapshotService.Get", ownerID)
	defer func() { tracing.End(span, err) }()

	return s.repo.GetByID(ctx, id, ownerID)
}

// Create validates, recomputes and stores a named snapshot
func (s *snapshotServiceImpl) Create(ctx context.Context, ownerID int64, in SnapshotInput) (snap *models.Snapshot, err error) {
	ctx, span := startSpan(ctx, "SnapshotService.Create", ownerID)
	defer func() { tracing.End(span, err) }()

	name, err := validateName(in.Name)
	if err != nil {
		return nil, err
	}
	result, err := computeSaveable(in)
	if err != nil {
		return nil, err
	}

	snap, err = s.repo.Create(ctx, ownerID, models.NewSnapshotFields(name, result, in.Courses))
	if err != nil {
		return nil, fmt.Errorf("error creating calculation: %w", err)
	}

	s.logger.Info().Int64("ownerID", ownerID).Str("snapshotID", snap.ID).Msg("Calculation saved")
	s.publish(ctx, models.SnapshotCreated, snap)
	return snap, nil
}

// Update replaces name, courses and totals of a snapshot
func (s *snapshotServiceImpl) Update(ctx context.Context, ownerID int64, id string, in SnapshotInput) (snap *models.Snapshot, err error) {
	ctx, span := startSpan(ctx, "SnapshotService.Update", ownerID)
	defer func() { tracing.End(span, err) }()

	name, err := validateName(in.Name)
	if err != nil {
		return nil, err
	}
	result, err := computeSaveable(in)
	if err != nil {
		return nil, err
	}

	n, err := s.repo.Update(ctx, id, ownerID, models.NewSnapshotFields(name, result, in.Courses))
	if err != nil {
		return nil, fmt.Errorf("error updating calculation: %w", err)
	}
	if n == 0 {
		return nil, apperrors.ErrSnapshotNotFound
	}

	snap, err = s.repo.GetByID(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	s.forgetFingerprint(ctx, ownerID)
	s.publish(ctx, models.SnapshotUpdated, snap)
	return snap, nil
}

// Rename changes only the name of a snapshot
func (s *snapshotServiceImpl) Rename(ctx context.Context, ownerID int64, id, name string) (snap *models.Snapshot, err error) {
	ctx, span := startSpan(ctx, "SnapshotService.Rename", ownerID)
	defer func() { tracing.End(span, err) }()

	name, err = validateName(name)
	if err != nil {
		return nil, err
	}

	n, err := s.repo.Rename(ctx, id, ownerID, name)
	if err != nil {
		return nil, fmt.Errorf("error renaming calculation: %w", err)
	}
	if n == 0 {
		return nil, apperrors.ErrSnapshotNotFound
	}

	snap, err = s.repo.GetByID(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	s.forgetFingerprint(ctx, ownerID)
	s.publish(ctx, models.SnapshotRenamed, snap)
	return snap, nil
}

// Delete removes a snapshot
func (s *snapshotServiceImpl) Delete(ctx context.Context, ownerID int64, id string) (err error) {
	ctx, span := startSpan(ctx, "SnapshotService.Delete", ownerID)
	defer func() { tracing.End(span, err) }()

	n, err := s.repo.Delete(ctx, id, ownerID)
	if err != nil {
		return fmt.Errorf("error deleting calculation: %w", err)
	}
	if n == 0 {
		return apperrors.ErrSnapshotNotFound
	}

	s.forgetFingerprint(ctx, ownerID)
	s.publish(ctx, models.SnapshotDeleted, &models.Snapshot{ID: id, OwnerID: ownerID})
	return nil
}

func (s *snapshotServiceImpl) view(snap *models.Snapshot) (*SnapshotView, error) {
	d, err := cgpa.Decompose(snap.Result(), snap.Courses)
	if err != nil {
		// stored rows were validated on write
		return nil, fmt.Errorf("error decomposing calculation %s: %w", snap.ID, err)
	}
	return &SnapshotView{Snapshot: snap, Decomposition: d}, nil
}

// EditView splits a snapshot into prior history and its listed courses
func (s *snapshotServiceImpl) EditView(ctx context.Context, ownerID int64, id string) (v *SnapshotView, err error) {
	ctx, span := startSpan(ctx, "SnapshotService.EditView", ownerID)
	defer func() { tracing.End(span, err) }()

	snap, err := s.repo.GetByID(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	return s.view(snap)
}

// PriorHistoryView loads only the recovered prior history of a snapshot
func (s *snapshotServiceImpl) PriorHistoryView(ctx context.Context, ownerID int64, id string) (*SnapshotView, error) {
	v, err := s.EditView(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	v.Decomposition = cgpa.PriorOnly(v.Decomposition)
	return v, nil
}

// AutoSave persists the in-progress draft under the reserved name. Unchanged
// drafts and empty drafts are not written.
func (s *snapshotServiceImpl) AutoSave(ctx context.Context, ownerID int64, draft autosave.Draft) (out *AutoSaveOutcome, err error) {
	ctx, span := startSpan(ctx, "SnapshotService.AutoSave", ownerID)
	defer func() { tracing.End(span, err) }()

	if draft.Empty() {
		return &AutoSaveOutcome{Saved: false, Message: MsgNoData}, nil
	}

	result, err := cgpa.Compute(draft.Courses, draft.Prior)
	if err != nil {
		return nil, err
	}

	fp := autosave.Fingerprint(draft)
	last, ok, err := s.fingerprints.Get(ctx, ownerID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("ownerID", ownerID).Msg("Fingerprint lookup failed, saving anyway")
	} else if ok && last == fp {
		span.SetAttributes(attribute.Bool("autosave.skipped", true))
		return &AutoSaveOutcome{Saved: false, Message: MsgNoChanges}, nil
	}

	snap, err := s.upsertAutoSave(ctx, ownerID, models.NewSnapshotFields(models.AutoSaveName, result, draft.Courses))
	if err != nil {
		return nil, err
	}

	if err := s.fingerprints.Set(ctx, ownerID, fp); err != nil {
		s.logger.Warn().Err(err).Int64("ownerID", ownerID).Msg("Failed to store auto-save fingerprint")
	}

	s.logger.Debug().Int64("ownerID", ownerID).Str("snapshotID", snap.ID).Msg("Draft auto-saved")
	s.publish(ctx, models.SnapshotAutoSaved, snap)
	return &AutoSaveOutcome{Saved: true, Message: MsgAutoSaved, Snapshot: snap}, nil
}

// upsertAutoSave updates the owner's auto-save row or creates it. A racing
// request can create or delete the row between the lookup and the write, so
// the lookup is retried.
func (s *snapshotServiceImpl) upsertAutoSave(ctx context.Context, ownerID int64, fields models.SnapshotFields) (*models.Snapshot, error) {
	for attempt := 0; attempt < autoSaveTries; attempt++ {
		existing, err := s.repo.FindByName(ctx, ownerID, models.AutoSaveName)
		switch {
		case err == nil:
			n, err := s.repo.Update(ctx, existing.ID, ownerID, fields)
			if err != nil {
				return nil, fmt.Errorf("error updating auto-save: %w", err)
			}
			if n == 0 {
				continue
			}
			return s.repo.GetByID(ctx, existing.ID, ownerID)

		case errors.Is(err, apperrors.ErrSnapshotNotFound):
			snap, err := s.repo.Create(ctx, ownerID, fields)
			if errors.Is(err, repositories.ErrDuplicateAutoSave) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("error creating auto-save: %w", err)
			}
			return snap, nil

		default:
			return nil, err
		}
	}
	return nil, apperrors.NewConflictError("auto-save is being modified concurrently")
}

// GetAutoSave restores the owner's auto-saved draft
func (s *snapshotServiceImpl) GetAutoSave(ctx context.Context, ownerID int64) (v *SnapshotView, err error) {
	ctx, span := startSpan(ctx, "SnapshotService.GetAutoSave", ownerID)
	defer func() { tracing.End(span, err) }()

	snap, err := s.repo.FindByName(ctx, ownerID, models.AutoSaveName)
	if err != nil {
		return nil, err
	}
	return s.view(snap)
}
