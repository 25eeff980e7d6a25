package models

import (
	"time"

	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/domain/cgpa"
)

// AutoSaveName is the reserved snapshot name used for the auto-saved draft.
// The partial unique index cgpa_snapshots_autosave_key matches on it.
const AutoSaveName = "Auto-saved"

// Snapshot is a persisted calculation ('cgpa_snapshots' table). It stores the
// flattened aggregate only; prior history is recovered by decomposition.
type Snapshot struct {
	ID               string        `json:"id" db:"id"`
	OwnerID          int64         `json:"ownerId" db:"owner_id"`
	Name             string        `json:"calculationName" db:"name"`
	TotalCredits     float64       `json:"totalCredits" db:"total_credits"`
	TotalGradePoints float64       `json:"totalGradePoints" db:"total_grade_points"`
	CGPA             *float64      `json:"cgpa" db:"cgpa"`
	Courses          []cgpa.Course `json:"courses" db:"courses"`
	CreatedAt        time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time     `json:"updatedAt" db:"updated_at"`
}

// Result returns the stored aggregate
func (s *Snapshot) Result() cgpa.Result {
	return cgpa.Result{
		TotalCredits:     s.TotalCredits,
		TotalGradePoints: s.TotalGradePoints,
	}
}

// IsAutoSave reports whether this is the auto-saved draft
func (s *Snapshot) IsAutoSave() bool {
	return s.Name == AutoSaveName
}

// SnapshotFields are the mutable columns of a snapshot
type SnapshotFields struct {
	Name             string
	TotalCredits     float64
	TotalGradePoints float64
	CGPA             *float64
	Courses          []cgpa.Course
}

// NewSnapshotFields builds fields from a computed result
func NewSnapshotFields(name string, result cgpa.Result, courses []cgpa.Course) SnapshotFields {
	if courses == nil {
		courses = []cgpa.Course{}
	}
	return SnapshotFields{
		Name:             name,
		TotalCredits:     result.TotalCredits,
		TotalGradePoints: result.TotalGradePoints,
		CGPA:             result.CGPAOrNil(),
		Courses:          courses,
	}
}
