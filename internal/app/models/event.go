package models

import "time"

// SnapshotEventType names a change to a user's saved calculations
type SnapshotEventType string

const (
	SnapshotCreated   SnapshotEventType = "snapshot.created"
	SnapshotUpdated   SnapshotEventType = "snapshot.updated"
	SnapshotRenamed   SnapshotEventType = "snapshot.renamed"
	SnapshotDeleted   SnapshotEventType = "snapshot.deleted"
	SnapshotAutoSaved SnapshotEventType = "snapshot.autosaved"
)

// SnapshotEvent is pushed to every open session of the owner
type SnapshotEvent struct {
	Type       SnapshotEventType `json:"type"`
	OwnerID    int64             `json:"ownerId"`
	SnapshotID string            `json:"snapshotId"`
	Name       string            `json:"calculationName"`
	At         time.Time         `json:"at"`
}
