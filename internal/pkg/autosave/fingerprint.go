// Package autosave holds the auto-save scheduling policy: a debounce timer,
// a last-saved fingerprint and the stores that remember it between requests.
package autosave

import (
	"encoding/json"

	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/domain/cgpa"
	"github.com/cespare/xxhash/v2"
)

// Draft is the in-progress calculation being auto-saved
type Draft struct {
	Courses []cgpa.Course      `json:"courses"`
	Prior   *cgpa.PriorHistory `json:"priorHistory,omitempty"`
}

// Empty reports whether there is nothing worth saving
func (d Draft) Empty() bool {
	return len(d.Courses) == 0 && (d.Prior == nil || d.Prior.Credits == 0)
}

// Fingerprint hashes the canonical JSON form of a draft. A prior term that
// does not contribute hashes the same as no prior term.
func Fingerprint(d Draft) uint64 {
	canon := Draft{Courses: d.Courses, Prior: d.Prior}
	if canon.Courses == nil {
		canon.Courses = []cgpa.Course{}
	}
	if canon.Prior != nil && canon.Prior.Credits <= 0 {
		canon.Prior = nil
	}
	b, err := json.Marshal(canon)
	if err != nil {
		// only reachable with NaN/Inf, which never pass validation
		return 0
	}
	return xxhash.Sum64(b)
}
