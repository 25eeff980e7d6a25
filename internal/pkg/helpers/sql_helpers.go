package helpers

import (
	"database/sql"
	"time"
)

// GetNullFloat64 converts a float pointer to sql.NullFloat64.
func GetNullFloat64(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// FloatPtr returns nil for an invalid NullFloat64
func FloatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// Timestamps are stored as unix milliseconds (UTC) on every driver.

// ToMillis converts a time to unix milliseconds
func ToMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// FromMillis converts unix milliseconds to a UTC time
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// NullMillisToTime converts a nullable millis column to *time.Time
func NullMillisToTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := FromMillis(n.Int64)
	return &t
}

// Now returns the current time truncated to the stored precision
func Now() time.Time {
	return FromMillis(ToMillis(time.Now()))
}
