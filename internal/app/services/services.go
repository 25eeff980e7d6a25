// Package services holds the business logic between controllers and
// repositories:
//   - AuthService: registration, login and refresh token rotation
//   - SnapshotService: calculation, saved calculations and auto-save
package services

import (
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/tracing"
)

var tracer = tracing.Tracer("github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/services")
