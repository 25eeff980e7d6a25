package cgpa

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidGrade is returned for a grade symbol outside the table
	ErrInvalidGrade = errors.New("invalid grade")
	// ErrInvalidCourse is returned for negative or non-finite credit values
	ErrInvalidCourse = errors.New("invalid course")
)

// Grade is a letter grade symbol
type Grade string

const (
	GradeA      Grade = "A"
	GradeAMinus Grade = "A-"
	GradeBPlus  Grade = "B+"
	GradeB      Grade = "B"
	GradeCPlus  Grade = "C+"
	GradeC      Grade = "C"
	GradeDPlus  Grade = "D+"
	GradeD      Grade = "D"
	GradeF      Grade = "F"
)

// GradePoint pairs a grade with its point value
type GradePoint struct {
	Grade  Grade   `json:"grade"`
	Points float64 `json:"points"`
}

var gradeTable = []GradePoint{
	{GradeA, MaxPoints},
	{GradeAMinus, 3.75},
	{GradeBPlus, 3.50},
	{GradeB, 3.00},
	{GradeCPlus, 2.50},
	{GradeC, 2.00},
	{GradeDPlus, 1.50},
	{GradeD, 1.00},
	{GradeF, 0.00},
}

// MaxPoints is the highest point value in the table
const MaxPoints = 4.00

var pointsByGrade = func() map[Grade]float64 {
	m := make(map[Grade]float64, len(gradeTable))
	for _, gp := range gradeTable {
		m[gp.Grade] = gp.Points
	}
	return m
}()

// Grades returns the grade table ordered from highest to lowest.
func Grades() []GradePoint {
	out := make([]GradePoint, len(gradeTable))
	copy(out, gradeTable)
	return out
}

// PointValue maps a grade symbol to its point value. Lookup is exact:
// symbols are case sensitive and never coerced to zero.
func PointValue(g Grade) (float64, error) {
	p, ok := pointsByGrade[g]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidGrade, string(g))
	}
	return p, nil
}

// ParseGrade trims surrounding whitespace and validates the symbol.
func ParseGrade(s string) (Grade, error) {
	g := Grade(strings.TrimSpace(s))
	if _, err := PointValue(g); err != nil {
		return "", err
	}
	return g, nil
}
