// Package cgpa holds the grade table, the CGPA engine and the snapshot codec.
// Everything here is pure: no I/O, no shared state.
package cgpa

import (
	"fmt"
	"math"
)

// Course is one row of a calculation
type Course struct {
	Name    string  `json:"name"`
	Credits float64 `json:"credits"`
	Grade   Grade   `json:"grade"`
}

// PriorHistory is academic standing earned before the listed courses.
// A nil *PriorHistory means no prior history.
type PriorHistory struct {
	CGPA    float64 `json:"cgpa"`
	Credits float64 `json:"credits"`
}

// Result is the aggregate of a calculation
type Result struct {
	TotalCredits     float64 `json:"totalCredits"`
	TotalGradePoints float64 `json:"totalGradePoints"`
}

// Indeterminate reports whether no credits were accumulated, in which case
// there is no CGPA to report.
func (r Result) Indeterminate() bool {
	return r.TotalCredits == 0
}

// CGPA returns TotalGradePoints / TotalCredits. ok is false when the result
// is indeterminate.
func (r Result) CGPA() (value float64, ok bool) {
	if r.Indeterminate() {
		return 0, false
	}
	return r.TotalGradePoints / r.TotalCredits, true
}

// CGPAOrNil is CGPA as a pointer, nil when indeterminate.
func (r Result) CGPAOrNil() *float64 {
	v, ok := r.CGPA()
	if !ok {
		return nil
	}
	return &v
}

// sum is a Neumaier compensated accumulator
type sum struct {
	s, c float64
}

func (a *sum) add(x float64) {
	t := a.s + x
	if math.Abs(a.s) >= math.Abs(x) {
		a.c += (a.s - t) + x
	} else {
		a.c += (x - t) + a.s
	}
	a.s = t
}

func (a *sum) value() float64 {
	return a.s + a.c
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// accumulate validates each course and adds it to the running totals.
func accumulate(credits, points *sum, courses []Course) error {
	for i, c := range courses {
		if !finite(c.Credits) || c.Credits < 0 {
			return fmt.Errorf("%w: course %d has credits %v", ErrInvalidCourse, i, c.Credits)
		}
		p, err := PointValue(c.Grade)
		if err != nil {
			return fmt.Errorf("course %d: %w", i, err)
		}
		credits.add(c.Credits)
		points.add(c.Credits * p)
	}
	return nil
}

// contributes reports whether the prior term takes part in the aggregate.
func (p *PriorHistory) contributes() bool {
	return p != nil && p.Credits > 0
}

func (p *PriorHistory) validate() error {
	if p == nil {
		return nil
	}
	if !finite(p.Credits) || p.Credits < 0 {
		return fmt.Errorf("%w: prior history has credits %v", ErrInvalidCourse, p.Credits)
	}
	if !finite(p.CGPA) || p.CGPA < 0 {
		return fmt.Errorf("%w: prior history has cgpa %v", ErrInvalidCourse, p.CGPA)
	}
	return nil
}

// Compute aggregates courses and an optional prior history term. The prior
// term contributes only when it carries a positive credit count.
func Compute(courses []Course, prior *PriorHistory) (Result, error) {
	var credits, points sum
	if err := accumulate(&credits, &points, courses); err != nil {
		return Result{}, err
	}
	if err := prior.validate(); err != nil {
		return Result{}, err
	}
	if prior.contributes() {
		credits.add(prior.Credits)
		points.add(prior.Credits * prior.CGPA)
	}
	return Result{
		TotalCredits:     credits.value(),
		TotalGradePoints: points.value(),
	}, nil
}
