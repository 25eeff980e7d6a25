package cgpa

import "math"

// priorEpsilon is the relative credit surplus below which a snapshot is
// considered to carry no prior history.
const priorEpsilon = 1e-9

// Decomposition is the editing view of a flattened snapshot
type Decomposition struct {
	Prior   *PriorHistory `json:"priorHistory"`
	Courses []Course      `json:"courses"`
}

// UsePrior reports whether the decomposition recovered a prior term
func (d Decomposition) UsePrior() bool {
	return d.Prior != nil
}

// Decompose splits stored totals back into prior history and the listed
// courses. Current totals are recomputed from courses alone; any credit
// surplus in total is attributed to prior history.
func Decompose(total Result, courses []Course) (Decomposition, error) {
	var credits, points sum
	if err := accumulate(&credits, &points, courses); err != nil {
		return Decomposition{}, err
	}
	out := Decomposition{Courses: courses}
	if out.Courses == nil {
		out.Courses = []Course{}
	}

	priorCredits := total.TotalCredits - credits.value()
	if priorCredits <= priorEpsilon*math.Max(1, math.Abs(total.TotalCredits)) {
		return out, nil
	}
	priorPoints := total.TotalGradePoints - points.value()
	// rounding can push a 4.00 prior a few ulps past the scale
	out.Prior = &PriorHistory{
		CGPA:    math.Min(math.Max(priorPoints/priorCredits, 0), MaxPoints),
		Credits: priorCredits,
	}
	return out, nil
}

// Recompose is the inverse of Decompose
func Recompose(prior *PriorHistory, courses []Course) (Result, error) {
	return Compute(courses, prior)
}

// PriorOnly keeps the recovered prior history and drops the courses. Used
// when a saved calculation seeds a follow-on one.
func PriorOnly(d Decomposition) Decomposition {
	return Decomposition{Prior: d.Prior, Courses: []Course{}}
}
