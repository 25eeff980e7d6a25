package dto

import (
	"time"

	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/models"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/domain/cgpa"
)

// CourseRequest is one course row as sent by the client
type CourseRequest struct {
	Name    string  `json:"name" binding:"max=100" example:"Linear Algebra"`
	Credits float64 `json:"credits" binding:"gte=0,lte=100" example:"3"`
	Grade   string  `json:"grade" binding:"required,grade" example:"A-"`
}

// PriorHistoryRequest carries a previously earned CGPA and credit total.
// Either field left out means no prior history.
type PriorHistoryRequest struct {
	CGPA    *float64 `json:"cgpa" binding:"omitempty,gte=0,lte=4" example:"3.2"`
	Credits *float64 `json:"credits" binding:"omitempty,gte=0" example:"60"`
}

// ToDomain returns nil unless both fields are present
func (p *PriorHistoryRequest) ToDomain() *cgpa.PriorHistory {
	if p == nil || p.CGPA == nil || p.Credits == nil {
		return nil
	}
	return &cgpa.PriorHistory{CGPA: *p.CGPA, Credits: *p.Credits}
}

// CoursesToDomain converts request rows to domain courses. An unknown grade
// is passed through as sent so the engine reports it.
func CoursesToDomain(rows []CourseRequest) []cgpa.Course {
	out := make([]cgpa.Course, 0, len(rows))
	for _, r := range rows {
		grade, err := cgpa.ParseGrade(r.Grade)
		if err != nil {
			grade = cgpa.Grade(r.Grade)
		}
		out = append(out, cgpa.Course{
			Name:    r.Name,
			Credits: r.Credits,
			Grade:   grade,
		})
	}
	return out
}

// CalculateRequest asks for a stateless computation
type CalculateRequest struct {
	Courses      []CourseRequest      `json:"courses" binding:"dive"`
	PriorHistory *PriorHistoryRequest `json:"priorHistory"`
}

// SaveCalculationRequest creates or fully replaces a saved calculation
type SaveCalculationRequest struct {
	CalculationName string               `json:"calculationName" binding:"required,max=100" example:"Fall 2024"`
	Courses         []CourseRequest      `json:"courses" binding:"dive"`
	PriorHistory    *PriorHistoryRequest `json:"priorHistory"`
}

// RenameCalculationRequest changes only the name
type RenameCalculationRequest struct {
	CalculationName string `json:"calculationName" binding:"required,max=100" example:"Spring 2025"`
}

// AutoSaveRequest is the in-progress draft
type AutoSaveRequest struct {
	Courses      []CourseRequest      `json:"courses" binding:"dive"`
	PriorHistory *PriorHistoryRequest `json:"priorHistory"`
}

// CalculationResult is the aggregate returned to the client. CGPA is null
// when no credits were accumulated.
type CalculationResult struct {
	TotalCredits     float64  `json:"totalCredits" example:"36"`
	TotalGradePoints float64  `json:"totalGradePoints" example:"111"`
	CGPA             *float64 `json:"cgpa" example:"3.0833"`
	Indeterminate    bool     `json:"indeterminate" example:"false"`
}

// NewCalculationResult maps an engine result
func NewCalculationResult(r cgpa.Result) CalculationResult {
	return CalculationResult{
		TotalCredits:     r.TotalCredits,
		TotalGradePoints: r.TotalGradePoints,
		CGPA:             r.CGPAOrNil(),
		Indeterminate:    r.Indeterminate(),
	}
}

// GradeTableResponse lists grades and their point values
type GradeTableResponse struct {
	Grades []cgpa.GradePoint `json:"grades"`
}

// CalculationResponse is a saved calculation
type CalculationResponse struct {
	ID               string        `json:"id" example:"5b1f8c7e-2f4a-4f0e-9a57-0c1a4f5e6d7b"`
	CalculationName  string        `json:"calculationName" example:"Fall 2024"`
	TotalCredits     float64       `json:"totalCredits" example:"36"`
	TotalGradePoints float64       `json:"totalGradePoints" example:"111"`
	CGPA             *float64      `json:"cgpa" example:"3.0833"`
	Courses          []cgpa.Course `json:"courses"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// NewCalculationResponse maps a snapshot model
func NewCalculationResponse(s *models.Snapshot) CalculationResponse {
	courses := s.Courses
	if courses == nil {
		courses = []cgpa.Course{}
	}
	return CalculationResponse{
		ID:               s.ID,
		CalculationName:  s.Name,
		TotalCredits:     s.TotalCredits,
		TotalGradePoints: s.TotalGradePoints,
		CGPA:             s.CGPA,
		Courses:          courses,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

// CalculationListResponse is one page of saved calculations, newest first
type CalculationListResponse struct {
	Calculations []CalculationResponse `json:"calculations"`
	Pagination   PaginationInfo        `json:"pagination"`
}

// PriorHistoryResponse is a recovered prior history term
type PriorHistoryResponse struct {
	CGPA    float64 `json:"cgpa" example:"3"`
	Credits float64 `json:"credits" example:"30"`
}

// EditViewResponse is a saved calculation split back into prior history and
// the listed courses
type EditViewResponse struct {
	ID              string                `json:"id"`
	CalculationName string                `json:"calculationName"`
	UsePriorHistory bool                  `json:"usePriorHistory"`
	PriorHistory    *PriorHistoryResponse `json:"priorHistory"`
	Courses         []cgpa.Course         `json:"courses"`
	Result          CalculationResult     `json:"result"`
}

// NewEditViewResponse maps a decomposition of s
func NewEditViewResponse(s *models.Snapshot, d cgpa.Decomposition) EditViewResponse {
	resp := EditViewResponse{
		ID:              s.ID,
		CalculationName: s.Name,
		UsePriorHistory: d.UsePrior(),
		Courses:         d.Courses,
		Result:          NewCalculationResult(s.Result()),
	}
	if d.Prior != nil {
		resp.PriorHistory = &PriorHistoryResponse{CGPA: d.Prior.CGPA, Credits: d.Prior.Credits}
	}
	if resp.Courses == nil {
		resp.Courses = []cgpa.Course{}
	}
	return resp
}

// AutoSaveResponse reports what an auto-save did
type AutoSaveResponse struct {
	Saved       bool                 `json:"saved"`
	Message     string               `json:"message" example:"Auto-saved"`
	Calculation *CalculationResponse `json:"calculation,omitempty"`
}

// NewAutoSaveResponse maps the outcome of an auto-save
func NewAutoSaveResponse(saved bool, message string, s *models.Snapshot) AutoSaveResponse {
	resp := AutoSaveResponse{Saved: saved, Message: message}
	if s != nil {
		calc := NewCalculationResponse(s)
		resp.Calculation = &calc
	}
	return resp
}
