package controllers

import (
	"net/http"

	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/models/dto"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/services"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/middleware"
	"github.com/gin-gonic/gin"
)

// CalculatorController serves the stateless grade table and calculation
type CalculatorController struct {
	snapshotService services.SnapshotService
}

// NewCalculatorController creates a new CalculatorController
func NewCalculatorController(snapshotService services.SnapshotService) *CalculatorController {
	return &CalculatorController{snapshotService: snapshotService}
}

// Grades lists grade symbols and their point values
// @Summary Grade table
// @Tags cgpa
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.GradeTableResponse}
// @Router /grades [get]
func (c *CalculatorController) Grades(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.GradeTableResponse{Grades: c.snapshotService.Grades()}, ""))
}

// Calculate computes a CGPA without saving anything
// @Summary Calculate CGPA
// @Description Aggregates courses and an optional prior history. cgpa is null and indeterminate is true when no credits were entered.
// @Tags cgpa
// @Accept json
// @Produce json
// @Param request body dto.CalculateRequest true "Courses and prior history"
// @Success 200 {object} dto.APIResponse{data=dto.CalculationResult}
// @Failure 400 {object} dto.ErrorResponse "Invalid grade or course"
// @Router /cgpa/calculate [post]
func (c *CalculatorController) Calculate(ctx *gin.Context) {
	var req dto.CalculateRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	result, err := c.snapshotService.Calculate(ctx.Request.Context(), dto.CoursesToDomain(req.Courses), req.PriorHistory.ToDomain())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewCalculationResult(result), ""))
}
