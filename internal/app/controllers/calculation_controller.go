package controllers

import (
	"net/http"
	"strings"

	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/models/dto"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/services"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/middleware"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/autosave"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/helpers"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CalculationController handles saved calculations of the signed in user
type CalculationController struct {
	snapshotService services.SnapshotService
	logger          zerolog.Logger
}

// NewCalculationController creates a new CalculationController
func NewCalculationController(snapshotService services.SnapshotService, logger zerolog.Logger) *CalculationController {
	return &CalculationController{
		snapshotService: snapshotService,
		logger:          logger,
	}
}

// parseIDParam validates the :id path parameter. Unknown ids and malformed
// ids both read as not found.
func parseIDParam(ctx *gin.Context) (string, bool) {
	id := strings.TrimSpace(ctx.Param("id"))
	if _, err := uuid.Parse(id); err != nil {
		middleware.AbortWithError(ctx, http.StatusNotFound, dto.ErrorCodeResourceNotFound, "Calculation not found", nil)
		return "", false
	}
	return id, true
}

// List returns the user's saved calculations
// @Summary List saved calculations
// @Description Newest first, paginated
// @Tags calculations
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (1-based)" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} dto.APIResponse{data=dto.CalculationListResponse}
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Router /calculations [get]
func (c *CalculationController) List(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}

	page, size := helpers.ParsePaginationParams(ctx)
	items, info, err := c.snapshotService.List(ctx.Request.Context(), userID, page, size)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	resp := dto.CalculationListResponse{
		Calculations: make([]dto.CalculationResponse, 0, len(items)),
		Pagination:   info,
	}
	for _, s := range items {
		resp.Calculations = append(resp.Calculations, dto.NewCalculationResponse(s))
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(resp, ""))
}

// Create saves a named calculation
// @Summary Save a calculation
// @Description Totals are recomputed on the server. Results without credits are rejected with VAL_002.
// @Tags calculations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.SaveCalculationRequest true "Calculation"
// @Success 201 {object} dto.APIResponse{data=dto.CalculationResponse}
// @Failure 400 {object} dto.ErrorResponse "Validation error, invalid grade, reserved name or no credits"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Router /calculations [post]
func (c *CalculationController) Create(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}

	var req dto.SaveCalculationRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	snap, err := c.snapshotService.Create(ctx.Request.Context(), userID, services.SnapshotInput{
		Name:    req.CalculationName,
		Courses: dto.CoursesToDomain(req.Courses),
		Prior:   req.PriorHistory.ToDomain(),
	})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.NewCalculationResponse(snap), "Calculation saved"))
}

// Get returns one saved calculation
// @Summary Get a saved calculation
// @Tags calculations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Calculation ID"
// @Success 200 {object} dto.APIResponse{data=dto.CalculationResponse}
// @Failure 404 {object} dto.ErrorResponse "Not found"
// @Router /calculations/{id} [get]
func (c *CalculationController) Get(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := parseIDParam(ctx)
	if !ok {
		return
	}

	snap, err := c.snapshotService.Get(ctx.Request.Context(), userID, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewCalculationResponse(snap), ""))
}

// Update replaces a saved calculation
// @Summary Update a saved calculation
// @Tags calculations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Calculation ID"
// @Param request body dto.SaveCalculationRequest true "Calculation"
// @Success 200 {object} dto.APIResponse{data=dto.CalculationResponse}
// @Failure 400 {object} dto.ErrorResponse "Validation error"
// @Failure 404 {object} dto.ErrorResponse "Not found"
// @Router /calculations/{id} [put]
func (c *CalculationController) Update(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := parseIDParam(ctx)
	if !ok {
		return
	}

	var req dto.SaveCalculationRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	snap, err := c.snapshotService.Update(ctx.Request.Context(), userID, id, services.SnapshotInput{
		Name:    req.CalculationName,
		Courses: dto.CoursesToDomain(req.Courses),
		Prior:   req.PriorHistory.ToDomain(),
	})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewCalculationResponse(snap), "Calculation updated"))
}

// Rename changes the name of a saved calculation
// @Summary Rename a saved calculation
// @Tags calculations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Calculation ID"
// @Param request body dto.RenameCalculationRequest true "New name"
// @Success 200 {object} dto.APIResponse{data=dto.CalculationResponse}
// @Failure 400 {object} dto.ErrorResponse "Validation error or reserved name"
// @Failure 404 {object} dto.ErrorResponse "Not found"
// @Router /calculations/{id} [patch]
func (c *CalculationController) Rename(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := parseIDParam(ctx)
	if !ok {
		return
	}

	var req dto.RenameCalculationRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	snap, err := c.snapshotService.Rename(ctx.Request.Context(), userID, id, req.CalculationName)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewCalculationResponse(snap), "Calculation renamed"))
}

// Delete removes a saved calculation
// @Summary Delete a saved calculation
// @Tags calculations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Calculation ID"
// @Success 200 {object} dto.APIResponse "Deleted"
// @Failure 404 {object} dto.ErrorResponse "Not found"
// @Router /calculations/{id} [delete]
func (c *CalculationController) Delete(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := parseIDParam(ctx)
	if !ok {
		return
	}

	if err := c.snapshotService.Delete(ctx.Request.Context(), userID, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(nil, "Calculation deleted"))
}

// EditView returns a saved calculation split into prior history and courses
// @Summary Open a saved calculation for editing
// @Description Recovers the prior history term from the stored totals
// @Tags calculations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Calculation ID"
// @Success 200 {object} dto.APIResponse{data=dto.EditViewResponse}
// @Failure 404 {object} dto.ErrorResponse "Not found"
// @Router /calculations/{id}/edit [get]
func (c *CalculationController) EditView(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := parseIDParam(ctx)
	if !ok {
		return
	}

	v, err := c.snapshotService.EditView(ctx.Request.Context(), userID, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewEditViewResponse(v.Snapshot, v.Decomposition), ""))
}

// PriorHistory loads only the prior history of a saved calculation
// @Summary Load a saved calculation as prior history
// @Tags calculations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Calculation ID"
// @Success 200 {object} dto.APIResponse{data=dto.EditViewResponse}
// @Failure 404 {object} dto.ErrorResponse "Not found"
// @Router /calculations/{id}/prior [get]
func (c *CalculationController) PriorHistory(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := parseIDParam(ctx)
	if !ok {
		return
	}

	v, err := c.snapshotService.PriorHistoryView(ctx.Request.Context(), userID, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewEditViewResponse(v.Snapshot, v.Decomposition), ""))
}

// AutoSave stores the in-progress draft
// @Summary Auto-save the current draft
// @Description Accepts application/json or a text/plain beacon body. Empty or unchanged drafts are not written.
// @Tags calculations
// @Accept json
// @Accept plain
// @Produce json
// @Security BearerAuth
// @Param request body dto.AutoSaveRequest true "Draft"
// @Success 200 {object} dto.APIResponse{data=dto.AutoSaveResponse}
// @Failure 400 {object} dto.ErrorResponse "Invalid grade or course"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Router /calculations/auto-save [post]
func (c *CalculationController) AutoSave(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}

	var req dto.AutoSaveRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	out, err := c.snapshotService.AutoSave(ctx.Request.Context(), userID, autosave.Draft{
		Courses: dto.CoursesToDomain(req.Courses),
		Prior:   req.PriorHistory.ToDomain(),
	})
	if err != nil {
		c.logger.Warn().Err(err).Int64("userID", userID).Msg("Auto-save failed")
		middleware.HandleAPIError(ctx, err)
		return
	}

	resp := dto.NewAutoSaveResponse(out.Saved, out.Message, out.Snapshot)
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(resp, out.Message))
}

// GetAutoSave restores the auto-saved draft
// @Summary Restore the auto-saved draft
// @Tags calculations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.EditViewResponse}
// @Failure 404 {object} dto.ErrorResponse "No auto-saved draft"
// @Router /calculations/auto-save [get]
func (c *CalculationController) GetAutoSave(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}

	v, err := c.snapshotService.GetAutoSave(ctx.Request.Context(), userID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewEditViewResponse(v.Snapshot, v.Decomposition), ""))
}
