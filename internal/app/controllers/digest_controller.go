package controllers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yigit/unisphere-digest/internal/app/models/dto"
	"github.com/yigit/unisphere-digest/internal/app/services"
	"github.com/yigit/unisphere-digest/internal/middleware"
	"github.com/yigit/unisphere-digest/internal/pkg/apperrors"
	"github.com/yigit/unisphere-digest/internal/pkg/helpers"
)

// DigestController exposes manual digest runs and previews to operators
type DigestController struct {
	digestService services.DailyDigestService
	loc           *time.Location
	logger        zerolog.Logger
	now           func() time.Time
}

// NewDigestController creates a new DigestController. loc is used when a
// request does not carry its own asOf.
func NewDigestController(digestService services.DailyDigestService, loc *time.Location, logger zerolog.Logger) *DigestController {
	if loc == nil {
		loc = time.UTC
	}
	return &DigestController{
		digestService: digestService,
		loc:           loc,
		logger:        logger,
		now:           time.Now,
	}
}

// RunAll runs the digest for every school
// @Summary Run digests for all schools
// @Tags digests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.RunDigestRequest false "Run parameters (only asOf is used)"
// @Success 200 {object} dto.APIResponse{data=[]models.DeliveryReport}
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Operator role required"
// @Router /digests/run [post]
func (c *DigestController) RunAll(ctx *gin.Context) {
	req, ok := c.bindRunRequest(ctx)
	if !ok {
		return
	}

	asOf, err := helpers.ParseAsOf(req.AsOf, c.now(), c.loc)
	if err != nil {
		c.invalidAsOf(ctx, err)
		return
	}

	reports, err := c.digestService.RunAll(ctx.Request.Context(), asOf)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(reports))
}

// RunSchool runs the digest for one school
// @Summary Run the digest for one school
// @Tags digests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "School ID" Format(int64) minimum(1)
// @Param request body dto.RunDigestRequest false "Run parameters"
// @Success 200 {object} dto.APIResponse{data=models.DeliveryReport}
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 404 {object} dto.ErrorResponse "School not found"
// @Failure 422 {object} dto.ErrorResponse "School is misconfigured"
// @Router /schools/{id}/digests/run [post]
func (c *DigestController) RunSchool(ctx *gin.Context) {
	schoolID, ok := parseIDParam(ctx, "id", "school")
	if !ok {
		return
	}

	req, ok := c.bindRunRequest(ctx)
	if !ok {
		return
	}

	asOf, err := helpers.ParseAsOf(req.AsOf, c.now(), c.loc)
	if err != nil {
		c.invalidAsOf(ctx, err)
		return
	}

	opts := services.RunOptions{
		Cap:    req.Cap,
		Window: time.Duration(req.WindowHours) * time.Hour,
	}

	report, err := c.digestService.Run(ctx.Request.Context(), schoolID, asOf, opts)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.logger.Info().
		Int64("schoolID", schoolID).
		Str("runID", report.RunID).
		Str("operator", ctx.GetString(middleware.ContextSubject)).
		Msg("Manual digest run finished")

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(report))
}

// Preview composes a recipient's digest without sending it
// @Summary Preview one recipient's digest
// @Tags digests
// @Produce json
// @Security BearerAuth
// @Param id path int true "School ID"
// @Param userId path int true "User ID"
// @Param asOf query string false "RFC3339 reference time"
// @Param cap query int false "Question cap"
// @Param windowHours query int false "Window in hours"
// @Success 200 {object} dto.APIResponse{data=dto.DigestPreviewResponse}
// @Failure 404 {object} dto.ErrorResponse "School or recipient not found"
// @Router /schools/{id}/digests/preview/{userId} [get]
func (c *DigestController) Preview(ctx *gin.Context) {
	schoolID, ok := parseIDParam(ctx, "id", "school")
	if !ok {
		return
	}
	userID, ok := parseIDParam(ctx, "userId", "user")
	if !ok {
		return
	}

	var req dto.RunDigestRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		middleware.HandleBindingError(ctx, err)
		return
	}

	asOf, err := helpers.ParseAsOf(req.AsOf, c.now(), c.loc)
	if err != nil {
		c.invalidAsOf(ctx, err)
		return
	}

	preview, err := c.digestService.Preview(ctx.Request.Context(), schoolID, userID, asOf, services.RunOptions{
		Cap:    req.Cap,
		Window: time.Duration(req.WindowHours) * time.Hour,
	})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewDigestPreviewResponse(preview)))
}

// bindRunRequest accepts an empty body as a request with no overrides
func (c *DigestController) bindRunRequest(ctx *gin.Context) (dto.RunDigestRequest, bool) {
	var req dto.RunDigestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.HandleBindingError(ctx, err)
		return req, false
	}
	return req, true
}

func (c *DigestController) invalidAsOf(ctx *gin.Context, err error) {
	middleware.HandleAPIError(ctx, apperrors.NewBadRequestError("asOf must be an RFC3339 timestamp: "+err.Error()))
}

func parseIDParam(ctx *gin.Context, name, label string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid "+label+" ID")
		errorDetail = errorDetail.WithField(name).WithDetails(label + " ID must be a positive number")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return 0, false
	}
	return id, true
}
