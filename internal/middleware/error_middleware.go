package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yigit/unisphere-digest/internal/app/models/dto"
	"github.com/yigit/unisphere-digest/internal/pkg/apperrors"
)

// HandleAPIError handles common API errors and returns appropriate responses
func HandleAPIError(c *gin.Context, err error) {
	var customErr *apperrors.CustomError
	message := ""
	if errors.As(err, &customErr) {
		message = customErr.Message
	}
	orDefault := func(def string) string {
		if message != "" {
			return message
		}
		return def
	}

	var status int
	var detail *dto.ErrorDetail

	switch {
	case errors.Is(err, apperrors.ErrSchoolNotFound):
		status, detail = http.StatusNotFound, dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, "School not found")
	case errors.Is(err, apperrors.ErrRecipientNotFound):
		status, detail = http.StatusNotFound, dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, "Recipient not found")
	case errors.Is(err, apperrors.ErrResourceNotFound):
		status, detail = http.StatusNotFound, dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, orDefault("Resource not found"))
	case errors.Is(err, apperrors.ErrConfiguration):
		status, detail = http.StatusUnprocessableEntity, dto.NewErrorDetail(dto.ErrorCodeSchoolMisconfigured, orDefault("School is misconfigured"))
	case errors.Is(err, apperrors.ErrPermissionDenied):
		status, detail = http.StatusForbidden, dto.NewErrorDetail(dto.ErrorCodeForbidden, "Permission denied")
	case errors.Is(err, apperrors.ErrTokenExpired):
		status, detail = http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeExpiredToken, "Token expired")
	case errors.Is(err, apperrors.ErrTokenInvalid):
		status, detail = http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeInvalidToken, "Invalid token")
	case apperrors.Is(err, apperrors.ErrValidationFailed, apperrors.ErrBadRequest):
		status, detail = http.StatusBadRequest, dto.NewErrorDetail(dto.ErrorCodeValidationFailed, orDefault("Validation failed"))
	default:
		status, detail = http.StatusInternalServerError, dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Internal server error")
	}

	if gin.Mode() == gin.DebugMode && status == http.StatusInternalServerError {
		detail = detail.WithDebugInfo("%v", err)
	}

	_ = c.Error(err)
	c.JSON(status, dto.NewErrorResponse(detail))
}
