package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/erp/labeldesk/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupValidator makes validation errors report JSON field names
func SetupValidator() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})
	}
}

// FormatValidationErrors formats validation errors into a standard response.
// It returns false when err is not a validation failure.
func FormatValidationErrors(err error, requestID string) (dto.ErrorResponse, bool) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return dto.ErrorResponse{}, false
	}

	details := make([]dto.ValidationDetail, 0, len(validationErrors))
	for _, e := range validationErrors {
		details = append(details, dto.ValidationDetail{
			Field:   e.Namespace(),
			Message: getValidationMessage(e),
		})
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details), true
}

// getValidationMessage returns a human-readable validation message
func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		if e.Kind() == reflect.Slice {
			return "Must contain at least " + e.Param() + " entries"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		if e.Kind() == reflect.Slice {
			return "Must contain at most " + e.Param() + " entries"
		}
		return "Must be at most " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "numeric":
		return "Must be numeric"
	default:
		return "Invalid value"
	}
}

// BindJSON binds the request body into obj and writes the error envelope on
// failure. It returns false when the handler should stop.
func BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		abortBindError(c, err)
		return false
	}
	return true
}

// BindQuery binds query parameters into obj, writing the error envelope on failure.
func BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		abortBindError(c, err)
		return false
	}
	return true
}

func abortBindError(c *gin.Context, err error) {
	requestID := GetRequestID(c)
	if resp, ok := FormatValidationErrors(err, requestID); ok {
		c.AbortWithStatusJSON(resp.StatusCode, resp)
		return
	}

	code := dto.ErrCodeInvalidJSON
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		code = dto.ErrCodeRequestTooLarge
	case c.Request.Method == http.MethodGet:
		code = dto.ErrCodeBadRequest
	}
	resp := dto.NewErrorResponseWithRequestID(code, "Malformed request: "+err.Error(), requestID)
	c.AbortWithStatusJSON(resp.StatusCode, resp)
}
