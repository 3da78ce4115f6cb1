package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yuandi/fulfillment/internal/core/domain"
	"github.com/yuandi/fulfillment/internal/infrastructure/logger"
)

type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorBody `json:"error,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
}

type ErrorBody struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []FieldDetail `json:"details,omitempty"`
}

type FieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var statusByCode = map[string]int{
	domain.CodeInsufficientStock: http.StatusConflict,
	domain.CodeNotFound:          http.StatusNotFound,
	domain.CodeInvalidInput:      http.StatusBadRequest,
	domain.CodeInvalidState:      http.StatusUnprocessableEntity,
	domain.CodeDuplicateRequest:  http.StatusConflict,
	domain.CodeAlreadyExists:     http.StatusConflict,
	domain.CodeProductInactive:   http.StatusUnprocessableEntity,
}

// HTTPStatus maps a domain error code to its HTTP status.
func HTTPStatus(code string) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Success: true, Data: data})
}

func fail(c *gin.Context, status int, body ErrorBody) {
	c.AbortWithStatusJSON(status, Response{
		Success:   false,
		Error:     &body,
		RequestID: c.GetString(logger.RequestIDKey),
	})
}

// writeError answers with the domain code of err, or a generic 500 that
// hides the cause and logs it.
func writeError(c *gin.Context, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		fail(c, HTTPStatus(de.Code), ErrorBody{Code: de.Code, Message: de.Message})
		return
	}
	_ = c.Error(err)
	logger.FromGin(c).Error("request failed", zap.Error(err))
	fail(c, http.StatusInternalServerError, ErrorBody{Code: "INTERNAL_ERROR", Message: "internal server error"})
}

func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]FieldDetail, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, FieldDetail{Field: fe.Field(), Message: validationMessage(fe)})
		}
		fail(c, http.StatusBadRequest, ErrorBody{
			Code:    domain.CodeInvalidInput,
			Message: "request validation failed",
			Details: details,
		})
		return
	}
	fail(c, http.StatusBadRequest, ErrorBody{Code: domain.CodeInvalidInput, Message: "malformed request body"})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "uuid":
		return "invalid UUID format"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "dive":
		return "invalid element"
	}
	return "invalid value"
}

var setupValidatorOnce sync.Once

// SetupValidator reports JSON field names in validation errors.
func SetupValidator() {
	setupValidatorOnce.Do(func() {
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
	})
}
