package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/server/middleware"
)

// DataResponse is the standard success envelope.
type DataResponse struct {
	Data any `json:"data"`
}

// ErrorResponse is the standard failure envelope.
type ErrorResponse struct {
	Error     *errors.AppError `json:"error"`
	RequestID string           `json:"request_id,omitempty"`
}

var statusByCode = map[errors.ErrorCode]int{
	errors.ErrCodeInvalidInput:        http.StatusBadRequest,
	errors.ErrCodeNotFound:            http.StatusNotFound,
	errors.ErrCodeInvalidTransition:   http.StatusConflict,
	errors.ErrCodeDeviceBusy:          http.StatusConflict,
	errors.ErrCodeCaptureEmpty:        http.StatusConflict,
	errors.ErrCodeHardwareUnavailable: http.StatusServiceUnavailable,
	errors.ErrCodeServiceUnavailable:  http.StatusServiceUnavailable,
	errors.ErrCodePersistence:         http.StatusInternalServerError,
}

// HTTPStatus maps an error code to a response status. Unknown codes are 500.
func HTTPStatus(code errors.ErrorCode) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// RespondWithError writes err as an ErrorResponse. Non-AppErrors become
// INTERNAL_ERROR without leaking the cause.
func RespondWithError(c *gin.Context, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.Internal(err)
	}
	c.JSON(HTTPStatus(appErr.Code), ErrorResponse{Error: appErr, RequestID: middleware.RequestIDFrom(c)})
}

// RespondOK sends a 200 response wrapping data.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}
