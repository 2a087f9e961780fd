// Package handlers contains the gin HTTP handlers of the API: target
// lifecycle and analysis endpoints plus the health probes.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/aivis/pkg/errors"
)

// ErrorResponse is the error body every endpoint emits.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// respondError maps an application error onto the wire: the taxonomy code
// picks the HTTP status, and anything that maps to a 5xx is masked so
// internals never leak to clients.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)

	resp := ErrorResponse{Code: string(code), Message: err.Error()}
	if status >= 500 {
		resp = ErrorResponse{
			Code:    string(errors.ErrCodeInternal),
			Message: errors.DefaultMessageForCode(errors.ErrCodeInternal),
		}
	} else if appErr, ok := errors.AsAppError(err); ok {
		resp.Message = appErr.Message
		resp.Detail = appErr.Detail
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}

// respondBindError turns gin binding failures (malformed JSON, missing
// required fields) into a 400 with the validation code.
func respondBindError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Code:    string(errors.ErrCodeValidation),
		Message: "invalid request body",
		Detail:  err.Error(),
	})
}

// parsePagination reads limit/offset query parameters with bounds.
func parsePagination(c *gin.Context) (limit, offset int) {
	limit, offset = 20, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
