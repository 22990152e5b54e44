package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/webshelf/internal/common"
	"github.com/dmitrijs2005/webshelf/internal/logging"
	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"
)

// errorBody is the shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

var (
	errBodyUnauthorized = errorBody{Error: "unauthorized", Message: "invalid or missing credentials"}
	errBodyInvalidToken = errorBody{Error: "unauthorized", Message: "invalid token"}
	errBodyInternal     = errorBody{Error: "internal_error", Message: "internal server error"}
)

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "bad_request", Message: msg})
}

// writeError maps service errors onto status codes. Anything unrecognised is
// logged and reported as a bare 500.
func writeError(c *gin.Context, logger logging.Logger, err error) {
	status, body := classifyError(err)
	switch status {
	case http.StatusInternalServerError:
		logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	case 499:
		logger.Debug(c.Request.Context(), "request cancelled by client", "path", c.FullPath())
	}
	c.AbortWithStatusJSON(status, body)
}

func classifyError(err error) (int, errorBody) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity, errorBody{Error: "validation_error", Message: "request validation failed", Details: verrs}
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusUnprocessableEntity, errorBody{Error: "validation_error", Message: err.Error()}
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorBody{Error: "invalid_credentials", Message: "invalid email or password"}
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, errorBody{Error: "forbidden", Message: "insufficient permissions"}
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, errorBody{Error: "not_found", Message: "user not found"}
	case errors.Is(err, common.ErrEmailTaken):
		return http.StatusConflict, errorBody{Error: "conflict", Message: "email already registered"}
	case errors.Is(err, common.ErrOperationInProgress):
		return http.StatusConflict, errorBody{Error: "conflict", Message: "a request for this account is already in progress, retry later"}
	case errors.Is(err, context.Canceled):
		return 499, errorBody{Error: "cancelled", Message: "request cancelled"}
	default:
		return http.StatusInternalServerError, errBodyInternal
	}
}
