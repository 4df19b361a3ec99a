package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/thirai-kg/backend/internal/jobs"
	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/logger"
	"github.com/thirai-kg/backend/pkg/store"
)

type errorResponse struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// statusOf maps a failure to its HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case common.IsTransient(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, common.ErrQueryGeneration), errors.Is(err, common.ErrQueryParse):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrQueryExecution),
		errors.Is(err, common.ErrExtractionFormat),
		errors.Is(err, common.ErrSchemaViolation),
		errors.Is(err, common.ErrSynthesis):
		// the graph store or the model failed, not the server
		return http.StatusBadGateway
	case errors.Is(err, store.ErrNotFound), errors.Is(err, jobs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError sends err with its mapped status. Diagnostics are only exposed
// for client-side and generation failures.
func writeError(c echo.Context, err error) error {
	status := statusOf(err)
	resp := errorResponse{Message: http.StatusText(status)}
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		resp.Kind = common.Describe(err)
		resp.Detail = err.Error()
	case http.StatusNotFound:
		resp.Message = "Not found"
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		resp.Kind = common.Describe(err)
		logger.Warn("[API] upstream failure", "path", c.Path(), "kind", resp.Kind, "err", err)
	default:
		logger.Error("[API] request failed", "path", c.Path(), "err", err)
		resp.Message = "Internal server error"
	}
	return c.JSON(status, resp)
}

func invalidBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request body", Kind: string(common.KindValidation)})
}
