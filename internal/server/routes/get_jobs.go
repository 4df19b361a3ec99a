package routes

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/thirai-kg/backend/internal/jobs"
	"github.com/thirai-kg/backend/internal/server/middleware"
)

// GetJobHandler returns a batch job with its per-item reports. Users other
// than admins only see jobs they created.
func GetJobHandler(c echo.Context) error {
	type getJobResponse struct {
		Job      *jobs.Job     `json:"job"`
		Progress jobs.Progress `json:"progress"`
	}

	id := c.Param("id")
	if id == "" {
		return invalidBody(c)
	}

	ctx := c.(*middleware.AppContext)
	job, err := ctx.App.Jobs.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	if !middleware.IsAdmin(ctx.User) && job.CreatedBy != ctx.User.UserID {
		return writeError(c, jobs.ErrNotFound)
	}

	return c.JSON(http.StatusOK, getJobResponse{
		Job:      job,
		Progress: jobs.BuildProgress(job, time.Now()),
	})
}
