package routes

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/thirai-kg/backend/internal/queue"
	"github.com/thirai-kg/backend/internal/server/middleware"
	"github.com/thirai-kg/backend/pkg/loader"
	"github.com/thirai-kg/backend/pkg/logger"
)

const defaultMaxBatchItems = 500

// IngestBatchHandler records a batch job and hands it to the worker.
func IngestBatchHandler(c echo.Context) error {
	type ingestBatchBody struct {
		Texts  []string `json:"texts" validate:"dive,required"`
		URLs   []string `json:"urls" validate:"dive,url"`
		S3Keys []string `json:"s3_keys" validate:"dive,required"`
	}

	type ingestBatchResponse struct {
		Message string `json:"message"`
		JobID   string `json:"job_id,omitempty"`
		Items   int    `json:"items,omitempty"`
	}

	data := new(ingestBatchBody)
	if err := c.Bind(data); err != nil {
		return invalidBody(c)
	}
	if err := c.Validate(data); err != nil {
		return invalidBody(c)
	}

	sources := make([]loader.Source, 0, len(data.Texts)+len(data.URLs)+len(data.S3Keys))
	for _, t := range data.Texts {
		sources = append(sources, loader.Source{Kind: loader.SourceText, Ref: t})
	}
	for _, u := range data.URLs {
		sources = append(sources, loader.Source{Kind: loader.SourceURL, Ref: strings.TrimSpace(u)})
	}
	for _, k := range data.S3Keys {
		sources = append(sources, loader.Source{Kind: loader.SourceS3, Ref: strings.TrimSpace(k)})
	}

	app := c.(*middleware.AppContext).App
	maxItems := app.MaxBatchItems
	if maxItems <= 0 {
		maxItems = defaultMaxBatchItems
	}
	if len(sources) == 0 {
		return c.JSON(http.StatusBadRequest, ingestBatchResponse{Message: "No sources given"})
	}
	if len(sources) > maxItems {
		return c.JSON(http.StatusBadRequest, ingestBatchResponse{Message: "Too many sources"})
	}

	user := c.(*middleware.AppContext).User
	ctx := c.Request().Context()

	job, err := app.Jobs.Create(ctx, user.UserID, sources)
	if err != nil {
		logger.Error("[API] failed to create job", "err", err)
		return c.JSON(http.StatusInternalServerError, ingestBatchResponse{Message: "Internal server error"})
	}

	msg, err := json.Marshal(queue.IngestJobMsg{JobID: job.PublicID})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ingestBatchResponse{Message: "Internal server error"})
	}
	if err := queue.PublishFIFO(ctx, app.Queue, queue.IngestQueue, msg); err != nil {
		logger.Error("[API] failed to enqueue job", "job", job.PublicID, "err", err)
		return c.JSON(http.StatusInternalServerError, ingestBatchResponse{Message: "Internal server error"})
	}
	logger.Info("[API] job enqueued", "job", job.PublicID, "items", len(sources), "user", user.UserID)

	return c.JSON(http.StatusAccepted, ingestBatchResponse{
		Message: "Job accepted",
		JobID:   job.PublicID,
		Items:   len(sources),
	})
}
