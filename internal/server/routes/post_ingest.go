package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/thirai-kg/backend/internal/server/middleware"
	"github.com/thirai-kg/backend/pkg/common"
)

// IngestHandler ingests one text synchronously.
func IngestHandler(c echo.Context) error {
	type ingestBody struct {
		Text string `json:"text" validate:"required"`
	}

	type ingestResponse struct {
		Message string               `json:"message"`
		Report  *common.IngestReport `json:"report"`
	}

	data := new(ingestBody)
	if err := c.Bind(data); err != nil {
		return invalidBody(c)
	}
	if err := c.Validate(data); err != nil {
		return invalidBody(c)
	}

	app := c.(*middleware.AppContext).App
	report, err := app.Ingester.Ingest(c.Request().Context(), data.Text)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, ingestResponse{
		Message: "Text ingested",
		Report:  report,
	})
}
