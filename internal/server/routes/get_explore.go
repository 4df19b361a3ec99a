package routes

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/thirai-kg/backend/internal/server/middleware"
	"github.com/thirai-kg/backend/pkg/common"
)

func ExploreEntityHandler(c echo.Context) error {
	type exploreEntityResponse struct {
		Name    string                `json:"name"`
		Matches []common.Neighborhood `json:"matches"`
	}

	name := c.Param("name")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return invalidBody(c)
	}

	app := c.(*middleware.AppContext).App
	matches, err := app.Explorer.Entity(c.Request().Context(), name)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, exploreEntityResponse{Name: name, Matches: matches})
}

func ExplorePathHandler(c echo.Context) error {
	from := strings.TrimSpace(c.QueryParam("from"))
	to := strings.TrimSpace(c.QueryParam("to"))
	if from == "" || to == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Message: "from and to are required",
			Kind:    string(common.KindValidation),
		})
	}

	app := c.(*middleware.AppContext).App
	path, err := app.Explorer.Path(c.Request().Context(), from, to)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, path)
}

func ExploreStatsHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	stats, err := app.Explorer.Stats(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// ExportHandler returns every node and edge of the graph.
func ExportHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	graph, err := app.Explorer.Export(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, graph)
}
