package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/thirai-kg/backend/internal/server/middleware"
	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/query"
)

const (
	answerStatusOK      = "ok"
	answerStatusPartial = "partial"
)

// AnswerHandler answers a natural language question from the graph.
func AnswerHandler(c echo.Context) error {
	type answerBody struct {
		Question  string `json:"question" validate:"required"`
		Expansion *bool  `json:"expansion"`
		Trace     bool   `json:"trace"`
	}

	type answerResponse struct {
		Status   string                    `json:"status"`
		Question string                    `json:"question"`
		Answer   string                    `json:"answer,omitempty"`
		Query    string                    `json:"query"`
		Context  *common.Context           `json:"context"`
		Notes    []string                  `json:"notes,omitempty"`
		Trace    *query.QueryTraceSnapshot `json:"trace,omitempty"`
	}

	data := new(answerBody)
	if err := c.Bind(data); err != nil {
		return invalidBody(c)
	}
	if err := c.Validate(data); err != nil {
		return invalidBody(c)
	}

	var opts []query.AnswerOption
	if data.Expansion != nil {
		opts = append(opts, query.WithExpansion(*data.Expansion))
	}
	var trace *query.QueryTrace
	if data.Trace {
		trace = query.NewQueryTrace()
		opts = append(opts, query.WithTracer(trace))
	}

	app := c.(*middleware.AppContext).App
	ans, err := app.Answerer.Answer(c.Request().Context(), data.Question, opts...)
	if err != nil && !(errors.Is(err, common.ErrSynthesis) && ans != nil) {
		return writeError(c, err)
	}

	resp := answerResponse{
		Status:   answerStatusOK,
		Question: ans.Question,
		Answer:   ans.Answer,
		Query:    ans.Query,
		Context:  ans.Context,
		Notes:    ans.Notes,
	}
	if err != nil {
		resp.Status = answerStatusPartial
		resp.Notes = append(resp.Notes, "the answer could not be written; the retrieved context is returned as is")
	}
	if trace != nil {
		snap := trace.Snapshot()
		resp.Trace = &snap
	}
	return c.JSON(http.StatusOK, resp)
}
