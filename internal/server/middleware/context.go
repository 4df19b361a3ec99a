package middleware

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/thirai-kg/backend/internal/jobs"
	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/loader"
	"github.com/thirai-kg/backend/pkg/query"
)

type AppUser struct {
	UserID      string
	Role        string
	Permissions []string
}

type Ingester interface {
	Ingest(ctx context.Context, text string) (*common.IngestReport, error)
}

type Answerer interface {
	Answer(ctx context.Context, question string, opts ...query.AnswerOption) (*common.Answer, error)
}

type GraphExplorer interface {
	Entity(ctx context.Context, name string) ([]common.Neighborhood, error)
	Path(ctx context.Context, from, to string) (*common.Path, error)
	Stats(ctx context.Context) (*common.GraphStats, error)
	Export(ctx context.Context) (*common.GraphExport, error)
}

type JobLedger interface {
	Create(ctx context.Context, createdBy string, sources []loader.Source) (*jobs.Job, error)
	Get(ctx context.Context, publicID string) (*jobs.Job, error)
}

type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

type App struct {
	Ingester Ingester
	Answerer Answerer
	Explorer GraphExplorer
	Jobs     JobLedger
	Queue    Publisher
	// Keyfunc verifies bearer tokens. Nil disables JWT authentication.
	Keyfunc jwt.Keyfunc

	MasterAPIKey   string
	MasterUserID   string
	MasterUserRole string
	// MaxBatchItems caps the sources of one batch job.
	MaxBatchItems int
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
