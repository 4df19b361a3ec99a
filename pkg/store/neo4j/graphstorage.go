// Package neo4j implements the graph store on a Neo4j 5 database.
package neo4j

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/thirai-kg/backend/pkg/logger"
	"github.com/thirai-kg/backend/pkg/store"
)

const (
	defaultQueryTimeout = 30 * time.Second
	defaultMaxRows      = 200
)

type sessionOpener interface {
	NewSession(ctx context.Context, config neo4j.SessionConfig) neo4j.SessionWithContext
	Close(ctx context.Context) error
}

// GraphDBStorage implements store.GraphStorage. Labels and relationship types
// are spliced into statements, so callers must pass only names that passed
// the schema registry.
type GraphDBStorage struct {
	driver       sessionOpener
	database     string
	queryTimeout time.Duration
	maxRows      int
}

type GraphDBStorageOption func(*GraphDBStorage)

// WithDatabase selects a database other than the server default.
func WithDatabase(name string) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		s.database = name
	}
}

// WithQueryTimeout bounds every transaction.
func WithQueryTimeout(d time.Duration) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		if d > 0 {
			s.queryTimeout = d
		}
	}
}

// WithMaxRows caps the records a single Read returns.
func WithMaxRows(n int) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		if n > 0 {
			s.maxRows = n
		}
	}
}

type NewGraphDBStorageParams struct {
	URI      string
	Username string
	Password string
}

// NewGraphDBStorage connects to the database at params.URI and verifies the
// connection.
func NewGraphDBStorage(
	ctx context.Context,
	params NewGraphDBStorageParams,
	opts ...GraphDBStorageOption,
) (*GraphDBStorage, error) {
	if params.URI == "" {
		return nil, errors.New("neo4j uri is required")
	}
	auth := neo4j.NoAuth()
	if params.Username != "" {
		auth = neo4j.BasicAuth(params.Username, params.Password, "")
	}
	driver, err := neo4j.NewDriverWithContext(params.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to reach neo4j at %s: %w", params.URI, err)
	}
	logger.Info("[Neo4j] connected", "uri", params.URI)

	return NewGraphDBStorageWithDriver(driver, opts...), nil
}

// NewGraphDBStorageWithDriver creates a GraphDBStorage on an existing driver.
func NewGraphDBStorageWithDriver(driver sessionOpener, opts ...GraphDBStorageOption) *GraphDBStorage {
	s := &GraphDBStorage{
		driver:       driver,
		queryTimeout: defaultQueryTimeout,
		maxRows:      defaultMaxRows,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

func (s *GraphDBStorage) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *GraphDBStorage) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
}

func (s *GraphDBStorage) write(
	ctx context.Context,
	work func(tx neo4j.ManagedTransaction) (any, error),
) (any, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	res, err := session.ExecuteWrite(ctx, work, neo4j.WithTxTimeout(s.queryTimeout))
	return res, classify(err)
}

func (s *GraphDBStorage) read(
	ctx context.Context,
	work func(tx neo4j.ManagedTransaction) (any, error),
) (any, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	res, err := session.ExecuteRead(ctx, work, neo4j.WithTxTimeout(s.queryTimeout))
	return res, classify(err)
}

// classify maps driver errors onto the store error set.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, store.ErrEndpointMissing) || errors.Is(err, store.ErrNotFound) {
		return err
	}

	var dbErr *neo4j.Neo4jError
	if errors.As(err, &dbErr) {
		switch {
		case strings.Contains(dbErr.Code, "SyntaxError"):
			return fmt.Errorf("%w: %s", store.ErrSyntax, dbErr.Msg)
		case strings.Contains(dbErr.Code, "TransactionTimedOut"):
			return &store.TransientError{Err: err}
		}
	}
	if neo4j.IsRetryable(err) || neo4j.IsConnectivityError(err) {
		return &store.TransientError{Err: err}
	}
	return err
}

func isConstraintViolation(err error) bool {
	var dbErr *neo4j.Neo4jError
	return errors.As(err, &dbErr) && strings.Contains(dbErr.Code, "ConstraintValidationFailed")
}

// quote wraps a name in backticks for use as a label, type or property key.
func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
