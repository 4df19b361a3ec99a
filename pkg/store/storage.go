package store

import (
	"context"

	"github.com/thirai-kg/backend/pkg/common"
)

// EntityMerge describes one node upsert. Properties never contain
// identity_key; display_name is included.
type EntityMerge struct {
	Label      string
	Key        string
	Properties map[string]any
}

// RelationMerge describes one edge upsert between two existing nodes.
type RelationMerge struct {
	Type        string
	SourceLabel string
	SourceKey   string
	TargetLabel string
	TargetKey   string
	Properties  map[string]any
}

// Writer is the only write path into the graph. Merges are idempotent:
// a node is identified by (label, key) and an edge by (type, source, target).
// Stored non-null properties are never overwritten.
type Writer interface {
	EnsureSchema(ctx context.Context, labels []string) error
	MergeEntity(ctx context.Context, e EntityMerge) (common.MergeOutcome, error)
	// MergeRelation fails with ErrEndpointMissing when either endpoint node
	// does not exist.
	MergeRelation(ctx context.Context, r RelationMerge) (common.MergeOutcome, error)
}

// Reader executes validated read-only queries.
type Reader interface {
	// Explain asks the engine to plan query without running it. It fails when
	// the query does not parse or is not read-only.
	Explain(ctx context.Context, query string) error
	Read(ctx context.Context, query string, params map[string]any) ([]common.Row, error)
	// Neighbors returns up to limit nodes adjacent to the node with elementID.
	Neighbors(ctx context.Context, elementID string, limit int) ([]common.Neighbor, error)
}

// EntityRef addresses a node by label and identity key.
type EntityRef struct {
	Label string `json:"label"`
	Key   string `json:"key"`
}

// Explorer serves fixed browse queries.
type Explorer interface {
	FindEntities(ctx context.Context, refs []EntityRef, limit int) ([]common.Node, error)
	// SearchEntities matches display names containing text, ignoring case.
	SearchEntities(ctx context.Context, text string, limit int) ([]common.Node, error)
	// ShortestPath fails with ErrNotFound when no path of at most maxHops
	// connects any node of from with any node of to.
	ShortestPath(ctx context.Context, from, to []EntityRef, maxHops int) (*common.Path, error)
	Stats(ctx context.Context) (*common.GraphStats, error)
	Export(ctx context.Context) (*common.GraphExport, error)
}

// GraphStorage is the full store as seen by the wiring layer. Components
// receive only the narrow interface they need.
type GraphStorage interface {
	Writer
	Reader
	Explorer
	Close(ctx context.Context) error
}
