package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/store"
)

// Explain plans query without running it and checks that the planner
// classifies it as read-only.
func (s *GraphDBStorage) Explain(ctx context.Context, query string) error {
	res, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, "EXPLAIN "+query, nil)
		if err != nil {
			return nil, err
		}
		summary, err := result.Consume(ctx)
		if err != nil {
			return nil, err
		}
		return summary.StatementType(), nil
	})
	if err != nil {
		return err
	}
	if st := res.(neo4j.StatementType); st != neo4j.StatementTypeReadOnly {
		return fmt.Errorf("%w: planner reports %s", store.ErrNotReadOnly, statementTypeName(st))
	}
	return nil
}

func statementTypeName(st neo4j.StatementType) string {
	switch st {
	case neo4j.StatementTypeReadOnly:
		return "read only"
	case neo4j.StatementTypeReadWrite:
		return "read write"
	case neo4j.StatementTypeWriteOnly:
		return "write only"
	case neo4j.StatementTypeSchemaWrite:
		return "schema write"
	default:
		return "unknown"
	}
}

// Read runs query in a read transaction and returns at most the configured
// number of rows.
func (s *GraphDBStorage) Read(ctx context.Context, query string, params map[string]any) ([]common.Row, error) {
	res, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		rows := make([]common.Row, 0)
		for len(rows) < s.maxRows && result.Next(ctx) {
			rows = append(rows, toRow(result.Record()))
		}
		if err := result.Err(); err != nil {
			return nil, err
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]common.Row), nil
}

const neighborsQuery = `MATCH (a)-[r]-(b)
WHERE elementId(a) = $id
RETURN r, b, startNode(r) = a AS outgoing
ORDER BY type(r), b.display_name
LIMIT $limit`

// Neighbors returns nodes one hop away from the node with elementID.
func (s *GraphDBStorage) Neighbors(ctx context.Context, elementID string, limit int) ([]common.Neighbor, error) {
	if limit <= 0 {
		return nil, nil
	}
	params := map[string]any{"id": elementID, "limit": int64(limit)}
	res, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, neighborsQuery, params)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]common.Neighbor, 0, len(records))
		for _, rec := range records {
			n, ok := neighborFromRecord(rec)
			if ok {
				out = append(out, n)
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]common.Neighbor), nil
}

func neighborFromRecord(rec *neo4j.Record) (common.Neighbor, bool) {
	rel, _ := rec.Get("r")
	node, _ := rec.Get("b")
	outgoing, _ := rec.Get("outgoing")

	r, ok := rel.(neo4j.Relationship)
	if !ok {
		return common.Neighbor{}, false
	}
	n, ok := node.(neo4j.Node)
	if !ok {
		return common.Neighbor{}, false
	}
	out, _ := outgoing.(bool)
	return common.Neighbor{Edge: toEdge(r), Node: toNode(n), Outgoing: out}, true
}
