package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/store"
)

const exportPageSize = 1000

const findEntitiesQuery = `UNWIND $refs AS ref
MATCH (n {identity_key: ref.key})
WHERE ref.label IN labels(n)
RETURN DISTINCT n
LIMIT $limit`

func (s *GraphDBStorage) FindEntities(ctx context.Context, refs []store.EntityRef, limit int) ([]common.Node, error) {
	refs = store.DedupeRefs(refs)
	if len(refs) == 0 || limit <= 0 {
		return nil, nil
	}
	return s.nodes(ctx, findEntitiesQuery, map[string]any{
		"refs":  store.RefParams(refs),
		"limit": int64(limit),
	})
}

const searchEntitiesQuery = `MATCH (n)
WHERE toLower(n.display_name) CONTAINS toLower($text)
RETURN n
ORDER BY size(n.display_name), n.display_name
LIMIT $limit`

func (s *GraphDBStorage) SearchEntities(ctx context.Context, text string, limit int) ([]common.Node, error) {
	if text == "" || limit <= 0 {
		return nil, nil
	}
	return s.nodes(ctx, searchEntitiesQuery, map[string]any{"text": text, "limit": int64(limit)})
}

func (s *GraphDBStorage) nodes(ctx context.Context, query string, params map[string]any) ([]common.Node, error) {
	res, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]common.Node, 0, len(records))
		for _, rec := range records {
			if v, ok := rec.Get("n"); ok {
				if n, ok := v.(neo4j.Node); ok {
					out = append(out, toNode(n))
				}
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]common.Node), nil
}

// shortest path length cannot be a parameter, maxHops is formatted in
func shortestPathQuery(maxHops int) string {
	return fmt.Sprintf(`UNWIND $from AS f
MATCH (a {identity_key: f.key}) WHERE f.label IN labels(a)
WITH collect(DISTINCT a) AS starts
UNWIND $to AS t
MATCH (b {identity_key: t.key}) WHERE t.label IN labels(b)
WITH starts, collect(DISTINCT b) AS ends
UNWIND starts AS a
UNWIND ends AS b
WITH a, b WHERE a <> b
MATCH p = shortestPath((a)-[*..%d]-(b))
RETURN p
ORDER BY length(p)
LIMIT 1`, maxHops)
}

func (s *GraphDBStorage) ShortestPath(
	ctx context.Context,
	from, to []store.EntityRef,
	maxHops int,
) (*common.Path, error) {
	from, to = store.DedupeRefs(from), store.DedupeRefs(to)
	if len(from) == 0 || len(to) == 0 {
		return nil, store.ErrNotFound
	}
	if maxHops <= 0 {
		maxHops = 1
	}
	params := map[string]any{"from": store.RefParams(from), "to": store.RefParams(to)}

	res, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, shortestPathQuery(maxHops), params)
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			return nil, store.ErrNotFound
		}
		v, _ := result.Record().Get("p")
		p, ok := v.(neo4j.Path)
		if !ok {
			return nil, store.ErrNotFound
		}
		path := toPath(p)
		return &path, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*common.Path), nil
}

const (
	nodeCountQuery = `MATCH (n) UNWIND labels(n) AS name RETURN name, count(*) AS total`
	edgeCountQuery = `MATCH ()-[r]->() RETURN type(r) AS name, count(*) AS total`
)

func (s *GraphDBStorage) Stats(ctx context.Context) (*common.GraphStats, error) {
	nodes, err := s.counts(ctx, nodeCountQuery)
	if err != nil {
		return nil, err
	}
	edges, err := s.counts(ctx, edgeCountQuery)
	if err != nil {
		return nil, err
	}
	return &common.GraphStats{Nodes: nodes, Edges: edges}, nil
}

func (s *GraphDBStorage) counts(ctx context.Context, query string) (map[string]int64, error) {
	res, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		out := map[string]int64{}
		for result.Next(ctx) {
			rec := result.Record()
			name, _ := rec.Get("name")
			total, _ := rec.Get("total")
			n, _ := name.(string)
			c, _ := total.(int64)
			out[n] = c
		}
		return out, result.Err()
	})
	if err != nil {
		return nil, err
	}
	return res.(map[string]int64), nil
}

const (
	exportNodesQuery = `MATCH (n) RETURN n ORDER BY elementId(n) SKIP $skip LIMIT $limit`
	exportEdgesQuery = `MATCH ()-[r]->() RETURN r ORDER BY elementId(r) SKIP $skip LIMIT $limit`
)

// Export dumps every node and edge, paging through the graph.
func (s *GraphDBStorage) Export(ctx context.Context) (*common.GraphExport, error) {
	out := &common.GraphExport{}
	err := s.page(ctx, exportNodesQuery, func(v any) {
		if n, ok := v.(neo4j.Node); ok {
			out.Nodes = append(out.Nodes, toNode(n))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export nodes: %w", err)
	}
	err = s.page(ctx, exportEdgesQuery, func(v any) {
		if r, ok := v.(neo4j.Relationship); ok {
			out.Edges = append(out.Edges, toEdge(r))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export edges: %w", err)
	}
	return out, nil
}

func (s *GraphDBStorage) page(ctx context.Context, query string, emit func(v any)) error {
	for skip := 0; ; skip += exportPageSize {
		res, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			result, err := tx.Run(ctx, query, map[string]any{
				"skip":  int64(skip),
				"limit": int64(exportPageSize),
			})
			if err != nil {
				return nil, err
			}
			return result.Collect(ctx)
		})
		if err != nil {
			return err
		}
		records := res.([]*neo4j.Record)
		for _, rec := range records {
			emit(rec.Values[0])
		}
		if len(records) < exportPageSize {
			return nil
		}
	}
}
