package neo4j

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/logger"
	"github.com/thirai-kg/backend/pkg/schema"
	"github.com/thirai-kg/backend/pkg/store"
)

// marker set on create and removed in the same statement
const createdMarker = "__created"

// EnsureSchema creates a uniqueness constraint on identity_key per label.
func (s *GraphDBStorage) EnsureSchema(ctx context.Context, labels []string) error {
	for _, label := range store.DedupeStrings(labels) {
		stmt := constraintStatement(label)
		_, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, stmt, nil)
			if err != nil {
				return nil, err
			}
			_, err = res.Consume(ctx)
			return nil, err
		})
		if err != nil {
			return fmt.Errorf("failed to create constraint for %s: %w", label, err)
		}
	}
	logger.Debug("[Neo4j] schema ensured", "labels", len(labels))
	return nil
}

func constraintStatement(label string) string {
	name := strings.ToLower(label) + "_" + schema.KeyProperty
	return fmt.Sprintf(
		"CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
		quote(name), quote(label), schema.KeyProperty,
	)
}

// setClause renders "SET v.k = coalesce(v.k, $props.k), ..." so stored
// non-null values win over incoming ones.
func setClause(variable string, props map[string]any) string {
	keys := slices.Sorted(maps.Keys(props))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == schema.KeyProperty || props[k] == nil {
			continue
		}
		p := variable + "." + quote(k)
		parts = append(parts, fmt.Sprintf("%s = coalesce(%s, $props[%s])", p, p, cypherString(k)))
	}
	if len(parts) == 0 {
		return ""
	}
	return "SET " + strings.Join(parts, ", ")
}

func cypherString(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s) + "'"
}

func entityStatement(e store.EntityMerge) string {
	return fmt.Sprintf(`MERGE (n:%s {%s: $key})
ON CREATE SET n.%s = true
WITH n, coalesce(n.%s, false) AS created
WITH n, created, properties(n) AS before
REMOVE n.%s
%s
RETURN created, before`,
		quote(e.Label), schema.KeyProperty,
		createdMarker, createdMarker, createdMarker,
		setClause("n", e.Properties),
	)
}

func relationStatement(r store.RelationMerge) string {
	return fmt.Sprintf(`MATCH (s:%s {%s: $source}), (t:%s {%s: $target})
MERGE (s)-[r:%s]->(t)
ON CREATE SET r.%s = true
WITH r, coalesce(r.%s, false) AS created
WITH r, created, properties(r) AS before
REMOVE r.%s
%s
RETURN created, before`,
		quote(r.SourceLabel), schema.KeyProperty,
		quote(r.TargetLabel), schema.KeyProperty,
		quote(r.Type),
		createdMarker, createdMarker, createdMarker,
		setClause("r", r.Properties),
	)
}

// MergeEntity creates or updates the node (label, key). A concurrent create
// of the same node loses against the uniqueness constraint and is retried
// once as a match.
func (s *GraphDBStorage) MergeEntity(ctx context.Context, e store.EntityMerge) (common.MergeOutcome, error) {
	stmt := entityStatement(e)
	params := map[string]any{"key": e.Key, "props": e.Properties}

	out, err := s.merge(ctx, stmt, params)
	if isConstraintViolation(err) {
		logger.Debug("[Neo4j] merge raced, retrying", "label", e.Label, "key", e.Key)
		out, err = s.merge(ctx, stmt, params)
	}
	if err != nil {
		return common.MergeOutcome{}, fmt.Errorf("failed to merge %s %q: %w", e.Label, e.Key, err)
	}
	return out, nil
}

// MergeRelation creates or updates the edge of type r.Type between two
// existing nodes.
func (s *GraphDBStorage) MergeRelation(ctx context.Context, r store.RelationMerge) (common.MergeOutcome, error) {
	params := map[string]any{"source": r.SourceKey, "target": r.TargetKey, "props": r.Properties}
	out, err := s.merge(ctx, relationStatement(r), params)
	if err != nil {
		return common.MergeOutcome{}, fmt.Errorf(
			"failed to merge %s(%s)-[%s]->%s(%s): %w",
			r.SourceLabel, r.SourceKey, r.Type, r.TargetLabel, r.TargetKey, err,
		)
	}
	return out, nil
}

func (s *GraphDBStorage) merge(ctx context.Context, stmt string, params map[string]any) (common.MergeOutcome, error) {
	res, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, stmt, params)
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			return nil, store.ErrEndpointMissing
		}
		return outcomeFromRecord(result.Record()), nil
	})
	if err != nil {
		return common.MergeOutcome{}, err
	}
	return res.(common.MergeOutcome), nil
}

func outcomeFromRecord(rec *neo4j.Record) common.MergeOutcome {
	var out common.MergeOutcome
	if v, ok := rec.Get("created"); ok {
		out.Created, _ = v.(bool)
	}
	if out.Created {
		return out
	}
	if v, ok := rec.Get("before"); ok {
		if m, ok := v.(map[string]any); ok {
			out.Before = make(map[string]any, len(m))
			for k, val := range m {
				if k == createdMarker {
					continue
				}
				out.Before[k] = toValue(val)
			}
		}
	}
	return out
}
