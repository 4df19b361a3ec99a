package neo4j

import (
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/thirai-kg/backend/pkg/common"
)

func toRow(rec *neo4j.Record) common.Row {
	row := make(common.Row, len(rec.Keys))
	for i, k := range rec.Keys {
		row[k] = toValue(rec.Values[i])
	}
	return row
}

// toValue converts driver values into plain, JSON friendly values.
func toValue(v any) any {
	switch x := v.(type) {
	case dbtype.Node:
		return toNode(x)
	case dbtype.Relationship:
		return toEdge(x)
	case dbtype.Path:
		return toPath(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = toValue(e)
		}
		return out
	case map[string]any:
		return toProps(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case dbtype.Date:
		return x.Time().Format(time.DateOnly)
	case dbtype.LocalDateTime:
		return x.Time().Format("2006-01-02T15:04:05")
	case dbtype.LocalTime, dbtype.Time, dbtype.Duration, dbtype.Point2D, dbtype.Point3D:
		return fmt.Sprint(x)
	default:
		return v
	}
}

func toProps(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = toValue(v)
	}
	return out
}

func toNode(n dbtype.Node) common.Node {
	return common.Node{
		ElementID:  n.ElementId,
		Labels:     n.Labels,
		Properties: toProps(n.Props),
	}
}

func toEdge(r dbtype.Relationship) common.Edge {
	return common.Edge{
		ElementID:  r.ElementId,
		Type:       r.Type,
		StartID:    r.StartElementId,
		EndID:      r.EndElementId,
		Properties: toProps(r.Props),
	}
}

func toPath(p dbtype.Path) common.Path {
	out := common.Path{
		Nodes: make([]common.Node, len(p.Nodes)),
		Edges: make([]common.Edge, len(p.Relationships)),
	}
	for i, n := range p.Nodes {
		out.Nodes[i] = toNode(n)
	}
	for i, r := range p.Relationships {
		out.Edges[i] = toEdge(r)
	}
	return out
}
