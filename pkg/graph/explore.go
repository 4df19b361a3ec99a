package graph

import (
	"context"
	"errors"
	"strings"

	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/normalize"
	"github.com/thirai-kg/backend/pkg/schema"
	"github.com/thirai-kg/backend/pkg/store"
)

const (
	exploreMaxMatches = 10
	exploreOp         = "explore"
)

type exploreStore interface {
	store.Explorer
	Neighbors(ctx context.Context, elementID string, limit int) ([]common.Neighbor, error)
}

// Explorer serves fixed browse queries. Names are resolved through the
// normalizer, so "Superstar Rajinikanth" finds the node of "Rajinikanth".
type Explorer struct {
	store       exploreStore
	registry    *schema.Registry
	normalizer  *normalize.Normalizer
	degree      int
	maxPathHops int
}

type NewExplorerParams struct {
	Store      exploreStore
	Registry   *schema.Registry
	Normalizer *normalize.Normalizer
	// Degree caps the neighbours listed per entity, default 15.
	Degree int
	// MaxPathHops caps path length, default 6.
	MaxPathHops int
}

func NewExplorer(params NewExplorerParams) *Explorer {
	x := &Explorer{
		store:       params.Store,
		registry:    params.Registry,
		normalizer:  params.Normalizer,
		degree:      params.Degree,
		maxPathHops: params.MaxPathHops,
	}
	if x.registry == nil {
		x.registry = schema.Default()
	}
	if x.normalizer == nil {
		x.normalizer = normalize.New(normalize.Params{})
	}
	if x.degree <= 0 {
		x.degree = 15
	}
	if x.maxPathHops <= 0 {
		x.maxPathHops = 6
	}
	return x
}

// refs returns the identity of name under every label.
func (x *Explorer) refs(name string) ([]store.EntityRef, error) {
	var out []store.EntityRef
	for _, l := range x.registry.Labels() {
		key, err := x.normalizer.Key(l, name)
		if err != nil {
			return nil, err
		}
		out = append(out, store.EntityRef{Label: l, Key: key})
	}
	return store.DedupeRefs(out), nil
}

// Entity returns the nodes matching name with their neighbours. Exact
// identity matches win; otherwise display names containing name are used.
func (x *Explorer) Entity(ctx context.Context, name string) ([]common.Neighborhood, error) {
	refs, err := x.refs(name)
	if err != nil {
		return nil, err
	}

	nodes, err := x.store.FindEntities(ctx, refs, exploreMaxMatches)
	if err != nil {
		return nil, common.Wrap(common.KindQueryExecution, exploreOp, err)
	}
	if len(nodes) == 0 {
		nodes, err = x.store.SearchEntities(ctx, strings.TrimSpace(name), exploreMaxMatches)
		if err != nil {
			return nil, common.Wrap(common.KindQueryExecution, exploreOp, err)
		}
	}
	if len(nodes) == 0 {
		return nil, store.ErrNotFound
	}

	out := make([]common.Neighborhood, 0, len(nodes))
	for _, n := range nodes {
		nbrs, err := x.store.Neighbors(ctx, n.ElementID, x.degree)
		if err != nil {
			return nil, common.Wrap(common.KindQueryExecution, exploreOp, err)
		}
		out = append(out, common.Neighborhood{Anchor: n, Neighbors: nbrs})
	}
	return out, nil
}

// Path returns the shortest path between the entities named from and to.
func (x *Explorer) Path(ctx context.Context, from, to string) (*common.Path, error) {
	fromRefs, err := x.refs(from)
	if err != nil {
		return nil, err
	}
	toRefs, err := x.refs(to)
	if err != nil {
		return nil, err
	}

	p, err := x.store.ShortestPath(ctx, fromRefs, toRefs, x.maxPathHops)
	if errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, common.Wrap(common.KindQueryExecution, exploreOp, err)
	}
	return p, nil
}

func (x *Explorer) Stats(ctx context.Context) (*common.GraphStats, error) {
	s, err := x.store.Stats(ctx)
	if err != nil {
		return nil, common.Wrap(common.KindQueryExecution, exploreOp, err)
	}
	return s, nil
}

func (x *Explorer) Export(ctx context.Context) (*common.GraphExport, error) {
	g, err := x.store.Export(ctx)
	if err != nil {
		return nil, common.Wrap(common.KindQueryExecution, exploreOp, err)
	}
	return g, nil
}
