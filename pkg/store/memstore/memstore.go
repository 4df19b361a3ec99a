// Package memstore is an in-process graph store. It keeps merge semantics
// identical to the database store but cannot execute query text; Read and
// Explain delegate to optional hooks.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/schema"
	"github.com/thirai-kg/backend/pkg/store"
)

type ReadFunc func(ctx context.Context, query string, params map[string]any) ([]common.Row, error)

type ExplainFunc func(ctx context.Context, query string) error

type node struct {
	id    string
	label string
	props map[string]any
}

type edge struct {
	id     string
	typ    string
	source string
	target string
	props  map[string]any
}

// Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	nodes   map[store.EntityRef]*node
	byID    map[string]*node
	edges   map[string]*edge
	order   []string
	seq     int
	labels  map[string]bool
	read    ReadFunc
	explain ExplainFunc
}

type Option func(*Store)

func WithReadFunc(fn ReadFunc) Option {
	return func(s *Store) {
		s.read = fn
	}
}

func WithExplainFunc(fn ExplainFunc) Option {
	return func(s *Store) {
		s.explain = fn
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		nodes:  map[store.EntityRef]*node{},
		byID:   map[string]*node{},
		edges:  map[string]*edge{},
		labels: map[string]bool{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s:%d", prefix, s.seq)
}

func (s *Store) EnsureSchema(_ context.Context, labels []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range labels {
		s.labels[l] = true
	}
	return nil
}

// mergeProps fills missing or null keys of stored from incoming and returns
// a copy of stored taken before the merge.
func mergeProps(stored, incoming map[string]any) map[string]any {
	before := maps.Clone(stored)
	for k, v := range incoming {
		if k == schema.KeyProperty || v == nil {
			continue
		}
		if cur, ok := stored[k]; !ok || cur == nil {
			stored[k] = v
		}
	}
	return before
}

func (s *Store) MergeEntity(ctx context.Context, e store.EntityMerge) (common.MergeOutcome, error) {
	if err := ctx.Err(); err != nil {
		return common.MergeOutcome{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := store.EntityRef{Label: e.Label, Key: e.Key}
	if n, ok := s.nodes[ref]; ok {
		return common.MergeOutcome{Before: mergeProps(n.props, e.Properties)}, nil
	}
	n := &node{id: s.nextID("n"), label: e.Label, props: map[string]any{schema.KeyProperty: e.Key}}
	mergeProps(n.props, e.Properties)
	s.nodes[ref] = n
	s.byID[n.id] = n
	return common.MergeOutcome{Created: true}, nil
}

func edgeKey(typ, source, target string) string {
	return typ + "|" + source + "|" + target
}

func (s *Store) MergeRelation(ctx context.Context, r store.RelationMerge) (common.MergeOutcome, error) {
	if err := ctx.Err(); err != nil {
		return common.MergeOutcome{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.nodes[store.EntityRef{Label: r.SourceLabel, Key: r.SourceKey}]
	if !ok {
		return common.MergeOutcome{}, store.ErrEndpointMissing
	}
	dst, ok := s.nodes[store.EntityRef{Label: r.TargetLabel, Key: r.TargetKey}]
	if !ok {
		return common.MergeOutcome{}, store.ErrEndpointMissing
	}

	key := edgeKey(r.Type, src.id, dst.id)
	if e, ok := s.edges[key]; ok {
		return common.MergeOutcome{Before: mergeProps(e.props, r.Properties)}, nil
	}
	e := &edge{id: s.nextID("e"), typ: r.Type, source: src.id, target: dst.id, props: map[string]any{}}
	mergeProps(e.props, r.Properties)
	s.edges[key] = e
	s.order = append(s.order, key)
	return common.MergeOutcome{Created: true}, nil
}

func (s *Store) Explain(ctx context.Context, query string) error {
	if s.explain == nil {
		return nil
	}
	return s.explain(ctx, query)
}

func (s *Store) Read(ctx context.Context, query string, params map[string]any) ([]common.Row, error) {
	if s.read == nil {
		return nil, fmt.Errorf("memstore cannot execute %q", query)
	}
	return s.read(ctx, query, params)
}

func (s *Store) Neighbors(_ context.Context, elementID string, limit int) ([]common.Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []common.Neighbor
	for _, key := range s.order {
		e := s.edges[key]
		var other string
		switch elementID {
		case e.source:
			other = e.target
		case e.target:
			other = e.source
		default:
			continue
		}
		out = append(out, common.Neighbor{
			Edge:     s.toEdge(e),
			Node:     s.toNode(s.byID[other]),
			Outgoing: e.source == elementID,
		})
	}
	slices.SortStableFunc(out, func(a, b common.Neighbor) int {
		if c := strings.Compare(a.Edge.Type, b.Edge.Type); c != 0 {
			return c
		}
		return strings.Compare(displayName(a.Node), displayName(b.Node))
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func displayName(n common.Node) string {
	s, _ := n.Properties[schema.NameProperty].(string)
	return s
}

func (s *Store) toNode(n *node) common.Node {
	return common.Node{ElementID: n.id, Labels: []string{n.label}, Properties: maps.Clone(n.props)}
}

func (s *Store) toEdge(e *edge) common.Edge {
	return common.Edge{ElementID: e.id, Type: e.typ, StartID: e.source, EndID: e.target, Properties: maps.Clone(e.props)}
}

func (s *Store) FindEntities(_ context.Context, refs []store.EntityRef, limit int) ([]common.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []common.Node
	for _, ref := range store.DedupeRefs(refs) {
		if len(out) >= limit {
			break
		}
		if n, ok := s.nodes[ref]; ok {
			out = append(out, s.toNode(n))
		}
	}
	return out, nil
}

func (s *Store) SearchEntities(_ context.Context, text string, limit int) ([]common.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	text = strings.ToLower(text)
	var out []common.Node
	for _, n := range s.sortedNodes() {
		name, _ := n.props[schema.NameProperty].(string)
		if text != "" && strings.Contains(strings.ToLower(name), text) {
			out = append(out, s.toNode(n))
		}
	}
	slices.SortStableFunc(out, func(a, b common.Node) int {
		return len(displayName(a)) - len(displayName(b))
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) sortedNodes() []*node {
	out := slices.Collect(maps.Values(s.byID))
	slices.SortFunc(out, func(a, b *node) int {
		return strings.Compare(a.id, b.id)
	})
	return out
}

// ShortestPath runs a breadth-first search over undirected edges.
func (s *Store) ShortestPath(_ context.Context, from, to []store.EntityRef, maxHops int) (*common.Path, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	targets := map[string]bool{}
	for _, ref := range to {
		if n, ok := s.nodes[ref]; ok {
			targets[n.id] = true
		}
	}

	type step struct {
		node string
		edge *edge
		prev *step
		hops int
	}
	var queue []*step
	seen := map[string]bool{}
	for _, ref := range from {
		if n, ok := s.nodes[ref]; ok && !seen[n.id] {
			seen[n.id] = true
			queue = append(queue, &step{node: n.id})
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if targets[cur.node] && cur.hops > 0 {
			path := &common.Path{}
			for st := cur; st != nil; st = st.prev {
				path.Nodes = append([]common.Node{s.toNode(s.byID[st.node])}, path.Nodes...)
				if st.edge != nil {
					path.Edges = append([]common.Edge{s.toEdge(st.edge)}, path.Edges...)
				}
			}
			return path, nil
		}
		if cur.hops >= maxHops {
			continue
		}
		for _, key := range s.order {
			e := s.edges[key]
			var next string
			switch cur.node {
			case e.source:
				next = e.target
			case e.target:
				next = e.source
			default:
				continue
			}
			if seen[next] {
				continue
			}
			seen[next] = true
			queue = append(queue, &step{node: next, edge: e, prev: cur, hops: cur.hops + 1})
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) Stats(context.Context) (*common.GraphStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &common.GraphStats{Nodes: map[string]int64{}, Edges: map[string]int64{}}
	for _, n := range s.byID {
		stats.Nodes[n.label]++
	}
	for _, e := range s.edges {
		stats.Edges[e.typ]++
	}
	return stats, nil
}

func (s *Store) Export(context.Context) (*common.GraphExport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := &common.GraphExport{}
	for _, n := range s.sortedNodes() {
		out.Nodes = append(out.Nodes, s.toNode(n))
	}
	for _, key := range s.order {
		out.Edges = append(out.Edges, s.toEdge(s.edges[key]))
	}
	return out, nil
}

// Node returns the stored node for (label, key).
func (s *Store) Node(label, key string) (common.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[store.EntityRef{Label: label, Key: key}]
	if !ok {
		return common.Node{}, false
	}
	return s.toNode(n), true
}

func (s *Store) Close(context.Context) error {
	return nil
}
