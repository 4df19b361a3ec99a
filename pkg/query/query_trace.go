package query

import (
	"slices"
	"sync"
)

type TraceEventKind string

const (
	TraceEventGeneratedQuery  TraceEventKind = "generated_query"
	TraceEventRejectedQuery   TraceEventKind = "rejected_query"
	TraceEventQueriedNodeIDs  TraceEventKind = "queried_node_ids"
	TraceEventExpandedNodeIDs TraceEventKind = "expanded_node_ids"
	TraceEventQueriedLabels   TraceEventKind = "queried_labels"
)

// TraceEvent is an extensible event envelope for query tracing.
// Additive changes to this struct are backward compatible for implementers.
type TraceEvent struct {
	Kind TraceEventKind

	Query   string
	NodeIDs []string
	Labels  []string

	DurationMs int64
	Error      string
}

// Tracer is a sink for query tracing events.
//
// Implementers can forward events to logs, telemetry, or custom post-processing
// pipelines.
type Tracer interface {
	Record(event TraceEvent)
}

// MultiTracer fan-outs trace events to multiple tracers.
type MultiTracer []Tracer

func (m MultiTracer) Record(event TraceEvent) {
	for _, t := range m {
		if t == nil {
			continue
		}
		t.Record(event)
	}
}

func RecordGeneratedQuery(t Tracer, query string, durationMs int64) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventGeneratedQuery, Query: query, DurationMs: durationMs})
}

func RecordRejectedQuery(t Tracer, query string, err error) {
	if t == nil || err == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventRejectedQuery, Query: query, Error: err.Error()})
}

func RecordQueriedNodeIDs(t Tracer, ids ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventQueriedNodeIDs, NodeIDs: ids})
}

func RecordExpandedNodeIDs(t Tracer, ids ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventExpandedNodeIDs, NodeIDs: ids})
}

func RecordQueriedLabels(t Tracer, labels ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventQueriedLabels, Labels: labels})
}

// QueryTrace collects what a question answering run generated and touched.
//
// QueryTrace is safe for concurrent use.
type QueryTrace struct {
	mu sync.Mutex

	queries         []string
	rejected        []string
	queriedNodeIDs  map[string]struct{}
	expandedNodeIDs map[string]struct{}
	labels          map[string]struct{}
}

type QueryTraceSnapshot struct {
	Queries         []string `json:"queries"`
	Rejected        []string `json:"rejected,omitempty"`
	QueriedNodeIDs  []string `json:"queried_node_ids"`
	ExpandedNodeIDs []string `json:"expanded_node_ids,omitempty"`
	Labels          []string `json:"labels"`
}

func NewQueryTrace() *QueryTrace {
	return &QueryTrace{
		queriedNodeIDs:  make(map[string]struct{}),
		expandedNodeIDs: make(map[string]struct{}),
		labels:          make(map[string]struct{}),
	}
}

func addAll(set map[string]struct{}, values []string) {
	for _, v := range values {
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
}

func (t *QueryTrace) Record(event TraceEvent) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Kind {
	case TraceEventGeneratedQuery:
		t.queries = append(t.queries, event.Query)
	case TraceEventRejectedQuery:
		t.rejected = append(t.rejected, event.Error)
	case TraceEventQueriedNodeIDs:
		addAll(t.queriedNodeIDs, event.NodeIDs)
	case TraceEventExpandedNodeIDs:
		addAll(t.expandedNodeIDs, event.NodeIDs)
	case TraceEventQueriedLabels:
		addAll(t.labels, event.Labels)
	}
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

func (t *QueryTrace) Snapshot() QueryTraceSnapshot {
	if t == nil {
		return QueryTraceSnapshot{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return QueryTraceSnapshot{
		Queries:         slices.Clone(t.queries),
		Rejected:        slices.Clone(t.rejected),
		QueriedNodeIDs:  sortedSet(t.queriedNodeIDs),
		ExpandedNodeIDs: sortedSet(t.expandedNodeIDs),
		Labels:          sortedSet(t.labels),
	}
}
