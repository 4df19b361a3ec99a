package common

import "strings"

// ExtractedEntity is an entity mention produced by extraction after it was
// checked against the schema registry. Properties hold only allowed keys with
// values already coerced to their declared kind.
type ExtractedEntity struct {
	Mention    string         `json:"mention"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Triple is a relation assertion between two entity mentions.
//
// Subject and Object refer to mention text from the same extraction batch.
// Predicate is a canonical relation type of the schema registry.
type Triple struct {
	Subject    string         `json:"subject"`
	Predicate  string         `json:"predicate"`
	Object     string         `json:"object"`
	Properties map[string]any `json:"properties,omitempty"`
}

// EntityLists groups extracted entities by label, preserving the order in
// which they were first seen.
type EntityLists struct {
	order  []string
	byType map[string][]ExtractedEntity
}

// NewEntityLists returns an empty EntityLists.
func NewEntityLists() *EntityLists {
	return &EntityLists{byType: map[string][]ExtractedEntity{}}
}

// Add appends e to the list of its label.
func (l *EntityLists) Add(e ExtractedEntity) {
	if _, ok := l.byType[e.Type]; !ok {
		l.order = append(l.order, e.Type)
	}
	l.byType[e.Type] = append(l.byType[e.Type], e)
}

// Of returns the entities of the given label.
func (l *EntityLists) Of(label string) []ExtractedEntity {
	if l == nil {
		return nil
	}
	return l.byType[label]
}

// All returns every entity, grouped by label in first-seen label order.
func (l *EntityLists) All() []ExtractedEntity {
	if l == nil {
		return nil
	}
	out := make([]ExtractedEntity, 0, l.Len())
	for _, t := range l.order {
		out = append(out, l.byType[t]...)
	}
	return out
}

// Find returns the entities whose mention equals mention, ignoring case and
// surrounding whitespace.
func (l *EntityLists) Find(mention string) []ExtractedEntity {
	if l == nil {
		return nil
	}
	want := strings.TrimSpace(mention)
	var out []ExtractedEntity
	for _, t := range l.order {
		for _, e := range l.byType[t] {
			if strings.EqualFold(strings.TrimSpace(e.Mention), want) {
				out = append(out, e)
			}
		}
	}
	return out
}

// Len returns the total number of entities.
func (l *EntityLists) Len() int {
	if l == nil {
		return 0
	}
	n := 0
	for _, es := range l.byType {
		n += len(es)
	}
	return n
}

// Node is a graph node as it appears in retrieval results.
type Node struct {
	ElementID  string         `json:"element_id,omitempty"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

// Key returns the node identity key, or the empty string.
func (n Node) Key() string {
	if k, ok := n.Properties["identity_key"].(string); ok {
		return k
	}
	return ""
}

// Label returns the first label of the node.
func (n Node) Label() string {
	if len(n.Labels) == 0 {
		return ""
	}
	return n.Labels[0]
}

// Edge is a graph relationship as it appears in retrieval results.
type Edge struct {
	ElementID  string         `json:"element_id,omitempty"`
	Type       string         `json:"type"`
	StartID    string         `json:"start_id,omitempty"`
	EndID      string         `json:"end_id,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Path is an alternating sequence of nodes and edges.
type Path struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Row is one record returned by a read query. Graph values are converted to
// Node, Edge and Path.
type Row map[string]any

// Neighbor is a node adjacent to an anchor node together with the connecting
// edge. Outgoing is true when the edge starts at the anchor.
type Neighbor struct {
	Edge     Edge `json:"edge"`
	Node     Node `json:"node"`
	Outgoing bool `json:"outgoing"`
}

// Neighborhood groups the one-hop neighbours of an anchor node.
type Neighborhood struct {
	Anchor    Node       `json:"anchor"`
	Neighbors []Neighbor `json:"neighbors"`
}

// StructuredQuery is a validated, read-only query ready for execution.
type StructuredQuery struct {
	Text      string   `json:"text"`
	Reasoning string   `json:"reasoning,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Context is the retrieval result handed to answer synthesis.
type Context struct {
	Question    string         `json:"question"`
	Query       string         `json:"query"`
	MainResults []Row          `json:"main_results"`
	Related     []Neighborhood `json:"related,omitempty"`
	Notes       []string       `json:"notes,omitempty"`
	Truncated   bool           `json:"truncated,omitempty"`
}

// Empty reports whether the query produced no rows.
func (c *Context) Empty() bool {
	return c == nil || len(c.MainResults) == 0
}

// Answer is the result of a question answering run.
type Answer struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Query    string   `json:"query"`
	Context  *Context `json:"context"`
	Partial  bool     `json:"partial,omitempty"`
	Notes    []string `json:"notes,omitempty"`
}
