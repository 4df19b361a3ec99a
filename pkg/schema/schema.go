// Package schema holds the closed vocabulary of the Tamil cinema graph: node
// labels, relation types with their fixed endpoint labels, and the properties
// each of them may carry.
package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	Person       = "Person"
	Movie        = "Movie"
	Organization = "Organization"
	Location     = "Location"

	ActedIn    = "ACTED_IN"
	Directed   = "DIRECTED"
	Produced   = "PRODUCED"
	BornIn     = "BORN_IN"
	ReleasedIn = "RELEASED_IN"

	// KeyProperty is the derived identity property present on every node.
	KeyProperty = "identity_key"
	// NameProperty is the human readable name present on every node.
	NameProperty = "display_name"
)

// ValueKind is the declared type of a property.
type ValueKind int

const (
	String ValueKind = iota
	Int
)

func (k ValueKind) String() string {
	if k == Int {
		return "integer"
	}
	return "string"
}

// Property declares an allowed property.
type Property struct {
	Name        string
	Kind        ValueKind
	Description string
}

// NodeType declares a node label.
type NodeType struct {
	Label       string
	Description string
	Properties  []Property
}

// RelationType declares a relation type and its endpoint labels.
type RelationType struct {
	Type        string
	Source      string
	Target      string
	Description string
	Properties  []Property
}

// Pattern renders the relation as a Cypher pattern.
func (r RelationType) Pattern() string {
	return fmt.Sprintf("(:%s)-[:%s]->(:%s)", r.Source, r.Type, r.Target)
}

// KV is a raw key/value pair as produced by extraction.
type KV struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Registry is an immutable vocabulary. It is safe for concurrent use.
type Registry struct {
	nodes     []NodeType
	relations []RelationType

	nodeIdx map[string]int
	relIdx  map[string]int
}

// New builds a registry from node and relation declarations.
func New(nodes []NodeType, relations []RelationType) (*Registry, error) {
	r := &Registry{
		nodes:     nodes,
		relations: relations,
		nodeIdx:   make(map[string]int, len(nodes)),
		relIdx:    make(map[string]int, len(relations)),
	}
	for i, n := range nodes {
		if _, dup := r.nodeIdx[n.Label]; dup {
			return nil, fmt.Errorf("duplicate label %s", n.Label)
		}
		r.nodeIdx[n.Label] = i
	}
	for i, rel := range relations {
		if _, dup := r.relIdx[rel.Type]; dup {
			return nil, fmt.Errorf("duplicate relation type %s", rel.Type)
		}
		if !r.IsLabel(rel.Source) || !r.IsLabel(rel.Target) {
			return nil, fmt.Errorf("relation %s references unknown label", rel.Type)
		}
		r.relIdx[rel.Type] = i
	}
	return r, nil
}

var defaultRegistry = mustDefault()

// Default returns the Tamil cinema vocabulary.
func Default() *Registry {
	return defaultRegistry
}

func mustDefault() *Registry {
	r, err := New(
		[]NodeType{
			{
				Label:       Person,
				Description: "actor, director, producer, music director, writer or any other film personality",
				Properties: []Property{
					{Name: "role", Kind: String, Description: "primary role such as Actor, Director, Producer, Music Director"},
					{Name: "birth_year", Kind: Int, Description: "four digit year of birth"},
				},
			},
			{
				Label:       Movie,
				Description: "a feature film",
				Properties: []Property{
					{Name: "title", Kind: String, Description: "release title"},
					{Name: "release_year", Kind: Int, Description: "four digit year of release"},
					{Name: "genre", Kind: String, Description: "main genre"},
				},
			},
			{
				Label:       Organization,
				Description: "production house, distributor or studio",
				Properties: []Property{
					{Name: "org_type", Kind: String, Description: "production house, distributor, studio"},
				},
			},
			{
				Label:       Location,
				Description: "city, state or country",
				Properties: []Property{
					{Name: "location_type", Kind: String, Description: "city, state, country"},
				},
			},
		},
		[]RelationType{
			{
				Type: ActedIn, Source: Person, Target: Movie,
				Description: "the person acted in the movie",
				Properties:  []Property{{Name: "character", Kind: String, Description: "character name played"}},
			},
			{Type: Directed, Source: Person, Target: Movie, Description: "the person directed the movie"},
			{Type: Produced, Source: Organization, Target: Movie, Description: "the organization produced the movie"},
			{Type: BornIn, Source: Person, Target: Location, Description: "the person was born in the location"},
			{
				Type: ReleasedIn, Source: Movie, Target: Location,
				Description: "the movie was released in the location",
				Properties:  []Property{{Name: "year", Kind: Int, Description: "year of that release"}},
			},
		},
	)
	if err != nil {
		panic(err)
	}
	return r
}

// Labels returns all node labels in declaration order.
func (r *Registry) Labels() []string {
	out := make([]string, len(r.nodes))
	for i, n := range r.nodes {
		out[i] = n.Label
	}
	return out
}

// RelationTypes returns all relation types in declaration order.
func (r *Registry) RelationTypes() []string {
	out := make([]string, len(r.relations))
	for i, rel := range r.relations {
		out[i] = rel.Type
	}
	return out
}

// IsLabel reports whether label is a known node label.
func (r *Registry) IsLabel(label string) bool {
	_, ok := r.nodeIdx[label]
	return ok
}

// Node returns the declaration of label.
func (r *Registry) Node(label string) (NodeType, bool) {
	i, ok := r.nodeIdx[label]
	if !ok {
		return NodeType{}, false
	}
	return r.nodes[i], true
}

// Relation returns the declaration of a relation type.
func (r *Registry) Relation(relType string) (RelationType, bool) {
	i, ok := r.relIdx[relType]
	if !ok {
		return RelationType{}, false
	}
	return r.relations[i], true
}

// AllowsPair reports whether relType may connect a source of label src to a
// target of label dst.
func (r *Registry) AllowsPair(relType, src, dst string) bool {
	rel, ok := r.Relation(relType)
	return ok && rel.Source == src && rel.Target == dst
}

// CanonicalLabel maps a loosely written label ("person", " MOVIE ") to its
// declared form.
func (r *Registry) CanonicalLabel(raw string) (string, bool) {
	want := squash(raw)
	for _, n := range r.nodes {
		if squash(n.Label) == want {
			return n.Label, true
		}
	}
	return "", false
}

// CanonicalRelation maps a loosely written relation type ("acted in",
// "Acted-In") to its declared form.
func (r *Registry) CanonicalRelation(raw string) (string, bool) {
	want := squash(raw)
	for _, rel := range r.relations {
		if squash(rel.Type) == want {
			return rel.Type, true
		}
	}
	return "", false
}

func squash(s string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(s) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// CoerceProperties filters raw extracted properties down to the ones declared
// for label and converts them to their declared kind. Unknown keys and values
// that do not convert are reported as warnings. display_name and identity_key
// are never taken from raw input.
func (r *Registry) CoerceProperties(label string, raw []KV) (map[string]any, []string) {
	n, ok := r.Node(label)
	if !ok {
		return nil, []string{fmt.Sprintf("unknown label %s", label)}
	}
	return coerce(label, n.Properties, raw)
}

// CoerceRelationProperties is CoerceProperties for relation types.
func (r *Registry) CoerceRelationProperties(relType string, raw []KV) (map[string]any, []string) {
	rel, ok := r.Relation(relType)
	if !ok {
		return nil, []string{fmt.Sprintf("unknown relation type %s", relType)}
	}
	return coerce(relType, rel.Properties, raw)
}

func coerce(owner string, declared []Property, raw []KV) (map[string]any, []string) {
	out := map[string]any{}
	var warnings []string
	for _, kv := range raw {
		key := strings.ToLower(strings.TrimSpace(kv.Key))
		val := strings.TrimSpace(kv.Value)
		if key == "" || val == "" {
			continue
		}
		var prop *Property
		for i := range declared {
			if declared[i].Name == key {
				prop = &declared[i]
				break
			}
		}
		if prop == nil {
			warnings = append(warnings, fmt.Sprintf("%s: dropped unknown property %q", owner, key))
			continue
		}
		switch prop.Kind {
		case Int:
			n, err := parseInt(val)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("%s: dropped %s=%q, not an integer", owner, key, val))
				continue
			}
			out[key] = n
		default:
			out[key] = val
		}
	}
	return out, warnings
}

// parseInt accepts plain integers and float renderings of integers ("2023.0").
func parseInt(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("not integral: %s", s)
	}
	return int64(f), nil
}

// PropertyNames returns the sorted property names allowed on label,
// including display_name and identity_key.
func (r *Registry) PropertyNames(label string) []string {
	n, ok := r.Node(label)
	if !ok {
		return nil
	}
	names := []string{KeyProperty, NameProperty}
	for _, p := range n.Properties {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}
