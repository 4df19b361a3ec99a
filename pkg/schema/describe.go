package schema

import (
	"fmt"
	"strings"
)

// Describe renders the registry as plain text for grounding query generation.
func (r *Registry) Describe() string {
	var b strings.Builder

	b.WriteString("Node labels:\n")
	for _, n := range r.nodes {
		fmt.Fprintf(&b, "- %s: %s\n", n.Label, n.Description)
		fmt.Fprintf(&b, "  - %s (string): normalized lowercase name, unique per label\n", KeyProperty)
		fmt.Fprintf(&b, "  - %s (string): name as written in the source\n", NameProperty)
		for _, p := range n.Properties {
			fmt.Fprintf(&b, "  - %s (%s): %s\n", p.Name, p.Kind, p.Description)
		}
	}

	b.WriteString("\nRelationships (direction matters):\n")
	for _, rel := range r.relations {
		fmt.Fprintf(&b, "- %s: %s\n", rel.Pattern(), rel.Description)
		for _, p := range rel.Properties {
			fmt.Fprintf(&b, "  - %s (%s): %s\n", p.Name, p.Kind, p.Description)
		}
	}

	return b.String()
}

// DescribeExtraction renders the entity vocabulary for extraction prompts.
func (r *Registry) DescribeExtraction() string {
	var b strings.Builder
	for _, n := range r.nodes {
		fmt.Fprintf(&b, "- %s: %s", n.Label, n.Description)
		if len(n.Properties) > 0 {
			names := make([]string, len(n.Properties))
			for i, p := range n.Properties {
				names[i] = fmt.Sprintf("%s (%s)", p.Name, p.Kind)
			}
			fmt.Fprintf(&b, "; properties: %s", strings.Join(names, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// DescribeRelations renders the relation vocabulary for extraction prompts.
func (r *Registry) DescribeRelations() string {
	var b strings.Builder
	for _, rel := range r.relations {
		fmt.Fprintf(&b, "- %s: %s -> %s, %s", rel.Type, rel.Source, rel.Target, rel.Description)
		if len(rel.Properties) > 0 {
			names := make([]string, len(rel.Properties))
			for i, p := range rel.Properties {
				names[i] = fmt.Sprintf("%s (%s)", p.Name, p.Kind)
			}
			fmt.Fprintf(&b, "; properties: %s", strings.Join(names, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
