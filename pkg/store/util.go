package store

import "slices"

// DedupeStrings drops empty values and repeats, keeping first-seen order.
func DedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// DedupeRefs drops refs without a key and repeats, keeping first-seen order.
func DedupeRefs(in []EntityRef) []EntityRef {
	out := make([]EntityRef, 0, len(in))
	for _, r := range in {
		if r.Key == "" || r.Label == "" || slices.Contains(out, r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// RefParams converts refs into a list of maps usable as a query parameter.
func RefParams(refs []EntityRef) []any {
	out := make([]any, len(refs))
	for i, r := range refs {
		out[i] = map[string]any{"label": r.Label, "key": r.Key}
	}
	return out
}
