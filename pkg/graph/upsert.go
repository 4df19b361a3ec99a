package graph

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/logger"
	"github.com/thirai-kg/backend/pkg/normalize"
	"github.com/thirai-kg/backend/pkg/schema"
	"github.com/thirai-kg/backend/pkg/store"
)

// Upserter is the only component that writes to the graph.
type Upserter struct {
	writer     store.Writer
	registry   *schema.Registry
	normalizer *normalize.Normalizer
}

func NewUpserter(writer store.Writer, registry *schema.Registry, normalizer *normalize.Normalizer) *Upserter {
	if registry == nil {
		registry = schema.Default()
	}
	if normalizer == nil {
		normalizer = normalize.New(normalize.Params{})
	}
	return &Upserter{writer: writer, registry: registry, normalizer: normalizer}
}

// EnsureSchema creates the per label uniqueness constraints.
func (u *Upserter) EnsureSchema(ctx context.Context) error {
	return u.writer.EnsureSchema(ctx, u.registry.Labels())
}

// Upsert merges entities, then the triples between them. Per item store
// failures are recorded in the report; an error is returned only when the
// context ends or when every write failed.
func (u *Upserter) Upsert(
	ctx context.Context,
	entities *common.EntityLists,
	triples []common.Triple,
) (*common.IngestReport, error) {
	report := &common.IngestReport{}

	pending := u.resolveEntities(entities, report)
	stored := map[store.EntityRef]bool{}
	attempted, failed := 0, 0

	for _, e := range pending {
		attempted++
		out, err := mergeWithRetry(ctx, func(ctx context.Context) (common.MergeOutcome, error) {
			return u.writer.MergeEntity(ctx, e)
		})
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			failed++
			report.Errors = append(report.Errors, itemError(entityTarget(e.Label, e.Key), err))
			continue
		}
		stored[store.EntityRef{Label: e.Label, Key: e.Key}] = true
		if out.Created {
			report.EntitiesAdded++
		} else {
			report.EntitiesMerged++
			report.Conflicts = append(report.Conflicts, conflicts(entityTarget(e.Label, e.Key), out.Before, e.Properties)...)
		}
	}

	for _, r := range u.resolveRelations(triples, stored, report) {
		attempted++
		target := relationTarget(r)
		out, err := mergeWithRetry(ctx, func(ctx context.Context) (common.MergeOutcome, error) {
			return u.writer.MergeRelation(ctx, r)
		})
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			failed++
			report.Errors = append(report.Errors, itemError(target, err))
			continue
		}
		if out.Created {
			report.RelationsAdded++
		} else {
			report.RelationsMerged++
			report.Conflicts = append(report.Conflicts, conflicts(target, out.Before, r.Properties)...)
		}
	}

	logger.Info("[Graph] upsert finished",
		"entities_added", report.EntitiesAdded,
		"entities_merged", report.EntitiesMerged,
		"relations_added", report.RelationsAdded,
		"relations_merged", report.RelationsMerged,
		"dropped", len(report.Dropped),
		"failed", failed,
	)

	if attempted > 0 && failed == attempted {
		return report, common.Errorf(common.KindQueryExecution, "upsert", "all %d graph writes failed: %s", failed, report.Errors[0].Error)
	}
	return report, nil
}

// resolveEntities derives identity keys and collapses entities that share
// one. Properties of later duplicates only fill gaps.
func (u *Upserter) resolveEntities(entities *common.EntityLists, report *common.IngestReport) []store.EntityMerge {
	var out []store.EntityMerge
	index := map[store.EntityRef]int{}

	for _, e := range entities.All() {
		if !u.registry.IsLabel(e.Type) {
			report.Dropped = append(report.Dropped, common.DropRecord{Item: e.Mention, Reason: fmt.Sprintf("unknown label %s", e.Type)})
			continue
		}
		key, err := u.normalizer.Key(e.Type, e.Mention)
		if err != nil {
			report.Dropped = append(report.Dropped, common.DropRecord{Item: e.Mention, Reason: err.Error()})
			continue
		}

		props := maps.Clone(e.Properties)
		if props == nil {
			props = map[string]any{}
		}
		delete(props, schema.KeyProperty)
		props[schema.NameProperty] = e.Mention
		if e.Type == schema.Movie {
			if _, ok := props["title"]; !ok {
				props["title"] = e.Mention
			}
		}

		ref := store.EntityRef{Label: e.Type, Key: key}
		if i, ok := index[ref]; ok {
			first := out[i].Properties
			report.Conflicts = append(report.Conflicts, conflicts(entityTarget(ref.Label, ref.Key), first, props)...)
			for k, v := range props {
				if first[k] == nil {
					first[k] = v
				}
			}
			continue
		}
		index[ref] = len(out)
		out = append(out, store.EntityMerge{Label: e.Type, Key: key, Properties: props})
	}
	return out
}

// resolveRelations maps triple mentions to stored nodes. A mention resolves
// to the label the predicate expects when the batch has such an entity,
// otherwise to any label, which then fails the pair check.
func (u *Upserter) resolveRelations(
	triples []common.Triple,
	stored map[store.EntityRef]bool,
	report *common.IngestReport,
) []store.RelationMerge {
	var out []store.RelationMerge
	index := map[string]int{}

	for _, t := range triples {
		item := fmt.Sprintf("%s -[%s]-> %s", t.Subject, t.Predicate, t.Object)
		drop := func(format string, args ...any) {
			report.Dropped = append(report.Dropped, common.DropRecord{Item: item, Reason: fmt.Sprintf(format, args...)})
		}

		rel, ok := u.registry.Relation(t.Predicate)
		if !ok {
			drop("unknown relationship type %s", t.Predicate)
			continue
		}
		src, ok := u.resolve(t.Subject, rel.Source, stored)
		if !ok {
			drop("subject %q is not a stored entity", t.Subject)
			continue
		}
		dst, ok := u.resolve(t.Object, rel.Target, stored)
		if !ok {
			drop("object %q is not a stored entity", t.Object)
			continue
		}
		if !u.registry.AllowsPair(rel.Type, src.Label, dst.Label) {
			drop("%s connects %s to %s, got %s to %s", rel.Type, rel.Source, rel.Target, src.Label, dst.Label)
			continue
		}
		if src == dst {
			drop("subject and object are the same entity")
			continue
		}

		props := maps.Clone(t.Properties)
		if props == nil {
			props = map[string]any{}
		}
		m := store.RelationMerge{
			Type:        rel.Type,
			SourceLabel: src.Label,
			SourceKey:   src.Key,
			TargetLabel: dst.Label,
			TargetKey:   dst.Key,
			Properties:  props,
		}
		id := relationTarget(m)
		if i, ok := index[id]; ok {
			first := out[i].Properties
			report.Conflicts = append(report.Conflicts, conflicts(id, first, props)...)
			for k, v := range props {
				if first[k] == nil {
					first[k] = v
				}
			}
			continue
		}
		index[id] = len(out)
		out = append(out, m)
	}
	return out
}

func (u *Upserter) resolve(mention, want string, stored map[store.EntityRef]bool) (store.EntityRef, bool) {
	labels := u.registry.Labels()
	// expected label first
	slices.SortStableFunc(labels, func(a, b string) int {
		switch {
		case a == want && b != want:
			return -1
		case b == want && a != want:
			return 1
		}
		return 0
	})
	for _, l := range labels {
		key, err := u.normalizer.Key(l, mention)
		if err != nil {
			return store.EntityRef{}, false
		}
		ref := store.EntityRef{Label: l, Key: key}
		if stored[ref] {
			return ref, true
		}
	}
	return store.EntityRef{}, false
}

// mergeWithRetry retries a merge once when the store reports a transient
// condition.
func mergeWithRetry(
	ctx context.Context,
	fn func(ctx context.Context) (common.MergeOutcome, error),
) (common.MergeOutcome, error) {
	out, err := fn(ctx)
	if err != nil && store.IsTransient(err) && ctx.Err() == nil {
		out, err = fn(ctx)
	}
	return out, err
}

// conflicts lists properties where a stored non-null value differs from the
// incoming non-null value. The stored value is kept. Display names are
// aliases of one identity and never conflict.
func conflicts(target string, before, incoming map[string]any) []common.PropertyConflict {
	var out []common.PropertyConflict
	for _, k := range slices.Sorted(maps.Keys(incoming)) {
		in := incoming[k]
		cur, ok := before[k]
		if k == schema.KeyProperty || k == schema.NameProperty || !ok || cur == nil || in == nil || sameValue(cur, in) {
			continue
		}
		out = append(out, common.PropertyConflict{Target: target, Property: k, Existing: cur, Incoming: in})
	}
	return out
}

func sameValue(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func entityTarget(label, key string) string {
	return label + ":" + key
}

func relationTarget(r store.RelationMerge) string {
	return fmt.Sprintf("%s:%s -[%s]-> %s:%s", r.SourceLabel, r.SourceKey, r.Type, r.TargetLabel, r.TargetKey)
}

func itemError(item string, err error) common.ItemError {
	kind := string(common.KindQueryExecution)
	if errors.Is(err, store.ErrEndpointMissing) {
		kind = string(common.KindValidation)
	}
	return common.ItemError{Item: item, Kind: kind, Error: err.Error()}
}
