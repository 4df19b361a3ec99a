package graph

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Ingest extracts facts from text and merges them into the graph.
// Re-ingesting the same text adds nothing.
func (g *GraphClient) Ingest(ctx context.Context, text string) (*common.IngestReport, error) {
	if strings.TrimSpace(text) == "" {
		return nil, common.Errorf(common.KindValidation, "ingest", "text is empty")
	}

	units, err := splitIntoUnits(text, g.tokenEncoder, g.maxUnitTokens)
	if err != nil {
		logger.Warn("[Graph] failed to split text, extracting it whole", "err", err)
		units = []textUnit{{text: text}}
	}
	if len(units) == 0 {
		units = []textUnit{{text: text}}
	}

	entities, warnings, err := g.extractEntities(ctx, units)
	if err != nil {
		return nil, err
	}
	triples, relWarnings, err := g.extractRelations(ctx, units, entities)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, relWarnings...)

	report, err := g.upserter.Upsert(ctx, entities, triples)
	if report != nil {
		report.Warnings = append(warnings, report.Warnings...)
	}
	return report, err
}

// extractEntities runs entity extraction on every unit and merges the
// per unit lists in unit order.
func (g *GraphClient) extractEntities(ctx context.Context, units []textUnit) (*common.EntityLists, []string, error) {
	lists := make([]*common.EntityLists, len(units))
	warns := make([][]string, len(units))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallelAiRequests)
	for i, u := range units {
		eg.Go(func() error {
			l, w, err := g.extractor.ExtractEntities(gCtx, u.text)
			if err != nil {
				return err
			}
			lists[i], warns[i] = l, w
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	merged := common.NewEntityLists()
	var warnings []string
	seen := map[string]bool{}
	for i, l := range lists {
		warnings = append(warnings, warns[i]...)
		for _, e := range l.All() {
			id := e.Type + "\x00" + strings.ToLower(e.Mention)
			if seen[id] {
				continue
			}
			seen[id] = true
			merged.Add(e)
		}
	}
	return merged, warnings, nil
}

// extractRelations asks every unit for relations among all entities of the
// text, so a unit may relate entities first named in another unit.
func (g *GraphClient) extractRelations(
	ctx context.Context,
	units []textUnit,
	entities *common.EntityLists,
) ([]common.Triple, []string, error) {
	if entities.Len() < 2 {
		return nil, nil, nil
	}

	var mu sync.Mutex
	perUnit := make([][]common.Triple, len(units))
	var warnings []string

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallelAiRequests)
	for i, u := range units {
		eg.Go(func() error {
			t, w, err := g.extractor.ExtractRelations(gCtx, u.text, entities)
			if errors.Is(err, common.ErrSchemaViolation) {
				// the entities of the unit are still usable
				logger.Warn("[Graph] no relation fits the schema", "unit", i, "err", err)
				w = append(w, err.Error())
				err = nil
			}
			if err != nil {
				return err
			}
			perUnit[i] = t
			mu.Lock()
			warnings = append(warnings, w...)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	var triples []common.Triple
	for _, t := range perUnit {
		triples = append(triples, t...)
	}
	return triples, warnings, nil
}

// IngestBatch ingests texts with bounded parallelism. Every text gets its
// own outcome; one failing text does not stop the others. An error is only
// returned when ctx ends.
func (g *GraphClient) IngestBatch(ctx context.Context, texts []string) (*common.BatchReport, error) {
	batch := &common.BatchReport{Items: make([]common.BatchItem, len(texts))}

	var eg errgroup.Group
	eg.SetLimit(g.parallelTexts)
	for i, text := range texts {
		eg.Go(func() error {
			item := common.BatchItem{Index: i}
			if ctx.Err() != nil {
				item.Kind, item.Error = common.Describe(ctx.Err()), ctx.Err().Error()
				batch.Items[i] = item
				return nil
			}
			report, err := g.Ingest(ctx, text)
			item.Report = report
			if err != nil {
				item.Kind, item.Error = common.Describe(err), err.Error()
				logger.Warn("[Graph] batch item failed", "index", i, "kind", item.Kind, "err", err)
			} else {
				item.OK = true
			}
			batch.Items[i] = item
			return nil
		})
	}
	_ = eg.Wait()

	for _, item := range batch.Items {
		if item.OK {
			batch.Succeeded++
		} else {
			batch.Failed++
		}
		if item.Report != nil {
			batch.Totals.Add(item.Report.UpsertReport)
		}
	}

	logger.Info("[Graph] batch finished", "texts", len(texts), "succeeded", batch.Succeeded, "failed", batch.Failed)
	return batch, ctx.Err()
}
