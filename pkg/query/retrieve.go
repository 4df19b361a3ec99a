package query

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/logger"
	"github.com/thirai-kg/backend/pkg/store"
)

const retrieveOp = "retrieve"

// Retriever executes translated queries and gathers the answer context.
type Retriever struct {
	translator      *Translator
	reader          store.Reader
	maxRows         int
	expansionDegree int
	maxExpandNodes  int
}

type NewRetrieverParams struct {
	Translator *Translator
	Reader     store.Reader
	// ExpansionDegree caps neighbours per expanded node, default 15.
	ExpansionDegree int
	// MaxExpandNodes caps how many result nodes are expanded, default 10.
	MaxExpandNodes int
}

func NewRetriever(params NewRetrieverParams) *Retriever {
	r := &Retriever{
		translator:      params.Translator,
		reader:          params.Reader,
		maxRows:         params.Translator.maxRows,
		expansionDegree: params.ExpansionDegree,
		maxExpandNodes:  params.MaxExpandNodes,
	}
	if r.expansionDegree <= 0 {
		r.expansionDegree = 15
	}
	if r.maxExpandNodes <= 0 {
		r.maxExpandNodes = 10
	}
	return r
}

// Retrieve translates question and runs the query. An empty result is not
// an error.
func (r *Retriever) Retrieve(ctx context.Context, question string) (*common.Context, error) {
	return r.retrieve(ctx, question, false, nil)
}

// RetrieveWithExpansion is Retrieve plus the one-hop neighbourhood of the
// nodes found. Expansion failures become context notes.
func (r *Retriever) RetrieveWithExpansion(ctx context.Context, question string) (*common.Context, error) {
	return r.retrieve(ctx, question, true, nil)
}

func (r *Retriever) retrieve(ctx context.Context, question string, expand bool, tracer Tracer) (*common.Context, error) {
	q, err := r.translator.translate(ctx, question, tracer)
	if err != nil {
		return nil, err
	}

	rows, err := r.execute(ctx, q.Text)
	if err != nil {
		return nil, err
	}

	c := &common.Context{
		Question:    question,
		Query:       q.Text,
		MainResults: rows,
		Notes:       q.Warnings,
	}
	if len(rows) >= r.maxRows {
		c.Notes = append(c.Notes, fmt.Sprintf("results limited to %d rows", r.maxRows))
	}

	nodes := collectNodes(rows)
	ids := make([]string, 0, len(nodes))
	var labels []string
	for _, n := range nodes {
		ids = append(ids, n.ElementID)
		labels = append(labels, n.Labels...)
	}
	RecordQueriedNodeIDs(tracer, ids...)
	RecordQueriedLabels(tracer, labels...)

	if expand {
		r.expand(ctx, c, nodes, tracer)
	}

	logger.Debug("[Query] retrieved context", "rows", len(rows), "related", len(c.Related))
	return c, nil
}

// execute runs query once more when the store reports a transient failure.
func (r *Retriever) execute(ctx context.Context, query string) ([]common.Row, error) {
	rows, err := r.reader.Read(ctx, query, nil)
	if err != nil && store.IsTransient(err) && ctx.Err() == nil {
		logger.Warn("[Query] transient store failure, retrying", "err", err)
		rows, err = r.reader.Read(ctx, query, nil)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, common.Wrap(common.KindQueryExecution, retrieveOp, err)
	}
	if rows == nil {
		rows = []common.Row{}
	}
	return rows, nil
}

func (r *Retriever) expand(ctx context.Context, c *common.Context, nodes []common.Node, tracer Tracer) {
	if len(nodes) > r.maxExpandNodes {
		c.Notes = append(c.Notes, fmt.Sprintf("expanded the first %d of %d result nodes", r.maxExpandNodes, len(nodes)))
		nodes = nodes[:r.maxExpandNodes]
	}

	var expanded []string
	for _, n := range nodes {
		nbrs, err := r.reader.Neighbors(ctx, n.ElementID, r.expansionDegree)
		if err != nil {
			if ctx.Err() != nil {
				c.Notes = append(c.Notes, "expansion stopped: "+ctx.Err().Error())
				break
			}
			c.Notes = append(c.Notes, fmt.Sprintf("could not expand %s: %v", n.Key(), err))
			continue
		}
		expanded = append(expanded, n.ElementID)
		if len(nbrs) == 0 {
			continue
		}
		c.Related = append(c.Related, common.Neighborhood{Anchor: n, Neighbors: nbrs})
	}
	RecordExpandedNodeIDs(tracer, expanded...)
}

// collectNodes returns the distinct nodes appearing in rows, in row order.
func collectNodes(rows []common.Row) []common.Node {
	var out []common.Node
	seen := map[string]bool{}
	var walk func(v any)
	walk = func(v any) {
		switch x := v.(type) {
		case common.Node:
			if x.ElementID != "" && !seen[x.ElementID] {
				seen[x.ElementID] = true
				out = append(out, x)
			}
		case common.Path:
			for _, n := range x.Nodes {
				walk(n)
			}
		case []any:
			for _, e := range x {
				walk(e)
			}
		case map[string]any:
			for _, k := range slices.Sorted(maps.Keys(x)) {
				walk(x[k])
			}
		}
	}
	for _, row := range rows {
		for _, k := range sortedKeys(row) {
			walk(row[k])
		}
	}
	return out
}

func sortedKeys(row common.Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
