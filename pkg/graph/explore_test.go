package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/thirai-kg/backend/pkg/schema"
	"github.com/thirai-kg/backend/pkg/store"
	"github.com/thirai-kg/backend/pkg/store/memstore"
)

func seededExplorer(t *testing.T) *Explorer {
	t.Helper()
	s := memstore.New()
	client := newFakeAIClient().
		on("extract_entities", fakeReply{text: jailerEntities}).
		on("extract_relations", fakeReply{text: jailerRelations})
	if _, err := newTestGraphClient(client, s).Ingest(context.Background(), jailerText); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return NewExplorer(NewExplorerParams{Store: s})
}

func TestExplorer_Entity(t *testing.T) {
	x := seededExplorer(t)

	hoods, err := x.Entity(context.Background(), "Superstar Rajinikanth")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hoods) != 1 || hoods[0].Anchor.Key() != "rajinikanth" {
		t.Fatalf("expected rajinikanth, got %+v", hoods)
	}
	if len(hoods[0].Neighbors) != 1 || hoods[0].Neighbors[0].Node.Key() != "jailer" {
		t.Fatalf("expected jailer as neighbour, got %+v", hoods[0].Neighbors)
	}

	hoods, err = x.Entity(context.Background(), "jail")
	if err != nil || len(hoods) != 1 || hoods[0].Anchor.Label() != schema.Movie {
		t.Fatalf("expected substring fallback to find the movie, got %+v %v", hoods, err)
	}

	if _, err := x.Entity(context.Background(), "Kamal Haasan"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExplorer_Path(t *testing.T) {
	x := seededExplorer(t)

	p, err := x.Path(context.Background(), "Rajinikanth", "Nelson")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Edges) != 2 {
		t.Fatalf("expected a two hop path, got %+v", p)
	}

	if _, err := x.Path(context.Background(), "Rajinikanth", "Vijay"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExplorer_Stats(t *testing.T) {
	x := seededExplorer(t)
	stats, err := x.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Nodes[schema.Movie] != 1 || stats.Edges[schema.Directed] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
