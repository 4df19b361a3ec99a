package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/thirai-kg/backend/pkg/loader"
)

const articleHTML = `<!DOCTYPE html>
<html><head><title>Jailer (2023 film)</title></head>
<body>
<nav><a href="/">Home</a> | <a href="/films">Films</a></nav>
<article>
<h1>Jailer</h1>
<p>Jailer is a 2023 Indian Tamil-language action comedy film written and directed by Nelson Dilipkumar and produced by Sun Pictures.</p>
<p>The film stars Rajinikanth as Muthuvel Pandian, a retired jailer who goes on a manhunt to find his son's killers.</p>
<p>Principal photography began in August 2022 in Chennai and the film was released on 10 August 2023 to positive reviews.</p>
</article>
<footer>Copyright notice</footer>
</body></html>`

func TestWebTextLoader_GetText(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/jailer":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(articleHTML))
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("Vikram is a 2022 film directed by Lokesh Kanagaraj."))
		case "/image":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := NewWebTextLoader(WithHTTPClient(srv.Client()))
	ctx := context.Background()

	text, err := l.GetText(ctx, loader.Source{Kind: loader.SourceURL, Ref: srv.URL + "/jailer"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "Nelson Dilipkumar") || strings.Contains(text, "<p>") {
		t.Fatalf("unexpected article text %q", text)
	}

	if _, err := l.GetText(ctx, loader.Source{Kind: loader.SourceURL, Ref: srv.URL + "/jailer"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected the second read to be cached, got %d requests", hits.Load())
	}

	text, err = l.GetText(ctx, loader.Source{Kind: loader.SourceURL, Ref: srv.URL + "/plain"})
	if err != nil || !strings.Contains(text, "Lokesh Kanagaraj") {
		t.Fatalf("plain text: got %q, %v", text, err)
	}

	for _, path := range []string{"/image", "/missing"} {
		if _, err := l.GetText(ctx, loader.Source{Kind: loader.SourceURL, Ref: srv.URL + path}); err == nil {
			t.Errorf("expected an error for %s", path)
		}
	}
}

func TestWebTextLoader_RejectsNonHTTP(t *testing.T) {
	l := NewWebTextLoader()
	for _, ref := range []string{"file:///etc/passwd", "not a url", ""} {
		if _, err := l.GetText(context.Background(), loader.Source{Kind: loader.SourceURL, Ref: ref}); err == nil {
			t.Errorf("expected an error for %q", ref)
		}
	}
}

func TestWebTextLoader_ClassifiesFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/busy":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/throttled":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			http.NotFound(w, r)
		}
	}))
	l := NewWebTextLoader(WithHTTPClient(srv.Client()))
	ctx := context.Background()

	tests := []struct {
		ref       string
		transient bool
	}{
		{srv.URL + "/busy", true},
		{srv.URL + "/throttled", true},
		{srv.URL + "/missing", false},
	}
	for _, tt := range tests {
		_, err := l.GetText(ctx, loader.Source{Kind: loader.SourceURL, Ref: tt.ref})
		if err == nil || loader.IsTransient(err) != tt.transient {
			t.Fatalf("%s: got %v, want transient=%v", tt.ref, err, tt.transient)
		}
	}

	// nothing listens once the server is closed
	down := srv.URL + "/busy"
	srv.Close()
	l = NewWebTextLoader()
	if _, err := l.GetText(ctx, loader.Source{Kind: loader.SourceURL, Ref: down}); !loader.IsTransient(err) {
		t.Fatalf("expected a connection failure to be transient, got %v", err)
	}
}
