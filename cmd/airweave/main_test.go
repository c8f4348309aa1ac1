package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestSearchCmd_PrintsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`{"query_id":"q","status":"success","expanded_queries":[],
			"results":[{"id":"d1","collection":"docs","score":0.91,"content":"renewal terms\nmore"}],
			"degraded":[{"stage":"federated_search","target":"tickets","reason":"timeout"}]}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"search", "renewals", "--url", srv.URL, "--api-key", "k", "-c", "docs"})

	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := out.String()
	for _, want := range []string{"docs/d1 (0.910)", "renewal terms", "degraded: federated_search/tickets: timeout"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestSearchCmd_SendsStrategy(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		_, _ = w.Write([]byte(`{"query_id":"q","status":"no_results","results":[],"expanded_queries":[]}`))
	}))
	defer srv.Close()

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"search", "renewals", "--url", srv.URL, "--strategy", "keyword"})

	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(body, `"retrieval_strategy":"keyword"`) {
		t.Errorf("request body missing strategy: %s", body)
	}
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"search"})

	if err := root.Execute(); err == nil {
		t.Fatal("expected error without query")
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("héllo world\nsecond", 5); got != "héllo…" {
		t.Errorf("unexpected %q", got)
	}
}

func TestJSONRecoverer(t *testing.T) {
	h := jsonRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/search", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("got %d, want 500", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"internal_error"`) {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
}
