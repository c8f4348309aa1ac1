package query

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/AlejoJamC/airweave/internal/domain"
	"github.com/AlejoJamC/airweave/internal/domain/search/mode"
)

func validParams() Params {
	return Params{
		ID:          "q-1",
		Text:        "  contract renewals next quarter ",
		Principal:   domain.Principal{ID: "alice", Tenant: "acme"},
		Collections: []string{"crm", "docs", "crm"},
		Options:     Options{TopK: 10, MaxExpansions: 4},
	}
}

func TestNew_Valid(t *testing.T) {
	q, err := New(validParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Text() != "contract renewals next quarter" {
		t.Errorf("Text() = %q", q.Text())
	}
	if got := q.Collections(); len(got) != 2 || got[0] != "crm" || got[1] != "docs" {
		t.Errorf("Collections() = %v", got)
	}
	if q.Limit() != 10 {
		t.Errorf("Limit() = %d, want TopK default 10", q.Limit())
	}
	if q.ResponseType() != ResponseRaw {
		t.Errorf("ResponseType() = %q", q.ResponseType())
	}
}

func TestNew_LimitKeepsTopK(t *testing.T) {
	p := validParams()
	p.Options.TopK = 50
	p.Limit = 10
	q, err := New(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Limit() != 10 {
		t.Errorf("Limit() = %d, want 10", q.Limit())
	}
	if q.Options().TopK != 50 {
		t.Errorf("TopK = %d, want explicit 50", q.Options().TopK)
	}
}

func TestNew_LimitRaisesTopK(t *testing.T) {
	p := validParams()
	p.Limit = 25
	q, err := New(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Options().TopK != 25 {
		t.Errorf("TopK = %d, want 25 so a full page can be served", q.Options().TopK)
	}
}

func TestNew_Strategy(t *testing.T) {
	q, err := New(validParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Options().Strategy != mode.Neural {
		t.Errorf("Strategy = %q, want neural default", q.Options().Strategy)
	}

	p := validParams()
	p.Options.Strategy = mode.Keyword
	if q, err = New(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Options().Strategy != mode.Keyword {
		t.Errorf("Strategy = %q, want keyword", q.Options().Strategy)
	}
}

func TestNew_Defaults(t *testing.T) {
	p := validParams()
	p.Options = Options{}
	q, err := New(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Limit() != DefaultLimit {
		t.Errorf("Limit() = %d, want %d", q.Limit(), DefaultLimit)
	}
	if q.Options().MaxExpansions != 1 {
		t.Errorf("MaxExpansions = %d, want 1", q.Options().MaxExpansions)
	}
}

func TestNew_Completion(t *testing.T) {
	p := validParams()
	p.Options.GenerateAnswer = true
	q, err := New(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.ResponseType() != ResponseCompletion {
		t.Errorf("ResponseType() = %q", q.ResponseType())
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		want   string
	}{
		{"empty text", func(p *Params) { p.Text = "   " }, "query is required"},
		{"too long", func(p *Params) { p.Text = strings.Repeat("a", MaxQueryLength+1) }, "too long"},
		{"no principal", func(p *Params) { p.Principal = domain.Principal{} }, "principal"},
		{"no collections", func(p *Params) { p.Collections = nil }, "at least one collection"},
		{"empty collection", func(p *Params) { p.Collections = []string{""} }, "empty collection"},
		{"negative offset", func(p *Params) { p.Offset = -1 }, "offset"},
		{"threshold", func(p *Params) { p.ScoreThreshold = 1.5 }, "score_threshold"},
		{"halflife", func(p *Params) { p.Options.TemporalDecayHalflife = -time.Hour }, "halflife"},
		{"strategy", func(p *Params) { p.Options.Strategy = "semantic" }, "retrieval_strategy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			_, err := New(p)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, domain.ErrInvalidQuery) {
				t.Errorf("expected ErrInvalidQuery, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestNewExpanded_AlwaysIncludesOriginal(t *testing.T) {
	tests := []struct {
		name         string
		alternatives []string
		limit        int
		want         []string
	}{
		{"no alternatives", nil, 4, []string{"renewals"}},
		{"blank alternatives", []string{"", "  "}, 4, []string{"renewals"}},
		{"duplicate of original", []string{"RENEWALS", "contract renewals"}, 4, []string{"renewals", "contract renewals"}},
		{"capped", []string{"a", "b", "c", "d"}, 3, []string{"renewals", "a", "b"}},
		{"limit below one", []string{"a"}, 0, []string{"renewals"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExpanded("renewals", tt.alternatives, tt.limit)
			got := e.Variants()
			if e.Original() != "renewals" {
				t.Errorf("Original() = %q", e.Original())
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Variants() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Variants() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestExpanded_Alternatives(t *testing.T) {
	e := NewExpanded("q", []string{"a", "b"}, 4)
	if got := e.Alternatives(); len(got) != 2 || got[0] != "a" {
		t.Errorf("Alternatives() = %v", got)
	}
	if NewExpanded("q", nil, 4).Alternatives() != nil {
		t.Error("expected nil alternatives")
	}
}

func TestEmbedding(t *testing.T) {
	e := NewEmbedding("q", "small", []float32{1, 2, 3})
	if e.Variant() != "q" || e.Model() != "small" || e.Dimensions() != 3 {
		t.Errorf("unexpected embedding %+v", e)
	}
}
