package retrieval

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AlejoJamC/airweave/internal/db"
	"github.com/AlejoJamC/airweave/internal/domain"
	"github.com/AlejoJamC/airweave/internal/domain/search/filter"
	"github.com/AlejoJamC/airweave/internal/domain/search/result"
)

const contentField = "content"

// returnFields are the payload fields loaded for every hit.
var returnFields = []string{
	contentField, "title", "url",
	filter.FieldSourceName, filter.FieldEntityType, filter.FieldCreatedAt, "tenant_id",
}

// searcher is the consumer interface for vector and keyword search (ISP).
type searcher interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Repo routes collection searches to the backend each collection lives on.
type Repo struct {
	backends  map[domain.Backend]searcher
	keyPrefix string
}

// New creates a retrieval repository. keyPrefix is the redis key namespace.
func New(keyPrefix string) *Repo {
	return &Repo{backends: make(map[domain.Backend]searcher), keyPrefix: keyPrefix}
}

// WithBackend registers the searcher serving a backend.
func (r *Repo) WithBackend(b domain.Backend, s searcher) *Repo {
	r.backends[b] = s
	return r
}

// Search runs a KNN search on one collection. Every failure is a *domain.RetrievalError.
func (r *Repo) Search(
	ctx context.Context, coll domain.Collection,
	vector []float32, filters filter.Expression, k int,
) ([]result.SearchResult, error) {
	s, err := r.backend(coll)
	if err != nil {
		return nil, err
	}
	if coll.Dimensions > 0 && len(vector) != coll.Dimensions {
		return nil, &domain.RetrievalError{
			Collection: coll.ID,
			Err:        fmt.Errorf("vector has %d dimensions, collection expects %d", len(vector), coll.Dimensions),
		}
	}

	sr, err := s.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    coll.Index,
		Filters:      filters,
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, &domain.RetrievalError{Collection: coll.ID, Err: fmt.Errorf("search knn: %w", err)}
	}

	return r.parseResults(sr, coll.ID), nil
}

// SearchText runs a BM25 keyword search on one collection. Scores are
// backend-native and not comparable with KNN similarities.
func (r *Repo) SearchText(
	ctx context.Context, coll domain.Collection,
	text string, filters filter.Expression, k int,
) ([]result.SearchResult, error) {
	s, err := r.backend(coll)
	if err != nil {
		return nil, err
	}

	sr, err := s.SearchBM25(ctx, &db.TextQuery{
		IndexName:    coll.Index,
		Query:        text,
		Filters:      filters,
		TopK:         k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, &domain.RetrievalError{Collection: coll.ID, Err: fmt.Errorf("search bm25: %w", err)}
	}

	return r.parseResults(sr, coll.ID), nil
}

func (r *Repo) backend(coll domain.Collection) (searcher, error) {
	s, ok := r.backends[coll.Backend]
	if !ok {
		return nil, &domain.RetrievalError{
			Collection: coll.ID,
			Err:        fmt.Errorf("no searcher for backend %q", coll.Backend),
		}
	}
	return s, nil
}

// parseResults converts db.SearchResult into collection-tagged results.
func (r *Repo) parseResults(sr *db.SearchResult, collection string) []result.SearchResult {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	prefix := r.keyPrefix + collection + ":"
	results := make([]result.SearchResult, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := strings.TrimPrefix(entry.Key, prefix)
		results = append(results, parseEntry(id, collection, entry))
	}
	return results
}

// parseEntry splits payload fields. Every field is kept as a tag; fields that
// parse as numbers are also exposed as numerics.
func parseEntry(id, collection string, entry db.SearchEntry) result.SearchResult {
	var content string
	tags := make(map[string]string, len(entry.Fields))
	numerics := make(map[string]float64)

	for k, v := range entry.Fields {
		if k == contentField {
			content = v
			continue
		}
		tags[k] = v
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			numerics[k] = f
		}
	}

	var ts time.Time
	if sec, ok := numerics[filter.FieldCreatedAt]; ok && sec > 0 {
		ts = time.Unix(int64(sec), 0).UTC()
	} else if raw, ok := tags[filter.FieldCreatedAt]; ok {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			ts = parsed.UTC()
		}
	}

	return result.New(id, collection, entry.Score, content, tags, numerics, ts)
}
