package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/AlejoJamC/airweave/internal/db"
	"github.com/AlejoJamC/airweave/internal/domain/search/filter"
)

// Config holds pgvector connection parameters.
type Config struct {
	DSN      string
	MaxConns int32
}

// querier is the subset of pgxpool.Pool used by the store.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Store searches pgvector tables laid out as (id text, content text, payload jsonb, embedding vector).
type Store struct {
	pool  querier
	close func()
}

// NewStore opens a pgx pool.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	return &Store{pool: pool, close: pool.Close}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// SearchKNN ranks rows of q.IndexName by cosine similarity to q.Vector.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	sql, args := buildQuery(q.IndexName, q.Filters, q.K)
	args[0] = pgvector.NewVector(q.Vector)

	return s.query(ctx, db.OpPGSearch, sql, args)
}

// SearchBM25 ranks rows of q.IndexName by full-text relevance (ts_rank) to q.Query.
func (s *Store) SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("table name is required")
	}
	terms := orTerms(q.Query)
	if terms == "" {
		return nil, fmt.Errorf("query is required")
	}
	if q.TopK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}

	sql, args := buildTextQuery(q.IndexName, q.Filters, q.TopK)
	args[0] = terms

	return s.query(ctx, db.OpPGText, sql, args)
}

// query scans (id, content, payload, score) rows into search entries.
func (s *Store) query(ctx context.Context, op, sql string, args []any) (*db.SearchResult, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, &db.Error{Op: op, Err: err}
	}
	defer rows.Close()

	var entries []db.SearchEntry
	for rows.Next() {
		var (
			id, content string
			payload     []byte
			score       float64
		)
		if err := rows.Scan(&id, &content, &payload, &score); err != nil {
			return nil, &db.Error{Op: op, Err: err}
		}
		fields, err := flattenPayload(payload)
		if err != nil {
			return nil, fmt.Errorf("decode payload of %s: %w", id, err)
		}
		fields["content"] = content
		entries = append(entries, db.SearchEntry{Key: id, Score: max(0, score), Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: op, Err: err}
	}

	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

// buildQuery renders the KNN statement. args[0] is reserved for the query vector.
func buildQuery(table string, expr filter.Expression, k int) (string, []any) {
	b := &whereBuilder{args: []any{nil}}
	where := b.expression(expr)

	var sb strings.Builder
	sb.WriteString("SELECT id, content, payload, 1 - (embedding <=> $1) AS similarity FROM ")
	sb.WriteString(pgx.Identifier{table}.Sanitize())
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	b.args = append(b.args, k)
	sb.WriteString(" ORDER BY embedding <=> $1 LIMIT $")
	sb.WriteString(strconv.Itoa(len(b.args)))

	return sb.String(), b.args
}

// buildTextQuery renders the full-text statement. args[0] is reserved for the tsquery text.
func buildTextQuery(table string, expr filter.Expression, k int) (string, []any) {
	b := &whereBuilder{args: []any{nil}}
	where := b.expression(expr)

	var sb strings.Builder
	sb.WriteString("SELECT id, content, payload, ts_rank(to_tsvector('simple', content), to_tsquery('simple', $1)) AS rank FROM ")
	sb.WriteString(pgx.Identifier{table}.Sanitize())
	sb.WriteString(" WHERE to_tsvector('simple', content) @@ to_tsquery('simple', $1)")
	if where != "" {
		sb.WriteString(" AND ")
		sb.WriteString(where)
	}
	b.args = append(b.args, k)
	sb.WriteString(" ORDER BY rank DESC LIMIT $")
	sb.WriteString(strconv.Itoa(len(b.args)))

	return sb.String(), b.args
}

// orTerms turns free text into an OR tsquery of its words. Characters with
// tsquery meaning are dropped.
func orTerms(text string) string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, " | ")
}

type whereBuilder struct {
	args []any
}

func (b *whereBuilder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *whereBuilder) expression(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}
	var parts []string
	for _, c := range expr.Must() {
		parts = append(parts, b.condition(c))
	}
	if len(expr.Should()) > 0 {
		should := make([]string, 0, len(expr.Should()))
		for _, c := range expr.Should() {
			should = append(should, b.condition(c))
		}
		parts = append(parts, "("+strings.Join(should, " OR ")+")")
	}
	for _, c := range expr.MustNot() {
		parts = append(parts, "NOT "+b.condition(c))
	}
	return strings.Join(parts, " AND ")
}

func (b *whereBuilder) condition(c filter.Condition) string {
	key := b.bind(c.Key())
	if c.IsMatch() {
		values := c.Values()
		if len(values) == 1 {
			return fmt.Sprintf("(payload->>%s = %s)", key, b.bind(values[0]))
		}
		return fmt.Sprintf("(payload->>%s = ANY(%s))", key, b.bind(values))
	}

	r := c.Range()
	field := fmt.Sprintf("(payload->>%s)::double precision", key)
	var bounds []string
	if r.GT() != nil {
		bounds = append(bounds, field+" > "+b.bind(*r.GT()))
	} else if r.GTE() != nil {
		bounds = append(bounds, field+" >= "+b.bind(*r.GTE()))
	}
	if r.LT() != nil {
		bounds = append(bounds, field+" < "+b.bind(*r.LT()))
	} else if r.LTE() != nil {
		bounds = append(bounds, field+" <= "+b.bind(*r.LTE()))
	}
	return "(" + strings.Join(bounds, " AND ") + ")"
}

// flattenPayload converts top-level jsonb fields to strings; nested values stay JSON-encoded.
func flattenPayload(raw []byte) (map[string]string, error) {
	fields := make(map[string]string)
	if len(raw) == 0 {
		return fields, nil
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	for k, v := range payload {
		switch val := v.(type) {
		case nil:
		case string:
			fields[k] = val
		case float64:
			fields[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			fields[k] = strconv.FormatBool(val)
		default:
			enc, err := json.Marshal(val)
			if err != nil {
				return nil, err
			}
			fields[k] = string(enc)
		}
	}
	return fields, nil
}
