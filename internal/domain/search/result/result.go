package result

import "time"

// SearchResult is one item retrieved from a collection. Scores are backend-native.
type SearchResult struct {
	id         string
	collection string
	rawScore   float64
	content    string
	tags       map[string]string
	numerics   map[string]float64
	timestamp  time.Time
}

// New creates a search result. A zero timestamp means the content has none.
func New(
	id, collection string, rawScore float64, content string,
	tags map[string]string, numerics map[string]float64,
	timestamp time.Time,
) SearchResult {
	return SearchResult{
		id: id, collection: collection, rawScore: rawScore, content: content,
		tags: tags, numerics: numerics, timestamp: timestamp,
	}
}

// ID returns the stable item identifier.
func (r SearchResult) ID() string { return r.id }

// Collection returns the source collection identifier.
func (r SearchResult) Collection() string { return r.collection }

// RawScore returns the backend-native relevance score.
func (r SearchResult) RawScore() float64 { return r.rawScore }

// Content returns the retrieved snippet.
func (r SearchResult) Content() string { return r.content }

// Tags returns string payload fields.
func (r SearchResult) Tags() map[string]string { return r.tags }

// Numerics returns numeric payload fields.
func (r SearchResult) Numerics() map[string]float64 { return r.numerics }

// Timestamp returns the content timestamp and whether it is known.
func (r SearchResult) Timestamp() (time.Time, bool) {
	return r.timestamp, !r.timestamp.IsZero()
}

// WithRawScore returns a copy carrying score as its backend-native score.
func (r SearchResult) WithRawScore(score float64) SearchResult {
	r.rawScore = score
	return r
}
