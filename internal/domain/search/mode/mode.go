package mode

// Mode is the retrieval strategy.
type Mode string

// Retrieval strategy constants.
const (
	// Hybrid runs vector and keyword search and fuses both rankings.
	Hybrid  Mode = "hybrid"
	Neural  Mode = "neural"
	Keyword Mode = "keyword"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Hybrid || m == Neural || m == Keyword
}

// UsesVectors reports whether the strategy needs query embeddings.
func (m Mode) UsesVectors() bool { return m == Hybrid || m == Neural }

// UsesText reports whether the strategy runs keyword (BM25) search.
func (m Mode) UsesText() bool { return m == Hybrid || m == Keyword }
