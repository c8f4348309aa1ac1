package query

// Embedding is a query vector tied to one variant and the model that produced it.
type Embedding struct {
	variant string
	model   string
	vector  []float32
}

// NewEmbedding creates a query embedding.
func NewEmbedding(variant, model string, vector []float32) Embedding {
	return Embedding{variant: variant, model: model, vector: vector}
}

// Variant returns the query text that was embedded.
func (e Embedding) Variant() string { return e.variant }

// Model returns the embedding model identifier.
func (e Embedding) Model() string { return e.model }

// Vector returns the embedding vector.
func (e Embedding) Vector() []float32 { return e.vector }

// Dimensions returns the vector length.
func (e Embedding) Dimensions() int { return len(e.vector) }
