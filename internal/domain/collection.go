package domain

// Backend names a vector-store implementation.
type Backend string

const (
	// BackendRedis is a redis/valkey FT index searched with KNN.
	BackendRedis Backend = "redis"
	// BackendPGVector is a postgres table with a pgvector column.
	BackendPGVector Backend = "pgvector"
)

// Collection is a provisioned collection as resolved at query time.
type Collection struct {
	ID             string
	Backend        Backend
	Index          string
	Dimensions     int
	EmbeddingModel string
	Sources        []string
}

// HasSource reports whether name is one of the collection's source connectors.
func (c Collection) HasSource(name string) bool {
	for _, s := range c.Sources {
		if s == name {
			return true
		}
	}
	return false
}

// Principal is the identity a query is executed on behalf of.
type Principal struct {
	ID     string
	Tenant string
}

// IsZero reports whether the principal is unset.
func (p Principal) IsZero() bool { return p.ID == "" }

// ResourceKind names what an authorization check is about.
type ResourceKind string

const (
	// ResourceCollection is a whole collection.
	ResourceCollection ResourceKind = "collection"
	// ResourceItem is a single retrieved item.
	ResourceItem ResourceKind = "item"
)

// Resource is the subject of an authorization check.
type Resource struct {
	Kind       ResourceKind
	ID         string
	Collection string
	Tenant     string // empty when the item carries no tenant
}
