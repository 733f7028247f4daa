package vector

import "context"

type Config struct {
	Persistent     bool   `yaml:"persistent"`
	Path           string `yaml:"path"`
	Collection     string `yaml:"collection"`
	EmbeddingModel string `yaml:"embeddingModel"`
	APIKey         string `yaml:"-"`
}

type VectorDB interface {
	Collection(name string) (Collection, error)

	// Reset deletes every entry in the named collection and recreates it
	// empty, returning the fresh handle. Irreversible.
	Reset(name string) (Collection, error)
}

type Collection interface {
	AddDocument(ctx context.Context, doc Document) error
	FindDocument(ctx context.Context, id string) (Document, error)

	// Query returns up to k nearest documents ordered by ascending distance.
	Query(ctx context.Context, query string, k int) ([]Result, error)

	// Embedding computes the embedding for text with the collection's
	// embedding function.
	Embedding(ctx context.Context, text string) ([]float32, error)

	Count() int
}

type Document struct {
	ID        string            `json:"id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"embedding,omitempty"`
}

type Result struct {
	Document

	// Distance is 1 - cosine similarity; 0 means identical.
	Distance float32 `json:"distance"`
}
