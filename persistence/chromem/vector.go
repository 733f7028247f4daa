package chromem

import (
	"context"

	"github.com/philippgille/chromem-go"

	"github.com/flarexio/qarelay/vector"
)

const defaultEmbeddingModel = chromem.EmbeddingModelOpenAI3Small

// NewChromemVectorDB opens an embedded chromem database. The OpenAI embedding
// model from cfg is used for every collection; question text goes through it
// both at insert and at query time.
func NewChromemVectorDB(cfg vector.Config) (vector.VectorDB, error) {
	model := defaultEmbeddingModel
	if cfg.EmbeddingModel != "" {
		model = chromem.EmbeddingModelOpenAI(cfg.EmbeddingModel)
	}

	embed := chromem.NewEmbeddingFuncOpenAI(cfg.APIKey, model)

	return NewChromemVectorDBWithEmbedding(cfg, embed)
}

// NewChromemVectorDBWithEmbedding opens an embedded chromem database with a
// caller-supplied embedding function.
func NewChromemVectorDBWithEmbedding(cfg vector.Config, embed chromem.EmbeddingFunc) (vector.VectorDB, error) {
	var db *chromem.DB
	if !cfg.Persistent {
		db = chromem.NewDB()
	} else {
		d, err := chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, err
		}

		db = d
	}

	return &chromemVectorDB{db, embed}, nil
}

type chromemVectorDB struct {
	db    *chromem.DB
	embed chromem.EmbeddingFunc
}

func (vdb *chromemVectorDB) Collection(name string) (vector.Collection, error) {
	c, err := vdb.db.GetOrCreateCollection(name, nil, vdb.embed)
	if err != nil {
		return nil, err
	}

	return &collection{c, vdb.embed}, nil
}

func (vdb *chromemVectorDB) Reset(name string) (vector.Collection, error) {
	if err := vdb.db.DeleteCollection(name); err != nil {
		return nil, err
	}

	return vdb.Collection(name)
}

type collection struct {
	collection *chromem.Collection
	embed      chromem.EmbeddingFunc
}

func (c *collection) AddDocument(ctx context.Context, doc vector.Document) error {
	document := chromem.Document{
		ID:        doc.ID,
		Metadata:  doc.Metadata,
		Embedding: doc.Embedding,
		Content:   doc.Content,
	}

	return c.collection.AddDocument(ctx, document)
}

func (c *collection) FindDocument(ctx context.Context, id string) (vector.Document, error) {
	document, err := c.collection.GetByID(ctx, id)
	if err != nil {
		return vector.Document{}, err
	}

	return vector.Document{
		ID:        document.ID,
		Metadata:  document.Metadata,
		Embedding: document.Embedding,
		Content:   document.Content,
	}, nil
}

func (c *collection) Query(ctx context.Context, query string, k int) ([]vector.Result, error) {
	count := c.collection.Count()
	if count == 0 {
		return []vector.Result{}, nil
	}

	if k > count {
		k = count
	}

	results, err := c.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, err
	}

	docs := make([]vector.Result, len(results))
	for i, result := range results {
		docs[i] = vector.Result{
			Document: vector.Document{
				ID:        result.ID,
				Metadata:  result.Metadata,
				Embedding: result.Embedding,
				Content:   result.Content,
			},
			Distance: 1 - result.Similarity,
		}
	}

	return docs, nil
}

func (c *collection) Embedding(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text)
}

func (c *collection) Count() int {
	return c.collection.Count()
}
