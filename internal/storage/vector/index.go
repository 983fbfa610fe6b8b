package vector

import (
	"context"
	"errors"
	"fmt"
	"maps"

	chromem "github.com/philippgille/chromem-go"
	"github.com/sandevgo/tuskchat/internal/core"
)

const collectionName = "tuskchat"

var errNoEmbeddingFunc = errors.New("vector index stores precomputed embeddings only")

// Index is an append/delete-only similarity index over embedding records.
type Index struct {
	db  *chromem.DB
	col *chromem.Collection
}

// NewIndex opens an in-memory index, or a persistent one when path is set.
func NewIndex(path string) (*Index, error) {
	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, true)
		if err != nil {
			return nil, fmt.Errorf("open vector db: %w", err)
		}
	}

	col, err := db.GetOrCreateCollection(collectionName, nil, func(context.Context, string) ([]float32, error) {
		return nil, errNoEmbeddingFunc
	})
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &Index{db: db, col: col}, nil
}

func (i *Index) Add(ctx context.Context, rec core.EmbeddingRecord) error {
	if len(rec.Vector) == 0 {
		return fmt.Errorf("%w: empty vector for %s", core.ErrInvalidInput, rec.ID)
	}
	err := i.col.AddDocument(ctx, chromem.Document{
		ID:        rec.ID,
		Content:   rec.Text,
		Embedding: rec.Vector,
		Metadata:  maps.Clone(map[string]string(rec.Metadata)),
	})
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Query returns up to topK records matching filter, most similar first.
func (i *Index) Query(ctx context.Context, vec []float32, topK int, filter core.Filter) ([]core.SearchMatch, error) {
	var (
		results []chromem.Result
		err     error
	)
	// chromem rejects nResults above the collection size, which can shrink
	// between Count and the query
	for attempt := 0; attempt < 2; attempt++ {
		n := min(topK, i.col.Count())
		if n <= 0 {
			return nil, nil
		}
		results, err = i.col.QueryEmbedding(ctx, vec, n, filter, nil)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	matches := make([]core.SearchMatch, 0, len(results))
	for _, r := range results {
		matches = append(matches, core.SearchMatch{
			ID:       r.ID,
			Text:     r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		})
	}
	return matches, nil
}

func (i *Index) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := i.col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

// DeleteWhere removes every record matching filter. An empty filter is
// refused rather than wiping the index.
func (i *Index) DeleteWhere(ctx context.Context, filter core.Filter) error {
	if len(filter) == 0 {
		return fmt.Errorf("%w: empty delete filter", core.ErrInvalidInput)
	}
	if err := i.col.Delete(ctx, filter, nil); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

func (i *Index) Count() int {
	return i.col.Count()
}
