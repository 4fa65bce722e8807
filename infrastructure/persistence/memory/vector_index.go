package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"engram-backend/application/ports"
	"engram-backend/domain/core/valueobjects"
	pkgerrors "engram-backend/pkg/errors"
)

// vectorEntry is one indexed embedding plus the creation time of the
// memory it belongs to, kept for tie-breaking.
type vectorEntry struct {
	embedding valueobjects.Embedding
	createdAt time.Time
}

// VectorIndex is a brute-force cosine index over per-owner embeddings.
// Entries carry their model version; a query only compares against
// entries from its own model version and skips the rest, so stale
// vectors awaiting re-embedding never poison a result set.
type VectorIndex struct {
	mu      sync.RWMutex
	entries map[string]map[string]vectorEntry // owner id -> memory id -> entry
}

// NewVectorIndex creates an empty vector index
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{entries: make(map[string]map[string]vectorEntry)}
}

// Upsert stores or replaces a memory's embedding
func (idx *VectorIndex) Upsert(ctx context.Context, ownerID valueobjects.OwnerID, memoryID valueobjects.MemoryID, embedding valueobjects.Embedding, createdAt time.Time) error {
	if embedding.IsZero() {
		return pkgerrors.NewValidation("embedding is required")
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	owner := idx.entries[ownerID.String()]
	if owner == nil {
		owner = make(map[string]vectorEntry)
		idx.entries[ownerID.String()] = owner
	}
	owner[memoryID.String()] = vectorEntry{embedding: embedding, createdAt: createdAt}
	return nil
}

// Remove drops a memory's embedding. Removing an absent entry is not an
// error.
func (idx *VectorIndex) Remove(ctx context.Context, ownerID valueobjects.OwnerID, memoryID valueobjects.MemoryID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	owner := idx.entries[ownerID.String()]
	delete(owner, memoryID.String())
	if len(owner) == 0 {
		delete(idx.entries, ownerID.String())
	}
	return nil
}

// Search returns up to k memories most similar to the query embedding,
// ordered by descending similarity. Entries from other model versions
// are skipped. Equal similarities rank the more recently created memory
// first, then break on memory id so results are stable across runs.
func (idx *VectorIndex) Search(ctx context.Context, ownerID valueobjects.OwnerID, query valueobjects.Embedding, k int) ([]ports.VectorHit, error) {
	if query.IsZero() {
		return nil, pkgerrors.NewValidation("query embedding is required")
	}
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type scored struct {
		hit       ports.VectorHit
		createdAt time.Time
	}

	owner := idx.entries[ownerID.String()]
	results := make([]scored, 0, len(owner))
	for memoryID, entry := range owner {
		if entry.embedding.ModelVersion() != query.ModelVersion() {
			continue
		}
		similarity, err := query.CosineSimilarity(entry.embedding)
		if err != nil {
			return nil, err
		}
		results = append(results, scored{
			hit:       ports.VectorHit{MemoryID: memoryID, Similarity: similarity},
			createdAt: entry.createdAt,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].hit.Similarity != results[j].hit.Similarity {
			return results[i].hit.Similarity > results[j].hit.Similarity
		}
		if !results[i].createdAt.Equal(results[j].createdAt) {
			return results[i].createdAt.After(results[j].createdAt)
		}
		return results[i].hit.MemoryID < results[j].hit.MemoryID
	})
	if len(results) > k {
		results = results[:k]
	}

	hits := make([]ports.VectorHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, r.hit)
	}
	return hits, nil
}

// Has reports whether the memory currently has an indexed embedding
func (idx *VectorIndex) Has(ctx context.Context, ownerID valueobjects.OwnerID, memoryID valueobjects.MemoryID) (bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.entries[ownerID.String()][memoryID.String()]
	return ok, nil
}
