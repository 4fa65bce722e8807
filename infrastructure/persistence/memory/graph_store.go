// Package memory provides in-process persistence adapters. They hold
// the authoritative runtime state for a single-node deployment; the
// memory records themselves live in the durable store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"engram-backend/application/ports"
	"engram-backend/domain/core/aggregates"
	"engram-backend/domain/core/valueobjects"
	pkgerrors "engram-backend/pkg/errors"
)

// GraphStore keeps one committed graph per owner. Writers are serialized
// per owner: Begin blocks until the previous transaction for the same
// owner commits or rolls back, which is what gives the graph aggregate
// its single-writer guarantee. Readers see the committed graph only, so
// a reader never observes a half-applied ingestion.
type GraphStore struct {
	mu     sync.RWMutex
	graphs map[string]*aggregates.Graph

	// writerMu serializes transactions per owner
	writerMu sync.Mutex
	writers  map[string]*sync.Mutex
}

// NewGraphStore creates an empty graph store
func NewGraphStore() *GraphStore {
	return &GraphStore{
		graphs:  make(map[string]*aggregates.Graph),
		writers: make(map[string]*sync.Mutex),
	}
}

// Begin opens a write transaction for the owner's graph, creating an
// empty graph on first use
func (s *GraphStore) Begin(ctx context.Context, ownerID valueobjects.OwnerID) (ports.GraphTx, error) {
	lock := s.writerLock(ownerID)
	lock.Lock()

	s.mu.RLock()
	committed := s.graphs[ownerID.String()]
	s.mu.RUnlock()

	var staged *aggregates.Graph
	if committed == nil {
		fresh, err := aggregates.NewGraph(ownerID)
		if err != nil {
			lock.Unlock()
			return nil, err
		}
		staged = fresh
	} else {
		staged = committed.Clone()
	}

	return &graphTx{store: s, ownerID: ownerID, staged: staged, lock: lock}, nil
}

// View returns a read-only snapshot of the owner's committed graph.
// Committed graphs are never mutated in place, every write goes through
// a staged clone, so the committed pointer itself is a stable snapshot.
func (s *GraphStore) View(ctx context.Context, ownerID valueobjects.OwnerID) (*aggregates.Graph, error) {
	s.mu.RLock()
	committed := s.graphs[ownerID.String()]
	s.mu.RUnlock()

	if committed == nil {
		return nil, pkgerrors.NewNotFound(fmt.Sprintf("no graph for owner %s", ownerID))
	}
	return committed, nil
}

// Stats summarizes the owner's committed graph. An owner with no graph
// yet gets zero counts rather than an error.
func (s *GraphStore) Stats(ctx context.Context, ownerID valueobjects.OwnerID) (ports.GraphStatistics, error) {
	s.mu.RLock()
	committed := s.graphs[ownerID.String()]
	s.mu.RUnlock()

	if committed == nil {
		return ports.GraphStatistics{NodesByType: map[string]int{}}, nil
	}

	stats := ports.GraphStatistics{
		NodeCount:   committed.NodeCount(),
		EdgeCount:   committed.EdgeCount(),
		MemoryCount: committed.MemoryCount(),
		NodesByType: make(map[string]int),
		Version:     committed.Version(),
	}
	for _, node := range committed.Nodes() {
		stats.NodesByType[string(node.Type())]++
		degree := committed.Degree(node.ID())
		if degree > stats.MaxDegree {
			stats.MaxDegree = degree
		}
	}
	if stats.NodeCount > 0 {
		// Every edge contributes two endpoint incidences.
		stats.AverageDegree = float64(2*stats.EdgeCount) / float64(stats.NodeCount)
	}
	return stats, nil
}

func (s *GraphStore) writerLock(ownerID valueobjects.OwnerID) *sync.Mutex {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()
	lock, ok := s.writers[ownerID.String()]
	if !ok {
		lock = &sync.Mutex{}
		s.writers[ownerID.String()] = lock
	}
	return lock
}

// graphTx stages mutations on a clone of the committed graph
type graphTx struct {
	store   *GraphStore
	ownerID valueobjects.OwnerID
	staged  *aggregates.Graph
	lock    *sync.Mutex
	done    bool
}

func (tx *graphTx) Graph() *aggregates.Graph { return tx.staged }

func (tx *graphTx) Commit(ctx context.Context) error {
	if tx.done {
		return pkgerrors.NewConflict("transaction already finished")
	}
	tx.done = true

	tx.staged.CommitVersion()
	tx.store.mu.Lock()
	tx.store.graphs[tx.ownerID.String()] = tx.staged
	tx.store.mu.Unlock()

	tx.lock.Unlock()
	return nil
}

func (tx *graphTx) Rollback() {
	if tx.done {
		return
	}
	tx.done = true
	tx.lock.Unlock()
}
