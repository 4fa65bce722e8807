// Package badger persists memory records in BadgerDB. Memories are the
// durable half of the store; graphs and vectors rebuild from them.
package badger

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"context"

	badgerdb "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	pkgerrors "engram-backend/pkg/errors"
)

// Key layout. All keys are owner-scoped except the status index, which
// the cross-owner repair sweep reads.
//
//	m:<owner>:<memory id>                     -> JSON record
//	d:<owner>:<digest>:<memory id>            -> empty
//	s:<status>:<created unix nano>:<owner>:<memory id> -> empty
const (
	prefixMemory = "m:"
	prefixDigest = "d:"
	prefixStatus = "s:"
)

// memoryRecord is the stored form of a memory
type memoryRecord struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	Text          string     `json:"text"`
	ContentDigest string     `json:"content_digest"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// MemoryRepository implements memory persistence over BadgerDB
type MemoryRepository struct {
	db     *badgerdb.DB
	logger *zap.Logger
}

// NewMemoryRepository opens the store at path. An empty path opens an
// in-memory database, which backs tests.
func NewMemoryRepository(path string, logger *zap.Logger) (*MemoryRepository, error) {
	opts := badgerdb.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "opening memory store")
	}
	return &MemoryRepository{db: db, logger: logger}, nil
}

// Close releases the underlying database
func (r *MemoryRepository) Close() error {
	return r.db.Close()
}

// Save persists a memory, maintaining the digest and status indexes
func (r *MemoryRepository) Save(ctx context.Context, memory *entities.Memory) error {
	if memory == nil {
		return pkgerrors.NewValidation("memory is required")
	}

	record := toRecord(memory)
	data, err := json.Marshal(record)
	if err != nil {
		return pkgerrors.Wrap(err, "encoding memory record")
	}

	return r.db.Update(func(txn *badgerdb.Txn) error {
		key := memoryKey(record.OwnerID, record.ID)

		// Drop the old status index entry when the status moved.
		if item, err := txn.Get(key); err == nil {
			var prior memoryRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &prior)
			}); err != nil {
				return pkgerrors.Wrap(err, "decoding prior memory record")
			}
			if prior.Status != record.Status {
				if err := txn.Delete(statusKey(prior)); err != nil {
					return err
				}
			}
		} else if err != badgerdb.ErrKeyNotFound {
			return err
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}
		if err := txn.Set(digestKey(record), nil); err != nil {
			return err
		}
		return txn.Set(statusKey(record), nil)
	})
}

// GetByID retrieves a memory. Foreign-owner ids read as absent.
func (r *MemoryRepository) GetByID(ctx context.Context, ownerID valueobjects.OwnerID, id valueobjects.MemoryID) (*entities.Memory, error) {
	var record memoryRecord
	err := r.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(memoryKey(ownerID.String(), id.String()))
		if err == badgerdb.ErrKeyNotFound {
			return pkgerrors.NewNotFound(fmt.Sprintf("memory %s not found", id))
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return nil, err
	}
	return fromRecord(record)
}

// FindByDigest looks a memory up by its owner-scoped content digest. A
// tombstoned memory with the digest does not block re-ingestion, so
// non-deleted matches win.
func (r *MemoryRepository) FindByDigest(ctx context.Context, ownerID valueobjects.OwnerID, digest string) (*entities.Memory, error) {
	var best *memoryRecord
	err := r.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixDigest + ownerID.String() + ":" + digest + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			memoryID := string(it.Item().Key()[len(prefix):])
			item, err := txn.Get(memoryKey(ownerID.String(), memoryID))
			if err == badgerdb.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			var record memoryRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			}); err != nil {
				return err
			}
			if record.OwnerID != ownerID.String() || record.ContentDigest != digest {
				continue
			}
			if record.Status != string(entities.StatusDeleted) {
				best = &record
				return nil
			}
			if best == nil {
				best = &record
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if best == nil {
		return nil, pkgerrors.NewNotFound("no memory with digest")
	}
	return fromRecord(*best)
}

// ListByStatus returns up to limit memories in the given status across
// all owners, oldest first
func (r *MemoryRepository) ListByStatus(ctx context.Context, status entities.MemoryStatus, limit int) ([]*entities.Memory, error) {
	if limit <= 0 {
		return nil, nil
	}

	var memories []*entities.Memory
	err := r.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		// Status keys embed a fixed-width creation timestamp, so prefix
		// order is chronological order.
		prefix := []byte(prefixStatus + string(status) + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(memories) < limit; it.Next() {
			ownerID, memoryID, ok := parseStatusKey(it.Item().Key(), prefix)
			if !ok {
				continue
			}
			item, err := txn.Get(memoryKey(ownerID, memoryID))
			if err == badgerdb.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			var record memoryRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			}); err != nil {
				return err
			}
			if record.Status != string(status) {
				continue
			}
			memory, err := fromRecord(record)
			if err != nil {
				return err
			}
			memories = append(memories, memory)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return memories, nil
}

// ListByOwner returns the owner's non-deleted memories, newest first
func (r *MemoryRepository) ListByOwner(ctx context.Context, ownerID valueobjects.OwnerID, limit int) ([]*entities.Memory, error) {
	if limit <= 0 {
		return nil, nil
	}

	var memories []*entities.Memory
	err := r.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixMemory + ownerID.String() + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var record memoryRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			}); err != nil {
				return err
			}
			// Owner ids are caller-supplied, so a prefix match alone
			// could span owners. The record is authoritative.
			if record.OwnerID != ownerID.String() {
				continue
			}
			if record.Status == string(entities.StatusDeleted) {
				continue
			}
			memory, err := fromRecord(record)
			if err != nil {
				return err
			}
			memories = append(memories, memory)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(memories, func(i, j int) bool {
		return memories[i].CreatedAt().After(memories[j].CreatedAt())
	})
	if len(memories) > limit {
		memories = memories[:limit]
	}
	return memories, nil
}

// Delete removes a memory record and its index entries permanently
func (r *MemoryRepository) Delete(ctx context.Context, ownerID valueobjects.OwnerID, id valueobjects.MemoryID) error {
	return r.db.Update(func(txn *badgerdb.Txn) error {
		key := memoryKey(ownerID.String(), id.String())
		item, err := txn.Get(key)
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		var record memoryRecord
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		}); err != nil {
			return err
		}

		if err := txn.Delete(digestKey(record)); err != nil {
			return err
		}
		if err := txn.Delete(statusKey(record)); err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

func memoryKey(ownerID, memoryID string) []byte {
	return []byte(prefixMemory + ownerID + ":" + memoryID)
}

func digestKey(record memoryRecord) []byte {
	return []byte(prefixDigest + record.OwnerID + ":" + record.ContentDigest + ":" + record.ID)
}

func statusKey(record memoryRecord) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s:%s",
		prefixStatus, record.Status, record.CreatedAt.UnixNano(), record.OwnerID, record.ID))
}

func parseStatusKey(key, prefix []byte) (ownerID, memoryID string, ok bool) {
	rest := string(key[len(prefix):])
	// rest is <created>:<owner>:<memory id>
	first := -1
	last := -1
	for i, c := range rest {
		if c == ':' {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 || last == first {
		return "", "", false
	}
	return rest[first+1 : last], rest[last+1:], true
}

func toRecord(memory *entities.Memory) memoryRecord {
	return memoryRecord{
		ID:            memory.ID().String(),
		OwnerID:       memory.OwnerID().String(),
		Text:          memory.Text(),
		ContentDigest: memory.ContentDigest(),
		Status:        string(memory.Status()),
		CreatedAt:     memory.CreatedAt(),
		UpdatedAt:     memory.UpdatedAt(),
		DeletedAt:     memory.DeletedAt(),
	}
}

func fromRecord(record memoryRecord) (*entities.Memory, error) {
	id, err := valueobjects.ParseMemoryID(record.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "corrupt memory record id")
	}
	ownerID, err := valueobjects.NewOwnerID(record.OwnerID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "corrupt memory record owner")
	}
	return entities.ReconstructMemory(
		id, ownerID, record.Text, record.ContentDigest,
		entities.MemoryStatus(record.Status),
		record.CreatedAt, record.UpdatedAt, record.DeletedAt,
	), nil
}
