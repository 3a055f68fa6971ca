// Package queue keeps lead notifications that failed so they can be retried later.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/Ananth-NQI/intake-backend/internal/models"
)

const keyPrefix = "lead/"

// ErrNotFound is returned when a pending lead id is unknown
var ErrNotFound = errors.New("pending lead not found")

// PendingLead is a lead waiting to be re-delivered
type PendingLead struct {
	ID        string      `json:"id"`
	Lead      models.Lead `json:"lead"`
	Attempts  int         `json:"attempts"`
	LastError string      `json:"last_error"`
	QueuedAt  time.Time   `json:"queued_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// LeadQueue is a badger-backed queue of pending leads, ordered by key
type LeadQueue struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens (or creates) the queue at dir. An empty dir keeps the queue in memory.
func Open(dir string) (*LeadQueue, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open lead queue: %w", err)
	}
	return &LeadQueue{db: db, now: time.Now}, nil
}

// Close releases the underlying database
func (q *LeadQueue) Close() error {
	return q.db.Close()
}

// Enqueue stores a lead whose notification failed with cause
func (q *LeadQueue) Enqueue(ctx context.Context, lead models.Lead, cause error) error {
	now := q.now()
	p := PendingLead{
		ID:        uuid.NewString(),
		Lead:      lead,
		Attempts:  1,
		QueuedAt:  now,
		UpdatedAt: now,
	}
	if cause != nil {
		p.LastError = cause.Error()
	}
	return q.put(p)
}

// List returns pending leads, oldest first
func (q *LeadQueue) List(ctx context.Context) ([]PendingLead, error) {
	var out []PendingLead
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var p PendingLead
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			}); err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending leads: %w", err)
	}
	return out, nil
}

// MarkFailed records another failed attempt
func (q *LeadQueue) MarkFailed(ctx context.Context, p PendingLead, cause error) error {
	if err := q.ensureExists(p); err != nil {
		return err
	}
	p.Attempts++
	p.UpdatedAt = q.now()
	if cause != nil {
		p.LastError = cause.Error()
	}
	return q.put(p)
}

// Remove deletes a delivered lead
func (q *LeadQueue) Remove(ctx context.Context, p PendingLead) error {
	return q.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(p))
	})
}

// Len counts pending leads
func (q *LeadQueue) Len(ctx context.Context) (int, error) {
	pending, err := q.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}

func (q *LeadQueue) ensureExists(p PendingLead) error {
	return q.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key(p))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, p.ID)
		}
		return err
	})
}

func (q *LeadQueue) put(p PendingLead) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode pending lead: %w", err)
	}
	return q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(p), raw)
	})
}

// key orders entries by queue time so iteration is oldest first
func key(p PendingLead) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", keyPrefix, p.QueuedAt.UnixNano(), p.ID))
}
