package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/tallerpro/checkup/internal/core/checklist"
	"github.com/tallerpro/checkup/internal/data/db"
)

const orderPrefix = "order/"

// InstanceStore persists order records in Badger, one JSON value per order.
type InstanceStore struct {
	db *db.DB
}

// NewInstanceStore creates a Badger-backed instance store.
func NewInstanceStore(database *db.DB) *InstanceStore {
	return &InstanceStore{db: database}
}

func orderKey(orderID string) []byte {
	return []byte(orderPrefix + orderID)
}

// Get returns the record for an order.
// Returns checklist.ErrNotFound if no record exists.
func (s *InstanceStore) Get(_ context.Context, orderID string) (OrderRecord, error) {
	var rec OrderRecord
	err := s.db.Badger().View(func(txn *badger.Txn) error {
		item, err := txn.Get(orderKey(orderID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return OrderRecord{}, checklist.ErrNotFound
	}
	if err != nil {
		return OrderRecord{}, fmt.Errorf("get order record: %w", err)
	}
	return rec, nil
}

// Put creates or replaces the record for an order.
func (s *InstanceStore) Put(_ context.Context, rec OrderRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal order record: %w", err)
	}
	err = s.db.Badger().Update(func(txn *badger.Txn) error {
		return txn.Set(orderKey(rec.OrderID), data)
	})
	if err != nil {
		return fmt.Errorf("put order record: %w", err)
	}
	return nil
}

// Delete removes the record for an order. Deleting a missing record is not
// an error; this is the cache-invalidation path.
func (s *InstanceStore) Delete(_ context.Context, orderID string) error {
	err := s.db.Badger().Update(func(txn *badger.Txn) error {
		return txn.Delete(orderKey(orderID))
	})
	if err != nil {
		return fmt.Errorf("delete order record: %w", err)
	}
	return nil
}

// List returns all persisted order records.
func (s *InstanceStore) List(_ context.Context) ([]OrderRecord, error) {
	var records []OrderRecord
	err := s.db.Badger().View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(orderPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec OrderRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list order records: %w", err)
	}
	return records, nil
}
