// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore is a log-structured StateStore. Keys:
//   - sessions:    "sess:<id>" (JSON)
//   - transitions: "tr:<id>:<seq, zero-padded>" (JSON)
//
// The zero-padded sequence keeps prefix iteration in journal order.
type BadgerStore struct {
	db *badger.DB
}

func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func (s *BadgerStore) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger store closed")
	}
	return nil
}

func sessionKey(id string) []byte { return []byte("sess:" + id) }

func transitionKey(id string, seq int) []byte {
	return []byte(fmt.Sprintf("tr:%s:%08d", id, seq))
}

func (s *BadgerStore) PutSession(ctx context.Context, rec *SessionRecord) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey(rec.SessionID), buf)
	})
}

func (s *BadgerStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	var out SessionRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil // Not found, no error
		}
		return nil, err
	}
	return &out, nil
}

func (s *BadgerStore) ListSessions(ctx context.Context, filter Filter) ([]*SessionRecord, error) {
	var list []*SessionRecord
	prefix := []byte("sess:")
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			var rec SessionRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				continue
			}
			if filter.matches(rec.State) {
				cpy := rec
				list = append(list, &cpy)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].UpdatedAtMs != list[j].UpdatedAtMs {
			return list[i].UpdatedAtMs > list[j].UpdatedAtMs
		}
		return list[i].SessionID < list[j].SessionID
	})
	if filter.Limit > 0 && len(list) > filter.Limit {
		list = list[:filter.Limit]
	}
	return list, nil
}

func (s *BadgerStore) DeleteSession(ctx context.Context, id string) error {
	trPrefix := []byte("tr:" + id + ":")
	return s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		var keys [][]byte
		for it.Seek(trPrefix); it.ValidForPrefix(trPrefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return txn.Delete(sessionKey(id))
	})
}

func (s *BadgerStore) AppendTransition(ctx context.Context, tr TransitionRecord) error {
	buf, err := json.Marshal(tr)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(transitionKey(tr.SessionID, tr.Seq), buf)
	})
}

func (s *BadgerStore) Transitions(ctx context.Context, sessionID string) ([]TransitionRecord, error) {
	var list []TransitionRecord
	prefix := []byte("tr:" + sessionID + ":")
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var tr TransitionRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &tr)
			}); err != nil {
				continue
			}
			list = append(list, tr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// Ensure interface compliance at compile time.
var _ StateStore = (*BadgerStore)(nil)
