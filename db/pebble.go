package db

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// keys: ord:<uvarint len(symbol)><symbol><8-byte big-endian id>
// The length prefix keeps one symbol's range from covering another symbol
// that merely starts with the same bytes.
const prefixOrder = "ord:"

func orderPrefix(symbol string) []byte {
	k := binary.AppendUvarint([]byte(prefixOrder), uint64(len(symbol)))
	return append(k, symbol...)
}

func orderKey(symbol string, id int64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(id))
	return append(orderPrefix(symbol), k[:]...)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan. Trailing
// 0xff bytes cannot be incremented and are dropped first.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	for i := len(bound) - 1; i >= 0; i-- {
		if bound[i] < 0xff {
			bound[i]++
			return bound[:i+1]
		}
	}
	return nil
}

type PebbleRepo struct {
	db   *pebble.DB
	sync *pebble.WriteOptions
}

func NewPebbleRepo(path string) (*PebbleRepo, error) {
	return OpenPebbleRepo(path, &pebble.Options{})
}

// OpenPebbleRepo opens the store with explicit options; tests pass an
// in-memory FS.
func OpenPebbleRepo(path string, opts *pebble.Options) (*PebbleRepo, error) {
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open order store: %w", err)
	}
	return &PebbleRepo{db: db, sync: pebble.NoSync}, nil
}

// SetSync makes every write fsync before returning.
func (s *PebbleRepo) SetSync(on bool) {
	if on {
		s.sync = pebble.Sync
	} else {
		s.sync = pebble.NoSync
	}
}

func (s *PebbleRepo) Close() error {
	if s.db == nil {
		return ErrClosed
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *PebbleRepo) SaveOrder(o Order) error {
	if s.db == nil {
		return ErrClosed
	}
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	if err := s.db.Set(orderKey(o.Symbol, o.ID), data, s.sync); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

func (s *PebbleRepo) DeleteOrder(symbol string, id int64) error {
	if s.db == nil {
		return ErrClosed
	}
	if err := s.db.Delete(orderKey(symbol, id), s.sync); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return nil
}

func (s *PebbleRepo) GetOrder(symbol string, id int64) (Order, bool, error) {
	if s.db == nil {
		return Order{}, false, ErrClosed
	}
	val, closer, err := s.db.Get(orderKey(symbol, id))
	if errors.Is(err, pebble.ErrNotFound) {
		return Order{}, false, nil
	}
	if err != nil {
		return Order{}, false, fmt.Errorf("failed to get order: %w", err)
	}
	defer closer.Close()
	var o Order
	if err := json.Unmarshal(val, &o); err != nil {
		return Order{}, false, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return o, true, nil
}

// GetAvailableOrders returns every stored order of the symbol.
func (s *PebbleRepo) GetAvailableOrders(symbol string) ([]Order, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	prefix := orderPrefix(symbol)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	var orders []Order
	for iter.First(); iter.Valid(); iter.Next() {
		var o Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			return nil, fmt.Errorf("failed to unmarshal order %x: %w", iter.Key(), err)
		}
		orders = append(orders, o)
	}
	return orders, iter.Error()
}

var _ Repo = (*PebbleRepo)(nil)
