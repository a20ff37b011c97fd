package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/ledger"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/registry"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/treasury"
)

// PebbleStore persists orders, ownership, and treasury obligations so a
// restarted node picks up its outstanding book.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

var (
	_ ledger.Store   = (*PebbleStore)(nil)
	_ treasury.Store = (*PebbleStore)(nil)
	_ registry.Store = (*PebbleStore)(nil)
)

// SaveOrder persists an order
func (s *PebbleStore) SaveOrder(o *ledger.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	if err := s.db.Set(orderKey(o.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// DeleteOrder removes an order
func (s *PebbleStore) DeleteOrder(id uint64) error {
	if err := s.db.Delete(orderKey(id), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return nil
}

// LoadOrders loads all live orders
func (s *PebbleStore) LoadOrders() ([]ledger.Order, error) {
	prefix := []byte("o:")
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open order iterator: %w", err)
	}
	defer iter.Close()

	var orders []ledger.Order
	for iter.First(); iter.Valid(); iter.Next() {
		var o ledger.Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			return nil, fmt.Errorf("corrupt order record: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// SaveNextID persists the order id high-water mark
func (s *PebbleStore) SaveNextID(id uint64) error {
	if err := s.db.Set(nextIDKey, idKey(id), pebble.Sync); err != nil {
		return fmt.Errorf("failed to save id counter: %w", err)
	}
	return nil
}

// LoadNextID loads the order id high-water mark, 0 if never written
func (s *PebbleStore) LoadNextID() (uint64, error) {
	value, closer, err := s.db.Get(nextIDKey)
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load id counter: %w", err)
	}
	defer closer.Close()
	if len(value) != 8 {
		return 0, fmt.Errorf("corrupt id counter record")
	}
	return binary.BigEndian.Uint64(value), nil
}

// SaveOwner persists an order's current owner
func (s *PebbleStore) SaveOwner(id uint64, owner common.Address) error {
	if err := s.db.Set(ownerKey(id), owner.Bytes(), pebble.Sync); err != nil {
		return fmt.Errorf("failed to save owner: %w", err)
	}
	return nil
}

// DeleteOwner removes an order's ownership record
func (s *PebbleStore) DeleteOwner(id uint64) error {
	if err := s.db.Delete(ownerKey(id), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete owner: %w", err)
	}
	return nil
}

// LoadOwners loads the full id -> owner relation
func (s *PebbleStore) LoadOwners() (map[uint64]common.Address, error) {
	prefix := []byte("w:")
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open owner iterator: %w", err)
	}
	defer iter.Close()

	owners := make(map[uint64]common.Address)
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != len(prefix)+8 {
			continue
		}
		id := binary.BigEndian.Uint64(key[len(prefix):])
		owners[id] = common.BytesToAddress(iter.Value())
	}
	return owners, nil
}

// SaveObligation persists a token's treasury obligation counter
func (s *PebbleStore) SaveObligation(token common.Address, amount *big.Int) error {
	if err := s.db.Set(obligationKey(token), []byte(amount.Text(10)), pebble.Sync); err != nil {
		return fmt.Errorf("failed to save obligation: %w", err)
	}
	return nil
}

// LoadObligations loads all per-token obligation counters
func (s *PebbleStore) LoadObligations() (map[common.Address]*big.Int, error) {
	prefix := []byte("t:")
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open obligation iterator: %w", err)
	}
	defer iter.Close()

	obligations := make(map[common.Address]*big.Int)
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != len(prefix)+common.AddressLength {
			continue
		}
		amount, ok := new(big.Int).SetString(string(iter.Value()), 10)
		if !ok {
			return nil, fmt.Errorf("corrupt obligation record for key %x", key)
		}
		obligations[common.BytesToAddress(key[len(prefix):])] = amount
	}
	return obligations, nil
}
