package ledger

import (
	"fmt"
	"math/big"
	"sync"
)

// Store persists orders. The pebble-backed implementation lives in
// pkg/storage; a nil Store keeps the ledger memory-only (tests).
type Store interface {
	SaveOrder(o *Order) error
	DeleteOrder(id uint64) error
	LoadOrders() ([]Order, error)

	// SaveNextID / LoadNextID persist the id high-water mark. Stored
	// orders alone cannot restore it: the highest id may belong to an
	// order that was consumed before shutdown, and its id must stay dead.
	SaveNextID(id uint64) error
	LoadNextID() (uint64, error)
}

// Ledger owns the live order records. Ids are assigned monotonically and
// never reused; a removed id stays dead forever, which is what makes
// "not found" equivalent to "already consumed".
type Ledger struct {
	mu     sync.RWMutex
	orders map[uint64]*Order
	nextID uint64
	store  Store
}

// NewLedger creates a ledger. store may be nil for memory-only operation.
func NewLedger(store Store) *Ledger {
	return &Ledger{
		orders: make(map[uint64]*Order),
		nextID: 1,
		store:  store,
	}
}

// Load restores persisted orders and the id high-water mark. Called once
// at startup.
func (l *Ledger) Load() error {
	if l.store == nil {
		return nil
	}

	orders, err := l.store.LoadOrders()
	if err != nil {
		return fmt.Errorf("failed to load orders: %w", err)
	}
	next, err := l.store.LoadNextID()
	if err != nil {
		return fmt.Errorf("failed to load id counter: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if next > l.nextID {
		l.nextID = next
	}
	for i := range orders {
		o := orders[i]
		l.orders[o.ID] = &o
		// Books written before the counter existed fall back to the
		// highest stored id.
		if o.ID >= l.nextID {
			l.nextID = o.ID + 1
		}
	}
	return nil
}

// Create validates and stores a new order, assigning its id.
// The ledger keeps its own copy of the amounts.
func (l *Ledger) Create(o Order) (uint64, error) {
	if err := o.Validate(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	o.ID = l.nextID
	l.nextID++

	stored := o.Clone()
	l.orders[stored.ID] = &stored

	if l.store != nil {
		if err := l.store.SaveOrder(&stored); err != nil {
			delete(l.orders, stored.ID)
			return 0, fmt.Errorf("failed to persist order: %w", err)
		}
		// The counter is persisted on every assignment. A failure here
		// aborts the create but keeps the in-memory counter advanced;
		// a skipped id is harmless, a reissued one is not.
		if err := l.store.SaveNextID(l.nextID); err != nil {
			delete(l.orders, stored.ID)
			_ = l.store.DeleteOrder(stored.ID)
			return 0, fmt.Errorf("failed to persist id counter: %w", err)
		}
	}

	return stored.ID, nil
}

// Get returns a copy of the order with the given id.
func (l *Ledger) Get(id uint64) (Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	o, ok := l.orders[id]
	if !ok {
		return Order{}, NotFoundError{ID: id}
	}
	return o.Clone(), nil
}

// Remove deletes a fully filled or cancelled order.
func (l *Ledger) Remove(id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.orders[id]; !ok {
		return NotFoundError{ID: id}
	}
	delete(l.orders, id)

	if l.store != nil {
		if err := l.store.DeleteOrder(id); err != nil {
			return fmt.Errorf("failed to delete order: %w", err)
		}
	}
	return nil
}

// Rescale replaces the order's remaining amounts after a partial fill.
// Both replacements must stay positive; full consumption goes through
// Remove instead, so no (0,0) order can ever exist.
func (l *Ledger) Rescale(id uint64, newSell, newBuy *big.Int) error {
	if newSell.Sign() <= 0 || newBuy.Sign() <= 0 {
		return ErrZeroAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[id]
	if !ok {
		return NotFoundError{ID: id}
	}

	o.SellAmount = new(big.Int).Set(newSell)
	o.BuyAmount = new(big.Int).Set(newBuy)

	if l.store != nil {
		if err := l.store.SaveOrder(o); err != nil {
			return fmt.Errorf("failed to persist order: %w", err)
		}
	}
	return nil
}

// List returns copies of all live orders. Order of the slice is unspecified.
func (l *Ledger) List() []Order {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Order, 0, len(l.orders))
	for _, o := range l.orders {
		out = append(out, o.Clone())
	}
	return out
}

// Count returns the number of live orders.
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.orders)
}
