// Package registry maps order ids to their current owner. Ownership of an
// order (who receives buy-token proceeds and who may cancel) is
// transferable and lives outside the order record itself.
package registry

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Store persists the id -> owner relation. May be nil for memory-only use.
type Store interface {
	SaveOwner(id uint64, owner common.Address) error
	DeleteOwner(id uint64) error
	LoadOwners() (map[uint64]common.Address, error)
}

// OwnerRegistry is a thread-safe orderId -> owner table.
type OwnerRegistry struct {
	mu     sync.RWMutex
	owners map[uint64]common.Address
	store  Store
}

func NewOwnerRegistry(store Store) *OwnerRegistry {
	return &OwnerRegistry{
		owners: make(map[uint64]common.Address),
		store:  store,
	}
}

// Load restores persisted ownership records. Called once at startup.
func (r *OwnerRegistry) Load() error {
	if r.store == nil {
		return nil
	}

	owners, err := r.store.LoadOwners()
	if err != nil {
		return fmt.Errorf("failed to load owners: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, owner := range owners {
		r.owners[id] = owner
	}
	return nil
}

// Bind records the initial owner of a freshly created order.
func (r *OwnerRegistry) Bind(id uint64, owner common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.owners[id]; exists {
		return fmt.Errorf("order %d already has an owner", id)
	}
	r.owners[id] = owner

	if r.store != nil {
		if err := r.store.SaveOwner(id, owner); err != nil {
			delete(r.owners, id)
			return fmt.Errorf("failed to persist owner: %w", err)
		}
	}
	return nil
}

// OwnerOf returns the current owner of an order.
func (r *OwnerRegistry) OwnerOf(id uint64) (common.Address, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[id]
	return owner, ok
}

// TransferOwnership reassigns an order to a new owner. Only the current
// owner may transfer.
func (r *OwnerRegistry) TransferOwnership(id uint64, from, to common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[id]
	if !ok {
		return fmt.Errorf("order %d has no owner", id)
	}
	if owner != from {
		return fmt.Errorf("order %d is not owned by %s", id, from.Hex())
	}
	r.owners[id] = to

	if r.store != nil {
		if err := r.store.SaveOwner(id, to); err != nil {
			r.owners[id] = from
			return fmt.Errorf("failed to persist owner: %w", err)
		}
	}
	return nil
}

// Release drops the ownership record of a consumed or cancelled order.
func (r *OwnerRegistry) Release(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.owners[id]; !ok {
		return fmt.Errorf("order %d has no owner", id)
	}
	delete(r.owners, id)

	if r.store != nil {
		if err := r.store.DeleteOwner(id); err != nil {
			return fmt.Errorf("failed to delete owner: %w", err)
		}
	}
	return nil
}
