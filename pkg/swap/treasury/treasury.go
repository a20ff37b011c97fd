// Package treasury tracks, per token, the amount the engine must retain to
// honor every outstanding order. The tracker is the single chokepoint that
// keeps privileged withdrawals from ever touching escrowed funds.
package treasury

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// InsufficientBackingError is returned when a withdrawal would dip into
// funds that back a live order.
type InsufficientBackingError struct {
	Token     common.Address
	Requested *big.Int
	Available *big.Int
}

func (e InsufficientBackingError) Error() string {
	return fmt.Sprintf("withdrawal of %s would breach backing for token %s: available %s",
		e.Requested, e.Token.Hex(), e.Available)
}

// BalanceSource reports the escrow balance actually held for a token.
// The engine wires this to the bank balance of its vault address.
type BalanceSource interface {
	EscrowBalance(token common.Address) *big.Int
}

// Store persists per-token obligations. May be nil for memory-only operation.
type Store interface {
	SaveObligation(token common.Address, amount *big.Int) error
	LoadObligations() (map[common.Address]*big.Int, error)
}

// Tracker keeps the per-token obligation counters. Invariant: for every
// token, escrow balance >= obligation at all times. Creation adds, fills
// and cancellations subtract.
type Tracker struct {
	mu          sync.RWMutex
	obligations map[common.Address]*big.Int
	balances    BalanceSource
	store       Store
}

func NewTracker(balances BalanceSource, store Store) *Tracker {
	return &Tracker{
		obligations: make(map[common.Address]*big.Int),
		balances:    balances,
		store:       store,
	}
}

// Load restores persisted obligations. Called once at startup.
func (t *Tracker) Load() error {
	if t.store == nil {
		return nil
	}

	obligations, err := t.store.LoadObligations()
	if err != nil {
		return fmt.Errorf("failed to load obligations: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for token, amount := range obligations {
		t.obligations[token] = amount
	}
	return nil
}

// Add records amount of token as newly owed to a live order.
func (t *Tracker) Add(token common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.obligations[token]
	if !ok {
		cur = new(big.Int)
		t.obligations[token] = cur
	}
	cur.Add(cur, amount)
	t.persistLocked(token, cur)
}

// Subtract releases amount of token from the tracked obligation.
// Going negative means the engine released more than it ever owed; that is
// a core accounting bug, unreachable through the public surface, and is
// treated as fatal rather than returned to the caller.
func (t *Tracker) Subtract(token common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.obligations[token]
	if !ok || cur.Cmp(amount) < 0 {
		panic(fmt.Sprintf("treasury accounting violation: subtract %s from obligation %s for token %s",
			amount, cur, token.Hex()))
	}
	cur.Sub(cur, amount)
	t.persistLocked(token, cur)
}

// Obligation returns the tracked obligation for a token.
func (t *Tracker) Obligation(token common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cur, ok := t.obligations[token]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(cur)
}

// AvailableForWithdrawal returns escrowBalance(token) - obligation(token),
// the surplus an administrator may extract without touching order backing.
func (t *Tracker) AvailableForWithdrawal(token common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	available := new(big.Int).Set(t.balances.EscrowBalance(token))
	if cur, ok := t.obligations[token]; ok {
		available.Sub(available, cur)
	}
	return available
}

// AuthorizeWithdrawal rejects any withdrawal that would breach the backing
// invariant. It must be called on every path that moves tokens out of
// custody, not only the explicit withdrawal entry point.
func (t *Tracker) AuthorizeWithdrawal(token common.Address, amount *big.Int) error {
	available := t.AvailableForWithdrawal(token)
	if amount.Cmp(available) > 0 {
		return InsufficientBackingError{
			Token:     token,
			Requested: new(big.Int).Set(amount),
			Available: available,
		}
	}
	return nil
}

func (t *Tracker) persistLocked(token common.Address, amount *big.Int) {
	if t.store == nil {
		return
	}
	if err := t.store.SaveObligation(token, amount); err != nil {
		// Obligation counters guard solvency; running with stale persisted
		// counters risks honoring withdrawals against phantom surplus.
		panic(fmt.Sprintf("failed to persist obligation for token %s: %v", token.Hex(), err))
	}
}
