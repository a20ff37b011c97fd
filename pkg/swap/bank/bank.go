// Package bank is an in-memory multi-token balance book standing in for
// the external token contracts the engine settles against. It implements
// the transfer/approve/permit surface the engine consumes through its
// narrow TokenBank interface.
package bank

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	swapcrypto "github.com/StarDEX-Protocol/StarSwap-audit/pkg/crypto"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrPermitExpired         = errors.New("permit expired")
	ErrBadPermitSignature    = errors.New("invalid permit signature")
	ErrNonPositiveAmount     = errors.New("amount must be positive")
)

type holderKey struct {
	token  common.Address
	holder common.Address
}

type allowanceKey struct {
	token   common.Address
	owner   common.Address
	spender common.Address
}

// Bank tracks balances and allowances per (token, holder). Permits are
// EIP-712 typed-data signatures verified against the owner's running nonce.
type Bank struct {
	mu         sync.RWMutex
	balances   map[holderKey]*big.Int
	allowances map[allowanceKey]*big.Int
	nonces     map[common.Address]uint64
	permits    *swapcrypto.PermitSigner
	now        func() int64
}

// NewBank creates a bank verifying permits under the given EIP-712 domain.
// now supplies Unix seconds for permit deadline checks; nil uses a zero
// clock (permits with any nonzero deadline accepted), which is only useful
// in tests that construct their own clock.
func NewBank(domain swapcrypto.EIP712Domain, now func() int64) *Bank {
	if now == nil {
		now = func() int64 { return 0 }
	}
	return &Bank{
		balances:   make(map[holderKey]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
		nonces:     make(map[common.Address]uint64),
		permits:    swapcrypto.NewPermitSigner(domain),
		now:        now,
	}
}

// Mint credits newly issued tokens to a holder. Models the bridge deposit
// path; not reachable through the settlement surface.
func (b *Bank) Mint(token, to common.Address, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.creditLocked(token, to, amount)
	return nil
}

// BalanceOf returns the holder's balance of a token.
func (b *Bank) BalanceOf(token, holder common.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	cur, ok := b.balances[holderKey{token, holder}]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(cur)
}

// Transfer moves amount of token from from to to.
func (b *Bank) Transfer(token, from, to common.Address, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transferLocked(token, from, to, amount)
}

// TransferFrom moves amount of token from owner to to, consuming spender's
// allowance.
func (b *Bank) TransferFrom(token, owner, spender, to common.Address, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := allowanceKey{token, owner, spender}
	allowance, ok := b.allowances[key]
	if !ok || allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: spender %s has %s of token %s, needs %s",
			ErrInsufficientAllowance, spender.Hex(), allowanceString(allowance), token.Hex(), amount)
	}

	if err := b.transferLocked(token, owner, to, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	return nil
}

// Approve sets spender's allowance over owner's tokens.
func (b *Bank) Approve(token, owner, spender common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allowances[allowanceKey{token, owner, spender}] = new(big.Int).Set(amount)
}

// Allowance returns spender's remaining allowance over owner's tokens.
func (b *Bank) Allowance(token, owner, spender common.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	cur, ok := b.allowances[allowanceKey{token, owner, spender}]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(cur)
}

// Permit folds an approval into a single signature-authorized call:
// a valid signature over (token, owner, spender, value, nonce, deadline)
// sets the allowance and consumes the nonce.
func (b *Bank) Permit(token, owner, spender common.Address, value *big.Int, deadline int64, signature []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if deadline != 0 && b.now() > deadline {
		return ErrPermitExpired
	}

	permit := &swapcrypto.PermitEIP712{
		Token:    token,
		Owner:    owner,
		Spender:  spender,
		Value:    value,
		Nonce:    new(big.Int).SetUint64(b.nonces[owner]),
		Deadline: big.NewInt(deadline),
	}

	ok, err := b.permits.VerifyPermitSignature(permit, signature)
	if err != nil || !ok {
		return ErrBadPermitSignature
	}

	b.nonces[owner]++
	b.allowances[allowanceKey{token, owner, spender}] = new(big.Int).Set(value)
	return nil
}

// Nonce returns the owner's next permit nonce.
func (b *Bank) Nonce(owner common.Address) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nonces[owner]
}

func (b *Bank) transferLocked(token, from, to common.Address, amount *big.Int) error {
	fromKey := holderKey{token, from}
	balance, ok := b.balances[fromKey]
	if !ok || balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s of token %s, needs %s",
			ErrInsufficientBalance, from.Hex(), allowanceString(balance), token.Hex(), amount)
	}

	balance.Sub(balance, amount)
	b.creditLocked(token, to, amount)
	return nil
}

func (b *Bank) creditLocked(token, to common.Address, amount *big.Int) {
	key := holderKey{token, to}
	cur, ok := b.balances[key]
	if !ok {
		cur = new(big.Int)
		b.balances[key] = cur
	}
	cur.Add(cur, amount)
}

func allowanceString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
