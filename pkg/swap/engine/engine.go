// Package engine orchestrates order settlement: creation, cancellation,
// full and partial fills, plugin policy dispatch, and treasury-guarded
// withdrawals. Every operation runs as a single indivisible step; nothing
// can observe a half-applied settlement.
package engine

import (
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/ledger"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/plugin"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/registry"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/treasury"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/util"
)

// TokenBank is the token transfer capability the engine settles against.
// Spender-style moves consume an allowance previously granted to the vault,
// either via Approve or via a one-step Permit signature.
type TokenBank interface {
	BalanceOf(token, holder common.Address) *big.Int
	Transfer(token, from, to common.Address, amount *big.Int) error
	TransferFrom(token, owner, spender, to common.Address, amount *big.Int) error
	Permit(token, owner, spender common.Address, value *big.Int, deadline int64, signature []byte) error
}

// VaultBalance adapts the bank's view of the engine vault into the
// treasury's BalanceSource.
type VaultBalance struct {
	Bank  TokenBank
	Vault common.Address
}

func (v VaultBalance) EscrowBalance(token common.Address) *big.Int {
	return v.Bank.BalanceOf(token, v.Vault)
}

// OrderSpec is a caller's request to create an order.
type OrderSpec struct {
	SellToken  common.Address
	SellAmount *big.Int
	BuyToken   common.Address
	BuyAmount  *big.Int
	Deadline   int64 // Unix seconds, 0 = never expires
}

// Config carries the engine's fixed identity.
type Config struct {
	// Vault is the address escrowed funds are held under.
	Vault common.Address
	// Admin may manage plugins, withdraw surplus, and hand admin off once.
	Admin common.Address
	Clock util.Clock
}

// Engine is the settlement core. It serializes every operation: a second
// call while one is in flight fails with ErrReentrantCall, so callers
// (the API layer, the batch executor) queue externally. This is what keeps
// plugin hooks and token movements from interleaving against the same
// order or treasury entry.
type Engine struct {
	busy atomic.Bool

	vault common.Address
	admin common.Address

	ledger   *ledger.Ledger
	treasury *treasury.Tracker
	owners   *registry.OwnerRegistry
	pipeline *plugin.Pipeline
	bank     TokenBank

	clock util.Clock
	log   *zap.SugaredLogger
	sinks []EventSink
}

func New(cfg Config, l *ledger.Ledger, t *treasury.Tracker, owners *registry.OwnerRegistry,
	pl *plugin.Pipeline, bank TokenBank, log *zap.SugaredLogger) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = util.RealClock{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{
		vault:    cfg.Vault,
		admin:    cfg.Admin,
		ledger:   l,
		treasury: t,
		owners:   owners,
		pipeline: pl,
		bank:     bank,
		clock:    clock,
		log:      log,
	}
}

// AddSink registers an event sink. Not safe to call concurrently with
// settlement operations; wire sinks at startup.
func (e *Engine) AddSink(s EventSink) {
	e.sinks = append(e.sinks, s)
}

// Vault returns the escrow address.
func (e *Engine) Vault() common.Address { return e.vault }

// Orders returns copies of all live orders, for the router and queries.
func (e *Engine) Orders() []ledger.Order { return e.ledger.List() }

// GetOrder returns a copy of a live order.
func (e *Engine) GetOrder(id uint64) (ledger.Order, error) { return e.ledger.Get(id) }

// OwnerOf returns the current owner of a live order.
func (e *Engine) OwnerOf(id uint64) (common.Address, bool) { return e.owners.OwnerOf(id) }

// Treasury exposes read-only obligation queries.
func (e *Engine) Treasury() *treasury.Tracker { return e.treasury }

func (e *Engine) begin() error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

func (e *Engine) end() { e.busy.Store(false) }

// CreateOrder escrows spec.SellAmount of spec.SellToken from maker and
// records the order. The maker must have granted the vault an allowance
// beforehand; use CreateOrderWithPermit to fold that into one call.
func (e *Engine) CreateOrder(maker common.Address, spec OrderSpec) (uint64, error) {
	if err := e.begin(); err != nil {
		return 0, err
	}
	defer e.end()
	return e.doCreate(maker, spec)
}

// CreateOrderWithPermit is CreateOrder with a signature-based allowance:
// the permit must grant the vault at least spec.SellAmount of the sell token.
func (e *Engine) CreateOrderWithPermit(maker common.Address, spec OrderSpec, permitDeadline int64, signature []byte) (uint64, error) {
	if err := e.begin(); err != nil {
		return 0, err
	}
	defer e.end()

	if err := e.bank.Permit(spec.SellToken, maker, e.vault, spec.SellAmount, permitDeadline, signature); err != nil {
		return 0, fmt.Errorf("permit rejected: %w", err)
	}
	return e.doCreate(maker, spec)
}

func (e *Engine) doCreate(maker common.Address, spec OrderSpec) (uint64, error) {
	o := ledger.Order{
		Maker:      maker,
		SellToken:  spec.SellToken,
		SellAmount: spec.SellAmount,
		BuyToken:   spec.BuyToken,
		BuyAmount:  spec.BuyAmount,
		Deadline:   spec.Deadline,
		CreatedAt:  e.clock.Now().Unix(),
	}
	if err := o.Validate(); err != nil {
		return 0, err
	}

	o, err := e.pipeline.Run(plugin.BeforeCreate, o)
	if err != nil {
		return 0, err
	}
	if err := o.Validate(); err != nil {
		return 0, fmt.Errorf("order invalid after policy hooks: %w", err)
	}

	id, err := e.ledger.Create(o)
	if err != nil {
		return 0, err
	}

	if err := e.bank.TransferFrom(o.SellToken, maker, e.vault, e.vault, o.SellAmount); err != nil {
		// Undo the ledger write; nothing else has moved yet.
		_ = e.ledger.Remove(id)
		return 0, fmt.Errorf("escrow transfer failed: %w", err)
	}

	e.treasury.Add(o.SellToken, o.SellAmount)

	if err := e.owners.Bind(id, maker); err != nil {
		panic(fmt.Sprintf("ownership bind failed for fresh order %d: %v", id, err))
	}

	o.ID = id
	e.emit(Event{
		Type:       EventOrderCreated,
		OrderID:    id,
		SellToken:  o.SellToken,
		BuyToken:   o.BuyToken,
		SellAmount: new(big.Int).Set(o.SellAmount),
		BuyAmount:  new(big.Int).Set(o.BuyAmount),
		Actor:      maker,
	})
	e.runObservational(plugin.AfterCreate, o)

	return id, nil
}

// CancelOrder unwinds an order: the escrowed sell amount returns to the
// current owner and the order is removed. Only the owner may cancel.
// Cancellation succeeds even when policy would veto new exposure to the
// order's tokens; plugins that want a say register the cancel hooks.
func (e *Engine) CancelOrder(caller common.Address, id uint64) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	o, err := e.ledger.Get(id)
	if err != nil {
		return err
	}

	owner, ok := e.owners.OwnerOf(id)
	if !ok || owner != caller {
		return fmt.Errorf("%w: order %d", ErrNotOwner, id)
	}

	// Cancel hooks may veto, nothing more. The refund is the recorded
	// remaining escrow; a hook that hands back different amounts or
	// tokens would move other orders' backing, so that output is
	// rejected outright. rec keeps its own big.Ints so an in-place
	// mutation cannot slip past the comparison.
	rec := o.Clone()
	o, err = e.pipeline.Run(plugin.BeforeCancel, o)
	if err != nil {
		return err
	}
	if o.SellToken != rec.SellToken || o.BuyToken != rec.BuyToken ||
		o.SellAmount.Cmp(rec.SellAmount) != 0 || o.BuyAmount.Cmp(rec.BuyAmount) != 0 {
		return fmt.Errorf("policy hook may not alter a cancelled order %d", id)
	}
	o = rec

	if err := e.bank.Transfer(o.SellToken, e.vault, owner, o.SellAmount); err != nil {
		panic(fmt.Sprintf("escrow accounting violation: cannot return %s of %s for order %d: %v",
			o.SellAmount, o.SellToken.Hex(), id, err))
	}

	e.treasury.Subtract(o.SellToken, o.SellAmount)

	e.emit(Event{
		Type:       EventOrderCancelled,
		OrderID:    id,
		SellToken:  o.SellToken,
		BuyToken:   o.BuyToken,
		SellAmount: new(big.Int).Set(o.SellAmount),
		BuyAmount:  new(big.Int).Set(o.BuyAmount),
		Actor:      caller,
	})

	if err := e.ledger.Remove(id); err != nil {
		panic(fmt.Sprintf("order %d vanished mid-cancel: %v", id, err))
	}
	_ = e.owners.Release(id)

	e.runObservational(plugin.AfterCancel, o)
	return nil
}

// FillOrder consumes an order in full: the taker pays the order's entire
// buy amount to the owner and the escrowed sell amount (less any
// hook-imposed fee) goes to recipient.
func (e *Engine) FillOrder(taker common.Address, id uint64, recipient common.Address) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	return e.doFill(taker, id, nil, recipient)
}

// FillOrderWithPermit is FillOrder with a signature-based allowance over
// the buy token.
func (e *Engine) FillOrderWithPermit(taker common.Address, id uint64, recipient common.Address, permitDeadline int64, signature []byte) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	o, err := e.ledger.Get(id)
	if err != nil {
		return err
	}
	if err := e.bank.Permit(o.BuyToken, taker, e.vault, o.BuyAmount, permitDeadline, signature); err != nil {
		return fmt.Errorf("permit rejected: %w", err)
	}
	return e.doFill(taker, id, nil, recipient)
}

// FillOrderPartially fills amountIn of the order's buy side. The order is
// rescaled by the posted price: amountOut = floor(S*amountIn/B), leaving
// (S-amountOut, B-amountIn).
func (e *Engine) FillOrderPartially(taker common.Address, id uint64, amountIn *big.Int, recipient common.Address) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	return e.doFill(taker, id, amountIn, recipient)
}

// FillOrderPartiallyWithPermit is FillOrderPartially with a
// signature-based allowance covering amountIn of the buy token.
func (e *Engine) FillOrderPartiallyWithPermit(taker common.Address, id uint64, amountIn *big.Int, recipient common.Address, permitDeadline int64, signature []byte) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	o, err := e.ledger.Get(id)
	if err != nil {
		return err
	}
	if err := e.bank.Permit(o.BuyToken, taker, e.vault, amountIn, permitDeadline, signature); err != nil {
		return fmt.Errorf("permit rejected: %w", err)
	}
	return e.doFill(taker, id, amountIn, recipient)
}

// doFill settles a fill. amountIn == nil means full fill.
//
// Step order is chosen so every fallible step precedes every state
// mutation: once the taker's payment lands, the remaining moves cannot
// fail short of an accounting invariant violation.
func (e *Engine) doFill(taker common.Address, id uint64, amountIn *big.Int, recipient common.Address) error {
	o, err := e.ledger.Get(id)
	if err != nil {
		return err
	}

	now := e.clock.Now().Unix()
	if o.Expired(now) {
		return ExpiredError{ID: id, Deadline: o.Deadline, Now: now}
	}

	owner, ok := e.owners.OwnerOf(id)
	if !ok {
		panic(fmt.Sprintf("live order %d has no owner", id))
	}

	full := amountIn == nil || amountIn.Cmp(o.BuyAmount) == 0
	if full {
		amountIn = o.BuyAmount
	} else if amountIn.Sign() <= 0 || amountIn.Cmp(o.BuyAmount) > 0 {
		return fmt.Errorf("%w: %s of remaining %s", ErrInvalidFillAmount, amountIn, o.BuyAmount)
	}

	amountOut := ledger.QuoteExactInput(o.SellAmount, o.BuyAmount, amountIn)
	if amountOut.Sign() == 0 {
		return fmt.Errorf("%w: %s buys no output", ErrInvalidFillAmount, amountIn)
	}

	// Hooks see only the slice being traded in this step, not the order's
	// full remaining size, so fee and whitelist policy reason about the
	// trade itself.
	slice := o.Clone()
	slice.SellAmount = amountOut
	slice.BuyAmount = new(big.Int).Set(amountIn)

	hooked, err := e.pipeline.Run(plugin.BeforeFill, slice)
	if err != nil {
		return err
	}
	if err := validateHookedSlice(slice, hooked, amountOut, amountIn); err != nil {
		return err
	}

	// Taker pays the buy leg to the order owner. The only fallible move.
	if err := e.bank.TransferFrom(o.BuyToken, taker, e.vault, owner, hooked.BuyAmount); err != nil {
		return fmt.Errorf("buy leg transfer failed: %w", err)
	}

	// The full posted payout leaves the obligation even when a fee plugin
	// shrank the taker's share; the difference stays in the vault as
	// withdrawable surplus.
	e.treasury.Subtract(o.SellToken, amountOut)

	if err := e.bank.Transfer(o.SellToken, e.vault, recipient, hooked.SellAmount); err != nil {
		panic(fmt.Sprintf("escrow accounting violation: cannot pay %s of %s for order %d: %v",
			hooked.SellAmount, o.SellToken.Hex(), id, err))
	}

	eventType := EventOrderPartiallyFilled
	if full {
		eventType = EventOrderFilled
		if err := e.ledger.Remove(id); err != nil {
			panic(fmt.Sprintf("order %d vanished mid-fill: %v", id, err))
		}
		_ = e.owners.Release(id)
	} else {
		newSell := new(big.Int).Sub(o.SellAmount, amountOut)
		newBuy := new(big.Int).Sub(o.BuyAmount, amountIn)
		if err := e.ledger.Rescale(id, newSell, newBuy); err != nil {
			panic(fmt.Sprintf("rescale of order %d failed: %v", id, err))
		}
	}

	e.emit(Event{
		Type:       eventType,
		OrderID:    id,
		SellToken:  o.SellToken,
		BuyToken:   o.BuyToken,
		SellAmount: new(big.Int).Set(hooked.SellAmount),
		BuyAmount:  new(big.Int).Set(hooked.BuyAmount),
		Actor:      taker,
	})
	e.runObservational(plugin.AfterFill, hooked)

	return nil
}

// validateHookedSlice bounds what a before-fill hook may do to the traded
// slice: shrink either leg (fees), never grow one, never touch identity.
func validateHookedSlice(orig, hooked ledger.Order, maxOut, maxIn *big.Int) error {
	if hooked.SellToken != orig.SellToken || hooked.BuyToken != orig.BuyToken {
		return fmt.Errorf("policy hook may not change order tokens")
	}
	if hooked.SellAmount.Sign() <= 0 || hooked.SellAmount.Cmp(maxOut) > 0 {
		return fmt.Errorf("policy hook produced invalid payout %s (max %s)", hooked.SellAmount, maxOut)
	}
	if hooked.BuyAmount.Sign() <= 0 || hooked.BuyAmount.Cmp(maxIn) > 0 {
		return fmt.Errorf("policy hook produced invalid charge %s (max %s)", hooked.BuyAmount, maxIn)
	}
	return nil
}

// runObservational dispatches an after hook. After hooks run once the
// operation is committed; they observe, they do not veto. An error here is
// the plugin's problem, logged and dropped.
func (e *Engine) runObservational(point plugin.HookPoint, o ledger.Order) {
	if _, err := e.pipeline.Run(point, o); err != nil {
		e.log.Warnw("after hook failed", "hook", point.String(), "order_id", o.ID, "err", err)
	}
}
