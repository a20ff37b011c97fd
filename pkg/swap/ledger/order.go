package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrSameToken is returned when an order's sell and buy token are identical.
	ErrSameToken = errors.New("sell and buy token must differ")
	// ErrZeroAmount is returned when an order's sell or buy amount is zero or negative.
	ErrZeroAmount = errors.New("order amounts must be positive")
)

// NotFoundError is returned for unknown or already-consumed order ids.
type NotFoundError struct {
	ID uint64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("order %d not found", e.ID)
}

// Order is a standing offer to exchange SellAmount of SellToken for
// BuyAmount of BuyToken. The two amounts always describe the current
// remaining size at the current relative price: a partial fill rescales
// both by the same factor, so SellAmount/BuyAmount is the price anchor.
type Order struct {
	ID         uint64         `json:"id"`
	Maker      common.Address `json:"maker"`
	SellToken  common.Address `json:"sellToken"`
	SellAmount *big.Int       `json:"sellAmount"`
	BuyToken   common.Address `json:"buyToken"`
	BuyAmount  *big.Int       `json:"buyAmount"`
	Deadline   int64          `json:"deadline"` // Unix seconds, 0 = never expires
	CreatedAt  int64          `json:"createdAt"`
}

// Validate checks the order invariants: distinct tokens, positive amounts.
func (o *Order) Validate() error {
	if o.SellToken == o.BuyToken {
		return ErrSameToken
	}
	if o.SellAmount == nil || o.SellAmount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if o.BuyAmount == nil || o.BuyAmount.Sign() <= 0 {
		return ErrZeroAmount
	}
	return nil
}

// Expired reports whether the order's deadline has passed at the given time.
// A zero deadline never expires.
func (o *Order) Expired(now int64) bool {
	return o.Deadline != 0 && now > o.Deadline
}

// Clone returns a deep copy. Orders carry *big.Int amounts, so callers that
// hand orders across package boundaries must not share the originals.
func (o *Order) Clone() Order {
	c := *o
	c.SellAmount = new(big.Int).Set(o.SellAmount)
	c.BuyAmount = new(big.Int).Set(o.BuyAmount)
	return c
}
