package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FillRequest is one fill to apply in a batch. A nil AmountIn fills the
// order in full.
type FillRequest struct {
	OrderID   uint64
	AmountIn  *big.Int
	Recipient common.Address
}

// BatchFill applies each request against its own order. Each fill is
// individually atomic; the batch stops at the first failure and surfaces
// it, so nothing is silently swallowed. Cross-request atomicity is the
// caller's concern: compose calls accordingly.
func (e *Engine) BatchFill(taker common.Address, requests []FillRequest) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	for i, req := range requests {
		if err := e.doFill(taker, req.OrderID, req.AmountIn, req.Recipient); err != nil {
			return fmt.Errorf("batch fill request %d (order %d): %w", i, req.OrderID, err)
		}
	}
	return nil
}

// BatchFillInSequence applies a routed multi-hop trade: fill k's output
// token funds fill k+1's input. The executor does not chain amounts
// itself: each hop's AmountIn is caller-supplied (typically from
// router.PlanRoute), so a mis-sequenced batch fails fast on insufficient
// balance or allowance instead of silently mis-paying.
func (e *Engine) BatchFillInSequence(taker common.Address, requests []FillRequest) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	for i, req := range requests {
		if err := e.doFill(taker, req.OrderID, req.AmountIn, req.Recipient); err != nil {
			return fmt.Errorf("sequence fill hop %d (order %d): %w", i, req.OrderID, err)
		}
	}
	return nil
}
