// Package router plans, off the settlement path, the best sequence of
// existing orders to satisfy a desired trade. Planning is pure and
// read-only: it never touches the ledger, it only sorts and walks the
// candidate set it is given.
package router

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/ledger"
)

// RequestKind selects which side of the trade is fixed.
type RequestKind uint8

const (
	// ExactInput fixes the amount the taker offers.
	ExactInput RequestKind = iota
	// ExactOutput fixes the amount the taker wants to receive.
	ExactOutput
)

// Request is a desired trade. SourceAmount is set for ExactInput,
// DestinationAmount for ExactOutput.
type Request struct {
	Kind              RequestKind
	SourceToken       common.Address
	DestinationToken  common.Address
	SourceAmount      *big.Int
	DestinationAmount *big.Int
}

// RouteStep is one fill in a plan: pay AmountIn of the source token into
// the given order.
type RouteStep struct {
	OrderID  uint64   `json:"orderId"`
	AmountIn *big.Int `json:"amountIn"`
}

// PlanRoute selects and sequences candidate orders by price to satisfy the
// request. Only orders selling the destination token for the source token
// are considered (the router fills orders, it does not invert them);
// everything else is ignored. If liquidity runs out the plan covers what it
// can; a partial or empty plan is an answer, not an error.
func PlanRoute(req Request, candidates []ledger.Order) []RouteStep {
	matching := make([]ledger.Order, 0, len(candidates))
	for _, o := range candidates {
		if o.SellToken == req.DestinationToken && o.BuyToken == req.SourceToken {
			matching = append(matching, o)
		}
	}
	if len(matching) == 0 {
		return []RouteStep{}
	}

	// Cheapest first: lowest source cost per unit of destination output.
	// Cross-multiplication keeps the comparison exact for amounts of any
	// size; ties keep input order.
	sort.SliceStable(matching, func(i, j int) bool {
		a, b := matching[i], matching[j]
		left := new(big.Int).Mul(a.BuyAmount, b.SellAmount)
		right := new(big.Int).Mul(b.BuyAmount, a.SellAmount)
		return left.Cmp(right) < 0
	})

	switch req.Kind {
	case ExactOutput:
		return allocateExactOutput(req.DestinationAmount, matching)
	default:
		return allocateExactInput(req.SourceAmount, matching)
	}
}

// allocateExactInput greedily spends the requested source amount into the
// cheapest orders first, consuming each order's full buy-side capacity
// before moving to the next.
func allocateExactInput(sourceAmount *big.Int, sorted []ledger.Order) []RouteStep {
	plan := []RouteStep{}
	remaining := new(big.Int).Set(sourceAmount)

	for _, o := range sorted {
		if remaining.Sign() <= 0 {
			break
		}
		take := new(big.Int).Set(o.BuyAmount)
		if take.Cmp(remaining) > 0 {
			take.Set(remaining)
		}
		plan = append(plan, RouteStep{OrderID: o.ID, AmountIn: take})
		remaining.Sub(remaining, take)
	}
	return plan
}

// allocateExactOutput walks the same price-sorted list, converting each
// order's sell-side capacity into the buy-side input needed, until the
// destination target is met or candidates run out.
func allocateExactOutput(destinationAmount *big.Int, sorted []ledger.Order) []RouteStep {
	plan := []RouteStep{}
	needed := new(big.Int).Set(destinationAmount)

	for _, o := range sorted {
		if needed.Sign() <= 0 {
			break
		}
		if o.SellAmount.Cmp(needed) <= 0 {
			// Whole order: its full buy amount is the input.
			plan = append(plan, RouteStep{OrderID: o.ID, AmountIn: new(big.Int).Set(o.BuyAmount)})
			needed.Sub(needed, o.SellAmount)
			continue
		}
		amountIn := ledger.QuoteExactOutput(o.SellAmount, o.BuyAmount, needed)
		plan = append(plan, RouteStep{OrderID: o.ID, AmountIn: amountIn})
		needed.SetInt64(0)
	}
	return plan
}

// PlanTotals sums a plan's source input and, against the candidate set it
// was computed from, the destination output it would produce. Useful for
// callers comparing a partial plan against their target.
func PlanTotals(plan []RouteStep, candidates []ledger.Order) (in, out *big.Int) {
	byID := make(map[uint64]ledger.Order, len(candidates))
	for _, o := range candidates {
		byID[o.ID] = o
	}

	in, out = new(big.Int), new(big.Int)
	for _, step := range plan {
		o, ok := byID[step.OrderID]
		if !ok {
			continue
		}
		in.Add(in, step.AmountIn)
		out.Add(out, ledger.QuoteExactInput(o.SellAmount, o.BuyAmount, step.AmountIn))
	}
	return in, out
}
