package ledger

import "math/big"

// QuoteExactInput computes the taker's sell-token payout for paying amountIn
// of the buy token against an order with remaining amounts (sell, buy):
//
//	amountOut = floor(sell * amountIn / buy)
//
// The payout is rounded down so the maker's remaining order stays at least
// as well backed as before. Requires 0 < amountIn <= buy.
func QuoteExactInput(sell, buy, amountIn *big.Int) *big.Int {
	out := new(big.Int).Mul(sell, amountIn)
	return out.Quo(out, buy)
}

// QuoteExactOutput computes the buy-token input a taker must pay to receive
// amountOut of the sell token:
//
//	amountIn = ceil(buy * amountOut / sell)
//
// The input is rounded up, the mirror of QuoteExactInput's floor: rounding
// always favors the maker. Requires 0 < amountOut <= sell.
func QuoteExactOutput(sell, buy, amountOut *big.Int) *big.Int {
	num := new(big.Int).Mul(buy, amountOut)
	q, r := new(big.Int).QuoRem(num, sell, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
