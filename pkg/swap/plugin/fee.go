package plugin

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/ledger"
)

const bpsDenominator = 10_000

// FlatFee charges a flat basis-point fee on the payout leg of every fill.
// The hook receives the traded slice and shrinks its sell amount; the
// difference stays in the engine vault as withdrawable surplus.
type FlatFee struct {
	mu      sync.RWMutex
	bps     int64
	accrued map[common.Address]*big.Int
}

func NewFlatFee(bps int64) *FlatFee {
	return &FlatFee{
		bps:     bps,
		accrued: make(map[common.Address]*big.Int),
	}
}

func (f *FlatFee) Name() string { return "flat-fee" }

func (f *FlatFee) Hooks() []HookPoint {
	return []HookPoint{BeforeFill}
}

// Enable accepts an optional fee override of the form "bps=24".
func (f *FlatFee) Enable(initData []byte) error {
	s := strings.TrimSpace(string(initData))
	if s == "" {
		return nil
	}
	s, ok := strings.CutPrefix(s, "bps=")
	if !ok {
		return fmt.Errorf("unrecognized fee init data: %q", s)
	}
	bps, err := strconv.ParseInt(s, 10, 64)
	if err != nil || bps < 0 || bps > bpsDenominator {
		return fmt.Errorf("invalid fee bps: %q", s)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.bps = bps
	return nil
}

func (f *FlatFee) Disable(data []byte) error { return nil }

func (f *FlatFee) OnHook(point HookPoint, o ledger.Order) (ledger.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.bps == 0 {
		return o, nil
	}

	fee := new(big.Int).Mul(o.SellAmount, big.NewInt(f.bps))
	fee.Quo(fee, big.NewInt(bpsDenominator))
	if fee.Sign() == 0 {
		return o, nil
	}

	o.SellAmount = new(big.Int).Sub(o.SellAmount, fee)
	if o.SellAmount.Sign() <= 0 {
		return o, fmt.Errorf("fee consumes entire payout of %s", o.SellToken.Hex())
	}

	cur, ok := f.accrued[o.SellToken]
	if !ok {
		cur = new(big.Int)
		f.accrued[o.SellToken] = cur
	}
	cur.Add(cur, fee)

	return o, nil
}

// Accrued returns the total fee collected so far for a token.
func (f *FlatFee) Accrued(token common.Address) *big.Int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	cur, ok := f.accrued[token]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(cur)
}
