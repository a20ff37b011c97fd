package plugin

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/ledger"
)

// Whitelist vetoes creation and filling of orders whose tokens are not on
// the approved list. It deliberately declares no cancel hooks: revoking a
// token blocks new exposure but never traps a maker's escrowed funds.
type Whitelist struct {
	mu      sync.RWMutex
	allowed map[common.Address]struct{}
}

func NewWhitelist(tokens ...common.Address) *Whitelist {
	w := &Whitelist{allowed: make(map[common.Address]struct{})}
	for _, t := range tokens {
		w.allowed[t] = struct{}{}
	}
	return w
}

func (w *Whitelist) Name() string { return "token-whitelist" }

func (w *Whitelist) Hooks() []HookPoint {
	return []HookPoint{BeforeCreate, BeforeFill}
}

// Enable accepts an optional comma-separated list of token addresses to
// seed the whitelist with.
func (w *Whitelist) Enable(initData []byte) error {
	if len(initData) == 0 {
		return nil
	}
	for _, s := range strings.Split(string(initData), ",") {
		s = strings.TrimSpace(s)
		if !common.IsHexAddress(s) {
			return fmt.Errorf("invalid token address in init data: %q", s)
		}
		w.Allow(common.HexToAddress(s))
	}
	return nil
}

func (w *Whitelist) Disable(data []byte) error { return nil }

// Allow adds a token to the whitelist.
func (w *Whitelist) Allow(token common.Address) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.allowed[token] = struct{}{}
}

// Revoke removes a token. Existing orders remain cancellable.
func (w *Whitelist) Revoke(token common.Address) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.allowed, token)
}

func (w *Whitelist) isAllowed(token common.Address) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.allowed[token]
	return ok
}

func (w *Whitelist) OnHook(point HookPoint, o ledger.Order) (ledger.Order, error) {
	if !w.isAllowed(o.SellToken) {
		return o, fmt.Errorf("token %s is not whitelisted", o.SellToken.Hex())
	}
	if !w.isAllowed(o.BuyToken) {
		return o, fmt.Errorf("token %s is not whitelisted", o.BuyToken.Hex())
	}
	return o, nil
}
