package engine

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/ledger"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/plugin"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/registry"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/treasury"
)

func TestWithdrawRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	f.bank.Mint(tokenA, vault, big.NewInt(100))

	err := f.engine.Withdraw(alice, tokenA, alice, big.NewInt(10))
	if !errors.Is(err, ErrNotAdmin) {
		t.Errorf("got %v, want ErrNotAdmin", err)
	}
}

func TestWithdrawNeverTouchesBacking(t *testing.T) {
	f := newFixture(t)
	f.fund(t, tokenA, alice, 1000)

	// 100 escrowed for the order plus 40 of loose surplus in the vault.
	if _, err := f.engine.CreateOrder(alice, spec(100, 50)); err != nil {
		t.Fatalf("create: %v", err)
	}
	f.bank.Mint(tokenA, vault, big.NewInt(40))

	err := f.engine.Withdraw(admin, tokenA, admin, big.NewInt(41))
	var backing treasury.InsufficientBackingError
	if !errors.As(err, &backing) {
		t.Fatalf("over-withdrawal: got %v, want InsufficientBackingError", err)
	}

	if err := f.engine.Withdraw(admin, tokenA, admin, big.NewInt(40)); err != nil {
		t.Fatalf("surplus withdrawal: %v", err)
	}
	if got := f.bank.BalanceOf(tokenA, admin); got.Cmp(big.NewInt(40)) != 0 {
		t.Errorf("admin received %s, want 40", got)
	}
	// The escrow backing the live order is intact.
	if got := f.bank.BalanceOf(tokenA, vault); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("vault = %s, want 100", got)
	}
}

func TestWithdrawRejectsNonPositive(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Withdraw(admin, tokenA, admin, big.NewInt(0)); !errors.Is(err, ErrInvalidFillAmount) {
		t.Errorf("zero withdrawal: got %v, want ErrInvalidFillAmount", err)
	}
}

func TestEnableDisablePlugin(t *testing.T) {
	f := newFixture(t)
	wl := plugin.NewWhitelist(tokenA, tokenB)

	if err := f.engine.EnablePlugin(alice, wl, nil); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("non-admin enable: got %v, want ErrNotAdmin", err)
	}

	if err := f.engine.EnablePlugin(admin, wl, nil); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if got := f.engine.ListPlugins(); len(got) != 1 || got[0].Name != "token-whitelist" {
		t.Errorf("plugins = %+v", got)
	}

	// Enabling twice is a quiet no-op.
	if err := f.engine.EnablePlugin(admin, wl, nil); err != nil {
		t.Fatalf("re-enable: %v", err)
	}
	if got := f.engine.ListPlugins(); len(got) != 1 {
		t.Errorf("re-enable duplicated registration: %d entries", len(got))
	}

	if err := f.engine.DisablePlugin(admin, wl, nil); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if got := f.engine.ListPlugins(); len(got) != 0 {
		t.Errorf("plugins after disable = %+v", got)
	}
}

// recordingSink captures emitted events for assertions.
type recordingSink struct {
	events []Event
}

func (r *recordingSink) Publish(ev Event) { r.events = append(r.events, ev) }

func (r *recordingSink) count(et EventType) int {
	n := 0
	for _, ev := range r.events {
		if ev.Type == et {
			n++
		}
	}
	return n
}

func TestEnablePluginSignalsOnce(t *testing.T) {
	f := newFixture(t)
	sink := &recordingSink{}
	f.engine.AddSink(sink)
	wl := plugin.NewWhitelist(tokenA, tokenB)

	if err := f.engine.EnablePlugin(admin, wl, nil); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if err := f.engine.EnablePlugin(admin, wl, nil); err != nil {
		t.Fatalf("re-enable: %v", err)
	}
	if got := sink.count(EventPluginEnabled); got != 1 {
		t.Errorf("enabled signals = %d, want 1", got)
	}

	if err := f.engine.DisablePlugin(admin, wl, nil); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if err := f.engine.DisablePlugin(admin, wl, nil); err != nil {
		t.Fatalf("re-disable: %v", err)
	}
	if got := sink.count(EventPluginDisabled); got != 1 {
		t.Errorf("disabled signals = %d, want 1", got)
	}
}

// An engine configured without an administrator must treat the whole admin
// surface as locked; matching the zero address must not count as admin.
func TestZeroAdminLocksAdminSurface(t *testing.T) {
	f := newFixture(t)

	eng := New(Config{Vault: vault, Clock: f.clock},
		ledger.NewLedger(nil),
		treasury.NewTracker(VaultBalance{Bank: f.bank, Vault: vault}, nil),
		registry.NewOwnerRegistry(nil),
		plugin.NewPipeline(), f.bank, nil)
	f.bank.Mint(tokenA, vault, big.NewInt(100))

	var zero common.Address
	if err := eng.Withdraw(zero, tokenA, alice, big.NewInt(10)); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("zero-caller withdraw: got %v, want ErrNotAdmin", err)
	}
	if err := eng.EnablePlugin(zero, plugin.NewWhitelist(tokenA), nil); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("zero-caller enable: got %v, want ErrNotAdmin", err)
	}
	if err := eng.TransferAdmin(zero, alice); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("zero-caller admin grab: got %v, want ErrNotAdmin", err)
	}
}

func TestTransferAdmin(t *testing.T) {
	f := newFixture(t)
	newAdmin := common.HexToAddress("0xDD00000000000000000000000000000000000000")

	if err := f.engine.TransferAdmin(alice, newAdmin); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("non-admin hand-off: got %v, want ErrNotAdmin", err)
	}
	if err := f.engine.TransferAdmin(admin, newAdmin); err != nil {
		t.Fatalf("hand-off: %v", err)
	}

	// The old admin is fully demoted.
	f.bank.Mint(tokenA, vault, big.NewInt(10))
	if err := f.engine.Withdraw(admin, tokenA, admin, big.NewInt(10)); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("old admin still privileged: %v", err)
	}
	if err := f.engine.Withdraw(newAdmin, tokenA, newAdmin, big.NewInt(10)); err != nil {
		t.Errorf("new admin withdrawal: %v", err)
	}
}
