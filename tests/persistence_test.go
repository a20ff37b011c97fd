package tests

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"testing"

	swapcrypto "github.com/StarDEX-Protocol/StarSwap-audit/pkg/crypto"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/storage"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/bank"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/engine"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/ledger"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/plugin"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/registry"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/treasury"
)

// TestRestartRestoresBook drives the engine against a pebble store, tears
// everything down, rebuilds from disk, and checks the book came back.
func TestRestartRestoresBook(t *testing.T) {
	dbPath := fmt.Sprintf("./tmp_test_%s.db", t.Name())
	os.RemoveAll(dbPath)
	t.Cleanup(func() {
		os.RemoveAll(dbPath)
	})

	domain := swapcrypto.DefaultDomain(big.NewInt(1337), vault)
	bk := bank.NewBank(domain, nil)
	bk.Mint(tokenA, maker, units(10))
	bk.Approve(tokenA, maker, vault, units(10))

	buildEngine := func(store *storage.PebbleStore) (*engine.Engine, error) {
		orders := ledger.NewLedger(store)
		if err := orders.Load(); err != nil {
			return nil, err
		}
		owners := registry.NewOwnerRegistry(store)
		if err := owners.Load(); err != nil {
			return nil, err
		}
		backing := treasury.NewTracker(engine.VaultBalance{Bank: bk, Vault: vault}, store)
		if err := backing.Load(); err != nil {
			return nil, err
		}
		return engine.New(engine.Config{Vault: vault, Admin: admin},
			orders, backing, owners, plugin.NewPipeline(), bk, nil), nil
	}

	store, err := storage.NewPebbleStore(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	eng, err := buildEngine(store)
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}

	id, err := eng.CreateOrder(maker, engine.OrderSpec{
		SellToken: tokenA, SellAmount: units(4),
		BuyToken: tokenB, BuyAmount: units(2),
		Deadline: 1_800_000_000,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	// "Restart": fresh store handle, fresh state, same files.
	store2, err := storage.NewPebbleStore(dbPath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer store2.Close()

	eng2, err := buildEngine(store2)
	if err != nil {
		t.Fatalf("rebuild engine: %v", err)
	}

	o, err := eng2.GetOrder(id)
	if err != nil {
		t.Fatalf("order lost across restart: %v", err)
	}
	if o.SellAmount.Cmp(units(4)) != 0 || o.BuyAmount.Cmp(units(2)) != 0 || o.Deadline != 1_800_000_000 {
		t.Errorf("restored order = %+v", o)
	}
	if owner, ok := eng2.OwnerOf(id); !ok || owner != maker {
		t.Errorf("restored owner = %s, %v, want maker", owner.Hex(), ok)
	}
	if got := eng2.Treasury().Obligation(tokenA); got.Cmp(units(4)) != 0 {
		t.Errorf("restored obligation = %s, want %s", got, units(4))
	}

	// The restored book is live: the maker can still cancel.
	if err := eng2.CancelOrder(maker, id); err != nil {
		t.Fatalf("cancel on restored book: %v", err)
	}
	if got := bk.BalanceOf(tokenA, maker); got.Cmp(units(10)) != 0 {
		t.Errorf("maker balance after cancel = %s, want %s", got, units(10))
	}

	// New ids keep counting from where the old instance stopped.
	bk.Approve(tokenA, maker, vault, units(10))
	id2, err := eng2.CreateOrder(maker, engine.OrderSpec{
		SellToken: tokenA, SellAmount: units(1),
		BuyToken: tokenB, BuyAmount: units(1),
	})
	if err != nil {
		t.Fatalf("create after restart: %v", err)
	}
	if id2 <= id {
		t.Errorf("id %d reused or regressed after restart (previous %d)", id2, id)
	}
}

// A consumed id stays dead across restarts even when it was the highest
// one assigned. Were it reissued, a stale fill or cancel aimed at the old
// order would land on whichever order inherits the id.
func TestRestartDoesNotReuseConsumedID(t *testing.T) {
	dbPath := fmt.Sprintf("./tmp_test_%s.db", t.Name())
	os.RemoveAll(dbPath)
	t.Cleanup(func() {
		os.RemoveAll(dbPath)
	})

	order := func(sell int64) ledger.Order {
		return ledger.Order{
			Maker:     maker,
			SellToken: tokenA, SellAmount: big.NewInt(sell),
			BuyToken: tokenB, BuyAmount: big.NewInt(1),
		}
	}

	store, err := storage.NewPebbleStore(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	book := ledger.NewLedger(store)
	if err := book.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	id1, err := book.Create(order(100))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id2, err := book.Create(order(200))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// The highest id is consumed before shutdown.
	if err := book.Remove(id2); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	store2, err := storage.NewPebbleStore(dbPath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer store2.Close()
	book2 := ledger.NewLedger(store2)
	if err := book2.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	var nf ledger.NotFoundError
	if _, err := book2.Get(id2); !errors.As(err, &nf) {
		t.Fatalf("consumed id %d came back live: %v", id2, err)
	}
	id3, err := book2.Create(order(300))
	if err != nil {
		t.Fatalf("create after restart: %v", err)
	}
	if id3 <= id2 {
		t.Errorf("id %d reissued after restart (consumed high-water %d)", id3, id2)
	}
	if id3 <= id1 {
		t.Errorf("id %d regressed below live order %d", id3, id1)
	}
}
