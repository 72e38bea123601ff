package market_test

import (
	"errors"
	"testing"

	"github.com/petforge/petchain/core"
	"github.com/petforge/petchain/crypto"
	"github.com/petforge/petchain/events"
	"github.com/petforge/petchain/internal/testutil"
	"github.com/petforge/petchain/storage"
	"github.com/petforge/petchain/vm"
	"github.com/petforge/petchain/vm/modules/asset"
	"github.com/petforge/petchain/vm/modules/economy"
	"github.com/petforge/petchain/vm/modules/market"
	"github.com/petforge/petchain/wallet"
)

type marketEnv struct {
	state         *storage.StateDB
	exec          *vm.Executor
	seller, buyer *wallet.Wallet
}

func newMarketEnv(t *testing.T) *marketEnv {
	t.Helper()
	e := &marketEnv{state: storage.NewStateDB(testutil.NewMemDB())}
	e.seller, _ = wallet.Generate()
	e.buyer, _ = wallet.Generate()

	for _, w := range []*wallet.Wallet{e.seller, e.buyer} {
		if err := e.state.SetAccount(&core.Account{Address: w.PubKey(), Balance: 1000}); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.state.SetAsset(&core.Asset{ID: "pet-1", TemplateID: "tmpl", Owner: e.seller.PubKey(), Tradeable: true}); err != nil {
		t.Fatal(err)
	}

	registry := vm.NewRegistry()
	asset.Register(registry)
	economy.Register(registry)
	market.Register(registry)
	e.exec = vm.NewExecutor(registry, e.state, events.NewEmitter())
	return e
}

func (e *marketEnv) send(t *testing.T, w *wallet.Wallet, typ core.TxType, payload any) (string, error) {
	t.Helper()
	acc, err := e.state.GetAccount(w.PubKey())
	if err != nil {
		t.Fatal(err)
	}
	tx, err := w.NewTx("petchain-test", typ, acc.Nonce, 0, payload)
	if err != nil {
		t.Fatal(err)
	}
	block := core.NewBlock(1, "prev", w.PubKey(), []*core.Transaction{tx})
	return tx.ID, e.exec.ExecuteTx(block, tx)
}

func (e *marketEnv) list(t *testing.T, assetID string, price uint64) string {
	t.Helper()
	txID, err := e.send(t, e.seller, core.TxListMarket, core.ListMarketPayload{AssetID: assetID, Price: price})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return crypto.Hash([]byte(txID + ":listing:" + assetID))
}

func TestListLocksAsset(t *testing.T) {
	e := newMarketEnv(t)

	listingID := e.list(t, "pet-1", 100)

	listing, err := e.state.GetListing(listingID)
	if err != nil {
		t.Fatal(err)
	}
	if !listing.Active || listing.Price != 100 {
		t.Errorf("listing: %+v", listing)
	}
	a, _ := e.state.GetAsset("pet-1")
	if a.LockedBy != "market:"+listingID {
		t.Errorf("lock holder: got %q", a.LockedBy)
	}

	// A listed asset cannot be listed again.
	if _, err := e.send(t, e.seller, core.TxListMarket, core.ListMarketPayload{AssetID: "pet-1", Price: 5}); !errors.Is(err, asset.ErrLocked) {
		t.Errorf("double list: got %v want ErrLocked", err)
	}
}

func TestCancelReleasesAsset(t *testing.T) {
	e := newMarketEnv(t)

	listingID := e.list(t, "pet-1", 100)

	// Only the seller may cancel.
	if _, err := e.send(t, e.buyer, core.TxCancelMarket, core.CancelMarketPayload{ListingID: listingID}); err == nil {
		t.Error("cancel by non-seller should fail")
	}

	if _, err := e.send(t, e.seller, core.TxCancelMarket, core.CancelMarketPayload{ListingID: listingID}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	a, _ := e.state.GetAsset("pet-1")
	if a.LockedBy != "" {
		t.Errorf("asset should be free after cancel, held by %q", a.LockedBy)
	}
	listing, _ := e.state.GetListing(listingID)
	if listing.Active {
		t.Error("cancelled listing should be inactive")
	}
}

func TestBuyTransfersAssetAndPayment(t *testing.T) {
	e := newMarketEnv(t)

	listingID := e.list(t, "pet-1", 100)

	if _, err := e.send(t, e.buyer, core.TxBuyMarket, core.BuyMarketPayload{ListingID: listingID}); err != nil {
		t.Fatalf("buy: %v", err)
	}

	a, _ := e.state.GetAsset("pet-1")
	if a.Owner != e.buyer.PubKey() {
		t.Errorf("owner: got %s want buyer", a.Owner)
	}
	if a.LockedBy != "" {
		t.Errorf("asset should be free after sale, held by %q", a.LockedBy)
	}

	sellerAcc, _ := e.state.GetAccount(e.seller.PubKey())
	buyerAcc, _ := e.state.GetAccount(e.buyer.PubKey())
	if sellerAcc.Balance != 1100 {
		t.Errorf("seller balance: got %d want 1100", sellerAcc.Balance)
	}
	if buyerAcc.Balance != 900 {
		t.Errorf("buyer balance: got %d want 900", buyerAcc.Balance)
	}

	// Sold listings cannot be bought twice.
	if _, err := e.send(t, e.buyer, core.TxBuyMarket, core.BuyMarketPayload{ListingID: listingID}); err == nil {
		t.Error("second buy should fail")
	}
}

func TestBuyFailsWithInsufficientFunds(t *testing.T) {
	e := newMarketEnv(t)

	listingID := e.list(t, "pet-1", 5000)

	if _, err := e.send(t, e.buyer, core.TxBuyMarket, core.BuyMarketPayload{ListingID: listingID}); !errors.Is(err, economy.ErrInsufficientFunds) {
		t.Errorf("got %v want ErrInsufficientFunds", err)
	}
	// Failed buy leaves the listing and lock untouched.
	a, _ := e.state.GetAsset("pet-1")
	if a.Owner != e.seller.PubKey() || a.LockedBy == "" {
		t.Errorf("asset after failed buy: %+v", a)
	}
}

func TestListNonTradeableAssetFails(t *testing.T) {
	e := newMarketEnv(t)
	if err := e.state.SetAsset(&core.Asset{ID: "pet-2", TemplateID: "tmpl", Owner: e.seller.PubKey(), Tradeable: false}); err != nil {
		t.Fatal(err)
	}

	if _, err := e.send(t, e.seller, core.TxListMarket, core.ListMarketPayload{AssetID: "pet-2", Price: 10}); err == nil {
		t.Error("listing a non-tradeable asset should fail")
	}
}
