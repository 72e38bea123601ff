package indexer_test

import (
	"testing"

	"github.com/petforge/petchain/events"
	"github.com/petforge/petchain/indexer"
	"github.com/petforge/petchain/internal/testutil"
)

func newIndexer(t *testing.T) (*indexer.Indexer, *events.Emitter) {
	t.Helper()
	em := events.NewEmitter()
	return indexer.New(testutil.NewMemDB(), em), em
}

func assetOwned(ev events.EventType, owner, assetID string) events.Event {
	return events.Event{Type: ev, Data: map[string]any{"owner": owner, "asset_id": assetID}}
}

func TestOwnerIndexFollowsMintAndBurn(t *testing.T) {
	idx, em := newIndexer(t)

	em.Emit(assetOwned(events.EventAssetMinted, "alice", "pet-1"))
	em.Emit(assetOwned(events.EventAssetMinted, "alice", "pet-2"))

	ids, err := idx.GetAssetsByOwner("alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "pet-1" || ids[1] != "pet-2" {
		t.Fatalf("alice assets: %v", ids)
	}

	em.Emit(assetOwned(events.EventAssetBurned, "alice", "pet-1"))
	ids, _ = idx.GetAssetsByOwner("alice")
	if len(ids) != 1 || ids[0] != "pet-2" {
		t.Errorf("after burn: %v", ids)
	}
}

func TestOwnerIndexFollowsTransfer(t *testing.T) {
	idx, em := newIndexer(t)
	em.Emit(assetOwned(events.EventAssetMinted, "alice", "pet-1"))
	em.Emit(events.Event{Type: events.EventAssetTransfer, Data: map[string]any{
		"from": "alice", "to": "bob", "asset_id": "pet-1",
	}})

	if ids, _ := idx.GetAssetsByOwner("alice"); len(ids) != 0 {
		t.Errorf("alice should have no assets, got %v", ids)
	}
	if ids, _ := idx.GetAssetsByOwner("bob"); len(ids) != 1 || ids[0] != "pet-1" {
		t.Errorf("bob assets: %v", ids)
	}
}

func TestOwnerIndexFollowsMarketBuy(t *testing.T) {
	idx, em := newIndexer(t)
	em.Emit(assetOwned(events.EventAssetMinted, "seller", "pet-1"))
	em.Emit(events.Event{Type: events.EventMarketBuy, Data: map[string]any{
		"seller": "seller", "buyer": "buyer", "asset_id": "pet-1", "price": uint64(100),
	}})

	if ids, _ := idx.GetAssetsByOwner("seller"); len(ids) != 0 {
		t.Errorf("seller should have no assets, got %v", ids)
	}
	if ids, _ := idx.GetAssetsByOwner("buyer"); len(ids) != 1 {
		t.Errorf("buyer assets: %v", ids)
	}
}

func TestBattleIndexTracksBothPlayers(t *testing.T) {
	idx, em := newIndexer(t)

	em.Emit(events.Event{Type: events.EventBattleRegistered, Data: map[string]any{
		"battle_id": uint32(1), "player": "alice", "asset": "pet-1",
	}})
	em.Emit(events.Event{Type: events.EventBattleInitiated, Data: map[string]any{
		"battle_id": uint32(1), "player1": "alice", "player2": "bob",
	}})
	em.Emit(events.Event{Type: events.EventBattleRegistered, Data: map[string]any{
		"battle_id": uint32(2), "player": "alice", "asset": "pet-3",
	}})

	ids, err := idx.GetBattlesByPlayer("alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("alice battles: %v", ids)
	}
	ids, _ = idx.GetBattlesByPlayer("bob")
	if len(ids) != 1 || ids[0] != 1 {
		t.Errorf("bob battles: %v", ids)
	}
	if ids, _ := idx.GetBattlesByPlayer("carol"); len(ids) != 0 {
		t.Errorf("carol battles: %v", ids)
	}
}

// Battle IDs survive a JSON round-trip, where numbers decode as float64.
func TestBattleIndexAcceptsFloat64IDs(t *testing.T) {
	idx, em := newIndexer(t)
	em.Emit(events.Event{Type: events.EventBattleRegistered, Data: map[string]any{
		"battle_id": float64(9), "player": "alice",
	}})
	ids, _ := idx.GetBattlesByPlayer("alice")
	if len(ids) != 1 || ids[0] != 9 {
		t.Errorf("battles: %v", ids)
	}
}

func TestMalformedEventsIgnored(t *testing.T) {
	idx, em := newIndexer(t)
	em.Emit(events.Event{Type: events.EventAssetMinted, Data: map[string]any{"owner": "alice"}})
	em.Emit(events.Event{Type: events.EventBattleRegistered, Data: map[string]any{"player": "alice"}})

	if ids, _ := idx.GetAssetsByOwner("alice"); len(ids) != 0 {
		t.Errorf("assets: %v", ids)
	}
	if ids, _ := idx.GetBattlesByPlayer("alice"); len(ids) != 0 {
		t.Errorf("battles: %v", ids)
	}
}
