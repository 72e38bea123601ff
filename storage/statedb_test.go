package storage_test

import (
	"errors"
	"testing"

	"github.com/petforge/petchain/core"
	"github.com/petforge/petchain/internal/testutil"
	"github.com/petforge/petchain/storage"
)

func TestAccountRoundtrip(t *testing.T) {
	st := testutil.NewStateDB()

	acc := &core.Account{Address: "alice", Balance: 500, Nonce: 3}
	if err := st.SetAccount(acc); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetAccount("alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.Balance != 500 || got.Nonce != 3 {
		t.Errorf("got %+v", got)
	}

	// Unknown accounts read as zero-value, not an error.
	fresh, err := st.GetAccount("bob")
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Balance != 0 || fresh.Nonce != 0 {
		t.Errorf("fresh account should be zero-valued, got %+v", fresh)
	}
}

func TestBattleRoundtrip(t *testing.T) {
	st := testutil.NewStateDB()

	b := &core.Battle{
		ID:      7,
		Player1: "alice",
		Asset1:  "pet-1",
		Status:  core.BattlePendingMatch,
	}
	if err := st.SetBattle(b); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetBattle(7)
	if err != nil {
		t.Fatal(err)
	}
	if got.Player1 != "alice" || got.Status != core.BattlePendingMatch {
		t.Errorf("got %+v", got)
	}

	if _, err := st.GetBattle(99); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing battle: got %v want ErrNotFound", err)
	}
}

// TestNextBattleIDDense verifies IDs are allocated densely from zero.
func TestNextBattleIDDense(t *testing.T) {
	st := testutil.NewStateDB()

	for want := uint32(0); want < 5; want++ {
		id, err := st.NextBattleID()
		if err != nil {
			t.Fatal(err)
		}
		if id != want {
			t.Fatalf("got id %d want %d", id, want)
		}
	}
}

// TestNextBattleIDRevert verifies a reverted allocation does not burn the ID:
// the counter advance lives in the write buffer covered by the snapshot.
func TestNextBattleIDRevert(t *testing.T) {
	st := testutil.NewStateDB()

	snap, err := st.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if id, _ := st.NextBattleID(); id != 0 {
		t.Fatalf("first allocation: got %d want 0", id)
	}
	if err := st.RevertToSnapshot(snap); err != nil {
		t.Fatal(err)
	}
	if id, _ := st.NextBattleID(); id != 0 {
		t.Errorf("after revert: got %d want 0 (ID must not be burned)", id)
	}
}

func TestAssetBattleIndex(t *testing.T) {
	st := testutil.NewStateDB()

	if _, engaged, err := st.GetAssetBattle("pet-1"); err != nil || engaged {
		t.Fatalf("fresh asset: engaged=%v err=%v", engaged, err)
	}
	if err := st.SetAssetBattle("pet-1", 42); err != nil {
		t.Fatal(err)
	}
	id, engaged, err := st.GetAssetBattle("pet-1")
	if err != nil {
		t.Fatal(err)
	}
	if !engaged || id != 42 {
		t.Errorf("got id=%d engaged=%v", id, engaged)
	}
	if err := st.ClearAssetBattle("pet-1"); err != nil {
		t.Fatal(err)
	}
	if _, engaged, _ := st.GetAssetBattle("pet-1"); engaged {
		t.Error("cleared asset should not be engaged")
	}
}

// TestSnapshotRevert verifies revert drops all writes after the snapshot,
// including deletes.
func TestSnapshotRevert(t *testing.T) {
	st := testutil.NewStateDB()

	if err := st.SetAccount(&core.Account{Address: "alice", Balance: 100}); err != nil {
		t.Fatal(err)
	}
	snap, err := st.Snapshot()
	if err != nil {
		t.Fatal(err)
	}

	_ = st.SetAccount(&core.Account{Address: "alice", Balance: 1})
	_ = st.SetAssetBattle("pet-1", 3)

	if err := st.RevertToSnapshot(snap); err != nil {
		t.Fatal(err)
	}
	acc, _ := st.GetAccount("alice")
	if acc.Balance != 100 {
		t.Errorf("balance after revert: got %d want 100", acc.Balance)
	}
	if _, engaged, _ := st.GetAssetBattle("pet-1"); engaged {
		t.Error("index write should have been reverted")
	}
}

// TestComputeRootDeterministic verifies two states with the same contents
// produce the same root regardless of write order, and that battle state
// participates in the root.
func TestComputeRootDeterministic(t *testing.T) {
	a := testutil.NewStateDB()
	b := testutil.NewStateDB()

	_ = a.SetAccount(&core.Account{Address: "alice", Balance: 1})
	_ = a.SetAccount(&core.Account{Address: "bob", Balance: 2})
	_ = b.SetAccount(&core.Account{Address: "bob", Balance: 2})
	_ = b.SetAccount(&core.Account{Address: "alice", Balance: 1})

	if a.ComputeRoot() != b.ComputeRoot() {
		t.Error("same contents should produce the same root")
	}

	if _, err := a.NextBattleID(); err != nil {
		t.Fatal(err)
	}
	if a.ComputeRoot() == b.ComputeRoot() {
		t.Error("battle counter must be part of the state root")
	}
}

// TestCommitPersists verifies committed writes survive a fresh StateDB over
// the same backing store.
func TestCommitPersists(t *testing.T) {
	db := testutil.NewMemDB()
	st := storage.NewStateDB(db)

	_ = st.SetAccount(&core.Account{Address: "alice", Balance: 77})
	_ = st.SetBattle(&core.Battle{ID: 1, Player1: "alice", Asset1: "pet-1", Status: core.BattleConcluded})
	if err := st.Commit(); err != nil {
		t.Fatal(err)
	}

	st2 := storage.NewStateDB(db)
	acc, err := st2.GetAccount("alice")
	if err != nil {
		t.Fatal(err)
	}
	if acc.Balance != 77 {
		t.Errorf("balance after reopen: got %d want 77", acc.Balance)
	}
	b, err := st2.GetBattle(1)
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != core.BattleConcluded {
		t.Errorf("battle status after reopen: got %s", b.Status)
	}
}

// TestCommitThenRootStable ensures the root is identical before and after
// Commit: flushing the buffer must not change the logical state.
func TestCommitThenRootStable(t *testing.T) {
	st := testutil.NewStateDB()

	_ = st.SetAccount(&core.Account{Address: "alice", Balance: 5})
	_ = st.SetAssetBattle("pet-1", 9)
	before := st.ComputeRoot()
	if err := st.Commit(); err != nil {
		t.Fatal(err)
	}
	if after := st.ComputeRoot(); after != before {
		t.Errorf("root changed across commit: %s != %s", before, after)
	}
}
