package asset_test

import (
	"errors"
	"testing"

	"github.com/petforge/petchain/core"
	"github.com/petforge/petchain/internal/testutil"
	"github.com/petforge/petchain/vm/modules/asset"
)

func newAsset(t *testing.T, st core.State, id, owner string) {
	t.Helper()
	if err := st.SetAsset(&core.Asset{ID: id, TemplateID: "tmpl", Owner: owner}); err != nil {
		t.Fatal(err)
	}
}

func TestCustodyLockUnlock(t *testing.T) {
	st := testutil.NewStateDB()
	c := asset.Custody{}
	newAsset(t, st, "pet-1", "alice")

	if err := c.Lock(st, "alice", "pet-1", "battle:1"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	unlocked, err := c.IsUnlocked(st, "pet-1")
	if err != nil {
		t.Fatal(err)
	}
	if unlocked {
		t.Error("asset should be locked")
	}

	if err := c.Unlock(st, "pet-1", "battle:1"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	unlocked, _ = c.IsUnlocked(st, "pet-1")
	if !unlocked {
		t.Error("asset should be free after unlock")
	}
}

func TestCustodyLockRejectsWrongOwner(t *testing.T) {
	st := testutil.NewStateDB()
	c := asset.Custody{}
	newAsset(t, st, "pet-1", "alice")

	if err := c.Lock(st, "bob", "pet-1", "battle:1"); !errors.Is(err, asset.ErrNotOwner) {
		t.Errorf("got %v want ErrNotOwner", err)
	}
}

func TestCustodyDoubleLockFails(t *testing.T) {
	st := testutil.NewStateDB()
	c := asset.Custody{}
	newAsset(t, st, "pet-1", "alice")

	if err := c.Lock(st, "alice", "pet-1", "battle:1"); err != nil {
		t.Fatal(err)
	}
	// Even the same holder cannot re-lock.
	if err := c.Lock(st, "alice", "pet-1", "battle:1"); !errors.Is(err, asset.ErrLocked) {
		t.Errorf("same holder: got %v want ErrLocked", err)
	}
	if err := c.Lock(st, "alice", "pet-1", "market:x"); !errors.Is(err, asset.ErrLocked) {
		t.Errorf("other holder: got %v want ErrLocked", err)
	}
}

// TestCustodyUnlockHolderMismatch ensures one subsystem can never release
// another's claim.
func TestCustodyUnlockHolderMismatch(t *testing.T) {
	st := testutil.NewStateDB()
	c := asset.Custody{}
	newAsset(t, st, "pet-1", "alice")

	if err := c.Lock(st, "alice", "pet-1", "battle:1"); err != nil {
		t.Fatal(err)
	}
	if err := c.Unlock(st, "pet-1", "market:x"); !errors.Is(err, asset.ErrNotLocked) {
		t.Errorf("got %v want ErrNotLocked", err)
	}
	// Unlocking a free asset fails too.
	_ = c.Unlock(st, "pet-1", "battle:1")
	if err := c.Unlock(st, "pet-1", "battle:1"); !errors.Is(err, asset.ErrNotLocked) {
		t.Errorf("free asset: got %v want ErrNotLocked", err)
	}
}

func TestCustodyTransferBlockedWhileLocked(t *testing.T) {
	st := testutil.NewStateDB()
	c := asset.Custody{}
	newAsset(t, st, "pet-1", "alice")

	if err := c.Lock(st, "alice", "pet-1", "battle:1"); err != nil {
		t.Fatal(err)
	}
	if err := c.Transfer(st, "pet-1", "bob"); !errors.Is(err, asset.ErrLocked) {
		t.Errorf("got %v want ErrLocked", err)
	}

	_ = c.Unlock(st, "pet-1", "battle:1")
	if err := c.Transfer(st, "pet-1", "bob"); err != nil {
		t.Fatalf("transfer after unlock: %v", err)
	}
	owner, err := c.OwnerOf(st, "pet-1")
	if err != nil {
		t.Fatal(err)
	}
	if owner != "bob" {
		t.Errorf("owner: got %s want bob", owner)
	}
}

func TestCustodyMissingAsset(t *testing.T) {
	st := testutil.NewStateDB()
	c := asset.Custody{}

	if _, err := c.OwnerOf(st, "ghost"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("OwnerOf: got %v want ErrNotFound", err)
	}
	if err := c.Lock(st, "alice", "ghost", "battle:1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Lock: got %v want ErrNotFound", err)
	}
}
