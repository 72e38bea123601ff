package asset

import (
	"errors"
	"fmt"

	"github.com/petforge/petchain/core"
)

// Custody lock errors.
var (
	// ErrNotOwner is returned when the named owner does not hold the asset.
	ErrNotOwner = errors.New("account does not own asset")
	// ErrLocked is returned when an operation requires a free asset but a
	// subsystem currently holds its custody lock.
	ErrLocked = errors.New("asset is locked")
	// ErrNotLocked is returned by Unlock when the asset is not locked by the
	// given holder.
	ErrNotLocked = errors.New("asset is not locked by holder")
)

// Custody is the asset custody-lock service. The lock is a logical
// resource-ownership claim, not a mutex: it prevents a later transaction
// from transferring, burning, listing, or battling an asset that another
// subsystem has mid-flight. Holders are opaque tags such as "battle:7" or
// "market:<listing>"; whichever subsystem set the tag is the only one that
// can release it.
//
// Consumers (the battle and market modules) depend on this through their own
// narrow interfaces so they can be tested against a fake service.
type Custody struct{}

// OwnerOf returns the current owner of assetID, or core.ErrNotFound when the
// asset does not exist.
func (Custody) OwnerOf(st core.State, assetID string) (string, error) {
	a, err := st.GetAsset(assetID)
	if err != nil {
		return "", err
	}
	return a.Owner, nil
}

// IsUnlocked reports whether no subsystem holds the asset's custody lock.
func (Custody) IsUnlocked(st core.State, assetID string) (bool, error) {
	a, err := st.GetAsset(assetID)
	if err != nil {
		return false, err
	}
	return a.LockedBy == "", nil
}

// Lock claims the asset for holder. It fails if the asset does not exist,
// owner does not hold it, or any subsystem (including holder itself) already
// locked it — Lock must never be called twice without an intervening Unlock.
func (Custody) Lock(st core.State, owner, assetID, holder string) error {
	if holder == "" {
		return errors.New("custody holder tag required")
	}
	a, err := st.GetAsset(assetID)
	if err != nil {
		return err
	}
	if a.Owner != owner {
		return fmt.Errorf("lock %q: %w", assetID, ErrNotOwner)
	}
	if a.LockedBy != "" {
		return fmt.Errorf("lock %q held by %q: %w", assetID, a.LockedBy, ErrLocked)
	}
	a.LockedBy = holder
	return st.SetAsset(a)
}

// Unlock releases the asset's custody lock. It fails unless the asset is
// currently locked by exactly the given holder, so one subsystem can never
// release another's claim.
func (Custody) Unlock(st core.State, assetID, holder string) error {
	a, err := st.GetAsset(assetID)
	if err != nil {
		return err
	}
	if a.LockedBy != holder {
		return fmt.Errorf("unlock %q held by %q: %w", assetID, a.LockedBy, ErrNotLocked)
	}
	a.LockedBy = ""
	return st.SetAsset(a)
}

// Transfer moves the asset to a new owner. A locked asset cannot move.
func (Custody) Transfer(st core.State, assetID, to string) error {
	a, err := st.GetAsset(assetID)
	if err != nil {
		return err
	}
	if a.LockedBy != "" {
		return fmt.Errorf("transfer %q held by %q: %w", assetID, a.LockedBy, ErrLocked)
	}
	a.Owner = to
	return st.SetAsset(a)
}
