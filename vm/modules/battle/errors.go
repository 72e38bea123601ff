package battle

import "errors"

// Battle transition errors. Every handler returns one of these (wrapped with
// context) on a violated precondition and leaves the state untouched; the
// executor's snapshot/rollback guarantees the same for mid-transition
// dependency failures.
var (
	// ErrAssetAlreadyInBattle rejects a second active battle for an asset.
	ErrAssetAlreadyInBattle = errors.New("asset already in an active battle")
	// ErrNotOwner covers both a missing asset and an ownership mismatch;
	// the two are deliberately indistinguishable to the caller.
	ErrNotOwner = errors.New("asset missing or not owned by account")
	// ErrAssetNotEligible rejects an asset whose custody lock is held
	// elsewhere (listed on the market, or claimed by another subsystem).
	ErrAssetNotEligible = errors.New("asset is not eligible for battle")
	// ErrBattleNotFound means no record exists for the battle ID.
	ErrBattleNotFound = errors.New("battle not found")
	// ErrBattleNotPending rejects initiate on a battle past PendingMatch.
	ErrBattleNotPending = errors.New("battle is not awaiting a match")
	// ErrBattleNotInProgress rejects report/flee outside InProgress.
	ErrBattleNotInProgress = errors.New("battle is not in progress")
	// ErrCannotBattleSelf rejects a player or asset matched against itself.
	ErrCannotBattleSelf = errors.New("cannot battle self")
	// ErrNotAuthorizedReporter rejects outcome reports from accounts outside
	// the allow-list. Callers cannot tell a bad actor from bad timing.
	ErrNotAuthorizedReporter = errors.New("account is not an authorized reporter")
	// ErrInvalidParticipant means the reported winning asset matches neither
	// side of the battle.
	ErrInvalidParticipant = errors.New("asset is not a participant in this battle")
	// ErrRewardTransfer wraps a failed winner payout; the whole report
	// operation is aborted, never settled without the reward.
	ErrRewardTransfer = errors.New("reward transfer failed")
	// ErrAssetNotInBattle rejects flee for an asset with no active battle.
	ErrAssetNotInBattle = errors.New("asset is not in a battle")
	// ErrNotParticipant rejects a caller who is neither registered player.
	ErrNotParticipant = errors.New("account is not a participant in this battle")
)
