package core

import "errors"

// BattleStatus is the battle lifecycle state. Transitions are strictly
// one-directional:
//
//	PendingMatch → InProgress → Concluded
//	                         \→ Aborted
//
// A battle in a terminal state is immutable; records are never deleted.
type BattleStatus string

const (
	BattlePendingMatch BattleStatus = "pending_match"
	BattleInProgress   BattleStatus = "in_progress"
	BattleConcluded    BattleStatus = "concluded"
	BattleAborted      BattleStatus = "aborted"
)

// Terminal reports whether no further transition is possible.
func (s BattleStatus) Terminal() bool {
	switch s {
	case BattleConcluded, BattleAborted:
		return true
	case BattlePendingMatch, BattleInProgress:
		return false
	}
	return false
}

// Valid reports whether s is a known status value.
func (s BattleStatus) Valid() bool {
	switch s {
	case BattlePendingMatch, BattleInProgress, BattleConcluded, BattleAborted:
		return true
	}
	return false
}

// ErrBattleIDOverflow is returned by State.NextBattleID at numeric
// exhaustion of the 32-bit counter.
var ErrBattleIDOverflow = errors.New("battle id counter exhausted")

// Battle is the permanent record of a single match between two assets.
//
// Player2/Asset2 are empty until the match is initiated; Winner/Loser pairs
// are empty until the battle reaches a terminal status. Status is the
// authoritative discriminator for which fields are meaningful. Heights are
// block heights of the transaction that caused each transition.
type Battle struct {
	ID           uint32       `json:"id"`
	Player1      string       `json:"player1"`
	Asset1       string       `json:"asset1"`
	Player2      string       `json:"player2,omitempty"`
	Asset2       string       `json:"asset2,omitempty"`
	Status       BattleStatus `json:"status"`
	Winner       string       `json:"winner,omitempty"`
	WinnerAsset  string       `json:"winner_asset,omitempty"`
	Loser        string       `json:"loser,omitempty"`
	LoserAsset   string       `json:"loser_asset,omitempty"`
	Reward       uint64       `json:"reward,omitempty"` // tokens paid to the winner; 0 on abort
	RegisteredAt int64        `json:"registered_at"`
	InitiatedAt  int64        `json:"initiated_at,omitempty"`
	ConcludedAt  int64        `json:"concluded_at,omitempty"`
}

// Participant reports whether account is one of the battle's two players.
func (b *Battle) Participant(account string) bool {
	return account == b.Player1 || (b.Player2 != "" && account == b.Player2)
}
