// Package battle implements the battle lifecycle state machine: two
// independently owned assets are matched, held in custody for the duration
// of the fight, and released when a trusted reporter asserts the off-chain
// outcome or a participant flees.
//
// The match simulation itself is explicitly not computed on-chain: an
// allow-listed reporter account merely asserts the winner. That keeps the
// on-chain contract small, deterministic, and auditable while the unbounded
// simulation runs off the critical path.
package battle

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/petforge/petchain/core"
	"github.com/petforge/petchain/events"
	"github.com/petforge/petchain/vm"
)

// CustodyService is the slice of the asset custody contract the state
// machine depends on. It is injected at construction so the module can be
// tested against a fake service. Lock must not be called twice without an
// intervening Unlock; Unlock releases only locks held by the same holder
// tag.
type CustodyService interface {
	// OwnerOf returns the asset's owner, or core.ErrNotFound if the asset
	// does not exist.
	OwnerOf(st core.State, assetID string) (string, error)
	// IsUnlocked reports whether no subsystem holds the asset's lock.
	IsUnlocked(st core.State, assetID string) (bool, error)
	Lock(st core.State, owner, assetID, holder string) error
	Unlock(st core.State, assetID, holder string) error
}

// BalanceLedger pays the winner's reward. Implemented by economy.Ledger.
type BalanceLedger interface {
	Transfer(st core.State, from, to string, amount uint64) error
}

// Config carries the chain parameters for the battle module.
type Config struct {
	// Reporters is the allow-list of outcome reporter accounts.
	Reporters []string
	// RewardPot is the pre-funded account rewards are paid from.
	RewardPot string
	// Reward is the amount paid to the winner of a reported battle.
	// Zero disables payouts. Fleeing never pays.
	Reward uint64
}

// Module is the battle state machine. All storage goes through the chain
// state passed in each call; the module itself holds only immutable wiring,
// so any number of independent instances can coexist.
type Module struct {
	custody   CustodyService
	ledger    BalanceLedger
	reporters ReporterSet
	rewardPot string
	reward    uint64
}

// New creates a battle Module with the given collaborators.
func New(custody CustodyService, ledger BalanceLedger, cfg Config) *Module {
	return &Module{
		custody:   custody,
		ledger:    ledger,
		reporters: NewReporterSet(cfg.Reporters),
		rewardPot: cfg.RewardPot,
		reward:    cfg.Reward,
	}
}

// Register wires the battle handlers into r.
func (m *Module) Register(r *vm.Registry) {
	r.Register(core.TxBattleRegister, m.handleRegister)
	r.Register(core.TxBattleInitiate, m.handleInitiate)
	r.Register(core.TxBattleReport, m.handleReport)
	r.Register(core.TxBattleFlee, m.handleFlee)
}

// holderTag is the custody lock tag for a battle. Both assets carry the same
// tag between initiate and the terminal transition.
func holderTag(battleID uint32) string {
	return fmt.Sprintf("battle:%d", battleID)
}

// handleRegister opens a battle slot: the sender's asset is recorded in a
// new PendingMatch battle and indexed as engaged. The asset is not locked
// yet; custody is only taken when an opponent joins.
func (m *Module) handleRegister(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BattleRegisterPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode battle_register payload: %w", err)
	}
	if p.AssetID == "" {
		return errors.New("asset_id required")
	}
	caller := ctx.Tx.From

	if _, engaged, err := ctx.State.GetAssetBattle(p.AssetID); err != nil {
		return err
	} else if engaged {
		return fmt.Errorf("asset %q: %w", p.AssetID, ErrAssetAlreadyInBattle)
	}

	owner, err := m.custody.OwnerOf(ctx.State, p.AssetID)
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("asset %q: %w", p.AssetID, ErrNotOwner)
	}
	if err != nil {
		return err
	}
	if owner != caller {
		return fmt.Errorf("asset %q: %w", p.AssetID, ErrNotOwner)
	}

	unlocked, err := m.custody.IsUnlocked(ctx.State, p.AssetID)
	if err != nil {
		return err
	}
	if !unlocked {
		return fmt.Errorf("asset %q: %w", p.AssetID, ErrAssetNotEligible)
	}

	id, err := ctx.State.NextBattleID()
	if err != nil {
		return err
	}

	b := &core.Battle{
		ID:           id,
		Player1:      caller,
		Asset1:       p.AssetID,
		Status:       core.BattlePendingMatch,
		RegisteredAt: ctx.Block.Header.Height,
	}
	if err := ctx.State.SetBattle(b); err != nil {
		return err
	}
	if err := ctx.State.SetAssetBattle(p.AssetID, id); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventBattleRegistered,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data:        map[string]any{"battle_id": id, "player": caller, "asset": p.AssetID},
		})
	}
	return nil
}

// handleInitiate matches an opponent against a pending battle and takes
// custody of both assets. If either lock fails the executor reverts the
// whole transaction, so there is never a one-sided lock.
func (m *Module) handleInitiate(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BattleInitiatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode battle_initiate payload: %w", err)
	}
	caller := ctx.Tx.From

	b, err := ctx.State.GetBattle(p.BattleID)
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("battle %d: %w", p.BattleID, ErrBattleNotFound)
	}
	if err != nil {
		return err
	}

	switch b.Status {
	case core.BattlePendingMatch:
		// the only state initiate is valid in
	case core.BattleInProgress, core.BattleConcluded, core.BattleAborted:
		return fmt.Errorf("battle %d is %s: %w", b.ID, b.Status, ErrBattleNotPending)
	default:
		return fmt.Errorf("battle %d has unknown status %q", b.ID, b.Status)
	}

	if caller != b.Player1 {
		return fmt.Errorf("battle %d: %w", b.ID, ErrNotParticipant)
	}
	if p.Opponent == caller {
		return fmt.Errorf("player %s: %w", caller, ErrCannotBattleSelf)
	}
	if p.OpponentAsset == b.Asset1 {
		return fmt.Errorf("asset %q: %w", p.OpponentAsset, ErrCannotBattleSelf)
	}

	owner, err := m.custody.OwnerOf(ctx.State, p.OpponentAsset)
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("asset %q: %w", p.OpponentAsset, ErrNotOwner)
	}
	if err != nil {
		return err
	}
	if owner != p.Opponent {
		return fmt.Errorf("asset %q: %w", p.OpponentAsset, ErrNotOwner)
	}

	if _, engaged, err := ctx.State.GetAssetBattle(p.OpponentAsset); err != nil {
		return err
	} else if engaged {
		return fmt.Errorf("asset %q: %w", p.OpponentAsset, ErrAssetAlreadyInBattle)
	}

	unlocked, err := m.custody.IsUnlocked(ctx.State, p.OpponentAsset)
	if err != nil {
		return err
	}
	if !unlocked {
		return fmt.Errorf("asset %q: %w", p.OpponentAsset, ErrAssetNotEligible)
	}

	// Take custody of both sides. Asset1 is re-validated by the lock call
	// itself: its owner may have transferred or listed it since registering.
	holder := holderTag(b.ID)
	if err := m.custody.Lock(ctx.State, b.Player1, b.Asset1, holder); err != nil {
		return fmt.Errorf("lock asset %q: %w", b.Asset1, ErrAssetNotEligible)
	}
	if err := m.custody.Lock(ctx.State, p.Opponent, p.OpponentAsset, holder); err != nil {
		return fmt.Errorf("lock asset %q: %w", p.OpponentAsset, ErrAssetNotEligible)
	}

	b.Player2 = p.Opponent
	b.Asset2 = p.OpponentAsset
	b.Status = core.BattleInProgress
	b.InitiatedAt = ctx.Block.Header.Height
	if err := ctx.State.SetBattle(b); err != nil {
		return err
	}
	if err := ctx.State.SetAssetBattle(p.OpponentAsset, b.ID); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventBattleInitiated,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data: map[string]any{
				"battle_id": b.ID,
				"player1":   b.Player1,
				"asset1":    b.Asset1,
				"player2":   b.Player2,
				"asset2":    b.Asset2,
			},
		})
	}
	return nil
}

// handleReport settles an in-progress battle with the outcome asserted by an
// allow-listed reporter: both assets are released, the winner is paid from
// the reward pot, and the record becomes immutable. A failed payout aborts
// the entire settlement.
func (m *Module) handleReport(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BattleReportPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode battle_report payload: %w", err)
	}

	if !m.reporters.IsAuthorized(ctx.Tx.From) {
		return fmt.Errorf("account %s: %w", ctx.Tx.From, ErrNotAuthorizedReporter)
	}

	b, err := ctx.State.GetBattle(p.BattleID)
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("battle %d: %w", p.BattleID, ErrBattleNotFound)
	}
	if err != nil {
		return err
	}

	switch b.Status {
	case core.BattleInProgress:
		// the only state a result can land in
	case core.BattlePendingMatch, core.BattleConcluded, core.BattleAborted:
		return fmt.Errorf("battle %d is %s: %w", b.ID, b.Status, ErrBattleNotInProgress)
	default:
		return fmt.Errorf("battle %d has unknown status %q", b.ID, b.Status)
	}

	switch p.WinningAssetID {
	case b.Asset1:
		b.Winner, b.WinnerAsset = b.Player1, b.Asset1
		b.Loser, b.LoserAsset = b.Player2, b.Asset2
	case b.Asset2:
		b.Winner, b.WinnerAsset = b.Player2, b.Asset2
		b.Loser, b.LoserAsset = b.Player1, b.Asset1
	default:
		return fmt.Errorf("asset %q in battle %d: %w", p.WinningAssetID, b.ID, ErrInvalidParticipant)
	}

	if err := m.settle(ctx.State, b, core.BattleConcluded, ctx.Block.Header.Height); err != nil {
		return err
	}

	// Reward distribution is not best-effort: an underfunded pot fails the
	// whole report and the battle stays InProgress.
	if m.reward > 0 {
		if err := m.ledger.Transfer(ctx.State, m.rewardPot, b.Winner, m.reward); err != nil {
			return fmt.Errorf("%w: %w", ErrRewardTransfer, err)
		}
		b.Reward = m.reward
		if err := ctx.State.SetBattle(b); err != nil {
			return err
		}
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventBattleConcluded,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data: map[string]any{
				"battle_id":    b.ID,
				"winner":       b.Winner,
				"winner_asset": b.WinnerAsset,
				"loser":        b.Loser,
				"loser_asset":  b.LoserAsset,
				"reward":       b.Reward,
			},
		})
	}
	return nil
}

// handleFlee aborts an in-progress battle: the caller's side forfeits, the
// other participant wins by default, and no reward is paid.
func (m *Module) handleFlee(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BattleFleePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode battle_flee payload: %w", err)
	}
	caller := ctx.Tx.From

	id, engaged, err := ctx.State.GetAssetBattle(p.AssetID)
	if err != nil {
		return err
	}
	if !engaged {
		return fmt.Errorf("asset %q: %w", p.AssetID, ErrAssetNotInBattle)
	}

	b, err := ctx.State.GetBattle(id)
	if err != nil {
		return fmt.Errorf("battle %d for asset %q: %w", id, p.AssetID, err)
	}

	switch b.Status {
	case core.BattleInProgress:
		// fleeing is only possible once both sides are committed
	case core.BattlePendingMatch, core.BattleConcluded, core.BattleAborted:
		return fmt.Errorf("battle %d is %s: %w", b.ID, b.Status, ErrBattleNotInProgress)
	default:
		return fmt.Errorf("battle %d has unknown status %q", b.ID, b.Status)
	}

	owner, err := m.custody.OwnerOf(ctx.State, p.AssetID)
	if err != nil {
		return err
	}
	if owner != caller || !b.Participant(caller) {
		return fmt.Errorf("account %s in battle %d: %w", caller, b.ID, ErrNotParticipant)
	}

	// The non-fleeing side wins by default.
	switch p.AssetID {
	case b.Asset1:
		b.Winner, b.WinnerAsset = b.Player2, b.Asset2
		b.Loser, b.LoserAsset = b.Player1, b.Asset1
	case b.Asset2:
		b.Winner, b.WinnerAsset = b.Player1, b.Asset1
		b.Loser, b.LoserAsset = b.Player2, b.Asset2
	default:
		return fmt.Errorf("asset %q in battle %d: %w", p.AssetID, b.ID, ErrInvalidParticipant)
	}

	if err := m.settle(ctx.State, b, core.BattleAborted, ctx.Block.Header.Height); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventBattleFled,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data:        map[string]any{"battle_id": b.ID, "asset_id": p.AssetID, "account": caller},
		})
	}
	return nil
}

// settle performs the terminal transition shared by report and flee: both
// assets are unlocked exactly once, both reverse-index entries are removed,
// and the record is written with its final status. Any failure aborts the
// enclosing transaction, so an asset can never be left permanently locked
// by a half-applied settlement.
func (m *Module) settle(st core.State, b *core.Battle, status core.BattleStatus, height int64) error {
	holder := holderTag(b.ID)
	if err := m.custody.Unlock(st, b.Asset1, holder); err != nil {
		return fmt.Errorf("unlock asset %q: %w", b.Asset1, err)
	}
	if err := m.custody.Unlock(st, b.Asset2, holder); err != nil {
		return fmt.Errorf("unlock asset %q: %w", b.Asset2, err)
	}
	if err := st.ClearAssetBattle(b.Asset1); err != nil {
		return err
	}
	if err := st.ClearAssetBattle(b.Asset2); err != nil {
		return err
	}
	b.Status = status
	b.ConcludedAt = height
	return st.SetBattle(b)
}
