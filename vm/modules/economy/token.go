// Package economy implements native token movement: the transfer handler and
// the Ledger other modules use for programmatic payouts.
package economy

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/petforge/petchain/core"
	"github.com/petforge/petchain/events"
	"github.com/petforge/petchain/vm"
)

// ErrInsufficientFunds is returned when the source account cannot cover the
// requested amount.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Ledger moves token balances between accounts. It never creates or destroys
// tokens; the total supply is fixed at genesis.
type Ledger struct{}

// Transfer moves amount from one account to another. The caller is
// responsible for authorization; Transfer only enforces balance sufficiency.
func (Ledger) Transfer(st core.State, from, to string, amount uint64) error {
	if amount == 0 {
		return errors.New("transfer amount must be > 0")
	}
	src, err := st.GetAccount(from)
	if err != nil {
		return err
	}
	if src.Balance < amount {
		return fmt.Errorf("account %s has %d, needs %d: %w", from, src.Balance, amount, ErrInsufficientFunds)
	}
	src.Balance -= amount
	if err := st.SetAccount(src); err != nil {
		return err
	}

	dst, err := st.GetAccount(to)
	if err != nil {
		return err
	}
	dst.Balance += amount
	return st.SetAccount(dst)
}

// Register wires the economy handlers into r.
func Register(r *vm.Registry) {
	r.Register(core.TxTransfer, handleTransfer)
}

func handleTransfer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TransferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode transfer payload: %w", err)
	}
	if p.To == "" {
		return errors.New("transfer to address required")
	}

	if err := (Ledger{}).Transfer(ctx.State, ctx.Tx.From, p.To, p.Amount); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventTokenTransfer,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data: map[string]any{
				"from":   ctx.Tx.From,
				"to":     p.To,
				"amount": p.Amount,
			},
		})
	}
	return nil
}
