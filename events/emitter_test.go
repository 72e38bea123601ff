package events

import "testing"

func TestSubscribeEmit(t *testing.T) {
	e := NewEmitter()
	var got []Event
	e.Subscribe(EventBattleConcluded, func(ev Event) {
		got = append(got, ev)
	})

	e.Emit(Event{Type: EventBattleConcluded, TxID: "tx1", Data: map[string]any{"battle_id": uint32(1)}})
	e.Emit(Event{Type: EventBattleFled, TxID: "tx2"}) // no subscriber, must not reach got

	if len(got) != 1 {
		t.Fatalf("events delivered: got %d want 1", len(got))
	}
	if got[0].TxID != "tx1" {
		t.Errorf("tx_id: got %s want tx1", got[0].TxID)
	}
}

func TestEmitFanOut(t *testing.T) {
	e := NewEmitter()
	calls := 0
	for i := 0; i < 3; i++ {
		e.Subscribe(EventBlockCommit, func(Event) { calls++ })
	}
	e.Emit(Event{Type: EventBlockCommit})
	if calls != 3 {
		t.Errorf("handler calls: got %d want 3", calls)
	}
}

// TestEmitRecoversPanic verifies that one panicking subscriber does not
// prevent delivery to the others.
func TestEmitRecoversPanic(t *testing.T) {
	e := NewEmitter()
	e.Subscribe(EventTxExecuted, func(Event) { panic("boom") })
	delivered := false
	e.Subscribe(EventTxExecuted, func(Event) { delivered = true })

	e.Emit(Event{Type: EventTxExecuted})
	if !delivered {
		t.Error("second handler not reached after panic in first")
	}
}
