package rpc_test

import (
	"encoding/json"
	"testing"

	"github.com/petforge/petchain/core"
	"github.com/petforge/petchain/events"
	"github.com/petforge/petchain/indexer"
	"github.com/petforge/petchain/internal/testutil"
	"github.com/petforge/petchain/rpc"
	"github.com/petforge/petchain/storage"
	"github.com/petforge/petchain/wallet"
)

const testChainID = "petchain-test"

type rpcEnv struct {
	state *storage.StateDB
	mp    *core.Mempool
	h     *rpc.Handler
}

// newRPCEnv builds an RPC handler backed by in-memory state.
func newRPCEnv(t *testing.T) *rpcEnv {
	t.Helper()
	db := testutil.NewMemDB()
	state := storage.NewStateDB(db)
	bc := core.NewBlockchain(testutil.NewMemBlockStore())
	mp := core.NewMempool()
	idx := indexer.New(db, events.NewEmitter())
	return &rpcEnv{
		state: state,
		mp:    mp,
		h:     rpc.NewHandler(bc, mp, state, idx, testChainID),
	}
}

func dispatch(h *rpc.Handler, method string, params any) rpc.Response {
	raw, _ := json.Marshal(params)
	return h.Dispatch(rpc.Request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  raw,
	})
}

// TestGetBlockHeight verifies that getBlockHeight returns 0 for a fresh chain.
func TestGetBlockHeight(t *testing.T) {
	e := newRPCEnv(t)
	resp := dispatch(e.h, "getBlockHeight", struct{}{})
	if resp.Error != nil {
		t.Fatalf("error: %v", resp.Error.Message)
	}
	// Dispatch is called directly (no HTTP round-trip), so result is int64.
	if h, ok := resp.Result.(int64); !ok || h != 0 {
		t.Errorf("height: got %v (%T) want 0", resp.Result, resp.Result)
	}
}

// TestGetBalance verifies getBalance returns zero for an unknown account.
func TestGetBalance(t *testing.T) {
	e := newRPCEnv(t)
	resp := dispatch(e.h, "getBalance", map[string]string{"address": "nonexistent"})
	if resp.Error != nil {
		t.Fatalf("error: %v", resp.Error.Message)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("unexpected result type: %T", resp.Result)
	}
	if balance, _ := result["balance"].(uint64); balance != 0 {
		t.Errorf("balance: got %v want 0", result["balance"])
	}
}

func TestGetBattle(t *testing.T) {
	e := newRPCEnv(t)
	if err := e.state.SetBattle(&core.Battle{
		ID:      3,
		Player1: "alice",
		Asset1:  "pet-1",
		Status:  core.BattleInProgress,
	}); err != nil {
		t.Fatal(err)
	}

	resp := dispatch(e.h, "getBattle", map[string]uint32{"id": 3})
	if resp.Error != nil {
		t.Fatalf("error: %v", resp.Error.Message)
	}
	b, ok := resp.Result.(*core.Battle)
	if !ok {
		t.Fatalf("unexpected result type: %T", resp.Result)
	}
	if b.Player1 != "alice" || b.Status != core.BattleInProgress {
		t.Errorf("battle: %+v", b)
	}

	resp = dispatch(e.h, "getBattle", map[string]uint32{"id": 99})
	if resp.Error == nil || resp.Error.Code != rpc.CodeNotFound {
		t.Errorf("missing battle: got %+v want CodeNotFound", resp.Error)
	}
}

func TestGetAssetBattle(t *testing.T) {
	e := newRPCEnv(t)

	resp := dispatch(e.h, "getAssetBattle", map[string]string{"asset_id": "pet-1"})
	if resp.Error != nil {
		t.Fatalf("error: %v", resp.Error.Message)
	}
	result := resp.Result.(map[string]any)
	if engaged, _ := result["engaged"].(bool); engaged {
		t.Error("free asset should not be engaged")
	}

	if err := e.state.SetAssetBattle("pet-1", 7); err != nil {
		t.Fatal(err)
	}
	resp = dispatch(e.h, "getAssetBattle", map[string]string{"asset_id": "pet-1"})
	result = resp.Result.(map[string]any)
	if engaged, _ := result["engaged"].(bool); !engaged {
		t.Error("asset should be engaged")
	}
	if id, _ := result["battle_id"].(uint32); id != 7 {
		t.Errorf("battle_id: got %v want 7", result["battle_id"])
	}
}

// TestSendTxChainIDMismatch ensures cross-chain transactions are rejected at
// the RPC boundary.
func TestSendTxChainIDMismatch(t *testing.T) {
	e := newRPCEnv(t)
	w, _ := wallet.Generate()

	tx, err := w.Transfer("other-chain", "aa", 1, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	resp := dispatch(e.h, "sendTx", tx)
	if resp.Error == nil || resp.Error.Code != rpc.CodeInvalidParams {
		t.Errorf("got %+v want CodeInvalidParams", resp.Error)
	}
	if e.mp.Size() != 0 {
		t.Error("rejected tx must not enter the mempool")
	}
}

func TestSendTxAcceptsAndRecomputesID(t *testing.T) {
	e := newRPCEnv(t)
	w, _ := wallet.Generate()

	tx, err := w.Transfer(testChainID, "aa", 1, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	honest := tx.ID
	tx.ID = "spoofed"

	resp := dispatch(e.h, "sendTx", tx)
	if resp.Error != nil {
		t.Fatalf("error: %v", resp.Error.Message)
	}
	result := resp.Result.(map[string]string)
	if result["tx_id"] != honest {
		t.Errorf("tx_id: got %s want recomputed %s", result["tx_id"], honest)
	}
	if e.mp.Size() != 1 {
		t.Errorf("mempool size: got %d want 1", e.mp.Size())
	}
}

// TestMethodNotFound verifies that unknown methods return a -32601 error.
func TestMethodNotFound(t *testing.T) {
	e := newRPCEnv(t)
	resp := dispatch(e.h, "nonExistentMethod", struct{}{})
	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != rpc.CodeMethodNotFound {
		t.Errorf("error code: got %d want %d", resp.Error.Code, rpc.CodeMethodNotFound)
	}
}
