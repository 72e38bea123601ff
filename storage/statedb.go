package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/petforge/petchain/core"
	"github.com/petforge/petchain/crypto"
)

// registerPrefix records a state-key prefix into statePrefixes so that
// ComputeRoot() always covers it. All prefix constants must be declared via
// this function.
func registerPrefix(p string) string {
	statePrefixes = append(statePrefixes, p)
	return p
}

// statePrefixes is populated by registerPrefix() below. ComputeRoot()
// iterates these prefixes to build the full world-state view.
var statePrefixes []string

var (
	prefixAccount   = registerPrefix("acct:")
	prefixAsset     = registerPrefix("asset:")
	prefixTemplate  = registerPrefix("tmpl:")
	prefixListing   = registerPrefix("list:")
	prefixBattle    = registerPrefix("btl:")
	prefixBattleIdx = registerPrefix("btlidx:")
	prefixBattleSeq = registerPrefix("btlseq:")
)

// battleSeqKey holds the next battle ID as 4 big-endian bytes.
var battleSeqKey = prefixBattleSeq + "next"

type stateSnapshot struct {
	dirty   map[string][]byte
	deleted map[string]bool
}

// StateDB implements core.State on top of a DB with an in-memory write
// buffer, snapshot/rollback, and deterministic state-root computation.
type StateDB struct {
	db        DB
	dirty     map[string][]byte
	deleted   map[string]bool
	snapshots []stateSnapshot
}

// NewStateDB creates a StateDB backed by db.
func NewStateDB(db DB) *StateDB {
	return &StateDB{
		db:      db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

// ---- internal helpers ----

func (s *StateDB) get(key string) ([]byte, error) {
	if s.deleted[key] {
		return nil, core.ErrNotFound
	}
	if v, ok := s.dirty[key]; ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *StateDB) set(key string, val []byte) {
	delete(s.deleted, key)
	s.dirty[key] = val
}

func (s *StateDB) del(key string) {
	delete(s.dirty, key)
	s.deleted[key] = true
}

func (s *StateDB) getJSON(key string, out any) error {
	data, err := s.get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (s *StateDB) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.set(key, data)
	return nil
}

// ---- Account ----

func (s *StateDB) GetAccount(address string) (*core.Account, error) {
	var acc core.Account
	err := s.getJSON(prefixAccount+address, &acc)
	if errors.Is(err, core.ErrNotFound) {
		return &core.Account{Address: address}, nil // zero-value account
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *StateDB) SetAccount(acc *core.Account) error {
	return s.setJSON(prefixAccount+acc.Address, acc)
}

// ---- Asset ----

func (s *StateDB) GetAsset(id string) (*core.Asset, error) {
	var asset core.Asset
	if err := s.getJSON(prefixAsset+id, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (s *StateDB) SetAsset(asset *core.Asset) error {
	return s.setJSON(prefixAsset+asset.ID, asset)
}

func (s *StateDB) DeleteAsset(id string) error {
	s.del(prefixAsset + id)
	return nil
}

// ---- Template ----

func (s *StateDB) GetTemplate(id string) (*core.AssetTemplate, error) {
	var t core.AssetTemplate
	if err := s.getJSON(prefixTemplate+id, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *StateDB) SetTemplate(t *core.AssetTemplate) error {
	return s.setJSON(prefixTemplate+t.ID, t)
}

// ---- Market ----

func (s *StateDB) GetListing(id string) (*core.MarketListing, error) {
	var l core.MarketListing
	if err := s.getJSON(prefixListing+id, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *StateDB) SetListing(l *core.MarketListing) error {
	return s.setJSON(prefixListing+l.ID, l)
}

// ---- Battles ----

func battleKey(id uint32) string {
	return fmt.Sprintf("%s%010d", prefixBattle, id)
}

func (s *StateDB) GetBattle(id uint32) (*core.Battle, error) {
	var b core.Battle
	if err := s.getJSON(battleKey(id), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *StateDB) SetBattle(b *core.Battle) error {
	return s.setJSON(battleKey(b.ID), b)
}

// NextBattleID returns the current counter value and advances it by one.
// The advance lives in the write buffer: if the enclosing transaction is
// reverted, the ID is not burned, so committed IDs are dense and strictly
// increasing. IDs are never reused.
func (s *StateDB) NextBattleID() (uint32, error) {
	var cur uint32
	data, err := s.get(battleSeqKey)
	switch {
	case errors.Is(err, core.ErrNotFound):
		cur = 0
	case err != nil:
		return 0, err
	default:
		if len(data) != 4 {
			return 0, fmt.Errorf("corrupt battle id counter: %d bytes", len(data))
		}
		cur = binary.BigEndian.Uint32(data)
	}
	if cur == math.MaxUint32 {
		return 0, core.ErrBattleIDOverflow
	}
	next := make([]byte, 4)
	binary.BigEndian.PutUint32(next, cur+1)
	s.set(battleSeqKey, next)
	return cur, nil
}

// GetAssetBattle returns the battle the asset is currently engaged in.
// The bool is false when the asset is free.
func (s *StateDB) GetAssetBattle(assetID string) (uint32, bool, error) {
	data, err := s.get(prefixBattleIdx + assetID)
	if errors.Is(err, core.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(data) != 4 {
		return 0, false, fmt.Errorf("corrupt battle index for asset %q: %d bytes", assetID, len(data))
	}
	return binary.BigEndian.Uint32(data), true, nil
}

func (s *StateDB) SetAssetBattle(assetID string, battleID uint32) error {
	val := make([]byte, 4)
	binary.BigEndian.PutUint32(val, battleID)
	s.set(prefixBattleIdx+assetID, val)
	return nil
}

func (s *StateDB) ClearAssetBattle(assetID string) error {
	s.del(prefixBattleIdx + assetID)
	return nil
}

// ---- Snapshot / Rollback / Commit ----

// Snapshot saves the current write buffer and returns a snapshot ID.
func (s *StateDB) Snapshot() (int, error) {
	snap := stateSnapshot{
		dirty:   make(map[string][]byte, len(s.dirty)),
		deleted: make(map[string]bool, len(s.deleted)),
	}
	for k, v := range s.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		snap.dirty[k] = cp
	}
	for k, v := range s.deleted {
		snap.deleted[k] = v
	}
	s.snapshots = append(s.snapshots, snap)
	return len(s.snapshots) - 1, nil
}

// RevertToSnapshot restores the write buffer to a previously saved snapshot.
// The snapshot maps are deep-copied so subsequent writes cannot corrupt them.
func (s *StateDB) RevertToSnapshot(id int) error {
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	snap := s.snapshots[id]

	dirty := make(map[string][]byte, len(snap.dirty))
	for k, v := range snap.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		dirty[k] = cp
	}
	deleted := make(map[string]bool, len(snap.deleted))
	for k, v := range snap.deleted {
		deleted[k] = v
	}

	s.dirty = dirty
	s.deleted = deleted
	s.snapshots = s.snapshots[:id]
	return nil
}

// ComputeRoot returns the deterministic hash of the complete world state.
// It merges all persisted state entries (scanned from DB by the known state
// prefixes) with the current write buffer, then hashes the sorted key-value
// pairs using length-prefix encoding. It does NOT flush or modify state, so
// it is safe to call before signing a block.
func (s *StateDB) ComputeRoot() string {
	merged := make(map[string][]byte)
	for _, prefix := range statePrefixes {
		it := s.db.NewIterator([]byte(prefix))
		for it.Next() {
			k := string(it.Key())
			v := make([]byte, len(it.Value()))
			copy(v, it.Value())
			merged[k] = v
		}
		it.Release()
	}

	// Apply the in-memory write buffer (uncommitted changes this block),
	// then drop deleted keys.
	for k, v := range s.dirty {
		merged[k] = v
	}
	for k := range s.deleted {
		delete(merged, k)
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, k := range keys {
		v := merged[k]
		kb := []byte(k)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(kb)))
		buf.Write(lenBuf[:])
		buf.Write(kb)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
		buf.Write(lenBuf[:])
		buf.Write(v)
	}
	return crypto.Hash(buf.Bytes())
}

// Commit atomically flushes the write buffer to the underlying DB via a
// batch and then clears it. Call ComputeRoot() before signing the block,
// then Commit() after the block is safely stored.
func (s *StateDB) Commit() error {
	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Set([]byte(k), v)
	}
	for k := range s.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.dirty = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	s.snapshots = nil
	return nil
}
