// Package indexer maintains secondary indexes over committed blocks so game
// servers can query assets and battles by account without scanning full
// state.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/petforge/petchain/core"
	"github.com/petforge/petchain/events"
	"github.com/petforge/petchain/storage"
)

const (
	prefixOwnerAssets  = "idx:owner:asset:"
	prefixPlayerBattle = "idx:player:battle:"
)

// Indexer subscribes to chain events and updates secondary lookup tables.
type Indexer struct {
	db      storage.DB
	emitter *events.Emitter
}

// New creates an Indexer backed by db and subscribes to relevant events.
func New(db storage.DB, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db, emitter: emitter}
	emitter.Subscribe(events.EventAssetMinted, idx.onAssetMinted)
	emitter.Subscribe(events.EventAssetTransfer, idx.onAssetTransferred)
	emitter.Subscribe(events.EventAssetBurned, idx.onAssetBurned)
	emitter.Subscribe(events.EventMarketBuy, idx.onMarketBuy)
	emitter.Subscribe(events.EventBattleRegistered, idx.onBattleRegistered)
	emitter.Subscribe(events.EventBattleInitiated, idx.onBattleInitiated)
	return idx
}

// GetAssetsByOwner returns all asset IDs owned by the given pubkey.
func (idx *Indexer) GetAssetsByOwner(owner string) ([]string, error) {
	return idx.getList(prefixOwnerAssets + owner)
}

// GetBattlesByPlayer returns all battle IDs an account has taken part in,
// including battles still pending a match.
func (idx *Indexer) GetBattlesByPlayer(player string) ([]uint32, error) {
	raw, err := idx.getList(prefixPlayerBattle + player)
	if err != nil {
		return nil, err
	}
	ids := make([]uint32, 0, len(raw))
	for _, s := range raw {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("indexer: corrupt battle id %q: %w", s, err)
		}
		ids = append(ids, uint32(n))
	}
	return ids, nil
}

// ---- event handlers ----

func (idx *Indexer) onAssetMinted(ev events.Event) {
	owner, _ := ev.Data["owner"].(string)
	assetID, _ := ev.Data["asset_id"].(string)
	if owner == "" || assetID == "" {
		return
	}
	_ = idx.addToList(prefixOwnerAssets+owner, assetID)
}

func (idx *Indexer) onAssetTransferred(ev events.Event) {
	from, _ := ev.Data["from"].(string)
	to, _ := ev.Data["to"].(string)
	assetID, _ := ev.Data["asset_id"].(string)
	if assetID == "" || from == "" || to == "" {
		return
	}
	if err := idx.removeFromList(prefixOwnerAssets+from, assetID); err != nil {
		return
	}
	_ = idx.addToList(prefixOwnerAssets+to, assetID)
}

func (idx *Indexer) onAssetBurned(ev events.Event) {
	owner, _ := ev.Data["owner"].(string)
	assetID, _ := ev.Data["asset_id"].(string)
	if owner == "" || assetID == "" {
		return
	}
	_ = idx.removeFromList(prefixOwnerAssets+owner, assetID)
}

func (idx *Indexer) onMarketBuy(ev events.Event) {
	seller, _ := ev.Data["seller"].(string)
	buyer, _ := ev.Data["buyer"].(string)
	assetID, _ := ev.Data["asset_id"].(string)
	if assetID == "" || seller == "" || buyer == "" {
		return
	}
	if err := idx.removeFromList(prefixOwnerAssets+seller, assetID); err != nil {
		return
	}
	_ = idx.addToList(prefixOwnerAssets+buyer, assetID)
}

func (idx *Indexer) onBattleRegistered(ev events.Event) {
	id, ok := battleID(ev)
	player, _ := ev.Data["player"].(string)
	if !ok || player == "" {
		return
	}
	_ = idx.addToList(prefixPlayerBattle+player, strconv.FormatUint(uint64(id), 10))
}

func (idx *Indexer) onBattleInitiated(ev events.Event) {
	id, ok := battleID(ev)
	player2, _ := ev.Data["player2"].(string)
	if !ok || player2 == "" {
		return
	}
	_ = idx.addToList(prefixPlayerBattle+player2, strconv.FormatUint(uint64(id), 10))
}

// battleID extracts the battle_id field. Events are delivered in-process so
// the value is a uint32, but a float64 is accepted too in case an event was
// round-tripped through JSON.
func battleID(ev events.Event) (uint32, bool) {
	switch v := ev.Data["battle_id"].(type) {
	case uint32:
		return v, true
	case float64:
		return uint32(v), true
	}
	return 0, false
}

// ---- list helpers ----

func (idx *Indexer) getList(key string) ([]string, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil // empty list
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return ids, nil
}

func (idx *Indexer) addToList(key, value string) error {
	ids, _ := idx.getList(key)
	ids = append(ids, value)
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}

func (idx *Indexer) removeFromList(key, value string) error {
	ids, _ := idx.getList(key)
	filtered := ids[:0]
	for _, id := range ids {
		if id != value {
			filtered = append(filtered, id)
		}
	}
	data, err := json.Marshal(filtered)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}
