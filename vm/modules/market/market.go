// Package market implements P2P asset sales. Listings claim the asset's
// custody lock for their lifetime, so a listed asset cannot be transferred,
// burned, or entered into a battle until the listing is bought or cancelled.
package market

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/petforge/petchain/core"
	"github.com/petforge/petchain/crypto"
	"github.com/petforge/petchain/events"
	"github.com/petforge/petchain/vm"
	"github.com/petforge/petchain/vm/modules/asset"
	"github.com/petforge/petchain/vm/modules/economy"
)

// Register wires the market handlers into r.
func Register(r *vm.Registry) {
	r.Register(core.TxListMarket, handleList)
	r.Register(core.TxCancelMarket, handleCancel)
	r.Register(core.TxBuyMarket, handleBuy)
}

func lockHolder(listingID string) string {
	return "market:" + listingID
}

func handleList(ctx *vm.Context, payload json.RawMessage) error {
	var p core.ListMarketPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode list_market payload: %w", err)
	}
	if p.Price == 0 {
		return errors.New("price must be > 0")
	}

	a, err := ctx.State.GetAsset(p.AssetID)
	if err != nil {
		return fmt.Errorf("asset %q not found: %w", p.AssetID, err)
	}
	if a.Owner != ctx.Tx.From {
		return errors.New("only the asset owner can list it")
	}
	if !a.Tradeable {
		return errors.New("asset is not tradeable")
	}

	listingID := crypto.Hash([]byte(ctx.Tx.ID + ":listing:" + p.AssetID))

	// Claiming the custody lock also rejects double-listing and assets that
	// are mid-battle.
	var custody asset.Custody
	if err := custody.Lock(ctx.State, ctx.Tx.From, p.AssetID, lockHolder(listingID)); err != nil {
		return fmt.Errorf("list asset %q: %w", p.AssetID, err)
	}

	listing := &core.MarketListing{
		ID:        listingID,
		AssetID:   p.AssetID,
		Seller:    ctx.Tx.From,
		Price:     p.Price,
		Active:    true,
		CreatedAt: ctx.Block.Header.Timestamp,
	}
	if err := ctx.State.SetListing(listing); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventMarketList,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data:        map[string]any{"listing_id": listingID, "asset_id": p.AssetID, "price": p.Price},
		})
	}
	return nil
}

func handleCancel(ctx *vm.Context, payload json.RawMessage) error {
	var p core.CancelMarketPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode cancel_market payload: %w", err)
	}

	listing, err := ctx.State.GetListing(p.ListingID)
	if err != nil {
		return fmt.Errorf("listing %q not found: %w", p.ListingID, err)
	}
	if !listing.Active {
		return fmt.Errorf("listing %q is no longer active", p.ListingID)
	}
	if listing.Seller != ctx.Tx.From {
		return errors.New("only the seller can cancel a listing")
	}

	var custody asset.Custody
	if err := custody.Unlock(ctx.State, listing.AssetID, lockHolder(listing.ID)); err != nil {
		return fmt.Errorf("release asset %q: %w", listing.AssetID, err)
	}

	listing.Active = false
	if err := ctx.State.SetListing(listing); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventMarketCancel,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data:        map[string]any{"listing_id": listing.ID, "asset_id": listing.AssetID},
		})
	}
	return nil
}

func handleBuy(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BuyMarketPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode buy_market payload: %w", err)
	}

	listing, err := ctx.State.GetListing(p.ListingID)
	if err != nil {
		return fmt.Errorf("listing %q not found: %w", p.ListingID, err)
	}
	if !listing.Active {
		return fmt.Errorf("listing %q is no longer active", p.ListingID)
	}
	if listing.Seller == ctx.Tx.From {
		return errors.New("seller cannot buy their own listing")
	}

	// Move the price from buyer to seller, then hand over the asset.
	if err := (economy.Ledger{}).Transfer(ctx.State, ctx.Tx.From, listing.Seller, listing.Price); err != nil {
		return fmt.Errorf("pay for listing %q: %w", p.ListingID, err)
	}

	var custody asset.Custody
	if err := custody.Unlock(ctx.State, listing.AssetID, lockHolder(listing.ID)); err != nil {
		return fmt.Errorf("release asset %q: %w", listing.AssetID, err)
	}
	if err := custody.Transfer(ctx.State, listing.AssetID, ctx.Tx.From); err != nil {
		return fmt.Errorf("hand over asset %q: %w", listing.AssetID, err)
	}

	listing.Active = false
	if err := ctx.State.SetListing(listing); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventMarketBuy,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data: map[string]any{
				"listing_id": p.ListingID,
				"asset_id":   listing.AssetID,
				"buyer":      ctx.Tx.From,
				"seller":     listing.Seller,
				"price":      listing.Price,
			},
		})
	}
	return nil
}
