package core

// Account holds a participant's token balance and replay-protection nonce.
// Address is the hex-encoded ed25519 public key.
type Account struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// Asset is a uniquely identified game pet minted from a species template.
// Attribute management (traits, leveling, mood) lives in Properties; this
// chain only cares about ownership and custody.
//
// LockedBy is the custody lock: empty means the asset is free, otherwise it
// holds the tag of the subsystem that claimed it (e.g. "battle:7" or
// "market:<listing>"). A locked asset cannot be transferred, burned, listed,
// or entered into a battle.
type Asset struct {
	ID         string         `json:"id"`
	TemplateID string         `json:"template_id"`
	Owner      string         `json:"owner"` // pubkey hex
	Properties map[string]any `json:"properties"`
	Tradeable  bool           `json:"tradeable"`
	MintedAt   int64          `json:"minted_at"`
	LockedBy   string         `json:"locked_by,omitempty"`
}

// AssetTemplate defines the schema and rules for a class of assets.
type AssetTemplate struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Schema    map[string]any `json:"schema"` // property key → type hint
	Tradeable bool           `json:"tradeable"`
	Creator   string         `json:"creator"` // pubkey hex of registrant
}

// MarketListing is a P2P asset sale offer.
type MarketListing struct {
	ID        string `json:"id"`
	AssetID   string `json:"asset_id"`
	Seller    string `json:"seller"` // pubkey hex
	Price     uint64 `json:"price"`
	Active    bool   `json:"active"`
	CreatedAt int64  `json:"created_at"`
}

// State is the full chain state interface. Implementations must be
// snapshot-able so the executor can roll back failed transactions; every
// state-changing operation is therefore all-or-nothing.
type State interface {
	// Accounts
	GetAccount(address string) (*Account, error)
	SetAccount(account *Account) error

	// Assets
	GetAsset(id string) (*Asset, error)
	SetAsset(asset *Asset) error
	DeleteAsset(id string) error

	// Templates
	GetTemplate(id string) (*AssetTemplate, error)
	SetTemplate(t *AssetTemplate) error

	// Market
	GetListing(id string) (*MarketListing, error)
	SetListing(l *MarketListing) error

	// Battles. NextBattleID returns the current counter value and advances
	// it; the advance is part of the write buffer, so a reverted transaction
	// does not burn an ID. GetAssetBattle reports the battle an asset is
	// currently engaged in; the second return is false when the asset is
	// free.
	GetBattle(id uint32) (*Battle, error)
	SetBattle(b *Battle) error
	NextBattleID() (uint32, error)
	GetAssetBattle(assetID string) (uint32, bool, error)
	SetAssetBattle(assetID string, battleID uint32) error
	ClearAssetBattle(assetID string) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current
	// write buffer without flushing. Call this before signing a block.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	// Always call ComputeRoot() first to obtain the root for the header.
	Commit() error
}
