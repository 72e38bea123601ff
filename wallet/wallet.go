package wallet

import (
	"github.com/petforge/petchain/core"
	"github.com/petforge/petchain/crypto"
)

// Wallet holds a key pair and provides transaction-building helpers.
type Wallet struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivateKey) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public()}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate() (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// PubKey returns the hex-encoded ed25519 public key (used as "from" address).
func (w *Wallet) PubKey() string {
	return w.pub.Hex()
}

// Address returns the short human-readable address (first 20 bytes of SHA-256(pubkey)).
func (w *Wallet) Address() string {
	return w.pub.Address()
}

// NewTx creates a signed transaction. chainID must match the target network.
// nonce should match the account's current nonce.
func (w *Wallet) NewTx(chainID string, typ core.TxType, nonce, fee uint64, payload any) (*core.Transaction, error) {
	tx, err := core.NewTransaction(chainID, typ, w.pub.Hex(), nonce, fee, payload)
	if err != nil {
		return nil, err
	}
	tx.Sign(w.priv)
	return tx, nil
}

// Transfer creates a signed transfer transaction.
func (w *Wallet) Transfer(chainID, to string, amount, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxTransfer, nonce, fee, core.TransferPayload{
		To:     to,
		Amount: amount,
	})
}

// RegisterBattle creates a signed transaction opening a battle slot for the
// sender's asset.
func (w *Wallet) RegisterBattle(chainID, assetID string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxBattleRegister, nonce, fee, core.BattleRegisterPayload{
		AssetID: assetID,
	})
}

// InitiateBattle creates a signed transaction matching opponent/opponentAsset
// against the sender's pending battle.
func (w *Wallet) InitiateBattle(chainID string, battleID uint32, opponent, opponentAsset string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxBattleInitiate, nonce, fee, core.BattleInitiatePayload{
		BattleID:      battleID,
		Opponent:      opponent,
		OpponentAsset: opponentAsset,
	})
}

// ReportBattle creates a signed outcome assertion. The wallet's key must be
// on the chain's reporter allow-list for the transaction to execute.
func (w *Wallet) ReportBattle(chainID string, battleID uint32, winningAssetID string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxBattleReport, nonce, fee, core.BattleReportPayload{
		BattleID:       battleID,
		WinningAssetID: winningAssetID,
	})
}

// FleeBattle creates a signed transaction abandoning the battle the given
// asset is engaged in.
func (w *Wallet) FleeBattle(chainID, assetID string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxBattleFlee, nonce, fee, core.BattleFleePayload{
		AssetID: assetID,
	})
}
