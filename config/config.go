// Package config loads node configuration from a YAML file with environment
// variable overrides, and builds the genesis block.
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// GenesisConfig describes the chain's initial state.
type GenesisConfig struct {
	ChainID string            `yaml:"chainId" json:"chain_id"`
	Alloc   map[string]uint64 `yaml:"alloc" json:"alloc"` // pubkey hex → initial balance
	Battle  BattleConfig      `yaml:"battle" json:"battle"`
}

// BattleConfig holds the chain parameters of the battle subsystem.
type BattleConfig struct {
	// Reporters is the allow-list of accounts that may assert battle
	// outcomes. An empty list disables outcome reporting entirely.
	Reporters []string `yaml:"reporters" json:"reporters"`
	// RewardPot is the pre-funded account battle rewards are paid from.
	RewardPot string `yaml:"rewardPot" json:"reward_pot"`
	// Reward is the payout to each battle winner; 0 disables payouts.
	Reward uint64 `yaml:"reward" json:"reward"`
}

// TLSConfig holds PEM file paths for mutual-TLS P2P. All empty → plain TCP.
type TLSConfig struct {
	CACert   string `yaml:"caCert" envconfig:"TLS_CA_CERT"`
	NodeCert string `yaml:"nodeCert" envconfig:"TLS_NODE_CERT"`
	NodeKey  string `yaml:"nodeKey" envconfig:"TLS_NODE_KEY"`
}

// SeedPeer identifies a node to connect to at startup.
type SeedPeer struct {
	ID   string `yaml:"id"`
	Addr string `yaml:"addr"`
}

// Config holds all node configuration. Values come from the YAML file and
// can be overridden with PETCHAIN_* environment variables.
type Config struct {
	NodeID        string        `yaml:"nodeId" envconfig:"NODE_ID"`
	DataDir       string        `yaml:"dataDir" envconfig:"DATA_DIR"`
	KeystorePath  string        `yaml:"keystorePath" envconfig:"KEYSTORE_PATH"`
	RPCPort       int           `yaml:"rpcPort" envconfig:"RPC_PORT"`
	RPCAuthToken  string        `yaml:"rpcAuthToken" envconfig:"RPC_AUTH_TOKEN"` // empty → unauthenticated RPC
	P2PPort       int           `yaml:"p2pPort" envconfig:"P2P_PORT"`
	MetricsPort   int           `yaml:"metricsPort" envconfig:"METRICS_PORT"` // 0 → metrics disabled
	BlockInterval int           `yaml:"blockInterval" envconfig:"BLOCK_INTERVAL"` // seconds between proposals
	MaxBlockTxs   int           `yaml:"maxBlockTxs" envconfig:"MAX_BLOCK_TXS"` // 0 → 500
	Validators    []string      `yaml:"validators"` // authorised proposer pubkey hexes, in rotation order
	SeedPeers     []SeedPeer    `yaml:"seedPeers"`
	TLS           TLSConfig     `yaml:"tls"`
	Genesis       GenesisConfig `yaml:"genesis"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:        "node0",
		DataDir:       "./data",
		KeystorePath:  "./keystore.json",
		RPCPort:       8545,
		P2PPort:       30303,
		BlockInterval: 2,
		MaxBlockTxs:   500,
		Genesis: GenesisConfig{
			ChainID: "petchain-dev",
			Alloc:   map[string]uint64{},
		},
	}
}

// Load reads a YAML config file from path (optional; empty path keeps
// defaults), then applies PETCHAIN_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := envconfig.Process("petchain", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations a node cannot run with.
func (c *Config) Validate() error {
	if c.Genesis.ChainID == "" {
		return fmt.Errorf("genesis.chainId is required")
	}
	if c.Genesis.Battle.Reward > 0 && c.Genesis.Battle.RewardPot == "" {
		return fmt.Errorf("genesis.battle.rewardPot is required when reward > 0")
	}
	for i, p := range c.SeedPeers {
		if p.Addr == "" {
			return fmt.Errorf("seedPeers[%d]: addr is required", i)
		}
	}
	return nil
}

// Save writes the config to path as YAML.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
