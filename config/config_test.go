package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
nodeId: validator-1
rpcPort: 9001
blockInterval: 5
validators:
  - aabb
genesis:
  chainId: petchain-test
  alloc:
    aabb: 1000
  battle:
    reporters:
      - ccdd
    rewardPot: potpot
    reward: 100
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "petchain.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.NodeID != "validator-1" {
		t.Errorf("nodeId: got %s", cfg.NodeID)
	}
	if cfg.RPCPort != 9001 {
		t.Errorf("rpcPort: got %d", cfg.RPCPort)
	}
	// Values absent from the file keep their defaults.
	if cfg.P2PPort != 30303 {
		t.Errorf("p2pPort default: got %d", cfg.P2PPort)
	}
	if cfg.Genesis.ChainID != "petchain-test" {
		t.Errorf("chainId: got %s", cfg.Genesis.ChainID)
	}
	if cfg.Genesis.Battle.Reward != 100 || cfg.Genesis.Battle.RewardPot != "potpot" {
		t.Errorf("battle config: %+v", cfg.Genesis.Battle)
	}
	if len(cfg.Genesis.Battle.Reporters) != 1 || cfg.Genesis.Battle.Reporters[0] != "ccdd" {
		t.Errorf("reporters: %v", cfg.Genesis.Battle.Reporters)
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Genesis.ChainID != "petchain-dev" {
		t.Errorf("chainId default: got %s", cfg.Genesis.ChainID)
	}
	if cfg.RPCPort != 8545 {
		t.Errorf("rpcPort default: got %d", cfg.RPCPort)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PETCHAIN_RPC_PORT", "7777")
	t.Setenv("PETCHAIN_NODE_ID", "env-node")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RPCPort != 7777 {
		t.Errorf("rpcPort: got %d want env override 7777", cfg.RPCPort)
	}
	if cfg.NodeID != "env-node" {
		t.Errorf("nodeId: got %s want env override", cfg.NodeID)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"missing chain id", func(c *Config) { c.Genesis.ChainID = "" }, false},
		{"reward without pot", func(c *Config) {
			c.Genesis.Battle.Reward = 50
			c.Genesis.Battle.RewardPot = ""
		}, false},
		{"reward with pot", func(c *Config) {
			c.Genesis.Battle.Reward = 50
			c.Genesis.Battle.RewardPot = "pot"
		}, true},
		{"seed peer without addr", func(c *Config) {
			c.SeedPeers = []SeedPeer{{ID: "n1"}}
		}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NodeID = "roundtrip"
	cfg.Genesis.Battle = BattleConfig{Reporters: []string{"r1"}, RewardPot: "pot", Reward: 42}

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := Save(cfg, path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.NodeID != "roundtrip" || loaded.Genesis.Battle.Reward != 42 {
		t.Errorf("roundtrip mismatch: %+v", loaded)
	}
}
