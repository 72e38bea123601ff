package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/petforge/petchain/config"
	"github.com/petforge/petchain/consensus"
	"github.com/petforge/petchain/core"
	"github.com/petforge/petchain/events"
	"github.com/petforge/petchain/indexer"
	"github.com/petforge/petchain/metrics"
	"github.com/petforge/petchain/network"
	"github.com/petforge/petchain/rpc"
	"github.com/petforge/petchain/storage"
	"github.com/petforge/petchain/vm"
	"github.com/petforge/petchain/vm/modules/asset"
	"github.com/petforge/petchain/vm/modules/battle"
	"github.com/petforge/petchain/vm/modules/economy"
	"github.com/petforge/petchain/vm/modules/market"
	"github.com/petforge/petchain/wallet"
)

func runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the node",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runNode()
		},
	}
}

func runNode() error {
	cfg, err := loadConfig(rootFlags.configFile)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	privKey, err := wallet.LoadKey(rootFlags.keyPath, keystorePassword())
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}

	// ---- open DB ----
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("mkdir data dir: %w", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir + "/chain")
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	state := storage.NewStateDB(db) // same DB, different key prefixes
	blockStore := storage.NewLevelBlockStore(db)

	bc := core.NewBlockchain(blockStore)
	if err := bc.Init(); err != nil {
		return fmt.Errorf("blockchain init: %w", err)
	}

	// ---- genesis block (if fresh chain) ----
	if bc.Tip() == nil {
		genesisBlock, err := config.CreateGenesisBlock(cfg, state, privKey)
		if err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
		if err := bc.AddBlock(genesisBlock); err != nil {
			return fmt.Errorf("add genesis: %w", err)
		}
		log.Printf("Genesis block committed: %s", genesisBlock.Hash)
	}

	// ---- events / indexer / mempool ----
	emitter := events.NewEmitter()
	idx := indexer.New(db, emitter)
	mempool := core.NewMempool()

	// ---- VM modules ----
	registry := vm.NewRegistry()
	asset.Register(registry)
	economy.Register(registry)
	market.Register(registry)
	battleModule := battle.New(asset.Custody{}, economy.Ledger{}, battle.Config{
		Reporters: cfg.Genesis.Battle.Reporters,
		RewardPot: cfg.Genesis.Battle.RewardPot,
		Reward:    cfg.Genesis.Battle.Reward,
	})
	battleModule.Register(registry)

	exec := vm.NewExecutor(registry, state, emitter)

	// ---- consensus ----
	poa := consensus.New(cfg, bc, state, mempool, exec, emitter, privKey)

	// ---- metrics ----
	var metricsSrv *metrics.Server
	if cfg.MetricsPort > 0 {
		collector := metrics.NewCollector(emitter, mempool.Size)
		metricsSrv = metrics.NewServer(fmt.Sprintf(":%d", cfg.MetricsPort), collector)
		go func() {
			if err := metricsSrv.Start(); err != nil {
				log.Printf("metrics: %v", err)
			}
		}()
	}

	// ---- TLS ----
	tlsCfg, err := config.LoadTLSConfig(&cfg.TLS)
	if err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	if tlsCfg != nil {
		log.Println("mTLS enabled for P2P")
	}

	// ---- network ----
	p2pAddr := fmt.Sprintf(":%d", cfg.P2PPort)
	node := network.NewNode(cfg.NodeID, p2pAddr, mempool, tlsCfg)
	syncer := network.NewSyncer(node, bc, poa, exec, state)
	if err := node.Start(); err != nil {
		return fmt.Errorf("p2p start: %w", err)
	}
	defer node.Stop()
	log.Printf("P2P listening on %s", p2pAddr)

	for _, sp := range cfg.SeedPeers {
		if err := node.AddPeer(sp.ID, sp.Addr); err != nil {
			log.Printf("seed peer %s (%s): %v", sp.ID, sp.Addr, err)
			continue
		}
		// Trigger initial block sync with the newly connected peer.
		if peer := node.Peer(sp.ID); peer != nil {
			syncer.SyncWithPeer(peer)
		}
		log.Printf("Connected to seed peer %s (%s)", sp.ID, sp.Addr)
	}

	// ---- RPC ----
	rpcAddr := fmt.Sprintf(":%d", cfg.RPCPort)
	rpcHandler := rpc.NewHandler(bc, mempool, state, idx, cfg.Genesis.ChainID)
	rpcServer := rpc.NewServer(rpcAddr, rpcHandler, cfg.RPCAuthToken)
	if err := rpcServer.Start(); err != nil {
		return fmt.Errorf("rpc start: %w", err)
	}
	defer rpcServer.Stop()
	if cfg.RPCAuthToken != "" {
		log.Println("RPC Bearer token authentication enabled")
	}

	// ---- consensus loop ----
	interval := time.Duration(cfg.BlockInterval) * time.Second
	if interval <= 0 {
		interval = 2 * time.Second
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		poa.Run(interval, done)
	}()
	log.Printf("Consensus running (validator: %s)", privKey.Public().Hex())

	// ---- graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")

	// Stop consensus first (no new blocks written), then let deferred calls
	// run in LIFO: rpcServer.Stop → node.Stop → db.Close.
	close(done)
	wg.Wait()

	if metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Stop(ctx); err != nil {
			log.Printf("metrics stop: %v", err)
		}
	}

	log.Println("Shutdown complete.")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("Config file not found at %s, using defaults.", path)
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}
