// Package metrics exposes node counters over Prometheus. The collector
// subscribes to chain events rather than being called from execution paths,
// so instrumentation can never slow down or fail block processing.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/petforge/petchain/events"
)

// Collector owns a private Prometheus registry. Each node (and each test)
// builds its own Collector; nothing is registered globally.
type Collector struct {
	registry *prometheus.Registry

	blocksTotal    prometheus.Counter
	txsTotal       *prometheus.CounterVec
	battlesByState *prometheus.CounterVec
	rewardsPaid    prometheus.Counter
	mempoolSize    prometheus.GaugeFunc
	blockHeight    prometheus.Gauge
}

// NewCollector creates a Collector subscribed to emitter. mempoolLen is
// sampled on scrape; pass nil to omit the gauge.
func NewCollector(emitter *events.Emitter, mempoolLen func() int) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		blocksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "petchain_blocks_committed_total",
			Help: "Total number of blocks committed by this node.",
		}),
		txsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "petchain_txs_executed_total",
			Help: "Total transactions executed, by transaction type.",
		}, []string{"type"}),
		battlesByState: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "petchain_battle_transitions_total",
			Help: "Battle lifecycle transitions, by resulting state.",
		}, []string{"state"}),
		rewardsPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "petchain_battle_rewards_paid_total",
			Help: "Total tokens paid out as battle rewards.",
		}),
		blockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "petchain_block_height",
			Help: "Height of the latest committed block.",
		}),
	}
	c.registry.MustRegister(
		c.blocksTotal, c.txsTotal, c.battlesByState, c.rewardsPaid, c.blockHeight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if mempoolLen != nil {
		c.mempoolSize = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "petchain_mempool_size",
			Help: "Number of pending transactions in the mempool.",
		}, func() float64 { return float64(mempoolLen()) })
		c.registry.MustRegister(c.mempoolSize)
	}

	emitter.Subscribe(events.EventBlockCommit, c.onBlockCommit)
	emitter.Subscribe(events.EventTxExecuted, c.onTxExecuted)
	emitter.Subscribe(events.EventBattleRegistered, func(events.Event) {
		c.battlesByState.WithLabelValues("pending_match").Inc()
	})
	emitter.Subscribe(events.EventBattleInitiated, func(events.Event) {
		c.battlesByState.WithLabelValues("in_progress").Inc()
	})
	emitter.Subscribe(events.EventBattleConcluded, c.onBattleConcluded)
	emitter.Subscribe(events.EventBattleFled, func(events.Event) {
		c.battlesByState.WithLabelValues("aborted").Inc()
	})
	return c
}

func (c *Collector) onBlockCommit(ev events.Event) {
	c.blocksTotal.Inc()
	c.blockHeight.Set(float64(ev.BlockHeight))
}

func (c *Collector) onTxExecuted(ev events.Event) {
	typ, _ := ev.Data["type"].(string)
	if typ == "" {
		typ = "unknown"
	}
	c.txsTotal.WithLabelValues(typ).Inc()
}

func (c *Collector) onBattleConcluded(ev events.Event) {
	c.battlesByState.WithLabelValues("concluded").Inc()
	switch r := ev.Data["reward"].(type) {
	case uint64:
		c.rewardsPaid.Add(float64(r))
	case float64:
		c.rewardsPaid.Add(r)
	}
}

// Handler returns the scrape endpoint for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Server serves the /metrics endpoint on its own listener.
type Server struct {
	srv *http.Server
}

// NewServer creates a metrics HTTP server on addr.
func NewServer(addr string, c *Collector) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start serves until Stop is called. Blocks; run it in a goroutine.
func (s *Server) Start() error {
	log.Printf("[metrics] listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
