package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"titan/config"
	"titan/domain/book"
	"titan/gateway"
	"titan/infra/journal"
	"titan/infra/metrics"
	"titan/infra/sequence"
	"titan/ingest/feed"
	"titan/ingest/kraken"
	"titan/jobs/broadcaster"
	"titan/jobs/publisher"
	"titan/pkg/logger"
	"titan/service"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ---------------- Engine ----------------

	log.Info("allocating order book",
		zap.Int64("price_levels", cfg.Engine.PriceLevels),
		zap.Int("pool_capacity", cfg.Engine.PoolCapacity))

	bk := book.New(book.Config{
		PoolCapacity:    cfg.Engine.PoolCapacity,
		PriceLevels:     cfg.Engine.PriceLevels,
		RingSize:        cfg.Engine.RingSize,
		SuppressAccepts: cfg.Engine.SuppressAccepts,
		SuppressCancels: cfg.Engine.SuppressCancels,
		Logger:          log,
	})
	seq := sequence.New(0)
	svc := service.New(bk, seq, log)

	// ---------------- Metrics ----------------

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	metrics.RegisterBook(reg, bk)

	metricsSrv := &http.Server{
		Addr:    cfg.Metrics.Addr,
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	go func() {
		log.Info("metrics listening", zap.String("addr", cfg.Metrics.Addr))
		if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Error("metrics server exited", zap.Error(err))
		}
	}()

	// ---------------- Dashboard ----------------

	bc := broadcaster.New(bk, cfg.Dashboard.Depth,
		time.Duration(cfg.Dashboard.IntervalMS)*time.Millisecond, log, m)
	go bc.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", bc.ServeWS)
	dashSrv := &http.Server{Addr: cfg.Dashboard.Addr, Handler: mux}
	go func() {
		log.Info("dashboard listening", zap.String("addr", cfg.Dashboard.Addr))
		if err := dashSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Error("dashboard server exited", zap.Error(err))
		}
	}()

	// ---------------- Event pipeline ----------------

	var jnl *journal.Journal
	if cfg.Journal.Enabled {
		jnl, err = journal.Open(cfg.Journal.Dir)
		if err != nil {
			log.Fatal("journal open failed", zap.Error(err))
		}
		defer jnl.Close()
	}

	if cfg.Kafka.Enabled {
		pub, err := publisher.New(bk.Output(), svc.Flush,
			cfg.Kafka.Brokers, cfg.Kafka.Topic, jnl, seq,
			10*time.Millisecond, log, m)
		if err != nil {
			log.Fatal("publisher init failed", zap.Error(err))
		}
		defer pub.Close()
		go pub.Run(ctx)
	}

	// ---------------- Ingest ----------------

	if cfg.Ingest.Kraken.Enabled {
		bridge := kraken.NewBridge(cfg.Ingest.Kraken.URL, cfg.Ingest.Kraken.Symbol,
			cfg.Ingest.Kraken.Depth, svc, log)
		go bridge.Run(ctx)
	}

	if cfg.Ingest.Feed.Enabled {
		consumer := feed.New(cfg.Ingest.Feed.Brokers, cfg.Ingest.Feed.Topic,
			cfg.Ingest.Feed.GroupID, svc, log)
		defer consumer.Close()
		go consumer.Run(ctx)
	}

	// ---------------- Gateway ----------------

	gw := gateway.New(cfg.Gateway.Addr, svc, log, m)
	if err := gw.Start(); err != nil {
		log.Fatal("gateway start failed", zap.Error(err))
	}

	<-ctx.Done()
	log.Info("shutting down")

	gw.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = dashSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
