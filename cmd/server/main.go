package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/technosupport/fusion-pipeline/internal/alarm"
	"github.com/technosupport/fusion-pipeline/internal/api"
	"github.com/technosupport/fusion-pipeline/internal/automation"
	"github.com/technosupport/fusion-pipeline/internal/config"
	"github.com/technosupport/fusion-pipeline/internal/data"
	"github.com/technosupport/fusion-pipeline/internal/event"
	"github.com/technosupport/fusion-pipeline/internal/ingest"
	"github.com/technosupport/fusion-pipeline/internal/pipeline"
	"github.com/technosupport/fusion-pipeline/internal/realtime"
)

func main() {
	configPath := flag.String("config", "config/default.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. DB
	db, err := sql.Open("postgres", cfg.DatabaseDSN())
	if err != nil {
		log.Fatalf("DB open error: %v", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("DB ping error: %v", err)
	}

	// 2. Shared clients, constructed once and injected everywhere.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		log.Fatalf("NATS connect error: %v", err)
	}

	// 3. Repositories
	eventRepo := data.EventModel{DB: db}
	deviceRepo := data.DeviceModel{DB: db}
	areaRepo := data.AreaModel{DB: db}
	automationRepo := data.AutomationModel{DB: db}

	// 4. Alarm rules + evaluator
	rules := alarm.NewRuleSet(cfg.Alarm.RulesPath)
	rules.StartWatcher(ctx)
	evaluator := alarm.NewEvaluator(areaRepo, rules)

	// 5. Realtime publish + automation dispatch
	publisher := realtime.NewPublisher(rdb)
	dispatcher := automation.NewNATSDispatcher(nc, cfg.NATS.AutomationSubject, cfg.NATS.MaxRetries)

	// 6. Pipeline
	gate := pipeline.NewGate(publisher, automationRepo)
	processor := pipeline.NewProcessor(
		eventRepo, deviceRepo, publisher, gate,
		nil, // thumbnail fetcher is wired by camera connector deployments
		evaluator, dispatcher,
		pipeline.Config{
			FetchTimeout:    cfg.Pipeline.FetchTimeout.Std(),
			CameraCacheSize: cfg.Pipeline.CameraCacheSize,
			CameraCacheTTL:  cfg.Pipeline.CameraCacheTTL.Std(),
		},
	)

	// 7. Ingest consumer
	consumer := ingest.NewConsumer(nc, processor, ingest.Config{
		Subject:     cfg.NATS.IngestSubject,
		Queue:       cfg.NATS.IngestQueue,
		MaxInflight: cfg.Pipeline.MaxInflight,
	})
	if err := consumer.Start(ctx); err != nil {
		log.Fatalf("Ingest start error: %v", err)
	}

	// 8. HTTP surface
	clusterCfg := event.DefaultClusterConfig()
	if cfg.Pipeline.DefaultWindow > 0 {
		clusterCfg.DefaultWindow = cfg.Pipeline.DefaultWindow.Std()
	}
	if cfg.Pipeline.SameDeviceWindow > 0 {
		clusterCfg.SameDeviceWindow = cfg.Pipeline.SameDeviceWindow.Std()
	}
	router := api.NewRouter(
		api.NewTimelineHandler(eventRepo, clusterCfg),
		api.NewArmingHandler(areaRepo),
		api.NewStreamHandler(rdb),
	)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Fusion pipeline listening on %s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// 9. Shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] HTTP shutdown: %v", err)
	}

	cancel()
	consumer.Stop()
	nc.Close()
	rdb.Close()
	db.Close()
}
