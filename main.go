package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vwapbook/config"
	"vwapbook/db"
	"vwapbook/exchange"
	"vwapbook/logger"
	"vwapbook/metrics"
	"vwapbook/orderbook"
	"vwapbook/view"
)

type output struct {
	Feed *exchange.Snapshot `json:"feed"`
	Book orderbook.Snapshot `json:"book"`
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("run_failed", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var repo db.Repo = db.NewMemRepo()
	if cfg.Store.Path != "" {
		p, err := db.NewPebbleRepo(cfg.Store.Path)
		if err != nil {
			return err
		}
		p.SetSync(cfg.Store.Sync)
		repo = p
	}
	defer repo.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics_server_failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	weight, err := cfg.Weight()
	if err != nil {
		return err
	}
	engine := view.New(view.WithWeight(weight), view.WithValidation(cfg.Engine.Validate))
	feed, err := exchange.NewFeed(exchange.Config{
		Symbol:    cfg.Book.Symbol,
		Mode:      orderbook.TrackMode(cfg.Book.Side),
		Brokers:   cfg.Book.Brokers,
		QueueSize: cfg.Feed.QueueSize,
	}, engine, repo, exchange.WithLogger(log), exchange.WithMetrics(m))
	if err != nil {
		return err
	}
	log.Info("feed_started",
		zap.String("symbol", cfg.Book.Symbol),
		zap.String("session", feed.Session().String()),
		zap.String("side", cfg.Book.Side),
		zap.String("weight", weight.String()))

	var in io.Reader = os.Stdin
	if cfg.Feed.Path != "" {
		file, err := os.Open(cfg.Feed.Path)
		if err != nil {
			return err
		}
		defer file.Close()
		in = file
	}

	if err := feed.Consume(ctx, in); err != nil {
		return err
	}
	if ctx.Err() != nil {
		log.Warn("feed_interrupted")
	}

	latest := feed.Latest()
	fields := []zap.Field{zap.Uint64("lines", latest.Lines), zap.Uint64("events", latest.View.Applied)}
	if latest.View.HasResult {
		fields = append(fields, zap.String("threshold", latest.View.Threshold.String()), zap.String("result", latest.View.Result.String()))
	}
	log.Info("feed_finished", fields...)

	if cfg.Output.SnapshotPath == "" {
		return nil
	}
	data, err := json.Marshal(output{Feed: latest, Book: feed.Book().Snapshot()})
	if err != nil {
		return err
	}
	return os.WriteFile(cfg.Output.SnapshotPath, data, 0644)
}
