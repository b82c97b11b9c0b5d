package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/nfcgate/internal/config"
	"github.com/BrandonDHaskell/nfcgate/internal/db"
	"github.com/BrandonDHaskell/nfcgate/internal/metrics"
	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/service"
	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/store/sqlite"
	"github.com/BrandonDHaskell/nfcgate/internal/notify"
	"github.com/BrandonDHaskell/nfcgate/internal/serialreader"
)

// app is the wired dependency graph shared by the long-running commands.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	conn   *sql.DB
	writer *db.Worker

	users   *sqlite.UserStore
	journal *sqlite.JournalStore

	engine    *service.Engine
	status    *service.StatusService
	cache     *service.RecentCache
	refresher *service.CacheRefresher
	metrics   *metrics.Collector

	nats *nats.Conn
}

func openApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.SeedMasterKey(ctx, conn, cfg.MasterKey); err != nil {
		_ = conn.Close()
		return nil, err
	}
	logger.Info("database ready", zap.String("path", cfg.DBPath))

	a := &app{
		cfg:     cfg,
		logger:  logger,
		conn:    conn,
		writer:  db.NewWorker(conn),
		cache:   service.NewRecentCache(cfg.RecentCacheSize),
		metrics: metrics.New(),
	}
	a.users = sqlite.NewUserStore(conn, a.writer)
	a.journal = sqlite.NewJournalStore(conn, a.writer)

	observers := []service.ScanObserver{a.cache, a.metrics}
	if cfg.NATSURL != "" {
		nc, err := notify.Connect(notify.Options{URL: cfg.NATSURL, Token: cfg.NATSToken, Name: "nfcgate"})
		if err != nil {
			// Notifications are optional; the gateway runs without them.
			logger.Warn("nats unavailable, scan notifications disabled", zap.String("url", cfg.NATSURL), zap.Error(err))
		} else {
			a.nats = nc
			observers = append(observers, notify.New(nc, cfg.NATSSubject, logger.Named("notify")))
			logger.Info("publishing scans to nats", zap.String("subject", cfg.NATSSubject))
		}
	}

	a.engine = service.NewEngine(a.users, a.journal, service.EngineConfig{MasterKey: cfg.MasterKey}, observers...)
	a.status = service.NewStatusService(a.engine, a.users, a.journal, a.cache)
	a.refresher = service.NewCacheRefresher(a.journal, a.cache, service.RefresherConfig{
		IntervalMinutes: cfg.CacheResyncMinutes,
	}, logger.Named("cache"))
	a.refresher.Start(ctx)

	return a, nil
}

func (a *app) newReader(onConn ...func(bool, string)) *serialreader.Reader {
	discover := serialreader.KeywordDiscoverer(a.cfg.SerialKeywords, a.cfg.SerialFallback)
	hooks := append([]func(bool, string){a.metrics.ReaderConnected}, onConn...)

	return serialreader.New(a.engine, serialreader.Config{
		PortName:    a.cfg.SerialPort,
		BaudRate:    a.cfg.SerialBaud,
		Attempts:    a.cfg.ConnectAttempts,
		Pause:       a.cfg.ConnectPause,
		SettleDelay: serialreader.DefaultSettleDelay,
	}, a.logger.Named("reader"),
		serialreader.WithDiscoverer(discover),
		serialreader.WithConnectionHook(func(connected bool, port string) {
			for _, h := range hooks {
				h(connected, port)
			}
		}),
	)
}

func (a *app) pingStore(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return a.conn.PingContext(ctx)
}

func (a *app) Close() {
	a.refresher.Stop()
	if a.nats != nil {
		if err := a.nats.Drain(); err != nil {
			a.logger.Warn("nats drain failed", zap.Error(err))
		}
	}
	a.writer.Close()
	if err := a.conn.Close(); err != nil {
		a.logger.Warn("database close failed", zap.Error(err))
	}
}
