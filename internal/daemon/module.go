// Package daemon composes the harvesting pipeline with fx: browser,
// crawler, processor, scanner, store, verification client and the HTTP
// inspection server, all scoped to one session.
package daemon

import (
	"context"
	"os"

	"github.com/abir2776/extract-message-whatsapp/internal/bus"
	"github.com/abir2776/extract-message-whatsapp/internal/config"
	"github.com/abir2776/extract-message-whatsapp/internal/crawler"
	"github.com/abir2776/extract-message-whatsapp/internal/dom"
	"github.com/abir2776/extract-message-whatsapp/internal/lock"
	"github.com/abir2776/extract-message-whatsapp/internal/logging"
	"github.com/abir2776/extract-message-whatsapp/internal/processor"
	"github.com/abir2776/extract-message-whatsapp/internal/scanner"
	"github.com/abir2776/extract-message-whatsapp/internal/session"
	"github.com/abir2776/extract-message-whatsapp/internal/status"
	"github.com/abir2776/extract-message-whatsapp/internal/store"
	"github.com/abir2776/extract-message-whatsapp/internal/verify"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	HTTPAddr    string // optional override for testing; empty = use config
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideVerifier,
			provideStore,
			provideBrowser,
			provideDocument,
			provideCrawler,
			provideProcessor,
			provideScanner,
			provideServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		return nil, err
	}
	// The verification key never lives in the config file.
	if key := os.Getenv("HARVESTER_VERIFY_KEY"); key != "" {
		cfg.Verify.Key = key
	}
	if p.HTTPAddr != "" {
		cfg.HTTP.Addr = p.HTTPAddr
	}
	return cfg, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideVerifier(cfg *config.Config, logger *zap.Logger) *verify.Client {
	return verify.New(cfg.Verify.URL, cfg.Verify.Key, cfg.Verify.Timeout.Duration, logger)
}

func provideStore(p Params, cfg *config.Config, client *verify.Client, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
	db, err := store.Open(dbPath, client,
		store.WithMinPhoneLength(cfg.Store.MinPhoneLength))
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideBrowser(p Params, cfg *config.Config, logger *zap.Logger) (*dom.Browser, error) {
	return dom.NewBrowser(dom.BrowserOptions{
		ProfileDir:   session.ProfileDir(p.SessionName),
		Headless:     cfg.Browser.Headless,
		WindowWidth:  cfg.Browser.WindowWidth,
		WindowHeight: cfg.Browser.WindowHeight,
	}, logger)
}

func provideDocument(b *dom.Browser) dom.Document {
	return b.Document()
}

func provideCrawler(doc dom.Document, cfg *config.Config, logger *zap.Logger) *crawler.Crawler {
	crawlCfg := crawler.DefaultConfig()
	crawlCfg.ScrollFraction = cfg.Scan.ScrollFraction
	crawlCfg.ScrollSteps = cfg.Scan.ScrollSteps
	return crawler.New(doc, crawlCfg, logger)
}

func provideProcessor(doc dom.Document, cr *crawler.Crawler, db *store.DB, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *processor.Processor {
	return processor.New(doc, cr, db, b, processor.Config{
		MessageWindow: cfg.Scan.MessageWindow,
		SettleDelay:   cfg.Scan.SettleDelay.Duration,
	}, logger)
}

func provideScanner(cr *crawler.Crawler, proc *processor.Processor, machine *status.Machine, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *scanner.Scanner {
	return scanner.New(cr, proc, machine, b, scanner.Config{
		EmptyBatchLimit: cfg.Scan.EmptyBatchLimit,
		MaxChatsPerScan: cfg.Scan.MaxChatsPerScan,
		RescanInterval:  cfg.Scan.RescanInterval.Duration,
	}, logger)
}

func provideServer(p Params, cfg *config.Config, db *store.DB, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *Server {
	return NewServer(cfg.HTTP.Addr, p.SessionName, db, machine, b, logger)
}

func registerLifecycle(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	srv *Server,
	lk *lock.Lock,
	browser *dom.Browser,
	doc dom.Document,
	cr *crawler.Crawler,
	sc *scanner.Scanner,
	machine *status.Machine,
	db *store.DB,
	cfg *config.Config,
	logger *zap.Logger,
) {
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()

			// Navigation and login can take minutes; run the pipeline
			// outside the start hook.
			go func() {
				if err := doc.Navigate(runCtx, cfg.Browser.TargetURL); err != nil {
					logger.Error("navigation failed", zap.Error(err))
					_ = machine.Transition(status.Error)
					_ = shutdowner.Shutdown()
					return
				}

				_ = machine.Transition(status.LoginRequired)
				logger.Info("waiting for chat list, complete login in the browser if prompted",
					zap.Duration("timeout", cfg.Scan.LoginTimeout.Duration))
				if err := cr.WaitForList(runCtx, cfg.Scan.LoginTimeout.Duration); err != nil {
					if runCtx.Err() == nil {
						logger.Error("login wait failed", zap.Error(err))
						_ = machine.Transition(status.Error)
						_ = shutdowner.Shutdown()
					}
					return
				}
				_ = machine.Transition(status.Idle)

				if err := sc.Run(runCtx); err != nil && runCtx.Err() == nil {
					// Losing the document is the one fatal pipeline error.
					logger.Error("scan loop terminated", zap.Error(err))
					_ = machine.Transition(status.Error)
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			srv.Stop(ctx)
			browser.Close()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
