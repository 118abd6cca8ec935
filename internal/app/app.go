package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"

	"oracle-pricefeed/internal/alerting"
	"oracle-pricefeed/internal/api"
	"oracle-pricefeed/internal/config"
	"oracle-pricefeed/internal/oracle"
	"oracle-pricefeed/internal/relayer"
	"oracle-pricefeed/internal/scheduler"
	"oracle-pricefeed/internal/service"
	"oracle-pricefeed/internal/storage"
	"oracle-pricefeed/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newNotifier(store *storage.Store) oracle.Notifier {
	notifiers := []oracle.Notifier{alerting.NewLogNotifier(a.Logger)}

	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		notifiers = append(notifiers, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
	}
	if store != nil {
		notifiers = append(notifiers, storage.NewAuditNotifier(store, a.Logger))
	}

	return alerting.NewFanout(a.Logger, notifiers...)
}

func (a *App) newEngine(notifier oracle.Notifier) (*service.Engine, error) {
	auth := oracle.NewStaticAuthorizer(a.Config.Oracle.AuthorizedCallers)

	engine := service.NewEngine(service.Options{
		ReplayWindow:   a.Config.Oracle.ReplayWindow,
		RoundTolerance: a.Config.Oracle.RoundToleranceMS,
		HCCWindowSize:  a.Config.Oracle.HCC.WindowSize,
		HCCBandWidth:   a.Config.Oracle.HCC.BandWidth,
		HCCPairs:       a.Config.Oracle.HCC.Pairs,
	}, auth, oracle.WallClock{}, notifier, a.Logger)

	for _, seed := range a.Config.Oracle.Committees {
		raw, err := hexutil.Decode(seed.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("committee %d key: %w", seed.CommitteeID, err)
		}
		if err := engine.SeedCommittee(seed.CommitteeID, raw); err != nil {
			return nil, fmt.Errorf("committee %d key: %w", seed.CommitteeID, err)
		}
	}

	return engine, nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	if err := storage.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running gateway: HTTP API plus, when relay endpoints
// are configured, a scheduler-driven relay poller.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; audit persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}
	if store != nil {
		if total, err := store.CountUpdates(ctx); err == nil {
			a.Logger.Info().Int64("audited_updates", total).Msg("audit store attached")
		}
	}

	notifier := a.newNotifier(store)
	engine, err := a.newEngine(notifier)
	if err != nil {
		return err
	}

	server := api.NewServer(api.Options{
		ListenAddr:      a.Config.Server.ListenAddr,
		ReadTimeout:     a.Config.Server.ReadTimeout,
		WriteTimeout:    a.Config.Server.WriteTimeout,
		ShutdownTimeout: a.Config.Server.ShutdownTimeout,
	}, engine, a.Logger)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	errCh := make(chan error, 2)
	active := 1

	go func() {
		errCh <- server.Run(runCtx)
	}()

	if len(a.Config.Relay.Endpoints) > 0 {
		active++
		sched := scheduler.New(scheduler.Options{
			Interval:     a.Config.Scheduler.Interval,
			AlignToStart: a.Config.Scheduler.AlignToBucket,
			StartupDelay: a.Config.Scheduler.StartupDelay,
		}, a.Logger)
		rel := relayer.New(relayer.Options{
			Endpoints: a.Config.Relay.Endpoints,
			Timeout:   a.Config.Relay.RequestTimeout,
			UserAgent: a.Config.Relay.UserAgent,
		}, a.Logger)

		go func() {
			errCh <- sched.Run(runCtx, a.pollFunc(store, rel, engine))
		}()
	} else {
		a.Logger.Info().Msg("no relay endpoints configured; ingest is HTTP-only")
	}

	a.Logger.Info().Str("build", version.String()).Msg("starting oracle gateway")

	var firstErr error
	for i := 0; i < active; i++ {
		err := <-errCh
		if err != nil && !errors.Is(err, context.Canceled) && firstErr == nil {
			firstErr = err
		}
		stop()
	}

	if firstErr != nil {
		a.Logger.Error().Err(firstErr).Msg("gateway terminated with error")
		return firstErr
	}
	a.Logger.Info().Msg("gateway stopped")
	return nil
}

// pollFunc wraps one relay poll. With a store present the advisory lock keeps
// concurrent deployments from double-ingesting the same batches.
func (a *App) pollFunc(store *storage.Store, rel *relayer.Relayer, engine *service.Engine) scheduler.PollFunc {
	return func(ctx context.Context, tick time.Time) error {
		if store != nil {
			unlock, ok, err := store.TryAdvisoryLock(ctx, a.Config.Scheduler.AdvisoryLockKey)
			if err != nil {
				return err
			}
			if !ok {
				a.Logger.Debug().Time("tick", tick).Msg("another instance holds the relay lock")
				return nil
			}
			defer unlock()
		}
		return rel.PollOnce(ctx, engine)
	}
}

// ExportOptions hold parameters for exporting price history.
type ExportOptions struct {
	PairID    uint32
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	PairID      uint32
	Limit       int
	Transitions bool
}

// SimulateOptions configure the simulate-batch command.
type SimulateOptions struct {
	CommitteeID uint64
	PairIDs     []uint32
	Seed        int64
	WindowSize  int
	BandWidth   uint64
	Rounds      int
}

// KeyOptions configure committee key administration.
type KeyOptions struct {
	CommitteeID uint64
	PublicKey   string
}
