package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"

	"github.com/m3rciful/linzabot/core/bootstrap"
	corecmd "github.com/m3rciful/linzabot/core/cmd"
	"github.com/m3rciful/linzabot/core/logger"
	tg "github.com/m3rciful/linzabot/core/telegram"
	tgsender "github.com/m3rciful/linzabot/core/telegram/sender"
	"github.com/m3rciful/linzabot/core/telegram/state"
	"github.com/m3rciful/linzabot/internal/bot"
	"github.com/m3rciful/linzabot/internal/form"
	"github.com/m3rciful/linzabot/internal/metrics"
	"github.com/m3rciful/linzabot/internal/storage"
	"github.com/m3rciful/linzabot/migrations"
)

// App owns the database, the conversation sessions and the background jobs.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	sessions *bot.Sessions
	bot      *bot.Bot

	cron    *cron.Cron
	metrics *metrics.Server
}

// LoadConfig adapts Load to the process runner.
func LoadConfig(path string) (corecmd.ConfigCarrier, error) {
	return Load(path)
}

// Bootstrap initialises logging, opens the database, applies migrations and
// builds the bot.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	res, err := bootstrap.Run(bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Migrations: migrations.FS,
	})
	if err != nil {
		return nil, err
	}
	a, err := New(cfg, res.DB)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	return a, nil
}

// New builds the bot on an already migrated database.
func New(cfg *Config, db *sqlx.DB) (*App, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("app: config and database are required")
	}
	machine, err := form.NewMachine(storage.New(db, cfg.Database.WriteTimeout), form.Options{
		Prompts:    cfg.Form.Questions,
		SupportURL: cfg.Form.SupportURL,
	})
	if err != nil {
		return nil, err
	}
	sessions := state.NewManager[form.Session]()
	return &App{
		cfg:      cfg,
		db:       db,
		sessions: sessions,
		bot:      bot.New(machine, sessions),
		metrics:  metrics.NewServer(cfg.Metrics.Listen),
	}, nil
}

// TelegramRunOptions registers the bot commands and returns everything RunTelegram needs.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	a.bot.Register(reg)

	mws := tg.DefaultMiddlewares(&a.cfg.Config, nil)
	mws = append(mws, tg.Middleware{Name: "updates", Use: bot.CountUpdates})

	return tg.RunOptions{
		Config:   &a.cfg.Config,
		Registry: reg,
		DispatcherOptions: tgsender.Options{
			MaxRetries:   2,
			RetryBackoff: time.Second,
		},
		Middlewares: mws,
		Routes:      a.bot.Routes(reg),
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(_ context.Context, _ tg.Runtime) error {
	c := cron.New()
	spec := fmt.Sprintf("@every %s", a.cfg.Session.SweepInterval)
	if _, err := c.AddFunc(spec, a.sweep); err != nil {
		return fmt.Errorf("app: schedule session sweep: %w", err)
	}
	c.Start()
	a.cron = c
	logger.State.Info("session sweeper started",
		slog.String("event", "state.sweeper"),
		slog.Duration("interval", a.cfg.Session.SweepInterval),
		slog.Duration("idle_ttl", a.cfg.Session.IdleTTL),
	)

	a.metrics.Start()
	return nil
}

func (a *App) onStop(ctx context.Context, _ tg.Runtime) error {
	if a.cron != nil {
		<-a.cron.Stop().Done()
		a.cron = nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return a.metrics.Shutdown(shutdownCtx)
}

func (a *App) sweep() {
	a.sessions.Sweep(a.cfg.Session.IdleTTL)
	metrics.ActiveSessions.Set(float64(a.sessions.Len()))
}

// Close releases the database.
func (a *App) Close() error {
	return a.db.Close()
}
