// Package server orchestrates all components: store, NATS lifecycle publisher,
// Discord sessions, the dbi instance and the HTTP status endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/dbi/internal/config"
	"github.com/morezero/dbi/pkg/clients"
	"github.com/morezero/dbi/pkg/commsutil"
	"github.com/morezero/dbi/pkg/db"
	"github.com/morezero/dbi/pkg/dbi"
	"github.com/morezero/dbi/pkg/events"
	"github.com/morezero/dbi/pkg/locale"
	"github.com/morezero/dbi/pkg/publish"
	"github.com/morezero/dbi/pkg/registry"
	"github.com/morezero/dbi/pkg/store"
)

const logPrefix = "server:server"

// Server is the dbi orchestrator.
type Server struct {
	cfg        *config.Config
	bot        *dbi.DBI
	nc         *comms.Conn
	pool       *pgxpool.Pool
	closers    []func()
	httpServer *http.Server
}

// ParseLogLevel maps LOG_LEVEL to a slog level. Unknown values mean info.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogging(cfg *config.Config) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: ParseLogLevel(cfg.LogLevel)})))
}

// openStore connects the configured store backend.
func (s *Server) openStore(ctx context.Context) (store.Store, error) {
	switch s.cfg.StoreBackend {
	case store.BackendMemory, "":
		return store.NewMemoryStore(), nil
	case store.BackendRedis:
		rs, err := store.NewRedisStore(ctx, s.cfg.RedisURL, s.cfg.StorePrefix)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { rs.Close() })
		return rs, nil
	case store.BackendPostgres:
		pool, err := db.NewPool(ctx, s.cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.pool = pool
		s.closers = append(s.closers, pool.Close)
		if s.cfg.RunMigrations {
			migrationSQL, err := db.LoadMigrationFiles(s.cfg.MigrationPath)
			if err != nil {
				return nil, fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
			}
			if err := db.RunMigrations(ctx, pool, migrationSQL); err != nil {
				return nil, fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
			}
		}
		return store.NewPostgresStore(pool), nil
	default:
		return nil, fmt.Errorf("%s - %q: %w", logPrefix, s.cfg.StoreBackend, store.ErrUnsupportedBackend)
	}
}

// openPublisher connects to NATS when COMMS_URL is set.
func (s *Server) openPublisher() (events.EventPublisher, error) {
	if s.cfg.COMMSURL == "" {
		slog.Info(fmt.Sprintf("%s - COMMS_URL not set, lifecycle publishing disabled", logPrefix))
		return &events.NoOpPublisher{}, nil
	}
	nc, err := commsutil.Connect(s.cfg.COMMSURL, s.cfg.COMMSName)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
	}
	s.nc = nc
	s.closers = append(s.closers, func() { nc.Drain() })
	slog.Info(fmt.Sprintf("%s - Connected to NATS at %s", logPrefix, s.cfg.COMMSURL))
	return events.NewCommsPublisher(nc, &events.CommsPublisherOpts{BaseSubject: s.cfg.LifecycleSubject}), nil
}

// build wires store, publisher, sessions and the dbi instance, then loads
// locales and definitions.
func build(ctx context.Context, cfg *config.Config, fns []registry.RegisterFunc) (*Server, error) {
	s := &Server{cfg: cfg}

	st, err := s.openStore(ctx)
	if err != nil {
		s.close()
		return nil, err
	}
	pub, err := s.openPublisher()
	if err != nil {
		s.close()
		return nil, err
	}

	sessions, err := clients.NewSessions(clients.Options{
		Tokens:     cfg.DiscordTokens,
		Sharding:   cfg.Sharding,
		ShardCount: cfg.ShardCount,
		Intents:    discordgo.IntentsAllWithoutPrivileged,
	})
	if err != nil {
		s.close()
		return nil, fmt.Errorf("%s - failed to create sessions: %w", logPrefix, err)
	}

	bot, err := dbi.New(dbi.NewParams{
		Config: dbi.Config{
			Strict:        cfg.Strict,
			DefaultLocale: cfg.DefaultLocale,
			ReferenceTTL:  cfg.ReferenceTTL,
			SweepInterval: cfg.SweepInterval,
			InlineTTL:     cfg.InlineTTL,
		},
		Clients:   sessions,
		Store:     st,
		Publisher: pub,
	})
	if err != nil {
		s.close()
		return nil, err
	}
	s.bot = bot

	if cfg.LocaleDir != "" {
		if err := locale.LoadDir(cfg.LocaleDir, bot.Locales(), bot.Registry().Interactions()); err != nil {
			s.close()
			return nil, fmt.Errorf("%s - failed to load locales: %w", logPrefix, err)
		}
	}
	bot.Register(fns...)
	if err := bot.Load(cfg.Flags...); err != nil {
		// Definitions that did register stay usable.
		slog.Error(fmt.Sprintf("%s - load finished with errors: %v", logPrefix, err))
	}
	return s, nil
}

func (s *Server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Run starts the bot, blocks until shutdown signal, then cleans up.
func Run(fns ...registry.RegisterFunc) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	setupLogging(cfg)
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting dbi", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := build(ctx, cfg, fns)
	if err != nil {
		return err
	}
	defer s.close()

	// Handlers are attached before the gateway connects so no event is missed.
	s.bot.Start(ctx)
	defer s.bot.Stop()
	for _, c := range s.bot.Clients().All() {
		if err := c.Session.Open(); err != nil {
			return fmt.Errorf("%s - failed to open session %s: %w", logPrefix, c.Name, err)
		}
		session := c.Session
		defer session.Close()
		slog.Info(fmt.Sprintf("%s - Session %s connected", logPrefix, c.Name))
	}

	httpAddr := cfg.HTTPAddr
	if httpAddr == "" {
		httpAddr = fmt.Sprintf(":%d", cfg.HTTPPort)
	}
	s.httpServer = &http.Server{Addr: httpAddr, Handler: s.Handler()}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, httpAddr))
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - dbi is ready", logPrefix))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	s.httpServer.Shutdown(ctx)
	s.bot.Unload()

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// Publish loads the definitions and pushes the command tree to the scope
// named by scopeOverride, or PUBLISH_SCOPE when empty.
func Publish(scopeOverride string, force bool, fns ...registry.RegisterFunc) (*publish.Result, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	setupLogging(cfg)
	if scopeOverride != "" {
		cfg.PublishScope = scopeOverride
	}
	if err := cfg.ValidateForPublish(); err != nil {
		return nil, err
	}

	ctx := context.Background()
	s, err := build(ctx, cfg, fns)
	if err != nil {
		return nil, err
	}
	defer s.close()

	return s.bot.Publish(ctx, publish.Options{
		AppID:   cfg.DiscordAppID,
		Scope:   cfg.Scope(),
		GuildID: cfg.PublishGuildID,
		Version: cfg.PublishVersion,
		Force:   force,
	})
}
