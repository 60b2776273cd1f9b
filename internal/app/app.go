// Package app wires all carecompanion subsystems into a running server.
//
// The App struct owns the full lifecycle: New opens the store and builds the
// chat service and HTTP surface, Run serves until its context ends, and
// Shutdown drains the HTTP server and closes everything else in order.
//
// For testing, inject doubles via functional options (WithStore, WithRand,
// WithListener, ...). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/MrWong99/carecompanion/internal/api"
	"github.com/MrWong99/carecompanion/internal/chat"
	"github.com/MrWong99/carecompanion/internal/config"
	"github.com/MrWong99/carecompanion/internal/health"
	"github.com/MrWong99/carecompanion/internal/observe"
	"github.com/MrWong99/carecompanion/internal/store"
	"github.com/MrWong99/carecompanion/pkg/cue"
	"github.com/MrWong99/carecompanion/pkg/provider/llm"
	"github.com/MrWong99/carecompanion/pkg/provider/tts"
)

// Providers holds one interface value per provider slot. Nil TTS means
// replies are text-only. Populated by main.go via the config registry.
type Providers struct {
	LLM llm.Provider
	TTS tts.Provider

	// DefaultVoice is the TTS provider's stock voice, used when the config
	// maps no voice for a speaking style.
	DefaultVoice string
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	store    store.Store
	checkers []health.Checker
	chat     *chat.Service
	metrics  *observe.Metrics
	rand     cue.Rand
	logLevel *slog.LevelVar

	handler  http.Handler
	server   *http.Server
	listener net.Listener

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once

	// reloadMu serialises ApplyConfig calls.
	reloadMu sync.Mutex
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a store instead of creating one from config.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithRand sets the random source for animation selection.
func WithRand(r cue.Rand) Option {
	return func(a *App) { a.rand = r }
}

// WithMetrics records instruments on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel lets [App.ApplyConfig] change the level of the process logger.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// WithListener makes Run serve on ln instead of listening on
// cfg.Server.ListenAddr.
func WithListener(ln net.Listener) Option {
	return func(a *App) { a.listener = ln }
}

// WithReadinessCheck adds a checker to /readyz.
func WithReadinessCheck(c health.Checker) Option {
	return func(a *App) { a.checkers = append(a.checkers, c) }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.LLM == nil {
		return nil, errors.New("app: an LLM provider is required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Store ─────────────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Chat service ──────────────────────────────────────────────────
	a.initChat()

	// ── 3. HTTP surface ──────────────────────────────────────────────────
	a.initHTTP()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore opens PostgreSQL when a DSN is configured and falls back to the
// in-memory store otherwise.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	dsn := a.cfg.Database.PostgresDSN
	if dsn == "" {
		slog.Warn("no database configured, using in-memory store")
		a.store = store.NewMemStore()
		return nil
	}

	pool, err := store.Open(ctx, dsn, a.cfg.Database.MaxConns)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})

	pg := store.NewPostgresStore(pool)
	if err := pg.Migrate(ctx); err != nil {
		return err
	}
	a.store = pg
	a.checkers = append(a.checkers, health.PingChecker("database", pool))
	slog.Info("connected to postgres", "max_conns", pool.Config().MaxConns)
	return nil
}

func (a *App) initChat() {
	opts := []chat.Option{
		chat.WithLLMName(a.cfg.Providers.LLM.Name),
		chat.WithMetrics(a.metrics),
		chat.WithSettings(a.chatSettings(a.cfg.Chat)),
	}
	if a.providers.TTS != nil {
		opts = append(opts, chat.WithTTS(a.providers.TTS, a.cfg.Providers.TTS.Name))
	}
	if a.rand != nil {
		opts = append(opts, chat.WithRand(a.rand))
	}
	a.chat = chat.New(a.store, a.providers.LLM, opts...)
}

func (a *App) initHTTP() {
	mux := http.NewServeMux()
	health.New(a.checkers...).Register(mux)
	api.New(a.chat).Register(mux)
	metricsPath := a.cfg.Server.MetricsPath
	if metricsPath == "" {
		metricsPath = config.DefaultMetricsPath
	}
	mux.Handle("GET "+metricsPath, observe.MetricsHandler())

	a.handler = observe.Middleware(a.metrics)(mux)
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: a.cfg.Server.ReadTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
	}
}

// chatSettings maps the chat config section onto service settings.
func (a *App) chatSettings(c config.ChatConfig) chat.Settings {
	def := c.DefaultVoice
	if def == "" {
		def = a.providers.DefaultVoice
	}
	return chat.Settings{
		HistoryLimit: c.HistoryLimit,
		Voices:       c.Voices,
		DefaultVoice: def,
		Temperature:  c.Temperature,
		MaxTokens:    c.MaxTokens,
		ReplyTimeout: c.ReplyTimeout,
	}
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Chat returns the chat service.
func (a *App) Chat() *chat.Service { return a.chat }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and blocks until ctx is cancelled or the server fails.
// When ctx is done, Run returns its error; call Shutdown afterwards to drain
// in-flight requests.
func (a *App) Run(ctx context.Context) error {
	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen %q: %w", a.cfg.Server.ListenAddr, err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		errCh <- err
	}()

	slog.Info("app running", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	}
}

// ─── Config reload ───────────────────────────────────────────────────────────

// ApplyConfig applies the hot-reloadable parts of d. Settings listed in
// d.RestartRequired are logged and otherwise ignored.
func (a *App) ApplyConfig(d config.ConfigDiff, cfg *config.Config) {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.ChatChanged {
		a.chat.SetSettings(a.chatSettings(cfg.Chat))
		slog.Info("chat settings reloaded",
			"voices_changed", d.VoicesChanged,
			"history_limit", cfg.Chat.HistoryLimit,
		)
	}
	for _, field := range d.RestartRequired {
		slog.Warn("config change requires a restart to take effect", "field", field)
	}
}

// SlogLevel converts a config level to its slog equivalent.
func SlogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown drains the HTTP server and then runs the closers in order. It
// respects the context deadline: if ctx expires before all closers finish,
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
			shutdownErr = err
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll runs the closers registered so far after a failed New.
func (a *App) closeAll() {
	for _, c := range a.closers {
		_ = c()
	}
	a.closers = nil
}
