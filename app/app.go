// Package app wires the client together: config, logging, the API client,
// the stores and the navigator.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"citizen-card-cli/config"
	"citizen-card-cli/router"
	"citizen-card-cli/service"
	"citizen-card-cli/store"
)

type App struct {
	Config *config.Config
	Logger logrus.FieldLogger

	Client    *service.Client
	Auth      *store.AuthStore
	Movies    *store.MovieStore
	Bookings  *store.BookingStore
	Wallet    *store.WalletStore
	Discounts *store.DiscountStore
	Nav       *router.Navigator

	kv      store.KV
	persist *store.Persister
	metrics *http.Server
	busy    atomic.Bool

	errMu    sync.Mutex
	lastErr  error
	onError  []func(error)
	closeLog func() error
}

type Option func(*options)

type options struct {
	httpClient *http.Client
	logger     logrus.FieldLogger
	kv         store.KV
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) { o.logger = logger }
}

// WithKV replaces the storage backend chosen by the config.
func WithKV(kv store.KV) Option {
	return func(o *options) { o.kv = kv }
}

// New builds the application. The auth store supplies the bearer token and
// tears the session down on a 401, after which the navigator is sent to the
// login page once per session.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, closeLog: func() error { return nil }}
	if o.logger != nil {
		a.Logger = o.logger
	} else {
		logger, closeLog, err := NewLogger(cfg.Log)
		if err != nil {
			return nil, err
		}
		a.Logger, a.closeLog = logger, closeLog
	}

	a.kv = o.kv
	if a.kv == nil {
		kv, err := newKV(ctx, cfg.Storage)
		if err != nil {
			_ = a.closeLog()
			return nil, err
		}
		a.kv = kv
	}
	a.persist = store.NewPersister(a.kv,
		store.WithSnapshotDelay(cfg.Storage.SnapshotDelay),
		store.WithSnapshotLimit(cfg.Storage.SnapshotLimit),
		store.WithPersistLogger(a.Logger.WithField("component", "persist")),
	)

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.API.Timeout}
	}
	service.RegisterMetrics(prometheus.DefaultRegisterer)
	a.Client = service.NewClient(httpClient,
		service.WithBaseURL(cfg.API.BaseURL),
		service.WithClientVersion(cfg.API.ClientVersion),
		service.WithLogger(a.Logger.WithField("component", "api")),
		service.WithLoadingListener(a.busy.Store),
	)

	storeLog := a.Logger.WithField("component", "store")
	movies := service.NewMovieService(a.Client)
	a.Auth = store.NewAuthStore(service.NewAuthService(a.Client), a.persist, storeLog)
	a.Movies = store.NewMovieStore(movies, a.persist, storeLog)
	a.Bookings = store.NewBookingStore(service.NewBookingService(a.Client), movies, a.persist, storeLog)
	a.Wallet = store.NewWalletStore(service.NewWalletService(a.Client), a.persist, storeLog)
	a.Discounts = store.NewDiscountStore(service.NewDiscountService(a.Client), a.persist, storeLog)
	a.Nav = router.NewNavigator(a.Auth, a.Logger.WithField("component", "router"))

	a.Client.SetTokenSource(a.Auth)
	a.Client.SetUnauthorizedHandler(a.handleUnauthorized)
	a.Auth.OnSessionEnd(func() {
		a.Wallet.Reset()
		a.Bookings.Reset()
		a.Discounts.Reset()
	})
	return a, nil
}

func (a *App) handleUnauthorized(tokenUsed string) {
	if !a.Auth.HandleUnauthorized(tokenUsed) {
		return
	}
	loc := a.Nav.RedirectToLogin()
	a.Logger.WithField("redirect", loc.FullPath()).Warn("session expired, login required")
}

// Init restores persisted state and the session, then loads the data every
// view needs. Failures are reported through the error handler and do not
// stop startup.
func (a *App) Init(ctx context.Context) error {
	a.persist.RestoreAll(ctx, a.Movies, a.Bookings, a.Wallet, a.Discounts)

	if err := a.Auth.InitAuth(ctx); err != nil {
		a.ReportError("restore session", err)
	}
	if err := a.Movies.FetchCategories(ctx); err != nil {
		a.ReportError("load categories", err)
	}
	if a.Auth.IsAuthenticated() {
		if err := a.Discounts.FetchMemberDiscounts(ctx); err != nil {
			a.ReportError("load member discounts", err)
		}
	}
	return ctx.Err()
}

// OnError registers fn to receive every reported error.
func (a *App) OnError(fn func(error)) {
	a.errMu.Lock()
	a.onError = append(a.onError, fn)
	a.errMu.Unlock()
}

// ReportError is the global error handler: it logs err with its kind and
// keeps it as the last error.
func (a *App) ReportError(op string, err error) {
	if err == nil || errors.Is(err, store.ErrSuperseded) {
		return
	}
	a.Logger.WithFields(logrus.Fields{
		"op":   op,
		"kind": service.KindOf(err).String(),
	}).WithError(err).Error("operation failed")

	a.errMu.Lock()
	a.lastErr = err
	listeners := append([]func(error){}, a.onError...)
	a.errMu.Unlock()
	for _, fn := range listeners {
		fn(err)
	}
}

func (a *App) LastError() error {
	a.errMu.Lock()
	defer a.errMu.Unlock()
	return a.lastErr
}

// Busy reports whether any API request is in flight.
func (a *App) Busy() bool {
	return a.busy.Load()
}

// StartMetrics serves /metrics on cfg.Metrics.Addr when it is set.
func (a *App) StartMetrics() {
	if a.Config.Metrics.Addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metrics = &http.Server{Addr: a.Config.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.WithError(err).Error("metrics server stopped")
		}
	}()
	a.Logger.WithField("addr", a.Config.Metrics.Addr).Info("serving metrics")
}

// Close flushes pending snapshots and releases the storage backend.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.metrics != nil {
		errs = append(errs, a.metrics.Shutdown(ctx))
	}
	a.persist.Close(ctx)
	errs = append(errs, a.kv.Close(), a.closeLog())
	return errors.Join(errs...)
}

func newKV(ctx context.Context, cfg config.StorageConfig) (store.KV, error) {
	switch cfg.Driver {
	case config.DriverRedis:
		return store.NewRedisKV(ctx, cfg.RedisURL, cfg.RedisPrefix)
	default:
		return store.NewFileKV(cfg.Dir)
	}
}

// NewLogger builds the logrus logger described by cfg. Output goes to
// cfg.File when set, stderr otherwise. The returned func closes the file.
func NewLogger(cfg config.LogConfig) (*logrus.Logger, func() error, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	logger.SetLevel(level)
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	noop := func() error { return nil }
	if cfg.File == "" {
		logger.SetOutput(os.Stderr)
		return logger, noop, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(f)
	return logger, f.Close, nil
}
