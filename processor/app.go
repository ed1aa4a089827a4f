package processor

import (
    "context"
    "fmt"
    "net"
    "net/http"
    "sync"
    "time"

    "github.com/go-chi/chi/v5"
    chimw "github.com/go-chi/chi/v5/middleware"
    "golang.org/x/exp/slog"

    "github.com/alovak/paysim/internal/middleware"
    "github.com/alovak/paysim/internal/store"
)

// App is the main application, it contains all the components of the payment simulator
// and is responsible for starting and stopping them.
type App struct {
	srv     *http.Server
	wg      *sync.WaitGroup
	Addr    string
	logger  *slog.Logger
	config  *Config
	repo    *Repository
	sweeper *Sweeper
}

func NewApp(logger *slog.Logger, config *Config) *App {
	logger = logger.With(slog.String("app", "paysim"))

	if config == nil {
		config = DefaultConfig()
	}

	return &App{
		wg:     &sync.WaitGroup{},
		logger: logger,
		config: config,
	}
}

func (a *App) Start() error {
    a.logger.Info("starting app...")

    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()

    repository, err := openRepository(ctx, a.config.Store)
    if err != nil {
        return err
    }
    a.repo = repository
    a.logger.Info("store ready", slog.String("backend", a.config.Store.Backend))

    svc := NewService(repository, a.config, WithLogger(a.logger))

    if a.config.Sweep.Schedule != "" {
        a.sweeper, err = NewSweeper(svc, a.config.Sweep, a.logger)
        if err != nil {
            repository.Close()
            return fmt.Errorf("scheduling sweep: %w", err)
        }
        a.sweeper.Start()
    }

    router := chi.NewRouter()
    router.Use(chimw.RequestID)
    router.Use(middleware.NewStructuredLogger(a.logger))
    router.Use(chimw.Recoverer)
    router.Use(middleware.NewCORS(a.config.CORS.AllowedOrigins))

    router.Get("/", func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json")
        w.Write([]byte(`{"name":"paysim","api":"/api/v1"}`))
    })
    // Health endpoints
    router.Get("/-/live", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
    router.Get("/-/ready", func(w http.ResponseWriter, r *http.Request) {
        ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
        defer cancel()
        if err := repository.Ping(ctx); err != nil {
            http.Error(w, "store not ready", http.StatusServiceUnavailable)
            return
        }
        w.WriteHeader(http.StatusOK)
    })

    api := NewAPI(svc)
    router.Route("/api/v1", func(r chi.Router) {
        r.Use(middleware.NewAuthenticator([]byte(a.config.Auth.JWTSecret), a.config.Auth.StubSubject, a.logger))
        api.AppendRoutes(r)
    })

	l, err := net.Listen("tcp", a.config.HTTPAddr)
	if err != nil {
		a.stopBackground()
		return fmt.Errorf("listening tcp port: %w", err)
	}

	a.Addr = l.Addr().String()

	a.srv = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	a.wg.Add(1)
	go func() {
		a.logger.Info("http server started", slog.String("addr", a.Addr))

		if err := a.srv.Serve(l); err != nil {
			if err != http.ErrServerClosed {
				a.logger.Error("starting http server", "err", err)
			}

			a.logger.Info("http server stopped")
		}

		a.wg.Done()
	}()

	return nil
}

// openRepository selects the storage backend. SQL backends are migrated on open.
func openRepository(ctx context.Context, cfg StoreConfig) (*Repository, error) {
    if cfg.Backend == "mem" {
        return NewRepository(), nil
    }

    dialect, err := store.ParseDialect(cfg.Backend)
    if err != nil {
        return nil, err
    }
    if cfg.DSN == "" {
        return nil, fmt.Errorf("store.dsn is required for %s backend", cfg.Backend)
    }
    db, err := store.Open(ctx, dialect, cfg.DSN, cfg.MaxOpenConns, cfg.MaxIdleConns)
    if err != nil {
        return nil, err
    }

    repo := NewSQLRepository(db, dialect)
    if err := repo.Migrate(ctx); err != nil {
        db.Close()
        return nil, err
    }
    return repo, nil
}

func (a *App) stopBackground() {
    if a.sweeper != nil {
        a.sweeper.Stop()
    }
    if a.repo != nil {
        if err := a.repo.Close(); err != nil {
            a.logger.Error("closing store", "err", err)
        }
    }
}

func (a *App) Shutdown() {
	a.logger.Info("shutting down app...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.srv.Shutdown(ctx); err != nil {
		a.logger.Error("shutting down http server", "err", err)
	}

	a.wg.Wait()

	a.stopBackground()

	a.logger.Info("app stopped")
}
