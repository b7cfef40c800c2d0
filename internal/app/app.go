package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"crmTracker/internal/bucket"
	"crmTracker/internal/config"
	"crmTracker/internal/handlers"
	"crmTracker/internal/logger"
	"crmTracker/internal/middleware"
	"crmTracker/internal/repository"
	"crmTracker/internal/repository/item/inmemory"
	"crmTracker/internal/repository/item/postgres"
	"crmTracker/internal/service"
	"crmTracker/internal/session"
	"crmTracker/internal/worker"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

type App struct {
	config     *config.Config
	server     *http.Server
	router     *chi.Mux
	repository repository.ItemRepository // интерфейс!
	assets     repository.AssetResolver
	sessions   *session.Store
	service    handlers.ItemsService
	worker     *worker.OverdueWorker
	shutdowns  []func() // функции для graceful shutdown
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

func (a *App) Init(ctx context.Context) error {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return fmt.Errorf("инициализация логгера: %w", err)
	}

	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
	})

	if err := a.initRepository(ctx); err != nil {
		return err
	}

	buckets := bucket.DefaultConfig()
	a.sessions = session.NewStore()

	svc := service.NewItemService(a.repository, a.sessions, a.assets, buckets)
	a.service = &svc

	if a.config.Worker.Enabled {
		a.worker = worker.NewOverdueWorker(a.repository, buckets,
			&a.config.Worker.Interval, &a.config.Worker.BatchSize)
	}

	a.initRouter()

	a.server = &http.Server{
		Addr:         a.config.GetServerAddr(),
		Handler:      a.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return nil
}

func (a *App) initRepository(ctx context.Context) error {
	switch a.config.Repository.Type {
	case "postgres":
		storage, err := postgres.New(ctx, a.config.Database.URL)
		if err != nil {
			return fmt.Errorf("подключение к postgres: %w", err)
		}
		if err := storage.Migrate(ctx); err != nil {
			return fmt.Errorf("применение миграций: %w", err)
		}
		a.repository = storage
		a.assets = postgres.NewAssetResolver(storage)
		a.shutdowns = append(a.shutdowns, storage.Close)
	default:
		a.repository = inmemory.NewItemStorage()
		a.assets = inmemory.NewAssetDirectory()
	}
	return nil
}

func (a *App) initRouter() {
	handler := handlers.NewItemHandler(a.service)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	if a.config.Server.RateLimitRPM > 0 {
		r.Use(middleware.RateLimit(a.config.Server.RateLimitRPM))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-ID", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// одни и те же обработчики на обе коллекции: /subscribes и /todos
	r.Route("/{entity}", func(r chi.Router) {
		r.Get("/", handler.Index)
		r.Post("/", handler.Create)

		r.Get("/export.csv", handler.ExportCSV)
		r.Get("/export.xml", handler.ExportXML)
		r.Get("/export.xls", handler.ExportXLS)

		r.Get("/options", handler.Options)
		r.Post("/filter", handler.Filter)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handler.Show)
			r.Put("/", handler.Update)
			r.Delete("/", handler.Delete)

			r.Put("/complete", handler.Complete)
			r.Put("/uncomplete", handler.Uncomplete)
		})
	})

	r.Get("/health", handler.HealthCheck)

	a.router = r
}

// Run запускает сервер и воркер, блокируется до отмены контекста
func (a *App) Run(ctx context.Context) error {
	if a.worker != nil {
		go a.worker.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server started: " + a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http сервер: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка остановки сервера", err)
	}

	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}

	return nil
}

// AssetDirectory возвращает реестр inmemory-режима для наполнения при
// старте, nil для postgres
func (a *App) AssetDirectory() *inmemory.AssetDirectory {
	dir, _ := a.assets.(*inmemory.AssetDirectory)
	return dir
}
