package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/miniplanner/backend/api/handler"
	"github.com/miniplanner/backend/internal/config"
	"github.com/miniplanner/backend/internal/infrastructure/localstore"
	"github.com/miniplanner/backend/internal/infrastructure/monitor"
	pgInfra "github.com/miniplanner/backend/internal/infrastructure/postgres"
	redisInfra "github.com/miniplanner/backend/internal/infrastructure/redis"
	"github.com/miniplanner/backend/internal/middleware"
	"github.com/miniplanner/backend/internal/router"
	"github.com/miniplanner/backend/internal/services"
	"github.com/miniplanner/backend/internal/services/lifecycle"
	"github.com/miniplanner/backend/pkg/httpcontext"
	"github.com/miniplanner/backend/pkg/logger"
	"github.com/miniplanner/backend/repository/postgres"
	redisRepo "github.com/miniplanner/backend/repository/redis"
	"github.com/miniplanner/backend/repository/remote"
	authUC "github.com/miniplanner/backend/usecase/auth"
	plannerUC "github.com/miniplanner/backend/usecase/planner"
	profileUC "github.com/miniplanner/backend/usecase/profile"
	settingsUC "github.com/miniplanner/backend/usecase/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	local, err := localstore.Open(cfg.Local.Path)
	if err != nil {
		zapLogger.Fatal("failed to open local store", zap.Error(err))
	}
	manager.Register("local_store", func(ctx context.Context) error {
		return local.Close()
	})

	mon := monitor.New(pool, redisClient, local, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	userRepo := postgres.NewUserRepository(pool)
	taskDocs := postgres.NewTaskRepository(pool)
	sessionRepo := redisRepo.NewSessionRepository(redisClient, cfg.Auth.SessionTTL)
	taskNotifier := redisRepo.NewTaskNotifier(redisClient)

	taskStore := remote.NewStore(taskDocs, taskNotifier, zapLogger)
	migrator := services.NewMigrator(local, taskStore, zapLogger)

	hub := plannerUC.NewHub(appCtx, taskStore, migrator, zapLogger)
	manager.Register("planner_hub", func(ctx context.Context) error {
		hub.Close()
		return nil
	})

	reminder := services.NewReminder(local, hub, zapLogger)
	reminder.Start()
	manager.Register("reminder", func(ctx context.Context) error {
		reminder.Stop(ctx)
		return nil
	})

	authUseCase := authUC.New(userRepo, sessionRepo, cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.SessionTTL, zapLogger)
	authUseCase.Watch(func(event authUC.ChangeEvent) {
		if event.SignedIn {
			hub.Attach(event.UserID)
			return
		}
		hub.Detach(event.UserID)
	})

	profileUseCase := profileUC.New(userRepo, zapLogger)
	settingsUseCase := settingsUC.New(local, reminder, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:      apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger),
		Profile:   apiHandler.NewProfileHandler(profileUseCase, ctxAdapter, zapLogger),
		Task:      apiHandler.NewTaskHandler(hub, ctxAdapter, zapLogger),
		Dashboard: apiHandler.NewDashboardHandler(hub, ctxAdapter, zapLogger),
		Calendar:  apiHandler.NewCalendarHandler(hub, ctxAdapter, zapLogger),
		Settings:  apiHandler.NewSettingsHandler(settingsUseCase, ctxAdapter, zapLogger),
		Health:    apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.Auth.JWTSecret, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
