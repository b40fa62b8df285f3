// Package server hosts the long-running process: MQTT ingress, the control
// loops, and the HTTP API.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	ingressApp "github.com/resona-io/resona/internal/application/ingress"
	motionusecases "github.com/resona-io/resona/internal/application/motion/usecases"
	provusecases "github.com/resona-io/resona/internal/application/provisioning/usecases"
	sensorusecases "github.com/resona-io/resona/internal/application/sensor/usecases"
	sessionusecases "github.com/resona-io/resona/internal/application/session/usecases"
	tokenApp "github.com/resona-io/resona/internal/application/token"
	"github.com/resona-io/resona/internal/infrastructure/auth"
	"github.com/resona-io/resona/internal/infrastructure/broker"
	"github.com/resona-io/resona/internal/infrastructure/cache"
	"github.com/resona-io/resona/internal/infrastructure/config"
	"github.com/resona-io/resona/internal/infrastructure/database"
	"github.com/resona-io/resona/internal/infrastructure/devicepki"
	"github.com/resona-io/resona/internal/infrastructure/migration"
	"github.com/resona-io/resona/internal/infrastructure/mqtt"
	musicInfra "github.com/resona-io/resona/internal/infrastructure/music"
	"github.com/resona-io/resona/internal/infrastructure/repository"
	"github.com/resona-io/resona/internal/infrastructure/scheduler"
	"github.com/resona-io/resona/internal/infrastructure/secretstore"
	httpRouter "github.com/resona-io/resona/internal/interfaces/http"
	"github.com/resona-io/resona/internal/interfaces/http/handlers"
	"github.com/resona-io/resona/internal/interfaces/http/middleware"
	"github.com/resona-io/resona/internal/shared/logger"
)

var (
	env         string
	autoMigrate bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the orchestrator",
		Long:  `Start the Resona core: MQTT ingress, session and token control loops, and the HTTP API.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Run database migrations on startup (not recommended for production)")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Server.Mode = mapEnvToGinMode(env)

	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	log.Infow("starting resona core",
		"environment", env,
		"auto_migrate", autoMigrate)

	gin.SetMode(cfg.Server.Mode)
	gin.DefaultWriter = io.Discard
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, nuHandlers int) {
	}

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	if err := handleMigrations(cfg, log); err != nil {
		return fmt.Errorf("migration handling failed: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	{
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
	}
	log.Infow("redis connection established", "addr", cfg.Redis.GetAddr())

	db := database.Get()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	sensorRepo := repository.NewSensorRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	eventRepo := repository.NewMotionEventRepository(db)

	// Secret material and token plumbing.
	ageStore, err := secretstore.NewAgeStore(db, cfg.Secrets.AgeIdentityFile)
	if err != nil {
		return fmt.Errorf("failed to open secret store: %w", err)
	}
	vault := secretstore.NewTokenVault(ageStore)
	tokenCache := cache.NewTokenCache()
	leaseStore := cache.NewRefreshLeaseStore(redisClient)

	refresher := musicInfra.NewSpotifyTokenRefresher(&cfg.Spotify, log.Named("spotify.auth"))
	player := musicInfra.NewSpotifyService(&cfg.Spotify, log.Named("spotify"))
	tokens := tokenApp.NewService(userRepo, vault, tokenCache, refresher, log.Named("tokens"))

	// Broker connection and device-facing publisher.
	mqttClient, err := mqtt.NewClient(&cfg.MQTT, log.Named("mqtt"))
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer mqttClient.Close()
	publisher := broker.NewDevicePublisher(mqttClient, log.Named("broker.publisher"))

	// Provisioning.
	ca, err := devicepki.LoadCA(&cfg.Provisioning)
	if err != nil {
		return fmt.Errorf("failed to load device CA: %w", err)
	}
	controlPlane := broker.NewControlPlane(db)
	provisionUC := provusecases.NewProvisionSensorUseCase(
		sensorRepo, userRepo, controlPlane, ca, &cfg.Provisioning, log.Named("provisioning"))
	deprovisionUC := provusecases.NewDeprovisionSensorUseCase(
		sensorRepo, sessionRepo, controlPlane, log.Named("provisioning"))

	// Ingress pipeline.
	handleMotionUC := motionusecases.NewHandleMotionUseCase(
		sensorRepo, userRepo, sessionRepo, eventRepo, tokens, player, log.Named("motion"))
	announceUC := sensorusecases.NewAnnounceRegistrationUseCase(
		sensorRepo, eventRepo, log.Named("sensors"))
	recordStatusUC := sensorusecases.NewRecordStatusUseCase(
		sensorRepo, userRepo, eventRepo, log.Named("sensors"))
	ingressRouter := ingressApp.NewRouter(
		handleMotionUC, announceUC, recordStatusUC,
		cfg.Orchestrator.HandlerTimeout(), log.Named("ingress"))

	for _, filter := range []string{
		broker.MotionTopicFilter,
		broker.RegisterTopicFilter,
		broker.StatusTopicFilter,
	} {
		if err := mqttClient.Subscribe(filter, 1, ingressRouter.Route); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", filter, err)
		}
	}

	// Control loops.
	reaper := sessionusecases.NewCloseIdleSessionsUseCase(
		sessionRepo, sensorRepo, eventRepo, tokens, player,
		cfg.Orchestrator.FanOutLimit, log.Named("reaper"))
	warden := tokenApp.NewWarden(
		userRepo, vault, tokenCache, refresher, leaseStore,
		cfg.Orchestrator.TokenSafetyMargin(), cfg.Orchestrator.FanOutLimit,
		log.Named("warden"))
	retention := sessionusecases.NewRetentionSweepUseCase(
		sessionRepo, eventRepo, log.Named("retention"))

	schedulerManager, err := scheduler.NewSchedulerManager(log.Named("scheduler"))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if err := schedulerManager.RegisterReaperJob(reaper, cfg.Orchestrator.ReaperTick()); err != nil {
		return fmt.Errorf("failed to register reaper job: %w", err)
	}
	if err := schedulerManager.RegisterWardenJob(warden, cfg.Orchestrator.WardenTick()); err != nil {
		return fmt.Errorf("failed to register warden job: %w", err)
	}
	if err := schedulerManager.RegisterRetentionJob(retention); err != nil {
		return fmt.Errorf("failed to register retention job: %w", err)
	}
	schedulerManager.Start()
	defer func() {
		if err := schedulerManager.Shutdown(); err != nil {
			log.Errorw("failed to stop scheduler", "error", err)
		}
	}()

	// HTTP API.
	updateSensorUC := sensorusecases.NewUpdateSensorConfigUseCase(
		sensorRepo, publisher, log.Named("sensors"))
	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret)
	authMW := middleware.NewAuthMiddleware(jwtService, log.Named("http.auth"))
	sensorHandler := handlers.NewSensorHandler(
		sensorRepo, sessionRepo, updateSensorUC, provisionUC, deprovisionUC,
		publisher, log.Named("http.sensors"))
	userHandler := handlers.NewUserHandler(
		userRepo, vault, tokens, refresher, player, log.Named("http.users"))
	systemHandler := handlers.NewSystemHandler(sessionRepo, eventRepo, ingressRouter)

	router := httpRouter.NewRouter(authMW, sensorHandler, userHandler, systemHandler, log.Named("http"))
	router.SetupRoutes()

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      router.GetEngine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("http server starting",
			"address", cfg.Server.GetAddr(),
			"mode", cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("http server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("http server forced to shut down", "error", err)
		return err
	}

	log.Infow("server exited gracefully")
	return nil
}

func handleMigrations(cfg *config.Config, log logger.Interface) error {
	if autoMigrate {
		if env == "production" {
			log.Warnw("auto-migration enabled in production environment")
		}
		manager := migration.NewManager(cfg.Database.Driver)
		return manager.Migrate(database.Get(), migration.AutoMigrateModels()...)
	}

	if cfg.Database.Driver == "sqlite" {
		// Local scratch databases keep themselves in sync.
		manager := migration.NewManagerWithStrategy(migration.NewGormAutoMigrateStrategy())
		return manager.Migrate(database.Get())
	}

	strategy := migration.NewGooseStrategy(cfg.Database.Driver)
	version, err := strategy.GetVersion(database.Get())
	if err != nil {
		log.Warnw("failed to check migration status", "error", err)
		return nil
	}
	log.Infow("current migration version", "version", version)
	return nil
}

func mapEnvToGinMode(environment string) string {
	switch environment {
	case "production", "prod", "release":
		return "release"
	case "test", "testing":
		return "test"
	default:
		return "debug"
	}
}
