package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	appControllers "github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/controllers"
	appMigrations "github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/migrations"
	appRepos "github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/repositories"
	appRoutes "github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/routes"
	appServices "github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/services"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/config"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/db"
	appMiddleware "github.com/MuhammadRaffey/uol-cgpa-calc/internal/middleware"
	pkgAuth "github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/auth"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/autosave"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/helpers"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/logger"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/tracing"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/validation"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/websocket"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/seed"
)

// Version is reported to the tracing backend
var Version = "dev"

// Dependencies holds all the application dependencies
type Dependencies struct {
	Repos        *appRepos.Repositories
	JWTService   *pkgAuth.JWTService
	Fingerprints autosave.FingerprintStore

	AuthService     *appServices.AuthService
	SnapshotService appServices.SnapshotService

	Hub *websocket.Hub
	// nil without redis
	Bus *websocket.RedisBus

	AuthMiddleware        *appMiddleware.AuthMiddleware
	AuthController        *appControllers.AuthController
	CalculatorController  *appControllers.CalculatorController
	CalculationController *appControllers.CalculationController
	HealthController      *appControllers.HealthController
	WSHandler             *websocket.Handler

	Logger zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = filepath.Join("configs", "config.yaml")
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Str("path", configPath).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.ParseLevel(cfg.Logging.Level)
	lgr := logger.Configure(logger.Config{
		Level:   logLevel,
		Pretty:  strings.ToLower(cfg.Logging.Format) == "text",
		Service: cfg.Tracing.ServiceName,
	})
	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupTracing installs the tracer provider
func SetupTracing(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (tracing.ShutdownFunc, error) {
	return tracing.Setup(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     Version,
	}, lgr)
}

// SetupDatabase establishes the database connection and runs migrations.
func SetupDatabase(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*db.DB, error) {
	lgr.Info().Str("driver", cfg.Database.Driver).Msg("Establishing database connection...")
	database, err := db.Open(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := database.Ping(pingCtx); err != nil {
		lgr.Error().Err(err).Msg("Failed to ping database")
		database.Close()
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")

	lgr.Info().Msg("Running database migrations...")
	migrator, err := appMigrations.NewMigrator(database, lgr)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	if err := migrator.Migrate(ctx); err != nil {
		lgr.Error().Err(err).Msg("Database migration error")
		database.Close()
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Msg("Database migrations successfully applied.")

	return database, nil
}

// SetupRedis connects to redis. It returns nil when no address is configured.
func SetupRedis(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*goredis.Client, error) {
	if cfg.Redis.Addr == "" {
		lgr.Info().Msg("Redis not configured, using in-process fingerprints and events")
		return nil, nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		lgr.Error().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to ping redis")
		return nil, err
	}
	lgr.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connection established.")
	return client, nil
}

// AutoSavePolicy reads the debounce settings
func AutoSavePolicy(cfg *config.Config) autosave.Policy {
	return autosave.Policy{
		Debounce:    helpers.ParseDuration(cfg.AutoSave.Debounce, 2*time.Second),
		MaxWait:     helpers.ParseDuration(cfg.AutoSave.MaxWait, 30*time.Second),
		SaveTimeout: 10 * time.Second,
	}
}

// BuildDependencies initializes application repositories, services, and controllers.
func BuildDependencies(cfg *config.Config, database *db.DB, redisClient *goredis.Client, lgr zerolog.Logger) (*Dependencies, error) {
	if err := validation.RegisterWithGin(); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	deps := &Dependencies{Logger: lgr}
	deps.Repos = appRepos.NewRepositories(database)

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:       cfg.JWT.Secret,
		AccessTokenExp:  helpers.ParseDuration(cfg.JWT.AccessTokenExpiration, 1*time.Hour),
		RefreshTokenExp: helpers.ParseDuration(cfg.JWT.RefreshTokenExpiration, 720*time.Hour),
		TokenIssuer:     cfg.JWT.Issuer,
	})

	fingerprintTTL := helpers.ParseDuration(cfg.AutoSave.FingerprintTTL, 24*time.Hour)
	deps.Hub = websocket.NewHub(logger.Component("websocket"))

	// the health check needs a true nil interface when redis is off
	var redisHealth goredis.UniversalClient
	var notifier appServices.Notifier = deps.Hub
	if redisClient != nil {
		redisHealth = redisClient
		deps.Fingerprints = autosave.NewRedisFingerprintStore(redisClient, fingerprintTTL)
		deps.Bus = websocket.NewRedisBus(redisClient, cfg.Redis.Channel, deps.Hub, logger.Component("event-bus"))
		notifier = deps.Bus
	} else {
		deps.Fingerprints = autosave.NewMemoryFingerprintStore(fingerprintTTL)
	}

	deps.AuthService = appServices.NewAuthService(
		deps.Repos.UserRepository,
		deps.Repos.TokenRepository,
		deps.JWTService,
		lgr,
	)
	deps.SnapshotService = appServices.NewSnapshotService(
		deps.Repos.SnapshotRepository,
		deps.Fingerprints,
		notifier,
		logger.Component("snapshots"),
	)

	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService)

	deps.AuthController = appControllers.NewAuthController(deps.AuthService, lgr)
	deps.CalculatorController = appControllers.NewCalculatorController(deps.SnapshotService)
	deps.CalculationController = appControllers.NewCalculationController(deps.SnapshotService, lgr)
	deps.HealthController = appControllers.NewHealthController(database, redisHealth)
	deps.WSHandler = websocket.NewHandler(
		deps.Hub,
		deps.SnapshotService,
		AutoSavePolicy(cfg),
		cfg.Server.CORSOrigins,
		logger.Component("websocket"),
	)

	return deps, nil
}

// SeedDefaults creates the demo account when configured. Failures are logged
// and do not stop startup.
func SeedDefaults(ctx context.Context, cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) {
	opts := seed.Options{DemoEmail: cfg.Seed.DemoEmail, DemoPassword: cfg.Seed.DemoPassword}
	if err := seed.CreateDefaultData(ctx, deps.Repos.UserRepository, deps.SnapshotService, opts, lgr); err != nil {
		lgr.Error().Err(err).Msg("Failed to create default data, proceeding anyway...")
	}
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if strings.ToLower(cfg.Server.Mode) == "production" {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(cfg.Tracing.ServiceName),
		appMiddleware.RequestID(),
		appMiddleware.RequestLogger(lgr),
		appMiddleware.CORS(cfg.Server.CORSOrigins),
	)

	appRoutes.SetupSwagger(router)
	appRoutes.SetupRouter(router,
		deps.AuthController,
		deps.CalculatorController,
		deps.CalculationController,
		deps.HealthController,
		deps.WSHandler,
		deps.AuthMiddleware,
	)

	return router
}
