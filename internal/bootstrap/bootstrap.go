package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	appControllers "github.com/yigit/unisphere-digest/internal/app/controllers"
	appMigrations "github.com/yigit/unisphere-digest/internal/app/migrations"
	appRepos "github.com/yigit/unisphere-digest/internal/app/repositories"
	appRoutes "github.com/yigit/unisphere-digest/internal/app/routes"
	appServices "github.com/yigit/unisphere-digest/internal/app/services"
	"github.com/yigit/unisphere-digest/internal/config"
	"github.com/yigit/unisphere-digest/internal/db"
	appMiddleware "github.com/yigit/unisphere-digest/internal/middleware"
	pkgAuth "github.com/yigit/unisphere-digest/internal/pkg/auth"
	"github.com/yigit/unisphere-digest/internal/pkg/email"
	"github.com/yigit/unisphere-digest/internal/pkg/helpers"
	"github.com/yigit/unisphere-digest/internal/pkg/logger"
	"github.com/yigit/unisphere-digest/internal/scheduler"
	"github.com/yigit/unisphere-digest/internal/seed"
)

// DefaultConfigPath is used when no --config flag is given
const DefaultConfigPath = "configs/config.yaml"

// Dependencies holds all the application dependencies
type Dependencies struct {
	Repos            *appRepos.Repositories
	Store            *appRepos.DirectoryStore
	Redis            *redis.Client // nil when no redis address is configured
	Mailer           *email.DigestMailer
	DigestService    appServices.DailyDigestService
	DigestController *appControllers.DigestController
	JWTService       *pkgAuth.JWTService
	AuthMiddleware   *appMiddleware.AuthMiddleware
	Scheduler        *scheduler.Daily
	Location         *time.Location
	Logger           zerolog.Logger
}

// Close releases connections held by the dependencies
func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger(configPath string) (*config.Config, zerolog.Logger, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Str("path", configPath).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.LogLevel(strings.ToLower(cfg.Logging.Level))
	prettyLog := strings.ToLower(cfg.Logging.Format) == "text"

	lgr := logger.Configure(logger.Config{
		Level:  logLevel,
		Pretty: prettyLog,
		Output: os.Stdout,
	})
	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase establishes the database connection
func SetupDatabase(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*pgxpool.Pool, error) {
	lgr.Info().Str("host", cfg.Database.Host).Str("db", cfg.Database.DBName).Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(ctx, cfg, lgr)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")
	return database.Pool, nil
}

// RunMigrations applies pending migrations and, when enabled, the demo seed
func RunMigrations(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, lgr zerolog.Logger) error {
	migrationsDir := cfg.Database.MigrationsDir
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
	}

	applied, err := appMigrations.NewMigrator(pool, lgr).MigrateFromDirectory(ctx, migrationsDir)
	if err != nil {
		lgr.Error().Err(err).Msg("Database migration error")
		return fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Int("applied", applied).Msg("Database migrations up to date")

	if cfg.Seed.Enabled {
		// Demo data is a convenience; failure does not block startup
		if _, err := seed.CreateDefaultData(ctx, pool, lgr); err != nil {
			lgr.Error().Err(err).Msg("Failed to create default data, proceeding anyway...")
		}
	}

	return nil
}

// DigestSettingsFromConfig converts the digest section into engine settings
func DigestSettingsFromConfig(cfg *config.Config) appServices.DigestSettings {
	defaults := appServices.DefaultDigestSettings()
	d := cfg.Digest
	return appServices.DigestSettings{
		Cap:                  d.Cap,
		Window:               helpers.ParseDuration(d.Window, defaults.Window),
		Workers:              d.Workers,
		RetryBudget:          d.RetryBudget,
		RetryInitialInterval: helpers.ParseDuration(d.RetryInitialInterval, defaults.RetryInitialInterval),
		RetryMaxInterval:     helpers.ParseDuration(d.RetryMaxInterval, defaults.RetryMaxInterval),
		SendTimeout:          helpers.ParseDuration(d.SendTimeout, defaults.SendTimeout),
		StoreTimeout:         helpers.ParseDuration(d.StoreTimeout, defaults.StoreTimeout),
		RunDeadline:          helpers.ParseDuration(d.RunDeadline, defaults.RunDeadline),
		RatePerSecond:        d.RatePerSecond,
		RateBurst:            d.RateBurst,
	}
}

// BuildDependencies initializes repositories, services and controllers
func BuildDependencies(cfg *config.Config, dbPool *pgxpool.Pool, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Logger:   lgr,
		Location: helpers.LoadLocation(cfg.Digest.Timezone),
	}

	deps.Repos = appRepos.NewRepositories(dbPool)
	deps.Store = appRepos.NewDirectoryStore(deps.Repos)

	var guard *email.DeliveryGuard
	if cfg.Redis.Addr != "" {
		deps.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		guard = email.NewDeliveryGuard(deps.Redis, helpers.ParseDuration(cfg.Redis.DedupeTTL, 36*time.Hour))
	} else {
		lgr.Warn().Msg("Redis address not configured - re-runs on the same date may send duplicate digests")
		guard = email.NewDeliveryGuard(nil, 0)
	}

	sender := email.NewSender(email.SMTPConfig{
		Host:      cfg.SMTP.Host,
		Port:      cfg.SMTP.Port,
		Username:  cfg.SMTP.Username,
		Password:  cfg.SMTP.Password,
		FromEmail: cfg.SMTP.FromEmail,
		UseTLS:    cfg.SMTP.UseTLS,
	}, lgr)
	deps.Mailer = email.NewDigestMailer(sender, email.NewDigestRenderer(), guard, lgr)

	deps.DigestService = appServices.NewDailyDigestService(deps.Store, deps.Mailer, DigestSettingsFromConfig(cfg), lgr)

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:      cfg.JWT.Secret,
		AccessTokenExp: helpers.ParseDuration(cfg.JWT.AccessTokenExpiration, time.Hour),
		TokenIssuer:    cfg.JWT.Issuer,
	})
	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService)
	deps.DigestController = appControllers.NewDigestController(deps.DigestService, deps.Location, lgr)

	if cfg.Scheduler.Enabled {
		deps.Scheduler = scheduler.NewDaily(deps.DigestService, cfg.Scheduler.Hour, cfg.Scheduler.Minute, deps.Location, lgr)
	}

	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	switch strings.ToLower(cfg.Server.Mode) {
	case "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}
	lgr.Info().Str("mode", gin.Mode()).Msg("Gin mode set")

	router := gin.New()
	router.Use(gin.Recovery(), appMiddleware.RequestLogger(lgr))

	appRoutes.SetupRouter(router, deps.DigestController, deps.AuthMiddleware)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "status": "success"})
	})

	return router
}
