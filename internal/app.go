// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	router "finflow-ledger/internal/api"
	"finflow-ledger/internal/api/handler"
	"finflow-ledger/internal/api/middleware"
	"finflow-ledger/internal/auth"
	"finflow-ledger/internal/config"
	"finflow-ledger/internal/currency"
	"finflow-ledger/internal/events"
	"finflow-ledger/internal/repository"
	"finflow-ledger/internal/repository/postgres"
	"finflow-ledger/internal/service"
	"finflow-ledger/internal/util"
	"finflow-ledger/pkg/db"
	"finflow-ledger/pkg/lock"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB
	Redis  *redis.Client // nil unless LOCK_BACKEND=redis

	Locker    lock.Locker
	Publisher events.Publisher
	Tokens    *auth.TokenManager

	// Repositories
	UserRepository        repository.UserRepository
	AccountRepository     repository.AccountRepository
	TransactionRepository repository.TransactionRepository

	// Services
	UserService    service.UserService
	AccountService service.AccountService
	LedgerService  service.LedgerService

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{Logger: util.GetLogger()}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	// 2. Initialize Logger
	util.InitLogger(cfg.Log.Level, cfg.Log.Format)
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.", "lock_backend", cfg.Lock.Backend)

	// 3. Connect to Database
	database, err := db.NewPostgresDB(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.")

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, app.DB); err != nil {
			return fmt.Errorf("failed to migrate database schema: %w", err)
		}
		app.Logger.Info("Database schema is up to date.")
	}

	// 4. Per-account locking
	if err := app.initLocker(ctx); err != nil {
		return err
	}

	// 5. Currency conversion table
	rates := currency.DefaultRates()
	if cfg.RatesFile != "" {
		if rates, err = currency.LoadRatesFile(cfg.RatesFile); err != nil {
			return fmt.Errorf("failed to load rates: %w", err)
		}
	}
	converter, err := currency.NewConverter(rates)
	if err != nil {
		return fmt.Errorf("failed to build currency converter: %w", err)
	}
	app.Logger.Info("Currency converter initialized.", "pairs", len(rates))

	// 6. Transaction event publisher
	app.Publisher = events.NopPublisher{}
	if cfg.AMQP.URI != "" {
		publisher, err := events.DialAMQP(cfg.AMQP.URI, cfg.AMQP.Exchange)
		if err != nil {
			return fmt.Errorf("failed to connect to message broker: %w", err)
		}
		app.Publisher = publisher
		app.Logger.Info("Publishing transaction events.", "exchange", cfg.AMQP.Exchange)
	}

	app.Tokens, err = auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		return fmt.Errorf("failed to initialize token manager: %w", err)
	}

	// 7. Initialize Repositories
	app.UserRepository = postgres.NewUserRepository()
	app.AccountRepository = postgres.NewAccountRepository()
	app.TransactionRepository = postgres.NewTransactionRepository()
	app.Logger.Info("Repositories initialized.")

	// 8. Initialize Services
	beginTx := db.NewBeginTx(cfg.DB.LockTimeout)
	app.UserService = service.NewUserService(
		app.DB,
		app.UserRepository,
		app.Tokens,
		auth.DefaultArgon2Params,
		app.Logger,
	)
	app.AccountService = service.NewAccountService(
		app.DB, // This is the DBTxBeginner
		app.DB, // This is the DBExecutor
		app.UserRepository,
		app.AccountRepository,
		app.Locker,
		beginTx,
		db.CommitTx,
		db.RollbackTx,
		app.Logger,
	)
	app.LedgerService = service.NewLedgerService(
		app.DB,
		app.DB,
		app.AccountRepository,
		app.TransactionRepository,
		converter,
		app.Locker,
		app.Publisher,
		beginTx,
		db.CommitTx,
		db.RollbackTx,
		app.Logger,
	)
	app.Logger.Info("Services initialized.")

	// 9. Initialize HTTP Handlers and Router
	app.HTTPHandler = router.NewRouter(
		handler.NewLedgerHandler(app.LedgerService, app.Logger),
		handler.NewAccountHandler(app.AccountService, app.Logger),
		handler.NewAuthHandler(app.UserService, app.Logger),
		middleware.Authenticator(app.Tokens, app.Logger),
		cfg.CORSOrigins,
		app.Logger,
	)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

func (app *Application) initLocker(ctx context.Context) error {
	cfg := app.Config
	if cfg.Lock.Backend != config.LockBackendRedis {
		app.Locker = lock.NewLocalLocker(cfg.Lock.Timeout)
		app.Logger.Info("Using in-process account locks.", "timeout", cfg.Lock.Timeout)
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.Redis = client
	app.Locker = lock.NewRedisLocker(client, lock.RedisOptions{
		TTL:           cfg.Lock.TTL,
		Timeout:       cfg.Lock.Timeout,
		RetryInterval: cfg.Lock.RetryInterval,
	}, app.Logger)
	app.Logger.Info("Using redis account locks.", "addr", cfg.Redis.Addr, "timeout", cfg.Lock.Timeout)
	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	var firstErr error
	if app.Publisher != nil {
		if err := app.Publisher.Close(); err != nil {
			app.Logger.Error("Failed to close event publisher", "error", err)
			firstErr = fmt.Errorf("failed to close event publisher: %w", err)
		}
	}
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			app.Logger.Error("Failed to close redis connection", "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to close redis connection: %w", err)
			}
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to close database connection: %w", err)
			}
		} else {
			app.Logger.Info("Database connection closed.")
		}
	}
	if firstErr != nil {
		return firstErr
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
