// Package main provides the entry point for the charmemo character registry service
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/amirphl/charmemo/app/handlers"
	"github.com/amirphl/charmemo/app/middleware"
	"github.com/amirphl/charmemo/app/router"
	"github.com/amirphl/charmemo/app/services"
	businessflow "github.com/amirphl/charmemo/business_flow"
	"github.com/amirphl/charmemo/config"
	"github.com/amirphl/charmemo/models"
	"github.com/amirphl/charmemo/repository"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	stopFuncs []func()
}

// storage holds the repositories selected by STORAGE_DRIVER and SEQUENCE_DRIVER
type storage struct {
	characters repository.CharacterRepository
	auditLogs  repository.AuditLogRepository
	sequences  repository.SequenceRepository
	components []businessflow.HealthComponent
	closers    []func()
}

func main() {
	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logWriter, closeLog := initializeLogSink(cfg.Logging)
	defer closeLog()
	log.SetOutput(logWriter)

	if len(os.Args) > 1 {
		if err := runCommand(cfg, os.Args[1:]); err != nil {
			log.Fatalf("Command failed: %v", err)
		}
		return
	}

	log.Printf("Starting charmemo (%s, log_level=%s)...", cfg.Deployment.BuildInfo(), cfg.Logging.Level)

	// Initialize application
	app, err := initializeApplication(cfg, logWriter)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	if err := app.router.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	// Stop background workers and close storage clients after in-flight requests drain
	for _, fn := range app.stopFuncs {
		fn()
	}

	log.Println("Server stopped")
}

// runCommand handles the maintenance subcommands
func runCommand(cfg *config.ProductionConfig, args []string) error {
	switch args[0] {
	case "issue-token":
		if len(args) < 2 {
			return fmt.Errorf("usage: charmemo issue-token <subject>")
		}
		tokenService, err := initializeTokenService(cfg.JWT)
		if err != nil {
			return err
		}
		token, err := tokenService.GenerateOperatorToken(args[1])
		if err != nil {
			return fmt.Errorf("failed to issue token: %w", err)
		}
		fmt.Println(token)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// initializeLogSink builds the process log writer. File output is rotated by lumberjack.
func initializeLogSink(cfg config.LoggingConfig) (io.Writer, func()) {
	if cfg.Output == "stdout" {
		return os.Stdout, func() {}
	}

	if dir := filepath.Dir(cfg.FilePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("Failed to create log directory %s: %v", dir, err)
		}
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	closeFn := func() {
		if err := rotator.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
	}

	if cfg.Output == "both" {
		return io.MultiWriter(os.Stdout, rotator), closeFn
	}
	return rotator, closeFn
}

// gormLogLevel maps LOG_LEVEL onto the SQL logger. debug logs every statement,
// error silences slow query warnings.
func gormLogLevel(level string, slowQueryLog bool) gormlogger.LogLevel {
	switch {
	case level == "debug":
		return gormlogger.Info
	case level == "error" || !slowQueryLog:
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logging config.LoggingConfig, logWriter io.Writer) (*gorm.DB, error) {
	logLevel := gormLogLevel(logging.Level, cfg.SlowQueryLog)

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(log.New(logWriter, "\r\n", log.LstdFlags), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(&models.SequenceCounter{}, &models.Character{}, &models.AuditLog{}); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		log.Println("Database schema migrated")
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeMongo connects to MongoDB and verifies the primary is reachable
func initializeMongo(cfg config.MongoConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetConnectTimeout(cfg.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	log.Printf("Mongo connection established (db=%s, max pool=%d)", cfg.Database, cfg.MaxPoolSize)
	return client, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	var opt *redis.Options
	if strings.Contains(cfg.RedisURL, "://") {
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{Addr: cfg.RedisURL}
	}
	// Override DB and password if provided in config
	opt.DB = cfg.RedisDB
	if cfg.RedisPassword != "" {
		opt.Password = cfg.RedisPassword
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", opt.Addr, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeStorage opens the configured drivers and builds the repositories over them
func initializeStorage(cfg *config.ProductionConfig, logWriter io.Writer) (*storage, error) {
	st := &storage{}
	seqDriver := cfg.Storage.EffectiveSequenceDriver()

	var db *gorm.DB
	if cfg.Storage.Driver == config.DriverPostgres || seqDriver == config.DriverPostgres {
		var err error
		db, err = initializeDatabase(cfg.Database, cfg.Logging, logWriter)
		if err != nil {
			return nil, err
		}
		st.components = append(st.components, businessflow.HealthComponent{Name: "postgres", Pinger: repository.NewGormPinger(db)})
		st.closers = append(st.closers, func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		})
	}

	var mongoDB *mongo.Database
	if cfg.Storage.Driver == config.DriverMongo || seqDriver == config.DriverMongo {
		client, err := initializeMongo(cfg.Mongo)
		if err != nil {
			st.close()
			return nil, err
		}
		mongoDB = client.Database(cfg.Mongo.Database)
		st.components = append(st.components, businessflow.HealthComponent{Name: "mongo", Pinger: repository.NewMongoPinger(client)})
		st.closers = append(st.closers, func() {
			_ = client.Disconnect(context.Background())
		})
	}

	var rc *redis.Client
	if cfg.Cache.Enabled || seqDriver == config.DriverRedis {
		var err error
		rc, err = initializeCache(cfg.Cache)
		if err != nil {
			st.close()
			return nil, err
		}
		st.components = append(st.components, businessflow.HealthComponent{Name: "redis", Pinger: repository.NewRedisPinger(rc)})
		st.closers = append(st.closers, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.HealthInterval))
		st.closers = append(st.closers, func() {
			_ = rc.Close()
		})
	}

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		st.characters = repository.NewCharacterRepository(db)
		st.auditLogs = repository.NewAuditLogRepository(db)
	case config.DriverMongo:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.ConnectTimeout)
		characters, err := repository.NewMongoCharacterRepository(ctx, mongoDB)
		cancel()
		if err != nil {
			st.close()
			return nil, err
		}
		st.characters = characters
		st.auditLogs = repository.NewMongoAuditLogRepository(mongoDB)
	case config.DriverMemory:
		log.Println("WARNING: memory storage driver keeps characters in this process only; do not run more than one instance")
		characters := repository.NewMemoryCharacterRepository()
		st.characters = characters
		st.auditLogs = repository.NewMemoryAuditLogRepository()
		st.components = append(st.components, businessflow.HealthComponent{Name: "memory", Pinger: characters})
	}

	switch seqDriver {
	case config.DriverPostgres:
		st.sequences = repository.NewSequenceRepository(db)
	case config.DriverMongo:
		st.sequences = repository.NewMongoSequenceRepository(mongoDB)
	case config.DriverRedis:
		st.sequences = repository.NewRedisSequenceRepository(rc, cfg.Cache.RedisPrefix)
	case config.DriverMemory:
		st.sequences = repository.NewMemorySequenceRepository()
	}

	log.Printf("Storage initialized (characters=%s, sequence=%s)", cfg.Storage.Driver, seqDriver)
	return st, nil
}

// close releases storage clients in reverse order of acquisition
func (s *storage) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// initializeTokenService builds the operator token service from JWT settings
func initializeTokenService(cfg config.JWTConfig) (services.TokenService, error) {
	tokenService, err := services.NewTokenService(
		cfg.TokenTTL,
		cfg.Issuer,
		cfg.Audience,
		cfg.UseRSAKeys,
		cfg.PrivateKey,
		cfg.PublicKey,
		cfg.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	return tokenService, nil
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, logWriter io.Writer) (*Application, error) {
	st, err := initializeStorage(cfg, logWriter)
	if err != nil {
		return nil, err
	}

	var tokenService services.TokenService
	if cfg.Security.RequireWriteToken {
		tokenService, err = initializeTokenService(cfg.JWT)
		if err != nil {
			st.close()
			return nil, err
		}
		log.Printf("Write routes require operator tokens (issuer: %s, audience: %s)", cfg.JWT.Issuer, cfg.JWT.Audience)
	}

	// Initialize flows
	allocator := businessflow.NewSequenceAllocator(st.sequences)
	characterFlow := businessflow.NewCharacterFlow(
		st.characters,
		st.auditLogs,
		allocator,
		businessflow.CharacterSettings{
			CounterName:   cfg.Character.CounterName,
			DefaultHealth: cfg.Character.DefaultHealth,
			DefaultPower:  cfg.Character.DefaultPower,
		},
	)
	healthFlow := businessflow.NewHealthFlow(cfg.Storage.HealthTimeout, st.components...)

	// Initialize handlers
	characterHandler := handlers.NewCharacterHandler(characterFlow, cfg.Server.RequestTimeout)
	healthHandler := handlers.NewHealthHandler(healthFlow)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService, cfg.Security.RequireWriteToken)

	// Initialize router
	appRouter := router.NewFiberRouter(
		cfg,
		characterHandler,
		healthHandler,
		authMiddleware,
		logWriter,
	)

	return &Application{
		router:    appRouter,
		config:    cfg,
		stopFuncs: []func(){st.close},
	}, nil
}
