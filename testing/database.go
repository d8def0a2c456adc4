// Package testing provides test utilities and storage setup for testing the character registry
package testing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver for database/sql
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrServiceUnavailable is returned when a backing service for integration tests cannot be reached.
// Callers skip instead of failing.
var ErrServiceUnavailable = errors.New("test service unavailable")

// migrationFiles are applied in order to every fresh test database
var migrationFiles = []string{
	"0001_create_sequence_counters.sql",
	"0002_create_characters.sql",
	"0003_create_audit_log.sql",
}

// TestDBConfig holds configuration for test database connections
type TestDBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	SSLMode  string
}

// GetTestDBConfig loads test database configuration from environment variables
func GetTestDBConfig() *TestDBConfig {
	return &TestDBConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		SSLMode:  getEnv("TEST_DB_SSL_MODE", "disable"),
	}
}

func (c *TestDBConfig) dsn(dbName string) string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.SSLMode)
	if dbName != "" {
		dsn += " dbname=" + dbName
	}
	return dsn
}

// TestDB represents a test database instance
type TestDB struct {
	DB     *gorm.DB
	Name   string
	config *TestDBConfig
}

// SetupTestDB creates a new test database with a unique name and runs migrations
func SetupTestDB() (*TestDB, error) {
	config := GetTestDBConfig()

	// Generate unique database name using timestamp and random number
	dbName := fmt.Sprintf("charmemo_test_%d_%d", time.Now().Unix(), rand.Intn(10000))

	adminDB, err := openAdminDB(config)
	if err != nil {
		return nil, err
	}
	defer adminDB.Close()

	if _, err := adminDB.Exec(fmt.Sprintf("CREATE DATABASE %s", dbName)); err != nil {
		return nil, fmt.Errorf("failed to create test database %s: %w", dbName, err)
	}

	testDB, err := gorm.Open(postgres.Open(config.dsn(dbName)), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		_, _ = adminDB.Exec("DROP DATABASE IF EXISTS " + dbName)
		return nil, fmt.Errorf("failed to connect to test database %s: %w", dbName, err)
	}

	tdb := &TestDB{
		DB:     testDB,
		Name:   dbName,
		config: config,
	}

	if err := runTestMigrations(config.dsn(dbName), dbName); err != nil {
		// Clean up on migration failure
		_ = tdb.TeardownTestDB()
		return nil, fmt.Errorf("failed to run migrations on test database %s: %w", dbName, err)
	}

	return tdb, nil
}

// openAdminDB connects to the server without selecting a database
func openAdminDB(config *TestDBConfig) (*sql.DB, error) {
	adminDB, err := sql.Open("postgres", config.dsn(""))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := adminDB.PingContext(ctx); err != nil {
		adminDB.Close()
		return nil, fmt.Errorf("%w: postgres at %s:%d: %w", ErrServiceUnavailable, config.Host, config.Port, err)
	}

	return adminDB, nil
}

// TeardownTestDB drops the test database and closes connections
func (tdb *TestDB) TeardownTestDB() error {
	if tdb.DB == nil {
		return nil
	}

	// Close test database connection
	if sqlDB, err := tdb.DB.DB(); err == nil {
		sqlDB.Close()
	}

	adminDB, err := openAdminDB(tdb.config)
	if err != nil {
		log.Printf("Warning: failed to connect to PostgreSQL for cleanup: %v", err)
		return err
	}
	defer adminDB.Close()

	// Force disconnect all connections to the test database
	if _, err := adminDB.Exec(
		"SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()",
		tdb.Name); err != nil {
		log.Printf("Warning: failed to terminate connections to test database %s: %v", tdb.Name, err)
	}

	if _, err := adminDB.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s", tdb.Name)); err != nil {
		log.Printf("Warning: failed to drop test database %s: %v", tdb.Name, err)
		return err
	}

	return nil
}

// ClearAllTables removes all data from tables while preserving structure
func (tdb *TestDB) ClearAllTables() error {
	tables := []string{
		"audit_log",
		"characters",
		"sequence_counters",
	}

	for _, table := range tables {
		if err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// runTestMigrations runs all database migrations by executing SQL files directly
func runTestMigrations(databaseURL, dbName string) error {
	migrationsPath, err := findMigrationsDir()
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()

	for _, filename := range migrationFiles {
		content, err := os.ReadFile(filepath.Join(migrationsPath, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	log.Printf("Applied %d migrations to test database %s", len(migrationFiles), dbName)
	return nil
}

// findMigrationsDir walks up from the working directory to the module root
func findMigrationsDir() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	for dir := wd; ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			migrationsPath := filepath.Join(dir, "migrations")
			if _, err := os.Stat(migrationsPath); err != nil {
				return "", fmt.Errorf("migrations directory not found at %s", migrationsPath)
			}
			return migrationsPath, nil
		}
		if filepath.Dir(dir) == dir {
			return "", fmt.Errorf("module root not found above %s", wd)
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// TestWithDB is a helper function that sets up a test database, runs the test function, and cleans up
func TestWithDB(testFunc func(*TestDB) error) error {
	testDB, err := SetupTestDB()
	if err != nil {
		return fmt.Errorf("failed to setup test database: %w", err)
	}
	defer func() {
		if cleanupErr := testDB.TeardownTestDB(); cleanupErr != nil {
			log.Printf("Warning: failed to cleanup test database: %v", cleanupErr)
		}
	}()

	return testFunc(testDB)
}

// CreateTestContext creates a context for testing
func CreateTestContext() context.Context {
	return context.Background()
}
