package testing

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// NewTestRedisClient connects to TEST_REDIS_ADDR and selects TEST_REDIS_DB
func NewTestRedisClient() (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     getEnv("TEST_REDIS_ADDR", "localhost:6379"),
		Password: getEnv("TEST_REDIS_PASSWORD", ""),
		DB:       getEnvAsInt("TEST_REDIS_DB", 15),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis: %w", ErrServiceUnavailable, err)
	}

	return client, nil
}

// RandomKeyPrefix returns a prefix that isolates one test's keys from another's
func RandomKeyPrefix() string {
	return fmt.Sprintf("charmemo_test_%d_%d:", time.Now().UnixNano(), rand.Intn(10000))
}

// TestMongo is a throwaway database on the server at TEST_MONGO_URI
type TestMongo struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// SetupTestMongo connects and picks a unique database name
func SetupTestMongo() (*TestMongo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(getEnv("TEST_MONGO_URI", "mongodb://localhost:27017")).
		SetServerSelectionTimeout(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("%w: mongo: %w", ErrServiceUnavailable, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: mongo: %w", ErrServiceUnavailable, err)
	}

	name := fmt.Sprintf("charmemo_test_%d_%d", time.Now().Unix(), rand.Intn(10000))
	return &TestMongo{Client: client, DB: client.Database(name)}, nil
}

// Teardown drops the database and disconnects
func (tm *TestMongo) Teardown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tm.DB.Drop(ctx); err != nil {
		_ = tm.Client.Disconnect(ctx)
		return err
	}
	return tm.Client.Disconnect(ctx)
}
