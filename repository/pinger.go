package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/gorm"
)

type gormPinger struct {
	db *gorm.DB
}

// NewGormPinger checks the SQL connection behind a *gorm.DB
func NewGormPinger(db *gorm.DB) Pinger {
	return &gormPinger{db: db}
}

func (p *gormPinger) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

type redisPinger struct {
	client redis.UniversalClient
}

func NewRedisPinger(client redis.UniversalClient) Pinger {
	return &redisPinger{client: client}
}

func (p *redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

type mongoPinger struct {
	client *mongo.Client
}

func NewMongoPinger(client *mongo.Client) Pinger {
	return &mongoPinger{client: client}
}

func (p *mongoPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx, readpref.Primary())
}
