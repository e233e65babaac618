package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	infraredis "github.com/jonesrussell/finblog/infrastructure/redis"
	"github.com/jonesrussell/finblog/internal/config"
	"github.com/jonesrussell/finblog/internal/database"
)

// SetupDatabase creates a database connection from config.
func SetupDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	dbCfg := database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxConnections:  cfg.Database.MaxConnections,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnectionMaxLifetime,
	}

	db, connErr := database.NewConnection(ctx, dbCfg)
	if connErr != nil {
		return nil, fmt.Errorf("database connection: %w", connErr)
	}

	return db, nil
}

// SetupRedis returns nil, nil when Redis is disabled.
func SetupRedis(ctx context.Context, cfg *config.Config) (*goredis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil //nolint:nilnil // disabled is not an error
	}

	client, err := infraredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis connection: %w", err)
	}
	return client, nil
}
