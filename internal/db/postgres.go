package db

import (
	"context"
	"fmt"
	"time"

	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/config"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// NewPostgresDB creates a pgx connection pool and exposes it as *sql.DB
func NewPostgresDB(cfg *config.Config) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return openPostgres(ctx, cfg.GetPostgresConnectionString(), func(poolConfig *pgxpool.Config) error {
		poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
		poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)

		maxLifetime, err := time.ParseDuration(cfg.Database.ConnMaxLifetime)
		if err != nil {
			return fmt.Errorf("failed to parse connection max lifetime: %w", err)
		}
		poolConfig.MaxConnLifetime = maxLifetime
		return nil
	})
}

// OpenPostgresDSN connects with pool defaults. Used by integration tests.
func OpenPostgresDSN(ctx context.Context, dsn string) (*DB, error) {
	return openPostgres(ctx, dsn, nil)
}

func openPostgres(ctx context.Context, dsn string, tune func(*pgxpool.Config) error) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgxpool config: %w", err)
	}
	if tune != nil {
		if err := tune(poolConfig); err != nil {
			return nil, err
		}
	}

	poolConfig.BeforeAcquire = func(ctx context.Context, conn *pgx.Conn) bool {
		if err := conn.Ping(ctx); err != nil {
			logger.Warn().Err(err).Msg("Unhealthy connection detected")
			return false
		}
		return true
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to establish database connection: %w", err)
	}

	return &DB{
		SQL:     stdlib.OpenDBFromPool(pool),
		Dialect: DialectPostgres,
		pool:    pool,
	}, nil
}
