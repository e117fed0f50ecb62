package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"recollect-worker/internal/config"
	"recollect-worker/internal/models"
)

// Conn bundles the pgx pool used for queue and RPC calls with the gorm handle
// layered on the same pool.
type Conn struct {
	Pool *pgxpool.Pool
	Gorm *gorm.DB
}

// Init connects to Postgres and optionally runs migrations
func Init(ctx context.Context, cfg config.DatabaseConfig) (*Conn, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gormLogger := logger.New(
		logrus.StandardLogger(),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	sqlDB := stdlib.OpenDBFromPool(pool)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: gormLogger})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	if cfg.AutoMigrate {
		if err := RunMigrations(db); err != nil {
			pool.Close()
			return nil, err
		}
	}

	logrus.Info("Database initialized successfully")
	return &Conn{Pool: pool, Gorm: db}, nil
}

// RunMigrations creates the tables the pipeline reads and writes. Production
// schemas are owned elsewhere; this is for local and test databases.
func RunMigrations(db *gorm.DB) error {
	logrus.Info("Running database migrations...")
	if err := db.AutoMigrate(&models.Bookmark{}, &models.Category{}, &models.BookmarkCategory{}, &models.Profile{}); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	logrus.Info("Database migrations completed")
	return nil
}

// Close releases the pool
func (c *Conn) Close() {
	if sqlDB, err := c.Gorm.DB(); err == nil {
		sqlDB.Close()
	}
	c.Pool.Close()
}
