package bdkeeper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-migrate/migrate"
	"github.com/golang-migrate/migrate/database/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/drstein77/storefront/internal/storage"
)

type Log interface {
	Info(string, ...zap.Field)
	Warn(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// BDKeeper persists store keys in a Postgres kvstore table.
type BDKeeper struct {
	pool *pgxpool.Pool
	log  Log
}

func NewBDKeeper(dsn func() string, log Log) *BDKeeper {
	addr := dsn()
	if addr == "" {
		log.Info("database dsn is empty")
		return nil
	}

	config, err := pgxpool.ParseConfig(addr)
	if err != nil {
		log.Error("Unable to parse database DSN: ", zap.Error(err))
		return nil
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		log.Error("Unable to connect to database: ", zap.Error(err))
		return nil
	}

	connConfig, err := pgx.ParseConfig(addr)
	if err != nil {
		log.Error("Unable to parse connection string: ", zap.Error(err))
		return nil
	}
	// Register the driver with the name pgx
	sqlDB := stdlib.OpenDB(*connConfig)

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		log.Error("Error getting driver: ", zap.Error(err))
		return nil
	}

	dir, err := os.Getwd()
	if err != nil {
		log.Error("Error getting current directory: ", zap.Error(err))
	}

	// fix error test path
	mp := dir + "/migrations"
	var path string
	if _, err := os.Stat(mp); err != nil {
		path = "../../"
	} else {
		path = dir + "/"
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%smigrations", path),
		"postgres",
		driver)
	if err != nil {
		log.Error("Error creating migration instance: ", zap.Error(err))
		return nil
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		log.Error("Error while performing migration: ", zap.Error(err))
		return nil
	}

	log.Info("Connected!")

	return &BDKeeper{
		pool: pool,
		log:  log,
	}
}

// Load returns the JSON value stored under key, or storage.ErrNotFound.
func (kp *BDKeeper) Load(ctx context.Context, key string) ([]byte, error) {
	if kp.pool == nil {
		return nil, fmt.Errorf("database connection pool is nil")
	}

	var value []byte
	row := kp.pool.QueryRow(ctx, `SELECT value FROM kvstore WHERE key = $1`, key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		kp.log.Error("Failed to load key", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to load key %q: %w", key, err)
	}

	return value, nil
}

// Save upserts the JSON value under key. Last write wins.
func (kp *BDKeeper) Save(ctx context.Context, key string, value []byte) error {
	if kp.pool == nil {
		return fmt.Errorf("database connection pool is nil")
	}

	stmt := `
        INSERT INTO kvstore (key, value, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
    `
	if _, err := kp.pool.Exec(ctx, stmt, key, value); err != nil {
		kp.log.Error("Failed to save key", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to save key %q: %w", key, err)
	}

	return nil
}

func (kp *BDKeeper) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := kp.pool.Ping(ctx); err != nil {
		kp.log.Error("Database ping failed", zap.Error(err))
		return false
	}

	return true
}

func (kp *BDKeeper) Close() bool {
	if kp.pool != nil {
		kp.pool.Close()
		kp.log.Info("Database connection pool closed")
		return true
	}
	kp.log.Info("Attempted to close a nil database connection pool")
	return false
}
