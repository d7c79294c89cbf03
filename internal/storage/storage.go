package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"draw_queue/internal/models"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrNotFound is returned when the user holds no entry for the product.
	ErrNotFound = errors.New("storage: queue entry not found")
	// ErrConflict is returned when a transition lost a race with another transition
	// for the same product and may be retried.
	ErrConflict = errors.New("storage: concurrent transition conflict")
)

// Tx is the view of one product's entries available while its exclusive lock is held.
// Every method is scoped to the product passed to Store.Atomically.
type Tx interface {
	Find(productID, userID string) (*models.QueueEntry, error)
	List(productID string) ([]models.QueueEntry, error)
	Expired(productID string, now time.Time) ([]models.QueueEntry, error)
	Create(e *models.QueueEntry) error
	Save(e *models.QueueEntry) error
	Delete(e *models.QueueEntry) error
}

// Store is the Entry Store. Atomically serialises all transitions of one product and
// applies fn's writes as a unit: either every write lands or none does. Everything
// else is a snapshot read that never waits for the product lock.
type Store interface {
	Atomically(ctx context.Context, productID string, fn func(tx Tx) error) error
	Get(ctx context.Context, productID, userID string) (*models.QueueEntry, error)
	Count(ctx context.Context, productID string) (int64, error)
	CountBatch(ctx context.Context, productIDs []string) (map[string]int64, error)
	ExpiredProducts(ctx context.Context, now time.Time) ([]string, error)
	Close() error
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config selects and configures the Entry Store.
type Config struct {
	Driver      string        `mapstructure:"driver"`
	DSN         string        `mapstructure:"dsn"`
	Host        string        `mapstructure:"host"`
	Port        string        `mapstructure:"port"`
	User        string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	Name        string        `mapstructure:"name"`
	SSLMode     string        `mapstructure:"sslmode"`
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
	AutoMigrate bool          `mapstructure:"automigrate"`
}

func (c Config) dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, sslmode)
}

// Open builds the store selected by c.Driver.
func Open(ctx context.Context, c Config) (Store, error) {
	switch c.Driver {
	case DriverMemory:
		slog.Default().InfoContext(ctx, "using in-memory entry store")
		return NewMemory(), nil
	case DriverPostgres, "":
		db, err := ConnectDatabase(c)
		if err != nil {
			return nil, err
		}
		pg := NewPostgres(db, c.LockTimeout)
		if c.AutoMigrate {
			if err := pg.Migrate(); err != nil {
				return nil, fmt.Errorf("can't migrate queue entries: %w", err)
			}
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", c.Driver)
	}
}

// ConnectDatabase opens the postgres connection pool.
func ConnectDatabase(c Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(c.dsn()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("can't connect to postgres: %w", err)
	}
	slog.Default().Info("connected to postgres",
		slog.String("host", c.Host),
		slog.String("db", c.Name),
	)
	return db, nil
}

// RedisConfig configures the connection used by the presence fan-out bus.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// InitRedis creates the redis client and checks that the server answers.
func InitRedis(ctx context.Context, c RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("can't reach redis at %s: %w", c.Addr, err)
	}
	return rdb, nil
}
