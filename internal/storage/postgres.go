package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"draw_queue/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres keeps queue entries in the queue_entries table. Transitions of one product
// are serialised by a transaction-scoped advisory lock keyed by the product id, taken
// before anything is read.
type Postgres struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func NewPostgres(db *gorm.DB, lockTimeout time.Duration) *Postgres {
	return &Postgres{db: db, lockTimeout: lockTimeout}
}

func (p *Postgres) Migrate() error {
	return p.db.AutoMigrate(&models.QueueEntry{})
}

func (p *Postgres) Atomically(ctx context.Context, productID string, fn func(tx Tx) error) error {
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if p.lockTimeout > 0 {
			// SET does not take bind parameters.
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", p.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", productID).Error; err != nil {
			return err
		}
		return fn(&pgTx{db: tx, productID: productID})
	})
	return translateError(err)
}

func (p *Postgres) Get(ctx context.Context, productID, userID string) (*models.QueueEntry, error) {
	var e models.QueueEntry
	err := p.db.WithContext(ctx).
		Where("product_id = ? AND user_id = ?", productID, userID).
		Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("can't get queue entry: %w", err)
	}
	return &e, nil
}

func (p *Postgres) Count(ctx context.Context, productID string) (int64, error) {
	var n int64
	if err := p.db.WithContext(ctx).
		Model(&models.QueueEntry{}).
		Where("product_id = ?", productID).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("can't count queue entries: %w", err)
	}
	return n, nil
}

type productCount struct {
	ProductID string
	N         int64
}

func (p *Postgres) CountBatch(ctx context.Context, productIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(productIDs))
	for _, id := range productIDs {
		counts[id] = 0
	}
	if len(productIDs) == 0 {
		return counts, nil
	}

	var rows []productCount
	if err := p.db.WithContext(ctx).
		Model(&models.QueueEntry{}).
		Select("product_id, COUNT(*) AS n").
		Where("product_id IN ?", productIDs).
		Group("product_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("can't count queue entries: %w", err)
	}
	for _, r := range rows {
		counts[r.ProductID] = r.N
	}
	return counts, nil
}

func (p *Postgres) ExpiredProducts(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	if err := p.db.WithContext(ctx).
		Model(&models.QueueEntry{}).
		Where("expires_at < ?", now).
		Distinct("product_id").
		Pluck("product_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("can't list products with expired entries: %w", err)
	}
	return ids, nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type pgTx struct {
	db        *gorm.DB
	productID string
}

func (t *pgTx) scoped(productID string) error {
	if productID != t.productID {
		return fmt.Errorf("storage: transaction is scoped to product %q, got %q", t.productID, productID)
	}
	return nil
}

func (t *pgTx) Find(productID, userID string) (*models.QueueEntry, error) {
	if err := t.scoped(productID); err != nil {
		return nil, err
	}
	var e models.QueueEntry
	err := t.db.Where("product_id = ? AND user_id = ?", productID, userID).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &e, err
}

func (t *pgTx) List(productID string) ([]models.QueueEntry, error) {
	if err := t.scoped(productID); err != nil {
		return nil, err
	}
	var entries []models.QueueEntry
	err := t.db.
		Where("product_id = ?", productID).
		Order("position ASC, created_at ASC").
		Find(&entries).Error
	return entries, err
}

func (t *pgTx) Expired(productID string, now time.Time) ([]models.QueueEntry, error) {
	if err := t.scoped(productID); err != nil {
		return nil, err
	}
	var entries []models.QueueEntry
	err := t.db.
		Where("product_id = ? AND expires_at < ?", productID, now).
		Find(&entries).Error
	return entries, err
}

func (t *pgTx) Create(e *models.QueueEntry) error {
	if err := t.scoped(e.ProductID); err != nil {
		return err
	}
	return t.db.Create(e).Error
}

func (t *pgTx) Save(e *models.QueueEntry) error {
	if err := t.scoped(e.ProductID); err != nil {
		return err
	}
	// A map keeps zero positions in the update set.
	return t.db.Model(&models.QueueEntry{}).
		Where("id = ?", e.ID).
		Updates(map[string]interface{}{
			"status":     e.Status,
			"position":   e.Position,
			"expires_at": e.ExpiresAt,
			"updated_at": e.UpdatedAt,
		}).Error
}

func (t *pgTx) Delete(e *models.QueueEntry) error {
	if err := t.scoped(e.ProductID); err != nil {
		return err
	}
	return t.db.Where("id = ?", e.ID).Delete(&models.QueueEntry{}).Error
}

// translateError maps the postgres errors that mean "another transition got there
// first" onto ErrConflict so the engine can retry them.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03", // lock_not_available
			"23505": // unique_violation
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
		}
	}
	return err
}
