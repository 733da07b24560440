// Package pgledger keeps the order ledger in PostgreSQL.
package pgledger

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	_ "github.com/lib/pq"

	"github.com/larriantoniy/oplati_pay_bot/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// OrderRow — строка таблицы order_ledger.
type OrderRow struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	OrderID     string          `gorm:"column:order_id"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime:false"`
	Username    string          `gorm:"column:username"`
	UserID      int64           `gorm:"column:user_id"`
	Country     string          `gorm:"column:country"`
	Service     string          `gorm:"column:service"`
	Rate        decimal.Decimal `gorm:"column:rate;type:numeric(14,2)"`
	AmountUSD   decimal.Decimal `gorm:"column:amount_usd;type:numeric(14,2)"`
	AmountLocal decimal.Decimal `gorm:"column:amount_local;type:numeric(14,2)"`
	Status      string          `gorm:"column:status"`
}

func (OrderRow) TableName() string { return "order_ledger" }

type Ledger struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to the database. Schema is created by Init.
func Open(dsn string, logger *slog.Logger) (*Ledger, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("pgledger: open: %w", err)
	}
	return New(db, logger), nil
}

func New(db *gorm.DB, logger *slog.Logger) *Ledger {
	return &Ledger{db: db, logger: logger}
}

// Init применяет встроенные миграции.
func (l *Ledger) Init(ctx context.Context) error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return fmt.Errorf("pgledger: failed to get sql.DB from gorm.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("pgledger: ping: %w", err)
	}

	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("pgledger: migrations source: %w", err)
	}
	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("pgledger: creating postgres driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("pgledger: creating migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("pgledger: applying migrations: %w", err)
	}

	l.logger.Info("ledger migrations applied")
	return nil
}

func (l *Ledger) Append(ctx context.Context, rec domain.OrderRecord) error {
	row := toRow(rec)
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("pgledger: insert: %w", err)
	}
	return nil
}

func (l *Ledger) TotalPaid(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := l.db.WithContext(ctx).
		Model(&OrderRow{}).
		Select("COALESCE(SUM(amount_local), 0)").
		Where("status = ?", string(domain.StatusPaid)).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("pgledger: total paid: %w", err)
	}
	return total, nil
}

func toRow(rec domain.OrderRecord) OrderRow {
	return OrderRow{
		OrderID:     rec.OrderID,
		CreatedAt:   rec.Timestamp,
		Username:    rec.Username,
		UserID:      rec.UserID,
		Country:     rec.Country,
		Service:     rec.Service,
		Rate:        rec.Rate.Round(2),
		AmountUSD:   rec.AmountUSD.Round(2),
		AmountLocal: rec.AmountLocal.Round(2),
		Status:      string(rec.Status),
	}
}
