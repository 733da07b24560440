package ports

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/larriantoniy/oplati_pay_bot/internal/domain"
)

var (
	// ErrRateUnavailable is the only error a RateProvider returns.
	ErrRateUnavailable = errors.New("rates: exchange rate unavailable")
	ErrSessionNotFound = errors.New("sessions: session not found")
)

// RateProvider returns units of local currency per 1 USD.
// Implementations apply a bounded timeout and never retry.
type RateProvider interface {
	Fetch(ctx context.Context) (decimal.Decimal, error)
}

// Ledger is the append-only order log.
type Ledger interface {
	// Init создаёт хранилище с заголовком, если его ещё нет. Идемпотентна.
	Init(ctx context.Context) error
	Append(ctx context.Context, rec domain.OrderRecord) error
	// TotalPaid суммирует AmountLocal по строкам со статусом Paid.
	TotalPaid(ctx context.Context) (decimal.Decimal, error)
}

type SessionStore interface {
	Get(ctx context.Context, userID int64) (*domain.Session, error)
	Save(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context, userID int64) error
}

// ReceiptStore persists receipt files and returns the stored path.
type ReceiptStore interface {
	Save(ctx context.Context, userID int64, at time.Time, ext string, src io.Reader) (string, error)
}

type OrderEvents interface {
	Publish(ctx context.Context, event domain.OrderEvent) error
}
