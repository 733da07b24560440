package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending OrderStatus = "Pending"
	StatusPaid    OrderStatus = "Paid"
)

// ParseOrderStatus понимает и старые русские статусы из первой версии журнала.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "ожидание":
		return StatusPending, true
	case "paid", "оплачено":
		return StatusPaid, true
	default:
		return "", false
	}
}

// LedgerTimeLayout is the Date column format.
const LedgerTimeLayout = "2006-01-02 15:04"

// OrderRecord is one row of the append-only order ledger.
// A status change is a new row with the same key fields.
type OrderRecord struct {
	OrderID     string
	Timestamp   time.Time
	Username    string
	UserID      int64
	Country     string
	Service     string
	Rate        decimal.Decimal
	AmountUSD   decimal.Decimal
	AmountLocal decimal.Decimal
	Status      OrderStatus
}

// OrderEvent is published to the event bus for every ledger row.
type OrderEvent struct {
	OrderID     string      `json:"order_id"`
	Status      OrderStatus `json:"status"`
	UserID      int64       `json:"user_id"`
	Username    string      `json:"username"`
	Country     string      `json:"country"`
	Service     string      `json:"service"`
	Rate        string      `json:"rate"`
	AmountUSD   string      `json:"amount_usd"`
	AmountLocal string      `json:"amount_local"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

func NewOrderEvent(rec OrderRecord, at time.Time) OrderEvent {
	return OrderEvent{
		OrderID:     rec.OrderID,
		Status:      rec.Status,
		UserID:      rec.UserID,
		Username:    rec.Username,
		Country:     rec.Country,
		Service:     rec.Service,
		Rate:        rec.Rate.StringFixed(2),
		AmountUSD:   rec.AmountUSD.StringFixed(2),
		AmountLocal: rec.AmountLocal.StringFixed(2),
		OccurredAt:  at.UTC(),
	}
}
