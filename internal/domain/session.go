package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type State string

const (
	StateStart                  State = "start"
	StateAwaitingCountryService State = "awaiting_country_service"
	StateAwaitingAmount         State = "awaiting_amount"
	StateAwaitingReceipt        State = "awaiting_receipt"
	StateDone                   State = "done"
	StateCancelled              State = "cancelled"
)

// Terminal reports whether the dialogue can no longer advance from s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateCancelled
}

// Session — состояние диалога одного пользователя.
// Identity fields are a snapshot taken on /start; order fields are set once.
type Session struct {
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	State       State  `json:"state"`

	Country string `json:"country,omitempty"`
	Service string `json:"service,omitempty"`

	OrderID     string          `json:"order_id,omitempty"`
	AmountUSD   decimal.Decimal `json:"amount_usd"`
	Rate        decimal.Decimal `json:"rate"`
	AmountLocal decimal.Decimal `json:"amount_local"`
	CreatedAt   time.Time       `json:"created_at"`

	UpdatedAt time.Time `json:"updated_at"`
}

func NewSession(msg Message, now time.Time) *Session {
	return &Session{
		UserID:      msg.UserID,
		Username:    msg.Username,
		DisplayName: msg.DisplayName,
		State:       StateAwaitingCountryService,
		UpdatedAt:   now,
	}
}

// Handle: как пользователь показывается в журнале и администратору.
func (s *Session) Handle() string {
	if s.Username != "" {
		return s.Username
	}
	return s.DisplayName
}

// Quoted reports whether the session carries a complete quote.
func (s *Session) Quoted() bool {
	return s.Country != "" && s.Service != "" && s.OrderID != "" &&
		s.AmountUSD.IsPositive() && s.Rate.IsPositive()
}

// Record builds a ledger row from the quoted order with the given status.
func (s *Session) Record(status OrderStatus) OrderRecord {
	return OrderRecord{
		OrderID:     s.OrderID,
		Timestamp:   s.CreatedAt,
		Username:    s.Handle(),
		UserID:      s.UserID,
		Country:     s.Country,
		Service:     s.Service,
		Rate:        s.Rate,
		AmountUSD:   s.AmountUSD,
		AmountLocal: s.AmountLocal,
		Status:      status,
	}
}
