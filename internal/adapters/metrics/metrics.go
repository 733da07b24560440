package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/larriantoniy/oplati_pay_bot/internal/domain"
)

// BotMetrics содержит счётчики бота. Методы безопасны для nil.
type BotMetrics struct {
	OrdersQuoted     prometheus.Counter
	OrdersPaid       prometheus.Counter
	PaidAmountLocal  prometheus.Counter
	RateUnavailable  prometheus.Counter
	StepErrors       *prometheus.CounterVec
	SessionsCanceled prometheus.Counter
}

// New регистрирует метрики в reg.
func New(reg prometheus.Registerer) *BotMetrics {
	f := promauto.With(reg)
	return &BotMetrics{
		OrdersQuoted: f.NewCounter(prometheus.CounterOpts{
			Name: "oplati_orders_quoted_total",
			Help: "Заказы, по которым клиенту выставлена сумма",
		}),
		OrdersPaid: f.NewCounter(prometheus.CounterOpts{
			Name: "oplati_orders_paid_total",
			Help: "Заказы, по которым получен чек",
		}),
		PaidAmountLocal: f.NewCounter(prometheus.CounterOpts{
			Name: "oplati_orders_paid_amount_local_total",
			Help: "Сумма оплаченных заказов в локальной валюте",
		}),
		RateUnavailable: f.NewCounter(prometheus.CounterOpts{
			Name: "oplati_rate_unavailable_total",
			Help: "Неудачные запросы курса USD",
		}),
		StepErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oplati_step_errors_total",
			Help: "Ошибки шагов диалога по типу",
		}, []string{"kind"}),
		SessionsCanceled: f.NewCounter(prometheus.CounterOpts{
			Name: "oplati_sessions_cancelled_total",
			Help: "Диалоги, прерванные командой /cancel",
		}),
	}
}

func (m *BotMetrics) Quoted() {
	if m == nil {
		return
	}
	m.OrdersQuoted.Inc()
}

func (m *BotMetrics) Paid(amountLocal decimal.Decimal) {
	if m == nil {
		return
	}
	m.OrdersPaid.Inc()
	if amountLocal.IsPositive() {
		m.PaidAmountLocal.Add(amountLocal.InexactFloat64())
	}
}

func (m *BotMetrics) RateFailed() {
	if m == nil {
		return
	}
	m.RateUnavailable.Inc()
}

func (m *BotMetrics) StepError(kind domain.ErrorKind) {
	if m == nil {
		return
	}
	m.StepErrors.WithLabelValues(string(kind)).Inc()
}

func (m *BotMetrics) Cancelled() {
	if m == nil {
		return
	}
	m.SessionsCanceled.Inc()
}
