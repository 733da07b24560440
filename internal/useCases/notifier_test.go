package useCases

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/larriantoniy/oplati_pay_bot/internal/domain"
)

func paidSession() *domain.Session {
	return &domain.Session{
		UserID:      42,
		Username:    "ivan_petrov",
		State:       domain.StateAwaitingReceipt,
		Country:     "Germany",
		Service:     "Netflix *Premium*",
		OrderID:     "order-1",
		AmountUSD:   decimal.RequireFromString("10"),
		Rate:        decimal.RequireFromString("94.50"),
		AmountLocal: decimal.RequireFromString("945"),
		CreatedAt:   time.Date(2026, 10, 19, 12, 30, 0, 0, time.UTC),
	}
}

func TestNotifyPaid_ResolvesAdminOnce(t *testing.T) {
	tg := newFakeMessenger()
	tg.resolved["boss"] = 555
	n := NewAdminNotifier(discardLogger(), tg, 0, "@boss", "₽")
	file := domain.Attachment{RemoteID: "remote-1"}

	require.NoError(t, n.NotifyPaid(context.Background(), paidSession(), domain.MessagePhoto, file))
	require.NoError(t, n.NotifyPaid(context.Background(), paidSession(), domain.MessagePhoto, file))

	require.Equal(t, 1, tg.resolves)
	require.Len(t, tg.textsTo(555), 2)
	require.Len(t, tg.forwards, 2)
	require.Equal(t, "Чек от @ivan_petrov", tg.forwards[0].caption)
}

func TestNotifyPaid_Summary(t *testing.T) {
	tg := newFakeMessenger()
	n := NewAdminNotifier(discardLogger(), tg, 777, "", "₽")

	require.NoError(t, n.NotifyPaid(context.Background(), paidSession(), domain.MessageDocument, domain.Attachment{}))

	summary := tg.lastTo(777)
	require.Contains(t, summary, `@ivan\_petrov`)
	require.Contains(t, summary, "🆔 ID: `42`")
	require.Contains(t, summary, "*Netflix Premium*")
	require.Contains(t, summary, "*10.00 USD*")
	require.Contains(t, summary, "*945.00 ₽*")
	require.Contains(t, summary, "`order-1`")
}

func TestNotifyPaid_UnresolvableAdmin(t *testing.T) {
	tg := newFakeMessenger()
	n := NewAdminNotifier(discardLogger(), tg, 0, "@ghost", "₽")

	err := n.NotifyPaid(context.Background(), paidSession(), domain.MessagePhoto, domain.Attachment{})
	require.ErrorContains(t, err, "@ghost")
	require.Empty(t, tg.forwards)

	n = NewAdminNotifier(discardLogger(), tg, 0, "", "₽")
	require.Error(t, n.NotifyPaid(context.Background(), paidSession(), domain.MessagePhoto, domain.Attachment{}))
}

func TestNotifyPaid_ForwardsEvenIfTextFails(t *testing.T) {
	tg := newFakeMessenger()
	tg.sendErr = context.DeadlineExceeded
	n := NewAdminNotifier(discardLogger(), tg, 777, "", "₽")

	err := n.NotifyPaid(context.Background(), paidSession(), domain.MessageDocument, domain.Attachment{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, tg.forwards, 1)
}

func TestDisplayNameFallback(t *testing.T) {
	sess := paidSession()
	sess.Username = ""
	sess.DisplayName = "Иван"
	require.Equal(t, "Иван", sess.Handle())
	require.Equal(t, "Иван", sess.Record(domain.StatusPaid).Username)
}
