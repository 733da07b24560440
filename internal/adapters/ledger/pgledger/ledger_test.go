package pgledger

import (
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/larriantoniy/oplati_pay_bot/internal/domain"
)

func TestToRow(t *testing.T) {
	at := time.Date(2026, 10, 19, 12, 30, 0, 0, time.UTC)
	row := toRow(domain.OrderRecord{
		OrderID:     "order-1",
		Timestamp:   at,
		Username:    "ivan",
		UserID:      42,
		Country:     "Germany",
		Service:     "Netflix",
		Rate:        decimal.RequireFromString("94.5"),
		AmountUSD:   decimal.RequireFromString("10"),
		AmountLocal: decimal.RequireFromString("945.004"),
		Status:      domain.StatusPaid,
	})

	require.Equal(t, "order-1", row.OrderID)
	require.Equal(t, at, row.CreatedAt)
	require.Equal(t, int64(42), row.UserID)
	require.Equal(t, "Paid", row.Status)
	require.Equal(t, "945.00", row.AmountLocal.StringFixed(2))
	require.True(t, row.AmountLocal.Equal(decimal.RequireFromString("945")))
	require.Zero(t, row.ID)
}

func TestTableName(t *testing.T) {
	require.Equal(t, "order_ledger", OrderRow{}.TableName())
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrations, "migrations")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	up, err := fs.ReadFile(migrations, "migrations/000001_create_order_ledger.up.sql")
	require.NoError(t, err)
	require.True(t, strings.Contains(string(up), "CREATE TABLE IF NOT EXISTS order_ledger"))
}
