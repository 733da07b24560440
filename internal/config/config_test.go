package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const baseYAML = `
env: dev
telegram:
  api_id: 12345
  api_hash: hash
  bot_token: "1:token"
payment:
  card_number: "2200 0000 0000 0000"
admin:
  chat_id: 777
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadPath_Defaults(t *testing.T) {
	cfg, err := LoadPath(writeConfig(t, baseYAML))
	require.NoError(t, err)

	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, int32(12345), cfg.Telegram.ApiID)
	require.Equal(t, 0.05, cfg.Payment.Markup)
	require.Equal(t, "₽", cfg.Payment.CurrencySign)
	require.Equal(t, LedgerXLSX, cfg.Ledger.Driver)
	require.Equal(t, "data/orders.xlsx", cfg.Ledger.Path)
	require.Equal(t, "data/receipts", cfg.Receipts.Dir)
	require.Equal(t, 5*time.Second, cfg.Rates.Timeout)
	require.Equal(t, SessionsMemory, cfg.Sessions.Driver)
	require.Equal(t, 24*time.Hour, cfg.Sessions.IdleTTL)
	require.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadPath_EnvOverridesFile(t *testing.T) {
	t.Setenv("USD_MARKUP", "0.1")
	t.Setenv("RECEIPTS_DIR", "/var/receipts")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("RATES_TIMEOUT", "2s")

	cfg, err := LoadPath(writeConfig(t, baseYAML))
	require.NoError(t, err)
	require.Equal(t, 0.1, cfg.Payment.Markup)
	require.Equal(t, "/var/receipts", cfg.Receipts.Dir)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, 2*time.Second, cfg.Rates.Timeout)
}

func TestLoadPath_MissingFile(t *testing.T) {
	_, err := LoadPath(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func validConfig() AppConfig {
	return AppConfig{
		Telegram: Telegram{ApiID: 1, ApiHash: "h", BotToken: "t"},
		Payment:  Payment{CardNumber: "2200", Markup: 0.05},
		Admin:    Admin{Username: "@admin"},
		Ledger:   Ledger{Driver: LedgerXLSX, Path: "orders.xlsx"},
		Rates:    Rates{Timeout: time.Second},
		Sessions: Sessions{Driver: SessionsMemory},
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(c *AppConfig) {}},
		{name: "missing token", mutate: func(c *AppConfig) { c.Telegram.BotToken = "" }, wantErr: "BOT_TOKEN"},
		{name: "missing card", mutate: func(c *AppConfig) { c.Payment.CardNumber = " " }, wantErr: "CARD_NUMBER"},
		{name: "negative markup", mutate: func(c *AppConfig) { c.Payment.Markup = -0.1 }, wantErr: "USD_MARKUP"},
		{name: "no admin", mutate: func(c *AppConfig) { c.Admin = Admin{} }, wantErr: "ADMIN_CHAT_ID"},
		{name: "postgres without dsn", mutate: func(c *AppConfig) { c.Ledger.Driver = LedgerPostgres }, wantErr: "ledger.dsn"},
		{name: "unknown ledger", mutate: func(c *AppConfig) { c.Ledger.Driver = "csv" }, wantErr: "unknown ledger driver"},
		{name: "redis without addr", mutate: func(c *AppConfig) { c.Sessions.Driver = SessionsRedis }, wantErr: "redis_addr"},
		{name: "zero timeout", mutate: func(c *AppConfig) { c.Rates.Timeout = 0 }, wantErr: "rates.timeout"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
