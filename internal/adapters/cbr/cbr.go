package cbr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/larriantoniy/oplati_pay_bot/internal/ports"
)

const (
	DefaultURL     = "https://www.cbr-xml-daily.ru/daily_json.js"
	defaultTimeout = 5 * time.Second
)

// dailyResponse — нужная нам часть ответа daily_json.js.
type dailyResponse struct {
	Date   string `json:"Date"`
	Valute map[string]struct {
		CharCode string  `json:"CharCode"`
		Nominal  float64 `json:"Nominal"`
		Value    float64 `json:"Value"`
	} `json:"Valute"`
}

// Provider получает курс USD с ЦБ РФ.
type Provider struct {
	client  *http.Client
	logger  *slog.Logger
	url     string
	timeout time.Duration
}

type Option func(*Provider)

func WithURL(url string) Option {
	return func(p *Provider) {
		if url = strings.TrimSpace(url); url != "" {
			p.url = url
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.client = c
	}
}

func New(logger *slog.Logger, opts ...Option) *Provider {
	p := &Provider{
		logger:  logger,
		url:     DefaultURL,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: p.timeout}
	}
	return p
}

// Fetch returns RUB per 1 USD. Every failure is reported as ports.ErrRateUnavailable.
func (p *Provider) Fetch(ctx context.Context) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rate, err := p.fetch(ctx)
	if err != nil {
		p.logger.Warn("USD rate fetch failed", "url", p.url, "error", err)
		return decimal.Zero, ports.ErrRateUnavailable
	}
	p.logger.Debug("USD rate fetched", "rate", rate.String())
	return rate, nil
}

func (p *Provider) fetch(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("cbr returned status: %d", resp.StatusCode)
	}

	var body dailyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode: %w", err)
	}

	usd, ok := body.Valute["USD"]
	if !ok {
		return decimal.Zero, fmt.Errorf("no USD in response dated %q", body.Date)
	}
	nominal := usd.Nominal
	if nominal <= 0 {
		nominal = 1
	}
	rate := decimal.NewFromFloat(usd.Value).Div(decimal.NewFromFloat(nominal))
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive USD rate %v", usd.Value)
	}
	return rate, nil
}
