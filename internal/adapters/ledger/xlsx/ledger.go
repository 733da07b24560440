// Package xlsx keeps the order ledger in an Excel workbook.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/larriantoniy/oplati_pay_bot/internal/domain"
)

const sheetName = "Orders"

// Header — фиксированная первая строка журнала.
var Header = []string{"Date", "Username", "UserID", "Country", "Service", "Rate", "AmountUSD", "AmountLocal", "Status"}

const (
	colAmountLocal = 7
	colStatus      = 8
)

type Ledger struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

func New(path string, logger *slog.Logger) (*Ledger, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("xlsx: ledger path must not be empty")
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".xlsx" {
		return nil, fmt.Errorf("xlsx: ledger file must have .xlsx extension, got %q", ext)
	}
	return &Ledger{path: path, logger: logger}, nil
}

// Init создаёт каталог и книгу с заголовком, если файла ещё нет.
func (l *Ledger) Init(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("xlsx: mkdir: %w", err)
	}
	if _, err := os.Stat(l.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("xlsx: stat %s: %w", l.path, err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("xlsx: rename sheet: %w", err)
	}
	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("xlsx: write header: %w", err)
	}
	if err := l.save(f); err != nil {
		return err
	}
	l.logger.Info("ledger created", "path", l.path)
	return nil
}

// Append дописывает одну строку. Книга сохраняется во временный файл и
// переименовывается, поэтому частично записанной строки не бывает.
func (l *Ledger) Append(ctx context.Context, rec domain.OrderRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := excelize.OpenFile(l.path)
	if err != nil {
		return fmt.Errorf("xlsx: open %s: %w", l.path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("xlsx: read rows: %w", err)
	}

	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return fmt.Errorf("xlsx: cell name: %w", err)
	}
	row := toRow(rec)
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("xlsx: write row: %w", err)
	}
	return l.save(f)
}

// TotalPaid суммирует AmountLocal по оплаченным строкам.
// Строки с нечисловой суммой или неизвестным статусом пропускаются.
func (l *Ledger) TotalPaid(ctx context.Context) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := os.Stat(l.path); errors.Is(err, os.ErrNotExist) {
		return decimal.Zero, nil
	}

	f, err := excelize.OpenFile(l.path)
	if err != nil {
		return decimal.Zero, fmt.Errorf("xlsx: open %s: %w", l.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()), excelize.Options{RawCellValue: true})
	if err != nil {
		return decimal.Zero, fmt.Errorf("xlsx: read rows: %w", err)
	}

	total := decimal.Zero
	skipped := 0
	for i, row := range rows {
		if i == 0 || len(row) <= colStatus {
			continue
		}
		if status, ok := domain.ParseOrderStatus(row[colStatus]); !ok || status != domain.StatusPaid {
			continue
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(row[colAmountLocal]))
		if err != nil {
			skipped++
			continue
		}
		total = total.Add(amount)
	}
	if skipped > 0 {
		l.logger.Warn("ledger rows with non-numeric amount skipped", "count", skipped)
	}
	return total, nil
}

func (l *Ledger) save(f *excelize.File) error {
	ext := filepath.Ext(l.path)
	tmp := strings.TrimSuffix(l.path, ext) + ".tmp" + ext
	if err := f.SaveAs(tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("xlsx: save: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("xlsx: replace %s: %w", l.path, err)
	}
	return nil
}

func toRow(rec domain.OrderRecord) []interface{} {
	return []interface{}{
		rec.Timestamp.Format(domain.LedgerTimeLayout),
		rec.Username,
		rec.UserID,
		rec.Country,
		rec.Service,
		rec.Rate.InexactFloat64(),
		rec.AmountUSD.InexactFloat64(),
		rec.AmountLocal.InexactFloat64(),
		string(rec.Status),
	}
}
