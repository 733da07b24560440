// Package receipts сохраняет чеки пользователей на диск.
package receipts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jaevor/go-nanoid"
)

const (
	nameLayout  = "20060102150405"
	maxAttempts = 5
)

type Store struct {
	dir    string
	suffix func() string
	logger *slog.Logger
}

func New(dir string, logger *slog.Logger) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("receipts: dir must not be empty")
	}
	gen, err := nanoid.Standard(8)
	if err != nil {
		return nil, fmt.Errorf("receipts: id generator: %w", err)
	}
	return &Store{dir: dir, suffix: gen, logger: logger}, nil
}

// FileName returns receipt_<userID>_<YYYYMMDDHHMMSS><ext>.
func FileName(userID int64, at time.Time, ext string) string {
	return fmt.Sprintf("receipt_%d_%s%s", userID, at.Format(nameLayout), normalizeExt(ext))
}

// Save пишет чек в новый файл. Существующий файл никогда не перезаписывается:
// при совпадении имени перед расширением вставляется случайный суффикс.
func (s *Store) Save(ctx context.Context, userID int64, at time.Time, ext string, src io.Reader) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("receipts: mkdir: %w", err)
	}

	name := FileName(userID, at, ext)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	path := filepath.Join(s.dir, name)

	var (
		f   *os.File
		err error
	)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return "", err
		}
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("receipts: create %s: %w", path, err)
		}
		path = filepath.Join(s.dir, base+"_"+s.suffix()+filepath.Ext(name))
	}
	if err != nil {
		return "", fmt.Errorf("receipts: no free name for %s: %w", name, err)
	}

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("receipts: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("receipts: close %s: %w", path, err)
	}

	s.logger.Debug("receipt saved", "user_id", userID, "path", path)
	return path, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
