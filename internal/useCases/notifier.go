package useCases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/larriantoniy/oplati_pay_bot/internal/domain"
	"github.com/larriantoniy/oplati_pay_bot/internal/ports"
)

// AdminNotifier доставляет администратору оплаченные заказы.
type AdminNotifier struct {
	log          *slog.Logger
	tg           ports.Messenger
	currencySign string

	adminUsername string

	mu          sync.Mutex
	adminChatID int64 // кеш, чтобы не делать каждый раз resolve
}

func NewAdminNotifier(
	log *slog.Logger,
	tg ports.Messenger,
	adminChatID int64,
	adminUsername string, // "@user"
	currencySign string,
) *AdminNotifier {
	return &AdminNotifier{
		log:           log,
		tg:            tg,
		adminChatID:   adminChatID,
		adminUsername: adminUsername,
		currencySign:  currencySign,
	}
}

// NotifyPaid sends the order summary and then forwards the receipt file.
// Both are attempted; the returned error joins whatever failed.
func (n *AdminNotifier) NotifyPaid(ctx context.Context, sess *domain.Session, kind domain.MessageKind, file domain.Attachment) error {
	chatID, err := n.chat(ctx)
	if err != nil {
		return err
	}

	textErr := n.tg.SendText(ctx, chatID, n.summary(sess))
	if textErr != nil {
		textErr = fmt.Errorf("send order summary: %w", textErr)
	}

	caption := fmt.Sprintf("Чек от @%s", sess.Handle())
	fileErr := n.tg.ForwardFile(ctx, chatID, kind, file, caption)
	if fileErr != nil {
		fileErr = fmt.Errorf("forward receipt: %w", fileErr)
	}

	return errors.Join(textErr, fileErr)
}

func (n *AdminNotifier) chat(ctx context.Context) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.adminChatID != 0 {
		return n.adminChatID, nil
	}
	if n.adminUsername == "" {
		return 0, errors.New("admin chat is not configured")
	}

	// lazy init → resolve username once
	uid, err := n.tg.ResolveUsername(ctx, n.adminUsername)
	if err != nil {
		n.log.Error("Resolve admin username failed", "admin", n.adminUsername, "error", err)
		return 0, fmt.Errorf("resolve admin %s: %w", n.adminUsername, err)
	}
	n.adminChatID = uid
	return uid, nil
}

func (n *AdminNotifier) summary(sess *domain.Session) string {
	var b strings.Builder
	b.WriteString("📥 *Новый платеж!*\n\n")
	fmt.Fprintf(&b, "👤 Пользователь: @%s\n", escape(sess.Handle()))
	fmt.Fprintf(&b, "🆔 ID: `%d`\n", sess.UserID)
	fmt.Fprintf(&b, "🌍 Страна: *%s*\n", plain(sess.Country))
	fmt.Fprintf(&b, "🔧 Сервис: *%s*\n", plain(sess.Service))
	fmt.Fprintf(&b, "💵 Сумма: *%s USD*\n", sess.AmountUSD.StringFixed(2))
	fmt.Fprintf(&b, "💸 К оплате: *%s %s*\n", sess.AmountLocal.StringFixed(2), n.currencySign)
	fmt.Fprintf(&b, "📅 Дата: %s\n", sess.CreatedAt.Format(domain.LedgerTimeLayout))
	fmt.Fprintf(&b, "🧾 Заказ: `%s`", sess.OrderID)
	return b.String()
}

var (
	markdownStripper = strings.NewReplacer("*", "", "_", "", "`", "", "[", "")
	markdownEscaper  = strings.NewReplacer("*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`)
)

// plain убирает символы разметки из текста внутри *...*: экранирование там не работает.
func plain(s string) string {
	return markdownStripper.Replace(s)
}

// escape для пользовательского текста вне сущностей.
func escape(s string) string {
	return markdownEscaper.Replace(s)
}
