package useCases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/larriantoniy/oplati_pay_bot/internal/domain"
	"github.com/larriantoniy/oplati_pay_bot/internal/ports"
	"github.com/larriantoniy/oplati_pay_bot/internal/pricing"
)

const (
	msgGreeting = "👋 Привет! Я бот *Oplati Pay* для международных платежей.\n\n" +
		"Пожалуйста, укажите:\n" +
		"`Страна: [Название страны]`\n" +
		"`Сервис: [Название сервиса]`\n\n" +
		"Пример:\n`Страна: Германия`\n`Сервис: Netflix`"
	msgBadFormat = "❌ Неверный формат. Пожалуйста, используйте:\n" +
		"`Страна: [Название]`\n`Сервис: [Название]`"
	msgBadCountry   = "❌ Пожалуйста, укажите корректное название страны."
	msgBadAmount    = "❌ Неверная сумма. Введите число больше 0 (например: 50.00)"
	msgNoRate       = "❌ Не удалось получить курс доллара. Попробуйте позже."
	msgSendReceipt  = "❌ Пожалуйста, отправьте PDF или фото чека"
	msgStale        = "❌ Сессия устарела. Начните снова /start"
	msgCancelled    = "❌ Операция отменена"
	msgFailed       = "❌ Произошла ошибка. Попробуйте снова /start"
	msgNoStats      = "❌ Не удалось получить статистику. Попробуйте позже."
	msgUnknownCmd   = "Неизвестная команда. Доступны /start, /cancel и /stats"
	defaultManager  = "Менеджер"
	defaultCurrency = "₽"
)

// Metrics: счётчики, которые обновляет диалог.
type Metrics interface {
	Quoted()
	Paid(amountLocal decimal.Decimal)
	RateFailed()
	StepError(kind domain.ErrorKind)
	Cancelled()
}

type noopMetrics struct{}

func (noopMetrics) Quoted()                    {}
func (noopMetrics) Paid(decimal.Decimal)       {}
func (noopMetrics) RateFailed()                {}
func (noopMetrics) StepError(domain.ErrorKind) {}
func (noopMetrics) Cancelled()                 {}

type ConversationConfig struct {
	CardNumber     string
	Markup         decimal.Decimal
	CurrencySign   string
	ManagerContact string // "@manager", показывается клиенту после чека
}

// Conversation ведёт диалог пользователя от /start до получения чека.
// Handle must not be called concurrently for the same user; Dispatcher guarantees that.
type Conversation struct {
	log      *slog.Logger
	tg       ports.Messenger
	sessions ports.SessionStore
	rates    ports.RateProvider
	ledger   ports.Ledger
	receipts ports.ReceiptStore
	events   ports.OrderEvents
	admin    *AdminNotifier
	metrics  Metrics
	cfg      ConversationConfig

	now   func() time.Time
	newID func() string
}

func NewConversation(
	log *slog.Logger,
	tg ports.Messenger,
	sessions ports.SessionStore,
	rates ports.RateProvider,
	ledger ports.Ledger,
	receipts ports.ReceiptStore,
	events ports.OrderEvents,
	admin *AdminNotifier,
	metrics Metrics,
	cfg ConversationConfig,
) *Conversation {
	if cfg.CurrencySign == "" {
		cfg.CurrencySign = defaultCurrency
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Conversation{
		log:      log,
		tg:       tg,
		sessions: sessions,
		rates:    rates,
		ledger:   ledger,
		receipts: receipts,
		events:   events,
		admin:    admin,
		metrics:  metrics,
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (c *Conversation) Handle(ctx context.Context, msg domain.Message) {
	log := c.log.With("user_id", msg.UserID)

	if msg.Kind == domain.MessageText {
		if cmd, ok := parseCommand(msg.Text); ok {
			c.command(ctx, log, msg, cmd)
			return
		}
	}

	sess, err := c.sessions.Get(ctx, msg.UserID)
	if errors.Is(err, ports.ErrSessionNotFound) {
		c.stale(ctx, log, msg.ChatID, msg.UserID)
		return
	}
	if err != nil {
		c.fail(log, domain.KindStorage, "load session", err)
		c.reply(ctx, log, msg.ChatID, msgFailed)
		return
	}

	switch sess.State {
	case domain.StateAwaitingCountryService:
		c.countryService(ctx, log, sess, msg)
	case domain.StateAwaitingAmount:
		c.amount(ctx, log, sess, msg)
	case domain.StateAwaitingReceipt:
		c.receipt(ctx, log, sess, msg)
	default:
		c.stale(ctx, log, msg.ChatID, msg.UserID)
	}
}

func (c *Conversation) command(ctx context.Context, log *slog.Logger, msg domain.Message, cmd string) {
	switch cmd {
	case "start":
		c.start(ctx, log, msg)
	case "cancel":
		c.cancel(ctx, log, msg)
	case "stats":
		c.stats(ctx, log, msg)
	default:
		c.reply(ctx, log, msg.ChatID, msgUnknownCmd)
	}
}

// start сбрасывает прежнюю сессию и начинает новую.
func (c *Conversation) start(ctx context.Context, log *slog.Logger, msg domain.Message) {
	if err := c.sessions.Delete(ctx, msg.UserID); err != nil {
		c.fail(log, domain.KindStorage, "reset session", err)
	}
	sess := domain.NewSession(msg, c.now())
	if err := c.sessions.Save(ctx, sess); err != nil {
		c.fail(log, domain.KindStorage, "save session", err)
		c.reply(ctx, log, msg.ChatID, msgFailed)
		return
	}
	log.Info("session started", "username", msg.Username)
	c.reply(ctx, log, msg.ChatID, msgGreeting)
}

func (c *Conversation) countryService(ctx context.Context, log *slog.Logger, sess *domain.Session, msg domain.Message) {
	if msg.Kind != domain.MessageText {
		c.reply(ctx, log, msg.ChatID, msgBadFormat)
		return
	}
	cs, ierr := ParseCountryService(msg.Text)
	if ierr != nil {
		log.Debug("country/service rejected", "kind", domain.KindValidation, "reason", ierr.Reason)
		c.metrics.StepError(domain.KindValidation)
		if ierr.Reason == ReasonInvalidCountry {
			c.reply(ctx, log, msg.ChatID, msgBadCountry)
		} else {
			c.reply(ctx, log, msg.ChatID, msgBadFormat)
		}
		return
	}

	sess.Country = cs.Country
	sess.Service = cs.Service
	sess.State = domain.StateAwaitingAmount
	if !c.save(ctx, log, sess, msg.ChatID) {
		return
	}

	c.reply(ctx, log, msg.ChatID, fmt.Sprintf(
		"✅ Данные приняты:\n🌍 Страна: *%s*\n🔧 Сервис: *%s*\n\n💵 Теперь введите сумму оплаты в USD:",
		plain(cs.Country), plain(cs.Service),
	))
}

// amount считает котировку. Строка Pending пишется после получения курса и сохранения сессии.
func (c *Conversation) amount(ctx context.Context, log *slog.Logger, sess *domain.Session, msg domain.Message) {
	if msg.Kind != domain.MessageText {
		c.reply(ctx, log, msg.ChatID, msgBadAmount)
		return
	}
	amountUSD, ierr := ParseAmount(msg.Text)
	if ierr != nil {
		log.Debug("amount rejected", "kind", domain.KindValidation, "reason", ierr.Reason)
		c.metrics.StepError(domain.KindValidation)
		c.reply(ctx, log, msg.ChatID, msgBadAmount)
		return
	}

	baseRate, err := c.rates.Fetch(ctx)
	if err != nil {
		c.metrics.RateFailed()
		c.fail(log, domain.KindUpstream, "fetch rate", err)
		sess.State = domain.StateCancelled
		if err := c.sessions.Delete(ctx, sess.UserID); err != nil {
			c.fail(log, domain.KindStorage, "drop session", err)
		}
		c.reply(ctx, log, msg.ChatID, msgNoRate)
		return
	}

	q := pricing.Calculate(amountUSD, baseRate, c.cfg.Markup)
	sess.OrderID = c.newID()
	sess.AmountUSD = amountUSD
	sess.Rate = q.EffectiveRate
	sess.AmountLocal = q.AmountLocal
	sess.CreatedAt = c.now()
	sess.State = domain.StateAwaitingReceipt

	log = log.With("order_id", sess.OrderID)
	if !c.save(ctx, log, sess, msg.ChatID) {
		return
	}
	// без сохранённой сессии строку Pending не пишем
	c.record(ctx, log, sess, domain.StatusPending)
	c.metrics.Quoted()
	log.Info("order quoted",
		"amount_usd", amountUSD.String(),
		"base_rate", baseRate.String(),
		"rate", q.EffectiveRate.StringFixed(2),
		"amount_local", q.AmountLocal.StringFixed(2),
	)

	c.reply(ctx, log, msg.ChatID, fmt.Sprintf(
		"💳 *Реквизиты для оплаты:*\n\n"+
			"🔢 Номер карты: `%s`\n"+
			"💵 Сумма к оплате: *%s USD*\n"+
			"📈 Курс : *%s %s/USD*\n"+
			"💸 Итого: *%s %s*\n\n"+
			"📤 После оплаты отправьте фото или PDF чека",
		c.cfg.CardNumber,
		amountUSD.StringFixed(2),
		q.EffectiveRate.StringFixed(2), c.cfg.CurrencySign,
		q.AmountLocal.StringFixed(2), c.cfg.CurrencySign,
	))
}

// receipt принимает чек. Сбой сохранения файла или журнала не мешает
// уведомить администратора и ответить клиенту.
func (c *Conversation) receipt(ctx context.Context, log *slog.Logger, sess *domain.Session, msg domain.Message) {
	if !sess.Quoted() {
		c.stale(ctx, log, msg.ChatID, msg.UserID)
		return
	}
	ext, ierr := ReceiptExt(msg)
	if ierr != nil {
		c.metrics.StepError(domain.KindValidation)
		c.reply(ctx, log, msg.ChatID, msgSendReceipt)
		return
	}
	log = log.With("order_id", sess.OrderID)
	file := *msg.Attachment

	if path, err := c.storeReceipt(ctx, msg.UserID, ext, file); err != nil {
		c.fail(log, domain.KindStorage, "save receipt", err)
	} else {
		log.Info("receipt saved", "path", path)
	}

	c.record(ctx, log, sess, domain.StatusPaid)

	if err := c.admin.NotifyPaid(ctx, sess, msg.Kind, file); err != nil {
		c.fail(log, domain.KindDelivery, "notify admin", err)
	}
	c.metrics.Paid(sess.AmountLocal)

	sess.State = domain.StateDone
	if err := c.sessions.Delete(ctx, sess.UserID); err != nil {
		c.fail(log, domain.KindStorage, "drop session", err)
	}
	log.Info("order paid", "amount_local", sess.AmountLocal.StringFixed(2))

	manager := defaultManager
	if c.cfg.ManagerContact != "" {
		manager = "Менеджер " + escape(c.cfg.ManagerContact)
	}
	c.reply(ctx, log, msg.ChatID, "✅ Чек получен! "+manager+" свяжется с вами в течение 10 минут.\nДля нового платежа отправьте /start")
}

func (c *Conversation) storeReceipt(ctx context.Context, userID int64, ext string, file domain.Attachment) (string, error) {
	rc, err := c.tg.OpenFile(ctx, file)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer rc.Close()
	return c.receipts.Save(ctx, userID, c.now(), ext, rc)
}

func (c *Conversation) cancel(ctx context.Context, log *slog.Logger, msg domain.Message) {
	sess, err := c.sessions.Get(ctx, msg.UserID)
	switch {
	case err == nil && !sess.State.Terminal():
		c.metrics.Cancelled()
		log.Info("session cancelled", "state", sess.State)
	case err != nil && !errors.Is(err, ports.ErrSessionNotFound):
		c.fail(log, domain.KindStorage, "load session", err)
	}
	if err := c.sessions.Delete(ctx, msg.UserID); err != nil {
		c.fail(log, domain.KindStorage, "drop session", err)
	}
	c.reply(ctx, log, msg.ChatID, msgCancelled)
}

func (c *Conversation) stats(ctx context.Context, log *slog.Logger, msg domain.Message) {
	total, err := c.ledger.TotalPaid(ctx)
	if err != nil {
		c.fail(log, domain.KindStorage, "total paid", err)
		c.reply(ctx, log, msg.ChatID, msgNoStats)
		return
	}
	c.reply(ctx, log, msg.ChatID, fmt.Sprintf(
		"📊 *Статистика платежей*\n\nВсего оплачено: *%s %s*", total.StringFixed(2), c.cfg.CurrencySign,
	))
}

func (c *Conversation) stale(ctx context.Context, log *slog.Logger, chatID, userID int64) {
	log.Info("stale session", "kind", domain.KindStaleSession)
	c.metrics.StepError(domain.KindStaleSession)
	if err := c.sessions.Delete(ctx, userID); err != nil {
		c.fail(log, domain.KindStorage, "drop session", err)
	}
	c.reply(ctx, log, chatID, msgStale)
}

// record пишет строку журнала и событие. Ошибки только логируются.
func (c *Conversation) record(ctx context.Context, log *slog.Logger, sess *domain.Session, status domain.OrderStatus) {
	rec := sess.Record(status)
	if err := c.ledger.Append(ctx, rec); err != nil {
		c.fail(log, domain.KindStorage, "ledger append "+strings.ToLower(string(status)), err)
	}
	if err := c.events.Publish(ctx, domain.NewOrderEvent(rec, c.now())); err != nil {
		c.fail(log, domain.KindDelivery, "publish order event", err)
	}
}

func (c *Conversation) save(ctx context.Context, log *slog.Logger, sess *domain.Session, chatID int64) bool {
	sess.UpdatedAt = c.now()
	if err := c.sessions.Save(ctx, sess); err != nil {
		c.fail(log, domain.KindStorage, "save session", err)
		c.reply(ctx, log, chatID, msgFailed)
		return false
	}
	return true
}

func (c *Conversation) reply(ctx context.Context, log *slog.Logger, chatID int64, text string) {
	if err := c.tg.SendText(ctx, chatID, text); err != nil {
		c.fail(log, domain.KindDelivery, "reply", err)
	}
}

func (c *Conversation) fail(log *slog.Logger, kind domain.ErrorKind, step string, err error) {
	c.metrics.StepError(kind)
	log.Error(step+" failed", "kind", kind, "error", err)
}
