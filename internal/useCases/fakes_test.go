package useCases

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/larriantoniy/oplati_pay_bot/internal/domain"
	"github.com/larriantoniy/oplati_pay_bot/internal/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentText struct {
	chatID int64
	text   string
}

type forwarded struct {
	chatID  int64
	kind    domain.MessageKind
	file    domain.Attachment
	caption string
}

type fakeMessenger struct {
	mu        sync.Mutex
	texts     []sentText
	forwards  []forwarded
	resolved  map[string]int64
	resolves  int
	openErr   error
	sendErr   error
	updates   chan domain.Message
	listenErr error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{resolved: map[string]int64{}}
}

func (m *fakeMessenger) Listen(ctx context.Context) (<-chan domain.Message, error) {
	if m.listenErr != nil {
		return nil, m.listenErr
	}
	return m.updates, nil
}

func (m *fakeMessenger) SendText(ctx context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.texts = append(m.texts, sentText{chatID: chatID, text: text})
	return nil
}

func (m *fakeMessenger) ForwardFile(ctx context.Context, chatID int64, kind domain.MessageKind, file domain.Attachment, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forwards = append(m.forwards, forwarded{chatID: chatID, kind: kind, file: file, caption: caption})
	return nil
}

func (m *fakeMessenger) OpenFile(ctx context.Context, file domain.Attachment) (io.ReadCloser, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return io.NopCloser(strings.NewReader("receipt-bytes")), nil
}

func (m *fakeMessenger) ResolveUsername(ctx context.Context, username string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolves++
	id, ok := m.resolved[strings.TrimPrefix(username, "@")]
	if !ok {
		return 0, errors.New("username not found")
	}
	return id, nil
}

func (m *fakeMessenger) Close() {}

// textsTo returns every text sent to chatID.
func (m *fakeMessenger) textsTo(chatID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, t := range m.texts {
		if t.chatID == chatID {
			out = append(out, t.text)
		}
	}
	return out
}

func (m *fakeMessenger) lastTo(chatID int64) string {
	texts := m.textsTo(chatID)
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

type fakeSessions struct {
	data    map[int64]domain.Session
	saveErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{data: map[int64]domain.Session{}}
}

func (s *fakeSessions) Get(ctx context.Context, userID int64) (*domain.Session, error) {
	sess, ok := s.data[userID]
	if !ok {
		return nil, ports.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *fakeSessions) Save(ctx context.Context, sess *domain.Session) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data[sess.UserID] = *sess
	return nil
}

func (s *fakeSessions) Delete(ctx context.Context, userID int64) error {
	delete(s.data, userID)
	return nil
}

type fakeRates struct {
	rate  decimal.Decimal
	err   error
	calls int
}

func (r *fakeRates) Fetch(ctx context.Context) (decimal.Decimal, error) {
	r.calls++
	return r.rate, r.err
}

type fakeLedger struct {
	rows      []domain.OrderRecord
	appendErr error
	total     decimal.Decimal
	totalErr  error
}

func (l *fakeLedger) Init(ctx context.Context) error { return nil }

func (l *fakeLedger) Append(ctx context.Context, rec domain.OrderRecord) error {
	if l.appendErr != nil {
		return l.appendErr
	}
	l.rows = append(l.rows, rec)
	return nil
}

func (l *fakeLedger) TotalPaid(ctx context.Context) (decimal.Decimal, error) {
	return l.total, l.totalErr
}

type savedReceipt struct {
	userID int64
	ext    string
	body   string
}

type fakeReceipts struct {
	saved []savedReceipt
	err   error
}

func (r *fakeReceipts) Save(ctx context.Context, userID int64, at time.Time, ext string, src io.Reader) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	body, err := io.ReadAll(src)
	if err != nil {
		return "", err
	}
	r.saved = append(r.saved, savedReceipt{userID: userID, ext: ext, body: string(body)})
	return "/receipts/receipt" + ext, nil
}

type fakeEvents struct {
	events []domain.OrderEvent
	err    error
}

func (e *fakeEvents) Publish(ctx context.Context, event domain.OrderEvent) error {
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, event)
	return nil
}

type fakeMetrics struct {
	quoted, paid, rateFailed, cancelled int
	steps                               map[domain.ErrorKind]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{steps: map[domain.ErrorKind]int{}}
}

func (m *fakeMetrics) Quoted()                         { m.quoted++ }
func (m *fakeMetrics) Paid(decimal.Decimal)            { m.paid++ }
func (m *fakeMetrics) RateFailed()                     { m.rateFailed++ }
func (m *fakeMetrics) StepError(kind domain.ErrorKind) { m.steps[kind]++ }
func (m *fakeMetrics) Cancelled()                      { m.cancelled++ }
