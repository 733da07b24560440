package useCases

import (
	"context"
	"log/slog"
	"sync"

	"github.com/larriantoniy/oplati_pay_bot/internal/domain"
)

type messageSource interface {
	Listen(ctx context.Context) (<-chan domain.Message, error)
}

type messageHandler interface {
	Handle(ctx context.Context, msg domain.Message)
}

// userQueue: сообщения одного пользователя в порядке поступления.
type userQueue struct {
	pending []domain.Message
}

// Dispatcher обрабатывает сообщения одного пользователя строго по очереди,
// а разных пользователей параллельно.
type Dispatcher struct {
	source  messageSource
	handler messageHandler
	log     *slog.Logger

	mu     sync.Mutex
	queues map[int64]*userQueue
	wg     sync.WaitGroup
}

func NewDispatcher(source messageSource, handler messageHandler, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		source:  source,
		handler: handler,
		log:     log,
		queues:  make(map[int64]*userQueue),
	}
}

// Run читает входящие сообщения до отмены ctx или закрытия канала
// и дожидается обработчиков, которые уже запущены.
func (d *Dispatcher) Run(ctx context.Context) error {
	updates, err := d.source.Listen(ctx)
	if err != nil {
		return err
	}
	defer d.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("dispatcher stopped", "reason", ctx.Err())
			return nil
		case msg, ok := <-updates:
			if !ok {
				d.log.Info("updates channel closed")
				return nil
			}
			d.enqueue(ctx, msg)
		}
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, msg domain.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if q, ok := d.queues[msg.UserID]; ok {
		q.pending = append(q.pending, msg)
		return
	}
	d.queues[msg.UserID] = &userQueue{pending: []domain.Message{msg}}
	d.wg.Add(1)
	go d.drain(ctx, msg.UserID)
}

// drain: единственная горутина пользователя; выходит, когда очередь пуста.
func (d *Dispatcher) drain(ctx context.Context, userID int64) {
	defer d.wg.Done()
	for {
		msg, ok := d.next(userID)
		if !ok {
			return
		}
		if ctx.Err() != nil {
			d.log.Debug("message dropped on shutdown", "user_id", userID)
			continue
		}
		d.handle(ctx, msg)
	}
}

func (d *Dispatcher) next(userID int64) (domain.Message, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[userID]
	if len(q.pending) == 0 {
		delete(d.queues, userID)
		return domain.Message{}, false
	}
	msg := q.pending[0]
	q.pending = q.pending[1:]
	return msg, true
}

func (d *Dispatcher) handle(ctx context.Context, msg domain.Message) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("handler panic", "user_id", msg.UserID, "panic", r)
		}
	}()
	d.handler.Handle(ctx, msg)
}
