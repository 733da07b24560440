package ports

import (
	"context"
	"io"

	"github.com/larriantoniy/oplati_pay_bot/internal/domain"
)

// Messenger определяет интерфейс для работы с Telegram.
// Реализуется конкретными адаптерами (TDLib, Bot API и т.д.).
type Messenger interface {
	// Listen возвращает канал входящих сообщений; канал закрывается при остановке клиента
	Listen(ctx context.Context) (<-chan domain.Message, error)
	// SendText отправляет текст с простой Markdown-разметкой (*жирный*, `код`)
	SendText(ctx context.Context, chatID int64, text string) error
	// ForwardFile пересылает файл по ссылке, без повторной загрузки
	ForwardFile(ctx context.Context, chatID int64, kind domain.MessageKind, file domain.Attachment, caption string) error
	// OpenFile скачивает файл и открывает его для чтения
	OpenFile(ctx context.Context, file domain.Attachment) (io.ReadCloser, error)
	// ResolveUsername возвращает chat id по @username
	ResolveUsername(ctx context.Context, username string) (int64, error)
	Close()
}
