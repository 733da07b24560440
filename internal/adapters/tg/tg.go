package tg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/zelenin/go-tdlib/client"

	"github.com/larriantoniy/oplati_pay_bot/internal/domain"
)

var ErrRateLimited = errors.New("tdlib: too many requests")

// TelegramClient реализует ports.Messenger через TDLib в режиме бота.
type TelegramClient struct {
	client *client.Client
	logger *slog.Logger
	selfId int64

	chats sync.Map // chat id → struct{}; приватные чаты, уже загруженные в TDLib
}

func NewBotClient(cfg Config, log *slog.Logger) (*TelegramClient, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("tdlib: bot token is empty")
	}
	if err := os.MkdirAll(cfg.databaseDir(), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	if err := os.MkdirAll(cfg.filesDir(), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir files dir: %w", err)
	}

	if _, err := client.SetLogVerbosityLevel(&client.SetLogVerbosityLevelRequest{
		NewVerbosityLevel: 1,
	}); err != nil {
		log.Error("TDLib SetLogVerbosityLevel", "error", err)
	}

	proxyCfg, err := ParseProxy(cfg.Proxy)
	if err != nil {
		return nil, err
	}
	checkConnectivity(log, proxyCfg)

	var opts []client.Option
	if proxyCfg != nil {
		opts = append(opts, client.WithProxy(proxyCfg.addProxyRequest()))
	}

	authorizer := client.BotAuthorizer(cfg.tdParams(), cfg.BotToken)
	tdCli, err := client.NewClient(authorizer, opts...)
	if err != nil {
		log.Error("TDLib NewClient error", "proxy", proxyCfg.String(), "error", err)
		return nil, err
	}

	me, err := tdCli.GetMe()
	if err != nil {
		tdCli.Close()
		log.Error("GetMe failed", "error", err)
		return nil, err
	}

	username := ""
	if me.Usernames != nil && len(me.Usernames.ActiveUsernames) > 0 {
		username = me.Usernames.ActiveUsernames[0]
	}
	log.Info("TDLib bot initialized and authorized", "self_id", me.Id, "username", username)

	return &TelegramClient{
		client: tdCli,
		logger: log,
		selfId: me.Id,
	}, nil
}

func (t *TelegramClient) Close() {
	if _, err := t.client.Close(); err != nil {
		t.logger.Warn("TDLib close", "error", err)
	}
}

// Listen возвращает канал доменных сообщений из личных чатов.
// Канал закрывается при отмене ctx.
func (t *TelegramClient) Listen(ctx context.Context) (<-chan domain.Message, error) {
	out := make(chan domain.Message)
	listener := t.client.GetListener()

	go func() {
		defer close(out)
		defer listener.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-listener.Updates:
				if !ok {
					return
				}
				upd, isMsg := update.(*client.UpdateNewMessage)
				if !isMsg {
					continue
				}
				msg, accepted := t.processUpdateNewMessage(upd)
				if !accepted {
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (t *TelegramClient) processUpdateNewMessage(upd *client.UpdateNewMessage) (domain.Message, bool) {
	msg, ok := toDomainMessage(upd.Message)
	if !ok {
		return msg, false
	}
	if msg.UserID == t.selfId {
		return msg, false
	}
	t.chats.Store(msg.ChatID, struct{}{})

	usr, err := t.client.GetUser(&client.GetUserRequest{UserId: msg.UserID})
	if err != nil {
		t.logger.Warn("GetUser failed", "user_id", msg.UserID, "error", err)
	}
	applyUser(&msg, usr)

	t.logger.Debug("incoming message", "user_id", msg.UserID, "kind", msg.Kind)
	return msg, true
}

// SendText отправляет текст с Markdown; если разметка не разбирается, уходит как есть.
func (t *TelegramClient) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.ensureChat(chatID); err != nil {
		return err
	}

	_, err := t.client.SendMessage(&client.SendMessageRequest{
		ChatId: chatID,
		InputMessageContent: &client.InputMessageText{
			Text:       t.formatted(text),
			ClearDraft: true,
		},
	})
	return t.sendError("SendMessage", chatID, err)
}

// ForwardFile отправляет файл по remote id, без повторной загрузки.
func (t *TelegramClient) ForwardFile(ctx context.Context, chatID int64, kind domain.MessageKind, file domain.Attachment, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if file.RemoteID == "" {
		return errors.New("tdlib: file has no remote id")
	}
	if err := t.ensureChat(chatID); err != nil {
		return err
	}

	input := &client.InputFileRemote{Id: file.RemoteID}
	captionText := &client.FormattedText{Text: caption}

	var content client.InputMessageContent
	switch kind {
	case domain.MessagePhoto:
		content = &client.InputMessagePhoto{Photo: input, Caption: captionText}
	case domain.MessageDocument:
		content = &client.InputMessageDocument{Document: input, Caption: captionText}
	default:
		return fmt.Errorf("tdlib: cannot forward message kind %d", kind)
	}

	_, err := t.client.SendMessage(&client.SendMessageRequest{
		ChatId:              chatID,
		InputMessageContent: content,
	})
	return t.sendError("SendMessage file", chatID, err)
}

// OpenFile скачивает файл в кеш TDLib и открывает его.
func (t *TelegramClient) OpenFile(ctx context.Context, file domain.Attachment) (io.ReadCloser, error) {
	fileID := file.FileID
	if fileID == 0 && file.RemoteID != "" {
		remote, err := t.client.GetRemoteFile(&client.GetRemoteFileRequest{RemoteFileId: file.RemoteID})
		if err != nil {
			return nil, fmt.Errorf("GetRemoteFile failed: %w", err)
		}
		fileID = remote.Id
	}

	info, err := t.client.DownloadFile(&client.DownloadFileRequest{
		FileId:      fileID,
		Priority:    32,
		Synchronous: true,
	})
	if err != nil {
		return nil, fmt.Errorf("DownloadFile failed: %w", err)
	}

	// опрашиваем статус загрузки, если TDLib вернул файл раньше
	for info.Local == nil || !info.Local.IsDownloadingCompleted {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
		info, err = t.client.GetFile(&client.GetFileRequest{FileId: fileID})
		if err != nil {
			return nil, fmt.Errorf("GetFile polling failed: %w", err)
		}
	}

	f, err := os.Open(info.Local.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", info.Local.Path, err)
	}
	return f, nil
}

func (t *TelegramClient) ResolveUsername(ctx context.Context, username string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")

	res, err := t.client.SearchPublicChat(&client.SearchPublicChatRequest{
		Username: username,
	})
	if err != nil {
		t.logger.Error("SearchPublicChat failed", "username", username, "error", err)
		return 0, err
	}
	return res.Id, nil
}

// ensureChat: TDLib отправляет только в известные ему чаты.
func (t *TelegramClient) ensureChat(chatID int64) error {
	if _, ok := t.chats.Load(chatID); ok || chatID <= 0 {
		return nil
	}
	if _, err := t.client.CreatePrivateChat(&client.CreatePrivateChatRequest{UserId: chatID}); err != nil {
		return fmt.Errorf("CreatePrivateChat %d: %w", chatID, err)
	}
	t.chats.Store(chatID, struct{}{})
	return nil
}

func (t *TelegramClient) formatted(text string) *client.FormattedText {
	ft, err := client.ParseTextEntities(&client.ParseTextEntitiesRequest{
		Text:      text,
		ParseMode: &client.TextParseModeMarkdown{Version: 1},
	})
	if err != nil {
		t.logger.Debug("markdown parse failed, sending plain text", "error", err)
		return &client.FormattedText{Text: text}
	}
	return ft
}

func (t *TelegramClient) sendError(op string, chatID int64, err error) error {
	if err == nil {
		return nil
	}
	if isTooManyRequests(err) {
		t.logger.Error(op+" rate-limited: too many requests", "chat_id", chatID, "error", err)
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	t.logger.Error(op+" failed", "chat_id", chatID, "error", err)
	return err
}

func isTooManyRequests(err error) bool {
	// TDLib оборачивается в client.Error
	var tdErr *client.Error
	if errors.As(err, &tdErr) {
		// обычно Code == 429, но подстрахуемся по тексту
		if tdErr.Code == 429 {
			return true
		}
		if strings.Contains(strings.ToLower(tdErr.Message), "too many requests") {
			return true
		}
	}
	return false
}
