package domain

type MessageKind int

const (
	MessageText MessageKind = iota
	MessageDocument
	MessagePhoto
	MessageOther // стикеры, видео, голосовые и т.п.
)

// Message описывает входящее сообщение из Telegram (только личные чаты)
type Message struct {
	ChatID      int64
	UserID      int64
	Username    string
	DisplayName string

	Kind       MessageKind
	Text       string
	Attachment *Attachment
}

// Attachment — файл, приложенный к сообщению (документ или фото).
type Attachment struct {
	FileID   int32  // локальный id файла в TDLib
	RemoteID string // persistent id, по нему файл пересылается без повторной загрузки
	FileName string
	MimeType string
}

// Handle возвращает то, как пользователь показывается администратору.
func (m Message) Handle() string {
	if m.Username != "" {
		return m.Username
	}
	return m.DisplayName
}
