package tg

import (
	"strings"

	"github.com/zelenin/go-tdlib/client"

	"github.com/larriantoniy/oplati_pay_bot/internal/domain"
)

// toDomainMessage converts an incoming private-chat message. ok is false for
// outgoing messages, group chats and non-user senders.
func toDomainMessage(msg *client.Message) (domain.Message, bool) {
	if msg == nil || msg.IsOutgoing {
		return domain.Message{}, false
	}
	sender, ok := msg.SenderId.(*client.MessageSenderUser)
	if !ok || sender.UserId != msg.ChatId {
		// в личном чате chat_id совпадает с id пользователя
		return domain.Message{}, false
	}

	out := domain.Message{
		ChatID: msg.ChatId,
		UserID: sender.UserId,
		Kind:   domain.MessageOther,
	}

	switch content := msg.Content.(type) {
	case *client.MessageText:
		out.Kind = domain.MessageText
		if content.Text != nil {
			out.Text = content.Text.Text
		}
	case *client.MessageDocument:
		if content.Document == nil || content.Document.Document == nil {
			break
		}
		out.Kind = domain.MessageDocument
		out.Attachment = attachment(content.Document.Document)
		out.Attachment.FileName = content.Document.FileName
		out.Attachment.MimeType = content.Document.MimeType
		out.Text = captionText(content.Caption)
	case *client.MessagePhoto:
		best := largestPhoto(content.Photo)
		if best == nil {
			break
		}
		out.Kind = domain.MessagePhoto
		out.Attachment = attachment(best)
		out.Attachment.MimeType = "image/jpeg"
		out.Text = captionText(content.Caption)
	}
	return out, true
}

func attachment(f *client.File) *domain.Attachment {
	a := &domain.Attachment{FileID: f.Id}
	if f.Remote != nil {
		a.RemoteID = f.Remote.Id
	}
	return a
}

func largestPhoto(p *client.Photo) *client.File {
	if p == nil {
		return nil
	}
	var best *client.PhotoSize
	for _, size := range p.Sizes {
		if size == nil || size.Photo == nil {
			continue
		}
		if best == nil || size.Width*size.Height > best.Width*best.Height {
			best = size
		}
	}
	if best == nil {
		return nil
	}
	return best.Photo
}

func captionText(c *client.FormattedText) string {
	if c == nil {
		return ""
	}
	return c.Text
}

// applyUser fills identity fields from the sender profile.
func applyUser(m *domain.Message, u *client.User) {
	if u == nil {
		return
	}
	if u.Usernames != nil && len(u.Usernames.ActiveUsernames) > 0 {
		m.Username = u.Usernames.ActiveUsernames[0]
	}
	m.DisplayName = strings.TrimSpace(u.FirstName + " " + u.LastName)
}
