package bot

import (
	"strings"

	"rentbot/internal/dispatch"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// toEvent пропускает обновления без отправителя или чата: посты каналов
// и callback из inline режима.
func toEvent(update tgbotapi.Update) (*dispatch.Event, bool) {
	switch {
	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || msg.Chat == nil {
			return nil, false
		}
		ev := &dispatch.Event{
			ChatID:    msg.Chat.ID,
			UserID:    msg.From.ID,
			UserName:  displayName(msg.From),
			MessageID: msg.MessageID,
			Text:      msg.Text,
		}
		if msg.Contact != nil {
			ev.Contact = &dispatch.Contact{PhoneNumber: msg.Contact.PhoneNumber, UserID: msg.Contact.UserID}
		}
		return ev, true

	case update.CallbackQuery != nil:
		query := update.CallbackQuery
		if query.From == nil || query.Message == nil || query.Message.Chat == nil {
			return nil, false
		}
		return &dispatch.Event{
			ChatID:       query.Message.Chat.ID,
			UserID:       query.From.ID,
			UserName:     displayName(query.From),
			MessageID:    query.Message.MessageID,
			CallbackID:   query.ID,
			CallbackData: query.Data,
		}, true
	}
	return nil, false
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.UserName
	}
	return name
}
