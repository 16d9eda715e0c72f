package bot

import (
	"context"
	"strings"

	"rentbot/internal/booking"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// API - часть tgbotapi.BotAPI, которой пользуется бот.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Sender реализует booking.Sender и services.Notifier поверх Bot API.
type Sender struct {
	api API
}

func NewSender(api API) *Sender {
	return &Sender{api: api}
}

func inlineKeyboard(rows [][]booking.Button) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var buttons []tgbotapi.InlineKeyboardButton
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		keyboard = append(keyboard, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

func newMessage(chatID int64, resp booking.Response) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, resp.Text)
	msg.ParseMode = resp.ParseMode
	switch {
	case resp.RequestContact:
		keyboard := tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButtonContact("📱 Отправить контакт"),
			),
		)
		keyboard.OneTimeKeyboard = true
		msg.ReplyMarkup = keyboard
	case resp.RemoveKeyboard:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	case len(resp.Keyboard) > 0:
		msg.ReplyMarkup = inlineKeyboard(resp.Keyboard)
	}
	return msg
}

func (s *Sender) Send(_ context.Context, chatID int64, resp booking.Response) (int, error) {
	sent, err := s.api.Send(newMessage(chatID, resp))
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// Edit не считает ошибкой ответ Telegram "message is not modified".
func (s *Sender) Edit(_ context.Context, chatID int64, messageID int, resp booking.Response) error {
	var edit tgbotapi.EditMessageTextConfig
	if len(resp.Keyboard) > 0 {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, resp.Text, inlineKeyboard(resp.Keyboard))
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, resp.Text)
	}
	edit.ParseMode = resp.ParseMode

	_, err := s.api.Send(edit)
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	return err
}

func (s *Sender) Delete(_ context.Context, chatID int64, messageID int) error {
	_, err := s.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

func (s *Sender) AnswerCallback(_ context.Context, callbackID, text string) error {
	_, err := s.api.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}

func (s *Sender) Notify(ctx context.Context, chatID int64, text string) error {
	_, err := s.Send(ctx, chatID, booking.Response{Text: text})
	return err
}
