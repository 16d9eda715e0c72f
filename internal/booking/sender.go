package booking

import "context"

type Button struct {
	Text string
	Data string
}

// Response - ответ пользователю без привязки к API мессенджера.
type Response struct {
	Text      string
	Keyboard  [][]Button
	ParseMode string

	// RequestContact показывает кнопку отправки своего контакта.
	RequestContact bool
	// RemoveKeyboard убирает клавиатуру с кнопкой контакта.
	RemoveKeyboard bool
}

type Sender interface {
	Send(ctx context.Context, chatID int64, resp Response) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, resp Response) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

func row(buttons ...Button) []Button {
	return buttons
}

func btn(text, data string) Button {
	return Button{Text: text, Data: data}
}

func backRow() []Button {
	return row(btn("🔙 Назад", dataBack))
}
