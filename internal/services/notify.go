package services

import (
	"context"
	"log/slog"
)

// Notifier отправляет текст в чат. Реализуется транспортом бота.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// notifyAll отправляет каждому получателю отдельно. Ошибка одного
// получателя только логируется и не прерывает цикл.
func notifyAll(ctx context.Context, n Notifier, logger *slog.Logger, chatIDs []int64, text string) int {
	if n == nil {
		return 0
	}
	sent := 0
	for _, id := range chatIDs {
		if err := n.Notify(ctx, id, text); err != nil {
			logger.Warn("Ошибка уведомления", "chat_id", id, "error", err)
			continue
		}
		sent++
	}
	return sent
}
