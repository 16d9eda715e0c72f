package bot

import (
	"context"
	"log/slog"
	"sync"

	"rentbot/internal/dispatch"
	"rentbot/internal/logging"
	"rentbot/internal/models"
	"rentbot/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// RentBot переводит обновления Telegram в события роутера.
// Обновления обрабатываются строго по одному, и из polling, и из webhook.
type RentBot struct {
	mu     sync.Mutex
	sender *Sender
	router *dispatch.Router
	users  storage.UserRepository
	logger *slog.Logger
}

func New(sender *Sender, router *dispatch.Router, users storage.UserRepository, logger *slog.Logger) *RentBot {
	if logger == nil {
		logger = slog.Default()
	}
	return &RentBot{sender: sender, router: router, users: users, logger: logger}
}

// Run обрабатывает обновления по одному, пока канал открыт и ctx жив.
func (b *RentBot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate не возвращает ошибок: они логируются, обработка идёт дальше.
func (b *RentBot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	ev, ok := toEvent(update)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	logger := b.logger.With("chat_id", ev.ChatID, "user_id", ev.UserID, "category", ev.Category().String())
	ctx = logging.ContextWithLogger(ctx, logger)

	// Сначала сохраняем/обновляем пользователя
	user := &models.User{TelegramID: ev.UserID, Name: ev.UserName}
	if _, err := b.users.CreateOrUpdateUser(ctx, user); err != nil {
		logger.Error("Ошибка сохранения пользователя", "error", err)
	}

	handled, err := b.router.Dispatch(ctx, ev)
	if err != nil {
		logger.Error("Ошибка обработки события", "error", err)
	} else if !handled {
		logger.Debug("Событие без обработчика", "data", ev.CallbackData)
	}

	if ev.Category() == dispatch.CategoryCallback && !ev.Answered {
		if err := b.sender.AnswerCallback(ctx, ev.CallbackID, ""); err != nil {
			logger.Warn("Ошибка ответа на callback", "error", err)
		}
	}
}
