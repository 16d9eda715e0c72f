package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"rentbot/config"
	"rentbot/internal/booking"
	"rentbot/internal/bot"
	"rentbot/internal/dispatch"
	"rentbot/internal/events"
	"rentbot/internal/logging"
	"rentbot/internal/models"
	"rentbot/internal/services"
	"rentbot/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.New(os.Stdout, level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Бот остановлен с ошибкой", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := storage.NewSQLStorage(cfg.DBDriver, cfg.DBDSN, cfg.Timezone)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	if err := db.Init(ctx); err != nil {
		return fmt.Errorf("init db: %w", err)
	}

	states, closeStates, err := openStates(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeStates()

	if err := seedAdmins(ctx, db, cfg.AdminIDs); err != nil {
		return err
	}
	admins, err := services.NewAdminCache(ctx, db)
	if err != nil {
		return err
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	botAPI.Debug = cfg.Debug
	logger.Info("Авторизован", "username", botAPI.Self.UserName)

	sender := bot.NewSender(botAPI)
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		publisher = events.NewPublisher(cfg.AMQPURL, cfg.AMQPQueue, logger)
	}

	router := dispatch.NewRouter(states)
	booking.NewCommands(db, admins, sender, models.Kinds).Register(router)
	for _, kind := range models.Kinds {
		service := services.NewReservationService(services.Options{
			Kind:     kind,
			Capacity: capacity(cfg, kind),
			Reserves: db,
			Users:    db,
			Admins:   admins,
			Notifier: sender,
			Events:   publisher,
			Logger:   logger,
		})
		booking.NewProcessor(booking.Options{
			Service:   service,
			Users:     db,
			States:    states,
			Sender:    sender,
			OpenHour:  cfg.OpenHour,
			CloseHour: cfg.CloseHour,
			BookDays:  cfg.BookDays,
			Location:  cfg.Timezone,
		}).Register(router)
	}
	rentBot := bot.New(sender, router, db, logger)

	if cfg.WebhookAddr == "" {
		return poll(ctx, botAPI, rentBot, logger)
	}
	return serveWebhook(ctx, cfg, botAPI, rentBot, logger)
}

func poll(ctx context.Context, botAPI *tgbotapi.BotAPI, rentBot *bot.RentBot, logger *slog.Logger) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := botAPI.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		botAPI.StopReceivingUpdates()
	}()

	logger.Info("Бот успешно запущен!", "mode", "polling")
	rentBot.Run(ctx, updates)
	return nil
}

func serveWebhook(ctx context.Context, cfg *config.Config, botAPI *tgbotapi.BotAPI, rentBot *bot.RentBot, logger *slog.Logger) error {
	if cfg.WebhookURL != "" {
		params := tgbotapi.Params{"url": cfg.WebhookURL}
		params.AddNonEmpty("secret_token", cfg.WebhookSecret)
		if _, err := botAPI.MakeRequest("setWebhook", params); err != nil {
			return fmt.Errorf("set webhook: %w", err)
		}
	}

	webhook := bot.NewWebhook(rentBot, cfg.WebhookPath, cfg.WebhookSecret)
	errCh := make(chan error, 1)
	go func() {
		errCh <- webhook.Start(cfg.WebhookAddr)
	}()
	logger.Info("Бот успешно запущен!", "mode", "webhook", "addr", cfg.WebhookAddr)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return webhook.Shutdown(shutdownCtx)
}

func openStates(ctx context.Context, cfg *config.Config, db *storage.SQLStorage) (storage.KV, func(), error) {
	switch cfg.StateBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		kv := storage.NewRedisKV(client, "rentbot:state", cfg.StateTTL)
		return kv, func() { kv.Close() }, nil
	case "memory":
		return storage.NewMemoryStorage(), func() {}, nil
	}
	return db, func() {}, nil
}

// seedAdmins выдаёт права админа пользователям из ADMIN_IDS. Имя
// существующего пользователя не трогается.
func seedAdmins(ctx context.Context, users storage.UserRepository, ids []int64) error {
	for _, id := range ids {
		user, err := users.GetUserByTelegramID(ctx, id)
		if err != nil {
			return err
		}
		if user == nil {
			if _, err := users.CreateOrUpdateUser(ctx, &models.User{TelegramID: id}); err != nil {
				return err
			}
		}
		if err := users.SetAdmin(ctx, id, true); err != nil {
			return err
		}
	}
	return nil
}

func capacity(cfg *config.Config, kind models.Kind) int {
	switch kind {
	case models.KindWake:
		return cfg.WakeCapacity
	case models.KindSupboard:
		return cfg.SupCapacity
	case models.KindBathhouse:
		return cfg.BathhouseCapacity
	}
	return cfg.ReserveCapacity
}
