package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BotToken string
	Debug    bool
	LogLevel string
	Timezone *time.Location
	AdminIDs []int64

	DBDriver      string // sqlite или postgres
	DBDSN         string
	StateBackend  string // sql, redis или memory
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	StateTTL      time.Duration

	AMQPURL       string // пусто - события не публикуются
	AMQPQueue     string
	WebhookAddr   string // пусто - long polling
	WebhookPath   string
	WebhookURL    string // публичный адрес для setWebhook
	WebhookSecret string

	WakeCapacity      int
	SupCapacity       int
	BathhouseCapacity int
	ReserveCapacity   int
	OpenHour          int // 8 (8:00)
	CloseHour         int // 22 (22:00)
	BookDays          int
}

// Load читает .env (если есть) и переменные окружения. Все ошибки
// собираются в одну.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	l := &loader{}
	cfg := &Config{
		BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		Debug:    l.getEnvAsBool("BOT_DEBUG", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Timezone: l.getEnvAsLocation("TZ_NAME", "Europe/Moscow"),
		AdminIDs: l.getEnvAsInt64List("ADMIN_IDS"),

		DBDriver:      getEnv("DB_DRIVER", "sqlite"),
		DBDSN:         getEnv("DB_DSN", "rentbot.db"),
		StateBackend:  getEnv("STATE_BACKEND", "sql"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       l.getEnvAsInt("REDIS_DB", 0),
		StateTTL:      l.getEnvAsDuration("STATE_TTL", 0),

		AMQPURL:       getEnv("AMQP_URL", ""),
		AMQPQueue:     getEnv("AMQP_QUEUE", "booking.events"),
		WebhookAddr:   getEnv("WEBHOOK_ADDR", ""),
		WebhookPath:   getEnv("WEBHOOK_PATH", "/telegram"),
		WebhookURL:    getEnv("WEBHOOK_URL", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),

		WakeCapacity:      l.getEnvAsInt("WAKE_CAPACITY", 1),
		SupCapacity:       l.getEnvAsInt("SUP_CAPACITY", 6),
		BathhouseCapacity: l.getEnvAsInt("BATHHOUSE_CAPACITY", 1),
		ReserveCapacity:   l.getEnvAsInt("RESERVE_CAPACITY", 1),
		OpenHour:          l.getEnvAsInt("OPEN_HOUR", 8),
		CloseHour:         l.getEnvAsInt("CLOSE_HOUR", 22),
		BookDays:          l.getEnvAsInt("BOOK_DAYS", 7),
	}

	if cfg.BotToken == "" {
		l.missing = append(l.missing, "TELEGRAM_BOT_TOKEN")
	}
	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		l.invalid = append(l.invalid, "DB_DRIVER")
	}
	switch cfg.StateBackend {
	case "sql", "redis", "memory":
	default:
		l.invalid = append(l.invalid, "STATE_BACKEND")
	}
	if cfg.OpenHour < 0 || cfg.CloseHour > 24 || cfg.OpenHour >= cfg.CloseHour {
		l.invalid = append(l.invalid, "OPEN_HOUR/CLOSE_HOUR")
	}
	for key, v := range map[string]int{
		"WAKE_CAPACITY":      cfg.WakeCapacity,
		"SUP_CAPACITY":       cfg.SupCapacity,
		"BATHHOUSE_CAPACITY": cfg.BathhouseCapacity,
		"RESERVE_CAPACITY":   cfg.ReserveCapacity,
		"BOOK_DAYS":          cfg.BookDays,
	} {
		if v < 1 {
			l.invalid = append(l.invalid, key)
		}
	}

	if err := l.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

type loader struct {
	missing []string
	invalid []string
}

func (l *loader) err() error {
	var parts []string
	if len(l.missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(l.missing, ", "))
	}
	if len(l.invalid) > 0 {
		sort.Strings(l.invalid)
		parts = append(parts, "invalid: "+strings.Join(l.invalid, ", "))
	}
	if len(parts) == 0 {
		return nil
	}
	return fmt.Errorf("config: %s", strings.Join(parts, "; "))
}

func (l *loader) getEnvAsInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	num, err := strconv.Atoi(value)
	if err != nil {
		l.invalid = append(l.invalid, key)
		return defaultValue
	}
	return num
}

func (l *loader) getEnvAsBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		l.invalid = append(l.invalid, key)
		return defaultValue
	}
	return b
}

func (l *loader) getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		l.invalid = append(l.invalid, key)
		return defaultValue
	}
	return d
}

func (l *loader) getEnvAsLocation(key, defaultValue string) *time.Location {
	loc, err := time.LoadLocation(getEnv(key, defaultValue))
	if err != nil {
		l.invalid = append(l.invalid, key)
		return time.UTC
	}
	return loc
}

// getEnvAsInt64List читает список через запятую, пустые элементы пропускаются.
func (l *loader) getEnvAsInt64List(key string) []int64 {
	var ids []int64
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			l.invalid = append(l.invalid, key)
			return nil
		}
		ids = append(ids, id)
	}
	return ids
}
