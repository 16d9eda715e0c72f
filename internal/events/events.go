// Package events публикует события броней в RabbitMQ. Ошибки
// логируются и возвращаются, вызывающий может их не обрабатывать.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"rentbot/internal/models"
)

const (
	TypeApplied  = "reserve.applied"
	TypeCanceled = "reserve.canceled"

	DefaultQueue = "booking.events"
)

type Event struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Kind       string `json:"kind"`
	ReserveID  int64  `json:"reserve_id"`
	TelegramID int64  `json:"telegram_id"`
	StartsAt   string `json:"starts_at"`
	EndsAt     string `json:"ends_at"`
	Count      int    `json:"count"`
	ActorID    int64  `json:"actor_id,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// FromReserve собирает событие по сохранённой брони.
func FromReserve(eventType string, r *models.Reserve, actorID int64, now time.Time) Event {
	ev := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Kind:       string(r.Kind),
		ReserveID:  r.ID,
		Count:      r.Count,
		ActorID:    actorID,
		OccurredAt: now.UTC().Format(time.RFC3339),
	}
	if r.User != nil {
		ev.TelegramID = r.User.TelegramID
	}
	if start, ok := r.Start(); ok {
		end, _ := r.End()
		ev.StartsAt = start.UTC().Format(time.RFC3339)
		ev.EndsAt = end.UTC().Format(time.RFC3339)
	}
	return ev
}

// Publisher открывает новое соединение на каждую публикацию.
type Publisher struct {
	url    string
	queue  string
	logger *slog.Logger
}

func NewPublisher(url, queue string, logger *slog.Logger) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{url: url, queue: queue, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if err := p.publish(ctx, ev); err != nil {
		p.logger.Warn("публикация события не удалась", "type", ev.Type, "reserve_id", ev.ReserveID, "error", err)
		return err
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, ev Event) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: queue declare: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal: %w", err)
	}

	return ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         ev.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
