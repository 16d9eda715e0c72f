package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rentbot/internal/events"
	"rentbot/internal/models"
	"rentbot/internal/storage"
)

var (
	ErrIncomplete       = errors.New("бронь заполнена не полностью")
	ErrPast             = errors.New("нельзя забронировать прошедшее время")
	ErrCapacityExceeded = errors.New("на это время всё занято")
	ErrForbidden        = errors.New("недостаточно прав")
)

type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

type Options struct {
	Kind     models.Kind
	Capacity int
	Reserves storage.ReserveRepository
	Users    storage.UserRepository
	Admins   *AdminCache
	Notifier Notifier
	Events   Publisher
	Now      func() time.Time
	Logger   *slog.Logger
}

// ReservationService - бронирование одного типа оборудования.
type ReservationService struct {
	kind     models.Kind
	capacity int
	reserves storage.ReserveRepository
	users    storage.UserRepository
	admins   *AdminCache
	notifier Notifier
	events   Publisher
	now      func() time.Time
	logger   *slog.Logger
}

func NewReservationService(opts Options) *ReservationService {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = 1
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ReservationService{
		kind:     opts.Kind,
		capacity: capacity,
		reserves: opts.Reserves,
		users:    opts.Users,
		admins:   opts.Admins,
		notifier: opts.Notifier,
		events:   opts.Events,
		now:      now,
		logger:   logger.With("service", "reservations", "kind", string(opts.Kind)),
	}
}

func (s *ReservationService) Kind() models.Kind { return s.kind }
func (s *ReservationService) Capacity() int     { return s.capacity }
func (s *ReservationService) Now() time.Time    { return s.now() }

func (s *ReservationService) IsAdmin(telegramID int64) bool {
	return s.admins != nil && s.admins.IsAdmin(telegramID)
}

// Admit возвращает, сколько мест уже занято на время брони, и
// ErrCapacityExceeded, если бронь не помещается.
func (s *ReservationService) Admit(ctx context.Context, r *models.Reserve) (int, error) {
	if !r.IsComplete() {
		return 0, ErrIncomplete
	}
	taken, err := s.reserves.SumOverlappingQuantity(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("reservations: concurrent count: %w", err)
	}
	if taken+r.Count > s.capacity {
		return taken, ErrCapacityExceeded
	}
	return taken, nil
}

// Book сохраняет бронь после проверки заполненности и вместимости.
// Переданная бронь не меняется, возвращается сохранённая копия.
func (s *ReservationService) Book(ctx context.Context, r *models.Reserve) (*models.Reserve, error) {
	return s.Apply(ctx, r, nil)
}

// Apply работает как Book, но после записи вызывает commit. Если commit
// вернул ошибку, запись удаляется, уведомления и событие не уходят.
func (s *ReservationService) Apply(ctx context.Context, r *models.Reserve, commit func(ctx context.Context) error) (*models.Reserve, error) {
	if r == nil || r.User == nil {
		return nil, ErrIncomplete
	}
	candidate := r.Clone()
	candidate.Kind = s.kind

	owner, err := s.users.GetUserByTelegramID(ctx, candidate.User.TelegramID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, ErrIncomplete
	}
	candidate.User = owner

	if !candidate.ReadyToApply() {
		return nil, ErrIncomplete
	}
	if start, _ := candidate.Start(); start.Before(s.now()) {
		return nil, ErrPast
	}
	if _, err := s.Admit(ctx, candidate); err != nil {
		return nil, err
	}

	saved, err := s.reserves.AddReserve(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("reservations: add: %w", err)
	}
	if commit != nil {
		if err := commit(ctx); err != nil {
			if derr := s.reserves.DeleteReserve(ctx, s.kind, saved.ID); derr != nil {
				s.logger.Error("Не удалось откатить бронь", "reserve_id", saved.ID, "error", derr)
				return nil, errors.Join(err, derr)
			}
			return nil, err
		}
	}
	s.logger.Info("Новая бронь", "reserve_id", saved.ID, "telegram_id", owner.TelegramID)

	s.NotifyAdmins(ctx, "🆕 Новая бронь\n"+saved.Summary())
	s.publish(ctx, events.TypeApplied, saved, 0)
	return saved, nil
}

func (s *ReservationService) Get(ctx context.Context, id int64) (*models.Reserve, error) {
	return s.reserves.GetReserve(ctx, s.kind, id)
}

// Active - будущие брони: админ видит все, пользователь только свои.
func (s *ReservationService) Active(ctx context.Context, viewerID int64) ([]*models.Reserve, error) {
	if s.IsAdmin(viewerID) {
		return s.reserves.ListActive(ctx, s.kind, s.now())
	}
	return s.reserves.ListUserActive(ctx, s.kind, viewerID, s.now())
}

// Cancel отменяет бронь владельцем или админом. Отсутствующая бронь
// возвращается как nil без ошибки, повторная отмена ничего не меняет.
func (s *ReservationService) Cancel(ctx context.Context, id, actorID int64) (*models.Reserve, error) {
	r, err := s.reserves.GetReserve(ctx, s.kind, id)
	if err != nil || r == nil {
		return nil, err
	}
	if r.Canceled {
		return r, nil
	}
	owner := r.User != nil && r.User.TelegramID == actorID
	if !owner && !s.IsAdmin(actorID) {
		return nil, ErrForbidden
	}

	canceled, err := s.reserves.CancelReserve(ctx, s.kind, id, actorID)
	if err != nil || canceled == nil {
		return canceled, err
	}
	s.logger.Info("Бронь отменена", "reserve_id", id, "actor_id", actorID)

	text := "❌ Бронь отменена\n" + canceled.Summary()
	s.NotifyAdmins(ctx, text)
	if !owner && canceled.User != nil {
		s.notifyOne(ctx, canceled.User.TelegramID, text)
	}
	s.publish(ctx, events.TypeCanceled, canceled, actorID)
	return canceled, nil
}

// NotifyOwner - напоминание владельцу брони от админа.
func (s *ReservationService) NotifyOwner(ctx context.Context, id, actorID int64) (*models.Reserve, error) {
	if !s.IsAdmin(actorID) {
		return nil, ErrForbidden
	}
	r, err := s.reserves.GetReserve(ctx, s.kind, id)
	if err != nil || r == nil {
		return nil, err
	}
	if s.notifier == nil || r.User == nil {
		return r, nil
	}
	if err := s.notifier.Notify(ctx, r.User.TelegramID, "🔔 Напоминаем о брони\n"+r.Summary()); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *ReservationService) NotifyAdmins(ctx context.Context, text string) int {
	if s.admins == nil {
		return 0
	}
	return notifyAll(ctx, s.notifier, s.logger, s.admins.IDs(), text)
}

func (s *ReservationService) notifyOne(ctx context.Context, chatID int64, text string) {
	notifyAll(ctx, s.notifier, s.logger, []int64{chatID}, text)
}

func (s *ReservationService) publish(ctx context.Context, eventType string, r *models.Reserve, actorID int64) {
	if s.events == nil {
		return
	}
	// ошибка уже залогирована публикатором
	_ = s.events.Publish(ctx, events.FromReserve(eventType, r, actorID, s.now()))
}
