package storage

import (
	"context"
	"errors"
	"time"

	"rentbot/internal/models"
)

var ErrNotFound = errors.New("storage: not found")

// Record - одна запись ключ-значение.
type Record struct {
	Key   string
	Value []byte
}

// KV - хранилище произвольных записей по ключу.
// Get возвращает nil, nil если ключа нет.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]Record, error)
}

type UserRepository interface {
	CreateOrUpdateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	SetPhone(ctx context.Context, telegramID int64, phone string) error
	SetAdmin(ctx context.Context, telegramID int64, admin bool) error
	ListAdmins(ctx context.Context) ([]*models.User, error)
}

// ReserveRepository хранит брони всех типов. Промах при поиске - nil
// без ошибки. Запросы пересечений пропускают отменённые брони и
// строку самого кандидата, если он уже сохранён.
type ReserveRepository interface {
	AddReserve(ctx context.Context, r *models.Reserve) (*models.Reserve, error)
	GetReserve(ctx context.Context, kind models.Kind, id int64) (*models.Reserve, error)
	CancelReserve(ctx context.Context, kind models.Kind, id, actorID int64) (*models.Reserve, error)
	// DeleteReserve убирает строку целиком. Только для отката
	// несостоявшегося сохранения, отмена делается через CancelReserve.
	DeleteReserve(ctx context.Context, kind models.Kind, id int64) error
	ListActive(ctx context.Context, kind models.Kind, now time.Time) ([]*models.Reserve, error)
	ListUserActive(ctx context.Context, kind models.Kind, telegramID int64, now time.Time) ([]*models.Reserve, error)
	ListOverlapping(ctx context.Context, candidate *models.Reserve) ([]*models.Reserve, error)
	SumOverlappingQuantity(ctx context.Context, candidate *models.Reserve) (int, error)
}

var errIncomplete = errors.New("storage: reserve has no start or duration")

func bounds(r *models.Reserve) (int64, int64, error) {
	if !r.IsComplete() {
		return 0, 0, errIncomplete
	}
	start, _ := r.Start()
	end, _ := r.End()
	return start.Unix(), end.Unix(), nil
}
