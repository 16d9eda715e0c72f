package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rentbot/internal/models"
)

type reserveRow struct {
	ID            int64  `db:"id"`
	Kind          string `db:"kind"`
	UserID        int64  `db:"user_id"`
	StartAt       int64  `db:"start_at"`
	EndAt         int64  `db:"end_at"`
	SetKind       string `db:"set_kind"`
	SetCount      int    `db:"set_count"`
	Quantity      int    `db:"quantity"`
	Board         int    `db:"board"`
	Hydro         int    `db:"hydro"`
	Canceled      bool   `db:"canceled"`
	CancelActorID int64  `db:"cancel_actor_id"`
	TelegramID    int64  `db:"telegram_id"`
	Name          string `db:"name"`
	Phone         string `db:"phone"`
	IsAdmin       bool   `db:"is_admin"`
}

const selectReserves = `
	SELECT r.id, r.kind, r.user_id, r.start_at, r.end_at, r.set_kind, r.set_count,
		r.quantity, r.board, r.hydro, r.canceled, r.cancel_actor_id,
		u.telegram_id, u.name, u.phone, u.is_admin
	FROM reserves r
	JOIN users u ON u.id = r.user_id`

// сравнение с кандидатом: совпадение начала, либо начало другой брони
// внутри кандидата, либо начало кандидата внутри другой брони
const overlapClause = `
	r.kind = ? AND r.canceled = ? AND r.id <> ?
	AND (r.start_at = ?
		OR (? < r.start_at AND ? > r.start_at)
		OR (? > r.start_at AND ? < r.end_at))`

func (s *SQLStorage) toReserve(row reserveRow) *models.Reserve {
	r := &models.Reserve{
		ID:   row.ID,
		Kind: models.Kind(row.Kind),
		User: &models.User{
			ID:         row.UserID,
			TelegramID: row.TelegramID,
			Name:       row.Name,
			Phone:      row.Phone,
			IsAdmin:    row.IsAdmin,
		},
		SetKind:       models.SetKind(row.SetKind),
		SetCount:      row.SetCount,
		Count:         row.Quantity,
		Canceled:      row.Canceled,
		CancelActorID: row.CancelActorID,
	}
	r.SetStart(time.Unix(row.StartAt, 0).In(s.loc))
	if r.Kind == models.KindWake {
		r.Wake = &models.WakeGear{Board: row.Board, Hydro: row.Hydro}
	}
	return r
}

func (s *SQLStorage) toReserves(rows []reserveRow) []*models.Reserve {
	reserves := make([]*models.Reserve, 0, len(rows))
	for _, row := range rows {
		reserves = append(reserves, s.toReserve(row))
	}
	return reserves
}

// AddReserve сохраняет копию брони и возвращает её с присвоенным ID.
func (s *SQLStorage) AddReserve(ctx context.Context, r *models.Reserve) (*models.Reserve, error) {
	start, end, err := bounds(r)
	if err != nil {
		return nil, err
	}
	if r.User == nil || r.User.ID == 0 {
		return nil, fmt.Errorf("storage: reserve owner is not persisted")
	}
	var board, hydro int
	if r.Wake != nil {
		board, hydro = r.Wake.Board, r.Wake.Hydro
	}

	var id int64
	err = s.db.QueryRowxContext(ctx, s.q(`
	INSERT INTO reserves (kind, user_id, start_at, end_at, set_kind, set_count, quantity, board, hydro, canceled)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id`),
		string(r.Kind), r.User.ID, start, end, string(r.SetKind), r.SetCount, r.Count, board, hydro, false).Scan(&id)
	if err != nil {
		return nil, err
	}

	saved := r.Clone()
	saved.ID = id
	saved.Canceled = false
	return saved, nil
}

func (s *SQLStorage) GetReserve(ctx context.Context, kind models.Kind, id int64) (*models.Reserve, error) {
	var row reserveRow
	err := s.db.GetContext(ctx, &row, s.q(selectReserves+` WHERE r.kind = ? AND r.id = ?`), string(kind), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.toReserve(row), nil
}

// CancelReserve помечает бронь отменённой, строка остаётся в таблице.
func (s *SQLStorage) CancelReserve(ctx context.Context, kind models.Kind, id, actorID int64) (*models.Reserve, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var row reserveRow
	err = tx.GetContext(ctx, &row, tx.Rebind(selectReserves+` WHERE r.kind = ? AND r.id = ?`), string(kind), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE reserves SET canceled = ?, cancel_actor_id = ? WHERE id = ?`), true, actorID, id)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}

	row.Canceled = true
	row.CancelActorID = actorID
	return s.toReserve(row), nil
}

func (s *SQLStorage) DeleteReserve(ctx context.Context, kind models.Kind, id int64) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM reserves WHERE kind = ? AND id = ?`), string(kind), id)
	return err
}

func (s *SQLStorage) ListActive(ctx context.Context, kind models.Kind, now time.Time) ([]*models.Reserve, error) {
	var rows []reserveRow
	err := s.db.SelectContext(ctx, &rows, s.q(selectReserves+`
	WHERE r.kind = ? AND r.canceled = ? AND r.start_at >= ?
	ORDER BY r.start_at`), string(kind), false, now.Unix())
	if err != nil {
		return nil, err
	}
	return s.toReserves(rows), nil
}

func (s *SQLStorage) ListUserActive(ctx context.Context, kind models.Kind, telegramID int64, now time.Time) ([]*models.Reserve, error) {
	var rows []reserveRow
	err := s.db.SelectContext(ctx, &rows, s.q(selectReserves+`
	WHERE r.kind = ? AND r.canceled = ? AND r.start_at >= ? AND u.telegram_id = ?
	ORDER BY r.start_at`), string(kind), false, now.Unix(), telegramID)
	if err != nil {
		return nil, err
	}
	return s.toReserves(rows), nil
}

func overlapArgs(c *models.Reserve) ([]any, error) {
	start, end, err := bounds(c)
	if err != nil {
		return nil, err
	}
	return []any{string(c.Kind), false, c.ID, start, start, end, start, start}, nil
}

func (s *SQLStorage) ListOverlapping(ctx context.Context, candidate *models.Reserve) ([]*models.Reserve, error) {
	args, err := overlapArgs(candidate)
	if err != nil {
		return nil, err
	}
	var rows []reserveRow
	err = s.db.SelectContext(ctx, &rows, s.q(selectReserves+` WHERE `+overlapClause+` ORDER BY r.start_at`), args...)
	if err != nil {
		return nil, err
	}
	return s.toReserves(rows), nil
}

func (s *SQLStorage) SumOverlappingQuantity(ctx context.Context, candidate *models.Reserve) (int, error) {
	args, err := overlapArgs(candidate)
	if err != nil {
		return 0, err
	}
	var total int
	err = s.db.GetContext(ctx, &total, s.q(`SELECT COALESCE(SUM(r.quantity), 0) FROM reserves r WHERE `+overlapClause), args...)
	if err != nil {
		return 0, err
	}
	return total, nil
}
