package storage

import (
	"context"
	"database/sql"
	"errors"

	"rentbot/internal/models"
)

const userColumns = `id, telegram_id, name, phone, is_admin`

// CreateOrUpdateUser обновляет имя, телефон и права админа не трогает.
func (s *SQLStorage) CreateOrUpdateUser(ctx context.Context, user *models.User) (*models.User, error) {
	_, err := s.db.ExecContext(ctx, s.q(`
	INSERT INTO users (telegram_id, name)
	VALUES (?, ?)
	ON CONFLICT(telegram_id) DO UPDATE SET
		name = excluded.name`),
		user.TelegramID, user.Name)
	if err != nil {
		return nil, err
	}
	return s.GetUserByTelegramID(ctx, user.TelegramID)
}

func (s *SQLStorage) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	user := &models.User{}
	err := s.db.GetContext(ctx, user, s.q(`SELECT `+userColumns+` FROM users WHERE telegram_id = ?`), telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *SQLStorage) SetPhone(ctx context.Context, telegramID int64, phone string) error {
	return s.updateUser(ctx, `UPDATE users SET phone = ? WHERE telegram_id = ?`, phone, telegramID)
}

func (s *SQLStorage) SetAdmin(ctx context.Context, telegramID int64, admin bool) error {
	return s.updateUser(ctx, `UPDATE users SET is_admin = ? WHERE telegram_id = ?`, admin, telegramID)
}

func (s *SQLStorage) updateUser(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStorage) ListAdmins(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	err := s.db.SelectContext(ctx, &users, s.q(`SELECT `+userColumns+` FROM users WHERE is_admin = ? ORDER BY id`), true)
	if err != nil {
		return nil, err
	}
	return users, nil
}
