package services

import (
	"context"
	"sync"

	"rentbot/internal/storage"
)

// AdminCache держит список админов. Обновляется только явным Refresh.
type AdminCache struct {
	users storage.UserRepository

	mu  sync.RWMutex
	ids []int64
}

func NewAdminCache(ctx context.Context, users storage.UserRepository) (*AdminCache, error) {
	c := &AdminCache{users: users}
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *AdminCache) Refresh(ctx context.Context) error {
	admins, err := c.users.ListAdmins(ctx)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(admins))
	for _, a := range admins {
		ids = append(ids, a.TelegramID)
	}

	c.mu.Lock()
	c.ids = ids
	c.mu.Unlock()
	return nil
}

func (c *AdminCache) IsAdmin(telegramID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, id := range c.ids {
		if id == telegramID {
			return true
		}
	}
	return false
}

func (c *AdminCache) IDs() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]int64(nil), c.ids...)
}

// Grant выдаёт права админа и сразу обновляет кэш.
func (c *AdminCache) Grant(ctx context.Context, telegramID int64) error {
	if err := c.users.SetAdmin(ctx, telegramID, true); err != nil {
		return err
	}
	return c.Refresh(ctx)
}
