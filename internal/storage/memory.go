package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"rentbot/internal/models"
)

// MemoryStorage - хранилище в памяти процесса, реализует KV и оба репозитория.
type MemoryStorage struct {
	mu       sync.RWMutex
	records  map[string][]byte
	users    map[int64]*models.User // по telegram_id
	reserves map[int64]*models.Reserve
	userSeq  int64
	seq      int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records:  make(map[string][]byte),
		users:    make(map[int64]*models.User),
		reserves: make(map[int64]*models.Reserve),
	}
}

// --- KV ---

func (s *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), value...), nil
}

func (s *MemoryStorage) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}

func (s *MemoryStorage) List(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]Record, 0, len(s.records))
	for key, value := range s.records {
		records = append(records, Record{Key: key, Value: append([]byte(nil), value...)})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
	return records, nil
}

// --- UserRepository ---

func (s *MemoryStorage) CreateOrUpdateUser(_ context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[user.TelegramID]; ok {
		existing.Name = user.Name
		return cloneUser(existing), nil
	}
	s.userSeq++
	stored := &models.User{ID: s.userSeq, TelegramID: user.TelegramID, Name: user.Name}
	s.users[user.TelegramID] = stored
	return cloneUser(stored), nil
}

func (s *MemoryStorage) GetUserByTelegramID(_ context.Context, telegramID int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[telegramID]
	if !ok {
		return nil, nil
	}
	return cloneUser(user), nil
}

func (s *MemoryStorage) SetPhone(_ context.Context, telegramID int64, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[telegramID]
	if !ok {
		return ErrNotFound
	}
	user.Phone = phone
	return nil
}

func (s *MemoryStorage) SetAdmin(_ context.Context, telegramID int64, admin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[telegramID]
	if !ok {
		return ErrNotFound
	}
	user.IsAdmin = admin
	return nil
}

func (s *MemoryStorage) ListAdmins(_ context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var admins []*models.User
	for _, user := range s.users {
		if user.IsAdmin {
			admins = append(admins, cloneUser(user))
		}
	}
	sort.Slice(admins, func(i, j int) bool { return admins[i].ID < admins[j].ID })
	return admins, nil
}

// --- ReserveRepository ---

func (s *MemoryStorage) AddReserve(_ context.Context, r *models.Reserve) (*models.Reserve, error) {
	if _, _, err := bounds(r); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	saved := r.Clone()
	saved.ID = s.seq
	saved.Canceled = false
	s.reserves[saved.ID] = saved
	return s.withOwnerLocked(saved), nil
}

func (s *MemoryStorage) GetReserve(_ context.Context, kind models.Kind, id int64) (*models.Reserve, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reserves[id]
	if !ok || r.Kind != kind {
		return nil, nil
	}
	return s.withOwnerLocked(r), nil
}

func (s *MemoryStorage) CancelReserve(_ context.Context, kind models.Kind, id, actorID int64) (*models.Reserve, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reserves[id]
	if !ok || r.Kind != kind {
		return nil, nil
	}
	r.Canceled = true
	r.CancelActorID = actorID
	return s.withOwnerLocked(r), nil
}

func (s *MemoryStorage) DeleteReserve(_ context.Context, kind models.Kind, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.reserves[id]; ok && r.Kind == kind {
		delete(s.reserves, id)
	}
	return nil
}

func (s *MemoryStorage) ListActive(_ context.Context, kind models.Kind, now time.Time) ([]*models.Reserve, error) {
	return s.filter(func(r *models.Reserve) bool {
		start, _ := r.Start()
		return r.Kind == kind && !r.Canceled && !start.Before(now)
	}), nil
}

func (s *MemoryStorage) ListUserActive(_ context.Context, kind models.Kind, telegramID int64, now time.Time) ([]*models.Reserve, error) {
	return s.filter(func(r *models.Reserve) bool {
		start, _ := r.Start()
		return r.Kind == kind && !r.Canceled && !start.Before(now) &&
			r.User != nil && r.User.TelegramID == telegramID
	}), nil
}

func (s *MemoryStorage) ListOverlapping(_ context.Context, candidate *models.Reserve) ([]*models.Reserve, error) {
	if _, _, err := bounds(candidate); err != nil {
		return nil, err
	}
	return s.filter(func(r *models.Reserve) bool {
		return concurrentWith(candidate, r)
	}), nil
}

func (s *MemoryStorage) SumOverlappingQuantity(ctx context.Context, candidate *models.Reserve) (int, error) {
	overlapping, err := s.ListOverlapping(ctx, candidate)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, r := range overlapping {
		total += r.Count
	}
	return total, nil
}

func concurrentWith(candidate, r *models.Reserve) bool {
	if r.Kind != candidate.Kind || r.Canceled {
		return false
	}
	if candidate.ID != 0 && r.ID == candidate.ID {
		return false
	}
	return candidate.Overlaps(r)
}

// filter возвращает копии подходящих броней, отсортированные по началу.
func (s *MemoryStorage) filter(match func(r *models.Reserve) bool) []*models.Reserve {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Reserve
	for _, r := range s.reserves {
		if match(r) {
			result = append(result, s.withOwnerLocked(r))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, _ := result[i].Start()
		b, _ := result[j].Start()
		if a.Equal(b) {
			return result[i].ID < result[j].ID
		}
		return a.Before(b)
	})
	return result
}

// withOwnerLocked подставляет актуальные данные владельца, как JOIN в sql.
func (s *MemoryStorage) withOwnerLocked(r *models.Reserve) *models.Reserve {
	c := r.Clone()
	if c.User != nil {
		if user, ok := s.users[c.User.TelegramID]; ok {
			c.User = cloneUser(user)
		}
	}
	return c
}

func cloneUser(u *models.User) *models.User {
	c := *u
	return &c
}
