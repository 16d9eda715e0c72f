package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"rentbot/internal/models"
	"rentbot/internal/storage"
)

type record struct {
	StateType string          `json:"state_type"`
	State     string          `json:"state"`
	Payload   *models.Reserve `json:"payload,omitempty"`
}

// Key собирает ключ записи: chat-user или chat-user-message.
func Key(chatID, userID int64, messageID int) string {
	key := strconv.FormatInt(chatID, 10) + "-" + strconv.FormatInt(userID, 10)
	if messageID != 0 {
		key += "-" + strconv.Itoa(messageID)
	}
	return key
}

// Manager - состояние одного диалога. Используется в пределах обработки
// одного входящего события, не потокобезопасен.
type Manager struct {
	store     storage.KV
	chatID    int64
	userID    int64
	messageID int

	loaded    bool
	stateType string
	state     string
	data      *models.Reserve
}

func New(store storage.KV, chatID, userID int64, messageID int) *Manager {
	return &Manager{store: store, chatID: chatID, userID: userID, messageID: messageID}
}

func (m *Manager) Key() string { return Key(m.chatID, m.userID, m.messageID) }
func (m *Manager) ChatID() int64 { return m.chatID }
func (m *Manager) UserID() int64 { return m.userID }
func (m *Manager) MessageID() int { return m.messageID }
func (m *Manager) Type() string { return m.stateType }
func (m *Manager) State() string { return m.state }
func (m *Manager) Data() *models.Reserve { return m.data }

// Resolve читает запись из хранилища. Нет записи - пустые строки
// и nil вместо данных.
func (m *Manager) Resolve(ctx context.Context) (string, string, *models.Reserve, error) {
	raw, err := m.store.Get(ctx, m.Key())
	if err != nil {
		return "", "", nil, fmt.Errorf("state: get %s: %w", m.Key(), err)
	}

	m.loaded = true
	m.stateType, m.state, m.data = "", "", nil
	if raw == nil {
		return "", "", nil, nil
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", "", nil, fmt.Errorf("state: decode %s: %w", m.Key(), err)
	}
	m.stateType, m.state, m.data = rec.StateType, rec.State, rec.Payload
	return rec.StateType, rec.State, rec.Payload.Clone(), nil
}

// Change - пустые поля оставляют сохранённое значение.
type Change struct {
	State     string
	Type      string
	MessageID int
	Payload   *models.Reserve
}

// SetState сохраняет запись целиком. Если передан MessageID, запись
// переезжает на новый ключ, а старая удаляется.
func (m *Manager) SetState(ctx context.Context, c Change) error {
	if !m.loaded {
		if _, _, _, err := m.Resolve(ctx); err != nil {
			return err
		}
	}

	if c.State != "" {
		m.state = c.State
	}
	if c.Type != "" {
		m.stateType = c.Type
	}
	if c.Payload != nil {
		m.data = c.Payload.Clone()
	}
	if c.MessageID != 0 && c.MessageID != m.messageID {
		if err := m.store.Delete(ctx, m.Key()); err != nil {
			return fmt.Errorf("state: move %s: %w", m.Key(), err)
		}
		m.messageID = c.MessageID
	}

	raw, err := json.Marshal(record{StateType: m.stateType, State: m.state, Payload: m.data})
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", m.Key(), err)
	}
	if err := m.store.Put(ctx, m.Key(), raw); err != nil {
		return fmt.Errorf("state: put %s: %w", m.Key(), err)
	}
	return nil
}

// SetData меняет данные только в памяти, до следующего SetState.
func (m *Manager) SetData(r *models.Reserve) {
	m.data = r.Clone()
}

// Finish удаляет запись. Повторный вызов не ошибка.
func (m *Manager) Finish(ctx context.Context) error {
	if err := m.store.Delete(ctx, m.Key()); err != nil {
		return fmt.Errorf("state: delete %s: %w", m.Key(), err)
	}
	m.loaded = true
	m.stateType, m.state, m.data = "", "", nil
	return nil
}
