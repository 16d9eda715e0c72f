package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"rentbot/internal/dispatch"
	"rentbot/internal/logging"
	"rentbot/internal/models"
	"rentbot/internal/services"
	"rentbot/internal/state"
	"rentbot/internal/storage"
)

// StateTypeUser - диалоги, не относящиеся к конкретному типу брони.
const StateTypeUser = "user"

var ErrForeignContact = errors.New("контакт другого пользователя")

// Commands обслуживает /start, /phone и /admin.
type Commands struct {
	users  storage.UserRepository
	admins *services.AdminCache
	sender Sender
	kinds  []models.Kind
}

func NewCommands(users storage.UserRepository, admins *services.AdminCache, sender Sender, kinds []models.Kind) *Commands {
	return &Commands{users: users, admins: admins, sender: sender, kinds: kinds}
}

func (c *Commands) Register(r *dispatch.Router) {
	r.Message(dispatch.Always, dispatch.Command("start"), c.start)
	r.Message(dispatch.Always, dispatch.Command("phone"), c.askPhone)
	r.Message(dispatch.Always, dispatch.Command("admin"), c.grantAdmin)
	r.Message(dispatch.On(StateTypeUser, StatePhone), dispatch.Command("cancel"), c.cancelPhone)
	r.Message(dispatch.On(StateTypeUser, StatePhone), plainText, c.phoneInput)
	r.Contact(dispatch.On(StateTypeUser, StatePhone), nil, c.phoneInput)
}

func (c *Commands) reply(ctx context.Context, chatID int64, resp Response) error {
	_, err := c.sender.Send(ctx, chatID, resp)
	return err
}

func (c *Commands) start(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	var sb strings.Builder
	sb.WriteString("👋 *Добро пожаловать!*\n\nВыберите, что забронировать:\n")
	for _, k := range c.kinds {
		fmt.Fprintf(&sb, "/%s - %s\n", k, k.Title())
	}
	sb.WriteString("\n/phone - указать телефон")
	return c.reply(ctx, ev.ChatID, Response{Text: sb.String(), ParseMode: "Markdown"})
}

func (c *Commands) askPhone(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	if err := c.reply(ctx, ev.ChatID, phonePrompt()); err != nil {
		return err
	}
	return st.SetState(ctx, state.Change{Type: StateTypeUser, State: StatePhone})
}

func (c *Commands) cancelPhone(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	if err := st.Finish(ctx); err != nil {
		return err
	}
	return c.reply(ctx, ev.ChatID, Response{Text: "Ввод телефона отменён", RemoveKeyboard: true})
}

func (c *Commands) phoneInput(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	phone, err := phoneFromEvent(ev)
	if err != nil {
		return c.reply(ctx, ev.ChatID, invalidPhone(err))
	}
	if err := c.users.SetPhone(ctx, ev.UserID, phone); err != nil {
		return fmt.Errorf("booking: save phone: %w", err)
	}
	if err := st.Finish(ctx); err != nil {
		return err
	}
	logging.FromContext(ctx, nil).Info("Телефон сохранён", "telegram_id", ev.UserID)
	return c.reply(ctx, ev.ChatID, Response{Text: "✅ Телефон сохранён: " + phone, RemoveKeyboard: true})
}

func (c *Commands) grantAdmin(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	if !c.admins.IsAdmin(ev.UserID) {
		return c.reply(ctx, ev.ChatID, Response{Text: "⛔ Недостаточно прав"})
	}

	fields := strings.Fields(ev.Text)
	if len(fields) != 2 {
		return c.reply(ctx, ev.ChatID, Response{Text: "Использование: /admin <telegram id>"})
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return c.reply(ctx, ev.ChatID, Response{Text: "❌ Неверный telegram id"})
	}

	err = c.admins.Grant(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return c.reply(ctx, ev.ChatID, Response{Text: "Пользователь не найден. Он должен сначала написать боту."})
	}
	if err != nil {
		return fmt.Errorf("booking: grant admin: %w", err)
	}
	logging.FromContext(ctx, nil).Info("Выданы права админа", "telegram_id", id, "actor_id", ev.UserID)
	return c.reply(ctx, ev.ChatID, Response{Text: fmt.Sprintf("✅ Пользователь %d теперь администратор", id)})
}

// phoneFromEvent берёт номер из контакта или текста сообщения.
func phoneFromEvent(ev *dispatch.Event) (string, error) {
	if ev.Contact != nil {
		if ev.Contact.UserID != 0 && ev.Contact.UserID != ev.UserID {
			return "", ErrForeignContact
		}
		return NormalizePhone(ev.Contact.PhoneNumber)
	}
	return NormalizePhone(ev.Text)
}

func invalidPhone(err error) Response {
	resp := phonePrompt()
	resp.Text = "❌ Неверный формат!\nВведите номер телефона\nПример: +79991234567"
	if errors.Is(err, ErrForeignContact) {
		resp.Text = "❌ Отправьте свой контакт"
	}
	return resp
}
