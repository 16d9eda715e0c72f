// Package booking - меню бронирования одного типа поверх роутера
// с фильтром по состоянию.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rentbot/internal/dispatch"
	"rentbot/internal/logging"
	"rentbot/internal/models"
	"rentbot/internal/services"
	"rentbot/internal/state"
	"rentbot/internal/storage"
)

const (
	StateMain    = "main"
	StateBook    = "book"
	StateDate    = "date"
	StateHour    = "hour"
	StateMinute  = "minute"
	StateCount   = "count"
	StateSet     = "set"
	StateSetHour = "set_hour"
	StatePhone   = "phone"
	StateList    = "list"
	StateDetails = "details"
)

type Options struct {
	Service   *services.ReservationService
	Users     storage.UserRepository
	States    storage.KV
	Sender    Sender
	OpenHour  int
	CloseHour int
	BookDays  int
	Location  *time.Location
}

// Processor ведёт диалог бронирования одного типа. Тип состояния
// совпадает с типом брони.
type Processor struct {
	kind      models.Kind
	service   *services.ReservationService
	users     storage.UserRepository
	states    storage.KV
	sender    Sender
	openHour  int
	closeHour int
	bookDays  int
	loc       *time.Location
}

func NewProcessor(opts Options) *Processor {
	p := &Processor{
		kind:      opts.Service.Kind(),
		service:   opts.Service,
		users:     opts.Users,
		states:    opts.States,
		sender:    opts.Sender,
		openHour:  opts.OpenHour,
		closeHour: opts.CloseHour,
		bookDays:  opts.BookDays,
		loc:       opts.Location,
	}
	if p.closeHour <= p.openHour {
		p.openHour, p.closeHour = 8, 22
	}
	if p.bookDays <= 0 {
		p.bookDays = 7
	}
	if p.loc == nil {
		p.loc = time.Local
	}
	return p
}

func (p *Processor) Kind() models.Kind { return p.kind }

// Register добавляет маршруты в роутер. Порядок важен: выигрывает
// первый совпавший маршрут.
func (p *Processor) Register(r *dispatch.Router) {
	t := string(p.kind)
	on := func(st string) dispatch.Filter { return dispatch.On(t, st) }

	r.Message(dispatch.Always, dispatch.Command(t), p.open)
	r.Message(on(StatePhone), dispatch.Command("cancel"), p.phoneCancel)
	r.Message(on(StatePhone), plainText, p.phoneInput)
	r.Contact(on(StatePhone), nil, p.phoneInput)

	r.Callback(on(StateMain), dispatch.Data(dataBook), p.showBook)
	r.Callback(on(StateMain), dispatch.Data(dataList), p.showList)
	r.Callback(on(StateMain), dispatch.Data(dataBack), p.close)

	r.Callback(on(StateBook), dispatch.Data(dataDate), p.showDates)
	r.Callback(on(StateBook), dispatch.Data(dataHour), p.showHours)
	if p.kind != models.KindBathhouse {
		r.Callback(on(StateBook), dispatch.Data(dataSet), p.showMenu(StateSet, p.setMenu))
	}
	r.Callback(on(StateBook), dispatch.Data(dataSetHour), p.showMenu(StateSetHour, p.setHourMenu))
	if p.kind.CountBearing() {
		r.Callback(on(StateBook), dispatch.Data(dataCount), p.showMenu(StateCount, p.countMenu))
	}
	if p.kind == models.KindWake {
		r.Callback(on(StateBook), dispatch.Data(dataBoard), p.toggleGear(func(w *models.WakeGear) *int { return &w.Board }))
		r.Callback(on(StateBook), dispatch.Data(dataHydro), p.toggleGear(func(w *models.WakeGear) *int { return &w.Hydro }))
	}
	r.Callback(on(StateBook), dispatch.Data(dataPhone), p.askPhone)
	r.Callback(on(StateBook), dispatch.Data(dataApply), p.apply)
	r.Callback(on(StateBook), dispatch.Data(dataBack), p.showMain)

	r.Callback(on(StateDate), dispatch.DataPrefix(dataDate), p.pickDate)
	r.Callback(on(StateHour), dispatch.DataPrefix(dataHour), p.pickHour)
	r.Callback(on(StateHour), dispatch.Data(dataBusy), p.busy)
	r.Callback(on(StateMinute), dispatch.DataPrefix(dataMinute), p.pickMinute)
	r.Callback(on(StateMinute), dispatch.Data(dataBack), p.showHours)
	r.Callback(on(StateCount), dispatch.DataPrefix(dataCount), p.pickNumber(dataCount, maxCount, func(res *models.Reserve, n int) {
		res.Count = n
	}))
	r.Callback(on(StateSet), dispatch.DataPrefix(dataSet), p.pickNumber(dataSet, maxSets, func(res *models.Reserve, n int) {
		res.SetKind, res.SetCount = models.SetKindSet, n
	}))
	r.Callback(on(StateSetHour), dispatch.DataPrefix(dataSetHour), p.pickNumber(dataSetHour, maxHours, func(res *models.Reserve, n int) {
		res.SetKind, res.SetCount = models.SetKindHour, n
	}))

	r.Callback(on(StateList), dispatch.DataPrefix(dataDetails), p.showDetails)
	r.Callback(on(StateList), dispatch.Data(dataBack), p.showMain)
	r.Callback(on(StateDetails), dispatch.DataPrefix(dataCancel), p.cancel)
	r.Callback(on(StateDetails), dispatch.DataPrefix(dataNotify), p.notify)
	r.Callback(on(StateDetails), dispatch.Data(dataBack), p.showList)

	// date, hour, count, set и set_hour
	r.Callback(on(dispatch.Any), dispatch.Data(dataBack), p.showBook)
}

func plainText(ev *dispatch.Event) bool {
	return ev.Text != "" && !strings.HasPrefix(ev.Text, "/")
}

// draft - изменяемая копия черновика из состояния. Сохранённая бронь
// черновиком не считается.
func (p *Processor) draft(st *state.Manager) *models.Reserve {
	if r := st.Data(); r != nil && r.ID == 0 {
		return r.Clone()
	}
	return models.NewReserve(p.kind, &models.User{TelegramID: st.UserID()})
}

func (p *Processor) today() time.Time {
	now := p.service.Now().In(p.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, p.loc)
}

func (p *Processor) answer(ctx context.Context, ev *dispatch.Event, text string) error {
	ev.Answered = true
	return p.sender.AnswerCallback(ctx, ev.CallbackID, text)
}

// show редактирует сообщение меню и переводит диалог в next.
func (p *Processor) show(ctx context.Context, ev *dispatch.Event, st *state.Manager, next string, resp Response) error {
	if err := p.sender.Edit(ctx, ev.ChatID, ev.MessageID, resp); err != nil {
		return err
	}
	return st.SetState(ctx, state.Change{State: next})
}

func (p *Processor) showMenu(next string, menu func() Response) dispatch.Handler {
	return func(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
		return p.show(ctx, ev, st, next, menu())
	}
}

func (p *Processor) open(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	user, err := p.users.GetUserByTelegramID(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		user = &models.User{TelegramID: ev.UserID, Name: ev.UserName}
	}

	msgID, err := p.sender.Send(ctx, ev.ChatID, p.mainMenu())
	if err != nil {
		return err
	}
	return st.SetState(ctx, state.Change{
		Type:      string(p.kind),
		State:     StateMain,
		MessageID: msgID,
		Payload:   models.NewReserve(p.kind, user),
	})
}

func (p *Processor) close(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	if err := st.Finish(ctx); err != nil {
		return err
	}
	return p.sender.Delete(ctx, ev.ChatID, ev.MessageID)
}

func (p *Processor) showMain(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	return p.show(ctx, ev, st, StateMain, p.mainMenu())
}

// bookView обновляет владельца черновика из хранилища и считает занятость,
// если дата, время и длительность уже выбраны.
func (p *Processor) bookView(ctx context.Context, st *state.Manager) (*models.Reserve, Response, error) {
	r := p.draft(st)
	user, err := p.users.GetUserByTelegramID(ctx, st.UserID())
	if err != nil {
		return nil, Response{}, err
	}
	if user != nil {
		r.User = user
	}

	taken := -1
	if r.IsComplete() {
		taken, err = p.service.Admit(ctx, r)
		if err != nil && !errors.Is(err, services.ErrCapacityExceeded) {
			return nil, Response{}, err
		}
	}
	st.SetData(r)
	return r, p.bookMenu(r, taken), nil
}

func (p *Processor) showBook(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	_, resp, err := p.bookView(ctx, st)
	if err != nil {
		return err
	}
	return p.show(ctx, ev, st, StateBook, resp)
}

// reopenBook отправляет меню брони новым сообщением и переносит
// состояние на него.
func (p *Processor) reopenBook(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	_, resp, err := p.bookView(ctx, st)
	if err != nil {
		return err
	}
	msgID, err := p.sender.Send(ctx, ev.ChatID, resp)
	if err != nil {
		return err
	}
	return st.SetState(ctx, state.Change{State: StateBook, MessageID: msgID})
}

func (p *Processor) showDates(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	return p.show(ctx, ev, st, StateDate, p.dateMenu(p.today()))
}

func (p *Processor) pickDate(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	date, err := time.ParseInLocation(dateArgument, ev.Arg(dataDate), p.loc)
	if err != nil || date.Before(p.today()) {
		return p.answer(ctx, ev, "❌ Нельзя записаться на прошедшую дату")
	}
	r := p.draft(st)
	r.StartDate = &date
	st.SetData(r)
	return p.showBook(ctx, ev, st)
}

func (p *Processor) showHours(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	r := p.draft(st)
	if r.StartDate == nil {
		return p.answer(ctx, ev, "Сначала выберите дату")
	}
	slots, err := p.service.HourSlots(ctx, r, *r.StartDate, p.openHour, p.closeHour)
	if err != nil {
		return fmt.Errorf("booking: hour slots: %w", err)
	}
	return p.show(ctx, ev, st, StateHour, p.hourMenu(*r.StartDate, slots))
}

func (p *Processor) busy(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	return p.answer(ctx, ev, "🔴 Это время занято")
}

func (p *Processor) pickHour(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	hour, err := strconv.Atoi(ev.Arg(dataHour))
	if err != nil || hour < p.openHour || hour >= p.closeHour {
		return p.answer(ctx, ev, "❌ Неверное время")
	}
	r := p.draft(st)
	r.StartTime = &models.Clock{Hour: hour}
	st.SetData(r)
	return p.show(ctx, ev, st, StateMinute, p.minuteMenu(hour))
}

func (p *Processor) pickMinute(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	minute, err := strconv.Atoi(ev.Arg(dataMinute))
	r := p.draft(st)
	if err != nil || minute < 0 || minute >= 60 || r.StartTime == nil {
		return p.answer(ctx, ev, "❌ Неверное время")
	}
	r.StartTime.Minute = minute
	st.SetData(r)
	return p.showBook(ctx, ev, st)
}

func (p *Processor) pickNumber(prefix string, limit int, apply func(r *models.Reserve, n int)) dispatch.Handler {
	return func(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
		n, err := strconv.Atoi(ev.Arg(prefix))
		if err != nil || n < 1 || n > limit {
			return p.answer(ctx, ev, "❌ Неверное значение")
		}
		r := p.draft(st)
		apply(r, n)
		st.SetData(r)
		return p.showBook(ctx, ev, st)
	}
}

func (p *Processor) toggleGear(field func(w *models.WakeGear) *int) dispatch.Handler {
	return func(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
		r := p.draft(st)
		if r.Wake == nil {
			r.Wake = &models.WakeGear{}
		}
		v := field(r.Wake)
		if *v > 0 {
			*v = 0
		} else {
			*v = 1
		}
		st.SetData(r)
		return p.showBook(ctx, ev, st)
	}
}

// askPhone закрывает меню и ждёт телефон текстом или контактом.
// Ожидание хранится без message id: ответ приходит обычным сообщением.
func (p *Processor) askPhone(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	r := p.draft(st)
	if err := st.Finish(ctx); err != nil {
		return err
	}
	if err := p.sender.Delete(ctx, ev.ChatID, ev.MessageID); err != nil {
		return err
	}
	if _, err := p.sender.Send(ctx, ev.ChatID, phonePrompt()); err != nil {
		return err
	}
	pending := state.New(p.states, ev.ChatID, ev.UserID, 0)
	return pending.SetState(ctx, state.Change{Type: string(p.kind), State: StatePhone, Payload: r})
}

func (p *Processor) phoneInput(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	phone, err := phoneFromEvent(ev)
	if err != nil {
		_, err = p.sender.Send(ctx, ev.ChatID, invalidPhone(err))
		return err
	}
	if err := p.users.SetPhone(ctx, ev.UserID, phone); err != nil {
		return fmt.Errorf("booking: save phone: %w", err)
	}
	logging.FromContext(ctx, nil).Info("Телефон сохранён", "telegram_id", ev.UserID)

	if _, err := p.sender.Send(ctx, ev.ChatID, Response{Text: "✅ Телефон сохранён: " + phone, RemoveKeyboard: true}); err != nil {
		return err
	}
	return p.reopenBook(ctx, ev, st)
}

func (p *Processor) phoneCancel(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	if _, err := p.sender.Send(ctx, ev.ChatID, Response{Text: "Ввод телефона отменён", RemoveKeyboard: true}); err != nil {
		return err
	}
	return p.reopenBook(ctx, ev, st)
}

// apply сохраняет бронь и закрывает состояние вместе: если состояние
// не удалось удалить, бронь откатывается. При нехватке мест диалог
// остаётся в book.
func (p *Processor) apply(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	r, _, err := p.bookView(ctx, st)
	if err != nil {
		return err
	}
	if !r.ReadyToApply() {
		return p.answer(ctx, ev, "Укажите дату, время и телефон")
	}

	saved, err := p.service.Apply(ctx, r, st.Finish)
	switch {
	case errors.Is(err, services.ErrCapacityExceeded):
		if err := p.answer(ctx, ev, "❌ На это время всё занято"); err != nil {
			return err
		}
		return p.showBook(ctx, ev, st)
	case errors.Is(err, services.ErrPast):
		return p.answer(ctx, ev, "❌ Это время уже прошло")
	case errors.Is(err, services.ErrIncomplete):
		return p.answer(ctx, ev, "Укажите дату, время и телефон")
	case err != nil:
		return err
	}
	return p.sender.Edit(ctx, ev.ChatID, ev.MessageID, Response{Text: "✅ Бронь подтверждена!\n" + saved.Summary()})
}

func (p *Processor) showList(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	reserves, err := p.service.Active(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("booking: list: %w", err)
	}
	return p.show(ctx, ev, st, StateList, p.listMenu(reserves))
}

func (p *Processor) showDetails(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	id, err := strconv.ParseInt(ev.Arg(dataDetails), 10, 64)
	if err != nil {
		return p.answer(ctx, ev, "Бронь не найдена")
	}
	r, err := p.service.Get(ctx, id)
	if err != nil {
		return err
	}
	admin := p.service.IsAdmin(ev.UserID)
	if r == nil || r.Canceled {
		if err := p.answer(ctx, ev, "Бронь не найдена"); err != nil {
			return err
		}
		return p.showList(ctx, ev, st)
	}
	if !admin && (r.User == nil || r.User.TelegramID != ev.UserID) {
		return p.answer(ctx, ev, "⛔ Недостаточно прав")
	}
	// черновик остаётся в состоянии, id брони едет в кнопках
	return p.show(ctx, ev, st, StateDetails, p.detailsMenu(r, admin))
}

func (p *Processor) cancel(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	id, err := strconv.ParseInt(ev.Arg(dataCancel), 10, 64)
	if err != nil {
		return p.showList(ctx, ev, st)
	}
	_, err = p.service.Cancel(ctx, id, ev.UserID)
	if errors.Is(err, services.ErrForbidden) {
		return p.answer(ctx, ev, "⛔ Недостаточно прав")
	}
	if err != nil {
		return err
	}
	if err := p.answer(ctx, ev, "✅ Бронь отменена"); err != nil {
		return err
	}
	return p.showList(ctx, ev, st)
}

func (p *Processor) notify(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
	id, err := strconv.ParseInt(ev.Arg(dataNotify), 10, 64)
	if err != nil {
		return p.showList(ctx, ev, st)
	}
	_, err = p.service.NotifyOwner(ctx, id, ev.UserID)
	if errors.Is(err, services.ErrForbidden) {
		return p.answer(ctx, ev, "⛔ Недостаточно прав")
	}
	if err != nil {
		return err
	}
	if err := p.answer(ctx, ev, "🔔 Уведомление отправлено"); err != nil {
		return err
	}
	return p.showList(ctx, ev, st)
}
