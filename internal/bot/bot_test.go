package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rentbot/internal/booking"
	"rentbot/internal/dispatch"
	"rentbot/internal/state"
	"rentbot/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeAPI struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	lastID   int
	sendErr  error
}

func (a *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	a.sent = append(a.sent, c)
	if a.sendErr != nil {
		return tgbotapi.Message{}, a.sendErr
	}
	a.lastID++
	return tgbotapi.Message{MessageID: a.lastID}, nil
}

func (a *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	a.requests = append(a.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (a *fakeAPI) callbacks() []tgbotapi.CallbackConfig {
	var out []tgbotapi.CallbackConfig
	for _, r := range a.requests {
		if cb, ok := r.(tgbotapi.CallbackConfig); ok {
			out = append(out, cb)
		}
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestToEvent(t *testing.T) {
	from := &tgbotapi.User{ID: 20, FirstName: "Ann", LastName: "Lee"}
	chat := &tgbotapi.Chat{ID: 10}

	ev, ok := toEvent(tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 5, From: from, Chat: chat,
		Contact: &tgbotapi.Contact{PhoneNumber: "79990000000", UserID: 20},
	}})
	if !ok || ev.Category() != dispatch.CategoryContact || ev.UserName != "Ann Lee" || ev.Contact.UserID != 20 {
		t.Fatalf("contact event = %+v, %v", ev, ok)
	}
	if ev.StateMessageID() != 0 {
		t.Fatal("contact must use the key without message id")
	}

	ev, ok = toEvent(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID: "q1", From: &tgbotapi.User{ID: 20, UserName: "ann"}, Data: "book",
		Message: &tgbotapi.Message{MessageID: 7, Chat: chat},
	}})
	if !ok || ev.Category() != dispatch.CategoryCallback || ev.StateMessageID() != 7 || ev.UserName != "ann" {
		t.Fatalf("callback event = %+v, %v", ev, ok)
	}

	for name, update := range map[string]tgbotapi.Update{
		"channel post":    {ChannelPost: &tgbotapi.Message{Chat: chat}},
		"inline callback": {CallbackQuery: &tgbotapi.CallbackQuery{ID: "q2", From: from}},
		"no sender":       {Message: &tgbotapi.Message{Chat: chat}},
	} {
		if _, ok := toEvent(update); ok {
			t.Fatalf("%s must be skipped", name)
		}
	}
}

func TestSenderSend(t *testing.T) {
	api := &fakeAPI{}
	s := NewSender(api)
	ctx := context.Background()

	id, err := s.Send(ctx, 10, booking.Response{
		Text:      "menu",
		ParseMode: "Markdown",
		Keyboard:  [][]booking.Button{{{Text: "A", Data: "a"}, {Text: "B", Data: "b"}}},
	})
	if err != nil || id != 1 {
		t.Fatalf("Send = %d, %v", id, err)
	}
	msg := api.sent[0].(tgbotapi.MessageConfig)
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(markup.InlineKeyboard) != 1 || len(markup.InlineKeyboard[0]) != 2 || msg.ParseMode != "Markdown" {
		t.Fatalf("message = %+v", msg)
	}
	if data := markup.InlineKeyboard[0][1].CallbackData; data == nil || *data != "b" {
		t.Fatalf("callback data = %v", data)
	}

	if _, err := s.Send(ctx, 10, booking.Response{Text: "phone", RequestContact: true}); err != nil {
		t.Fatal(err)
	}
	reply, ok := api.sent[1].(tgbotapi.MessageConfig).ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	if !ok || !reply.Keyboard[0][0].RequestContact || !reply.OneTimeKeyboard {
		t.Fatalf("contact keyboard = %+v", reply)
	}

	if _, err := s.Send(ctx, 10, booking.Response{Text: "ok", RemoveKeyboard: true}); err != nil {
		t.Fatal(err)
	}
	if _, ok := api.sent[2].(tgbotapi.MessageConfig).ReplyMarkup.(tgbotapi.ReplyKeyboardRemove); !ok {
		t.Fatal("keyboard was not removed")
	}
}

func TestSenderEdit(t *testing.T) {
	api := &fakeAPI{}
	s := NewSender(api)
	ctx := context.Background()

	if err := s.Edit(ctx, 10, 7, booking.Response{Text: "done"}); err != nil {
		t.Fatal(err)
	}
	edit := api.sent[0].(tgbotapi.EditMessageTextConfig)
	if edit.MessageID != 7 || edit.Text != "done" || edit.ReplyMarkup != nil {
		t.Fatalf("edit = %+v", edit)
	}

	api.sendErr = errors.New("Bad Request: message is not modified: specified new message content is the same")
	if err := s.Edit(ctx, 10, 7, booking.Response{Text: "done"}); err != nil {
		t.Fatalf("unchanged edit = %v", err)
	}
	api.sendErr = errors.New("Forbidden: bot was blocked by the user")
	if err := s.Edit(ctx, 10, 7, booking.Response{Text: "done"}); err == nil {
		t.Fatal("expected error")
	}
	if err := s.Notify(ctx, 10, "hello"); err == nil {
		t.Fatal("Notify must return send errors")
	}
}

func newTestBot(t *testing.T, register func(r *dispatch.Router)) (*RentBot, *fakeAPI, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	api := &fakeAPI{}
	router := dispatch.NewRouter(store)
	register(router)
	return New(NewSender(api), router, store, quietLogger()), api, store
}

func TestHandleUpdate(t *testing.T) {
	var handled []string
	b, api, store := newTestBot(t, func(r *dispatch.Router) {
		r.Message(dispatch.Always, dispatch.Command("start"), func(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
			handled = append(handled, ev.Text)
			return nil
		})
		r.Callback(dispatch.Always, dispatch.Data("alert"), func(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
			ev.Answered = true
			return nil
		})
		r.Callback(dispatch.Always, dispatch.Data("fail"), func(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
			return errors.New("storage down")
		})
	})
	ctx := context.Background()
	from := &tgbotapi.User{ID: 20, FirstName: "Ann"}
	chat := &tgbotapi.Chat{ID: 10}
	callback := func(id, data string) tgbotapi.Update {
		return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
			ID: id, From: from, Data: data, Message: &tgbotapi.Message{MessageID: 3, Chat: chat},
		}}
	}

	b.HandleUpdate(ctx, tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 1, From: from, Chat: chat, Text: "/start"}})
	if len(handled) != 1 {
		t.Fatalf("handled = %v", handled)
	}
	user, err := store.GetUserByTelegramID(ctx, 20)
	if err != nil || user == nil || user.Name != "Ann" {
		t.Fatalf("user = %+v, %v", user, err)
	}

	b.HandleUpdate(ctx, callback("q1", "stale"))
	b.HandleUpdate(ctx, callback("q2", "alert"))
	b.HandleUpdate(ctx, callback("q3", "fail"))

	answered := api.callbacks()
	if len(answered) != 2 || answered[0].CallbackQueryID != "q1" || answered[1].CallbackQueryID != "q3" {
		t.Fatalf("callbacks = %+v", answered)
	}
}

func TestRunStopsWhenChannelCloses(t *testing.T) {
	count := 0
	b, _, _ := newTestBot(t, func(r *dispatch.Router) {
		r.Message(dispatch.Always, nil, func(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
			count++
			return nil
		})
	})

	updates := make(chan tgbotapi.Update, 2)
	for i := 0; i < 2; i++ {
		updates <- tgbotapi.Update{Message: &tgbotapi.Message{From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 1}, Text: "hi"}}
	}
	close(updates)

	b.Run(context.Background(), updates)
	if count != 2 {
		t.Fatalf("count = %d", count)
	}
}

func TestWebhook(t *testing.T) {
	var texts []string
	b, _, _ := newTestBot(t, func(r *dispatch.Router) {
		r.Message(dispatch.Always, nil, func(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
			texts = append(texts, ev.Text)
			return nil
		})
	})
	handler := NewWebhook(b, "/telegram", "s3cret").Handler()

	const body = `{"update_id":1,"message":{"message_id":5,"from":{"id":20,"first_name":"Ann"},"chat":{"id":10,"type":"private"},"date":0,"text":"/start"}}`
	post := func(secret, payload string) int {
		req := httptest.NewRequest(http.MethodPost, "/telegram", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		if secret != "" {
			req.Header.Set(secretHeader, secret)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := post("wrong", body); code != http.StatusUnauthorized {
		t.Fatalf("wrong secret = %d", code)
	}
	if code := post("s3cret", "{not json"); code != http.StatusBadRequest {
		t.Fatalf("bad body = %d", code)
	}
	if code := post("s3cret", body); code != http.StatusOK {
		t.Fatalf("valid update = %d", code)
	}
	if len(texts) != 1 || texts[0] != "/start" {
		t.Fatalf("texts = %v", texts)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestWebhookHandlesUpdatesOneAtATime(t *testing.T) {
	var inFlight, peak, total int32
	b, _, _ := newTestBot(t, func(r *dispatch.Router) {
		r.Message(dispatch.Always, nil, func(ctx context.Context, ev *dispatch.Event, st *state.Manager) error {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			atomic.AddInt32(&total, 1)
			return nil
		})
	})
	handler := NewWebhook(b, "/telegram", "").Handler()

	const body = `{"update_id":1,"message":{"message_id":5,"from":{"id":20,"first_name":"Ann"},"chat":{"id":10,"type":"private"},"date":0,"text":"hi"}}`
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/telegram", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			handler.ServeHTTP(httptest.NewRecorder(), req)
		}()
	}
	wg.Wait()

	if total != 8 || peak != 1 {
		t.Fatalf("total = %d, peak = %d; want 8 updates handled one at a time", total, peak)
	}
}
