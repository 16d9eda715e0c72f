package dispatch

import "strings"

type Category int

const (
	CategoryMessage Category = iota
	CategoryCallback
	CategoryContact
)

func (c Category) String() string {
	switch c {
	case CategoryCallback:
		return "callback"
	case CategoryContact:
		return "contact"
	}
	return "message"
}

type Contact struct {
	PhoneNumber string
	UserID      int64
}

// Event - входящее событие, уже отвязанное от API мессенджера.
type Event struct {
	ChatID       int64
	UserID       int64
	UserName     string
	MessageID    int
	Text         string
	CallbackID   string
	CallbackData string
	Contact      *Contact

	// Answered - на callback уже ответили из обработчика.
	Answered bool
}

func (e *Event) Category() Category {
	switch {
	case e.CallbackID != "" || e.CallbackData != "":
		return CategoryCallback
	case e.Contact != nil:
		return CategoryContact
	}
	return CategoryMessage
}

// StateMessageID - сообщение, входящее в ключ состояния. Кнопки живут
// под конкретным сообщением, текст и контакты - без него.
func (e *Event) StateMessageID() int {
	if e.Category() == CategoryCallback {
		return e.MessageID
	}
	return 0
}

// Arg - часть callback data после "prefix:".
func (e *Event) Arg(prefix string) string {
	return strings.TrimPrefix(e.CallbackData, prefix+":")
}

// Matcher дополнительно сужает маршрут к фильтру состояния.
type Matcher func(ev *Event) bool

// Command совпадает с "/name" и "/name аргументы".
func Command(name string) Matcher {
	return func(ev *Event) bool {
		cmd, _, _ := strings.Cut(strings.TrimSpace(ev.Text), " ")
		cmd, _, _ = strings.Cut(cmd, "@")
		return cmd == "/"+name
	}
}

func Data(data string) Matcher {
	return func(ev *Event) bool { return ev.CallbackData == data }
}

// DataPrefix совпадает с callback data вида "prefix:arg".
func DataPrefix(prefix string) Matcher {
	return func(ev *Event) bool { return strings.HasPrefix(ev.CallbackData, prefix+":") }
}
