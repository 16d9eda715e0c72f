package dispatch

import (
	"context"

	"rentbot/internal/state"
	"rentbot/internal/storage"
)

// Any в фильтре совпадает с любым значением, "" - только с пустым.
const Any = "*"

type Filter struct {
	Type  string
	State string
}

func On(stateType, st string) Filter {
	return Filter{Type: stateType, State: st}
}

var Always = Filter{Type: Any, State: Any}

func (f Filter) always() bool {
	return f.Type == Any && f.State == Any
}

func (f Filter) Match(stateType, st string) bool {
	switch {
	case f.always():
		return true
	case f.Type == stateType && f.State == st:
		return true
	case f.Type == Any && f.State == st:
		return true
	case f.Type == stateType && f.State == Any:
		return true
	}
	return false
}

type Handler func(ctx context.Context, ev *Event, st *state.Manager) error

type route struct {
	category Category
	filter   Filter
	match    Matcher
	handle   Handler
}

// Router выбирает первый зарегистрированный обработчик, чей фильтр
// совпал с текущим состоянием диалога.
type Router struct {
	store  storage.KV
	routes []route
}

func NewRouter(store storage.KV) *Router {
	return &Router{store: store}
}

func (r *Router) Handle(category Category, filter Filter, match Matcher, h Handler) {
	r.routes = append(r.routes, route{category: category, filter: filter, match: match, handle: h})
}

func (r *Router) Message(filter Filter, match Matcher, h Handler) {
	r.Handle(CategoryMessage, filter, match, h)
}

func (r *Router) Callback(filter Filter, match Matcher, h Handler) {
	r.Handle(CategoryCallback, filter, match, h)
}

func (r *Router) Contact(filter Filter, match Matcher, h Handler) {
	r.Handle(CategoryContact, filter, match, h)
}

// Dispatch сообщает, отработал ли обработчик. Событие без маршрута
// молча пропускается, ошибка обработчика возвращается как есть.
func (r *Router) Dispatch(ctx context.Context, ev *Event) (bool, error) {
	category := ev.Category()
	st := state.New(r.store, ev.ChatID, ev.UserID, ev.StateMessageID())

	resolved := false
	var stateType, current string

	for _, rt := range r.routes {
		if rt.category != category {
			continue
		}
		if rt.match != nil && !rt.match(ev) {
			continue
		}
		if !rt.filter.always() {
			if !resolved {
				var err error
				stateType, current, _, err = st.Resolve(ctx)
				if err != nil {
					return false, err
				}
				resolved = true
			}
			if !rt.filter.Match(stateType, current) {
				continue
			}
		}
		return true, rt.handle(ctx, ev, st)
	}
	return false, nil
}
