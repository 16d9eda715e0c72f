package models

import (
	"fmt"
	"strings"
	"time"
)

type User struct {
	ID         int64  `json:"id" db:"id"`
	TelegramID int64  `json:"telegram_id" db:"telegram_id"`
	Name       string `json:"name" db:"name"`
	Phone      string `json:"phone" db:"phone"`
	IsAdmin    bool   `json:"is_admin" db:"is_admin"`
}

// Clock - время начала внутри дня.
type Clock struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (c Clock) String() string {
	return time.Date(0, 1, 1, c.Hour, c.Minute, 0, 0, time.UTC).Format("15:04")
}

// WakeGear - дополнительное оборудование для вейка.
type WakeGear struct {
	Board int `json:"board"`
	Hydro int `json:"hydro"`
}

// Reserve - бронь любого типа. Тип определяется полем Kind,
// от него зависят длительность сета и дополнительные поля.
type Reserve struct {
	ID            int64      `json:"id,omitempty"` // 0 - ещё не сохранена
	Kind          Kind       `json:"kind"`
	User          *User      `json:"user,omitempty"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	StartTime     *Clock     `json:"start_time,omitempty"`
	SetKind       SetKind    `json:"set_kind"`
	SetCount      int        `json:"set_count"`
	Count         int        `json:"count"`
	Wake          *WakeGear  `json:"wake,omitempty"`
	Canceled      bool       `json:"canceled"`
	CancelActorID int64      `json:"cancel_actor_id,omitempty"`
}

// NewReserve создаёт черновик брони с настройками по умолчанию для типа.
func NewReserve(kind Kind, user *User) *Reserve {
	r := &Reserve{
		Kind:     kind,
		User:     user,
		SetKind:  kind.DefaultSetKind(),
		SetCount: 1,
		Count:    1,
	}
	if kind == KindWake {
		r.Wake = &WakeGear{}
	}
	return r
}

func (r *Reserve) Minutes() int {
	if r.SetCount <= 0 {
		return 0
	}
	return r.Kind.UnitMinutes(r.SetKind) * r.SetCount
}

func (r *Reserve) Duration() time.Duration {
	return time.Duration(r.Minutes()) * time.Minute
}

// Start - false, пока не выбраны дата или время.
func (r *Reserve) Start() (time.Time, bool) {
	if r.StartDate == nil || r.StartTime == nil {
		return time.Time{}, false
	}
	d := *r.StartDate
	return time.Date(d.Year(), d.Month(), d.Day(), r.StartTime.Hour, r.StartTime.Minute, 0, 0, d.Location()), true
}

func (r *Reserve) End() (time.Time, bool) {
	start, ok := r.Start()
	if !ok {
		return time.Time{}, false
	}
	return start.Add(r.Duration()), true
}

func (r *Reserve) IsComplete() bool {
	return r.StartDate != nil && r.StartTime != nil && r.Minutes() > 0
}

// ReadyToApply - бронь можно сохранять: заполнена и у владельца есть телефон.
func (r *Reserve) ReadyToApply() bool {
	return r.IsComplete() && r.User != nil && r.User.Phone != ""
}

// SetStart заменяет дату и время начала одним значением.
func (r *Reserve) SetStart(t time.Time) {
	date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	r.StartDate = &date
	r.StartTime = &Clock{Hour: t.Hour(), Minute: t.Minute()}
}

// Overlaps - пересекаются ли две заполненные брони по времени.
// Брони встык не пересекаются.
func (r *Reserve) Overlaps(other *Reserve) bool {
	start, ok := r.Start()
	if !ok {
		return false
	}
	end, _ := r.End()
	otherStart, ok := other.Start()
	if !ok {
		return false
	}
	otherEnd, _ := other.End()

	switch {
	case start.Equal(otherStart):
		return true
	case start.Before(otherStart) && end.After(otherStart):
		return true
	case start.After(otherStart) && start.Before(otherEnd):
		return true
	}
	return false
}

// CheckConcurrent возвращает суммарное количество при пересечении
// и собственное количество, если брони не пересекаются.
func (r *Reserve) CheckConcurrent(other *Reserve) int {
	if r.Overlaps(other) {
		return r.Count + other.Count
	}
	return r.Count
}

// Equal сравнивает логическое содержание брони без учёта ID и отмены.
func (r *Reserve) Equal(other *Reserve) bool {
	if other == nil || r.Kind != other.Kind {
		return false
	}
	if !sameDate(r.StartDate, other.StartDate) {
		return false
	}
	if r.SetCount != other.SetCount || r.Minutes() != other.Minutes() {
		return false
	}
	if r.Kind.CountBearing() && r.Count != other.Count {
		return false
	}
	return true
}

// Clone - независимая копия.
func (r *Reserve) Clone() *Reserve {
	if r == nil {
		return nil
	}
	c := *r
	if r.User != nil {
		u := *r.User
		c.User = &u
	}
	if r.StartDate != nil {
		d := *r.StartDate
		c.StartDate = &d
	}
	if r.StartTime != nil {
		t := *r.StartTime
		c.StartTime = &t
	}
	if r.Wake != nil {
		w := *r.Wake
		c.Wake = &w
	}
	return &c
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Summary - короткое описание брони для уведомлений.
func (r *Reserve) Summary() string {
	var sb strings.Builder
	sb.WriteString(r.Kind.Title())
	if r.ID != 0 {
		fmt.Fprintf(&sb, " #%d", r.ID)
	}
	if start, ok := r.Start(); ok {
		end, _ := r.End()
		fmt.Fprintf(&sb, ": %s %s-%s", start.Format("02.01.2006"), start.Format("15:04"), end.Format("15:04"))
	}
	if r.Count > 1 {
		fmt.Fprintf(&sb, ", %d шт.", r.Count)
	}
	if r.Wake != nil && (r.Wake.Board > 0 || r.Wake.Hydro > 0) {
		fmt.Fprintf(&sb, ", доска: %d, гидрик: %d", r.Wake.Board, r.Wake.Hydro)
	}
	if r.User != nil {
		if r.User.Name != "" {
			sb.WriteString(", " + r.User.Name)
		}
		if r.User.Phone != "" {
			sb.WriteString(" " + r.User.Phone)
		}
	}
	if r.Canceled {
		sb.WriteString(" (отменена)")
	}
	return sb.String()
}
