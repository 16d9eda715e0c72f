package models

import "fmt"

type Kind string

const (
	KindReserve   Kind = "reserve"
	KindWake      Kind = "wake"
	KindSupboard  Kind = "sup"
	KindBathhouse Kind = "bathhouse"
)

var Kinds = []Kind{KindWake, KindSupboard, KindBathhouse, KindReserve}

type SetKind string

const (
	SetKindSet  SetKind = "set"
	SetKindHour SetKind = "hour"
)

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown reserve kind %q", s)
}

// UnitMinutes - длительность одной единицы SetKind для типа брони.
func (k Kind) UnitMinutes(s SetKind) int {
	switch k {
	case KindWake:
		switch s {
		case SetKindSet:
			return 10
		case SetKindHour:
			return 60
		}
	case KindSupboard:
		switch s {
		case SetKindSet:
			return 30
		case SetKindHour:
			return 60
		}
	case KindBathhouse:
		// для бани любая единица кроме часа - полчаса
		if s == SetKindHour {
			return 60
		}
		return 30
	case KindReserve:
		switch s {
		case SetKindSet:
			return 5
		case SetKindHour:
			return 60
		}
	}
	return 0
}

func (k Kind) DefaultSetKind() SetKind {
	if k == KindBathhouse {
		return SetKindHour
	}
	return SetKindSet
}

// CountBearing - учитывается ли количество при сравнении броней.
func (k Kind) CountBearing() bool {
	return k == KindSupboard || k == KindReserve
}

// Title - имя типа для сообщений пользователю.
func (k Kind) Title() string {
	switch k {
	case KindWake:
		return "Вейкборд"
	case KindSupboard:
		return "Сапборд"
	case KindBathhouse:
		return "Баня"
	}
	return "Бронь"
}
