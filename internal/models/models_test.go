package models

import (
	"testing"
	"time"
)

func reserveAt(kind Kind, start time.Time, setKind SetKind, setCount, count int) *Reserve {
	r := NewReserve(kind, &User{TelegramID: 1})
	r.SetStart(start)
	r.SetKind = setKind
	r.SetCount = setCount
	r.Count = count
	return r
}

func TestMinutes(t *testing.T) {
	cases := []struct {
		kind     Kind
		setKind  SetKind
		setCount int
		want     int
	}{
		{KindWake, SetKindSet, 1, 10},
		{KindWake, SetKindSet, 3, 30},
		{KindWake, SetKindHour, 1, 60},
		{KindSupboard, SetKindSet, 2, 60},
		{KindSupboard, SetKindHour, 2, 120},
		{KindBathhouse, SetKindHour, 2, 120},
		{KindBathhouse, SetKindSet, 1, 30},
		{KindBathhouse, SetKind("half"), 3, 90},
		{KindReserve, SetKindSet, 2, 10},
		{KindReserve, SetKindHour, 1, 60},
		{KindWake, SetKind("unknown"), 1, 0},
		{KindWake, SetKindSet, 0, 0},
	}

	for _, tt := range cases {
		r := &Reserve{Kind: tt.kind, SetKind: tt.setKind, SetCount: tt.setCount}
		if got := r.Minutes(); got != tt.want {
			t.Fatalf("%s %s x%d: Minutes()=%d, want %d", tt.kind, tt.setKind, tt.setCount, got, tt.want)
		}
	}
}

func TestEndAndCompleteness(t *testing.T) {
	r := NewReserve(KindWake, &User{TelegramID: 1})
	if r.IsComplete() {
		t.Fatal("draft without date must be incomplete")
	}
	if _, ok := r.End(); ok {
		t.Fatal("End() of incomplete reserve must be absent")
	}

	start := time.Date(2026, 7, 1, 10, 30, 0, 0, time.UTC)
	r.SetStart(start)
	r.SetCount = 2
	if !r.IsComplete() {
		t.Fatal("reserve with date, time and duration must be complete")
	}
	end, ok := r.End()
	if !ok || !end.Equal(start.Add(20*time.Minute)) {
		t.Fatalf("End()=%v, want %v", end, start.Add(20*time.Minute))
	}

	if r.ReadyToApply() {
		t.Fatal("reserve without owner phone must not be ready to apply")
	}
	r.User.Phone = "+79990000000"
	if !r.ReadyToApply() {
		t.Fatal("reserve with phone must be ready to apply")
	}
}

func TestCheckConcurrent(t *testing.T) {
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		a, b    *Reserve
		overlap bool
	}{
		{
			name:    "same start",
			a:       reserveAt(KindWake, base, SetKindHour, 1, 1),
			b:       reserveAt(KindWake, base, SetKindSet, 1, 2),
			overlap: true,
		},
		{
			name:    "other starts inside",
			a:       reserveAt(KindWake, base, SetKindHour, 1, 1),
			b:       reserveAt(KindWake, base.Add(30*time.Minute), SetKindHour, 1, 3),
			overlap: true,
		},
		{
			name:    "starts inside other",
			a:       reserveAt(KindWake, base.Add(30*time.Minute), SetKindHour, 1, 2),
			b:       reserveAt(KindWake, base, SetKindHour, 1, 1),
			overlap: true,
		},
		{
			name:    "contained",
			a:       reserveAt(KindWake, base, SetKindHour, 3, 1),
			b:       reserveAt(KindWake, base.Add(time.Hour), SetKindSet, 1, 1),
			overlap: true,
		},
		{
			name:    "back to back",
			a:       reserveAt(KindWake, base, SetKindHour, 1, 1),
			b:       reserveAt(KindWake, base.Add(time.Hour), SetKindHour, 1, 2),
			overlap: false,
		},
		{
			name:    "disjoint",
			a:       reserveAt(KindWake, base, SetKindSet, 1, 2),
			b:       reserveAt(KindWake, base.Add(3*time.Hour), SetKindSet, 1, 5),
			overlap: false,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			ab := tt.a.CheckConcurrent(tt.b)
			ba := tt.b.CheckConcurrent(tt.a)
			if tt.overlap {
				want := tt.a.Count + tt.b.Count
				if ab != want || ba != want {
					t.Fatalf("overlap: got %d/%d, want %d", ab, ba, want)
				}
				return
			}
			if ab != tt.a.Count {
				t.Fatalf("a.CheckConcurrent(b)=%d, want %d", ab, tt.a.Count)
			}
			if ba != tt.b.Count {
				t.Fatalf("b.CheckConcurrent(a)=%d, want %d", ba, tt.b.Count)
			}
		})
	}
}

func TestCheckConcurrentIncomplete(t *testing.T) {
	a := NewReserve(KindSupboard, nil)
	a.Count = 2
	b := reserveAt(KindSupboard, time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC), SetKindHour, 1, 1)
	if got := a.CheckConcurrent(b); got != 2 {
		t.Fatalf("incomplete reserve must not overlap, got %d", got)
	}
}

func TestEqual(t *testing.T) {
	start := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	a := reserveAt(KindSupboard, start, SetKindHour, 1, 2)
	b := a.Clone()
	b.ID = 42
	b.Canceled = true
	if !a.Equal(b) {
		t.Fatal("equality must ignore id and canceled")
	}

	b.Count = 3
	if a.Equal(b) {
		t.Fatal("sup reserves with different count must differ")
	}

	w1 := reserveAt(KindBathhouse, start, SetKindHour, 2, 1)
	w2 := reserveAt(KindBathhouse, start, SetKindHour, 2, 4)
	if !w1.Equal(w2) {
		t.Fatal("bathhouse equality ignores count")
	}

	w2.SetKind = SetKindSet
	if w1.Equal(w2) {
		t.Fatal("different minutes must differ")
	}
}

func TestCloneIsDetached(t *testing.T) {
	r := reserveAt(KindWake, time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC), SetKindSet, 1, 1)
	c := r.Clone()
	c.User.Phone = "123"
	c.StartTime.Hour = 12
	c.Wake.Board = 1
	if r.User.Phone != "" || r.StartTime.Hour != 10 || r.Wake.Board != 0 {
		t.Fatal("clone shares memory with the original")
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("sup"); err != nil || k != KindSupboard {
		t.Fatalf("ParseKind(sup)=%v, %v", k, err)
	}
	if _, err := ParseKind("boat"); err == nil {
		t.Fatal("unknown kind must fail")
	}
}
