package layout

import (
	"math"
	"reflect"
	"testing"
	"time"

	"planner/internal/model"
)

func at(h, m int) time.Time {
	return time.Date(2024, 1, 1, h, m, 0, 0, time.UTC)
}

func ev(id string, sh, sm, eh, em int) model.Event {
	return model.Event{ID: id, Name: id, StartTime: at(sh, sm), EndTime: at(eh, em)}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func ids(ps []Positioned) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Event.ID
	}
	return out
}

func TestLayoutDay_Empty(t *testing.T) {
	if got := LayoutDay(nil, 45); len(got) != 0 {
		t.Fatalf("expected no positions, got %d", len(got))
	}
	if got := LayoutHour(nil, 9); len(got) != 0 {
		t.Fatalf("expected no positions, got %d", len(got))
	}
	if got := GroupOverlapping(nil); got != nil {
		t.Fatalf("expected nil groups, got %v", got)
	}
}

func TestGroupOverlapping_Disjoint(t *testing.T) {
	events := []model.Event{ev("a", 9, 0, 10, 0), ev("b", 11, 0, 12, 0)}
	groups := GroupOverlapping(events)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}

	for _, p := range LayoutDay(events, 45) {
		if p.Left != 0 || !approx(p.Width, 95) {
			t.Errorf("%s: left=%v width=%v, want 0 and 95", p.Event.ID, p.Left, p.Width)
		}
	}
}

func TestGroupOverlapping_BackToBackDoNotOverlap(t *testing.T) {
	groups := GroupOverlapping([]model.Event{ev("a", 9, 0, 10, 0), ev("b", 10, 0, 11, 0)})
	if len(groups) != 2 {
		t.Fatalf("touching events must not share a group, got %d groups", len(groups))
	}
}

func TestGroupOverlapping_ChainedGroup(t *testing.T) {
	a := ev("A", 9, 0, 10, 30)
	b := ev("B", 10, 0, 11, 0)
	c := ev("C", 10, 45, 11, 30)

	groups := GroupOverlapping([]model.Event{c, a, b})
	if len(groups) != 1 || len(groups[0]) != 3 {
		t.Fatalf("expected one group of 3, got %v", groups)
	}

	got := LayoutDay([]model.Event{c, a, b}, 45)
	if !reflect.DeepEqual(ids(got), []string{"A", "B", "C"}) {
		t.Fatalf("order = %v, want [A B C]", ids(got))
	}
	for i, p := range got {
		if !approx(p.Width, 100.0/3*0.95) {
			t.Errorf("%s width = %v, want ~31.67", p.Event.ID, p.Width)
		}
		if !approx(p.Left, float64(i)*100.0/3) {
			t.Errorf("%s left = %v, want %v", p.Event.ID, p.Left, float64(i)*100.0/3)
		}
	}
}

func TestLayoutDay_MixedGroups(t *testing.T) {
	a := ev("a", 9, 0, 10, 0)
	b := ev("b", 9, 30, 10, 30)
	c := ev("c", 11, 0, 12, 0)

	groups := GroupOverlapping([]model.Event{c, b, a})
	if len(groups) != 2 || len(groups[0]) != 2 || len(groups[1]) != 1 {
		t.Fatalf("expected groups [a b] [c], got %v", groups)
	}

	got := LayoutDay([]model.Event{c, b, a}, 45)
	want := []struct {
		id          string
		left, width float64
	}{
		{"a", 0, 47.5},
		{"b", 50, 47.5},
		{"c", 0, 95},
	}
	for i, w := range want {
		p := got[i]
		if p.Event.ID != w.id || !approx(p.Left, w.left) || !approx(p.Width, w.width) {
			t.Errorf("position %d = %s left=%v width=%v, want %s left=%v width=%v",
				i, p.Event.ID, p.Left, p.Width, w.id, w.left, w.width)
		}
	}
}

func TestGroupOverlapping_StableOnEqualStart(t *testing.T) {
	x := ev("x", 9, 0, 10, 0)
	y := ev("y", 9, 0, 9, 30)
	got := LayoutDay([]model.Event{x, y}, 45)
	if !reflect.DeepEqual(ids(got), []string{"x", "y"}) {
		t.Errorf("order = %v, want input order for equal starts", ids(got))
	}
	got = LayoutDay([]model.Event{y, x}, 45)
	if !reflect.DeepEqual(ids(got), []string{"y", "x"}) {
		t.Errorf("order = %v, want input order for equal starts", ids(got))
	}
}

func TestLayoutDay_VerticalPlacement(t *testing.T) {
	zoom := ClampZoom(1.5)
	got := LayoutDay([]model.Event{ev("a", 9, 30, 11, 0)}, zoom.HourHeight())
	if len(got) != 1 {
		t.Fatalf("expected 1 position, got %d", len(got))
	}
	h := 45 * 1.5
	if !approx(got[0].Top, 9.5*h) {
		t.Errorf("top = %v, want %v", got[0].Top, 9.5*h)
	}
	if !approx(got[0].Height, 1.5*h) {
		t.Errorf("height = %v, want %v", got[0].Height, 1.5*h)
	}
}

func TestLayoutDay_InvertedRangeGivesNegativeHeight(t *testing.T) {
	got := LayoutDay([]model.Event{ev("a", 10, 0, 9, 0)}, 45)
	if len(got) != 1 || !approx(got[0].Height, -45) {
		t.Fatalf("expected a single event with height -45, got %+v", got)
	}
}

func TestLayoutDay_Dedupe(t *testing.T) {
	first := ev("same", 9, 0, 10, 0)
	second := ev("same", 14, 0, 15, 0)
	got := LayoutDay([]model.Event{first, second}, 45)
	if len(got) != 1 {
		t.Fatalf("expected 1 position, got %d", len(got))
	}
	if !got[0].Event.StartTime.Equal(first.StartTime) {
		t.Error("expected the first-encountered duplicate to be kept")
	}
}

func TestDedupe_FallbackKey(t *testing.T) {
	a := ev("", 9, 0, 10, 0)
	a.Name = "Lunch"
	b := a
	c := a
	c.StartTime = at(12, 0)

	got := Dedupe([]model.Event{a, b, c})
	if len(got) != 2 {
		t.Fatalf("expected 2 events after dedupe, got %d", len(got))
	}
}

func TestLayoutHour_ClipsToBucket(t *testing.T) {
	events := []model.Event{
		ev("long", 8, 30, 10, 15), // covers the whole 9 o'clock bucket
		ev("late", 9, 40, 11, 0),  // starts inside the bucket
		ev("early", 9, 0, 9, 20),  // ends inside the bucket
	}
	got := LayoutHour(events, 9)
	if len(got) != 3 {
		t.Fatalf("expected 3 positions, got %d", len(got))
	}

	byID := map[string]Positioned{}
	for _, p := range got {
		byID[p.Event.ID] = p
	}

	tests := []struct {
		id          string
		top, height float64
	}{
		{"long", 0, 60},
		{"late", 40, 20},
		{"early", 0, 20},
	}
	for _, tt := range tests {
		p := byID[tt.id]
		if !approx(p.Top, tt.top) || !approx(p.Height, tt.height) {
			t.Errorf("%s: top=%v height=%v, want %v and %v", tt.id, p.Top, p.Height, tt.top, tt.height)
		}
	}
}

func TestLayoutHour_IgnoresZoomScale(t *testing.T) {
	a := LayoutHour([]model.Event{ev("a", 9, 15, 9, 45)}, 9)
	if !approx(a[0].Top, 15) || !approx(a[0].Height, 30) {
		t.Errorf("top=%v height=%v, want 15 and 30", a[0].Top, a[0].Height)
	}
}

func TestLayoutDay_Idempotent(t *testing.T) {
	events := []model.Event{ev("a", 9, 0, 10, 30), ev("b", 10, 0, 11, 0), ev("c", 13, 0, 14, 0)}
	first := LayoutDay(events, 45)
	second := LayoutDay(events, 45)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("layout differs between identical calls")
	}
}

func TestLayoutDay_DoesNotReorderInput(t *testing.T) {
	events := []model.Event{ev("b", 11, 0, 12, 0), ev("a", 9, 0, 10, 0)}
	LayoutDay(events, 45)
	if events[0].ID != "b" {
		t.Fatal("input slice was reordered")
	}
}
