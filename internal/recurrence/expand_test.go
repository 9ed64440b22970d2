package recurrence

import (
	"reflect"
	"strconv"
	"testing"
	"time"

	"planner/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func baseEvent(rec model.Recurrence, day time.Time) model.Event {
	return model.Event{
		ID:           "e1",
		Name:         "Standup",
		Color:        "#2196f3",
		Date:         day,
		StartTime:    day.Add(9 * time.Hour),
		EndTime:      day.Add(10 * time.Hour),
		Recurrence:   rec,
		UserID:       "u1",
		Participants: []string{"u2"},
	}
}

func TestExpand_NonRecurring(t *testing.T) {
	for _, rec := range []model.Recurrence{model.RecurrenceNone, "", "fortnightly"} {
		base := baseEvent(rec, date(2024, 1, 1))
		got := Expand(base, date(2030, 1, 1))
		if len(got) != 1 {
			t.Fatalf("recurrence %q: expected 1 entry, got %d", rec, len(got))
		}
		if !reflect.DeepEqual(got[0], base) {
			t.Errorf("recurrence %q: base was altered: %+v", rec, got[0])
		}
	}
}

func TestExpand_DailyCount(t *testing.T) {
	tests := []struct {
		days int
		want int
	}{
		{0, 1},
		{1, 2},
		{3, 4},
		{100, 101},
		{150, 101},
	}
	for _, tt := range tests {
		start := date(2024, 1, 1)
		got := Expand(baseEvent(model.RecurrenceDaily, start), start.AddDate(0, 0, tt.days))
		if len(got) != tt.want {
			t.Errorf("horizon +%d days: got %d entries, want %d", tt.days, len(got), tt.want)
			continue
		}
		for i := 1; i < len(got); i++ {
			if d := got[i].Date.Sub(got[i-1].Date); d != 24*time.Hour {
				t.Errorf("horizon +%d days: entries %d and %d are %v apart", tt.days, i-1, i, d)
			}
		}
	}
}

func TestExpand_WeeklyExample(t *testing.T) {
	base := baseEvent(model.RecurrenceWeekly, date(2024, 1, 1))
	got := Expand(base, date(2024, 1, 22))

	wantDays := []time.Time{date(2024, 1, 1), date(2024, 1, 8), date(2024, 1, 15), date(2024, 1, 22)}
	if len(got) != len(wantDays) {
		t.Fatalf("expected %d occurrences, got %d", len(wantDays), len(got))
	}
	for i, d := range wantDays {
		if !got[i].Date.Equal(d) {
			t.Errorf("occurrence %d date = %v, want %v", i, got[i].Date, d)
		}
		wantID := "e1"
		if i > 0 {
			wantID = "e1_" + strconv.FormatInt(d.UnixMilli(), 10)
		}
		if got[i].ID != wantID {
			t.Errorf("occurrence %d id = %q, want %q", i, got[i].ID, wantID)
		}
		if got[i].StartTime.Hour() != 9 || got[i].EndTime.Hour() != 10 {
			t.Errorf("occurrence %d times = %v - %v", i, got[i].StartTime, got[i].EndTime)
		}
	}
}

func TestExpand_MonthlyOverflow(t *testing.T) {
	base := baseEvent(model.RecurrenceMonthly, date(2023, 1, 31))
	got := Expand(base, date(2023, 4, 30))

	want := []time.Time{date(2023, 1, 31), date(2023, 3, 3), date(2023, 4, 3)}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i, d := range want {
		if !got[i].Date.Equal(d) {
			t.Errorf("entry %d date = %v, want %v", i, got[i].Date, d)
		}
	}
}

func TestExpand_YearlyLeapDay(t *testing.T) {
	base := baseEvent(model.RecurrenceYearly, date(2024, 2, 29))
	got := Expand(base, date(2026, 12, 31))

	want := []time.Time{date(2024, 2, 29), date(2025, 3, 1), date(2026, 3, 1)}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i, d := range want {
		if !got[i].Date.Equal(d) {
			t.Errorf("entry %d date = %v, want %v", i, got[i].Date, d)
		}
	}
}

func TestExpand_ClockOverlayZeroesSeconds(t *testing.T) {
	day := date(2024, 5, 6)
	base := baseEvent(model.RecurrenceDaily, day)
	base.StartTime = day.Add(9*time.Hour + 15*time.Minute + 42*time.Second)
	base.EndTime = day.Add(11*time.Hour + 5*time.Minute + 7*time.Second)

	got := Expand(base, day.AddDate(0, 0, 1))
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	occ := got[1]
	wantStart := time.Date(2024, 5, 7, 9, 15, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 5, 7, 11, 5, 0, 0, time.UTC)
	if !occ.StartTime.Equal(wantStart) || !occ.EndTime.Equal(wantEnd) {
		t.Errorf("occurrence times = %v - %v, want %v - %v", occ.StartTime, occ.EndTime, wantStart, wantEnd)
	}
	if !got[0].StartTime.Equal(base.StartTime) {
		t.Error("first entry must keep the base start time untouched")
	}
}

func TestExpand_HorizonBeforeAnchor(t *testing.T) {
	base := baseEvent(model.RecurrenceDaily, date(2024, 6, 1))
	if got := Expand(base, date(2024, 5, 1)); len(got) != 1 {
		t.Fatalf("expected only the base event, got %d entries", len(got))
	}
}

func TestExpand_DoesNotMutateBase(t *testing.T) {
	base := baseEvent(model.RecurrenceWeekly, date(2024, 1, 1))
	snapshot := base.Clone()

	got := Expand(base, date(2024, 2, 1))
	for i := 1; i < len(got); i++ {
		got[i].Participants[0] = "mutated"
		got[i].Name = "mutated"
	}
	if !reflect.DeepEqual(base, snapshot) {
		t.Fatalf("base changed: %+v", base)
	}
}

func TestExpand_Idempotent(t *testing.T) {
	base := baseEvent(model.RecurrenceMonthly, date(2024, 1, 15))
	a := Expand(base, date(2025, 1, 1))
	b := Expand(base, date(2025, 1, 1))
	if !reflect.DeepEqual(a, b) {
		t.Fatal("two expansions of the same input differ")
	}
}

func TestExpandAll_ReportsTruncation(t *testing.T) {
	daily := baseEvent(model.RecurrenceDaily, date(2024, 1, 1))
	single := baseEvent(model.RecurrenceNone, date(2024, 1, 2))
	single.ID = "e2"

	res := ExpandAll([]model.Event{daily, single}, date(2025, 1, 1))
	if len(res.Occurrences) != MaxIterations+2 {
		t.Errorf("expected %d occurrences, got %d", MaxIterations+2, len(res.Occurrences))
	}
	if !reflect.DeepEqual(res.Truncated, []string{"e1"}) {
		t.Errorf("Truncated = %v, want [e1]", res.Truncated)
	}

	// A horizon reached exactly on the last allowed step is not truncation.
	res = ExpandAll([]model.Event{daily}, date(2024, 1, 1).AddDate(0, 0, MaxIterations))
	if len(res.Truncated) != 0 {
		t.Errorf("unexpected truncation: %v", res.Truncated)
	}
}

func TestInLocation_KeepsWallClockAcrossDST(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// Monday 2024-03-25 09:00 in Berlin, sent as UTC instants with Date at
	// Berlin midnight.
	ev := baseEvent(model.RecurrenceWeekly, time.Date(2024, 3, 24, 23, 0, 0, 0, time.UTC))
	ev.StartTime = time.Date(2024, 3, 25, 8, 0, 0, 0, time.UTC)
	ev.EndTime = time.Date(2024, 3, 25, 9, 0, 0, 0, time.UTC)

	local := InLocation(ev, berlin)
	if !local.Date.Equal(time.Date(2024, 3, 25, 0, 0, 0, 0, berlin)) {
		t.Fatalf("Date = %v", local.Date)
	}

	occ := Expand(local, time.Date(2024, 4, 2, 0, 0, 0, 0, berlin))
	if len(occ) != 2 {
		t.Fatalf("got %d occurrences, want 2", len(occ))
	}
	// Summer time starts on 2024-03-31; the series stays at 09:00 local.
	next := occ[1].StartTime.In(berlin)
	if next.Weekday() != time.Monday || next.Hour() != 9 || next.Day() != 1 {
		t.Errorf("next start = %v", next)
	}
	if !occ[1].StartTime.Equal(time.Date(2024, 4, 1, 7, 0, 0, 0, time.UTC)) {
		t.Errorf("next start instant = %v", occ[1].StartTime.UTC())
	}

	if got := InLocation(ev, nil); !reflect.DeepEqual(got, ev) {
		t.Error("nil location changed the event")
	}
}
