package ics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"planner/internal/model"
)

func calendar(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}, lines...)
	all = append(all, "END:VCALENDAR", "")
	return []byte(strings.Join(all, "\r\n"))
}

var sample = calendar(
	"BEGIN:VEVENT",
	"UID:1",
	"DTSTAMP:20240101T000000Z",
	"SUMMARY:Weekly sync",
	"DTSTART:20240108T090000Z",
	"DTEND:20240108T100000Z",
	"RRULE:FREQ=WEEKLY;BYDAY=MO",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:2",
	"SUMMARY:Holiday",
	"DTSTART;VALUE=DATE:20240101",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:3",
	"SUMMARY:Every other day",
	"DTSTART:20240101T080000",
	"DTEND:20240101T083000",
	"RRULE:FREQ=DAILY;INTERVAL=2",
	"COLOR:red",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:1",
	"RECURRENCE-ID:20240115T090000Z",
	"SUMMARY:Moved sync",
	"DTSTART:20240115T110000Z",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:4",
	"DTSTART:20240101T080000Z",
	"END:VEVENT",
)

func TestParse(t *testing.T) {
	reqs, err := Parse(sample, time.UTC)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(reqs) != 3 {
		t.Fatalf("got %d events, want 3: %+v", len(reqs), reqs)
	}

	sync := reqs[0]
	if sync.Name != "Weekly sync" || sync.Recurrence != model.RecurrenceWeekly || sync.Color != DefaultColor {
		t.Errorf("weekly sync = %+v", sync)
	}
	if !sync.StartTime.Equal(time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)) ||
		!sync.Date.Equal(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("weekly sync times = %v / %v", sync.StartTime, sync.Date)
	}

	holiday := reqs[1]
	if !holiday.StartTime.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) ||
		!holiday.EndTime.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("all-day span = %v .. %v", holiday.StartTime, holiday.EndTime)
	}

	other := reqs[2]
	if other.Recurrence != model.RecurrenceNone {
		t.Errorf("INTERVAL=2 should not map to daily, got %q", other.Recurrence)
	}
	if other.Color != "red" || other.EndTime.Sub(other.StartTime) != 30*time.Minute {
		t.Errorf("every other day = %+v", other)
	}
}

func TestParseFloatingTimesUseLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	reqs, err := Parse(sample, loc)
	if err != nil {
		t.Fatal(err)
	}
	other := reqs[2]
	if other.StartTime.Hour() != 8 || other.StartTime.Location() != loc {
		t.Errorf("floating start = %v", other.StartTime)
	}
	// 09:00Z is 06:00 in BRT.
	if reqs[0].StartTime.Hour() != 6 {
		t.Errorf("UTC start not converted: %v", reqs[0].StartTime)
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	if _, err := Parse([]byte("  "), time.UTC); err == nil {
		t.Error("expected error for empty body")
	}
}

func TestRRule(t *testing.T) {
	tests := []struct {
		in   model.Recurrence
		want string
	}{
		{model.RecurrenceNone, ""},
		{"bogus", ""},
		{model.RecurrenceDaily, "FREQ=DAILY"},
		{model.RecurrenceWeekly, "FREQ=WEEKLY"},
		{model.RecurrenceMonthly, "FREQ=MONTHLY"},
		{model.RecurrenceYearly, "FREQ=YEARLY"},
	}
	for _, tt := range tests {
		got := RRule(tt.in)
		if tt.want == "" {
			if got != "" {
				t.Errorf("RRule(%q) = %q, want empty", tt.in, got)
			}
			continue
		}
		if !strings.Contains(got, tt.want) || !strings.Contains(got, "COUNT=101") {
			t.Errorf("RRule(%q) = %q", tt.in, got)
		}
	}
}

func TestExportRoundTrip(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	events := []model.Event{
		{
			ID: "a", Name: "Standup", Color: "#2196f3", Date: day,
			StartTime: day.Add(9 * time.Hour), EndTime: day.Add(9*time.Hour + 15*time.Minute),
			Recurrence: model.RecurrenceWeekly, Location: "Room 1", Notes: "daily sync",
		},
		{
			ID: "b", Name: "Dentist", Color: "#f44336", Date: day,
			StartTime: day.Add(14 * time.Hour), EndTime: day.Add(15 * time.Hour),
		},
	}

	out := Export(events, ExportOptions{Name: "Team"})
	for _, want := range []string{"METHOD:PUBLISH", "UID:a", "SUMMARY:Standup", "COLOR:#2196f3", "FREQ=WEEKLY", "LOCATION:Room 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "BEGIN:VEVENT") != 2 || strings.Count(out, "RRULE") != 1 {
		t.Errorf("unexpected VEVENT/RRULE counts:\n%s", out)
	}

	back, err := Parse([]byte(out), time.UTC)
	if err != nil {
		t.Fatalf("Parse(export): %v", err)
	}
	if len(back) != 2 {
		t.Fatalf("round trip gave %d events", len(back))
	}
	if back[0].Name != "Standup" || back[0].Recurrence != model.RecurrenceWeekly || back[0].Notes != "daily sync" {
		t.Errorf("first event = %+v", back[0])
	}
	if !back[1].StartTime.Equal(events[1].StartTime) || !back[1].EndTime.Equal(events[1].EndTime) {
		t.Errorf("second event times = %v .. %v", back[1].StartTime, back[1].EndTime)
	}
}

func TestExportMonthEndSeriesAsRDates(t *testing.T) {
	day := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)
	ev := model.Event{
		ID: "rent", Name: "Rent", Color: "#2196f3", Date: day,
		StartTime: day.Add(9 * time.Hour), EndTime: day.Add(10 * time.Hour),
		Recurrence: model.RecurrenceMonthly,
	}

	out := Export([]model.Event{ev}, ExportOptions{Location: time.UTC})
	if strings.Contains(out, "RRULE") {
		t.Errorf("month-end series exported with an RRULE:\n%s", out)
	}
	for _, want := range []string{"X-PLANNER-RECURRENCE:monthly", "RDATE:20240302T090000Z", "RDATE:20240402T090000Z"} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q", want)
		}
	}
	if strings.Contains(out, "20240331") {
		t.Error("export lists Mar 31, which the expansion never produces")
	}
	if n := strings.Count(out, "RDATE:"); n != 100 {
		t.Errorf("RDATE count = %d, want 100", n)
	}

	back, err := Parse([]byte(out), time.UTC)
	if err != nil || len(back) != 1 {
		t.Fatalf("Parse(export) = %v, %v", back, err)
	}
	if back[0].Recurrence != model.RecurrenceMonthly || !back[0].Date.Equal(day) {
		t.Errorf("round trip = %s on %v", back[0].Recurrence, back[0].Date)
	}
}

func TestNeedsRDates(t *testing.T) {
	at := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	tests := []struct {
		name  string
		date  time.Time
		start time.Time
		rec   model.Recurrence
		want  bool
	}{
		{"monthly mid-month", at(2024, 1, 15), at(2024, 1, 15).Add(9 * time.Hour), model.RecurrenceMonthly, false},
		{"monthly day 29", at(2024, 1, 29), at(2024, 1, 29).Add(9 * time.Hour), model.RecurrenceMonthly, true},
		{"yearly leap day", at(2024, 2, 29), at(2024, 2, 29).Add(9 * time.Hour), model.RecurrenceYearly, true},
		{"weekly day 31", at(2024, 1, 31), at(2024, 1, 31).Add(9 * time.Hour), model.RecurrenceWeekly, false},
		{"start on another day", at(2024, 1, 10), at(2024, 1, 11).Add(9 * time.Hour), model.RecurrenceDaily, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := model.Event{Date: tt.date, StartTime: tt.start, EndTime: tt.start.Add(time.Hour), Recurrence: tt.rec}
			if got := needsRDates(ev); got != tt.want {
				t.Errorf("needsRDates = %v, want %v", got, tt.want)
			}
		})
	}
}

type fakeCreator struct {
	reject  string
	n       int
	batches int
	err     error
}

func (f *fakeCreator) CreateBatch(_ context.Context, reqs []model.CreateEventRequest) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches++
	ids := make([]string, len(reqs))
	for i, req := range reqs {
		if req.Name == f.reject {
			continue
		}
		f.n++
		ids[i] = req.Name
	}
	return ids, nil
}

func TestImport(t *testing.T) {
	c := &fakeCreator{reject: "Holiday"}
	res, err := Import(context.Background(), c, sample, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Imported) != 2 || res.Failed != 1 || c.n != 2 {
		t.Errorf("ImportResult = %+v", res)
	}
	if c.batches != 1 {
		t.Errorf("creator called %d times, want one batch", c.batches)
	}

	denied := &fakeCreator{err: errors.New("not signed in")}
	if _, err := Import(context.Background(), denied, sample, time.UTC); err == nil {
		t.Error("batch failure should fail the import")
	}

	c.n = 0
	res, err = Import(context.Background(), c, []byte("not a calendar"), time.UTC)
	if err == nil && (len(res.Imported) != 0 || c.n != 0) {
		t.Errorf("garbage body imported events: %+v", res)
	}
}

func TestFetcherConditionalGet(t *testing.T) {
	var hits, notModified atomic.Int32
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write(sample)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client())
	ctx := context.Background()

	first, err := f.Fetch(ctx, srv.URL+"/team.ics")
	if err != nil || first.FromCache || len(first.Body) == 0 {
		t.Fatalf("first fetch = %+v, %v", first, err)
	}

	second, err := f.Fetch(ctx, srv.URL+"/team.ics")
	if err != nil || !second.FromCache || notModified.Load() != 1 {
		t.Fatalf("second fetch = %+v, %v", second, err)
	}
	if string(second.Body) != string(first.Body) {
		t.Error("cached body differs from the original")
	}

	fail.Store(true)
	third, err := f.Fetch(ctx, srv.URL+"/team.ics")
	if err != nil || !third.FromCache {
		t.Errorf("fetch during outage = %+v, %v", third, err)
	}
	if _, err := f.Fetch(ctx, srv.URL+"/other.ics"); err == nil {
		t.Error("uncached URL during outage should fail")
	}
	if hits.Load() != 4 {
		t.Errorf("server hits = %d", hits.Load())
	}
}

func TestFetcherRejectsNonHTTP(t *testing.T) {
	f := NewFetcher(nil)
	for _, u := range []string{"file:///etc/passwd", "ftp://example.com/a.ics", "not a url", ""} {
		if _, err := f.Fetch(context.Background(), u); err == nil {
			t.Errorf("Fetch(%q) should fail", u)
		}
	}
}

func TestRedactURL(t *testing.T) {
	if got := redactURL("https://example.com/private/abc.ics?token=1"); got != "https://example.com/...(redacted)" {
		t.Errorf("redactURL = %q", got)
	}
	if got := redactURL("nonsense"); got != "ics://...(redacted)" {
		t.Errorf("redactURL = %q", got)
	}
}

func TestRejectPrivate(t *testing.T) {
	tests := []struct {
		addr    string
		blocked bool
	}{
		{"127.0.0.1:80", true},
		{"10.1.2.3:443", true},
		{"192.168.0.10:443", true},
		{"172.16.5.5:443", true},
		{"169.254.169.254:80", true},
		{"100.64.0.1:443", true},
		{"0.0.0.0:80", true},
		{"[::1]:443", true},
		{"[fd00:ec2::254]:80", true},
		{"[::ffff:127.0.0.1]:80", true},
		{"93.184.216.34:443", false},
		{"[2606:4700::1111]:443", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := rejectPrivate("tcp", tt.addr, nil)
			if tt.blocked && !errors.Is(err, errPrivateAddress) {
				t.Errorf("rejectPrivate(%s) = %v, want errPrivateAddress", tt.addr, err)
			}
			if !tt.blocked && err != nil {
				t.Errorf("rejectPrivate(%s) = %v", tt.addr, err)
			}
		})
	}
}

func TestDefaultFetcherRefusesLoopback(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(sample)
	}))
	defer srv.Close()

	_, err := NewFetcher(nil).Fetch(context.Background(), srv.URL+"/team.ics")
	if !errors.Is(err, errPrivateAddress) {
		t.Errorf("Fetch(loopback) = %v, want errPrivateAddress", err)
	}
	if hits.Load() != 0 {
		t.Errorf("server hits = %d", hits.Load())
	}
}

func TestFetcherRejectsOversizedFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(sample)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client())
	f.maxSize = 16
	if _, err := f.Fetch(context.Background(), srv.URL); !errors.Is(err, errFeedTooLarge) {
		t.Errorf("Fetch(oversized) = %v, want errFeedTooLarge", err)
	}

	f.maxSize = int64(len(sample))
	res, err := f.Fetch(context.Background(), srv.URL)
	if err != nil || len(res.Body) != len(sample) {
		t.Errorf("feed of exactly the limit = %d bytes, %v", len(res.Body), err)
	}
}
