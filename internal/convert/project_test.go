package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ncruces/go-strftime"

	"perpetcal/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestProject(t *testing.T) {
	start := time.Date(2024, 3, 14, 15, 9, 26, 0, time.UTC)
	due := time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC)

	items := []model.Item{
		{Start: &start, Due: &due, Summary: "Pi day", Description: ptr("eat pie"), Location: ptr("")},
		{Summary: "Untitled TODO"},
	}

	got := Project(items, "%Y-%m-%d %H:%M")
	if len(got) != 2 {
		t.Fatalf("got %d items", len(got))
	}

	if got[0].Start == nil || *got[0].Start != "2024-03-14 15:09" {
		t.Errorf("start = %v", got[0].Start)
	}
	if got[0].Due == nil || *got[0].Due != "2024-12-31 23:59" {
		t.Errorf("due = %v", got[0].Due)
	}
	if got[0].Summary != "Pi day" || *got[0].Description != "eat pie" || *got[0].Location != "" {
		t.Errorf("text fields not copied: %+v", got[0])
	}

	if got[1].Start != nil || got[1].Due != nil || got[1].Description != nil || got[1].Location != nil {
		t.Errorf("absent values should stay nil: %+v", got[1])
	}
}

func TestProjectPatterns(t *testing.T) {
	ts := time.Date(2024, 7, 4, 9, 5, 7, 0, time.UTC)
	tests := []struct {
		pattern string
		want    string
	}{
		{"%Y-%m-%d %H:%M", "2024-07-04 09:05"},
		{"%d/%m/%Y", "04/07/2024"},
		{"%H:%M:%S", "09:05:07"},
		{"%a %b %e", "Thu Jul  4"},
		{"%A, %B %d", "Thursday, July 04"},
		{"%I:%M %p", "09:05 AM"},
		{"%Y-%m-%dT%H:%M:%SZ", "2024-07-04T09:05:07Z"},
		{"no specifiers", "no specifiers"},
		{"100%%", "100%"},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got := Project([]model.Item{{Start: &ts}}, tt.pattern)
			if *got[0].Start != tt.want {
				t.Errorf("got %q, want %q", *got[0].Start, tt.want)
			}
		})
	}
}

func TestProjectFormatsInUTC(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("zone database unavailable: %v", err)
	}
	ts := time.Date(2024, 7, 4, 12, 0, 0, 0, berlin)
	got := Project([]model.Item{{Start: &ts}}, "%H:%M")
	if *got[0].Start != "10:00" {
		t.Errorf("got %q, want UTC rendering 10:00", *got[0].Start)
	}
}

func TestProjectRoundTrip(t *testing.T) {
	const pattern = "%Y-%m-%d %H:%M"
	instants := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1999, 12, 31, 23, 59, 0, 0, time.UTC),
		time.Date(2030, 6, 15, 8, 7, 0, 0, time.UTC),
	}
	for _, in := range instants {
		first := *Project([]model.Item{{Start: &in}}, pattern)[0].Start
		parsed, err := strftime.Parse(pattern, first)
		if err != nil {
			t.Fatalf("Parse(%q): %v", first, err)
		}
		second := *Project([]model.Item{{Start: &parsed}}, pattern)[0].Start
		if first != second {
			t.Errorf("round trip changed text: %q -> %q", first, second)
		}
	}
}

func TestProjectedJSONUsesNull(t *testing.T) {
	got := Project([]model.Item{{Summary: "bare"}}, DefaultPattern)
	b, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"start":null,"due":null,"summary":"bare","description":null,"location":null}]`
	if string(b) != want {
		t.Errorf("json = %s\nwant %s", b, want)
	}
}

func TestProjectEmpty(t *testing.T) {
	got := Project(nil, DefaultPattern)
	b, _ := json.Marshal(got)
	if string(b) != "[]" {
		t.Errorf("empty projection should encode as [], got %s", b)
	}
}
