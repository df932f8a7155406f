package web

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"perpetcal/internal/config"
	"perpetcal/internal/ics"
	appLog "perpetcal/internal/log"
	"perpetcal/internal/model"
	"perpetcal/internal/pipeline"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	appLog.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type stubRunner struct {
	got   model.Request
	items []model.Projected
	err   error
	panic bool
}

func (r *stubRunner) Run(ctx context.Context, req model.Request) ([]model.Projected, error) {
	if r.panic {
		panic("boom")
	}
	r.got = req
	return r.items, r.err
}

func str(s string) *string { return &s }

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Presets = []config.Preset{
		{Name: "team", Request: model.Request{
			Feed: "https://calendar.example.com/private/s3cr3t/basic.ics",
			TZID: "Europe/Berlin", Sort: true, Limit: 3,
		}},
	}
	return cfg
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestConvertSuccess(t *testing.T) {
	runner := &stubRunner{items: []model.Projected{
		{Start: str("2024-01-01 09:00"), Summary: "Standup", Location: str("Room 1")},
		{Summary: "Untitled TODO"},
	}}
	h := NewServer(testConfig(), runner).Handler()

	rec := do(t, h, http.MethodPost, "/ical",
		`{"feed":"https://example.com/a.ics","tzid":"UTC","dtfmt":"%H:%M","sort":true,"limit":2}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}

	body := rec.Body.String()
	if n := gjson.Get(body, "#").Int(); n != 2 {
		t.Fatalf("got %d items: %s", n, body)
	}
	if v := gjson.Get(body, "0.start").String(); v != "2024-01-01 09:00" {
		t.Errorf("0.start = %q", v)
	}
	if v := gjson.Get(body, "0.location").String(); v != "Room 1" {
		t.Errorf("0.location = %q", v)
	}
	for _, field := range []string{"1.start", "1.due", "1.description", "1.location"} {
		if r := gjson.Get(body, field); r.Type != gjson.Null || !r.Exists() {
			t.Errorf("%s should be an explicit null, got %s", field, r.Raw)
		}
	}

	want := model.Request{Feed: "https://example.com/a.ics", TZID: "UTC", DTFmt: "%H:%M", Sort: true, Limit: 2}
	if runner.got != want {
		t.Errorf("runner got %+v, want %+v", runner.got, want)
	}
}

func TestConvertEmptyResultIsArray(t *testing.T) {
	h := NewServer(testConfig(), &stubRunner{items: []model.Projected{}}).Handler()
	rec := do(t, h, http.MethodPost, "/ical", `{"feed":"https://example.com/a.ics","tzid":"UTC"}`)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("got %d %q", rec.Code, rec.Body)
	}
}

func TestConvertErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		err     error
		contain string
	}{
		{
			name:    "fetch error",
			body:    `{"feed":"https://example.com/a.ics","tzid":"UTC"}`,
			err:     &ics.FetchError{URL: "https://example.com/a.ics", Err: errors.New("unexpected status 404 Not Found")},
			contain: "Failed to fetch iCalendar feed, reason: unexpected status 404 Not Found",
		},
		{
			name:    "parse error",
			body:    `{"feed":"https://example.com/a.ics","tzid":"UTC"}`,
			err:     &ics.ParseError{Reason: "malformed calendar"},
			contain: "Failed to parse iCalendar: malformed calendar",
		},
		{
			name:    "malformed json",
			body:    `{"feed":`,
			contain: "invalid request body",
		},
		{
			name:    "negative limit",
			body:    `{"feed":"https://example.com/a.ics","tzid":"UTC","limit":-1}`,
			contain: "invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewServer(testConfig(), &stubRunner{err: tt.err}).Handler()
			rec := do(t, h, http.MethodPost, "/ical", tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
				t.Errorf("Content-Type = %q", ct)
			}
			body := rec.Body.String()
			if !strings.HasPrefix(body, "Failed to convert, reason: ") {
				t.Errorf("body = %q", body)
			}
			if !strings.Contains(body, tt.contain) {
				t.Errorf("body %q should contain %q", body, tt.contain)
			}
		})
	}
}

func TestConvertWithPipeline(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = io.WriteString(w, "BEGIN:VCALENDAR\r\n"+
			"BEGIN:VEVENT\r\nSUMMARY:Early\r\nDTSTART:20240101T080000Z\r\nEND:VEVENT\r\n"+
			"BEGIN:VEVENT\r\nSUMMARY:Late\r\nDTSTART:20240101T180000Z\r\nEND:VEVENT\r\n"+
			"BEGIN:VTODO\r\nEND:VTODO\r\n"+
			"END:VCALENDAR\r\n")
	}))
	defer feed.Close()

	svc := pipeline.NewService(ics.NewFetcher(ics.FetchOptions{}), pipeline.Options{})
	h := NewServer(testConfig(), svc).Handler()

	rec := do(t, h, http.MethodPost, "/ical",
		`{"feed":"`+feed.URL+`","tzid":"Asia/Tokyo","dtfmt":"%H:%M","sort":true,"limit":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	body := rec.Body.String()
	if got := gjson.Get(body, "#.summary").String(); got != `["Late","Early","Untitled TODO"]` {
		t.Errorf("summaries = %s", got)
	}
	if got := gjson.Get(body, "0.start").String(); got != "18:00" {
		t.Errorf("0.start = %q", got)
	}

	rec = do(t, h, http.MethodPost, "/ical", `{"feed":"`+feed.URL+`","tzid":"Not/AZone"}`)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "invalid timezone") {
		t.Errorf("invalid zone: %d %q", rec.Code, rec.Body)
	}
}

func TestConvertEncodeFailure(t *testing.T) {
	s := NewServer(testConfig(), &stubRunner{items: []model.Projected{{Summary: "x"}}})
	s.encode = func(any) ([]byte, error) { return nil, errors.New("unsupported value") }

	rec := do(t, s.Handler(), http.MethodPost, "/ical", `{"feed":"https://example.com/a.ics","tzid":"UTC"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); body != "Failed to encode JSON, reason: unsupported value" {
		t.Errorf("body = %q", body)
	}
}

func TestHealth(t *testing.T) {
	h := NewServer(testConfig(), &stubRunner{}).Handler()
	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if v := gjson.Get(rec.Body.String(), "status").String(); v != "ok" {
		t.Errorf("status = %q", v)
	}
	if !gjson.Get(rec.Body.String(), "time").Exists() {
		t.Error("time missing")
	}
}

func TestListPresetsRedactsFeed(t *testing.T) {
	h := NewServer(testConfig(), &stubRunner{}).Handler()
	rec := do(t, h, http.MethodGet, "/api/presets", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "s3cr3t") {
		t.Errorf("feed secret leaked: %s", body)
	}
	if v := gjson.Get(body, "0.feed").String(); v != "https://calendar.example.com/...(redacted)" {
		t.Errorf("0.feed = %q", v)
	}
	if v := gjson.Get(body, "0.limit").Int(); v != 3 {
		t.Errorf("0.limit = %d", v)
	}
}

func TestRunPreset(t *testing.T) {
	runner := &stubRunner{items: []model.Projected{{Summary: "x"}}}
	h := NewServer(testConfig(), runner).Handler()

	rec := do(t, h, http.MethodGet, "/api/presets/team", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if runner.got.TZID != "Europe/Berlin" || runner.got.Limit != 3 || !runner.got.Sort {
		t.Errorf("runner got %+v", runner.got)
	}

	rec = do(t, h, http.MethodGet, "/api/presets/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown preset status = %d", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	h := NewServer(testConfig(), &stubRunner{}).Handler()

	rec := do(t, h, http.MethodGet, "/health", "")
	if id := rec.Header().Get("X-Request-ID"); len(id) != 36 {
		t.Errorf("generated id = %q", id)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if id := rec.Header().Get("X-Request-ID"); id != "abc-123" {
		t.Errorf("propagated id = %q", id)
	}
}

func TestAccessLogAndRecovery(t *testing.T) {
	var buf bytes.Buffer
	appLog.SetOutput(&buf)
	defer appLog.SetOutput(io.Discard)

	h := NewServer(testConfig(), &stubRunner{panic: true}).Handler()
	rec := do(t, h, http.MethodPost, "/ical", `{"feed":"https://example.com/a.ics","tzid":"UTC"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}

	out := buf.String()
	if !strings.Contains(out, "panic recovered") {
		t.Errorf("panic not logged: %s", out)
	}
	if !strings.Contains(out, "http request") || !strings.Contains(out, "status=500") {
		t.Errorf("access log missing: %s", out)
	}
}
