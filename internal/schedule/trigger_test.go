package schedule

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type endpointRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *endpointRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	r.paths = append(r.paths, req.URL.Path)
	r.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (r *endpointRecorder) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func newTestTrigger(t *testing.T, recorder http.Handler, clock func() time.Time) *Trigger {
	t.Helper()

	server := httptest.NewServer(recorder)
	t.Cleanup(server.Close)

	gate, err := NewGate(time.UTC, []string{"2026-03-03"}, 9, 19)
	if err != nil {
		t.Fatalf("failed to build gate: %v", err)
	}
	trigger, err := NewTrigger(TriggerConfig{
		CronSpec:   "0 * * * *",
		Location:   time.UTC,
		Gate:       gate,
		CrawlURL:   server.URL + "/api/crawl",
		NotifyURL:  server.URL + "/api/notify",
		HTTPClient: server.Client(),
		Clock:      clock,
	})
	if err != nil {
		t.Fatalf("failed to build trigger: %v", err)
	}
	return trigger
}

func TestTickCallsCrawlThenNotify(t *testing.T) {
	recorder := &endpointRecorder{}
	// Monday inside business hours.
	clock := func() time.Time { return time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC) }
	trigger := newTestTrigger(t, recorder, clock)

	trigger.Tick()

	paths := recorder.recorded()
	if len(paths) != 2 {
		t.Fatalf("expected two calls, got %v", paths)
	}
	if paths[0] != "/api/crawl" || paths[1] != "/api/notify" {
		t.Fatalf("expected crawl before notify, got %v", paths)
	}
}

func TestTickSkipsOutsideGate(t *testing.T) {
	recorder := &endpointRecorder{}
	// Holiday configured in the fixture gate.
	clock := func() time.Time { return time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC) }
	trigger := newTestTrigger(t, recorder, clock)

	trigger.Tick()

	if paths := recorder.recorded(); len(paths) != 0 {
		t.Fatalf("gated tick must not call any endpoint, got %v", paths)
	}
}

func TestTickStopsAfterCrawlFailure(t *testing.T) {
	recorder := &endpointRecorder{}
	failing := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		recorder.mu.Lock()
		recorder.paths = append(recorder.paths, req.URL.Path)
		recorder.mu.Unlock()
		if req.URL.Path == "/api/crawl" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	clock := func() time.Time { return time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC) }
	trigger := newTestTrigger(t, failing, clock)

	trigger.Tick()

	paths := recorder.recorded()
	if len(paths) != 1 || paths[0] != "/api/crawl" {
		t.Fatalf("notify must not run after a failed crawl, got %v", paths)
	}
}

func TestNewTriggerValidatesConfig(t *testing.T) {
	gate, err := NewGate(time.UTC, nil, 9, 19)
	if err != nil {
		t.Fatalf("failed to build gate: %v", err)
	}

	if _, err := NewTrigger(TriggerConfig{CronSpec: "0 * * * *", CrawlURL: "x", NotifyURL: "y"}); err == nil {
		t.Fatalf("expected missing gate error")
	}
	if _, err := NewTrigger(TriggerConfig{CronSpec: "0 * * * *", Gate: gate, NotifyURL: "y"}); err == nil {
		t.Fatalf("expected missing crawl url error")
	}
	if _, err := NewTrigger(TriggerConfig{CronSpec: "not a cron", Gate: gate, CrawlURL: "x", NotifyURL: "y"}); err == nil {
		t.Fatalf("expected malformed cron spec error")
	}
}
