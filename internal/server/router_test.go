package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/prherald/prherald/internal/registry"
)

type stubCrawler struct {
	calls int
	err   error
}

func (s *stubCrawler) RunCycle(context.Context) error {
	s.calls++
	return s.err
}

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) Run(context.Context) error {
	s.calls++
	return s.err
}

func newTestHandler(t *testing.T) (http.Handler, *stubCrawler, *stubNotifier, *registry.Service) {
	t.Helper()

	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&registry.Repository{}, &registry.Channel{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	registryService, err := registry.NewService(registry.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct registry: %v", err)
	}

	crawlerStub := &stubCrawler{}
	notifierStub := &stubNotifier{}
	handler, err := NewHTTPHandler(Dependencies{
		Crawler:  crawlerStub,
		Notifier: notifierStub,
		Registry: registryService,
	})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}
	return handler, crawlerStub, notifierStub, registryService
}

func TestCrawlEndpointSuccess(t *testing.T) {
	handler, crawlerStub, _, _ := newTestHandler(t)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/crawl", nil)
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `"success":true`) {
		t.Fatalf("unexpected body: %s", recorder.Body.String())
	}
	if crawlerStub.calls != 1 {
		t.Fatalf("expected one crawl invocation, got %d", crawlerStub.calls)
	}
}

func TestCrawlEndpointFailure(t *testing.T) {
	handler, crawlerStub, _, _ := newTestHandler(t)
	crawlerStub.err = errors.New("upstream 502")

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/crawl", nil)
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "upstream 502") {
		t.Fatalf("error payload must carry the cause, got: %s", recorder.Body.String())
	}
}

func TestNotifyEndpoint(t *testing.T) {
	handler, _, notifierStub, _ := newTestHandler(t)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/notify", nil)
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if notifierStub.calls != 1 {
		t.Fatalf("expected one notify invocation, got %d", notifierStub.calls)
	}
}

func TestAddRepositoryEndpoint(t *testing.T) {
	handler, _, _, registryService := newTestHandler(t)

	body := strings.NewReader(`{"owner":"octo-org","repo":"widgets"}`)
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/repositories", body)
	request.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	repositories, err := registryService.ListActiveRepositories(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repositories) != 1 || repositories[0].Owner != "octo-org" {
		t.Fatalf("unexpected repositories: %#v", repositories)
	}
}

func TestAddRepositoryRejectsBlankOwner(t *testing.T) {
	handler, _, _, _ := newTestHandler(t)

	body := strings.NewReader(`{"owner":"  ","repo":"widgets"}`)
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/repositories", body)
	request.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestDeactivateRepositoryEndpoint(t *testing.T) {
	handler, _, _, registryService := newTestHandler(t)
	if err := registryService.AddRepository(context.Background(), "octo-org", "widgets"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := strings.NewReader(`{"owner":"octo-org","repo":"widgets"}`)
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/repositories/deactivate", body)
	request.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	repositories, err := registryService.ListActiveRepositories(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repositories) != 0 {
		t.Fatalf("expected no active repositories, got %d", len(repositories))
	}
}

func TestChannelEndpoints(t *testing.T) {
	handler, _, _, _ := newTestHandler(t)

	body := strings.NewReader(`{"channel_id":"town-square"}`)
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/channels", body)
	request.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	request = httptest.NewRequest(http.MethodGet, "/api/channels", nil)
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "town-square") {
		t.Fatalf("unexpected body: %s", recorder.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler, _, _, _ := newTestHandler(t)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}
