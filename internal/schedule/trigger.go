package schedule

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const triggerTimeout = 5 * time.Minute

var (
	errMissingGate      = errors.New("schedule: gate is required")
	errMissingCrawlURL  = errors.New("schedule: crawl trigger url is required")
	errMissingNotifyURL = errors.New("schedule: notify trigger url is required")
)

// TriggerConfig describes the settings of the time-based trigger.
type TriggerConfig struct {
	CronSpec   string
	Location   *time.Location
	Gate       *Gate
	CrawlURL   string
	NotifyURL  string
	HTTPClient *http.Client
	Logger     *zap.Logger
	Clock      func() time.Time
}

// Trigger fires the crawl endpoint and then, only after it completes, the
// notify endpoint on a cron cadence. Errors are logged and left for the next
// tick; the trigger itself never retries.
type Trigger struct {
	scheduler  gocron.Scheduler
	gate       *Gate
	crawlURL   string
	notifyURL  string
	httpClient *http.Client
	logger     *zap.Logger
	clock      func() time.Time
}

// NewTrigger constructs the trigger and registers the cron job.
func NewTrigger(cfg TriggerConfig) (*Trigger, error) {
	if cfg.Gate == nil {
		return nil, errMissingGate
	}
	if cfg.CrawlURL == "" {
		return nil, errMissingCrawlURL
	}
	if cfg.NotifyURL == "" {
		return nil, errMissingNotifyURL
	}
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: triggerTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(location))
	if err != nil {
		return nil, fmt.Errorf("schedule: creating scheduler: %w", err)
	}

	trigger := &Trigger{
		scheduler:  scheduler,
		gate:       cfg.Gate,
		crawlURL:   cfg.CrawlURL,
		notifyURL:  cfg.NotifyURL,
		httpClient: httpClient,
		logger:     logger,
		clock:      clock,
	}

	_, err = scheduler.NewJob(
		gocron.CronJob(cfg.CronSpec, false),
		gocron.NewTask(trigger.Tick),
		gocron.WithName("crawl-then-notify"),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule: registering cron job %q: %w", cfg.CronSpec, err)
	}

	return trigger, nil
}

// Start begins the cron schedule and fires one immediate tick, mirroring the
// run-on-startup behavior of the deployment this replaces.
func (t *Trigger) Start() {
	t.scheduler.Start()
	go t.Tick()
}

// Stop shuts the scheduler down, waiting for a running tick to finish.
func (t *Trigger) Stop() error {
	return t.scheduler.Shutdown()
}

// Tick runs one gated crawl-then-notify sequence.
func (t *Trigger) Tick() {
	if allowed, reason := t.gate.Allows(t.clock()); !allowed {
		t.logger.Info("scheduled tick skipped", zap.String("reason", reason))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
	defer cancel()

	t.logger.Info("scheduled tick starting")
	if err := t.callEndpoint(ctx, t.crawlURL); err != nil {
		t.logger.Error("crawl trigger failed", zap.Error(err))
		return
	}
	if err := t.callEndpoint(ctx, t.notifyURL); err != nil {
		t.logger.Error("notify trigger failed", zap.Error(err))
		return
	}
	t.logger.Info("scheduled tick complete")
}

func (t *Trigger) callEndpoint(ctx context.Context, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("schedule: building request for %s: %w", endpoint, err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("schedule: calling %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("schedule: %s returned status %d: %s", endpoint, resp.StatusCode, string(detail))
	}
	return nil
}
