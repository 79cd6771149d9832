package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/prherald/prherald/internal/ledger"
	"github.com/prherald/prherald/internal/mattermost"
)

// Poster is the chat transport capability the engine consumes.
type Poster interface {
	PostAttachment(ctx context.Context, channelID, title string, fields []mattermost.Field) error
	PostText(ctx context.Context, channelID, message string) error
}

// ChannelSource resolves the channels that currently receive notifications.
type ChannelSource interface {
	ListActiveChannels(ctx context.Context) ([]string, error)
}

var (
	errMissingPoster    = errors.New("notifier: poster is required")
	errMissingChannels  = errors.New("notifier: channel source is required")
	errMissingEvents    = errors.New("notifier: pr event store is required")
	errMissingReviews   = errors.New("notifier: review store is required")
	errMissingWorkflows = errors.New("notifier: workflow store is required")
)

// ServiceConfig describes the dependencies of the notification engine.
type ServiceConfig struct {
	Poster    Poster
	Channels  ChannelSource
	Events    *ledger.PREventStore
	Reviews   *ledger.ReviewStore
	Workflows *ledger.WorkflowStore
	Location  *time.Location
	Logger    *zap.Logger

	// StrictDispatch leaves a row unnotified when every channel dispatch for
	// it fails, so the row is retried on the next pass. The default lenient
	// policy flips the flag after the dispatch attempt regardless, trading
	// possible drops on total transport outage for no duplicate storms.
	StrictDispatch bool
}

// Service scans the ledgers for unannounced rows and dispatches one message
// per row per active channel.
//
// Delivery is at-least-once: the notified flag flips only after dispatch is
// attempted, so a crash between dispatch and flag update re-delivers the row
// on the next pass. That duplicate is accepted.
type Service struct {
	poster    Poster
	channels  ChannelSource
	events    *ledger.PREventStore
	reviews   *ledger.ReviewStore
	workflows *ledger.WorkflowStore
	location  *time.Location
	logger    *zap.Logger
	strict    bool
}

// NewService constructs the notification engine.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Poster == nil {
		return nil, errMissingPoster
	}
	if cfg.Channels == nil {
		return nil, errMissingChannels
	}
	if cfg.Events == nil {
		return nil, errMissingEvents
	}
	if cfg.Reviews == nil {
		return nil, errMissingReviews
	}
	if cfg.Workflows == nil {
		return nil, errMissingWorkflows
	}
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		poster:    cfg.Poster,
		channels:  cfg.Channels,
		events:    cfg.Events,
		reviews:   cfg.Reviews,
		workflows: cfg.Workflows,
		location:  location,
		logger:    logger,
		strict:    cfg.StrictDispatch,
	}, nil
}

// Run executes the five ledger scans. The scans are independent; a failure
// in one is logged and does not block the others. The aggregate error covers
// every scan that could not complete.
func (s *Service) Run(ctx context.Context) error {
	scans := []struct {
		name string
		run  func(context.Context) error
	}{
		{name: "new_prs", run: s.notifyNewPRs},
		{name: "pr_updates", run: s.notifyPRUpdates},
		{name: "reviews", run: s.notifyReviews},
		{name: "merged_prs", run: s.notifyMergedPRs},
		{name: "workflow_failures", run: s.notifyWorkflowFailures},
	}

	var failures []error
	for _, scan := range scans {
		if err := scan.run(ctx); err != nil {
			s.logger.Error("notification scan failed",
				zap.String("scan", scan.name),
				zap.Error(err))
			failures = append(failures, fmt.Errorf("%s: %w", scan.name, err))
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("notifier: pass incomplete: %w", errors.Join(failures...))
	}

	s.announcePassComplete(ctx)
	return nil
}

func (s *Service) notifyNewPRs(ctx context.Context) error {
	events, err := s.events.PendingCreated(ctx)
	if err != nil {
		return err
	}
	for _, event := range events {
		title, fields := formatCreated(event, s.location)
		delivered := s.dispatch(ctx, title, fields)
		if err := s.finishRow(ctx, delivered, event.ID, s.events.MarkNotified); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) notifyPRUpdates(ctx context.Context) error {
	events, err := s.events.PendingUpdates(ctx)
	if err != nil {
		return err
	}
	for _, event := range events {
		title, fields := formatUpdate(event, s.location)
		delivered := s.dispatch(ctx, title, fields)
		if err := s.finishRow(ctx, delivered, event.ID, s.events.MarkNotified); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) notifyReviews(ctx context.Context) error {
	reviews, err := s.reviews.Pending(ctx)
	if err != nil {
		return err
	}
	for _, review := range reviews {
		title, fields := formatReview(review, s.location)
		delivered := s.dispatch(ctx, title, fields)
		if err := s.finishRow(ctx, delivered, review.ID, s.reviews.MarkNotified); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) notifyMergedPRs(ctx context.Context) error {
	events, err := s.events.PendingMerged(ctx)
	if err != nil {
		return err
	}
	for _, event := range events {
		title, fields := formatMerged(event, s.location)
		delivered := s.dispatch(ctx, title, fields)
		if err := s.finishRow(ctx, delivered, event.ID, s.events.MarkNotified); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) notifyWorkflowFailures(ctx context.Context) error {
	events, err := s.workflows.Pending(ctx)
	if err != nil {
		return err
	}
	for _, event := range events {
		title, fields := formatWorkflowFailure(event, s.location)
		delivered := s.dispatch(ctx, title, fields)
		if err := s.finishRow(ctx, delivered, event.ID, s.workflows.MarkNotified); err != nil {
			return err
		}
	}
	return nil
}

// dispatch sends one message per active channel and reports whether at least
// one channel accepted it (or no channel was configured). Per-channel
// failures are logged and never block the remaining channels.
func (s *Service) dispatch(ctx context.Context, title string, fields []mattermost.Field) bool {
	channels, err := s.channels.ListActiveChannels(ctx)
	if err != nil {
		s.logger.Error("resolving active channels failed", zap.Error(err))
		return false
	}
	if len(channels) == 0 {
		return true
	}

	delivered := false
	for _, channelID := range channels {
		if err := s.poster.PostAttachment(ctx, channelID, title, fields); err != nil {
			s.logger.Error("dispatch failed",
				zap.String("channel_id", channelID),
				zap.String("title", title),
				zap.Error(err))
			continue
		}
		delivered = true
	}
	return delivered
}

// finishRow flips the notified flag after the dispatch attempt. Under the
// strict policy a row whose every dispatch failed stays pending for retry.
func (s *Service) finishRow(ctx context.Context, delivered bool, id uint64, mark func(context.Context, uint64) error) error {
	if s.strict && !delivered {
		return nil
	}
	return mark(ctx, id)
}

// announcePassComplete posts the plain text end-of-pass message to every
// active channel. Failures here are cosmetic and only logged.
func (s *Service) announcePassComplete(ctx context.Context) {
	channels, err := s.channels.ListActiveChannels(ctx)
	if err != nil {
		s.logger.Error("resolving active channels failed", zap.Error(err))
		return
	}
	for _, channelID := range channels {
		if err := s.poster.PostText(ctx, channelID, passCompleteMessage); err != nil {
			s.logger.Error("pass-complete message failed",
				zap.String("channel_id", channelID),
				zap.Error(err))
		}
	}
}
