package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prherald/prherald/internal/githubapi"
	"github.com/prherald/prherald/internal/ledger"
	"github.com/prherald/prherald/internal/registry"
)

const (
	// defaultLookback bounds the first crawl when no watermark exists yet.
	defaultLookback = time.Hour
	// workflowLookbackSkew widens the workflow window so long runs that were
	// registered before the watermark still get a terminal verdict recorded.
	workflowLookbackSkew = 24 * time.Hour
)

// PlatformClient is the code-hosting capability the engine consumes.
type PlatformClient interface {
	ListPullRequests(ctx context.Context, owner, repo string) ([]githubapi.PullRequest, error)
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*githubapi.PullRequest, error)
	ListIssueComments(ctx context.Context, owner, repo string, number int) ([]githubapi.IssueComment, error)
	ListCommits(ctx context.Context, owner, repo string, number int) ([]githubapi.Commit, error)
	ListReviews(ctx context.Context, owner, repo string, number int) ([]githubapi.Review, error)
	ListWorkflowRuns(ctx context.Context, owner, repo string, createdSince time.Time) ([]githubapi.WorkflowRun, error)
}

// RepositorySource lists the repositories to crawl.
type RepositorySource interface {
	ListActiveRepositories(ctx context.Context) ([]registry.Repository, error)
}

var (
	errMissingPlatform   = errors.New("crawler: platform client is required")
	errMissingRepos      = errors.New("crawler: repository source is required")
	errMissingEvents     = errors.New("crawler: pr event store is required")
	errMissingReviews    = errors.New("crawler: review store is required")
	errMissingWorkflows  = errors.New("crawler: workflow store is required")
	errMissingWatermarks = errors.New("crawler: watermark store is required")
)

// ServiceConfig describes the dependencies of the crawl engine.
type ServiceConfig struct {
	Platform     PlatformClient
	Repositories RepositorySource
	Events       *ledger.PREventStore
	Reviews      *ledger.ReviewStore
	Workflows    *ledger.WorkflowStore
	Watermarks   *ledger.WatermarkStore
	Clock        func() time.Time
	Logger       *zap.Logger
}

// Service derives deduplicated ledger rows from polled platform state.
// It holds no state of its own between cycles; everything durable lives in
// the ledgers and the watermark history.
type Service struct {
	platform   PlatformClient
	repos      RepositorySource
	events     *ledger.PREventStore
	reviews    *ledger.ReviewStore
	workflows  *ledger.WorkflowStore
	watermarks *ledger.WatermarkStore
	clock      func() time.Time
	logger     *zap.Logger
}

// NewService constructs the crawl engine.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Platform == nil {
		return nil, errMissingPlatform
	}
	if cfg.Repositories == nil {
		return nil, errMissingRepos
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
	if cfg.Watermarks == nil {
		return nil, errMissingWatermarks
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		platform:   cfg.Platform,
		repos:      cfg.Repositories,
		events:     cfg.Events,
		reviews:    cfg.Reviews,
		workflows:  cfg.Workflows,
		watermarks: cfg.Watermarks,
		clock:      clock,
		logger:     logger,
	}, nil
}

// RunCycle executes one full crawl over every active repository.
//
// The since cutoff is read once at cycle start and passed to every detection
// step, so a single consistent window applies across the whole cycle. Each
// repository is crawled independently; a failure aborts that repository but
// the rest still make progress. The watermark advances only on a fully clean
// cycle, so a failed window is re-covered on the next run and the ledger
// dedup checks make the re-run idempotent.
func (s *Service) RunCycle(ctx context.Context) error {
	startedAt := s.clock()
	logger := s.logger.With(zap.String("cycle_id", uuid.NewString()))

	since, found, err := s.watermarks.Latest(ctx)
	if err != nil {
		return err
	}
	if !found {
		since = startedAt.Add(-defaultLookback)
	}

	repositories, err := s.repos.ListActiveRepositories(ctx)
	if err != nil {
		return err
	}
	logger.Info("crawl cycle starting",
		zap.Time("since", since),
		zap.Int("repositories", len(repositories)))

	var failures []error
	for _, repository := range repositories {
		if err := s.crawlRepository(ctx, logger, repository.Owner, repository.Repo, since); err != nil {
			logger.Error("repository crawl failed",
				zap.String("owner", repository.Owner),
				zap.String("repo", repository.Repo),
				zap.Error(err))
			failures = append(failures, fmt.Errorf("%s/%s: %w", repository.Owner, repository.Repo, err))
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("crawler: cycle incomplete: %w", errors.Join(failures...))
	}

	if err := s.watermarks.Append(ctx, startedAt); err != nil {
		return err
	}
	logger.Info("crawl cycle complete", zap.Duration("elapsed", s.clock().Sub(startedAt)))
	return nil
}

func (s *Service) crawlRepository(ctx context.Context, logger *zap.Logger, owner, repo string, since time.Time) error {
	if err := s.detectPullRequestActivity(ctx, logger, owner, repo, since); err != nil {
		return err
	}
	return s.detectWorkflowFailures(ctx, logger, owner, repo, since)
}

func (s *Service) detectPullRequestActivity(ctx context.Context, logger *zap.Logger, owner, repo string, since time.Time) error {
	pulls, err := s.platform.ListPullRequests(ctx, owner, repo)
	if err != nil {
		return err
	}

	for _, pull := range pulls {
		if !pull.UpdatedAt.After(since) {
			continue
		}
		if err := s.detectCreation(ctx, logger, pull); err != nil {
			return err
		}
		if err := s.detectAuthorComments(ctx, logger, owner, repo, pull, since); err != nil {
			return err
		}
		if err := s.detectCodeUpdate(ctx, logger, owner, repo, pull); err != nil {
			return err
		}
		if err := s.detectReviews(ctx, logger, owner, repo, pull.Number); err != nil {
			return err
		}
		if pull.MergedAt != nil {
			if err := s.detectMerge(ctx, logger, pull); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) detectCreation(ctx context.Context, logger *zap.Logger, pull githubapi.PullRequest) error {
	exists, err := s.events.HasEvent(ctx, pull.ID, ledger.EventTypeCreated)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	createdAt := pull.CreatedAt
	event := ledger.PREvent{
		PRID:      pull.ID,
		Type:      ledger.EventTypeCreated,
		Title:     pull.Title,
		URL:       pull.HTMLURL,
		Author:    pull.AuthorLogin(),
		CreatedAt: &createdAt,
	}
	if err := s.events.Insert(ctx, &event); err != nil {
		return err
	}
	logger.Info("pr created event recorded", zap.Int64("pr_id", pull.ID), zap.Int("pr_number", pull.Number))
	return nil
}

func (s *Service) detectAuthorComments(ctx context.Context, logger *zap.Logger, owner, repo string, pull githubapi.PullRequest, since time.Time) error {
	author := pull.AuthorLogin()
	if author == "" {
		// Without an author identity no self-comment can be attributed.
		return nil
	}

	comments, err := s.platform.ListIssueComments(ctx, owner, repo, pull.Number)
	if err != nil {
		return err
	}

	for _, comment := range comments {
		if comment.User == nil || comment.User.Login != author {
			continue
		}
		if !comment.CreatedAt.After(since) {
			continue
		}
		commentID := comment.ID
		createdAt := comment.CreatedAt
		event := ledger.PREvent{
			PRID:       pull.ID,
			Type:       ledger.EventTypeAuthorComment,
			Title:      pull.Title,
			URL:        comment.HTMLURL,
			Author:     author,
			UpdatedAt:  &createdAt,
			UpdateType: ledger.UpdateTypeComment,
			CommentID:  &commentID,
		}
		if err := s.events.InsertAuthorComment(ctx, &event); err != nil {
			return err
		}
		logger.Info("author comment event recorded",
			zap.Int64("pr_id", pull.ID),
			zap.Int64("comment_id", comment.ID))
	}
	return nil
}

func (s *Service) detectCodeUpdate(ctx context.Context, logger *zap.Logger, owner, repo string, pull githubapi.PullRequest) error {
	commits, err := s.platform.ListCommits(ctx, owner, repo, pull.Number)
	if err != nil {
		return err
	}
	if len(commits) == 0 {
		return nil
	}
	latestHash := commits[len(commits)-1].SHA
	if latestHash == "" {
		// The platform occasionally omits the hash; without one there is
		// nothing to compare, so the next cycle picks the change up.
		return nil
	}

	recordedHash, found, err := s.events.LatestCodeHash(ctx, pull.ID)
	if err != nil {
		return err
	}
	if found && recordedHash == latestHash {
		return nil
	}

	updatedAt := pull.UpdatedAt
	event := ledger.PREvent{
		PRID:       pull.ID,
		Type:       ledger.EventTypeUpdated,
		Title:      pull.Title,
		URL:        pull.HTMLURL,
		Author:     pull.AuthorLogin(),
		UpdatedAt:  &updatedAt,
		UpdateType: ledger.UpdateTypeCode,
		CommitHash: latestHash,
	}
	if err := s.events.Insert(ctx, &event); err != nil {
		return err
	}
	logger.Info("code update event recorded",
		zap.Int64("pr_id", pull.ID),
		zap.String("commit_hash", latestHash))
	return nil
}

func (s *Service) detectReviews(ctx context.Context, logger *zap.Logger, owner, repo string, prNumber int) error {
	reviews, err := s.platform.ListReviews(ctx, owner, repo, prNumber)
	if err != nil {
		return err
	}
	if len(reviews) == 0 {
		return nil
	}

	pull, err := s.platform.GetPullRequest(ctx, owner, repo, prNumber)
	if err != nil {
		return err
	}
	author := pull.AuthorLogin()

	for _, review := range reviews {
		if review.User == nil {
			continue
		}
		exists, err := s.reviews.Exists(ctx, review.ID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if isSingleCommentArtifact(review) {
			// A lone inline comment surfaces as a bodyless COMMENTED review
			// object; the comment itself is what matters, not the shell.
			continue
		}

		event := ledger.ReviewEvent{
			ReviewID:      review.ID,
			PRNumber:      prNumber,
			State:         ledger.ReviewState(review.State),
			Reviewer:      review.User.Login,
			SubmittedAt:   review.SubmittedAt,
			IsAuthor:      review.User.Login == author,
			PRTitle:       pull.Title,
			ReviewURL:     review.HTMLURL,
			ReviewContent: review.Body,
			Author:        author,
		}
		if err := s.reviews.Insert(ctx, &event); err != nil {
			return err
		}
		logger.Info("review event recorded",
			zap.Int64("review_id", review.ID),
			zap.Int("pr_number", prNumber),
			zap.String("reviewer", review.User.Login))
	}
	return nil
}

func (s *Service) detectMerge(ctx context.Context, logger *zap.Logger, pull githubapi.PullRequest) error {
	exists, err := s.events.HasEvent(ctx, pull.ID, ledger.EventTypeMerged)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	event := ledger.PREvent{
		PRID:     pull.ID,
		Type:     ledger.EventTypeMerged,
		Title:    pull.Title,
		URL:      pull.HTMLURL,
		Author:   pull.AuthorLogin(),
		MergedAt: pull.MergedAt,
	}
	if err := s.events.Insert(ctx, &event); err != nil {
		return err
	}
	logger.Info("pr merged event recorded", zap.Int64("pr_id", pull.ID), zap.Int("pr_number", pull.Number))
	return nil
}

func (s *Service) detectWorkflowFailures(ctx context.Context, logger *zap.Logger, owner, repo string, since time.Time) error {
	runs, err := s.platform.ListWorkflowRuns(ctx, owner, repo, since.Add(-workflowLookbackSkew))
	if err != nil {
		return err
	}

	for _, run := range runs {
		if run.InProgress() {
			// No terminal verdict yet; the next cycle re-evaluates the run.
			continue
		}
		if !run.FailedConclusion() {
			continue
		}
		exists, err := s.workflows.Exists(ctx, run.ID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		event := ledger.WorkflowFailureEvent{
			RunID:        run.ID,
			Status:       ledger.WorkflowStatusFailed,
			WorkflowName: run.Name,
			URL:          run.HTMLURL,
			FailedAt:     run.UpdatedAt,
		}
		if err := s.workflows.Insert(ctx, &event); err != nil {
			return err
		}
		logger.Info("workflow failure recorded",
			zap.Int64("run_id", run.ID),
			zap.String("workflow", run.Name),
			zap.String("conclusion", run.Conclusion))
	}
	return nil
}

// isSingleCommentArtifact reports whether a review object is just the shell
// the platform creates around a single inline comment.
func isSingleCommentArtifact(review githubapi.Review) bool {
	return strings.EqualFold(review.State, "commented") && strings.TrimSpace(review.Body) == ""
}
