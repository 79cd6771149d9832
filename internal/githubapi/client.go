package githubapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const (
	requestTimeout = 10 * time.Second
	maxAttempts    = 3
	baseRetryDelay = 500 * time.Millisecond
	perPage        = 100
)

var errMissingToken = errors.New("githubapi: token is required")

// APIError is a non-2xx response from the platform.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("githubapi: status %d: %s", e.StatusCode, e.Message)
}

// Transient reports whether a retry may succeed.
func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ClientConfig describes the settings of the platform client.
type ClientConfig struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is a typed GitHub REST v3 client covering the endpoints the crawler
// needs. Transient failures are retried with bounded exponential backoff;
// detection logic never retries on its own.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs the client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, errMissingToken
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// ListPullRequests fetches pull requests in all states, most recently
// updated first.
func (c *Client) ListPullRequests(ctx context.Context, owner, repo string) ([]PullRequest, error) {
	query := url.Values{
		"state":     {"all"},
		"sort":      {"updated"},
		"direction": {"desc"},
		"per_page":  {fmt.Sprint(perPage)},
	}
	var pulls []PullRequest
	path := fmt.Sprintf("/repos/%s/%s/pulls", owner, repo)
	if err := c.getJSON(ctx, path, query, &pulls); err != nil {
		return nil, err
	}
	return pulls, nil
}

// GetPullRequest fetches a single pull request by number.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	var pull PullRequest
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number)
	if err := c.getJSON(ctx, path, nil, &pull); err != nil {
		return nil, err
	}
	return &pull, nil
}

// ListIssueComments fetches the issue-style comments on a pull request.
func (c *Client) ListIssueComments(ctx context.Context, owner, repo string, number int) ([]IssueComment, error) {
	var comments []IssueComment
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, repo, number)
	query := url.Values{"per_page": {fmt.Sprint(perPage)}}
	if err := c.getJSON(ctx, path, query, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// ListCommits fetches a pull request's commits in chronological order.
func (c *Client) ListCommits(ctx context.Context, owner, repo string, number int) ([]Commit, error) {
	var commits []Commit
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/commits", owner, repo, number)
	query := url.Values{"per_page": {fmt.Sprint(perPage)}}
	if err := c.getJSON(ctx, path, query, &commits); err != nil {
		return nil, err
	}
	return commits, nil
}

// ListReviews fetches the submitted reviews of a pull request.
func (c *Client) ListReviews(ctx context.Context, owner, repo string, number int) ([]Review, error) {
	var reviews []Review
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/reviews", owner, repo, number)
	query := url.Values{"per_page": {fmt.Sprint(perPage)}}
	if err := c.getJSON(ctx, path, query, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// ListWorkflowRuns fetches workflow runs created at or after the given time.
func (c *Client) ListWorkflowRuns(ctx context.Context, owner, repo string, createdSince time.Time) ([]WorkflowRun, error) {
	query := url.Values{
		"created":  {">=" + createdSince.UTC().Format(time.RFC3339)},
		"per_page": {fmt.Sprint(perPage)},
	}
	var page workflowRunsPage
	path := fmt.Sprintf("/repos/%s/%s/actions/runs", owner, repo)
	if err := c.getJSON(ctx, path, query, &page); err != nil {
		return nil, err
	}
	return page.WorkflowRuns, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay(attempt - 1)):
			}
		}

		body, err := c.doOnce(ctx, endpoint)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("githubapi: decoding %s: %w", path, err)
			}
			return nil
		}

		lastErr = err
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Transient() {
			return err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		c.logger.Warn("github request failed, retrying",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return fmt.Errorf("githubapi: %s failed after %d attempts: %w", path, maxAttempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("githubapi: building request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("githubapi: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("githubapi: reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := string(body)
		if len(message) > 200 {
			message = message[:200]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: message}
	}
	return body, nil
}

// retryDelay grows exponentially with +/-10% jitter.
func retryDelay(failures int) time.Duration {
	delay := float64(baseRetryDelay) * math.Pow(2, float64(failures-1))
	jitter := delay * 0.1 * (2*rand.Float64() - 1)
	return time.Duration(delay + jitter)
}
