package githubapi

import "time"

// User identifies an account on the hosting platform. Pull requests and
// comments may arrive without one (deleted accounts, ghost users), so
// consumers must treat the pointer as optional.
type User struct {
	Login string `json:"login"`
}

// PullRequest is the subset of the platform's pull request payload the
// crawler consumes.
type PullRequest struct {
	ID        int64      `json:"id"`
	Number    int        `json:"number"`
	State     string     `json:"state"`
	Title     string     `json:"title"`
	HTMLURL   string     `json:"html_url"`
	User      *User      `json:"user"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	MergedAt  *time.Time `json:"merged_at"`
}

// AuthorLogin returns the author login or "" when the account is gone.
func (pr PullRequest) AuthorLogin() string {
	if pr.User == nil {
		return ""
	}
	return pr.User.Login
}

// IssueComment is an issue-style comment on a pull request.
type IssueComment struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	HTMLURL   string    `json:"html_url"`
	User      *User     `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// Commit is a single entry of a pull request's commit list. Only the hash
// matters to update detection.
type Commit struct {
	SHA string `json:"sha"`
}

// Review is a submitted pull request review.
type Review struct {
	ID          int64      `json:"id"`
	User        *User      `json:"user"`
	Body        string     `json:"body"`
	State       string     `json:"state"`
	HTMLURL     string     `json:"html_url"`
	SubmittedAt *time.Time `json:"submitted_at"`
}

// WorkflowRun is one CI workflow execution.
type WorkflowRun struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	HTMLURL    string    `json:"html_url"`
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// InProgress reports whether the run has not reached a terminal status yet.
func (r WorkflowRun) InProgress() bool {
	switch r.Status {
	case "in_progress", "queued", "waiting":
		return true
	}
	return false
}

// FailedConclusion reports whether the run finished with a failing verdict.
func (r WorkflowRun) FailedConclusion() bool {
	switch r.Conclusion {
	case "failure", "cancelled", "timed_out":
		return true
	}
	return false
}

type workflowRunsPage struct {
	TotalCount   int           `json:"total_count"`
	WorkflowRuns []WorkflowRun `json:"workflow_runs"`
}
