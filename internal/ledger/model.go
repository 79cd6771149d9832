package ledger

import "time"

// EventType enumerates the pull request lifecycle events tracked by the crawler.
type EventType string

const (
	// EventTypeCreated marks the first observation of a pull request.
	EventTypeCreated EventType = "created"
	// EventTypeUpdated marks a code change detected through a new head commit.
	EventTypeUpdated EventType = "updated"
	// EventTypeMerged marks a pull request observed with a merge timestamp.
	EventTypeMerged EventType = "merged"
	// EventTypeAuthorComment marks a comment left by the pull request author.
	EventTypeAuthorComment EventType = "author_comment"
)

// UpdateType distinguishes the two flavors of update events.
type UpdateType string

const (
	// UpdateTypeCode indicates the head commit changed.
	UpdateTypeCode UpdateType = "code"
	// UpdateTypeComment indicates the author commented on their own pull request.
	UpdateTypeComment UpdateType = "comment"
)

// ReviewState mirrors the review verdicts reported by the hosting platform.
// The column stays a free-form string because the platform may add states.
type ReviewState string

const (
	ReviewStateApproved         ReviewState = "APPROVED"
	ReviewStateChangesRequested ReviewState = "CHANGES_REQUESTED"
	ReviewStateCommented        ReviewState = "COMMENTED"
)

// WorkflowStatusFailed is the only status persisted for workflow runs.
const WorkflowStatusFailed = "failed"

// PREvent is one row of the pull request event ledger.
//
// Dedup keys: (pr_id, type) for created and merged rows, (pr_id, commit_hash)
// for code updates via a latest-hash comparison, and the unique index
// (pr_id, type, comment_id) for author comments. Comment id is NULL on
// non-comment rows, which SQLite excludes from unique enforcement.
type PREvent struct {
	ID         uint64     `gorm:"column:id;primaryKey;autoIncrement"`
	PRID       int64      `gorm:"column:pr_id;not null;index:idx_pr_events_pr_type,priority:1;uniqueIndex:uq_pr_events_comment,priority:1"`
	Type       EventType  `gorm:"column:type;size:32;not null;index:idx_pr_events_pr_type,priority:2;uniqueIndex:uq_pr_events_comment,priority:2"`
	Title      string     `gorm:"column:title;type:text;not null"`
	URL        string     `gorm:"column:url;type:text;not null"`
	Author     string     `gorm:"column:author;size:190;not null;default:''"`
	CreatedAt  *time.Time `gorm:"column:created_at"`
	UpdatedAt  *time.Time `gorm:"column:updated_at"`
	MergedAt   *time.Time `gorm:"column:merged_at"`
	UpdateType UpdateType `gorm:"column:update_type;size:16;not null;default:''"`
	CommitHash string     `gorm:"column:commit_hash;size:64;not null;default:''"`
	CommentID  *int64     `gorm:"column:comment_id;uniqueIndex:uq_pr_events_comment,priority:3"`
	Notified   bool       `gorm:"column:notified;not null;default:false"`
}

// TableName provides the explicit table binding for GORM.
func (PREvent) TableName() string {
	return "pr_events"
}

// ReviewEvent is one row of the review ledger. Review ids are globally
// unique on the platform side, so the row is deduped on review_id alone.
type ReviewEvent struct {
	ID            uint64      `gorm:"column:id;primaryKey;autoIncrement"`
	ReviewID      int64       `gorm:"column:review_id;not null;uniqueIndex:uq_pr_reviews_review_id"`
	PRNumber      int         `gorm:"column:pr_number;not null"`
	State         ReviewState `gorm:"column:state;size:32;not null"`
	Reviewer      string      `gorm:"column:reviewer;size:190;not null"`
	SubmittedAt   *time.Time  `gorm:"column:submitted_at"`
	IsAuthor      bool        `gorm:"column:is_author;not null;default:false"`
	PRTitle       string      `gorm:"column:pr_title;type:text;not null"`
	ReviewURL     string      `gorm:"column:review_url;type:text;not null"`
	ReviewContent string      `gorm:"column:review_content;type:text;not null;default:''"`
	Author        string      `gorm:"column:author;size:190;not null;default:''"`
	Notified      bool        `gorm:"column:notified;not null;default:false"`
}

// TableName provides the explicit table binding for GORM.
func (ReviewEvent) TableName() string {
	return "pr_reviews"
}

// WorkflowFailureEvent records a CI workflow run that reached a terminal
// failing conclusion. Runs are deduped on the platform run id.
type WorkflowFailureEvent struct {
	ID           uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	RunID        int64     `gorm:"column:run_id;not null;uniqueIndex:uq_workflow_failures_run_id"`
	Status       string    `gorm:"column:status;size:32;not null"`
	WorkflowName string    `gorm:"column:workflow_name;type:text;not null"`
	URL          string    `gorm:"column:url;type:text;not null"`
	FailedAt     time.Time `gorm:"column:failed_at;not null"`
	Notified     bool      `gorm:"column:notified;not null;default:false"`
}

// TableName provides the explicit table binding for GORM.
func (WorkflowFailureEvent) TableName() string {
	return "workflow_failures"
}

// WatermarkRecord is an append-only history of completed crawl cycles.
// Only the most recent row is authoritative.
type WatermarkRecord struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	LastCrawledAt time.Time `gorm:"column:last_crawled_at;not null;index:idx_crawl_watermarks_crawled_at"`
}

// TableName provides the explicit table binding for GORM.
func (WatermarkRecord) TableName() string {
	return "crawl_watermarks"
}
