package notifier

import (
	"strings"
	"time"

	"github.com/prherald/prherald/internal/ledger"
	"github.com/prherald/prherald/internal/mattermost"
)

const (
	titleCreated         = "🆕 New pull request opened!"
	titleCodeUpdated     = "📝 Pull request code updated!"
	titleUpdated         = "📝 Pull request updated!"
	titleReview          = "👀 A pull request review arrived!"
	titleReviewSelf      = "💬 A reviewer left a comment!"
	titleMerged          = "🎉 Pull request merged!"
	titleWorkflowFailed  = "❌ CI workflow failed!"
	displayedTimeLayout  = "2006-01-02 15:04:05"
	passCompleteMessage  = "Notification pass complete. The next pass runs on the next scheduled tick."
	unknownReviewVerdict = "❔ UNKNOWN"
)

func formatCreated(event ledger.PREvent, location *time.Location) (string, []mattermost.Field) {
	return titleCreated, []mattermost.Field{
		{Title: "Title", Value: event.Title, Short: false},
		{Title: "Author", Value: event.Author, Short: true},
		{Title: "Time", Value: displayTime(event.CreatedAt, location), Short: true},
		{Title: "Link", Value: event.URL, Short: false},
	}
}

func formatUpdate(event ledger.PREvent, location *time.Location) (string, []mattermost.Field) {
	title := titleUpdated
	if event.UpdateType == ledger.UpdateTypeCode {
		title = titleCodeUpdated
	}
	return title, []mattermost.Field{
		{Title: "Title", Value: event.Title, Short: false},
		{Title: "Author", Value: event.Author, Short: true},
		{Title: "Time", Value: displayTime(event.UpdatedAt, location), Short: true},
		{Title: "Link", Value: event.URL, Short: false},
	}
}

func formatReview(review ledger.ReviewEvent, location *time.Location) (string, []mattermost.Field) {
	title := titleReview
	if review.IsAuthor {
		title = titleReviewSelf
	}

	fields := make([]mattermost.Field, 0, 7)
	if review.ReviewContent != "" {
		fields = append(fields, mattermost.Field{Title: "Review", Value: review.ReviewContent, Short: false})
	}
	fields = append(fields,
		mattermost.Field{Title: "Verdict", Value: reviewVerdict(review.State), Short: true},
		mattermost.Field{Title: "Reviewer", Value: review.Reviewer, Short: true},
		mattermost.Field{Title: "Time", Value: displayTime(review.SubmittedAt, location), Short: true},
		mattermost.Field{Title: "PR title", Value: review.PRTitle, Short: false},
		mattermost.Field{Title: "PR author", Value: review.Author, Short: true},
		mattermost.Field{Title: "Link", Value: review.ReviewURL, Short: false},
	)
	return title, fields
}

func formatMerged(event ledger.PREvent, location *time.Location) (string, []mattermost.Field) {
	// Merged rows carry the merge time; fall back to the update time for
	// rows recorded before the merge timestamp was captured.
	mergedAt := event.MergedAt
	if mergedAt == nil {
		mergedAt = event.UpdatedAt
	}
	return titleMerged, []mattermost.Field{
		{Title: "Title", Value: event.Title, Short: true},
		{Title: "Author", Value: event.Author, Short: true},
		{Title: "Time", Value: displayTime(mergedAt, location), Short: true},
		{Title: "Link", Value: event.URL, Short: false},
	}
}

func formatWorkflowFailure(event ledger.WorkflowFailureEvent, location *time.Location) (string, []mattermost.Field) {
	failedAt := event.FailedAt
	return titleWorkflowFailed, []mattermost.Field{
		{Title: "Workflow", Value: event.WorkflowName, Short: true},
		{Title: "Time", Value: displayTime(&failedAt, location), Short: true},
		{Title: "Link", Value: event.URL, Short: false},
	}
}

func reviewVerdict(state ledger.ReviewState) string {
	switch strings.ToUpper(string(state)) {
	case string(ledger.ReviewStateApproved):
		return "✅ APPROVED"
	case string(ledger.ReviewStateChangesRequested):
		return "❌ CHANGES REQUESTED"
	case string(ledger.ReviewStateCommented):
		return "💭 COMMENTED"
	default:
		return unknownReviewVerdict
	}
}

func displayTime(value *time.Time, location *time.Location) string {
	if value == nil {
		return ""
	}
	return value.In(location).Format(displayedTimeLayout)
}
