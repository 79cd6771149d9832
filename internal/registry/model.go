package registry

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidOwner indicates an empty or oversized repository owner.
	ErrInvalidOwner = errors.New("registry: invalid owner")
	// ErrInvalidRepo indicates an empty or oversized repository name.
	ErrInvalidRepo = errors.New("registry: invalid repo")
	// ErrInvalidChannelID indicates an empty or oversized channel identifier.
	ErrInvalidChannelID = errors.New("registry: invalid channel id")
)

// Repository is a monitored (owner, repo) pair. Rows are never physically
// deleted; deactivation flips the active flag.
type Repository struct {
	ID     uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Owner  string `gorm:"column:owner;size:190;not null;uniqueIndex:uq_repositories_owner_repo,priority:1"`
	Repo   string `gorm:"column:repo;size:190;not null;uniqueIndex:uq_repositories_owner_repo,priority:2"`
	Active bool   `gorm:"column:active;not null;default:true"`
}

// TableName provides the explicit table binding for GORM.
func (Repository) TableName() string {
	return "repositories"
}

// Channel is a chat channel that receives notifications while active.
type Channel struct {
	ID        uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	ChannelID string `gorm:"column:channel_id;size:190;not null;uniqueIndex:uq_notify_channels_channel_id"`
	Active    bool   `gorm:"column:active;not null;default:true"`
}

// TableName provides the explicit table binding for GORM.
func (Channel) TableName() string {
	return "notify_channels"
}

func validateIdentifier(raw string, sentinel error) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", sentinel)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", sentinel, maxIdentifierLength)
	}
	return trimmed, nil
}
