package registry

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errMissingDatabase = errors.New("registry: database handle is required")

// ServiceConfig describes the dependencies of the registry service.
type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service manages the monitored repository set and the notification channel set.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService constructs the registry service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, logger: logger}, nil
}

// AddRepository registers an (owner, repo) pair for monitoring. Adding a pair
// that already exists is a no-op, including pairs previously deactivated.
func (s *Service) AddRepository(ctx context.Context, owner, repo string) error {
	validOwner, err := validateIdentifier(owner, ErrInvalidOwner)
	if err != nil {
		return err
	}
	validRepo, err := validateIdentifier(repo, ErrInvalidRepo)
	if err != nil {
		return err
	}

	entry := Repository{Owner: validOwner, Repo: validRepo, Active: true}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner"}, {Name: "repo"}},
			DoNothing: true,
		}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("registry: adding repository %s/%s: %w", validOwner, validRepo, err)
	}

	s.logger.Info("repository registered",
		zap.String("owner", validOwner),
		zap.String("repo", validRepo))
	return nil
}

// DeactivateRepository stops monitoring a pair without deleting its row.
func (s *Service) DeactivateRepository(ctx context.Context, owner, repo string) error {
	validOwner, err := validateIdentifier(owner, ErrInvalidOwner)
	if err != nil {
		return err
	}
	validRepo, err := validateIdentifier(repo, ErrInvalidRepo)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).
		Model(&Repository{}).
		Where("owner = ? AND repo = ?", validOwner, validRepo).
		Update("active", false).Error
	if err != nil {
		return fmt.Errorf("registry: deactivating repository %s/%s: %w", validOwner, validRepo, err)
	}

	s.logger.Info("repository deactivated",
		zap.String("owner", validOwner),
		zap.String("repo", validRepo))
	return nil
}

// ListActiveRepositories returns the repositories currently being monitored.
func (s *Service) ListActiveRepositories(ctx context.Context) ([]Repository, error) {
	var repositories []Repository
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("owner ASC, repo ASC").
		Find(&repositories).Error
	if err != nil {
		return nil, fmt.Errorf("registry: listing active repositories: %w", err)
	}
	return repositories, nil
}

// AddChannel registers a chat channel for notification delivery.
func (s *Service) AddChannel(ctx context.Context, channelID string) error {
	validChannelID, err := validateIdentifier(channelID, ErrInvalidChannelID)
	if err != nil {
		return err
	}

	entry := Channel{ChannelID: validChannelID, Active: true}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}},
			DoNothing: true,
		}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("registry: adding channel %s: %w", validChannelID, err)
	}

	s.logger.Info("channel registered", zap.String("channel_id", validChannelID))
	return nil
}

// DeactivateChannel stops delivery to a channel without deleting its row.
func (s *Service) DeactivateChannel(ctx context.Context, channelID string) error {
	validChannelID, err := validateIdentifier(channelID, ErrInvalidChannelID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).
		Model(&Channel{}).
		Where("channel_id = ?", validChannelID).
		Update("active", false).Error
	if err != nil {
		return fmt.Errorf("registry: deactivating channel %s: %w", validChannelID, err)
	}

	s.logger.Info("channel deactivated", zap.String("channel_id", validChannelID))
	return nil
}

// ListActiveChannels returns identifiers of channels that receive notifications.
func (s *Service) ListActiveChannels(ctx context.Context) ([]string, error) {
	var channels []Channel
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("channel_id ASC").
		Find(&channels).Error
	if err != nil {
		return nil, fmt.Errorf("registry: listing active channels: %w", err)
	}

	identifiers := make([]string, 0, len(channels))
	for _, channel := range channels {
		identifiers = append(identifiers, channel.ChannelID)
	}
	return identifiers, nil
}
