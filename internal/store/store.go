package store

import (
	"context"
	"errors"

	"github.com/Sudharshanj25/bugtracker/internal/models"
)

// ErrNotFound is returned when an issue id does not exist.
var ErrNotFound = errors.New("issue not found")

// Store defines the persistence interface for bugtracker.
type Store interface {
	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, id int64) (*models.Issue, error)
	ListIssues(ctx context.Context) ([]*models.Issue, error)
	UpdateIssue(ctx context.Context, issue *models.Issue) error
	ReplaceAttachments(ctx context.Context, id int64, filenames []string) error
	DeleteIssue(ctx context.Context, id int64) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
