package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sudharshanj25/bugtracker/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func strptr(s string) *string { return &s }

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Running migrate again should be a no-op
	err := s.Migrate(ctx)
	assert.NoError(t, err)
}

func TestIssueCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Create
	issue := &models.Issue{
		Track:    models.TrackAP,
		Summary:  "Login fails on step 3",
		Status:   models.StatusOpen,
		Assignee: strptr("rk"),
	}
	require.NoError(t, s.CreateIssue(ctx, issue))
	assert.Positive(t, issue.ID)
	assert.False(t, issue.CreatedAt.IsZero())
	assert.NotNil(t, issue.Attachments)

	// Get
	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TrackAP, got.Track)
	assert.Equal(t, "Login fails on step 3", got.Summary)
	assert.Equal(t, models.StatusOpen, got.Status)
	require.NotNil(t, got.Assignee)
	assert.Equal(t, "rk", *got.Assignee)
	assert.Nil(t, got.Description)
	assert.Equal(t, []string{}, got.Attachments)

	// Update
	got.Status = models.StatusFixed
	got.Description = strptr("fails only with expired sessions")
	require.NoError(t, s.UpdateIssue(ctx, got))

	updated, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFixed, updated.Status)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "fails only with expired sessions", *updated.Description)

	// Delete
	require.NoError(t, s.DeleteIssue(ctx, issue.ID))
	_, err = s.GetIssue(ctx, issue.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetIssue_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetIssue(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateIssue_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateIssue(context.Background(), &models.Issue{
		ID:      999,
		Track:   models.TrackRP,
		Summary: "ghost",
		Status:  models.StatusOpen,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteIssue_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.DeleteIssue(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListIssues_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, summary := range []string{"first", "second", "third"} {
		require.NoError(t, s.CreateIssue(ctx, &models.Issue{
			Track:   models.TrackCommon,
			Summary: summary,
			Status:  models.StatusOpen,
		}))
	}

	issues, err := s.ListIssues(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 3)
	assert.Equal(t, "third", issues[0].Summary)
	assert.Equal(t, "second", issues[1].Summary)
	assert.Equal(t, "first", issues[2].Summary)
	assert.Greater(t, issues[0].ID, issues[1].ID)
}

func TestAttachments_OrderPreserved(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	issue := &models.Issue{
		Track:       models.TrackES,
		Summary:     "screenshots attached",
		Status:      models.StatusOpen,
		Attachments: []string{"tok1_a.png", "tok2_b.png", "tok3_c.pdf"},
	}
	require.NoError(t, s.CreateIssue(ctx, issue))

	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"tok1_a.png", "tok2_b.png", "tok3_c.pdf"}, got.Attachments)

	// Replace keeps the new order
	require.NoError(t, s.ReplaceAttachments(ctx, issue.ID, []string{"tok3_c.pdf", "tok1_a.png"}))
	got, err = s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"tok3_c.pdf", "tok1_a.png"}, got.Attachments)

	// List carries attachments too
	issues, err := s.ListIssues(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, []string{"tok3_c.pdf", "tok1_a.png"}, issues[0].Attachments)
}

func TestReplaceAttachments_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.ReplaceAttachments(context.Background(), 123, []string{"x.png"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteIssue_CascadesAttachmentRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	issue := &models.Issue{
		Track:       models.TrackLI,
		Summary:     "with files",
		Status:      models.StatusOpen,
		Attachments: []string{"tok_a.png"},
	}
	require.NoError(t, s.CreateIssue(ctx, issue))
	require.NoError(t, s.DeleteIssue(ctx, issue.ID))

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM issue_attachments WHERE issue_id = ?", issue.ID).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCreatedAt_UTC(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	issue := &models.Issue{Track: models.TrackAP, Summary: "utc check", Status: models.StatusOpen}
	require.NoError(t, s.CreateIssue(ctx, issue))

	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	_, offset := got.CreatedAt.Zone()
	assert.Zero(t, offset, "created_at should round-trip in UTC")
}
