package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Sudharshanj25/bugtracker/internal/models"
	"github.com/Sudharshanj25/bugtracker/internal/store"
	"github.com/Sudharshanj25/bugtracker/internal/uploads"
)

// ValidationError reports a rejected field value. The API layer maps
// it to a 400 response with the message in the body.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationf(format string, a ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, a...)}
}

// CreateInput carries the raw form fields for issue creation.
// Values are trimmed before validation.
type CreateInput struct {
	Track       string
	Summary     string
	Description string
	RaisedBy    string
	Assignee    string
	Status      string
	ScenarioID  string
	StepNo      string
}

// Issues validates input and coordinates the repository and the
// attachment store so the attachments field and the files on disk
// never diverge.
type Issues struct {
	store store.Store
	files *uploads.Store
}

// NewIssues creates the issue service.
func NewIssues(s store.Store, files *uploads.Store) *Issues {
	return &Issues{store: s, files: files}
}

// optional turns a trimmed form value into a nullable field.
func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

// Create validates the input, saves accepted files, and persists the
// issue. More than uploads.MaxPerBatch files is rejected before any
// file is written.
func (svc *Issues) Create(ctx context.Context, in CreateInput, files []uploads.File) (*models.Issue, error) {
	track := models.Track(strings.TrimSpace(in.Track))
	if !track.Valid() {
		return nil, validationf("Invalid track")
	}

	status := models.Status(strings.TrimSpace(in.Status))
	if status == "" {
		status = models.StatusOpen
	}
	if !status.Valid() {
		return nil, validationf("Invalid status")
	}

	summary := strings.TrimSpace(in.Summary)
	if summary == "" || utf8.RuneCountInString(summary) > models.MaxSummaryLen {
		return nil, validationf("Summary is required and must be ≤ %d chars", models.MaxSummaryLen)
	}

	if len(files) > uploads.MaxPerBatch {
		return nil, validationf("Max %d attachments allowed", uploads.MaxPerBatch)
	}

	saved, err := svc.files.SaveAll(files)
	if err != nil {
		return nil, fmt.Errorf("save attachments: %w", err)
	}

	issue := &models.Issue{
		Track:       track,
		Summary:     summary,
		Description: optional(in.Description),
		Attachments: saved,
		RaisedBy:    optional(in.RaisedBy),
		Assignee:    optional(in.Assignee),
		Status:      status,
		ScenarioID:  optional(in.ScenarioID),
		StepNo:      optional(in.StepNo),
	}
	if err := svc.store.CreateIssue(ctx, issue); err != nil {
		return nil, err
	}
	return issue, nil
}

// Update applies the set fields of patch to the issue and appends any
// newly saved files to its attachment list. Unset fields are left
// unchanged.
func (svc *Issues) Update(ctx context.Context, id int64, patch models.IssuePatch, files []uploads.File) (*models.Issue, error) {
	issue, err := svc.store.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Track != nil {
		track := models.Track(strings.TrimSpace(*patch.Track))
		if !track.Valid() {
			return nil, validationf("Invalid track")
		}
		issue.Track = track
	}
	if patch.Status != nil {
		status := models.Status(strings.TrimSpace(*patch.Status))
		if !status.Valid() {
			return nil, validationf("Invalid status")
		}
		issue.Status = status
	}
	if patch.Summary != nil {
		issue.Summary = strings.TrimSpace(*patch.Summary)
	}
	if patch.Description != nil {
		issue.Description = optional(*patch.Description)
	}
	if patch.RaisedBy != nil {
		issue.RaisedBy = optional(*patch.RaisedBy)
	}
	if patch.Assignee != nil {
		issue.Assignee = optional(*patch.Assignee)
	}
	if patch.ScenarioID != nil {
		issue.ScenarioID = optional(*patch.ScenarioID)
	}
	if patch.StepNo != nil {
		issue.StepNo = optional(*patch.StepNo)
	}

	if err := svc.store.UpdateIssue(ctx, issue); err != nil {
		return nil, err
	}

	if len(files) > 0 {
		saved, err := svc.files.SaveAll(files)
		if err != nil {
			return nil, fmt.Errorf("save attachments: %w", err)
		}
		if len(saved) > 0 {
			issue.Attachments = append(issue.Attachments, saved...)
			if err := svc.store.ReplaceAttachments(ctx, id, issue.Attachments); err != nil {
				return nil, err
			}
		}
	}

	return issue, nil
}

// Get returns one issue.
func (svc *Issues) Get(ctx context.Context, id int64) (*models.Issue, error) {
	return svc.store.GetIssue(ctx, id)
}

// List returns all issues newest first.
func (svc *Issues) List(ctx context.Context) ([]*models.Issue, error) {
	return svc.store.ListIssues(ctx)
}

// Delete removes the issue and best-effort deletes its attachment
// files. A file missing from disk never blocks record deletion.
func (svc *Issues) Delete(ctx context.Context, id int64) error {
	issue, err := svc.store.GetIssue(ctx, id)
	if err != nil {
		return err
	}
	for _, name := range issue.Attachments {
		if err := svc.files.Remove(name); err != nil {
			slog.Warn("failed to remove attachment file", "issue", id, "file", name, "error", err)
		}
	}
	return svc.store.DeleteIssue(ctx, id)
}

// RemoveAttachment detaches one stored filename from the issue and
// best-effort deletes the file. A filename not on the issue is a no-op
// returning the current record.
func (svc *Issues) RemoveAttachment(ctx context.Context, id int64, name string) (*models.Issue, error) {
	issue, err := svc.store.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}

	remaining := make([]string, 0, len(issue.Attachments))
	found := false
	for _, a := range issue.Attachments {
		if a == name && !found {
			found = true
			continue
		}
		remaining = append(remaining, a)
	}
	if !found {
		return issue, nil
	}

	if err := svc.store.ReplaceAttachments(ctx, id, remaining); err != nil {
		return nil, err
	}
	issue.Attachments = remaining

	if err := svc.files.Remove(name); err != nil {
		slog.Warn("failed to remove attachment file", "issue", id, "file", name, "error", err)
	}
	return issue, nil
}
