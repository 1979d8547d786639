// Package issuesync decides whether an error signature maps to an existing
// tracker issue or needs a new one. One call performs one linear scan of the
// project's issues and exactly one mutation: the first issue whose title
// matches byte for byte is reopened with a fresh description, otherwise a
// new issue is created.
package issuesync

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/Dicklesworthstone/glreporter/internal/tracker"
)

// Synchronizer performs the reopen-or-create decision against a tracker.
//
// Concurrent Sync calls for the same title inside one process are collapsed
// into a single flight, which narrows (but cannot close, across processes)
// the window in which two occurrences of the same signature race past each
// other's in-flight creation.
type Synchronizer struct {
	Client tracker.Tracker
	Logger *slog.Logger

	group singleflight.Group
}

// New creates a Synchronizer for the given tracker client.
func New(client tracker.Tracker) *Synchronizer {
	return &Synchronizer{Client: client}
}

func (s *Synchronizer) logger() *slog.Logger {
	if s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Sync reopens the first issue in the project titled exactly title, giving
// it the new description, or creates one when no title matches. The matched
// or created issue is returned. Errors from the tracker propagate to the
// caller; an invalid project or token surfaces from the project lookup.
func (s *Synchronizer) Sync(ctx context.Context, projectID int, title, description string, assigneeID *int) (*tracker.Issue, error) {
	v, err, _ := s.group.Do(title, func() (any, error) {
		return s.sync(ctx, projectID, title, description, assigneeID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*tracker.Issue), nil
}

func (s *Synchronizer) sync(ctx context.Context, projectID int, title, description string, assigneeID *int) (*tracker.Issue, error) {
	project, err := s.Client.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("resolve project %d: %w", projectID, err)
	}

	it := s.Client.ListIssues(ctx, project.ID)
	for {
		issue, err := it.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan issues of project %d: %w", project.ID, err)
		}
		if issue == nil {
			break
		}
		if issue.Title != title {
			continue
		}

		// First match wins; the rest of the sequence is never fetched.
		updated, err := s.Client.UpdateIssue(ctx, project.ID, issue.IID, tracker.IssueUpdate{
			StateEvent:  tracker.StateEventReopen,
			Description: &description,
		})
		if err != nil {
			return nil, fmt.Errorf("reopen issue %d: %w", issue.IID, err)
		}
		s.logger().Info("reopened existing issue",
			"project_id", project.ID,
			"issue_iid", issue.IID,
			"title", title)
		return updated, nil
	}

	created, err := s.Client.CreateIssue(ctx, project.ID, tracker.NewIssue{
		Title:       title,
		Description: description,
		AssigneeID:  assigneeID,
	})
	if err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}
	s.logger().Info("created issue",
		"project_id", project.ID,
		"issue_iid", created.IID,
		"title", title)
	return created, nil
}
