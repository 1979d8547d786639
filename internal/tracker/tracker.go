// Package tracker defines the capability the reporter needs from an issue
// tracker: resolve a project, walk its issues lazily, create an issue, and
// persist one update. The GitLab client implements it; tests substitute a
// double with the same shape.
package tracker

import "context"

// Issue states as the tracker reports them.
const (
	StateOpened = "opened"
	StateClosed = "closed"
)

// StateEventReopen is the update event that moves an issue back to open.
const StateEventReopen = "reopen"

// Project identifies a tracker project.
type Project struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	WebURL string `json:"web_url"`
}

// Issue is a tracker issue as returned by list, create, and update calls.
type Issue struct {
	IID         int    `json:"iid"`
	ProjectID   int    `json:"project_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	State       string `json:"state"`
	WebURL      string `json:"web_url"`
}

// NewIssue describes an issue to create.
type NewIssue struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	AssigneeID  *int   `json:"assignee_id,omitempty"`
}

// IssueUpdate describes pending field changes persisted in a single call.
// Zero-value fields are left untouched on the remote issue.
type IssueUpdate struct {
	StateEvent  string  `json:"state_event,omitempty"`
	Description *string `json:"description,omitempty"`
}

// IssueIterator walks a project's issues lazily in tracker order. It is a
// single forward pass: once Next returns (nil, nil) the sequence is
// exhausted and the iterator cannot be restarted.
type IssueIterator interface {
	Next(ctx context.Context) (*Issue, error)
}

// Tracker is the client capability the synchronizer consumes.
type Tracker interface {
	GetProject(ctx context.Context, id int) (*Project, error)
	ListIssues(ctx context.Context, projectID int) IssueIterator
	CreateIssue(ctx context.Context, projectID int, req NewIssue) (*Issue, error)
	UpdateIssue(ctx context.Context, projectID, issueIID int, req IssueUpdate) (*Issue, error)
}
