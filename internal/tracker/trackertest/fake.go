// Package trackertest provides an in-memory tracker.Tracker double whose
// issue list reflects prior creations and updates, so tests can exercise the
// reopen-or-create decision against a tracker that behaves like the real one.
package trackertest

import (
	"context"
	"sync"

	"github.com/Dicklesworthstone/glreporter/internal/tracker"
)

// Fake is an in-memory Tracker. The zero value is unusable; use New.
type Fake struct {
	mu      sync.Mutex
	project tracker.Project
	issues  []tracker.Issue
	nextIID int

	// Error injection. A non-nil value makes the corresponding call fail.
	GetProjectErr error
	ListErr       error
	CreateErr     error
	UpdateErr     error

	// Call counters.
	Creates int
	Updates int
	Lists   int
}

// New creates a Fake holding one project.
func New(projectID int) *Fake {
	return &Fake{
		project: tracker.Project{ID: projectID, Name: "fake", WebURL: "https://gitlab.example/fake"},
		nextIID: 1,
	}
}

// Seed adds an existing issue and returns it.
func (f *Fake) Seed(title, description, state string) tracker.Issue {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue := tracker.Issue{
		IID:         f.nextIID,
		ProjectID:   f.project.ID,
		Title:       title,
		Description: description,
		State:       state,
	}
	f.nextIID++
	f.issues = append(f.issues, issue)
	return issue
}

// Issues returns a snapshot of all issues.
func (f *Fake) Issues() []tracker.Issue {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]tracker.Issue, len(f.issues))
	copy(out, f.issues)
	return out
}

func (f *Fake) GetProject(ctx context.Context, id int) (*tracker.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetProjectErr != nil {
		return nil, f.GetProjectErr
	}
	if id != f.project.ID {
		return nil, tracker.ErrNotFound
	}
	p := f.project
	return &p, nil
}

func (f *Fake) ListIssues(ctx context.Context, projectID int) tracker.IssueIterator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Lists++
	if f.ListErr != nil {
		return &fakeIterator{err: f.ListErr}
	}
	snapshot := make([]tracker.Issue, len(f.issues))
	copy(snapshot, f.issues)
	return &fakeIterator{issues: snapshot}
}

func (f *Fake) CreateIssue(ctx context.Context, projectID int, req tracker.NewIssue) (*tracker.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.Creates++
	issue := tracker.Issue{
		IID:         f.nextIID,
		ProjectID:   projectID,
		Title:       req.Title,
		Description: req.Description,
		State:       tracker.StateOpened,
	}
	f.nextIID++
	f.issues = append(f.issues, issue)
	out := issue
	return &out, nil
}

func (f *Fake) UpdateIssue(ctx context.Context, projectID, issueIID int, req tracker.IssueUpdate) (*tracker.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpdateErr != nil {
		return nil, f.UpdateErr
	}
	for i := range f.issues {
		if f.issues[i].IID != issueIID {
			continue
		}
		f.Updates++
		if req.StateEvent == tracker.StateEventReopen {
			f.issues[i].State = tracker.StateOpened
		}
		if req.Description != nil {
			f.issues[i].Description = *req.Description
		}
		out := f.issues[i]
		return &out, nil
	}
	return nil, tracker.ErrNotFound
}

type fakeIterator struct {
	issues []tracker.Issue
	idx    int
	err    error
}

func (it *fakeIterator) Next(ctx context.Context) (*tracker.Issue, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.idx >= len(it.issues) {
		return nil, nil
	}
	issue := it.issues[it.idx]
	it.idx++
	return &issue, nil
}
