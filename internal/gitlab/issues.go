package gitlab

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Dicklesworthstone/glreporter/internal/tracker"
)

// GetProject resolves a project by numeric ID.
func (c *Client) GetProject(ctx context.Context, id int) (*tracker.Project, error) {
	var p tracker.Project
	if _, err := c.do(ctx, "GET", "/projects/"+strconv.Itoa(id), nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListIssues returns a lazy iterator over every issue in the project,
// fetching one page per Next call boundary. The iterator holds at most one
// page in memory and cannot be restarted.
func (c *Client) ListIssues(ctx context.Context, projectID int) tracker.IssueIterator {
	return &issueIterator{client: c, projectID: projectID, nextPage: 1}
}

// CreateIssue opens a new issue in the project.
func (c *Client) CreateIssue(ctx context.Context, projectID int, req tracker.NewIssue) (*tracker.Issue, error) {
	var issue tracker.Issue
	path := fmt.Sprintf("/projects/%d/issues", projectID)
	if _, err := c.do(ctx, "POST", path, nil, req, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// UpdateIssue persists all pending field changes for an issue in a single
// request.
func (c *Client) UpdateIssue(ctx context.Context, projectID, issueIID int, req tracker.IssueUpdate) (*tracker.Issue, error) {
	var issue tracker.Issue
	path := fmt.Sprintf("/projects/%d/issues/%d", projectID, issueIID)
	if _, err := c.do(ctx, "PUT", path, nil, req, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// issueIterator pages through GET /projects/:id/issues following the
// X-Next-Page header.
type issueIterator struct {
	client    *Client
	projectID int

	buf      []tracker.Issue
	idx      int
	nextPage int // 0 when the last page has been fetched
	done     bool
}

func (it *issueIterator) Next(ctx context.Context) (*tracker.Issue, error) {
	for it.idx >= len(it.buf) {
		if it.done || it.nextPage == 0 {
			return nil, nil
		}
		if err := it.fetch(ctx); err != nil {
			it.done = true
			return nil, err
		}
	}
	issue := it.buf[it.idx]
	it.idx++
	return &issue, nil
}

func (it *issueIterator) fetch(ctx context.Context) error {
	query := url.Values{
		"page":     {strconv.Itoa(it.nextPage)},
		"per_page": {strconv.Itoa(it.client.perPage)},
	}

	var page []tracker.Issue
	path := fmt.Sprintf("/projects/%d/issues", it.projectID)
	header, err := it.client.do(ctx, "GET", path, query, nil, &page)
	if err != nil {
		return fmt.Errorf("list issues page %d: %w", it.nextPage, err)
	}

	it.buf = page
	it.idx = 0

	next, err := strconv.Atoi(header.Get("X-Next-Page"))
	if err != nil || next <= it.nextPage {
		it.nextPage = 0
	} else {
		it.nextPage = next
	}
	if len(page) == 0 {
		it.done = true
	}
	return nil
}
