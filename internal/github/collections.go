// internal/github/collections.go
package github

import (
	"context"
	"database/sql"
	"time"

	"github.com/shurcooL/githubv4"

	"github.com/DylanCa/ideaboard-api-sub001/internal/model"
)

type prNode struct {
	ID     githubv4.String
	Number githubv4.Int
	Title  githubv4.String
	Author struct {
		Login githubv4.String
	}
	State     githubv4.String
	IsDraft   githubv4.Boolean
	Merged    githubv4.Boolean
	CreatedAt githubv4.DateTime
	UpdatedAt githubv4.DateTime
	ClosedAt  *githubv4.DateTime
	MergedAt  *githubv4.DateTime
}

type issueNode struct {
	ID     githubv4.String
	Number githubv4.Int
	Title  githubv4.String
	Author struct {
		Login githubv4.String
	}
	State     githubv4.String
	CreatedAt githubv4.DateTime
	UpdatedAt githubv4.DateTime
	ClosedAt  *githubv4.DateTime
}

// ListPullRequests fetches every open pull request of a repository in the
// remote API's page order. The pullRequests connection has no server-side
// since filter, so every pass is a full fetch of open items; the idempotent
// upsert downstream absorbs re-delivery.
func (c *Client) ListPullRequests(ctx context.Context, owner, name string) ([]model.PullRequest, error) {
	return fetchAll(ctx, func(ctx context.Context, cursor *githubv4.String) ([]model.PullRequest, model.PageInfo, error) {
		var q struct {
			Repository struct {
				PullRequests struct {
					Nodes    []prNode
					PageInfo pageInfoBlock
				} `graphql:"pullRequests(first: $first, after: $cursor, states: [OPEN], orderBy: {field: UPDATED_AT, direction: ASC})"`
			} `graphql:"repository(owner: $owner, name: $name)"`
			RateLimit rateLimitBlock `graphql:"rateLimit"`
		}
		vars := map[string]any{
			"owner":  githubv4.String(owner),
			"name":   githubv4.String(name),
			"first":  githubv4.Int(pageSize),
			"cursor": cursor,
		}
		if err := c.query(ctx, "repoPullRequests", &q, vars); err != nil {
			return nil, model.PageInfo{}, err
		}
		c.record(ctx, "repoPullRequests", q.RateLimit)

		prs := make([]model.PullRequest, 0, len(q.Repository.PullRequests.Nodes))
		for _, n := range q.Repository.PullRequests.Nodes {
			prs = append(prs, toInternalPullRequest(n))
		}
		return prs, q.Repository.PullRequests.PageInfo.toModel(), nil
	})
}

// ListIssues fetches every open issue of a repository in the remote API's
// page order. A non-nil since is threaded into the remote filter so
// incremental polls only see issues updated after the watermark; nil means
// fetch all open issues.
func (c *Client) ListIssues(ctx context.Context, owner, name string, since *time.Time) ([]model.Issue, error) {
	var sinceVar *githubv4.DateTime
	if since != nil {
		sinceVar = &githubv4.DateTime{Time: since.UTC()}
	}
	return fetchAll(ctx, func(ctx context.Context, cursor *githubv4.String) ([]model.Issue, model.PageInfo, error) {
		var q struct {
			Repository struct {
				Issues struct {
					Nodes    []issueNode
					PageInfo pageInfoBlock
				} `graphql:"issues(first: $first, after: $cursor, states: [OPEN], filterBy: {since: $since}, orderBy: {field: UPDATED_AT, direction: ASC})"`
			} `graphql:"repository(owner: $owner, name: $name)"`
			RateLimit rateLimitBlock `graphql:"rateLimit"`
		}
		vars := map[string]any{
			"owner":  githubv4.String(owner),
			"name":   githubv4.String(name),
			"first":  githubv4.Int(pageSize),
			"cursor": cursor,
			"since":  sinceVar,
		}
		if err := c.query(ctx, "repoIssues", &q, vars); err != nil {
			return nil, model.PageInfo{}, err
		}
		c.record(ctx, "repoIssues", q.RateLimit)

		issues := make([]model.Issue, 0, len(q.Repository.Issues.Nodes))
		for _, n := range q.Repository.Issues.Nodes {
			issues = append(issues, toInternalIssue(n))
		}
		return issues, q.Repository.Issues.PageInfo.toModel(), nil
	})
}

// toInternalPullRequest translates a GraphQL pull request node to our internal model.
func toInternalPullRequest(n prNode) model.PullRequest {
	return model.PullRequest{
		GithubID:    string(n.ID),
		Number:      int(n.Number),
		Title:       string(n.Title),
		Author:      string(n.Author.Login),
		State:       string(n.State),
		IsDraft:     bool(n.IsDraft),
		Merged:      bool(n.Merged),
		GHCreatedAt: n.CreatedAt.Time,
		GHUpdatedAt: n.UpdatedAt.Time,
		ClosedAt:    toNullTime(n.ClosedAt),
		MergedAt:    toNullTime(n.MergedAt),
	}
}

// toInternalIssue translates a GraphQL issue node to our internal model.
func toInternalIssue(n issueNode) model.Issue {
	return model.Issue{
		GithubID:    string(n.ID),
		Number:      int(n.Number),
		Title:       string(n.Title),
		Author:      string(n.Author.Login),
		State:       string(n.State),
		GHCreatedAt: n.CreatedAt.Time,
		GHUpdatedAt: n.UpdatedAt.Time,
		ClosedAt:    toNullTime(n.ClosedAt),
	}
}

func toNullTime(t *githubv4.DateTime) sql.NullTime {
	if t == nil || t.Time.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.Time, Valid: true}
}
