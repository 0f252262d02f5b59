// internal/github/client.go
package github

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	apperrors "github.com/DylanCa/ideaboard-api-sub001/internal/errors"
	"github.com/DylanCa/ideaboard-api-sub001/internal/model"
)

const (
	pageSize = 100

	// Per-call budget; a stalled remote call has no other termination
	// mechanism than this timeout.
	callTimeout = 30 * time.Second
)

// CallRecorder receives one quota ledger entry per remote call. Recording
// must never fail the caller's main operation; implementations log their own
// failures and return nothing.
type CallRecorder interface {
	RecordCall(ctx context.Context, entry model.QuotaLedgerEntry)
}

// Client wraps the GitHub GraphQL API (collection fetches, with per-call
// quota receipts) and the REST API (rate-limit probe).
type Client struct {
	gql      *githubv4.Client
	rest     *gh.Client
	logger   *slog.Logger
	recorder CallRecorder
	caller   string
}

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client shared
// by both the GraphQL and REST transports. Every successful GraphQL call is
// reported to recorder under the given caller identity.
func NewClient(token string, logger *slog.Logger, recorder CallRecorder, caller string) *Client {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	return &Client{
		gql:      githubv4.NewClient(tc),
		rest:     gh.NewClient(tc),
		logger:   logger,
		recorder: recorder,
		caller:   caller,
	}
}

// SetEndpoints points both transports at alternate base URLs, for GitHub
// Enterprise deployments and for tests.
func (c *Client) SetEndpoints(graphqlURL, restURL string, httpClient *http.Client) error {
	restClient, err := gh.NewClient(httpClient).WithEnterpriseURLs(restURL, restURL)
	if err != nil {
		return err
	}
	c.gql = githubv4.NewEnterpriseClient(graphqlURL, httpClient)
	c.rest = restClient
	return nil
}

// rateLimitBlock is embedded in every GraphQL query so each call yields its
// own cost receipt.
type rateLimitBlock struct {
	Cost      githubv4.Int
	Remaining githubv4.Int
	ResetAt   githubv4.DateTime
}

type pageInfoBlock struct {
	EndCursor   githubv4.String
	HasNextPage githubv4.Boolean
}

func (p pageInfoBlock) toModel() model.PageInfo {
	return model.PageInfo{
		EndCursor:   string(p.EndCursor),
		HasNextPage: bool(p.HasNextPage),
	}
}

// query executes a single GraphQL call with a bounded timeout and wraps any
// failure in a categorized FetchError.
func (c *Client) query(ctx context.Context, name string, q any, vars map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	start := time.Now()
	c.logger.Debug("Executing GitHub GraphQL query", "query", name)
	if err := c.gql.Query(ctx, q, vars); err != nil {
		c.logger.Debug("GitHub GraphQL query failed",
			"query", name, "elapsed", time.Since(start), "error", err)
		return &apperrors.FetchError{Kind: classify(err), QueryName: name, Err: err}
	}
	c.logger.Debug("GitHub GraphQL query succeeded",
		"query", name, "elapsed", time.Since(start))
	return nil
}

// record hands the call's cost receipt to the recorder, if one is attached.
func (c *Client) record(ctx context.Context, name string, rl rateLimitBlock) model.QuotaLedgerEntry {
	entry := model.QuotaLedgerEntry{
		Caller:          c.caller,
		QueryName:       name,
		Cost:            int(rl.Cost),
		RemainingPoints: int(rl.Remaining),
		ResetAt:         rl.ResetAt.Time,
		ExecutedAt:      time.Now().UTC(),
	}
	if c.recorder != nil {
		c.recorder.RecordCall(ctx, entry)
	}
	return entry
}

// classify maps a githubv4 transport error to a FetchKind. The GraphQL
// package exports no error types, so this has to sniff messages the way the
// GitHub API phrases them.
func classify(err error) apperrors.FetchKind {
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "status code: 401") || strings.Contains(msg, "Bad credentials"):
		return apperrors.FetchKindAuth
	case strings.Contains(msg, "RATE_LIMITED") || strings.Contains(msg, "rate limit"):
		return apperrors.FetchKindRateLimited
	case strings.Contains(msg, "NOT_FOUND") || strings.Contains(msg, "Could not resolve to a Repository"):
		return apperrors.FetchKindNotFound
	default:
		return apperrors.FetchKindNetwork
	}
}

// GetRepository resolves a single repository by owner/name. A missing
// repository surfaces as a FetchError with kind not_found; the caller
// decides whether that is user-visible.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*model.Repository, error) {
	var q struct {
		Repository struct {
			DatabaseID githubv4.Int
			Name       githubv4.String
			Owner      struct {
				Login githubv4.String
			}
		} `graphql:"repository(owner: $owner, name: $name)"`
		RateLimit rateLimitBlock `graphql:"rateLimit"`
	}
	vars := map[string]any{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(name),
	}
	if err := c.query(ctx, "repositoryLookup", &q, vars); err != nil {
		return nil, err
	}
	c.record(ctx, "repositoryLookup", q.RateLimit)

	return &model.Repository{
		GithubRepoID: int64(q.Repository.DatabaseID),
		Owner:        string(q.Repository.Owner.Login),
		Name:         string(q.Repository.Name),
	}, nil
}

// RateLimit reads the current REST rate-limit status. Used by the quota
// monitor work unit; costs no GraphQL points.
func (c *Client) RateLimit(ctx context.Context) (*gh.Rate, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	limits, resp, err := c.rest.RateLimit.Get(ctx)
	if err != nil {
		kind := apperrors.FetchKindNetwork
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			kind = apperrors.FetchKindAuth
		}
		return nil, &apperrors.FetchError{Kind: kind, QueryName: "rateLimit", Err: err}
	}
	return limits.Core, nil
}
