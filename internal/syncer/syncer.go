// internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	custom_errors "github.com/DylanCa/ideaboard-api-sub001/internal/errors"
	"github.com/DylanCa/ideaboard-api-sub001/internal/jobs"
	"github.com/DylanCa/ideaboard-api-sub001/internal/model"
	"github.com/DylanCa/ideaboard-api-sub001/internal/store"
)

const (
	// Number of repositories to sync in parallel
	concurrency = 5
)

// RepoIdentifier holds the owner and name of a repository.
type RepoIdentifier struct {
	Owner string
	Name  string
}

// RemoteClient is the slice of the GitHub client the syncer depends on.
type RemoteClient interface {
	GetRepository(ctx context.Context, owner, name string) (*model.Repository, error)
	ListPullRequests(ctx context.Context, owner, name string) ([]model.PullRequest, error)
	ListIssues(ctx context.Context, owner, name string, since *time.Time) ([]model.Issue, error)
}

// Syncer orchestrates the fetching and storing of pull requests and issues.
type Syncer struct {
	db           store.Querier
	ghClient     RemoteClient
	logger       *slog.Logger
	runner       *jobs.Runner
	retry        jobs.RetryPolicy
	reposToSync  []RepoIdentifier
	syncInterval time.Duration
	defaultSince time.Time
}

// NewSyncer creates a new Syncer instance.
func NewSyncer(db store.Querier, ghClient RemoteClient, logger *slog.Logger, repos []string, interval time.Duration, defaultSince time.Time) (*Syncer, error) {
	parsedRepos, err := parseRepoIdentifiers(repos)
	if err != nil {
		return nil, err
	}

	return &Syncer{
		db:           db,
		ghClient:     ghClient,
		logger:       logger,
		runner:       jobs.NewRunner(logger),
		retry:        jobs.DefaultRetryPolicy(),
		reposToSync:  parsedRepos,
		syncInterval: interval,
		defaultSince: defaultSince,
	}, nil
}

// Start begins the continuous synchronization process. Each cycle is one
// unit of background work dispatched through the job runner with the
// standard retry budget.
func (s *Syncer) Start(ctx context.Context) {
	s.logger.Info("Starting syncer", "interval", s.syncInterval.String(), "concurrency", concurrency)
	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	s.runSyncCycle(ctx) // Initial sync

	for {
		select {
		case <-ticker.C:
			s.runSyncCycle(ctx)
		case <-ctx.Done():
			s.logger.Info("Syncer shutting down", "reason", ctx.Err())
			return
		}
	}
}

// runSyncCycle dispatches one full pass over all configured repositories.
// A failed pass is retried by the policy; after the budget is exhausted it
// remains visible only in logs, there is no synchronous caller to notify.
func (s *Syncer) runSyncCycle(ctx context.Context) {
	work := jobs.Func{
		JobName: "sync_repositories",
		Run: func(ctx context.Context) error {
			return s.SyncMany(ctx, s.reposToSync)
		},
	}
	args := jobs.Sanitize(fmt.Sprintf("%d repositories", len(s.reposToSync)))
	if err := s.retry.Run(ctx, s.runner, work, args); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("Sync cycle failed after retries", "error", err)
	}
}

// SyncMany syncs each repository independently on a bounded worker pool.
// One repository's failure never rolls back or blocks another's progress;
// any failure is reported so the surrounding retry policy can act.
func (s *Syncer) SyncMany(ctx context.Context, repos []RepoIdentifier) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var failed atomic.Int64
	for _, repoID := range repos {
		repoID := repoID
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			work := jobs.Func{
				JobName: "sync_repository",
				Run: func(ctx context.Context) error {
					return s.SyncRepository(ctx, repoID)
				},
			}
			args := jobs.Sanitize(jobs.EntityRef{Kind: "Repository", ID: repoID.Owner + "/" + repoID.Name})
			if err := s.runner.Perform(gctx, work, args); err != nil && !errors.Is(err, context.Canceled) {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d repositories failed to sync", n, len(repos))
	}
	return nil
}

// SyncRepository handles the full synchronization logic for a single
// repository. The watermark is advanced only as the last step of a fully
// successful pass; on any fetch or persistence failure it stays put, so the
// next incremental poll re-covers the window.
func (s *Syncer) SyncRepository(ctx context.Context, id RepoIdentifier) error {
	logger := s.logger.With("owner", id.Owner, "repo", id.Name)
	logger.Info("Syncing repository")

	ghRepo, err := s.ghClient.GetRepository(ctx, id.Owner, id.Name)
	if err != nil {
		return err
	}

	dbRepo, err := s.db.UpsertRepository(ctx, *ghRepo)
	if err != nil {
		return err
	}
	logger = logger.With("repo_id", dbRepo.ID)

	since := s.sinceForRepo(dbRepo)
	if since != nil {
		logger.Info("Fetching items updated since", "timestamp", since.Format(time.RFC3339))
	} else {
		logger.Info("No watermark, fetching all open items")
	}

	// The two collections are paginated independently; the pull request
	// connection has no server-side since filter (see ListPullRequests).
	prs, err := s.ghClient.ListPullRequests(ctx, id.Owner, id.Name)
	if err != nil {
		return err
	}
	issues, err := s.ghClient.ListIssues(ctx, id.Owner, id.Name, since)
	if err != nil {
		return err
	}

	if len(prs) == 0 && len(issues) == 0 {
		// A repo with zero open items in the window is still caught up.
		logger.Info("No new items found")
	}
	if len(prs) > 0 {
		n, err := s.db.UpsertPullRequests(ctx, dbRepo.ID, prs)
		if err != nil {
			return err
		}
		logger.Info("Upserted pull requests", "fetched", len(prs), "written", n)
	}
	if len(issues) > 0 {
		n, err := s.db.UpsertIssues(ctx, dbRepo.ID, issues)
		if err != nil {
			return err
		}
		logger.Info("Upserted issues", "fetched", len(issues), "written", n)
	}

	return s.db.SetLastPolledAt(ctx, dbRepo.ID, time.Now().UTC())
}

// AddRepository resolves a repository by its "owner/name" slug and registers
// it for syncing. A slug that does not resolve remotely is a no-op, not an
// error; whether that is user-visible is the caller's decision.
func (s *Syncer) AddRepository(ctx context.Context, fullName string) (*model.Repository, error) {
	parsed, err := parseRepoIdentifiers([]string{fullName})
	if err != nil {
		return nil, err
	}
	id := parsed[0]

	ghRepo, err := s.ghClient.GetRepository(ctx, id.Owner, id.Name)
	if err != nil {
		if custom_errors.IsFetchKind(err, custom_errors.FetchKindNotFound) {
			s.logger.Info("Repository not found on remote, skipping", "full_name", fullName)
			return nil, nil
		}
		return nil, err
	}

	repo, err := s.db.UpsertRepository(ctx, *ghRepo)
	if err != nil {
		return nil, err
	}
	return &repo, nil
}

// sinceForRepo picks the incremental filter for a repository: the watermark
// when one exists, the configured default start date otherwise, nil when
// neither is set (full fetch of open items).
func (s *Syncer) sinceForRepo(repo model.Repository) *time.Time {
	if repo.LastPolledAt.Valid {
		t := repo.LastPolledAt.Time
		return &t
	}
	if !s.defaultSince.IsZero() {
		t := s.defaultSince
		return &t
	}
	return nil
}

func parseRepoIdentifiers(repos []string) ([]RepoIdentifier, error) {
	var identifiers []RepoIdentifier
	for _, r := range repos {
		parts := strings.Split(r, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, &custom_errors.ErrInvalidRepoFormat{Repo: r}
		}
		identifiers = append(identifiers, RepoIdentifier{Owner: parts[0], Name: parts[1]})
	}
	return identifiers, nil
}
