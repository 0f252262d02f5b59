// internal/store/store.go
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/DylanCa/ideaboard-api-sub001/internal/errors"
	"github.com/DylanCa/ideaboard-api-sub001/internal/model"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx, so the same queries run
// inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Querier is the persistence surface consumed by the syncer, the quota
// ledger and the API layer. All item writes are idempotent upserts keyed by
// the remote id; ledger and usage-log writes are append-only.
type Querier interface {
	UpsertRepository(ctx context.Context, repo model.Repository) (model.Repository, error)
	GetRepositoryByOwnerAndName(ctx context.Context, owner, name string) (model.Repository, error)
	ListRepositories(ctx context.Context) ([]model.Repository, error)
	SetLastPolledAt(ctx context.Context, repoID int64, polledAt time.Time) error

	UpsertPullRequests(ctx context.Context, repoID int64, prs []model.PullRequest) (int64, error)
	UpsertIssues(ctx context.Context, repoID int64, issues []model.Issue) (int64, error)

	InsertQuotaLedgerEntry(ctx context.Context, entry model.QuotaLedgerEntry) error
	InsertUsageLog(ctx context.Context, log model.UsageLog) error
	ListUsageLogs(ctx context.Context, userID string, start, end time.Time) ([]model.UsageLog, error)
	GetTokenSettings(ctx context.Context, userID string) (model.TokenSettings, error)
}

// Store implements Querier over a pgx connection source.
type Store struct {
	db DBTX
}

func New(db DBTX) *Store {
	return &Store{db: db}
}

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = pgx.ErrNoRows

func persistErr(op string, err error) error {
	return &apperrors.PersistenceError{Op: op, Err: err}
}

const upsertRepositorySQL = `
INSERT INTO repositories (github_repo_id, owner, name)
VALUES ($1, $2, $3)
ON CONFLICT (github_repo_id) DO UPDATE
SET owner = EXCLUDED.owner, name = EXCLUDED.name, updated_at = now()
RETURNING id, github_repo_id, owner, name, last_polled_at, created_at, updated_at`

func (s *Store) UpsertRepository(ctx context.Context, repo model.Repository) (model.Repository, error) {
	row := s.db.QueryRow(ctx, upsertRepositorySQL, repo.GithubRepoID, repo.Owner, repo.Name)
	out, err := scanRepository(row)
	if err != nil {
		return model.Repository{}, persistErr("upsert repository", err)
	}
	return out, nil
}

const getRepositorySQL = `
SELECT id, github_repo_id, owner, name, last_polled_at, created_at, updated_at
FROM repositories
WHERE owner = $1 AND name = $2`

func (s *Store) GetRepositoryByOwnerAndName(ctx context.Context, owner, name string) (model.Repository, error) {
	return scanRepository(s.db.QueryRow(ctx, getRepositorySQL, owner, name))
}

const listRepositoriesSQL = `
SELECT id, github_repo_id, owner, name, last_polled_at, created_at, updated_at
FROM repositories
ORDER BY owner, name`

func (s *Store) ListRepositories(ctx context.Context) ([]model.Repository, error) {
	rows, err := s.db.Query(ctx, listRepositoriesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// SetLastPolledAt advances the watermark in a single UPDATE; concurrent
// readers see either the old value or the new one, never a torn write.
func (s *Store) SetLastPolledAt(ctx context.Context, repoID int64, polledAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE repositories SET last_polled_at = $2, updated_at = now() WHERE id = $1`,
		repoID, polledAt)
	if err != nil {
		return persistErr("set last_polled_at", err)
	}
	if tag.RowsAffected() == 0 {
		return persistErr("set last_polled_at", errors.New("repository row missing"))
	}
	return nil
}

const upsertPullRequestSQL = `
INSERT INTO pull_requests
  (github_id, repository_id, number, title, author, state, is_draft, merged,
   gh_created_at, gh_updated_at, closed_at, merged_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (github_id) DO UPDATE SET
  title = EXCLUDED.title,
  author = EXCLUDED.author,
  state = EXCLUDED.state,
  is_draft = EXCLUDED.is_draft,
  merged = EXCLUDED.merged,
  gh_updated_at = EXCLUDED.gh_updated_at,
  closed_at = EXCLUDED.closed_at,
  merged_at = EXCLUDED.merged_at`

func (s *Store) UpsertPullRequests(ctx context.Context, repoID int64, prs []model.PullRequest) (int64, error) {
	batch := &pgx.Batch{}
	for _, pr := range prs {
		batch.Queue(upsertPullRequestSQL,
			pr.GithubID, repoID, pr.Number, pr.Title, pr.Author, pr.State,
			pr.IsDraft, pr.Merged, pr.GHCreatedAt, pr.GHUpdatedAt,
			pr.ClosedAt, pr.MergedAt)
	}
	n, err := execBatch(ctx, s.db, batch)
	if err != nil {
		return n, persistErr("upsert pull requests", err)
	}
	return n, nil
}

const upsertIssueSQL = `
INSERT INTO issues
  (github_id, repository_id, number, title, author, state,
   gh_created_at, gh_updated_at, closed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (github_id) DO UPDATE SET
  title = EXCLUDED.title,
  author = EXCLUDED.author,
  state = EXCLUDED.state,
  gh_updated_at = EXCLUDED.gh_updated_at,
  closed_at = EXCLUDED.closed_at`

func (s *Store) UpsertIssues(ctx context.Context, repoID int64, issues []model.Issue) (int64, error) {
	batch := &pgx.Batch{}
	for _, is := range issues {
		batch.Queue(upsertIssueSQL,
			is.GithubID, repoID, is.Number, is.Title, is.Author, is.State,
			is.GHCreatedAt, is.GHUpdatedAt, is.ClosedAt)
	}
	n, err := execBatch(ctx, s.db, batch)
	if err != nil {
		return n, persistErr("upsert issues", err)
	}
	return n, nil
}

func (s *Store) InsertQuotaLedgerEntry(ctx context.Context, entry model.QuotaLedgerEntry) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO quota_ledger (caller, query_name, cost, remaining_points, reset_at, executed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.Caller, entry.QueryName, entry.Cost, entry.RemainingPoints,
		entry.ResetAt, entry.ExecutedAt)
	if err != nil {
		return persistErr("insert quota ledger entry", err)
	}
	return nil
}

func (s *Store) InsertUsageLog(ctx context.Context, log model.UsageLog) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO usage_logs (user_id, repository_id, usage_type, points_used, points_remaining, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		log.UserID, log.RepositoryID, string(log.UsageType), log.PointsUsed,
		log.PointsRemaining, log.CreatedAt)
	if err != nil {
		return persistErr("insert usage log", err)
	}
	return nil
}

const listUsageLogsSQL = `
SELECT id, user_id, repository_id, usage_type, points_used, points_remaining, created_at
FROM usage_logs
WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at`

func (s *Store) ListUsageLogs(ctx context.Context, userID string, start, end time.Time) ([]model.UsageLog, error) {
	rows, err := s.db.Query(ctx, listUsageLogsSQL, userID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []model.UsageLog
	for rows.Next() {
		var l model.UsageLog
		var usageType string
		if err := rows.Scan(&l.ID, &l.UserID, &l.RepositoryID, &usageType,
			&l.PointsUsed, &l.PointsRemaining, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.UsageType = model.UsageType(usageType)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// GetTokenSettings returns a user's token configuration. A user with no row
// gets zero-value settings defaulting to the global pool, not an error.
func (s *Store) GetTokenSettings(ctx context.Context, userID string) (model.TokenSettings, error) {
	var ts model.TokenSettings
	var defaultType string
	err := s.db.QueryRow(ctx,
		`SELECT user_id, has_personal_token, default_usage_type FROM user_token_settings WHERE user_id = $1`,
		userID).Scan(&ts.UserID, &ts.HasPersonalToken, &defaultType)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.TokenSettings{
			UserID:           userID,
			DefaultUsageType: model.UsageTypeGlobalPool,
		}, nil
	}
	if err != nil {
		return model.TokenSettings{}, err
	}
	ts.DefaultUsageType = model.UsageType(defaultType)
	return ts, nil
}

func execBatch(ctx context.Context, db DBTX, batch *pgx.Batch) (int64, error) {
	if batch.Len() == 0 {
		return 0, nil
	}
	results := db.SendBatch(ctx, batch)
	defer results.Close()

	var affected int64
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			return affected, err
		}
		affected += tag.RowsAffected()
	}
	return affected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRepository(row rowScanner) (model.Repository, error) {
	var r model.Repository
	err := row.Scan(&r.ID, &r.GithubRepoID, &r.Owner, &r.Name,
		&r.LastPolledAt, &r.DBCreatedAt, &r.DBUpdatedAt)
	return r, err
}
