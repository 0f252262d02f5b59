//go:build integration

// cmd/service/integration_test.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/DylanCa/ideaboard-api-sub001/internal/github"
	"github.com/DylanCa/ideaboard-api-sub001/internal/model"
	"github.com/DylanCa/ideaboard-api-sub001/internal/quota"
	"github.com/DylanCa/ideaboard-api-sub001/internal/store"
	"github.com/DylanCa/ideaboard-api-sub001/internal/syncer"
)

func setupTestDatabase(ctx context.Context, t *testing.T) (*pgxpool.Pool, func()) {
	// Start a postgres container
	pgContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second),
		),
	)
	require.NoError(t, err)

	// Get the connection string
	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	m, err := migrate.New("file://../../migrations", connStr)
	require.NoError(t, err)
	err = m.Up()
	require.NoError(t, err)

	// Create a connection pool
	dbpool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	// Teardown function to be called by the test
	teardown := func() {
		dbpool.Close()
		err := pgContainer.Terminate(ctx)
		require.NoError(t, err)
	}

	return dbpool, teardown
}

// newGithubStub serves canned GraphQL responses keyed on the requested
// collection.
func newGithubStub(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query string `json:"query"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch {
		case strings.Contains(body.Query, "pullRequests("):
			fmt.Fprint(w, `{"data": {
				"repository": {"pullRequests": {
					"nodes": [
						{"id": "PR_1", "number": 1, "title": "feat: new feature",
						 "author": {"login": "tester"}, "state": "OPEN",
						 "isDraft": false, "merged": false,
						 "createdAt": "2024-01-01T12:00:00Z", "updatedAt": "2024-01-01T13:00:00Z",
						 "closedAt": null, "mergedAt": null},
						{"id": "PR_2", "number": 2, "title": "fix: a bug",
						 "author": {"login": "tester"}, "state": "OPEN",
						 "isDraft": true, "merged": false,
						 "createdAt": "2024-01-02T12:00:00Z", "updatedAt": "2024-01-02T13:00:00Z",
						 "closedAt": null, "mergedAt": null}
					],
					"pageInfo": {"endCursor": "", "hasNextPage": false}
				}},
				"rateLimit": {"cost": 1, "remaining": 4999, "resetAt": "2024-01-02T14:00:00Z"}
			}}`)
		case strings.Contains(body.Query, "issues("):
			fmt.Fprint(w, `{"data": {
				"repository": {"issues": {
					"nodes": [
						{"id": "I_1", "number": 3, "title": "something broke",
						 "author": {"login": "reporter"}, "state": "OPEN",
						 "createdAt": "2024-01-03T12:00:00Z", "updatedAt": "2024-01-03T13:00:00Z",
						 "closedAt": null}
					],
					"pageInfo": {"endCursor": "", "hasNextPage": false}
				}},
				"rateLimit": {"cost": 1, "remaining": 4998, "resetAt": "2024-01-02T14:00:00Z"}
			}}`)
		default:
			fmt.Fprint(w, `{"data": {
				"repository": {"databaseId": 123, "name": "test-repo", "owner": {"login": "test-owner"}},
				"rateLimit": {"cost": 1, "remaining": 5000, "resetAt": "2024-01-02T14:00:00Z"}
			}}`)
		}
	}))
}

func TestSyncer_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbpool, teardown := setupTestDatabase(ctx, t)
	defer teardown()

	server := newGithubStub(t)
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	db := store.New(dbpool)
	ledger := quota.NewLedger(db, logger, "test-user", model.UsageTypePersonal)

	ghClient := github.NewClient("", logger, ledger, "test-user")
	require.NoError(t, ghClient.SetEndpoints(server.URL, server.URL, server.Client()))

	appSyncer, err := syncer.NewSyncer(db, ghClient, logger, []string{"test-owner/test-repo"}, time.Hour, time.Time{})
	require.NoError(t, err)

	// --- ACT ---
	err = appSyncer.SyncRepository(ctx, syncer.RepoIdentifier{Owner: "test-owner", Name: "test-repo"})
	require.NoError(t, err)

	// --- ASSERT ---
	repo, err := db.GetRepositoryByOwnerAndName(ctx, "test-owner", "test-repo")
	require.NoError(t, err)
	assert.Equal(t, int64(123), repo.GithubRepoID)
	assert.True(t, repo.LastPolledAt.Valid, "watermark advances after a successful pass")

	var prCount, issueCount, ledgerCount int
	require.NoError(t, dbpool.QueryRow(ctx, `SELECT count(*) FROM pull_requests WHERE repository_id = $1`, repo.ID).Scan(&prCount))
	require.NoError(t, dbpool.QueryRow(ctx, `SELECT count(*) FROM issues WHERE repository_id = $1`, repo.ID).Scan(&issueCount))
	require.NoError(t, dbpool.QueryRow(ctx, `SELECT count(*) FROM quota_ledger`).Scan(&ledgerCount))
	assert.Equal(t, 2, prCount)
	assert.Equal(t, 1, issueCount)
	// One lookup call plus one page per collection.
	assert.Equal(t, 3, ledgerCount)

	// Re-running the same sync is idempotent and keeps the watermark moving forward.
	first := repo.LastPolledAt.Time
	require.NoError(t, appSyncer.SyncRepository(ctx, syncer.RepoIdentifier{Owner: "test-owner", Name: "test-repo"}))
	repo, err = db.GetRepositoryByOwnerAndName(ctx, "test-owner", "test-repo")
	require.NoError(t, err)
	assert.False(t, repo.LastPolledAt.Time.Before(first))
	require.NoError(t, dbpool.QueryRow(ctx, `SELECT count(*) FROM pull_requests WHERE repository_id = $1`, repo.ID).Scan(&prCount))
	assert.Equal(t, 2, prCount, "upserts absorb re-delivery of the same remote ids")

	// The reporting read path sees the usage the sync just generated.
	today := time.Now().UTC()
	report, err := quota.NewAggregator(db).AggregateUsage(ctx, "test-user", today, today)
	require.NoError(t, err)
	assert.Equal(t, 6, report.TotalStats.TotalQueries)
	assert.Equal(t, 6, report.TotalStats.TotalPointsUsed)
	assert.Equal(t, model.UsageTypeGlobalPool, report.TokenSettings.DefaultUsageType, "users without settings fall back to the global pool")
}
