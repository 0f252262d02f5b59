// internal/model/models.go
package model

import (
	"database/sql"
	"time"
)

// Repository represents a GitHub repository tracked for synchronization.
type Repository struct {
	ID           int64
	GithubRepoID int64 `json:"github_repo_id"`
	Owner        string
	Name         string
	// LastPolledAt is null until the first successful sync pass completes.
	LastPolledAt sql.NullTime
	DBCreatedAt  time.Time
	DBUpdatedAt  time.Time
}

// FullName returns the "owner/name" slug.
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// PullRequest is a pull request as fetched from the remote API. Treated as
// an immutable value object once fetched; the persistence layer upserts by
// GithubID.
type PullRequest struct {
	GithubID     string
	RepositoryID int64
	Number       int
	Title        string
	Author       string
	State        string
	IsDraft      bool
	Merged       bool
	GHCreatedAt  time.Time
	GHUpdatedAt  time.Time
	ClosedAt     sql.NullTime
	MergedAt     sql.NullTime
}

// Issue is an issue as fetched from the remote API.
type Issue struct {
	GithubID     string
	RepositoryID int64
	Number       int
	Title        string
	Author       string
	State        string
	GHCreatedAt  time.Time
	GHUpdatedAt  time.Time
	ClosedAt     sql.NullTime
}

// PageInfo carries the continuation state of a cursor-paginated collection.
// When HasNextPage is false, EndCursor is not consulted.
type PageInfo struct {
	EndCursor   string
	HasNextPage bool
}

// QuotaLedgerEntry records the cost of a single remote call. Entries are
// append-only and never mutated.
type QuotaLedgerEntry struct {
	ID              int64
	Caller          string
	QueryName       string
	Cost            int
	RemainingPoints int
	ResetAt         time.Time
	ExecutedAt      time.Time
}

// UsageType classifies whose quota a billable operation drew from.
type UsageType string

const (
	UsageTypePersonal    UsageType = "personal"
	UsageTypeContributed UsageType = "contributed"
	UsageTypeGlobalPool  UsageType = "global_pool"
)

// UsageTypes lists every known usage type; aggregation seeds each daily
// bucket with all of them so consumers never have to special-case a missing
// key.
func UsageTypes() []UsageType {
	return []UsageType{UsageTypePersonal, UsageTypeContributed, UsageTypeGlobalPool}
}

// UsageLog is one billable remote operation attributed to a user.
// Append-only.
type UsageLog struct {
	ID              int64
	UserID          string
	RepositoryID    sql.NullInt64
	UsageType       UsageType
	PointsUsed      int
	PointsRemaining int
	CreatedAt       time.Time
}

// TokenSettings describes a user's token configuration as exposed by the
// usage report.
type TokenSettings struct {
	UserID           string    `json:"user_id"`
	HasPersonalToken bool      `json:"has_personal_token"`
	DefaultUsageType UsageType `json:"default_usage_type"`
}

// DailyUsageBucket is the per-calendar-day rollup of usage logs. Derived on
// read, never persisted.
type DailyUsageBucket struct {
	Date         string            `json:"date"` // YYYY-MM-DD
	TotalQueries int               `json:"total_queries"`
	TotalPoints  int               `json:"total_points"`
	ByType       map[UsageType]int `json:"by_type"`
}

// TotalUsageStats aggregates usage over a whole date range.
type TotalUsageStats struct {
	TotalQueries        int               `json:"total_queries"`
	TotalPointsUsed     int               `json:"total_points_used"`
	AverageCostPerQuery float64           `json:"average_cost_per_query"`
	PointsByType        map[UsageType]int `json:"points_by_type"`
}

// UsageReport is the stable shape returned by the reporting read path.
type UsageReport struct {
	TokenSettings TokenSettings      `json:"token_settings"`
	TotalStats    TotalUsageStats    `json:"total_stats"`
	DailyUsage    []DailyUsageBucket `json:"daily_usage"`
}
