package postgres

import (
	"database/sql"
	"io/fs"
	"strings"
	"testing"
	"time"

	"ContentRewriter/internal/domain"
)

func TestTransitionQueryGuardsPendingState(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	stmt, args, err := transitionQuery(7, domain.ApprovalApproved, "ok", at).ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	if !strings.HasPrefix(stmt, "UPDATE pending_approvals SET status = $1") {
		t.Fatalf("unexpected statement: %s", stmt)
	}
	if !strings.Contains(stmt, "WHERE id = $4 AND status = $5") {
		t.Fatalf("transition must be conditional on pending: %s", stmt)
	}
	if len(args) != 5 || args[0] != "approved" || args[3] != int64(7) || args[4] != "pending" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestClaimPublicationQueryOnlyMatchesUnpublished(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	stmt, args, err := claimPublicationQuery(9, at).ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	want := "UPDATE pending_approvals SET published_at = $1 WHERE id = $2 AND status = $3 AND published_at IS NULL"
	if stmt != want {
		t.Fatalf("statement = %s", stmt)
	}
	if len(args) != 3 || args[0] != at || args[1] != int64(9) || args[2] != "approved" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestSetPublicationQueryReleasesClaimOnFailure(t *testing.T) {
	t.Parallel()

	stmt, args, err := setPublicationQuery(9, "", "502 bad gateway").ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	if !strings.Contains(stmt, "published_at = $3") || args[2] != nil {
		t.Fatalf("failure must clear published_at: %s %v", stmt, args)
	}

	stmt, _, err = setPublicationQuery(9, "", "").ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	if strings.Contains(stmt, "published_at") {
		t.Fatalf("success must keep the claim, even with an empty url: %s", stmt)
	}
}

func TestAddUsageQueryIsAdditive(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	stmt, args, err := addUsageQuery("llm", day, 1, 250).ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	if !strings.Contains(stmt, "ON CONFLICT (service, day)") || !strings.Contains(stmt, "calls = api_usage_logs.calls + EXCLUDED.calls") {
		t.Fatalf("usage must accumulate: %s", stmt)
	}
	if len(args) != 4 || args[1] != "2024-05-01" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestCreateApprovalQueryEncodesKeywords(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rec := domain.ApprovalRecord{
		Result:      domain.RewriteResult{Title: "T", Body: "B", Keywords: []string{"go", "rss"}},
		SourceURL:   "https://example.com/a",
		Fingerprint: "fp",
	}
	query, err := createApprovalQuery(rec, now)
	if err != nil {
		t.Fatalf("createApprovalQuery: %v", err)
	}
	stmt, args, err := query.ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	if !strings.HasSuffix(stmt, "RETURNING id") {
		t.Fatalf("insert must return the id: %s", stmt)
	}
	if args[3] != `["go","rss"]` {
		t.Fatalf("keywords stored as %v", args[3])
	}
	if args[13] != "pending" || args[14] != now {
		t.Fatalf("status and created_at defaults not applied: %v", args[13:])
	}
}

func TestApprovalRowRecord(t *testing.T) {
	t.Parallel()

	row := approvalRow{ID: 3, Title: "T", Keywords: `["a","b"]`, Status: "rejected"}
	rec, err := row.record()
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.ID != 3 || rec.Status != domain.ApprovalRejected || len(rec.Result.Keywords) != 2 || rec.ReviewedAt != nil {
		t.Fatalf("unexpected record: %+v", rec)
	}

	at := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)
	row.PublishedAt = sql.NullTime{Time: at, Valid: true}
	rec, err = row.record()
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !rec.Published() || !rec.PublishedAt.Equal(at) {
		t.Fatalf("published_at not mapped: %+v", rec.PublishedAt)
	}

	row.Status = "archived"
	if _, err := row.record(); err == nil {
		t.Fatal("unknown status must fail")
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	t.Parallel()

	data, err := fs.ReadFile(migrations, "migrations/00001_init.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	for _, table := range []string{publishedTable, rateLimitTable, usageTable, approvalsTable, variantTable} {
		if !strings.Contains(string(data), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Fatalf("migration does not create %s", table)
		}
	}

	data, err = fs.ReadFile(migrations, "migrations/00002_approval_published_at.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if !strings.Contains(string(data), "ADD COLUMN IF NOT EXISTS published_at") {
		t.Fatal("published_at column missing")
	}
}
