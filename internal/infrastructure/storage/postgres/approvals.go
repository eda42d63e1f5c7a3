package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"ContentRewriter/internal/domain"
)

const approvalsTable = "pending_approvals"

var approvalColumns = []string{
	"id", "title", "meta_description", "body", "keywords", "category",
	"quality_score", "originality_score", "seo_score", "heuristic_score",
	"source_url", "source_name", "fingerprint", "variant_id", "status",
	"reviewed_at", "reviewer_notes", "published_at", "publication_url", "publish_error", "created_at",
}

type approvalRow struct {
	ID               int64        `db:"id"`
	Title            string       `db:"title"`
	MetaDescription  string       `db:"meta_description"`
	Body             string       `db:"body"`
	Keywords         string       `db:"keywords"`
	Category         string       `db:"category"`
	QualityScore     float64      `db:"quality_score"`
	OriginalityScore float64      `db:"originality_score"`
	SEOScore         float64      `db:"seo_score"`
	HeuristicScore   int          `db:"heuristic_score"`
	SourceURL        string       `db:"source_url"`
	SourceName       string       `db:"source_name"`
	Fingerprint      string       `db:"fingerprint"`
	VariantID        string       `db:"variant_id"`
	Status           string       `db:"status"`
	ReviewedAt       sql.NullTime `db:"reviewed_at"`
	ReviewerNotes    string       `db:"reviewer_notes"`
	PublishedAt      sql.NullTime `db:"published_at"`
	PublicationURL   string       `db:"publication_url"`
	PublishError     string       `db:"publish_error"`
	CreatedAt        time.Time    `db:"created_at"`
}

func (r approvalRow) record() (domain.ApprovalRecord, error) {
	status, err := domain.ParseApprovalStatus(r.Status)
	if err != nil {
		return domain.ApprovalRecord{}, err
	}
	var keywords []string
	if r.Keywords != "" {
		if err := json.Unmarshal([]byte(r.Keywords), &keywords); err != nil {
			return domain.ApprovalRecord{}, fmt.Errorf("decode keywords of approval %d: %w", r.ID, err)
		}
	}
	rec := domain.ApprovalRecord{
		ID: r.ID,
		Result: domain.RewriteResult{
			Title:            r.Title,
			MetaDescription:  r.MetaDescription,
			Body:             r.Body,
			Keywords:         keywords,
			Category:         r.Category,
			QualityScore:     r.QualityScore,
			OriginalityScore: r.OriginalityScore,
			SEOScore:         r.SEOScore,
		},
		SourceURL:      r.SourceURL,
		SourceName:     r.SourceName,
		Fingerprint:    r.Fingerprint,
		HeuristicScore: r.HeuristicScore,
		VariantID:      r.VariantID,
		Status:         status,
		ReviewerNotes:  r.ReviewerNotes,
		PublicationURL: r.PublicationURL,
		PublishError:   r.PublishError,
		CreatedAt:      r.CreatedAt,
	}
	if r.ReviewedAt.Valid {
		t := r.ReviewedAt.Time
		rec.ReviewedAt = &t
	}
	if r.PublishedAt.Valid {
		t := r.PublishedAt.Time
		rec.PublishedAt = &t
	}
	return rec, nil
}

func (s *Store) CreateApproval(ctx context.Context, record domain.ApprovalRecord) (int64, error) {
	query, err := createApprovalQuery(record, s.now())
	if err != nil {
		return 0, err
	}
	var id int64
	if err := s.get(ctx, &id, query); err != nil {
		return 0, fmt.Errorf("insert approval: %w", err)
	}
	return id, nil
}

func (s *Store) GetApproval(ctx context.Context, id int64) (domain.ApprovalRecord, error) {
	var row approvalRow
	err := s.get(ctx, &row, psql.Select(approvalColumns...).From(approvalsTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return domain.ApprovalRecord{}, fmt.Errorf("get approval %d: %w", id, err)
	}
	return row.record()
}

// ListApprovals returns records in the given status, newest first.
func (s *Store) ListApprovals(ctx context.Context, status domain.ApprovalStatus) ([]domain.ApprovalRecord, error) {
	var rows []approvalRow
	err := s.selectRows(ctx, &rows, psql.Select(approvalColumns...).
		From(approvalsTable).
		Where(sq.Eq{"status": string(status)}).
		OrderBy("id DESC"))
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	out := make([]domain.ApprovalRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) TransitionApproval(ctx context.Context, id int64, to domain.ApprovalStatus, notes string, at time.Time) (bool, error) {
	res, err := s.exec(ctx, transitionQuery(id, to, notes, at))
	if err != nil {
		return false, fmt.Errorf("transition approval %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition approval %d: %w", id, err)
	}
	return n == 1, nil
}

func (s *Store) ClaimPublication(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := s.exec(ctx, claimPublicationQuery(id, at))
	if err != nil {
		return false, fmt.Errorf("claim publication of approval %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim publication of approval %d: %w", id, err)
	}
	return n == 1, nil
}

func (s *Store) SetApprovalPublication(ctx context.Context, id int64, url, publishErr string) error {
	res, err := s.exec(ctx, setPublicationQuery(id, url, publishErr))
	if err != nil {
		return fmt.Errorf("update approval %d publication: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) CountApprovals(ctx context.Context) (domain.ApprovalStats, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	err := s.selectRows(ctx, &rows, psql.Select("status", "COUNT(*) AS count").
		From(approvalsTable).
		GroupBy("status"))
	if err != nil {
		return domain.ApprovalStats{}, fmt.Errorf("count approvals: %w", err)
	}

	var stats domain.ApprovalStats
	for _, row := range rows {
		switch domain.ApprovalStatus(row.Status) {
		case domain.ApprovalPending:
			stats.Pending = row.Count
		case domain.ApprovalApproved:
			stats.Approved = row.Count
		case domain.ApprovalRejected:
			stats.Rejected = row.Count
		}
	}
	return stats, nil
}

func createApprovalQuery(r domain.ApprovalRecord, now time.Time) (sq.InsertBuilder, error) {
	keywords := r.Result.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	encoded, err := json.Marshal(keywords)
	if err != nil {
		return sq.InsertBuilder{}, fmt.Errorf("encode keywords: %w", err)
	}
	status := r.Status
	if status == "" {
		status = domain.ApprovalPending
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	return psql.Insert(approvalsTable).
		Columns("title", "meta_description", "body", "keywords", "category",
			"quality_score", "originality_score", "seo_score", "heuristic_score",
			"source_url", "source_name", "fingerprint", "variant_id", "status", "created_at").
		Values(r.Result.Title, r.Result.MetaDescription, r.Result.Body, string(encoded), r.Result.Category,
			r.Result.QualityScore, r.Result.OriginalityScore, r.Result.SEOScore, r.HeuristicScore,
			r.SourceURL, r.SourceName, r.Fingerprint, r.VariantID, string(status), createdAt).
		Suffix("RETURNING id"), nil
}

// transitionQuery only matches rows that are still pending, so concurrent
// decisions resolve to exactly one winner.
func transitionQuery(id int64, to domain.ApprovalStatus, notes string, at time.Time) sq.UpdateBuilder {
	return psql.Update(approvalsTable).
		Set("status", string(to)).
		Set("reviewer_notes", notes).
		Set("reviewed_at", at).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"status": string(domain.ApprovalPending)})
}

func claimPublicationQuery(id int64, at time.Time) sq.UpdateBuilder {
	return psql.Update(approvalsTable).
		Set("published_at", at).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"status": string(domain.ApprovalApproved)}).
		Where(sq.Eq{"published_at": nil})
}

// setPublicationQuery stores the handoff result. A failure clears the
// published_at claim so the record can be retried.
func setPublicationQuery(id int64, url, publishErr string) sq.UpdateBuilder {
	q := psql.Update(approvalsTable).
		Set("publication_url", url).
		Set("publish_error", publishErr)
	if publishErr != "" {
		q = q.Set("published_at", nil)
	}
	return q.Where(sq.Eq{"id": id})
}
