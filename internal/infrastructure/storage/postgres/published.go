package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"ContentRewriter/internal/domain"
)

const publishedTable = "published_articles"

func (s *Store) PublishedExists(ctx context.Context, fingerprint string) (bool, error) {
	var one int
	err := s.get(ctx, &one, publishedExistsQuery(fingerprint))
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup published %s: %w", fingerprint, err)
	}
	return true, nil
}

func (s *Store) SavePublished(ctx context.Context, article domain.PublishedArticle) error {
	if _, err := s.exec(ctx, savePublishedQuery(article)); err != nil {
		return fmt.Errorf("insert published %s: %w", article.Fingerprint, err)
	}
	return nil
}

func (s *Store) SetPublicationURL(ctx context.Context, fingerprint, url string) error {
	res, err := s.exec(ctx, psql.Update(publishedTable).
		Set("publication_url", url).
		Where(sq.Eq{"fingerprint": fingerprint}))
	if err != nil {
		return fmt.Errorf("update publication url: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func publishedExistsQuery(fingerprint string) sq.SelectBuilder {
	return psql.Select("1").From(publishedTable).Where(sq.Eq{"fingerprint": fingerprint}).Limit(1)
}

func savePublishedQuery(a domain.PublishedArticle) sq.InsertBuilder {
	return psql.Insert(publishedTable).
		Columns("fingerprint", "url", "title", "content_hash", "body_snippet", "full_body",
			"source", "published_at", "quality_score", "originality_score", "publication_url").
		Values(a.Fingerprint, a.URL, a.Title, a.ContentHash, a.BodySnippet, a.FullBody,
			a.Source, a.PublishedAt, a.QualityScore, a.OriginalityScore, a.PublicationURL)
}
