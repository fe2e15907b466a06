package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

const contentColumns = `id, title, source_url, category, exam_type, content_type, quality_score,
	educational_value, confidence_score, is_valuable, analyzed, subject_tags, ai_summary, file_path,
	extracted_text, content_hash, metadata, source_job_id, created_at, updated_at`

// ContentFilter holds the conjunctive facets of a content query.
type ContentFilter struct {
	Category        string
	ExamType        string
	Subject         string
	MinQualityScore int
	OnlyValuable    bool
	SearchQuery     string
	Limit           int
	Offset          int
}

// ContentRepository persists scored content keyed by source_url.
type ContentRepository struct {
	db *sqlx.DB
}

// NewContentRepository creates a content repository.
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// Upsert inserts the item or, when source_url already exists, replaces its
// scores, tags and summary in the same statement. id and created_at of an
// existing row are kept and copied back into item. Reports whether a new row
// was created.
func (r *ContentRepository) Upsert(ctx context.Context, item *domain.ContentItem) (bool, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	query := `
		INSERT INTO content_items (id, title, source_url, category, exam_type, content_type,
		    quality_score, educational_value, confidence_score, is_valuable, analyzed, subject_tags,
		    ai_summary, file_path, extracted_text, content_hash, metadata, source_job_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW(), NOW())
		ON CONFLICT (source_url) DO UPDATE
		SET title = EXCLUDED.title,
		    category = EXCLUDED.category,
		    exam_type = EXCLUDED.exam_type,
		    content_type = EXCLUDED.content_type,
		    quality_score = EXCLUDED.quality_score,
		    educational_value = EXCLUDED.educational_value,
		    confidence_score = EXCLUDED.confidence_score,
		    is_valuable = EXCLUDED.is_valuable,
		    analyzed = EXCLUDED.analyzed,
		    subject_tags = EXCLUDED.subject_tags,
		    ai_summary = EXCLUDED.ai_summary,
		    file_path = COALESCE(EXCLUDED.file_path, content_items.file_path),
		    extracted_text = EXCLUDED.extracted_text,
		    content_hash = EXCLUDED.content_hash,
		    metadata = EXCLUDED.metadata,
		    source_job_id = COALESCE(EXCLUDED.source_job_id, content_items.source_job_id),
		    updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.db.QueryRowxContext(ctx, query,
		item.ID, item.Title, item.SourceURL, item.Category, item.ExamType, item.ContentType,
		item.QualityScore, item.EducationalValue, item.ConfidenceScore, item.IsValuable, item.Analyzed,
		item.SubjectTags, item.AISummary, item.FilePath, item.ExtractedText, item.ContentHash, item.Metadata, item.SourceJobID,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt, &inserted)
	if err != nil {
		return false, fmt.Errorf("upsert content %s: %w", item.SourceURL, err)
	}
	return inserted, nil
}

// GetByURL returns the item stored for a source URL.
func (r *ContentRepository) GetByURL(ctx context.Context, sourceURL string) (*domain.ContentItem, error) {
	var item domain.ContentItem
	err := r.db.GetContext(ctx, &item, `SELECT `+contentColumns+` FROM content_items WHERE source_url = $1`, sourceURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("content %s: %w", sourceURL, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	return &item, nil
}

// Filter returns matching items ordered by quality_score DESC, created_at DESC, id.
func (r *ContentRepository) Filter(ctx context.Context, f ContentFilter) ([]*domain.ContentItem, error) {
	where, args := buildContentWhere(f)
	args = append(args, f.Limit, f.Offset)

	// #nosec G202 -- where clause built from fixed fragments
	query := `SELECT ` + contentColumns + ` FROM content_items` + where +
		` ORDER BY quality_score DESC, created_at DESC, id ASC` +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	items := make([]*domain.ContentItem, 0)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("filter content: %w", err)
	}
	return items, nil
}

// Count returns how many items match the filter.
func (r *ContentRepository) Count(ctx context.Context, f ContentFilter) (int, error) {
	where, args := buildContentWhere(f)

	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM content_items`+where, args...); err != nil {
		return 0, fmt.Errorf("count content: %w", err)
	}
	return n, nil
}

func buildContentWhere(f ContentFilter) (string, []any) {
	var clauses []string
	var args []any

	add := func(format string, v any) {
		args = append(args, v)
		clauses = append(clauses, strings.ReplaceAll(format, "?", fmt.Sprintf("$%d", len(args))))
	}

	if f.Category != "" {
		add("category = ?", f.Category)
	}
	if f.ExamType != "" {
		add("exam_type = ?", f.ExamType)
	}
	if f.Subject != "" {
		add("? = ANY(subject_tags)", f.Subject)
	}
	if f.MinQualityScore > 0 {
		add("quality_score >= ?", f.MinQualityScore)
	}
	if f.OnlyValuable {
		clauses = append(clauses, "is_valuable")
	}
	if q := strings.TrimSpace(f.SearchQuery); q != "" {
		add(`(title ILIKE ? ESCAPE '\' OR ai_summary ILIKE ? ESCAPE '\')`, "%"+escapeLike(q)+"%")
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Stats aggregates the store in a single scan.
func (r *ContentRepository) Stats(ctx context.Context) (*domain.ContentStats, error) {
	query := `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE analyzed) AS analyzed,
		       COUNT(*) FILTER (WHERE is_valuable) AS valuable,
		       COUNT(*) FILTER (WHERE NOT analyzed) AS unanalyzed
		FROM content_items
	`
	var stats domain.ContentStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("content stats: %w", err)
	}
	return &stats, nil
}

// Facets returns distinct category, exam type and subject values with counts.
func (r *ContentRepository) Facets(ctx context.Context) (*domain.ContentFacets, error) {
	facets := &domain.ContentFacets{
		Categories: make([]domain.FacetCount, 0),
		ExamTypes:  make([]domain.FacetCount, 0),
		Subjects:   make([]domain.FacetCount, 0),
	}

	queries := []struct {
		dest  *[]domain.FacetCount
		query string
	}{
		{&facets.Categories, `SELECT category AS value, COUNT(*) AS count FROM content_items
			WHERE category <> '' GROUP BY category ORDER BY count DESC, value`},
		{&facets.ExamTypes, `SELECT exam_type AS value, COUNT(*) AS count FROM content_items
			WHERE exam_type <> '' GROUP BY exam_type ORDER BY count DESC, value`},
		{&facets.Subjects, `SELECT tag AS value, COUNT(*) AS count FROM content_items, UNNEST(subject_tags) AS tag
			GROUP BY tag ORDER BY count DESC, value`},
	}
	for _, q := range queries {
		if err := r.db.SelectContext(ctx, q.dest, q.query); err != nil {
			return nil, fmt.Errorf("content facets: %w", err)
		}
	}
	return facets, nil
}

// Purge deletes items scoring strictly below minQuality and returns the count.
func (r *ContentRepository) Purge(ctx context.Context, minQuality int) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM content_items WHERE quality_score < $1`, minQuality)
	if err != nil {
		return 0, fmt.Errorf("purge content: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// ListAfter pages through all items by id for rescoring.
func (r *ContentRepository) ListAfter(ctx context.Context, afterID string, limit int) ([]*domain.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items WHERE id::text > $1 ORDER BY id::text LIMIT $2`

	items := make([]*domain.ContentItem, 0)
	if err := r.db.SelectContext(ctx, &items, query, afterID, limit); err != nil {
		return nil, fmt.Errorf("list content for rescore: %w", err)
	}
	return items, nil
}
