package postservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sushihentaime/blogcms/internal/common"
	"github.com/sushihentaime/blogcms/internal/events"
)

var (
	ErrRecordNotFound     = errors.New("record not found")
	ErrDuplicateSlug      = errors.New("duplicate slug")
	ErrEditConflict       = errors.New("edit conflict")
	ErrCategoryForeignKey = errors.New("category_id does not exist")
	ErrAuthorForeignKey   = errors.New("author_id does not exist")
)

func newPostModel(db *sql.DB) *PostModel {
	return &PostModel{db: db}
}

const postColumns = `
	p.id, p.title, p.slug, p.content, p.content_html, p.excerpt, p.reading_time,
	p.category_id, c.name, p.author_id, u.username,
	p.status, p.is_featured, p.published_at,
	p.meta_title, p.meta_description, p.meta_keywords, p.og_title, p.og_description,
	p.og_image, p.og_type, p.canonical_url, p.index_follow,
	p.views_count, p.likes_count, p.comments_count, p.shares_count,
	p.created_at, p.updated_at, p.deleted_at, p.version,
	tg.names, tg.slugs`

// postFrom joins the category, the author and the ordered tag list of each post.
const postFrom = `
	FROM posts p
	JOIN categories c ON c.id = p.category_id
	JOIN users u ON u.id = p.author_id
	LEFT JOIN LATERAL (
		SELECT array_agg(t.name ORDER BY pt.position) AS names, array_agg(t.slug ORDER BY pt.position) AS slugs
		FROM post_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE pt.post_id = p.id
	) tg ON true`

type scanner interface {
	Scan(dest ...any) error
}

// scanPost reads one row selected with postColumns. extra destinations come first.
func scanPost(row scanner, extra ...any) (*Post, error) {
	var (
		p           Post
		tagNames    pq.StringArray
		tagSlugs    pq.StringArray
		keywords    pq.StringArray
		status      string
		deletedAt   sql.NullTime
		publishedAt sql.NullTime
	)

	dest := append(extra,
		&p.ID, &p.Title, &p.Slug, &p.Content, &p.ContentHTML, &p.Excerpt, &p.ReadingTime,
		&p.CategoryID, &p.Category, &p.AuthorID, &p.Author,
		&status, &p.IsFeatured, &publishedAt,
		&p.SEO.MetaTitle, &p.SEO.MetaDescription, &keywords, &p.SEO.OGTitle, &p.SEO.OGDescription,
		&p.SEO.OGImage, &p.SEO.OGType, &p.SEO.CanonicalURL, &p.SEO.IndexFollow,
		&p.Counters.Views, &p.Counters.Likes, &p.Counters.Comments, &p.Counters.Shares,
		&p.CreatedAt, &p.UpdatedAt, &deletedAt, &p.Version,
		&tagNames, &tagSlugs,
	)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	p.Status = events.Status(status)
	p.SEO.MetaKeywords = []string(keywords)

	if publishedAt.Valid {
		t := publishedAt.Time
		p.PublishedAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		p.DeletedAt = &t
	}

	for i := range tagNames {
		tag := Tag{Name: tagNames[i]}
		if i < len(tagSlugs) {
			tag.Slug = tagSlugs[i]
		}
		p.Tags = append(p.Tags, tag)
	}

	return &p, nil
}

// writeError maps constraint violations of a posts write to package errors.
func writeError(err error) error {
	switch {
	case common.UniqueViolation(err, "posts_slug_key"):
		return ErrDuplicateSlug
	case common.ForeignKeyError(err, "posts_category_id_fkey"):
		return ErrCategoryForeignKey
	case common.ForeignKeyError(err, "posts_author_id_fkey"):
		return ErrAuthorForeignKey
	default:
		return err
	}
}

func (m *PostModel) insert(ctx context.Context, p *Post) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO posts (
			title, slug, content, content_html, excerpt, reading_time, category_id, author_id,
			status, is_featured, published_at,
			meta_title, meta_description, meta_keywords, og_title, og_description, og_image, og_type,
			canonical_url, index_follow)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id, created_at, updated_at, version`

	args := []any{
		p.Title, p.Slug, p.Content, p.ContentHTML, p.Excerpt, p.ReadingTime, p.CategoryID, p.AuthorID,
		string(p.Status), p.IsFeatured, p.PublishedAt,
		p.SEO.MetaTitle, p.SEO.MetaDescription, pq.Array(keywordsOf(p.SEO)), p.SEO.OGTitle, p.SEO.OGDescription, p.SEO.OGImage, p.SEO.OGType,
		p.SEO.CanonicalURL, p.SEO.IndexFollow,
	}

	err = tx.QueryRowContext(ctx, query, args...).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt, &p.Version)
	if err != nil {
		return writeError(err)
	}

	if err := syncTags(ctx, tx, p.ID, p.Tags); err != nil {
		return err
	}

	if err := loadNames(ctx, tx, p); err != nil {
		return err
	}

	return tx.Commit()
}

// update writes every column of p. It fails with ErrEditConflict when the
// row changed since p.Version was read.
func (m *PostModel) update(ctx context.Context, p *Post) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE posts
		SET title = $1, slug = $2, content = $3, content_html = $4, excerpt = $5, reading_time = $6,
			category_id = $7, status = $8, is_featured = $9, published_at = $10,
			meta_title = $11, meta_description = $12, meta_keywords = $13, og_title = $14,
			og_description = $15, og_image = $16, og_type = $17, canonical_url = $18, index_follow = $19,
			updated_at = now(), version = version + 1
		WHERE id = $20 AND version = $21 AND deleted_at IS NULL
		RETURNING updated_at, version`

	args := []any{
		p.Title, p.Slug, p.Content, p.ContentHTML, p.Excerpt, p.ReadingTime,
		p.CategoryID, string(p.Status), p.IsFeatured, p.PublishedAt,
		p.SEO.MetaTitle, p.SEO.MetaDescription, pq.Array(keywordsOf(p.SEO)), p.SEO.OGTitle,
		p.SEO.OGDescription, p.SEO.OGImage, p.SEO.OGType, p.SEO.CanonicalURL, p.SEO.IndexFollow,
		p.ID, p.Version,
	}

	err = tx.QueryRowContext(ctx, query, args...).Scan(&p.UpdatedAt, &p.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrEditConflict
		default:
			return writeError(err)
		}
	}

	if err := syncTags(ctx, tx, p.ID, p.Tags); err != nil {
		return err
	}

	if err := loadNames(ctx, tx, p); err != nil {
		return err
	}

	return tx.Commit()
}

// saveQuietly stores the fields derived after insert without bumping the version.
func (m *PostModel) saveQuietly(ctx context.Context, p *Post) error {
	query := `
		UPDATE posts
		SET excerpt = $1, reading_time = $2
		WHERE id = $3`

	_, err := m.db.ExecContext(ctx, query, p.Excerpt, p.ReadingTime, p.ID)
	return err
}

func syncTags(ctx context.Context, tx *sql.Tx, postID int, tags []Tag) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM post_tags WHERE post_id = $1", postID); err != nil {
		return err
	}

	for i, t := range tags {
		var tagID int

		err := tx.QueryRowContext(ctx, `
			INSERT INTO tags (name, slug)
			VALUES ($1, $2)
			ON CONFLICT (slug) DO UPDATE SET slug = EXCLUDED.slug
			RETURNING id`, t.Name, t.Slug).Scan(&tagID)
		if err != nil {
			return fmt.Errorf("tag %q: %w", t.Slug, err)
		}

		_, err = tx.ExecContext(ctx, "INSERT INTO post_tags (post_id, tag_id, position) VALUES ($1, $2, $3)", postID, tagID, i)
		if err != nil {
			return fmt.Errorf("tag %q: %w", t.Slug, err)
		}
	}

	return nil
}

func loadNames(ctx context.Context, tx *sql.Tx, p *Post) error {
	query := `
		SELECT c.name, u.username
		FROM categories c, users u
		WHERE c.id = $1 AND u.id = $2`

	return tx.QueryRowContext(ctx, query, p.CategoryID, p.AuthorID).Scan(&p.Category, &p.Author)
}

func (m *PostModel) getByID(ctx context.Context, id int, withDeleted bool) (*Post, error) {
	query := `SELECT ` + postColumns + postFrom + `
		WHERE p.id = $1 AND ($2 OR p.deleted_at IS NULL)`

	p, err := scanPost(m.db.QueryRowContext(ctx, query, id, withDeleted))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	return p, nil
}

func (m *PostModel) getBySlug(ctx context.Context, slug string) (*Post, error) {
	query := `SELECT ` + postColumns + postFrom + `
		WHERE p.slug = $1 AND p.deleted_at IS NULL`

	p, err := scanPost(m.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	return p, nil
}

// list returns one page of live posts matching f. f must have been normalized.
func (m *PostModel) list(ctx context.Context, f Filters) ([]Post, Metadata, error) {
	query := fmt.Sprintf(`SELECT count(*) OVER(), `+postColumns+postFrom+`
		WHERE p.deleted_at IS NULL
		AND ($1 = '' OR p.status = $1)
		AND ($2 = 0 OR p.category_id = $2)
		AND ($3 = '' OR EXISTS (
			SELECT 1 FROM post_tags pt JOIN tags t ON t.id = pt.tag_id
			WHERE pt.post_id = p.id AND t.slug = $3))
		AND ($4 = '' OR p.title ILIKE '%%' || $4 || '%%' OR p.excerpt ILIKE '%%' || $4 || '%%')
		AND ($5::boolean IS NULL OR p.is_featured = $5)
		ORDER BY %s %s NULLS LAST, p.id ASC
		LIMIT $6 OFFSET $7`, f.sortColumn(), f.sortDirection())

	var featured sql.NullBool
	if f.Featured != nil {
		featured = sql.NullBool{Bool: *f.Featured, Valid: true}
	}

	rows, err := m.db.QueryContext(ctx, query, string(f.Status), f.CategoryID, f.Tag, f.Search, featured, f.Limit, f.Offset)
	if err != nil {
		return nil, Metadata{}, err
	}
	defer rows.Close()

	total := 0
	posts := []Post{}

	for rows.Next() {
		p, err := scanPost(rows, &total)
		if err != nil {
			return nil, Metadata{}, err
		}
		posts = append(posts, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, Metadata{}, err
	}

	return posts, Metadata{Limit: f.Limit, Offset: f.Offset, TotalRecords: total}, nil
}

func (f Filters) sortColumn() string {
	return "p." + strings.TrimPrefix(f.Sort, "-")
}

func (f Filters) sortDirection() string {
	if strings.HasPrefix(f.Sort, "-") {
		return "DESC"
	}
	return "ASC"
}

func (m *PostModel) SlugExists(ctx context.Context, slug string, excludeID int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM posts
			WHERE slug = $1 AND id <> $2 AND deleted_at IS NULL)`

	var exists bool
	err := m.db.QueryRowContext(ctx, query, slug, excludeID).Scan(&exists)
	return exists, err
}

func (m *PostModel) softDelete(ctx context.Context, id int) (time.Time, error) {
	query := `
		UPDATE posts
		SET deleted_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING deleted_at`

	var deletedAt time.Time
	err := m.db.QueryRowContext(ctx, query, id).Scan(&deletedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return time.Time{}, ErrRecordNotFound
		default:
			return time.Time{}, err
		}
	}

	return deletedAt, nil
}

// restore clears the tombstone. It fails with ErrDuplicateSlug when a live
// post took the slug in the meantime.
func (m *PostModel) restore(ctx context.Context, id int) error {
	query := `
		UPDATE posts
		SET deleted_at = NULL
		WHERE id = $1 AND deleted_at IS NOT NULL`

	res, err := m.db.ExecContext(ctx, query, id)
	if err != nil {
		return writeError(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rows != 1 {
		switch {
		case rows == 0:
			return ErrRecordNotFound
		default:
			return fmt.Errorf("expected 1 row to be affected, got %d", rows)
		}
	}

	return nil
}

func (m *PostModel) imagesForPost(ctx context.Context, postID int) ([]Image, error) {
	query := `
		SELECT id, post_id, path
		FROM post_images
		WHERE post_id = $1
		ORDER BY id`

	rows, err := m.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.PostID, &img.Path); err != nil {
			return nil, err
		}
		images = append(images, img)
	}

	return images, rows.Err()
}

func (m *PostModel) deleteImage(ctx context.Context, id int) error {
	_, err := m.db.ExecContext(ctx, "DELETE FROM post_images WHERE id = $1", id)
	return err
}

func (m *PostModel) softDeleteComments(ctx context.Context, postID int) error {
	_, err := m.db.ExecContext(ctx, "UPDATE comments SET deleted_at = now() WHERE post_id = $1 AND deleted_at IS NULL", postID)
	return err
}

func (m *PostModel) deleteViews(ctx context.Context, postID int) error {
	_, err := m.db.ExecContext(ctx, "DELETE FROM post_views WHERE post_id = $1", postID)
	return err
}

func (m *PostModel) detachTags(ctx context.Context, postID int) error {
	_, err := m.db.ExecContext(ctx, "DELETE FROM post_tags WHERE post_id = $1", postID)
	return err
}

func (m *PostModel) detachLikes(ctx context.Context, postID int) error {
	_, err := m.db.ExecContext(ctx, "DELETE FROM post_likes WHERE post_id = $1", postID)
	return err
}

func keywordsOf(seo SEO) []string {
	if seo.MetaKeywords == nil {
		return []string{}
	}
	return seo.MetaKeywords
}
