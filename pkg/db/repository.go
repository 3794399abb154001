package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoLogPrefix = "db:repository"

// ErrRevisionConflict is returned by Put when ExpectedRevision does not
// match the stored document.
var ErrRevisionConflict = errors.New("db:repository - revision conflict")

const documentColumns = `collection, key, declared_type, runtime_type, body, etag, revision,
	created, created_by, modified, modified_by`

// Repository provides database access for stored documents.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get finds a document by collection and key. It returns nil, nil when the
// document does not exist.
func (r *Repository) Get(ctx context.Context, collection, key string) (*Document, error) {
	slog.Debug(fmt.Sprintf("%s - Get collection=%s key=%s", repoLogPrefix, collection, key))

	row := r.pool.QueryRow(ctx,
		`SELECT `+documentColumns+`
		 FROM documents
		 WHERE collection = $1 AND key = $2`, collection, key)

	return scanDocument(row)
}

// Put inserts or replaces a document. Replacing bumps the revision.
func (r *Repository) Put(ctx context.Context, params PutDocumentParams) (*Document, error) {
	slog.Info(fmt.Sprintf("%s - Put collection=%s key=%s type=%s", repoLogPrefix, params.Collection, params.Key, params.DeclaredType))

	userID := params.UserID
	if userID == "" {
		userID = "system"
	}
	now := time.Now().UTC()

	var expected *int32
	if params.ExpectedRevision != nil {
		v := int32(*params.ExpectedRevision)
		expected = &v
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO documents (collection, key, declared_type, runtime_type, body, etag, revision,
		                        created, created_by, modified, modified_by)
		 SELECT $1, $2, $3, $4, $5, $6, 1, $7, $8, $7, $8
		 WHERE $9::int IS NULL OR $9::int = 0 OR EXISTS (
		   SELECT 1 FROM documents WHERE collection = $1 AND key = $2)
		 ON CONFLICT (collection, key) DO UPDATE SET
		   declared_type = EXCLUDED.declared_type,
		   runtime_type = EXCLUDED.runtime_type,
		   body = EXCLUDED.body,
		   etag = EXCLUDED.etag,
		   revision = documents.revision + 1,
		   modified = EXCLUDED.modified,
		   modified_by = EXCLUDED.modified_by
		 WHERE $9::int IS NULL OR documents.revision = $9::int
		 RETURNING `+documentColumns,
		params.Collection, params.Key, params.DeclaredType, params.RuntimeType,
		params.Body, params.ETag, now, userID, expected)

	doc, err := scanDocument(row)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%s - put %s/%s: %w", repoLogPrefix, params.Collection, params.Key, ErrRevisionConflict)
	}
	return doc, nil
}

// Delete removes a document and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, collection, key string) (bool, error) {
	slog.Info(fmt.Sprintf("%s - Delete collection=%s key=%s", repoLogPrefix, collection, key))

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND key = $2`, collection, key)
	if err != nil {
		return false, fmt.Errorf("%s - Delete failed: %w", repoLogPrefix, err)
	}
	return tag.RowsAffected() > 0, nil
}

// List lists the documents of a collection with optional filters. It also
// returns the total number of matches.
func (r *Repository) List(ctx context.Context, params ListDocumentsParams) ([]Document, int, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit

	where := []string{"collection = $1"}
	args := []any{params.Collection}

	if params.DeclaredType != "" {
		args = append(args, params.DeclaredType)
		where = append(where, fmt.Sprintf("declared_type = $%d", len(args)))
	}
	if params.Prefix != "" {
		args = append(args, escapeLike(params.Prefix)+"%")
		where = append(where, fmt.Sprintf("key LIKE $%d", len(args)))
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)::int FROM documents`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s - List count failed: %w", repoLogPrefix, err)
	}

	query := `SELECT ` + documentColumns + ` FROM documents` + clause +
		fmt.Sprintf(` ORDER BY key LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s - List query failed: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := scanInto(rows, &d); err != nil {
			return nil, 0, fmt.Errorf("%s - scan document from rows failed: %w", repoLogPrefix, err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s - List rows failed: %w", repoLogPrefix, err)
	}

	return docs, total, nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := scanInto(row, &d)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - scan document failed: %w", repoLogPrefix, err)
	}
	return &d, nil
}

func scanInto(row pgx.Row, d *Document) error {
	return row.Scan(
		&d.Collection, &d.Key, &d.DeclaredType, &d.RuntimeType, &d.Body, &d.ETag, &d.Revision,
		&d.Created, &d.CreatedBy, &d.Modified, &d.ModifiedBy,
	)
}

// escapeLike escapes the LIKE wildcards in s.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
