package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"rawgallery/internal/logging"
	"rawgallery/internal/metrics"
)

const imageColumns = `i.id, i.path, i.rating, i.last_modified, i.thumb_path, i.capture_time`

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(s rowScanner) (*Image, error) {
	var img Image
	var modified int64
	var capture sql.NullInt64

	if err := s.Scan(&img.ID, &img.Path, &img.Rating, &modified, &img.ThumbPath, &capture); err != nil {
		return nil, err
	}

	img.LastModified = time.Unix(0, modified)
	if capture.Valid {
		t := time.Unix(0, capture.Int64)
		img.CaptureTime = &t
	}
	return &img, nil
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

// FindImageByPath returns the image stored for path, or nil when there is
// none.
func (d *Database) FindImageByPath(ctx context.Context, path string) (*Image, error) {
	done := observeQuery("find_image_by_path")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	img, err := scanImage(d.db.QueryRowContext(ctx,
		"SELECT "+imageColumns+" FROM images i WHERE i.path = ?", path))
	if errors.Is(err, sql.ErrNoRows) {
		done(nil)
		return nil, nil
	}
	done(err)
	if err != nil {
		return nil, wrap("find image by path", err)
	}
	return img, nil
}

// GetImage returns an image with its tags, or nil when id is unknown.
func (d *Database) GetImage(ctx context.Context, id int64) (*Image, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	img, err := scanImage(d.db.QueryRowContext(ctx,
		"SELECT "+imageColumns+" FROM images i WHERE i.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get image", err)
	}

	tags, err := tagsForImages(ctx, d.db, []int64{id})
	if err != nil {
		return nil, wrap("get image tags", err)
	}
	img.Tags = tags[id]
	return img, nil
}

// InsertImage stores a new image for path and returns it with its assigned id.
func (d *Database) InsertImage(ctx context.Context, path string, fields ImageFields) (*Image, error) {
	done := observeQuery("insert_image")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := insertImage(ctx, d.db, path, fields)
	done(err)
	if err != nil {
		return nil, wrap("insert image", err)
	}
	return newImage(id, path, fields), nil
}

// UpdateImage overwrites the mutable fields of image id.
func (d *Database) UpdateImage(ctx context.Context, id int64, fields ImageFields) error {
	done := observeQuery("update_image")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err := updateImage(ctx, d.db, id, fields)
	done(err)
	return wrap("update image", err)
}

// LinkImageTag associates a tag with an image. Linking an existing pair is a
// no-op.
func (d *Database) LinkImageTag(ctx context.Context, imageID, tagID int64) error {
	done := observeQuery("link_image_tag")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO image_tags (image_id, tag_id) VALUES (?, ?)",
		imageID, tagID,
	)
	done(err)
	return wrap("link image tag", err)
}

// UpsertImageWithTags writes the image row for path and replaces its tag links
// in a single transaction. An existing row keeps its id.
func (d *Database) UpsertImageWithTags(ctx context.Context, path string, fields ImageFields, tags []Tag) (*Image, error) {
	done := observeQuery("upsert_image")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	txStart := time.Now()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		done(err)
		return nil, wrap("begin upsert", err)
	}

	committed := false
	defer func() {
		if !committed {
			metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(time.Since(txStart).Seconds())
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error("rollback failed: %v", rbErr)
			}
		}
	}()

	id, err := upsertImage(ctx, tx, path, fields)
	if err != nil {
		done(err)
		return nil, wrap("upsert image", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM image_tags WHERE image_id = ?", id); err != nil {
		done(err)
		return nil, wrap("unlink image tags", err)
	}

	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO image_tags (image_id, tag_id) VALUES (?, ?)",
			id, tag.ID,
		); err != nil {
			done(err)
			return nil, wrap("link image tag", err)
		}
	}

	if err := tx.Commit(); err != nil {
		done(err)
		return nil, wrap("commit upsert", err)
	}
	committed = true
	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(time.Since(txStart).Seconds())
	done(nil)

	img := newImage(id, path, fields)
	img.Tags = tags
	return img, nil
}

func newImage(id int64, path string, fields ImageFields) *Image {
	return &Image{
		ID:           id,
		Path:         path,
		Rating:       fields.Rating,
		LastModified: fields.LastModified,
		ThumbPath:    fields.ThumbPath,
		CaptureTime:  fields.CaptureTime,
	}
}

func insertImage(ctx context.Context, q queryer, path string, fields ImageFields) (int64, error) {
	result, err := q.ExecContext(ctx, `
		INSERT INTO images (path, rating, last_modified, thumb_path, capture_time)
		VALUES (?, ?, ?, ?, ?)
	`, path, fields.Rating, fields.LastModified.UnixNano(), fields.ThumbPath, nullTime(fields.CaptureTime))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func updateImage(ctx context.Context, q queryer, id int64, fields ImageFields) error {
	result, err := q.ExecContext(ctx, `
		UPDATE images SET
			rating = ?,
			last_modified = ?,
			thumb_path = ?,
			capture_time = ?,
			updated_at = strftime('%s', 'now')
		WHERE id = ?
	`, fields.Rating, fields.LastModified.UnixNano(), fields.ThumbPath, nullTime(fields.CaptureTime), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("image %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

func upsertImage(ctx context.Context, q queryer, path string, fields ImageFields) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, "SELECT id FROM images WHERE path = ?", path).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return insertImage(ctx, q, path, fields)
	case err != nil:
		return 0, err
	}
	return id, updateImage(ctx, q, id, fields)
}

// ListImages returns one page (1-based) of images matching filter, ordered by
// capture time ascending. Images without a capture time sort last. A page past
// the last one is empty.
func (d *Database) ListImages(ctx context.Context, filter ImageFilter, page int) (*ImagePage, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_images", start, err) }()

	if page < 1 {
		page = 1
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	where, args := filter.whereClause()

	result := &ImagePage{
		Items:    []Image{},
		Page:     page,
		PageSize: PageSize,
	}

	if err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM images i"+where, args...).Scan(&result.TotalItems); err != nil {
		return nil, wrap("count images", err)
	}
	result.TotalPages = (result.TotalItems + PageSize - 1) / PageSize
	if page > result.TotalPages {
		return result, nil
	}

	query := "SELECT " + imageColumns + " FROM images i" + where + `
		ORDER BY i.capture_time IS NULL, i.capture_time ASC, i.id ASC
		LIMIT ? OFFSET ?`

	rows, err := d.db.QueryContext(ctx, query, append(args, PageSize, (page-1)*PageSize)...)
	if err != nil {
		return nil, wrap("list images", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Error("error closing rows: %v", closeErr)
		}
	}()

	var ids []int64
	for rows.Next() {
		var img *Image
		img, err = scanImage(rows)
		if err != nil {
			return nil, wrap("scan image", err)
		}
		result.Items = append(result.Items, *img)
		ids = append(ids, img.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, wrap("list images", err)
	}

	tags, err := tagsForImages(ctx, d.db, ids)
	if err != nil {
		return nil, wrap("list image tags", err)
	}
	for i := range result.Items {
		result.Items[i].Tags = tags[result.Items[i].ID]
	}

	return result, nil
}

// whereClause renders the filter against the images table aliased as i.
func (f ImageFilter) whereClause() (string, []any) {
	var conds []string
	var args []any

	if f.MinRating > 0 {
		conds = append(conds, "i.rating >= ?")
		args = append(args, f.MinRating)
	}
	if f.DateFrom != nil {
		conds = append(conds, "i.capture_time >= ?")
		args = append(args, f.DateFrom.UnixNano())
	}
	if f.DateTo != nil {
		conds = append(conds, "i.capture_time <= ?")
		args = append(args, f.DateTo.UnixNano())
	}

	var tagConds []string
	for _, segments := range f.Tags {
		if len(segments) == 0 {
			continue
		}
		content := JoinTag(segments)
		prefix := content + TagSeparator
		// substr keeps the match case-sensitive, unlike LIKE
		tagConds = append(tagConds, "t.content = ? OR substr(t.content, 1, length(?)) = ?")
		args = append(args, content, prefix, prefix)
	}
	if len(tagConds) > 0 {
		conds = append(conds, `EXISTS (
			SELECT 1 FROM image_tags it
			INNER JOIN tags t ON t.id = it.tag_id
			WHERE it.image_id = i.id AND (`+strings.Join(tagConds, " OR ")+`))`)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ThumbnailPaths returns the set of thumbnail files referenced by any image.
func (d *Database) ThumbnailPaths(ctx context.Context) (map[string]struct{}, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT thumb_path FROM images")
	if err != nil {
		return nil, wrap("list thumbnails", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("error closing rows: %v", err)
		}
	}()

	paths := make(map[string]struct{})
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, wrap("scan thumbnail", err)
		}
		paths[path] = struct{}{}
	}
	return paths, wrap("list thumbnails", rows.Err())
}
