package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"rawgallery/internal/logging"
)

// ErrEmptyTag is returned when inserting a tag without segments.
var ErrEmptyTag = errors.New("tag content cannot be empty")

// FindTagByContent returns the tag whose segments equal content exactly, or
// nil when there is none.
func (d *Database) FindTagByContent(ctx context.Context, content []string) (*Tag, error) {
	done := observeQuery("find_tag_by_content")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tag, err := findTag(ctx, d.db, JoinTag(content))
	done(err)
	if err != nil {
		return nil, wrap("find tag by content", err)
	}
	return tag, nil
}

// InsertTag stores a tag with the given content. If a tag with the same
// content already exists, that tag is returned instead, so concurrent inserts
// of the same content resolve to one row.
func (d *Database) InsertTag(ctx context.Context, content []string) (*Tag, error) {
	if len(content) == 0 {
		return nil, &StorageError{Op: "insert tag", Err: ErrEmptyTag}
	}

	done := observeQuery("insert_tag")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	joined := JoinTag(content)
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO tags (content, depth) VALUES (?, ?)
		ON CONFLICT(content) DO NOTHING
	`, joined, len(content))
	if err != nil {
		done(err)
		return nil, wrap("insert tag", err)
	}

	tag, err := findTag(ctx, d.db, joined)
	if err == nil && tag == nil {
		err = sql.ErrNoRows
	}
	done(err)
	if err != nil {
		return nil, wrap("insert tag", err)
	}
	return tag, nil
}

func findTag(ctx context.Context, q queryer, joined string) (*Tag, error) {
	var tag Tag
	var content string

	err := q.QueryRowContext(ctx, "SELECT id, content FROM tags WHERE content = ?", joined).Scan(&tag.ID, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	tag.Content = SplitTag(content)
	return &tag, nil
}

// ListTags returns every tag with the number of images linked to it,
// ordered by content.
func (d *Database) ListTags(ctx context.Context) ([]Tag, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_tags", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT t.id, t.content, COUNT(it.image_id)
		FROM tags t
		LEFT JOIN image_tags it ON it.tag_id = t.id
		GROUP BY t.id
		ORDER BY t.content
	`)
	if err != nil {
		return nil, wrap("list tags", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Error("error closing rows: %v", closeErr)
		}
	}()

	tags := []Tag{}
	for rows.Next() {
		var tag Tag
		var content string
		if err = rows.Scan(&tag.ID, &content, &tag.ImageCount); err != nil {
			return nil, wrap("scan tag", err)
		}
		tag.Content = SplitTag(content)
		tags = append(tags, tag)
	}
	if err = rows.Err(); err != nil {
		return nil, wrap("list tags", err)
	}
	return tags, nil
}

// tagsForImages loads the tags of each image in ids. Caller must hold at
// least a read lock.
func tagsForImages(ctx context.Context, q queryer, ids []int64) (map[int64][]Tag, error) {
	result := make(map[int64][]Tag, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := q.QueryContext(ctx, `
		SELECT it.image_id, t.id, t.content
		FROM image_tags it
		INNER JOIN tags t ON t.id = it.tag_id
		WHERE it.image_id IN (`+placeholders+`)
		ORDER BY t.content
	`, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("error closing rows: %v", err)
		}
	}()

	for rows.Next() {
		var imageID int64
		var tag Tag
		var content string
		if err := rows.Scan(&imageID, &tag.ID, &content); err != nil {
			return nil, err
		}
		tag.Content = SplitTag(content)
		result[imageID] = append(result[imageID], tag)
	}
	return result, rows.Err()
}
