package tags

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"rawgallery/internal/database"
	"rawgallery/internal/logging"
)

// Store is the tag lookup/insert capability the normalizer needs.
// *database.Database implements it.
type Store interface {
	FindTagByContent(ctx context.Context, content []string) (*database.Tag, error)
	InsertTag(ctx context.Context, content []string) (*database.Tag, error)
}

// Split parses one raw tag path into its segments. It returns nil when
// nothing but separators and whitespace remain.
func Split(raw string) []string {
	var segments []string
	for _, part := range strings.Split(raw, database.TagSeparator) {
		if s := strings.TrimSpace(part); s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// Normalizer resolves raw tag paths to stored tags, creating the ones that
// do not exist yet.
type Normalizer struct {
	store Store

	// mu makes find-then-insert atomic per normalizer, so concurrent
	// ingestion of files sharing a new tag cannot race on it.
	mu sync.Mutex
}

// NewNormalizer creates a normalizer backed by store.
func NewNormalizer(store Store) *Normalizer {
	return &Normalizer{store: store}
}

// Normalize returns one tag per distinct segment sequence in raw, in first
// seen order. Paths without segments are skipped.
func (n *Normalizer) Normalize(ctx context.Context, raw []string) ([]database.Tag, error) {
	seen := make(map[string]struct{}, len(raw))
	result := make([]database.Tag, 0, len(raw))

	for _, path := range raw {
		segments := Split(path)
		if len(segments) == 0 {
			logging.Debug("Skipping empty tag path %q", path)
			continue
		}

		key := database.JoinTag(segments)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		tag, err := n.resolve(ctx, segments)
		if err != nil {
			return nil, fmt.Errorf("resolve tag %q: %w", key, err)
		}
		result = append(result, *tag)
	}

	return result, nil
}

func (n *Normalizer) resolve(ctx context.Context, segments []string) (*database.Tag, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	tag, err := n.store.FindTagByContent(ctx, segments)
	if err != nil {
		return nil, err
	}
	if tag != nil {
		return tag, nil
	}

	tag, err = n.store.InsertTag(ctx, segments)
	if err != nil {
		return nil, err
	}
	logging.Debug("Created tag %q (id %d)", database.JoinTag(segments), tag.ID)
	return tag, nil
}
