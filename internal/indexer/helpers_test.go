package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rawgallery/internal/database"
	"rawgallery/internal/mediatypes"
)

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *database.Database {
	t.Helper()

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "gallery.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fakeDeriver writes a placeholder thumbnail named thumb-N.jpg.
type fakeDeriver struct {
	mu    sync.Mutex
	calls int
	next  int
	err   error
}

func (f *fakeDeriver) Strategy() string { return "fake" }

func (f *fakeDeriver) Derive(_ context.Context, _, _, outDir string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return "", f.err
	}
	f.next++
	path := filepath.Join(outDir, fmt.Sprintf("thumb-%d.jpg", f.next))
	if err := os.WriteFile(path, []byte("jpeg"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeDeriver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// countingStore counts image writes on top of a real database.
type countingStore struct {
	*database.Database
	upserts atomic.Int32
	err     error
}

func (s *countingStore) UpsertImageWithTags(ctx context.Context, path string, fields database.ImageFields, tags []database.Tag) (*database.Image, error) {
	s.upserts.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.Database.UpsertImageWithTags(ctx, path, fields, tags)
}

type testEnv struct {
	db       *database.Database
	store    *countingStore
	deriver  *fakeDeriver
	pipeline *Pipeline
	photoDir string
	thumbDir string
	captured time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	env := &testEnv{
		db:       db,
		store:    &countingStore{Database: db},
		deriver:  &fakeDeriver{},
		photoDir: t.TempDir(),
		thumbDir: t.TempDir(),
		captured: time.Date(2023, 8, 14, 9, 30, 0, 0, time.UTC),
	}
	env.pipeline = NewPipeline(env.store, env.deriver, env.thumbDir)
	env.pipeline.CaptureTime = func(string) (*time.Time, error) {
		captured := env.captured
		return &captured, nil
	}
	return env
}

func (e *testEnv) newIndexer(workers int) *Indexer {
	return New(e.db, e.pipeline, Config{
		PhotoDir:   e.photoDir,
		Extensions: mediatypes.NewRawExtensions(mediatypes.DefaultRawExtensions),
		Workers:    workers,
	})
}

// writeRaw creates a raw file with a rated sidecar, both modified at mtime.
func writeRaw(t *testing.T, dir, name string, mtime time.Time, rating int, tagPaths ...string) string {
	t.Helper()

	rawPath := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(rawPath), 0o755))
	require.NoError(t, os.WriteFile(rawPath, []byte("raw"), 0o644))
	require.NoError(t, os.Chtimes(rawPath, mtime, mtime))
	writeSidecar(t, rawPath, mtime, rating, tagPaths...)
	return rawPath
}

// writeSidecar writes the sidecar of rawPath. A negative rating is left out.
func writeSidecar(t *testing.T, rawPath string, mtime time.Time, rating int, tagPaths ...string) {
	t.Helper()

	var ratingAttr string
	if rating >= 0 {
		ratingAttr = fmt.Sprintf("\n    xmp:Rating=\"%d\"", rating)
	}
	var items strings.Builder
	for _, p := range tagPaths {
		items.WriteString("\n     <rdf:li>" + p + "</rdf:li>")
	}

	doc := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<x:xmpmeta xmlns:x="adobe:ns:meta/">
 <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
  <rdf:Description rdf:about=""
    xmlns:xmp="http://ns.adobe.com/xap/1.0/"
    xmlns:lr="http://ns.adobe.com/lightroom/1.0/"%s>
   <lr:hierarchicalSubject>
    <rdf:Bag>%s
    </rdf:Bag>
   </lr:hierarchicalSubject>
  </rdf:Description>
 </rdf:RDF>
</x:xmpmeta>
`, ratingAttr, items.String())

	sidecarPath := mediatypes.SidecarPath(rawPath)
	require.NoError(t, os.WriteFile(sidecarPath, []byte(doc), 0o644))
	require.NoError(t, os.Chtimes(sidecarPath, mtime, mtime))
}

func tagStrings(tags []database.Tag) []string {
	out := make([]string, len(tags))
	for i, tag := range tags {
		out[i] = tag.String()
	}
	return out
}
