package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "ESTALE", err: syscall.ESTALE, want: true},
		{name: "wrapped ESTALE", err: &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, want: true},
		{name: "ENOENT", err: syscall.ENOENT, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNFSStaleError(tt.err))
		})
	}
}

func TestWithRetryRecoversFromStaleHandle(t *testing.T) {
	calls := 0
	v, err := withRetry("stat", "/photos/a.cr2", fastConfig(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, fmt.Errorf("stat: %w", syscall.ESTALE)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestWithRetryGivesUp(t *testing.T) {
	calls := 0
	_, err := withRetry("open", "/photos/a.cr2", fastConfig(), func() (int, error) {
		calls++
		return 0, syscall.ESTALE
	})

	assert.ErrorIs(t, err, syscall.ESTALE)
	assert.Equal(t, 4, calls)
}

func TestWithRetryDoesNotRetryOtherErrors(t *testing.T) {
	calls := 0
	_, err := withRetry("stat", "/missing", fastConfig(), func() (int, error) {
		calls++
		return 0, os.ErrNotExist
	})

	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, 1, calls)
}

func TestStatAndOpenWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "IMG_0001.CR2")
	require.NoError(t, os.WriteFile(path, []byte("raw"), 0o644))

	info, err := StatWithRetry(path, DefaultRetryConfig())
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Size())

	f, err := OpenWithRetry(path, DefaultRetryConfig())
	require.NoError(t, err)
	assert.NoError(t, f.Close())

	_, err = StatWithRetry(filepath.Join(dir, "nope"), DefaultRetryConfig())
	assert.True(t, os.IsNotExist(err))
}
