package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tempRoot resolves symlinks so fsnotify event paths match the tracked
// prefix on platforms where the temp dir is a symlink.
func tempRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return root
}

func TestTrackAndForget(t *testing.T) {
	tracker, err := New()
	require.NoError(t, err)
	defer tracker.Stop()

	root := tempRoot(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0755))

	require.NoError(t, tracker.Track(root))

	roots := tracker.Roots()
	require.Len(t, roots, 1)
	assert.False(t, tracker.Stale(root))

	tracker.Forget(root)
	assert.Empty(t, tracker.Roots())
}

func TestStaleAfterChangeOnDisk(t *testing.T) {
	tracker, err := New()
	require.NoError(t, err)
	defer tracker.Stop()

	root := tempRoot(t)
	require.NoError(t, tracker.Track(root))
	require.False(t, tracker.Stale(root))

	require.NoError(t, os.WriteFile(filepath.Join(root, "new.txt"), []byte("x"), 0644))

	assert.Eventually(t, func() bool { return tracker.Stale(root) },
		2*time.Second, 10*time.Millisecond)
	assert.True(t, tracker.Roots()[root])
}

func TestStaleAfterChangeInNewSubdirectory(t *testing.T) {
	tracker, err := New()
	require.NoError(t, err)
	defer tracker.Stop()

	root := tempRoot(t)
	require.NoError(t, tracker.Track(root))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "made", "later"), 0755))

	assert.Eventually(t, func() bool { return tracker.Stale(root) },
		2*time.Second, 10*time.Millisecond)
}

func TestTrackMissingRoot(t *testing.T) {
	tracker, err := New()
	require.NoError(t, err)
	defer tracker.Stop()

	err = tracker.Track(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestStaleUnknownRoot(t *testing.T) {
	tracker, err := New()
	require.NoError(t, err)
	defer tracker.Stop()

	assert.False(t, tracker.Stale(t.TempDir()))
}
