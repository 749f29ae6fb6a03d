package applier

import (
	"os"
	"path/filepath"
	"testing"

	"restruct/internal/apperr"
	"restruct/internal/model"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApplier() *Applier {
	return New(afero.NewOsFs(), NewBackupRegistry(), ".backup")
}

func newTestRoot(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "root")

	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("alpha"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "b.txt"), []byte("beta"), 0644))

	return root
}

func TestApplyRenameWithBackup(t *testing.T) {
	a := newTestApplier()
	root := newTestRoot(t)

	result, err := a.Apply(root, []model.ChangeEntry{
		{Type: model.ChangeRename, Path: "a.txt", NewName: "b.txt"},
	}, true)
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(root, "a.txt"))
	assert.FileExists(t, filepath.Join(root, "b.txt"))

	// The backup keeps the pre-apply tree.
	require.NotEmpty(t, result.BackupPath)
	assert.FileExists(t, filepath.Join(result.BackupPath, "a.txt"))
	assert.FileExists(t, filepath.Join(result.BackupPath, "docs", "b.txt"))
}

func TestApplyMoveCreatesParents(t *testing.T) {
	a := newTestApplier()
	root := newTestRoot(t)

	_, err := a.Apply(root, []model.ChangeEntry{
		{Type: model.ChangeMove, From: "a.txt", To: "archive/2024/a.txt"},
	}, false)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(root, "archive", "2024", "a.txt"))
	assert.NoFileExists(t, filepath.Join(root, "a.txt"))
}

func TestApplyMoveOverride(t *testing.T) {
	a := newTestApplier()
	root := newTestRoot(t)

	_, err := a.Apply(root, []model.ChangeEntry{
		{Type: model.ChangeMove, From: "a.txt", To: "docs/b.txt", Override: true},
	}, false)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "docs", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))
}

func TestApplyDeleteDirectory(t *testing.T) {
	a := newTestApplier()
	root := newTestRoot(t)

	_, err := a.Apply(root, []model.ChangeEntry{
		{Type: model.ChangeDelete, Path: "docs", IsDirectory: true},
	}, false)
	require.NoError(t, err)

	assert.NoDirExists(t, filepath.Join(root, "docs"))
}

func TestApplyMissingDeleteTargetIsTolerated(t *testing.T) {
	a := newTestApplier()
	root := newTestRoot(t)

	_, err := a.Apply(root, []model.ChangeEntry{
		{Type: model.ChangeDelete, Path: "ghost.txt"},
		{Type: model.ChangeRename, Path: "a.txt", NewName: "c.txt"},
	}, false)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(root, "c.txt"))
}

func TestApplyFaultRestoresFromBackup(t *testing.T) {
	a := newTestApplier()
	root := newTestRoot(t)

	// Second instruction targets a path the first never created.
	_, err := a.Apply(root, []model.ChangeEntry{
		{Type: model.ChangeRename, Path: "a.txt", NewName: "renamed.txt"},
		{Type: model.ChangeMove, From: "never/created.txt", To: "elsewhere/created.txt"},
	}, true)

	require.Error(t, err)
	assert.Equal(t, apperr.CodeApplyFailed, apperr.CodeOf(err))

	// The root is back to its exact pre-apply shape.
	assert.FileExists(t, filepath.Join(root, "a.txt"))
	assert.NoFileExists(t, filepath.Join(root, "renamed.txt"))
	assert.FileExists(t, filepath.Join(root, "docs", "b.txt"))

	// The restore consumed the backup directory, but it is still
	// resolvable for an explicit cleanup.
	removed, err := a.RemoveBackup(root)
	require.NoError(t, err)
	assert.True(t, removed.AlreadyGone)
	assert.False(t, removed.Removed)

	_, err = a.RemoveBackup(root)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNoBackup, apperr.CodeOf(err))
}

func TestApplyFaultWithoutBackup(t *testing.T) {
	a := newTestApplier()
	root := newTestRoot(t)

	_, err := a.Apply(root, []model.ChangeEntry{
		{Type: model.ChangeMove, From: "never/created.txt", To: "elsewhere/created.txt"},
	}, false)

	require.Error(t, err)
	assert.Equal(t, apperr.CodeApplyFailed, apperr.CodeOf(err))
}

func TestApplyRejectsPathEscapingRoot(t *testing.T) {
	a := newTestApplier()
	root := newTestRoot(t)

	victim := filepath.Join(filepath.Dir(root), "victim.txt")
	require.NoError(t, os.WriteFile(victim, []byte("keep me"), 0644))

	_, err := a.Apply(root, []model.ChangeEntry{
		{Type: model.ChangeDelete, Path: "../victim.txt"},
	}, false)

	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))
	assert.FileExists(t, victim)
}

func TestApplyRejectsMalformedPaths(t *testing.T) {
	a := newTestApplier()
	root := newTestRoot(t)

	cases := []model.ChangeEntry{
		{Type: model.ChangeDelete, Path: "/etc/passwd"},
		{Type: model.ChangeDelete, Path: "docs//b.txt"},
		{Type: model.ChangeMove, From: "a.txt", To: "../../outside/a.txt"},
		{Type: model.ChangeMove, From: "./a.txt", To: "docs/a.txt"},
		{Type: model.ChangeRename, Path: "a.txt", NewName: ".."},
		{Type: model.ChangeRename, Path: "a.txt", NewName: "sub/b.txt"},
		{Type: "truncate", Path: "a.txt"},
	}

	for _, change := range cases {
		_, err := a.Apply(root, []model.ChangeEntry{change}, false)
		require.Error(t, err, "change %+v", change)
		assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err), "change %+v", change)
	}

	// Nothing was touched along the way.
	assert.FileExists(t, filepath.Join(root, "a.txt"))
	assert.FileExists(t, filepath.Join(root, "docs", "b.txt"))
}

func TestApplyEmptyChangeLog(t *testing.T) {
	a := newTestApplier()
	root := newTestRoot(t)

	_, err := a.Apply(root, nil, false)

	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))
}

func TestApplyRelativeRoot(t *testing.T) {
	a := newTestApplier()

	_, err := a.Apply("relative/root", []model.ChangeEntry{
		{Type: model.ChangeDelete, Path: "a.txt"},
	}, false)

	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))
}

func TestApplyMissingRoot(t *testing.T) {
	a := newTestApplier()

	_, err := a.Apply(filepath.Join(t.TempDir(), "missing"), []model.ChangeEntry{
		{Type: model.ChangeDelete, Path: "a.txt"},
	}, false)

	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestRemoveBackup(t *testing.T) {
	a := newTestApplier()
	root := newTestRoot(t)

	result, err := a.Apply(root, []model.ChangeEntry{
		{Type: model.ChangeRename, Path: "a.txt", NewName: "b.txt"},
	}, true)
	require.NoError(t, err)

	removed, err := a.RemoveBackup(root)
	require.NoError(t, err)
	assert.True(t, removed.Removed)
	assert.NoDirExists(t, result.BackupPath)

	// A second call finds nothing tracked.
	_, err = a.RemoveBackup(root)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNoBackup, apperr.CodeOf(err))
}

func TestRemoveBackupAlreadyGone(t *testing.T) {
	a := newTestApplier()
	root := newTestRoot(t)

	result, err := a.Apply(root, []model.ChangeEntry{
		{Type: model.ChangeRename, Path: "a.txt", NewName: "b.txt"},
	}, true)
	require.NoError(t, err)

	// Someone removed the backup directory behind our back.
	require.NoError(t, os.RemoveAll(result.BackupPath))

	removed, err := a.RemoveBackup(root)
	require.NoError(t, err)
	assert.True(t, removed.AlreadyGone)
	assert.False(t, removed.Removed)

	_, err = a.RemoveBackup(root)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNoBackup, apperr.CodeOf(err))
}

func TestConcurrentApplyRejected(t *testing.T) {
	a := newTestApplier()
	root := newTestRoot(t)

	require.True(t, a.acquire(root))

	_, err := a.Apply(root, []model.ChangeEntry{
		{Type: model.ChangeDelete, Path: "a.txt"},
	}, false)

	require.Error(t, err)
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))

	a.release(root)
	assert.FileExists(t, filepath.Join(root, "a.txt"))
}
