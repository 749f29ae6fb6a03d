// Package applier replays a recorded change log against the real
// filesystem, with optional whole-tree backup and restore-on-failure.
package applier

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"restruct/internal/apperr"
	"restruct/internal/logger"
	"restruct/internal/model"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type Applier struct {
	fs      afero.Fs
	backups *BackupRegistry
	prefix  string

	mu   sync.Mutex
	busy map[string]bool
}

// ApplyResult reports a completed apply. BackupPath is set when a
// backup was taken; it stays on disk until RemoveBackup is called.
type ApplyResult struct {
	Applied    int    `json:"applied"`
	BackupPath string `json:"backupPath,omitempty"`
}

// RemoveResult reports a backup cleanup. AlreadyGone flags the benign
// case of a backup directory removed externally.
type RemoveResult struct {
	BackupPath  string `json:"backupPath"`
	Removed     bool   `json:"removed"`
	AlreadyGone bool   `json:"alreadyGone,omitempty"`
}

// New builds an applier over the given filesystem. prefix names the
// hidden sibling directories used for backups.
func New(fs afero.Fs, backups *BackupRegistry, prefix string) *Applier {
	return &Applier{
		fs:      fs,
		backups: backups,
		prefix:  prefix,
		busy:    make(map[string]bool),
	}
}

// Backups exposes the registry for status reporting.
func (a *Applier) Backups() *BackupRegistry {
	return a.backups
}

// Apply replays changes in recorded order against root. With makeBackup
// the whole root is copied aside first and restored if any instruction
// fails fatally. Concurrent applies on the same root are rejected.
func (a *Applier) Apply(root string, changes []model.ChangeEntry, makeBackup bool) (*ApplyResult, error) {
	if !filepath.IsAbs(root) {
		return nil, apperr.New(apperr.CodeInvalidInput, "root path must be absolute").WithPath(root)
	}
	if len(changes) == 0 {
		return nil, apperr.New(apperr.CodeInvalidInput, "change log is empty")
	}
	if err := validateChanges(changes); err != nil {
		return nil, err
	}

	info, err := a.fs.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.New(apperr.CodeNotFound, "root directory does not exist").WithPath(root)
		}
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, apperr.New(apperr.CodeNotADirectory, "root path is not a directory").WithPath(root)
	}

	if !a.acquire(root) {
		return nil, apperr.New(apperr.CodeConflict, "another apply is already running for this root").WithPath(root)
	}
	defer a.release(root)

	var backupPath string
	if makeBackup {
		backupPath = a.backupPath(root)
		if err := a.copyTree(root, backupPath); err != nil {
			_ = a.fs.RemoveAll(backupPath)
			return nil, apperr.Wrap(apperr.CodeBackupFailed,
				fmt.Sprintf("failed to back up root: %v", err), err).WithPath(root)
		}

		a.backups.Put(root, backupPath)
		logger.Log.Info("backup created",
			zap.String("root", root),
			zap.String("backup", backupPath))
	}

	for i, change := range changes {
		if err := a.applyChange(root, change); err != nil {
			logger.Log.Error("change failed",
				zap.Int("index", i),
				zap.String("type", string(change.Type)),
				zap.Error(err))
			return nil, a.recover(root, backupPath, err)
		}
	}

	logger.Log.Info("change log applied",
		zap.String("root", root),
		zap.Int("changes", len(changes)))

	return &ApplyResult{Applied: len(changes), BackupPath: backupPath}, nil
}

// RemoveBackup deletes the pending backup tracked for root and forgets
// the association. A backup directory already removed externally is
// reported as AlreadyGone rather than failing.
func (a *Applier) RemoveBackup(root string) (*RemoveResult, error) {
	backupPath, ok := a.backups.Get(root)
	if !ok {
		return nil, apperr.New(apperr.CodeNoBackup, "no backup is tracked for this root").WithPath(root)
	}

	if _, err := a.fs.Stat(backupPath); os.IsNotExist(err) {
		a.backups.Forget(root)
		logger.Log.Warn("backup already gone",
			zap.String("root", root),
			zap.String("backup", backupPath))
		return &RemoveResult{BackupPath: backupPath, AlreadyGone: true}, nil
	}

	if err := a.fs.RemoveAll(backupPath); err != nil {
		return nil, fmt.Errorf("failed to remove backup %s: %w", backupPath, err)
	}

	a.backups.Forget(root)
	logger.Log.Info("backup removed",
		zap.String("root", root),
		zap.String("backup", backupPath))

	return &RemoveResult{BackupPath: backupPath, Removed: true}, nil
}

// validateChanges rejects a change log before any mutation when an
// entry addresses anything outside the root: tree paths must be
// /-joined plain names, never absolute and never containing "." or
// "..".
func validateChanges(changes []model.ChangeEntry) error {
	for i, change := range changes {
		var err error
		switch change.Type {
		case model.ChangeMove:
			if err = checkTreePath(change.From); err == nil {
				err = checkTreePath(change.To)
			}
		case model.ChangeRename:
			if err = checkTreePath(change.Path); err == nil {
				err = checkName(change.NewName)
			}
		case model.ChangeDelete:
			err = checkTreePath(change.Path)
		default:
			err = apperr.Newf(apperr.CodeInvalidInput, "unknown change type %q", change.Type)
		}

		if err != nil {
			return apperr.Wrap(apperr.CodeInvalidInput,
				fmt.Sprintf("change %d is malformed: %v", i, err), err)
		}
	}

	return nil
}

func checkTreePath(path string) error {
	segments := model.SplitPath(path)
	if len(segments) == 0 {
		return apperr.New(apperr.CodeInvalidInput, "empty tree path")
	}

	for _, segment := range segments {
		if err := checkName(segment); err != nil {
			return apperr.Newf(apperr.CodeInvalidInput, "invalid tree path %q: %v", path, err)
		}
	}

	return nil
}

func checkName(name string) error {
	switch name {
	case "", ".", "..":
		return apperr.Newf(apperr.CodeInvalidInput, "invalid name %q", name)
	}
	if strings.ContainsAny(name, `/\`) {
		return apperr.Newf(apperr.CodeInvalidInput, "name %q must not contain a path separator", name)
	}
	return nil
}

func (a *Applier) applyChange(root string, change model.ChangeEntry) error {
	switch change.Type {
	case model.ChangeMove:
		src := filepath.Join(root, filepath.FromSlash(change.From))
		dst := filepath.Join(root, filepath.FromSlash(change.To))
		return a.rename(src, dst, change.Override)

	case model.ChangeRename:
		src := filepath.Join(root, filepath.FromSlash(change.Path))
		dst := filepath.Join(filepath.Dir(src), change.NewName)
		return a.rename(src, dst, change.Override)

	case model.ChangeDelete:
		target := filepath.Join(root, filepath.FromSlash(change.Path))
		if _, err := a.fs.Stat(target); os.IsNotExist(err) {
			// Already satisfied; a prior move or an external actor beat
			// us to it.
			logger.Log.Warn("delete target already gone",
				zap.String("path", target))
			return nil
		}
		if err := a.fs.RemoveAll(target); err != nil {
			return fmt.Errorf("failed to delete %s: %w", target, err)
		}
		return nil

	default:
		return fmt.Errorf("unknown change type: %s", change.Type)
	}
}

func (a *Applier) rename(src, dst string, override bool) error {
	if err := a.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create parent dir: %w", err)
	}

	if override {
		if _, err := a.fs.Stat(dst); err == nil {
			if err := a.fs.RemoveAll(dst); err != nil {
				return fmt.Errorf("failed to remove existing %s: %w", dst, err)
			}
		}
	}

	if err := a.fs.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}

	return nil
}

// recover restores root from its backup after a failed instruction.
// Without a backup the apply error is surfaced as-is; a failed restore
// is terminal and names the surviving backup path.
func (a *Applier) recover(root, backupPath string, applyErr error) error {
	if backupPath == "" {
		return apperr.Wrap(apperr.CodeApplyFailed,
			fmt.Sprintf("apply failed with no backup to restore: %v", applyErr), applyErr).WithPath(root)
	}

	logger.Log.Warn("restoring root from backup",
		zap.String("root", root),
		zap.String("backup", backupPath))

	if err := a.restore(root, backupPath); err != nil {
		logger.Log.Error("restore failed, backup preserved",
			zap.String("backup", backupPath),
			zap.Error(err))
		return apperr.Wrap(apperr.CodeRestoreFailed,
			fmt.Sprintf("apply failed and restore did not complete; backup preserved at %s: %v", backupPath, err), err).WithPath(backupPath)
	}

	// The restore consumed the backup directory, but the association
	// stays tracked so a later RemoveBackup resolves to the benign
	// already-gone outcome instead of NO_BACKUP.
	return apperr.Wrap(apperr.CodeApplyFailed,
		fmt.Sprintf("apply failed, root restored from backup: %v", applyErr), applyErr).WithPath(root)
}

func (a *Applier) restore(root, backupPath string) error {
	if err := a.fs.RemoveAll(root); err != nil {
		return fmt.Errorf("failed to clear root: %w", err)
	}
	if err := a.copyTree(backupPath, root); err != nil {
		return fmt.Errorf("failed to copy backup back: %w", err)
	}
	if err := a.fs.RemoveAll(backupPath); err != nil {
		return fmt.Errorf("failed to remove backup: %w", err)
	}
	return nil
}

func (a *Applier) backupPath(root string) string {
	parent, base := filepath.Split(filepath.Clean(root))
	stamp := time.Now().Format("20060102_150405")
	return filepath.Join(parent, fmt.Sprintf("%s-%s-%s", a.prefix, base, stamp))
}

func (a *Applier) copyTree(src, dst string) error {
	return afero.Walk(a.fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.IsDir() {
			return a.fs.MkdirAll(target, info.Mode().Perm())
		}
		return a.copyFile(path, target, info.Mode().Perm())
	})
}

func (a *Applier) copyFile(src, dst string, perm os.FileMode) error {
	in, err := a.fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func(in afero.File) {
		_ = in.Close()
	}(in)

	out, err := a.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}

	return out.Close()
}

func (a *Applier) acquire(root string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.busy[root] {
		return false
	}
	a.busy[root] = true
	return true
}

func (a *Applier) release(root string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.busy, root)
}
