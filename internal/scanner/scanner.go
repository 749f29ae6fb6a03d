// Package scanner builds tree snapshots: from a real directory on the
// server side, and from a flat relative-path listing on the client
// side.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"restruct/internal/apperr"
	"restruct/internal/logger"
	"restruct/internal/model"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Scanner struct {
	fs      afero.Fs
	ignore  []string
	workers int
}

// New builds a scanner over the given filesystem. ignore holds
// per-segment glob patterns; workers bounds per-level concurrency.
func New(fs afero.Fs, ignore []string, workers int) *Scanner {
	if workers < 1 {
		workers = 1
	}

	return &Scanner{
		fs:      fs,
		ignore:  ignore,
		workers: workers,
	}
}

// Scan walks root recursively and returns its entries as a canonical
// tree snapshot. Unreadable subdirectories are skipped with a warning;
// a missing or non-directory root is fatal.
func (s *Scanner) Scan(ctx context.Context, root string) ([]*model.TreeNode, error) {
	info, err := s.fs.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.New(apperr.CodeNotFound, "directory does not exist").WithPath(root)
		}
		if os.IsPermission(err) {
			return nil, apperr.New(apperr.CodePermission, "directory is not readable").WithPath(root)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}

	if !info.IsDir() {
		return nil, apperr.New(apperr.CodeNotADirectory, "path is not a directory").WithPath(root)
	}

	nodes, err := s.scanDir(ctx, root)
	if err != nil {
		return nil, err
	}

	model.RecomputeSizes(nodes)
	return nodes, nil
}

func (s *Scanner) scanDir(ctx context.Context, dir string) ([]*model.TreeNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if os.IsPermission(err) {
			return nil, apperr.New(apperr.CodePermission, "directory is not readable").WithPath(dir)
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	// Siblings are visited concurrently, but each lands in its own slot
	// so the result assembles deterministically before sorting.
	nodes := make([]*model.TreeNode, len(entries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, entry := range entries {
		if s.shouldIgnore(entry.Name()) {
			continue
		}

		i, entry := i, entry
		g.Go(func() error {
			node, err := s.buildNode(ctx, dir, entry)
			if err != nil {
				return err
			}
			nodes[i] = node
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := make([]*model.TreeNode, 0, len(nodes))
	for _, node := range nodes {
		if node != nil {
			kept = append(kept, node)
		}
	}

	model.SortSiblings(kept)
	return kept, nil
}

func (s *Scanner) buildNode(ctx context.Context, dir string, entry os.FileInfo) (*model.TreeNode, error) {
	node := &model.TreeNode{
		Name:         entry.Name(),
		IsDirectory:  entry.IsDir(),
		LastModified: entry.ModTime(),
	}

	if !entry.IsDir() {
		node.Size = entry.Size()
		return node, nil
	}

	children, err := s.scanDir(ctx, filepath.Join(dir, entry.Name()))
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodePermission {
			logger.Log.Warn("skipping unreadable directory",
				zap.String("path", filepath.Join(dir, entry.Name())))
			node.Children = []*model.TreeNode{}
			return node, nil
		}
		return nil, err
	}

	if children == nil {
		children = []*model.TreeNode{}
	}
	node.Children = children
	return node, nil
}

func (s *Scanner) shouldIgnore(name string) bool {
	for _, pattern := range s.ignore {
		matched, err := filepath.Match(pattern, name)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// FileEntry is one element of a flat client-side folder listing.
type FileEntry struct {
	RelativePath string    `json:"relativePath"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// BuildFromList assembles a tree snapshot from flat relative paths as
// produced by a folder picker. The first path segment is the picked
// folder itself and is discarded; intermediate segments become
// directories.
func BuildFromList(entries []FileEntry) []*model.TreeNode {
	root := &model.TreeNode{IsDirectory: true}

	for _, entry := range entries {
		segments := model.SplitPath(entry.RelativePath)
		if len(segments) < 2 {
			continue
		}
		segments = segments[1:]

		parent := root
		for _, segment := range segments[:len(segments)-1] {
			child := model.FindByPath(parent.Children, segment)
			if child == nil {
				child = &model.TreeNode{
					Name:        segment,
					IsDirectory: true,
				}
				parent.Children = append(parent.Children, child)
			}
			parent = child
		}

		name := segments[len(segments)-1]
		if model.FindConflict(parent.Children, name, nil) != nil {
			continue
		}
		parent.Children = append(parent.Children, &model.TreeNode{
			Name:         name,
			Size:         entry.Size,
			LastModified: entry.LastModified,
		})
	}

	model.SortTree(root.Children)
	model.RecomputeSizes(root.Children)
	return root.Children
}
