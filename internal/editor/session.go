// Package editor maintains one editing session: the live tree snapshot,
// the pre-edit original and the append-only change log that the applier
// later replays. Mutations re-link nodes in place rather than deep-
// copying subtrees.
package editor

import (
	"strings"
	"time"

	"restruct/internal/apperr"
	"restruct/internal/differ"
	"restruct/internal/logger"
	"restruct/internal/model"

	"go.uber.org/zap"
)

// ConflictPolicy decides what happens when a move or rename would land
// on an already-taken name.
type ConflictPolicy int

const (
	// PolicyFail rejects the operation and leaves the tree untouched.
	PolicyFail ConflictPolicy = iota
	// PolicyOverwrite removes the pre-existing same-named sibling first.
	PolicyOverwrite
)

// Session owns a tree being edited and its change log. A session must
// not be shared across concurrent edits of the same root.
type Session struct {
	root     *model.TreeNode
	original *model.TreeNode
	log      []model.ChangeEntry
}

// NewSession starts an editing session over a validated tree snapshot.
// The session takes ownership of the given nodes.
func NewSession(tree []*model.TreeNode) *Session {
	root := &model.TreeNode{IsDirectory: true, Children: tree}
	return &Session{
		root:     root,
		original: root.Clone(),
	}
}

// Tree returns the current top-level entries.
func (s *Session) Tree() []*model.TreeNode {
	return s.root.Children
}

// Changes returns the change log recorded so far, in order.
func (s *Session) Changes() []model.ChangeEntry {
	return s.log
}

// HasChanges reports whether the live tree structurally differs from
// the snapshot the session started with.
func (s *Session) HasChanges() bool {
	return differ.HasChanged(s.original.Children, s.root.Children)
}

// Reset discards all staged edits and replaces the tree wholesale.
func (s *Session) Reset(tree []*model.TreeNode) {
	s.root = &model.TreeNode{IsDirectory: true, Children: tree}
	s.original = s.root.Clone()
	s.log = nil
}

// Move relocates the node at sourcePath into the directory at
// targetPath ("" addresses the root level). Moving a node onto itself,
// into its own subtree or into its current parent is a silent no-op.
func (s *Session) Move(sourcePath, targetPath string, policy ConflictPolicy) error {
	if sourcePath == targetPath {
		return nil
	}
	if model.IsDescendantPath(sourcePath, targetPath) {
		logger.Log.Debug("move into own subtree ignored",
			zap.String("from", sourcePath),
			zap.String("to", targetPath))
		return nil
	}

	node, parent, err := s.locate(sourcePath)
	if err != nil {
		return err
	}

	target := s.root
	if targetPath != "" {
		target, _, err = s.locate(targetPath)
		if err != nil {
			return err
		}
		if !target.IsDirectory {
			return apperr.New(apperr.CodeInvalidInput, "move target is not a directory").WithPath(targetPath)
		}
	}

	if target == parent {
		return nil
	}

	override, err := s.resolveConflict(target.Children, node.Name, nil, policy, targetPath)
	if err != nil {
		return err
	}
	if override {
		target.Children = model.RemoveNode(target.Children, model.FindConflict(target.Children, node.Name, nil))
	}

	parent.Children = model.RemoveNode(parent.Children, node)
	target.Children = append(target.Children, node)
	model.SortSiblings(target.Children)
	model.RecomputeSizes(s.root.Children)

	s.log = append(s.log, model.ChangeEntry{
		Type:      model.ChangeMove,
		From:      sourcePath,
		To:        model.JoinPath(targetPath, node.Name),
		Override:  override,
		Timestamp: time.Now(),
	})

	return nil
}

// Rename changes the name of the node at path. An empty or unchanged
// new name is a silent no-op.
func (s *Session) Rename(path, newName string, policy ConflictPolicy) error {
	if newName == "" {
		return nil
	}
	if strings.Contains(newName, "/") {
		return apperr.Newf(apperr.CodeInvalidInput, "name %q must not contain a path separator", newName)
	}

	node, parent, err := s.locate(path)
	if err != nil {
		return err
	}
	if node.Name == newName {
		return nil
	}

	override, err := s.resolveConflict(parent.Children, newName, node, policy, path)
	if err != nil {
		return err
	}
	if override {
		parent.Children = model.RemoveNode(parent.Children, model.FindConflict(parent.Children, newName, node))
	}

	oldName := node.Name
	node.Name = newName
	model.SortSiblings(parent.Children)
	model.RecomputeSizes(s.root.Children)

	s.log = append(s.log, model.ChangeEntry{
		Type:      model.ChangeRename,
		Path:      path,
		OldName:   oldName,
		NewName:   newName,
		Override:  override,
		Timestamp: time.Now(),
	})

	return nil
}

// Delete removes the node at path, including its whole subtree for
// directories.
func (s *Session) Delete(path string) error {
	node, parent, err := s.locate(path)
	if err != nil {
		return err
	}

	parent.Children = model.RemoveNode(parent.Children, node)
	model.RecomputeSizes(s.root.Children)

	s.log = append(s.log, model.ChangeEntry{
		Type:        model.ChangeDelete,
		Path:        path,
		IsDirectory: node.IsDirectory,
		Timestamp:   time.Now(),
	})

	return nil
}

// resolveConflict applies the conflict policy for a prospective name in
// a sibling sequence. It returns whether an override removal is needed.
func (s *Session) resolveConflict(siblings []*model.TreeNode, name string, excluding *model.TreeNode, policy ConflictPolicy, path string) (bool, error) {
	conflict := model.FindConflict(siblings, name, excluding)
	if conflict == nil {
		return false, nil
	}

	if policy != PolicyOverwrite {
		return false, apperr.Newf(apperr.CodeConflict, "an entry named %q already exists at the destination", name).WithPath(path)
	}

	logger.Log.Debug("overwriting conflicting entry",
		zap.String("name", name),
		zap.String("path", path))
	return true, nil
}

// locate resolves path to its node and parent. The parent is the
// synthetic root for top-level entries, never nil.
func (s *Session) locate(path string) (node, parent *model.TreeNode, err error) {
	segments := model.SplitPath(path)
	if len(segments) == 0 {
		return nil, nil, apperr.New(apperr.CodeInvalidInput, "empty path")
	}

	parent = s.root
	node = parent
	for _, segment := range segments {
		parent = node
		node = model.FindByPath(parent.Children, segment)
		if node == nil {
			return nil, nil, apperr.Newf(apperr.CodeNotFound, "no entry at %q", path).WithPath(path)
		}
	}

	return node, parent, nil
}
