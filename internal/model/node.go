package model

import (
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// TreeNode is one entry of a directory tree snapshot. Children is only
// populated for directories; an empty slice is an empty directory.
type TreeNode struct {
	Name         string      `json:"name"`
	IsDirectory  bool        `json:"isDirectory"`
	Size         int64       `json:"size"`
	LastModified time.Time   `json:"lastModified"`
	Children     []*TreeNode `json:"children,omitempty"`
}

// newCollator builds a fresh collator per sort; collate.Collator is not
// safe for concurrent use.
func newCollator() *collate.Collator {
	return collate.New(language.Und)
}

// SortSiblings puts one sibling sequence into canonical order:
// directories before files, then locale-aware by name.
func SortSiblings(nodes []*TreeNode) {
	col := newCollator()
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].IsDirectory != nodes[j].IsDirectory {
			return nodes[i].IsDirectory
		}
		return col.CompareString(nodes[i].Name, nodes[j].Name) < 0
	})
}

// SortTree canonically sorts every sibling sequence in the tree.
func SortTree(nodes []*TreeNode) {
	SortSiblings(nodes)
	for _, node := range nodes {
		if node.IsDirectory {
			SortTree(node.Children)
		}
	}
}

// RecomputeSizes rolls directory sizes up from their descendants and
// returns the total size of the given level.
func RecomputeSizes(nodes []*TreeNode) int64 {
	var total int64
	for _, node := range nodes {
		if node.IsDirectory {
			node.Size = RecomputeSizes(node.Children)
		}
		total += node.Size
	}
	return total
}

// SplitPath splits a /-joined tree path into its segments.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// JoinPath appends a name to a tree path.
func JoinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// IsDescendantPath reports whether child lies strictly inside parent.
func IsDescendantPath(parent, child string) bool {
	return strings.HasPrefix(child, parent+"/")
}

// FindByPath resolves a /-joined path against a sibling sequence.
// Returns nil if any segment is missing.
func FindByPath(nodes []*TreeNode, path string) *TreeNode {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return nil
	}

	var current *TreeNode
	level := nodes
	for _, segment := range segments {
		current = findByName(level, segment)
		if current == nil {
			return nil
		}
		level = current.Children
	}

	return current
}

// FindConflict returns the sibling carrying the given name, skipping
// excluding so a node never conflicts with itself. Nil means no
// conflict.
func FindConflict(siblings []*TreeNode, name string, excluding *TreeNode) *TreeNode {
	for _, sibling := range siblings {
		if sibling == excluding {
			continue
		}
		if sibling.Name == name {
			return sibling
		}
	}
	return nil
}

// Clone deep-copies a node and its subtree.
func (n *TreeNode) Clone() *TreeNode {
	if n == nil {
		return nil
	}

	clone := *n
	clone.Children = CloneTree(n.Children)
	return &clone
}

// CloneTree deep-copies a sibling sequence.
func CloneTree(nodes []*TreeNode) []*TreeNode {
	if nodes == nil {
		return nil
	}

	clones := make([]*TreeNode, 0, len(nodes))
	for _, node := range nodes {
		clones = append(clones, node.Clone())
	}
	return clones
}

// RemoveNode deletes the given node from a sibling sequence, comparing
// by identity, and returns the updated sequence.
func RemoveNode(siblings []*TreeNode, node *TreeNode) []*TreeNode {
	for i, sibling := range siblings {
		if sibling == node {
			return slices.Delete(siblings, i, i+1)
		}
	}
	return siblings
}

func findByName(nodes []*TreeNode, name string) *TreeNode {
	for _, node := range nodes {
		if node.Name == name {
			return node
		}
	}
	return nil
}
