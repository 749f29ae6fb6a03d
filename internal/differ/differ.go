// Package differ compares directory tree snapshots structurally: by
// name and entry type only. Sizes and modification times never enter
// the comparison.
package differ

import (
	"fmt"

	"restruct/internal/model"
)

// Compare walks a client-observed tree against the authoritative
// server-side tree and collects every structural discrepancy. The walk
// is keyed by name at each level, so sibling order does not matter.
func Compare(clientTree, serverTree []*model.TreeNode) model.DiffResult {
	var diffs []model.Discrepancy
	compareLevel(clientTree, serverTree, "", &diffs)

	return model.DiffResult{
		IsMatch:     len(diffs) == 0,
		Differences: diffs,
	}
}

func compareLevel(client, server []*model.TreeNode, prefix string, out *[]model.Discrepancy) {
	serverByName := indexByName(server)
	clientByName := indexByName(client)

	for _, c := range client {
		path := model.JoinPath(prefix, c.Name)

		s, ok := serverByName[c.Name]
		if !ok {
			*out = append(*out, model.Discrepancy{
				Type:    model.DiscrepancyMissingOnServer,
				Path:    path,
				Message: fmt.Sprintf("%q exists in the selection but not on the server", path),
			})
			continue
		}

		if c.IsDirectory != s.IsDirectory {
			*out = append(*out, model.Discrepancy{
				Type:    model.DiscrepancyTypeMismatch,
				Path:    path,
				Message: fmt.Sprintf("%q is a %s in the selection but a %s on the server", path, kind(c), kind(s)),
			})
			// A type mismatch invalidates the whole subtree, so there is
			// nothing meaningful to recurse into.
			continue
		}

		if c.IsDirectory {
			compareLevel(c.Children, s.Children, path, out)
		}
	}

	for _, s := range server {
		if _, ok := clientByName[s.Name]; ok {
			continue
		}

		path := model.JoinPath(prefix, s.Name)
		*out = append(*out, model.Discrepancy{
			Type:    model.DiscrepancyMissingOnClient,
			Path:    path,
			Message: fmt.Sprintf("%q exists on the server but not in the selection", path),
		})
	}
}

// HasChanged reports whether two snapshots of the same tree lineage
// differ structurally: any added, removed or type-swapped entry at any
// depth counts as a change.
func HasChanged(original, current []*model.TreeNode) bool {
	originalByName := indexByName(original)
	currentByName := indexByName(current)

	if len(originalByName) != len(currentByName) {
		return true
	}

	for name, o := range originalByName {
		c, ok := currentByName[name]
		if !ok {
			return true
		}
		if o.IsDirectory != c.IsDirectory {
			return true
		}
		if o.IsDirectory && HasChanged(o.Children, c.Children) {
			return true
		}
	}

	return false
}

func indexByName(nodes []*model.TreeNode) map[string]*model.TreeNode {
	index := make(map[string]*model.TreeNode, len(nodes))
	for _, node := range nodes {
		index[node.Name] = node
	}
	return index
}

func kind(node *model.TreeNode) string {
	if node.IsDirectory {
		return "directory"
	}
	return "file"
}
