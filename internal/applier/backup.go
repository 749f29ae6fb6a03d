package applier

import "sync"

// BackupRegistry tracks the pending backup directory for each root
// path. At most one backup is tracked per root; a newer apply replaces
// the association.
type BackupRegistry struct {
	mu    sync.Mutex
	paths map[string]string
}

func NewBackupRegistry() *BackupRegistry {
	return &BackupRegistry{paths: make(map[string]string)}
}

func (r *BackupRegistry) Put(root, backupPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths[root] = backupPath
}

func (r *BackupRegistry) Get(root string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	path, ok := r.paths[root]
	return path, ok
}

func (r *BackupRegistry) Forget(root string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.paths, root)
}

// Snapshot returns a copy of the tracked associations.
func (r *BackupRegistry) Snapshot() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]string, len(r.paths))
	for root, path := range r.paths {
		out[root] = path
	}
	return out
}
