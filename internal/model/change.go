package model

import "time"

type ChangeType string

const (
	ChangeMove   ChangeType = "move"
	ChangeRename ChangeType = "rename"
	ChangeDelete ChangeType = "delete"
)

// ChangeEntry is one staged edit. The populated fields depend on Type:
// move carries From/To (To is the full destination path), rename
// carries Path/OldName/NewName, delete carries Path/IsDirectory.
type ChangeEntry struct {
	Type        ChangeType `json:"type"`
	From        string     `json:"from,omitempty"`
	To          string     `json:"to,omitempty"`
	Path        string     `json:"path,omitempty"`
	OldName     string     `json:"oldName,omitempty"`
	NewName     string     `json:"newName,omitempty"`
	IsDirectory bool       `json:"isDirectory,omitempty"`
	Override    bool       `json:"override,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}
