package model

import (
	"time"

	"restruct/internal/apperr"

	"gorm.io/gorm"
)

type ApplyOutcome string

const (
	OutcomeSuccess    ApplyOutcome = "SUCCESS"
	OutcomeRolledBack ApplyOutcome = "ROLLED_BACK"
	OutcomeFailed     ApplyOutcome = "FAILED"
)

// OutcomeFor classifies an apply attempt for the history log. A replay
// failure with a backup taken means the root was rolled back to its
// pre-apply state.
func OutcomeFor(err error, madeBackup bool) ApplyOutcome {
	if err == nil {
		return OutcomeSuccess
	}
	if madeBackup && apperr.CodeOf(err) == apperr.CodeApplyFailed {
		return OutcomeRolledBack
	}
	return OutcomeFailed
}

// ApplyRecord is one persisted apply attempt against a root directory.
type ApplyRecord struct {
	gorm.Model
	RootPath   string       `gorm:"not null"`
	Changes    int          `gorm:"not null"`
	Outcome    ApplyOutcome `gorm:"not null"`
	BackupPath string
	ErrMsg     string
	AppliedAt  time.Time `gorm:"not null"`
}
