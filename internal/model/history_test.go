package model

import (
	"errors"
	"testing"

	"restruct/internal/apperr"

	"github.com/stretchr/testify/assert"
)

func TestOutcomeFor(t *testing.T) {
	applyErr := apperr.New(apperr.CodeApplyFailed, "replay failed")

	assert.Equal(t, OutcomeSuccess, OutcomeFor(nil, true))
	assert.Equal(t, OutcomeSuccess, OutcomeFor(nil, false))

	// A replay failure only counts as a rollback when a backup was
	// taken to restore from.
	assert.Equal(t, OutcomeRolledBack, OutcomeFor(applyErr, true))
	assert.Equal(t, OutcomeFailed, OutcomeFor(applyErr, false))

	assert.Equal(t, OutcomeFailed, OutcomeFor(apperr.New(apperr.CodeRestoreFailed, "restore failed"), true))
	assert.Equal(t, OutcomeFailed, OutcomeFor(apperr.New(apperr.CodeBackupFailed, "backup failed"), true))
	assert.Equal(t, OutcomeFailed, OutcomeFor(errors.New("plain failure"), true))
}
