package repository

import (
	"time"

	"restruct/internal/db"
	"restruct/internal/model"
)

type HistoryRepository struct{}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{}
}

func (r *HistoryRepository) Record(root string, changes int, outcome model.ApplyOutcome, backupPath, errMsg string) error {
	record := model.ApplyRecord{
		RootPath:   root,
		Changes:    changes,
		Outcome:    outcome,
		BackupPath: backupPath,
		ErrMsg:     errMsg,
		AppliedAt:  time.Now(),
	}

	return db.DB.Create(&record).Error
}

type Stats struct {
	Total      int64
	Success    int64
	RolledBack int64
	Failed     int64
}

func (r *HistoryRepository) GetStats() (Stats, error) {
	var stats Stats
	if err := db.DB.Model(&model.ApplyRecord{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}

	if err := db.DB.Model(&model.ApplyRecord{}).
		Where("outcome = ?", model.OutcomeSuccess).
		Count(&stats.Success).Error; err != nil {
		return stats, err
	}

	if err := db.DB.Model(&model.ApplyRecord{}).
		Where("outcome = ?", model.OutcomeRolledBack).
		Count(&stats.RolledBack).Error; err != nil {
		return stats, err
	}

	stats.Failed = stats.Total - stats.Success - stats.RolledBack
	return stats, nil
}

func (r *HistoryRepository) GetRecent(limit int) ([]model.ApplyRecord, error) {
	var records []model.ApplyRecord
	result := db.DB.
		Order("applied_at desc").
		Limit(limit).
		Find(&records)

	return records, result.Error
}
