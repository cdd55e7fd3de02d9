package repository

import (
	"pushsync/internal/db"
	"pushsync/internal/model"
)

type HistoryRepository struct{}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{}
}

func (r *HistoryRepository) Save(h model.History) error {
	return db.DB.Create(&h).Error
}

type Stats struct {
	Total   int64
	Success int64
	Failed  int64
	Deleted int64
}

func (r *HistoryRepository) GetStats() (Stats, error) {
	var stats Stats
	if err := db.DB.Model(&model.History{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}

	counts := map[model.TaskStatus]*int64{
		model.StatusSuccess: &stats.Success,
		model.StatusFailed:  &stats.Failed,
		model.StatusDeleted: &stats.Deleted,
	}
	for status, n := range counts {
		if err := db.DB.Model(&model.History{}).
			Where("status = ?", status).
			Count(n).Error; err != nil {
			return stats, err
		}
	}

	return stats, nil
}

func (r *HistoryRepository) GetRecent(limit int) ([]model.History, error) {
	var histories []model.History
	result := db.DB.
		Order("finished_at desc, id desc").
		Limit(limit).
		Find(&histories)

	return histories, result.Error
}

func (r *HistoryRepository) GetFailed() ([]model.History, error) {
	var histories []model.History
	result := db.DB.
		Where("status = ?", model.StatusFailed).
		Order("finished_at desc, id desc").
		Find(&histories)

	return histories, result.Error
}

// GetByTarget returns the most recent rows recorded for one target.
func (r *HistoryRepository) GetByTarget(target string, limit int) ([]model.History, error) {
	var histories []model.History
	result := db.DB.
		Where("target = ?", target).
		Order("finished_at desc, id desc").
		Limit(limit).
		Find(&histories)

	return histories, result.Error
}
