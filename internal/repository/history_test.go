package repository

import (
	"path/filepath"
	"pushsync/internal/db"
	"pushsync/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *HistoryRepository {
	require.NoError(t, db.Init(filepath.Join(t.TempDir(), "history.db")))
	t.Cleanup(func() {
		_ = db.Close()
	})
	return NewHistoryRepository()
}

func TestSaveAndQuery(t *testing.T) {
	repo := setupDB(t)
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	rows := []model.History{
		{TaskID: "1", Attempt: 1, Target: "ftp://a@h:21", Status: model.StatusFailed, SrcPath: "/s/a", DstPath: "/d/a", FinishedAt: base},
		{TaskID: "2", Attempt: 2, Target: "ftp://a@h:21", Status: model.StatusSuccess, SrcPath: "/s/a", DstPath: "/d/a", FinishedAt: base.Add(time.Second)},
		{TaskID: "3", Attempt: 1, Target: "copy:/d", Status: model.StatusSuccess, SrcPath: "/s/b", DstPath: "/d/b", FinishedAt: base.Add(2 * time.Second)},
		{TaskID: "4", Attempt: 1, Status: model.StatusDeleted, SrcPath: "/s/c", FinishedAt: base.Add(3 * time.Second)},
	}
	for _, r := range rows {
		require.NoError(t, repo.Save(r))
	}

	recent, err := repo.GetRecent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "4", recent[0].TaskID)
	assert.Equal(t, "3", recent[1].TaskID)

	failed, err := repo.GetFailed()
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "1", failed[0].TaskID)

	byTarget, err := repo.GetByTarget("ftp://a@h:21", 10)
	require.NoError(t, err)
	assert.Len(t, byTarget, 2)

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 4, Success: 2, Failed: 1, Deleted: 1}, stats)
}
