package service

import (
	"context"
	"testing"

	"GomafiaSync/internal/config"
	"GomafiaSync/internal/metrics"
	"GomafiaSync/internal/repository"
	"GomafiaSync/internal/utils/testdb"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshService_Run(t *testing.T) {
	db := testdb.New(t)
	fetcher := newPageFetcher()
	fetcher.addSubject(1, 2, 10, 0)
	fetcher.addSubject(2, 2, 20, 0)
	svc := newTestSyncService(db, fetcher, config.OnConflictMergeEvents)
	ctx := context.Background()
	_, errs := svc.ImportMany(ctx, []int64{1, 2})
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// 玩家 1 多了一场；玩家 2 在源站消失
	fetcher.addSubject(1, 3, 10, 0)
	delete(fetcher.pages, 2)

	m := metrics.NewManager(metrics.WithRegistry(prometheus.NewRegistry()))
	refresh := NewRefreshService(repository.NewSubjectRepository(db), svc, m, 0, quietLogger())
	summary, err := refresh.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, &RefreshSummary{Subjects: 2, Succeeded: 1, Failed: 1, EventsInserted: 1}, summary)
}

func TestRefreshService_Schedule(t *testing.T) {
	db := testdb.New(t)
	svc := newTestSyncService(db, newPageFetcher(), config.OnConflictSkip)
	refresh := NewRefreshService(repository.NewSubjectRepository(db), svc, nil, 10, quietLogger())

	_, err := refresh.Schedule(context.Background(), "not a cron")
	require.Error(t, err)

	stop, err := refresh.Schedule(context.Background(), "@every 1h")
	require.NoError(t, err)
	stop()
}
