package interfaces

import (
	"context"

	"GomafiaSync/internal/config"
	"GomafiaSync/internal/model"
)

// PageFetcher 按玩家ID与页码拉取源站原始页面
type PageFetcher interface {
	FetchPage(ctx context.Context, subjectID int64, page int) (string, error)
}

// SnapshotSource 源站适配器：分页抓取 + 归并为规范记录
type SnapshotSource interface {
	GetName() string
	FetchSnapshot(ctx context.Context, subjectID int64) (*model.Snapshot, error)
	ConvertToDBModel(snapshot *model.Snapshot) (*model.SnapshotRecords, error)
}

// SnapshotRepository 快照入库接口
type SnapshotRepository interface {
	SaveSnapshot(ctx context.Context, records *model.SnapshotRecords, policy config.OnConflict) (*model.SaveResult, error)
}
