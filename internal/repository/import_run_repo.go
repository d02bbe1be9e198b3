package repository

import (
	"context"
	"time"

	"GomafiaSync/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ImportRunRepository 导入审计记录持久化
type ImportRunRepository interface {
	CreateRun(ctx context.Context, run *model.ImportRun) error
	FinishRun(ctx context.Context, runUUID string, fin RunFinish) error
	GetByUUID(ctx context.Context, runUUID string) (*model.ImportRun, error)
	ListBySubject(ctx context.Context, subjectID int64, page, pageSize int) ([]*model.ImportRun, int64, error)
}

// RunFinish 导入结束时回写的字段
type RunFinish struct {
	Status       string
	Outcome      string
	PagesFetched int
	EventsStored int
	GamesStored  int
	Error        string
	Detail       datatypes.JSON
}

type importRunRepository struct {
	db *gorm.DB
}

// NewImportRunRepository 创建导入审计仓储
func NewImportRunRepository(db *gorm.DB) ImportRunRepository {
	return &importRunRepository{db: db}
}

func (r *importRunRepository) CreateRun(ctx context.Context, run *model.ImportRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *importRunRepository) FinishRun(ctx context.Context, runUUID string, fin RunFinish) error {
	updates := map[string]interface{}{
		"status":        fin.Status,
		"outcome":       fin.Outcome,
		"pages_fetched": fin.PagesFetched,
		"events_stored": fin.EventsStored,
		"games_stored":  fin.GamesStored,
		"finished_at":   time.Now(),
	}
	if fin.Error != "" {
		updates["error"] = fin.Error
	}
	if len(fin.Detail) > 0 {
		updates["detail"] = fin.Detail
	}
	return r.db.WithContext(ctx).Model(&model.ImportRun{}).
		Where("run_uuid = ?", runUUID).
		Updates(updates).Error
}

func (r *importRunRepository) GetByUUID(ctx context.Context, runUUID string) (*model.ImportRun, error) {
	var run model.ImportRun
	if err := r.db.WithContext(ctx).Where("run_uuid = ?", runUUID).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *importRunRepository) ListBySubject(ctx context.Context, subjectID int64, page, pageSize int) ([]*model.ImportRun, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	db := r.db.WithContext(ctx).Model(&model.ImportRun{}).Where("user_id = ?", subjectID)
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []*model.ImportRun
	if err := db.Order("started_at DESC, id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
