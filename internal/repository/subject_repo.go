package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"GomafiaSync/internal/config"
	"GomafiaSync/internal/model"
	"GomafiaSync/internal/syncerr"

	"github.com/jackc/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubjectRepository 玩家快照入库 + 对外只读查询
type SubjectRepository interface {
	SaveSnapshot(ctx context.Context, records *model.SnapshotRecords, policy config.OnConflict) (*model.SaveResult, error)

	Exists(ctx context.Context, subjectID int64) (bool, error)
	GetSubject(ctx context.Context, subjectID int64) (*model.Subject, error)
	ListSubjects(ctx context.Context) ([]*model.SubjectSummary, error)
	ListSubjectIDs(ctx context.Context, limit int) ([]int64, error)
	ListEventsBySubject(ctx context.Context, subjectID int64) ([]*model.Event, error)
	CountEventsBySubject(ctx context.Context, subjectID int64) (int64, error)
	ListGamesBySubject(ctx context.Context, subjectID int64) ([]*model.Game, error)
	CountEventsByCity(ctx context.Context) ([]*model.CityCount, error)
	CountEventsByDate(ctx context.Context) ([]*model.DateCount, error)
}

type subjectRepository struct {
	db *gorm.DB
}

// NewSubjectRepository 创建玩家仓储
func NewSubjectRepository(db *gorm.DB) SubjectRepository {
	return &subjectRepository{db: db}
}

var (
	subjectConflict = clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}
	eventConflict   = clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}, {Name: "tournament_id"}}, DoNothing: true}
	gameConflict    = clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}, {Name: "tournament_id"}, {Name: "seq"}}, DoNothing: true}
)

// SaveSnapshot 在一个事务里写入玩家、赛事、对局，要么全部可见要么全部不可见。
// 玩家行用 ON CONFLICT DO NOTHING 插入，RowsAffected 为 0 即已存在，“先查后插”由数据库保证原子。
// 已存在时：skip 策略整体回滚；merge_events 策略不动玩家行，只补充未见过的赛事及其对局
func (r *subjectRepository) SaveSnapshot(ctx context.Context, records *model.SnapshotRecords, policy config.OnConflict) (*model.SaveResult, error) {
	if records == nil || records.Subject == nil {
		return nil, fmt.Errorf("快照记录为空")
	}
	subjectID := records.Subject.ID
	result := &model.SaveResult{}

	// 开启事务
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, storageError(subjectID, fmt.Errorf("开启事务失败: %w", tx.Error))
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	// 1. 玩家（拷贝一份，避免回写自增字段、级联关联）
	subject := *records.Subject
	subject.Events, subject.Games = nil, nil
	res := tx.Clauses(subjectConflict).Omit(clause.Associations).Create(&subject)
	if res.Error != nil {
		tx.Rollback()
		return nil, storageError(subjectID, fmt.Errorf("保存玩家失败: %w", res.Error))
	}
	result.SubjectCreated = res.RowsAffected > 0
	if !result.SubjectCreated && policy != config.OnConflictMergeEvents {
		tx.Rollback()
		result.Skipped = true
		return result, nil
	}

	// 2. 赛事：逐条插入，记录本次真正新增的赛事
	inserted := make(map[int64]bool, len(records.Events))
	for _, ev := range records.Events {
		row := *ev
		row.ID = 0
		row.UserID = subjectID
		res := tx.Clauses(eventConflict).Create(&row)
		if res.Error != nil {
			tx.Rollback()
			return nil, storageError(subjectID, fmt.Errorf("保存赛事失败: %w, tournament_id: %d", res.Error, ev.TournamentID))
		}
		if res.RowsAffected > 0 {
			inserted[ev.TournamentID] = true
			result.EventsInserted++
		}
	}

	// 3. 对局：只写新增赛事下的对局，已有赛事的对局保持原样
	for _, g := range records.Games {
		if !inserted[g.TournamentID] {
			continue
		}
		row := *g
		row.ID = 0
		row.UserID = subjectID
		res := tx.Clauses(gameConflict).Create(&row)
		if res.Error != nil {
			tx.Rollback()
			return nil, storageError(subjectID, fmt.Errorf("保存对局失败: %w, tournament_id: %d, seq: %d", res.Error, g.TournamentID, g.Seq))
		}
		result.GamesInserted += int(res.RowsAffected)
	}

	// 提交事务
	if err := tx.Commit().Error; err != nil {
		return nil, storageError(subjectID, fmt.Errorf("提交事务失败: %w", err))
	}
	return result, nil
}

// storageError 约束冲突归为 IntegrityViolation，其余（连接、超时等）归为 StorageUnavailable
func storageError(subjectID int64, err error) error {
	kind := syncerr.KindStorageUnavailable
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, gorm.ErrForeignKeyViolated),
		errors.Is(err, gorm.ErrCheckConstraintViolated):
		kind = syncerr.KindIntegrityViolation
	case errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23"):
		// 23xxx: integrity_constraint_violation
		kind = syncerr.KindIntegrityViolation
	}
	return syncerr.New(kind, subjectID, 0, err)
}

func (r *subjectRepository) Exists(ctx context.Context, subjectID int64) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Subject{}).Where("id = ?", subjectID).Limit(1).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *subjectRepository) GetSubject(ctx context.Context, subjectID int64) (*model.Subject, error) {
	var s model.Subject
	if err := r.db.WithContext(ctx).Where("id = ?", subjectID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSubjects 全部玩家，按登录名排序
func (r *subjectRepository) ListSubjects(ctx context.Context) ([]*model.SubjectSummary, error) {
	var list []*model.SubjectSummary
	if err := r.db.WithContext(ctx).Model(&model.Subject{}).
		Select("id, login").
		Order("login, id").
		Scan(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// ListSubjectIDs 定时刷新用，limit <= 0 表示不限
func (r *subjectRepository) ListSubjectIDs(ctx context.Context, limit int) ([]int64, error) {
	db := r.db.WithContext(ctx).Model(&model.Subject{}).Order("id")
	if limit > 0 {
		db = db.Limit(limit)
	}
	var ids []int64
	if err := db.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ListEventsBySubject 按开赛日期排序，同一天按入库顺序
func (r *subjectRepository) ListEventsBySubject(ctx context.Context, subjectID int64) ([]*model.Event, error) {
	var list []*model.Event
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", subjectID).
		Order("date_start, id").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *subjectRepository) CountEventsBySubject(ctx context.Context, subjectID int64) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Event{}).Where("user_id = ?", subjectID).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *subjectRepository) ListGamesBySubject(ctx context.Context, subjectID int64) ([]*model.Game, error) {
	var list []*model.Game
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", subjectID).
		Order("tournament_id, seq").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// CountEventsByCity 各城市赛事数，多的在前
func (r *subjectRepository) CountEventsByCity(ctx context.Context) ([]*model.CityCount, error) {
	var list []*model.CityCount
	if err := r.db.WithContext(ctx).Model(&model.Event{}).
		Select("city_translate, COUNT(*) AS count").
		Group("city_translate").
		Order("count DESC, city_translate").
		Scan(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// CountEventsByDate 各开赛日期的赛事数，多的在前
func (r *subjectRepository) CountEventsByDate(ctx context.Context) ([]*model.DateCount, error) {
	var list []*model.DateCount
	if err := r.db.WithContext(ctx).Model(&model.Event{}).
		Select("date_start, COUNT(*) AS count").
		Group("date_start").
		Order("count DESC, date_start").
		Scan(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
