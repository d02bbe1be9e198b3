package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"GomafiaSync/internal/adapter/gomafia"
	"GomafiaSync/internal/config"
	"GomafiaSync/internal/interfaces"
	"GomafiaSync/internal/metrics"
	"GomafiaSync/internal/model"
	"GomafiaSync/internal/repository"
	"GomafiaSync/internal/syncerr"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const tracerName = "GomafiaSync/internal/service"

// ImportResult 一次导入的结果，失败时也会返回（带 RunUUID 与 Outcome）
type ImportResult struct {
	RunUUID        string            `json:"run_uuid"`
	SubjectID      int64             `json:"subject_id"`
	Outcome        syncerr.Outcome   `json:"outcome"`
	Policy         config.OnConflict `json:"policy"`
	PageCount      int               `json:"page_count"`
	TotalItems     int64             `json:"total_items"`
	EventsSeen     int               `json:"events_seen"`
	Duplicates     int               `json:"duplicates"`
	Dropped        int               `json:"dropped"`
	SubjectCreated bool              `json:"subject_created"`
	Skipped        bool              `json:"skipped"`
	EventsInserted int               `json:"events_inserted"`
	GamesInserted  int               `json:"games_inserted"`
	Shared         bool              `json:"shared"` // 与同一玩家的并发导入合并，共享结果
	TraceID        string            `json:"trace_id,omitempty"`
}

type SyncService struct {
	source   interfaces.SnapshotSource
	repo     interfaces.SnapshotRepository
	runs     repository.ImportRunRepository
	timeline *TimelineService
	metrics  *metrics.Manager
	policy   config.OnConflict
	logger   *logrus.Logger
	tracer   trace.Tracer

	// 同一玩家同时只跑一条流水线；flights 记录每条流水线还有几个调用方在等
	inflight singleflight.Group
	mu       sync.Mutex
	flights  map[string]*flight
}

// flight 一条合并后的流水线。运行用独立 ctx，所有等待者都放弃后才取消
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func NewSyncService(db *gorm.DB, logger *logrus.Logger, cfg *config.Config, m *metrics.Manager) *SyncService {
	return NewSyncServiceWithSource(db, gomafia.NewGomafiaAdapter(&cfg.Source, logger), logger, cfg, m)
}

// NewSyncServiceWithSource 指定数据源（测试、CLI 复用）
func NewSyncServiceWithSource(db *gorm.DB, source interfaces.SnapshotSource, logger *logrus.Logger, cfg *config.Config, m *metrics.Manager) *SyncService {
	if m == nil {
		m = metrics.NewManager()
	}
	subjects := repository.NewSubjectRepository(db)
	return &SyncService{
		source:   source,
		repo:     subjects,
		runs:     repository.NewImportRunRepository(db),
		timeline: NewTimelineService(subjects, repository.NewRatingRepository(db), logger),
		metrics:  m,
		policy:   cfg.Sync.OnConflict,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		flights:  make(map[string]*flight),
	}
}

// ImportSubject 抓取玩家全部历史并入库。同一玩家的并发调用合并为一次执行；
// 调用方 ctx 取消时立即返回，流水线只在没有任何调用方等待时才被取消
func (s *SyncService) ImportSubject(ctx context.Context, subjectID int64) (*ImportResult, error) {
	if subjectID <= 0 {
		return nil, fmt.Errorf("非法玩家ID: %d", subjectID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := strconv.FormatInt(subjectID, 10)
	f := s.join(ctx, key)
	defer s.leave(key, f)

	// 按 flight 区分 key：已被取消、尚在收尾的旧流水线不会被新调用方加入
	ch := s.inflight.DoChan(fmt.Sprintf("%s/%p", key, f), func() (interface{}, error) {
		return s.importOnce(f.ctx, subjectID)
	})
	select {
	case r := <-ch:
		res, _ := r.Val.(*ImportResult)
		if res != nil {
			copied := *res
			copied.Shared = r.Shared
			res = &copied
		}
		return res, r.Err
	case <-ctx.Done():
		s.logger.WithField("subject_id", subjectID).Debug("调用方已取消，不再等待导入结果")
		return nil, ctx.Err()
	}
}

func (s *SyncService) join(ctx context.Context, key string) *flight {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flights[key]
	if !ok {
		// 保留调用方 ctx 里的 trace 等值，但不继承取消
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: runCtx, cancel: cancel}
		s.flights[key] = f
	}
	f.waiters++
	return f
}

func (s *SyncService) leave(key string, f *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.waiters--
	if f.waiters == 0 {
		f.cancel()
		delete(s.flights, key)
	}
}

// ImportMany 依次导入，单个失败不影响后续
func (s *SyncService) ImportMany(ctx context.Context, subjectIDs []int64) ([]*ImportResult, []error) {
	results := make([]*ImportResult, len(subjectIDs))
	errs := make([]error, len(subjectIDs))
	for i, id := range subjectIDs {
		if ctx.Err() != nil {
			errs[i] = ctx.Err()
			continue
		}
		results[i], errs[i] = s.ImportSubject(ctx, id)
	}
	return results, errs
}

func (s *SyncService) importOnce(ctx context.Context, subjectID int64) (*ImportResult, error) {
	ctx, span := s.tracer.Start(ctx, "SyncService.ImportSubject",
		trace.WithAttributes(attribute.Int64("subject_id", subjectID), attribute.String("policy", string(s.policy))))
	defer span.End()

	log := s.logger.WithField("subject_id", subjectID)
	done := s.metrics.ImportStarted()

	result := &ImportResult{RunUUID: uuid.NewString(), SubjectID: subjectID, Policy: s.policy}
	if sc := span.SpanContext(); sc.HasTraceID() {
		result.TraceID = sc.TraceID().String()
		log = log.WithField("trace_id", result.TraceID)
	}
	run := &model.ImportRun{
		RunUUID:   result.RunUUID,
		UserID:    subjectID,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now(),
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		log.WithError(err).Warn("写入导入记录失败，继续导入")
	}

	err := s.run(ctx, subjectID, result)
	result.Outcome = syncerr.Classify(err)
	done(string(result.Outcome))
	s.finishRun(context.WithoutCancel(ctx), result, err)

	span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.WithError(err).WithFields(logrus.Fields{
			"outcome":   result.Outcome,
			"retryable": result.Outcome.Retryable(),
		}).Error("玩家导入失败")
		return result, err
	}

	log.WithFields(logrus.Fields{
		"pages":           result.PageCount,
		"events_seen":     result.EventsSeen,
		"events_inserted": result.EventsInserted,
		"games_inserted":  result.GamesInserted,
		"skipped":         result.Skipped,
	}).Info("玩家导入完成")
	return result, nil
}

// run 抓取 → 归并 → 入库 → 重建积分曲线
func (s *SyncService) run(ctx context.Context, subjectID int64, result *ImportResult) error {
	// 1. 抓取全部页（任何一页失败即放弃，不入库）
	snapshot, err := s.source.FetchSnapshot(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("%s抓取玩家%d失败: %w", s.source.GetName(), subjectID, err)
	}
	result.PageCount = len(snapshot.Pages)
	result.TotalItems = snapshot.TotalItems

	// 2. 归并为规范记录
	records, err := s.source.ConvertToDBModel(snapshot)
	if err != nil {
		return fmt.Errorf("%s转换玩家%d数据失败: %w", s.source.GetName(), subjectID, err)
	}
	result.EventsSeen = len(records.Events)
	result.Duplicates = records.Duplicates
	result.Dropped = records.Dropped
	s.metrics.RecordSnapshot(result.PageCount, records.Duplicates, records.Dropped)

	// 3. 入库
	saved, err := s.repo.SaveSnapshot(ctx, records, s.policy)
	if err != nil {
		return fmt.Errorf("玩家%d入库失败: %w", subjectID, err)
	}
	result.SubjectCreated = saved.SubjectCreated
	result.Skipped = saved.Skipped
	result.EventsInserted = saved.EventsInserted
	result.GamesInserted = saved.GamesInserted
	s.metrics.RecordSaved(saved.EventsInserted, saved.GamesInserted)

	// 4. 积分曲线只是缓存，失败不影响导入结果。事务已提交，不再跟随调用方取消
	if saved.SubjectCreated || saved.EventsInserted > 0 {
		if _, err := s.timeline.Rebuild(context.WithoutCancel(ctx), subjectID); err != nil {
			s.logger.WithError(err).WithField("subject_id", subjectID).Warn("积分曲线重建失败")
		}
	}
	return nil
}

func (s *SyncService) finishRun(ctx context.Context, result *ImportResult, runErr error) {
	fin := repository.RunFinish{
		Status:       model.RunStatusSucceeded,
		Outcome:      string(result.Outcome),
		PagesFetched: result.PageCount,
		EventsStored: result.EventsInserted,
		GamesStored:  result.GamesInserted,
	}
	switch {
	case runErr != nil:
		fin.Status = model.RunStatusFailed
		fin.Error = runErr.Error()
	case result.Skipped:
		fin.Status = model.RunStatusSkipped
	}
	if detail, err := json.Marshal(result); err == nil {
		fin.Detail = datatypes.JSON(detail)
	}
	if err := s.runs.FinishRun(ctx, result.RunUUID, fin); err != nil {
		s.logger.WithError(err).WithField("run_uuid", result.RunUUID).Warn("更新导入记录失败")
	}
}

// GetRun 查询导入记录
func (s *SyncService) GetRun(ctx context.Context, runUUID string) (*model.ImportRun, error) {
	return s.runs.GetByUUID(ctx, runUUID)
}

// Policy 当前的已存在玩家处理策略
func (s *SyncService) Policy() config.OnConflict {
	return s.policy
}
