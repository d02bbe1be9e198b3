package service

import (
	"context"
	"fmt"
	"sync"

	"GomafiaSync/internal/metrics"
	"GomafiaSync/internal/repository"
	"GomafiaSync/internal/syncerr"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// importer RefreshService 依赖的导入能力
type importer interface {
	ImportSubject(ctx context.Context, subjectID int64) (*ImportResult, error)
}

// RefreshService 定时重新导入已知玩家。仅在 merge_events 策略下能补到新赛事
type RefreshService struct {
	subjects repository.SubjectRepository
	importer importer
	metrics  *metrics.Manager
	limit    int
	logger   *logrus.Logger

	mu      sync.Mutex
	running bool
}

// RefreshSummary 一轮刷新的统计
type RefreshSummary struct {
	Subjects       int `json:"subjects"`
	Succeeded      int `json:"succeeded"`
	Failed         int `json:"failed"`
	EventsInserted int `json:"events_inserted"`
}

// NewRefreshService 创建刷新服务，limit <= 0 时默认 100
func NewRefreshService(subjects repository.SubjectRepository, imp importer, m *metrics.Manager, limit int, logger *logrus.Logger) *RefreshService {
	if limit <= 0 {
		limit = 100
	}
	return &RefreshService{subjects: subjects, importer: imp, metrics: m, limit: limit, logger: logger}
}

// Run 刷新一轮；单个玩家失败不阻塞整轮，上一轮未结束则直接跳过
func (s *RefreshService) Run(ctx context.Context) (*RefreshSummary, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("Refresh: 上一轮尚未结束，跳过")
		return &RefreshSummary{}, nil
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if s.metrics != nil {
		s.metrics.RecordRefresh()
	}
	ids, err := s.subjects.ListSubjectIDs(ctx, s.limit)
	if err != nil {
		return nil, fmt.Errorf("查询已知玩家失败: %w", err)
	}
	summary := &RefreshSummary{Subjects: len(ids)}
	if len(ids) == 0 {
		s.logger.Debug("Refresh: 无已知玩家")
		return summary, nil
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		res, err := s.importer.ImportSubject(ctx, id)
		if err != nil {
			summary.Failed++
			s.logger.WithError(err).WithFields(logrus.Fields{
				"subject_id": id,
				"outcome":    syncerr.Classify(err),
			}).Warn("Refresh: 玩家刷新失败，跳过")
			continue
		}
		summary.Succeeded++
		summary.EventsInserted += res.EventsInserted
	}
	s.logger.WithFields(logrus.Fields{
		"subjects":        summary.Subjects,
		"succeeded":       summary.Succeeded,
		"failed":          summary.Failed,
		"events_inserted": summary.EventsInserted,
	}).Info("Refresh: 本轮完成")
	return summary, nil
}

// Schedule 按 cron 表达式注册刷新任务并启动调度器，返回的 stop 用于退出时等待任务结束
func (s *RefreshService) Schedule(ctx context.Context, spec string) (stop func(), err error) {
	c := cron.New(cron.WithLogger(cronLogger{logger: s.logger}))
	if _, err := c.AddFunc(spec, func() {
		if _, err := s.Run(ctx); err != nil {
			s.logger.WithError(err).Error("Refresh: 定时刷新失败")
		}
	}); err != nil {
		return nil, fmt.Errorf("cron 表达式非法 %q: %w", spec, err)
	}
	c.Start()
	s.logger.WithField("cron", spec).Info("Refresh: 定时刷新已启动")
	return func() { <-c.Stop().Done() }, nil
}

// cronLogger 把 cron 的日志接到 logrus
type cronLogger struct {
	logger *logrus.Logger
}

func (l cronLogger) fields(keysAndValues []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(l.fields(keysAndValues)).Debugf("cron: %s", msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithError(err).WithFields(l.fields(keysAndValues)).Errorf("cron: %s", msg)
}
