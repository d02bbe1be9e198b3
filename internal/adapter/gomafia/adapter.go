package gomafia

import (
	"context"

	"GomafiaSync/internal/config"
	"GomafiaSync/internal/interfaces"
	"GomafiaSync/internal/model"
	"GomafiaSync/internal/syncerr"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("GomafiaSync/internal/adapter/gomafia")

// PageSize 源站历史列表每页条数。historyTotal 的除数由源站固定，不做成配置
const PageSize = 10

// PageCount ceil(total / PageSize)，total <= 0 时为 0
func PageCount(total int64) int {
	if total <= 0 {
		return 0
	}
	return int((total + PageSize - 1) / PageSize)
}

type Adapter struct {
	fetcher interfaces.PageFetcher
	logger  *logrus.Logger
}

func NewGomafiaAdapter(cfg *config.SourceConfig, logger *logrus.Logger) interfaces.SnapshotSource {
	return NewAdapterWithFetcher(NewFetcher(cfg, logger), logger)
}

// NewAdapterWithFetcher 使用自定义抓取器（测试、CLI 复用）
func NewAdapterWithFetcher(fetcher interfaces.PageFetcher, logger *logrus.Logger) *Adapter {
	return &Adapter{fetcher: fetcher, logger: logger}
}

// GetName ========== 实现SnapshotSource接口 ==========
func (a *Adapter) GetName() string {
	return "gomafia"
}

// FetchSnapshot 抓取一个玩家的全部历史页。
// 页数由第 1 页的 historyTotal 决定，后续页顺序抓取；任何一页失败整次作废，不返回半截快照
func (a *Adapter) FetchSnapshot(ctx context.Context, subjectID int64) (*model.Snapshot, error) {
	log := a.logger.WithField("subject_id", subjectID)

	// 1. 第一页：不存在/传输错误/页面结构错误原样上抛
	first, err := a.fetchBlob(ctx, subjectID, 1)
	if err != nil {
		return nil, err
	}
	if first.User == nil {
		return nil, syncerr.New(syncerr.KindSubjectNotFound, subjectID, 1, nil)
	}

	snapshot := &model.Snapshot{
		SubjectID: subjectID,
		Pages:     []*model.PageBlob{{Page: 1, ServerData: first}},
	}

	// 2. 没有 historyTotal 或没有历史：空历史也是成功
	total := first.HistoryTotal.Int64()
	if !first.HistoryTotal.Valid || total <= 0 || first.History == nil {
		snapshot.Empty = true
		snapshot.PageCount = 1
		log.Info("gomafia 玩家无参赛记录")
		return snapshot, nil
	}
	snapshot.TotalItems = total
	snapshot.PageCount = PageCount(total)

	// 3. 顺序抓取 2..n 页
	for page := 2; page <= snapshot.PageCount; page++ {
		blob, err := a.fetchBlob(ctx, subjectID, page)
		if err != nil {
			log.WithError(err).WithField("page", page).Warn("gomafia 分页抓取失败，放弃本次导入")
			return nil, syncerr.Pagination(subjectID, page, err)
		}
		snapshot.Pages = append(snapshot.Pages, &model.PageBlob{Page: page, ServerData: blob})
	}

	log.WithFields(logrus.Fields{
		"total": total,
		"pages": snapshot.PageCount,
	}).Info("gomafia 快照抓取完成")
	return snapshot, nil
}

// fetchBlob 抓一页并解析，解析错误补上玩家与页码
func (a *Adapter) fetchBlob(ctx context.Context, subjectID int64, page int) (data *model.ServerData, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "gomafia.FetchPage", trace.WithAttributes(
		attribute.Int64("subject_id", subjectID),
		attribute.Int("page", page),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	raw, err := a.fetcher.FetchPage(ctx, subjectID, page)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("bytes", len(raw)))
	data, err = ExtractBlob(raw)
	if err != nil {
		if e, ok := err.(*syncerr.Error); ok {
			e.SubjectID, e.Page = subjectID, page
		}
		return nil, err
	}
	return data, nil
}
