package service

import (
	"context"
	"fmt"
	"sort"

	"GomafiaSync/internal/model"
	"GomafiaSync/internal/repository"

	"github.com/sirupsen/logrus"
)

// RatingEntry 一场赛事在积分曲线中的输入：日期 + 积分变化
type RatingEntry struct {
	Date  string
	Delta model.Number
}

// BuildTimeline 从基准分 1000 开始按日期累加积分变化。
// 日期相同的保持输入顺序（稳定排序）；无效的变化值（缺失、非数字）按 0 计入
func BuildTimeline(entries []RatingEntry) []model.RatingPoint {
	sorted := make([]RatingEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	points := make([]model.RatingPoint, 0, len(sorted))
	rating := model.BaselineRating
	for i, e := range sorted {
		delta := e.Delta.Or(0)
		rating += delta
		points = append(points, model.RatingPoint{
			Seq:   i + 1,
			Date:  e.Date,
			Delta: delta,
			Elo:   rating,
		})
	}
	return points
}

// TimelineService 积分曲线：由 tournaments 计算，elo_history 仅作缓存
type TimelineService struct {
	subjects repository.SubjectRepository
	ratings  repository.RatingRepository
	logger   *logrus.Logger
}

func NewTimelineService(subjects repository.SubjectRepository, ratings repository.RatingRepository, logger *logrus.Logger) *TimelineService {
	return &TimelineService{subjects: subjects, ratings: ratings, logger: logger}
}

// Compute 读取玩家赛事（按开赛日期、入库顺序）并计算曲线，不落库
func (s *TimelineService) Compute(ctx context.Context, subjectID int64) ([]model.RatingPoint, error) {
	events, err := s.subjects.ListEventsBySubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("查询玩家%d赛事失败: %w", subjectID, err)
	}
	entries := make([]RatingEntry, 0, len(events))
	for _, ev := range events {
		entries = append(entries, RatingEntry{Date: ev.DateStart, Delta: model.NewNumber(ev.Elo)})
	}
	return BuildTimeline(entries), nil
}

// Rebuild 重新计算并覆盖 elo_history 缓存
func (s *TimelineService) Rebuild(ctx context.Context, subjectID int64) ([]model.RatingPoint, error) {
	points, err := s.Compute(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if err := s.ratings.ReplaceRatingHistory(ctx, subjectID, points); err != nil {
		return nil, fmt.Errorf("写入玩家%d积分曲线失败: %w", subjectID, err)
	}
	s.logger.WithFields(logrus.Fields{
		"subject_id": subjectID,
		"points":     len(points),
	}).Debug("积分曲线已重建")
	return points, nil
}

// Get 优先读缓存。缓存点数与赛事数不一致（上次重建失败）时按赛事现算并尝试回写
func (s *TimelineService) Get(ctx context.Context, subjectID int64) ([]model.RatingPoint, error) {
	cached, err := s.ratings.ListRatingHistory(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("查询玩家%d积分曲线失败: %w", subjectID, err)
	}
	count, err := s.subjects.CountEventsBySubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("统计玩家%d赛事失败: %w", subjectID, err)
	}
	if len(cached) > 0 && int64(len(cached)) == count {
		points := make([]model.RatingPoint, 0, len(cached))
		for _, p := range cached {
			points = append(points, *p)
		}
		return points, nil
	}

	points, err := s.Compute(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		log := s.logger.WithFields(logrus.Fields{
			"subject_id": subjectID,
			"cached":     len(cached),
			"events":     count,
		})
		if err := s.ratings.ReplaceRatingHistory(ctx, subjectID, points); err != nil {
			log.WithError(err).Warn("积分曲线缓存过期，回写失败")
		} else {
			log.Info("积分曲线缓存过期，已重建")
		}
	}
	return points, nil
}
