package service

import (
	"context"
	"errors"

	"GomafiaSync/internal/model"
	"GomafiaSync/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrSubjectNotStored 本地库中没有该玩家
var ErrSubjectNotStored = errors.New("玩家未导入")

// QueryService 面向前端的只读查询
type QueryService struct {
	repo     repository.SubjectRepository
	timeline *TimelineService
	logger   *logrus.Logger
}

// NewQueryService 创建 QueryService
func NewQueryService(repo repository.SubjectRepository, timeline *TimelineService, logger *logrus.Logger) *QueryService {
	return &QueryService{repo: repo, timeline: timeline, logger: logger}
}

// EventWithGames 赛事及其对局
type EventWithGames struct {
	*model.Event
	Games []*model.Game `json:"games"`
}

// SubjectEvents 玩家赛事页
type SubjectEvents struct {
	Subject *model.Subject   `json:"subject"`
	Events  []EventWithGames `json:"events"`
}

// RatingChart 积分曲线
type RatingChart struct {
	SubjectID int64               `json:"subject_id"`
	Baseline  float64             `json:"baseline"`
	Points    []model.RatingPoint `json:"points"`
}

func (s *QueryService) ListSubjects(ctx context.Context) ([]*model.SubjectSummary, error) {
	list, err := s.repo.ListSubjects(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*model.SubjectSummary{}
	}
	return list, nil
}

// GetSubjectEvents 玩家信息 + 按开赛日期排列的赛事（含对局）
func (s *QueryService) GetSubjectEvents(ctx context.Context, subjectID int64) (*SubjectEvents, error) {
	subject, err := s.repo.GetSubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubjectNotStored
		}
		return nil, err
	}
	events, err := s.repo.ListEventsBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	games, err := s.repo.ListGamesBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	byEvent := make(map[int64][]*model.Game)
	for _, g := range games {
		byEvent[g.TournamentID] = append(byEvent[g.TournamentID], g)
	}
	out := &SubjectEvents{Subject: subject, Events: make([]EventWithGames, 0, len(events))}
	for _, ev := range events {
		gs := byEvent[ev.TournamentID]
		if gs == nil {
			gs = []*model.Game{}
		}
		out.Events = append(out.Events, EventWithGames{Event: ev, Games: gs})
	}
	return out, nil
}

// GetRatingChart 积分曲线，玩家不存在时返回 ErrSubjectNotStored
func (s *QueryService) GetRatingChart(ctx context.Context, subjectID int64) (*RatingChart, error) {
	ok, err := s.repo.Exists(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSubjectNotStored
	}
	points, err := s.timeline.Get(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return &RatingChart{SubjectID: subjectID, Baseline: model.BaselineRating, Points: points}, nil
}

func (s *QueryService) CityStats(ctx context.Context) ([]*model.CityCount, error) {
	list, err := s.repo.CountEventsByCity(ctx)
	if list == nil && err == nil {
		list = []*model.CityCount{}
	}
	return list, err
}

func (s *QueryService) DateStats(ctx context.Context) ([]*model.DateCount, error) {
	list, err := s.repo.CountEventsByDate(ctx)
	if list == nil && err == nil {
		list = []*model.DateCount{}
	}
	return list, err
}
