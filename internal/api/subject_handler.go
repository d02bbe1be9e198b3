package api

import (
	"errors"
	"net/http"

	"GomafiaSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SubjectHandler 提供给前端的玩家、赛事、积分曲线查询接口
type SubjectHandler struct {
	queryService *service.QueryService
	logger       *logrus.Logger
}

// NewSubjectHandler 创建 SubjectHandler
func NewSubjectHandler(queryService *service.QueryService, logger *logrus.Logger) *SubjectHandler {
	return &SubjectHandler{
		queryService: queryService,
		logger:       logger,
	}
}

// ListSubjects 已导入玩家列表（按登录名）
// GET /api/subjects
func (h *SubjectHandler) ListSubjects(c *gin.Context) {
	list, err := h.queryService.ListSubjects(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("ListSubjects failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

// GetSubjectEvents 玩家赛事（按开赛日期）
// GET /api/subjects/:id/events
func (h *SubjectHandler) GetSubjectEvents(c *gin.Context) {
	subjectID, ok := parseSubjectID(c)
	if !ok {
		return
	}
	result, err := h.queryService.GetSubjectEvents(c.Request.Context(), subjectID)
	if err != nil {
		h.respondQueryError(c, "GetSubjectEvents", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetRatingChart 积分曲线
// GET /api/subjects/:id/rating
func (h *SubjectHandler) GetRatingChart(c *gin.Context) {
	subjectID, ok := parseSubjectID(c)
	if !ok {
		return
	}
	result, err := h.queryService.GetRatingChart(c.Request.Context(), subjectID)
	if err != nil {
		h.respondQueryError(c, "GetRatingChart", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CityStats GET /api/stats/cities
func (h *SubjectHandler) CityStats(c *gin.Context) {
	list, err := h.queryService.CityStats(c.Request.Context())
	if err != nil {
		h.respondQueryError(c, "CityStats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

// DateStats GET /api/stats/dates
func (h *SubjectHandler) DateStats(c *gin.Context) {
	list, err := h.queryService.DateStats(c.Request.Context())
	if err != nil {
		h.respondQueryError(c, "DateStats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

func (h *SubjectHandler) respondQueryError(c *gin.Context, op string, err error) {
	if errors.Is(err, service.ErrSubjectNotStored) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.logger.WithError(err).Errorf("%s failed", op)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
