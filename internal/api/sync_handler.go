package api

import (
	"errors"
	"net/http"
	"strconv"

	"GomafiaSync/internal/service"
	"GomafiaSync/internal/syncerr"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type SyncHandler struct {
	syncService *service.SyncService
	logger      *logrus.Logger
}

func NewSyncHandler(syncService *service.SyncService, logger *logrus.Logger) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		logger:      logger,
	}
}

// ImportSubjectHandler 导入指定玩家的全部参赛记录
// @Summary 导入玩家
// @Param id path int true "gomafia 玩家ID"
// @Success 200 {object} service.ImportResult
// @Failure 404 {object} map[string]interface{} "源站无此玩家，不要重试"
// @Failure 502 {object} map[string]interface{} "源站请求失败，可稍后重试"
// @Failure 422 {object} map[string]interface{} "页面结构异常"
// @Failure 503 {object} map[string]interface{} "数据库不可用"
// @Failure 500 {object} map[string]interface{} "未归类的内部错误"
// @Router /api/subjects/{id}/import [post]
func (h *SyncHandler) ImportSubjectHandler(c *gin.Context) {
	subjectID, ok := parseSubjectID(c)
	if !ok {
		return
	}

	result, err := h.syncService.ImportSubject(c.Request.Context(), subjectID)
	if err != nil {
		outcome := syncerr.Classify(err)
		h.logger.WithError(err).WithField("subject_id", subjectID).Warn("导入玩家失败")
		body := gin.H{
			"error":     err.Error(),
			"outcome":   outcome,
			"retryable": outcome.Retryable(),
		}
		if result != nil {
			body["run_uuid"] = result.RunUUID
		}
		c.JSON(statusForOutcome(outcome), body)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetImportRun 导入记录 GET /api/imports/:run_uuid
func (h *SyncHandler) GetImportRun(c *gin.Context) {
	runUUID := c.Param("run_uuid")
	if runUUID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run_uuid is required"})
		return
	}
	run, err := h.syncService.GetRun(c.Request.Context(), runUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "import run not found"})
			return
		}
		h.logger.WithError(err).Error("GetImportRun failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

// statusForOutcome 不存在与暂时失败要让调用方区分开
func statusForOutcome(o syncerr.Outcome) int {
	switch o {
	case syncerr.OutcomeNotFound:
		return http.StatusNotFound
	case syncerr.OutcomeTransportError:
		return http.StatusBadGateway
	case syncerr.OutcomeDataError:
		return http.StatusUnprocessableEntity
	case syncerr.OutcomeStorageError:
		return http.StatusServiceUnavailable
	case syncerr.OutcomeCanceled:
		return http.StatusGatewayTimeout
	case syncerr.OutcomeInternal:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func parseSubjectID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return 0, false
	}
	return id, true
}
