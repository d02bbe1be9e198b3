package api

import (
	"GomafiaSync/internal/metrics"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册全部路由；m 非 nil 时挂 /metrics 与请求指标中间件
func RegisterRoutes(r *gin.Engine, syncHandler *SyncHandler, subjectHandler *SubjectHandler, m *metrics.Manager) {
	if m != nil {
		r.Use(m.GinMiddleware())
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	// 注册ppof 方便调试和监测性能问题
	pprof.Register(r)

	api := r.Group("/api")
	api.POST("/subjects/:id/import", syncHandler.ImportSubjectHandler)
	api.GET("/imports/:run_uuid", syncHandler.GetImportRun)

	api.GET("/subjects", subjectHandler.ListSubjects)
	api.GET("/subjects/:id/events", subjectHandler.GetSubjectEvents)
	api.GET("/subjects/:id/rating", subjectHandler.GetRatingChart)
	api.GET("/stats/cities", subjectHandler.CityStats)
	api.GET("/stats/dates", subjectHandler.DateStats)
}
