package model

// 源站字段缺失时的占位值，与空字符串区分开，下游据此判断“未知”与“为空”
const (
	UnknownText = "Неизвестно"
	NoAvatar    = "Аватар отсутствует"
)

// BaselineRating 积分曲线起点
const BaselineRating = 1000.0

// ImportRun.Status 取值
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusSkipped   = "skipped"
	RunStatusFailed    = "failed"
)

// CityCount 按城市统计赛事数
type CityCount struct {
	CityTranslate string `gorm:"column:city_translate" json:"city_translate"`
	Count         int64  `gorm:"column:count" json:"count"`
}

// DateCount 按开赛日期统计赛事数
type DateCount struct {
	DateStart string `gorm:"column:date_start" json:"date_start"`
	Count     int64  `gorm:"column:count" json:"count"`
}

// SubjectSummary 玩家列表项
type SubjectSummary struct {
	ID    int64  `gorm:"column:id" json:"id"`
	Login string `gorm:"column:login" json:"login"`
}
