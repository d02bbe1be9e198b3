package model

import (
	"time"

	"gorm.io/datatypes"
)

// Subject 玩家（gomafia 用户），主键为源站分配的用户ID，本地不生成
type Subject struct {
	ID               int64     `gorm:"column:id;primaryKey;autoIncrement:false;comment:源站用户ID" json:"id"`
	ClubID           int64     `gorm:"column:club_id;type:integer;comment:俱乐部ID" json:"club_id"`
	Login            string    `gorm:"column:login;type:text;comment:登录名" json:"login"`
	FirstName        string    `gorm:"column:first_name;type:text" json:"first_name"`
	LastName         string    `gorm:"column:last_name;type:text" json:"last_name"`
	DateRegistration string    `gorm:"column:date_registration;type:text;comment:注册日期（源站原样）" json:"date_registration"`
	IconType         string    `gorm:"column:icon_type;type:text" json:"icon_type"`
	Icon             string    `gorm:"column:icon;type:text" json:"icon"`
	GCoin            int64     `gorm:"column:gcoin;type:integer" json:"gcoin"`
	Elo              float64   `gorm:"column:elo;comment:当前积分" json:"elo"`
	VkID             int64     `gorm:"column:vk_id;type:bigint" json:"vk_id"`
	RefereeLicense   int64     `gorm:"column:referee_license;type:integer" json:"referee_license"`
	IsPaid           bool      `gorm:"column:is_paid;type:boolean" json:"is_paid"`
	IsCanComment     bool      `gorm:"column:is_can_comment;type:boolean" json:"is_can_comment"`
	Since            int64     `gorm:"column:since;type:integer" json:"since"`
	AvatarLink       string    `gorm:"column:avatar_link;type:text;not null;comment:无头像时为占位文本" json:"avatar_link"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	Events []Event `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	Games  []Game  `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

// Event 玩家参加过的一场赛事，(user_id, tournament_id) 唯一
type Event struct {
	ID               uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	UserID           int64     `gorm:"column:user_id;not null;uniqueIndex:uk_user_tournament;index:idx_user_date,priority:1" json:"user_id"`
	TournamentID     int64     `gorm:"column:tournament_id;not null;uniqueIndex:uk_user_tournament;comment:源站赛事ID" json:"tournament_id"`
	Title            string    `gorm:"column:title;type:text" json:"title"`
	DateStart        string    `gorm:"column:date_start;type:text;index:idx_user_date,priority:2" json:"date_start"`
	DateEnd          string    `gorm:"column:date_end;type:text" json:"date_end"`
	CountryTranslate string    `gorm:"column:country_translate;type:text" json:"country_translate"`
	CityTranslate    string    `gorm:"column:city_translate;type:text" json:"city_translate"`
	Place            int64     `gorm:"column:place;type:integer;comment:最终名次" json:"place"`
	GG               float64   `gorm:"column:gg" json:"gg"`
	Elo              float64   `gorm:"column:elo;comment:本场积分变化" json:"elo"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime" json:"-"`
}

// Game 赛事内的一局，seq 为该局在赛事游戏列表中的位置（从1开始）
type Game struct {
	ID            uint64  `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	UserID        int64   `gorm:"column:user_id;not null;uniqueIndex:uk_user_game" json:"user_id"`
	TournamentID  int64   `gorm:"column:tournament_id;not null;uniqueIndex:uk_user_game" json:"tournament_id"`
	Seq           int     `gorm:"column:seq;not null;uniqueIndex:uk_user_game" json:"seq"`
	Role          string  `gorm:"column:role;type:text" json:"role"`
	RoleTranslate string  `gorm:"column:role_translate;type:text" json:"role_translate"`
	Place         int64   `gorm:"column:place;type:integer;comment:座位号" json:"place"`
	Win           string  `gorm:"column:win;type:text" json:"win"`
	WinTranslate  string  `gorm:"column:win_translate;type:text" json:"win_translate"`
	Elo           float64 `gorm:"column:elo" json:"elo"`
}

// RatingPoint 积分曲线缓存，可随时由 tournaments 重建
type RatingPoint struct {
	ID     uint64  `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	UserID int64   `gorm:"column:user_id;not null;uniqueIndex:uk_user_seq" json:"-"`
	Seq    int     `gorm:"column:seq;not null;uniqueIndex:uk_user_seq" json:"seq"`
	Date   string  `gorm:"column:date;type:text" json:"date"`
	Delta  float64 `gorm:"column:delta" json:"delta"`
	Elo    float64 `gorm:"column:elo;comment:累计积分" json:"elo"`
}

// ImportRun 一次导入的审计记录
type ImportRun struct {
	ID           uint64         `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	RunUUID      string         `gorm:"column:run_uuid;type:varchar(64);uniqueIndex;not null" json:"run_uuid"`
	UserID       int64          `gorm:"column:user_id;index;not null" json:"user_id"`
	Status       string         `gorm:"column:status;type:varchar(16);not null;comment:running/succeeded/skipped/failed" json:"status"`
	Outcome      string         `gorm:"column:outcome;type:varchar(32)" json:"outcome"`
	PagesFetched int            `gorm:"column:pages_fetched" json:"pages_fetched"`
	EventsStored int            `gorm:"column:events_stored" json:"events_stored"`
	GamesStored  int            `gorm:"column:games_stored" json:"games_stored"`
	Error        *string        `gorm:"column:error;type:text" json:"error,omitempty"`
	Detail       datatypes.JSON `gorm:"column:detail;type:jsonb" json:"detail,omitempty"`
	StartedAt    time.Time      `gorm:"column:started_at;type:timestamp;not null" json:"started_at"`
	FinishedAt   *time.Time     `gorm:"column:finished_at;type:timestamp" json:"finished_at,omitempty"`
}

func (Subject) TableName() string     { return "users" }
func (Event) TableName() string       { return "tournaments" }
func (Game) TableName() string        { return "games" }
func (RatingPoint) TableName() string { return "elo_history" }
func (ImportRun) TableName() string   { return "import_runs" }

// AllTables 按依赖顺序返回需要迁移的表
func AllTables() []interface{} {
	return []interface{}{
		&Subject{},
		&Event{},
		&Game{},
		&RatingPoint{},
		&ImportRun{},
	}
}
