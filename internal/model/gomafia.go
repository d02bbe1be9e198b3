package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ========== gomafia 页面 __NEXT_DATA__ 结构（只声明用到的路径，其余字段忽略） ==========

// NextData __NEXT_DATA__ 根节点
type NextData struct {
	Props struct {
		PageProps struct {
			ServerData *ServerData `json:"serverData"`
		} `json:"pageProps"`
	} `json:"props"`
}

// ServerData props.pageProps.serverData
type ServerData struct {
	User         *RawUser          `json:"user"`
	HistoryTotal Number            `json:"historyTotal"`
	History      []RawHistoryEntry `json:"history"` // null 表示没有参赛记录
}

// RawUser serverData.user
type RawUser struct {
	ID               Number `json:"id"`
	ClubID           Number `json:"club_id"`
	Login            Text   `json:"login"`
	FirstName        Text   `json:"first_name"`
	LastName         Text   `json:"last_name"`
	DateRegistration Text   `json:"date_registration"`
	IconType         Text   `json:"icon_type"`
	Icon             Text   `json:"icon"`
	GCoin            Number `json:"gcoin"`
	Elo              Number `json:"elo"`
	VkID             Number `json:"vk_id"`
	RefereeLicense   Number `json:"referee_license"`
	IsPaid           Flag   `json:"is_paid"`
	IsCanComment     Flag   `json:"is_can_comment"`
	Since            Number `json:"since"`
	AvatarLink       Text   `json:"avatar_link"`
}

// RawHistoryEntry serverData.history[]，一场赛事
type RawHistoryEntry struct {
	ID               Number        `json:"id"`
	Title            Text          `json:"title"`
	DateStart        Text          `json:"date_start"`
	DateEnd          Text          `json:"date_end"`
	CountryTranslate Text          `json:"country_translate"`
	CityTranslate    Text          `json:"city_translate"`
	Place            Number        `json:"place"`
	GG               Number        `json:"gg"`
	Elo              Number        `json:"elo"`
	Games            []RawGameItem `json:"games"`
}

// RawGameItem history[].games[]，赛事中的一局
type RawGameItem struct {
	Role          Text   `json:"role"`
	RoleTranslate Text   `json:"role_translate"`
	Place         Number `json:"place"`
	Win           Text   `json:"win"`
	WinTranslate  Text   `json:"win_translate"`
	Elo           Number `json:"elo"`
}

// PageBlob 单页解析结果
type PageBlob struct {
	Page       int
	ServerData *ServerData
}

// Snapshot 一次导入抓到的全部页面
type Snapshot struct {
	SubjectID  int64
	TotalItems int64
	PageCount  int
	Empty      bool // 源站显示该玩家没有参赛记录
	Pages      []*PageBlob
}

// ========== 宽松类型：源站字段时有时无、类型也不固定 ==========

// Number 可缺失的数值。接受数字、数字字符串；null、非数字文本以及 NaN/Inf 视为无效
type Number struct {
	Value float64
	Valid bool
}

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		// 对象、数组、布尔、"Неизвестно"、超出范围的数 等一律视为缺失
		return nil
	}
	*n = NewNumber(f)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// NewNumber 构造数值，NaN/Inf 为无效
func NewNumber(v float64) Number {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Number{}
	}
	return Number{Value: v, Valid: true}
}

// Or 无效时返回 def
func (n Number) Or(def float64) float64 {
	if !n.Valid {
		return def
	}
	return n.Value
}

// Int64 无效或超出 int64 范围时为 0
func (n Number) Int64() int64 {
	v := n.Or(0)
	if v >= math.MaxInt64 || v < math.MinInt64 {
		return 0
	}
	return int64(v)
}

// Text 可缺失的文本。字符串原样保留；数字、布尔转为字面量；null 视为缺失
type Text struct {
	Value string
	Valid bool
}

func (t *Text) UnmarshalJSON(b []byte) error {
	*t = Text{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text{Value: s, Valid: true}
	case '{', '[':
		// 嵌套结构不是文本
	default:
		*t = Text{Value: string(b), Valid: true}
	}
	return nil
}

// OrUnknown 缺失时返回 UnknownText
func (t Text) OrUnknown() string {
	return t.Or(UnknownText)
}

// Or 缺失时返回 def
func (t Text) Or(def string) string {
	if !t.Valid {
		return def
	}
	return t.Value
}

// Flag 可缺失的布尔值，兼容 true/false、0/1、"1"/"true"
type Flag struct {
	Value bool
	Valid bool
}

func (f *Flag) UnmarshalJSON(b []byte) error {
	*f = Flag{}
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	switch strings.ToLower(s) {
	case "true", "1":
		*f = Flag{Value: true, Valid: true}
	case "false", "0":
		*f = Flag{Value: false, Valid: true}
	}
	return nil
}

// SnapshotRecords 一次快照归并后的规范记录
type SnapshotRecords struct {
	Subject    *Subject
	Events     []*Event
	Games      []*Game
	Duplicates int // 跨页重复、被合并掉的赛事条数
	Dropped    int // 缺少赛事ID、无法入库的条数
}

// SaveResult 入库结果
type SaveResult struct {
	SubjectCreated bool // 本次新建了玩家
	Skipped        bool // 玩家已存在且策略为 skip，未写入任何数据
	EventsInserted int
	GamesInserted  int
}
