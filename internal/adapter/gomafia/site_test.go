package gomafia

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"GomafiaSync/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// fakeSite 模拟 gomafia 的 /stats/{id} 页面
type fakeSite struct {
	mu       sync.Mutex
	players  map[int64]fakePlayer
	failPage map[int]int // 页码 -> HTTP 状态码
	requests []string
}

type fakePlayer struct {
	user    map[string]any
	total   any // nil 表示不输出 historyTotal
	entries []map[string]any
}

func newFakeSite() *fakeSite {
	return &fakeSite{players: map[int64]fakePlayer{}, failPage: map[int]int{}}
}

func (s *fakeSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.URL.RequestURI())
	s.mu.Unlock()

	var id int64
	if _, err := fmt.Sscanf(r.URL.Path, "/stats/%d", &id); err != nil {
		http.NotFound(w, r)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if code, ok := s.failPage[page]; ok {
		w.WriteHeader(code)
		return
	}
	player, ok := s.players[id]
	if !ok {
		_, _ = io.WriteString(w, "<html><body><h1>Игрок не найден</h1></body></html>")
		return
	}

	from := (page - 1) * PageSize
	to := from + PageSize
	if from > len(player.entries) {
		from = len(player.entries)
	}
	if to > len(player.entries) {
		to = len(player.entries)
	}
	serverData := map[string]any{
		"user":    player.user,
		"history": player.entries[from:to],
	}
	if player.total != nil {
		serverData["historyTotal"] = player.total
	}
	_, _ = io.WriteString(w, renderPage(serverData))
}

func (s *fakeSite) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func renderPage(serverData map[string]any) string {
	blob, _ := json.Marshal(map[string]any{
		"props": map[string]any{
			"pageProps": map[string]any{"serverData": serverData, "locale": "ru"},
		},
		"page":    "/stats/[id]",
		"buildId": "test",
	})
	return `<!DOCTYPE html><html><head><title>gomafia</title></head><body><div id="__next"></div>` +
		`<script id="__NEXT_DATA__" type="application/json">` + string(blob) + `</script></body></html>`
}

func sampleUser(id int64) map[string]any {
	return map[string]any{
		"id":                strconv.FormatInt(id, 10),
		"login":             fmt.Sprintf("player%d", id),
		"first_name":        "Иван",
		"club_id":           17,
		"elo":               "1234.5",
		"is_paid":           1,
		"is_can_comment":    true,
		"date_registration": "2020-01-02",
	}
}

// sampleEntries n 场赛事，ID 从 100 开始，每场两局
func sampleEntries(n int) []map[string]any {
	entries := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, map[string]any{
			"id":                100 + i,
			"title":             fmt.Sprintf("Турнир %d", i),
			"date_start":        fmt.Sprintf("2023-01-%02d", i+1),
			"date_end":          fmt.Sprintf("2023-01-%02d", i+1),
			"country_translate": "Россия",
			"city_translate":    "Москва",
			"place":             i + 1,
			"gg":                "3.5",
			"elo":               10,
			"games": []map[string]any{
				{"role": "red", "role_translate": "Мирный", "place": 1, "win": "1", "win_translate": "Победа", "elo": 5},
				{"role": "mafia", "role_translate": "Мафия", "place": 4, "win": "0", "win_translate": "Поражение", "elo": 5},
			},
		})
	}
	return entries
}

func newTestAdapter(t *testing.T, site *fakeSite) *Adapter {
	t.Helper()
	srv := httptest.NewServer(site)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	fetcher := NewFetcher(&config.SourceConfig{BaseURL: srv.URL, Timeout: 5}, logger)
	a := NewAdapterWithFetcher(fetcher, logger)
	require.Equal(t, "gomafia", a.GetName())
	return a
}
