package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"GomafiaSync/internal/adapter/gomafia"
	"GomafiaSync/internal/config"
	"GomafiaSync/internal/metrics"
	"GomafiaSync/internal/syncerr"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// pageFetcher 内存里的源站：按页返回 HTML 或错误
type pageFetcher struct {
	mu      sync.Mutex
	pages   map[int64]map[int]string
	errs    map[int]error
	calls   atomic.Int32
	gate    chan struct{} // 非 nil 时每次抓取先等待
	started chan struct{}
}

func newPageFetcher() *pageFetcher {
	return &pageFetcher{pages: map[int64]map[int]string{}, errs: map[int]error{}}
}

func (f *pageFetcher) FetchPage(ctx context.Context, subjectID int64, page int) (string, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[page]; ok {
		return "", err
	}
	p, ok := f.pages[subjectID][page]
	if !ok {
		return "", syncerr.New(syncerr.KindSubjectNotFound, subjectID, page, nil)
	}
	return p, nil
}

// addSubject 按 10 条一页生成 total 场赛事，每场 gamesPer 局；firstID 为第一场的赛事ID
func (f *pageFetcher) addSubject(subjectID int64, total, firstID, gamesPer int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pages := map[int]string{}
	pageCount := gomafia.PageCount(int64(total))
	if pageCount == 0 {
		pageCount = 1
	}
	for p := 1; p <= pageCount; p++ {
		var history []map[string]any
		for i := (p - 1) * gomafia.PageSize; i < p*gomafia.PageSize && i < total; i++ {
			var games []map[string]any
			for g := 0; g < gamesPer; g++ {
				games = append(games, map[string]any{"role": "red", "win": "1", "elo": 1})
			}
			history = append(history, map[string]any{
				"id":             firstID + i,
				"title":          fmt.Sprintf("T%d", firstID+i),
				"date_start":     fmt.Sprintf("2024-%02d-01", i%12+1),
				"city_translate": "Москва",
				"elo":            []int{20, -5, 10}[i%3],
				"games":          games,
			})
		}
		sd := map[string]any{
			"user":    map[string]any{"id": subjectID, "login": fmt.Sprintf("p%d", subjectID)},
			"history": history,
		}
		if total > 0 {
			sd["historyTotal"] = total
		}
		pages[p] = render(sd)
	}
	f.pages[subjectID] = pages
}

func render(serverData map[string]any) string {
	blob, _ := json.Marshal(map[string]any{"props": map[string]any{"pageProps": map[string]any{"serverData": serverData}}})
	return `<html><body><script id="__NEXT_DATA__" type="application/json">` + string(blob) + `</script></body></html>`
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestSyncService(db *gorm.DB, fetcher *pageFetcher, policy config.OnConflict) *SyncService {
	logger := quietLogger()
	cfg := &config.Config{Sync: config.SyncConfig{OnConflict: policy}}
	source := gomafia.NewAdapterWithFetcher(fetcher, logger)
	m := metrics.NewManager(metrics.WithRegistry(prometheus.NewRegistry()))
	return NewSyncServiceWithSource(db, source, logger, cfg, m)
}
