package gomafia

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"GomafiaSync/internal/config"
	"GomafiaSync/internal/interfaces"
	"GomafiaSync/internal/syncerr"
	"GomafiaSync/internal/utils/httpclient"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// 源站在玩家不存在时仍可能返回 200，只能靠页面文本判断
var notFoundMarkers = []string{
	"Игрок не найден",
	"No player found",
}

// Fetcher 基于 resty 的页面抓取器
type Fetcher struct {
	http   *resty.Client
	logger *logrus.Logger
}

// NewFetcher 创建抓取器：传输层（代理、cloudflare、解码）来自 httpclient，按配置限速
func NewFetcher(cfg *config.SourceConfig, logger *logrus.Logger) interfaces.PageFetcher {
	client := resty.NewWithClient(httpclient.NewHTTPClient(cfg, logger))
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	client.SetHeader("User-Agent", userAgent)

	if cfg.RateLimit > 0 {
		// burst >= 1，保证不会丢请求，只会排队
		burst := int(math.Max(1, math.Ceil(cfg.RateLimit)))
		limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	return &Fetcher{http: client, logger: logger}
}

// FetchPage GET /stats/{id}?tab=history&page={n}
func (f *Fetcher) FetchPage(ctx context.Context, subjectID int64, page int) (string, error) {
	res, err := f.http.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(subjectID, 10)).
		SetQueryParams(map[string]string{
			"tab":  "history",
			"page": strconv.Itoa(page),
		}).
		Get("/stats/{id}")
	if err != nil {
		return "", syncerr.New(syncerr.KindTransport, subjectID, page, err)
	}

	body := res.String()
	if res.StatusCode() == http.StatusNotFound || isNotFoundPage(body) {
		return "", syncerr.New(syncerr.KindSubjectNotFound, subjectID, page, nil)
	}
	if !res.IsSuccess() {
		return "", syncerr.New(syncerr.KindTransport, subjectID, page, fmt.Errorf("HTTP %d", res.StatusCode()))
	}

	f.logger.WithFields(logrus.Fields{
		"subject_id": subjectID,
		"page":       page,
		"bytes":      len(body),
	}).Debug("gomafia 页面抓取成功")
	return body, nil
}

func isNotFoundPage(body string) bool {
	for _, marker := range notFoundMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}
