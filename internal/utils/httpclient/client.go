package httpclient

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"GomafiaSync/internal/config"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/sirupsen/logrus"
)

const defaultTimeout = 30 * time.Second

// 只补缺失的头；User-Agent 由调用方按配置设置
var browserHeaders = cloudflarebp.Options{
	AddMissingHeaders: true,
	Headers: map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "ru-RU,ru;q=0.9,en-US;q=0.5",
	},
}

// NewHTTPClient 抓取用的 HTTP 客户端：代理、cloudflare 绕过、响应解码
func NewHTTPClient(cfg *config.SourceConfig, logger *logrus.Logger) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.MaxIdleConnsPerHost = 4
	base.IdleConnTimeout = 30 * time.Second
	base.ResponseHeaderTimeout = 20 * time.Second

	if cfg.Proxy != "" {
		if u, err := url.Parse(cfg.Proxy); err != nil || u.Host == "" {
			logger.WithField("proxy", cfg.Proxy).Warn("代理地址无效，沿用环境变量代理")
		} else {
			base.Proxy = http.ProxyURL(u)
			logger.WithField("proxy", u.Redacted()).Info("抓取客户端使用代理")
		}
	}

	var rt http.RoundTripper = base
	if cfg.CloudflareBypass {
		// 必须包在 *http.Transport 外层，TLS 指纹才会生效
		rt = cloudflarebp.AddCloudFlareByPass(base, browserHeaders)
		logger.Info("抓取客户端已启用 cloudflare 绕过")
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &decodingTransport{next: rt, logger: logger},
	}
}

// decodingTransport 调用方自行声明 Accept-Encoding 时 net/http 不会解压，这里补上
type decodingTransport struct {
	next   http.RoundTripper
	logger *logrus.Logger
}

func (d *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := d.next.RoundTrip(req)
	if err != nil || resp.Uncompressed || resp.Body == nil || resp.Body == http.NoBody {
		return resp, err
	}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	if encoding == "" || encoding == "identity" {
		return resp, nil
	}

	body, err := decoder(encoding, resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("解码 %s 响应失败: %w", encoding, err)
	}
	if body == nil {
		d.logger.WithField("content_encoding", encoding).Debug("未知压缩格式，原样返回")
		return resp, nil
	}

	resp.Body = body
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

// decoder 不支持的编码返回 nil, nil
func decoder(encoding string, raw io.ReadCloser) (io.ReadCloser, error) {
	switch encoding {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(raw)
		if err != nil {
			return nil, err
		}
		return &decodedBody{Reader: zr, closers: []io.Closer{zr, raw}}, nil
	case "deflate":
		// 规范要求 zlib 封装，但不少服务端直接发裸 deflate 流
		br := bufio.NewReader(raw)
		if hdr, err := br.Peek(2); err == nil && isZlibHeader(hdr) {
			zr, err := zlib.NewReader(br)
			if err != nil {
				return nil, err
			}
			return &decodedBody{Reader: zr, closers: []io.Closer{zr, raw}}, nil
		}
		fr := flate.NewReader(br)
		return &decodedBody{Reader: fr, closers: []io.Closer{fr, raw}}, nil
	}
	return nil, nil
}

func isZlibHeader(b []byte) bool {
	return b[0]&0x0f == 8 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}

type decodedBody struct {
	io.Reader
	closers []io.Closer
}

// Close 依次关闭解码器和原始响应体，返回第一个错误
func (b *decodedBody) Close() error {
	var first error
	for _, c := range b.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
