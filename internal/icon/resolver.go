// Package icon 解析站点图标：优先读缓存，其次请求 favicon 服务
package icon

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/net/idna"
)

// DefaultServiceURL 按域名查询 favicon 的远程服务，%s 为转义后的站点地址
const DefaultServiceURL = "https://www.google.com/s2/favicons?domain_url=%s"

// NetworkError 图标请求失败（网络错误、非 2xx、内容不是图片）
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("获取图标失败 (%s): %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Cache 图标缓存（由 service.IconCacheService 实现）
type Cache interface {
	Lookup(ctx context.Context, host string) ([]byte, error)
	Remember(ctx context.Context, host string, data []byte, contentType string) error
}

// Options 解析器参数
type Options struct {
	ServiceURL string
	Timeout    time.Duration
	MaxBytes   int64
}

// Resolver 图标解析器
type Resolver struct {
	client   *http.Client
	opts     Options
	cache    Cache
	fallback []byte
	logger   *slog.Logger
}

// NewResolver 创建解析器；fallback 为解析失败时使用的默认图标
func NewResolver(client *http.Client, opts Options, cache Cache, fallback []byte, logger *slog.Logger) *Resolver {
	if client == nil {
		client = &http.Client{}
	}
	if opts.ServiceURL == "" {
		opts.ServiceURL = DefaultServiceURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 1 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		client:   client,
		opts:     opts,
		cache:    cache,
		fallback: fallback,
		logger:   logger,
	}
}

// Fallback 默认图标
func (r *Resolver) Fallback() []byte {
	return r.fallback
}

// HostKey 返回站点地址的缓存键：小写 punycode 主机名（不含端口）
func HostKey(siteURL string) (string, error) {
	u, err := url.Parse(siteURL)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("缺少主机名: %s", siteURL)
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("主机名无效 %q: %w", host, err)
	}
	return strings.ToLower(ascii), nil
}

// Resolve 获取站点图标。非 http/https 地址（本地文档）直接返回默认图标。
func (r *Resolver) Resolve(ctx context.Context, siteURL string) ([]byte, error) {
	if !isRemote(siteURL) {
		return r.fallback, nil
	}

	host, err := HostKey(siteURL)
	if err != nil {
		return nil, &NetworkError{URL: siteURL, Err: err}
	}

	if r.cache != nil {
		if data, err := r.cache.Lookup(ctx, host); err != nil {
			r.logger.Debug("图标缓存读取失败", "host", host, "error", err)
		} else if len(data) > 0 {
			return data, nil
		}
	}

	data, contentType, err := r.fetch(ctx, siteURL)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Remember(ctx, host, data, contentType); err != nil {
			r.logger.Warn("⚠️ 图标缓存写入失败", "host", host, "error", err)
		}
	}
	return data, nil
}

func (r *Resolver) fetch(ctx context.Context, siteURL string) ([]byte, string, error) {
	endpoint := fmt.Sprintf(r.opts.ServiceURL, url.QueryEscape(siteURL))

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", &NetworkError{URL: endpoint, Err: err}
	}
	// 显式声明编码后 Transport 不再自动解压，需要自行处理
	req.Header.Set("Accept-Encoding", "br, gzip")
	req.Header.Set("Accept", "image/*")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", &NetworkError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, "", &NetworkError{URL: endpoint, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, "", &NetworkError{URL: endpoint, Err: err}
	}

	data, err := io.ReadAll(io.LimitReader(body, r.opts.MaxBytes+1))
	if err != nil {
		return nil, "", &NetworkError{URL: endpoint, Err: err}
	}
	if int64(len(data)) > r.opts.MaxBytes {
		return nil, "", &NetworkError{URL: endpoint, Err: fmt.Errorf("图标超过 %d 字节", r.opts.MaxBytes)}
	}
	if len(data) == 0 {
		return nil, "", &NetworkError{URL: endpoint, Err: fmt.Errorf("响应为空")}
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, "", &NetworkError{URL: endpoint, Err: fmt.Errorf("响应不是图片: %s", mtype.String())}
	}
	return data, mtype.String(), nil
}

func decodeBody(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip 解码失败: %w", err)
		}
		return zr, nil
	case "", "identity":
		return resp.Body, nil
	default:
		return nil, fmt.Errorf("不支持的编码: %s", resp.Header.Get("Content-Encoding"))
	}
}

func isRemote(siteURL string) bool {
	u, err := url.Parse(siteURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.Host != ""
	}
	return false
}
