package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	httpclient "github.com/bionicotaku/lingo-services-takeaways/internal/infrastructure/http_client"

	"github.com/bionicotaku/lingo-utils/observability"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// ErrClientDisabled 表示上游地址未配置。
var ErrClientDisabled = errors.New("clients: upstream not configured")

// YouTubeConfig 描述播放页与字幕接口的访问参数。
type YouTubeConfig struct {
	Endpoint       string
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
}

// YouTubeClient 抓取播放页 HTML 与字幕轨 XML，不做重试。
type YouTubeClient struct {
	conn *khttp.Client
	log  *log.Helper
}

// NewYouTubeClient 构造 YouTubeClient。
func NewYouTubeClient(cfg YouTubeConfig, metricsCfg *observability.MetricsConfig, logger log.Logger) (*YouTubeClient, func(), error) {
	headers := map[string]string{}
	if cfg.AcceptLanguage != "" {
		headers["Accept-Language"] = cfg.AcceptLanguage
	}
	conn, cleanup, err := httpclient.NewHTTPClient(context.Background(), httpclient.Config{
		Name:      "youtube",
		Endpoint:  cfg.Endpoint,
		Timeout:   cfg.Timeout,
		UserAgent: cfg.UserAgent,
		Headers:   headers,
	}, metricsCfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return &YouTubeClient{conn: conn, log: log.NewHelper(logger)}, cleanup, nil
}

// FetchWatchPage 返回视频播放页的原始 HTML。
func (c *YouTubeClient) FetchWatchPage(ctx context.Context, videoID string) (string, error) {
	if c == nil || c.conn == nil {
		return "", ErrClientDisabled
	}
	var page string
	if err := c.conn.Invoke(ctx, http.MethodGet, "/watch?v="+url.QueryEscape(videoID), nil, &page); err != nil {
		return "", fmt.Errorf("fetch watch page %s: %w", videoID, err)
	}
	return page, nil
}

// FetchCaptionTrack 返回字幕轨原始 XML。baseURL 为播放页给出的绝对地址，仅保留路径与查询参数。
func (c *YouTubeClient) FetchCaptionTrack(ctx context.Context, baseURL string) (string, error) {
	if c == nil || c.conn == nil {
		return "", ErrClientDisabled
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse caption url: %w", err)
	}
	var body string
	if err := c.conn.Invoke(ctx, http.MethodGet, u.RequestURI(), nil, &body); err != nil {
		return "", fmt.Errorf("fetch caption track: %w", err)
	}
	return body, nil
}
