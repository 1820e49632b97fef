// Package httpremote implements the remote note store over REST.
// Package httpremote 通过 REST 接口访问远端笔记存储
package httpremote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/pkg/retry"
	"github.com/juju/ratelimit"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	headerDeviceID = "X-Device-ID"
	headerUserID   = "X-User-ID"
	maxErrorBody   = 512
)

// Config REST 远端配置
type Config struct {
	BaseURL  string
	Token    string
	DeviceID string
	Timeout  time.Duration
	// RateLimit 每秒请求数，0 表示不限速
	RateLimit float64
	// Burst 令牌桶容量
	Burst int64
}

// StatusError 非 2xx 响应
// 文本形如 "404 Not Found: ..."，供按文本分类的重试策略使用
type StatusError struct {
	Code   int
	Method string
	Path   string
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%d %s", e.Code, http.StatusText(e.Code))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// StatusCode HTTP 状态码
func (e *StatusError) StatusCode() int {
	return e.Code
}

// IsNotFound 是否为 404
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Client 实现 domain.RemoteStore
type Client struct {
	base   *url.URL
	cfg    Config
	http   *http.Client
	bucket *ratelimit.Bucket
	logger *zap.Logger
}

var _ domain.RemoteStore = (*Client)(nil)

// New 创建 REST 远端客户端
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("invalid remote base url %q", cfg.BaseURL)
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{base: base, cfg: cfg, http: httpClient, logger: logger}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int64(cfg.RateLimit) + 1
		}
		c.bucket = ratelimit.NewBucketWithRate(cfg.RateLimit, burst)
	}
	return c, nil
}

// wait 按令牌桶限速，可被 ctx 取消
func (c *Client) wait(ctx context.Context) error {
	if c.bucket == nil {
		return nil
	}
	d := c.bucket.Take(1)
	if d <= 0 {
		return nil
	}
	return retry.TimerSleep(ctx, d)
}

func (c *Client) do(ctx context.Context, method, path, uid string, query url.Values, in, out interface{}) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := sonic.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	if c.cfg.DeviceID != "" {
		req.Header.Set(headerDeviceID, c.cfg.DeviceID)
	}
	if uid != "" {
		req.Header.Set(headerUserID, uid)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(err, "network error: %s %s", method, path)
	}
	defer resp.Body.Close()

	c.logger.Debug("remote request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Code:   resp.StatusCode,
			Method: method,
			Path:   path,
			Body:   strings.TrimSpace(string(snippet)),
		}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "network error: read response")
	}
	if err := sonic.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func sinceQuery(since *time.Time) url.Values {
	if since == nil {
		return nil
	}
	return url.Values{"since": {since.UTC().Format(time.RFC3339Nano)}}
}

func ignoreNotFound(err error) error {
	if IsNotFound(err) {
		return nil
	}
	return err
}

// Ping 探测远端是否可达
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/ping", "", nil, nil, nil)
}

// ListNotes 列出 updated_at >= since 的笔记
func (c *Client) ListNotes(ctx context.Context, uid string, since *time.Time) ([]*domain.RemoteNote, error) {
	var out []*domain.RemoteNote
	if err := c.do(ctx, http.MethodGet, "/notes", uid, sinceQuery(since), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertNote 创建或覆盖笔记
func (c *Client) UpsertNote(ctx context.Context, uid string, note *domain.RemoteNote) (*domain.RemoteNote, error) {
	out := new(domain.RemoteNote)
	if err := c.do(ctx, http.MethodPut, "/notes/"+url.PathEscape(note.ID), uid, nil, note, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteNote 删除笔记，不存在视为成功
func (c *Client) DeleteNote(ctx context.Context, uid, id string) error {
	return ignoreNotFound(c.do(ctx, http.MethodDelete, "/notes/"+url.PathEscape(id), uid, nil, nil, nil))
}

// ListTags 列出 updated_at >= since 的标签
func (c *Client) ListTags(ctx context.Context, uid string, since *time.Time) ([]*domain.RemoteTag, error) {
	var out []*domain.RemoteTag
	if err := c.do(ctx, http.MethodGet, "/tags", uid, sinceQuery(since), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertTag 创建或覆盖标签
func (c *Client) UpsertTag(ctx context.Context, uid string, tag *domain.RemoteTag) (*domain.RemoteTag, error) {
	out := new(domain.RemoteTag)
	if err := c.do(ctx, http.MethodPut, "/tags/"+url.PathEscape(tag.ID), uid, nil, tag, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteTag 删除标签，不存在视为成功
func (c *Client) DeleteTag(ctx context.Context, uid, id string) error {
	return ignoreNotFound(c.do(ctx, http.MethodDelete, "/tags/"+url.PathEscape(id), uid, nil, nil, nil))
}

// ListNoteTags 列出全部关联
func (c *Client) ListNoteTags(ctx context.Context, uid string) ([]*domain.RemoteNoteTag, error) {
	var out []*domain.RemoteNoteTag
	if err := c.do(ctx, http.MethodGet, "/note_tags", uid, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func noteTagPath(noteID, tagID string) string {
	return "/note_tags/" + url.PathEscape(noteID) + "/" + url.PathEscape(tagID)
}

// AddNoteTag 新增关联，已存在视为成功
func (c *Client) AddNoteTag(ctx context.Context, uid, noteID, tagID string) error {
	err := c.do(ctx, http.MethodPut, noteTagPath(noteID, tagID), uid, nil,
		&domain.RemoteNoteTag{NoteID: noteID, TagID: tagID}, nil)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusConflict {
		return nil
	}
	return err
}

// RemoveNoteTag 删除关联，不存在视为成功
func (c *Client) RemoveNoteTag(ctx context.Context, uid, noteID, tagID string) error {
	return ignoreNotFound(c.do(ctx, http.MethodDelete, noteTagPath(noteID, tagID), uid, nil, nil, nil))
}
