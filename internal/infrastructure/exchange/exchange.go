package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fundingarb/internal/domain/model"
)

// maxErrBody 错误信息中保留的响应体长度
const maxErrBody = 256

// Client 所有交易所共用的 JSON HTTP 客户端，错误统一为 *model.FetchError
type Client struct {
	http      *http.Client
	userAgent string
}

// NewClient timeout 同时作为单次请求的上限
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		userAgent: "fundingarb/1.0",
	}
}

// NewClientWith 使用外部 http.Client，测试里用 httptest.Server 的客户端
func NewClientWith(hc *http.Client) *Client {
	return &Client{http: hc, userAgent: "fundingarb/1.0"}
}

// Do 发请求并返回响应体，非 2xx 返回带状态码的 FetchError
func (c *Client) Do(ctx context.Context, venue, op, method, endpoint string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, &model.FetchError{Venue: venue, Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &model.FetchError{Venue: venue, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &model.FetchError{Venue: venue, Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.FetchError{Venue: venue, Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		if len(msg) > maxErrBody {
			msg = msg[:maxErrBody]
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &model.FetchError{Venue: venue, Op: op, Status: resp.StatusCode, Err: errors.New(msg)}
	}
	return data, nil
}

// GetJSON GET 并解码
func (c *Client) GetJSON(ctx context.Context, venue, op, endpoint string, out any) error {
	data, err := c.Do(ctx, venue, op, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return Decode(venue, op, data, out)
}

// PostJSON POST JSON 并解码
func (c *Client) PostJSON(ctx context.Context, venue, op, endpoint string, body, out any) error {
	data, err := c.Do(ctx, venue, op, http.MethodPost, endpoint, body)
	if err != nil {
		return err
	}
	return Decode(venue, op, data, out)
}

// Decode 解码失败包装为 FetchError
func Decode(venue, op string, data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return &model.FetchError{Venue: venue, Op: op, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// BuildURL builds a URL with query parameters
func BuildURL(base, path string, query url.Values) (string, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return "", errors.New("base url is empty")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

// JoinURL 拼接 base 和 path，base 已在配置中校验过
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
