// Package maimemo 墨墨背单词开放 API 客户端，用于把查询过的单词同步到云词本
package maimemo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/z-wentao/lingoflow/pkg/logger"
)

// DefaultBaseURL 墨墨开放平台 API 基础地址
const DefaultBaseURL = "https://open.maimemo.com/open/api/v1"

// ErrMissingToken 未提供 token
var ErrMissingToken = errors.New("缺少墨墨 API Token")

// Client 墨墨背单词 API 客户端
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient 创建墨墨 API 客户端
// token 从墨墨 APP 获取：我的 > 更多设置 > 实验功能 > 开放 API
func NewClient(baseURL, token string, l *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.OrDefault(l).With("component", "maimemo"),
	}
}

// Notepad 云词本
type Notepad struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Brief       string   `json:"brief"`
	Type        string   `json:"type"`
	Status      string   `json:"status"`
	Tags        []string `json:"tags"`
	Content     string   `json:"content,omitempty"` // 仅在获取单个词本时返回
	CreatedTime string   `json:"created_time"`
	UpdatedTime string   `json:"updated_time"`
}

type apiResponse struct {
	Success bool            `json:"success"`
	Errors  []any           `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

// ListNotepads 获取所有云词本
func (c *Client) ListNotepads(ctx context.Context) ([]Notepad, error) {
	var data struct {
		Notepads []Notepad `json:"notepads"`
	}
	if err := c.do(ctx, http.MethodGet, "/notepads", nil, &data); err != nil {
		return nil, err
	}
	return data.Notepads, nil
}

// GetNotepad 获取指定云词本（包含内容）
func (c *Client) GetNotepad(ctx context.Context, notepadID string) (*Notepad, error) {
	var data struct {
		Notepad Notepad `json:"notepad"`
	}
	if err := c.do(ctx, http.MethodGet, "/notepads/"+notepadID, nil, &data); err != nil {
		return nil, err
	}
	return &data.Notepad, nil
}

// AppendWords 把单词按日期分组追加到云词本末尾，保留词本的其他字段
func (c *Client) AppendWords(ctx context.Context, notepadID string, words []string) error {
	notepad, err := c.GetNotepad(ctx, notepadID)
	if err != nil {
		return fmt.Errorf("获取云词本详情失败: %w", err)
	}

	content := FormatWordsWithDate(words, time.Now())
	if notepad.Content != "" {
		content = notepad.Content + "\n" + content
	}

	body := map[string]any{
		"notepad": map[string]any{
			"status":  notepad.Status,
			"content": content,
			"title":   notepad.Title,
			"brief":   notepad.Brief,
			"tags":    notepad.Tags,
		},
	}
	if err := c.do(ctx, http.MethodPost, "/notepads/"+notepadID, body, nil); err != nil {
		return err
	}

	c.logger.Info("已同步到云词本", "notepad_id", notepadID, "words", len(words))
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, reqBody, out any) error {
	if c.token == "" {
		return ErrMissingToken
	}

	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("序列化请求失败: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	c.logger.Debug("墨墨 API 响应", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("API 返回错误: %d - %s", resp.StatusCode, string(respBody))
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("API 错误: %v", result.Errors)
	}

	if out != nil && len(result.Data) > 0 {
		if err := json.Unmarshal(result.Data, out); err != nil {
			return fmt.Errorf("解析响应数据失败: %w", err)
		}
	}
	return nil
}

// FormatWordsWithDate 墨墨云词本的格式：#20250109\nword1\nword2\n
func FormatWordsWithDate(words []string, date time.Time) string {
	var b strings.Builder
	b.WriteString("#" + date.Format("20060102") + "\n")
	for _, word := range words {
		b.WriteString(word + "\n")
	}
	return b.String()
}
