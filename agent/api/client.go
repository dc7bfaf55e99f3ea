package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cod3vil/niuss-sub001/agent/config"
	"github.com/cod3vil/niuss-sub001/internal/model"
)

var (
	// ErrUnauthorized 密钥被面板拒绝，自动重试无意义
	ErrUnauthorized = errors.New("节点密钥被拒绝")
	// ErrNotFound 节点在面板不存在
	ErrNotFound = errors.New("节点不存在")
)

// Client 面板 HTTP 客户端
type Client struct {
	baseURL    string
	nodeID     int64
	secret     string
	httpClient *http.Client
}

// NewClient 创建面板客户端
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: cfg.Panel.URL,
		nodeID:  cfg.Node.ID,
		secret:  cfg.Node.Secret,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Panel.Timeout) * time.Second,
		},
	}
}

// envelope 面板统一响应包装
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Heartbeat 发送心跳
func (c *Client) Heartbeat(ctx context.Context, metrics model.NodeMetrics) error {
	req := &model.HeartbeatRequest{
		NodeID:  c.nodeID,
		Secret:  c.secret,
		Metrics: metrics,
	}
	return c.post(ctx, "/api/v1/agent/heartbeat", req, nil)
}

// ReportUsage 上报流量增量
func (c *Client) ReportUsage(ctx context.Context, subscriberID, uploadDelta, downloadDelta int64, observedAt time.Time) error {
	req := &model.UsageReport{
		NodeID:        c.nodeID,
		Secret:        c.secret,
		SubscriberID:  subscriberID,
		UploadDelta:   uploadDelta,
		DownloadDelta: downloadDelta,
		ObservedAt:    observedAt,
	}
	return c.post(ctx, "/api/v1/agent/usage", req, nil)
}

// PullConfig 拉取节点配置快照
func (c *Client) PullConfig(ctx context.Context) (*model.AgentConfig, error) {
	url := fmt.Sprintf("%s/api/v1/agent/config/%d", c.baseURL, c.nodeID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("X-Node-Secret", c.secret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}

	var cfg model.AgentConfig
	if err := json.Unmarshal(env.Data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return &cfg, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return err
	}

	if out != nil {
		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return fmt.Errorf("解析响应失败: %w", err)
		}
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("面板返回 %d", code)
	}
}
