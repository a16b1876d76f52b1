package storagenode

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jhilmilyatra/content-vault-sub004/internal/pkg/logger"
	"go.uber.org/zap"
)

// Client 存储节点 HTTP 客户端
//
// 节点契约：append 必须支持按偏移的幂等写入（同一 chunk_index 重复提交
// 落在相同字节区间），verify 返回文件是否存在及当前字节数。
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *logger.Logger
}

// New 创建存储节点客户端
func New(cfg *Config, log *logger.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: log,
	}, nil
}

// Append 将一个分块的字节追加到远端文件
//
// 任何传输错误或非 2xx 响应都视为整体失败：调用方不得记账，
// 必须整块重试。成功时返回远端文件当前大小。
func (c *Client) Append(ctx context.Context, req *AppendRequest) (*AppendResult, error) {
	if len(req.Data) == 0 {
		return nil, ErrEmptyChunk
	}

	payload := &appendPayload{
		FileName:     req.FileName,
		OwnerID:      req.OwnerID,
		ChunkIndex:   req.ChunkIndex,
		TotalChunks:  req.TotalChunks,
		Offset:       req.Offset,
		IsFirstChunk: req.IsFirstChunk,
		IsLastChunk:  req.IsLastChunk,
		Data:         base64.StdEncoding.EncodeToString(req.Data),
	}

	var resp appendResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, "/v1/files/append", payload, &resp); err != nil {
		return nil, err
	}

	c.logger.Debug("chunk appended",
		zap.String("file_name", req.FileName),
		zap.Int("chunk_index", req.ChunkIndex),
		zap.Int64("current_size", resp.CurrentSize),
	)

	return &AppendResult{CurrentSize: resp.CurrentSize}, nil
}

// Verify 校验远端文件是否存在及其当前字节数
func (c *Client) Verify(ctx context.Context, fileName, ownerID string, expectedSize int64) (*VerifyResult, error) {
	payload := &verifyPayload{
		FileName:     fileName,
		OwnerID:      ownerID,
		ExpectedSize: expectedSize,
	}

	var resp verifyResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, "/v1/files/verify", payload, &resp); err != nil {
		return nil, err
	}

	return &VerifyResult{Exists: resp.Exists, Size: resp.Size}, nil
}

// Remove 删除远端文件（用于取消或过期后的清理）
//
// 文件不存在视为删除成功，清理任务可以安全重放。
func (c *Client) Remove(ctx context.Context, fileName, ownerID string) error {
	payload := &removePayload{
		FileName: fileName,
		OwnerID:  ownerID,
	}

	err := c.doRequestWithRetry(ctx, http.MethodPost, "/v1/files/remove", payload, nil)
	if err != nil {
		var nodeErr *NodeError
		if errors.As(err, &nodeErr) && nodeErr.StatusCode == http.StatusNotFound {
			return nil
		}
		return err
	}

	c.logger.Debug("remote file removed",
		zap.String("file_name", fileName),
		zap.String("owner_id", ownerID),
	)
	return nil
}

// doRequestWithRetry 带退避重试的请求执行
func (c *Client) doRequestWithRetry(ctx context.Context, method, path string, body, result interface{}) error {
	var lastErr error
	backoff := c.config.RetryBackoff

	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying storage node request",
				zap.String("path", path),
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr),
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		lastErr = c.doRequest(ctx, method, path, body, result)
		if lastErr == nil {
			return nil
		}

		if !IsRetryable(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("storagenode: request failed after %d attempts: %w", c.config.MaxRetries, lastErr)
}

// doRequest 执行单次 HTTP 请求
func (c *Client) doRequest(ctx context.Context, method, path string, body, result interface{}) error {
	url := c.config.BaseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("storage node request failed",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err),
		)
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// 尽量取出节点返回的错误消息
		var nodeMsg struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respData, &nodeMsg)

		c.logger.Error("storage node returned error status",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.String("message", nodeMsg.Message),
		)
		return NewNodeError(resp.StatusCode, nodeMsg.Message)
	}

	if result != nil && len(respData) > 0 {
		if err := json.Unmarshal(respData, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
