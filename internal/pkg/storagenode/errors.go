package storagenode

import (
	"errors"
	"fmt"
)

// 预定义错误
var (
	ErrInvalidConfig = errors.New("storagenode: invalid configuration")
	ErrEmptyChunk    = errors.New("storagenode: empty chunk data")
)

// NodeError 存储节点返回的非 2xx 响应
type NodeError struct {
	StatusCode int
	Message    string
}

func (e *NodeError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("storagenode: node returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("storagenode: node returned status %d", e.StatusCode)
}

// NewNodeError 创建节点错误
func NewNodeError(status int, message string) *NodeError {
	return &NodeError{StatusCode: status, Message: message}
}

// IsRetryable 判断错误是否可安全重试
//
// 传输错误与 5xx 均可重试：节点保证同一分块按偏移重复写入是安全的。
// 4xx 表示请求本身有问题，重试无意义。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var nodeErr *NodeError
	if errors.As(err, &nodeErr) {
		return nodeErr.StatusCode >= 500
	}

	// 非 NodeError 视为传输层错误
	return true
}
