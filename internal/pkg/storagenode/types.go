package storagenode

// AppendRequest 分块追加请求
//
// Offset 为该分块在目标文件中的起始字节位置（chunkIndex * chunkSize）。
// 节点必须按 Offset 定位写入，使同一分块的重试落在相同位置而不是追加到文件尾部。
type AppendRequest struct {
	FileName     string // 存储文件名（会话创建时生成，不可变）
	OwnerID      string // 文件归属用户
	ChunkIndex   int
	TotalChunks  int
	Offset       int64
	IsFirstChunk bool
	IsLastChunk  bool
	Data         []byte // 分块原始字节
}

// AppendResult 追加结果
type AppendResult struct {
	CurrentSize int64 // 追加完成后远端文件当前字节数
}

// VerifyResult 校验结果
type VerifyResult struct {
	Exists bool
	Size   int64
}

// appendPayload 追加请求报文（分块字节以 base64 编码传输，约 33% 体积开销）
type appendPayload struct {
	FileName     string `json:"file_name"`
	OwnerID      string `json:"owner_id"`
	ChunkIndex   int    `json:"chunk_index"`
	TotalChunks  int    `json:"total_chunks"`
	Offset       int64  `json:"offset"`
	IsFirstChunk bool   `json:"is_first_chunk"`
	IsLastChunk  bool   `json:"is_last_chunk"`
	Data         string `json:"data"`
}

// appendResponse 追加响应报文
type appendResponse struct {
	CurrentSize int64  `json:"current_size"`
	Message     string `json:"message,omitempty"`
}

// verifyPayload 校验请求报文
type verifyPayload struct {
	FileName     string `json:"file_name"`
	OwnerID      string `json:"owner_id"`
	ExpectedSize int64  `json:"expected_size"`
}

// removePayload 删除请求报文
type removePayload struct {
	FileName string `json:"file_name"`
	OwnerID  string `json:"owner_id"`
}

// verifyResponse 校验响应报文
type verifyResponse struct {
	Exists  bool   `json:"exists"`
	Size    int64  `json:"size"`
	Message string `json:"message,omitempty"`
}
