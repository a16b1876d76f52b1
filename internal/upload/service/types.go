package service

import "time"

// InitUploadRequest 创建上传会话请求
type InitUploadRequest struct {
	FileName       string `json:"file_name" binding:"required"`
	MimeType       string `json:"mime_type"`
	TotalSizeBytes int64  `json:"total_size_bytes" binding:"required,gt=0"`
	TotalChunks    int    `json:"total_chunks" binding:"required,gt=0"`
	FolderID       string `json:"folder_id"`
}

// InitUploadResponse 创建上传会话响应
type InitUploadResponse struct {
	UploadID        string    `json:"upload_id"`
	StorageFileName string    `json:"storage_file_name"`
	ChunkSizeBytes  int64     `json:"chunk_size_bytes"`
	TotalChunks     int       `json:"total_chunks"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// ChunkResponse 分块提交响应
//
// skipped=true 表示该分块之前已记录，本次提交被幂等跳过。
type ChunkResponse struct {
	UploadID      string `json:"upload_id"`
	ChunkIndex    int    `json:"chunk_index"`
	UploadedCount int    `json:"uploaded_count"`
	TotalChunks   int    `json:"total_chunks"`
	IsComplete    bool   `json:"is_complete"`
	Skipped       bool   `json:"skipped"`
}

// StatusResponse 会话状态响应
type StatusResponse struct {
	UploadID        string    `json:"upload_id"`
	FileName        string    `json:"file_name"`
	StorageFileName string    `json:"storage_file_name"`
	TotalSizeBytes  int64     `json:"total_size_bytes"`
	UploadedCount   int       `json:"uploaded_count"`
	TotalChunks     int       `json:"total_chunks"`
	ProgressPct     float64   `json:"progress_pct"`
	IsComplete      bool      `json:"is_complete"`
	UploadedIndices []int     `json:"uploaded_indices"`
	MissingChunks   []int     `json:"missing_chunks"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// FinalizeRequest 收尾请求
type FinalizeRequest struct {
	UploadID string `json:"upload_id" binding:"required"`
}

// FinalizeResponse 收尾响应
type FinalizeResponse struct {
	FileID      string    `json:"file_id"`
	FileName    string    `json:"file_name"`
	SizeBytes   int64     `json:"size_bytes"`
	StoragePath string    `json:"storage_path"`
	CreatedAt   time.Time `json:"created_at"`
}
