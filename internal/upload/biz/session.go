package biz

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jhilmilyatra/content-vault-sub004/internal/pkg/errors"
	"github.com/jhilmilyatra/content-vault-sub004/internal/pkg/logger"
	"go.uber.org/zap"
)

// UploadSession 上传会话模型
//
// StorageFileName 在会话创建时生成，之后不可变更；所有分块索引都相对它解释。
type UploadSession struct {
	UploadID        string
	OwnerID         string
	FileName        string
	MimeType        string
	TotalSizeBytes  int64
	TotalChunks     int
	StorageFileName string
	FolderID        string
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// Expired 判断会话是否已过期
func (s *UploadSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// SessionRepo 会话仓储接口
type SessionRepo interface {
	Create(ctx context.Context, session *UploadSession) error
	GetByID(ctx context.Context, uploadID string) (*UploadSession, error)
	Delete(ctx context.Context, uploadID string) error
	ListExpired(ctx context.Context, before time.Time, limit int) ([]*UploadSession, error)
}

// InitUploadRequest 创建会话请求
type InitUploadRequest struct {
	OwnerID        string
	FileName       string
	MimeType       string
	TotalSizeBytes int64
	TotalChunks    int
	FolderID       string
}

// InitUploadResult 创建会话结果
type InitUploadResult struct {
	UploadID        string
	StorageFileName string
	ChunkSizeBytes  int64
	TotalChunks     int
	ExpiresAt       time.Time
}

// SessionUseCase 上传会话用例
type SessionUseCase struct {
	repo           SessionRepo
	recorder       *RecorderUseCase
	chunkSizeBytes int64
	sessionTTL     time.Duration
	logger         *logger.Logger
}

// NewSessionUseCase 创建会话用例
func NewSessionUseCase(repo SessionRepo, recorder *RecorderUseCase, chunkSizeBytes int64, sessionTTL time.Duration, log *logger.Logger) *SessionUseCase {
	return &SessionUseCase{
		repo:           repo,
		recorder:       recorder,
		chunkSizeBytes: chunkSizeBytes,
		sessionTTL:     sessionTTL,
		logger:         log,
	}
}

// Init 创建上传会话
//
// 校验失败在任何状态写入之前返回。StorageFileName 由时间前缀 + 随机后缀 +
// 原始扩展名组成，并发会话不会指向同一远端路径。
func (uc *SessionUseCase) Init(ctx context.Context, req *InitUploadRequest) (*InitUploadResult, error) {
	if req.OwnerID == "" {
		return nil, apperrors.New(apperrors.ErrUploadInvalidParams, "owner_id is required")
	}
	if strings.TrimSpace(req.FileName) == "" {
		return nil, apperrors.New(apperrors.ErrUploadInvalidParams, "file_name is required")
	}
	if req.TotalSizeBytes <= 0 {
		return nil, apperrors.New(apperrors.ErrUploadInvalidParams, "total_size_bytes must be positive")
	}
	if req.TotalChunks <= 0 {
		return nil, apperrors.New(apperrors.ErrUploadInvalidParams, "total_chunks must be positive")
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	now := time.Now().UTC()
	session := &UploadSession{
		UploadID:        uuid.NewString(),
		OwnerID:         req.OwnerID,
		FileName:        req.FileName,
		MimeType:        mimeType,
		TotalSizeBytes:  req.TotalSizeBytes,
		TotalChunks:     req.TotalChunks,
		StorageFileName: generateStorageFileName(req.FileName),
		FolderID:        req.FolderID,
		CreatedAt:       now,
		ExpiresAt:       now.Add(uc.sessionTTL),
	}

	if err := uc.repo.Create(ctx, session); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServer, "failed to create upload session")
	}

	uc.logger.Info("upload session created",
		zap.String("upload_id", session.UploadID),
		zap.String("owner_id", session.OwnerID),
		zap.String("storage_file_name", session.StorageFileName),
		zap.Int("total_chunks", session.TotalChunks),
		zap.Int64("total_size_bytes", session.TotalSizeBytes),
	)

	return &InitUploadResult{
		UploadID:        session.UploadID,
		StorageFileName: session.StorageFileName,
		ChunkSizeBytes:  uc.chunkSizeBytes,
		TotalChunks:     session.TotalChunks,
		ExpiresAt:       session.ExpiresAt,
	}, nil
}

// Get 获取会话并校验归属与有效期
//
// 不存在与已过期统一返回 not found，不泄露会话是否属于其他用户。
func (uc *SessionUseCase) Get(ctx context.Context, uploadID, callerID string) (*UploadSession, error) {
	session, err := uc.repo.GetByID(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Expired(time.Now().UTC()) {
		return nil, apperrors.New(apperrors.ErrUploadNotFound)
	}
	if session.OwnerID != callerID {
		return nil, apperrors.New(apperrors.ErrUploadForbidden)
	}
	return session, nil
}

// UploadStatus 会话状态（含进度）
type UploadStatus struct {
	UploadID        string
	FileName        string
	StorageFileName string
	TotalSizeBytes  int64
	ExpiresAt       time.Time
	Progress        *Progress
}

// Status 查询会话状态及分块进度
func (uc *SessionUseCase) Status(ctx context.Context, uploadID, callerID string) (*UploadStatus, error) {
	session, err := uc.Get(ctx, uploadID, callerID)
	if err != nil {
		return nil, err
	}

	progress, err := uc.recorder.GetProgress(ctx, session.UploadID, session.TotalChunks)
	if err != nil {
		return nil, err
	}

	return &UploadStatus{
		UploadID:        session.UploadID,
		FileName:        session.FileName,
		StorageFileName: session.StorageFileName,
		TotalSizeBytes:  session.TotalSizeBytes,
		ExpiresAt:       session.ExpiresAt,
		Progress:        progress,
	}, nil
}

// Cancel 取消上传会话
//
// 删除会话后所有后续 chunk/status/finalize 调用立即失效；
// 账本清理交由后台任务处理。
func (uc *SessionUseCase) Cancel(ctx context.Context, uploadID, callerID string, cleanup CleanupQueue) error {
	session, err := uc.Get(ctx, uploadID, callerID)
	if err != nil {
		return err
	}

	if err := uc.repo.Delete(ctx, session.UploadID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternalServer, "failed to delete upload session")
	}

	if err := cleanup.EnqueueCleanup(ctx, session.UploadID, session.StorageFileName, session.OwnerID, CleanupReasonCancelled); err != nil {
		// 清理失败只记录，不影响取消结果
		uc.logger.Error("failed to enqueue cleanup after cancel",
			zap.String("upload_id", session.UploadID),
			zap.Error(err),
		)
	}

	uc.logger.Info("upload session cancelled", zap.String("upload_id", session.UploadID))
	return nil
}

// generateStorageFileName 生成全局唯一存储文件名：时间前缀 + 随机后缀 + 原扩展名
func generateStorageFileName(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))

	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand 不可用时退回 uuid
		return fmt.Sprintf("%d_%s%s", time.Now().UnixNano(), uuid.NewString()[:8], ext)
	}

	return fmt.Sprintf("%d_%s%s", time.Now().UnixNano(), hex.EncodeToString(b), ext)
}
