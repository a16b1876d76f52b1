package biz

import (
	"context"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jhilmilyatra/content-vault-sub004/internal/pkg/errors"
	"github.com/jhilmilyatra/content-vault-sub004/internal/pkg/logger"
	"go.uber.org/zap"
)

// 清理任务触发原因
const (
	CleanupReasonFinalized = "finalized"
	CleanupReasonCancelled = "cancelled"
	CleanupReasonExpired   = "expired"
)

// FileRecord 已完成文件的正式记录
type FileRecord struct {
	FileID      string
	UploadID    string
	OwnerID     string
	FileName    string
	MimeType    string
	SizeBytes   int64
	StoragePath string
	FolderID    string
	CreatedAt   time.Time
}

// FileRepo 文件记录仓储接口
type FileRepo interface {
	Create(ctx context.Context, record *FileRecord) error
	GetByStoragePath(ctx context.Context, storagePath string) (*FileRecord, error)
	GetByUploadID(ctx context.Context, uploadID string) (*FileRecord, error)
}

// CleanupQueue 清理任务队列接口
type CleanupQueue interface {
	EnqueueCleanup(ctx context.Context, uploadID, storageFileName, ownerID, reason string) error
}

// FinalizeUseCase 收尾用例
//
// 完成判定只依赖账本重新计数与存储节点实测大小，任何一项不达标都不落正式记录。
type FinalizeUseCase struct {
	sessions *SessionUseCase
	recorder *RecorderUseCase
	node     StorageClient
	files    FileRepo
	cleanup  CleanupQueue
	logger   *logger.Logger
}

// NewFinalizeUseCase 创建收尾用例
func NewFinalizeUseCase(sessions *SessionUseCase, recorder *RecorderUseCase, node StorageClient, files FileRepo, cleanup CleanupQueue, log *logger.Logger) *FinalizeUseCase {
	return &FinalizeUseCase{
		sessions: sessions,
		recorder: recorder,
		node:     node,
		files:    files,
		cleanup:  cleanup,
		logger:   log,
	}
}

// FinalizeResult 收尾结果
type FinalizeResult struct {
	FileID      string
	FileName    string
	SizeBytes   int64
	StoragePath string
	CreatedAt   time.Time
}

// Finalize 收尾上传会话
//
// 流程：归属/有效期校验 → 账本完整性 → 节点实测校验 → 落正式记录 → 异步清理。
// 会话已被上一次成功收尾删除、但正式记录存在时，重复调用返回已有记录。
func (uc *FinalizeUseCase) Finalize(ctx context.Context, uploadID, callerID string) (*FinalizeResult, error) {
	// 幂等快路径：正式记录已存在（会话可能已被清理）直接返回
	if existing, err := uc.files.GetByUploadID(ctx, uploadID); err == nil && existing != nil {
		if existing.OwnerID != callerID {
			return nil, apperrors.New(apperrors.ErrUploadForbidden)
		}
		return finalizeResultFrom(existing), nil
	}

	session, err := uc.sessions.Get(ctx, uploadID, callerID)
	if err != nil {
		return nil, err
	}

	progress, err := uc.recorder.GetProgress(ctx, session.UploadID, session.TotalChunks)
	if err != nil {
		return nil, err
	}
	if !progress.IsComplete {
		return nil, apperrors.New(apperrors.ErrUploadIncomplete).
			WithMeta("missing_chunks", progress.MissingIndices()).
			WithMeta("uploaded_count", progress.UploadedCount).
			WithMeta("total_chunks", progress.TotalChunks)
	}

	verify, err := uc.node.Verify(ctx, session.StorageFileName, session.OwnerID, session.TotalSizeBytes)
	if err != nil {
		uc.logger.Error("storage node verify failed",
			zap.String("upload_id", session.UploadID),
			zap.Error(err),
		)
		return nil, apperrors.Wrap(err, apperrors.ErrStorageUnavailable)
	}
	if !verify.Exists {
		return nil, apperrors.New(apperrors.ErrStorageFileMissing).
			WithMeta("storage_file_name", session.StorageFileName)
	}
	if verify.Size != session.TotalSizeBytes {
		return nil, apperrors.New(apperrors.ErrStorageSizeMismatch).
			WithMeta("expected_size", session.TotalSizeBytes).
			WithMeta("actual_size", verify.Size)
	}

	storagePath := session.OwnerID + "/" + session.StorageFileName
	record := &FileRecord{
		FileID:      uuid.NewString(),
		UploadID:    session.UploadID,
		OwnerID:     session.OwnerID,
		FileName:    session.FileName,
		MimeType:    session.MimeType,
		SizeBytes:   verify.Size,
		StoragePath: storagePath,
		FolderID:    session.FolderID,
		CreatedAt:   time.Now().UTC(),
	}

	if err := uc.files.Create(ctx, record); err != nil {
		// 并发收尾撞上唯一约束：以先落库的记录为准
		existing, getErr := uc.files.GetByStoragePath(ctx, storagePath)
		if getErr == nil && existing != nil {
			record = existing
		} else {
			return nil, apperrors.Wrap(err, apperrors.ErrInternalServer, "failed to persist file record")
		}
	}

	if err := uc.cleanup.EnqueueCleanup(ctx, session.UploadID, session.StorageFileName, session.OwnerID, CleanupReasonFinalized); err != nil {
		// 清理失败只记录，收尾结果不受影响
		uc.logger.Error("failed to enqueue cleanup after finalize",
			zap.String("upload_id", session.UploadID),
			zap.Error(err),
		)
	}

	uc.logger.Info("upload finalized",
		zap.String("upload_id", session.UploadID),
		zap.String("file_id", record.FileID),
		zap.Int64("size_bytes", record.SizeBytes),
	)

	return finalizeResultFrom(record), nil
}

func finalizeResultFrom(record *FileRecord) *FinalizeResult {
	return &FinalizeResult{
		FileID:      record.FileID,
		FileName:    record.FileName,
		SizeBytes:   record.SizeBytes,
		StoragePath: record.StoragePath,
		CreatedAt:   record.CreatedAt,
	}
}
