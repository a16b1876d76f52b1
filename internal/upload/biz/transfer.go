package biz

import (
	"context"

	apperrors "github.com/jhilmilyatra/content-vault-sub004/internal/pkg/errors"
	"github.com/jhilmilyatra/content-vault-sub004/internal/pkg/logger"
	"github.com/jhilmilyatra/content-vault-sub004/internal/pkg/storagenode"
	"go.uber.org/zap"
)

// StorageClient 存储节点客户端接口
type StorageClient interface {
	Append(ctx context.Context, req *storagenode.AppendRequest) (*storagenode.AppendResult, error)
	Verify(ctx context.Context, fileName, ownerID string, expectedSize int64) (*storagenode.VerifyResult, error)
	Remove(ctx context.Context, fileName, ownerID string) error
}

// TransferUseCase 分块传输用例
//
// 先向存储节点追加字节，成功后才写入账本；账本中出现的索引
// 一定已落入远端文件。
type TransferUseCase struct {
	sessions       *SessionUseCase
	recorder       *RecorderUseCase
	node           StorageClient
	chunkSizeBytes int64
	logger         *logger.Logger
}

// NewTransferUseCase 创建分块传输用例
func NewTransferUseCase(sessions *SessionUseCase, recorder *RecorderUseCase, node StorageClient, chunkSizeBytes int64, log *logger.Logger) *TransferUseCase {
	return &TransferUseCase{
		sessions:       sessions,
		recorder:       recorder,
		node:           node,
		chunkSizeBytes: chunkSizeBytes,
		logger:         log,
	}
}

// SubmitChunk 提交一个分块
//
// 追加偏移由 chunkIndex * chunkSize 显式计算并随请求下发，
// 网络重试不会导致同一分块被写入两次。
func (uc *TransferUseCase) SubmitChunk(ctx context.Context, uploadID, callerID string, chunkIndex int, data []byte) (*RecordResult, error) {
	session, err := uc.sessions.Get(ctx, uploadID, callerID)
	if err != nil {
		return nil, err
	}

	if chunkIndex < 0 || chunkIndex >= session.TotalChunks {
		return nil, apperrors.New(apperrors.ErrUploadChunkOutOfRange).
			WithMeta("chunk_index", chunkIndex).
			WithMeta("total_chunks", session.TotalChunks)
	}
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.ErrUploadInvalidParams, "chunk data is empty")
	}

	result, err := uc.node.Append(ctx, &storagenode.AppendRequest{
		FileName:     session.StorageFileName,
		OwnerID:      session.OwnerID,
		ChunkIndex:   chunkIndex,
		TotalChunks:  session.TotalChunks,
		Offset:       int64(chunkIndex) * uc.chunkSizeBytes,
		IsFirstChunk: chunkIndex == 0,
		IsLastChunk:  chunkIndex == session.TotalChunks-1,
		Data:         data,
	})
	if err != nil {
		uc.logger.Error("storage node append failed",
			zap.String("upload_id", uploadID),
			zap.Int("chunk_index", chunkIndex),
			zap.Error(err),
		)
		if storagenode.IsRetryable(err) {
			return nil, apperrors.Wrap(err, apperrors.ErrStorageUnavailable)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrStorageAppendFailed)
	}

	record, err := uc.recorder.RecordChunk(ctx, uploadID, chunkIndex, session.TotalChunks)
	if err != nil {
		return nil, err
	}

	uc.logger.Debug("chunk accepted",
		zap.String("upload_id", uploadID),
		zap.Int("chunk_index", chunkIndex),
		zap.Int("uploaded_count", record.UploadedCount),
		zap.Int64("node_size", result.CurrentSize),
	)

	return record, nil
}
