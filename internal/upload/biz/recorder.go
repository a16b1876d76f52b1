package biz

import (
	"context"

	apperrors "github.com/jhilmilyatra/content-vault-sub004/internal/pkg/errors"
	"github.com/jhilmilyatra/content-vault-sub004/internal/pkg/logger"
	"go.uber.org/zap"
)

// ChunkRepo 分块账本仓储接口
//
// Record 必须原子执行"写入并重新计数"：重复写入同一 (uploadID, chunkIndex)
// 不产生新记录，返回 inserted=false，计数保持不变。
type ChunkRepo interface {
	Record(ctx context.Context, uploadID string, chunkIndex int) (count int, inserted bool, err error)
	IndicesByUploadID(ctx context.Context, uploadID string) ([]int, error)
	DeleteByUploadID(ctx context.Context, uploadID string) error
}

// Progress 上传进度
type Progress struct {
	UploadedCount   int
	TotalChunks     int
	ProgressPct     float64
	IsComplete      bool
	UploadedIndices []int
}

// MissingIndices 返回 [0, TotalChunks) 中尚未记录的分块索引（升序）
func (p *Progress) MissingIndices() []int {
	seen := make(map[int]bool, len(p.UploadedIndices))
	for _, idx := range p.UploadedIndices {
		seen[idx] = true
	}
	missing := make([]int, 0, p.TotalChunks-len(p.UploadedIndices))
	for i := 0; i < p.TotalChunks; i++ {
		if !seen[i] {
			missing = append(missing, i)
		}
	}
	return missing
}

// RecorderUseCase 分块记录用例
//
// 账本是唯一权威进度来源，不维护独立计数器，完成判定始终来自重新计数。
type RecorderUseCase struct {
	repo   ChunkRepo
	logger *logger.Logger
}

// NewRecorderUseCase 创建分块记录用例
func NewRecorderUseCase(repo ChunkRepo, log *logger.Logger) *RecorderUseCase {
	return &RecorderUseCase{repo: repo, logger: log}
}

// RecordResult 分块记录结果
type RecordResult struct {
	UploadedCount int
	TotalChunks   int
	IsComplete    bool
	Skipped       bool
}

// RecordChunk 记录一个已落盘的分块
//
// chunkIndex 越界在写入前拒绝；重复分块返回当前进度且 Skipped=true。
func (uc *RecorderUseCase) RecordChunk(ctx context.Context, uploadID string, chunkIndex, totalChunks int) (*RecordResult, error) {
	if chunkIndex < 0 || chunkIndex >= totalChunks {
		return nil, apperrors.New(apperrors.ErrUploadChunkOutOfRange).
			WithMeta("chunk_index", chunkIndex).
			WithMeta("total_chunks", totalChunks)
	}

	count, inserted, err := uc.repo.Record(ctx, uploadID, chunkIndex)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServer, "failed to record chunk")
	}

	if !inserted {
		uc.logger.Debug("duplicate chunk ignored",
			zap.String("upload_id", uploadID),
			zap.Int("chunk_index", chunkIndex),
		)
	}

	return &RecordResult{
		UploadedCount: count,
		TotalChunks:   totalChunks,
		IsComplete:    count == totalChunks,
		Skipped:       !inserted,
	}, nil
}

// GetProgress 读取当前进度
func (uc *RecorderUseCase) GetProgress(ctx context.Context, uploadID string, totalChunks int) (*Progress, error) {
	indices, err := uc.repo.IndicesByUploadID(ctx, uploadID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServer, "failed to load chunk records")
	}

	pct := 0.0
	if totalChunks > 0 {
		pct = float64(len(indices)) / float64(totalChunks) * 100
	}

	return &Progress{
		UploadedCount:   len(indices),
		TotalChunks:     totalChunks,
		ProgressPct:     pct,
		IsComplete:      len(indices) == totalChunks,
		UploadedIndices: indices,
	}, nil
}

// PurgeLedger 删除会话的全部分块记录（后台清理用）
func (uc *RecorderUseCase) PurgeLedger(ctx context.Context, uploadID string) error {
	if err := uc.repo.DeleteByUploadID(ctx, uploadID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternalServer, "failed to purge chunk ledger")
	}
	return nil
}
