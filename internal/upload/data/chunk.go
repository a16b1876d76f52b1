package data

import (
	"context"
	"time"

	"github.com/jhilmilyatra/content-vault-sub004/internal/pkg/database"
	"github.com/jhilmilyatra/content-vault-sub004/internal/upload/biz"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChunkRecordPO 分块账本数据库模型
//
// (upload_id, chunk_index) 唯一索引是幂等记账的根基：
// 重复写入同一分块被约束拒绝而不是产生第二行。
type ChunkRecordPO struct {
	ID         int64     `gorm:"primarykey;autoIncrement"`
	UploadID   string    `gorm:"type:uuid;not null;uniqueIndex:idx_upload_chunk,priority:1"`
	ChunkIndex int       `gorm:"not null;uniqueIndex:idx_upload_chunk,priority:2"`
	ReceivedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ChunkRecordPO) TableName() string {
	return "upload_chunk_records"
}

// ChunkRepo 分块账本仓储实现
type ChunkRepo struct {
	db *database.DB
	tm *database.TransactionManager
}

// NewChunkRepo 创建分块账本仓储
func NewChunkRepo(db *database.DB, tm *database.TransactionManager) biz.ChunkRepo {
	return &ChunkRepo{db: db, tm: tm}
}

// Record 原子记录分块并重新计数
//
// INSERT ... ON CONFLICT DO NOTHING 与 COUNT 在同一事务内执行，
// 返回的 count 始终是账本真实行数，并发提交不会多计或漏计。
func (r *ChunkRepo) Record(ctx context.Context, uploadID string, chunkIndex int) (int, bool, error) {
	var count int64
	var inserted bool

	err := r.tm.ReadCommitted(ctx, func(ctx context.Context, tx *gorm.DB) error {
		po := &ChunkRecordPO{
			UploadID:   uploadID,
			ChunkIndex: chunkIndex,
			ReceivedAt: time.Now().UTC(),
		}

		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(po)
		if result.Error != nil {
			return result.Error
		}
		inserted = result.RowsAffected > 0

		return tx.Model(&ChunkRecordPO{}).
			Where("upload_id = ?", uploadID).
			Count(&count).Error
	})
	if err != nil {
		return 0, false, err
	}

	return int(count), inserted, nil
}

// IndicesByUploadID 返回已记录的分块索引（升序）
func (r *ChunkRepo) IndicesByUploadID(ctx context.Context, uploadID string) ([]int, error) {
	var indices []int
	err := r.db.WithContext(ctx).GetDB().
		Model(&ChunkRecordPO{}).
		Where("upload_id = ?", uploadID).
		Order("chunk_index ASC").
		Pluck("chunk_index", &indices).Error

	if err != nil {
		return nil, err
	}
	return indices, nil
}

// DeleteByUploadID 删除会话的全部分块记录
func (r *ChunkRepo) DeleteByUploadID(ctx context.Context, uploadID string) error {
	return r.db.WithContext(ctx).GetDB().
		Where("upload_id = ?", uploadID).
		Delete(&ChunkRecordPO{}).Error
}
