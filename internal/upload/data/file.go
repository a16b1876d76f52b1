package data

import (
	"context"
	"time"

	"github.com/jhilmilyatra/content-vault-sub004/internal/pkg/database"
	"github.com/jhilmilyatra/content-vault-sub004/internal/upload/biz"
)

// FileRecordPO 正式文件记录数据库模型
//
// storage_path 唯一约束保证并发收尾只有一条记录落库。
type FileRecordPO struct {
	FileID      string    `gorm:"type:uuid;primarykey"`
	UploadID    string    `gorm:"type:uuid;not null;uniqueIndex"`
	OwnerID     string    `gorm:"type:uuid;not null;index"`
	FileName    string    `gorm:"size:512;not null"`
	MimeType    string    `gorm:"size:128;not null"`
	SizeBytes   int64     `gorm:"not null"`
	StoragePath string    `gorm:"size:512;not null;uniqueIndex"`
	FolderID    string    `gorm:"size:64"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (FileRecordPO) TableName() string {
	return "file_records"
}

// FileRepo 正式文件记录仓储实现
type FileRepo struct {
	db *database.DB
}

// NewFileRepo 创建文件记录仓储
func NewFileRepo(db *database.DB) biz.FileRepo {
	return &FileRepo{db: db}
}

// Create 创建文件记录，撞唯一约束时由调用方回查已有记录
func (r *FileRepo) Create(ctx context.Context, record *biz.FileRecord) error {
	po := &FileRecordPO{
		FileID:      record.FileID,
		UploadID:    record.UploadID,
		OwnerID:     record.OwnerID,
		FileName:    record.FileName,
		MimeType:    record.MimeType,
		SizeBytes:   record.SizeBytes,
		StoragePath: record.StoragePath,
		FolderID:    record.FolderID,
		CreatedAt:   record.CreatedAt,
	}
	return r.db.WithContext(ctx).GetDB().Create(po).Error
}

// GetByStoragePath 根据存储路径获取文件记录，不存在返回 (nil, nil)
func (r *FileRepo) GetByStoragePath(ctx context.Context, storagePath string) (*biz.FileRecord, error) {
	var po FileRecordPO
	err := r.db.WithContext(ctx).GetDB().
		Where("storage_path = ?", storagePath).
		First(&po).Error

	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}

	return r.toRecord(&po), nil
}

// GetByUploadID 根据上传会话获取文件记录，不存在返回 (nil, nil)
func (r *FileRepo) GetByUploadID(ctx context.Context, uploadID string) (*biz.FileRecord, error) {
	var po FileRecordPO
	err := r.db.WithContext(ctx).GetDB().
		Where("upload_id = ?", uploadID).
		First(&po).Error

	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}

	return r.toRecord(&po), nil
}

func (r *FileRepo) toRecord(po *FileRecordPO) *biz.FileRecord {
	return &biz.FileRecord{
		FileID:      po.FileID,
		UploadID:    po.UploadID,
		OwnerID:     po.OwnerID,
		FileName:    po.FileName,
		MimeType:    po.MimeType,
		SizeBytes:   po.SizeBytes,
		StoragePath: po.StoragePath,
		FolderID:    po.FolderID,
		CreatedAt:   po.CreatedAt,
	}
}
