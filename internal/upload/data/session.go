package data

import (
	"context"
	"time"

	"github.com/jhilmilyatra/content-vault-sub004/internal/pkg/database"
	"github.com/jhilmilyatra/content-vault-sub004/internal/upload/biz"
)

// UploadSessionPO 上传会话数据库模型
type UploadSessionPO struct {
	UploadID        string    `gorm:"type:uuid;primarykey"`
	OwnerID         string    `gorm:"type:uuid;not null;index"`
	FileName        string    `gorm:"size:512;not null"`
	MimeType        string    `gorm:"size:128;not null"`
	TotalSizeBytes  int64     `gorm:"not null"`
	TotalChunks     int       `gorm:"not null"`
	StorageFileName string    `gorm:"size:255;not null"`
	FolderID        string    `gorm:"size:64"`
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	ExpiresAt       time.Time `gorm:"not null;index"`
}

func (UploadSessionPO) TableName() string {
	return "upload_sessions"
}

// SessionRepo 上传会话仓储实现
type SessionRepo struct {
	db *database.DB
}

// NewSessionRepo 创建上传会话仓储
func NewSessionRepo(db *database.DB) biz.SessionRepo {
	return &SessionRepo{db: db}
}

// Create 创建会话
func (r *SessionRepo) Create(ctx context.Context, session *biz.UploadSession) error {
	po := &UploadSessionPO{
		UploadID:        session.UploadID,
		OwnerID:         session.OwnerID,
		FileName:        session.FileName,
		MimeType:        session.MimeType,
		TotalSizeBytes:  session.TotalSizeBytes,
		TotalChunks:     session.TotalChunks,
		StorageFileName: session.StorageFileName,
		FolderID:        session.FolderID,
		CreatedAt:       session.CreatedAt,
		ExpiresAt:       session.ExpiresAt,
	}
	return r.db.WithContext(ctx).GetDB().Create(po).Error
}

// GetByID 根据 uploadID 获取会话，不存在返回 (nil, nil)
//
// 过期判定留给业务层，查询不过滤 expires_at。
func (r *SessionRepo) GetByID(ctx context.Context, uploadID string) (*biz.UploadSession, error) {
	var po UploadSessionPO
	err := r.db.WithContext(ctx).GetDB().
		Where("upload_id = ?", uploadID).
		First(&po).Error

	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}

	return r.toSession(&po), nil
}

// Delete 删除会话
func (r *SessionRepo) Delete(ctx context.Context, uploadID string) error {
	return r.db.WithContext(ctx).GetDB().
		Where("upload_id = ?", uploadID).
		Delete(&UploadSessionPO{}).Error
}

// ListExpired 列出已过期的会话（供后台清扫任务批量处理）
func (r *SessionRepo) ListExpired(ctx context.Context, before time.Time, limit int) ([]*biz.UploadSession, error) {
	var pos []UploadSessionPO
	err := r.db.WithContext(ctx).GetDB().
		Where("expires_at < ?", before).
		Order("expires_at ASC").
		Limit(limit).
		Find(&pos).Error

	if err != nil {
		return nil, err
	}

	sessions := make([]*biz.UploadSession, len(pos))
	for i, po := range pos {
		sessions[i] = r.toSession(&po)
	}
	return sessions, nil
}

func (r *SessionRepo) toSession(po *UploadSessionPO) *biz.UploadSession {
	return &biz.UploadSession{
		UploadID:        po.UploadID,
		OwnerID:         po.OwnerID,
		FileName:        po.FileName,
		MimeType:        po.MimeType,
		TotalSizeBytes:  po.TotalSizeBytes,
		TotalChunks:     po.TotalChunks,
		StorageFileName: po.StorageFileName,
		FolderID:        po.FolderID,
		CreatedAt:       po.CreatedAt,
		ExpiresAt:       po.ExpiresAt,
	}
}
