package service

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	apperrors "github.com/jhilmilyatra/content-vault-sub004/internal/pkg/errors"
	"github.com/jhilmilyatra/content-vault-sub004/internal/pkg/logger"
	"github.com/jhilmilyatra/content-vault-sub004/internal/pkg/response"
	"github.com/jhilmilyatra/content-vault-sub004/internal/upload/biz"
	"go.uber.org/zap"
)

// UploadService 分块上传 HTTP 服务
type UploadService struct {
	sessions *biz.SessionUseCase
	transfer *biz.TransferUseCase
	finalize *biz.FinalizeUseCase
	cleanup  biz.CleanupQueue
	logger   *logger.Logger
}

// NewUploadService 创建上传服务
func NewUploadService(
	sessions *biz.SessionUseCase,
	transfer *biz.TransferUseCase,
	finalize *biz.FinalizeUseCase,
	cleanup biz.CleanupQueue,
	logger *logger.Logger,
) *UploadService {
	return &UploadService{
		sessions: sessions,
		transfer: transfer,
		finalize: finalize,
		cleanup:  cleanup,
		logger:   logger,
	}
}

// RegisterRoutes 注册路由（调用方需已挂载认证中间件）
func (s *UploadService) RegisterRoutes(r *gin.RouterGroup) {
	uploads := r.Group("/uploads")
	{
		uploads.POST("/init", s.InitUpload)
		uploads.POST("/chunk", s.SubmitChunk)
		uploads.POST("/finalize", s.FinalizeUpload)
		uploads.GET("/:upload_id/status", s.GetStatus)
		uploads.DELETE("/:upload_id", s.CancelUpload)
	}
}

// InitUpload 创建上传会话
func (s *UploadService) InitUpload(c *gin.Context) {
	var req InitUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	userID := c.GetString("user_id")
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	result, err := s.sessions.Init(c.Request.Context(), &biz.InitUploadRequest{
		OwnerID:        userID,
		FileName:       req.FileName,
		MimeType:       req.MimeType,
		TotalSizeBytes: req.TotalSizeBytes,
		TotalChunks:    req.TotalChunks,
		FolderID:       req.FolderID,
	})
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Created(c, &InitUploadResponse{
		UploadID:        result.UploadID,
		StorageFileName: result.StorageFileName,
		ChunkSizeBytes:  result.ChunkSizeBytes,
		TotalChunks:     result.TotalChunks,
		ExpiresAt:       result.ExpiresAt,
	})
}

// SubmitChunk 提交分块（multipart 表单：upload_id、chunk_index、chunk 文件域）
func (s *UploadService) SubmitChunk(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	uploadID := c.PostForm("upload_id")
	if uploadID == "" {
		response.BadRequest(c, "upload_id is required")
		return
	}

	chunkIndexStr := c.PostForm("chunk_index")
	chunkIndex, err := strconv.Atoi(chunkIndexStr)
	if err != nil {
		response.BadRequest(c, "chunk_index must be an integer")
		return
	}

	fileHeader, err := c.FormFile("chunk")
	if err != nil {
		response.BadRequest(c, "chunk file is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.BadRequest(c, "failed to open chunk file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.logger.Error("failed to read chunk body",
			zap.String("upload_id", uploadID),
			zap.Error(err),
		)
		response.ErrorWithCode(c, apperrors.ErrInternalServer)
		return
	}

	result, err := s.transfer.SubmitChunk(c.Request.Context(), uploadID, userID, chunkIndex, data)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, &ChunkResponse{
		UploadID:      uploadID,
		ChunkIndex:    chunkIndex,
		UploadedCount: result.UploadedCount,
		TotalChunks:   result.TotalChunks,
		IsComplete:    result.IsComplete,
		Skipped:       result.Skipped,
	})
}

// GetStatus 查询会话状态
func (s *UploadService) GetStatus(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	uploadID := c.Param("upload_id")
	status, err := s.sessions.Status(c.Request.Context(), uploadID, userID)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, &StatusResponse{
		UploadID:        status.UploadID,
		FileName:        status.FileName,
		StorageFileName: status.StorageFileName,
		TotalSizeBytes:  status.TotalSizeBytes,
		UploadedCount:   status.Progress.UploadedCount,
		TotalChunks:     status.Progress.TotalChunks,
		ProgressPct:     status.Progress.ProgressPct,
		IsComplete:      status.Progress.IsComplete,
		UploadedIndices: status.Progress.UploadedIndices,
		MissingChunks:   status.Progress.MissingIndices(),
		ExpiresAt:       status.ExpiresAt,
	})
}

// FinalizeUpload 收尾上传
func (s *UploadService) FinalizeUpload(c *gin.Context) {
	var req FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	userID := c.GetString("user_id")
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	result, err := s.finalize.Finalize(c.Request.Context(), req.UploadID, userID)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, &FinalizeResponse{
		FileID:      result.FileID,
		FileName:    result.FileName,
		SizeBytes:   result.SizeBytes,
		StoragePath: result.StoragePath,
		CreatedAt:   result.CreatedAt,
	})
}

// CancelUpload 取消上传
func (s *UploadService) CancelUpload(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	uploadID := c.Param("upload_id")
	if err := s.sessions.Cancel(c.Request.Context(), uploadID, userID, s.cleanup); err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, nil)
}
