package biz

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/jhilmilyatra/content-vault-sub004/internal/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type finalizeEnv struct {
	sessions    *SessionUseCase
	sessionRepo *fakeSessionRepo
	transfer    *TransferUseCase
	finalize    *FinalizeUseCase
	node        *fakeStorageClient
	files       *fakeFileRepo
	queue       *fakeCleanupQueue
	session     *InitUploadResult
}

func setupFinalize(t *testing.T) *finalizeEnv {
	sessionRepo := newFakeSessionRepo()
	node := newFakeStorageClient()
	files := newFakeFileRepo()
	queue := newFakeCleanupQueue()

	recorder := NewRecorderUseCase(newFakeChunkRepo(), testLogger(t))
	sessions := NewSessionUseCase(sessionRepo, recorder, testChunkSize, 24*time.Hour, testLogger(t))
	transfer := NewTransferUseCase(sessions, recorder, node, testChunkSize, testLogger(t))
	finalize := NewFinalizeUseCase(sessions, recorder, node, files, queue, testLogger(t))

	result, err := sessions.Init(context.Background(), &InitUploadRequest{
		OwnerID:        "owner-1",
		FileName:       "archive.zip",
		MimeType:       "application/zip",
		TotalSizeBytes: 52428800,
		TotalChunks:    10,
	})
	require.NoError(t, err)

	return &finalizeEnv{
		sessions:    sessions,
		sessionRepo: sessionRepo,
		transfer:    transfer,
		finalize:    finalize,
		node:        node,
		files:       files,
		queue:       queue,
		session:     result,
	}
}

func (env *finalizeEnv) uploadAll(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, err := env.transfer.SubmitChunk(ctx, env.session.UploadID, "owner-1", i, []byte("chunk"))
		require.NoError(t, err)
	}
	// 节点侧实测大小与声明一致
	env.node.mu.Lock()
	env.node.size = 52428800
	env.node.mu.Unlock()
}

func TestFinalize(t *testing.T) {
	env := setupFinalize(t)
	env.uploadAll(t)
	ctx := context.Background()

	result, err := env.finalize.Finalize(ctx, env.session.UploadID, "owner-1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.FileID)
	assert.Equal(t, "archive.zip", result.FileName)
	assert.Equal(t, int64(52428800), result.SizeBytes)
	assert.Equal(t, "owner-1/"+env.session.StorageFileName, result.StoragePath)

	require.Len(t, env.queue.enqueued, 1)
	assert.Equal(t, CleanupReasonFinalized, env.queue.reasons[0])
}

func TestFinalizeIncomplete(t *testing.T) {
	env := setupFinalize(t)
	ctx := context.Background()

	// 缺少分块 3 和 7
	for _, i := range []int{0, 1, 2, 4, 5, 6, 8, 9} {
		_, err := env.transfer.SubmitChunk(ctx, env.session.UploadID, "owner-1", i, []byte("chunk"))
		require.NoError(t, err)
	}

	_, err := env.finalize.Finalize(ctx, env.session.UploadID, "owner-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrUploadIncomplete, apperrors.ExtractCode(err))

	meta := apperrors.GetMeta(err)
	require.NotNil(t, meta)
	assert.Equal(t, []int{3, 7}, meta["missing_chunks"])
	assert.Equal(t, 8, meta["uploaded_count"])

	// 未完成不落正式记录
	record, getErr := env.files.GetByUploadID(ctx, env.session.UploadID)
	require.NoError(t, getErr)
	assert.Nil(t, record)
}

func TestFinalizeFileMissingOnNode(t *testing.T) {
	env := setupFinalize(t)
	env.uploadAll(t)
	env.node.exists = false

	_, err := env.finalize.Finalize(context.Background(), env.session.UploadID, "owner-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrStorageFileMissing, apperrors.ExtractCode(err))
}

func TestFinalizeSizeMismatch(t *testing.T) {
	env := setupFinalize(t)
	env.uploadAll(t)
	env.node.size = 52428799

	_, err := env.finalize.Finalize(context.Background(), env.session.UploadID, "owner-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrStorageSizeMismatch, apperrors.ExtractCode(err))

	meta := apperrors.GetMeta(err)
	require.NotNil(t, meta)
	assert.Equal(t, int64(52428800), meta["expected_size"])
	assert.Equal(t, int64(52428799), meta["actual_size"])
}

func TestFinalizeVerifyUnavailable(t *testing.T) {
	env := setupFinalize(t)
	env.uploadAll(t)
	env.node.verifyErr = assert.AnError

	_, err := env.finalize.Finalize(context.Background(), env.session.UploadID, "owner-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrStorageUnavailable, apperrors.ExtractCode(err))
}

func TestFinalizeIdempotent(t *testing.T) {
	env := setupFinalize(t)
	env.uploadAll(t)
	ctx := context.Background()

	first, err := env.finalize.Finalize(ctx, env.session.UploadID, "owner-1")
	require.NoError(t, err)

	second, err := env.finalize.Finalize(ctx, env.session.UploadID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, first.FileID, second.FileID)
	assert.Equal(t, first.StoragePath, second.StoragePath)
}

func TestFinalizeIdempotentAfterSessionCleanup(t *testing.T) {
	env := setupFinalize(t)
	env.uploadAll(t)
	ctx := context.Background()

	first, err := env.finalize.Finalize(ctx, env.session.UploadID, "owner-1")
	require.NoError(t, err)

	// 模拟后台清理已删除会话
	require.NoError(t, env.sessionRepo.Delete(ctx, env.session.UploadID))

	second, err := env.finalize.Finalize(ctx, env.session.UploadID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, first.FileID, second.FileID)

	// 他人仍然拿不到已有记录
	_, err = env.finalize.Finalize(ctx, env.session.UploadID, "intruder")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrUploadForbidden, apperrors.ExtractCode(err))
}

func TestFinalizeSurvivesEnqueueFailure(t *testing.T) {
	env := setupFinalize(t)
	env.uploadAll(t)
	env.queue.enqueueErr = assert.AnError

	result, err := env.finalize.Finalize(context.Background(), env.session.UploadID, "owner-1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.FileID)
}
