package biz

import (
	"context"
	"strings"
	"testing"
	"time"

	apperrors "github.com/jhilmilyatra/content-vault-sub004/internal/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionUseCase(t *testing.T, repo SessionRepo) *SessionUseCase {
	recorder := NewRecorderUseCase(newFakeChunkRepo(), testLogger(t))
	return NewSessionUseCase(repo, recorder, 5<<20, 24*time.Hour, testLogger(t))
}

func TestInitUpload(t *testing.T) {
	uc := newSessionUseCase(t, newFakeSessionRepo())
	ctx := context.Background()

	tests := []struct {
		name    string
		req     *InitUploadRequest
		wantErr bool
	}{
		{
			name: "valid request",
			req: &InitUploadRequest{
				OwnerID:        "owner-1",
				FileName:       "report.pdf",
				TotalSizeBytes: 52428800,
				TotalChunks:    10,
			},
			wantErr: false,
		},
		{
			name: "missing file name",
			req: &InitUploadRequest{
				OwnerID:        "owner-1",
				FileName:       "  ",
				TotalSizeBytes: 1024,
				TotalChunks:    1,
			},
			wantErr: true,
		},
		{
			name: "zero total size",
			req: &InitUploadRequest{
				OwnerID:        "owner-1",
				FileName:       "report.pdf",
				TotalSizeBytes: 0,
				TotalChunks:    1,
			},
			wantErr: true,
		},
		{
			name: "negative chunk count",
			req: &InitUploadRequest{
				OwnerID:        "owner-1",
				FileName:       "report.pdf",
				TotalSizeBytes: 1024,
				TotalChunks:    -1,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := uc.Init(ctx, tt.req)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, apperrors.ErrUploadInvalidParams, apperrors.ExtractCode(err))
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, result.UploadID)
			assert.NotEmpty(t, result.StorageFileName)
			assert.Equal(t, int64(5<<20), result.ChunkSizeBytes)
			assert.Equal(t, tt.req.TotalChunks, result.TotalChunks)
			assert.WithinDuration(t, time.Now().Add(24*time.Hour), result.ExpiresAt, time.Minute)
		})
	}
}

func TestStorageFileNameKeepsExtension(t *testing.T) {
	uc := newSessionUseCase(t, newFakeSessionRepo())

	result, err := uc.Init(context.Background(), &InitUploadRequest{
		OwnerID:        "owner-1",
		FileName:       "Photo Archive.TAR.GZ",
		TotalSizeBytes: 1024,
		TotalChunks:    1,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(result.StorageFileName, ".gz"))
	assert.NotContains(t, result.StorageFileName, " ")
}

func TestStorageFileNameUnique(t *testing.T) {
	uc := newSessionUseCase(t, newFakeSessionRepo())
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		result, err := uc.Init(ctx, &InitUploadRequest{
			OwnerID:        "owner-1",
			FileName:       "data.bin",
			TotalSizeBytes: 1024,
			TotalChunks:    1,
		})
		require.NoError(t, err)
		assert.False(t, seen[result.StorageFileName], "duplicate storage file name: %s", result.StorageFileName)
		seen[result.StorageFileName] = true
	}
}

func TestGetSession(t *testing.T) {
	repo := newFakeSessionRepo()
	uc := newSessionUseCase(t, repo)
	ctx := context.Background()

	result, err := uc.Init(ctx, &InitUploadRequest{
		OwnerID:        "owner-1",
		FileName:       "report.pdf",
		TotalSizeBytes: 1024,
		TotalChunks:    2,
	})
	require.NoError(t, err)

	t.Run("owner can read", func(t *testing.T) {
		session, err := uc.Get(ctx, result.UploadID, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, result.UploadID, session.UploadID)
	})

	t.Run("other user forbidden", func(t *testing.T) {
		_, err := uc.Get(ctx, result.UploadID, "owner-2")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrUploadForbidden, apperrors.ExtractCode(err))
	})

	t.Run("unknown id not found", func(t *testing.T) {
		_, err := uc.Get(ctx, "no-such-upload", "owner-1")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrUploadNotFound, apperrors.ExtractCode(err))
	})

	t.Run("expired session behaves like missing", func(t *testing.T) {
		repo.mu.Lock()
		repo.sessions[result.UploadID].ExpiresAt = time.Now().Add(-time.Minute)
		repo.mu.Unlock()

		_, err := uc.Get(ctx, result.UploadID, "owner-1")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrUploadNotFound, apperrors.ExtractCode(err))
	})
}

func TestCancelUpload(t *testing.T) {
	repo := newFakeSessionRepo()
	uc := newSessionUseCase(t, repo)
	queue := newFakeCleanupQueue()
	ctx := context.Background()

	result, err := uc.Init(ctx, &InitUploadRequest{
		OwnerID:        "owner-1",
		FileName:       "report.pdf",
		TotalSizeBytes: 1024,
		TotalChunks:    2,
	})
	require.NoError(t, err)

	require.NoError(t, uc.Cancel(ctx, result.UploadID, "owner-1", queue))

	// 取消后会话立即不可见
	_, err = uc.Get(ctx, result.UploadID, "owner-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrUploadNotFound, apperrors.ExtractCode(err))

	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, result.UploadID, queue.enqueued[0])
	assert.Equal(t, CleanupReasonCancelled, queue.reasons[0])
}

func TestCancelSurvivesEnqueueFailure(t *testing.T) {
	repo := newFakeSessionRepo()
	uc := newSessionUseCase(t, repo)
	queue := newFakeCleanupQueue()
	queue.enqueueErr = assert.AnError
	ctx := context.Background()

	result, err := uc.Init(ctx, &InitUploadRequest{
		OwnerID:        "owner-1",
		FileName:       "report.pdf",
		TotalSizeBytes: 1024,
		TotalChunks:    2,
	})
	require.NoError(t, err)

	// 入队失败不影响取消本身
	require.NoError(t, uc.Cancel(ctx, result.UploadID, "owner-1", queue))
}
