package biz

import (
	"context"
	"sync"
	"testing"

	apperrors "github.com/jhilmilyatra/content-vault-sub004/internal/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordChunk(t *testing.T) {
	uc := NewRecorderUseCase(newFakeChunkRepo(), testLogger(t))
	ctx := context.Background()

	result, err := uc.RecordChunk(ctx, "u1", 0, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, result.UploadedCount)
	assert.False(t, result.IsComplete)
	assert.False(t, result.Skipped)
}

func TestRecordChunkIdempotent(t *testing.T) {
	uc := NewRecorderUseCase(newFakeChunkRepo(), testLogger(t))
	ctx := context.Background()

	first, err := uc.RecordChunk(ctx, "u1", 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, first.UploadedCount)

	// 同一分块重复提交不增加计数
	second, err := uc.RecordChunk(ctx, "u1", 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, second.UploadedCount)
	assert.True(t, second.Skipped)
	assert.False(t, second.IsComplete)
}

func TestRecordChunkConcurrent(t *testing.T) {
	uc := NewRecorderUseCase(newFakeChunkRepo(), testLogger(t))
	ctx := context.Background()
	const totalChunks = 20

	// 所有索引并发提交，其中一半索引额外提交一次
	var wg sync.WaitGroup
	for i := 0; i < totalChunks; i++ {
		submits := 1
		if i%2 == 0 {
			submits = 2
		}
		for s := 0; s < submits; s++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				_, err := uc.RecordChunk(ctx, "u1", idx, totalChunks)
				assert.NoError(t, err)
			}(i)
		}
	}
	wg.Wait()

	// 重复提交不得重复计数
	progress, err := uc.GetProgress(ctx, "u1", totalChunks)
	require.NoError(t, err)
	assert.Equal(t, totalChunks, progress.UploadedCount)
	assert.True(t, progress.IsComplete)
	assert.Empty(t, progress.MissingIndices())
	assert.Len(t, progress.UploadedIndices, totalChunks)
}

func TestRecordChunkOutOfRange(t *testing.T) {
	uc := NewRecorderUseCase(newFakeChunkRepo(), testLogger(t))
	ctx := context.Background()

	tests := []struct {
		name       string
		chunkIndex int
	}{
		{"negative index", -1},
		{"index equals total", 3},
		{"index beyond total", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.RecordChunk(ctx, "u1", tt.chunkIndex, 3)
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrUploadChunkOutOfRange, apperrors.ExtractCode(err))
		})
	}

	// 越界提交不应写入账本
	progress, err := uc.GetProgress(ctx, "u1", 3)
	require.NoError(t, err)
	assert.Equal(t, 0, progress.UploadedCount)
}

func TestCompletionAnyOrder(t *testing.T) {
	uc := NewRecorderUseCase(newFakeChunkRepo(), testLogger(t))
	ctx := context.Background()

	// 乱序提交，只有最后一块触发完成
	order := []int{4, 0, 3, 1}
	for _, idx := range order {
		result, err := uc.RecordChunk(ctx, "u1", idx, 5)
		require.NoError(t, err)
		assert.False(t, result.IsComplete)
	}

	result, err := uc.RecordChunk(ctx, "u1", 2, 5)
	require.NoError(t, err)
	assert.True(t, result.IsComplete)
	assert.Equal(t, 5, result.UploadedCount)
}

func TestGetProgress(t *testing.T) {
	uc := NewRecorderUseCase(newFakeChunkRepo(), testLogger(t))
	ctx := context.Background()

	for _, idx := range []int{0, 2, 4} {
		_, err := uc.RecordChunk(ctx, "u1", idx, 5)
		require.NoError(t, err)
	}

	progress, err := uc.GetProgress(ctx, "u1", 5)
	require.NoError(t, err)
	assert.Equal(t, 3, progress.UploadedCount)
	assert.Equal(t, 5, progress.TotalChunks)
	assert.InDelta(t, 60.0, progress.ProgressPct, 0.01)
	assert.False(t, progress.IsComplete)
	assert.Equal(t, []int{0, 2, 4}, progress.UploadedIndices)
	assert.Equal(t, []int{1, 3}, progress.MissingIndices())
}

func TestGetProgressEmpty(t *testing.T) {
	uc := NewRecorderUseCase(newFakeChunkRepo(), testLogger(t))

	progress, err := uc.GetProgress(context.Background(), "unknown", 4)
	require.NoError(t, err)
	assert.Equal(t, 0, progress.UploadedCount)
	assert.Equal(t, 0.0, progress.ProgressPct)
	assert.Equal(t, []int{0, 1, 2, 3}, progress.MissingIndices())
}

func TestPurgeLedger(t *testing.T) {
	repo := newFakeChunkRepo()
	uc := NewRecorderUseCase(repo, testLogger(t))
	ctx := context.Background()

	_, err := uc.RecordChunk(ctx, "u1", 0, 2)
	require.NoError(t, err)

	require.NoError(t, uc.PurgeLedger(ctx, "u1"))

	progress, err := uc.GetProgress(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Equal(t, 0, progress.UploadedCount)
}
