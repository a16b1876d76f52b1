package biz

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jhilmilyatra/content-vault-sub004/internal/pkg/logger"
	"github.com/jhilmilyatra/content-vault-sub004/internal/pkg/storagenode"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *logger.Logger {
	log, err := logger.New(&logger.Config{
		Level:  "debug",
		Format: "json",
		Output: "console",
	})
	require.NoError(t, err)
	return log
}

// fakeSessionRepo 内存会话仓储
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*UploadSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*UploadSession)}
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *UploadSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *session
	r.sessions[session.UploadID] = &cp
	return nil
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, uploadID string) (*UploadSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[uploadID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) Delete(ctx context.Context, uploadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, uploadID)
	return nil
}

func (r *fakeSessionRepo) ListExpired(ctx context.Context, before time.Time, limit int) ([]*UploadSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*UploadSession
	for _, s := range r.sessions {
		if s.ExpiresAt.Before(before) {
			cp := *s
			out = append(out, &cp)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// fakeChunkRepo 内存分块账本，(uploadID, chunkIndex) 去重
type fakeChunkRepo struct {
	mu        sync.Mutex
	records   map[string]map[int]bool
	recordErr error
}

func newFakeChunkRepo() *fakeChunkRepo {
	return &fakeChunkRepo{records: make(map[string]map[int]bool)}
}

func (r *fakeChunkRepo) Record(ctx context.Context, uploadID string, chunkIndex int) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recordErr != nil {
		return 0, false, r.recordErr
	}
	if r.records[uploadID] == nil {
		r.records[uploadID] = make(map[int]bool)
	}
	inserted := !r.records[uploadID][chunkIndex]
	r.records[uploadID][chunkIndex] = true
	return len(r.records[uploadID]), inserted, nil
}

func (r *fakeChunkRepo) IndicesByUploadID(ctx context.Context, uploadID string) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	indices := make([]int, 0, len(r.records[uploadID]))
	for idx := range r.records[uploadID] {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices, nil
}

func (r *fakeChunkRepo) DeleteByUploadID(ctx context.Context, uploadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, uploadID)
	return nil
}

// fakeFileRepo 内存文件记录仓储，storage_path 与 upload_id 唯一
type fakeFileRepo struct {
	mu      sync.Mutex
	records []*FileRecord
}

var errDuplicateRecord = errors.New("duplicate key value violates unique constraint (SQLSTATE 23505)")

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{}
}

func (r *fakeFileRepo) Create(ctx context.Context, record *FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.StoragePath == record.StoragePath || existing.UploadID == record.UploadID {
			return errDuplicateRecord
		}
	}
	cp := *record
	r.records = append(r.records, &cp)
	return nil
}

func (r *fakeFileRepo) GetByStoragePath(ctx context.Context, storagePath string) (*FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.records {
		if record.StoragePath == storagePath {
			cp := *record
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeFileRepo) GetByUploadID(ctx context.Context, uploadID string) (*FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.records {
		if record.UploadID == uploadID {
			cp := *record
			return &cp, nil
		}
	}
	return nil, nil
}

// appendCall 记录一次 Append 调用
type appendCall struct {
	FileName   string
	ChunkIndex int
	Offset     int64
	IsFirst    bool
	IsLast     bool
	DataLen    int
}

// fakeStorageClient 内存存储节点
type fakeStorageClient struct {
	mu          sync.Mutex
	appendCalls []appendCall
	appendErr   error
	size        int64
	exists      bool
	verifyErr   error
	removed     []string
	removeErr   error
}

func newFakeStorageClient() *fakeStorageClient {
	return &fakeStorageClient{exists: true}
}

func (c *fakeStorageClient) Append(ctx context.Context, req *storagenode.AppendRequest) (*storagenode.AppendResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.appendErr != nil {
		return nil, c.appendErr
	}
	c.appendCalls = append(c.appendCalls, appendCall{
		FileName:   req.FileName,
		ChunkIndex: req.ChunkIndex,
		Offset:     req.Offset,
		IsFirst:    req.IsFirstChunk,
		IsLast:     req.IsLastChunk,
		DataLen:    len(req.Data),
	})
	c.size += int64(len(req.Data))
	return &storagenode.AppendResult{CurrentSize: c.size}, nil
}

func (c *fakeStorageClient) Verify(ctx context.Context, fileName, ownerID string, expectedSize int64) (*storagenode.VerifyResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.verifyErr != nil {
		return nil, c.verifyErr
	}
	return &storagenode.VerifyResult{Exists: c.exists, Size: c.size}, nil
}

func (c *fakeStorageClient) Remove(ctx context.Context, fileName, ownerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.removeErr != nil {
		return c.removeErr
	}
	c.removed = append(c.removed, fileName)
	return nil
}

// fakeCleanupQueue 记录入队的清理任务
type fakeCleanupQueue struct {
	mu         sync.Mutex
	enqueued   []string
	reasons    []string
	enqueueErr error
}

func newFakeCleanupQueue() *fakeCleanupQueue {
	return &fakeCleanupQueue{}
}

func (q *fakeCleanupQueue) EnqueueCleanup(ctx context.Context, uploadID, storageFileName, ownerID, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.enqueued = append(q.enqueued, uploadID)
	q.reasons = append(q.reasons, reason)
	return nil
}
