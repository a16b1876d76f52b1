package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pkgredis "github.com/jhilmilyatra/content-vault-sub004/internal/pkg/redis"
	"github.com/jhilmilyatra/content-vault-sub004/internal/upload/biz"
	"go.uber.org/zap"
)

const (
	CleanupQueue  = "queue:upload:cleanup"
	CleaningSet   = "set:upload:cleaning"
	maxRetryCount = 3
)

// CleanupTask 上传清理任务
//
// Reason 决定清理范围：收尾成功只清会话与账本，
// 取消或过期还要删除远端的半成品文件。
type CleanupTask struct {
	UploadID        string `json:"upload_id"`
	StorageFileName string `json:"storage_file_name"`
	OwnerID         string `json:"owner_id"`
	Reason          string `json:"reason"`
	RetryCount      int    `json:"retry_count"`
}

// Worker 清理任务Worker
//
// 同时承担过期清扫：周期性捞出过期会话并为每个入队一条清理任务。
type Worker struct {
	redis         *pkgredis.Client
	sessions      biz.SessionRepo
	recorder      *biz.RecorderUseCase
	node          biz.StorageClient
	logger        *zap.Logger
	workerCount   int
	sweepInterval time.Duration
	wg            sync.WaitGroup
	stopCh        chan struct{}
	mu            sync.Mutex
	running       bool
}

// NewWorker 创建清理Worker
func NewWorker(
	redis *pkgredis.Client,
	sessions biz.SessionRepo,
	recorder *biz.RecorderUseCase,
	node biz.StorageClient,
	logger *zap.Logger,
	workerCount int,
	sweepInterval time.Duration,
) *Worker {
	return &Worker{
		redis:         redis,
		sessions:      sessions,
		recorder:      recorder,
		node:          node,
		logger:        logger,
		workerCount:   workerCount,
		sweepInterval: sweepInterval,
		stopCh:        make(chan struct{}),
		running:       false,
	}
}

// Start 启动Worker
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("worker already running")
	}

	w.running = true
	w.logger.Info("starting upload cleanup workers",
		zap.Int("worker_count", w.workerCount),
		zap.Duration("sweep_interval", w.sweepInterval),
	)

	for i := 0; i < w.workerCount; i++ {
		w.wg.Add(1)
		go w.processLoop(ctx, i)
	}

	w.wg.Add(1)
	go w.sweepLoop(ctx)

	return nil
}

// Stop 停止Worker
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	w.logger.Info("stopping upload cleanup workers")
	close(w.stopCh)
	w.wg.Wait()
	w.running = false
	w.logger.Info("all cleanup workers stopped")
}

// EnqueueCleanup 将清理任务加入队列
//
// 实现 biz.CleanupQueue；入队失败由调用方决定是否忽略，
// 过期清扫会兜底捞回漏掉的会话。
func (w *Worker) EnqueueCleanup(ctx context.Context, uploadID, storageFileName, ownerID, reason string) error {
	return w.enqueue(ctx, &CleanupTask{
		UploadID:        uploadID,
		StorageFileName: storageFileName,
		OwnerID:         ownerID,
		Reason:          reason,
		RetryCount:      0,
	})
}

func (w *Worker) enqueue(ctx context.Context, task *CleanupTask) error {
	taskJSON, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal cleanup task: %w", err)
	}

	_, err = w.redis.LPush(ctx, CleanupQueue, string(taskJSON))
	if err != nil {
		return fmt.Errorf("failed to enqueue cleanup task: %w", err)
	}

	w.logger.Info("cleanup task enqueued",
		zap.String("upload_id", task.UploadID),
		zap.String("reason", task.Reason),
	)
	return nil
}

// processLoop 处理循环
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	defer w.wg.Done()

	logger := w.logger.With(zap.Int("worker_id", workerID))
	logger.Info("cleanup worker started")

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			logger.Info("cleanup worker stopping")
			return
		case <-ctx.Done():
			logger.Info("context cancelled, cleanup worker stopping")
			return
		case <-ticker.C:
			taskJSON, err := w.redis.RPop(ctx, CleanupQueue)
			if err != nil || taskJSON == "" {
				continue
			}

			var task CleanupTask
			if err := json.Unmarshal([]byte(taskJSON), &task); err != nil {
				logger.Error("failed to unmarshal cleanup task", zap.Error(err))
				continue
			}

			w.processTask(ctx, &task, logger)
		}
	}
}

// processTask 处理单个清理任务
func (w *Worker) processTask(ctx context.Context, task *CleanupTask, logger *zap.Logger) {
	logger = logger.With(
		zap.String("upload_id", task.UploadID),
		zap.String("reason", task.Reason),
	)
	logger.Info("processing cleanup task")

	_, err := w.redis.SAdd(ctx, CleaningSet, task.UploadID)
	if err != nil {
		logger.Error("failed to mark upload as cleaning", zap.Error(err))
	}

	err = w.cleanup(ctx, task)

	_, _ = w.redis.SRem(ctx, CleaningSet, task.UploadID)

	if err != nil {
		logger.Error("cleanup failed",
			zap.Error(err),
			zap.Int("retry_count", task.RetryCount))

		// 重试逻辑（最多3次）
		if task.RetryCount < maxRetryCount {
			task.RetryCount++
			taskJSON, _ := json.Marshal(task)
			_, _ = w.redis.LPush(ctx, CleanupQueue, string(taskJSON))
			logger.Info("cleanup task re-enqueued for retry", zap.Int("retry_count", task.RetryCount))
		} else {
			logger.Error("cleanup failed after max retries")
		}
		return
	}

	logger.Info("cleanup task completed")
}

// cleanup 执行清理
//
// 每一步都可安全重放：会话/账本删除不存在的行是空操作，
// 远端删除把 404 当成功。
func (w *Worker) cleanup(ctx context.Context, task *CleanupTask) error {
	if task.Reason != biz.CleanupReasonFinalized && task.StorageFileName != "" {
		if err := w.node.Remove(ctx, task.StorageFileName, task.OwnerID); err != nil {
			return fmt.Errorf("remove remote file: %w", err)
		}
	}

	if err := w.sessions.Delete(ctx, task.UploadID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if err := w.recorder.PurgeLedger(ctx, task.UploadID); err != nil {
		return fmt.Errorf("purge chunk ledger: %w", err)
	}

	return nil
}

// sweepLoop 过期会话清扫循环
func (w *Worker) sweepLoop(ctx context.Context) {
	defer w.wg.Done()

	logger := w.logger.With(zap.String("loop", "expiry_sweep"))
	logger.Info("expiry sweep started")

	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			logger.Info("expiry sweep stopping")
			return
		case <-ctx.Done():
			logger.Info("context cancelled, expiry sweep stopping")
			return
		case <-ticker.C:
			w.sweepExpired(ctx, logger)
		}
	}
}

// sweepExpired 捞出过期会话并入队清理
func (w *Worker) sweepExpired(ctx context.Context, logger *zap.Logger) {
	expired, err := w.sessions.ListExpired(ctx, time.Now().UTC(), 100)
	if err != nil {
		logger.Error("failed to list expired sessions", zap.Error(err))
		return
	}

	for _, session := range expired {
		task := &CleanupTask{
			UploadID:        session.UploadID,
			StorageFileName: session.StorageFileName,
			OwnerID:         session.OwnerID,
			Reason:          biz.CleanupReasonExpired,
			RetryCount:      0,
		}
		if err := w.enqueue(ctx, task); err != nil {
			logger.Error("failed to enqueue expired session cleanup",
				zap.String("upload_id", session.UploadID),
				zap.Error(err))
		}
	}

	if len(expired) > 0 {
		logger.Info("expired sessions swept", zap.Int("count", len(expired)))
	}
}

// GetQueueSize 获取队列大小
func (w *Worker) GetQueueSize(ctx context.Context) (int64, error) {
	return w.redis.LLen(ctx, CleanupQueue)
}

// GetCleaningCount 获取清理中的会话数量
func (w *Worker) GetCleaningCount(ctx context.Context) (int64, error) {
	return w.redis.SCard(ctx, CleaningSet)
}
