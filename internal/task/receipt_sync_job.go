package task

import (
	"context"
	"time"

	"github.com/blues/crowdchain/internal/logger"
	"github.com/blues/crowdchain/internal/logic"
	"github.com/blues/crowdchain/internal/monitoring"
	"github.com/go-co-op/gocron/v2"
)

// ReceiptSyncJob 轮询未确认交易的回执
type ReceiptSyncJob struct {
	txs      *logic.TransactionLogic
	interval time.Duration
}

// NewReceiptSyncJob 创建回执同步任务
func NewReceiptSyncJob(txs *logic.TransactionLogic, interval time.Duration) *ReceiptSyncJob {
	return &ReceiptSyncJob{txs: txs, interval: interval}
}

// GetName 获取任务名称
func (j *ReceiptSyncJob) GetName() string {
	return "receipt_sync"
}

// GetSchedule 获取调度配置
func (j *ReceiptSyncJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *ReceiptSyncJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout(j.interval))
	defer cancel()

	done, err := j.txs.SyncPending(ctx)
	if err != nil {
		logger.Error("Receipt sync failed: %v", err)
		monitoring.Error(err)
		return
	}
	if done > 0 {
		logger.Info("Receipt sync completed. Finalized %d transactions", done)
	}
}

// jobTimeout 单次执行的超时时间
func jobTimeout(interval time.Duration) time.Duration {
	if interval < 30*time.Second {
		return 30 * time.Second
	}
	return interval
}
