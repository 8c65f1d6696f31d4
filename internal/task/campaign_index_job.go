package task

import (
	"context"
	"time"

	"github.com/blues/crowdchain/internal/logger"
	"github.com/blues/crowdchain/internal/logic"
	"github.com/blues/crowdchain/internal/monitoring"
	"github.com/go-co-op/gocron/v2"
)

// CampaignIndexJob 定期刷新活动列表缓存
type CampaignIndexJob struct {
	index    *logic.CampaignIndexLogic
	interval time.Duration
}

// NewCampaignIndexJob 创建活动索引任务
func NewCampaignIndexJob(index *logic.CampaignIndexLogic, interval time.Duration) *CampaignIndexJob {
	return &CampaignIndexJob{index: index, interval: interval}
}

// GetName 获取任务名称
func (j *CampaignIndexJob) GetName() string {
	return "campaign_index_sync"
}

// GetSchedule 获取调度配置
func (j *CampaignIndexJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *CampaignIndexJob) Execute() {
	logger.Debug("Starting campaign index task")

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout(j.interval))
	defer cancel()

	written, err := j.index.Sync(ctx)
	if err != nil {
		logger.Error("Campaign index sync failed: %v", err)
		monitoring.Error(err)
		return
	}
	logger.Info("Campaign index task completed. Indexed %d campaigns", written)
}
