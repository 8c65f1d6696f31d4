package logic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/blues/crowdchain/internal/logger"
	"github.com/blues/crowdchain/internal/model"
	"github.com/panjf2000/ants/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CampaignIndexLogic 活动列表缓存，详情页始终直接读链
type CampaignIndexLogic struct {
	db        *gorm.DB
	factory   *FactoryLogic
	campaigns *CampaignLogic
	pool      *ants.Pool
	chainId   int64
}

// NewCampaignIndexLogic 创建活动索引业务逻辑
func NewCampaignIndexLogic(db *gorm.DB, factory *FactoryLogic, campaigns *CampaignLogic, pool *ants.Pool, chainId int64) *CampaignIndexLogic {
	return &CampaignIndexLogic{db: db, factory: factory, campaigns: campaigns, pool: pool, chainId: chainId}
}

// Sync 读取工厂全部活动并更新索引，返回写入的行数
func (l *CampaignIndexLogic) Sync(ctx context.Context) (int, error) {
	all, err := l.factory.AllCampaigns(ctx)
	if err != nil {
		return 0, fmt.Errorf("获取活动列表失败: %w", err)
	}

	snapshots := make([]campaignSnapshot, len(all))
	var wg sync.WaitGroup
	for i, summary := range all {
		i, summary := i, summary
		wg.Add(1)
		task := func() {
			defer wg.Done()
			snapshots[i] = l.campaigns.snapshot(ctx, summary.CampaignAddress)
		}
		if l.pool == nil {
			go task()
			continue
		}
		if err := l.pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()

	now := time.Now()
	written := 0
	for i, summary := range all {
		if err := l.upsert(summary, snapshots[i], now); err != nil {
			logger.Error("Failed to index campaign %s: %v", summary.CampaignAddress.Hex(), err)
			continue
		}
		written++
	}
	return written, nil
}

// upsert 写入一行索引，读取失败的字段保留旧值
func (l *CampaignIndexLogic) upsert(summary CampaignSummary, s campaignSnapshot, now time.Time) error {
	row := model.CampaignIndexModel{
		ChainId:         l.chainId,
		CampaignAddress: summary.CampaignAddress.Hex(),
		OwnerAddress:    summary.Owner.Hex(),
		Name:            summary.Name,
		Deadline:        int64(s.Deadline),
		State:           int(s.Status),
	}
	if summary.CreationTime != nil {
		row.CreationTime = summary.CreationTime.Int64()
	}
	if s.Goal != nil {
		row.Goal = s.Goal.String()
	}
	if s.Balance != nil {
		row.Balance = s.Balance.String()
	}

	columns := []string{"owner_address", "name", "creation_time", "updated_at"}
	for field, column := range map[string]string{
		"goal":     "goal",
		"balance":  "balance",
		"deadline": "deadline",
		"status":   "state",
	} {
		if _, failed := s.Errors[field]; !failed {
			columns = append(columns, column)
		}
	}
	if len(s.Errors) == 0 {
		row.SyncedAt = now
		columns = append(columns, "synced_at")
	}

	return l.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chain_id"}, {Name: "campaign_address"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&row).Error
}

// List 分页读取索引，按创建时间倒序
func (l *CampaignIndexLogic) List(owner string, page, pageSize int) ([]model.CampaignIndexModel, int64, error) {
	var (
		rows  []model.CampaignIndexModel
		total int64
	)

	query := l.db.Model(&model.CampaignIndexModel{}).Where("chain_id = ?", l.chainId)
	if owner != "" {
		addr, err := ParseAddress(owner)
		if err != nil {
			return nil, 0, err
		}
		query = query.Where("owner_address = ?", addr.Hex())
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取活动总数失败: %w", err)
	}

	page, pageSize = NormalizePage(page, pageSize)
	if err := query.Order("creation_time DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("获取活动索引失败: %w", err)
	}
	return rows, total, nil
}
