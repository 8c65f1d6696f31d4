package model

import (
	"time"
)

// CampaignIndexModel 工厂活动列表的定期快照，仅用于列表展示
type CampaignIndexModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ChainId         int64  `json:"chain_id" gorm:"uniqueIndex:idx_campaign_index_address;not null"`
	CampaignAddress string `json:"campaign_address" gorm:"uniqueIndex:idx_campaign_index_address;size:42;not null"`
	OwnerAddress    string `json:"owner_address" gorm:"index;size:42"`
	Name            string `json:"name"`
	CreationTime    int64  `json:"creation_time"`

	// 链上读数，读取失败时保留上一次的值
	Goal     string `json:"goal"`    // wei
	Balance  string `json:"balance"` // wei
	Deadline int64  `json:"deadline"`
	State    int    `json:"state"`

	SyncedAt time.Time `json:"synced_at"`
}

// TableName 自定义表名
func (CampaignIndexModel) TableName() string {
	return "campaign_index"
}
