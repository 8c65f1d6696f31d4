package model

import (
	"time"
)

// TxEventModel 已确认交易回执中解析出的事件
type TxEventModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TxHash          string `json:"tx_hash" gorm:"uniqueIndex:idx_tx_event_position;size:66;not null"`
	LogIndex        int64  `json:"log_index" gorm:"uniqueIndex:idx_tx_event_position"`
	ContractAddress string `json:"contract_address" gorm:"not null"`
	ContractName    string `json:"contract_name"`
	EventName       string `json:"event_name" gorm:"not null"`
	BlockNum        int64  `json:"block_num" gorm:"not null"`
	Data            string `json:"data" gorm:"type:text"`
}

// TableName 自定义表名
func (TxEventModel) TableName() string {
	return "tx_event"
}
