package model

import (
	"time"
)

// TransactionModel 本地交易日志，链上状态以回执为准
type TransactionModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Hash            string            `json:"hash" gorm:"uniqueIndex;size:66;not null"`
	ChainId         int64             `json:"chain_id" gorm:"not null"`
	ContractAddress string            `json:"contract_address" gorm:"index;size:42;not null"`
	ContractName    string            `json:"contract_name"`
	Method          string            `json:"method" gorm:"not null"`
	Args            string            `json:"args" gorm:"type:text"`
	Value           string            `json:"value" gorm:"default:'0'"` // wei，十进制字符串
	FromAddress     string            `json:"from_address" gorm:"index;size:42"`
	Status          TransactionStatus `json:"status" gorm:"index;default:'pending'"`
	BlockNumber     uint64            `json:"block_number"`
	GasUsed         uint64            `json:"gas_used"`
	ErrorMessage    string            `json:"error_message" gorm:"type:text"`
}

// TransactionStatus 交易状态
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"    // 已签名，提交中
	TransactionStatusConfirming TransactionStatus = "confirming" // 已提交，等待回执
	TransactionStatusConfirmed  TransactionStatus = "confirmed"  // 已确认
	TransactionStatusError      TransactionStatus = "error"      // 提交失败或执行回滚
)

// Final 是否为终态
func (s TransactionStatus) Final() bool {
	return s == TransactionStatusConfirmed || s == TransactionStatusError
}

// TableName 自定义表名
func (TransactionModel) TableName() string {
	return "transaction"
}
