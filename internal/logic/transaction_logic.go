package logic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/blues/crowdchain/internal/chain"
	"github.com/blues/crowdchain/internal/logger"
	"github.com/blues/crowdchain/internal/metrics"
	"github.com/blues/crowdchain/internal/model"
	"github.com/blues/crowdchain/internal/monitoring"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransactionLogic 交易日志：记录每次写入并跟踪回执
type TransactionLogic struct {
	db      *gorm.DB
	manager *chain.Manager
	adapter *chain.Adapter
}

// TransactionFilter 交易列表过滤条件
type TransactionFilter struct {
	From     string
	Contract string
	Status   string
	Page     int
	PageSize int
}

// NewTransactionLogic 创建交易业务逻辑
func NewTransactionLogic(db *gorm.DB, manager *chain.Manager, adapter *chain.Adapter) *TransactionLogic {
	return &TransactionLogic{db: db, manager: manager, adapter: adapter}
}

// Submit 签名、记录并发送交易
// 签名前失败不会留下记录；发送失败时记录状态为 error
func (l *TransactionLogic) Submit(ctx context.Context, contract *chain.Contract, method string, value *big.Int, args ...interface{}) (*model.TransactionModel, error) {
	h, err := l.adapter.Sign(ctx, contract, method, value, args...)
	if err != nil {
		return nil, err
	}

	record, err := l.record(h)
	if err != nil {
		return nil, err
	}

	if err := l.adapter.Send(ctx, h); err != nil {
		l.fail(record, err.Error())
		monitoring.Error(err)
		return record, err
	}

	if err := l.setStatus(record, model.TransactionStatusConfirming, nil); err != nil {
		logger.Error("Failed to mark tx %s confirming: %v", record.Hash, err)
	}
	return record, nil
}

// record 写入 pending 记录
func (l *TransactionLogic) record(h *chain.TxHandle) (*model.TransactionModel, error) {
	args, err := json.Marshal(h.Args)
	if err != nil {
		args = []byte("[]")
	}

	record := &model.TransactionModel{
		Hash:            h.Hash.Hex(),
		ChainId:         l.adapter.ChainID().Int64(),
		ContractAddress: h.To.Hex(),
		ContractName:    h.Contract,
		Method:          h.Method,
		Args:            string(args),
		Value:           h.Value.String(),
		FromAddress:     h.From.Hex(),
		Status:          model.TransactionStatusPending,
	}
	if err := l.db.Create(record).Error; err != nil {
		return nil, fmt.Errorf("记录交易失败: %w", err)
	}
	metrics.TransactionStatus(string(model.TransactionStatusPending))
	return record, nil
}

func (l *TransactionLogic) setStatus(record *model.TransactionModel, status model.TransactionStatus, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": status}
	for k, v := range extra {
		updates[k] = v
	}
	if err := l.db.Model(record).Updates(updates).Error; err != nil {
		return err
	}
	record.Status = status
	metrics.TransactionStatus(string(status))
	return nil
}

func (l *TransactionLogic) fail(record *model.TransactionModel, message string) {
	if err := l.setStatus(record, model.TransactionStatusError, map[string]interface{}{"error_message": message}); err != nil {
		logger.Error("Failed to mark tx %s failed: %v", record.Hash, err)
		return
	}
	record.ErrorMessage = message
}

// Get 按哈希获取交易
func (l *TransactionLogic) Get(hash string) (*model.TransactionModel, error) {
	var record model.TransactionModel
	if err := l.db.Where("hash = ?", common.HexToHash(hash).Hex()).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("获取交易失败: %w", err)
	}
	return &record, nil
}

// List 获取交易列表
func (l *TransactionLogic) List(filter TransactionFilter) ([]model.TransactionModel, int64, error) {
	var (
		records []model.TransactionModel
		total   int64
	)

	query := l.db.Model(&model.TransactionModel{})
	if filter.From != "" {
		query = query.Where("from_address = ?", common.HexToAddress(filter.From).Hex())
	}
	if filter.Contract != "" {
		query = query.Where("contract_address = ?", common.HexToAddress(filter.Contract).Hex())
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取交易总数失败: %w", err)
	}

	page, pageSize := NormalizePage(filter.Page, filter.PageSize)
	if err := query.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("获取交易列表失败: %w", err)
	}
	return records, total, nil
}

// Wait 阻塞等待交易回执并更新记录
func (l *TransactionLogic) Wait(ctx context.Context, hash string) (*model.TransactionModel, error) {
	record, err := l.Get(hash)
	if err != nil {
		return nil, err
	}
	if record.Status.Final() {
		return record, nil
	}

	receipt, err := l.adapter.AwaitReceipt(ctx, common.HexToHash(record.Hash))
	if receipt == nil {
		return record, err
	}
	if err := l.applyReceipt(record, receipt); err != nil {
		return record, err
	}
	return record, nil
}

// SyncPending 轮询未确认交易的回执，返回完成的数量
func (l *TransactionLogic) SyncPending(ctx context.Context) (int, error) {
	var records []model.TransactionModel
	if err := l.db.Where("chain_id = ? AND status IN ?", l.adapter.ChainID().Int64(),
		[]model.TransactionStatus{model.TransactionStatusPending, model.TransactionStatusConfirming}).
		Order("id ASC").Find(&records).Error; err != nil {
		return 0, fmt.Errorf("获取待确认交易失败: %w", err)
	}

	done := 0
	for i := range records {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		record := &records[i]

		receipt, err := l.adapter.Receipt(ctx, common.HexToHash(record.Hash))
		if err != nil {
			logger.Warn("Failed to get receipt for %s: %v", record.Hash, err)
			continue
		}
		if receipt == nil {
			continue
		}
		if err := l.applyReceipt(record, receipt); err != nil {
			logger.Error("Failed to apply receipt for %s: %v", record.Hash, err)
			continue
		}
		done++
	}
	return done, nil
}

// applyReceipt 根据回执更新状态并保存解析出的事件
func (l *TransactionLogic) applyReceipt(record *model.TransactionModel, receipt *types.Receipt) error {
	status := model.TransactionStatusConfirmed
	updates := map[string]interface{}{
		"status":       status,
		"block_number": receipt.BlockNumber.Uint64(),
		"gas_used":     receipt.GasUsed,
	}
	if receipt.Status == types.ReceiptStatusFailed {
		status = model.TransactionStatusError
		updates["status"] = status
		updates["error_message"] = chain.ErrTransactionReverted.Error()
	}

	events := l.decodeLogs(receipt.Logs)

	err := l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(record).Updates(updates).Error; err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&events).Error
	})
	if err != nil {
		return fmt.Errorf("更新交易回执失败: %w", err)
	}

	record.Status = status
	record.BlockNumber = receipt.BlockNumber.Uint64()
	record.GasUsed = receipt.GasUsed
	metrics.TransactionStatus(string(status))

	if status == model.TransactionStatusError {
		record.ErrorMessage = chain.ErrTransactionReverted.Error()
		logger.Warn("Transaction %s (%s.%s) reverted", record.Hash, record.ContractName, record.Method)
		monitoring.Message(fmt.Sprintf("transaction %s %s.%s reverted", record.Hash, record.ContractName, record.Method))
	} else {
		logger.Info("Transaction %s confirmed in block %d", record.Hash, record.BlockNumber)
	}
	return nil
}

func (l *TransactionLogic) decodeLogs(logs []*types.Log) []model.TxEventModel {
	events := make([]model.TxEventModel, 0, len(logs))
	for _, log := range logs {
		contract := l.manager.FindContract(log.Address)
		if contract == nil {
			continue
		}
		parsed := contract.ParseLog(*log)
		data, err := json.Marshal(parsed)
		if err != nil {
			logger.Warn("Failed to encode event %v: %v", parsed["eventName"], err)
			continue
		}
		events = append(events, model.TxEventModel{
			TxHash:          log.TxHash.Hex(),
			LogIndex:        int64(log.Index),
			ContractAddress: log.Address.Hex(),
			ContractName:    contract.GetName(),
			EventName:       fmt.Sprint(parsed["eventName"]),
			BlockNum:        int64(log.BlockNumber),
			Data:            string(data),
		})
	}
	return events
}

// Events 获取交易回执中的事件
func (l *TransactionLogic) Events(hash string) ([]model.TxEventModel, error) {
	var events []model.TxEventModel
	if err := l.db.Where("tx_hash = ?", common.HexToHash(hash).Hex()).Order("log_index ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("获取交易事件失败: %w", err)
	}
	return events, nil
}

// NormalizePage 规范分页参数，page 至少为 1，page_size 超出 1..100 时取 20
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
