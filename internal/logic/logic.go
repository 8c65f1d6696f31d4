package logic

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/blues/crowdchain/internal/display"
	"github.com/ethereum/go-ethereum/common"
	"github.com/panjf2000/ants/v2"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrFundingClosed       = errors.New("campaign is not accepting funds")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTokenNotConfigured  = errors.New("no token configured for this network")
)

// Tier 活动档位，字段顺序与合约返回的元组一致
type Tier struct {
	Name    string   `json:"name"`
	Amount  *big.Int `json:"amount"`
	Backers *big.Int `json:"backers"`
}

// CampaignSummary 工厂合约中的活动摘要，字段顺序与合约返回的元组一致
type CampaignSummary struct {
	CampaignAddress common.Address `json:"campaignAddress" abi:"campaginAddress"`
	Owner           common.Address `json:"owner"`
	Name            string         `json:"name"`
	CreationTime    *big.Int       `json:"creationTime"`
}

// CreatedAt 创建时间文本
func (s CampaignSummary) CreatedAt() string {
	if s.CreationTime == nil {
		return ""
	}
	return display.FormatTimestamp(s.CreationTime.Uint64())
}

// ShortAddress 截断后的活动地址
func (s CampaignSummary) ShortAddress() string {
	return display.TruncateAddress(s.CampaignAddress.Hex())
}

// invalid 构造参数错误
func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ParseAddress 校验并解析十六进制地址
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, invalid("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// runConcurrent 在协程池上并发执行读取，返回按字段记录的错误信息
func runConcurrent(pool *ants.Pool, reads map[string]func() error) map[string]string {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs = make(map[string]string)
	)

	for field, read := range reads {
		field, read := field, read
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if err := read(); err != nil {
				mu.Lock()
				errs[field] = err.Error()
				mu.Unlock()
			}
		}
		if pool == nil {
			go task()
			continue
		}
		if err := pool.Submit(task); err != nil {
			// 协程池已关闭，直接执行
			task()
		}
	}

	wg.Wait()
	return errs
}
