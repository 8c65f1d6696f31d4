package chain

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/blues/crowdchain/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// 内置合约名称
const (
	ContractFactory  = "factory"
	ContractCampaign = "campaign"
	ContractERC20    = "erc20"
)

//go:embed abi/*.json
var embeddedABIs embed.FS

// Contract 合约：名称 + 地址 + ABI
type Contract struct {
	address common.Address
	abi     abi.ABI
	name    string
}

// NewContract 创建合约实例
func NewContract(name string, address common.Address, parsedABI abi.ABI) *Contract {
	return &Contract{address: address, abi: parsedABI, name: name}
}

// LoadABI 从文件加载ABI，兼容纯ABI数组与完整编译输出
func LoadABI(path string) (abi.ABI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to load ABI from %s: %w", path, err)
	}
	return ParseABI(data)
}

// ParseABI 解析ABI数据
func ParseABI(data []byte) (abi.ABI, error) {
	var compiledOutput struct {
		ABI json.RawMessage `json:"abi"`
	}

	// 首先尝试解析为完整编译输出
	if err := json.Unmarshal(data, &compiledOutput); err == nil && compiledOutput.ABI != nil {
		parsed, err := abi.JSON(bytes.NewReader(compiledOutput.ABI))
		if err != nil {
			return abi.ABI{}, fmt.Errorf("failed to parse ABI from compiled output: %w", err)
		}
		return parsed, nil
	}

	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return parsed, nil
}

// EmbeddedABI 获取内置ABI
func EmbeddedABI(name string) (abi.ABI, error) {
	data, err := embeddedABIs.ReadFile("abi/" + name + ".json")
	if err != nil {
		return abi.ABI{}, fmt.Errorf("no embedded ABI for contract %s: %w", name, err)
	}
	return ParseABI(data)
}

// MustEmbeddedABI 内置ABI解析失败时 panic
func MustEmbeddedABI(name string) abi.ABI {
	parsed, err := EmbeddedABI(name)
	if err != nil {
		panic(err)
	}
	return parsed
}

// GetAddress 获取合约地址
func (c *Contract) GetAddress() common.Address {
	return c.address
}

// GetABI 获取合约ABI
func (c *Contract) GetABI() abi.ABI {
	return c.abi
}

// GetName 获取合约名称
func (c *Contract) GetName() string {
	return c.name
}

// At 绑定到另一个地址，用于按地址寻址的活动合约
func (c *Contract) At(address common.Address) *Contract {
	return &Contract{address: address, abi: c.abi, name: c.name}
}

// ParseLog 解析事件日志
func (c *Contract) ParseLog(log types.Log) map[string]interface{} {
	result := map[string]interface{}{
		"contract":    c.name,
		"txHash":      log.TxHash.Hex(),
		"blockNumber": log.BlockNumber,
		"logIndex":    log.Index,
	}
	if len(log.Topics) == 0 {
		result["eventName"] = "Unknown"
		return result
	}

	event, err := c.abi.EventByID(log.Topics[0])
	if err != nil {
		logger.Debug("Unknown event signature: %s in contract %s", log.Topics[0].Hex(), c.name)
		result["eventName"] = "Unknown"
		result["signature"] = log.Topics[0].Hex()
		return result
	}
	result["eventName"] = event.Name

	// 解析索引参数
	topicIdx := 1
	for _, input := range event.Inputs {
		if !input.Indexed {
			continue
		}
		if topicIdx >= len(log.Topics) {
			break
		}
		result[input.Name] = parseTopicValue(log.Topics[topicIdx], input.Type)
		topicIdx++
	}

	// 解析非索引参数
	if len(log.Data) > 0 {
		values := make(map[string]interface{})
		if err := c.abi.UnpackIntoMap(values, event.Name, log.Data); err != nil {
			logger.Warn("Failed to unpack non-indexed parameters of %s: %v", event.Name, err)
		} else {
			for k, v := range values {
				result[k] = v
			}
		}
	}

	return result
}

// parseTopicValue 解析主题值
func parseTopicValue(topic common.Hash, t abi.Type) interface{} {
	switch t.T {
	case abi.UintTy, abi.IntTy:
		return new(big.Int).SetBytes(topic.Bytes())
	case abi.AddressTy:
		return common.BytesToAddress(topic.Bytes())
	case abi.BoolTy:
		return new(big.Int).SetBytes(topic.Bytes()).Sign() > 0
	default:
		return topic.Hex()
	}
}
