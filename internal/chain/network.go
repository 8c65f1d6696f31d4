package chain

import (
	"fmt"
	"sort"

	"github.com/blues/crowdchain/internal/config"
)

// Network 可连接的链
type Network struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	ChainId      int64  `json:"chainId"`
	RpcUrl       string `json:"-"`
	Testnet      bool   `json:"isTestnet"`
	TokenAddress string `json:"tokenAddress,omitempty"`
}

// 内置网络，与前端钱包支持的链保持一致
var builtinNetworks = map[string]Network{
	"mainnet": {
		Key: "mainnet", Name: "Ethereum Mainnet", ChainId: 1,
		RpcUrl:       "https://cloudflare-eth.com",
		TokenAddress: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
	},
	"polygon": {
		Key: "polygon", Name: "Polygon", ChainId: 137,
		RpcUrl: "https://polygon-rpc.com",
	},
	"arbitrum": {
		Key: "arbitrum", Name: "Arbitrum One", ChainId: 42161,
		RpcUrl: "https://arb1.arbitrum.io/rpc",
	},
	"base": {
		Key: "base", Name: "Base Mainnet", ChainId: 8453,
		RpcUrl:       "https://mainnet.base.org",
		TokenAddress: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
	},
	"sepolia": {
		Key: "sepolia", Name: "Sepolia Testnet", ChainId: 11155111, Testnet: true,
		RpcUrl:       "https://rpc.sepolia.org",
		TokenAddress: "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
	},
	"base_sepolia": {
		Key: "base_sepolia", Name: "Base Sepolia Testnet", ChainId: 84532, Testnet: true,
		RpcUrl:       "https://sepolia.base.org",
		TokenAddress: "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
	},
}

// UnknownNetwork 未识别的链
var UnknownNetwork = Network{Key: "unknown", Name: "Unknown Network"}

// Registry 网络注册表：内置网络叠加配置中的覆盖项
type Registry struct {
	networks map[string]Network
}

// NewRegistry 创建网络注册表
func NewRegistry(overrides map[string]config.NetworkConfig) *Registry {
	networks := make(map[string]Network, len(builtinNetworks)+len(overrides))
	for k, n := range builtinNetworks {
		networks[k] = n
	}

	for key, o := range overrides {
		n, ok := networks[key]
		if !ok {
			n = Network{Key: key}
		}
		if o.Name != "" {
			n.Name = o.Name
		}
		if o.ChainId != 0 {
			n.ChainId = o.ChainId
		}
		if o.RpcUrl != "" {
			n.RpcUrl = o.RpcUrl
		}
		if o.TokenAddress != "" {
			n.TokenAddress = o.TokenAddress
		}
		if o.Testnet {
			n.Testnet = true
		}
		if n.Name == "" {
			n.Name = key
		}
		networks[key] = n
	}

	return &Registry{networks: networks}
}

// Get 按名称获取网络
func (r *Registry) Get(key string) (Network, error) {
	n, ok := r.networks[key]
	if !ok {
		return Network{}, fmt.Errorf("unknown network %q", key)
	}
	if n.ChainId == 0 {
		return Network{}, fmt.Errorf("network %q has no chain id", key)
	}
	return n, nil
}

// ByChainId 按链ID查找，未知链返回 UnknownNetwork
func (r *Registry) ByChainId(chainId int64) Network {
	for _, n := range r.networks {
		if n.ChainId == chainId {
			return n
		}
	}
	u := UnknownNetwork
	u.ChainId = chainId
	return u
}

// List 按链ID排序返回全部网络
func (r *Registry) List() []Network {
	list := make([]Network, 0, len(r.networks))
	for _, n := range r.networks {
		list = append(list, n)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ChainId < list[j].ChainId })
	return list
}
