package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/blues/crowdchain/internal/config"
	"github.com/blues/crowdchain/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Manager 单链管理器
type Manager struct {
	mu        sync.RWMutex
	contracts map[string]*Contract // 合约映射: "contractName" -> Contract
	backend   Backend
	closer    func()
	network   Network
	registry  *Registry
	walletCfg string // WalletConnect 项目ID
}

// NewManager 连接当前网络并加载合约
func NewManager(cfg config.ChainConfig) (*Manager, error) {
	registry := NewRegistry(cfg.Networks)
	network, err := registry.Get(cfg.Network)
	if err != nil {
		return nil, err
	}
	if cfg.RpcUrl != "" {
		network.RpcUrl = cfg.RpcUrl
	}

	client, err := createChainClient(network)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize client: %w", err)
	}

	m, err := newManager(cfg, registry, network, client)
	if err != nil {
		client.Close()
		return nil, err
	}
	m.closer = client.Close
	return m, nil
}

// NewManagerWithBackend 使用已有的后端创建管理器
func NewManagerWithBackend(cfg config.ChainConfig, backend Backend) (*Manager, error) {
	registry := NewRegistry(cfg.Networks)
	network, err := registry.Get(cfg.Network)
	if err != nil {
		return nil, err
	}
	return newManager(cfg, registry, network, backend)
}

func newManager(cfg config.ChainConfig, registry *Registry, network Network, backend Backend) (*Manager, error) {
	m := &Manager{
		contracts: make(map[string]*Contract),
		backend:   backend,
		network:   network,
		registry:  registry,
		walletCfg: cfg.WalletConnectProjectId,
	}

	if err := m.initContracts(cfg.Contracts); err != nil {
		return nil, fmt.Errorf("failed to initialize contracts: %w", err)
	}
	return m, nil
}

// createChainClient 创建链客户端并测试连接
func createChainClient(network Network) (*ethclient.Client, error) {
	if network.RpcUrl == "" {
		return nil, fmt.Errorf("no RPC URL configured for network %s", network.Key)
	}

	logger.Info("Creating %s client connection (RPC: %s)", network.Name, network.RpcUrl)
	client, err := ethclient.Dial(network.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", network.Name, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("client connection test failed (%s): %w", network.Name, err)
	}
	if chainID.Int64() != network.ChainId {
		client.Close()
		return nil, fmt.Errorf("rpc %s reports chain id %s, expected %d", network.RpcUrl, chainID, network.ChainId)
	}

	logger.Info("Successfully created %s client", network.Name)
	return client, nil
}

// initContracts 初始化所有合约，内置合约在未配置时也会加载
func (m *Manager) initContracts(configured map[string]config.ContractConfig) error {
	cfgs := map[string]config.ContractConfig{
		ContractFactory:  {Address: config.DefaultFactoryAddress, Enabled: true},
		ContractCampaign: {Enabled: true},
		ContractERC20:    {Enabled: true},
	}
	for name, c := range configured {
		cfgs[name] = c
	}

	for name, contractCfg := range cfgs {
		if !contractCfg.Enabled {
			logger.Info("Skipping disabled contract: %s", name)
			continue
		}

		var (
			parsed abi.ABI
			err    error
		)
		if contractCfg.ABIPath != "" {
			parsed, err = LoadABI(contractCfg.ABIPath)
		} else {
			parsed, err = EmbeddedABI(name)
		}
		if err != nil {
			return fmt.Errorf("failed to create contract %s: %w", name, err)
		}

		address := contractCfg.Address
		if name == ContractERC20 && address == "" {
			address = m.network.TokenAddress
		}
		if address != "" && !common.IsHexAddress(address) {
			return fmt.Errorf("contract %s has invalid address %q", name, address)
		}

		m.contracts[name] = NewContract(name, common.HexToAddress(address), parsed)
		logger.Info("Initialized contract: %s (address: %s)", name, address)
	}

	return nil
}

// GetBackend 获取链客户端
func (m *Manager) GetBackend() Backend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backend
}

// GetContract 获取指定合约
func (m *Manager) GetContract(contractName string) (*Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	contract, exists := m.contracts[contractName]
	if !exists {
		return nil, fmt.Errorf("contract %s not found", contractName)
	}
	return contract, nil
}

// GetContracts 获取所有合约
func (m *Manager) GetContracts() map[string]*Contract {
	m.mu.RLock()
	defer m.mu.RUnlock()

	contracts := make(map[string]*Contract, len(m.contracts))
	for name, contract := range m.contracts {
		contracts[name] = contract
	}
	return contracts
}

// FindContract 按地址查找已知合约，活动合约按地址寻址时返回 campaign ABI
func (m *Manager) FindContract(address common.Address) *Contract {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.contracts {
		if c.GetAddress() == address {
			return c
		}
	}
	if c, ok := m.contracts[ContractCampaign]; ok {
		return c.At(address)
	}
	return nil
}

// Network 当前网络
func (m *Manager) Network() Network {
	return m.network
}

// Registry 网络注册表
func (m *Manager) Registry() *Registry {
	return m.registry
}

// ChainID 当前链ID
func (m *Manager) ChainID() *big.Int {
	return big.NewInt(m.network.ChainId)
}

// WalletConnectProjectId 钱包连接项目ID
func (m *Manager) WalletConnectProjectId() string {
	return m.walletCfg
}

// GetHealthStatus 获取健康状态
func (m *Manager) GetHealthStatus(ctx context.Context) map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	health := map[string]interface{}{
		"network":       m.network.Name,
		"chain_id":      m.network.ChainId,
		"client_status": "connected",
	}

	if m.backend == nil {
		health["client_status"] = "not_initialized"
	} else if block, err := m.backend.BlockNumber(ctx); err != nil {
		health["client_status"] = "disconnected"
		health["error"] = err.Error()
	} else {
		health["block_number"] = block
	}

	contracts := make(map[string]interface{}, len(m.contracts))
	for name, contract := range m.contracts {
		contracts[name] = contract.GetAddress().Hex()
	}
	health["contracts"] = contracts
	return health
}

// Close 关闭管理器
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closer != nil {
		m.closer()
		m.closer = nil
	}
	logger.Info("Chain manager closed")
	return nil
}
