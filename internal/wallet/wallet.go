package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/blues/crowdchain/internal/config"
	"github.com/blues/crowdchain/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrNotConnected  = errors.New("wallet not connected")
	ErrNoCredentials = errors.New("no wallet credentials configured")
)

// Wallet 服务端钱包：只保存连接状态和签名密钥
type Wallet struct {
	mu         sync.RWMutex
	cfg        config.WalletConfig
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// New 创建未连接的钱包
func New(cfg config.WalletConfig) *Wallet {
	return &Wallet{cfg: cfg}
}

// HasCredentials 是否配置了私钥或 keystore
func (w *Wallet) HasCredentials() bool {
	return w.cfg.PrivateKey != "" || w.cfg.KeystorePath != ""
}

// Connect 使用配置的凭据连接钱包
func (w *Wallet) Connect() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.privateKey != nil {
		return nil
	}

	key, err := w.loadKey()
	if err != nil {
		return err
	}

	w.privateKey = key
	w.address = crypto.PubkeyToAddress(key.PublicKey)
	logger.Info("Wallet connected: %s", w.address.Hex())
	return nil
}

// ConnectWithKey 使用给定私钥连接
func (w *Wallet) ConnectWithKey(key *ecdsa.PrivateKey) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.privateKey = key
	w.address = crypto.PubkeyToAddress(key.PublicKey)
}

func (w *Wallet) loadKey() (*ecdsa.PrivateKey, error) {
	switch {
	case w.cfg.PrivateKey != "":
		key, err := crypto.HexToECDSA(strings.TrimPrefix(w.cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		return key, nil
	case w.cfg.KeystorePath != "":
		data, err := os.ReadFile(w.cfg.KeystorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read keystore: %w", err)
		}
		k, err := keystore.DecryptKey(data, w.cfg.KeystorePassword)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt keystore: %w", err)
		}
		return k.PrivateKey, nil
	default:
		return nil, ErrNoCredentials
	}
}

// Disconnect 断开钱包
func (w *Wallet) Disconnect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.privateKey != nil {
		logger.Info("Wallet disconnected: %s", w.address.Hex())
	}
	w.privateKey = nil
	w.address = common.Address{}
}

// Connected 是否已连接
func (w *Wallet) Connected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.privateKey != nil
}

// Address 当前账户地址，未连接时为零地址
func (w *Wallet) Address() common.Address {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.address
}

// Transactor 获取交易授权
func (w *Wallet) Transactor(chainID *big.Int) (*bind.TransactOpts, error) {
	w.mu.RLock()
	key := w.privateKey
	w.mu.RUnlock()

	if key == nil {
		return nil, ErrNotConnected
	}
	return bind.NewKeyedTransactorWithChainID(key, chainID)
}
