package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/blues/crowdchain/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultFactoryAddress 默认众筹工厂合约地址
const DefaultFactoryAddress = "0x9753137E0Ce905266F263f1847A722308B0990CB"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Task     TaskConfig     `mapstructure:"task"`
	Log      LogConfig      `mapstructure:"log"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	Mode        string   `mapstructure:"mode"`
	CorsOrigins []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres, mysql, sqlite
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"` // sqlite 文件路径
}

// ChainConfig 链配置
type ChainConfig struct {
	Network                string                    `mapstructure:"network"`                  // 当前使用的网络 (mainnet, sepolia, ...)
	RpcUrl                 string                    `mapstructure:"rpc_url"`                  // 覆盖当前网络的RPC节点URL
	WalletConnectProjectId string                    `mapstructure:"walletconnect_project_id"` // 钱包连接项目ID
	Networks               map[string]NetworkConfig  `mapstructure:"networks"`                 // 自定义或覆盖内置网络
	Contracts              map[string]ContractConfig `mapstructure:"contracts"`                // 合约配置
}

// NetworkConfig 单个网络配置
type NetworkConfig struct {
	Name         string `mapstructure:"name"`
	ChainId      int64  `mapstructure:"chain_id"`
	RpcUrl       string `mapstructure:"rpc_url"`
	Testnet      bool   `mapstructure:"testnet"`
	TokenAddress string `mapstructure:"token_address"` // 该网络上的ERC20代币地址
}

// ContractConfig 单个合约配置
type ContractConfig struct {
	Address string `mapstructure:"address"`  // 合约地址，按地址寻址的合约可为空
	ABIPath string `mapstructure:"abi_path"` // ABI文件路径，为空时使用内置ABI
	Enabled bool   `mapstructure:"enabled"`
}

// WalletConfig 钱包凭据
type WalletConfig struct {
	PrivateKey       string `mapstructure:"private_key"`
	KeystorePath     string `mapstructure:"keystore_path"`
	KeystorePassword string `mapstructure:"keystore_password"`
	AutoConnect      bool   `mapstructure:"auto_connect"`
}

type TaskConfig struct {
	ReceiptInterval time.Duration `mapstructure:"receipt_interval"`
	IndexInterval   time.Duration `mapstructure:"index_interval"`
	PoolSize        int           `mapstructure:"pool_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load 加载配置，paths 为额外的配置文件搜索目录
func Load(paths ...string) (*Config, error) {
	// .env 不存在时忽略
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded: %v", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/crowdchain")

	setDefaults(v)

	// 自动读取环境变量，例如 CROWDCHAIN_WALLET_PRIVATE_KEY
	v.SetEnvPrefix("crowdchain")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		logger.Warn("Could not find config file, using defaults: %v", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "crowdchain")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "crowdchain.db")
	v.SetDefault("chain.network", "sepolia")
	v.SetDefault("chain.contracts.factory.address", DefaultFactoryAddress)
	v.SetDefault("chain.contracts.factory.enabled", true)
	v.SetDefault("chain.contracts.campaign.enabled", true)
	v.SetDefault("chain.contracts.erc20.enabled", true)
	v.SetDefault("chain.rpc_url", "")
	v.SetDefault("chain.walletconnect_project_id", "")
	v.SetDefault("wallet.private_key", "")
	v.SetDefault("wallet.keystore_path", "")
	v.SetDefault("wallet.keystore_password", "")
	v.SetDefault("wallet.auto_connect", true)
	v.SetDefault("task.receipt_interval", 5*time.Second)
	v.SetDefault("task.index_interval", 60*time.Second)
	v.SetDefault("task.pool_size", 16)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

func (c *Config) validate() error {
	if c.Chain.Network == "" {
		return fmt.Errorf("chain.network must be set")
	}
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Task.PoolSize <= 0 {
		return fmt.Errorf("task.pool_size must be positive, got %d", c.Task.PoolSize)
	}
	if c.Task.ReceiptInterval <= 0 || c.Task.IndexInterval <= 0 {
		return fmt.Errorf("task intervals must be positive")
	}
	return nil
}
