package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Indexer  IndexerConfig  `mapstructure:"indexer"`
	Query    QueryConfig    `mapstructure:"query"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 派生存储配置
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // postgres | sqlite
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	Path         string `mapstructure:"path"` // sqlite file, empty means in-memory
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// ChainConfig 单链配置
type ChainConfig struct {
	ChainType     string                    `mapstructure:"chain_type"`
	ChainId       int64                     `mapstructure:"chain_id"`
	RpcUrl        string                    `mapstructure:"rpc_url"`
	Confirmations uint64                    `mapstructure:"confirmations"`
	Contracts     map[string]ContractConfig `mapstructure:"contracts"` // Factory, DebtNFT, ReputationRegistry, Token, Pool
}

// ContractConfig 单个合约配置
type ContractConfig struct {
	Address  string `mapstructure:"address"`
	ABIPath  string `mapstructure:"abi_path"` // empty uses the embedded ABI
	Enabled  bool   `mapstructure:"enabled"`
	BlockNum uint64 `mapstructure:"block_num"` // deployment block
}

// IndexerConfig 事件同步配置
type IndexerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	StartBlock       uint64        `mapstructure:"start_block"`
	BatchSize        uint64        `mapstructure:"batch_size"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	RPCTimeout       time.Duration `mapstructure:"rpc_timeout"`
	MaxRetries       uint64        `mapstructure:"max_retries"`
	FetchConcurrency int           `mapstructure:"fetch_concurrency"`
}

// QueryConfig 查询路径配置
type QueryConfig struct {
	StoreEnabled    bool   `mapstructure:"store_enabled"`
	FallbackEnabled bool   `mapstructure:"fallback_enabled"`
	Fanout          int    `mapstructure:"fanout"`
	MaxRetries      uint64 `mapstructure:"max_retries"` // 直读合约调用的重试次数
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // stdout, stderr, file
	File   string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "arisan")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("chain.chain_type", "ethereum")
	v.SetDefault("chain.confirmations", 12)
	v.SetDefault("indexer.enabled", true)
	v.SetDefault("indexer.start_block", 0)
	v.SetDefault("indexer.batch_size", 500)
	v.SetDefault("indexer.poll_interval", "15s")
	v.SetDefault("indexer.rpc_timeout", "10s")
	v.SetDefault("indexer.max_retries", 5)
	v.SetDefault("indexer.fetch_concurrency", 8)
	v.SetDefault("query.store_enabled", true)
	v.SetDefault("query.fallback_enabled", true)
	v.SetDefault("query.fanout", 16)
	v.SetDefault("query.max_retries", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")
}

// Load 读取配置文件；path 为空时按默认路径搜索 config.yaml
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/arisan")
	}

	v.SetEnvPrefix("ARISAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验必填项
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Indexer.Enabled || c.Query.FallbackEnabled {
		if c.Chain.RpcUrl == "" {
			return errors.New("chain.rpc_url is required")
		}
	}
	if c.Indexer.BatchSize == 0 {
		return errors.New("indexer.batch_size must be positive")
	}
	if !c.Query.StoreEnabled && !c.Query.FallbackEnabled {
		return errors.New("at least one of query.store_enabled and query.fallback_enabled must be set")
	}
	return nil
}
