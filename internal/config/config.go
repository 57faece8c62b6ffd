package config

import (
	"github.com/spf13/viper"
	"github.com/trungbq8/openfund/internal/logger"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Task     TaskConfig     `mapstructure:"task"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ChainConfig 资产服务配置
type ChainConfig struct {
	Mode         string `mapstructure:"mode"`          // 资产模式 (memory, erc20)
	RpcUrl       string `mapstructure:"rpc_url"`       // RPC节点URL
	ChainId      int64  `mapstructure:"chain_id"`      // 链ID
	PrivateKey   string `mapstructure:"private_key"`   // 托管账户私钥
	FundingToken string `mapstructure:"funding_token"` // 募资币种(USDT)合约地址
}

// EngineConfig 结算引擎配置
type EngineConfig struct {
	AdminAddress string `mapstructure:"admin_address"` // 平台管理员地址
}

type TaskConfig struct {
	Interval int `mapstructure:"interval"` // 秒
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/openfund")

	// 设置默认值
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "openfund")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("chain.mode", "memory")
	viper.SetDefault("chain.chain_id", 1)
	viper.SetDefault("chain.funding_token", "usdt")
	viper.SetDefault("task.interval", 60)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.file", "logs/app.log")

	// 自动读取环境变量
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}

	return &config
}
