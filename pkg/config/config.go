package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tuya-sensors/pkg/errors"
)

// EnvPrefix 环境变量前缀，如 TUYA_SENSORS_TUYA_BRIDGE_URL -> tuya.bridge_url
const EnvPrefix = "TUYA_SENSORS"

// DefaultConfigFile 默认配置文件（同时包含设备拓扑）
const DefaultConfigFile = "./config.yml"

var valid = validator.New()

// flagAliases 子命令短 flag 到配置键的映射
var flagAliases = map[string]string{
	"host":    "server.host",
	"port":    "server.port",
	"workers": "server.workers",
}

// Config 运行时配置（设备拓扑由 pkg/topology 从同一文件解析）
type Config struct {
	Server ServerConfig `yaml:"server" mapstructure:"server" comment:"HTTP服务配置"`
	Tuya   TuyaConfig   `yaml:"tuya" mapstructure:"tuya" comment:"设备桥接配置"`
	Log    LogConfig    `yaml:"log" mapstructure:"log" comment:"日志配置"`

	// File 实际读取的配置文件路径
	File string `yaml:"-" mapstructure:"-"`
}

// ServerConfig HTTP服务配置（超时统一为time.Duration，支持"30s"解析）
type ServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host" validate:"required" comment:"监听地址"`
	Port         int           `yaml:"port" mapstructure:"port" validate:"gte=1,lte=65535" comment:"监听端口"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"gt=0" comment:"读取超时时间（如30s）"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"gt=0" comment:"写入超时时间（如30s）"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" validate:"gt=0" comment:"空闲连接超时时间（如60s）"`
	Workers      int           `yaml:"workers" mapstructure:"workers" validate:"gte=1" comment:"设备查询工作协程数"`
}

// TuyaConfig 设备桥接服务配置
type TuyaConfig struct {
	BridgeURL string        `yaml:"bridge_url" mapstructure:"bridge_url" validate:"required,url" comment:"桥接服务地址"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0" comment:"单次设备请求超时"`
}

// LogConfig 日志配置，Path 为空时只输出到控制台
type LogConfig struct {
	Level        string        `yaml:"level" mapstructure:"level" validate:"required,oneof=debug info warn error" comment:"日志级别" default:"info"`
	Format       string        `yaml:"format" mapstructure:"format" validate:"required,oneof=json console" comment:"控制台日志格式（json/console）" default:"console"`
	Path         string        `yaml:"path" mapstructure:"path" comment:"日志文件目录，可选"`
	MaxAge       time.Duration `yaml:"max_age" mapstructure:"max_age" validate:"gt=0" comment:"日志文件最大保存时间" default:"168h"`
	RotationTime time.Duration `yaml:"rotation_time" mapstructure:"rotation_time" validate:"gt=0" comment:"日志轮转间隔" default:"24h"`
}

// NewDefaultConfig 创建默认配置
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			Workers:      10,
		},
		Tuya: TuyaConfig{
			BridgeURL: "http://127.0.0.1:6668",
			Timeout:   10 * time.Second,
		},
		Log: LogConfig{
			Level:        "info",
			Format:       "console",
			MaxAge:       7 * 24 * time.Hour,
			RotationTime: 24 * time.Hour,
		},
	}
}

// setDefaults 让 viper 知道所有键，环境变量才能覆盖未出现在文件中的键
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", cfg.Server.IdleTimeout)
	v.SetDefault("server.workers", cfg.Server.Workers)
	v.SetDefault("tuya.bridge_url", cfg.Tuya.BridgeURL)
	v.SetDefault("tuya.timeout", cfg.Tuya.Timeout)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.path", cfg.Log.Path)
	v.SetDefault("log.max_age", cfg.Log.MaxAge)
	v.SetDefault("log.rotation_time", cfg.Log.RotationTime)
}

// LoadConfigWithCli 按 默认值 <- YAML <- ENV <- Flags 的优先级加载配置
func LoadConfigWithCli(cmd *cobra.Command) (*Config, error) {
	cfg := NewDefaultConfig()
	v := viper.New()
	setDefaults(v, cfg)

	// 1. 绑定 Cobra Flags → Viper
	flags := cmd.Flags()
	if err := v.BindPFlags(flags); err != nil {
		return nil, errors.WrapConfig("bind flags", err)
	}
	for name, key := range flagAliases {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.WrapConfig("bind flag "+name, err)
			}
			// 子命令的 flag 默认值优先于全局默认值，低于配置文件
			v.SetDefault(key, f.DefValue)
		}
	}

	// 2. 解析配置文件 (--config)
	configFile, _ := flags.GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WrapConfig(fmt.Sprintf("Config read error: %s", configFile), err)
		}
	}

	// 3. 绑定环境变量 TUYA_SENSORS_SERVER_PORT -> server.port
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. 解码反序列化到结构体（支持 time.Duration）
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, errors.WrapConfig("new decoder", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, errors.WrapConfig("Config decode error", err)
	}
	cfg.File = configFile

	if debug, _ := flags.GetBool("debug"); debug {
		cfg.Log.Level = "debug"
	}

	// 5. 校验配置
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
