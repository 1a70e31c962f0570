package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tuya-sensors/pkg/errors"
)

// Validate 配置校验，失败统一返回配置错误
func (c *Config) Validate() error {
	if err := valid.Struct(c); err != nil {
		return errors.WrapConfig("Config validation error", err)
	}
	// 	1，校验Server服务配置
	if err := c.Server.Validate(); err != nil {
		return err
	}
	// 	2，校验桥接配置
	if err := c.Tuya.Validate(); err != nil {
		return err
	}
	// 	3，校验日志配置
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}

// Addr 监听地址 host:port
func (s *ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Validate HTTP服务配置校验
func (s *ServerConfig) Validate() error {
	if err := valid.Struct(s); err != nil {
		return errors.WrapConfig("server config invalid", err)
	}
	// 	用net包解析地址，验证格式合法性
	if _, err := net.ResolveTCPAddr("tcp", s.Addr()); err != nil {
		return errors.WrapConfig(fmt.Sprintf("server address invalid (expected ip:port), got %s", s.Addr()), err)
	}
	return nil
}

// Validate 桥接地址必须是 http(s)
func (t *TuyaConfig) Validate() error {
	if err := valid.Struct(t); err != nil {
		return errors.WrapConfig("tuya config invalid", err)
	}
	u, err := url.Parse(t.BridgeURL)
	if err != nil {
		return errors.WrapConfig("tuya.bridge_url invalid", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Configf("tuya.bridge_url must be http or https, got %s", t.BridgeURL)
	}
	return nil
}

// Validate 日志配置校验，配置了路径时确保目录可创建
func (l *LogConfig) Validate() error {
	if err := valid.Struct(l); err != nil {
		return errors.WrapConfig("log config invalid", err)
	}
	if l.Path == "" {
		return nil
	}
	abs, err := filepath.Abs(l.Path)
	if err != nil {
		return errors.WrapConfig(fmt.Sprintf("log.path %s cannot be resolved", l.Path), err)
	}
	if err := ensureDir(abs); err != nil {
		return errors.WrapConfig(fmt.Sprintf("log.path %s is not writable", l.Path), err)
	}
	return nil
}

func ensureDir(path string) error {
	stat, err := os.Stat(path)
	if os.IsNotExist(err) {
		return os.MkdirAll(path, 0755)
	}
	if err != nil {
		return err
	}
	if !stat.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}
