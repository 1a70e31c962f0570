package sensors

import (
	"github.com/spf13/cobra"
)

func initLogFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	logPrefix := "log."

	f.String(
		logPrefix+"level",
		defaultCfg.Log.Level,
		"-> Log level [debug,info,warn,error] | 日志级别")
	f.String(
		logPrefix+"format",
		defaultCfg.Log.Format,
		"-> Console log format [console,json] | 日志格式")
	f.String(
		logPrefix+"path",
		defaultCfg.Log.Path,
		"-> Rotating log file directory, empty disables | 日志路径，为空不写文件")
}

func initTuyaFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.String("tuya.bridge_url", defaultCfg.Tuya.BridgeURL, "-> Tuya bridge service URL | 设备桥接服务地址")
	f.Duration("tuya.timeout", defaultCfg.Tuya.Timeout, "-> Per-request device timeout | 单次设备请求超时")
}

// initServerFlags 服务子命令的监听参数，port 默认值因子命令而异
func initServerFlags(cmd *cobra.Command, defaultPort int) {
	f := cmd.Flags()

	f.String("host", defaultCfg.Server.Host, "-> HTTP listening host | HTTP监听地址")
	f.Int("port", defaultPort, "-> HTTP listening port | HTTP监听端口")
}
