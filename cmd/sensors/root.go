// Package sensors 实现 tuya-sensors 命令行：get-tuya、api、prometheus-exporter
package sensors

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tuya-sensors/pkg/config"
	"github.com/tuya-sensors/pkg/devices"
	"github.com/tuya-sensors/pkg/errors"
	"github.com/tuya-sensors/pkg/logger"
	"github.com/tuya-sensors/pkg/topology"
	"github.com/tuya-sensors/pkg/tuya"
)

// errReported 错误已写入日志，不再重复输出
var errReported = errors.New("error already reported")

var defaultCfg = config.NewDefaultConfig()

// runtime 子命令共享的依赖
type runtime struct {
	cfg     *config.Config
	logger  *zap.Logger
	doc     *topology.Document
	service *devices.Service
}

// Execute 运行根命令
func Execute() error {
	return execute(context.Background(), newRootCmd(), os.Args[1:])
}

func execute(ctx context.Context, root *cobra.Command, args []string) error {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errReported) {
		_, _ = fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	}
	return err
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tuya-sensors",
		Short:         "Poll Tuya sensors and expose readings over HTTP and Prometheus",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := root.PersistentFlags()
	f.StringP("config", "c", config.DefaultConfigFile, "-> Config file with devices and runtime settings | 配置文件路径")
	f.Bool("debug", false, "-> Enable debug logging | 开启调试日志")
	initLogFlags(root)
	initTuyaFlags(root)

	root.AddCommand(newGetTuyaCmd(), newAPICmd(), newExporterCmd())
	return root
}

// bootstrap 加载配置、日志与拓扑，构建设备服务
func bootstrap(cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.LoadConfigWithCli(cmd)
	if err != nil {
		return nil, err
	}

	log, err := logger.NewWithWriter(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, errors.WrapConfig("init logger", err)
	}

	doc, err := topology.LoadFile(cfg.File)
	if err != nil {
		return nil, report(log, "failed to load device topology", err)
	}
	log.Debug("topology loaded",
		zap.String("config", cfg.File),
		zap.Int("device_types", len(doc.Topology.DeviceTypes)),
		zap.Int("devices", len(doc.Topology.Devices)),
	)

	dialer := tuya.NewBridgeDialer(cfg.Tuya.BridgeURL, cfg.Tuya.Timeout, log)
	return &runtime{
		cfg:     cfg,
		logger:  log,
		doc:     doc,
		service: devices.NewService(doc.Topology, dialer, log),
	}, nil
}

// report 记录错误并返回 errReported 包装，保留分类码
func report(log *zap.Logger, msg string, err error) error {
	log.Error(msg, logger.ErrorFields(err)...)
	return errors.Join(errReported, err)
}
