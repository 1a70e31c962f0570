package sensors

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tuya-sensors/pkg/api"
	"github.com/tuya-sensors/pkg/server"
	"github.com/tuya-sensors/pkg/util"
)

const defaultAPIPort = 8080

func newAPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Serve GET /sensors/{name} | 启动查询接口",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = rt.logger.Sync() }()

			util.PrintBanner(cmd.ErrOrStderr(), "tuya-sensors", util.ColorCyan)

			handler := api.NewHandler(rt.doc.Topology, rt.service, rt.cfg.Server.Workers, rt.logger)
			srv := server.NewHTTPServer(rt.cfg.Server, rt.logger, server.WithAPI(handler))
			if err := srv.Start(); err != nil {
				return report(rt.logger, "start HTTP server failed", fmt.Errorf("listen %s: %w", rt.cfg.Server.Addr(), err))
			}
			rt.logger.Info("query API started",
				zap.String("addr", srv.Addr()),
				zap.Int("workers", rt.cfg.Server.Workers),
			)

			server.WaitForShutdown(cmd.Context(), rt.logger, srv.Shutdown)
			return nil
		},
	}
	initServerFlags(cmd, defaultAPIPort)
	cmd.Flags().Int("workers", defaultCfg.Server.Workers, "-> Device query worker pool size | 设备查询并发数")
	return cmd
}
