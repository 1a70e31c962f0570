package sensors

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tuya-sensors/pkg/errors"
	"github.com/tuya-sensors/pkg/exporter"
	"github.com/tuya-sensors/pkg/metrics"
	"github.com/tuya-sensors/pkg/server"
	"github.com/tuya-sensors/pkg/util"
)

const (
	defaultExporterPort = 8092
	enableProcess       = true
)

func newExporterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prometheus-exporter",
		Short: "Poll configured devices and serve /metrics | 启动 Prometheus 导出器",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = rt.logger.Sync() }()

			if rt.doc.Exporter == nil {
				return report(rt.logger, "exporter not configured",
					errors.Configf("Config validation error: no 'prometheusExporter' section in %s", rt.cfg.File))
			}

			util.PrintBanner(cmd.ErrOrStderr(), "tuya-sensors", util.ColorBlue)

			// 1. 初始化指标注册器与导出目标
			registry := metrics.NewRegistry(enableProcess)
			factory := metrics.NewMetricFactory(metrics.NewPromRegistry(registry))
			exp, err := exporter.New(rt.doc.Exporter, rt.doc.Topology, rt.service, factory, rt.logger)
			if err != nil {
				return report(rt.logger, "failed to create exporter", err)
			}

			// 2. 启动 HTTP /metrics
			srv := server.NewHTTPServer(rt.cfg.Server, rt.logger, server.WithMetrics(registry))
			if err := srv.Start(); err != nil {
				return report(rt.logger, "start HTTP server failed", fmt.Errorf("listen %s: %w", rt.cfg.Server.Addr(), err))
			}

			// 3. 启动轮询循环
			exp.Scheduler().Start(cmd.Context())
			rt.logger.Info("prometheus exporter started",
				zap.String("addr", srv.Addr()),
				zap.Duration("interval", rt.doc.Exporter.Interval()),
				zap.Int("targets", len(exp.Targets())),
			)

			// 4. 等待退出信号：先停轮询，再关 HTTP
			server.WaitForShutdown(cmd.Context(), rt.logger, func(ctx context.Context) error {
				return errors.Join(exp.Scheduler().Shutdown(ctx), srv.Shutdown(ctx))
			})
			return nil
		},
	}
	initServerFlags(cmd, defaultExporterPort)
	return cmd
}
