// Package exporter 周期性读取设备测量值并写入 Prometheus Gauge
package exporter

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tuya-sensors/pkg/devices"
	"github.com/tuya-sensors/pkg/errors"
	"github.com/tuya-sensors/pkg/metrics"
	"github.com/tuya-sensors/pkg/scheduler"
	"github.com/tuya-sensors/pkg/topology"
)

// Measurer 测量值来源，由 devices.Service 实现
type Measurer interface {
	Measurements(ctx context.Context, name string, opts ...devices.Option) (map[string]any, error)
}

// Exporter 持有所有导出目标及驱动它们的调度器
type Exporter struct {
	targets   []*Target
	scheduler *scheduler.Scheduler
	logger    *zap.Logger
}

// Target 单个设备的导出目标，实现 scheduler.Collector
type Target struct {
	device   string
	measures []string
	gauges   map[string]prometheus.Gauge
	source   Measurer
}

// New 为每个导出设备创建目标并注册 Gauge，指标名冲突或非法时返回配置错误
func New(
	cfg *topology.ExporterConfig,
	topo *topology.Topology,
	source Measurer,
	factory *metrics.MetricFactory,
	logger *zap.Logger,
	opts ...scheduler.Option,
) (*Exporter, error) {
	if cfg == nil {
		return nil, errors.Configf("Config validation error: no 'prometheusExporter' section")
	}
	logger = logger.Named("exporter")

	e := &Exporter{logger: logger}
	for _, name := range cfg.DeviceNames() {
		if _, ok := topo.Device(name); !ok {
			return nil, errors.Configf("Config validation error: exporter device '%s' doesn't exist", name).WithDevice(name)
		}
		t := &Target{
			device: name,
			gauges: make(map[string]prometheus.Gauge),
			source: source,
		}
		for _, m := range cfg.TuyaDevices[name].Measurements {
			g, err := factory.NewDeviceGauge(name, m)
			if err != nil {
				return nil, errors.WrapConfig("Config validation error: cannot create gauge", err).
					WithDevice(name).WithDataPoint(m)
			}
			t.measures = append(t.measures, m)
			t.gauges[m] = g
		}
		e.targets = append(e.targets, t)
		logger.Debug("exporter target created", zap.String("device", name), zap.Strings("measurements", t.measures))
	}

	opts = append([]scheduler.Option{
		scheduler.WithMetrics(factory.NewCollectErrorsTotal(), factory.NewCollectDurationSeconds()),
	}, opts...)
	e.scheduler = scheduler.New(cfg.Interval(), logger, opts...)
	for _, t := range e.targets {
		e.scheduler.Register(t)
	}
	return e, nil
}

// Targets 返回按设备名排序的导出目标
func (e *Exporter) Targets() []*Target { return e.targets }

// Scheduler 返回驱动导出目标的调度器
func (e *Exporter) Scheduler() *scheduler.Scheduler { return e.scheduler }

// Run 阻塞轮询直到 ctx 结束
func (e *Exporter) Run(ctx context.Context) error {
	return e.scheduler.Run(ctx)
}

// Name 实现 scheduler.Collector
func (t *Target) Name() string { return t.device }

// Collect 读取一次测量值并更新 Gauge，任一测量值缺失或非数值时不更新任何 Gauge
func (t *Target) Collect(ctx context.Context) error {
	values, err := t.source.Measurements(ctx, t.device, devices.WithoutUnits())
	if err != nil {
		return err
	}

	converted := make(map[string]float64, len(t.measures))
	for _, m := range t.measures {
		v, ok := values[m]
		if !ok {
			return errors.ResponseParsef("Measurement '%s' missing from device '%s'", m, t.device).
				WithDevice(t.device).WithDataPoint(m)
		}
		f, err := coerce(v)
		if err != nil {
			return errors.ResponseParsef("Value '%v' of metric '%s' of device '%s' is not numeric", v, m, t.device).
				WithDevice(t.device).WithDataPoint(m)
		}
		converted[m] = f
	}

	for m, f := range converted {
		t.gauges[m].Set(f)
	}
	return nil
}

// coerce 布尔值按 1/0 导出
func coerce(v any) (float64, error) {
	if b, ok := v.(bool); ok {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	return devices.ToFloat(v)
}
