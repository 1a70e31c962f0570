package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/model"
)

// DeviceMetricName 设备指标名，格式为 {device}_{metric}
func DeviceMetricName(device, metric string) string {
	return device + "_" + metric
}

// NewDeviceGauge 创建设备测量值 Gauge，名称非法或重复注册时返回错误
func (f *MetricFactory) NewDeviceGauge(device, metric string) (prometheus.Gauge, error) {
	name := DeviceMetricName(device, metric)
	// 只接受经典字符集，UTF-8 名称在旧版抓取端不可用
	if !model.IsValidLegacyMetricName(name) {
		return nil, fmt.Errorf("invalid metric name %q", name)
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: fmt.Sprintf("Device '%s' metric '%s'", device, metric),
	})
	if err := f.reg.Register(g); err != nil {
		return nil, fmt.Errorf("register gauge %s: %w", name, err)
	}
	return g, nil
}

// NewCollectErrorsTotal 创建「设备轮询失败总数」指标
// 指标类型：Counter，服务重启后重置为0
// 标签说明：device 设备名
func (f *MetricFactory) NewCollectErrorsTotal() *prometheus.CounterVec {
	return promauto.With(f.reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "tuya_sensors_collect_errors_total",
			Help: "Total number of failed device polls",
		},
		[]string{"device"},
	)
}

// NewCollectDurationSeconds 创建「设备轮询耗时分布」指标
// 分桶说明：0.01s ~ 5.12s，覆盖局域网设备的常见应答时间
func (f *MetricFactory) NewCollectDurationSeconds() *prometheus.HistogramVec {
	return promauto.With(f.reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tuya_sensors_collect_duration_seconds",
			Help:    "Duration of a single device poll",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"device"},
	)
}
