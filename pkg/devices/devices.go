// Package devices 解析设备句柄并把设备原始状态转换为具名测量值
package devices

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/tuya-sensors/pkg/errors"
	"github.com/tuya-sensors/pkg/topology"
	"github.com/tuya-sensors/pkg/tuya"
)

// dpsField 设备状态中原始读数所在字段
const dpsField = "dps"

// Service 基于只读拓扑访问设备，可并发使用
type Service struct {
	topo   *topology.Topology
	dialer tuya.Dialer
	logger *zap.Logger
}

type options struct {
	noUnit bool
}

// Option 测量选项
type Option func(*options)

// WithoutUnits 不追加单位且保持数值类型（HTTP 与导出器使用）
func WithoutUnits() Option {
	return func(o *options) { o.noUnit = true }
}

// NewService 创建设备服务
func NewService(topo *topology.Topology, dialer tuya.Dialer, logger *zap.Logger) *Service {
	return &Service{
		topo:   topo,
		dialer: dialer,
		logger: logger.Named("devices"),
	}
}

// Topology 返回服务使用的拓扑
func (s *Service) Topology() *topology.Topology { return s.topo }

// Resolve 按父链从根到叶依次打开句柄，子设备句柄内嵌父设备句柄
func (s *Service) Resolve(name string) (tuya.Device, error) {
	chain, ok := s.topo.ParentChain(name)
	if !ok {
		return nil, errors.UnknownDevice(name)
	}
	var handle tuya.Device
	for _, d := range chain {
		handle = s.dialer.Open(paramsOf(d), handle)
	}
	return handle, nil
}

func paramsOf(d *topology.DeviceConfig) tuya.Params {
	return tuya.Params{
		DeviceID: d.DeviceID,
		CID:      d.CID,
		Address:  d.Address,
		LocalKey: d.LocalKey,
		Version:  d.Version,
	}
}

// Measurements 读取设备状态并按数据点定义转换：倍率 -> 定点格式化 -> 单位
func (s *Service) Measurements(ctx context.Context, name string, opts ...Option) (map[string]any, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if _, ok := s.topo.Device(name); !ok {
		return nil, errors.UnknownDevice(name)
	}
	dataPoints := s.topo.DataPoints(name)
	if len(dataPoints) == 0 {
		return map[string]any{}, nil
	}

	device, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("getting device status", zap.String("device", name))
	status, err := device.Status(ctx)
	if err != nil {
		return nil, wrapDeviceErr(name, err)
	}
	s.logger.Debug("got device status", zap.String("device", name), zap.Any("status", status))

	if status == nil {
		return nil, errors.ResponseParsef("Empty status from device '%s'", name).WithDevice(name)
	}
	rawDps, ok := status[dpsField]
	if !ok {
		return nil, errors.ResponseParsef("No 'dps' field in status of device '%s': %v", name, status).WithDevice(name)
	}
	dps, ok := rawDps.(map[string]any)
	if !ok {
		return nil, errors.ResponseParsef("Field 'dps' of device '%s' is not an object: %v", name, rawDps).WithDevice(name)
	}

	result := make(map[string]any, len(dataPoints))
	for _, dp := range dataPoints {
		key := strconv.Itoa(dp.Index)
		raw, ok := dps[key]
		if !ok {
			return nil, errors.ResponseParsef("No dps[%s] field in data points of device '%s': %v", key, name, dps).
				WithDevice(name).WithDataPoint(dp.Name)
		}
		value, err := Transform(dp, raw, o.noUnit)
		if err != nil {
			return nil, wrapDeviceErr(name, err)
		}
		result[dp.Name] = value
	}
	return result, nil
}

// QueryGateway 返回网关子设备枚举的原始应答
func (s *Service) QueryGateway(ctx context.Context, name string) (map[string]any, error) {
	device, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}
	result, err := device.SubdevQuery(ctx)
	if err != nil {
		return nil, wrapDeviceErr(name, err)
	}
	return result, nil
}

// QueryUnknown 返回未知类型设备的原始状态
func (s *Service) QueryUnknown(ctx context.Context, name string) (map[string]any, error) {
	device, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}
	result, err := device.Status(ctx)
	if err != nil {
		return nil, wrapDeviceErr(name, err)
	}
	return result, nil
}

// wrapDeviceErr 未分类的协作方错误归为设备 I/O 错误
func wrapDeviceErr(name string, err error) error {
	var e *errors.Error
	if errors.As(err, &e) {
		return e.WithDevice(name)
	}
	return errors.DeviceIO(name, err)
}
