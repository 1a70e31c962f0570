// Package topology 描述已配置的设备类型、数据点与设备实例，并在加载时校验拓扑约束。
//
// Topology 在进程启动时构建一次，之后只读，可以在各 goroutine 间无锁共享。
package topology

import (
	"sort"
	"time"
)

// 无数据点的保留设备类型
const (
	TypeGateway = "gateway"
	TypeUnknown = "unknown"
)

// DataPointDef 设备类型暴露的一个物理量，按协议索引定位
type DataPointDef struct {
	Index          int      `yaml:"-"`
	Name           string   `yaml:"name" validate:"required"`
	Multiplier     *float64 `yaml:"multiplier"`
	FloatPrecision *int     `yaml:"floatPrecision" validate:"omitempty,gte=0,lte=17"`
	Unit           *string  `yaml:"unit"`
}

// DeviceType 一类设备的数据点集合，Index 在类型内唯一
type DeviceType struct {
	Name       string               `yaml:"-"`
	DataPoints map[int]DataPointDef `yaml:"dataPoints"`
}

// DeviceConfig 单个物理或逻辑设备；Parent 非空表示经由父设备（网关）访问的子设备
type DeviceConfig struct {
	Name       string   `yaml:"-"`
	DeviceType string   `yaml:"deviceType" validate:"required"`
	DeviceID   string   `yaml:"deviceId" validate:"required"`
	Version    *float64 `yaml:"version" validate:"omitempty,gt=0"`
	CID        string   `yaml:"cid"`
	LocalKey   string   `yaml:"localKey"`
	Address    string   `yaml:"address"`
	Parent     string   `yaml:"parent"`
}

// IsSentinel 网关与未知类型不携带数据点
func (d *DeviceConfig) IsSentinel() bool {
	return d.DeviceType == TypeGateway || d.DeviceType == TypeUnknown
}

// Topology 完整加载后的设备拓扑
type Topology struct {
	DeviceTypes map[string]*DeviceType
	Devices     map[string]*DeviceConfig
}

// ExporterDevice 导出器中单个设备需要发布的数据点名
type ExporterDevice struct {
	Measurements []string `yaml:"measurements" validate:"required,min=1,dive,required"`
}

// ExporterConfig prometheusExporter 子配置
type ExporterConfig struct {
	TuyaDevices     map[string]ExporterDevice `yaml:"tuyaDevices" validate:"required,min=1"`
	RequestEverySec float64                   `yaml:"requestEverySec" validate:"gt=0"`
}

// Interval 采集周期
func (e *ExporterConfig) Interval() time.Duration {
	return time.Duration(e.RequestEverySec * float64(time.Second))
}

// DeviceNames 按名称排序的导出设备
func (e *ExporterConfig) DeviceNames() []string {
	names := make([]string, 0, len(e.TuyaDevices))
	for name := range e.TuyaDevices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Document 配置文件中与拓扑相关的全部内容
type Document struct {
	Topology *Topology
	// Exporter 未配置 prometheusExporter 时为 nil
	Exporter *ExporterConfig
}

// Device 按名称查找设备
func (t *Topology) Device(name string) (*DeviceConfig, bool) {
	d, ok := t.Devices[name]
	return d, ok
}

// DeviceNames 按名称排序的设备列表
func (t *Topology) DeviceNames() []string {
	names := make([]string, 0, len(t.Devices))
	for name := range t.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DataPoints 返回设备类型的数据点（按 Index 升序）；保留类型或未知设备返回 nil
func (t *Topology) DataPoints(deviceName string) []DataPointDef {
	d, ok := t.Devices[deviceName]
	if !ok || d.IsSentinel() {
		return nil
	}
	dt, ok := t.DeviceTypes[d.DeviceType]
	if !ok || len(dt.DataPoints) == 0 {
		return nil
	}
	return sortedDataPoints(dt)
}

// DataPointByName 在设备类型中按逻辑名查找数据点
func (t *Topology) DataPointByName(deviceName, dpName string) (DataPointDef, bool) {
	for _, dp := range t.DataPoints(deviceName) {
		if dp.Name == dpName {
			return dp, true
		}
	}
	return DataPointDef{}, false
}

// ParentChain 返回从根设备到 name 的完整链路（根在前）。
// 使用显式工作表遍历，深度以设备总数为上限；加载阶段已保证无环。
func (t *Topology) ParentChain(name string) ([]*DeviceConfig, bool) {
	var chain []*DeviceConfig
	next := name
	for next != "" {
		d, ok := t.Devices[next]
		if !ok || len(chain) > len(t.Devices) {
			return nil, false
		}
		chain = append(chain, d)
		next = d.Parent
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, true
}
