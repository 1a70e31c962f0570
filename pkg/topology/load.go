package topology

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/tuya-sensors/pkg/errors"
)

var valid = validator.New()

// document 配置文件的拓扑部分；其他顶层键（server/log/tuya）由运行配置处理
type document struct {
	DeviceTypes map[string]*DeviceType   `yaml:"tuyaDeviceTypes"`
	Devices     map[string]*DeviceConfig `yaml:"tuyaDevices"`
	Exporter    *ExporterConfig          `yaml:"prometheusExporter"`
	Rest        map[string]any           `yaml:",inline"`
}

// LoadFile 读取并校验配置文件
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfig(fmt.Sprintf("read config file %s", path), err)
	}
	return Load(bytes.NewReader(data))
}

// Load 严格解析 YAML 并校验拓扑约束，任意一项失败都返回 ConfigError，不返回部分结果
func Load(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var raw document
	if err := dec.Decode(&raw); err != nil && err != io.EOF {
		return nil, errors.WrapConfig("decode config", err)
	}

	topo := &Topology{
		DeviceTypes: make(map[string]*DeviceType, len(raw.DeviceTypes)),
		Devices:     make(map[string]*DeviceConfig, len(raw.Devices)),
	}
	for name, dt := range raw.DeviceTypes {
		if dt == nil {
			dt = &DeviceType{}
		}
		dt.Name = name
		if dt.DataPoints == nil {
			dt.DataPoints = map[int]DataPointDef{}
		}
		for idx, dp := range dt.DataPoints {
			dp.Index = idx
			dt.DataPoints[idx] = dp
		}
		topo.DeviceTypes[name] = dt
	}
	for name, d := range raw.Devices {
		if d == nil {
			return nil, errors.Configf("Config validation error: device '%s' is empty", name).WithDevice(name)
		}
		d.Name = name
		topo.Devices[name] = d
	}

	if err := topo.validate(); err != nil {
		return nil, err
	}
	if raw.Exporter != nil {
		if err := validateExporter(topo, raw.Exporter); err != nil {
			return nil, err
		}
	}
	return &Document{Topology: topo, Exporter: raw.Exporter}, nil
}

func (t *Topology) validate() error {
	typeNames := make([]string, 0, len(t.DeviceTypes))
	for name := range t.DeviceTypes {
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)

	for _, name := range typeNames {
		if name == TypeGateway || name == TypeUnknown {
			return errors.Configf("Config validation error: device type name '%s' is reserved", name)
		}
		seen := map[string]int{}
		dt := t.DeviceTypes[name]
		for _, dp := range sortedDataPoints(dt) {
			if err := valid.Struct(dp); err != nil {
				return errors.WrapConfig(fmt.Sprintf("Config validation error: device type '%s' data point %d", name, dp.Index), err)
			}
			if other, dup := seen[dp.Name]; dup {
				return errors.Configf("Config validation error: device type '%s' has duplicate data point name '%s' (indexes %d and %d)",
					name, dp.Name, other, dp.Index)
			}
			seen[dp.Name] = dp.Index
		}
	}

	for _, name := range t.DeviceNames() {
		d := t.Devices[name]
		if err := valid.Struct(d); err != nil {
			return errors.WrapConfig(fmt.Sprintf("Config validation error: device '%s'", name), err).WithDevice(name)
		}
		if !d.IsSentinel() {
			if _, ok := t.DeviceTypes[d.DeviceType]; !ok {
				return errors.Configf("Config validation error: device '%s' has unknown type '%s'", name, d.DeviceType).WithDevice(name)
			}
		}
		if d.Parent != "" {
			if _, ok := t.Devices[d.Parent]; !ok {
				return errors.Configf("Config validation error: device '%s' has unknown parent '%s'", name, d.Parent).WithDevice(name)
			}
		}
	}

	// 父链必须无环
	for _, name := range t.DeviceNames() {
		visited := map[string]bool{name: true}
		for p := t.Devices[name].Parent; p != ""; p = t.Devices[p].Parent {
			if visited[p] {
				return errors.Configf("Config validation error: device '%s' has a parent cycle through '%s'", name, p).WithDevice(name)
			}
			visited[p] = true
		}
	}
	return nil
}

func validateExporter(t *Topology, e *ExporterConfig) error {
	if err := valid.Struct(e); err != nil {
		return errors.WrapConfig("Config validation error: prometheusExporter", err)
	}
	for _, name := range e.DeviceNames() {
		dev := e.TuyaDevices[name]
		if err := valid.Struct(dev); err != nil {
			return errors.WrapConfig(fmt.Sprintf("Config validation error: prometheusExporter device '%s'", name), err).WithDevice(name)
		}
		if _, ok := t.Devices[name]; !ok {
			return errors.Configf("Config validation error: prometheusExporter references unknown device '%s'", name).WithDevice(name)
		}
		for _, m := range dev.Measurements {
			if _, ok := t.DataPointByName(name, m); !ok {
				return errors.Configf("Config validation error: prometheusExporter device '%s' has no data point '%s'", name, m).
					WithDevice(name).WithDataPoint(m)
			}
		}
	}
	return nil
}

func sortedDataPoints(dt *DeviceType) []DataPointDef {
	dps := make([]DataPointDef, 0, len(dt.DataPoints))
	for _, dp := range dt.DataPoints {
		dps = append(dps, dp)
	}
	sort.Slice(dps, func(i, j int) bool { return dps[i].Index < dps[j].Index })
	return dps
}
