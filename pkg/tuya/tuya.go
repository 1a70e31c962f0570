// Package tuya 定义与 Tuya 设备通信协作方之间的边界。
//
// 协议本身由外部桥接服务实现，这里只描述核心需要的句柄接口与连接参数。
package tuya

import "context"

// Params 打开设备句柄所需的连接参数
type Params struct {
	DeviceID string   `json:"deviceId"`
	CID      string   `json:"cid,omitempty"`
	Address  string   `json:"address,omitempty"`
	LocalKey string   `json:"localKey,omitempty"`
	Version  *float64 `json:"version,omitempty"`
}

// Device 设备句柄；返回 nil map 表示设备应答为空
type Device interface {
	// Status 查询设备原始状态
	Status(ctx context.Context) (map[string]any, error)
	// SubdevQuery 查询网关下挂的子设备
	SubdevQuery(ctx context.Context) (map[string]any, error)
}

// Dialer 构建设备句柄，不产生网络 I/O；子设备句柄内嵌其父设备句柄
type Dialer interface {
	Open(p Params, parent Device) Device
}
