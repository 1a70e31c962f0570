package scheduler

import "context"

// Collector 单个轮询目标（一个设备）
type Collector interface {
	Name() string                      // 目标名称（设备名，唯一标识）
	Collect(ctx context.Context) error // 采集一次并更新指标
}

// Runner 轮询调度器生命周期
type Runner interface {
	Register(collector Collector)       // 注册目标
	Start(ctx context.Context)          // 后台启动循环
	Shutdown(ctx context.Context) error // 停止并等待循环退出
}
