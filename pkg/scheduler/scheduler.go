// Package scheduler 按固定周期顺序轮询已注册目标，失败时退避
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tuya-sensors/pkg/logger"
)

const (
	// FailureBackoff 失败后的重试间隔
	FailureBackoff = 5 * time.Second
	// RepeatedFailureThrottle 连续两个周期失败后的重试间隔
	RepeatedFailureThrottle = 60 * time.Second
)

// Scheduler 实现 Runner 接口
type Scheduler struct {
	collectors []Collector
	interval   time.Duration
	clock      clockwork.Clock
	logger     *zap.Logger

	errorsTotal *prometheus.CounterVec
	duration    *prometheus.HistogramVec

	mu         sync.Mutex
	lastFailed bool
	cancel     context.CancelFunc
	done       chan struct{}
}

// Option 调度器选项
type Option func(*Scheduler)

// WithClock 替换时钟（测试使用 clockwork.FakeClock）
func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithMetrics 记录每个目标的失败次数与采集耗时，标签为 device
func WithMetrics(errorsTotal *prometheus.CounterVec, duration *prometheus.HistogramVec) Option {
	return func(s *Scheduler) {
		s.errorsTotal = errorsTotal
		s.duration = duration
	}
}

// New 创建调度器
func New(interval time.Duration, log *zap.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		collectors: make([]Collector, 0),
		interval:   interval,
		clock:      clockwork.NewRealClock(),
		logger:     log.Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register 注册目标，按注册顺序采集
func (s *Scheduler) Register(c Collector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collectors = append(s.collectors, c)
}

// Collectors 返回已注册目标的副本
func (s *Scheduler) Collectors() []Collector {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]Collector, len(s.collectors))
	copy(copied, s.collectors)
	return copied
}

// RunCycle 顺序采集一次所有目标，返回下次采集前应等待的时长。
// 任一目标失败即放弃本批剩余目标。
func (s *Scheduler) RunCycle(ctx context.Context) time.Duration {
	start := s.clock.Now()

	if err := s.collectAll(ctx); err != nil {
		s.mu.Lock()
		repeated := s.lastFailed
		s.lastFailed = true
		s.mu.Unlock()

		if repeated {
			s.logger.Warn("collection failed again, throttling", zap.Duration("delay", RepeatedFailureThrottle))
			return RepeatedFailureThrottle
		}
		return FailureBackoff
	}

	s.mu.Lock()
	s.lastFailed = false
	s.mu.Unlock()

	delay := s.interval - s.clock.Since(start)
	if delay < 0 {
		delay = 0
	}
	return delay
}

func (s *Scheduler) collectAll(ctx context.Context) error {
	for _, c := range s.Collectors() {
		begin := s.clock.Now()
		err := c.Collect(ctx)
		if s.duration != nil {
			s.duration.WithLabelValues(c.Name()).Observe(s.clock.Since(begin).Seconds())
		}
		if err != nil {
			if s.errorsTotal != nil {
				s.errorsTotal.WithLabelValues(c.Name()).Inc()
			}
			fields := append([]zap.Field{zap.String("collector", c.Name())}, logger.ErrorFields(err)...)
			s.logger.Error("collection failed, skipping remaining targets", fields...)
			return err
		}
		s.logger.Debug("collected", zap.String("collector", c.Name()))
	}
	return nil
}

// Run 阻塞循环采集，直到 ctx 结束；数据或设备错误不会终止循环
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("poll loop started",
		zap.Duration("interval", s.interval),
		zap.Int("targets", len(s.Collectors())),
	)
	for ctx.Err() == nil {
		delay := s.RunCycle(ctx)
		s.logger.Debug("sleeping", zap.Duration("delay", delay))
		select {
		case <-ctx.Done():
		case <-s.clock.After(delay):
		}
	}
	s.logger.Info("poll loop stopped", zap.Error(ctx.Err()))
	return nil
}

// Start 后台启动 Run
func (s *Scheduler) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		_ = s.Run(runCtx)
	}()
}

// Shutdown 取消循环并等待其退出，或直到 ctx 超时
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}

	s.logger.Info("shutting down poll loop")
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
