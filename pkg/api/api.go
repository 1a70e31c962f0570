// Package api 提供按需查询设备测量值的 HTTP 处理器
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/tuya-sensors/pkg/devices"
	"github.com/tuya-sensors/pkg/errors"
	"github.com/tuya-sensors/pkg/logger"
	"github.com/tuya-sensors/pkg/topology"
)

// DefaultWorkers 默认设备查询并发数
const DefaultWorkers = 10

// Measurer 测量值来源，由 devices.Service 实现
type Measurer interface {
	Measurements(ctx context.Context, name string, opts ...devices.Option) (map[string]any, error)
}

// Handler 查询处理器，设备 I/O 在独立的有界工作池中执行
type Handler struct {
	topo   *topology.Topology
	source Measurer
	pool   *semaphore.Weighted
	logger *zap.Logger
}

// SensorResponse 成功应答
type SensorResponse struct {
	Measurements map[string]any `json:"measurements"`
}

// ErrorResponse 失败应答
type ErrorResponse struct {
	Detail string `json:"detail"`
}

type queryResult struct {
	measurements map[string]any
	err          error
}

// NewHandler 创建查询处理器，workers 不大于 0 时使用 DefaultWorkers
func NewHandler(topo *topology.Topology, source Measurer, workers int, log *zap.Logger) *Handler {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Handler{
		topo:   topo,
		source: source,
		pool:   semaphore.NewWeighted(int64(workers)),
		logger: log.Named("api"),
	}
}

// Query 在工作池中读取设备测量值（不附加单位），等待结果或 ctx 结束
func (h *Handler) Query(ctx context.Context, name string) (map[string]any, error) {
	if _, ok := h.topo.Device(name); !ok {
		return nil, errors.UnknownDevice(name)
	}

	if err := h.pool.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	done := make(chan queryResult, 1)
	go func() {
		defer h.pool.Release(1)
		m, err := h.source.Measurements(ctx, name, devices.WithoutUnits())
		done <- queryResult{measurements: m, err: err}
	}()

	select {
	case r := <-done:
		return r.measurements, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Register 注册 GET /sensors/{name}
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/sensors/{name}", h.getSensor).Methods(http.MethodGet)
}

func (h *Handler) getSensor(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	measurements, err := h.Query(r.Context(), name)
	if err == nil {
		h.writeJSON(w, http.StatusOK, SensorResponse{Measurements: measurements})
		return
	}

	status, detail := statusOf(err)
	fields := append([]zap.Field{zap.String("sensor", name), zap.Int("status", status)}, logger.ErrorFields(err)...)
	if status == http.StatusNotFound {
		h.logger.Debug("sensor not found", fields...)
	} else {
		h.logger.Error("sensor query failed", fields...)
	}
	h.writeJSON(w, status, ErrorResponse{Detail: detail})
}

// statusOf 错误分类到 HTTP 状态码
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, errors.ErrArgument):
		return http.StatusNotFound, "Sensor not found"
	case errors.Is(err, errors.ErrResponseParse), errors.Is(err, errors.ErrDeviceIO):
		return http.StatusBadGateway, err.Error()
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

// writeJSON 先完整编码再写状态码；编码失败时改写 500
// 浮点数按 encoding/json 的默认形式输出，整数值的 20.0 编码为 20
func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		h.logger.Error("encode response failed", zap.Int("status", status), zap.Error(err))
		status = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(`{"detail":"Internal Server Error"}` + "\n")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Debug("write response failed", zap.Error(err))
	}
}
