package tuya

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tuya-sensors/pkg/errors"
)

const (
	statusPath      = "/status"
	subdevQueryPath = "/subdev-query"
	maxErrorBody    = 512
)

// BridgeDialer 通过 HTTP 桥接服务访问设备，桥接服务负责 Tuya 本地协议
type BridgeDialer struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// chain 请求体中的设备链，子设备携带父设备参数
type chain struct {
	Params
	Parent *chain `json:"parent,omitempty"`
}

type bridgeRequest struct {
	Device *chain `json:"device"`
}

// bridgeDevice 桥接设备句柄
type bridgeDevice struct {
	bridge *BridgeDialer
	params Params
	parent *bridgeDevice
}

// NewBridgeDialer 创建桥接客户端，timeout 作用于单次设备请求
func NewBridgeDialer(baseURL string, timeout time.Duration, logger *zap.Logger) *BridgeDialer {
	return &BridgeDialer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("tuya-bridge"),
	}
}

// Open 构建句柄，不访问网络；仅桥接句柄可以作为父设备
func (b *BridgeDialer) Open(p Params, parent Device) Device {
	d := &bridgeDevice{bridge: b, params: p}
	if pd, ok := parent.(*bridgeDevice); ok {
		d.parent = pd
	}
	return d
}

func (d *bridgeDevice) chain() *chain {
	c := &chain{Params: d.params}
	if d.parent != nil {
		c.Parent = d.parent.chain()
	}
	return c
}

// Status 查询设备原始状态
func (d *bridgeDevice) Status(ctx context.Context) (map[string]any, error) {
	return d.bridge.post(ctx, statusPath, d.chain())
}

// SubdevQuery 查询网关子设备
func (d *bridgeDevice) SubdevQuery(ctx context.Context) (map[string]any, error) {
	return d.bridge.post(ctx, subdevQueryPath, d.chain())
}

func (b *BridgeDialer) post(ctx context.Context, path string, c *chain) (map[string]any, error) {
	body, err := json.Marshal(&bridgeRequest{Device: c})
	if err != nil {
		return nil, fmt.Errorf("marshal bridge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build bridge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bridge request %s: %w", path, err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read bridge response: %w", err)
	}
	b.logger.Debug("bridge response",
		zap.String("path", path),
		zap.String("device_id", c.DeviceID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(rawBody) > maxErrorBody {
			rawBody = rawBody[:maxErrorBody]
		}
		return nil, fmt.Errorf("bridge %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(rawBody)))
	}

	return decodeObject(rawBody)
}

// decodeObject 解析 JSON 对象；null 返回 nil map，数字整数转 int64，其余转 float64
func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, errors.ResponseParsef("Malformed status response: %v", err)
	}
	if v == nil {
		return nil, nil
	}
	obj, ok := normalize(v).(map[string]any)
	if !ok {
		return nil, errors.ResponseParsef("Status response is not an object: %s", string(data))
	}
	return obj, nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, item := range t {
			t[k] = normalize(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalize(item)
		}
		return t
	default:
		return v
	}
}
