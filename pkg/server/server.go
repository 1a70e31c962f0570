// Package server 封装 HTTP 服务：路由、请求日志、健康检查与可选的指标和查询端点
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tuya-sensors/pkg/config"
)

// RequestIDHeader 请求 ID 响应头
const RequestIDHeader = "X-Request-Id"

const defaultShutdownTimeout = 5 * time.Second

// Registrar 向路由注册端点（api.Handler 实现）
type Registrar interface {
	Register(r *mux.Router)
}

// Server HTTP服务实例，封装核心依赖和配置
type Server struct {
	cfg      config.ServerConfig
	logger   *zap.Logger
	server   *http.Server
	router   *mux.Router
	registry *prometheus.Registry
	api      Registrar
	listener net.Listener
}

// Option 服务选项
type Option func(*Server)

// WithAPI 注册查询端点
func WithAPI(api Registrar) Option {
	return func(s *Server) { s.api = api }
}

// WithMetrics 暴露 /metrics
func WithMetrics(registry *prometheus.Registry) Option {
	return func(s *Server) { s.registry = registry }
}

// statusWriter 包装ResponseWriter，捕获状态码
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader 捕获状态码
func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// NewHTTPServer 创建HTTP服务实例
func NewHTTPServer(cfg config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	srv := &Server{
		cfg:    cfg,
		logger: logger.Named("http"),
		router: mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	// 注册核心端点
	srv.registerEndpoints()
	srv.router.Use(srv.logMiddleware)

	srv.server = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ErrorLog:     zap.NewStdLog(srv.logger),
	}
	return srv
}

// Handler 返回完整路由（含中间件）
func (s *Server) Handler() http.Handler { return s.router }

// logMiddleware 统一日志记录，并为每个请求分配 ID
func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, requestID)
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		s.logger.Info(
			"HTTP request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("url", r.URL.String()),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// registerEndpoints 注册核心路由
func (s *Server) registerEndpoints() {
	links := []string{`<a href="/health">/health - 健康检查</a>`}

	if s.registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
			ErrorLog: zap.NewStdLog(s.logger),
		}))
		links = append(links, `<a href="/metrics">/metrics - Prometheus 指标暴露</a>`)
	}
	if s.api != nil {
		s.api.Register(s.router)
		links = append(links, `<code>/sensors/{name}</code> - 设备测量值查询`)
	}

	// /health 端点
	s.router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	// 根路径 / 显示 HTML 页面，包含可用端点
	s.router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(indexHTML(links)))
	}).Methods(http.MethodGet)
}

func indexHTML(links []string) string {
	html := `<!DOCTYPE html>
<html lang="zh-CN">
<head>
	<meta charset="UTF-8">
	<title>Tuya Sensors</title>
	<style>
		body { font-family: Arial, sans-serif; margin: 40px; }
		h1 { color: #333; }
		a, p.link { display: block; margin: 8px 0; font-size: 18px; }
		code { background-color: #f0f0f0; padding: 2px 4px; }
	</style>
</head>
<body>
	<h1>Tuya Sensors</h1>
	<p>Service is running.</p>
	<h2>Available Endpoints:</h2>
`
	for _, l := range links {
		html += "\t<p class=\"link\">" + l + "</p>\n"
	}
	return html + "</body>\n</html>\n"
}

// Start 启动HTTP服务（非阻塞），监听失败时立即返回错误
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.logger.Info("starting HTTP server", zap.String("listen_addr", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()
	return nil
}

// Addr 实际监听地址，Start 之前返回配置地址
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Shutdown 优雅关闭HTTP服务
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.logger.Warn("shutdown timeout exceeded")
			return nil
		}
		s.logger.Error("HTTP server shutdown failed", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server shutdown successfully")
	return nil
}

// WaitForShutdown 阻塞直到收到 SIGINT/SIGTERM 或 ctx 结束，然后执行 shutdownFunc
func WaitForShutdown(ctx context.Context, logger *zap.Logger, shutdownFunc func(context.Context) error) {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("service running, waiting for SIGINT/SIGTERM...")
	<-sigCtx.Done()
	logger.Info("shutdown requested", zap.Error(context.Cause(sigCtx)))

	if shutdownFunc == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := shutdownFunc(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return
	}
	logger.Info("graceful shutdown completed successfully")
}
