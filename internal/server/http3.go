package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cod3vil/niuss-sub001/pkg/logger"

	"github.com/quic-go/quic-go/http3"
	"go.uber.org/zap"
)

func withALPN(tlsConfig *tls.Config, protos ...string) *tls.Config {
	if tlsConfig != nil && tlsConfig.NextProtos == nil {
		tlsConfig.NextProtos = protos
	}
	return tlsConfig
}

// HTTP2Server 主 HTTP 服务器，TLS 下协商 h2
type HTTP2Server struct {
	inner *http.Server
}

// NewHTTP2Server 创建主 HTTP 服务器
func NewHTTP2Server(addr string, handler http.Handler, tlsConfig *tls.Config, readTimeout, writeTimeout time.Duration) *HTTP2Server {
	return &HTTP2Server{
		inner: &http.Server{
			Addr:         addr,
			Handler:      handler,
			TLSConfig:    withALPN(tlsConfig, "h2", "http/1.1"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
	}
}

// Start 以 TLS 方式启动
func (s *HTTP2Server) Start(certFile, keyFile string) error {
	logger.Info("🚀 HTTP 服务器启动",
		zap.String("addr", s.inner.Addr),
		zap.String("protocol", "TLS/HTTP2"))

	err := s.inner.ListenAndServeTLS(certFile, keyFile)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// StartInsecure 以明文方式启动（仅开发环境）
func (s *HTTP2Server) StartInsecure() error {
	logger.Warn("⚠️  HTTP 服务器启动 (非加密模式)",
		zap.String("addr", s.inner.Addr))

	err := s.inner.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown 优雅关闭
func (s *HTTP2Server) Shutdown(ctx context.Context) error {
	logger.Info("🛑 正在关闭 HTTP 服务器...")
	return s.inner.Shutdown(ctx)
}

// HTTP3Server 可选的 QUIC 前端，与主服务器共用同一个 handler
type HTTP3Server struct {
	inner *http3.Server
}

// NewHTTP3Server 创建 HTTP/3 服务器，必须提供 TLS 配置
func NewHTTP3Server(addr string, handler http.Handler, tlsConfig *tls.Config) *HTTP3Server {
	return &HTTP3Server{
		inner: &http3.Server{
			Addr:      addr,
			Handler:   handler,
			TLSConfig: withALPN(tlsConfig, "h3"),
		},
	}
}

// Start 启动 QUIC 监听
func (s *HTTP3Server) Start() error {
	logger.Info("🚀 HTTP/3 服务器启动",
		zap.String("addr", s.inner.Addr),
		zap.String("protocol", "QUIC/HTTP3"))

	if err := s.inner.ListenAndServe(); err != nil {
		return fmt.Errorf("http3 server: %w", err)
	}
	return nil
}

// Shutdown 关闭 QUIC 监听
func (s *HTTP3Server) Shutdown(ctx context.Context) error {
	logger.Info("🛑 正在关闭 HTTP/3 服务器...")
	return s.inner.Close()
}
