// Package chassis runs the HTTP server of the registry.
//
// The API is served over TCP, with TLS by default (HTTP/1.1 + HTTP/2) or in
// plain HTTP when Insecure is set. With HTTP3 enabled, the same handler is also
// served over QUIC on the UDP side of the same port, and TCP responses carry an
// Alt-Svc header so clients can upgrade.
//
// Without certificate files, a self-signed ECDSA P-256 cert is generated.
package chassis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

// QUIC transport settings.
const (
	DefaultIdleTimeout = 5 * time.Minute
	DefaultKeepAlive   = 30 * time.Second
)

// ErrHTTP3NeedsTLS is returned by New when HTTP/3 is asked for without TLS.
var ErrHTTP3NeedsTLS = errors.New("HTTP/3 requires TLS")

// Server serves one handler over TCP and, optionally, QUIC.
type Server struct {
	addr      string
	logger    *slog.Logger
	tlsCfg    *tls.Config
	http3     bool
	handler   http.Handler
	tcpServer *http.Server
	tcpLn     net.Listener
	h3Server  *http3.Server
	quicLn    *quic.Listener
	mu        sync.Mutex
}

// Config holds configuration for the chassis server.
type Config struct {
	// Addr is the listen address, e.g. ":8080". TCP and UDP share the port.
	Addr     string
	// TLS, when nil, is loaded from CertFile/KeyFile or generated.
	TLS      *tls.Config
	CertFile string
	KeyFile  string
	// Insecure serves plain HTTP.
	Insecure bool
	HTTP3    bool
	Handler  http.Handler
	Logger   *slog.Logger
}

func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Insecure && cfg.HTTP3 {
		return nil, ErrHTTP3NeedsTLS
	}

	tlsCfg := cfg.TLS
	if tlsCfg == nil && !cfg.Insecure {
		var err error
		if cfg.CertFile != "" && cfg.KeyFile != "" {
			tlsCfg, err = ProductionTLSConfig(cfg.CertFile, cfg.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("load TLS cert: %w", err)
			}
			cfg.Logger.Info("TLS: production certs loaded")
		} else {
			tlsCfg, err = DevelopmentTLSConfig()
			if err != nil {
				return nil, fmt.Errorf("generate dev TLS: %w", err)
			}
			cfg.Logger.Info("TLS: self-signed dev cert generated")
		}
	}
	if cfg.Insecure {
		tlsCfg = nil
	}

	return &Server{
		addr:    cfg.Addr,
		logger:  cfg.Logger,
		tlsCfg:  tlsCfg,
		http3:   cfg.HTTP3,
		handler: cfg.Handler,
	}, nil
}

// securityHeaders wraps an http.Handler and adds standard security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// altSvcMiddleware advertises HTTP/3 on port.
func altSvcMiddleware(port int, next http.Handler) http.Handler {
	altSvc := fmt.Sprintf(`h3=":%d"; ma=86400`, port)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Alt-Svc", altSvc)
		next.ServeHTTP(w, r)
	})
}

// Listen binds the TCP listener and, with HTTP/3, the UDP listener on the
// same port.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		ln  net.Listener
		err error
	)
	if s.tlsCfg != nil {
		tcpTLS := s.tlsCfg.Clone()
		tcpTLS.NextProtos = []string{"h2", "http/1.1"}
		ln, err = tls.Listen("tcp", s.addr, tcpTLS)
	} else {
		ln, err = net.Listen("tcp", s.addr)
	}
	if err != nil {
		return fmt.Errorf("TCP listen: %w", err)
	}
	s.tcpLn = ln

	handler := securityHeaders(s.handler)
	if s.http3 {
		port := ln.Addr().(*net.TCPAddr).Port
		udpAddr := net.JoinHostPort(hostOf(s.addr), strconv.Itoa(port))

		quicTLS := s.tlsCfg.Clone()
		quicTLS.NextProtos = []string{http3.NextProtoH3}
		qCfg := &quic.Config{
			MaxStreamReceiveWindow:     10 * 1024 * 1024,
			MaxConnectionReceiveWindow: 50 * 1024 * 1024,
			MaxIdleTimeout:             DefaultIdleTimeout,
			KeepAlivePeriod:            DefaultKeepAlive,
		}
		qln, err := quic.ListenAddr(udpAddr, quicTLS, qCfg)
		if err != nil {
			ln.Close()
			return fmt.Errorf("QUIC listen: %w", err)
		}
		s.quicLn = qln
		s.h3Server = &http3.Server{Handler: handler}
		handler = altSvcMiddleware(port, handler)
	}

	s.tcpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return ""
	}
	return host
}

// Addr is the bound TCP address, nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tcpLn == nil {
		return nil
	}
	return s.tcpLn.Addr()
}

// Start listens and serves until ctx is done or a listener fails.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve serves on the listeners bound by Listen.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	tcpServer, tcpLn, quicLn, h3 := s.tcpServer, s.tcpLn, s.quicLn, s.h3Server
	s.mu.Unlock()
	if tcpLn == nil {
		return errors.New("chassis: Serve called before Listen")
	}

	proto := "HTTP/1.1+HTTP/2 (TLS)"
	if s.tlsCfg == nil {
		proto = "HTTP/1.1 (plain)"
	}
	s.logger.Info("chassis started", "addr", tcpLn.Addr().String(), "tcp", proto, "http3", quicLn != nil)

	errCh := make(chan error, 2)
	go func() {
		if err := tcpServer.Serve(tcpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("TCP: %w", err)
		}
	}()

	if quicLn != nil {
		go func() {
			for {
				conn, err := quicLn.Accept(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					errCh <- fmt.Errorf("QUIC accept: %w", err)
					return
				}
				if alpn := conn.ConnectionState().TLS.NegotiatedProtocol; alpn != http3.NextProtoH3 {
					s.logger.Warn("unknown ALPN, closing", "alpn", alpn, "remote", conn.RemoteAddr())
					conn.CloseWithError(quic.ApplicationErrorCode(0x11), "unsupported ALPN: "+alpn)
					continue
				}
				go func() {
					if err := h3.ServeQUICConn(conn); err != nil {
						s.logger.Debug("HTTP/3 conn done", "remote", conn.RemoteAddr(), "error", err)
					}
				}()
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Stop gracefully shuts down the TCP server and closes the QUIC listener.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("chassis stopping")

	var firstErr error
	if s.tcpServer != nil {
		if err := s.tcpServer.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.quicLn != nil {
		if err := s.quicLn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.h3Server != nil {
		if err := s.h3Server.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.logger.Info("chassis stopped")
	return firstErr
}
