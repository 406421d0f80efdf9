package ingestor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/event-buffer/internal/config"
)

// UDPListenerFactory creates a UDP connection.
type UDPListenerFactory func(network, address string) (net.PacketConn, error)

// TCPListenerFactory creates a TCP listener.
type TCPListenerFactory func(network, address string) (net.Listener, error)

// SocketOption configures the SocketIngestor.
type SocketOption func(*SocketIngestor)

// WithUDPListenerFactory sets a custom UDP listener factory.
func WithUDPListenerFactory(f UDPListenerFactory) SocketOption {
	return func(s *SocketIngestor) {
		s.udpFactory = f
	}
}

// WithTCPListenerFactory sets a custom TCP listener factory.
func WithTCPListenerFactory(f TCPListenerFactory) SocketOption {
	return func(s *SocketIngestor) {
		s.tcpFactory = f
	}
}

// SocketIngestor receives event lines from local applications over UDP or TCP.
// Each UDP datagram may carry several newline separated lines; TCP is a line stream.
type SocketIngestor struct {
	cfg        config.SocketSourceConfig
	name       string
	udpFactory UDPListenerFactory
	tcpFactory TCPListenerFactory
	logger     logger.ILogger

	mu   sync.Mutex
	addr net.Addr
}

// NewSocketIngestor creates a new socket ingestor.
func NewSocketIngestor(cfg config.SocketSourceConfig, log logger.ILogger, opts ...SocketOption) *SocketIngestor {
	s := &SocketIngestor{
		cfg:    cfg,
		name:   "socket",
		logger: log.SubLogger("SocketIngestor"),
	}

	// Default UDP factory
	s.udpFactory = func(network, address string) (net.PacketConn, error) {
		addr, err := net.ResolveUDPAddr(network, address)
		if err != nil {
			return nil, err
		}
		return net.ListenUDP(network, addr)
	}

	// Default TCP factory
	s.tcpFactory = net.Listen

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the ingestor identifier.
func (s *SocketIngestor) Name() string {
	return s.name
}

// Addr returns the bound address once Start is listening, nil before.
func (s *SocketIngestor) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *SocketIngestor) setAddr(a net.Addr) {
	s.mu.Lock()
	s.addr = a
	s.mu.Unlock()
	s.logger.Infof("listening for events: network=%s, address=%s", s.cfg.Network, a)
}

// Start listens until the context is cancelled.
func (s *SocketIngestor) Start(ctx context.Context, rec Recorder) error {
	switch s.cfg.Network {
	case "udp":
		return s.startUDP(ctx, rec)
	case "tcp":
		return s.startTCP(ctx, rec)
	default:
		return fmt.Errorf("unsupported socket network: %s", s.cfg.Network)
	}
}

func (s *SocketIngestor) startUDP(ctx context.Context, rec Recorder) error {
	conn, err := s.udpFactory("udp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listening on UDP: %w", err)
	}
	defer conn.Close()
	s.setAddr(conn.LocalAddr())

	// Handle context cancellation
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 65535) // Max UDP packet size
	for {
		n, remote, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warningf("UDP read error: %v", err)
			continue
		}

		for _, line := range bytes.Split(buf[:n], []byte{'\n'}) {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			if !recordLine(rec, line, s.logger) {
				s.logger.Debugf("invalid datagram from %s", remote)
			}
		}
	}
}

func (s *SocketIngestor) startTCP(ctx context.Context, rec Recorder) error {
	listener, err := s.tcpFactory("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listening on TCP: %w", err)
	}
	defer listener.Close()
	s.setAddr(listener.Addr())

	var wg sync.WaitGroup
	defer wg.Wait()

	// Handle context cancellation
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warningf("TCP accept error: %v", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleTCPConnection(ctx, conn, rec)
		}()
	}
}

// handleTCPConnection records event lines from one TCP connection.
func (s *SocketIngestor) handleTCPConnection(ctx context.Context, conn net.Conn, rec Recorder) {
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	scanner := bufio.NewScanner(conn)
	// Increase buffer size for long lines
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		recordLine(rec, line, s.logger)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		s.logger.Debugf("connection from %s closed: %v", conn.RemoteAddr(), err)
	}
}
