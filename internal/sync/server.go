package sync

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"
)

// Server accepts TCP clients and registers them with the hub. Incoming
// lines are read and discarded to detect disconnects.
type Server struct {
	Addr string
	Hub  *Hub

	logger *zap.Logger
	mu     sync.Mutex
	ln     net.Listener
	wg     sync.WaitGroup
}

func NewServer(addr string, hub *Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Addr: addr, Hub: hub, logger: logger}
}

// Run listens until ctx is done or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.logger.Info("tcp sync listening", zap.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.Hub.closeTCP()
				s.wg.Wait()
				return nil
			}
			s.logger.Warn("tcp accept", zap.Error(err))
			continue
		}

		s.Hub.Welcome(conn)
		s.Hub.Add(conn)
		s.logger.Debug("tcp client connected", zap.String("remote", conn.RemoteAddr().String()))

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer func() {
				s.Hub.Remove(c)
				s.logger.Debug("tcp client disconnected", zap.String("remote", c.RemoteAddr().String()))
			}()

			sc := bufio.NewScanner(c)
			for sc.Scan() {
			}
		}(conn)
	}
}

// ListenAddr returns the bound address once Run is listening.
func (s *Server) ListenAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}
