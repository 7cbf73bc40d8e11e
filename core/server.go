package core

import (
	"net"
	"sync"
	"time"

	"github.com/Redslayer112/lantransfer/config"
	"github.com/Redslayer112/lantransfer/logger"
)

// Server owns the listening socket and the shared running flag. Each
// accepted connection is dispatched to its own handler goroutine;
// handlers are fire-and-forget and there is no cap on how many run at
// once. Stopping the server stops accepting new connections only;
// in-flight transfers run to their own completion.
type Server struct {
	cfg      *config.Config
	receiver *Receiver
	log      logger.Logger

	mu      sync.Mutex
	running bool
	ln      net.Listener
	ready   chan struct{}

	failedMU sync.Mutex
	failed   []FailedValidation
}

func NewServer(cfg *config.Config, dir string, log logger.Logger) *Server {
	s := &Server{
		cfg:   cfg,
		log:   log,
		ready: make(chan struct{}),
	}

	r := NewReceiver(cfg, dir, log)
	r.OnFailedValidation = s.recordFailure
	s.receiver = r

	return s
}

// Receiver exposes the per-connection engine so callers can attach a
// progress factory before starting.
func (s *Server) Receiver() *Receiver { return s.receiver }

// Start binds and listens on addr, then runs the accept loop until
// Stop is called. It blocks: run it on its own goroutine and use
// WaitReady to learn whether the bind succeeded. Bind failures are
// classified (port in use, address not assignable, other) and leave
// the readiness signal unfired.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	// Re-arm the one-shot readiness signal if a previous Start
	// consumed it.
	select {
	case <-s.ready:
		s.ready = make(chan struct{})
	default:
	}
	ready := s.ready
	s.mu.Unlock()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return classifyBind(addr, err)
	}

	s.mu.Lock()
	s.running = true
	s.ln = ln
	s.mu.Unlock()
	close(ready)

	s.log.WithStr("addr", ln.Addr().String()).Info("listening")
	s.acceptLoop(ln)

	s.mu.Lock()
	// Only clear state still owned by this Start call; a Stop (or a
	// later restart) may have replaced it already.
	if s.ln == ln {
		s.ln = nil
		s.running = false
	}
	s.mu.Unlock()
	ln.Close()

	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	tl, _ := ln.(*net.TCPListener)

	for {
		if !s.IsRunning() {
			return
		}

		// Bounded accept so an external Stop is noticed promptly even
		// without a pending connection.
		if tl != nil {
			tl.SetDeadline(time.Now().Add(s.cfg.AcceptTimeout()))
		}

		conn, err := ln.Accept()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if s.IsRunning() {
				s.log.WithStr("error", err.Error()).Warn("accept failed")
			}
			return
		}

		s.log.WithStr("peer", conn.RemoteAddr().String()).Info("connection accepted")
		go func() {
			if err := s.receiver.Handle(conn); err != nil {
				s.log.WithStr("peer", conn.RemoteAddr().String()).
					WithStr("error", err.Error()).
					Error("transfer failed")
			}
		}()
	}
}

// WaitReady blocks until the current Start call has bound its
// listener. A timeout means startup failed.
func (s *Server) WaitReady(timeout time.Duration) error {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-time.After(timeout):
		return &TimeoutError{Phase: "server startup"}
	}
}

// Addr reports the bound listen address, or nil before a successful
// Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop ends the accept loop and closes the listening socket, which
// also unblocks an in-progress Accept. Idempotent. Already-accepted
// client connections are unaffected.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	if s.ln != nil {
		s.ln.Close()
		s.ln = nil
	}
}

func (s *Server) recordFailure(v FailedValidation) {
	s.failedMU.Lock()
	s.failed = append(s.failed, v)
	s.failedMU.Unlock()
}

// FailedValidations drains the integrity failures accumulated by
// handler goroutines. Call it after the serving loop has stopped.
func (s *Server) FailedValidations() []FailedValidation {
	s.failedMU.Lock()
	defer s.failedMU.Unlock()

	out := s.failed
	s.failed = nil
	return out
}
