package uds

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// HandlerFunc answers one query. Handlers run on the connection
// goroutine and must not block.
type HandlerFunc func(Query) *Reply

// Server answers CLI queries on the agent's status socket.
type Server struct {
	path     string
	logger   logrus.FieldLogger
	deadline time.Duration

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	ln     net.Listener
	wg     sync.WaitGroup
	closed chan struct{}
	once   sync.Once
}

func NewServer(path string, logger logrus.FieldLogger) *Server {
	return &Server{
		path:     path,
		logger:   logger,
		deadline: 10 * time.Second,
		handlers: make(map[string]HandlerFunc),
		closed:   make(chan struct{}),
	}
}

// Handle registers the handler for a command. Later registrations of
// the same command win.
func (s *Server) Handle(command string, fn HandlerFunc) {
	s.mu.Lock()
	s.handlers[command] = fn
	s.mu.Unlock()
}

// Start listens on the socket path and serves queries until Stop. A
// stale socket file from a previous run is removed first; the live
// single-instance guard is the pidfile, not the socket.
func (s *Server) Start() error {
	_ = os.Remove(s.path)

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.path, err)
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		_ = ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.ln = ln

	s.wg.Add(1)
	go s.serve()
	return nil
}

// Stop closes the listener, waits for in-flight connections, and
// removes the socket file. Safe to call more than once.
func (s *Server) Stop() error {
	s.once.Do(func() {
		close(s.closed)
		if s.ln != nil {
			_ = s.ln.Close()
		}
	})
	s.wg.Wait()
	_ = os.Remove(s.path)
	return nil
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
				s.logger.WithError(err).Warn("status socket accept failed")
				continue
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.answer(conn)
		}()
	}
}

// answer reads one query line and writes one reply line.
func (s *Server) answer(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(s.deadline))

	line, err := readLine(conn)
	if err != nil {
		s.logger.WithError(err).Debug("status socket read failed")
		return
	}

	var q Query
	reply := func() *Reply {
		if err := json.Unmarshal(line, &q); err != nil {
			return Fail("malformed query: %v", err)
		}
		return s.dispatch(q)
	}()

	out, err := json.Marshal(reply)
	if err != nil {
		s.logger.WithError(err).Debug("status socket encode failed")
		return
	}
	if _, err := conn.Write(append(out, '\n')); err != nil {
		s.logger.WithError(err).Debug("status socket write failed")
	}
}

func (s *Server) dispatch(q Query) (reply *Reply) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("panic answering %q: %v", q.Command, r)
			reply = Fail("internal error")
		}
	}()

	if q.Version != Version {
		return Fail("protocol version %d not supported (agent speaks %d)", q.Version, Version)
	}

	s.mu.RLock()
	fn, ok := s.handlers[q.Command]
	s.mu.RUnlock()
	if !ok {
		return Fail("unknown command %q", q.Command)
	}
	return fn(q)
}

// readLine reads up to and including one newline, bounded by
// MaxLineBytes.
func readLine(conn net.Conn) ([]byte, error) {
	r := bufio.NewReaderSize(conn, 4096)
	var line []byte
	for {
		chunk, more, err := r.ReadLine()
		if err != nil {
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > MaxLineBytes {
			return nil, fmt.Errorf("query exceeds %d bytes", MaxLineBytes)
		}
		if !more {
			return line, nil
		}
	}
}
