// Package ipc carries sub-query traffic between sandboxed code and the
// engine over a loopback TCP socket. Frames are a 4-byte big-endian length
// prefix followed by UTF-8 JSON, one request per connection.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Frame length cap; a corrupted header must not drive allocation.
const maxFrameSize = 64 << 20

// Connections held open longer than this are abandoned.
const connTimeout = 2 * time.Minute

// Callback answers one sub-query from sandboxed code. textSlice is nil when
// the caller passed no slice and the callee picks the context itself.
type Callback func(prompt string, textSlice *string) (string, error)

// Request is one framed call from the sandbox.
type Request struct {
	Prompt    string  `json:"prompt"`
	TextSlice *string `json:"textSlice"`
}

// Response carries either a result or an error, never both.
type Response struct {
	Result *string `json:"result,omitempty"`
	Error  *string `json:"error,omitempty"`
}

// Server accepts sub-query requests on an OS-assigned loopback port and
// dispatches them to a callback, one goroutine per connection.
type Server struct {
	logger   *zap.Logger
	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

func NewServer(logger *zap.Logger) *Server {
	return &Server{logger: logger}
}

// Start binds a loopback port and serves callback until Stop. It returns the
// bound port for the sandbox to connect to.
func (s *Server) Start(callback Callback) (int, error) {
	if callback == nil {
		return 0, errors.New("callback is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return 0, errors.New("server already started")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("bind loopback: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop(ln, callback)

	return ln.Addr().(*net.TCPAddr).Port, nil
}

// Stop closes the listener and waits for in-flight handlers. Safe to call
// more than once; the server can be started again afterwards.
func (s *Server) Stop() {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()

	if ln == nil {
		return
	}
	_ = ln.Close()
	s.wg.Wait()
}

func (s *Server) acceptLoop(ln net.Listener, callback Callback) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("Sub-query listener stopped", zap.Error(err))
			}
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn, callback)
		}()
	}
}

func (s *Server) handle(conn net.Conn, callback Callback) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	payload, err := ReadFrame(conn)
	if err != nil {
		s.logger.Warn("Bad frame from sandbox", zap.Error(err))
		return
	}

	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		s.respondError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}

	result, err := callback(req.Prompt, req.TextSlice)
	if err != nil {
		s.respondError(conn, err.Error())
		return
	}
	s.respond(conn, Response{Result: &result})
}

func (s *Server) respond(conn net.Conn, resp Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Warn("Marshal sub-query response failed", zap.Error(err))
		return
	}
	if err := WriteFrame(conn, payload); err != nil {
		s.logger.Warn("Write sub-query response failed", zap.Error(err))
	}
}

func (s *Server) respondError(conn net.Conn, msg string) {
	s.respond(conn, Response{Error: &msg})
}

// WriteFrame writes one length-prefixed payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > maxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", len(payload))
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > maxFrameSize {
		return nil, fmt.Errorf("frame too large: %d bytes", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return payload, nil
}
