package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"pipecopy/internal/logging"
	"pipecopy/internal/pipeline"
)

// Pipeline is the subset of the controller the server exposes.
type Pipeline interface {
	Snapshot() pipeline.Snapshot
	RequestStop()
	Stopped() <-chan struct{}
}

// Info carries static facts about the daemon reported by Status.
type Info struct {
	PID        int
	LedgerPath string
	LogPath    string
}

// Server exposes pipeline control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer configures the IPC server at the given socket path. A stale
// socket left by a crashed run is replaced.
func NewServer(ctx context.Context, path string, p Pipeline, info Info, logger *slog.Logger) (*Server, error) {
	if p == nil {
		return nil, errors.New("ipc server requires a pipeline")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(serviceName, &service{pipeline: p, info: info, logger: logger}); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
	}, nil
}

// Serve starts accepting RPC connections until Close is called.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "status and stop commands may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions"))
				continue
			}
			if !s.track(conn) {
				_ = conn.Close()
				return
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.untrack(c)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.conns = nil
	s.mu.Unlock()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale socket is replaced on next start"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

// track registers conn for Close. It reports false once the server is closing.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns != nil {
		delete(s.conns, conn)
	}
}

type service struct {
	pipeline Pipeline
	info     Info
	logger   *slog.Logger
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	snap := s.pipeline.Snapshot()
	*resp = StatusResponse{
		State:           snap.State,
		RunID:           snap.RunID,
		PID:             s.info.PID,
		Transport:       snap.Transport,
		Destination:     snap.Destination,
		QueueDepth:      snap.QueueDepth,
		QueueCapacity:   snap.QueueCapacity,
		StartedAt:       snap.StartedAt,
		RecordsAccepted: snap.Counts.RecordsAccepted,
		RecordsDropped:  snap.Counts.RecordsDropped,
		CopiesSucceeded: snap.Counts.CopiesSucceeded,
		CopiesFailed:    snap.Counts.CopiesFailed,
		BytesCopied:     snap.Counts.BytesCopied,
		LedgerPath:      s.info.LedgerPath,
		LogPath:         s.info.LogPath,
	}
	return nil
}

func (s *service) Stop(req StopRequest, resp *StopResponse) error {
	s.logger.Info("stop requested via IPC", logging.String(logging.FieldEventType, "ipc_stop"))
	s.pipeline.RequestStop()
	if req.Wait {
		<-s.pipeline.Stopped()
	}
	resp.Stopped = true
	resp.State = s.pipeline.Snapshot().State
	return nil
}
