// Package botty composes the registry, event bus, and request dispatcher
// into a runnable Server with a Start/Wait/Stop lifecycle.
package botty

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"pkt.systems/pslog"

	"pty.systems/botty/core"
	"pty.systems/botty/internal/appconfig"
	"pty.systems/botty/internal/dispatch"
	"pty.systems/botty/internal/eventbus"
	"pty.systems/botty/internal/sshview"
)

// Server is the process-lifetime handle a caller starts, waits on, and
// stops, mirroring the teacher's Server interface.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// ServerDeps captures dependencies that don't come from Config: the
// process-level logger, principally.
type ServerDeps struct {
	Logger pslog.Logger
}

// ServerOption toggles optional components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	viewerAddr        string
	viewerHostKeyPath string
}

// WithViewer enables the read-mostly SSH viewer front end alongside the
// control socket.
func WithViewer(addr, hostKeyPath string) ServerOption {
	return func(o *serverOptions) {
		o.viewerAddr = addr
		o.viewerHostKeyPath = hostKeyPath
	}
}

// New builds a Server from cfg, allocating the socket listener and (if
// requested) the viewer's listener, but does not start accepting
// connections until Start is called.
func New(cfg appconfig.Config, deps ServerDeps, opts ...ServerOption) (Server, error) {
	var options serverOptions
	for _, opt := range opts {
		opt(&options)
	}

	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}

	if cfg.Agent.DefaultRows > 0 && cfg.Agent.DefaultCols > 0 {
		core.DefaultSize = core.Size{Rows: cfg.Agent.DefaultRows, Cols: cfg.Agent.DefaultCols}
	}
	if cfg.WordList.Path != "" {
		if err := core.LoadWordList(cfg.WordList.Path); err != nil {
			return nil, err
		}
	}

	ln, err := listenSocket(cfg.Socket.Path)
	if err != nil {
		return nil, err
	}

	var viewerLn net.Listener
	if options.viewerAddr != "" {
		vln, err := net.Listen("tcp", options.viewerAddr)
		if err != nil {
			ln.Close()
			return nil, fmt.Errorf("viewer listen: %w", err)
		}
		viewerLn = vln
	}

	// bus.labelsOf needs to resolve through the registry, and the registry
	// needs the bus as its EventPublisher; break the cycle with a
	// forward-declared pointer the closure captures by reference.
	var registry *core.Registry
	bus := eventbus.New(logger, func(id string) []string {
		if registry == nil {
			return nil
		}
		a, err := registry.Get(id)
		if err != nil {
			return nil
		}
		return a.Snapshot().Labels
	})
	registry = core.NewRegistry(cfg.Agent.TranscriptCapacity, bus)
	orchestrator := core.NewOrchestrator(registry)

	cs := &compositeServer{
		cfg:          cfg,
		logger:       logger,
		listener:     ln,
		viewerAddr:   options.viewerAddr,
		viewerLn:     viewerLn,
		viewerKeyPth: options.viewerHostKeyPath,
		registry:     registry,
		orchestrator: orchestrator,
		bus:          bus,
	}
	cs.dispatchSrv = dispatch.New(dispatch.Deps{
		Registry:        registry,
		Orchestrator:    orchestrator,
		Bus:             bus,
		Logger:          logger,
		ShuttingDown:    cs.isShuttingDown,
		TriggerShutdown: func() {
			go func() { _ = cs.Stop(context.Background()) }()
		},
	})
	return cs, nil
}

// listenSocket resolves the socket path's containing directory, creates it
// at 0700, removes a stale socket file if present, and binds a Unix
// listener at 0600.
func listenSocket(path string) (net.Listener, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
	}
	if err := os.Chmod(dir, 0o700); err != nil {
		return nil, fmt.Errorf("chmod socket dir: %w", err)
	}
	if err := removeStaleSocket(path); err != nil {
		return nil, err
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen unix %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}
	return ln, nil
}

// removeStaleSocket unlinks path if it exists and nothing is listening on
// it, so a crashed server's leftover socket file doesn't block a restart.
func removeStaleSocket(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	conn, err := net.Dial("unix", path)
	if err == nil {
		conn.Close()
		return fmt.Errorf("socket %s already has a live listener", path)
	}
	return os.Remove(path)
}

type compositeServer struct {
	cfg          appconfig.Config
	logger       pslog.Logger
	listener     net.Listener
	viewerAddr   string
	viewerLn     net.Listener
	viewerKeyPth string
	registry     *core.Registry
	orchestrator *core.Orchestrator
	bus          *eventbus.Bus
	dispatchSrv  *dispatch.Server

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	errCh    chan error
	started  bool
	draining bool
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 2)
	s.started = true
	s.mu.Unlock()

	runCtx := pslog.ContextWithLogger(s.ctx, s.logger)
	s.logger.Info("server start", "socket", s.cfg.Socket.Path, "viewer", s.viewerAddr)

	go func() {
		if err := s.dispatchSrv.Serve(runCtx, s.listener); err != nil {
			s.errCh <- fmt.Errorf("dispatch server: %w", err)
		}
	}()

	if s.viewerLn != nil {
		viewer := &sshview.Server{
			Addr:        s.viewerAddr,
			HostKeyPath: s.viewerKeyPth,
			Listener:    s.viewerLn,
			Registry:    s.registry,
			Bus:         s.bus,
		}
		go func() {
			if err := viewer.ListenAndServe(runCtx); err != nil {
				s.errCh <- fmt.Errorf("viewer server: %w", err)
			}
		}()
	}
	return nil
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			s.logger.Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil
	}
	s.requestShutdown()
	s.logger.Info("server stop requested")
	if ctx == nil {
		ctx = context.Background()
	}
	s.registry.Shutdown(ctx, func(a *core.Agent) error {
		return a.PTY.Signal(syscall.SIGKILL)
	})
	if cancel != nil {
		cancel()
	}
	_ = s.listener.Close()
	if s.viewerLn != nil {
		_ = s.viewerLn.Close()
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *compositeServer) isShuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draining
}

func (s *compositeServer) requestShutdown() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
}
