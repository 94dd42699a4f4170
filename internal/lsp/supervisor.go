package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/lexcodex/devbridge/internal/lspcodec"
	"github.com/lexcodex/devbridge/internal/observability"
	"github.com/lexcodex/devbridge/internal/pathutil"
	"github.com/lexcodex/devbridge/internal/proto"
	"github.com/sourcegraph/jsonrpc2"
	lsp "go.lsp.dev/protocol"
)

// pendingRequest gates a request issued before the server reaches Ready.
type pendingRequest struct {
	enqueuedAt time.Time
	done       chan struct{}
}

// Supervisor owns the lifecycle of a single language-server child
// process for one extension group within a session (spec §4.3). The
// state machine is: Spawning -> Initializing -> Ready, with Restarting
// and Dead as the error/maintenance states.
type Supervisor struct {
	cfg    Config
	root   string
	logger *log.Logger

	mu            sync.Mutex
	state         State
	conn          *jsonrpc2.Conn
	cmd           *exec.Cmd
	capabilities  lsp.ServerCapabilities
	docs          *documentTable
	diagnostics   *diagnosticsTable
	lastActivity  time.Time
	restartCount  int
	backoff       time.Duration
	readyQueue    []*pendingRequest
	degraded      bool
	shuttingDown  bool

	readyCh chan struct{}
}

// NewSupervisor builds a Supervisor for the given config and project
// root, but does not spawn the child process yet — spawning is lazy, on
// first request touching a matching extension (spec §3 "Lifecycles").
func NewSupervisor(cfg Config, projectRoot string, logger *log.Logger) *Supervisor {
	if logger == nil {
		logger = log.Default()
	}
	return &Supervisor{
		cfg:     cfg.withDefaults(),
		root:    projectRoot,
		logger:  logger.With("component", "lsp-supervisor", "language", cfg.LanguageTag),
		state:       StateDead,
		docs:        newDocumentTable(),
		diagnostics: newDiagnosticsTable(),
		backoff:     100 * time.Millisecond,
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActivity returns the timestamp of the most recent request sent to
// or response received from this server, used by health_check.
func (s *Supervisor) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// RestartCount returns the number of restarts performed so far.
func (s *Supervisor) RestartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restartCount
}

// QueueDepth returns the number of requests currently blocked in
// EnsureReady waiting for this server to become Ready, used by
// health_check (spec §6) to report readiness backpressure.
func (s *Supervisor) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.readyQueue)
}

// enqueueReady admits one more request onto the bounded readiness queue
// (spec §4.3 "Readiness gating": "queues, bounded (default 64 requests)
// with oldest-wins rejection"). Requests already queued keep waiting;
// once the queue is at ReadyQueueLimit, the new arrival is rejected
// immediately rather than displacing an older one.
func (s *Supervisor) enqueueReady() (*pendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.readyQueue) >= s.cfg.ReadyQueueLimit {
		return nil, errs.New(errs.ServerNotReady, "language server %q readiness queue is full (%d requests waiting)", s.cfg.LanguageTag, len(s.readyQueue))
	}
	pr := &pendingRequest{enqueuedAt: time.Now(), done: make(chan struct{})}
	s.readyQueue = append(s.readyQueue, pr)
	return pr, nil
}

func (s *Supervisor) dequeueReady(pr *pendingRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, q := range s.readyQueue {
		if q == pr {
			s.readyQueue = append(s.readyQueue[:i], s.readyQueue[i+1:]...)
			return
		}
	}
}

// EnsureReady spawns the server if needed and blocks until it reaches
// Ready, ServerUnavailable (Degraded), or the ready-queue grace period
// elapses (ServerNotReady), per spec §4.3 "Readiness gating".
func (s *Supervisor) EnsureReady(ctx context.Context) error {
	s.mu.Lock()
	if s.degraded {
		s.mu.Unlock()
		return errs.New(errs.ServerUnavailable, "language server %q is degraded after repeated restart failures", s.cfg.LanguageTag)
	}
	if s.state == StateDead {
		s.mu.Unlock()
		if err := s.spawn(ctx); err != nil {
			return err
		}
		s.mu.Lock()
	}
	if s.state == StateReady {
		s.mu.Unlock()
		return nil
	}
	readyCh := s.readyCh
	s.mu.Unlock()

	if readyCh == nil {
		return errs.New(errs.ServerNotReady, "language server %q is not initializing", s.cfg.LanguageTag)
	}

	pr, err := s.enqueueReady()
	if err != nil {
		return err
	}
	defer s.dequeueReady(pr)

	grace := time.NewTimer(s.cfg.ReadyQueueGrace)
	defer grace.Stop()
	select {
	case <-readyCh:
		if s.State() == StateReady {
			return nil
		}
		return errs.New(errs.ServerUnavailable, "language server %q failed to start", s.cfg.LanguageTag)
	case <-grace.C:
		return errs.New(errs.ServerNotReady, "language server %q still initializing after %s", s.cfg.LanguageTag, s.cfg.ReadyQueueGrace)
	case <-ctx.Done():
		return errs.Wrap(errs.Cancelled, ctx.Err(), "waiting for %q to become ready", s.cfg.LanguageTag)
	}
}

// spawn transitions Dead -> Spawning -> Initializing -> Ready|Dead.
func (s *Supervisor) spawn(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDead {
		s.mu.Unlock()
		return nil
	}
	s.state = StateSpawning
	s.readyCh = make(chan struct{})
	readyCh := s.readyCh
	s.mu.Unlock()

	if len(s.cfg.Command) == 0 {
		s.markDead(fmt.Errorf("no command configured"))
		close(readyCh)
		return errs.New(errs.ServerUnavailable, "no command configured for %q", s.cfg.LanguageTag)
	}

	spawnCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(spawnCtx, s.cfg.Command[0], s.cfg.Command[1:]...)
	cmd.Dir = s.root

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		s.markDead(err)
		close(readyCh)
		return errs.Wrap(errs.ServerUnavailable, err, "spawn %q", s.cfg.LanguageTag)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		s.markDead(err)
		close(readyCh)
		return errs.Wrap(errs.ServerUnavailable, err, "spawn %q", s.cfg.LanguageTag)
	}
	cmd.Stderr = os.Stderr

	rwc := &stdioReadWriteCloser{reader: stdout, writer: stdin}
	stream := lspcodec.NewObjectStream(lspcodec.NewStream(rwc, 0))

	handler := jsonrpc2.HandlerWithError(s.handleServerRequest)
	conn := jsonrpc2.NewConn(spawnCtx, stream, handler)

	if err := cmd.Start(); err != nil {
		cancel()
		s.markDead(err)
		close(readyCh)
		return errs.Wrap(errs.ServerUnavailable, err, "spawn %q", s.cfg.LanguageTag)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.conn = conn
	s.state = StateInitializing
	s.mu.Unlock()

	go s.watchExit(cmd, cancel)

	initCtx, initCancel := context.WithTimeout(ctx, s.cfg.InitializeTimeout)
	defer initCancel()
	caps, err := s.initialize(initCtx)
	if err != nil {
		s.logger.Warn("initialize failed", "err", err)
		cancel()
		s.markDead(err)
		close(readyCh)
		return errs.Wrap(errs.ServerUnavailable, err, "initialize %q", s.cfg.LanguageTag)
	}

	s.mu.Lock()
	s.capabilities = caps
	s.state = StateReady
	s.lastActivity = time.Now()
	s.mu.Unlock()
	close(readyCh)
	observability.Emit(s.logger, observability.EventServerStateChanged, "language", s.cfg.LanguageTag, "state", string(StateReady), "command", s.cfg.Command)
	return nil
}

func (s *Supervisor) initialize(ctx context.Context) (lsp.ServerCapabilities, error) {
	params := &lsp.InitializeParams{
		ProcessID: int32(os.Getpid()),
		RootURI:   lsp.DocumentURI(pathutil.ToURI(s.root)),
		ClientInfo: &lsp.ClientInfo{
			Name:    "devbridge",
			Version: "0.1.0",
		},
		InitializationOptions: s.cfg.InitializationOptions,
		Capabilities: lsp.ClientCapabilities{
			TextDocument: &lsp.TextDocumentClientCapabilities{
				Hover:              &lsp.HoverTextDocumentClientCapabilities{},
				Definition:         &lsp.DefinitionTextDocumentClientCapabilities{},
				References:         &lsp.ReferencesTextDocumentClientCapabilities{},
				DocumentSymbol:     &lsp.DocumentSymbolClientCapabilities{},
				Formatting:         &lsp.DocumentFormattingClientCapabilities{},
				Rename:             &lsp.RenameClientCapabilities{PrepareSupport: true},
				CodeAction:         &lsp.CodeActionClientCapabilities{},
				PublishDiagnostics: &lsp.PublishDiagnosticsClientCapabilities{},
			},
			Workspace: &lsp.WorkspaceClientCapabilities{
				Symbol: &lsp.WorkspaceClientCapabilitiesSymbol{},
			},
		},
	}

	var result lsp.InitializeResult
	if err := s.conn.Call(ctx, "initialize", params, &result); err != nil {
		return lsp.ServerCapabilities{}, err
	}
	if err := s.conn.Notify(ctx, "initialized", &lsp.InitializedParams{}); err != nil {
		return lsp.ServerCapabilities{}, err
	}
	return result.Capabilities, nil
}

func (s *Supervisor) handleServerRequest(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()

	if !req.Notif {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not handled"}
	}
	switch req.Method {
	case "textDocument/publishDiagnostics":
		// Cached for inspect_code's diagnostics query only; never consulted
		// by the planner/executor, which always re-reads files and
		// checksums directly rather than trusting server-pushed state.
		var params lsp.PublishDiagnosticsParams
		if req.Params != nil {
			if err := json.Unmarshal(*req.Params, &params); err == nil {
				s.diagnostics.put(proto.URI(params.URI), params.Diagnostics)
			}
		}
		s.logger.Debug("diagnostics published", "uri", params.URI, "count", len(params.Diagnostics))
	case "window/logMessage", "window/showMessage":
		var params struct {
			Message string `json:"message"`
		}
		if req.Params != nil {
			_ = json.Unmarshal(*req.Params, &params)
		}
		s.logger.Debug("server message", "message", params.Message)
	}
	return nil, nil
}

func (s *Supervisor) watchExit(cmd *exec.Cmd, cancel context.CancelFunc) {
	err := cmd.Wait()
	cancel()

	s.mu.Lock()
	wasShuttingDown := s.shuttingDown
	s.state = StateDead
	s.mu.Unlock()

	if wasShuttingDown {
		return
	}

	s.logger.Warn("language server exited unexpectedly", "err", err)
	s.scheduleRestart()
}

func (s *Supervisor) markDead(err error) {
	s.mu.Lock()
	s.state = StateDead
	s.mu.Unlock()
	if err != nil {
		observability.EmitError(s.logger, observability.EventServerStateChanged, "language", s.cfg.LanguageTag, "state", string(StateDead), "err", err)
	}
}

// scheduleRestart implements exponential backoff with a cap, resetting
// after a sustained Ready period, and marks the server Degraded after
// three consecutive failures (spec §4.3 "Restart policy").
func (s *Supervisor) scheduleRestart() {
	s.mu.Lock()
	s.restartCount++
	count := s.restartCount
	delay := s.backoff
	if s.backoff < 5*time.Second {
		s.backoff *= 2
		if s.backoff > 5*time.Second {
			s.backoff = 5 * time.Second
		}
	}
	s.mu.Unlock()

	if count >= 3 {
		s.mu.Lock()
		s.degraded = true
		s.mu.Unlock()
		s.logger.Error("language server degraded after repeated restarts", "restarts", count)
		return
	}

	time.AfterFunc(delay, func() {
		s.mu.Lock()
		s.state = StateDead
		s.mu.Unlock()
		if err := s.spawn(context.Background()); err != nil {
			s.logger.Warn("restart attempt failed", "err", err)
		} else {
			s.resetBackoffAfterStability()
		}
	})
}

func (s *Supervisor) resetBackoffAfterStability() {
	time.AfterFunc(60*time.Second, func() {
		if s.State() == StateReady {
			s.mu.Lock()
			s.backoff = 100 * time.Millisecond
			s.restartCount = 0
			s.mu.Unlock()
		}
	})
}

// Restart forces the server through Restarting -> Spawning, used for
// periodic auto-restart cadence and operator-triggered recovery from
// Degraded. It is only invoked between requests, never mid-request,
// per spec §4.3 "Auto-restart cadence".
func (s *Supervisor) Restart(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateDead {
		s.mu.Unlock()
	} else {
		s.state = StateRestarting
		conn := s.conn
		cmd := s.cmd
		s.shuttingDown = true
		s.mu.Unlock()
		s.gracefulShutdown(conn, cmd)
	}

	s.mu.Lock()
	s.state = StateDead
	s.degraded = false
	s.restartCount = 0
	s.backoff = 100 * time.Millisecond
	s.shuttingDown = false
	docs := s.docs.all()
	s.mu.Unlock()

	if err := s.spawn(ctx); err != nil {
		return err
	}
	// Reopen documents transparently on the new process.
	for _, d := range docs {
		_ = s.didOpenLocked(ctx, d.uri, d.languageID, d.text)
	}
	return nil
}

// Shutdown performs the graceful shutdown/exit handshake, then force
// kills the process tree if it hasn't exited within the grace timeout
// (spec §4.3 "Shutdown").
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateDead {
		s.mu.Unlock()
		return nil
	}
	s.shuttingDown = true
	conn := s.conn
	cmd := s.cmd
	s.mu.Unlock()

	s.gracefulShutdown(conn, cmd)

	s.mu.Lock()
	s.state = StateDead
	s.mu.Unlock()
	return nil
}

func (s *Supervisor) gracefulShutdown(conn *jsonrpc2.Conn, cmd *exec.Cmd) {
	if conn != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGraceTimeout)
		_ = conn.Call(ctx, "shutdown", nil, nil)
		_ = conn.Notify(ctx, "exit", nil)
		cancel()
		_ = conn.Close()
	}
	if cmd == nil || cmd.Process == nil {
		return
	}
	done := make(chan struct{})
	go func() { _, _ = cmd.Process.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(s.cfg.ShutdownGraceTimeout):
		_ = cmd.Process.Kill()
		<-done
	}
}

// stdioReadWriteCloser adapts a child process's stdin/stdout pipes to a
// single io.ReadWriteCloser, exactly as the teacher's
// tools/lsp_process_client.go does.
type stdioReadWriteCloser struct {
	reader interface {
		Read([]byte) (int, error)
		Close() error
	}
	writer interface {
		Write([]byte) (int, error)
		Close() error
	}
}

func (s *stdioReadWriteCloser) Read(p []byte) (int, error)  { return s.reader.Read(p) }
func (s *stdioReadWriteCloser) Write(p []byte) (int, error) { return s.writer.Write(p) }
func (s *stdioReadWriteCloser) Close() error {
	_ = s.reader.Close()
	return s.writer.Close()
}
