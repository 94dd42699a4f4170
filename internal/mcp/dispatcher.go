package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/lexcodex/devbridge/internal/observability"
)

// DefaultToolTimeout is spec §5's tool.max_duration default: a tool call
// that hasn't resolved after this long is cancelled by the dispatcher as
// if the client itself had requested it.
const DefaultToolTimeout = 120 * time.Second

// Dispatcher routes one session's JSON-RPC traffic to the MCP method
// vocabulary of spec §6, built from jsonrpc2.HandlerWithError exactly
// the way internal/lsp's Supervisor builds its own incoming-request
// handler, except devbridge is the server side of this connection
// instead of the client side.
type Dispatcher struct {
	tools       *Registry
	pool        *WorkerPool
	toolTimeout time.Duration
	requireAuth bool
	authToken   string
	logger      *log.Logger
}

// NewDispatcher builds a Dispatcher over tools, shared across every
// session's handler.
func NewDispatcher(tools *Registry, pool *WorkerPool, requireAuth bool, authToken string, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	if pool == nil {
		pool = NewWorkerPool(8)
	}
	return &Dispatcher{
		tools:       tools,
		pool:        pool,
		toolTimeout: DefaultToolTimeout,
		requireAuth: requireAuth,
		authToken:   authToken,
		logger:      logger.With("component", "mcp-dispatcher"),
	}
}

// Handler returns a jsonrpc2.Handler bound to sess, suitable for passing
// straight to jsonrpc2.NewConn (one per connection, spec §4.8 "one
// dispatcher task per session").
func (d *Dispatcher) Handler(sess *Session) jsonrpc2.Handler {
	return jsonrpc2.HandlerWithError(func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
		return d.handle(ctx, conn, sess, req)
	})
}

func (d *Dispatcher) handle(ctx context.Context, conn *jsonrpc2.Conn, sess *Session, req *jsonrpc2.Request) (any, error) {
	if req.Method != "initialize" && !sess.Initialized() {
		return nil, rpcErr(errs.New(errs.ServerNotReady, "session has not completed initialize"))
	}

	switch req.Method {
	case "initialize":
		return d.handleInitialize(sess, req)
	case "initialized":
		return nil, nil // notification; nothing to do once initialize has already run
	case "tools/list":
		return ToolsListResult{Tools: d.tools.Descriptors()}, nil
	case "tools/call":
		return d.handleToolsCall(ctx, sess, req)
	case "$/cancelRequest":
		return d.handleCancel(sess, req)
	case "shutdown":
		sess.MarkShuttingDown()
		return nil, nil
	case "exit":
		go conn.Close()
		return nil, nil
	default:
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "unknown method " + req.Method}
	}
}

func (d *Dispatcher) handleInitialize(sess *Session, req *jsonrpc2.Request) (any, error) {
	var params InitializeParams
	if req.Params != nil {
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, rpcErr(errs.Wrap(errs.InvalidArgs, err, "malformed initialize params"))
		}
	}
	if d.requireAuth && params.AuthToken != d.authToken {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidRequest, Message: "authentication required"}
	}
	sess.MarkAuthenticated()
	sess.MarkInitialized()
	observability.Emit(d.logger, observability.EventSessionInitialized, "session", sess.ID, "client", params.ClientInfo.Name)
	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo:      ClientInfo{Name: "devbridge", Version: "0.1.0"},
		Capabilities:    ServerCaps{Tools: ToolsCaps{ListChanged: false}},
	}, nil
}

func (d *Dispatcher) handleCancel(sess *Session, req *jsonrpc2.Request) (any, error) {
	var params struct {
		ID jsonrpc2.ID `json:"id"`
	}
	if req.Params != nil {
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, nil // malformed cancel notifications are ignored, not surfaced
		}
	}
	sess.CancelCall(params.ID)
	return nil, nil
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, sess *Session, req *jsonrpc2.Request) (any, error) {
	var params ToolCallParams
	if req.Params != nil {
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, rpcErr(errs.Wrap(errs.InvalidArgs, err, "malformed tools/call params"))
		}
	}
	tool, ok := d.tools.Lookup(params.Name)
	if !ok {
		return nil, rpcErr(errs.New(errs.ToolNotFound, "unknown tool %q", params.Name).WithDetail("tool", params.Name))
	}

	callCtx, cancel := context.WithTimeout(ctx, d.toolTimeout)
	defer cancel()
	if !req.Notif {
		release := sess.TrackCall(req.ID, cancel)
		defer release()
	}

	observability.Emit(d.logger, observability.EventToolCalled, "session", sess.ID, "tool", params.Name)
	result, err := d.pool.Run(callCtx, func() (any, error) {
		return tool.Handle(callCtx, sess, params.Arguments)
	})
	if err != nil {
		observability.EmitError(d.logger, observability.EventToolFailed, "session", sess.ID, "tool", params.Name, "err", err)
		if callCtx.Err() == context.Canceled {
			return nil, rpcErr(errs.New(errs.Cancelled, "%s cancelled", params.Name))
		}
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, rpcErr(errs.New(errs.Cancelled, "%s exceeded %s", params.Name, d.toolTimeout))
		}
		return nil, rpcErr(err)
	}
	return textResult(result)
}

// rpcErr translates an internal error into the JSON-RPC error the
// transport writes back, using the wire code table in internal/errs
// (spec §7 "Propagation policy"). Errors that aren't already a typed
// *errs.Error are reported as InternalError without leaking their
// concrete Go error text verbatim to the client.
func rpcErr(err error) *jsonrpc2.Error {
	if e, ok := errs.As(err); ok {
		data, _ := json.Marshal(e.Detail)
		raw := json.RawMessage(data)
		return &jsonrpc2.Error{Code: int64(e.JSONRPCCode()), Message: e.Error(), Data: &raw}
	}
	return &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: "internal error"}
}
