package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lexcodex/devbridge/internal/mcp"
)

// healthCheckTool is the `health_check` tool of spec §6: a point-in-time
// snapshot of every supervised language server plus the plugin registry,
// for an agent to decide whether it's worth attempting a refactor at all.
type healthCheckTool struct{}

func (healthCheckTool) Name() string { return "health_check" }

func (healthCheckTool) Description() string {
	return "Report the status of every supervised language server and the registered plugin capabilities."
}

func (healthCheckTool) InputSchema() json.RawMessage {
	return schema(nil, map[string]any{})
}

type healthCheckResult struct {
	Session   string              `json:"session"`
	Servers   []healthServerEntry `json:"servers"`
	Plugins   string              `json:"plugins"`
}

type healthServerEntry struct {
	Language      string    `json:"language"`
	State         string    `json:"state"`
	RestartCount  int       `json:"restartCount"`
	OpenDocuments int       `json:"openDocuments"`
	QueueDepth    int       `json:"queueDepth"`
	LastActivity  time.Time `json:"lastActivity"`
}

func (healthCheckTool) Handle(ctx context.Context, sess *mcp.Session, args json.RawMessage) (any, error) {
	entries := sess.Pool.Describe()
	servers := make([]healthServerEntry, 0, len(entries))
	for _, e := range entries {
		servers = append(servers, healthServerEntry{
			Language:      e.Language,
			State:         e.State,
			RestartCount:  e.RestartCount,
			OpenDocuments: e.OpenDocuments,
			QueueDepth:    e.QueueDepth,
			LastActivity:  e.LastActivity,
		})
	}
	return healthCheckResult{
		Session: sess.ID,
		Servers: servers,
		Plugins: sess.Registry.Describe(),
	}, nil
}
