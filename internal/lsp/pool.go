package lsp

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lexcodex/devbridge/internal/errs"
)

// Pool fans requests out to per-extension Supervisors, lazily spawning
// each one on first touch (spec §3 "Lifecycles") and owning them
// exclusively for the life of the session (spec §4.3 "Responsibility").
type Pool struct {
	root   string
	logger *log.Logger

	mu          sync.Mutex
	byExt       map[string]*Supervisor
	byLanguage  map[string]*Supervisor
	configs     []Config
	restartTick *time.Ticker
	stopTick    chan struct{}
}

// NewPool builds a Pool rooted at projectRoot with the given per-language
// configs (one per entry of the configuration file's `servers` array,
// spec §6).
func NewPool(projectRoot string, configs []Config, logger *log.Logger) *Pool {
	if logger == nil {
		logger = log.Default()
	}
	p := &Pool{
		root:       projectRoot,
		logger:     logger.With("component", "lsp-pool"),
		byExt:      make(map[string]*Supervisor),
		byLanguage: make(map[string]*Supervisor),
		configs:    configs,
		stopTick:   make(chan struct{}),
	}
	p.startAutoRestartLoop()
	return p
}

// supervisorFor returns (creating if necessary) the Supervisor that owns
// ext, or an error if no config claims that extension.
func (p *Pool) supervisorFor(ext string) (*Supervisor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sup, ok := p.byExt[ext]; ok {
		return sup, nil
	}
	for _, cfg := range p.configs {
		for _, e := range cfg.Extensions {
			if e == ext {
				if sup, ok := p.byLanguage[cfg.LanguageTag]; ok {
					p.byExt[ext] = sup
					return sup, nil
				}
				sup := NewSupervisor(cfg, p.root, p.logger)
				p.byExt[ext] = sup
				p.byLanguage[cfg.LanguageTag] = sup
				return sup, nil
			}
		}
	}
	return nil, errs.New(errs.CapabilityUnavailable, "no language server configured for extension %q", ext).
		WithDetail("extension", ext)
}

// For returns the Supervisor handling path's extension, spawning it
// lazily if this is the first request for that extension.
func (p *Pool) For(ctx context.Context, path string) (*Supervisor, error) {
	ext := filepath.Ext(path)
	sup, err := p.supervisorFor(ext)
	if err != nil {
		return nil, err
	}
	if err := sup.EnsureReady(ctx); err != nil {
		return nil, err
	}
	return sup, nil
}

// All returns every Supervisor instantiated so far, sorted by language
// tag for deterministic health_check output.
func (p *Pool) All() []*Supervisor {
	p.mu.Lock()
	defer p.mu.Unlock()
	langs := make([]string, 0, len(p.byLanguage))
	for lang := range p.byLanguage {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	out := make([]*Supervisor, 0, len(langs))
	for _, lang := range langs {
		out = append(out, p.byLanguage[lang])
	}
	return out
}

// RestartLanguage forces a restart of the named language's supervisor,
// used by the operator-triggered recovery path out of Degraded.
func (p *Pool) RestartLanguage(ctx context.Context, language string) error {
	p.mu.Lock()
	sup, ok := p.byLanguage[language]
	p.mu.Unlock()
	if !ok {
		return errs.New(errs.CapabilityUnavailable, "no language server instantiated for %q", language)
	}
	return sup.Restart(ctx)
}

// startAutoRestartLoop checks every minute whether any running
// supervisor is due for its configured periodic restart, marking it
// Restarting between requests (spec §4.3 "Auto-restart cadence").
func (p *Pool) startAutoRestartLoop() {
	p.restartTick = time.NewTicker(time.Minute)
	go func() {
		for {
			select {
			case <-p.restartTick.C:
				p.checkDueRestarts()
			case <-p.stopTick:
				p.restartTick.Stop()
				return
			}
		}
	}()
}

func (p *Pool) checkDueRestarts() {
	for _, sup := range p.All() {
		if sup.cfg.RestartIntervalMinutes <= 0 {
			continue
		}
		if sup.State() != StateReady {
			continue
		}
		interval := time.Duration(sup.cfg.RestartIntervalMinutes) * time.Minute
		if time.Since(sup.LastActivity()) >= interval {
			continue // only restart servers that have been busy, not idle ones
		}
		p.logger.Info("periodic restart due", "language", sup.cfg.LanguageTag)
		go func(s *Supervisor) {
			if err := s.Restart(context.Background()); err != nil {
				p.logger.Warn("periodic restart failed", "language", s.cfg.LanguageTag, "err", err)
			}
		}(sup)
	}
}

// Shutdown drains and shuts down every instantiated server (spec §4.3
// "Shutdown"), called when the owning session ends.
func (p *Pool) Shutdown(ctx context.Context) {
	close(p.stopTick)
	var wg sync.WaitGroup
	for _, sup := range p.All() {
		wg.Add(1)
		go func(s *Supervisor) {
			defer wg.Done()
			if err := s.Shutdown(ctx); err != nil {
				p.logger.Warn("shutdown error", "language", s.cfg.LanguageTag, "err", err)
			}
		}(sup)
	}
	wg.Wait()
}

// Describe renders one line per instantiated server for the health_check
// tool: language, state, restart count, open document count.
func (p *Pool) Describe() []HealthEntry {
	var out []HealthEntry
	for _, sup := range p.All() {
		out = append(out, HealthEntry{
			Language:      sup.cfg.LanguageTag,
			State:         string(sup.State()),
			RestartCount:  sup.RestartCount(),
			OpenDocuments: len(sup.OpenDocumentURIs()),
			QueueDepth:    sup.QueueDepth(),
			LastActivity:  sup.LastActivity(),
		})
	}
	return out
}

// HealthEntry is one row of the health_check tool's supervisor report.
type HealthEntry struct {
	Language      string    `json:"language"`
	State         string    `json:"state"`
	RestartCount  int       `json:"restartCount"`
	OpenDocuments int       `json:"openDocuments"`
	QueueDepth    int       `json:"queueDepth"`
	LastActivity  time.Time `json:"lastActivity"`
}

// ExtensionForLanguage is a small lookup helper for tests and the setup
// wizard's language-detection output (external collaborator surface).
func ExtensionForLanguage(configs []Config, language string) []string {
	for _, c := range configs {
		if strings.EqualFold(c.LanguageTag, language) {
			return c.Extensions
		}
	}
	return nil
}
