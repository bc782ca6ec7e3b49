package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/outpostrun/conductor/internal/agent"
	"github.com/outpostrun/conductor/internal/agent/providers"
	"github.com/outpostrun/conductor/internal/commands"
	"github.com/outpostrun/conductor/internal/config"
	"github.com/outpostrun/conductor/internal/extensions"
	"github.com/outpostrun/conductor/internal/sessions"
	"github.com/outpostrun/conductor/internal/skills"
	exectools "github.com/outpostrun/conductor/internal/tools/exec"
	"github.com/outpostrun/conductor/internal/workspace"
)

// App is the process-wide wiring every subcommand builds from: config,
// logging, the tool/command/extension registries, and the provider the
// agent loop talks to. One App is built per invocation; the CLI has no
// long-lived daemon state beyond what a single run needs.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Workspace *workspace.WorkspaceContext

	Tools      *agent.Registry
	Commands   *commands.Registry
	Extensions *extensions.Surface
	Skills     *skills.Manager

	Provider agent.Provider
	Model    string
}

// loadApp reads configPath, builds the logger, discovers skills and
// extensions, and constructs a provider. Any failure here is a
// ConfigError: the process cannot do anything useful without a valid
// configuration.
func loadApp(ctx context.Context, configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, &agent.ConfigError{Reason: "loading configuration", Cause: err}
	}

	logger := newLogger(cfg.Logging)

	wsCfg := workspace.LoaderConfigFromConfig(cfg)
	ws, err := workspace.LoadWorkspace(wsCfg)
	if err != nil {
		return nil, &agent.ConfigError{Reason: "loading workspace", Cause: err}
	}

	skillMgr, err := skills.NewManager(&cfg.Skills, wsCfg.Root, nil)
	if err != nil {
		return nil, &agent.ConfigError{Reason: "constructing skill manager", Cause: err}
	}
	if err := skillMgr.Discover(ctx); err != nil {
		logger.Warn("skill discovery failed", "error", err)
	}
	if err := skillMgr.RefreshEligible(); err != nil {
		logger.Warn("skill eligibility refresh failed", "error", err)
	}

	tools := agent.NewRegistry()
	execMgr := exectools.NewManager(wsCfg.Root)
	for _, skill := range skillMgr.ListEligible() {
		for _, t := range skills.BuildSkillTools(skill, execMgr) {
			tools.Register(t)
		}
	}

	cmdRegistry := commands.NewRegistry(logger)
	commands.RegisterBuiltins(cmdRegistry)

	surface := extensions.NewSurface(tools, cmdRegistry, logger)
	if cfg.Extensions.Enabled {
		if err := extensions.Load(ctx, surface, cfg.Extensions.Directories); err != nil {
			logger.Warn("extension load failed", "error", err)
		}
	}

	provider, model, err := providers.NewDefault(cfg.LLM)
	if err != nil {
		return nil, &agent.ConfigError{Reason: "constructing default provider", Cause: err}
	}

	return &App{
		Config:     cfg,
		Logger:     logger,
		Workspace:  ws,
		Tools:      tools,
		Commands:   cmdRegistry,
		Extensions: surface,
		Skills:     skillMgr,
		Provider:   provider,
		Model:      model,
	}, nil
}

// newLogger builds a structured logger the way observability.NewLogger
// does (JSON by default, level parsed from config), but returns the plain
// *slog.Logger every other package in this tree already consumes, rather
// than that package's own wrapper type.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// NewSession creates a fresh, auto-saving session rooted at the
// workspace's .sessions directory.
func (a *App) NewSession(name string) *sessions.Session {
	root := a.Config.Workspace.Path
	if root == "" {
		root = "."
	}
	return sessions.New(name, root, true)
}

// NewLoop builds an agent.Loop wired to this App's provider, tool
// registry, and extension surface (as the loop's lifecycle publisher),
// running against session.
func (a *App) NewLoop(session *sessions.Session) *agent.Loop {
	loop := agent.NewLoop(a.Provider, a.Tools, session)
	loop.Model = a.Model
	loop.System = a.SystemPrompt()
	loop.Publisher = a.Extensions
	return loop
}

// SystemPrompt composes the sole system-role message the loop starts
// with: the workspace's layered context files wrapped around the
// soul/identity/user-derived default, plus a skills appendix.
func (a *App) SystemPrompt() string {
	return a.Workspace.ComposeSystemPrompt(skillsAppendix(a.Skills))
}

// skillsAppendix summarizes the currently eligible skills into the single
// appendix the context-assembly layer slots in ahead of APPEND_SYSTEM.md.
func skillsAppendix(mgr *skills.Manager) string {
	if mgr == nil {
		return ""
	}
	eligible := mgr.ListEligible()
	if len(eligible) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("# Available Skills\n\n")
	for _, s := range eligible {
		fmt.Fprintf(&b, "- **%s**: %s\n", s.Name, s.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
