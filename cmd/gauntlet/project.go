package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/gauntlet/internal/agent"
	"github.com/ShayCichocki/gauntlet/internal/capabilities"
	"github.com/ShayCichocki/gauntlet/internal/check"
	"github.com/ShayCichocki/gauntlet/internal/config"
	"github.com/ShayCichocki/gauntlet/internal/discovery"
	"github.com/ShayCichocki/gauntlet/internal/exec"
	"github.com/ShayCichocki/gauntlet/internal/features"
	"github.com/ShayCichocki/gauntlet/internal/git"
	"github.com/ShayCichocki/gauntlet/internal/impact"
	"github.com/ShayCichocki/gauntlet/internal/risk"
	"github.com/ShayCichocki/gauntlet/internal/state"
	"github.com/ShayCichocki/gauntlet/internal/verification"
	"github.com/ShayCichocki/gauntlet/pkg/models"
)

// project bundles everything a command needs for one project directory.
type project struct {
	root    string
	cfg     *config.Config
	store   *features.Store
	caps    *capabilities.Capabilities
	db      *state.DB
	history *verification.History
	logger  *check.DebugLogger
	ai      *agent.Client
}

// openProject loads configuration and opens the project stores.
func openProject() (*project, error) {
	dir := projectDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		dir = cwd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve project directory: %w", err)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	p := &project{
		root:  cfg.ProjectRoot,
		cfg:   cfg,
		store: features.NewStore(cfg.ProjectRoot),
	}

	p.logger = check.NopLogger()
	if cfg.Debug.Log {
		p.logger = check.NewDebugLoggerForProject(p.root)
	}

	p.caps = loadCapabilities(p.root, cfg)
	return p, nil
}

// loadCapabilities reads or detects capabilities and applies config
// overrides. A project with nothing detected gets empty capabilities.
func loadCapabilities(root string, cfg *config.Config) *capabilities.Capabilities {
	caps, err := capabilities.Load(root)
	if err != nil {
		if !errors.Is(err, capabilities.ErrNoCapabilities) {
			printStatus("⚠", fmt.Sprintf("Capabilities unreadable, using config only: %v", err), warnColor)
		}
		caps = &capabilities.Capabilities{}
	}
	caps.Commands = caps.Commands.Merge(capabilities.Commands{
		Test:      cfg.Checks.Test,
		Typecheck: cfg.Checks.Typecheck,
		Lint:      cfg.Checks.Lint,
		Build:     cfg.Checks.Build,
		E2E:       cfg.Checks.E2E,
	})
	return caps
}

// openHistory opens the verification history with its SQLite index. When the
// index cannot be opened, history still works from files alone.
func (p *project) openHistory() *verification.History {
	if p.history != nil {
		return p.history
	}
	db, err := state.OpenProject(p.root)
	if err != nil {
		p.logger.Log("[project] verification index unavailable: %v", err)
		p.history = verification.NewHistory(verification.NewStorage(p.root), nil)
	} else {
		p.db = db
		p.history = verification.NewHistory(verification.NewStorage(p.root), db)
	}
	p.history.SetDebugLog(p.logger.Log)
	return p.history
}

// reportUsage prints the AI tokens spent by this invocation, if any.
func (p *project) reportUsage() {
	if p.ai == nil || jsonOutput {
		return
	}
	usage := p.ai.Usage()
	if usage.Requests == 0 {
		return
	}
	msg := fmt.Sprintf("AI: %d request(s), %d tokens", usage.Requests, usage.TotalTokens())
	if cost := p.ai.Cost(); cost > 0 {
		msg += fmt.Sprintf(", ~$%.4f", cost)
	}
	fmt.Println(mutedStyle.Render(msg))
}

// Close releases the index database and the debug log.
func (p *project) Close() {
	if p.db != nil {
		p.db.Close()
	}
	p.logger.Close()
}

// tddMode returns the config override when set, else the feature list mode.
func (p *project) tddMode(list *features.List) models.TDDMode {
	if m := p.cfg.TDDMode(); m != "" {
		return m
	}
	return list.TDDMode()
}

// riskDetector builds the high-risk detector. Extra patterns come from the
// project config when there is one, otherwise from the user config.
func (p *project) riskDetector() *risk.Detector {
	d := risk.New()
	if path := config.GetProjectConfigPath(p.root); path != "" {
		if err := d.LoadConfig(path); err != nil {
			p.logger.Log("[project] risk config %s: %v", path, err)
		}
		return d
	}
	for _, pattern := range p.cfg.Risk.Patterns {
		d.AddPattern(pattern)
	}
	for _, pattern := range p.cfg.Risk.Ignore {
		d.Ignore(pattern)
	}
	return d
}

// verifier returns the AI criteria verifier, or nil when none is configured.
func (p *project) verifier(ctx context.Context) agent.CriteriaVerifier {
	if !config.AIConfigured(p.cfg) {
		return nil
	}
	key, _ := config.GetAPIKey(p.cfg)
	client, err := agent.NewClient(ctx, agent.ClientConfig{
		Model:         anthropic.Model(p.cfg.Anthropic.Model),
		APIKey:        key,
		UseAWSBedrock: p.cfg.Anthropic.UseBedrock,
		AWSRegion:     p.cfg.Anthropic.AWSRegion,
		AWSProfile:    p.cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		p.logger.Log("[project] AI verifier unavailable: %v", err)
		return nil
	}
	client.SetDebugLog(p.logger.Log)
	p.ai = client
	return client
}

// gitRunner returns a git runner over the project root.
func (p *project) gitRunner(cmd exec.CommandRunner) *git.ExecRunner {
	r := git.NewRunner(p.root, cmd)
	r.SetDebugLog(p.logger.Log)
	return r
}

// orchestrator wires the check pipeline for this project.
func (p *project) orchestrator(ctx context.Context) *check.Orchestrator {
	commands := exec.NewRunner(p.root)

	discoverer := discovery.NewDiscoverer(p.root)
	discoverer.SetDebugLog(p.logger.Log)
	matcher := impact.NewMatcher()
	matcher.SetDebugLog(p.logger.Log)

	cfg := check.Config{
		ProjectRoot:  p.root,
		Features:     p.store,
		Git:          p.gitRunner(commands),
		Runner:       commands,
		Capabilities: p.caps,
		History:      p.openHistory(),
		Risk:         p.riskDetector(),
		Discoverer:   discoverer,
		Matcher:      matcher,
		Logger:       p.logger,
		Verifier:     p.verifier(ctx),
	}
	return check.New(cfg)
}
