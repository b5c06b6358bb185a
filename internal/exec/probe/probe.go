package probe

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/docker/docker/client"
	"github.com/google/shlex"

	"crucible/internal/exec/lang"
	"crucible/pkg/utils/logger"
	"go.uber.org/zap"
)

// Command is a resolved interpreter invocation.
type Command struct {
	Path string
	Args []string
}

// CapabilityProbe answers two questions about the host: is a container
// runtime reachable, and which language interpreters are installed. Both
// answers are cached for the lifetime of the probe.
type CapabilityProbe interface {
	ContainerAvailable(ctx context.Context) bool
	Interpreter(l lang.Language) (Command, bool)
}

// Config customizes probing behavior.
type Config struct {
	// PingTimeout bounds the container runtime version query.
	// Default: 3 seconds.
	PingTimeout time.Duration `yaml:"pingTimeout"`

	// InterpreterOverrides maps a language wire name to a full command
	// line (shell-quoted) that replaces the built-in interpreter lookup.
	InterpreterOverrides map[string]string `yaml:"interpreterOverrides"`
}

type hostProbe struct {
	cfg Config

	containerOnce sync.Once
	containerOK   bool

	mu           sync.Mutex
	interpreters map[lang.Language]*interpreterEntry
}

type interpreterEntry struct {
	cmd   Command
	found bool
}

// NewHostProbe builds a probe that inspects the local host.
func NewHostProbe(cfg Config) CapabilityProbe {
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 3 * time.Second
	}
	return &hostProbe{
		cfg:          cfg,
		interpreters: make(map[lang.Language]*interpreterEntry),
	}
}

// ContainerAvailable checks once whether the container daemon answers a
// version ping. Any failure means unavailable; the caller is expected to
// fall back, not abort.
func (p *hostProbe) ContainerAvailable(ctx context.Context) bool {
	p.containerOnce.Do(func() {
		pingCtx, cancel := context.WithTimeout(ctx, p.cfg.PingTimeout)
		defer cancel()

		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			logger.Warn(ctx, "container runtime client init failed", zap.Error(err))
			return
		}
		defer cli.Close()

		if _, err := cli.Ping(pingCtx); err != nil {
			logger.Info(ctx, "container runtime unavailable", zap.Error(err))
			return
		}
		p.containerOK = true
	})
	return p.containerOK
}

// Interpreter resolves the local command for a language, trying the primary
// name then the fallback alias. The result, found or not, is cached.
func (p *hostProbe) Interpreter(l lang.Language) (Command, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.interpreters[l]; ok {
		return entry.cmd, entry.found
	}

	entry := p.resolve(l)
	p.interpreters[l] = entry
	return entry.cmd, entry.found
}

func (p *hostProbe) resolve(l lang.Language) *interpreterEntry {
	if override, ok := p.cfg.InterpreterOverrides[l.String()]; ok {
		parts, err := shlex.Split(override)
		if err != nil || len(parts) == 0 {
			logger.Warn(context.Background(), "invalid interpreter override",
				zap.String("language", l.String()), zap.String("override", override))
			return &interpreterEntry{}
		}
		path, err := exec.LookPath(parts[0])
		if err != nil {
			return &interpreterEntry{}
		}
		return &interpreterEntry{cmd: Command{Path: path, Args: parts[1:]}, found: true}
	}

	cfg := lang.ConfigOf(l)
	if cfg.Interpreter == "" {
		return &interpreterEntry{}
	}
	for _, candidate := range []string{cfg.Interpreter, cfg.InterpreterFallback} {
		if candidate == "" {
			continue
		}
		if path, err := exec.LookPath(candidate); err == nil {
			return &interpreterEntry{cmd: Command{Path: path, Args: append([]string(nil), cfg.RunArgs...)}, found: true}
		}
	}
	return &interpreterEntry{}
}
