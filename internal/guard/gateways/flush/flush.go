package flush

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	logpkg "github.com/haukened/hostguard/internal/guard/common/log"
)

const defaultTimeout = 10 * time.Second

// Runner executes one external command; only its exit status matters.
type Runner func(ctx context.Context, name string, args ...string) error

// execRunner runs the command and discards its output.
func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%d bytes of output)", name, err, len(out))
	}
	return nil
}

// Options configures a Flusher. Zero values pick per-OS defaults.
type Options struct {
	GOOS     string
	Commands [][]string
	Timeout  time.Duration
	Runner   Runner
	Logger   logpkg.Logger
}

// Flusher invalidates the operating system's DNS cache.
type Flusher struct {
	commands [][]string
	timeout  time.Duration
	run      Runner
	logger   logpkg.Logger
}

// CommandsFor returns the cache-flush commands for goos.
func CommandsFor(goos string) [][]string {
	switch goos {
	case "windows":
		return [][]string{{"ipconfig", "/flushdns"}}
	case "darwin":
		return [][]string{{"dscacheutil", "-flushcache"}, {"killall", "-HUP", "mDNSResponder"}}
	case "linux":
		return [][]string{{"resolvectl", "flush-caches"}}
	default:
		return nil
	}
}

// New builds a Flusher.
func New(opts Options) *Flusher {
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	if opts.Commands == nil {
		opts.Commands = CommandsFor(opts.GOOS)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Runner == nil {
		opts.Runner = execRunner
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNoopLogger()
	}
	return &Flusher{commands: opts.Commands, timeout: opts.Timeout, run: opts.Runner, logger: opts.Logger}
}

// Flush runs every command, each bounded by the timeout. All commands are
// attempted; their failures are joined.
func (f *Flusher) Flush(ctx context.Context) error {
	var errs []error
	for _, cmd := range f.commands {
		if len(cmd) == 0 {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, f.timeout)
		err := f.run(cctx, cmd[0], cmd[1:]...)
		cancel()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		f.logger.Debug(map[string]any{"command": cmd}, "dns_flush_ok")
	}
	return errors.Join(errs...)
}

// Nop is a Flusher that does nothing; used when flushing is disabled.
type Nop struct{}

func (Nop) Flush(context.Context) error { return nil }
