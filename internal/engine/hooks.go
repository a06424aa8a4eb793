package engine

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// runHooks executes each command of the workspace hook file in order,
// inside the workspace root. The first failing command aborts the commit
// before any data is written.
func (e *Engine) runHooks(ctx context.Context) error {
	lines, err := e.ws.HookLines()
	if err != nil {
		return fmt.Errorf("reading hook file: %w", err)
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		cmd := hookCommand(ctx, line)
		cmd.Dir = e.ws.Root()
		output, err := cmd.CombinedOutput()
		if err != nil {
			trimmed := strings.TrimSpace(string(output))
			if trimmed != "" {
				return fmt.Errorf("hook %q failed: %s: %w", line, trimmed, err)
			}
			return fmt.Errorf("hook %q failed: %w", line, err)
		}
		e.log.Debug("hook succeeded", "command", line)
	}
	return nil
}

func hookCommand(ctx context.Context, line string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", line)
	}
	return exec.CommandContext(ctx, "sh", "-c", line)
}
