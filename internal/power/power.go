// Package power turns the host off.
package power

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Command runs an external power-off command such as "shutdown -h now".
type Command struct {
	Argv []string
	Log  zerolog.Logger
}

// PowerOff runs the command. An empty command only logs.
func (c Command) PowerOff(ctx context.Context) error {
	if len(c.Argv) == 0 {
		c.Log.Warn().Msg("no power-off command configured, leaving host running")
		return nil
	}
	c.Log.Info().Str("command", strings.Join(c.Argv, " ")).Msg("powering off host")
	out, err := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("power off: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
