package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/lysyi3m/rssmaker/app/crawl"
)

// ShellPublisher runs a shell command after a crawl saved changes. The
// command sees the feed path and run outcome in its environment.
type ShellPublisher struct {
	command  string
	feedFile string
	dir      string
}

func NewShellPublisher(command, feedFile string) *ShellPublisher {
	return &ShellPublisher{command: command, feedFile: feedFile}
}

// WithDir sets the working directory of the command.
func (p *ShellPublisher) WithDir(dir string) *ShellPublisher {
	p.dir = dir
	return p
}

func (p *ShellPublisher) Publish(ctx context.Context, result *crawl.Result) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", p.command)
	cmd.Dir = p.dir
	cmd.Env = append(os.Environ(),
		"RSSMAKER_FEED_FILE="+p.feedFile,
		"RSSMAKER_OUTCOME="+string(result.Outcome),
		"RSSMAKER_NEW_ITEMS="+strconv.Itoa(result.NewItems),
		"RSSMAKER_EXIT_CODE="+strconv.Itoa(result.ExitCode()),
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("on-change command failed: %w: %s", err, strings.TrimSpace(string(output)))
	}

	slog.Debug("On-change command completed", "command", p.command, "output", strings.TrimSpace(string(output)))
	return nil
}
