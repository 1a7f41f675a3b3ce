package notify

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

const (
	DefaultCommandPath = "openclaw"

	targetPlaceholder  = "{target}"
	messagePlaceholder = "{message}"

	commandWaitDelay = 2 * time.Second
)

var DefaultCommandArgs = []string{"message", "send", "--target", targetPlaceholder, "--message", messagePlaceholder}

// CommandNotifier runs an external messaging CLI. Exit status 0 is success; anything else
// fails with the command's stderr as the detail.
type CommandNotifier struct {
	Path string
	Args []string
}

func NewCommandNotifier(path string, args []string) *CommandNotifier {
	if strings.TrimSpace(path) == "" {
		path = DefaultCommandPath
	}
	if len(args) == 0 {
		args = DefaultCommandArgs
	}
	return &CommandNotifier{Path: path, Args: append([]string(nil), args...)}
}

func (n *CommandNotifier) Notify(ctx context.Context, target, message string) Result {
	replacer := strings.NewReplacer(targetPlaceholder, target, messagePlaceholder, message)
	argv := make([]string, len(n.Args))
	for i, arg := range n.Args {
		argv[i] = replacer.Replace(arg)
	}

	cmd := exec.CommandContext(ctx, n.Path, argv...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.WaitDelay = commandWaitDelay
	err := cmd.Run()
	if err == nil {
		return Delivered()
	}
	if ctx.Err() != nil {
		return Failed("%s: %v", n.Path, ctx.Err())
	}
	detail := strings.TrimSpace(stderr.String())
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if detail == "" {
			detail = exitErr.Error()
		}
		return Failed("%s exited with status %d: %s", n.Path, exitErr.ExitCode(), detail)
	}
	return Failed("%s: %v", n.Path, err)
}
