package cli

import (
	"context"
	"time"

	"github.com/edithist/edithist/internal/config"
	"github.com/edithist/edithist/internal/edithisterr"
	"github.com/edithist/edithist/internal/filelock"
	"github.com/edithist/edithist/internal/histpath"
	"github.com/edithist/edithist/internal/logging"
	"github.com/edithist/edithist/internal/review"
	"github.com/spf13/cobra"
)

// commandContext bundles everything a subcommand needs after workspace
// discovery: the review controller, resolved settings, and the effective
// lock timeout (flag > settings.json > built-in default).
type commandContext struct {
	Controller *review.Controller
	Settings   *config.Settings
	Timeout    time.Duration
	ColorOn    bool
}

// resolve discovers the workspace (honoring -w/--workspace), loads
// settings, initializes logging, and builds a review.Controller. Every
// subcommand's RunE calls this first.
func resolve(cmd *cobra.Command, flags *globalFlags) (*commandContext, error) {
	start := flags.workspace
	if start == "" {
		start = "."
	}

	workspaceRoot, err := histpath.FindWorkspaceRoot(start)
	if err != nil {
		return nil, err
	}

	controller, err := review.New(workspaceRoot)
	if err != nil {
		return nil, err
	}

	settings, err := config.Load(controller.HistoryRoot)
	if err != nil {
		return nil, err
	}

	if flags.verbose {
		settings.LogLevel = "debug"
	}
	logging.SetLogLevelGetter(func() string { return settings.LogLevel })
	_ = logging.Init(controller.HistoryRoot)

	timeout := time.Duration(settings.LockTimeoutSeconds) * time.Second
	if flags.timeoutSecs > 0 {
		timeout = time.Duration(flags.timeoutSecs) * time.Second
	}
	controller.Store.LockTimeout = timeout

	logging.Info(contextWithComponent(cmd), "command started", "cmd", cmd.Name(), "workspace", workspaceRoot)

	return &commandContext{
		Controller: controller,
		Settings:   settings,
		Timeout:    timeout,
		ColorOn:    colorEnabled(settings.Color),
	}, nil
}

func contextWithComponent(cmd *cobra.Command) context.Context {
	return logging.WithComponent(cmd.Context(), "cli")
}

// runForceCleanup runs cleanup eagerly when --force-cleanup is set,
// before the triggering command's own work, per spec.md §6.2.
func runForceCleanup(cmd *cobra.Command, flags *globalFlags) error {
	start := flags.workspace
	if start == "" {
		start = "."
	}
	workspaceRoot, err := histpath.FindWorkspaceRoot(start)
	if err != nil {
		// Workspace discovery failure here is reported by the command's own
		// resolve() call; don't fail the whole invocation just because
		// --force-cleanup ran first.
		return nil //nolint:nilerr // deferred to the command's own resolve()
	}
	historyRoot, err := histpath.HistoryRoot(workspaceRoot)
	if err != nil {
		return nil //nolint:nilerr // same as above
	}
	removed, err := filelock.CleanupStaleLocksUnder(historyRoot)
	if err != nil {
		return edithisterr.Wrap(edithisterr.IO, err, "force-cleanup before command")
	}
	if len(removed) > 0 {
		cmd.Printf("force-cleanup: removed %d stale lock(s)\n", len(removed))
	}
	return nil
}
