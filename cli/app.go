// Package cli implements the datahub command.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// ExitError carries a process exit status. The worker command uses it to
// report query failures without printing anything.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// App is the datahub command line.
type App struct {
	root   *cobra.Command
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// New creates the command tree.
func New() *App {
	app := &App{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	app.root = &cobra.Command{
		Use:   "datahub",
		Short: "Serve data queries over HTTP with worker isolation and a disk cache",
		Long: `datahub serves registered data queries over HTTP.

Every query runs in its own worker process by default, and queries that opt in
are memoized on disk so repeated calls for settled date ranges are answered
without recomputation.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	app.root.PersistentFlags().StringP("config", "c", "", "path to the YAML configuration file")

	app.root.AddCommand(
		app.newServeCmd(),
		app.newWorkerCmd(),
		app.newQueryCmd(),
	)
	return app
}

// WithIO replaces the standard streams.
func (a *App) WithIO(stdin io.Reader, stdout, stderr io.Writer) *App {
	a.stdin = stdin
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetIn(stdin)
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// Execute runs the command line until it finishes or the process is
// interrupted.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments.
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.root.ExecuteContext(ctx)
}
