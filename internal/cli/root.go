package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/icryo/backplane-tui/internal/config"
	"github.com/icryo/backplane-tui/internal/dashboard"
	"github.com/icryo/backplane-tui/internal/errors"
	"github.com/icryo/backplane-tui/internal/runtime"
)

// Global flags
var (
	configFlag string
	socketFlag string
)

// rootCmd runs the dashboard directly; subcommands cover setup chores.
var rootCmd = &cobra.Command{
	Use:   "backplane",
	Short: "Live terminal dashboard for the local container runtime",
	Long: `Backplane is a terminal dashboard over the local container daemon.

It keeps a live view of containers, their resource usage, and host metrics,
and lets you follow logs, open a shell inside a container, and run lifecycle
commands without leaving the terminal.

Examples:
  backplane
  backplane --socket unix:///var/run/docker.sock
  backplane --config ./backplane.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDashboard()
	},
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runDashboard wires config, daemon client, and the Bubble Tea program.
func runDashboard() error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New(errors.ErrCommand,
			"backplane needs an interactive terminal",
			"Run it directly in a terminal, not through a pipe or redirect")
	}

	cfg, err := config.LoadOrDefault(configFlag)
	if err != nil {
		return err
	}
	if socketFlag != "" {
		cfg.Runtime.Host = socketFlag
	}

	client, err := runtime.NewClient(cfg.Runtime.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	model := dashboard.New(client, cfg)
	p := tea.NewProgram(model, tea.WithAltScreen())
	final, err := p.Run()

	// Stop producers and sessions regardless of how the program exited.
	if m, ok := final.(dashboard.Model); ok {
		m.Shutdown()
	} else {
		model.Shutdown()
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&socketFlag, "socket", "", "container daemon socket (overrides config and DOCKER_HOST)")
}
