// Package cli defines the backplane command-line interface. The root command
// launches the dashboard; subcommands handle config bootstrap, version info,
// and shell completion.
package cli
