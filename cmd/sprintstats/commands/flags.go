// Package commands implements the sprintstats CLI commands.
package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sprintstats/pkg/config"
)

// Persistent flag names.
const (
	flagConfig   = "config"
	flagLogLevel = "log-level"
	flagLogJSON  = "log-json"
)

// RegisterPersistentFlags adds the flags shared by every command to root.
func RegisterPersistentFlags(root *cobra.Command) {
	root.PersistentFlags().String(flagConfig, "", "Settings file (default: .sprintstats.yaml in CWD or $HOME)")
	root.PersistentFlags().String(flagLogLevel, config.DefaultLogLevel, "Log level: debug, info, warn, error")
	root.PersistentFlags().Bool(flagLogJSON, false, "Log in JSON format")
}

// registerCatalogFlags adds the catalog location flags to cmd.
func registerCatalogFlags(cmd *cobra.Command) {
	cmd.Flags().String("repos", config.DefaultRepos, "Repository catalog (JSON)")
	cmd.Flags().String("sprints", config.DefaultSprints, "Sprint catalog (JSON)")
	cmd.Flags().String("users", config.DefaultUsers, "User catalog (JSON)")
}

// loadSettings resolves the settings of cmd. The config flag may come from a
// parent command or be absent in tests that run a command on its own.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	configPath := ""

	if flag := cmd.Flags().Lookup(flagConfig); flag != nil {
		configPath = flag.Value.String()
	}

	return config.LoadSettings(configPath, cmd.Flags())
}

var (
	statusOK   = color.New(color.FgGreen)
	statusFail = color.New(color.FgRed, color.Bold)
)

func progressf(silent bool, writer io.Writer, format string, args ...any) {
	if silent {
		return
	}

	_, _ = fmt.Fprintf(writer, "progress: "+format+"\n", args...)
}
