package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	Listen     string
	BasePath   string
	BinaryPath string
	ConfigPath string
	DevCommand string
	CaptureDir string
	HistoryDSN string
	LogLevel   string
}

// APIFlags holds daemon connection flags shared by the client commands.
type APIFlags struct {
	URL     string
	Timeout time.Duration
}

// StartFlags holds flags for the start command.
type StartFlags struct {
	BinaryPath string
	ConfigPath string
	Telegram   bool
}

// ConfigInitFlags holds flags for config init.
type ConfigInitFlags struct {
	Path  string
	Force bool
}

func buildRoot() *cobra.Command {
	serveFlags := &ServeFlags{}
	apiFlags := &APIFlags{}
	startFlags := &StartFlags{}
	initFlags := &ConfigInitFlags{}

	root := &cobra.Command{
		Use:   "vigilctl",
		Short: "Lifecycle supervisor for the vigil monitoring agent",
		Long: `Vigilctl starts, stops and reconfigures a vigil-agent process, gating
every launch on the agent's health endpoint.

Examples:
  vigilctl serve --binary=/usr/bin/vigil-agent --agent-config=/etc/vigil/config.yaml
  vigilctl start --telegram
  vigilctl status
  vigilctl telegram off`,
	}

	root.PersistentFlags().StringVar(&apiFlags.URL, "api-url", "http://localhost:9109", "vigilctl daemon URL")
	root.PersistentFlags().DurationVar(&apiFlags.Timeout, "api-timeout", 60*time.Second, "request timeout (start/toggle wait behind the health gate)")

	root.AddCommand(
		createServeCommand(serveFlags),
		createStartCommand(apiFlags, startFlags),
		createStopCommand(apiFlags),
		createStatusCommand(apiFlags),
		createTelegramCommand(apiFlags),
		createConfigCommand(initFlags),
	)
	return root
}

func createServeCommand(flags *ServeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the supervisor daemon with its HTTP API",
		Long: `Run the supervisor in the foreground, exposing the lifecycle API and
Prometheus metrics over HTTP.

Examples:
  vigilctl serve --binary=/usr/bin/vigil-agent --agent-config=/etc/vigil/config.yaml
  vigilctl serve --history-dsn=sqlite:///var/lib/vigilctl/history.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.Listen, "listen", "127.0.0.1:9109", "address for the supervisor API")
	cmd.Flags().StringVar(&flags.BasePath, "base-path", "", "URL prefix for the API endpoints")
	cmd.Flags().StringVar(&flags.BinaryPath, "binary", "vigil-agent", "agent executable path")
	cmd.Flags().StringVar(&flags.ConfigPath, "agent-config", defaultConfigPath(), "agent YAML config path")
	cmd.Flags().StringVar(&flags.DevCommand, "dev-command", "", "fallback launch command when the binary is missing (e.g. \"cargo run --\")")
	cmd.Flags().StringVar(&flags.CaptureDir, "capture-dir", "", "directory for rotated agent stdout/stderr logs")
	cmd.Flags().StringVar(&flags.HistoryDSN, "history-dsn", "", "lifecycle event sink DSN (sqlite path, postgres:// or clickhouse://)")
	cmd.Flags().StringVar(&flags.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	return cmd
}

func createStartCommand(api *APIFlags, flags *StartFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the agent and wait for it to become healthy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newCommand(api).Start(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.BinaryPath, "binary", "", "override the daemon's agent executable path")
	cmd.Flags().StringVar(&flags.ConfigPath, "agent-config", "", "override the daemon's agent config path")
	cmd.Flags().BoolVar(&flags.Telegram, "telegram", false, "start with telegram alerting enabled")
	return cmd
}

func createStopCommand(api *APIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newCommand(api).Stop()
		},
	}
}

func createStatusCommand(api *APIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the agent's lifecycle state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newCommand(api).Status()
		},
	}
}

func createTelegramCommand(api *APIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "telegram on|off",
		Short: "Toggle telegram alerting, restarting the agent when running",
		Long: `Toggle the agent's telegram alerting feature. When the agent is running
it is restarted with the new configuration; if the new configuration fails
to come up healthy the previous one is restored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var target bool
			switch args[0] {
			case "on":
				target = true
			case "off":
				target = false
			default:
				return fmt.Errorf("expected \"on\" or \"off\", got %q", args[0])
			}
			return newCommand(api).SetTelegram(target)
		},
	}
}

func createConfigCommand(flags *ConfigInitFlags) *cobra.Command {
	config := &cobra.Command{
		Use:   "config",
		Short: "Agent configuration helpers",
	}
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default agent configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd, *flags)
		},
	}
	initCmd.Flags().StringVar(&flags.Path, "path", defaultConfigPath(), "where to write the config file")
	initCmd.Flags().BoolVar(&flags.Force, "force", false, "overwrite an existing file")
	config.AddCommand(initCmd)
	return config
}
